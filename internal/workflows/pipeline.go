package workflows

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/activities"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/tracing"
)

// Pipeline runs research followed by synthesis for one session.
type Pipeline struct {
	acts   *activities.Activities
	logger *zap.Logger
}

// NewPipeline creates a pipeline over acts.
func NewPipeline(acts *activities.Activities, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{acts: acts, logger: logger}
}

// Run blocks until the report is ready. Task and section failures degrade
// inside the run; only a sequencing error is returned. mode labels metrics.
func (p *Pipeline) Run(ctx context.Context, sess *session.Session, mode string) error {
	ctx, span := tracing.StartSpan(ctx, "pipeline.run", "session_id", sess.ID, "mode", mode)
	defer span.End()
	start := time.Now()
	logger := p.logger.With(zap.String("session_id", sess.ID), zap.String("mode", mode))

	sess.SetStage(session.StageResearching)
	sess.LogProgress("Translating the workplan into research runs…")
	tasks := p.acts.BuildTasks(ctx, sess)
	if len(tasks) == 0 {
		sess.LogProgress("Using default research sweep.")
	}
	p.acts.RunResearch(ctx, sess, tasks)

	sess.SetStage(session.StageAnalyzing)
	sess.LogProgress("Handing insights to strategy agents…")
	_, err := p.acts.Synthesize(ctx, sess)

	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.PipelineRuns.WithLabelValues(mode, "error").Inc()
		logger.Error("Pipeline failed", zap.Error(err))
		return err
	}
	metrics.PipelineRuns.WithLabelValues(mode, "success").Inc()
	logger.Info("Pipeline completed", zap.Duration("duration", time.Since(start)))
	return nil
}
