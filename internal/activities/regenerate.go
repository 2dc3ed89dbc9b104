package activities

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/report"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
)

// RegenerateSection rewrites one section with an optional user instruction and
// bumps the report version by one. Other sections are left as they were. When
// generation fails the stored report is unchanged and the error is returned.
func (a *Activities) RegenerateSection(ctx context.Context, sess *session.Session, sec report.Section, instruction string) (*report.Report, error) {
	bundle, current := sess.Bundle(), sess.Report()
	if bundle == nil {
		return nil, ErrMissingBundle
	}
	if current == nil {
		return nil, ErrMissingReport
	}

	sess.ResetProgress()
	sess.SetStage(session.StageEditing)
	sess.LogProgress(fmt.Sprintf("Regenerating %s…", sec.Label()))

	text, err := a.generateSection(ctx, sec, serializeBundle(bundle), sess.Scope(), instruction)
	if err != nil {
		metrics.SectionRegenerations.WithLabelValues(string(sec), "error").Inc()
		a.logger.Warn("Section regeneration failed",
			zap.String("session_id", sess.ID),
			zap.String("section", string(sec)),
			zap.Error(err),
		)
		sess.LogProgress(fmt.Sprintf("Could not regenerate %s: %v", sec.Label(), err))
		sess.SetStage(session.StageReviewing)
		return nil, fmt.Errorf("regenerate %s: %w", sec, err)
	}

	updated := current.Clone()
	updated.Set(sec, text)
	updated.Version++
	sess.SetReport(updated)
	sess.SetStage(session.StageReviewing)
	sess.LogProgress(fmt.Sprintf("%s updated.", sec.Label()))
	metrics.SectionRegenerations.WithLabelValues(string(sec), "success").Inc()
	return updated, nil
}
