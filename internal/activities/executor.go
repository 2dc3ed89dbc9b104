package activities

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/activity"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/lookup"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/tracing"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/util"
)

const financeContextLimit = 280

// RunResearch executes tasks in order against the channel lookups and leaves
// the merged bundle on the session with the stage at ANALYZING. A failing task
// marks its activity event as errored and the run moves on.
func (a *Activities) RunResearch(ctx context.Context, sess *session.Session, tasks []research.SearchTask) *research.Bundle {
	ctx, span := tracing.StartSpan(ctx, "research.run", "session_id", sess.ID)
	defer span.End()
	logger := a.logger.With(zap.String("session_id", sess.ID))

	sess.ResetProgress()
	sess.Activity.Reset()
	sess.LogProgress("Launching research agents…")

	scope := sess.Scope()
	company := research.ResolveCompany(scope)
	plan := research.EnsureCoverage(company, tasks, a.maxTasks)

	bundle := research.NewBundle(company, scope)
	bundle.SearchPlan = plan
	sess.SetTasks(plan)

	logger.Info("Research run started", zap.String("company", company), zap.Int("tasks", len(plan)))
	for _, task := range plan {
		a.runTask(ctx, sess, bundle, company, scope, task)
	}

	bundle.DedupeSources()
	sess.SetBundle(bundle)
	sess.LogProgress("Research bundle ready for analysis.")
	sess.SetStage(session.StageAnalyzing)
	logger.Info("Research run finished", zap.Int("sources", len(bundle.Sources)))
	return bundle
}

func (a *Activities) runTask(ctx context.Context, sess *session.Session, bundle *research.Bundle, company string, scope map[string]string, task research.SearchTask) {
	ctx, span := tracing.StartSpan(ctx, "research.task", "channel", string(task.Channel), "agent", task.Agent)
	defer span.End()

	info := task.Channel.Info()
	sess.LogProgress(fmt.Sprintf("%s %s – %s", info.Icon, info.Agent, task.Goal))
	ev := sess.Activity.Start(task)
	sess.PublishActivity(ev)
	start := time.Now()

	var client lookup.Client
	if a.lookups != nil {
		client = a.lookups.For(task.Channel)
	}

	var (
		results []research.Record
		err     error
	)
	if client == nil {
		err = fmt.Errorf("no lookup configured for channel %s", task.Channel)
	} else {
		results, err = client.Lookup(ctx, company, scope, task.Query)
	}
	metrics.ResearchTaskDuration.WithLabelValues(string(task.Channel)).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ResearchTasks.WithLabelValues(string(task.Channel), "error").Inc()
		a.logger.Warn("Research task failed",
			zap.String("session_id", sess.ID),
			zap.String("channel", string(task.Channel)),
			zap.String("query", task.Query),
			zap.Error(err),
		)
		if done, ferr := sess.Activity.Fail(ev.ID, err); ferr == nil {
			sess.PublishActivity(done)
		}
		return
	}

	mergeResults(bundle, info.Field, results)
	bundle.AddSources(client.SourceMetadata(results))
	metrics.ResearchTasks.WithLabelValues(string(task.Channel), "complete").Inc()

	var preview []activity.Result
	if task.Channel == research.ChannelFinance {
		preview = financePreview(results)
	} else {
		preview = activity.Preview(results, info.TextKey)
	}
	if done, cerr := sess.Activity.Complete(ev.ID, preview); cerr == nil {
		sess.PublishActivity(done)
	}
}

// mergeResults folds a lookup's records into the channel's bundle field.
// Mapping fields take the first record; sequence fields take them all.
func mergeResults(bundle *research.Bundle, field research.FieldKey, results []research.Record) {
	switch field {
	case research.FieldFinancials, research.FieldSentiment, research.FieldWikiSummary:
		if len(results) > 0 {
			bundle.Merge(field, results[0])
		}
	default:
		bundle.Merge(field, results)
	}
}

// preferredMetrics orders financial metrics ahead of the alphabetical rest.
var preferredMetrics = []string{"exchange", "sector", "industry", "quote_type"}

func financePreview(results []research.Record) []activity.Result {
	if len(results) == 0 {
		return []activity.Result{{Title: "Financials", Snippet: "No structured data available"}}
	}
	snap := results[0]
	url := snap.First("source", "url")

	var out []activity.Result
	if summary := snap.String("summary"); summary != "" {
		out = append(out, activity.Result{
			Title:   "Context",
			Snippet: util.Ellipsize(util.CleanHTML(summary), financeContextLimit),
			URL:     url,
		})
	}
	m, _ := snap["metrics"].(map[string]any)
	for _, k := range orderedMetricKeys(m) {
		if len(out) == activity.MaxPreviewResults {
			break
		}
		out = append(out, activity.Result{
			Title:   util.TitleWords(k),
			Snippet: fmt.Sprint(m[k]),
			URL:     url,
		})
	}
	if len(out) == 0 {
		return []activity.Result{{Title: "Financials", Snippet: "No structured data available"}}
	}
	return out
}

func orderedMetricKeys(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range preferredMetrics {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
