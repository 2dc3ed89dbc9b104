package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/llm"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/report"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/tracing"
)

// Synthesize writes all ten report sections from the session's bundle in
// canonical order. A section whose generation fails gets fallback text built
// from the bundle. The new report replaces the session's and the stage moves
// to REVIEWING. ErrMissingBundle is returned when research has not run.
func (a *Activities) Synthesize(ctx context.Context, sess *session.Session) (*report.Report, error) {
	bundle := sess.Bundle()
	if bundle == nil {
		return nil, ErrMissingBundle
	}
	ctx, span := tracing.StartSpan(ctx, "report.synthesize", "session_id", sess.ID)
	defer span.End()

	bundleJSON := serializeBundle(bundle)
	catalog := a.prompts.Current()
	scope := sess.Scope()
	rep := report.New(bundle.CompanyName, bundle.Scope)

	fallbacks := 0
	for _, sec := range report.Sections {
		progress := catalog.Section(sec).Progress
		if progress == "" {
			progress = fmt.Sprintf("Generating %s…", sec.Label())
		}
		sess.LogProgress(progress)

		text, err := a.generateSection(ctx, sec, bundleJSON, scope, "")
		if err != nil {
			fallbacks++
			metrics.SectionGenerations.WithLabelValues(string(sec), "fallback").Inc()
			a.logger.Warn("Section generation failed, using fallback",
				zap.String("session_id", sess.ID),
				zap.String("section", string(sec)),
				zap.Error(err),
			)
			sess.LogProgress(fmt.Sprintf("Fallback used for %s: %v", sec.Label(), err))
			text = BuildFallback(sec, bundle, err)
		} else {
			metrics.SectionGenerations.WithLabelValues(string(sec), "generated").Inc()
		}
		rep.Set(sec, text)
	}
	if fallbacks > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d sections used fallback", fallbacks))
	}

	sess.SetReport(rep)
	sess.SetStage(session.StageReviewing)
	sess.LogProgress("Account plan ready. You can review it now.")
	return rep, nil
}

// generateSection asks the collaborator for one section. A blank response is
// treated as a failure.
func (a *Activities) generateSection(ctx context.Context, sec report.Section, bundleJSON string, scope map[string]string, instruction string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "report.section", "section", string(sec))
	defer span.End()

	catalog := a.prompts.Current()
	persona := firstScope(scope, "analyst", "persona_mode", "persona")
	depth := firstScope(scope, "detailed", "depth")

	var b strings.Builder
	b.WriteString(strings.TrimSpace(catalog.Section(sec).Prompt))
	b.WriteString("\n\nContext:\n")
	b.WriteString(bundleJSON)
	fmt.Fprintf(&b, "\n\nPersona mode: %s | Depth: %s\n", persona, depth)
	if instruction = strings.TrimSpace(instruction); instruction != "" {
		fmt.Fprintf(&b, "Additional direction from user: %s\n", instruction)
	}

	text, err := a.llm.Chat(ctx, catalog.SectionSystem, []llm.Message{{Role: session.RoleUser, Content: b.String()}})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

func serializeBundle(b *research.Bundle) string {
	out, err := json.Marshal(b)
	if err != nil {
		return "{}"
	}
	return string(out)
}

func firstScope(scope map[string]string, fallback string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(scope[k]); v != "" {
			return v
		}
	}
	return fallback
}
