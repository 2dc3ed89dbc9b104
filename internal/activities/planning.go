package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/llm"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
)

const (
	defaultClarifyReply  = "I'm processing your request."
	workplanFailureReply = "I wasn't able to build the workplan yet."
	restateRequest       = "\n\nCould you restate the requirements so I can try again?"
	plannerErrorReply    = "Sorry, I couldn't reach the planning agent just now. Could you send that again?"
)

// lowerCasedScope lists scope keys normalised to lower case on update.
var lowerCasedScope = map[string]bool{"persona": true, "persona_mode": true, "depth": true}

// Clarify runs the planning step for the current chat history. It applies
// scope updates from the collaborator and, once nothing else is needed, drafts
// the workplan and moves the session to CONFIRMING_PLAN. The returned string is
// always a user-facing reply.
func (a *Activities) Clarify(ctx context.Context, sess *session.Session) string {
	logger := a.logger.With(zap.String("session_id", sess.ID))
	catalog := a.prompts.Current()

	system := catalog.Clarification + "\n\nCurrent scope snapshot:\n" + scopeSnapshot(sess.Scope())
	payload, err := a.llm.StructuredChat(ctx, system, chatHistory(sess))
	if err != nil {
		logger.Warn("Clarification call failed", zap.Error(err))
		sess.SetStage(session.StagePlanning)
		return plannerErrorReply
	}

	applyScopeUpdates(sess, payload["scope_updates"])

	needsMore := true
	if v, ok := payload["needs_more_info"].(bool); ok {
		needsMore = v
	}
	reply := defaultClarifyReply
	if v, ok := payload[llm.ReplyKey]; ok && v != nil {
		reply = strings.TrimSpace(fmt.Sprint(v))
	}

	if needsMore {
		sess.SetStage(session.StagePlanning)
		if reply == "" {
			return defaultClarifyReply
		}
		return reply
	}

	workplan, err := a.draftWorkplan(ctx, sess)
	if err != nil {
		logger.Warn("Workplan generation failed", zap.Error(err))
	}
	if workplan != "" {
		sess.SetWorkplan(workplan)
		sess.SetStage(session.StageConfirmingPlan)
		logger.Info("Workplan drafted", zap.Int("length", len(workplan)))
		if reply == "" {
			return workplan
		}
		return strings.TrimSpace(reply + "\n\n" + workplan)
	}

	sess.SetStage(session.StagePlanning)
	if reply == "" {
		reply = workplanFailureReply
	}
	return strings.TrimSpace(reply + restateRequest)
}

func (a *Activities) draftWorkplan(ctx context.Context, sess *session.Session) (string, error) {
	system := a.prompts.Current().Workplan + "\n\nFinal scope context:\n" + scopeSnapshot(sess.Scope())
	text, err := a.llm.Chat(ctx, system, chatHistory(sess))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// applyScopeUpdates stores non-empty values; "company" lands in company_name.
func applyScopeUpdates(sess *session.Session, raw any) {
	updates, ok := raw.(map[string]any)
	if !ok {
		return
	}
	for key, v := range updates {
		if v == nil {
			continue
		}
		value := strings.TrimSpace(fmt.Sprint(v))
		if value == "" {
			continue
		}
		if lowerCasedScope[key] {
			value = strings.ToLower(value)
		}
		if key == "company" {
			key = "company_name"
		}
		sess.SetScopeValue(key, value)
	}
}

// scopeSnapshot renders the scope as indented JSON with sorted keys.
func scopeSnapshot(scope map[string]string) string {
	get := func(keys ...string) any {
		for _, k := range keys {
			if v := scope[k]; v != "" {
				return v
			}
		}
		return nil
	}
	snapshot := map[string]any{
		"company":       get("company", "company_name"),
		"region":        get("region"),
		"segment":       get("segment"),
		"product_focus": get("product_focus"),
		"persona_mode":  get("persona_mode", "persona"),
		"depth":         get("depth"),
		"notes":         get("notes"),
		"raw_scope":     scope,
	}
	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Sprint(snapshot)
	}
	return string(out)
}

func chatHistory(sess *session.Session) []llm.Message {
	history := sess.History()
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
