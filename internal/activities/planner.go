package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/llm"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
)

// BuildTasks turns the approved workplan into channel-tagged search tasks.
// It returns an empty list when no workplan is stored or the collaborator
// fails; it never returns an error.
func (a *Activities) BuildTasks(ctx context.Context, sess *session.Session) []research.SearchTask {
	workplan := sess.Workplan()
	if workplan == "" {
		return []research.SearchTask{}
	}
	logger := a.logger.With(zap.String("session_id", sess.ID))

	scope, err := json.MarshalIndent(sess.Scope(), "", "  ")
	if err != nil {
		scope = []byte("{}")
	}
	msg := llm.Message{
		Role: session.RoleUser,
		Content: "Here is the confirmed scope and approved workplan. Return JSON search tasks only.\n\n" +
			"Scope:\n" + string(scope) + "\n\nWorkplan:\n" + workplan,
	}
	payload, err := a.llm.StructuredChat(ctx, a.prompts.Current().SearchRouterPrompt(a.maxTasks), []llm.Message{msg})
	if err != nil {
		logger.Warn("Search router call failed, continuing with baseline coverage", zap.Error(err))
		return []research.SearchTask{}
	}

	tasks := normalizeTasks(payload["search_tasks"], a.maxTasks)
	metrics.PlannedTasks.Observe(float64(len(tasks)))
	logger.Info("Search tasks planned", zap.Int("count", len(tasks)))
	return tasks
}

// normalizeTasks is the planner-side pass: invalid channels are dropped, text
// fields trimmed, labels defaulted and the list capped.
func normalizeTasks(raw any, maxTasks int) []research.SearchTask {
	items, _ := raw.([]any)
	out := make([]research.SearchTask, 0, len(items))
	for _, item := range items {
		if len(out) >= maxTasks {
			break
		}
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		field := func(key string) string {
			if v, ok := m[key]; ok && v != nil {
				return strings.TrimSpace(fmt.Sprint(v))
			}
			return ""
		}
		channelName := field("channel")
		if channelName == "" {
			channelName = string(research.DefaultChannel)
		}
		ch, ok := research.ParseChannel(channelName)
		if !ok {
			continue
		}
		agent := field("agent")
		if agent == "" {
			agent = research.DefaultAgentLabel
		}
		source := field("source")
		if source == "" {
			source = ch.Title()
		}
		out = append(out, research.SearchTask{
			Phase:   field("phase"),
			Goal:    field("goal"),
			Channel: ch,
			Query:   field("query"),
			Agent:   agent,
			Source:  source,
		})
	}
	return out
}
