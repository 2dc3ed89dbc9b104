package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/report"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
)

func TestClassifyPlanReply(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"looks good", IntentConfirm},
		{"Yes, go ahead!", IntentConfirm},
		{"OK", IntentConfirm},
		{"Sounds good to me", IntentConfirm},
		{"please adjust the competitors section", IntentRevise},
		{"Could you add a phase on pricing?", IntentRevise},
		{"ok but change phase 2", IntentConfirm},
		{"what category is this?", IntentNone},
		{"goodness, hmm", IntentNone},
		{"", IntentNone},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPlanReply(tt.text))
		})
	}
}

func newSyncController(t *testing.T, collab *scriptedLLM) *Controller {
	return NewController(newTestActivities(t, collab), nil, nil, zaptest.NewLogger(t))
}

func TestConversationEndToEnd(t *testing.T) {
	collab := &scriptedLLM{}
	c := newSyncController(t, collab)
	sess := session.New("e2e")

	reply := c.HandleMessage(t.Context(), sess, "Build an account plan for Acme Corp in EMEA")
	assert.Equal(t, "Thanks, I have what I need.\n\n"+testWorkplan, reply)
	assert.Equal(t, session.StageConfirmingPlan, sess.Stage())
	assert.Equal(t, "Acme Corp", sess.Scope()["company_name"])

	reply = c.HandleMessage(t.Context(), sess, "looks good")
	assert.Equal(t, ReplyComplete, reply)
	assert.Equal(t, session.StageReviewing, sess.Stage())

	rep := sess.Report()
	require.NotNil(t, rep)
	assert.Equal(t, 1, rep.Version)
	for _, sec := range report.Sections {
		assert.Equal(t, "section text", rep.Get(sec))
	}

	channels := map[string]bool{}
	for _, task := range sess.Tasks() {
		channels[string(task.Channel)] = true
	}
	for _, ch := range []string{"web", "news", "finance", "leadership", "talent", "competitors"} {
		assert.True(t, channels[ch], ch)
	}

	collab.sectionText = "EMEA-focused financials"
	reply = c.HandleMessage(t.Context(), sess, "Update financials to focus on EMEA")
	assert.Equal(t, "I've updated the financials section. Anything else?", reply)
	assert.Equal(t, 2, sess.Report().Version)
	assert.Equal(t, "EMEA-focused financials", sess.Report().Financials)
	assert.Equal(t, "section text", sess.Report().News)

	reply = c.HandleMessage(t.Context(), sess, "thanks!")
	assert.Equal(t, ReplyReviewing, reply)

	history := sess.History()
	require.Len(t, history, 8)
	for i, m := range history {
		if i%2 == 0 {
			assert.Equal(t, session.RoleUser, m.Role)
		} else {
			assert.Equal(t, session.RoleAssistant, m.Role)
		}
	}
}

func TestConfirmingPlanRevision(t *testing.T) {
	collab := &scriptedLLM{}
	c := newSyncController(t, collab)
	sess := session.New("rev")
	c.HandleMessage(t.Context(), sess, "Acme Corp please")
	require.Equal(t, session.StageConfirmingPlan, sess.Stage())

	collab.needsMore = true
	reply := c.HandleMessage(t.Context(), sess, "please adjust the competitors section")

	assert.Equal(t, "Thanks, I have what I need.", reply)
	assert.Equal(t, session.StagePlanning, sess.Stage())
	assert.Empty(t, sess.Workplan())
}

func TestConfirmingPlanNeither(t *testing.T) {
	c := newSyncController(t, &scriptedLLM{})
	sess := session.New("neither")
	c.HandleMessage(t.Context(), sess, "Acme Corp")

	reply := c.HandleMessage(t.Context(), sess, "hmm, not sure")
	assert.Equal(t, ReplyRefine, reply)
	assert.Equal(t, session.StageConfirmingPlan, sess.Stage())
	assert.Equal(t, testWorkplan, sess.Workplan())
}

func TestStaticStageReplies(t *testing.T) {
	collab := &scriptedLLM{}
	c := newSyncController(t, collab)

	for stage, want := range map[session.Stage]string{
		session.StageResearching: ReplyResearching,
		session.StageAnalyzing:   ReplyResearching,
		session.StageEditing:     ReplyEditing,
		session.StageDone:        ReplyDone,
	} {
		sess := session.New("static-" + string(stage))
		sess.SetStage(stage)
		assert.Equal(t, want, c.HandleMessage(t.Context(), sess, "any update?"))
		assert.Equal(t, stage, sess.Stage())
		assert.Len(t, sess.History(), 2)
	}
	assert.Zero(t, collab.calls)
}

func TestReviewingWithoutReport(t *testing.T) {
	c := newSyncController(t, &scriptedLLM{})
	sess := session.New("no-report")
	sess.SetStage(session.StageReviewing)

	reply := c.HandleMessage(t.Context(), sess, "rewrite the swot")
	assert.Contains(t, reply, "no account plan to edit yet")
	assert.Equal(t, session.StageReviewing, sess.Stage())
}
