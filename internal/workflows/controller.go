package workflows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/activities"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/report"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/util"
)

// Replies for stages that do not call a collaborator.
const (
	ReplyResearching = "I'm still executing the research workflow. You'll see progress updates as each agent completes."
	ReplyEditing     = "I'm updating the requested section. Give me a second and I'll share the revision."
	ReplyDone        = "The plan is complete. Ask for edits or start a new company brief whenever you're ready."
	ReplyRefine      = "Happy to refine the plan. Let me know if anything should change before I begin."
	ReplyComplete    = "I've completed the research and created your account plan. " +
		"Review it and tell me if you'd like to refine any section."
	ReplyKickoff = "I'm kicking off the research agents now… Follow the progress feed; " +
		"I'll have the account plan ready for review when they finish."
	ReplyQueueFull = "The research agents are busy with other requests. Reply `yes` again in a moment to start."
	ReplyReviewing = "Your plan is ready. Ask me to regenerate a section " +
		"(e.g., 'Update opportunities to focus on healthcare AI') or export it when you're happy."
	replyPipelineFailed = "Something went wrong while building the account plan. Reply `yes` to try again."
)

// Controller is the conversation state machine.
type Controller struct {
	acts     *activities.Activities
	pipeline *Pipeline
	worker   *Worker
	logger   *zap.Logger
}

// NewController creates a controller. With a nil worker the research pipeline
// runs inline inside HandleMessage.
func NewController(acts *activities.Activities, pipeline *Pipeline, worker *Worker, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pipeline == nil {
		pipeline = NewPipeline(acts, logger)
	}
	return &Controller{acts: acts, pipeline: pipeline, worker: worker, logger: logger}
}

// HandleMessage records the user message, advances the session according to
// its stage and records the reply. Exactly one reply is appended per call.
// Callers must serialise calls for the same session.
func (c *Controller) HandleMessage(ctx context.Context, sess *session.Session, text string) string {
	stage := sess.Stage()
	metrics.ConversationMessages.WithLabelValues(string(stage)).Inc()
	sess.AppendMessage(session.RoleUser, text)

	var reply string
	switch stage {
	case session.StagePlanning:
		reply = c.acts.Clarify(ctx, sess)
	case session.StageConfirmingPlan:
		reply = c.confirmPlan(ctx, sess, text)
	case session.StageResearching, session.StageAnalyzing:
		reply = ReplyResearching
	case session.StageReviewing:
		reply = c.review(ctx, sess, text)
	case session.StageEditing:
		reply = ReplyEditing
	default:
		reply = ReplyDone
	}

	sess.AppendMessage(session.RoleAssistant, reply)
	c.logger.Debug("Message handled",
		zap.String("session_id", sess.ID),
		zap.String("from_stage", string(stage)),
		zap.String("to_stage", string(sess.Stage())),
		zap.String("message", util.TruncateString(text, 120, true)),
	)
	return reply
}

func (c *Controller) confirmPlan(ctx context.Context, sess *session.Session, text string) string {
	switch ClassifyPlanReply(text) {
	case IntentConfirm:
		return c.startResearch(ctx, sess)
	case IntentRevise:
		sess.SetWorkplan("")
		sess.SetStage(session.StagePlanning)
		return c.acts.Clarify(ctx, sess)
	default:
		return ReplyRefine
	}
}

func (c *Controller) startResearch(ctx context.Context, sess *session.Session) string {
	if c.worker == nil {
		if err := c.pipeline.Run(ctx, sess, "sync"); err != nil {
			sess.SetStage(session.StageConfirmingPlan)
			return replyPipelineFailed
		}
		return ReplyComplete
	}

	sess.SetStage(session.StageResearching)
	if err := c.worker.Submit(sess); err != nil {
		c.logger.Warn("Pipeline not queued", zap.String("session_id", sess.ID), zap.Error(err))
		sess.SetStage(session.StageConfirmingPlan)
		return ReplyQueueFull
	}
	return ReplyKickoff
}

func (c *Controller) review(ctx context.Context, sess *session.Session, text string) string {
	sec, ok := report.DetectSection(text)
	if !ok {
		return ReplyReviewing
	}
	return c.Regenerate(ctx, sess, sec, text)
}

// Regenerate rewrites one section and returns a user-facing reply.
// Sequencing errors are returned as replies naming the missing prerequisite.
func (c *Controller) Regenerate(ctx context.Context, sess *session.Session, sec report.Section, instruction string) string {
	label := strings.ToLower(sec.Label())
	if _, err := c.acts.RegenerateSection(ctx, sess, sec, instruction); err != nil {
		if errors.Is(err, activities.ErrMissingBundle) || errors.Is(err, activities.ErrMissingReport) {
			return "There's no account plan to edit yet. Confirm a workplan first so I can run the research."
		}
		return fmt.Sprintf("I couldn't regenerate the %s section just now (%v). The previous version is unchanged.", label, err)
	}
	return fmt.Sprintf("I've updated the %s section. Anything else?", label)
}
