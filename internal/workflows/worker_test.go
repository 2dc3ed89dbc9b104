package workflows

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startWorker(t *testing.T, w *Worker) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, w.Run(ctx))
	}()
	return func() {
		stop()
		wg.Wait()
	}
}

func TestAsyncConfirmationRunsInBackground(t *testing.T) {
	collab := &scriptedLLM{}
	acts := newTestActivities(t, collab)
	logger := zaptest.NewLogger(t)
	pipeline := NewPipeline(acts, logger)
	worker := NewWorker(pipeline, 2, logger)
	c := NewController(acts, pipeline, worker, logger)
	stop := startWorker(t, worker)
	defer stop()

	sess := session.New("async")
	c.HandleMessage(t.Context(), sess, "Acme Corp")
	require.Equal(t, session.StageConfirmingPlan, sess.Stage())

	reply := c.HandleMessage(t.Context(), sess, "yes, proceed")
	assert.Equal(t, ReplyKickoff, reply)

	assert.Eventually(t, func() bool {
		return sess.Stage() == session.StageReviewing
	}, 5*time.Second, 10*time.Millisecond)
	require.NotNil(t, sess.Report())
	assert.NotEmpty(t, sess.Activity.Snapshot())
}

func TestBusyStageWhilePipelineRuns(t *testing.T) {
	collab := &scriptedLLM{}
	acts := newTestActivities(t, collab)
	pipeline := NewPipeline(acts, nil)
	worker := NewWorker(pipeline, 1, nil)
	c := NewController(acts, pipeline, worker, nil)

	sess := session.New("busy")
	c.HandleMessage(t.Context(), sess, "Acme Corp")

	collab.mu.Lock()
	collab.block = make(chan struct{})
	collab.mu.Unlock()

	stop := startWorker(t, worker)
	defer stop()

	assert.Equal(t, ReplyKickoff, c.HandleMessage(t.Context(), sess, "go"))
	assert.Equal(t, ReplyResearching, c.HandleMessage(t.Context(), sess, "done yet?"))

	collab.mu.Lock()
	close(collab.block)
	collab.block = nil
	collab.mu.Unlock()

	assert.Eventually(t, func() bool {
		return sess.Stage() == session.StageReviewing
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSubmitQueueFull(t *testing.T) {
	w := NewWorker(NewPipeline(newTestActivities(t, &scriptedLLM{}), nil), 1, nil)

	require.NoError(t, w.Submit(session.New("a")))
	assert.ErrorIs(t, w.Submit(session.New("b")), ErrPipelineBusy)
}

func TestQueueFullRestoresConfirmingStage(t *testing.T) {
	acts := newTestActivities(t, &scriptedLLM{})
	worker := NewWorker(NewPipeline(acts, nil), 1, nil)
	require.NoError(t, worker.Submit(session.New("occupier")))
	c := NewController(acts, nil, worker, nil)

	sess := session.New("late")
	c.HandleMessage(t.Context(), sess, "Acme Corp")
	assert.Equal(t, ReplyQueueFull, c.HandleMessage(t.Context(), sess, "ok"))
	assert.Equal(t, session.StageConfirmingPlan, sess.Stage())
}

func TestWorkerStopAbandonsQueuedRuns(t *testing.T) {
	w := NewWorker(NewPipeline(newTestActivities(t, &scriptedLLM{}), nil), 4, nil)
	queued := session.New("queued")
	queued.SetStage(session.StageResearching)
	require.NoError(t, w.Submit(queued))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	assert.Equal(t, session.StageConfirmingPlan, queued.Stage())
	assert.ErrorIs(t, w.Submit(session.New("after")), ErrWorkerStopped)
}
