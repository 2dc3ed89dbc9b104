package workflows

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
)

var (
	// ErrPipelineBusy is returned when the worker queue is full
	ErrPipelineBusy = errors.New("pipeline queue is full")
	// ErrWorkerStopped is returned when submitting to a stopped worker
	ErrWorkerStopped = errors.New("pipeline worker stopped")
)

// DefaultQueueSize bounds pending pipeline runs.
const DefaultQueueSize = 16

// Worker runs pipelines in the background, one at a time, in submission order.
type Worker struct {
	pipeline *Pipeline
	queue    chan *session.Session
	logger   *zap.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewWorker creates a worker with a bounded queue.
func NewWorker(p *Pipeline, queueSize int, logger *zap.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{pipeline: p, queue: make(chan *session.Session, queueSize), logger: logger}
}

// Submit enqueues a pipeline run without blocking.
func (w *Worker) Submit(sess *session.Session) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrWorkerStopped
	}
	select {
	case w.queue <- sess:
		metrics.PipelineQueueDepth.Set(float64(len(w.queue)))
		return nil
	default:
		return ErrPipelineBusy
	}
}

// Run processes the queue until ctx is cancelled. A run in progress finishes
// with the cancelled context; queued runs are abandoned and their sessions
// returned to CONFIRMING_PLAN.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Pipeline worker started", zap.Int("queue_size", cap(w.queue)))
	defer w.shutdown()
	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case sess := <-w.queue:
			metrics.PipelineQueueDepth.Set(float64(len(w.queue)))
			w.process(ctx, sess)
		}
	}
}

func (w *Worker) process(ctx context.Context, sess *session.Session) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Pipeline panicked", zap.String("session_id", sess.ID), zap.Any("panic", r))
			w.fail(sess, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := w.pipeline.Run(ctx, sess, "async"); err != nil {
		w.fail(sess, err)
	}
}

func (w *Worker) fail(sess *session.Session, err error) {
	sess.LogProgress(fmt.Sprintf("Research pipeline stopped: %v", err))
	sess.AppendMessage(session.RoleAssistant,
		"The research run didn't finish. Reply `yes` to try again or tell me what to change.")
	sess.SetStage(session.StageConfirmingPlan)
}

func (w *Worker) shutdown() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	for {
		select {
		case sess := <-w.queue:
			w.fail(sess, context.Canceled)
		default:
			metrics.PipelineQueueDepth.Set(0)
			w.logger.Info("Pipeline worker stopped")
			return
		}
	}
}
