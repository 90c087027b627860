package response

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Executor runs the automatic response for a tamper event.
type Executor func(ctx context.Context, eventID uuid.UUID) error

// Dispatcher decouples automatic response execution from the detection path:
// detection enqueues the event id and returns immediately, a fixed pool of
// workers drains the queue. Responses are best effort, a full queue drops
// the task rather than block the caller, and no task is retried.
type Dispatcher struct {
	tasks    chan uuid.UUID
	executor Executor
	workers  int
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher with a bounded task queue.
func NewDispatcher(queueSize, workers int, executor Executor, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{
		tasks:    make(chan uuid.UUID, queueSize),
		executor: executor,
		workers:  workers,
		logger:   logger,
	}
}

// Enqueue hands an event to the worker pool. Returns false when the queue is
// full and the task was dropped.
func (d *Dispatcher) Enqueue(eventID uuid.UUID) bool {
	select {
	case d.tasks <- eventID:
		return true
	default:
		d.logger.Warn("response queue full, dropping automatic response",
			zap.String("event_id", eventID.String()))
		return false
	}
}

// Start launches the worker pool. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("starting response workers", zap.Int("workers", d.workers))

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case eventID, ok := <-d.tasks:
					if !ok {
						return
					}
					if err := d.executor(ctx, eventID); err != nil {
						d.logger.Error("automatic response failed",
							zap.Error(err),
							zap.String("event_id", eventID.String()),
						)
					}
				}
			}
		}()
	}
}

// Wait blocks until all workers have exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
