// Package queue hands dispatch jobs off the request path, either to an
// in-process worker pool or to a Pub/Sub topic.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samuelzanatto/petapp-notification-service/internal/pipeline"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

var (
	// ErrQueueFull is returned instead of blocking the caller.
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrQueueClosed is returned after Close.
	ErrQueueClosed = errors.New("dispatch queue is closed")
)

const (
	DefaultWorkers = 4
	DefaultBuffer  = 256
)

// LocalQueue runs jobs on a fixed pool of goroutines fed by a buffered channel.
type LocalQueue struct {
	jobs   chan dispatch.Job
	handle pipeline.JobHandler
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewLocalQueue starts the workers immediately.
func NewLocalQueue(workers, buffer int, handle pipeline.JobHandler, logger *slog.Logger) *LocalQueue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &LocalQueue{
		jobs:   make(chan dispatch.Job, buffer),
		handle: handle,
		logger: logger.With("component", "LocalQueue"),
		ctx:    ctx,
		cancel: cancel,
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker(i)
	}
	return q
}

// Enqueue never blocks: a full buffer returns ErrQueueFull.
func (q *LocalQueue) Enqueue(_ context.Context, job dispatch.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("%w: job %s dropped", ErrQueueFull, job.ID)
	}
}

// Close stops accepting jobs and waits for the buffered ones to drain. If ctx
// expires first, in-flight jobs are cancelled.
func (q *LocalQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return fmt.Errorf("dispatch queue drain interrupted: %w", ctx.Err())
	}
}

func (q *LocalQueue) worker(id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		if err := q.handle(q.ctx, job); err != nil {
			// No redelivery in-process; the handler has already logged.
			q.logger.Debug("Job failed", "worker", id, "job_id", job.ID, "err", err)
		}
	}
}
