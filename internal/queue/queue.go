package queue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chimera/internal/logging"
)

// Queue is the durable, priority-ordered job queue. Persistence is the
// source of truth; the ready heap only orders jobs already on disk.
type Queue struct {
	store  *Store
	logger *slog.Logger

	mu     sync.Mutex
	ready  readyHeap
	seq    uint64
	notify chan struct{}
}

// New wraps a Store with the in-memory ready structure.
func New(store *Store, logger *slog.Logger) *Queue {
	return &Queue{
		store:  store,
		logger: logging.NewComponentLogger(logger, "queue"),
		notify: make(chan struct{}, 1),
	}
}

// Store exposes the underlying persistence layer for maintenance operations.
func (q *Queue) Store() *Store {
	return q.store
}

// Enqueue persists the job durably, then makes it visible to the consumer.
func (q *Queue) Enqueue(ctx context.Context, job *Job) (string, error) {
	if job == nil {
		return "", errors.New("job is nil")
	}
	if err := q.store.Insert(ctx, job); err != nil {
		return "", err
	}

	q.mu.Lock()
	q.seq++
	heap.Push(&q.ready, readyJob{job: job, seq: q.seq})
	q.mu.Unlock()
	q.wake()

	q.logger.Debug("job enqueued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)),
		logging.Int("priority", int(job.Priority)),
	)
	return job.ID, nil
}

// Dequeue removes and returns the most urgent pending job, waiting up to
// timeout for one to arrive. A nil job with a nil error means no work is
// available right now; that is not an error condition.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if q.ready.Len() > 0 {
			entry := heap.Pop(&q.ready).(readyJob)
			q.mu.Unlock()
			return entry.job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

// Requeue puts an already-persisted job back into the ready heap without
// touching storage, for when a dequeued job could not be started.
func (q *Queue) Requeue(job *Job) {
	if job == nil {
		return
	}
	q.mu.Lock()
	q.seq++
	heap.Push(&q.ready, readyJob{job: job, seq: q.seq})
	q.mu.Unlock()
	q.wake()
}

// UpdateStatus applies a one-way status transition for a job.
func (q *Queue) UpdateStatus(ctx context.Context, id string, status Status, errorMessage string) error {
	return q.store.UpdateStatus(ctx, id, status, errorMessage)
}

// LoadPendingJobs rebuilds the ready heap from durable storage at startup.
// Jobs stuck in running state from a crashed worker are reset to pending
// first; that reset must never run while a worker is live, so only the
// startup path calls this. Any jobs already in the heap are discarded;
// storage wins.
func (q *Queue) LoadPendingJobs(ctx context.Context) (int, error) {
	reset, err := q.store.ResetStuckRunning(ctx)
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		q.logger.Warn("reset stuck running jobs to pending",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "queue_reset_stuck"),
		)
	}
	return q.rebuildReady(ctx)
}

// rebuildReady replaces the heap with the pending rows on disk. A job the
// worker currently holds is running on disk, so it is never re-added here.
func (q *Queue) rebuildReady(ctx context.Context) (int, error) {
	pending, err := q.store.PendingJobs(ctx)
	if err != nil {
		return 0, err
	}

	q.mu.Lock()
	q.ready = q.ready[:0]
	for _, job := range pending {
		q.seq++
		heap.Push(&q.ready, readyJob{job: job, seq: q.seq})
	}
	q.mu.Unlock()
	if len(pending) > 0 {
		q.wake()
	}

	q.logger.Info("pending jobs rehydrated", logging.Int("count", len(pending)))
	return len(pending), nil
}

// RetryFailed moves failed jobs back to pending and into the ready heap.
// Safe while the worker is live: only failed rows are touched.
func (q *Queue) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	updated, err := q.store.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if updated == 0 {
		return 0, nil
	}
	// Rebuild from pending rows rather than track which rows the UPDATE
	// touched; an in-flight job stays running on disk and is unaffected.
	if _, err := q.rebuildReady(ctx); err != nil {
		return updated, fmt.Errorf("rehydrate after retry: %w", err)
	}
	return updated, nil
}

// Stats returns aggregate queue counts.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	return q.store.Stats(ctx)
}

// CleanupOldJobs removes terminal jobs older than age.
func (q *Queue) CleanupOldJobs(ctx context.Context, age time.Duration) (int64, error) {
	return q.store.CleanupOldJobs(ctx, age)
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
