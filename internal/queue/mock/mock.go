// Package mock provides an in-memory [queue.Queue] for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/lexia-ai/lexia/internal/queue"
)

// Compile-time interface check.
var _ queue.Queue = (*Queue)(nil)

// Queue is a channel-backed in-memory queue.
//
// Knobs and recorded calls are exported so tests can script behaviour and
// assert on usage afterwards.
type Queue struct {
	// EnqueueErr, when set, is returned by every Enqueue call.
	EnqueueErr error

	mu       sync.Mutex
	tasks    chan *queue.Task
	revoked  map[string]bool
	enqueued []queue.Task
	nextID   int
	closed   bool
}

// New creates a mock queue with room for 64 buffered tasks.
func New() *Queue {
	return &Queue{
		tasks:   make(chan *queue.Task, 64),
		revoked: make(map[string]bool),
	}
}

// Enqueue implements [queue.Queue].
func (q *Queue) Enqueue(_ context.Context, task *queue.Task) (string, error) {
	if q.EnqueueErr != nil {
		return "", q.EnqueueErr
	}
	q.mu.Lock()
	if task.ID == "" {
		q.nextID++
		task.ID = fmt.Sprintf("task-%d", q.nextID)
	}
	q.enqueued = append(q.enqueued, *task)
	q.mu.Unlock()

	q.tasks <- task
	return task.ID, nil
}

// Dequeue implements [queue.Queue].
func (q *Queue) Dequeue(ctx context.Context) (*queue.Task, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case task, ok := <-q.tasks:
			if !ok {
				return nil, queue.ErrClosed
			}
			q.mu.Lock()
			dropped := q.revoked[task.ID]
			q.mu.Unlock()
			if dropped {
				continue
			}
			return task, nil
		}
	}
}

// Revoke implements [queue.Queue].
func (q *Queue) Revoke(_ context.Context, handle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.revoked[handle] = true
	return nil
}

// Close ends all pending and future Dequeue calls with [queue.ErrClosed].
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
}

// Enqueued returns a copy of every task passed to Enqueue, in order.
func (q *Queue) Enqueued() []queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queue.Task, len(q.enqueued))
	copy(out, q.enqueued)
	return out
}
