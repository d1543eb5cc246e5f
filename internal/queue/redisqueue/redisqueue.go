// Package redisqueue implements [queue.Queue] on a Redis list.
//
// Enqueue is LPUSH, Dequeue is BRPOP, so tasks are FIFO across any number of
// producers and consumers. Revocation writes a short-lived tombstone key;
// a consumer that pops a revoked handle drops the task and keeps waiting.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lexia-ai/lexia/internal/queue"
)

// popTimeout bounds each BRPOP so context cancellation is observed promptly.
// Dequeue re-issues the pop until the context ends.
const popTimeout = 2 * time.Second

// revokeTTL bounds tombstone lifetime. A task older than this has long been
// consumed or lost, so the tombstone no longer serves anything.
const revokeTTL = 24 * time.Hour

// Compile-time interface check.
var _ queue.Queue = (*Queue)(nil)

// Queue is a Redis-backed [queue.Queue].
type Queue struct {
	client redis.UniversalClient
	name   string
	log    *slog.Logger
}

// New creates a Queue on the list with the given name, e.g. "lexia:tasks".
func New(client redis.UniversalClient, name string, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{client: client, name: name, log: log}
}

// Enqueue implements [queue.Queue].
func (q *Queue) Enqueue(ctx context.Context, task *queue.Task) (string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("redisqueue: marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, payload).Err(); err != nil {
		return "", fmt.Errorf("redisqueue: enqueue: %w", err)
	}
	return task.ID, nil
}

// Dequeue implements [queue.Queue].
func (q *Queue) Dequeue(ctx context.Context) (*queue.Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := q.client.BRPop(ctx, popTimeout, q.name).Result()
		if errors.Is(err, redis.Nil) {
			continue // timed out empty, poll again
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("redisqueue: dequeue: %w", err)
		}

		// BRPop returns [key, value].
		var task queue.Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			q.log.Error("dropping undecodable task", "error", err)
			continue
		}

		revoked, err := q.client.GetDel(ctx, q.tombstone(task.ID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redisqueue: tombstone check: %w", err)
		}
		if revoked != "" {
			q.log.Info("dropping revoked task", "task_id", task.ID, "job_id", task.JobID)
			continue
		}
		return &task, nil
	}
}

// Revoke implements [queue.Queue].
func (q *Queue) Revoke(ctx context.Context, handle string) error {
	if err := q.client.Set(ctx, q.tombstone(handle), "1", revokeTTL).Err(); err != nil {
		return fmt.Errorf("redisqueue: revoke: %w", err)
	}
	return nil
}

func (q *Queue) tombstone(handle string) string {
	return q.name + ":revoked:" + handle
}
