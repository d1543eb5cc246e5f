package redisqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lexia-ai/lexia/internal/queue"
	"github.com/lexia-ai/lexia/internal/store"
)

func newQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "lexia:tasks", nil)
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	for _, jobID := range []string{"j1", "j2", "j3"} {
		if _, err := q.Enqueue(ctx, &queue.Task{
			JobID:    jobID,
			Type:     store.JobTypeTranscription,
			AudioURL: "https://cdn.example/a.wav",
		}); err != nil {
			t.Fatalf("Enqueue(%s): %v", jobID, err)
		}
	}

	for _, want := range []string{"j1", "j2", "j3"} {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if got.JobID != want {
			t.Errorf("Dequeue JobID = %q, want %q", got.JobID, want)
		}
	}
}

func TestEnqueueAssignsHandle(t *testing.T) {
	q := newQueue(t)

	task := &queue.Task{JobID: "j1", Type: store.JobTypeDiarization}
	handle, err := q.Enqueue(context.Background(), task)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if handle == "" {
		t.Fatal("Enqueue returned empty handle")
	}
	if task.ID != handle {
		t.Errorf("task.ID = %q, want handle %q", task.ID, handle)
	}

	got, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got.ID != handle {
		t.Errorf("dequeued ID = %q, want %q", got.ID, handle)
	}
}

func TestRevokedTaskIsDropped(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	revoked, err := q.Enqueue(ctx, &queue.Task{JobID: "j1", Type: store.JobTypeTranscription})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, &queue.Task{JobID: "j2", Type: store.JobTypeTranscription}); err != nil {
		t.Fatalf("Enqueue second: %v", err)
	}
	if err := q.Revoke(ctx, revoked); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got.JobID != "j2" {
		t.Errorf("Dequeue JobID = %q, want revoked j1 skipped and j2 returned", got.JobID)
	}
}

func TestDequeueHonoursContext(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := q.Dequeue(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dequeue err = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Dequeue blocked %v after cancellation", elapsed)
	}
}

func TestRevokeUnknownHandleIsNoop(t *testing.T) {
	q := newQueue(t)
	if err := q.Revoke(context.Background(), "never-enqueued"); err != nil {
		t.Errorf("Revoke unknown handle: %v", err)
	}
}
