package response_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/response"
	"go.uber.org/zap"
)

func TestDispatcher_ExecutesEnqueuedTasks(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[uuid.UUID]int)
	done := make(chan struct{}, 3)

	executor := func(ctx context.Context, eventID uuid.UUID) error {
		mu.Lock()
		seen[eventID]++
		mu.Unlock()
		done <- struct{}{}
		return nil
	}

	d := response.NewDispatcher(16, 2, executor, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		if !d.Enqueue(id) {
			t.Fatalf("Expected enqueue to succeed for %s", id)
		}
	}

	for i := 0; i < len(ids); i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for tasks to execute")
		}
	}

	cancel()
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		if seen[id] != 1 {
			t.Errorf("Expected event %s executed once, got %d", id, seen[id])
		}
	}
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	executor := func(ctx context.Context, eventID uuid.UUID) error { return nil }

	// Never started: nothing drains the queue.
	d := response.NewDispatcher(2, 1, executor, zap.NewNop())

	if !d.Enqueue(uuid.New()) || !d.Enqueue(uuid.New()) {
		t.Fatal("Expected first two enqueues to succeed")
	}
	if d.Enqueue(uuid.New()) {
		t.Error("Expected enqueue on a full queue to drop the task")
	}
}
