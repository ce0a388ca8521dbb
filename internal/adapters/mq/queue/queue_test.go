package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	e1 := Entry{At: time.Now(), TotalPower: 150_000, LandmarkCount: 33}
	if !q.Enqueue(ctx, e1) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	entryChan := q.Dequeue(ctx)
	got := <-entryChan
	if got.TotalPower != 150_000 {
		t.Errorf("expected total 150000, got %d", got.TotalPower)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_DropsWhenFull(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2), WithBufferSize(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, Entry{TotalPower: 1}) {
		t.Error("first enqueue should succeed")
	}
	if !q.Enqueue(ctx, Entry{TotalPower: 2}) {
		t.Error("second enqueue should succeed")
	}
	if q.Enqueue(ctx, Entry{TotalPower: 3}) {
		t.Error("expected enqueue to drop when at capacity")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	if q.IsClosed() {
		t.Error("new queue should not be closed")
	}
	if err := q.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if !q.IsClosed() {
		t.Error("queue should report closed")
	}
	if err := q.Close(); err != nil {
		t.Errorf("double close failed: %v", err)
	}
	if q.Enqueue(ctx, Entry{}) {
		t.Error("enqueue after close should fail")
	}

	// Dequeue channel must be closed once drained.
	select {
	case _, ok := <-q.Dequeue(ctx):
		if ok {
			t.Error("expected closed dequeue channel")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel did not close")
	}
}
