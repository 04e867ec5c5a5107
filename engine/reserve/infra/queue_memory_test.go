package infra

import (
	"context"
	"testing"

	"reservation-engine/engine/reserve/domain"
)

func TestMemoryQueue_FIFOAndRequeue(t *testing.T) {
	q := NewMemoryQueue()

	ids := make(map[string]bool)
	for _, holder := range []string{"a", "b", "c"} {
		id, err := q.Enqueue(context.Background(), domain.ReserveRequest{PoolID: "p", HolderID: holder, Quantity: 1})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		if id == "" || ids[id] {
			t.Fatalf("expected unique non-empty ticket id, got %q", id)
		}
		ids[id] = true
	}

	if n, _ := q.Len(context.Background()); n != 3 {
		t.Fatalf("expected len 3, got %d", n)
	}

	first, ok, err := q.Dequeue(context.Background())
	if err != nil || !ok || first.Request.HolderID != "a" {
		t.Fatalf("expected holder a first, got %+v (%v)", first, err)
	}

	// devolver à frente preserva a ordem de chegada.
	if err := q.Requeue(context.Background(), first); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	for _, want := range []string{"a", "b", "c"} {
		got, ok, err := q.Dequeue(context.Background())
		if err != nil || !ok || got.Request.HolderID != want {
			t.Fatalf("expected holder %s, got %+v (%v)", want, got, err)
		}
	}

	if _, ok, _ := q.Dequeue(context.Background()); ok {
		t.Fatalf("expected empty queue")
	}
}
