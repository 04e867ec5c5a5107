package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"reservation-engine/engine/reserve/domain"
	"reservation-engine/engine/reserve/infra"
)

// flakyStore falha todas as operações enquanto `down` estiver ligado.
type flakyStore struct {
	*infra.MemoryStore
	down atomic.Bool
}

func (s *flakyStore) SetMarker(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.down.Load() {
		return domain.ErrStoreUnavailable
	}
	return s.MemoryStore.SetMarker(ctx, key, value, ttl)
}

func TestReplay_RequeuesAtFrontWhileDependencyIsDown(t *testing.T) {
	store := &flakyStore{MemoryStore: infra.NewMemoryStore()}
	_ = store.InitCounter(context.Background(), "p", 10)
	svc := NewReservationService(store, infra.NewMemoryLedger(), WithTTL(time.Minute), WithLogf(discardLogf))

	queue := infra.NewMemoryQueue()
	for _, holder := range []string{"a", "b", "c"} {
		if _, err := queue.Enqueue(context.Background(), domain.ReserveRequest{PoolID: "p", HolderID: holder, Quantity: 1}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	replay := NewReplayService(queue, svc, WithReplayLogf(discardLogf))

	store.down.Store(true)
	if err := replay.DrainOnce(context.Background()); err != nil {
		t.Fatalf("drain while down: %v", err)
	}

	// nada processado, nada perdido, ordem preservada.
	if n, _ := queue.Len(context.Background()); n != 3 {
		t.Fatalf("expected 3 tickets still queued, got %d", n)
	}
	first, ok, _ := queue.Dequeue(context.Background())
	if !ok || first.Request.HolderID != "a" {
		t.Fatalf("expected head of queue to still be holder a, got %+v", first)
	}
	if err := queue.Requeue(context.Background(), first); err != nil {
		t.Fatalf("requeue: %v", err)
	}
}

func TestReplay_DrainsThroughNormalProtocol(t *testing.T) {
	store := &flakyStore{MemoryStore: infra.NewMemoryStore()}
	_ = store.InitCounter(context.Background(), "p", 2)
	ledger := infra.NewMemoryLedger()
	svc := NewReservationService(store, ledger, WithTTL(time.Minute), WithLogf(discardLogf))

	queue := infra.NewMemoryQueue()
	for _, holder := range []string{"a", "b", "c"} {
		if _, err := queue.Enqueue(context.Background(), domain.ReserveRequest{PoolID: "p", HolderID: holder, Quantity: 1}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	replay := NewReplayService(queue, svc, WithReplayLogf(discardLogf))

	if err := replay.DrainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if n, _ := queue.Len(context.Background()); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}

	// capacidade 2 para 3 tickets: os dois primeiros (FIFO) reservam, o
	// terceiro falha com estoque insuficiente — resultado normal no replay.
	for _, holder := range []string{"a", "b"} {
		if _, err := ledger.LastFor(context.Background(), "p", holder); err != nil {
			t.Fatalf("expected reservation for holder %s: %v", holder, err)
		}
	}
	if _, err := ledger.LastFor(context.Background(), "p", "c"); err == nil {
		t.Fatalf("expected no reservation for holder c")
	}
	if v, _ := store.ReadCounter(context.Background(), "p"); v != 0 {
		t.Fatalf("expected counter 0, got %d", v)
	}
}
