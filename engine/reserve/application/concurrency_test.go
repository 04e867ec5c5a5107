package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reservation-engine/engine/reserve/domain"
	"reservation-engine/engine/reserve/infra"
)

// Propriedade central: com capacidade C e N>>C callers concorrentes pedindo
// 1 unidade cada, exatamente C conseguem e o contador termina em zero,
// qualquer que seja a intercalação.
func TestReserve_NoOversellingUnderContention(t *testing.T) {
	const (
		capacity = 100
		callers  = 1000
	)

	store := infra.NewMemoryStore()
	ledger := infra.NewMemoryLedger()
	if err := store.InitCounter(context.Background(), "p", capacity); err != nil {
		t.Fatalf("init counter: %v", err)
	}
	svc := NewReservationService(store, ledger, WithTTL(time.Minute), WithLogf(discardLogf))

	var ok, insufficient, other atomic.Int64
	var wg sync.WaitGroup
	wg.Add(callers)

	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), domain.ReserveRequest{
				PoolID:   "p",
				HolderID: fmt.Sprintf("holder-%d", i),
				Quantity: 1,
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient.Add(1)
			default:
				other.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := ok.Load(); got != capacity {
		t.Fatalf("expected exactly %d successful reservations, got %d", capacity, got)
	}
	if got := insufficient.Load(); got != callers-capacity {
		t.Fatalf("expected %d InsufficientStock, got %d", callers-capacity, got)
	}
	if got := other.Load(); got != 0 {
		t.Fatalf("expected no unexpected errors, got %d", got)
	}

	v, _ := store.ReadCounter(context.Background(), "p")
	if v != 0 {
		t.Fatalf("expected final counter 0, got %d", v)
	}

	active, _ := ledger.ActiveQuantity(context.Background(), "p")
	if active != capacity {
		t.Fatalf("expected %d active units in ledger, got %d", capacity, active)
	}
}

// O mesmo holder disparando duas reservas concorrentes para o mesmo pool:
// exatamente uma passa, a outra recebe DuplicateReservation.
func TestReserve_IdempotentReceiverUnderRace(t *testing.T) {
	store := infra.NewMemoryStore()
	if err := store.InitCounter(context.Background(), "p", 10); err != nil {
		t.Fatalf("init counter: %v", err)
	}
	svc := NewReservationService(store, infra.NewMemoryLedger(), WithTTL(time.Minute), WithLogf(discardLogf))

	var ok, dup atomic.Int64
	var wg sync.WaitGroup
	wg.Add(2)

	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), domain.ReserveRequest{PoolID: "p", HolderID: "h", Quantity: 1})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrDuplicateReservation):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || dup.Load() != 1 {
		t.Fatalf("expected 1 success and 1 duplicate, got ok=%d dup=%d", ok.Load(), dup.Load())
	}

	v, _ := store.ReadCounter(context.Background(), "p")
	if v != 9 {
		t.Fatalf("expected counter 9, got %d", v)
	}
}
