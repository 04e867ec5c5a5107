package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"reservation-engine/engine/reserve/domain"
	"reservation-engine/engine/reserve/infra"
)

func seedLedger(t *testing.T, ledger *infra.MemoryLedger, pool string, pending, confirmed int) {
	t.Helper()
	now := time.Now()

	for i := 0; i < pending+confirmed; i++ {
		id := fmt.Sprintf("res-%d", i)
		res := domain.Reservation{
			ID:         id,
			PoolID:     pool,
			HolderID:   fmt.Sprintf("holder-%d", i),
			Quantity:   1,
			ReservedAt: now,
			ExpiresAt:  now.Add(time.Hour),
			Status:     domain.StatusPending,
		}
		if err := ledger.Append(context.Background(), res); err != nil {
			t.Fatalf("append: %v", err)
		}
		if i < confirmed {
			if _, err := ledger.MarkConfirmed(context.Background(), id); err != nil {
				t.Fatalf("confirm: %v", err)
			}
		}
	}
}

// Cenário da reconciliação: 30 Confirmed + 20 Pending sobre capacidade 100
// dá esperado 50; contador reportando 45 gera um finding com delta 5.
func TestAudit_DetectsDrift(t *testing.T) {
	store := infra.NewMemoryStore()
	ledger := infra.NewMemoryLedger()
	sink := infra.NewMemoryAuditSink()

	_ = store.InitCounter(context.Background(), "p", 100)
	if _, err := store.Decrement(context.Background(), "p", 55); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	seedLedger(t, ledger, "p", 20, 30)

	detected := time.Now()
	auditor := NewAuditService(store, ledger, sink, []domain.Pool{{ID: "p", Capacity: 100}},
		WithAuditClock(func() time.Time { return detected }),
		WithAuditLogf(discardLogf))

	auditor.CheckOnce(context.Background())

	findings := sink.Findings()
	if len(findings) != 1 {
		t.Fatalf("expected exactly 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.PoolID != "p" || f.ObservedCounter != 45 || f.ExpectedCounter != 50 || f.Delta != 5 {
		t.Fatalf("unexpected finding: %+v", f)
	}
	if !f.DetectedAt.Equal(detected) {
		t.Fatalf("unexpected DetectedAt: %s", f.DetectedAt)
	}

	// o auditor nunca corrige: o contador segue como estava.
	if v, _ := store.ReadCounter(context.Background(), "p"); v != 45 {
		t.Fatalf("expected counter untouched (45), got %d", v)
	}
}

func TestAudit_SilentWhenConsistent(t *testing.T) {
	store := infra.NewMemoryStore()
	ledger := infra.NewMemoryLedger()
	sink := infra.NewMemoryAuditSink()

	_ = store.InitCounter(context.Background(), "p", 100)
	if _, err := store.Decrement(context.Background(), "p", 50); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	seedLedger(t, ledger, "p", 20, 30)

	auditor := NewAuditService(store, ledger, sink, []domain.Pool{{ID: "p", Capacity: 100}},
		WithAuditLogf(discardLogf))
	auditor.CheckOnce(context.Background())

	if got := len(sink.Findings()); got != 0 {
		t.Fatalf("expected no findings, got %d", got)
	}
}
