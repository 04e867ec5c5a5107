package infra

import (
	"context"
	"sync"

	"reservation-engine/engine/reserve/domain"
)

// MemoryLedger é uma implementação em memória de domain.Ledger.
// Útil para testes e desenvolvimento.
type MemoryLedger struct {
	mu      sync.Mutex
	byID    map[string]domain.Reservation
	lastFor map[string]string // "pool:holder" -> reservationID
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		byID:    make(map[string]domain.Reservation),
		lastFor: make(map[string]string),
	}
}

func holderIndex(poolID, holderID string) string {
	return poolID + ":" + holderID
}

func (l *MemoryLedger) Append(_ context.Context, res domain.Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[res.ID] = res
	l.lastFor[holderIndex(res.PoolID, res.HolderID)] = res.ID
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, reservationID string) (domain.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.byID[reservationID]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return res, nil
}

func (l *MemoryLedger) LastFor(_ context.Context, poolID, holderID string) (domain.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.lastFor[holderIndex(poolID, holderID)]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	res, ok := l.byID[id]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return res, nil
}

// cas transiciona Pending->to sob o lock: é a guarda de idempotência entre o
// caminho de confirmação e o reator de expiração.
func (l *MemoryLedger) cas(reservationID string, to domain.Status) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.byID[reservationID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if res.Status != domain.StatusPending {
		return false, nil
	}
	res.Status = to
	l.byID[reservationID] = res
	return true, nil
}

func (l *MemoryLedger) MarkConfirmed(_ context.Context, reservationID string) (bool, error) {
	return l.cas(reservationID, domain.StatusConfirmed)
}

func (l *MemoryLedger) MarkExpired(_ context.Context, reservationID string) (bool, error) {
	return l.cas(reservationID, domain.StatusExpired)
}

func (l *MemoryLedger) MarkRolledBack(_ context.Context, reservationID string) (bool, error) {
	return l.cas(reservationID, domain.StatusRolledBack)
}

func (l *MemoryLedger) ActiveQuantity(_ context.Context, poolID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for _, res := range l.byID {
		if res.PoolID != poolID {
			continue
		}
		if res.Status == domain.StatusPending || res.Status == domain.StatusConfirmed {
			total += res.Quantity
		}
	}
	return total, nil
}
