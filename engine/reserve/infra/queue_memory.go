package infra

import (
	"context"
	"sync"

	"reservation-engine/engine/reserve/domain"

	"github.com/rs/xid"
)

// MemoryQueue é uma fila de admissão FIFO em memória.
// Útil para testes e desenvolvimento; não sobrevive a restart.
type MemoryQueue struct {
	mu    sync.Mutex
	items []domain.Ticket
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, req domain.ReserveRequest) (string, error) {
	t := domain.Ticket{ID: xid.New().String(), Request: req}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, t)
	return t.ID, nil
}

func (q *MemoryQueue) Dequeue(_ context.Context) (domain.Ticket, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return domain.Ticket{}, false, nil
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true, nil
}

func (q *MemoryQueue) Requeue(_ context.Context, t domain.Ticket) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]domain.Ticket{t}, q.items...)
	return nil
}

func (q *MemoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}
