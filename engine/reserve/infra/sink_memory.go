package infra

import (
	"context"
	"log"
	"sync"

	"reservation-engine/engine/reserve/domain"
)

// MemoryEventSink acumula eventos em memória. Útil para testes.
type MemoryEventSink struct {
	mu        sync.Mutex
	created   []domain.ReservationCreated
	confirmed []domain.ReservationConfirmed
	expired   []domain.ReservationExpired
}

func NewMemoryEventSink() *MemoryEventSink {
	return &MemoryEventSink{}
}

func (s *MemoryEventSink) ReservationCreated(_ context.Context, ev domain.ReservationCreated) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, ev)
	return nil
}

func (s *MemoryEventSink) ReservationConfirmed(_ context.Context, ev domain.ReservationConfirmed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = append(s.confirmed, ev)
	return nil
}

func (s *MemoryEventSink) ReservationExpired(_ context.Context, ev domain.ReservationExpired) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = append(s.expired, ev)
	return nil
}

func (s *MemoryEventSink) Created() []domain.ReservationCreated {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReservationCreated, len(s.created))
	copy(out, s.created)
	return out
}

func (s *MemoryEventSink) Confirmed() []domain.ReservationConfirmed {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReservationConfirmed, len(s.confirmed))
	copy(out, s.confirmed)
	return out
}

func (s *MemoryEventSink) Expired() []domain.ReservationExpired {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReservationExpired, len(s.expired))
	copy(out, s.expired)
	return out
}

// LogAuditSink escreve findings no log do processo. É o sink padrão quando
// não há coletor externo configurado; drift nunca pode passar em silêncio.
type LogAuditSink struct{}

func (LogAuditSink) Finding(_ context.Context, f domain.AuditFinding) error {
	log.Printf("AUDIT drift pool=%s observed=%d expected=%d delta=%d detectedAt=%s",
		f.PoolID, f.ObservedCounter, f.ExpectedCounter, f.Delta, f.DetectedAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}

// MemoryAuditSink acumula findings em memória. Útil para testes.
type MemoryAuditSink struct {
	mu       sync.Mutex
	findings []domain.AuditFinding
}

func NewMemoryAuditSink() *MemoryAuditSink {
	return &MemoryAuditSink{}
}

func (s *MemoryAuditSink) Finding(_ context.Context, f domain.AuditFinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings = append(s.findings, f)
	return nil
}

func (s *MemoryAuditSink) Findings() []domain.AuditFinding {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditFinding, len(s.findings))
	copy(out, s.findings)
	return out
}
