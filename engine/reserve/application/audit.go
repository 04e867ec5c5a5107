package application

import (
	"context"
	"log"
	"time"

	"reservation-engine/engine/reserve/domain"
)

// AuditService é a reconciliação periódica: para cada pool compara o
// contador vivo do store com o valor derivado do ledger
// (capacidade − Σ quantidade de reservas Pending+Confirmed).
//
// Divergência vira AuditFinding no sink de alertas, com tolerância zero.
// O auditor NUNCA corrige o contador: correção automática mascararia um bug
// real de protocolo e mudaria as garantias em silêncio.
type AuditService struct {
	store  domain.Store
	ledger domain.Ledger
	sink   domain.AuditSink
	pools  []domain.Pool

	every time.Duration
	now   func() time.Time
	logf  func(format string, args ...any)
}

type AuditOption func(*AuditService)

// WithAuditEvery define o intervalo entre rodadas.
func WithAuditEvery(d time.Duration) AuditOption {
	return func(s *AuditService) { s.every = d }
}

// WithAuditClock injeta o relógio (para testes).
func WithAuditClock(now func() time.Time) AuditOption {
	return func(s *AuditService) { s.now = now }
}

// WithAuditLogf troca o destino dos logs do auditor.
func WithAuditLogf(fn func(format string, args ...any)) AuditOption {
	return func(s *AuditService) { s.logf = fn }
}

func NewAuditService(store domain.Store, ledger domain.Ledger, sink domain.AuditSink, pools []domain.Pool, opts ...AuditOption) *AuditService {
	s := &AuditService{
		store:  store,
		ledger: ledger,
		sink:   sink,
		pools:  pools,
		every:  time.Minute,
		now:    time.Now,
		logf:   log.Printf,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run roda rodadas no intervalo configurado, independente do tráfego.
func (s *AuditService) Run(ctx context.Context) error {
	t := time.NewTicker(s.every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.CheckOnce(ctx)
		}
	}
}

// CheckOnce reconcilia todos os pools uma vez. Falha de leitura de um pool
// não interrompe os demais.
func (s *AuditService) CheckOnce(ctx context.Context) {
	for _, pool := range s.pools {
		active, err := s.ledger.ActiveQuantity(ctx, pool.ID)
		if err != nil {
			s.logf("audit: pool %s: ledger read: %v", pool.ID, err)
			continue
		}
		observed, err := s.store.ReadCounter(ctx, pool.ID)
		if err != nil {
			s.logf("audit: pool %s: counter read: %v", pool.ID, err)
			continue
		}

		expected := pool.Capacity - active
		if expected == observed {
			continue
		}

		f := domain.AuditFinding{
			PoolID:          pool.ID,
			ObservedCounter: observed,
			ExpectedCounter: expected,
			Delta:           expected - observed,
			DetectedAt:      s.now(),
		}
		if err := s.sink.Finding(ctx, f); err != nil {
			s.logf("audit: pool %s: sink: %v", pool.ID, err)
		}
	}
}
