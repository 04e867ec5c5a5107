package application

import (
	"context"
	"errors"
	"log"
	"time"

	"reservation-engine/engine/reserve/domain"
)

// ExpiryReactor consome o fluxo de expirações de marker e devolve ao pool a
// quantidade de reservas Pending não confirmadas, no máximo uma vez cada.
//
// O marker já não existe quando a notificação chega; a chave embute
// (poolId, holderId) e o registro durável no ledger fornece a quantidade.
// A guarda de idempotência é o check-and-set Pending->Expired no ledger:
// redelivery da mesma expiração encontra o status já Expired e não
// incrementa de novo — double-release corromperia o contador.
type ExpiryReactor struct {
	feed   domain.ExpiryFeed
	ledger domain.Ledger
	store  domain.Store
	events domain.EventSink

	resubscribeWait time.Duration
	now             func() time.Time
	logf            func(format string, args ...any)
}

type ReactorOption func(*ExpiryReactor)

// WithReactorEventSink liga a publicação de ReservationExpired.
func WithReactorEventSink(sink domain.EventSink) ReactorOption {
	return func(r *ExpiryReactor) { r.events = sink }
}

// WithResubscribeWait define a espera antes de reassinar um feed que caiu.
func WithResubscribeWait(d time.Duration) ReactorOption {
	return func(r *ExpiryReactor) { r.resubscribeWait = d }
}

// WithReactorClock injeta o relógio (para testes).
func WithReactorClock(now func() time.Time) ReactorOption {
	return func(r *ExpiryReactor) { r.now = now }
}

// WithReactorLogf troca o destino dos logs do reator.
func WithReactorLogf(fn func(format string, args ...any)) ReactorOption {
	return func(r *ExpiryReactor) { r.logf = fn }
}

func NewExpiryReactor(feed domain.ExpiryFeed, ledger domain.Ledger, store domain.Store, opts ...ReactorOption) *ExpiryReactor {
	r := &ExpiryReactor{
		feed:            feed,
		ledger:          ledger,
		store:           store,
		resubscribeWait: time.Second,
		now:             time.Now,
		logf:            log.Printf,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consome o feed até o ctx encerrar, reassinando quando o fluxo cai.
// Nunca retorna erro fatal: toda falha individual vira log e a reconciliação
// cobre o que escapar.
func (r *ExpiryReactor) Run(ctx context.Context) error {
	for {
		ch, err := r.feed.Subscribe(ctx)
		if err != nil {
			r.logf("expiry reactor: subscribe: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.resubscribeWait):
				continue
			}
		}

		for ev := range ch {
			r.handle(ctx, ev)
		}
		if ctx.Err() != nil {
			return nil
		}
		r.logf("expiry reactor: feed closed, resubscribing")
	}
}

func (r *ExpiryReactor) handle(ctx context.Context, ev domain.ExpiredMarker) {
	poolID, holderID, ok := domain.ParseMarkerKey(ev.Key)
	if !ok {
		// expiração de chave alheia no mesmo banco; não é nossa.
		return
	}

	res, err := r.ledger.LastFor(ctx, poolID, holderID)
	if errors.Is(err, domain.ErrNotFound) {
		// marker sem registro durável: a queda aconteceu antes do Append.
		// O estoque ficou sub-contado por uma janela limitada; o auditor aponta.
		r.logf("expiry reactor: no ledger record for %s", ev.Key)
		return
	}
	if err != nil {
		r.logf("expiry reactor: lookup %s: %v", ev.Key, err)
		return
	}

	if res.Status != domain.StatusPending {
		// já confirmada, já expirada (redelivery) ou já compensada.
		return
	}

	if r.now().Before(res.ExpiresAt) {
		// notificação velha de um marker anterior do mesmo (pool, holder):
		// a reserva corrente ainda está na janela e não pode ser liberada.
		return
	}

	swapped, err := r.ledger.MarkExpired(ctx, res.ID)
	if err != nil {
		r.logf("expiry reactor: mark expired %s: %v", res.ID, err)
		return
	}
	if !swapped {
		// outro caminho ganhou a corrida (confirmação ou redelivery).
		return
	}

	if _, err := r.store.Increment(ctx, poolID, res.Quantity); err != nil {
		// status já virou Expired mas o estoque não voltou: drift que a
		// reconciliação detecta. Nunca fatal.
		r.logf("expiry reactor: release %d to pool %s failed: %v", res.Quantity, poolID, err)
		return
	}

	r.logf("expiry reactor: reservation %s expired, released %d to pool %s", res.ID, res.Quantity, poolID)

	if r.events != nil {
		if err := r.events.ReservationExpired(ctx, domain.ReservationExpired{
			ReservationID: res.ID,
			PoolID:        poolID,
			Quantity:      res.Quantity,
		}); err != nil {
			r.logf("expiry reactor: emit expired %s: %v", res.ID, err)
		}
	}
}
