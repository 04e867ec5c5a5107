package application

import (
	"context"
	"errors"
	"log"
	"time"

	"reservation-engine/engine/reserve/domain"

	"golang.org/x/time/rate"
)

// ReplayService drena a fila de admissão pelo protocolo normal de reserva
// quando a dependência volta. O replay é throttled: a fila inteira voltando
// de uma vez recriaria exatamente o pico que derrubou o store.
//
// Requisições reprocessadas ainda podem falhar com InsufficientStock se o
// estoque acabou nesse meio tempo; isso é resultado normal, só vai pro log.
type ReplayService struct {
	queue        domain.AdmissionQueue
	reservations *ReservationService

	limiter *rate.Limiter
	every   time.Duration
	batch   int
	logf    func(format string, args ...any)
}

type ReplayOption func(*ReplayService)

// WithReplayRate limita o ritmo do replay (requisições por segundo).
func WithReplayRate(rps float64, burst int) ReplayOption {
	return func(s *ReplayService) { s.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithReplayEvery define o intervalo entre ciclos de drain.
func WithReplayEvery(d time.Duration) ReplayOption {
	return func(s *ReplayService) { s.every = d }
}

// WithReplayBatch limita quantos itens um ciclo processa (0 = sem limite).
func WithReplayBatch(n int) ReplayOption {
	return func(s *ReplayService) { s.batch = n }
}

// WithReplayLogf troca o destino dos logs do replay.
func WithReplayLogf(fn func(format string, args ...any)) ReplayOption {
	return func(s *ReplayService) { s.logf = fn }
}

func NewReplayService(queue domain.AdmissionQueue, reservations *ReservationService, opts ...ReplayOption) *ReplayService {
	s := &ReplayService{
		queue:        queue,
		reservations: reservations,
		limiter:      rate.NewLimiter(rate.Limit(50), 10),
		every:        5 * time.Second,
		logf:         log.Printf,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run roda ciclos de drain até o ctx encerrar.
func (s *ReplayService) Run(ctx context.Context) error {
	t := time.NewTicker(s.every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.DrainOnce(ctx); err != nil && ctx.Err() == nil {
				s.logf("replay: drain: %v", err)
			}
		}
	}
}

// DrainOnce processa a fila em ordem FIFO até esvaziar, atingir o batch ou
// a dependência cair de novo — nesse caso o item volta à FRENTE da fila e o
// ciclo termina (a ordem de chegada se preserva entre ciclos).
func (s *ReplayService) DrainOnce(ctx context.Context) error {
	for i := 0; s.batch <= 0 || i < s.batch; i++ {
		t, ok, err := s.queue.Dequeue(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := s.limiter.Wait(ctx); err != nil {
			// ctx encerrou no meio: devolve e sai.
			if rqErr := s.queue.Requeue(ctx, t); rqErr != nil {
				s.logf("replay: requeue ticket %s: %v", t.ID, rqErr)
			}
			return nil
		}

		_, err = s.reservations.Reserve(ctx, t.Request)
		switch {
		case err == nil:
			s.logf("replay: ticket %s reserved pool=%s holder=%s", t.ID, t.Request.PoolID, t.Request.HolderID)
		case isDegraded(err):
			// dependência ainda fora: devolve o item e encerra o ciclo.
			if rqErr := s.queue.Requeue(context.WithoutCancel(ctx), t); rqErr != nil {
				s.logf("replay: requeue ticket %s: %v", t.ID, rqErr)
			}
			return nil
		case errors.Is(err, domain.ErrInsufficientStock),
			errors.Is(err, domain.ErrDuplicateReservation),
			errors.Is(err, domain.ErrValidation):
			// resultado normal de negócio na hora do replay.
			s.logf("replay: ticket %s rejected: %v", t.ID, err)
		default:
			s.logf("replay: ticket %s failed: %v", t.ID, err)
		}
	}
	return nil
}
