package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"reservation-engine/engine/reserve/domain"

	"github.com/google/uuid"
)

// ReservationService implementa o protocolo de reserva: retenção atômica com
// rollback compensatório, no máximo uma reserva ativa por (holder, pool).
//
// A ordem é deliberada:
//
//  1. marker SET-if-absent — é a guarda de idempotência; se já existe,
//     falha com DuplicateReservation sem tocar o contador
//  2. decremento — condicional quando o store suporta (preferido, sem
//     janela de negativo); senão decrementa e compensa síncrono se negativo
//  3. registro Pending no ledger durável (backstop para expiração/queda)
//  4. evento Reserved assíncrono, fire-and-forget
//
// Passo 1 + passo 3 formam o saga "reserva agora, persiste depois": se o
// passo 3 nunca completar, a compensação é a expiração do marker por TTL.
type ReservationService struct {
	store  domain.Store
	cond   domain.ConditionalDecrementer // nil quando o store não suporta
	ledger domain.Ledger
	events domain.EventSink

	ttl   time.Duration
	now   func() time.Time
	newID func() string
	logf  func(format string, args ...any)
}

type ServiceOption func(*ReservationService)

// WithTTL define a janela da reserva (validade do marker).
func WithTTL(d time.Duration) ServiceOption {
	return func(s *ReservationService) { s.ttl = d }
}

// WithEventSink liga a publicação de eventos para o materializador externo.
func WithEventSink(sink domain.EventSink) ServiceOption {
	return func(s *ReservationService) { s.events = sink }
}

// WithClock injeta o relógio (para testes).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ReservationService) { s.now = now }
}

// WithIDFunc injeta o gerador de ids (para testes).
func WithIDFunc(fn func() string) ServiceOption {
	return func(s *ReservationService) { s.newID = fn }
}

// WithLogf troca o destino dos logs best-effort do serviço.
func WithLogf(fn func(format string, args ...any)) ServiceOption {
	return func(s *ReservationService) { s.logf = fn }
}

func NewReservationService(store domain.Store, ledger domain.Ledger, opts ...ServiceOption) *ReservationService {
	s := &ReservationService{
		store:  store,
		ledger: ledger,
		ttl:    600 * time.Second,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		logf:   log.Printf,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cond, _ = store.(domain.ConditionalDecrementer)
	return s
}

// ReserveResult é a resposta de uma reserva bem sucedida.
type ReserveResult struct {
	Reservation domain.Reservation
	// Remaining é o valor do contador logo após o decremento.
	Remaining int64
}

// Reserve executa o protocolo completo. Cancelamento do ctx só é honrado na
// fronteira: uma vez decrementado, a requisição sempre termina com marker
// gravado ou com a compensação executada, nunca com retenção parcial.
func (s *ReservationService) Reserve(ctx context.Context, req domain.ReserveRequest) (ReserveResult, error) {
	if err := req.Validate(); err != nil {
		return ReserveResult{}, err
	}

	id := s.newID()
	key := domain.MarkerKey(req.PoolID, req.HolderID)

	// o relógio é lido ANTES de gravar o marker: a janela lógica (ExpiresAt)
	// e o TTL do marker partem do mesmo instante, então a notificação de
	// expiração nunca chega antes de ExpiresAt e o reator nunca descarta a
	// expiração da própria reserva como se fosse notificação velha.
	now := s.now()

	// guarda de idempotência: um marker ativo por (holder, pool).
	if err := s.store.SetMarker(ctx, key, id, s.ttl); err != nil {
		if errors.Is(err, domain.ErrMarkerExists) {
			return ReserveResult{}, domain.ErrDuplicateReservation
		}
		return ReserveResult{}, err
	}

	remaining, err := s.decrement(ctx, req)
	if err != nil {
		// desfaz a guarda; daqui em diante não há retenção nenhuma.
		s.removeMarker(key)
		return ReserveResult{}, err
	}

	res := domain.Reservation{
		ID:         id,
		PoolID:     req.PoolID,
		HolderID:   req.HolderID,
		Quantity:   req.Quantity,
		ReservedAt: now,
		ExpiresAt:  now.Add(s.ttl),
		Status:     domain.StatusPending,
	}

	if err := s.ledger.Append(ctx, res); err != nil {
		// passo durável falhou: compensa o contador e remove a guarda na
		// mesma requisição, antes de responder.
		s.compensate(req.PoolID, req.Quantity)
		s.removeMarker(key)
		return ReserveResult{}, fmt.Errorf("ledger append: %w", err)
	}

	s.emitAsync(ctx, func(ctx context.Context, sink domain.EventSink) error {
		return sink.ReservationCreated(ctx, domain.ReservationCreated{
			ReservationID: res.ID,
			PoolID:        res.PoolID,
			HolderID:      res.HolderID,
			Quantity:      res.Quantity,
			ExpiresAt:     res.ExpiresAt,
		})
	})

	return ReserveResult{Reservation: res, Remaining: remaining}, nil
}

// decrement tenta reter a quantidade. Prefere o decremento condicional
// (passo único no servidor); no caminho fraco, o valor retornado é
// autoritativo: negativo significa que ESTA requisição estourou o estoque e
// precisa devolver o que tirou antes de falhar.
func (s *ReservationService) decrement(ctx context.Context, req domain.ReserveRequest) (int64, error) {
	if s.cond != nil {
		v, ok, err := s.cond.DecrementIfAvailable(ctx, req.PoolID, req.Quantity)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, domain.ErrInsufficientStock
		}
		return v, nil
	}

	v, err := s.store.Decrement(ctx, req.PoolID, req.Quantity)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		// entre o decremento e esta compensação o contador fica visível
		// negativo; nenhum leitor pode tratar o valor cru como checagem de
		// capacidade sem considerar isso.
		s.compensate(req.PoolID, req.Quantity)
		return 0, domain.ErrInsufficientStock
	}
	return v, nil
}

// Confirm transiciona Pending->Confirmed antes do vencimento e apaga o
// marker (tira a reserva do rastreio de TTL — fecha a corrida com o reator).
func (s *ReservationService) Confirm(ctx context.Context, reservationID string) (domain.Reservation, error) {
	if reservationID == "" {
		return domain.Reservation{}, fmt.Errorf("%w: reservation_id is required", domain.ErrValidation)
	}

	res, err := s.ledger.Get(ctx, reservationID)
	if err != nil {
		return domain.Reservation{}, err
	}

	switch res.Status {
	case domain.StatusPending:
		// segue
	case domain.StatusExpired:
		return domain.Reservation{}, domain.ErrExpired
	default:
		// Confirmed (segunda confirmação) ou RolledBack.
		return domain.Reservation{}, domain.ErrInvalidState
	}

	if !s.now().Before(res.ExpiresAt) {
		return domain.Reservation{}, domain.ErrExpired
	}

	swapped, err := s.ledger.MarkConfirmed(ctx, reservationID)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !swapped {
		// o reator expirou no meio do caminho e o estoque já voltou.
		return domain.Reservation{}, domain.ErrExpired
	}

	// com o status já Confirmed, uma expiração atrasada do marker vira no-op
	// no reator; apagar o marker aqui só evita a notificação inútil.
	if err := s.store.DeleteMarker(ctx, domain.MarkerKey(res.PoolID, res.HolderID)); err != nil &&
		!errors.Is(err, domain.ErrMarkerNotFound) {
		s.logf("reserve: confirm %s: delete marker: %v", reservationID, err)
	}

	s.emitAsync(ctx, func(ctx context.Context, sink domain.EventSink) error {
		return sink.ReservationConfirmed(ctx, domain.ReservationConfirmed{ReservationID: reservationID})
	})

	res.Status = domain.StatusConfirmed
	return res, nil
}

// compensate devolve unidades ao contador, desacoplado do ctx da requisição:
// cancelamento do caller não pode deixar o contador permanentemente curto.
func (s *ReservationService) compensate(poolID string, qty int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.store.Increment(ctx, poolID, qty); err != nil {
		// sem o increment o pool fica sub-contado até a reconciliação;
		// loga alto e deixa o auditor apontar.
		s.logf("reserve: compensating increment failed pool=%s qty=%d: %v", poolID, qty, err)
	}
}

func (s *ReservationService) removeMarker(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.DeleteMarker(ctx, key); err != nil && !errors.Is(err, domain.ErrMarkerNotFound) {
		s.logf("reserve: delete marker %s: %v", key, err)
	}
}

// emitAsync publica fire-and-forget: erro de sink não falha a requisição
// (o ledger já é o backstop durável).
func (s *ReservationService) emitAsync(ctx context.Context, fn func(ctx context.Context, sink domain.EventSink) error) {
	if s.events == nil {
		return
	}
	sink := s.events
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	go func() {
		defer cancel()
		if err := fn(emitCtx, sink); err != nil {
			s.logf("reserve: emit event: %v", err)
		}
	}()
}
