package application

import (
	"context"
	"errors"

	"reservation-engine/engine/reserve/domain"
)

// AdmissionService é a porta de entrada: passa a requisição pelo protocolo
// normal e, quando o acesso ao store está degradado (breaker aberto ou
// dependência fora), absorve a requisição na fila em vez de rejeitar.
//
// A fila nunca toca o contador; o replay passa pelo protocolo normal depois.
type AdmissionService struct {
	Reservations *ReservationService
	Queue        domain.AdmissionQueue
}

// Outcome é o resultado da admissão: ou a reserva processada, ou o ticket
// da fila quando o sistema está degradado. Exatamente um dos dois é preenchido.
type Outcome struct {
	Result   *ReserveResult
	TicketID string
}

// Queued reporta se a requisição foi absorvida pela fila.
func (o Outcome) Queued() bool { return o.TicketID != "" }

func (s *AdmissionService) Admit(ctx context.Context, req domain.ReserveRequest) (Outcome, error) {
	res, err := s.Reservations.Reserve(ctx, req)
	if err == nil {
		return Outcome{Result: &res}, nil
	}

	if s.Queue != nil && isDegraded(err) {
		ticketID, qerr := s.Queue.Enqueue(ctx, req)
		if qerr != nil {
			// fila também fora: devolve o erro degradado original.
			return Outcome{}, err
		}
		return Outcome{TicketID: ticketID}, nil
	}

	return Outcome{}, err
}

// isDegraded cobre o curto-circuito do breaker e as falhas de dependência
// que ainda vazam enquanto o breaker está contando (fechado, porém falhando).
// Timeout interno do store já chega normalizado como ErrStoreUnavailable;
// um deadline cru é prazo do próprio caller e volta para ele, não para a fila.
func isDegraded(err error) bool {
	return errors.Is(err, domain.ErrServiceDegraded) ||
		errors.Is(err, domain.ErrStoreUnavailable)
}
