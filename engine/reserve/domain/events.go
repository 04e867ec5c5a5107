package domain

import (
	"context"
	"time"
)

// Eventos publicados para o materializador externo do ledger de pedidos.
// Entrega é at-least-once: o consumidor deve dedupar por reservationId.

type ReservationCreated struct {
	ReservationID string    `json:"reservation_id"`
	PoolID        string    `json:"pool_id"`
	HolderID      string    `json:"holder_id"`
	Quantity      int64     `json:"quantity"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type ReservationConfirmed struct {
	ReservationID string `json:"reservation_id"`
}

type ReservationExpired struct {
	ReservationID string `json:"reservation_id"`
	PoolID        string `json:"pool_id"`
	Quantity      int64  `json:"quantity"`
}

// EventSink publica eventos de reserva.
//
// A publicação é best-effort fire-and-forget do ponto de vista da requisição:
// erro de sink não falha a reserva (o registro no Ledger já é o backstop
// durável). Implementações podem gravar em stream redis, broker, log, etc.
type EventSink interface {
	ReservationCreated(ctx context.Context, ev ReservationCreated) error
	ReservationConfirmed(ctx context.Context, ev ReservationConfirmed) error
	ReservationExpired(ctx context.Context, ev ReservationExpired) error
}
