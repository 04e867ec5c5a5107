package infra

import (
	"context"
	"encoding/json"

	"reservation-engine/engine/reserve/domain"

	"github.com/redis/go-redis/v9"
)

// StreamEventSink publica os eventos de reserva num stream redis (XADD),
// de onde o materializador externo do ledger de pedidos consome.
// Entrega é at-least-once; o consumidor dedupa por reservation_id.
type StreamEventSink struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

type StreamSinkOption func(*StreamEventSink)

// WithStreamMaxLen limita o tamanho aproximado do stream (XADD MAXLEN ~).
func WithStreamMaxLen(n int64) StreamSinkOption {
	return func(s *StreamEventSink) { s.maxLen = n }
}

func NewStreamEventSink(rdb *redis.Client, stream string, opts ...StreamSinkOption) *StreamEventSink {
	if stream == "" {
		stream = "reserve:events"
	}
	s := &StreamEventSink{rdb: rdb, stream: stream, maxLen: 100_000}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StreamEventSink) publish(ctx context.Context, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return wrapStoreErr(s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{"type": kind, "payload": raw},
	}).Err())
}

func (s *StreamEventSink) ReservationCreated(ctx context.Context, ev domain.ReservationCreated) error {
	return s.publish(ctx, "reservation_created", ev)
}

func (s *StreamEventSink) ReservationConfirmed(ctx context.Context, ev domain.ReservationConfirmed) error {
	return s.publish(ctx, "reservation_confirmed", ev)
}

func (s *StreamEventSink) ReservationExpired(ctx context.Context, ev domain.ReservationExpired) error {
	return s.publish(ctx, "reservation_expired", ev)
}
