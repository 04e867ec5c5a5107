package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"reservation-engine/engine/reserve/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
)

// RedisQueue é a fila de admissão durável: uma lista redis com tickets em
// JSON. LPUSH na entrada, RPOP na saída (FIFO); Requeue devolve pela direita,
// de volta à frente da fila. Restartável entre processos porque a lista fica
// no servidor.
//
// Nota: a fila roda no mesmo redis que o store rápido por conveniência de
// deploy; se a indisponibilidade for do servidor inteiro, o enqueue também
// falha e o caller recebe o erro degradado original.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "reserve:admission"
	}
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, req domain.ReserveRequest) (string, error) {
	t := domain.Ticket{ID: xid.New().String(), Request: req}
	raw, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode ticket: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return "", wrapStoreErr(err)
	}
	return t.ID, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (domain.Ticket, bool, error) {
	raw, err := q.rdb.RPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Ticket{}, false, nil
	}
	if err != nil {
		return domain.Ticket{}, false, wrapStoreErr(err)
	}

	var t domain.Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		// ticket corrompido: descarta com erro em vez de travar o drain.
		return domain.Ticket{}, false, fmt.Errorf("decode ticket: %w", err)
	}
	return t, true, nil
}

func (q *RedisQueue) Requeue(ctx context.Context, t domain.Ticket) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode ticket: %w", err)
	}
	return wrapStoreErr(q.rdb.RPush(ctx, q.key, raw).Err())
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.key).Result()
	return n, wrapStoreErr(err)
}
