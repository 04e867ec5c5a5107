package infra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"reservation-engine/engine/reserve/domain"

	"github.com/redis/go-redis/v9"
)

// RedisLedger guarda o registro durável de reservas em redis:
//
//   - um hash por reserva ({prefix}:res:{id}) com pool, holder, qty e status
//   - um hash índice ({prefix}:last) de "pool:holder" -> última reserva,
//     o caminho de recuperação do reator quando o marker já expirou
//   - um set por pool ({prefix}:active:{pool}) com as reservas
//     Pending+Confirmed, base da reconciliação
//
// As transições de status são scripts server-side: o check-and-set a partir
// de Pending precisa ser um passo único para a liberação de estoque na
// expiração acontecer no máximo uma vez.
type RedisLedger struct {
	rdb    *redis.Client
	prefix string
}

type RedisLedgerOption func(*RedisLedger)

func WithLedgerPrefix(prefix string) RedisLedgerOption {
	return func(l *RedisLedger) { l.prefix = prefix }
}

func NewRedisLedger(rdb *redis.Client, opts ...RedisLedgerOption) *RedisLedger {
	l := &RedisLedger{rdb: rdb, prefix: "reserve:ledger"}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// casStatus: KEYS[1] = hash da reserva, KEYS[2] = set de ativas do pool.
// ARGV[1] = novo status, ARGV[2] = "1" para remover do set, ARGV[3] = id.
// Retorna -1 (não existe), 0 (já saiu de pending) ou 1 (transicionou).
var casStatus = redis.NewScript(`
local s = redis.call('HGET', KEYS[1], 'status')
if not s then return -1 end
if s ~= 'pending' then return 0 end
redis.call('HSET', KEYS[1], 'status', ARGV[1])
if ARGV[2] == '1' then redis.call('SREM', KEYS[2], ARGV[3]) end
return 1
`)

func (l *RedisLedger) resKey(id string) string      { return l.prefix + ":res:" + id }
func (l *RedisLedger) lastKey() string              { return l.prefix + ":last" }
func (l *RedisLedger) activeKey(pool string) string { return l.prefix + ":active:" + pool }

func (l *RedisLedger) Append(ctx context.Context, res domain.Reservation) error {
	pipe := l.rdb.TxPipeline()
	pipe.HSet(ctx, l.resKey(res.ID), map[string]any{
		"pool":        res.PoolID,
		"holder":      res.HolderID,
		"qty":         res.Quantity,
		"reserved_at": res.ReservedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":  res.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"status":      string(res.Status),
	})
	pipe.HSet(ctx, l.lastKey(), holderIndex(res.PoolID, res.HolderID), res.ID)
	pipe.SAdd(ctx, l.activeKey(res.PoolID), res.ID)
	_, err := pipe.Exec(ctx)
	return wrapStoreErr(err)
}

func (l *RedisLedger) Get(ctx context.Context, reservationID string) (domain.Reservation, error) {
	fields, err := l.rdb.HGetAll(ctx, l.resKey(reservationID)).Result()
	if err != nil {
		return domain.Reservation{}, wrapStoreErr(err)
	}
	if len(fields) == 0 {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return parseReservation(reservationID, fields)
}

func (l *RedisLedger) LastFor(ctx context.Context, poolID, holderID string) (domain.Reservation, error) {
	id, err := l.rdb.HGet(ctx, l.lastKey(), holderIndex(poolID, holderID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, wrapStoreErr(err)
	}
	return l.Get(ctx, id)
}

func (l *RedisLedger) mark(ctx context.Context, reservationID string, to domain.Status) (bool, error) {
	res, err := l.Get(ctx, reservationID)
	if err != nil {
		return false, err
	}

	dropActive := "0"
	if to == domain.StatusExpired || to == domain.StatusRolledBack {
		dropActive = "1"
	}

	keys := []string{l.resKey(reservationID), l.activeKey(res.PoolID)}
	n, err := casStatus.Run(ctx, l.rdb, keys, string(to), dropActive, reservationID).Int64()
	if err != nil {
		return false, wrapStoreErr(err)
	}
	if n < 0 {
		return false, domain.ErrNotFound
	}
	return n == 1, nil
}

func (l *RedisLedger) MarkConfirmed(ctx context.Context, reservationID string) (bool, error) {
	return l.mark(ctx, reservationID, domain.StatusConfirmed)
}

func (l *RedisLedger) MarkExpired(ctx context.Context, reservationID string) (bool, error) {
	return l.mark(ctx, reservationID, domain.StatusExpired)
}

func (l *RedisLedger) MarkRolledBack(ctx context.Context, reservationID string) (bool, error) {
	return l.mark(ctx, reservationID, domain.StatusRolledBack)
}

func (l *RedisLedger) ActiveQuantity(ctx context.Context, poolID string) (int64, error) {
	ids, err := l.rdb.SMembers(ctx, l.activeKey(poolID)).Result()
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := l.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, l.resKey(id), "qty")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, wrapStoreErr(err)
	}

	var total int64
	for _, cmd := range cmds {
		qty, err := cmd.Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return 0, wrapStoreErr(err)
		}
		total += qty
	}
	return total, nil
}

func parseReservation(id string, fields map[string]string) (domain.Reservation, error) {
	qty, err := strconv.ParseInt(fields["qty"], 10, 64)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("ledger record %s: bad qty %q", id, fields["qty"])
	}
	reservedAt, err := time.Parse(time.RFC3339Nano, fields["reserved_at"])
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("ledger record %s: bad reserved_at %q", id, fields["reserved_at"])
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("ledger record %s: bad expires_at %q", id, fields["expires_at"])
	}
	return domain.Reservation{
		ID:         id,
		PoolID:     fields["pool"],
		HolderID:   fields["holder"],
		Quantity:   qty,
		ReservedAt: reservedAt,
		ExpiresAt:  expiresAt,
		Status:     domain.Status(fields["status"]),
	}, nil
}
