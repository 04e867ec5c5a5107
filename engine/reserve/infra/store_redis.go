package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reservation-engine/engine/reserve/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStore implementa domain.Store sobre redis: um contador inteiro por
// pool e markers via SET NX com TTL. O modelo de execução single-threaded do
// servidor serializa as mutações de cada chave, que é exatamente a garantia
// que o protocolo de reserva precisa.
//
// Também implementa domain.ConditionalDecrementer com um script Lua
// server-side: decrementa apenas se o resultado ficar >= 0, em um único
// passo, sem janela de negativo transiente.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisStoreOption func(*RedisStore)

func WithStorePrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "reserve",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// condDecr roda no servidor como passo único. Contador ausente conta como
// zero (insuficiente para qualquer qty > 0). Retorna {valor, decrementou}.
var condDecr = redis.NewScript(`
local v = tonumber(redis.call('GET', KEYS[1]) or '0')
local q = tonumber(ARGV[1])
if v < q then
  return {v, 0}
end
return {redis.call('DECRBY', KEYS[1], q), 1}
`)

func (s *RedisStore) counterKey(poolID string) string {
	return s.prefix + ":stock:" + poolID
}

func (s *RedisStore) InitCounter(ctx context.Context, poolID string, capacity int64) error {
	// SETNX: não sobrescreve um contador vivo num restart do processo.
	return wrapStoreErr(s.rdb.SetNX(ctx, s.counterKey(poolID), capacity, 0).Err())
}

func (s *RedisStore) Decrement(ctx context.Context, poolID string, qty int64) (int64, error) {
	v, err := s.rdb.DecrBy(ctx, s.counterKey(poolID), qty).Result()
	return v, wrapStoreErr(err)
}

func (s *RedisStore) Increment(ctx context.Context, poolID string, qty int64) (int64, error) {
	v, err := s.rdb.IncrBy(ctx, s.counterKey(poolID), qty).Result()
	return v, wrapStoreErr(err)
}

func (s *RedisStore) ReadCounter(ctx context.Context, poolID string) (int64, error) {
	v, err := s.rdb.Get(ctx, s.counterKey(poolID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, wrapStoreErr(err)
}

// DecrementIfAvailable implementa domain.ConditionalDecrementer.
func (s *RedisStore) DecrementIfAvailable(ctx context.Context, poolID string, qty int64) (int64, bool, error) {
	res, err := condDecr.Run(ctx, s.rdb, []string{s.counterKey(poolID)}, qty).Slice()
	if err != nil {
		return 0, false, wrapStoreErr(err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("%w: unexpected script reply %v", domain.ErrStoreUnavailable, res)
	}
	value, _ := res[0].(int64)
	flag, _ := res[1].(int64)
	return value, flag == 1, nil
}

func (s *RedisStore) SetMarker(ctx context.Context, key, value string, ttl time.Duration) error {
	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return wrapStoreErr(err)
	}
	if !ok {
		return domain.ErrMarkerExists
	}
	return nil
}

func (s *RedisStore) GetMarker(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrMarkerNotFound
	}
	return v, wrapStoreErr(err)
}

func (s *RedisStore) DeleteMarker(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return wrapStoreErr(err)
	}
	if n == 0 {
		return domain.ErrMarkerNotFound
	}
	return nil
}

// wrapStoreErr normaliza qualquer erro de driver para a fronteira do domínio:
// acima daqui só existe ErrStoreUnavailable (o breaker conta esses).
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

// RedisExpiryFeed implementa domain.ExpiryFeed via keyspace notifications
// (evento `expired` do banco). Requer notify-keyspace-events com as flags
// "Ex" no servidor; EnableNotifications tenta configurar isso no boot.
type RedisExpiryFeed struct {
	rdb *redis.Client
	db  int
}

func NewRedisExpiryFeed(rdb *redis.Client, db int) *RedisExpiryFeed {
	return &RedisExpiryFeed{rdb: rdb, db: db}
}

// EnableNotifications liga o evento de expiração no servidor. Em redis
// gerenciado CONFIG pode estar bloqueado; nesse caso a flag precisa ser
// configurada fora do processo e o erro aqui pode ser ignorado com aviso.
func (f *RedisExpiryFeed) EnableNotifications(ctx context.Context) error {
	return wrapStoreErr(f.rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err())
}

func (f *RedisExpiryFeed) Subscribe(ctx context.Context) (<-chan domain.ExpiredMarker, error) {
	pattern := fmt.Sprintf("__keyevent@%d__:expired", f.db)
	pubsub := f.rdb.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, wrapStoreErr(err)
	}

	out := make(chan domain.ExpiredMarker, 64)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				// payload é a chave expirada; o reator filtra o que não
				// for marker de reserva.
				ev := domain.ExpiredMarker{Key: msg.Payload, ExpiredAt: time.Now()}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
