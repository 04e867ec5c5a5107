package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	"reservation-engine/engine/reserve/domain"
)

// Breaker é um decorator de domain.Store com circuit breaker.
//
// Máquina de estados: Closed -> (N falhas consecutivas de dependência) ->
// Open (curto-circuito por um cool-down fixo) -> HalfOpen (exatamente uma
// sondagem) -> Closed no sucesso, Open de novo na falha.
//
// Só falha de dependência conta para o limiar: ErrStoreUnavailable e timeout
// da chamada. Resultados negativos de aplicação (marker já existe, marker
// ausente) são sucesso do ponto de vista do breaker — resultado de negócio
// nunca derruba o circuito.
//
// O estado é único e compartilhado entre todos os callers concorrentes da
// mesma instância.
type Breaker struct {
	store domain.Store
	cond  domain.ConditionalDecrementer // nil quando o store não suporta

	mu       sync.Mutex
	state    domain.CircuitState
	failures int
	openedAt time.Time
	probing  bool

	threshold   int
	cooldown    time.Duration
	callTimeout time.Duration
	now         func() time.Time
	onChange    func(from, to domain.CircuitState)
}

type BreakerOption func(*Breaker)

// WithFailureThreshold define quantas falhas consecutivas abrem o circuito.
func WithFailureThreshold(n int) BreakerOption {
	return func(b *Breaker) { b.threshold = n }
}

// WithCooldown define quanto tempo o circuito fica aberto antes da sondagem.
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) { b.cooldown = d }
}

// WithCallTimeout limita cada chamada ao store; estouro conta como falha.
func WithCallTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) { b.callTimeout = d }
}

// WithBreakerClock injeta o relógio (para testes).
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

// WithStateChange registra um hook chamado a cada transição (para log).
func WithStateChange(fn func(from, to domain.CircuitState)) BreakerOption {
	return func(b *Breaker) { b.onChange = fn }
}

// NewBreaker embrulha o store. Quando o store embrulhado implementa
// domain.ConditionalDecrementer, o retorno também implementa (a capacidade
// atravessa o decorator); caso contrário não.
func NewBreaker(store domain.Store, opts ...BreakerOption) domain.Store {
	b := &Breaker{
		store:       store,
		state:       domain.CircuitClosed,
		threshold:   3,
		cooldown:    5 * time.Second,
		callTimeout: 2 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if cd, ok := store.(domain.ConditionalDecrementer); ok {
		b.cond = cd
		return &condBreaker{b}
	}
	return b
}

// State retorna o estado corrente (já considerando cool-down vencido).
func (b *Breaker) State() domain.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == domain.CircuitOpen && !b.now().Before(b.openedAt.Add(b.cooldown)) {
		return domain.CircuitHalfOpen
	}
	return b.state
}

// allow decide se a chamada passa. Retorna ErrServiceDegraded no
// curto-circuito, sem tocar o store.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.CircuitClosed:
		return nil
	case domain.CircuitOpen:
		if b.now().Before(b.openedAt.Add(b.cooldown)) {
			return domain.ErrServiceDegraded
		}
		// cool-down venceu: este caller vira a sondagem.
		b.transitionLocked(domain.CircuitHalfOpen)
		b.probing = true
		return nil
	case domain.CircuitHalfOpen:
		if b.probing {
			return domain.ErrServiceDegraded
		}
		b.probing = true
		return nil
	}
	return nil
}

func (b *Breaker) afterCall(err error) {
	failure := isDependencyFailure(err)

	b.mu.Lock()
	defer b.mu.Unlock()

	if failure {
		if b.state == domain.CircuitHalfOpen {
			// sondagem falhou: reabre e reinicia o cool-down.
			b.probing = false
			b.openedAt = b.now()
			b.transitionLocked(domain.CircuitOpen)
			return
		}
		b.failures++
		if b.failures >= b.threshold {
			b.openedAt = b.now()
			b.transitionLocked(domain.CircuitOpen)
		}
		return
	}

	b.failures = 0
	if b.state == domain.CircuitHalfOpen {
		b.probing = false
		b.transitionLocked(domain.CircuitClosed)
	}
}

func (b *Breaker) transitionLocked(to domain.CircuitState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onChange != nil {
		b.onChange(from, to)
	}
}

// isDependencyFailure separa falha de dependência de resultado de aplicação.
func isDependencyFailure(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, domain.ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// do embrulha uma chamada com curto-circuito, timeout e contagem de falhas.
func (b *Breaker) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	if b.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.callTimeout)
		defer cancel()
	}

	err := fn(ctx)
	b.afterCall(err)
	return err
}

func (b *Breaker) InitCounter(ctx context.Context, poolID string, capacity int64) error {
	return b.do(ctx, func(ctx context.Context) error {
		return b.store.InitCounter(ctx, poolID, capacity)
	})
}

func (b *Breaker) Decrement(ctx context.Context, poolID string, qty int64) (int64, error) {
	var v int64
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		v, err = b.store.Decrement(ctx, poolID, qty)
		return err
	})
	return v, err
}

func (b *Breaker) Increment(ctx context.Context, poolID string, qty int64) (int64, error) {
	var v int64
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		v, err = b.store.Increment(ctx, poolID, qty)
		return err
	})
	return v, err
}

func (b *Breaker) ReadCounter(ctx context.Context, poolID string) (int64, error) {
	var v int64
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		v, err = b.store.ReadCounter(ctx, poolID)
		return err
	})
	return v, err
}

func (b *Breaker) SetMarker(ctx context.Context, key, value string, ttl time.Duration) error {
	return b.do(ctx, func(ctx context.Context) error {
		return b.store.SetMarker(ctx, key, value, ttl)
	})
}

func (b *Breaker) GetMarker(ctx context.Context, key string) (string, error) {
	var v string
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		v, err = b.store.GetMarker(ctx, key)
		return err
	})
	return v, err
}

func (b *Breaker) DeleteMarker(ctx context.Context, key string) error {
	return b.do(ctx, func(ctx context.Context) error {
		return b.store.DeleteMarker(ctx, key)
	})
}

// condBreaker é o Breaker para stores com decremento condicional: mesmo
// estado, mesma contagem, mas expõe DecrementIfAvailable também.
type condBreaker struct {
	*Breaker
}

func (b *condBreaker) DecrementIfAvailable(ctx context.Context, poolID string, qty int64) (int64, bool, error) {
	var (
		v  int64
		ok bool
	)
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		v, ok, err = b.cond.DecrementIfAvailable(ctx, poolID, qty)
		return err
	})
	return v, ok, err
}
