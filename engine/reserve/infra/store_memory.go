package infra

import (
	"context"
	"sync"
	"time"

	"reservation-engine/engine/reserve/domain"
)

// MemoryStore é uma implementação simples em memória de domain.Store e
// domain.ExpiryFeed. Útil para testes e desenvolvimento.
//
// De propósito NÃO implementa domain.ConditionalDecrementer: assim o caminho
// de decremento+compensação do protocolo também fica exercitado.
//
// Não é durável e não é indicada para produção.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]int64
	markers  map[string]memMarker
	subs     map[int]chan domain.ExpiredMarker
	nextSub  int

	checkEvery time.Duration
	now        func() time.Time
}

type memMarker struct {
	value     string
	expiresAt time.Time
}

type MemoryStoreOption func(*MemoryStore)

// WithCheckEvery define o intervalo do janitor de expiração.
func WithCheckEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.checkEvery = d }
}

// WithMemoryClock injeta o relógio (para testes).
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		counters:   make(map[string]int64),
		markers:    make(map[string]memMarker),
		subs:       make(map[int]chan domain.ExpiredMarker),
		checkEvery: 100 * time.Millisecond,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) InitCounter(_ context.Context, poolID string, capacity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counters[poolID]; !ok {
		s.counters[poolID] = capacity
	}
	return nil
}

// Decrement subtrai sob o lock do store: é o passo único e indivisível que o
// protocolo exige. Contador ausente conta como zero (resultado fica negativo
// e o caller compensa).
func (s *MemoryStore) Decrement(_ context.Context, poolID string, qty int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[poolID] -= qty
	return s.counters[poolID], nil
}

func (s *MemoryStore) Increment(_ context.Context, poolID string, qty int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[poolID] += qty
	return s.counters[poolID], nil
}

func (s *MemoryStore) ReadCounter(_ context.Context, poolID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[poolID], nil
}

func (s *MemoryStore) SetMarker(_ context.Context, key, value string, ttl time.Duration) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.markers[key]; ok {
		if m.expiresAt.After(now) {
			return domain.ErrMarkerExists
		}
		// marker vencido que o janitor ainda não varreu: expira agora.
		delete(s.markers, key)
		s.broadcastLocked(key, now)
	}
	s.markers[key] = memMarker{value: value, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) GetMarker(_ context.Context, key string) (string, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markers[key]
	if !ok || !m.expiresAt.After(now) {
		return "", domain.ErrMarkerNotFound
	}
	return m.value, nil
}

func (s *MemoryStore) DeleteMarker(_ context.Context, key string) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markers[key]
	if !ok || !m.expiresAt.After(now) {
		return domain.ErrMarkerNotFound
	}
	delete(s.markers, key)
	return nil
}

// Subscribe implementa domain.ExpiryFeed. O canal fecha quando o ctx encerra.
func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan domain.ExpiredMarker, error) {
	ch := make(chan domain.ExpiredMarker, 64)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// Sweep varre markers vencidos, remove e notifica assinantes.
// Chamada pelo janitor; exposta para testes determinísticos.
func (s *MemoryStore) Sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, m := range s.markers {
		if !m.expiresAt.After(now) {
			delete(s.markers, key)
			s.broadcastLocked(key, now)
		}
	}
}

// broadcastLocked entrega a notificação best-effort (assinante lento perde,
// igual ao feed real: a reconciliação cobre a perda).
func (s *MemoryStore) broadcastLocked(key string, at time.Time) {
	ev := domain.ExpiredMarker{Key: key, ExpiredAt: at}
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// StartJanitor inicia uma goroutine que varre markers vencidos periodicamente.
// Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	if s.checkEvery <= 0 {
		return
	}

	t := time.NewTicker(s.checkEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}
