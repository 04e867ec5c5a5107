package domain

import (
	"context"
	"time"
)

// Store é o contrato do counter store atômico: um contador inteiro por pool
// e markers com TTL. Toda mutação de um mesmo contador é serializada pela
// implementação (modelo single-threaded do servidor, lock por chave ou CAS);
// a corretude do protocolo de reserva delega inteiramente nessa atomicidade,
// sem locks em processo entre tentativas concorrentes.
//
// Falha de infraestrutura é sempre reportada como ErrStoreUnavailable
// (possivelmente embrulhado); nenhum efeito parcial é garantido nesse caso.
type Store interface {
	// InitCounter cria o contador do pool com o valor de capacidade,
	// apenas se ainda não existir. Idempotente.
	InitCounter(ctx context.Context, poolID string, capacity int64) error

	// Decrement subtrai qty atomicamente e retorna o novo valor.
	// O valor retornado é autoritativo: se negativo, o caller DEVE
	// compensar com Increment na mesma requisição antes de falhar.
	Decrement(ctx context.Context, poolID string, qty int64) (int64, error)

	// Increment soma qty atomicamente e retorna o novo valor.
	// Usado tanto para rollback quanto para a devolução via expiração.
	Increment(ctx context.Context, poolID string, qty int64) (int64, error)

	// ReadCounter lê o valor corrente do contador.
	ReadCounter(ctx context.Context, poolID string) (int64, error)

	// SetMarker cria a chave com TTL absoluto, apenas se ausente.
	// Retorna ErrMarkerExists se já houver marker ativo (nunca sobrescreve).
	SetMarker(ctx context.Context, key, value string, ttl time.Duration) error

	// GetMarker retorna o valor do marker ou ErrMarkerNotFound.
	GetMarker(ctx context.Context, key string) (string, error)

	// DeleteMarker remove o marker (e o tira do rastreio de TTL).
	// Retorna ErrMarkerNotFound se não existir.
	DeleteMarker(ctx context.Context, key string) error
}

// ConditionalDecrementer é a variante forte do decremento: decrementa apenas
// se o resultado ficar >= 0, em um único passo no servidor. Elimina a janela
// de negativo transiente do caminho decrement+compensação.
//
// Implementações que suportam (ex: script Lua no redis) expõem esta interface;
// o serviço detecta via type assertion e prefere este caminho.
type ConditionalDecrementer interface {
	// DecrementIfAvailable retorna (novoValor, true) quando decrementou,
	// ou (valorCorrente, false) quando o estoque era insuficiente.
	DecrementIfAvailable(ctx context.Context, poolID string, qty int64) (int64, bool, error)
}

// ExpiredMarker é uma notificação de expiração de marker.
// Entrega é at-least-once e sem ordem garantida: o consumidor precisa ser
// idempotente contra redelivery da mesma chave.
type ExpiredMarker struct {
	Key       string
	ExpiredAt time.Time
}

// ExpiryFeed produz o fluxo de notificações de expiração de markers.
type ExpiryFeed interface {
	// Subscribe começa a ouvir expirações. O canal fecha quando o ctx
	// encerra ou a assinatura cai; o consumidor deve reassinar se quiser
	// continuar.
	Subscribe(ctx context.Context) (<-chan ExpiredMarker, error)
}
