package domain

import "context"

// Ticket é o recibo devolvido ao caller quando a requisição foi absorvida
// pela fila de admissão em vez de processada.
type Ticket struct {
	ID      string         `json:"ticket_id"`
	Request ReserveRequest `json:"request"`
}

// AdmissionQueue absorve requisições enquanto o breaker está aberto,
// sem tocar o contador. FIFO; o replay passa pelo protocolo normal depois,
// então uma requisição enfileirada ainda pode falhar por falta de estoque.
type AdmissionQueue interface {
	// Enqueue adiciona no fim da fila e retorna o id do ticket.
	Enqueue(ctx context.Context, req ReserveRequest) (ticketID string, err error)

	// Dequeue remove e retorna o item mais antigo; ok=false se vazia.
	Dequeue(ctx context.Context) (Ticket, bool, error)

	// Requeue devolve um item à FRENTE da fila (preserva FIFO quando um
	// ciclo de replay é interrompido no meio).
	Requeue(ctx context.Context, t Ticket) error

	// Len retorna o tamanho corrente.
	Len(ctx context.Context) (int64, error)
}
