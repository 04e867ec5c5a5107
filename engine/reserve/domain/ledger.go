package domain

import "context"

// Ledger é o registro durável de reservas, o backstop do saga: o passo 1
// (retenção no store rápido) pode se perder numa queda, mas o registro aqui
// permite reconstruir e é de onde o reator e o auditor leem a verdade.
//
// As transições MarkConfirmed/MarkExpired/MarkRolledBack são check-and-set
// atômicas a partir de Pending: retornam swapped=false quando o registro já
// saiu de Pending. É essa CAS que garante a liberação exactly-effectively-once
// na expiração, mesmo com notificação duplicada.
type Ledger interface {
	// Append grava um registro novo (status Pending).
	Append(ctx context.Context, res Reservation) error

	// Get retorna o registro por id, ou ErrNotFound.
	Get(ctx context.Context, reservationID string) (Reservation, error)

	// LastFor retorna a última reserva registrada para (poolId, holderId),
	// ou ErrNotFound. É o caminho de recuperação do reator: o marker já
	// sumiu do store quando a expiração é notificada.
	LastFor(ctx context.Context, poolID, holderID string) (Reservation, error)

	// MarkConfirmed transiciona Pending->Confirmed.
	MarkConfirmed(ctx context.Context, reservationID string) (swapped bool, err error)

	// MarkExpired transiciona Pending->Expired.
	MarkExpired(ctx context.Context, reservationID string) (swapped bool, err error)

	// MarkRolledBack transiciona Pending->RolledBack (compensação no saga).
	MarkRolledBack(ctx context.Context, reservationID string) (swapped bool, err error)

	// ActiveQuantity soma as quantidades de reservas Pending+Confirmed do pool.
	// Base do valor esperado na reconciliação.
	ActiveQuantity(ctx context.Context, poolID string) (int64, error)
}
