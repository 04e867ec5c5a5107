package domain

import "errors"

// Taxonomia de erros do motor de reservas.
//
// Contenção (DuplicateReservation, InsufficientStock) é resultado negativo
// esperado sob carga, não condição excepcional: o caller traduz para uma
// resposta normal. StoreUnavailable é falha de dependência e fica restrito
// à fronteira do store; acima do breaker ela aparece como ServiceDegraded.
var (
	// ErrValidation indica entrada inválida (quantidade não positiva, ids vazios).
	// Rejeitado antes de qualquer efeito colateral.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateReservation indica que o mesmo holder já tem uma reserva
	// pendente para o mesmo pool (guarda de idempotência).
	ErrDuplicateReservation = errors.New("duplicate reservation")

	// ErrInsufficientStock indica que o pool não tem unidades suficientes.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrServiceDegraded é retornado quando o breaker está aberto e a chamada
	// foi curto-circuitada sem tocar o store.
	ErrServiceDegraded = errors.New("service degraded")

	// ErrInvalidState indica uma transição de estado inválida
	// (ex: confirmar duas vezes a mesma reserva).
	ErrInvalidState = errors.New("invalid reservation state")

	// ErrExpired indica que a janela da reserva já venceu.
	ErrExpired = errors.New("reservation expired")

	// ErrStoreUnavailable indica que o store rápido está inacessível.
	// Nenhum efeito parcial é garantido quando uma operação falha assim.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrMarkerExists é retornado por SetMarker quando a chave já existe
	// (semântica create-if-absent).
	ErrMarkerExists = errors.New("marker already exists")

	// ErrMarkerNotFound é retornado por GetMarker/DeleteMarker para chave ausente.
	ErrMarkerNotFound = errors.New("marker not found")

	// ErrNotFound indica registro ausente no ledger.
	ErrNotFound = errors.New("reservation not found")
)
