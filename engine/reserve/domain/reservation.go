package domain

import (
	"fmt"
	"strings"
	"time"
)

// Pool é um recurso contável com capacidade total fixa.
// O contador vivo (unidades disponíveis) pertence exclusivamente ao Store;
// nenhum outro componente muta `available` diretamente.
type Pool struct {
	ID       string
	Capacity int64
}

// Status é o estado do ciclo de vida de uma reserva.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusExpired    Status = "expired"
	StatusRolledBack Status = "rolled_back"
)

// Reservation representa uma retenção provisória de unidades de um pool.
//
// O marker TTL no store é a fonte de verdade para "esta retenção ainda está
// ativa": expirar/deletar o marker equivale a transicionar a reserva.
// O registro no ledger é o backstop durável para recuperação pós-expiração.
type Reservation struct {
	ID         string
	PoolID     string
	HolderID   string
	Quantity   int64
	ReservedAt time.Time
	ExpiresAt  time.Time
	Status     Status
}

// ReserveRequest é o pedido de reserva como chega na porta de entrada.
// Também é o payload enfileirado quando o sistema está degradado.
type ReserveRequest struct {
	PoolID   string `json:"pool_id"`
	HolderID string `json:"holder_id"`
	Quantity int64  `json:"quantity"`
}

// Validate aplica as regras de entrada. Nenhum efeito colateral ocorre
// antes desta checagem passar.
func (r ReserveRequest) Validate() error {
	if strings.TrimSpace(r.PoolID) == "" {
		return fmt.Errorf("%w: pool_id is required", ErrValidation)
	}
	if strings.TrimSpace(r.HolderID) == "" {
		return fmt.Errorf("%w: holder_id is required", ErrValidation)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}
	return nil
}

// markerPrefix é o prefixo de toda chave de marker de reserva no store.
// A chave embute (poolId, holderId) de propósito: a notificação de expiração
// carrega só a chave, e o reator precisa recuperar os dois identificadores dela.
const markerPrefix = "reserve:hold:"

// MarkerKey monta a chave do marker para (poolId, holderId).
func MarkerKey(poolID, holderID string) string {
	return markerPrefix + poolID + ":" + holderID
}

// ParseMarkerKey extrai (poolId, holderId) de uma chave de marker.
// Retorna ok=false para chaves fora do formato (o reator ignora essas).
func ParseMarkerKey(key string) (poolID, holderID string, ok bool) {
	rest, found := strings.CutPrefix(key, markerPrefix)
	if !found {
		return "", "", false
	}
	poolID, holderID, found = strings.Cut(rest, ":")
	if !found || poolID == "" || holderID == "" {
		return "", "", false
	}
	return poolID, holderID, true
}
