package domain

import (
	"context"
	"time"
)

// AuditFinding é o resultado de uma rodada de reconciliação em que o
// contador vivo divergiu do valor derivado do ledger.
//
// A reconciliação NUNCA corrige o contador automaticamente: drift pode ser
// sintoma de bug real no protocolo, e correção silenciosa esconderia isso.
// Correção é ação deliberada de operador.
type AuditFinding struct {
	PoolID          string    `json:"pool_id"`
	ObservedCounter int64     `json:"observed_counter"`
	ExpectedCounter int64     `json:"expected_counter"`
	Delta           int64     `json:"delta"`
	DetectedAt      time.Time `json:"detected_at"`
}

// AuditSink entrega findings ao colaborador externo de alertas.
type AuditSink interface {
	Finding(ctx context.Context, f AuditFinding) error
}
