package domain

// CircuitState é o estado do breaker que guarda o acesso ao store.
// Process-wide por dependência; transições dirigidas por contagem de falhas
// consecutivas e por timer de cool-down.
type CircuitState int32

const (
	// CircuitClosed deixa todas as chamadas passarem.
	CircuitClosed CircuitState = iota
	// CircuitOpen curto-circuita toda chamada com ErrServiceDegraded.
	CircuitOpen
	// CircuitHalfOpen deixa exatamente uma chamada de sondagem passar.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
