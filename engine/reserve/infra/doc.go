// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - RedisStore: contadores atômicos + markers TTL usando redis (go-redis/v9),
//     com decremento condicional via script server-side
//   - MemoryStore: gêmeo em memória para testes e desenvolvimento
//   - Breaker: decorator de domain.Store com circuit breaker
//   - RedisQueue/MemoryQueue: fila de admissão FIFO para o modo degradado
package infra
