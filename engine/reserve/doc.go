// Package reserve fornece o adapter HTTP (net/http) do motor de reservas.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http nem redis)
//   - application: casos de uso (reserva/confirmação, reator de expiração,
//     replay da fila, reconciliação) sem net/http
//   - infra: implementações concretas (redis, memória, breaker, filas, sinks)
//   - reserve (este pacote): handlers HTTP + tradução de erro de domínio
//     para status/corpo JSON
//
// Fluxo de uma reserva:
//
//  1. POST /reserve valida e entrega ao AdmissionService
//  2. breaker fechado: protocolo normal (marker + decremento atômico + ledger)
//  3. breaker aberto: a requisição vira ticket na fila de admissão (202)
//  4. marker não confirmado expira por TTL e o reator devolve o estoque
//
// Variáveis de ambiente do binário reserved (cmd/reserved) controlam o
// comportamento, como REDIS_ADDR, POOLS, RESERVATION_TTL e BREAKER_COOLDOWN.
package reserve
