// Package domain define contratos e tipos de domínio do motor de reservas.
//
// Este pacote não depende de redis, net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar o protocolo de
// reserva dos detalhes de infraestrutura (qual store, qual fila, qual sink).
package domain
