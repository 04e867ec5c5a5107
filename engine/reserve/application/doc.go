// Package application contém os casos de uso do motor de reservas:
// o protocolo de reserva/confirmação, o reator de expiração, o replay da
// fila de admissão e a reconciliação.
//
// Ele depende apenas do pacote domain e não conhece net/http nem redis.
package application
