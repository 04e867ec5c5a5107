package reserve

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"reservation-engine/engine/reserve/application"
	"reservation-engine/engine/reserve/domain"
)

// Options configura o adapter HTTP.
type Options struct {
	Admission    *application.AdmissionService
	Reservations *application.ReservationService

	// MaxBodyBytes limita o corpo aceito. Padrão 4KiB (payloads são mínimos).
	MaxBodyBytes int64
}

type reserveResponse struct {
	ReservationID string    `json:"reservation_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	Remaining     int64     `json:"remaining"`
}

type queuedResponse struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

type confirmRequest struct {
	ReservationID string `json:"reservation_id"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handler monta as rotas do motor de reservas.
func Handler(opts Options) http.Handler {
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 4 << 10
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /reserve", func(w http.ResponseWriter, r *http.Request) {
		var req domain.ReserveRequest
		if !decodeBody(w, r, opts.MaxBodyBytes, &req) {
			return
		}

		out, err := opts.Admission.Admit(r.Context(), req)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if out.Queued() {
			// absorvida pela fila: será reprocessada quando a dependência voltar.
			writeJSON(w, http.StatusAccepted, queuedResponse{TicketID: out.TicketID, Status: "queued"})
			return
		}

		res := out.Result
		writeJSON(w, http.StatusCreated, reserveResponse{
			ReservationID: res.Reservation.ID,
			ExpiresAt:     res.Reservation.ExpiresAt,
			Remaining:     res.Remaining,
		})
	})

	mux.HandleFunc("POST /confirm", func(w http.ResponseWriter, r *http.Request) {
		var req confirmRequest
		if !decodeBody(w, r, opts.MaxBodyBytes, &req) {
			return
		}

		res, err := opts.Reservations.Confirm(r.Context(), req.ReservationID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"reservation_id": res.ID,
			"status":         string(res.Status),
		})
	})

	return mux
}

func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Code: "validation_error"})
		return false
	}
	return true
}

// writeDomainError traduz a taxonomia de erros do domínio para HTTP.
// Contenção (duplicate/insufficient) é resposta normal, não 5xx.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation_error"})
	case errors.Is(err, domain.ErrDuplicateReservation):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "duplicate_reservation"})
	case errors.Is(err, domain.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "insufficient_stock"})
	case errors.Is(err, domain.ErrExpired):
		writeJSON(w, http.StatusGone, errorResponse{Error: err.Error(), Code: "expired"})
	case errors.Is(err, domain.ErrInvalidState):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "invalid_state"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, domain.ErrServiceDegraded), errors.Is(err, domain.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service degraded", Code: "service_degraded"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
