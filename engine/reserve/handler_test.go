package reserve

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reservation-engine/engine/reserve/application"
	"reservation-engine/engine/reserve/domain"
	"reservation-engine/engine/reserve/infra"
)

func discardLogf(string, ...any) {}

func newTestHandler(t *testing.T, capacity int64) (http.Handler, *infra.MemoryQueue) {
	t.Helper()

	store := infra.NewMemoryStore()
	if err := store.InitCounter(context.Background(), "p", capacity); err != nil {
		t.Fatalf("init counter: %v", err)
	}
	svc := application.NewReservationService(store, infra.NewMemoryLedger(),
		application.WithTTL(time.Minute), application.WithLogf(discardLogf))
	queue := infra.NewMemoryQueue()

	h := Handler(Options{
		Admission:    &application.AdmissionService{Reservations: svc, Queue: queue},
		Reservations: svc,
	})
	return h, queue
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "http://example"+path, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeBodyInto(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHandler_ReserveAndContention(t *testing.T) {
	h, _ := newTestHandler(t, 1)

	w := postJSON(t, h, "/reserve", map[string]any{"pool_id": "p", "holder_id": "h1", "quantity": 1})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ReservationID string `json:"reservation_id"`
		Remaining     int64  `json:"remaining"`
	}
	decodeBodyInto(t, w, &created)
	if created.ReservationID == "" || created.Remaining != 0 {
		t.Fatalf("unexpected response: %+v", created)
	}

	// mesmo holder de novo: contenção, resposta normal 409.
	w = postJSON(t, h, "/reserve", map[string]any{"pool_id": "p", "holder_id": "h1", "quantity": 1})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 duplicate, got %d", w.Code)
	}
	var dup struct {
		Code string `json:"code"`
	}
	decodeBodyInto(t, w, &dup)
	if dup.Code != "duplicate_reservation" {
		t.Fatalf("expected duplicate_reservation, got %q", dup.Code)
	}

	// outro holder com estoque zerado: 409 insufficient.
	w = postJSON(t, h, "/reserve", map[string]any{"pool_id": "p", "holder_id": "h2", "quantity": 1})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 insufficient, got %d", w.Code)
	}
	var ins struct {
		Code string `json:"code"`
	}
	decodeBodyInto(t, w, &ins)
	if ins.Code != "insufficient_stock" {
		t.Fatalf("expected insufficient_stock, got %q", ins.Code)
	}
}

func TestHandler_ValidationError(t *testing.T) {
	h, _ := newTestHandler(t, 1)

	w := postJSON(t, h, "/reserve", map[string]any{"pool_id": "p", "holder_id": "h", "quantity": -1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandler_ConfirmFlow(t *testing.T) {
	h, _ := newTestHandler(t, 5)

	w := postJSON(t, h, "/reserve", map[string]any{"pool_id": "p", "holder_id": "h", "quantity": 1})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var created struct {
		ReservationID string `json:"reservation_id"`
	}
	decodeBodyInto(t, w, &created)

	w = postJSON(t, h, "/confirm", map[string]any{"reservation_id": created.ReservationID})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// segunda confirmação: estado inválido.
	w = postJSON(t, h, "/confirm", map[string]any{"reservation_id": created.ReservationID})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	w = postJSON(t, h, "/confirm", map[string]any{"reservation_id": "unknown"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

// downStore simula o store rápido fora do ar.
type downStore struct{}

func (downStore) InitCounter(context.Context, string, int64) error { return domain.ErrStoreUnavailable }
func (downStore) Decrement(context.Context, string, int64) (int64, error) {
	return 0, domain.ErrStoreUnavailable
}
func (downStore) Increment(context.Context, string, int64) (int64, error) {
	return 0, domain.ErrStoreUnavailable
}
func (downStore) ReadCounter(context.Context, string) (int64, error) {
	return 0, domain.ErrStoreUnavailable
}
func (downStore) SetMarker(context.Context, string, string, time.Duration) error {
	return domain.ErrStoreUnavailable
}
func (downStore) GetMarker(context.Context, string) (string, error) {
	return "", domain.ErrStoreUnavailable
}
func (downStore) DeleteMarker(context.Context, string) error { return domain.ErrStoreUnavailable }

func TestHandler_DegradedRequestsAreQueued(t *testing.T) {
	svc := application.NewReservationService(downStore{}, infra.NewMemoryLedger(),
		application.WithTTL(time.Minute), application.WithLogf(discardLogf))
	queue := infra.NewMemoryQueue()
	h := Handler(Options{
		Admission:    &application.AdmissionService{Reservations: svc, Queue: queue},
		Reservations: svc,
	})

	w := postJSON(t, h, "/reserve", map[string]any{"pool_id": "p", "holder_id": "h", "quantity": 1})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 queued, got %d: %s", w.Code, w.Body.String())
	}
	var queued struct {
		TicketID string `json:"ticket_id"`
		Status   string `json:"status"`
	}
	decodeBodyInto(t, w, &queued)
	if queued.TicketID == "" || queued.Status != "queued" {
		t.Fatalf("unexpected queued response: %+v", queued)
	}

	if n, _ := queue.Len(context.Background()); n != 1 {
		t.Fatalf("expected 1 ticket in queue, got %d", n)
	}
}
