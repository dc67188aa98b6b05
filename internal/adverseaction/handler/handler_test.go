package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clearvet/internal/adverseaction"
	"clearvet/internal/order"
	"clearvet/internal/timeline"
)

type fixture struct {
	router  chi.Router
	orders  *order.MemoryStore
	service *adverseaction.Service
	now     *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		orders: order.NewMemoryStore(),
		now:    &now,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = adverseaction.New(
		adverseaction.NewMemoryStore(),
		f.orders,
		timeline.NewRecorder(timeline.NewMemoryStore()),
		adverseaction.WithClock(func() time.Time { return *f.now }),
	)
	h := New(f.service, logger, WithClock(func() time.Time { return *f.now }))
	f.router = chi.NewRouter()
	h.Register(f.router)
	return f
}

func (f *fixture) seedOrder(t *testing.T) *order.Order {
	t.Helper()
	o := &order.Order{
		ID:        uuid.New(),
		ClientID:  uuid.New(),
		Status:    order.StatusRequiresAction,
		Applicant: order.Applicant{FirstName: "Dana", Email: "dana@example.com"},
		CreatedAt: *f.now,
		UpdatedAt: *f.now,
	}
	if err := f.orders.Create(context.Background(), o); err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
	return o
}

func (f *fixture) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Staff-ID", "staff-1")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeAction(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func TestAdverseActionLifecycleViaHandlers(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t)

	rec := f.do(t, http.MethodPost, "/adverse-actions", map[string]string{"order_id": o.ID.String()})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 initiating, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeAction(t, rec)
	id := created["id"].(string)
	if created["status"] != "initiated" {
		t.Fatalf("expected status initiated, got %v", created["status"])
	}

	rec = f.do(t, http.MethodPost, "/adverse-actions/"+id+"/send-pre-notice", map[string]string{"method": "email"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 sending pre-notice, got %d: %s", rec.Code, rec.Body.String())
	}
	// Inside the waiting window the exposed status is the derived one.
	if got := decodeAction(t, rec)["status"]; got != "waiting_period" {
		t.Fatalf("expected derived status waiting_period, got %v", got)
	}

	rec = f.do(t, http.MethodPost, "/adverse-actions/"+id+"/candidate-response", map[string]string{
		"response": "dispute",
		"details":  "conviction was vacated",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 recording response, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/adverse-actions/"+id+"/send-final-notice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 sending final notice, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/adverse-actions/"+id+"/final-decision", map[string]string{
		"decision": "withdraw",
		"notes":    "reviewed in full",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 recording decision, got %d: %s", rec.Code, rec.Body.String())
	}
	final := decodeAction(t, rec)
	if final["status"] != "completed" {
		t.Fatalf("expected status completed, got %v", final["status"])
	}
	if final["final_decision"] != "withdraw" {
		t.Fatalf("expected final_decision withdraw, got %v", final["final_decision"])
	}

	rec = f.do(t, http.MethodGet, "/adverse-actions?order_id="+o.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing, got %d", rec.Code)
	}
	var list struct {
		AdverseActions []json.RawMessage `json:"adverse_actions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list.AdverseActions) != 1 {
		t.Fatalf("expected one adverse action, got %d", len(list.AdverseActions))
	}
}

func TestAdverseActionHandlerErrors(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t)

	t.Run("initiate without order_id", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/adverse-actions", map[string]string{})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("initiate for unknown order", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/adverse-actions", map[string]string{"order_id": uuid.New().String()})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("malformed adverse action id", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/adverse-actions/not-a-uuid/send-final-notice", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("guard violations map to 409", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/adverse-actions", map[string]string{"order_id": o.ID.String()})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		id := decodeAction(t, rec)["id"].(string)

		rec = f.do(t, http.MethodPost, "/adverse-actions/"+id+"/send-final-notice", nil)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409 for premature final notice, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("uncontactable applicant maps to 422", func(t *testing.T) {
		bare := &order.Order{ID: uuid.New(), ClientID: uuid.New(), Status: order.StatusRequiresAction}
		if err := f.orders.Create(context.Background(), bare); err != nil {
			t.Fatalf("failed to seed order: %v", err)
		}
		rec := f.do(t, http.MethodPost, "/adverse-actions", map[string]string{"order_id": bare.ID.String()})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}
