package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clearvet/internal/matrix/service"
	"clearvet/internal/matrix/store"
	"clearvet/internal/platform/middleware"
)

const adminToken = "secret-token"

func newMatrixRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(service.New(store.NewInMemory(), logger), logger)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(adminToken, logger))
		h.Register(r)
	})
	return r
}

func doAdmin(t *testing.T, router chi.Router, method, path string, payload any) *httptest.ResponseRecorder {
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
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAdminTokenRequired(t *testing.T) {
	router := newMatrixRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/matrices/"+uuid.New().String(), nil)
	// No admin token header set
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when admin token missing, got %d", rec.Code)
	}
}

func TestMatrixAuthoringViaHandlers(t *testing.T) {
	router := newMatrixRouter(t)
	clientID := uuid.New()

	rec := doAdmin(t, router, http.MethodPost, "/matrices", map[string]any{
		"client_id":   clientID,
		"name":        "Driver Matrix",
		"description": "baseline rules for drivers",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating matrix, got %d: %s", rec.Code, rec.Body.String())
	}
	var matrix struct {
		ID     uuid.UUID `json:"id"`
		Active bool      `json:"active"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&matrix); err != nil {
		t.Fatalf("failed to decode matrix: %v", err)
	}
	if matrix.Active {
		t.Fatalf("expected new matrix to be inactive")
	}

	rec = doAdmin(t, router, http.MethodPost, "/matrices/"+matrix.ID.String()+"/rules", map[string]any{
		"order":    1,
		"severity": "critical",
		"decision": "auto_reject",
		"condition": map[string]any{
			"field": "finding_count", "operator": "greater_than", "value": 0,
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 adding rule, got %d: %s", rec.Code, rec.Body.String())
	}
	var rule struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&rule); err != nil {
		t.Fatalf("failed to decode rule: %v", err)
	}

	// Duplicate order rejected.
	rec = doAdmin(t, router, http.MethodPost, "/matrices/"+matrix.ID.String()+"/rules", map[string]any{
		"order": 1, "decision": "manual_review",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate rule order, got %d", rec.Code)
	}

	rec = doAdmin(t, router, http.MethodPut, "/rules/"+rule.ID.String(), map[string]any{
		"order": 2, "severity": "major", "decision": "manual_review",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating rule, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doAdmin(t, router, http.MethodPost, "/matrices/"+matrix.ID.String()+"/activate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 activating, got %d", rec.Code)
	}

	rec = doAdmin(t, router, http.MethodGet, "/matrices/"+matrix.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching matrix, got %d", rec.Code)
	}
	var fetched struct {
		Active bool `json:"active"`
		Rules  []struct {
			Order    int    `json:"order"`
			Severity string `json:"severity"`
		} `json:"rules"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&fetched); err != nil {
		t.Fatalf("failed to decode matrix: %v", err)
	}
	if !fetched.Active {
		t.Fatalf("expected matrix to be active")
	}
	if len(fetched.Rules) != 1 || fetched.Rules[0].Order != 2 || fetched.Rules[0].Severity != "major" {
		t.Fatalf("unexpected rules after update: %+v", fetched.Rules)
	}

	rec = doAdmin(t, router, http.MethodGet, "/matrices?client_id="+clientID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing matrices, got %d", rec.Code)
	}
}

func TestMatrixHandlerValidation(t *testing.T) {
	router := newMatrixRouter(t)

	t.Run("create without name", func(t *testing.T) {
		rec := doAdmin(t, router, http.MethodPost, "/matrices", map[string]any{"client_id": uuid.New()})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown matrix id", func(t *testing.T) {
		rec := doAdmin(t, router, http.MethodGet, "/matrices/"+uuid.New().String(), nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("malformed matrix id", func(t *testing.T) {
		rec := doAdmin(t, router, http.MethodGet, "/matrices/not-a-uuid", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rule without decision", func(t *testing.T) {
		rec := doAdmin(t, router, http.MethodPost, "/matrices/"+uuid.New().String()+"/rules", map[string]any{"order": 1})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
