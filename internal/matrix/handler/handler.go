package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clearvet/internal/matrix/service"
	"clearvet/internal/platform/middleware"
	dErrors "clearvet/pkg/domain-errors"
	"clearvet/pkg/platform/httputil"
)

// Handler wires matrix authoring endpoints to the matrix service.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

// New constructs a matrix handler.
func New(s *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: s, logger: logger}
}

// Register mounts matrix authoring routes. Callers wrap the router with the
// admin-token middleware; route paths carry no auth concerns.
func (h *Handler) Register(r chi.Router) {
	r.Get("/matrices", h.handleList)
	r.Post("/matrices", h.handleCreate)
	r.Get("/matrices/{id}", h.handleGet)
	r.Post("/matrices/{id}/rules", h.handleAddRule)
	r.Post("/matrices/{id}/activate", h.handleSetActive(true))
	r.Post("/matrices/{id}/deactivate", h.handleSetActive(false))
	r.Put("/rules/{id}", h.handleUpdateRule)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(r.URL.Query().Get("client_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "client_id query parameter is required"))
		return
	}
	matrices, err := h.service.ListMatrices(r.Context(), clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"matrices": matrices})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[*CreateMatrixRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	m, err := h.service.CreateMatrix(ctx, req.ClientID, req.Name, req.Description)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "matrix created",
		"request_id", requestID,
		"matrix_id", m.ID,
		"client_id", m.ClientID,
	)
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid matrix id"))
		return
	}
	m, err := h.service.GetMatrix(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) handleAddRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	matrixID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid matrix id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[*RuleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rule, err := h.service.AddRule(ctx, matrixID, req.Params())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "rule added",
		"request_id", requestID,
		"matrix_id", matrixID,
		"rule_id", rule.ID,
		"rule_order", rule.Order,
	)
	httputil.WriteJSON(w, http.StatusCreated, rule)
}

func (h *Handler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	ruleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid rule id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[*RuleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rule, err := h.service.UpdateRule(ctx, ruleID, req.Params())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rule)
}

func (h *Handler) handleSetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid matrix id"))
			return
		}
		m, err := h.service.SetActive(r.Context(), id, active)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, m)
	}
}
