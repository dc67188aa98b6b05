package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clearvet/internal/adjudication"
	"clearvet/internal/platform/middleware"
	dErrors "clearvet/pkg/domain-errors"
	"clearvet/pkg/platform/httputil"
)

// Handler wires adjudication endpoints to the adjudication service.
type Handler struct {
	service *adjudication.Service
	logger  *slog.Logger
}

// New constructs an adjudication handler.
func New(service *adjudication.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts adjudication endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/adjudication/run", h.handleRun)
	r.Post("/adjudication/order/{id}/override", h.handleOverride)
	r.Get("/adjudication/pending", h.handlePending)
	r.Get("/adjudication/order/{id}/decisions", h.handleHistory)
}

// actor identifies the staff member driving an operation. Authentication is
// owned by the surrounding platform; it forwards the verified identity in a
// header.
func actor(r *http.Request) string {
	if staffID := r.Header.Get("X-Staff-ID"); staffID != "" {
		return staffID
	}
	return "system"
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[*RunRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decision, err := h.service.RunAdjudication(ctx, req.OrderID, req.MatrixID, actor(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "adjudication run failed",
			"request_id", requestID,
			"order_id", req.OrderID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, decision)
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid order id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[*OverrideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decision, err := h.service.Override(ctx, orderID, req.Decision, req.Notes, actor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.service.ListPending(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid order id"))
		return
	}
	decisions, err := h.service.ListByOrder(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}
