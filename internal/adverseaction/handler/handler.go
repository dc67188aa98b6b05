package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clearvet/internal/adverseaction"
	"clearvet/internal/platform/middleware"
	dErrors "clearvet/pkg/domain-errors"
	"clearvet/pkg/platform/httputil"
)

// Handler wires adverse-action endpoints to the adverse-action service.
type Handler struct {
	service *adverseaction.Service
	logger  *slog.Logger
	clock   func() time.Time
}

type Option func(*Handler)

// WithClock sets the clock used for status derivation, for testability.
func WithClock(clock func() time.Time) Option {
	return func(h *Handler) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// New constructs an adverse-action handler.
func New(service *adverseaction.Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger, clock: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts adverse-action endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/adverse-actions", h.handleInitiate)
	r.Get("/adverse-actions", h.handleListByOrder)
	r.Get("/adverse-actions/{id}", h.handleGet)
	r.Post("/adverse-actions/{id}/send-pre-notice", h.handleSendPreNotice)
	r.Post("/adverse-actions/{id}/candidate-response", h.handleCandidateResponse)
	r.Post("/adverse-actions/{id}/send-final-notice", h.handleSendFinalNotice)
	r.Post("/adverse-actions/{id}/final-decision", h.handleFinalDecision)
	r.Post("/adverse-actions/{id}/cancel", h.handleCancel)
}

func actor(r *http.Request) string {
	if staffID := r.Header.Get("X-Staff-ID"); staffID != "" {
		return staffID
	}
	return "system"
}

// view renders an adverse action with the derived status substituted in, so
// clients observe waiting_period without the store ever holding it.
func (h *Handler) view(a *adverseaction.AdverseAction) *adverseaction.AdverseAction {
	cp := *a
	cp.Status = a.EffectiveStatus(h.clock())
	return &cp
}

func (h *Handler) views(actions []*adverseaction.AdverseAction) []*adverseaction.AdverseAction {
	out := make([]*adverseaction.AdverseAction, 0, len(actions))
	for _, a := range actions {
		out = append(out, h.view(a))
	}
	return out
}

func actionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid adverse action id")
	}
	return id, nil
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[*InitiateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	a, err := h.service.Initiate(ctx, req.OrderID, actor(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "adverse action initiation failed",
			"request_id", requestID,
			"order_id", req.OrderID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, h.view(a))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := actionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.view(a))
}

func (h *Handler) handleListByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(r.URL.Query().Get("order_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "order_id query parameter is required"))
		return
	}
	actions, err := h.service.ListByOrder(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"adverse_actions": h.views(actions)})
}

func (h *Handler) handleSendPreNotice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, err := actionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[*SendPreNoticeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	a, err := h.service.SendPreNotice(ctx, id, req.Method, actor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.view(a))
}

func (h *Handler) handleCandidateResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, err := actionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[*CandidateResponseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	a, err := h.service.RecordCandidateResponse(ctx, id, req.Response, req.Details, req.Notes, actor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.view(a))
}

func (h *Handler) handleSendFinalNotice(w http.ResponseWriter, r *http.Request) {
	id, err := actionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.service.SendFinalNotice(r.Context(), id, actor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.view(a))
}

func (h *Handler) handleFinalDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, err := actionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[*FinalDecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	a, err := h.service.RecordFinalDecision(ctx, id, req.Decision, req.Notes, actor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.view(a))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, err := actionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[*CancelRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	a, err := h.service.Cancel(ctx, id, req.Reason, actor(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.view(a))
}
