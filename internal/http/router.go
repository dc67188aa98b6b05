// Package http assembles the service's HTTP surface.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adjudicationhandler "clearvet/internal/adjudication/handler"
	adverseactionhandler "clearvet/internal/adverseaction/handler"
	matrixhandler "clearvet/internal/matrix/handler"
	"clearvet/internal/platform/middleware"
	"clearvet/internal/timeline"
	dErrors "clearvet/pkg/domain-errors"
	"clearvet/pkg/platform/httputil"
)

// Deps carries everything the router mounts.
type Deps struct {
	Matrix        *matrixhandler.Handler
	Adjudication  *adjudicationhandler.Handler
	AdverseAction *adverseactionhandler.Handler
	Timeline      *timeline.Recorder
	AdminToken    string
	Logger        *slog.Logger
	Health        func() error
}

// New builds the router with the shared middleware stack. Matrix authoring is
// admin-only; staff endpoints trust the upstream gateway's X-Staff-ID header.
func New(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))

	r.Get("/healthz", handleHealth(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(deps.AdminToken, deps.Logger))
		deps.Matrix.Register(r)
	})

	deps.Adjudication.Register(r)
	deps.AdverseAction.Register(r)

	r.Get("/orders/{id}/timeline", handleTimeline(deps.Timeline))

	return r
}

func handleHealth(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleTimeline(recorder *timeline.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid order id"))
			return
		}
		events, err := recorder.ListByOrder(r.Context(), orderID)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list timeline"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
	}
}
