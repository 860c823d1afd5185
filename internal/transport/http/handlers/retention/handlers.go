package retentionhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clinicbook/internal/domain/audit"
	"clinicbook/internal/domain/retention"
	"clinicbook/internal/platform/jobs"
	"clinicbook/internal/platform/metrics"
	"clinicbook/internal/requestctx"
	"clinicbook/internal/transport/http/api"
	"clinicbook/internal/transport/http/middleware"
)

type Handler struct {
	Manager   *retention.Manager
	Jobs      *jobs.Service
	Collector *metrics.Collector
}

func NewHandler(manager *retention.Manager, jobService *jobs.Service, collector *metrics.Collector) *Handler {
	return &Handler{Manager: manager, Jobs: jobService, Collector: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/retention/purge", h.HandlePurge)
	r.Get("/retention/purge-preview", h.HandlePurgePreview)
	r.Get("/retention/report", h.HandleReport)
}

func (h *Handler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	src := audit.Source{
		ActorID:    actor.ActorID,
		Role:       actor.Role,
		Origin:     r.RemoteAddr,
		ClientInfo: r.UserAgent(),
		SessionID:  actor.SessionID,
	}
	details, err := h.Jobs.RunPurgeNow(r.Context(), func(ctx context.Context) (any, error) {
		return h.Manager.ExecutePurge(ctx, src), nil
	})
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		api.Fail(w, http.StatusConflict, "purge_in_flight", "a purge run is already in progress", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "purge_error", "purge run failed", reqID)
		return
	}

	result, ok := details.(retention.PurgeResult)
	if !ok {
		api.Fail(w, http.StatusInternalServerError, "purge_error", "purge run failed", reqID)
		return
	}
	if h.Collector != nil {
		h.Collector.RecordPurgedItems(result.PurgedItems)
	}
	api.Success(w, result, reqID)
}

func (h *Handler) HandlePurgePreview(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Manager.DataForPurge(), requestctx.GetRequestID(r.Context()))
}

func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Manager.GenerateRetentionReport(), requestctx.GetRequestID(r.Context()))
}
