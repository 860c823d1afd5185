package accesshandler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clinicbook/internal/domain/access"
	"clinicbook/internal/requestctx"
	"clinicbook/internal/transport/http/api"
	"clinicbook/internal/transport/http/middleware"
)

type Handler struct {
	Engine *access.Engine
}

func NewHandler(engine *access.Engine) *Handler {
	return &Handler{Engine: engine}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/access/report", h.HandleReport)
	r.Post("/access/session/validate", h.HandleValidateSession)
}

func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	query := r.URL.Query()

	filter := access.ReportFilter{ActorID: query.Get("actorId")}
	var err error
	if filter.From, err = parseTime(query.Get("from")); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_filter", "from must be RFC3339", reqID)
		return
	}
	if filter.To, err = parseTime(query.Get("to")); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_filter", "to must be RFC3339", reqID)
		return
	}

	report := h.Engine.GenerateAccessReport(filter)

	if query.Get("format") == "pdf" {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="access-report.pdf"`)
		if err := access.WriteReportPDF(report, w); err != nil {
			slog.Warn("report pdf render failed", "err", err, "requestId", reqID)
		}
		return
	}
	api.Success(w, report, reqID)
}

type validateSessionRequest struct {
	ActorID      string    `json:"actorId"`
	Role         string    `json:"role"`
	SessionStart time.Time `json:"sessionStart"`
}

// HandleValidateSession checks an arbitrary session against role limits.
// Absent a body it validates the caller's own session.
func (h *Handler) HandleValidateSession(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())

	var payload validateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		actor, ok := middleware.GetActor(r.Context())
		if !ok {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
			return
		}
		payload = validateSessionRequest{ActorID: actor.ActorID, Role: actor.Role, SessionStart: actor.SessionStart}
	}

	api.Success(w, h.Engine.ValidateSession(payload.ActorID, payload.SessionStart, payload.Role), reqID)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
