package audithandler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"clinicbook/internal/domain/audit"
	"clinicbook/internal/requestctx"
	"clinicbook/internal/transport/http/api"
)

type Handler struct {
	Ledger *audit.Ledger
}

func NewHandler(ledger *audit.Ledger) *Handler {
	return &Handler{Ledger: ledger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/audit/events", h.HandleEvents)
	r.Get("/audit/statistics", h.HandleStatistics)
	r.Get("/audit/integrity", h.HandleIntegrity)
}

func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	query := r.URL.Query()

	filter := audit.Filter{
		ActorID:   query.Get("actorId"),
		Action:    query.Get("action"),
		RiskLevel: audit.Risk(query.Get("risk")),
		PHIOnly:   query.Get("phi") == "true",
	}
	var err error
	if filter.From, err = parseTime(query.Get("from")); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_filter", "from must be RFC3339", reqID)
		return
	}
	if filter.To, err = parseTime(query.Get("to")); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_filter", "to must be RFC3339", reqID)
		return
	}

	api.Success(w, h.Ledger.Events(filter), reqID)
}

func (h *Handler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.Fail(w, http.StatusBadRequest, "invalid_filter", "days must be a positive integer", reqID)
			return
		}
		days = parsed
	}
	api.Success(w, h.Ledger.Statistics(days), reqID)
}

func (h *Handler) HandleIntegrity(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	corrupted := h.Ledger.VerifyIntegrity()
	api.Success(w, map[string]any{
		"intact":       len(corrupted) == 0,
		"corruptedIds": corrupted,
	}, reqID)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
