package mfahandler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clinicbook/internal/domain/audit"
	"clinicbook/internal/domain/mfa"
	"clinicbook/internal/requestctx"
	"clinicbook/internal/transport/http/api"
	"clinicbook/internal/transport/http/middleware"
)

type Handler struct {
	Service *mfa.Service
}

func NewHandler(service *mfa.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/mfa/enroll", h.HandleEnroll)
	r.Post("/mfa/verify", h.HandleVerify)
	r.Post("/mfa/backup", h.HandleBackupCode)
	r.Post("/mfa/enable", h.HandleEnable)
	r.Post("/mfa/disable", h.HandleDisable)
}

type codeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	actor, src, ok := actorSource(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	enrollment, err := h.Service.GenerateSecret(r.Context(), actor.ActorID, src)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_error", "failed to generate secret", reqID)
		return
	}
	// Backup codes appear in this response only; they are not retrievable later.
	api.Success(w, enrollment, reqID)
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, h.Service.VerifyTOTP)
}

func (h *Handler) HandleBackupCode(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, h.Service.VerifyBackupCode)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request, check func(context.Context, string, string, audit.Source) bool) {
	reqID := requestctx.GetRequestID(r.Context())
	actor, src, ok := actorSource(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var payload codeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Code == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "code is required", reqID)
		return
	}

	if !check(r.Context(), actor.ActorID, payload.Code, src) {
		api.Fail(w, http.StatusUnauthorized, "mfa_invalid", "invalid mfa code", reqID)
		return
	}
	api.Success(w, map[string]bool{"verified": true}, reqID)
}

func (h *Handler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	actor, src, ok := actorSource(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var payload codeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Code == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "code is required", reqID)
		return
	}

	if !h.Service.EnableMFA(r.Context(), actor.ActorID, payload.Code, src) {
		api.Fail(w, http.StatusUnauthorized, "mfa_invalid", "invalid mfa code", reqID)
		return
	}
	api.Success(w, map[string]bool{"enabled": true}, reqID)
}

func (h *Handler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	actor, src, ok := actorSource(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	if !h.Service.DisableMFA(r.Context(), actor.ActorID, src) {
		api.Fail(w, http.StatusBadRequest, "mfa_error", "mfa is not configured", reqID)
		return
	}
	api.Success(w, map[string]bool{"enabled": false}, reqID)
}

func actorSource(r *http.Request) (middleware.ActorContext, audit.Source, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		return middleware.ActorContext{}, audit.Source{}, false
	}
	return actor, audit.Source{
		ActorID:    actor.ActorID,
		Role:       actor.Role,
		Origin:     r.RemoteAddr,
		ClientInfo: r.UserAgent(),
		SessionID:  actor.SessionID,
	}, true
}
