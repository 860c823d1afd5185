package authhandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinicbook/internal/auth"
	"clinicbook/internal/domain/access"
	"clinicbook/internal/domain/audit"
	"clinicbook/internal/domain/mfa"
	"clinicbook/internal/requestctx"
	"clinicbook/internal/transport/http/api"
	"clinicbook/internal/transport/http/middleware"
)

type Handler struct {
	DB       *pgxpool.Pool
	Secret   string
	TokenTTL time.Duration
	Ledger   *audit.Ledger
	MFA      *mfa.Service
	Engine   *access.Engine
}

func NewHandler(db *pgxpool.Pool, secret string, tokenTTL time.Duration, ledger *audit.Ledger, mfaSvc *mfa.Service, engine *access.Engine) *Handler {
	return &Handler{DB: db, Secret: secret, TokenTTL: tokenTTL, Ledger: ledger, MFA: mfaSvc, Engine: engine}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfaCode"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	var id, roleName, hash string
	var mfaEnabled bool
	err := h.DB.QueryRow(r.Context(), `
    SELECT id, role, password_hash, mfa_enabled
    FROM users
    WHERE email = $1 AND status = 'active'
  `, payload.Email).Scan(&id, &roleName, &hash, &mfaEnabled)
	if err != nil {
		h.Ledger.LogFailedLogin(payload.Email, r.RemoteAddr, r.UserAgent())
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}

	if err := auth.CheckPassword(hash, payload.Password); err != nil {
		h.Ledger.LogFailedLogin(payload.Email, r.RemoteAddr, r.UserAgent())
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}

	role, known := h.Engine.Role(roleName)
	if !known {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}

	src := audit.Source{ActorID: id, Role: roleName, Origin: r.RemoteAddr, ClientInfo: r.UserAgent()}
	if mfaEnabled || role.RequireMFA {
		if payload.MFACode == "" {
			api.Fail(w, http.StatusUnauthorized, "mfa_required", "mfa code required", reqID)
			return
		}
		if !h.MFA.VerifyTOTP(r.Context(), id, payload.MFACode, src) && !h.MFA.VerifyBackupCode(r.Context(), id, payload.MFACode, src) {
			api.Fail(w, http.StatusUnauthorized, "mfa_invalid", "invalid mfa code", reqID)
			return
		}
	}

	sessionID := uuid.NewString()
	expires := time.Now().Add(h.TokenTTL)
	if _, err := h.DB.Exec(r.Context(), `
    INSERT INTO sessions (id, user_id, token_hash, expires_at)
    VALUES ($1,$2,$3,$4)
  `, sessionID, id, auth.HashToken(sessionID), expires); err != nil {
		api.Fail(w, http.StatusInternalServerError, "session_error", "failed to start session", reqID)
		return
	}

	token, err := auth.GenerateToken(h.Secret, auth.Claims{ActorID: id, Role: roleName, SessionID: sessionID}, h.TokenTTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", reqID)
		return
	}

	src.SessionID = sessionID
	h.Ledger.LogSuccessfulAccess(src, "LOGIN_SUCCESS", "sessions")
	api.Success(w, map[string]any{
		"token":             token,
		"role":              roleName,
		"sessionId":         sessionID,
		"maxSessionMinutes": role.MaxSessionMinutes,
		"mfaRequired":       role.RequireMFA,
	}, reqID)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	if _, err := h.DB.Exec(r.Context(), `
    DELETE FROM sessions
    WHERE id = $1 AND user_id = $2
  `, actor.SessionID, actor.ActorID); err != nil {
		api.Fail(w, http.StatusInternalServerError, "session_error", "failed to end session", reqID)
		return
	}

	h.Ledger.LogSuccessfulAccess(audit.Source{
		ActorID:    actor.ActorID,
		Role:       actor.Role,
		Origin:     r.RemoteAddr,
		ClientInfo: r.UserAgent(),
		SessionID:  actor.SessionID,
	}, "LOGOUT", "sessions")
	api.Success(w, map[string]string{"status": "logged out"}, reqID)
}
