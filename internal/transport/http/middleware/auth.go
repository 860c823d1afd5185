package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"clinicbook/internal/auth"
	"clinicbook/internal/domain/access"
	"clinicbook/internal/transport/http/api"
)

type ctxKey int

const ctxKeyActor ctxKey = iota

// ActorContext is the authenticated caller attached to the request.
// SessionStart comes from the token's issued-at claim and feeds the
// role-based session duration check.
type ActorContext struct {
	ActorID      string
	Role         string
	SessionID    string
	SessionStart time.Time
}

func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			actor := ActorContext{
				ActorID:   claims.ActorID,
				Role:      claims.Role,
				SessionID: claims.SessionID,
			}
			if claims.IssuedAt != nil {
				actor.SessionStart = claims.IssuedAt.Time
			}
			ctx := context.WithValue(r.Context(), ctxKeyActor, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithActor(ctx context.Context, actor ActorContext) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

func GetActor(ctx context.Context) (ActorContext, bool) {
	actor, ok := ctx.Value(ctxKeyActor).(ActorContext)
	return actor, ok
}

// RequireSession rejects unauthenticated requests and requests whose session
// has outlived the role's maximum duration. The duration check is what makes
// the advisory session limit binding at the transport edge.
func RequireSession(engine *access.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}
			status := engine.ValidateSession(actor.ActorID, actor.SessionStart, actor.Role)
			if !status.Valid {
				api.Fail(w, http.StatusUnauthorized, "session_expired", status.Reason, GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
