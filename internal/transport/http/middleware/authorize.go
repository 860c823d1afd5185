package middleware

import (
	"net/http"

	"clinicbook/internal/domain/access"
	"clinicbook/internal/platform/metrics"
	"clinicbook/internal/transport/http/api"
)

// Authorize gates a route behind the policy engine. Every request through it
// produces a full audited authorization decision.
func Authorize(engine *access.Engine, collector *metrics.Collector, resource string, op access.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}

			decision := engine.Authorize(access.AuthorizeRequest{
				ActorID:    actor.ActorID,
				Role:       actor.Role,
				Resource:   resource,
				Operation:  op,
				Purpose:    r.Header.Get("X-Access-Purpose"),
				Origin:     r.RemoteAddr,
				ClientInfo: r.UserAgent(),
				SessionID:  actor.SessionID,
			})
			if collector != nil {
				collector.RecordDecision(decision.Allowed, string(engine.RiskLevel(actor.Role, resource, op)))
			}
			if !decision.Allowed {
				api.Fail(w, http.StatusForbidden, "forbidden", decision.Reason, GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
