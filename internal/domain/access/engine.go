package access

import (
	"fmt"
	"strings"
	"time"

	"clinicbook/internal/domain/audit"
)

const (
	ReasonInvalidRole    = "invalid role"
	ReasonNotGranted     = "permission not granted"
	ReasonOwnDataOnly    = "Access limited to own data"
	ReasonPurposeDenied  = "Purpose not permitted"
	ReasonOutsideHours   = "Access not permitted at this hour"
	ReasonSessionExpired = "session exceeded maximum duration"
)

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// EvalContext carries the per-request facts a permission's conditions are
// checked against. Now defaults to the engine clock when zero.
type EvalContext struct {
	ActorID         string
	ResourceOwnerID string
	Purpose         string
	Now             time.Time
}

type AuthorizeRequest struct {
	ActorID         string
	Role            string
	Resource        string
	Operation       Operation
	ResourceOwnerID string
	Purpose         string
	Justification   string
	Origin          string
	ClientInfo      string
	SessionID       string
}

type SessionStatus struct {
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason,omitempty"`
	TimeRemaining int    `json:"timeRemainingMinutes"`
}

// Engine decides whether an actor may perform an operation on a protected
// resource, and writes one audit event for every decision it makes.
type Engine struct {
	roles  map[string]Role
	ledger *audit.Ledger
	now    func() time.Time
}

type EngineOption func(*Engine)

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(roles []Role, ledger *audit.Ledger, opts ...EngineOption) *Engine {
	catalogue := make(map[string]Role, len(roles))
	for _, role := range roles {
		catalogue[role.Name] = role
	}
	e := &Engine{roles: catalogue, ledger: ledger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Role(name string) (Role, bool) {
	role, ok := e.roles[name]
	return role, ok
}

// Evaluate applies the role's permission list to the request. It fails closed
// on unknown roles and denies when no permission matches. Matching prefers an
// exact resource name over the wildcard; within each class the first listed
// permission wins.
func (e *Engine) Evaluate(roleName, resource string, op Operation, ctx EvalContext) Decision {
	role, ok := e.roles[roleName]
	if !ok {
		return Decision{Allowed: false, Reason: ReasonInvalidRole}
	}

	perm, ok := matchPermission(role.Permissions, resource, op)
	if !ok {
		return Decision{Allowed: false, Reason: ReasonNotGranted}
	}
	if perm.Conditions == nil {
		return Decision{Allowed: true}
	}

	cond := perm.Conditions
	if cond.OwnDataOnly && ctx.ResourceOwnerID != "" && ctx.ResourceOwnerID != ctx.ActorID {
		return Decision{Allowed: false, Reason: ReasonOwnDataOnly}
	}
	if len(cond.AllowedPurposes) > 0 && ctx.Purpose != "" && !containsString(cond.AllowedPurposes, ctx.Purpose) {
		return Decision{Allowed: false, Reason: ReasonPurposeDenied}
	}
	if cond.TimeWindow != nil {
		now := ctx.Now
		if now.IsZero() {
			now = e.now()
		}
		if !cond.TimeWindow.Contains(now.Hour()) {
			return Decision{Allowed: false, Reason: ReasonOutsideHours}
		}
	}
	return Decision{Allowed: true}
}

func matchPermission(perms []Permission, resource string, op Operation) (Permission, bool) {
	var wildcard *Permission
	for i := range perms {
		if perms[i].Operation != op {
			continue
		}
		switch perms[i].Resource {
		case resource:
			return perms[i], true
		case Wildcard:
			if wildcard == nil {
				wildcard = &perms[i]
			}
		}
	}
	if wildcard != nil {
		return *wildcard, true
	}
	return Permission{}, false
}

// Authorize evaluates the request and unconditionally records the decision.
// Denials additionally surface an UNAUTHORIZED_ACCESS_ATTEMPT event at
// critical risk, whatever the base operation's risk was.
func (e *Engine) Authorize(req AuthorizeRequest) Decision {
	decision := e.Evaluate(req.Role, req.Resource, req.Operation, EvalContext{
		ActorID:         req.ActorID,
		ResourceOwnerID: req.ResourceOwnerID,
		Purpose:         req.Purpose,
	})

	e.ledger.Log(audit.Event{
		ActorID:       req.ActorID,
		ActorRole:     req.Role,
		Action:        actionName(req.Operation, req.Resource),
		Resource:      req.Resource,
		Origin:        req.Origin,
		ClientInfo:    req.ClientInfo,
		SessionID:     req.SessionID,
		Success:       decision.Allowed,
		RiskLevel:     e.RiskLevel(req.Role, req.Resource, req.Operation),
		PHIAccessed:   IsProtectedResource(req.Resource),
		Justification: req.Justification,
	})

	if !decision.Allowed {
		e.ledger.Log(audit.Event{
			ActorID:       req.ActorID,
			ActorRole:     req.Role,
			Action:        audit.ActionUnauthorizedAccess,
			Resource:      req.Resource,
			Origin:        req.Origin,
			ClientInfo:    req.ClientInfo,
			SessionID:     req.SessionID,
			Success:       false,
			RiskLevel:     audit.RiskCritical,
			PHIAccessed:   IsProtectedResource(req.Resource),
			Justification: decision.Reason,
		})
	}
	return decision
}

// RiskLevel is a priority cascade, not a score: the first matching rule wins.
func (e *Engine) RiskLevel(roleName, resource string, op Operation) audit.Risk {
	switch {
	case op == OpDelete || op == OpExport:
		return audit.RiskCritical
	case IsProtectedResource(resource):
		return audit.RiskHigh
	case roleName == AdminRole:
		return audit.RiskMedium
	default:
		return audit.RiskLow
	}
}

// ValidateSession checks elapsed session time against the role's maximum.
// The check is advisory: callers must terminate sessions reported invalid.
func (e *Engine) ValidateSession(actorID string, sessionStart time.Time, roleName string) SessionStatus {
	role, ok := e.roles[roleName]
	if !ok {
		return SessionStatus{Valid: false, Reason: ReasonInvalidRole}
	}
	elapsed := int(e.now().Sub(sessionStart) / time.Minute)
	if elapsed >= role.MaxSessionMinutes {
		return SessionStatus{Valid: false, Reason: ReasonSessionExpired}
	}
	remaining := role.MaxSessionMinutes - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return SessionStatus{Valid: true, TimeRemaining: remaining}
}

func actionName(op Operation, resource string) string {
	return fmt.Sprintf("ACCESS_%s_%s", strings.ToUpper(string(op)), strings.ToUpper(resource))
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
