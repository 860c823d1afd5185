package audit

import "time"

type Risk string

const (
	RiskLow      Risk = "low"
	RiskMedium   Risk = "medium"
	RiskHigh     Risk = "high"
	RiskCritical Risk = "critical"
)

const (
	ActionUnauthorizedAccess = "UNAUTHORIZED_ACCESS_ATTEMPT"
	ActionLoginFailed        = "LOGIN_FAILED"
	ActionRateLimited        = "RATE_LIMIT_EXCEEDED"
	ActionPHIAccess          = "PHI_ACCESS"
	ActionDataModification   = "DATA_MODIFICATION"
	ActionMFADisabled        = "MFA_DISABLED"
	ActionRetentionPurge     = "RETENTION_PURGE_EXECUTED"
)

// criticalActions always trigger the alert sink regardless of the event's
// computed risk level.
var criticalActions = map[string]struct{}{
	ActionUnauthorizedAccess: {},
	ActionMFADisabled:        {},
	ActionRetentionPurge:     {},
}

// Event is an immutable ledger record. IntegrityHash is computed over the
// canonical serialization of every other field and must recompute to the same
// value for the event to be considered untampered.
type Event struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ActorID        string    `json:"actorId"`
	ActorRole      string    `json:"actorRole"`
	Action         string    `json:"action"`
	Resource       string    `json:"resource"`
	ResourceID     string    `json:"resourceId,omitempty"`
	Origin         string    `json:"origin"`
	ClientInfo     string    `json:"clientInfo"`
	SessionID      string    `json:"sessionId"`
	FieldsAccessed []string  `json:"fieldsAccessed,omitempty"`
	FieldsModified []string  `json:"fieldsModified,omitempty"`
	Success        bool      `json:"success"`
	RiskLevel      Risk      `json:"riskLevel"`
	PHIAccessed    bool      `json:"phiAccessed"`
	Justification  string    `json:"justification,omitempty"`
	IntegrityHash  string    `json:"integrityHash,omitempty"`
}

// Source identifies who performed an action and over which channel. It feeds
// the actor-side fields of every emitted event.
type Source struct {
	ActorID    string
	Role       string
	Origin     string
	ClientInfo string
	SessionID  string
}

type Filter struct {
	ActorID   string
	Action    string
	From      time.Time
	To        time.Time
	RiskLevel Risk
	PHIOnly   bool
}

type Statistics struct {
	WindowDays     int          `json:"windowDays"`
	TotalEvents    int          `json:"totalEvents"`
	PHIAccessCount int          `json:"phiAccessCount"`
	FailedLogins   int          `json:"failedLogins"`
	CriticalEvents int          `json:"criticalEvents"`
	UniqueActors   int          `json:"uniqueActors"`
	RiskBreakdown  map[Risk]int `json:"riskBreakdown"`
}
