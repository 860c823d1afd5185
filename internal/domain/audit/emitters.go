package audit

import (
	"reflect"
	"sort"
)

// LogPHIAccess records a read of protected health information, always at high
// risk with the PHI flag set.
func (l *Ledger) LogPHIAccess(src Source, resource, resourceID string, fields []string, justification string) Event {
	return l.Log(Event{
		ActorID:        src.ActorID,
		ActorRole:      src.Role,
		Action:         ActionPHIAccess,
		Resource:       resource,
		ResourceID:     resourceID,
		Origin:         src.Origin,
		ClientInfo:     src.ClientInfo,
		SessionID:      src.SessionID,
		FieldsAccessed: fields,
		Success:        true,
		RiskLevel:      RiskHigh,
		PHIAccessed:    true,
		Justification:  justification,
	})
}

// LogDataModification records a write to a protected record, capturing which
// fields actually changed between the before and after snapshots.
func (l *Ledger) LogDataModification(src Source, resource, resourceID string, before, after map[string]any) Event {
	return l.Log(Event{
		ActorID:        src.ActorID,
		ActorRole:      src.Role,
		Action:         ActionDataModification,
		Resource:       resource,
		ResourceID:     resourceID,
		Origin:         src.Origin,
		ClientInfo:     src.ClientInfo,
		SessionID:      src.SessionID,
		FieldsModified: DiffFields(before, after),
		Success:        true,
		RiskLevel:      RiskMedium,
		PHIAccessed:    true,
	})
}

func (l *Ledger) LogSuccessfulAccess(src Source, action, resource string) Event {
	return l.Log(Event{
		ActorID:    src.ActorID,
		ActorRole:  src.Role,
		Action:     action,
		Resource:   resource,
		Origin:     src.Origin,
		ClientInfo: src.ClientInfo,
		SessionID:  src.SessionID,
		Success:    true,
		RiskLevel:  RiskLow,
	})
}

func (l *Ledger) LogFailedAccess(src Source, action, resource, reason string) Event {
	return l.Log(Event{
		ActorID:       src.ActorID,
		ActorRole:     src.Role,
		Action:        action,
		Resource:      resource,
		Origin:        src.Origin,
		ClientInfo:    src.ClientInfo,
		SessionID:     src.SessionID,
		Success:       false,
		RiskLevel:     RiskHigh,
		Justification: reason,
	})
}

// LogFailedLogin is the security-event entry point for credential failures.
// The actor id may be the attempted identifier rather than a known user.
func (l *Ledger) LogFailedLogin(attemptedID, origin, clientInfo string) Event {
	return l.Log(Event{
		ActorID:    attemptedID,
		Action:     ActionLoginFailed,
		Origin:     origin,
		ClientInfo: clientInfo,
		Success:    false,
		RiskLevel:  RiskMedium,
	})
}

// LogRateLimited records a rate-limit hit on a sensitive endpoint.
func (l *Ledger) LogRateLimited(key, origin, resource string) Event {
	return l.Log(Event{
		ActorID:   key,
		Action:    ActionRateLimited,
		Resource:  resource,
		Origin:    origin,
		Success:   false,
		RiskLevel: RiskMedium,
	})
}

// DiffFields returns the sorted set of keys whose values differ between the
// two snapshots, including keys present in only one of them.
func DiffFields(before, after map[string]any) []string {
	changed := map[string]struct{}{}
	for key, prev := range before {
		next, ok := after[key]
		if !ok || !reflect.DeepEqual(prev, next) {
			changed[key] = struct{}{}
		}
	}
	for key := range after {
		if _, ok := before[key]; !ok {
			changed[key] = struct{}{}
		}
	}
	if len(changed) == 0 {
		return nil
	}
	out := make([]string, 0, len(changed))
	for key := range changed {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
