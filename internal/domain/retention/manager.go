package retention

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"clinicbook/internal/domain/audit"
)

// RecordStore resolves and destroys regulated records. Implementations own
// the actual storage; the manager only computes cutoffs and dispatches by
// purge method.
type RecordStore interface {
	FindExpired(ctx context.Context, category string, cutoff time.Time) ([]string, error)
	SecureDelete(ctx context.Context, category string, ids []string) (int, error)
	Anonymize(ctx context.Context, category string, ids []string) (int, error)
	Archive(ctx context.Context, category string, ids []string) (int, error)
}

type CategoryCutoff struct {
	Category      string      `json:"category"`
	PurgeMethod   PurgeMethod `json:"purgeMethod"`
	RetentionDays int         `json:"retentionDays"`
	Cutoff        time.Time   `json:"cutoff"`
}

type PurgeResult struct {
	Success     bool           `json:"success"`
	PurgedItems int            `json:"purgedItems"`
	PerCategory map[string]int `json:"perCategory"`
	Errors      []string       `json:"errors,omitempty"`
}

type CategoryReport struct {
	Category        string      `json:"category"`
	RetentionDays   int         `json:"retentionDays"`
	PurgeMethod     PurgeMethod `json:"purgeMethod"`
	LegalBasis      string      `json:"legalBasis"`
	ConsentRequired bool        `json:"consentRequired"`
	// UpcomingCutoff is where the purge line will sit 30 days from now;
	// records older than it are due to expire within the warning window.
	UpcomingCutoff time.Time `json:"upcomingCutoff"`
}

type Report struct {
	GeneratedAt      time.Time        `json:"generatedAt"`
	PolicyCount      int              `json:"policyCount"`
	Categories       []CategoryReport `json:"categories"`
	ComplianceStatus string           `json:"complianceStatus"`
}

// Manager schedules and executes retention purges. Runs must be serialized
// by the caller; the manager itself holds no cross-run lock.
type Manager struct {
	policies []Policy
	store    RecordStore
	ledger   *audit.Ledger
	now      func() time.Time
}

type ManagerOption func(*Manager)

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(policies []Policy, store RecordStore, ledger *audit.Ledger, opts ...ManagerOption) *Manager {
	m := &Manager{policies: policies, store: store, ledger: ledger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Policies() []Policy {
	out := make([]Policy, len(m.policies))
	copy(out, m.policies)
	return out
}

// DataForPurge computes the per-category cutoff dates. The paired storage
// query resolving concrete record ids happens inside ExecutePurge.
func (m *Manager) DataForPurge() []CategoryCutoff {
	now := m.now()
	out := make([]CategoryCutoff, 0, len(m.policies))
	for _, p := range m.policies {
		out = append(out, CategoryCutoff{
			Category:      p.Category,
			PurgeMethod:   p.PurgeMethod,
			RetentionDays: p.RetentionDays,
			Cutoff:        now.AddDate(0, 0, -p.RetentionDays),
		})
	}
	return out
}

// ExecutePurge walks every category, destroys expired records by the
// category's method, and audits each purged category at high risk. Category
// failures are collected, never fatal to the rest of the run. Categories
// with nothing expired are skipped without an event or a count.
func (m *Manager) ExecutePurge(ctx context.Context, src audit.Source) PurgeResult {
	result := PurgeResult{Success: true, PerCategory: map[string]int{}}

	for _, cutoff := range m.DataForPurge() {
		ids, err := m.store.FindExpired(ctx, cutoff.Category, cutoff.Cutoff)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", cutoff.Category, err))
			continue
		}
		if len(ids) == 0 {
			continue
		}

		purged, err := m.dispatch(ctx, cutoff.PurgeMethod, cutoff.Category, ids)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", cutoff.Category, err))
			continue
		}

		result.PurgedItems += purged
		result.PerCategory[cutoff.Category] = purged

		m.ledger.Log(audit.Event{
			ActorID:       src.ActorID,
			ActorRole:     src.Role,
			Action:        audit.ActionRetentionPurge,
			Resource:      cutoff.Category,
			ResourceID:    strconv.Itoa(purged),
			Origin:        src.Origin,
			ClientInfo:    src.ClientInfo,
			SessionID:     src.SessionID,
			Success:       true,
			RiskLevel:     audit.RiskHigh,
			PHIAccessed:   true,
			Justification: string(cutoff.PurgeMethod),
		})
	}
	return result
}

func (m *Manager) dispatch(ctx context.Context, method PurgeMethod, category string, ids []string) (int, error) {
	switch method {
	case MethodSecureDelete:
		return m.store.SecureDelete(ctx, category, ids)
	case MethodAnonymize:
		return m.store.Anonymize(ctx, category, ids)
	case MethodArchive:
		return m.store.Archive(ctx, category, ids)
	default:
		return 0, fmt.Errorf("unknown purge method %q", method)
	}
}

// GenerateRetentionReport summarizes the catalogue and flags what expires
// within the next 30 days.
func (m *Manager) GenerateRetentionReport() Report {
	now := m.now()
	report := Report{
		GeneratedAt:      now.UTC(),
		PolicyCount:      len(m.policies),
		ComplianceStatus: "compliant",
	}
	for _, p := range m.policies {
		report.Categories = append(report.Categories, CategoryReport{
			Category:        p.Category,
			RetentionDays:   p.RetentionDays,
			PurgeMethod:     p.PurgeMethod,
			LegalBasis:      p.LegalBasis,
			ConsentRequired: p.ConsentRequired,
			UpcomingCutoff:  now.AddDate(0, 0, 30-p.RetentionDays),
		})
	}
	return report
}
