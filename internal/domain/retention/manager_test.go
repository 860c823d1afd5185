package retention

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clinicbook/internal/domain/audit"
)

type fakeStore struct {
	expired map[string][]string
	findErr map[string]error
	methodErr map[string]error
	calls   []string
}

func (f *fakeStore) FindExpired(_ context.Context, category string, _ time.Time) ([]string, error) {
	if err := f.findErr[category]; err != nil {
		return nil, err
	}
	return f.expired[category], nil
}

func (f *fakeStore) purge(category string, ids []string, method string) (int, error) {
	f.calls = append(f.calls, method+":"+category)
	if err := f.methodErr[category]; err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (f *fakeStore) SecureDelete(_ context.Context, category string, ids []string) (int, error) {
	return f.purge(category, ids, "secure_delete")
}

func (f *fakeStore) Anonymize(_ context.Context, category string, ids []string) (int, error) {
	return f.purge(category, ids, "anonymize")
}

func (f *fakeStore) Archive(_ context.Context, category string, ids []string) (int, error) {
	return f.purge(category, ids, "archive")
}

var purgeSrc = audit.Source{ActorID: "admin-1", Role: "admin", Origin: "10.0.0.1", SessionID: "sess-9"}

func testManager(t *testing.T, store RecordStore, now time.Time) (*Manager, *audit.Ledger) {
	t.Helper()
	ledger, err := audit.NewLedger(100)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return NewManager(DefaultPolicies(), store, ledger, WithManagerClock(func() time.Time { return now })), ledger
}

func TestDataForPurgeCutoffs(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	m, _ := testManager(t, &fakeStore{}, now)

	cutoffs := m.DataForPurge()
	if len(cutoffs) != len(DefaultPolicies()) {
		t.Fatalf("expected %d cutoffs, got %d", len(DefaultPolicies()), len(cutoffs))
	}
	for _, c := range cutoffs {
		want := now.AddDate(0, 0, -c.RetentionDays)
		if !c.Cutoff.Equal(want) {
			t.Fatalf("%s cutoff = %v, want %v", c.Category, c.Cutoff, want)
		}
		if c.RetentionDays <= 0 {
			t.Fatalf("%s has non-positive retention", c.Category)
		}
	}
}

func TestExecutePurgeDispatchesByMethod(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{expired: map[string][]string{
		CategoryAppointments: {"a-1", "a-2"},
		CategoryAuditLogs:    {"e-1"},
		CategoryCredentials:  {"u-1"},
	}}
	m, ledger := testManager(t, store, now)

	result := m.ExecutePurge(context.Background(), purgeSrc)
	if !result.Success {
		t.Fatalf("expected success, got errors %v", result.Errors)
	}
	if result.PurgedItems != 4 {
		t.Fatalf("expected 4 purged items, got %d", result.PurgedItems)
	}
	if result.PerCategory[CategoryAppointments] != 2 {
		t.Fatalf("per-category wrong: %+v", result.PerCategory)
	}

	wantCalls := map[string]bool{
		"secure_delete:" + CategoryAppointments: true,
		"archive:" + CategoryAuditLogs:          true,
		"anonymize:" + CategoryCredentials:      true,
	}
	for _, call := range store.calls {
		if !wantCalls[call] {
			t.Fatalf("unexpected dispatch %q", call)
		}
		delete(wantCalls, call)
	}
	if len(wantCalls) != 0 {
		t.Fatalf("missing dispatches: %v", wantCalls)
	}

	events := ledger.Events(audit.Filter{Action: audit.ActionRetentionPurge})
	if len(events) != 3 {
		t.Fatalf("expected one event per purged category, got %d", len(events))
	}
	for _, e := range events {
		if e.RiskLevel != audit.RiskHigh || !e.PHIAccessed {
			t.Fatalf("purge event shape wrong: %+v", e)
		}
	}
}

func TestExecutePurgeSkipsEmptyCategories(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{expired: map[string][]string{}}
	m, ledger := testManager(t, store, now)

	result := m.ExecutePurge(context.Background(), purgeSrc)
	if !result.Success || result.PurgedItems != 0 {
		t.Fatalf("empty purge should succeed with zero items: %+v", result)
	}
	if len(store.calls) != 0 {
		t.Fatalf("no purge method should run for empty categories: %v", store.calls)
	}
	if events := ledger.Events(audit.Filter{Action: audit.ActionRetentionPurge}); len(events) != 0 {
		t.Fatalf("empty categories must not emit events, got %d", len(events))
	}
}

func TestExecutePurgeCollectsErrorsAndContinues(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		expired: map[string][]string{
			CategoryAppointments: {"a-1"},
			CategorySessions:     {"s-1", "s-2"},
		},
		findErr:   map[string]error{CategoryCommunications: errors.New("table gone")},
		methodErr: map[string]error{CategoryAppointments: errors.New("disk full")},
	}
	m, ledger := testManager(t, store, now)

	result := m.ExecutePurge(context.Background(), purgeSrc)
	if result.Success {
		t.Fatal("expected failure when any category errors")
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 collected errors, got %v", result.Errors)
	}
	for _, msg := range result.Errors {
		if !strings.Contains(msg, ":") {
			t.Fatalf("error missing category prefix: %q", msg)
		}
	}

	// Sessions still purged despite sibling failures.
	if result.PurgedItems != 2 || result.PerCategory[CategorySessions] != 2 {
		t.Fatalf("healthy category not purged: %+v", result)
	}
	if events := ledger.Events(audit.Filter{Action: audit.ActionRetentionPurge}); len(events) != 1 {
		t.Fatalf("only the purged category should audit, got %d events", len(events))
	}
}

func TestGenerateRetentionReport(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	m, _ := testManager(t, &fakeStore{}, now)

	report := m.GenerateRetentionReport()
	if report.PolicyCount != len(DefaultPolicies()) {
		t.Fatalf("policy count = %d", report.PolicyCount)
	}
	if report.ComplianceStatus != "compliant" {
		t.Fatalf("status = %q", report.ComplianceStatus)
	}
	for _, c := range report.Categories {
		want := now.AddDate(0, 0, 30-c.RetentionDays)
		if !c.UpcomingCutoff.Equal(want) {
			t.Fatalf("%s upcoming cutoff = %v, want %v", c.Category, c.UpcomingCutoff, want)
		}
	}
}
