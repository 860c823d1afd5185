package mfa

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"clinicbook/internal/domain/audit"
)

var testSrc = audit.Source{Role: "patient", Origin: "10.0.0.9", SessionID: "sess-1"}

var testCtx = context.Background()

func testService(t *testing.T, now func() time.Time) (*Service, *MemoryStore, *audit.Ledger) {
	t.Helper()
	ledger, err := audit.NewLedger(1000)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	store := NewMemoryStore()
	return NewService(store, ledger, "ClinicBook", WithServiceClock(now)), store, ledger
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period: totpPeriod, Skew: totpSkew, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return code
}

func enroll(t *testing.T, svc *Service, actorID string, at time.Time) Enrollment {
	t.Helper()
	enrollment, err := svc.GenerateSecret(testCtx, actorID, testSrc)
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	if !svc.EnableMFA(testCtx, actorID, codeAt(t, enrollment.Secret, at), testSrc) {
		t.Fatal("enable failed with valid code")
	}
	return enrollment
}

func TestGenerateSecretShape(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, store, ledger := testService(t, func() time.Time { return now })

	enrollment, err := svc.GenerateSecret(testCtx, "u-1", testSrc)
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	if enrollment.Secret == "" || enrollment.URL == "" {
		t.Fatalf("incomplete enrollment: %+v", enrollment)
	}
	if len(enrollment.BackupCodes) != backupCodeCount {
		t.Fatalf("expected %d backup codes, got %d", backupCodeCount, len(enrollment.BackupCodes))
	}

	stored, ok, _ := store.Get(testCtx, "u-1")
	if !ok {
		t.Fatal("secret not stored")
	}
	if stored.Enabled {
		t.Fatal("enrollment must start disabled")
	}
	if events := ledger.Events(audit.Filter{Action: actionEnrolled}); len(events) != 1 {
		t.Fatalf("expected 1 enrollment event, got %d", len(events))
	}
}

func TestVerifyTOTPWindow(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	current := base
	svc, _, _ := testService(t, func() time.Time { return current })
	enrollment := enroll(t, svc, "u-1", base)

	step := totpPeriod * time.Second
	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"previous step", -step, true},
		{"current step", 0, true},
		{"next step", step, true},
		{"two steps ahead", 2 * step, false},
		{"two steps behind", -2 * step, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code := codeAt(t, enrollment.Secret, base.Add(tc.offset))
			if got := svc.VerifyTOTP(testCtx, "u-1", code, testSrc); got != tc.want {
				t.Fatalf("VerifyTOTP at offset %v = %v, want %v", tc.offset, got, tc.want)
			}
		})
	}
}

func TestVerifyTOTPFailureModesAreIndistinguishable(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, ledger := testService(t, func() time.Time { return now })

	// Unknown actor.
	if svc.VerifyTOTP(testCtx, "ghost", "123456", testSrc) {
		t.Fatal("unknown actor verified")
	}

	// Enrolled but never enabled.
	enrollment, err := svc.GenerateSecret(testCtx, "u-1", testSrc)
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	if svc.VerifyTOTP(testCtx, "u-1", codeAt(t, enrollment.Secret, now), testSrc) {
		t.Fatal("disabled enrollment verified")
	}

	// Both failures logged the same attempt shape.
	attempts := ledger.Events(audit.Filter{Action: actionVerifyAttempt})
	if len(attempts) != 2 {
		t.Fatalf("expected 2 logged attempts, got %d", len(attempts))
	}
	for _, e := range attempts {
		if e.Success {
			t.Fatalf("failed attempt logged as success: %+v", e)
		}
	}
}

func TestVerifyTOTPUpdatesLastUsed(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, store, _ := testService(t, func() time.Time { return now })
	enrollment := enroll(t, svc, "u-1", now)

	if !svc.VerifyTOTP(testCtx, "u-1", codeAt(t, enrollment.Secret, now), testSrc) {
		t.Fatal("valid code rejected")
	}
	stored, _, _ := store.Get(testCtx, "u-1")
	if !stored.LastUsedAt.Equal(now.UTC()) {
		t.Fatalf("last used not updated: %v", stored.LastUsedAt)
	}
}

func TestBackupCodeSingleUse(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, store, ledger := testService(t, func() time.Time { return now })
	enrollment := enroll(t, svc, "u-1", now)

	code := enrollment.BackupCodes[0]
	if !svc.VerifyBackupCode(testCtx, "u-1", code, testSrc) {
		t.Fatal("first backup code use failed")
	}
	if svc.VerifyBackupCode(testCtx, "u-1", code, testSrc) {
		t.Fatal("backup code accepted twice")
	}

	stored, _, _ := store.Get(testCtx, "u-1")
	if len(stored.BackupCodes) != backupCodeCount-1 {
		t.Fatalf("expected %d remaining codes, got %d", backupCodeCount-1, len(stored.BackupCodes))
	}
	if events := ledger.Events(audit.Filter{Action: actionBackupCodeUsed}); len(events) != 1 {
		t.Fatalf("expected 1 backup-code-used event, got %d", len(events))
	}
}

func TestBackupCodeConcurrentConsumption(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, _ := testService(t, func() time.Time { return now })
	enrollment := enroll(t, svc, "u-1", now)

	code := enrollment.BackupCodes[0]
	const attempts = 16
	results := make(chan bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.VerifyBackupCode(testCtx, "u-1", code, testSrc)
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for ok := range results {
		if ok {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("backup code consumed %d times, want exactly 1", successes)
	}
}

func TestEnableRequiresValidCode(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, _ := testService(t, func() time.Time { return now })

	if svc.EnableMFA(testCtx, "ghost", "000000", testSrc) {
		t.Fatal("enabled without enrollment")
	}

	if _, err := svc.GenerateSecret(testCtx, "u-1", testSrc); err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	if svc.EnableMFA(testCtx, "u-1", "000000", testSrc) {
		t.Fatal("enabled with wrong code")
	}
}

func TestDisableMFA(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, store, ledger := testService(t, func() time.Time { return now })
	enrollment := enroll(t, svc, "u-1", now)

	if !svc.DisableMFA(testCtx, "u-1", testSrc) {
		t.Fatal("disable failed")
	}
	stored, ok, _ := store.Get(testCtx, "u-1")
	if !ok {
		t.Fatal("secret must be retained after disable")
	}
	if stored.Enabled {
		t.Fatal("still enabled after disable")
	}

	if svc.VerifyTOTP(testCtx, "u-1", codeAt(t, enrollment.Secret, now), testSrc) {
		t.Fatal("disabled actor verified")
	}

	events := ledger.Events(audit.Filter{Action: audit.ActionMFADisabled})
	if len(events) != 1 {
		t.Fatalf("expected 1 disable event, got %d", len(events))
	}
	if events[0].RiskLevel != audit.RiskHigh {
		t.Fatalf("disable must log at high risk, got %s", events[0].RiskLevel)
	}
}

func TestRegenerateInvalidatesOldBackupCodes(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, _ := testService(t, func() time.Time { return now })
	first := enroll(t, svc, "u-1", now)

	second, err := svc.GenerateSecret(testCtx, "u-1", testSrc)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if !svc.EnableMFA(testCtx, "u-1", codeAt(t, second.Secret, now), testSrc) {
		t.Fatal("re-enable after regeneration failed")
	}

	if svc.VerifyBackupCode(testCtx, "u-1", first.BackupCodes[0], testSrc) {
		t.Fatal("old backup code survived regeneration")
	}
	if !svc.VerifyBackupCode(testCtx, "u-1", second.BackupCodes[0], testSrc) {
		t.Fatal("new backup code rejected")
	}
}
