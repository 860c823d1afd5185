package mfa

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"clinicbook/internal/domain/audit"
)

const (
	backupCodeCount = 10
	totpPeriod      = 30
	totpSkew        = 1
)

const (
	actionEnrolled       = "MFA_ENROLLED"
	actionVerifyAttempt  = "MFA_VERIFY_ATTEMPT"
	actionBackupCodeUsed = "MFA_BACKUP_CODE_USED"
	actionEnabled        = "MFA_ENABLED"
)

var errNotEnabled = errors.New("mfa: not enabled")

// Enrollment is returned exactly once at secret generation; backup codes are
// never shown again afterwards.
type Enrollment struct {
	Secret      string   `json:"secret"`
	URL         string   `json:"otpauthUrl"`
	BackupCodes []string `json:"backupCodes"`
}

// Service manages per-actor TOTP secrets and single-use backup codes. Every
// operation, successful or not, lands in the audit ledger. Verification
// returns a bare boolean so callers cannot distinguish failure sub-cases.
type Service struct {
	store  Store
	ledger *audit.Ledger
	issuer string
	now    func() time.Time
}

type ServiceOption func(*Service)

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store Store, ledger *audit.Ledger, issuer string, opts ...ServiceOption) *Service {
	s := &Service{store: store, ledger: ledger, issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateSecret enrolls the actor (or regenerates an existing enrollment,
// invalidating its previous codes). The secret starts disabled until the
// actor proves possession via EnableMFA.
func (s *Service) GenerateSecret(ctx context.Context, actorID string, src audit.Source) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: actorID,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}

	codes, err := generateBackupCodes(backupCodeCount)
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate backup codes: %w", err)
	}

	if err := s.store.Save(ctx, Secret{
		ActorID:     actorID,
		Secret:      key.Secret(),
		BackupCodes: codes,
		Enabled:     false,
		CreatedAt:   s.now().UTC(),
	}); err != nil {
		return Enrollment{}, fmt.Errorf("save enrollment: %w", err)
	}

	s.ledger.Log(audit.Event{
		ActorID:    actorID,
		ActorRole:  src.Role,
		Action:     actionEnrolled,
		Origin:     src.Origin,
		ClientInfo: src.ClientInfo,
		SessionID:  src.SessionID,
		Success:    true,
		RiskLevel:  audit.RiskMedium,
	})

	return Enrollment{Secret: key.Secret(), URL: key.URL(), BackupCodes: codes}, nil
}

// VerifyTOTP validates a rolling-window code (current 30s step and its
// immediate neighbors). The attempt is logged whether or not it succeeds.
func (s *Service) VerifyTOTP(ctx context.Context, actorID, code string, src audit.Source) bool {
	secret, ok, err := s.store.Get(ctx, actorID)
	if err != nil || !ok || !secret.Enabled {
		s.logAttempt(actorID, src, false)
		return false
	}

	valid := s.validateCode(code, secret.Secret)
	s.logAttempt(actorID, src, valid)
	if !valid {
		return false
	}

	if err := s.store.Update(ctx, actorID, func(sec *Secret) error {
		sec.LastUsedAt = s.now().UTC()
		return nil
	}); err != nil {
		return false
	}
	return true
}

// VerifyBackupCode consumes a single-use recovery code. Consumption and the
// attempt itself are both recorded.
func (s *Service) VerifyBackupCode(ctx context.Context, actorID, code string, src audit.Source) bool {
	err := s.store.Update(ctx, actorID, func(sec *Secret) error {
		if !sec.Enabled {
			return errNotEnabled
		}
		for i, candidate := range sec.BackupCodes {
			if candidate == code {
				sec.BackupCodes = append(sec.BackupCodes[:i], sec.BackupCodes[i+1:]...)
				sec.LastUsedAt = s.now().UTC()
				return nil
			}
		}
		return errors.New("mfa: backup code not found")
	})

	s.logAttempt(actorID, src, err == nil)
	if err != nil {
		return false
	}

	s.ledger.Log(audit.Event{
		ActorID:    actorID,
		ActorRole:  src.Role,
		Action:     actionBackupCodeUsed,
		Origin:     src.Origin,
		ClientInfo: src.ClientInfo,
		SessionID:  src.SessionID,
		Success:    true,
		RiskLevel:  audit.RiskMedium,
	})
	return true
}

// EnableMFA flips the enrollment to enabled once the actor proves possession
// of the secret with a currently valid code.
func (s *Service) EnableMFA(ctx context.Context, actorID, verificationCode string, src audit.Source) bool {
	secret, ok, err := s.store.Get(ctx, actorID)
	if err != nil || !ok || !s.validateCode(verificationCode, secret.Secret) {
		s.logAttempt(actorID, src, false)
		return false
	}

	if err := s.store.Update(ctx, actorID, func(sec *Secret) error {
		sec.Enabled = true
		return nil
	}); err != nil {
		s.logAttempt(actorID, src, false)
		return false
	}

	s.ledger.Log(audit.Event{
		ActorID:    actorID,
		ActorRole:  src.Role,
		Action:     actionEnabled,
		Origin:     src.Origin,
		ClientInfo: src.ClientInfo,
		SessionID:  src.SessionID,
		Success:    true,
		RiskLevel:  audit.RiskMedium,
	})
	return true
}

// DisableMFA is one-way: re-enabling requires re-verification. Disabling is
// itself a security-relevant event and is logged at high risk.
func (s *Service) DisableMFA(ctx context.Context, actorID string, src audit.Source) bool {
	err := s.store.Update(ctx, actorID, func(sec *Secret) error {
		sec.Enabled = false
		return nil
	})

	s.ledger.Log(audit.Event{
		ActorID:    actorID,
		ActorRole:  src.Role,
		Action:     audit.ActionMFADisabled,
		Origin:     src.Origin,
		ClientInfo: src.ClientInfo,
		SessionID:  src.SessionID,
		Success:    err == nil,
		RiskLevel:  audit.RiskHigh,
	})
	return err == nil
}

func (s *Service) validateCode(code, secret string) bool {
	valid, err := totp.ValidateCustom(code, secret, s.now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

func (s *Service) logAttempt(actorID string, src audit.Source, success bool) {
	s.ledger.Log(audit.Event{
		ActorID:    actorID,
		ActorRole:  src.Role,
		Action:     actionVerifyAttempt,
		Origin:     src.Origin,
		ClientInfo: src.ClientInfo,
		SessionID:  src.SessionID,
		Success:    success,
		RiskLevel:  audit.RiskMedium,
	})
}

func generateBackupCodes(n int) ([]string, error) {
	codes := make([]string, n)
	for i := range codes {
		raw := make([]byte, 4)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		codes[i] = hex.EncodeToString(raw)
	}
	return codes, nil
}
