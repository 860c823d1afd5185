package mfa

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errNotEnrolled = errors.New("mfa: actor not enrolled")

// Secret is an actor's MFA enrollment. Disabled secrets are retained rather
// than hard-deleted; re-enabling requires fresh verification.
type Secret struct {
	ActorID     string    `json:"actorId"`
	Secret      string    `json:"secret"`
	BackupCodes []string  `json:"backupCodes"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
}

// Store persists enrollments. Update must apply fn atomically per actor so a
// backup code can never be consumed twice by concurrent requests.
type Store interface {
	Get(ctx context.Context, actorID string) (Secret, bool, error)
	Save(ctx context.Context, s Secret) error
	Update(ctx context.Context, actorID string, fn func(*Secret) error) error
}

type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string]Secret
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]Secret)}
}

func (m *MemoryStore) Get(_ context.Context, actorID string) (Secret, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[actorID]
	if ok {
		s.BackupCodes = append([]string(nil), s.BackupCodes...)
	}
	return s, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, s Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.BackupCodes = append([]string(nil), s.BackupCodes...)
	m.secrets[s.ActorID] = s
	return nil
}

func (m *MemoryStore) Update(_ context.Context, actorID string, fn func(*Secret) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[actorID]
	if !ok {
		return errNotEnrolled
	}
	if err := fn(&s); err != nil {
		return err
	}
	m.secrets[actorID] = s
	return nil
}
