package mfa

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinicbook/internal/domain/compliance"
)

// PGStore keeps enrollments in the users table, sealed with the field cipher
// so secrets and backup codes never reach disk in plaintext. Update runs
// inside a row-locking transaction, which is what makes backup-code
// consumption atomic across instances.
type PGStore struct {
	db     *pgxpool.Pool
	cipher *compliance.FieldCipher
}

func NewPGStore(db *pgxpool.Pool, cipher *compliance.FieldCipher) *PGStore {
	return &PGStore{db: db, cipher: cipher}
}

func (s *PGStore) Get(ctx context.Context, actorID string) (Secret, bool, error) {
	var sealed *string
	err := s.db.QueryRow(ctx, `
    SELECT mfa_secret_enc FROM users WHERE id = $1
  `, actorID).Scan(&sealed)
	if err == pgx.ErrNoRows || (err == nil && sealed == nil) {
		return Secret{}, false, nil
	}
	if err != nil {
		return Secret{}, false, err
	}
	secret, err := s.unseal(*sealed)
	if err != nil {
		return Secret{}, false, err
	}
	return secret, true, nil
}

func (s *PGStore) Save(ctx context.Context, secret Secret) error {
	sealed, err := s.seal(secret)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
    UPDATE users SET mfa_secret_enc = $2, mfa_enabled = $3 WHERE id = $1
  `, secret.ActorID, sealed, secret.Enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mfa: unknown actor %q", secret.ActorID)
	}
	return nil
}

func (s *PGStore) Update(ctx context.Context, actorID string, fn func(*Secret) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var sealed *string
	err = tx.QueryRow(ctx, `
    SELECT mfa_secret_enc FROM users WHERE id = $1 FOR UPDATE
  `, actorID).Scan(&sealed)
	if err == pgx.ErrNoRows || (err == nil && sealed == nil) {
		return errNotEnrolled
	}
	if err != nil {
		return err
	}

	secret, err := s.unseal(*sealed)
	if err != nil {
		return err
	}
	if err := fn(&secret); err != nil {
		return err
	}

	resealed, err := s.seal(secret)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
    UPDATE users SET mfa_secret_enc = $2, mfa_enabled = $3 WHERE id = $1
  `, actorID, resealed, secret.Enabled); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) seal(secret Secret) (string, error) {
	raw, err := json.Marshal(secret)
	if err != nil {
		return "", err
	}
	return s.cipher.EncryptField(string(raw))
}

func (s *PGStore) unseal(sealed string) (Secret, error) {
	plain, err := s.cipher.DecryptField(sealed)
	if err != nil {
		return Secret{}, err
	}
	var secret Secret
	if err := json.Unmarshal([]byte(plain), &secret); err != nil {
		return Secret{}, err
	}
	return secret, nil
}
