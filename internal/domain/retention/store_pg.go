package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRecordStore resolves regulated records in Postgres. Each data category
// maps onto the booking application's tables; this store is the only place
// that knows the mapping.
type PGRecordStore struct {
	DB *pgxpool.Pool
}

func NewPGRecordStore(db *pgxpool.Pool) *PGRecordStore {
	return &PGRecordStore{DB: db}
}

type categoryTable struct {
	table      string
	timeColumn string
}

var categoryTables = map[string]categoryTable{
	CategoryAppointments:   {table: "appointments", timeColumn: "scheduled_at"},
	CategoryCommunications: {table: "patient_messages", timeColumn: "created_at"},
	CategoryAuditLogs:      {table: "audit_events", timeColumn: "created_at"},
	CategorySessions:       {table: "sessions", timeColumn: "created_at"},
	CategoryCredentials:    {table: "users", timeColumn: "closed_at"},
}

func (s *PGRecordStore) FindExpired(ctx context.Context, category string, cutoff time.Time) ([]string, error) {
	mapping, ok := categoryTables[category]
	if !ok {
		return nil, fmt.Errorf("unknown data category %q", category)
	}

	rows, err := s.DB.Query(ctx, fmt.Sprintf(`
    SELECT id::text
    FROM %s
    WHERE %s IS NOT NULL AND %s < $1
  `, mapping.table, mapping.timeColumn, mapping.timeColumn), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PGRecordStore) SecureDelete(ctx context.Context, category string, ids []string) (int, error) {
	mapping, ok := categoryTables[category]
	if !ok {
		return 0, fmt.Errorf("unknown data category %q", category)
	}
	tag, err := s.DB.Exec(ctx, fmt.Sprintf(`
    DELETE FROM %s
    WHERE id = ANY($1::uuid[])
  `, mapping.table), ids)
	return int(tag.RowsAffected()), err
}

// Anonymize is only meaningful for user credentials: the account row
// survives but all direct identifiers are overwritten irreversibly.
func (s *PGRecordStore) Anonymize(ctx context.Context, category string, ids []string) (int, error) {
	if category != CategoryCredentials {
		return 0, fmt.Errorf("anonymize unsupported for category %q", category)
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE users
    SET email = 'anonymized+' || id || '@example.invalid',
        full_name = NULL,
        phone = NULL,
        password_hash = '',
        mfa_secret_enc = NULL
    WHERE id = ANY($1::uuid[])
  `, ids)
	return int(tag.RowsAffected()), err
}

// Archive moves expired audit rows into the cold table before removing them
// from the hot one, inside a single transaction.
func (s *PGRecordStore) Archive(ctx context.Context, category string, ids []string) (int, error) {
	mapping, ok := categoryTables[category]
	if !ok {
		return 0, fmt.Errorf("unknown data category %q", category)
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`
    INSERT INTO %s_archive
    SELECT * FROM %s WHERE id = ANY($1::uuid[])
  `, mapping.table, mapping.table), ids); err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, fmt.Sprintf(`
    DELETE FROM %s
    WHERE id = ANY($1::uuid[])
  `, mapping.table), ids)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
