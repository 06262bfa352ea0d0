package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
)

var _ Store = (*PostgresStore)(nil)

// DefaultTable is the table PostgresStore uses unless overridden.
const DefaultTable = "intake_records"

// PostgresStore keeps the record in a jsonb column, one row per key.
// Callers open *sql.DB with the "postgres" driver (lib/pq).
type PostgresStore struct {
	db    *sql.DB
	table string
	cfg   config
}

func NewPostgresStore(db *sql.DB, table string, opts ...Option) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{db: db, table: pq.QuoteIdentifier(table), cfg: applyOptions(opts)}
}

// EnsureSchema creates the backing table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key TEXT PRIMARY KEY,
	record JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	_, err := s.db.ExecContext(ctx, query)
	return wrapPersistence("migrate", "", err)
}

func (s *PostgresStore) Key() string { return s.cfg.key }

func (s *PostgresStore) Replace(ctx context.Context, record Record) error {
	if err := s.cfg.checkRecord(record); err != nil {
		return err
	}
	if record == nil {
		record = Record{}
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return wrapPersistence("replace", "", fmt.Errorf("encode record: %w", err))
	}
	query := fmt.Sprintf(`INSERT INTO %s (key, record, updated_at) VALUES ($1, $2::jsonb, now())
ON CONFLICT (key) DO UPDATE SET record = EXCLUDED.record, updated_at = now()`, s.table)
	_, err = s.db.ExecContext(ctx, query, s.cfg.key, string(raw))
	return wrapPersistence("replace", "", err)
}

func (s *PostgresStore) Read(ctx context.Context) (Record, bool, error) {
	query := fmt.Sprintf(`SELECT record FROM %s WHERE key = $1`, s.table)
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, s.cfg.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapPersistence("read", "", err)
	}
	record, err := decodeRecord(raw)
	if err != nil {
		return nil, false, wrapPersistence("read", "", err)
	}
	return record, true, nil
}

func (s *PostgresStore) Delete(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
	_, err := s.db.ExecContext(ctx, query, s.cfg.key)
	return wrapPersistence("delete", "", err)
}

// UpdateSubsection merges one slot in a single upsert so the row lock taken
// by the conflict path serializes concurrent writers.
func (s *PostgresStore) UpdateSubsection(ctx context.Context, name string, data any) error {
	if err := s.cfg.checkSubsection(name); err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return wrapPersistence("update", name, fmt.Errorf("encode subsection: %w", err))
	}
	query := fmt.Sprintf(`INSERT INTO %[1]s (key, record, updated_at)
VALUES ($1, jsonb_build_object($2::text, $3::jsonb), now())
ON CONFLICT (key) DO UPDATE
SET record = %[1]s.record || jsonb_build_object($2::text, $3::jsonb), updated_at = now()`, s.table)
	_, err = s.db.ExecContext(ctx, query, s.cfg.key, name, string(raw))
	return wrapPersistence("update", name, err)
}
