package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/komiyamma/imageplan/internal/ledger"
)

// PostgresStore mirrors the ledger into ledger_entries and keeps the
// request_outcomes audit log. The ledger file stays the source of truth.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ReplaceEntries swaps the mirrored ledger for entries in one transaction.
func (s *PostgresStore) ReplaceEntries(ctx context.Context, entries []ledger.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mirror tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries`); err != nil {
		return fmt.Errorf("clear ledger mirror: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_entries (position, id, source_document, image_name, relative_link, payload_text, anchor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("prepare mirror insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, i+1, e.ID, e.SourceDocument, e.ImageName, e.RelativeLink, e.PayloadText, e.Anchor); err != nil {
			return fmt.Errorf("mirror entry %d: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mirror: %w", err)
	}
	return nil
}

// ListEntries returns the mirrored entries in ledger order.
func (s *PostgresStore) ListEntries(ctx context.Context) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_document, image_name, relative_link, payload_text, anchor
		FROM ledger_entries
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("list ledger mirror: %w", err)
	}
	defer rows.Close()

	entries := make([]ledger.Entry, 0)
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.ID, &e.SourceDocument, &e.ImageName, &e.RelativeLink, &e.PayloadText, &e.Anchor); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) RecordOutcome(ctx context.Context, outcome Outcome) error {
	var entryID sql.NullInt64
	if outcome.EntryID != nil {
		entryID = sql.NullInt64{Int64: int64(*outcome.EntryID), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO request_outcomes (run_id, status, reason, error_code, source_document, image_name, entry_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, outcome.RunID, outcome.Status, outcome.Reason, outcome.ErrorCode, outcome.SourceDocument, outcome.ImageName, entryID)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns the outcomes of one run in insertion order.
func (s *PostgresStore) ListOutcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, status, reason, error_code, source_document, image_name, entry_id, created_at
		FROM request_outcomes
		WHERE run_id = $1
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := make([]Outcome, 0)
	for rows.Next() {
		var o Outcome
		var entryID sql.NullInt64
		if err := rows.Scan(&o.ID, &o.RunID, &o.Status, &o.Reason, &o.ErrorCode, &o.SourceDocument, &o.ImageName, &entryID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if entryID.Valid {
			id := int(entryID.Int64)
			o.EntryID = &id
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
