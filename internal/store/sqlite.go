// Package store provides target persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"stockwatch/internal/errors"
	"stockwatch/internal/models"
)

// SQLiteStore implements TargetRepository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based target repository.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Targets table: one registration per (user, symbol)
	CREATE TABLE IF NOT EXISTS targets (
		user_ref TEXT NOT NULL,
		symbol TEXT NOT NULL,
		threshold TEXT NOT NULL,
		direction TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL,
		notified_at DATETIME,
		PRIMARY KEY (user_ref, symbol)
	);

	CREATE INDEX IF NOT EXISTS idx_targets_state ON targets(state);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Snapshot returns every pending target across all users.
func (s *SQLiteStore) Snapshot(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_ref, symbol, threshold, direction, state, created_at, notified_at
		FROM targets WHERE state = ? ORDER BY user_ref, symbol
	`, models.StatePending)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := scanTarget(rows, &e.UserRef, &e.Target); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Save creates or replaces the target for (userRef, target.Symbol).
func (s *SQLiteStore) Save(ctx context.Context, userRef string, target models.Target) error {
	if err := target.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO targets (user_ref, symbol, threshold, direction, state, created_at, notified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, userRef, target.Symbol, target.Threshold.String(), target.Direction,
		target.State, target.CreatedAt, target.NotifiedAt)
	if err != nil {
		return fmt.Errorf("failed to save target: %w", err)
	}
	return nil
}

// Delete removes a target.
func (s *SQLiteStore) Delete(ctx context.Context, userRef, symbol string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM targets WHERE user_ref = ? AND symbol = ?
	`, userRef, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete target: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Wrapf(errors.ErrTargetNotFound, "%s for user %s", symbol, userRef)
	}
	return nil
}

// List returns all targets owned by a user.
func (s *SQLiteStore) List(ctx context.Context, userRef string) ([]models.Target, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_ref, symbol, threshold, direction, state, created_at, notified_at
		FROM targets WHERE user_ref = ? ORDER BY symbol
	`, userRef)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []models.Target
	for rows.Next() {
		var user string
		var t models.Target
		if err := scanTarget(rows, &user, &t); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	return targets, rows.Err()
}

// CommitFire transitions a target to Notified iff its state still matches
// expected. The single UPDATE with the state in the WHERE clause is the
// atomic compare-and-set; a deleted or already-fired target affects zero
// rows and surfaces as ErrCommitConflict.
func (s *SQLiteStore) CommitFire(ctx context.Context, userRef, symbol string, expected models.TargetState) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE targets SET state = ?, notified_at = ?
		WHERE user_ref = ? AND symbol = ? AND state = ?
	`, models.StateNotified, time.Now().UTC(), userRef, symbol, expected)
	if err != nil {
		return fmt.Errorf("failed to commit fire: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Wrapf(errors.ErrCommitConflict, "%s for user %s", symbol, userRef)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanTarget(rows *sql.Rows, userRef *string, t *models.Target) error {
	var threshold string
	if err := rows.Scan(userRef, &t.Symbol, &threshold, &t.Direction, &t.State, &t.CreatedAt, &t.NotifiedAt); err != nil {
		return fmt.Errorf("failed to scan target: %w", err)
	}

	parsed, err := decimal.NewFromString(threshold)
	if err != nil {
		return fmt.Errorf("failed to parse stored threshold %q: %w", threshold, err)
	}
	t.Threshold = parsed
	return nil
}
