// Package snapshot persists the answers of a form session so it can be
// resumed later, possibly by another server process.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no snapshot has the requested id.
var ErrNotFound = errors.New("snapshot: not found")

// Record is one saved session.
type Record struct {
	ID      string         `json:"id"`
	FormID  string         `json:"formId"`
	Page    int            `json:"page"`
	Answers map[string]any `json:"answers"`
	SavedAt time.Time      `json:"savedAt"`
}

// Store is the interface for saving and loading snapshots.
type Store interface {
	// Save writes rec, assigning an id when it has none, and returns the
	// stored record.
	Save(ctx context.Context, rec Record) (Record, error)
	Load(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
}

// SQLiteStore implements Store on a single sqlite table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the sqlite database at dsn and prepares the
// table.
func Open(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// CreateTable creates the form_snapshots table.
func (s *SQLiteStore) CreateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS form_snapshots (
			id       TEXT PRIMARY KEY,
			form_id  TEXT NOT NULL,
			page     INTEGER NOT NULL DEFAULT 0,
			answers  TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_form_snapshots_form
			ON form_snapshots (form_id, saved_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("snapshot: create table: %w", err)
	}
	return nil
}

// Save inserts or replaces rec.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Answers == nil {
		rec.Answers = map[string]any{}
	}
	rec.SavedAt = s.now().UTC()

	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return Record{}, fmt.Errorf("snapshot: encode answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO form_snapshots (id, form_id, page, answers, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			form_id = excluded.form_id,
			page = excluded.page,
			answers = excluded.answers,
			saved_at = excluded.saved_at
	`, rec.ID, rec.FormID, rec.Page, string(answers), rec.SavedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Record{}, fmt.Errorf("snapshot: save %s: %w", rec.ID, err)
	}
	return rec, nil
}

// Load returns the snapshot with id.
func (s *SQLiteStore) Load(ctx context.Context, id string) (Record, error) {
	var (
		rec     = Record{ID: id}
		answers string
		savedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT form_id, page, answers, saved_at FROM form_snapshots WHERE id = ?`, id,
	).Scan(&rec.FormID, &rec.Page, &answers, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("snapshot: load %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(answers), &rec.Answers); err != nil {
		return Record{}, fmt.Errorf("snapshot: decode %s: %w", id, err)
	}
	if rec.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return Record{}, fmt.Errorf("snapshot: decode %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes the snapshot with id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM form_snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("snapshot: delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
