// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package state persists the outcome of every conversion attempt in a
// SQLite run log, so repeated exports can be inspected without rescanning
// the output tree.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/zotero-md/pkg/types"
)

const (
	stateDir = ".zotero-md"
	dbFile   = "state.db"
)

// Store manages the export state SQLite database.
type Store struct {
	db *sql.DB
}

// Entry is one recorded conversion attempt.
type Entry struct {
	AttachmentKey string
	ParentKey     string
	Title         string
	Source        string
	Output        string
	Status        types.ConversionStatus
	RecordedAt    time.Time
}

// Open opens or creates the state database under
// outputDir/.zotero-md/state.db, creating the schema if needed.
func Open(outputDir string) (*Store, error) {
	dir := filepath.Join(outputDir, stateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			attachment_key TEXT NOT NULL,
			parent_key TEXT,
			title TEXT,
			source TEXT,
			output TEXT,
			status TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_attachment ON results(attachment_key)`,
		`CREATE INDEX IF NOT EXISTS idx_results_status ON results(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record appends one conversion result for an attachment.
func (s *Store) Record(ctx context.Context, att types.Attachment, res types.ConversionResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (attachment_key, parent_key, title, source, output, status, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		att.Key, att.ParentKey, att.Title, res.Source, res.Output, string(res.Status),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording result for %s: %w", att.Key, err)
	}
	return nil
}

// Summary counts attachments by the status of their most recent attempt.
func (s *Store) Summary(ctx context.Context) (map[types.ConversionStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM results r
		 WHERE id = (SELECT MAX(id) FROM results WHERE attachment_key = r.attachment_key)
		 GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("querying summary: %w", err)
	}
	defer rows.Close()

	summary := make(map[types.ConversionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}
		summary[types.ConversionStatus(status)] = count
	}
	return summary, rows.Err()
}

// History returns all recorded attempts for one attachment, oldest first.
func (s *Store) History(ctx context.Context, attachmentKey string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attachment_key, parent_key, title, source, output, status, recorded_at
		 FROM results WHERE attachment_key = ? ORDER BY id`,
		attachmentKey)
	if err != nil {
		return nil, fmt.Errorf("querying history for %s: %w", attachmentKey, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status, recordedAt string
		if err := rows.Scan(&e.AttachmentKey, &e.ParentKey, &e.Title, &e.Source, &e.Output, &status, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.Status = types.ConversionStatus(status)
		if t, parseErr := time.Parse(time.RFC3339, recordedAt); parseErr == nil {
			e.RecordedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
