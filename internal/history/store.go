// Package history keeps a local log of submissions so past uploads and
// their scores survive across sessions without asking the backend.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/isdelr/datathon-cli/internal/database"
)

// Record is one submitted file and the score it came back with.
type Record struct {
	ID                   string
	FileName             string
	FileSize             int64
	ItemAccuracy         float64
	SubmissionsRemaining int
	CreatedAt            time.Time
}

// Store persists records in a local SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}
	db, err := database.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT NOT NULL PRIMARY KEY,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		item_accuracy REAL NOT NULL,
		submissions_remaining INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(sqlStmt)
	return err
}

// Add appends one record. Missing id and timestamp are filled in.
func (s *Store) Add(rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	stmt, err := s.db.Prepare("INSERT INTO submissions(id, file_name, file_size, item_accuracy, submissions_remaining, created_at) VALUES(?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(rec.ID, rec.FileName, rec.FileSize, rec.ItemAccuracy, rec.SubmissionsRemaining, rec.CreatedAt)
	return err
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query("SELECT id, file_name, file_size, item_accuracy, submissions_remaining, created_at FROM submissions ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.FileName, &rec.FileSize, &rec.ItemAccuracy, &rec.SubmissionsRemaining, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
