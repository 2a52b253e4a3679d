// Package history keeps a durable record of executed jobs in SQLite.
//
// Every completed Execute appends one record. The store is the durable
// sibling of the engine's in-memory materialized-result cache: the cache
// answers "where is this alias's latest output", the history answers
// "what ran in this scope and how it went".
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sluicedata/sluice/internal/coordinator"
)

//go:embed schema.sql
var schemaSQL string

// Record is one executed job.
type Record struct {
	ID             int64
	Scope          string
	Alias          string
	JobName        string
	Status         coordinator.Status
	OutputLocation string
	OutputFormat   string
	WallTime       time.Duration
	RecordedAt     string
}

// Store is the SQLite-backed job history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path. Applies pragmas and
// the schema; idempotent.
//
// SQLite supports one writer at a time, so the pool is pinned to a single
// connection and WAL mode keeps reads available during writes.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect history database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts one record. The record's ID and RecordedAt are assigned
// by the database and not read back.
func (s *Store) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs
		(scope, alias, job_name, status, output_location, output_format, wall_millis)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Scope,
		rec.Alias,
		rec.JobName,
		string(rec.Status),
		rec.OutputLocation,
		rec.OutputFormat,
		rec.WallTime.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("append job history: %w", err)
	}
	return nil
}

// ByScope returns every record for scope in insertion order.
func (s *Store) ByScope(ctx context.Context, scope string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, alias, job_name, status, output_location, output_format, wall_millis, recorded_at
		FROM jobs
		WHERE scope = ?
		ORDER BY id
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("query job history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// All returns every record in insertion order.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, alias, job_name, status, output_location, output_format, wall_millis, recorded_at
		FROM jobs
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query job history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var (
			rec    Record
			status string
			millis int64
		)
		if err := rows.Scan(&rec.ID, &rec.Scope, &rec.Alias, &rec.JobName, &status,
			&rec.OutputLocation, &rec.OutputFormat, &millis, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan job history: %w", err)
		}
		rec.Status = coordinator.Status(status)
		rec.WallTime = time.Duration(millis) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read job history: %w", err)
	}
	return out, nil
}
