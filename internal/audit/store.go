// Package audit records inference runs in Postgres for later review.
// The store is optional: the pipeline works without a database, and
// callers only open a store when connection settings are configured.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/pdx-proptype/internal/config"
	"github.com/pdx-proptype/internal/pipeline"
)

// Store persists run summaries to Postgres.
type Store struct {
	db *sql.DB
}

// Configured reports whether database settings are present in the
// environment.
func Configured() bool {
	return config.GetEnv("PGHOST", "") != ""
}

// Open connects to Postgres using the standard PG* environment
// variables and ensures the audit schema exists.
func Open() (*Store, error) {
	host := config.GetEnv("PGHOST", "localhost")
	port := config.GetEnv("PGPORT", "5432")
	user := config.GetEnv("PGUSER", "proptype")
	password := config.GetEnv("PGPASSWORD", "")
	dbname := config.GetEnv("PGDATABASE", "proptype")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS prediction_run (
			run_id             BIGSERIAL PRIMARY KEY,
			source             TEXT NOT NULL,
			rows_in            INTEGER NOT NULL,
			rows_out           INTEGER NOT NULL,
			unknown_categories INTEGER NOT NULL,
			drops              TEXT NOT NULL,
			warnings           TEXT NOT NULL,
			duration_ms        BIGINT NOT NULL,
			ran_at             TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create prediction_run table: %w", err)
	}
	return nil
}

// RecordRun saves one inference run summary. source names the input,
// typically the uploaded file name.
func (s *Store) RecordRun(source string, report *pipeline.Report) (int64, error) {
	drops, err := json.Marshal(report.Drops)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal drop counts: %w", err)
	}
	var messages []string
	for _, w := range report.Warnings {
		messages = append(messages, w.Message)
	}
	warnings, err := json.Marshal(messages)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal warnings: %w", err)
	}

	var runID int64
	err = s.db.QueryRow(`
		INSERT INTO prediction_run (
			source, rows_in, rows_out, unknown_categories, drops, warnings, duration_ms, ran_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING run_id
	`, source, report.RowsIn, report.RowsOut, report.UnknownCategories,
		string(drops), string(warnings), report.Duration.Milliseconds(), time.Now()).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction run: %w", err)
	}
	return runID, nil
}
