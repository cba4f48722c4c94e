// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics records per-epoch scalars (loss, accuracy, mAP) as a
// time series. Runs and their scalars live in a SQLite database; scalars can
// also be mirrored to a Prometheus textfile and exported as YAML or JSON.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/mesh-classifier/pkg/types"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run reference matches nothing.
var ErrRunNotFound = errors.New("run not found")

// Run is one training invocation.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
	Config     string    `json:"config,omitempty" yaml:"config,omitempty"`
}

// Scalar is one recorded value.
type Scalar struct {
	Tag      string    `json:"tag" yaml:"tag"`
	Step     int       `json:"step" yaml:"step"`
	Value    float64   `json:"value" yaml:"value"`
	WallTime time.Time `json:"wall_time" yaml:"wall_time"`
}

// Store manages the metrics SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the database at cfg.DBPath and creates the
// schema if it does not exist.
func NewStore(cfg types.MetricsConfig) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("metrics database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating metrics directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
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
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			config TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name)`,
		`CREATE TABLE IF NOT EXISTS scalars (
			run_id TEXT NOT NULL REFERENCES runs(id),
			tag TEXT NOT NULL,
			step INTEGER NOT NULL,
			value REAL NOT NULL,
			wall_time TEXT NOT NULL,
			PRIMARY KEY (run_id, tag, step)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// StartRun registers a new run. config, when non-nil, is stored as YAML.
func (s *Store) StartRun(ctx context.Context, name string, config any) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: time.Now().UTC(),
	}
	if config != nil {
		data, err := yaml.Marshal(config)
		if err != nil {
			return Run{}, fmt.Errorf("marshaling run config: %w", err)
		}
		run.Config = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, started_at, config) VALUES (?, ?, ?, ?)`,
		run.ID, run.Name, run.StartedAt.Format(timeLayout), run.Config)
	if err != nil {
		return Run{}, fmt.Errorf("inserting run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run's completion time.
func (s *Store) FinishRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), runID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// AddScalar records value for tag at step, replacing any earlier value.
func (s *Store) AddScalar(ctx context.Context, runID, tag string, step int, value float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scalars (run_id, tag, step, value, wall_time) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, tag, step) DO UPDATE SET value = excluded.value, wall_time = excluded.wall_time`,
		runID, tag, step, value, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("recording scalar %s@%d: %w", tag, step, err)
	}
	return nil
}

// Scalars returns a run's scalars ordered by tag and step. An empty tag
// selects every tag.
func (s *Store) Scalars(ctx context.Context, runID, tag string) ([]Scalar, error) {
	query := `SELECT tag, step, value, wall_time FROM scalars WHERE run_id = ?`
	args := []any{runID}
	if tag != "" {
		query += ` AND tag = ?`
		args = append(args, tag)
	}
	query += ` ORDER BY tag, step`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scalars: %w", err)
	}
	defer rows.Close()

	var out []Scalar
	for rows.Next() {
		var sc Scalar
		var wall string
		if err := rows.Scan(&sc.Tag, &sc.Step, &sc.Value, &wall); err != nil {
			return nil, fmt.Errorf("scanning scalar: %w", err)
		}
		sc.WallTime, _ = time.Parse(timeLayout, wall)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Runs lists every run, most recent first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, started_at, COALESCE(finished_at, ''), COALESCE(config, '')
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// FindRun resolves ref as a run ID, then as a run name. "latest" selects
// the most recently started run.
func (s *Store) FindRun(ctx context.Context, ref string) (Run, error) {
	query := `SELECT id, name, started_at, COALESCE(finished_at, ''), COALESCE(config, '')
		FROM runs WHERE id = ? OR name = ? ORDER BY started_at DESC LIMIT 1`
	args := []any{ref, ref}
	if ref == "latest" {
		query = `SELECT id, name, started_at, COALESCE(finished_at, ''), COALESCE(config, '')
			FROM runs ORDER BY started_at DESC LIMIT 1`
		args = nil
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, ref)
	}
	return run, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var started, finished string
	if err := row.Scan(&run.ID, &run.Name, &started, &finished, &run.Config); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	run.StartedAt, _ = time.Parse(timeLayout, started)
	if finished != "" {
		run.FinishedAt, _ = time.Parse(timeLayout, finished)
	}
	return run, nil
}
