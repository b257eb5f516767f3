// Package store provides optional durable persistence for the job
// orchestrator (internal/jobs): job snapshots and their backtest results,
// recorded to SQLite so a caller can inspect past runs after the process
// restarts. It is grounded on the teacher's internal/db package: the same
// WAL/busy-timeout/foreign-keys pragma DSN, the same schema_version-gated
// migration blocks, and the same "explicit columns for what you filter on,
// a JSON column for the nested payload" split used by scan_history's
// params_json and demand_region_cache's stats_json.
//
// Persistence is optional (spec §6): internal/jobs.Registry is authoritative
// and holds every job in memory regardless of whether a Store is attached.
// A Store only mirrors terminal jobs for later retrieval; it is never read
// back into the live Registry.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"marketcore/internal/domain"
	"marketcore/internal/logger"
)

// Store wraps a SQLite database connection used for job/result persistence.
type Store struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// path must be non-empty; the CLI calls Open only when its --db flag is
// set, since an empty path means "in-memory registry only".
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: empty db path")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping db: %w", err)
	}
	s := &Store{sql: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate db: %w", err)
	}
	logger.Success("STORE", fmt.Sprintf("Opened %s", path))
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate() error {
	version := 0
	row := s.sql.QueryRow(`SELECT MAX(version) FROM schema_version`)
	var v sql.NullInt64
	if err := row.Scan(&v); err == nil && v.Valid {
		version = int(v.Int64)
	}

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY
			);

			CREATE TABLE IF NOT EXISTS jobs (
				id           TEXT PRIMARY KEY,
				kind         TEXT NOT NULL,
				state        TEXT NOT NULL,
				progress     REAL NOT NULL DEFAULT 0,
				message      TEXT,
				created_at   TEXT NOT NULL,
				started_at   TEXT,
				completed_at TEXT,
				error_json   TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
			CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);

			CREATE TABLE IF NOT EXISTS backtest_results (
				job_id      TEXT PRIMARY KEY REFERENCES jobs(id),
				result_json TEXT NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("STORE", "Applied migration v1")
	}

	return nil
}

// SaveJob mirrors a job snapshot into the jobs table, inserting or updating
// by ID. Intended to be called once a job reaches a terminal state.
func (s *Store) SaveJob(job *domain.Job) error {
	var errJSON []byte
	if job.Error != nil {
		var err error
		errJSON, err = json.Marshal(job.Error)
		if err != nil {
			return fmt.Errorf("store: marshal job error: %w", err)
		}
	}

	_, err := s.sql.Exec(`
		INSERT INTO jobs (id, kind, state, progress, message, created_at, started_at, completed_at, error_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			progress = excluded.progress,
			message = excluded.message,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			error_json = excluded.error_json
	`,
		job.ID, string(job.Kind), string(job.State), job.Progress, job.Message,
		formatTime(&job.CreatedAt), formatTime(job.StartedAt), formatTime(job.CompletedAt),
		nullableString(errJSON),
	)
	if err != nil {
		return fmt.Errorf("store: save job %s: %w", job.ID, err)
	}
	return nil
}

// SaveResult records the JSON-encoded result payload of a completed job,
// keyed by job ID. Callers pass whatever backtest.Result/WalkForwardResult
// value the job produced; it is marshalled opaquely, matching the "any"
// result field on domain.Job.
func (s *Store) SaveResult(jobID string, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: marshal result for job %s: %w", jobID, err)
	}
	_, err = s.sql.Exec(`
		INSERT INTO backtest_results (job_id, result_json) VALUES (?, ?)
		ON CONFLICT(job_id) DO UPDATE SET result_json = excluded.result_json
	`, jobID, string(payload))
	if err != nil {
		return fmt.Errorf("store: save result for job %s: %w", jobID, err)
	}
	return nil
}

// LoadResult returns the raw JSON bytes previously saved for jobID via
// SaveResult, for a caller to unmarshal into the concrete result type it
// expects (backtest.Result or backtest.WalkForwardResult).
func (s *Store) LoadResult(jobID string) ([]byte, error) {
	var payload string
	err := s.sql.QueryRow(`SELECT result_json FROM backtest_results WHERE job_id = ?`, jobID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: no result for job %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load result for job %s: %w", jobID, err)
	}
	return []byte(payload), nil
}

// ListJobs returns every persisted job row, most recently created first.
func (s *Store) ListJobs() ([]*domain.Job, error) {
	rows, err := s.sql.Query(`
		SELECT id, kind, state, progress, message, created_at, started_at, completed_at, error_json
		FROM jobs ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func scanJob(rows *sql.Rows) (*domain.Job, error) {
	var job domain.Job
	var kind, state, createdAt string
	var message, startedAt, completedAt, errJSON sql.NullString

	if err := rows.Scan(&job.ID, &kind, &state, &job.Progress, &message, &createdAt, &startedAt, &completedAt, &errJSON); err != nil {
		return nil, fmt.Errorf("store: scan job row: %w", err)
	}
	job.Kind = domain.JobKind(kind)
	job.State = domain.JobState(state)
	job.Message = message.String

	if t, ok := parseTime(createdAt); ok {
		job.CreatedAt = t
	}
	if t, ok := parseTime(startedAt.String); ok {
		job.StartedAt = &t
	}
	if t, ok := parseTime(completedAt.String); ok {
		job.CompletedAt = &t
	}
	if errJSON.Valid && errJSON.String != "" {
		var view domain.CoreErrorView
		if err := json.Unmarshal([]byte(errJSON.String), &view); err != nil {
			return nil, fmt.Errorf("store: unmarshal job error: %w", err)
		}
		job.Error = &view
	}
	return &job, nil
}
