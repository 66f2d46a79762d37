package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwygoda/vidrelay/internal/domain"
	_ "modernc.org/sqlite"
)

const (
	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"
	// DefaultRetention is how many jobs the journal keeps.
	DefaultRetention = 1000
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id            TEXT PRIMARY KEY,
    url           TEXT NOT NULL,
    pattern_id    TEXT NOT NULL DEFAULT '',
    output_path   TEXT NOT NULL DEFAULT '',
    resolved_path TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'pending',
    error         TEXT,
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_updated ON jobs(updated_at);
`

const jobColumns = `id, url, pattern_id, output_path, resolved_path, status, COALESCE(error, ''), created_at, updated_at`

// Journal implements domain.JobJournal using SQLite.
type Journal struct {
	db        *sql.DB
	retention int
}

// New opens a journal at dbPath, initializing the schema if needed. An
// empty path or MemoryPath keeps everything in memory.
func New(dbPath string) (*Journal, error) {
	if dbPath == "" {
		dbPath = MemoryPath
	}
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Journal{db: db, retention: DefaultRetention}, nil
}

// SetRetention caps how many jobs are kept. Settled jobs beyond the newest
// n are pruned whenever a job settles; n <= 0 keeps everything.
func (j *Journal) SetRetention(n int) {
	j.retention = n
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts the job or overwrites its previous snapshot.
func (j *Journal) Record(ctx context.Context, job *domain.Job) error {
	var jobErr sql.NullString
	if job.Error != "" {
		jobErr = sql.NullString{String: job.Error, Valid: true}
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO jobs (id, url, pattern_id, output_path, resolved_path, status, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     output_path = excluded.output_path,
		     resolved_path = excluded.resolved_path,
		     status = excluded.status,
		     error = excluded.error,
		     updated_at = excluded.updated_at`,
		job.ID, job.URL, job.PatternID, job.OutputPath, job.ResolvedPath,
		string(job.Status), jobErr, job.CreatedAt.UTC(), job.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", job.ID, err)
	}
	if job.IsTerminal() && j.retention > 0 {
		if err := j.prune(ctx); err != nil {
			return fmt.Errorf("prune journal: %w", err)
		}
	}
	return nil
}

// prune drops settled jobs that fall outside the retention window. Pending
// and running jobs are never removed.
func (j *Journal) prune(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx,
		`DELETE FROM jobs
		 WHERE status IN (?, ?)
		   AND rowid NOT IN (SELECT rowid FROM jobs ORDER BY updated_at DESC, rowid DESC LIMIT ?)`,
		string(domain.StatusSucceeded), string(domain.StatusFailed), j.retention,
	)
	return err
}

// Get retrieves a job by ID.
func (j *Journal) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// Recent returns up to limit jobs, most recently updated first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY updated_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Stats counts jobs per status.
func (j *Journal) Stats(ctx context.Context) (map[domain.JobStatus]int64, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[domain.JobStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats[domain.JobStatus(status)] = n
	}
	return stats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var job domain.Job
	var status string
	err := row.Scan(&job.ID, &job.URL, &job.PatternID, &job.OutputPath, &job.ResolvedPath,
		&status, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}
