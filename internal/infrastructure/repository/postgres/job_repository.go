package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pixelmend/pixelmend/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS edit_jobs (
	id TEXT PRIMARY KEY,
	source_key TEXT NOT NULL,
	result_key TEXT,
	prompt TEXT NOT NULL DEFAULT '',
	processing_type TEXT NOT NULL,
	quality TEXT NOT NULL,
	priority TEXT NOT NULL,
	markers JSONB NOT NULL DEFAULT '[]'::jsonb,
	stage TEXT,
	progress DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edit_jobs_status ON edit_jobs(status);
CREATE INDEX IF NOT EXISTS idx_edit_jobs_created_at ON edit_jobs(created_at DESC);

CREATE TABLE IF NOT EXISTS accounts (
	email TEXT PRIMARY KEY,
	verified BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JobRepository) Create(ctx context.Context, job *domain.EditJob) error {
	markersJSON, err := json.Marshal(job.Markers)
	if err != nil {
		return fmt.Errorf("marshal markers: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO edit_jobs (
	id, source_key, result_key, prompt, processing_type, quality, priority, markers, stage, progress, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		job.ID, job.SourceKey, job.ResultKey, job.Prompt, string(job.Type), string(job.Quality), string(job.Priority),
		markersJSON, string(job.Stage), job.Progress, string(job.Status), job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert edit job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.EditJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, source_key, result_key, prompt, processing_type, quality, priority, markers, stage, progress, status, error_message, created_at, updated_at
FROM edit_jobs
WHERE id = $1
`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get edit job", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get edit job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) UpdateProgress(ctx context.Context, id string, stage domain.ProcessingStage, progress float64) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE edit_jobs
SET stage = $2, progress = $3, status = $4, updated_at = $5
WHERE id = $1
`, id, string(stage), progress, string(domain.JobProcessing), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return requireRow(result, id)
}

func (r *JobRepository) Finish(ctx context.Context, id string, status domain.JobStatus, resultKey, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE edit_jobs
SET status = $2, result_key = NULLIF($3, ''), error_message = NULLIF($4, ''), updated_at = $5
WHERE id = $1
`, id, string(status), resultKey, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("finish edit job: %w", err)
	}
	return requireRow(result, id)
}

func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]domain.EditJob, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, source_key, result_key, prompt, processing_type, quality, priority, markers, stage, progress, status, error_message, created_at, updated_at
FROM edit_jobs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list edit jobs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.EditJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edit job: %w", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edit jobs: %w", err)
	}
	return out, nil
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrJobNotFound, "update edit job", fmt.Errorf("id=%s", id))
	}
	return nil
}

type jobScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row jobScanner) (*domain.EditJob, error) {
	var (
		job         domain.EditJob
		resultKey   sql.NullString
		stage       sql.NullString
		errMessage  sql.NullString
		markersJSON []byte
		pt, q, p    string
		status      string
	)
	err := row.Scan(
		&job.ID,
		&job.SourceKey,
		&resultKey,
		&job.Prompt,
		&pt,
		&q,
		&p,
		&markersJSON,
		&stage,
		&job.Progress,
		&status,
		&errMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.ResultKey = resultKey.String
	job.Stage = domain.ProcessingStage(stage.String)
	job.Error = errMessage.String
	job.Type = domain.ProcessingType(pt)
	job.Quality = domain.QualityLevel(q)
	job.Priority = domain.PerformancePriority(p)
	job.Status = domain.JobStatus(status)
	if len(markersJSON) > 0 {
		if err := json.Unmarshal(markersJSON, &job.Markers); err != nil {
			return nil, fmt.Errorf("unmarshal markers: %w", err)
		}
	}
	return &job, nil
}
