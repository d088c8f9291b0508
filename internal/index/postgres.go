package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"sectioner/internal/chunker"
)

const defaultSearchLimit = 10

type PostgresIndex struct {
	db *sql.DB
}

// NewPostgres opens the index database and verifies the connection.
// Schema creation is a separate step; see EnsureSchema.
func NewPostgres(dsn string) (*PostgresIndex, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	return &PostgresIndex{db: db}, nil
}

// EnsureSchema creates the sections and jobs tables if missing. Safe to call
// from every service at startup.
func (s *PostgresIndex) EnsureSchema(ctx context.Context) error {
	// Use advisory lock to prevent concurrent schema creation from multiple
	// services. Note: In production, use dedicated migration tools (e.g.,
	// golang-migrate/migrate) that run as a separate deployment step before
	// app services start.
	const lockID = 982451653 // arbitrary number for this application's schema lock

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("%w: acquire schema lock: %v", ErrIndexUnavailable, err)
	}

	if !acquired {
		// Another service is creating the schema; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}

	// Ensure lock is released when done
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sections (
			id TEXT NOT NULL,
			sourcefile TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			sourcepage TEXT NOT NULL DEFAULT '',
			indexed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			content_tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
			PRIMARY KEY (id, sourcefile)
		);`,
		`CREATE INDEX IF NOT EXISTS sections_tsv_idx ON sections USING GIN (content_tsv);`,
		`CREATE INDEX IF NOT EXISTS sections_category_idx ON sections (category);`,
		`CREATE TABLE IF NOT EXISTS ingest_jobs (
			id UUID PRIMARY KEY,
			task_type TEXT NOT NULL,
			sourcefile TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			sections INT NOT NULL DEFAULT 0,
			succeeded INT NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: create schema: %v", ErrIndexUnavailable, err)
		}
	}
	return nil
}

// Upload upserts each section on its (id, sourcefile) key so re-ingesting a
// source replaces its content instead of duplicating it. Sections are written
// one at a time and each gets its own Result.
func (s *PostgresIndex) Upload(ctx context.Context, sections []chunker.Section) ([]Result, error) {
	results := make([]Result, 0, len(sections))
	for _, sec := range sections {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sections(id, sourcefile, content, category, sourcepage, indexed_at)
			VALUES($1,$2,$3,$4,$5,now())
			ON CONFLICT (id, sourcefile) DO UPDATE
			SET content=excluded.content, category=excluded.category,
			    sourcepage=excluded.sourcepage, indexed_at=excluded.indexed_at`,
			sec.ID, sec.SourceFile, sec.Content, sec.Category, sec.SourcePage)
		result := Result{Key: sec.ID, Succeeded: err == nil}
		if err != nil {
			result.Message = err.Error()
		}
		results = append(results, result)
	}
	return results, nil
}

// Search ranks sections against a plain-language query. An empty categories
// slice matches every category.
func (s *PostgresIndex) Search(ctx context.Context, query string, categories []string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, category, sourcepage, sourcefile,
		       ts_rank(content_tsv, plainto_tsquery('english', $1)) AS rank
		FROM sections
		WHERE content_tsv @@ plainto_tsquery('english', $1)
		  AND (cardinality($2::text[]) = 0 OR category = ANY($2::text[]))
		ORDER BY rank DESC, id
		LIMIT $3`,
		query, pq.Array(pqStringArray(categories)), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Section.ID, &h.Section.Content, &h.Section.Category,
			&h.Section.SourcePage, &h.Section.SourceFile, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PostgresIndex) CreateJob(ctx context.Context, taskType, sourceFile string) (Job, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `INSERT INTO ingest_jobs(id, task_type, sourcefile, status) VALUES($1,$2,$3,$4)`,
		id, taskType, sourceFile, JobQueued)
	if err != nil {
		return Job{}, err
	}
	now := time.Now()
	return Job{ID: id, TaskType: taskType, SourceFile: sourceFile, Status: JobQueued, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *PostgresIndex) GetJob(ctx context.Context, id uuid.UUID) (Job, error) {
	var job Job
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_type, sourcefile, status, sections, succeeded, last_error, created_at, updated_at
		FROM ingest_jobs WHERE id=$1`, id)
	err := row.Scan(&job.ID, &job.TaskType, &job.SourceFile, &job.Status,
		&job.Sections, &job.Succeeded, &job.LastError, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return job, nil
}

func (s *PostgresIndex) UpdateJobStatus(ctx context.Context, id uuid.UUID, status JobStatus, lastError string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE ingest_jobs SET status=$1, last_error=$2, updated_at=now() WHERE id=$3`,
		status, lastError, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *PostgresIndex) SetJobCounts(ctx context.Context, id uuid.UUID, sections, succeeded int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE ingest_jobs SET sections=$1, succeeded=$2, updated_at=now() WHERE id=$3`,
		sections, succeeded, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *PostgresIndex) Close() error {
	return s.db.Close()
}

func pqStringArray(items []string) []string {
	if len(items) == 0 {
		return []string{}
	}
	return items
}
