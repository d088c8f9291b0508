package index

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"sectioner/internal/chunker"
)

// JobStatus tracks an ingest run through its lifecycle.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

var (
	// ErrIndexUnavailable reports that the search index cannot be reached.
	ErrIndexUnavailable = errors.New("search index unavailable")
	// ErrJobNotFound reports an unknown ingest job id.
	ErrJobNotFound = errors.New("job not found")
)

// Job records one sectioning-and-upload run.
type Job struct {
	ID         uuid.UUID `json:"id"`
	TaskType   string    `json:"task_type"`
	SourceFile string    `json:"sourcefile,omitempty"`
	Status     JobStatus `json:"status"`
	Sections   int       `json:"sections"`
	Succeeded  int       `json:"succeeded"`
	LastError  string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Result reports one section's upload outcome.
type Result struct {
	Key       string
	Succeeded bool
	Message   string
}

// Hit is one search match with its relevance score.
type Hit struct {
	Section chunker.Section
	Score   float32
}

// Index is the search index the sectioning pipeline feeds. It accepts
// bounded batches of sections, reports per-section success, and answers
// full-text queries.
type Index interface {
	// EnsureSchema creates the index structures if they do not exist yet.
	EnsureSchema(ctx context.Context) error
	// Upload upserts sections and returns one Result per section, in order.
	Upload(ctx context.Context, sections []chunker.Section) ([]Result, error)
	// Search returns the best-matching sections for a full-text query,
	// optionally restricted to the given categories.
	Search(ctx context.Context, query string, categories []string, limit int) ([]Hit, error)

	CreateJob(ctx context.Context, taskType, sourceFile string) (Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status JobStatus, lastError string) error
	SetJobCounts(ctx context.Context, id uuid.UUID, sections, succeeded int) error

	Close() error
}
