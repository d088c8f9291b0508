package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sectioner/internal/retry"
)

// TaskType enumerates supported task categories.
type TaskType string

const (
	// TaskTypeIngest pulls text from the content source, sections it and
	// uploads the sections to the search index.
	TaskTypeIngest TaskType = "ingest"
	// TaskTypeUpload sections text already extracted from an uploaded
	// document and uploads the sections to the search index.
	TaskTypeUpload TaskType = "upload"
)

// Task represents a unit of work shared across services.
type Task struct {
	ID          uuid.UUID
	Type        TaskType
	Payload     []byte
	Attempts    int
	MaxAttempts int
	NotBefore   time.Time
}

type Handler func(context.Context, Task) error

// Queue exposes a minimal contract to enqueue and consume tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Worker(ctx context.Context, taskType TaskType, handler Handler) error
}

// EnqueueWithRetry attempts to enqueue with retries and exponential backoff.
func EnqueueWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	return retry.Do(ctx, attempts, base, func() error {
		return q.Enqueue(ctx, task)
	})
}
