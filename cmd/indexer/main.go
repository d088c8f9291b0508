package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sectioner/internal/app"
	"sectioner/internal/chunker"
	"sectioner/internal/httputil"
	"sectioner/internal/index"
	"sectioner/internal/pipeline"
	"sectioner/internal/queue"
)

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("indexer worker starting")

	p := pipeline.New(deps.Log, deps.Config.Chunker(), deps.Fetcher, deps.Index, deps.Config.UploadBatchSize)

	g, ctx := errgroup.WithContext(context.Background())

	// Consume ingest tasks
	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeIngest, func(ctx context.Context, task queue.Task) error {
			var payload pipeline.IngestPayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return err
			}
			return handleIngest(ctx, deps, p, payload)
		})
	})

	// Consume upload tasks
	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeUpload, func(ctx context.Context, task queue.Task) error {
			var payload pipeline.UploadPayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return err
			}
			return handleUpload(ctx, deps, p, payload)
		})
	})

	// Run health check server
	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps.Log, deps.Config.Port, "indexer")
	})

	// Wait for either to fail
	if err := g.Wait(); err != nil {
		deps.Log.Error("indexer service stopped", "err", err)
	}
}

func handleIngest(ctx context.Context, deps app.Deps, p *pipeline.Pipeline, payload pipeline.IngestPayload) error {
	return runJob(ctx, deps, payload.JobID, func() (index.Stats, error) {
		return p.Ingest(ctx, payload)
	})
}

func handleUpload(ctx context.Context, deps app.Deps, p *pipeline.Pipeline, payload pipeline.UploadPayload) error {
	return runJob(ctx, deps, payload.JobID, func() (index.Stats, error) {
		return p.Upload(ctx, payload)
	})
}

// runJob tracks a job through running to done or failed while fn executes
// the pipeline. A nil job id runs the pipeline without status tracking.
func runJob(ctx context.Context, deps app.Deps, jobID uuid.UUID, fn func() (index.Stats, error)) error {
	log := deps.Log.With("job_id", jobID)
	if jobID != uuid.Nil {
		if upErr := deps.Index.UpdateJobStatus(ctx, jobID, index.JobRunning, ""); upErr != nil {
			log.Warn("failed to mark job running", "err", upErr)
		}
	}

	stats, err := fn()

	if jobID != uuid.Nil {
		if upErr := deps.Index.SetJobCounts(ctx, jobID, stats.Sections, stats.Succeeded); upErr != nil {
			log.Warn("failed to record job counts", "err", upErr)
		}
		status, lastError := index.JobDone, ""
		if err != nil {
			status, lastError = index.JobFailed, err.Error()
		}
		if upErr := deps.Index.UpdateJobStatus(ctx, jobID, status, lastError); upErr != nil {
			log.Warn("failed to update job status", "err", upErr)
		}
	}

	if err != nil {
		if permanent(err) {
			// Re-queueing cannot fix these; the job is already marked failed.
			log.Error("job failed permanently", "err", err)
			return nil
		}
		return err
	}

	log.Info("job finished", "sections", stats.Sections, "succeeded", stats.Succeeded, "batches", stats.Batches)

	// Cached search results may now be stale.
	if invErr := deps.Cache.InvalidateSearches(ctx); invErr != nil {
		log.Warn("failed to invalidate cached searches", "err", invErr)
	}
	return nil
}

// permanent reports errors that no retry can recover from.
func permanent(err error) bool {
	return errors.Is(err, pipeline.ErrNoFetcher) || errors.Is(err, chunker.ErrInvalidConfig)
}
