package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"sectioner/internal/app"
	"sectioner/internal/cache"
	"sectioner/internal/chunker"
	"sectioner/internal/config"
	"sectioner/internal/content"
	"sectioner/internal/index"
	"sectioner/internal/pipeline"
)

func newTestDeps(idx index.Index, c cache.Cache) app.Deps {
	return app.Deps{
		Index: idx,
		Cache: c,
		Config: config.Config{
			MaxSectionLength:    1000,
			SentenceSearchLimit: 100,
			SectionOverlap:      100,
			UploadBatchSize:     1000,
		},
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// okResults marks every section as accepted by the index.
func okResults(sections []chunker.Section) []index.Result {
	results := make([]index.Result, len(sections))
	for i, s := range sections {
		results[i] = index.Result{Key: s.ID, Succeeded: true}
	}
	return results
}

func TestRunJobSuccess(t *testing.T) {
	jobID := uuid.New()
	idx := new(index.MockIndex)
	idx.On("UpdateJobStatus", mock.Anything, jobID, index.JobRunning, "").Return(nil).Once()
	idx.On("SetJobCounts", mock.Anything, jobID, 3, 3).Return(nil).Once()
	idx.On("UpdateJobStatus", mock.Anything, jobID, index.JobDone, "").Return(nil).Once()
	c := new(cache.MockCache)
	c.On("InvalidateSearches", mock.Anything).Return(nil).Once()

	deps := newTestDeps(idx, c)
	err := runJob(context.Background(), deps, jobID, func() (index.Stats, error) {
		return index.Stats{Sections: 3, Succeeded: 3, Batches: 1}, nil
	})
	if err != nil {
		t.Fatalf("runJob() error = %v", err)
	}
	idx.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestRunJobTransientFailure(t *testing.T) {
	jobID := uuid.New()
	errIndex := errors.New("index down")
	idx := new(index.MockIndex)
	idx.On("UpdateJobStatus", mock.Anything, jobID, index.JobRunning, "").Return(nil).Once()
	idx.On("SetJobCounts", mock.Anything, jobID, 0, 0).Return(nil).Once()
	idx.On("UpdateJobStatus", mock.Anything, jobID, index.JobFailed, "index down").Return(nil).Once()
	c := new(cache.MockCache)

	deps := newTestDeps(idx, c)
	err := runJob(context.Background(), deps, jobID, func() (index.Stats, error) {
		return index.Stats{}, errIndex
	})
	if !errors.Is(err, errIndex) {
		t.Fatalf("runJob() error = %v, want %v so the task is re-queued", err, errIndex)
	}
	c.AssertNotCalled(t, "InvalidateSearches", mock.Anything)
	idx.AssertExpectations(t)
}

func TestRunJobPermanentFailure(t *testing.T) {
	jobID := uuid.New()
	idx := new(index.MockIndex)
	idx.On("UpdateJobStatus", mock.Anything, jobID, index.JobRunning, "").Return(nil).Once()
	idx.On("SetJobCounts", mock.Anything, jobID, 0, 0).Return(nil).Once()
	idx.On("UpdateJobStatus", mock.Anything, jobID, index.JobFailed, pipeline.ErrNoFetcher.Error()).Return(nil).Once()
	c := new(cache.MockCache)

	deps := newTestDeps(idx, c)
	err := runJob(context.Background(), deps, jobID, func() (index.Stats, error) {
		return index.Stats{}, pipeline.ErrNoFetcher
	})
	if err != nil {
		t.Fatalf("runJob() error = %v, want nil so the task is not re-queued", err)
	}
	idx.AssertExpectations(t)
}

func TestRunJobWithoutJobID(t *testing.T) {
	idx := new(index.MockIndex)
	c := new(cache.MockCache)
	c.On("InvalidateSearches", mock.Anything).Return(nil).Once()

	deps := newTestDeps(idx, c)
	err := runJob(context.Background(), deps, uuid.Nil, func() (index.Stats, error) {
		return index.Stats{Sections: 1, Succeeded: 1, Batches: 1}, nil
	})
	if err != nil {
		t.Fatalf("runJob() error = %v", err)
	}
	idx.AssertNotCalled(t, "UpdateJobStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	idx.AssertNotCalled(t, "SetJobCounts", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	c.AssertExpectations(t)
}

func TestHandleUploadIndexesSections(t *testing.T) {
	jobID := uuid.New()
	text := "Hello world. This is a test."
	meta := chunker.Metadata{Category: "docs", SourceFile: "notes.txt"}

	cfg := newTestDeps(nil, nil).Config
	want, err := chunker.BuildSections(text, cfg.Chunker(), meta)
	if err != nil {
		t.Fatalf("BuildSections() error = %v", err)
	}

	idx := new(index.MockIndex)
	idx.On("UpdateJobStatus", mock.Anything, jobID, index.JobRunning, "").Return(nil).Once()
	idx.On("EnsureSchema", mock.Anything).Return(nil).Once()
	idx.On("Upload", mock.Anything, want).Return(okResults(want), nil).Once()
	idx.On("SetJobCounts", mock.Anything, jobID, len(want), len(want)).Return(nil).Once()
	idx.On("UpdateJobStatus", mock.Anything, jobID, index.JobDone, "").Return(nil).Once()
	c := new(cache.MockCache)
	c.On("InvalidateSearches", mock.Anything).Return(nil).Once()

	deps := newTestDeps(idx, c)
	p := pipeline.New(deps.Log, deps.Config.Chunker(), nil, idx, deps.Config.UploadBatchSize)

	err = handleUpload(context.Background(), deps, p, pipeline.UploadPayload{
		JobID:      jobID,
		Text:       text,
		Category:   "docs",
		SourceFile: "notes.txt",
	})
	if err != nil {
		t.Fatalf("handleUpload() error = %v", err)
	}
	idx.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestHandleIngestFetchesAndIndexes(t *testing.T) {
	jobID := uuid.New()
	text := "Hello world. This is a test."
	meta := chunker.Metadata{SourceFile: "article"}

	cfg := newTestDeps(nil, nil).Config
	want, err := chunker.BuildSections(text, cfg.Chunker(), meta)
	if err != nil {
		t.Fatalf("BuildSections() error = %v", err)
	}

	fetcher := new(content.MockFetcher)
	fetcher.On("FetchText", mock.Anything, content.Query{ContentType: "article", Field: "body"}).
		Return(text, nil).Once()

	idx := new(index.MockIndex)
	idx.On("UpdateJobStatus", mock.Anything, jobID, index.JobRunning, "").Return(nil).Once()
	idx.On("EnsureSchema", mock.Anything).Return(nil).Once()
	idx.On("Upload", mock.Anything, want).Return(okResults(want), nil).Once()
	idx.On("SetJobCounts", mock.Anything, jobID, len(want), len(want)).Return(nil).Once()
	idx.On("UpdateJobStatus", mock.Anything, jobID, index.JobDone, "").Return(nil).Once()
	c := new(cache.MockCache)
	c.On("InvalidateSearches", mock.Anything).Return(nil).Once()

	deps := newTestDeps(idx, c)
	p := pipeline.New(deps.Log, deps.Config.Chunker(), fetcher, idx, deps.Config.UploadBatchSize)

	err = handleIngest(context.Background(), deps, p, pipeline.IngestPayload{
		JobID:       jobID,
		ContentType: "article",
		Field:       "body",
		SourceFile:  "article",
	})
	if err != nil {
		t.Fatalf("handleIngest() error = %v", err)
	}
	fetcher.AssertExpectations(t)
	idx.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestHandleIngestWithoutFetcher(t *testing.T) {
	jobID := uuid.New()
	idx := new(index.MockIndex)
	idx.On("UpdateJobStatus", mock.Anything, jobID, index.JobRunning, "").Return(nil).Once()
	idx.On("SetJobCounts", mock.Anything, jobID, 0, 0).Return(nil).Once()
	idx.On("UpdateJobStatus", mock.Anything, jobID, index.JobFailed, pipeline.ErrNoFetcher.Error()).Return(nil).Once()
	c := new(cache.MockCache)

	deps := newTestDeps(idx, c)
	p := pipeline.New(deps.Log, deps.Config.Chunker(), nil, idx, deps.Config.UploadBatchSize)

	err := handleIngest(context.Background(), deps, p, pipeline.IngestPayload{
		JobID:       jobID,
		ContentType: "article",
		Field:       "body",
	})
	if err != nil {
		t.Fatalf("handleIngest() error = %v, want nil for a permanent failure", err)
	}
	idx.AssertExpectations(t)
}
