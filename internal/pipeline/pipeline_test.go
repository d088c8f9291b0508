package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"sectioner/internal/chunker"
	"sectioner/internal/content"
	"sectioner/internal/index"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testChunkerConfig() chunker.Config {
	return chunker.Config{
		MaxSectionLength:    15,
		SentenceSearchLimit: 10,
		SectionOverlap:      2,
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

func TestIngestFetchesAndUploads(t *testing.T) {
	text := "Hello world. This is a test."
	cfg := testChunkerConfig()
	meta := chunker.Metadata{Category: "docs", SourceFile: "handbook"}
	want, err := chunker.BuildSections(text, cfg, meta)
	if err != nil {
		t.Fatalf("BuildSections() error = %v", err)
	}
	if len(want) == 0 {
		t.Fatal("expected test text to produce sections")
	}

	fetcher := new(content.MockFetcher)
	fetcher.On("FetchText", mock.Anything, content.Query{ContentType: "article", Field: "body"}).
		Return(text, nil).Once()

	idx := new(index.MockIndex)
	idx.On("EnsureSchema", mock.Anything).Return(nil).Once()
	idx.On("Upload", mock.Anything, want).Return(okResults(want), nil).Once()

	p := New(discardLogger(), cfg, fetcher, idx, 100)
	stats, err := p.Ingest(context.Background(), IngestPayload{
		ContentType: "article",
		Field:       "body",
		Category:    "docs",
		SourceFile:  "handbook",
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if stats.Sections != len(want) || stats.Succeeded != len(want) {
		t.Errorf("stats = %+v, want %d sections all succeeded", stats, len(want))
	}
	if stats.Batches != 1 {
		t.Errorf("stats.Batches = %d, want 1", stats.Batches)
	}
	fetcher.AssertExpectations(t)
	idx.AssertExpectations(t)
}

func TestIngestWithoutFetcher(t *testing.T) {
	idx := new(index.MockIndex)
	p := New(discardLogger(), testChunkerConfig(), nil, idx, 100)

	_, err := p.Ingest(context.Background(), IngestPayload{ContentType: "article", Field: "body"})
	if !errors.Is(err, ErrNoFetcher) {
		t.Fatalf("Ingest() error = %v, want ErrNoFetcher", err)
	}
	idx.AssertNotCalled(t, "EnsureSchema", mock.Anything)
}

func TestIngestFetchError(t *testing.T) {
	errFetch := errors.New("upstream down")
	fetcher := new(content.MockFetcher)
	fetcher.On("FetchText", mock.Anything, mock.Anything).Return("", errFetch).Once()

	idx := new(index.MockIndex)
	p := New(discardLogger(), testChunkerConfig(), fetcher, idx, 100)

	_, err := p.Ingest(context.Background(), IngestPayload{ContentType: "article", Field: "body"})
	if !errors.Is(err, errFetch) {
		t.Fatalf("Ingest() error = %v, want %v", err, errFetch)
	}
	idx.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	fetcher.AssertExpectations(t)
}

func TestUploadEmptyText(t *testing.T) {
	idx := new(index.MockIndex)
	idx.On("EnsureSchema", mock.Anything).Return(nil).Once()

	p := New(discardLogger(), testChunkerConfig(), nil, idx, 100)
	stats, err := p.Upload(context.Background(), UploadPayload{Text: "   \n", SourceFile: "empty"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if stats.Sections != 0 || stats.Succeeded != 0 || stats.Batches != 0 {
		t.Errorf("stats = %+v, want all zero", stats)
	}
	idx.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestUploadRetriesSchema(t *testing.T) {
	text := "Short text."
	cfg := chunker.DefaultConfig()
	meta := chunker.Metadata{SourceFile: "notes"}
	want, err := chunker.BuildSections(text, cfg, meta)
	if err != nil {
		t.Fatalf("BuildSections() error = %v", err)
	}

	idx := new(index.MockIndex)
	idx.On("EnsureSchema", mock.Anything).Return(errors.New("index starting")).Twice()
	idx.On("EnsureSchema", mock.Anything).Return(nil).Once()
	idx.On("Upload", mock.Anything, want).Return(okResults(want), nil).Once()

	p := New(discardLogger(), cfg, nil, idx, 100)
	p.schemaBackoff = time.Millisecond

	stats, err := p.Upload(context.Background(), UploadPayload{Text: text, SourceFile: "notes"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if stats.Succeeded != len(want) {
		t.Errorf("stats.Succeeded = %d, want %d", stats.Succeeded, len(want))
	}
	idx.AssertExpectations(t)
}

func TestUploadSchemaUnavailable(t *testing.T) {
	errDown := errors.New("index down")
	idx := new(index.MockIndex)
	idx.On("EnsureSchema", mock.Anything).Return(errDown).Times(3)

	p := New(discardLogger(), testChunkerConfig(), nil, idx, 100)
	p.schemaBackoff = time.Millisecond

	_, err := p.Upload(context.Background(), UploadPayload{Text: "Some text to index.", SourceFile: "notes"})
	if !errors.Is(err, errDown) {
		t.Fatalf("Upload() error = %v, want %v", err, errDown)
	}
	idx.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	idx.AssertExpectations(t)
}

func TestUploadInvalidConfig(t *testing.T) {
	idx := new(index.MockIndex)
	cfg := chunker.Config{MaxSectionLength: 10, SentenceSearchLimit: 5, SectionOverlap: 10}

	p := New(discardLogger(), cfg, nil, idx, 100)
	_, err := p.Upload(context.Background(), UploadPayload{Text: "Some text.", SourceFile: "notes"})
	if !errors.Is(err, chunker.ErrInvalidConfig) {
		t.Fatalf("Upload() error = %v, want ErrInvalidConfig", err)
	}
	idx.AssertNotCalled(t, "EnsureSchema", mock.Anything)
}
