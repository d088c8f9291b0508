package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sectioner/internal/chunker"
	"sectioner/internal/content"
	"sectioner/internal/index"
	"sectioner/internal/retry"
)

// ErrNoFetcher is returned by Ingest when no content source is configured.
var ErrNoFetcher = errors.New("no content source configured")

// IngestPayload describes an ingest task: pull a text field from the content
// source, section it, and index the sections.
type IngestPayload struct {
	JobID       uuid.UUID `json:"job_id"`
	ContentType string    `json:"content_type"`
	Field       string    `json:"field"`
	Category    string    `json:"category,omitempty"`
	SourceFile  string    `json:"sourcefile"`
}

// UploadPayload describes an upload task: the text is already extracted,
// section it and index the sections.
type UploadPayload struct {
	JobID      uuid.UUID `json:"job_id"`
	Text       string    `json:"text"`
	Category   string    `json:"category,omitempty"`
	SourcePage string    `json:"sourcepage,omitempty"`
	SourceFile string    `json:"sourcefile"`
}

// Pipeline turns raw text into indexed sections.
type Pipeline struct {
	log           *slog.Logger
	cfg           chunker.Config
	fetcher       content.Fetcher
	idx           index.Index
	batch         int
	schemaBackoff time.Duration
}

// New builds a pipeline. fetcher may be nil when only Upload is used.
func New(log *slog.Logger, cfg chunker.Config, fetcher content.Fetcher, idx index.Index, batchSize int) *Pipeline {
	return &Pipeline{
		log:           log,
		cfg:           cfg,
		fetcher:       fetcher,
		idx:           idx,
		batch:         batchSize,
		schemaBackoff: time.Second,
	}
}

// Ingest fetches the requested field from the content source and indexes it.
func (p *Pipeline) Ingest(ctx context.Context, payload IngestPayload) (index.Stats, error) {
	if p.fetcher == nil {
		return index.Stats{}, ErrNoFetcher
	}
	q := content.Query{ContentType: payload.ContentType, Field: payload.Field}
	text, err := p.fetcher.FetchText(ctx, q)
	if err != nil {
		return index.Stats{}, err
	}
	p.log.Info("fetched content", "content_type", q.ContentType, "field", q.Field, "chars", len(text))

	return p.Upload(ctx, UploadPayload{
		Text:       text,
		Category:   payload.Category,
		SourceFile: payload.SourceFile,
	})
}

// Upload sections already-extracted text and indexes the sections.
func (p *Pipeline) Upload(ctx context.Context, payload UploadPayload) (index.Stats, error) {
	meta := chunker.Metadata{
		Category:   payload.Category,
		SourcePage: payload.SourcePage,
		SourceFile: payload.SourceFile,
	}
	scanner, err := chunker.NewSectionScanner(payload.Text, p.cfg, meta)
	if err != nil {
		return index.Stats{}, err
	}
	if err := p.ensureSchema(ctx); err != nil {
		return index.Stats{}, err
	}

	up := index.NewUploader(p.log, p.idx, p.batch)
	return up.UploadAll(ctx, scanner)
}

// ensureSchema retries because the index may still be coming up alongside
// the workers.
func (p *Pipeline) ensureSchema(ctx context.Context) error {
	return retry.Do(ctx, 3, p.schemaBackoff, func() error {
		return p.idx.EnsureSchema(ctx)
	})
}
