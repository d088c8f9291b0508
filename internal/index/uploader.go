package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sectioner/internal/chunker"
)

// DefaultBatchSize is how many sections go to the index per upload call.
const DefaultBatchSize = 1000

// ErrPartialUpload reports that the index rejected some sections of a run.
var ErrPartialUpload = errors.New("some sections failed to upload")

// SectionSource yields sections one at a time, in order. A
// chunker.SectionScanner satisfies it.
type SectionSource interface {
	Scan() bool
	Section() chunker.Section
}

// Stats summarizes an upload run.
type Stats struct {
	Sections  int
	Succeeded int
	Batches   int
}

// Uploader drains a SectionSource into an Index in bounded batches, so a run
// never materializes more than one batch of sections in memory.
type Uploader struct {
	log       *slog.Logger
	index     Index
	batchSize int
}

// NewUploader builds an Uploader. A non-positive batchSize falls back to
// DefaultBatchSize.
func NewUploader(log *slog.Logger, idx Index, batchSize int) *Uploader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Uploader{log: log, index: idx, batchSize: batchSize}
}

// UploadAll streams every section from src into the index. It returns the
// run's stats and ErrPartialUpload if any section was rejected; an index
// error aborts the run with the stats accumulated so far.
func (u *Uploader) UploadAll(ctx context.Context, src SectionSource) (Stats, error) {
	var stats Stats
	batch := make([]chunker.Section, 0, u.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		results, err := u.index.Upload(ctx, batch)
		if err != nil {
			return err
		}
		succeeded := 0
		for _, r := range results {
			if r.Succeeded {
				succeeded++
			} else {
				u.log.Warn("section rejected by index", "key", r.Key, "reason", r.Message)
			}
		}
		stats.Sections += len(results)
		stats.Succeeded += succeeded
		stats.Batches++
		u.log.Info("indexed batch", "sections", len(results), "succeeded", succeeded)
		batch = batch[:0]
		return nil
	}

	for src.Scan() {
		batch = append(batch, src.Section())
		if len(batch) == u.batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	if stats.Succeeded < stats.Sections {
		return stats, fmt.Errorf("%w: %d of %d sections", ErrPartialUpload, stats.Sections-stats.Succeeded, stats.Sections)
	}
	return stats, nil
}
