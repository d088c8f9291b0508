package content

import (
	"context"
	"errors"
)

// ErrFetchFailed reports that the upstream content source could not deliver
// the requested text.
var ErrFetchFailed = errors.New("content fetch failed")

// Query names the content to pull from the source: all entries of one
// content type, reduced to a single text field.
type Query struct {
	ContentType string
	Field       string
}

// Fetcher retrieves the raw text a sectioning run operates on.
type Fetcher interface {
	// FetchText returns the concatenated text of every entry matching q.
	FetchText(ctx context.Context, q Query) (string, error)
}
