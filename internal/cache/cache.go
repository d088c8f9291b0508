package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache provides search result caching
type Cache interface {
	// GetSearchResult retrieves a cached search result by key
	// Returns nil if not found
	GetSearchResult(ctx context.Context, key string) (*SearchResult, error)

	// SetSearchResult stores a search result with TTL
	SetSearchResult(ctx context.Context, key string, result *SearchResult, ttl time.Duration) error

	// InvalidateSearches drops every cached search result. Called after an
	// ingest run changes the index.
	InvalidateSearches(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// SearchResult represents a cached search response
type SearchResult struct {
	Hits []Hit `json:"hits"`
}

// Hit represents one matching section in a search result
type Hit struct {
	ID         string  `json:"id"`
	Preview    string  `json:"preview"` // Truncated section content
	Category   string  `json:"category,omitempty"`
	SourcePage string  `json:"sourcepage,omitempty"`
	SourceFile string  `json:"sourcefile,omitempty"`
	Score      float32 `json:"score"`
}

// Key derives a stable cache key from request parameters.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
