package cache

import (
	"context"
	"testing"
	"time"
)

// TestNoOpCache verifies that NoOpCache implements the Cache interface correctly
func TestNoOpCache(t *testing.T) {
	cache := NewNoOpCache()
	ctx := context.Background()

	// Test GetSearchResult - should always return nil (cache miss)
	result, err := cache.GetSearchResult(ctx, "test-key")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result (cache miss), got %v", result)
	}

	// Test SetSearchResult - should succeed silently
	err = cache.SetSearchResult(ctx, "test-key", &SearchResult{
		Hits: []Hit{{ID: "section-0", Preview: "some text", Score: 0.95}},
	}, 1*time.Hour)
	if err != nil {
		t.Errorf("Expected no error on SetSearchResult, got %v", err)
	}

	// Verify it still returns nil (nothing was actually cached)
	result, err = cache.GetSearchResult(ctx, "test-key")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result (no-op cache doesn't store), got %v", result)
	}

	// Test InvalidateSearches - should succeed silently
	err = cache.InvalidateSearches(ctx)
	if err != nil {
		t.Errorf("Expected no error on InvalidateSearches, got %v", err)
	}

	// Test Close - should succeed silently
	err = cache.Close()
	if err != nil {
		t.Errorf("Expected no error on Close, got %v", err)
	}
}

func TestKeyStability(t *testing.T) {
	a := Key("sectioning basics", "docs", "5")
	b := Key("sectioning basics", "docs", "5")
	if a != b {
		t.Errorf("same parts must derive the same key: %q vs %q", a, b)
	}

	if Key("ab", "c") == Key("a", "bc") {
		t.Error("part boundaries must affect the key")
	}
	if Key("q1") == Key("q2") {
		t.Error("different parts must derive different keys")
	}
}
