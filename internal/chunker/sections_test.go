package chunker

import (
	"errors"
	"fmt"
	"testing"
)

func TestBuildSectionsIDsAndMetadata(t *testing.T) {
	meta := Metadata{Category: "docs", SourcePage: "3", SourceFile: "guide.txt"}
	sections, err := BuildSections("Hello world. This is a test.", testConfig(15, 10, 2), meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}

	for i, s := range sections {
		if want := fmt.Sprintf("section-%d", i); s.ID != want {
			t.Errorf("section %d id: got %q, want %q", i, s.ID, want)
		}
		if s.Category != meta.Category || s.SourcePage != meta.SourcePage || s.SourceFile != meta.SourceFile {
			t.Errorf("section %d metadata not stamped: %+v", i, s)
		}
		if s.Content == "" {
			t.Errorf("section %d has empty content", i)
		}
	}
}

func TestBuildSectionsEmptyMetadata(t *testing.T) {
	sections, err := BuildSections("hello", testConfig(15, 10, 10), Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	s := sections[0]
	if s.Category != "" || s.SourcePage != "" || s.SourceFile != "" {
		t.Errorf("expected empty metadata fields, got %+v", s)
	}
}

func TestBuildSectionsInvalidConfig(t *testing.T) {
	if _, err := BuildSections("text", testConfig(10, 5, 10), Metadata{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
}

func TestSectionScannerMatchesBuildSections(t *testing.T) {
	text := "One sentence here. Another one there! And a third? Plus a tail."
	cfg := testConfig(20, 10, 4)
	meta := Metadata{SourceFile: "notes.txt"}

	eager, err := BuildSections(text, cfg, meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sc, err := NewSectionScanner(text, cfg, meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var streamed []Section
	for sc.Scan() {
		streamed = append(streamed, sc.Section())
	}

	if len(streamed) != len(eager) {
		t.Fatalf("streamed %d sections, eager built %d", len(streamed), len(eager))
	}
	for i := range eager {
		if streamed[i] != eager[i] {
			t.Errorf("section %d: streamed %+v, eager %+v", i, streamed[i], eager[i])
		}
	}
}
