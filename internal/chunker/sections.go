package chunker

import "fmt"

// Section is one bounded, possibly overlapping slice of a source document,
// shaped for the search index.
type Section struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Category   string `json:"category"`
	SourcePage string `json:"sourcepage"`
	SourceFile string `json:"sourcefile"`
}

// Metadata carries the caller-supplied fields stamped onto every section of
// a document. The zero value leaves them empty.
type Metadata struct {
	Category   string
	SourcePage string
	SourceFile string
}

// SectionScanner wraps Scanner and dresses each slice as a Section with a
// sequential id ("section-0", "section-1", ...) and the given metadata.
type SectionScanner struct {
	inner *Scanner
	meta  Metadata
	index int
	cur   Section
}

// NewSectionScanner validates cfg and prepares a SectionScanner over text.
func NewSectionScanner(text string, cfg Config, meta Metadata) (*SectionScanner, error) {
	inner, err := NewScanner(text, cfg)
	if err != nil {
		return nil, err
	}
	return &SectionScanner{inner: inner, meta: meta}, nil
}

// Scan advances to the next section. It returns false when the text is
// exhausted.
func (s *SectionScanner) Scan() bool {
	if !s.inner.Scan() {
		return false
	}
	s.cur = Section{
		ID:         fmt.Sprintf("section-%d", s.index),
		Content:    s.inner.Text(),
		Category:   s.meta.Category,
		SourcePage: s.meta.SourcePage,
		SourceFile: s.meta.SourceFile,
	}
	s.index++
	return true
}

// Section returns the current section. Valid after a true Scan.
func (s *SectionScanner) Section() Section {
	return s.cur
}

// BuildSections sections text eagerly and returns every Section in order.
func BuildSections(text string, cfg Config, meta Metadata) ([]Section, error) {
	sc, err := NewSectionScanner(text, cfg, meta)
	if err != nil {
		return nil, err
	}
	var sections []Section
	for sc.Scan() {
		sections = append(sections, sc.Section())
	}
	return sections, nil
}
