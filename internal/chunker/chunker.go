package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// Default sizing used across the system. Sections target one thousand
// characters with a hundred characters of context shared between neighbors.
const (
	DefaultMaxSectionLength    = 1000
	DefaultSentenceSearchLimit = 100
	DefaultSectionOverlap      = 100
)

const (
	defaultSentenceEndings = ".!?"
	defaultWordBreaks      = ",;: ()[]{}\t\n"
)

// ErrInvalidConfig reports a Config that cannot produce valid sections.
var ErrInvalidConfig = errors.New("invalid chunker config")

// Config fixes the sectioning behavior. Lengths count runes, not bytes.
type Config struct {
	// MaxSectionLength is the target section size.
	MaxSectionLength int
	// SentenceSearchLimit is how far past MaxSectionLength to scan for a
	// sentence ending before falling back to a word break or a hard cut.
	SentenceSearchLimit int
	// SectionOverlap is how many trailing runes of one section reopen the
	// next. Must stay below MaxSectionLength.
	SectionOverlap int
	// SentenceEndings and WordBreaks are the boundary character classes.
	// Empty values fall back to the defaults.
	SentenceEndings string
	WordBreaks      string
}

// DefaultConfig returns the standard sectioning parameters.
func DefaultConfig() Config {
	return Config{
		MaxSectionLength:    DefaultMaxSectionLength,
		SentenceSearchLimit: DefaultSentenceSearchLimit,
		SectionOverlap:      DefaultSectionOverlap,
		SentenceEndings:     defaultSentenceEndings,
		WordBreaks:          defaultWordBreaks,
	}
}

// Validate reports whether the sizing parameters can yield well-formed,
// terminating output. All three must be positive and the overlap must be
// smaller than the section length, otherwise the cursor cannot advance.
func (c Config) Validate() error {
	if c.MaxSectionLength <= 0 {
		return fmt.Errorf("max section length %d is not positive: %w", c.MaxSectionLength, ErrInvalidConfig)
	}
	if c.SentenceSearchLimit <= 0 {
		return fmt.Errorf("sentence search limit %d is not positive: %w", c.SentenceSearchLimit, ErrInvalidConfig)
	}
	if c.SectionOverlap <= 0 {
		return fmt.Errorf("section overlap %d is not positive: %w", c.SectionOverlap, ErrInvalidConfig)
	}
	if c.SectionOverlap >= c.MaxSectionLength {
		return fmt.Errorf("section overlap %d must be smaller than max section length %d: %w",
			c.SectionOverlap, c.MaxSectionLength, ErrInvalidConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.SentenceEndings == "" {
		c.SentenceEndings = defaultSentenceEndings
	}
	if c.WordBreaks == "" {
		c.WordBreaks = defaultWordBreaks
	}
	return c
}

// Scanner walks a text and produces its sections one at a time, in order.
// Use it like bufio.Scanner: call Scan until it returns false, reading the
// current section with Text or Bounds between calls. A Scanner holds no
// resources and never fails after construction.
type Scanner struct {
	cfg     Config
	text    []rune
	start   int
	curFrom int
	curTo   int
	emitted bool
	done    bool
}

// NewScanner validates cfg and prepares a Scanner over text. The text is
// trimmed of surrounding whitespace once; all offsets refer to the trimmed
// rune buffer.
func NewScanner(text string, cfg Config) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{
		cfg:  cfg.withDefaults(),
		text: []rune(strings.TrimSpace(text)),
	}, nil
}

// Scan advances to the next section. It returns false when the text is
// exhausted.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	length := len(s.text)
	if s.start+s.cfg.SectionOverlap < length {
		s.next()
		return true
	}
	s.done = true
	// Text too short for the cursor to run at all still yields one section
	// holding everything.
	if !s.emitted && length > 0 {
		s.curFrom, s.curTo = 0, length
		return true
	}
	return false
}

// next emits one section: propose an end boundary, prefer a sentence ending
// then a word break over a mid-word cut, reopen the start on a clean
// boundary, then step the cursor forward by the overlap.
func (s *Scanner) next() {
	length := len(s.text)
	start := s.start
	end := start + s.cfg.MaxSectionLength
	if end >= length {
		end = length
	} else {
		lastWord := -1
		for end < length && end-start-s.cfg.MaxSectionLength < s.cfg.SentenceSearchLimit && !s.isSentenceEnding(s.text[end]) {
			if s.isWordBreak(s.text[end]) {
				lastWord = end
			}
			end++
		}
		// No sentence ending inside the search window: at least end on a
		// whole word.
		if end < length && !s.isSentenceEnding(s.text[end]) && lastWord > 0 {
			end = lastWord
		}
	}
	if end < length && s.isSentenceEnding(s.text[end]) {
		end++
	}

	if adjusted := s.sentenceStart(start); adjusted > 0 {
		start = adjusted
	}

	s.curFrom, s.curTo = start, end
	s.start = end - s.cfg.SectionOverlap
	s.emitted = true
}

// sentenceStart walks backward from pos looking for a clean opening. The
// first word break wins and the section opens just past it; a sentence
// ending wins at its own index, so a section may open on the previous
// sentence's closing punctuation. Zero means no adjustment.
func (s *Scanner) sentenceStart(pos int) int {
	for pos > 0 && !s.isSentenceEnding(s.text[pos]) {
		if s.isWordBreak(s.text[pos]) {
			return pos + 1
		}
		pos--
	}
	return pos
}

// Text returns the current section's content. Valid after a true Scan.
func (s *Scanner) Text() string {
	return string(s.text[s.curFrom:s.curTo])
}

// Bounds returns the current section's [start, end) rune offsets into the
// trimmed text.
func (s *Scanner) Bounds() (start, end int) {
	return s.curFrom, s.curTo
}

func (s *Scanner) isSentenceEnding(r rune) bool {
	return strings.ContainsRune(s.cfg.SentenceEndings, r)
}

func (s *Scanner) isWordBreak(r rune) bool {
	return strings.ContainsRune(s.cfg.WordBreaks, r)
}

// Split sections text eagerly and returns every slice in order. It is a
// convenience wrapper over Scanner for callers that do not need streaming.
func Split(text string, cfg Config) ([]string, error) {
	sc, err := NewScanner(text, cfg)
	if err != nil {
		return nil, err
	}
	var sections []string
	for sc.Scan() {
		sections = append(sections, sc.Text())
	}
	return sections, nil
}
