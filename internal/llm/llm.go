package llm

import "context"

// Client is a minimal LLM interface to allow pluggable providers.
type Client interface {
	// Answer replies to a question using only the provided section text,
	// returning the answer and a heuristic confidence in [0,1].
	Answer(ctx context.Context, question, sections string) (string, float32, error)
}
