package ports

import "context"

// SummaryRequest is the input of the external text-summary capability.
type SummaryRequest struct {
	Prompt      string
	Text        string
	Temperature float64
	MaxTokens   int
	// Model overrides the client's default model when set.
	Model string
}

// Summarizer is an external, fallible collaborator. Implementations must
// bound every call with a timeout.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}
