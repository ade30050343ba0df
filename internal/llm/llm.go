// Package llm provides the language model client used for grounded answer
// generation.
package llm

import (
	"context"
)

// GenerateOptions configures a generation request.
type GenerateOptions struct {
	// Model overrides the client's default model when non-empty.
	Model string

	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness. Grounded answers use 0 so the model
	// stays on the provided passages.
	Temperature float32

	// MaxTokens caps the response length. Zero means no limit.
	MaxTokens int
}

// LLM generates text completions.
type LLM interface {
	// Generate sends a prompt and blocks until the full response is
	// received or an error occurs.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
