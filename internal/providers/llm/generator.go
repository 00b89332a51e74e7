// Package llm generates text from rendered prompts.
package llm

import "context"

const (
	providerGemini = "gemini"
	providerStatic = "static"
)

// Request is one text generation call.
type Request struct {
	// Template is the prompt template name, used for logging and by the
	// static generator to shape its answer.
	Template string
	Prompt   string
	// JSON asks the model for a JSON document.
	JSON        bool
	Temperature float32
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}
