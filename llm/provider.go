package llm

import "context"

// Provider is the interface for LLM interactions.
type Provider interface {
	// Generate sends a single-turn completion request and returns the
	// model's full response text.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// Models lists the model names available on the backend.
	Models(ctx context.Context) ([]string, error)
}

// GenerateRequest is a completion request. Images carry base64-encoded
// page renders for vision models.
type GenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
