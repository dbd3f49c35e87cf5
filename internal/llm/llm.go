package llm

import (
	"context"
	"encoding/json"
)

// Schema is a JSON schema constraining a structured completion.
type Schema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// Client is a single hosted LLM used for structured extraction and
// embeddings. Implementations must be safe for concurrent use.
type Client interface {
	// CompleteJSON runs one chat completion constrained by schema and
	// returns the raw JSON object the model produced.
	CompleteJSON(ctx context.Context, system, user string, schema Schema) (json.RawMessage, error)

	// Embed returns the embedding vector for a piece of text.
	Embed(ctx context.Context, text string) ([]float64, error)
}
