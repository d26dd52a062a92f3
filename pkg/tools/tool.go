package tools

import (
	"context"
	"encoding/json"
)

// Tool is the interface for all tools offered to the capability agents.
type Tool interface {
	Name() string
	Description() string
	// Schema is the JSON schema of the arguments object.
	Schema() json.RawMessage
	Run(ctx context.Context, args map[string]any) (string, error)
}

// emptySchema is used for tools that take no arguments or publish no schema.
var emptySchema = json.RawMessage(`{"type": "object", "properties": {}}`)
