package adapters

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes one MCP tool an adapter exposes. Instances are
// built once as static package-level slices and never mutated.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Adapter is the capability set every service implementation exposes. A
// call never raises across this boundary: Handle always returns either a
// payload to serialize, or a human-readable error message that the
// dispatcher turns into an MCP isError reply. config holds the
// credential's fields already decrypted by the caller.
type Adapter interface {
	Tools() []ToolDefinition
	Handle(ctx context.Context, tool string, args json.RawMessage, config map[string]string) (payload any, errMsg string)
}

// ToolNames returns the tool names an adapter declares, in declaration
// order, for allow-list and tools/list filtering.
func ToolNames(a Adapter) []string {
	tools := a.Tools()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}
