// Package tool defines the interfaces for tools that agents can invoke.
//
// Tools are opaque to the configuration layer: graphton validates which tool
// names an agent may use and wires toolsets into the invocation path, but
// never interprets tool behavior.
package tool

import "context"

// Tool is a single callable capability.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description returns a human-readable description of what the tool
	// does. Used by LLMs to decide when to call it.
	Description() string

	// Schema returns the JSON schema for the tool's parameters, nil when
	// the tool takes none.
	Schema() map[string]any

	// Call executes the tool with the given arguments.
	Call(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Request carries the per-invocation inputs a toolset may need to
// materialize its tools: template variables and an optional bearer token.
type Request struct {
	// Vars resolves {{NAME}} placeholders in connection descriptors.
	Vars map[string]string

	// Token is the caller's bearer token, merged into the Authorization
	// header by toolsets that opt into auth-from-context.
	Token string
}

// Toolset provides a group of related tools. Implementations may connect
// lazily and may return different tools per request when their configuration
// carries placeholders.
type Toolset interface {
	// Name identifies the toolset.
	Name() string

	// Tools returns the tools available for this request.
	Tools(ctx context.Context, req Request) ([]Tool, error)
}
