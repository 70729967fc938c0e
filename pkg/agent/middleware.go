package agent

import (
	"context"
	"fmt"

	"github.com/plantoncloud/graphton/pkg/tool"
	"github.com/plantoncloud/graphton/pkg/tool/mcptoolset"
)

// Middleware hooks into the invocation lifecycle. Before hooks run in chain
// order ahead of the engine; After hooks run in reverse order afterwards,
// engine failure or not.
type Middleware interface {
	Name() string
	Before(ctx context.Context, inv *Invocation) error
	After(ctx context.Context, inv *Invocation) error
}

// mcpMiddleware materializes MCP tools for each invocation. It always sits
// first in the chain so later middleware and the engine see the full tool
// list. The middleware itself is stateless: sessions opened for an invocation
// are tracked on that Invocation, so concurrent callers with distinct
// variables and tokens never touch each other's connections. Per-request
// sessions are closed in After; shared sessions outlive the invocation.
type mcpMiddleware struct {
	toolsets []tool.Toolset
}

func newMCPMiddleware(toolsets []tool.Toolset) *mcpMiddleware {
	return &mcpMiddleware{toolsets: toolsets}
}

func (m *mcpMiddleware) Name() string {
	return "mcp-toolsets"
}

func (m *mcpMiddleware) Before(ctx context.Context, inv *Invocation) error {
	req := tool.Request{Vars: inv.Vars, Token: inv.Token}

	for _, ts := range m.toolsets {
		mcpTS, ok := ts.(*mcptoolset.Toolset)
		if ok {
			session, err := mcpTS.Connect(ctx, req)
			if err != nil {
				return fmt.Errorf("toolset %s: %w", ts.Name(), err)
			}
			inv.sessions = append(inv.sessions, session)
			inv.Tools = append(inv.Tools, session.Tools()...)
			continue
		}

		tools, err := ts.Tools(ctx, req)
		if err != nil {
			return fmt.Errorf("toolset %s: %w", ts.Name(), err)
		}
		inv.Tools = append(inv.Tools, tools...)
	}

	return nil
}

func (m *mcpMiddleware) After(ctx context.Context, inv *Invocation) error {
	var firstErr error
	for _, session := range inv.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	inv.sessions = nil
	return firstErr
}
