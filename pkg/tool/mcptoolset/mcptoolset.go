// Package mcptoolset provides a Toolset implementation for MCP servers.
//
// MCP (Model Context Protocol) allows connecting to external tool servers
// that expose tools via a standardized protocol.
//
// The toolset holds a connection descriptor template, not a live connection.
// Descriptors without {{NAME}} placeholders connect once and share the
// session across invocations; descriptors with placeholders are rendered
// fresh per request, so each caller gets a session built from its own
// variables and bearer token. The stored descriptor is never modified.
//
// Transport support:
//   - stdio: uses mcp-go for subprocess communication
//   - sse, streamable-http: JSON-RPC over httpclient with retry/backoff
package mcptoolset

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/plantoncloud/graphton/pkg/httpclient"
	"github.com/plantoncloud/graphton/pkg/template"
	"github.com/plantoncloud/graphton/pkg/tool"
)

const (
	// DefaultSSEResponseTimeout accommodates long-running tool calls.
	DefaultSSEResponseTimeout = 5 * time.Minute

	clientName    = "graphton"
	clientVersion = "0.1.0"
	protocolDate  = "2024-11-05"
)

// Config configures an MCP toolset.
type Config struct {
	// Name identifies this toolset.
	Name string

	// Descriptor is the connection template: transport, url, headers,
	// command, args, env. String values may carry {{NAME}} placeholders
	// resolved per request.
	Descriptor map[string]any

	// AuthFromContext merges the request's bearer token into the
	// Authorization header after rendering.
	AuthFromContext bool

	// Filter limits which tools are exposed.
	Filter []string

	// MaxRetries for HTTP requests (default: 3).
	MaxRetries int

	// SSETimeout for SSE response reading (default: 5m).
	SSETimeout time.Duration
}

// Toolset is an MCP-backed toolset with lazy, per-request materialization.
type Toolset struct {
	cfg       Config
	static    bool
	filterSet map[string]bool

	mu     sync.Mutex
	shared *Session
}

// New creates a new MCP toolset from a connection descriptor.
func New(cfg Config) (*Toolset, error) {
	if len(cfg.Descriptor) == 0 {
		return nil, fmt.Errorf("connection descriptor is required")
	}
	if stringField(cfg.Descriptor, "url") == "" && stringField(cfg.Descriptor, "command") == "" {
		return nil, fmt.Errorf("either url or command is required")
	}

	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.SSETimeout == 0 {
		cfg.SSETimeout = DefaultSSEResponseTimeout
	}

	return &Toolset{
		cfg:       cfg,
		static:    !template.Has(cfg.Descriptor),
		filterSet: filterSet,
	}, nil
}

// Name returns the toolset name.
func (t *Toolset) Name() string {
	return t.cfg.Name
}

// Static reports whether the descriptor carries no placeholders and the
// session can be shared across invocations.
func (t *Toolset) Static() bool {
	return t.static
}

// Endpoint is a fully rendered connection; no placeholders remain.
type Endpoint struct {
	Transport string
	URL       string
	Headers   map[string]string
	Command   string
	Args      []string
	Env       map[string]string
}

// Render materializes the descriptor with the request's variables and merges
// the bearer token when auth-from-context is on. Every call renders a fresh
// copy; the stored descriptor survives untouched for the next caller.
func (t *Toolset) Render(req tool.Request) (*Endpoint, error) {
	rendered, err := template.Substitute(t.cfg.Descriptor, req.Vars)
	if err != nil {
		return nil, fmt.Errorf("server %q: %w", t.cfg.Name, err)
	}

	m, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("server %q: descriptor is not a mapping", t.cfg.Name)
	}

	ep := &Endpoint{
		Transport: stringField(m, "transport"),
		URL:       stringField(m, "url"),
		Headers:   stringMapField(m, "headers"),
		Command:   stringField(m, "command"),
		Args:      stringSliceField(m, "args"),
		Env:       stringMapField(m, "env"),
	}

	if t.cfg.AuthFromContext && req.Token != "" {
		if ep.Headers == nil {
			ep.Headers = make(map[string]string, 1)
		}
		ep.Headers["Authorization"] = "Bearer " + req.Token
	}

	return ep, nil
}

// Tools implements tool.Toolset. Static descriptors reuse one shared
// session; templated ones (or requests carrying a token) connect fresh.
func (t *Toolset) Tools(ctx context.Context, req tool.Request) ([]tool.Tool, error) {
	session, err := t.Connect(ctx, req)
	if err != nil {
		return nil, err
	}
	return session.Tools(), nil
}

// Connect returns a live session for this request. Sessions for static,
// token-free descriptors are shared and owned by the toolset; all others are
// owned by the caller, who must Close them after the invocation.
func (t *Toolset) Connect(ctx context.Context, req tool.Request) (*Session, error) {
	if t.static && (!t.cfg.AuthFromContext || req.Token == "") {
		t.mu.Lock()
		defer t.mu.Unlock()

		if t.shared != nil {
			return t.shared, nil
		}

		ep, err := t.Render(tool.Request{})
		if err != nil {
			return nil, err
		}
		session, err := t.connect(ctx, ep, true)
		if err != nil {
			return nil, err
		}
		t.shared = session
		return session, nil
	}

	ep, err := t.Render(req)
	if err != nil {
		return nil, err
	}
	return t.connect(ctx, ep, false)
}

// Close shuts down the shared session, if any. Per-request sessions are
// closed by their owners.
func (t *Toolset) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shared == nil {
		return nil
	}
	err := t.shared.close()
	t.shared = nil
	return err
}

func (t *Toolset) connect(ctx context.Context, ep *Endpoint, shared bool) (*Session, error) {
	session := &Session{
		toolset:  t,
		endpoint: ep,
		shared:   shared,
	}

	var err error
	if ep.Command != "" || ep.Transport == "stdio" {
		err = session.connectStdio(ctx)
	} else {
		err = session.connectHTTP(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server %q: %w", t.cfg.Name, err)
	}

	return session, nil
}

// Session is a live MCP connection scoped to one render of the descriptor.
type Session struct {
	toolset  *Toolset
	endpoint *Endpoint
	shared   bool

	client     *client.Client     // stdio transport
	httpClient *httpclient.Client // HTTP transports

	sessionMu sync.RWMutex
	sessionID string // streamable-http session header

	tools []tool.Tool
}

// Tools returns the tools listed by the server, filter applied.
func (s *Session) Tools() []tool.Tool {
	return s.tools
}

// Close releases the session. Shared sessions are owned by their toolset and
// ignore Close; use Toolset.Close for those.
func (s *Session) Close() error {
	if s.shared {
		return nil
	}
	return s.close()
}

func (s *Session) close() error {
	if s.client != nil {
		err := s.client.Close()
		s.client = nil
		s.tools = nil
		return err
	}
	s.httpClient = nil
	s.tools = nil
	return nil
}

// connectStdio launches the server subprocess via mcp-go.
func (s *Session) connectStdio(ctx context.Context) error {
	mcpClient, err := client.NewStdioMCPClient(
		s.endpoint.Command,
		envSlice(s.endpoint.Env),
		s.endpoint.Args...,
	)
	if err != nil {
		return fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}
	initReq.Params.ProtocolVersion = protocolDate

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP: %w", err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to list tools: %w", err)
	}

	var tools []tool.Tool
	for _, listed := range listResp.Tools {
		if s.toolset.filterSet != nil && !s.toolset.filterSet[listed.Name] {
			continue
		}
		tools = append(tools, &mcpTool{
			session:  s,
			name:     listed.Name,
			desc:     listed.Description,
			schema:   convertSchema(listed.InputSchema),
			useStdio: true,
		})
	}

	s.client = mcpClient
	s.tools = tools

	slog.Info("Connected to MCP server (stdio)",
		"name", s.toolset.cfg.Name,
		"command", s.endpoint.Command,
		"tools", len(tools),
	)

	return nil
}

// connectHTTP initializes the server over JSON-RPC with retry/backoff.
func (s *Session) connectHTTP(ctx context.Context) error {
	s.httpClient = httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		httpclient.WithMaxRetries(s.toolset.cfg.MaxRetries),
		httpclient.WithBaseDelay(2*time.Second),
	)

	initResp, err := s.rpc(ctx, "initialize", map[string]any{
		"protocolVersion": protocolDate,
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
		"capabilities": map[string]any{},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize MCP: %w", err)
	}
	if initResp.Error != nil {
		return fmt.Errorf("MCP init error: %s", initResp.Error.Message)
	}

	listResp, err := s.rpc(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	if listResp.Error != nil {
		return fmt.Errorf("MCP list error: %s", listResp.Error.Message)
	}

	resultMap, ok := listResp.Result.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected result type from tools/list")
	}
	toolsList, ok := resultMap["tools"].([]any)
	if !ok {
		return fmt.Errorf("missing tools in tools/list response")
	}

	var tools []tool.Tool
	for _, toolRaw := range toolsList {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}

		name, _ := toolMap["name"].(string)
		desc, _ := toolMap["description"].(string)

		if s.toolset.filterSet != nil && !s.toolset.filterSet[name] {
			continue
		}

		var schema map[string]any
		if inputSchema, ok := toolMap["inputSchema"].(map[string]any); ok {
			schema = inputSchema
		}

		tools = append(tools, &mcpTool{
			session: s,
			name:    name,
			desc:    desc,
			schema:  schema,
		})
	}

	s.tools = tools

	slog.Info("Connected to MCP server (HTTP)",
		"name", s.toolset.cfg.Name,
		"url", s.endpoint.URL,
		"transport", s.endpoint.Transport,
		"tools", len(tools),
	)

	return nil
}

// JSON-RPC types
type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpc sends a JSON-RPC request to the rendered endpoint.
func (s *Session) rpc(ctx context.Context, method string, params any) (*jsonRPCResponse, error) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.endpoint.URL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	for key, value := range s.endpoint.Headers {
		httpReq.Header.Set(key, value)
	}

	s.sessionMu.RLock()
	sessionID := s.sessionID
	s.sessionMu.RUnlock()
	if sessionID != "" {
		httpReq.Header.Set("mcp-session-id", sessionID)
	}

	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		slog.Debug("MCP HTTP request failed",
			"source", s.toolset.cfg.Name,
			"url", s.endpoint.URL,
			"method", method,
			"error", err.Error())
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if newSessionID := httpResp.Header.Get("mcp-session-id"); newSessionID != "" {
		s.sessionMu.Lock()
		s.sessionID = newSessionID
		s.sessionMu.Unlock()
	}

	if httpResp.StatusCode != http.StatusOK {
		responseBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("HTTP error %d: %s (response: %s)", httpResp.StatusCode, httpResp.Status, string(responseBody))
	}

	if strings.Contains(httpResp.Header.Get("Content-Type"), "text/event-stream") {
		return s.readSSEResponse(httpResp)
	}

	responseBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp jsonRPCResponse
	if err := json.Unmarshal(responseBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &resp, nil
}

// readSSEResponse reads the first complete JSON-RPC response from an SSE stream.
func (s *Session) readSSEResponse(httpResp *http.Response) (*jsonRPCResponse, error) {
	type result struct {
		response *jsonRPCResponse
		err      error
	}
	resultChan := make(chan result, 1)

	go func() {
		defer httpResp.Body.Close()

		reader := bufio.NewReader(httpResp.Body)
		var currentData strings.Builder

		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				if err == io.EOF {
					break
				}
				slog.Debug("MCP SSE read error", "source", s.toolset.cfg.Name, "error", err)
				break
			}

			lineStr := strings.TrimSpace(string(line))

			// Empty line signals end of event
			if lineStr == "" {
				if currentData.Len() > 0 {
					var resp jsonRPCResponse
					if parseErr := json.Unmarshal([]byte(currentData.String()), &resp); parseErr == nil {
						resultChan <- result{response: &resp}
						return
					}
					currentData.Reset()
				}
				continue
			}

			if strings.HasPrefix(lineStr, "data:") {
				currentData.WriteString(strings.TrimSpace(strings.TrimPrefix(lineStr, "data:")))
			}
		}

		if currentData.Len() > 0 {
			var resp jsonRPCResponse
			if parseErr := json.Unmarshal([]byte(currentData.String()), &resp); parseErr == nil {
				resultChan <- result{response: &resp}
				return
			}
		}

		resultChan <- result{err: fmt.Errorf("SSE stream ended without complete message")}
	}()

	select {
	case res := <-resultChan:
		if res.err != nil {
			return nil, res.err
		}
		return res.response, nil
	case <-time.After(s.toolset.cfg.SSETimeout):
		return nil, fmt.Errorf("timeout reading SSE response after %v", s.toolset.cfg.SSETimeout)
	}
}

// mcpTool wraps one server-side tool as tool.Tool.
type mcpTool struct {
	session  *Session
	name     string
	desc     string
	schema   map[string]any
	useStdio bool
}

func (w *mcpTool) Name() string {
	return w.name
}

func (w *mcpTool) Description() string {
	return w.desc
}

func (w *mcpTool) Schema() map[string]any {
	return w.schema
}

func (w *mcpTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	if w.useStdio {
		return w.callStdio(ctx, args)
	}
	return w.callHTTP(ctx, args)
}

func (w *mcpTool) callStdio(ctx context.Context, args map[string]any) (map[string]any, error) {
	mcpClient := w.session.client
	if mcpClient == nil {
		return nil, fmt.Errorf("MCP client not connected")
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = w.name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("MCP call failed: %w", err)
	}

	return parseToolResponse(resp), nil
}

func (w *mcpTool) callHTTP(ctx context.Context, args map[string]any) (map[string]any, error) {
	resp, err := w.session.rpc(ctx, "tools/call", map[string]any{
		"name":      w.name,
		"arguments": args,
	})
	if err != nil {
		return nil, fmt.Errorf("MCP call failed: %w", err)
	}

	if resp.Error != nil {
		return map[string]any{
			"error": resp.Error.Message,
		}, nil
	}

	result := make(map[string]any)
	resultMap, ok := resp.Result.(map[string]any)
	if !ok {
		result["result"] = resp.Result
		return result, nil
	}

	if isError, _ := resultMap["isError"].(bool); isError {
		if content, ok := resultMap["content"].([]any); ok {
			for _, c := range content {
				if cm, ok := c.(map[string]any); ok {
					if text, ok := cm["text"].(string); ok {
						result["error"] = text
						break
					}
				}
			}
		}
		if result["error"] == nil {
			result["error"] = "unknown error"
		}
		return result, nil
	}

	if content, ok := resultMap["content"].([]any); ok {
		var texts []string
		for _, c := range content {
			if cm, ok := c.(map[string]any); ok {
				if cm["type"] == "text" {
					if text, ok := cm["text"].(string); ok {
						texts = append(texts, text)
					}
				}
			}
		}
		if len(texts) == 1 {
			result["result"] = texts[0]
		} else if len(texts) > 1 {
			result["results"] = texts
		}
	}

	return result, nil
}

// parseToolResponse converts an mcp-go tool response into a map.
func parseToolResponse(resp *mcp.CallToolResult) map[string]any {
	result := make(map[string]any)
	if resp.IsError {
		for _, content := range resp.Content {
			if textContent, ok := content.(mcp.TextContent); ok {
				result["error"] = textContent.Text
				break
			}
		}
		if result["error"] == nil {
			result["error"] = "unknown error"
		}
		return result
	}

	var texts []string
	for _, content := range resp.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	if len(texts) == 1 {
		result["result"] = texts[0]
	} else if len(texts) > 1 {
		result["results"] = texts
	}

	return result
}

// convertSchema converts an mcp-go input schema to a plain map.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}

	return result
}

// envSlice flattens an env map into KEY=VALUE form for subprocess launch.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, k+"="+env[k])
	}
	return result
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringMapField(m map[string]any, key string) map[string]string {
	switch v := m[key].(type) {
	case map[string]string:
		result := make(map[string]string, len(v))
		for k, val := range v {
			result[k] = val
		}
		return result
	case map[string]any:
		result := make(map[string]string, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				result[k] = s
			}
		}
		return result
	default:
		return nil
	}
}

func stringSliceField(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		result := make([]string, len(v))
		copy(result, v)
		return result
	case []any:
		var result []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}

var (
	_ tool.Toolset = (*Toolset)(nil)
	_ tool.Tool    = (*mcpTool)(nil)
)
