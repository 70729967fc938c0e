// Package agent assembles validated configuration into a runnable agent.
//
// The factory validates the config (propagating the aggregated validation
// error verbatim), optionally enhances the system prompt, wires MCP toolsets
// into the middleware chain ahead of caller middleware, resolves the model
// unless a pre-built handle was supplied, and delegates final construction to
// an injected Constructor. The underlying graph runtime stays pluggable;
// graphton validates and assembles, the constructor executes.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/plantoncloud/graphton/pkg/config"
	"github.com/plantoncloud/graphton/pkg/model"
	"github.com/plantoncloud/graphton/pkg/tool"
	"github.com/plantoncloud/graphton/pkg/tool/mcptoolset"
)

// Params is everything a Constructor needs to build the underlying engine.
// StateSchema is opaque to graphton and passes through untouched.
type Params struct {
	Model          model.LLM
	SystemPrompt   string
	RecursionLimit int
	Tools          []tool.Tool
	Middleware     []Middleware
	StateSchema    any
}

// Engine is a constructed agent ready to take invocations.
type Engine interface {
	Invoke(ctx context.Context, inv *Invocation) (string, error)
}

// Constructor builds the underlying agent engine from assembled parameters.
type Constructor interface {
	Construct(ctx context.Context, p Params) (Engine, error)
}

// ConstructorFunc adapts a function to the Constructor interface.
type ConstructorFunc func(ctx context.Context, p Params) (Engine, error)

func (f ConstructorFunc) Construct(ctx context.Context, p Params) (Engine, error) {
	return f(ctx, p)
}

// Invocation is one agent call. Middleware may attach tools and state to it
// before the engine runs.
type Invocation struct {
	// ID uniquely identifies this invocation.
	ID string

	// Input is the user message.
	Input string

	// Vars resolves {{NAME}} placeholders in MCP connection descriptors.
	Vars map[string]string

	// Token is the caller's bearer token for auth-from-context servers.
	Token string

	// Tools is the per-invocation tool list: static tools from Params plus
	// whatever the MCP middleware materialized for this call.
	Tools []tool.Tool

	// sessions are the MCP connections opened for this invocation. Tracked
	// here rather than on the middleware so concurrent invocations never
	// share or close each other's connections.
	sessions []*mcptoolset.Session
}

// InvokeOptions carries per-invocation inputs.
type InvokeOptions struct {
	Input string
	Vars  map[string]string
	Token string
}

// Agent is a constructed agent with its middleware chain.
type Agent struct {
	engine         Engine
	llm            model.LLM
	systemPrompt   string
	recursionLimit int
	tools          []tool.Tool
	middleware     []Middleware
}

type options struct {
	llm           model.LLM
	tools         []tool.Tool
	middleware    []Middleware
	stateSchema   any
	enhancePrompt bool
}

// Option configures agent construction.
type Option func(*options)

// WithModelHandle supplies a pre-built model handle. The config's model
// string and sampling overrides are ignored with a logged warning.
func WithModelHandle(llm model.LLM) Option {
	return func(o *options) {
		o.llm = llm
	}
}

// WithTools adds static tools available on every invocation.
func WithTools(tools ...tool.Tool) Option {
	return func(o *options) {
		o.tools = append(o.tools, tools...)
	}
}

// WithMiddleware appends caller middleware. The MCP toolset middleware
// always runs first so rendered tools are in place before anything else.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithStateSchema supplies a custom agent state shape. Graphton never
// inspects it; the constructor receives it exactly as given.
func WithStateSchema(schema any) Option {
	return func(o *options) {
		o.stateSchema = schema
	}
}

// WithPromptEnhancement appends the capability suffix to the system prompt.
func WithPromptEnhancement() Option {
	return func(o *options) {
		o.enhancePrompt = true
	}
}

// New validates cfg and builds an agent through the given constructor.
// Validation failures return the aggregated *ValidationError untouched.
func New(ctx context.Context, cfg *config.AgentConfig, ctor Constructor, opts ...Option) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if ctor == nil {
		return nil, fmt.Errorf("constructor is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg.SetDefaults()
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		slog.Warn("Configuration warning", "field", w.Field, "message", w.Message)
	}
	if err != nil {
		return nil, err
	}

	prompt := cfg.SystemPrompt
	if o.enhancePrompt {
		enhanced, err := EnhanceInstructions(prompt, len(cfg.Servers) > 0)
		if err != nil {
			return nil, err
		}
		prompt = enhanced
	}

	toolsets, err := buildToolsets(cfg)
	if err != nil {
		return nil, err
	}

	middleware := make([]Middleware, 0, len(o.middleware)+1)
	if len(toolsets) > 0 {
		middleware = append(middleware, newMCPMiddleware(toolsets))
	}
	middleware = append(middleware, o.middleware...)

	llm := o.llm
	if llm != nil {
		if cfg.Model != "" || cfg.Temperature != nil || cfg.MaxTokens != nil {
			slog.Warn("Ignoring config model settings; a pre-built model handle was supplied",
				"model", cfg.Model,
			)
		}
	} else {
		if cfg.Model == "" {
			return nil, fmt.Errorf("model is required: set it in the config or supply a handle with WithModelHandle")
		}
		llm, err = model.Resolve(cfg.Model, model.Options{
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve model: %w", err)
		}
	}

	recursionLimit := config.IntValue(cfg.RecursionLimit, config.DefaultRecursionLimit)

	engine, err := ctor.Construct(ctx, Params{
		Model:          llm,
		SystemPrompt:   prompt,
		RecursionLimit: recursionLimit,
		Tools:          o.tools,
		Middleware:     middleware,
		StateSchema:    o.stateSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to construct agent: %w", err)
	}

	return &Agent{
		engine:         engine,
		llm:            llm,
		systemPrompt:   prompt,
		recursionLimit: recursionLimit,
		tools:          o.tools,
		middleware:     middleware,
	}, nil
}

// buildToolsets creates one MCP toolset per configured server, carrying the
// server's tool selection as the filter.
func buildToolsets(cfg *config.AgentConfig) ([]tool.Toolset, error) {
	if len(cfg.Servers) == 0 {
		return nil, nil
	}

	var toolsets []tool.Toolset
	for _, name := range sortedServerNames(cfg.Servers) {
		server := cfg.Servers[name]
		ts, err := mcptoolset.New(mcptoolset.Config{
			Name:            name,
			Descriptor:      server.Descriptor(),
			AuthFromContext: config.BoolValue(server.AuthFromContext, true),
			Filter:          cfg.Tools[name],
		})
		if err != nil {
			return nil, fmt.Errorf("server %q: %w", name, err)
		}
		toolsets = append(toolsets, ts)
	}
	return toolsets, nil
}

// Model returns the resolved model handle.
func (a *Agent) Model() model.LLM {
	return a.llm
}

// SystemPrompt returns the prompt handed to the constructor, enhancement
// included.
func (a *Agent) SystemPrompt() string {
	return a.systemPrompt
}

// Middleware returns the assembled middleware chain in execution order.
func (a *Agent) Middleware() []Middleware {
	return a.middleware
}

// Invoke runs one agent call: Before middleware in order, the engine, then
// After middleware in reverse order. After hooks run even when the engine
// fails so per-invocation resources are released.
func (a *Agent) Invoke(ctx context.Context, opts InvokeOptions) (string, error) {
	inv := &Invocation{
		ID:    uuid.NewString(),
		Input: opts.Input,
		Vars:  opts.Vars,
		Token: opts.Token,
		Tools: append([]tool.Tool(nil), a.tools...),
	}

	for i, mw := range a.middleware {
		if err := mw.Before(ctx, inv); err != nil {
			// Unwind the middleware that already ran so resources opened by
			// earlier Before hooks are released.
			for j := i - 1; j >= 0; j-- {
				if afterErr := a.middleware[j].After(ctx, inv); afterErr != nil {
					slog.Warn("Middleware cleanup failed", "middleware", a.middleware[j].Name(), "error", afterErr)
				}
			}
			return "", fmt.Errorf("middleware %s: %w", mw.Name(), err)
		}
	}

	output, invokeErr := a.engine.Invoke(ctx, inv)

	for i := len(a.middleware) - 1; i >= 0; i-- {
		if err := a.middleware[i].After(ctx, inv); err != nil {
			slog.Warn("Middleware cleanup failed", "middleware", a.middleware[i].Name(), "error", err)
		}
	}

	if invokeErr != nil {
		return "", invokeErr
	}
	return output, nil
}

func sortedServerNames(servers map[string]*config.ServerConfig) []string {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
