// Package config defines the declarative agent configuration and its
// validation engine. Validation collects every problem into a single
// *ValidationError instead of failing fast, and reports advisory findings on
// a separate Warning channel so risky-but-legal configuration never blocks
// agent construction.
package config

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

const (
	// MinSystemPromptChars is the minimum system prompt length after
	// trimming surrounding whitespace.
	MinSystemPromptChars = 10

	// DefaultRecursionLimit bounds agent loop iterations when the config
	// leaves the limit unset.
	DefaultRecursionLimit = 100

	// MaxRecommendedRecursionLimit is the advisory ceiling. Values above it
	// validate but produce a Warning.
	MaxRecommendedRecursionLimit = 500

	// MinTemperature and MaxTemperature bound sampling temperature,
	// inclusive on both ends.
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// toolNamePattern is the allowed tool-name grammar. Names are matched
// case-sensitively and whole-string.
var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// AgentConfig declares everything needed to construct an agent: the model,
// its instructions, sampling and loop parameters, and the MCP servers plus
// the tool selection for each. Pre-built model handles, extra tools,
// middleware and state schemas are code-level concerns and enter through
// agent factory options instead.
type AgentConfig struct {
	// Model is a model identifier or friendly alias (e.g. "claude-sonnet-4.5",
	// "openai:gpt-4o") resolved through the model registry.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"description=Model identifier or alias"`

	// SystemPrompt is the agent's base instructions.
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt" jsonschema:"description=Agent system prompt,minLength=10"`

	// RecursionLimit bounds agent loop iterations. Nil means DefaultRecursionLimit.
	RecursionLimit *int `yaml:"recursion_limit,omitempty" json:"recursion_limit,omitempty" jsonschema:"minimum=1"`

	// Temperature is the sampling temperature in [0.0, 2.0]. Nil leaves the
	// provider default in place.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"minimum=0,maximum=2"`

	// MaxTokens caps the completion length. Nil applies the provider default.
	MaxTokens *int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"minimum=1"`

	// Servers maps a server name to its connection descriptor. Requires a
	// matching entry in Tools for every name, and vice versa.
	Servers map[string]*ServerConfig `yaml:"mcp_servers,omitempty" json:"mcp_servers,omitempty"`

	// Tools maps a server name to the tools the agent may use from it.
	Tools map[string][]string `yaml:"mcp_tools,omitempty" json:"mcp_tools,omitempty"`
}

// SetDefaults applies defaults to unset fields.
func (c *AgentConfig) SetDefaults() {
	if c.RecursionLimit == nil {
		c.RecursionLimit = IntPtr(DefaultRecursionLimit)
	}
	for _, server := range c.Servers {
		if server != nil {
			server.SetDefaults()
		}
	}
}

// Validate checks the whole configuration and returns every violation at
// once as a *ValidationError, plus any advisory warnings. Warnings are
// returned even when validation fails. A nil error means the configuration
// is usable as-is.
func (c *AgentConfig) Validate() ([]Warning, error) {
	var issues []Issue
	var warnings []Warning

	trimmed := strings.TrimSpace(c.SystemPrompt)
	switch {
	case trimmed == "":
		issues = append(issues, Issue{
			Field:   "system_prompt",
			Message: "system prompt is required and cannot be blank",
			Remedy:  fmt.Sprintf("Provide at least %d characters of instructions", MinSystemPromptChars),
		})
	case len(trimmed) < MinSystemPromptChars:
		issues = append(issues, Issue{
			Field:   "system_prompt",
			Value:   c.SystemPrompt,
			Message: fmt.Sprintf("system prompt must be at least %d characters after trimming, got %d", MinSystemPromptChars, len(trimmed)),
			Remedy:  "Describe the agent's role and constraints in more detail",
		})
	}

	if c.RecursionLimit != nil {
		switch {
		case *c.RecursionLimit <= 0:
			issues = append(issues, Issue{
				Field:   "recursion_limit",
				Value:   *c.RecursionLimit,
				Message: fmt.Sprintf("recursion limit must be positive, got %d", *c.RecursionLimit),
				Remedy:  fmt.Sprintf("Omit the field to use the default of %d", DefaultRecursionLimit),
			})
		case *c.RecursionLimit > MaxRecommendedRecursionLimit:
			warnings = append(warnings, Warning{
				Field:   "recursion_limit",
				Message: fmt.Sprintf("recursion limit %d exceeds the recommended maximum of %d; a runaway agent may loop for a long time before the limit triggers", *c.RecursionLimit, MaxRecommendedRecursionLimit),
			})
		}
	}

	if c.Temperature != nil && (*c.Temperature < MinTemperature || *c.Temperature > MaxTemperature) {
		issues = append(issues, Issue{
			Field:   "temperature",
			Value:   *c.Temperature,
			Message: fmt.Sprintf("temperature must be between %g and %g inclusive, got %g", MinTemperature, MaxTemperature, *c.Temperature),
			Remedy:  "Pick a value within the range, or omit the field for the provider default",
		})
	}

	if c.MaxTokens != nil && *c.MaxTokens <= 0 {
		issues = append(issues, Issue{
			Field:   "max_tokens",
			Value:   *c.MaxTokens,
			Message: fmt.Sprintf("max tokens must be positive, got %d", *c.MaxTokens),
			Remedy:  "Use a positive cap, or omit the field for the provider default",
		})
	}

	issues = append(issues, c.validatePairing()...)

	// Per-entry checks always run, even when the outer name sets mismatch,
	// so a single pass surfaces everything.
	for _, name := range sortedKeys(c.Tools) {
		issues = append(issues, validateToolSelection(name, c.Tools[name])...)
	}
	for _, name := range sortedKeys(c.Servers) {
		server := c.Servers[name]
		if server == nil {
			issues = append(issues, Issue{
				Field:   "mcp_servers." + name,
				Message: "server definition cannot be empty",
				Remedy:  "Define a transport plus url or command for the server",
			})
			continue
		}
		serverIssues, serverWarnings := server.validate("mcp_servers." + name)
		issues = append(issues, serverIssues...)
		warnings = append(warnings, serverWarnings...)
	}

	if len(issues) > 0 {
		return warnings, &ValidationError{Issues: issues}
	}
	return warnings, nil
}

// validatePairing enforces that mcp_servers and mcp_tools appear together and
// name the same set of servers. Mismatches are reported per side so the user
// sees both what lacks a tool selection and what lacks a server definition.
func (c *AgentConfig) validatePairing() []Issue {
	hasServers := len(c.Servers) > 0
	hasTools := len(c.Tools) > 0

	switch {
	case !hasServers && !hasTools:
		return nil
	case hasServers && !hasTools:
		return []Issue{{
			Field:   "mcp_tools",
			Message: "mcp_servers is configured but mcp_tools is missing",
			Remedy:  "Declare which tools each configured server may expose",
		}}
	case hasTools && !hasServers:
		return []Issue{{
			Field:   "mcp_servers",
			Message: "mcp_tools is configured but mcp_servers is missing",
			Remedy:  "Define a connection for every server named in mcp_tools",
		}}
	}

	var issues []Issue

	var withoutTools []string
	for name := range c.Servers {
		if _, ok := c.Tools[name]; !ok {
			withoutTools = append(withoutTools, name)
		}
	}
	sort.Strings(withoutTools)
	if len(withoutTools) > 0 {
		issues = append(issues, Issue{
			Field:   "mcp_tools",
			Value:   withoutTools,
			Message: fmt.Sprintf("no tool selection for server(s): %s", strings.Join(withoutTools, ", ")),
			Remedy:  "Add an mcp_tools entry for every server in mcp_servers",
		})
	}

	var withoutServers []string
	for name := range c.Tools {
		if _, ok := c.Servers[name]; !ok {
			withoutServers = append(withoutServers, name)
		}
	}
	sort.Strings(withoutServers)
	if len(withoutServers) > 0 {
		issues = append(issues, Issue{
			Field:   "mcp_servers",
			Value:   withoutServers,
			Message: fmt.Sprintf("no server definition for tool selection(s): %s", strings.Join(withoutServers, ", ")),
			Remedy:  "Add an mcp_servers entry for every server in mcp_tools",
		})
	}

	return issues
}

// validateToolSelection checks one server's tool list: non-empty, valid
// names, no duplicates. Duplicate and grammar checks both name the server so
// the finding is actionable.
func validateToolSelection(server string, tools []string) []Issue {
	field := fmt.Sprintf("mcp_tools[%q]", server)

	if len(tools) == 0 {
		return []Issue{{
			Field:   field,
			Message: "tool selection cannot be empty",
			Remedy:  "List at least one tool name or remove the server entirely",
		}}
	}

	var issues []Issue
	seen := make(map[string]bool, len(tools))
	for _, tool := range tools {
		switch {
		case tool == "":
			issues = append(issues, Issue{
				Field:   field,
				Message: "tool name cannot be empty",
				Remedy:  "Remove the empty entry",
			})
		case !toolNamePattern.MatchString(tool):
			issues = append(issues, Issue{
				Field:   field,
				Value:   tool,
				Message: fmt.Sprintf("invalid tool name %q", tool),
				Remedy:  "Use only letters, digits, underscores and hyphens",
			})
		case seen[tool]:
			issues = append(issues, Issue{
				Field:   field,
				Value:   tool,
				Message: fmt.Sprintf("duplicate tool name %q", tool),
				Remedy:  "Remove the repeated entry",
			})
		}
		seen[tool] = true
	}
	return issues
}

// Process runs the standard pipeline on a config: defaults, then full
// validation. Warnings are logged and the aggregated error, if any, is
// returned untouched.
func Process(cfg *AgentConfig) error {
	cfg.SetDefaults()
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		slog.Warn("Configuration warning", "field", w.Field, "message", w.Message)
	}
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
