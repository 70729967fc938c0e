package config

import (
	"fmt"
	"strings"
)

// Issue describes a single validation failure. Field uses dotted/bracketed
// paths into the configuration (e.g. "mcp_servers.cloud.url",
// `mcp_tools["cloud"]`) so callers can point users at the offending entry.
type Issue struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
	Remedy  string      `json:"remedy,omitempty"`
}

func (i Issue) String() string {
	s := fmt.Sprintf("%s: %s", i.Field, i.Message)
	if i.Remedy != "" {
		s += ". " + i.Remedy
	}
	return s
}

// ValidationError aggregates every issue found in a full validation pass.
// Validation never stops at the first problem; callers get the complete list
// in one round trip.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d issue(s):\n", len(e.Issues))
	for _, issue := range e.Issues {
		fmt.Fprintf(&sb, "  - %s\n", issue)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// Fields returns the distinct Field paths carried by the error, in order of
// first appearance. Convenience for tests and structured reporting.
func (e *ValidationError) Fields() []string {
	seen := make(map[string]struct{}, len(e.Issues))
	var fields []string
	for _, issue := range e.Issues {
		if _, ok := seen[issue.Field]; ok {
			continue
		}
		seen[issue.Field] = struct{}{}
		fields = append(fields, issue.Field)
	}
	return fields
}

// Warning is an advisory finding. Warnings never make validation fail; they
// flag risky but legal configuration (plaintext transport, literal
// credentials, very high recursion limits).
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}
