package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/plantoncloud/graphton/pkg/template"
)

// Supported MCP server transports.
const (
	TransportStreamableHTTP = "streamable-http"
	TransportSSE            = "sse"
	TransportStdio          = "stdio"
)

// ServerConfig describes one MCP server connection. String values may carry
// {{NAME}} placeholders that are resolved per invocation; the stored config
// is the template and is never overwritten by substitution.
type ServerConfig struct {
	// Transport selects the connection mechanism. Empty defaults to
	// streamable-http, or stdio when Command is set.
	Transport string `yaml:"transport,omitempty" json:"transport,omitempty" jsonschema:"enum=streamable-http,enum=sse,enum=stdio"`

	// URL is the server endpoint for HTTP-based transports.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Headers are sent with every HTTP request to the server.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Command and Args launch a local server process for stdio transport.
	Command string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Env sets extra environment variables for stdio server processes.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// AuthFromContext controls whether a per-invocation bearer token is
	// merged into the Authorization header. Defaults to true.
	AuthFromContext *bool `yaml:"auth_from_context,omitempty" json:"auth_from_context,omitempty"`
}

// SetDefaults applies defaults to unset fields.
func (c *ServerConfig) SetDefaults() {
	if c.Transport == "" {
		if c.Command != "" {
			c.Transport = TransportStdio
		} else {
			c.Transport = TransportStreamableHTTP
		}
	}
	if c.AuthFromContext == nil {
		c.AuthFromContext = BoolPtr(true)
	}
}

func (c *ServerConfig) validate(field string) ([]Issue, []Warning) {
	var issues []Issue
	var warnings []Warning

	transport := c.Transport
	if transport == "" {
		transport = TransportStreamableHTTP
		if c.Command != "" {
			transport = TransportStdio
		}
	}

	switch transport {
	case TransportStreamableHTTP, TransportSSE:
		if c.URL == "" {
			issues = append(issues, Issue{
				Field:   field + ".url",
				Message: fmt.Sprintf("url is required for %s transport", transport),
				Remedy:  "Set url to the server's endpoint",
			})
		} else if w, ok := plaintextTransportWarning(field, c.URL); ok {
			warnings = append(warnings, w)
		}
	case TransportStdio:
		if c.Command == "" {
			issues = append(issues, Issue{
				Field:   field + ".command",
				Message: "command is required for stdio transport",
				Remedy:  "Set command to the executable that serves MCP over stdio",
			})
		}
	default:
		issues = append(issues, Issue{
			Field:   field + ".transport",
			Value:   c.Transport,
			Message: fmt.Sprintf("unsupported transport %q", c.Transport),
			Remedy:  fmt.Sprintf("Use one of: %s, %s, %s", TransportStreamableHTTP, TransportSSE, TransportStdio),
		})
	}

	for _, key := range sortedKeys(c.Headers) {
		value := c.Headers[key]
		if isCredentialHeader(key) && value != "" && !template.Has(value) {
			warnings = append(warnings, Warning{
				Field:   field + ".headers." + key,
				Message: "literal credential in configuration; prefer a {{TOKEN}} placeholder resolved at invocation time",
			})
		}
	}

	return issues, warnings
}

// plaintextTransportWarning flags http:// URLs pointing at non-loopback
// hosts. URLs still carrying placeholders are skipped since the final host is
// unknown until substitution.
func plaintextTransportWarning(field, rawURL string) (Warning, bool) {
	if template.Has(rawURL) {
		return Warning{}, false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "http" {
		return Warning{}, false
	}
	host := u.Hostname()
	if host == "localhost" {
		return Warning{}, false
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return Warning{}, false
	}
	return Warning{
		Field:   field + ".url",
		Message: fmt.Sprintf("plaintext http to non-loopback host %q; headers and tool traffic are sent unencrypted", host),
	}, true
}

func isCredentialHeader(key string) bool {
	k := strings.ToLower(key)
	return k == "authorization" || k == "proxy-authorization" || k == "x-api-key" || strings.HasSuffix(k, "-token")
}

// Descriptor renders the connection as generic nested data suitable for
// template scanning and substitution. The returned map is a fresh copy on
// every call; mutating it never touches the config.
func (c *ServerConfig) Descriptor() map[string]interface{} {
	d := map[string]interface{}{
		"transport": c.Transport,
	}
	if c.URL != "" {
		d["url"] = c.URL
	}
	if len(c.Headers) > 0 {
		headers := make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		d["headers"] = headers
	}
	if c.Command != "" {
		d["command"] = c.Command
	}
	if len(c.Args) > 0 {
		args := make([]string, len(c.Args))
		copy(args, c.Args)
		d["args"] = args
	}
	if len(c.Env) > 0 {
		env := make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			env[k] = v
		}
		d["env"] = env
	}
	return d
}
