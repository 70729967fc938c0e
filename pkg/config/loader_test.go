package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, `
model: claude-sonnet-4.5
system_prompt: You are a helpful research assistant.
temperature: 0.7
mcp_servers:
  cloud:
    url: https://api.example.com/mcp
    headers:
      Authorization: "Bearer {{USER_TOKEN}}"
mcp_tools:
  cloud:
    - list-resources
    - list_organizations
`)

	cfg, loader, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	assert.Equal(t, "claude-sonnet-4.5", cfg.Model)
	assert.Equal(t, 0.7, *cfg.Temperature)
	assert.Equal(t, DefaultRecursionLimit, *cfg.RecursionLimit)
	assert.Equal(t, TransportStreamableHTTP, cfg.Servers["cloud"].Transport)
	assert.Equal(t, "Bearer {{USER_TOKEN}}", cfg.Servers["cloud"].Headers["Authorization"])
	assert.Equal(t, []string{"list-resources", "list_organizations"}, cfg.Tools["cloud"])
}

func TestLoadFileJSON(t *testing.T) {
	path := writeConfigFile(t, `{
  "model": "gpt-4o",
  "system_prompt": "You are a helpful research assistant."
}`)

	cfg, loader, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	assert.Equal(t, "gpt-4o", cfg.Model)
}

func TestLoadFileExpandsEnvVars(t *testing.T) {
	t.Setenv("GRAPHTON_TEST_HOST", "env.example.com")

	path := writeConfigFile(t, `
system_prompt: You are a helpful research assistant.
mcp_servers:
  cloud:
    url: https://${GRAPHTON_TEST_HOST}/mcp
mcp_tools:
  cloud: [list-resources]
`)

	cfg, loader, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	assert.Equal(t, "https://env.example.com/mcp", cfg.Servers["cloud"].URL)
}

func TestLoadFilePreservesTemplatePlaceholders(t *testing.T) {
	path := writeConfigFile(t, `
system_prompt: You are a helpful research assistant.
mcp_servers:
  cloud:
    url: "https://{{HOST}}/mcp"
mcp_tools:
  cloud: [list-resources]
`)

	cfg, loader, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	// {{NAME}} placeholders are invocation-time, not load-time.
	assert.Equal(t, "https://{{HOST}}/mcp", cfg.Servers["cloud"].URL)
}

func TestLoadFileUnknownFields(t *testing.T) {
	path := writeConfigFile(t, `
system_prompt: You are a helpful research assistant.
sytem_prompt_typo: oops
another_unknown: 1
`)

	_, _, err := LoadFile(context.Background(), path)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Issues, 2)
}

func TestLoadFileValidationFailure(t *testing.T) {
	path := writeConfigFile(t, `
system_prompt: short
recursion_limit: -1
`)

	_, _, err := LoadFile(context.Background(), path)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Issues, 2)
}

func TestLoadFileMissing(t *testing.T) {
	_, _, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestExtractUnknownFields(t *testing.T) {
	fields := extractUnknownFields(`1 error(s) decoding:

* '' has invalid keys: foo, bar`)
	assert.Equal(t, []string{"foo", "bar"}, fields)

	assert.Nil(t, extractUnknownFields("some other decode error"))
}
