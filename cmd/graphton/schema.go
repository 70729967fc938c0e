package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/plantoncloud/graphton/pkg/config"
)

// SchemaCmd generates JSON Schema from the agent config struct.
// Output is written to stdout so it can be redirected into editor tooling.
type SchemaCmd struct {
	// Compact enables compact JSON output (no indentation)
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

// Run executes the schema generation command.
func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		// Disallow additional properties for strict validation
		AllowAdditionalProperties: false,
		// Inline all definitions (no $ref) so the schema works standalone
		DoNotReference: true,
	}

	schema := reflector.Reflect(&config.AgentConfig{})

	schema.ID = "https://graphton.plantoncloud.dev/schemas/agent-config.json"
	schema.Title = "Graphton Agent Configuration Schema"
	schema.Description = "Configuration schema for graphton agent construction"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	schema.Examples = []interface{}{
		map[string]interface{}{
			"model":         "claude-sonnet-4.5",
			"system_prompt": "You are a helpful cloud operations assistant.",
			"mcp_servers": map[string]interface{}{
				"cloud": map[string]interface{}{
					"transport": "streamable-http",
					"url":       "https://api.example.com/mcp",
					"headers": map[string]string{
						"Authorization": "Bearer {{USER_TOKEN}}",
					},
				},
			},
			"mcp_tools": map[string]interface{}{
				"cloud": []string{"list-resources", "get-resource"},
			},
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}

	return nil
}
