package agent

import (
	"fmt"
	"strings"
)

const capabilitySuffix = `

## Additional Capabilities

You have a planning system: use write_todos and read_todos to track multi-step work and keep it visible.

You have a file system: use ls, read_file, write_file and edit_file to persist notes and intermediate results across steps.`

const mcpSuffix = `

You have MCP tools connected to external services. Prefer them for any action they cover instead of describing the action in text.`

// EnhanceInstructions appends a short capability section to the user's
// instructions. The user text always comes first, untouched. Enhancement is
// not idempotent; callers that enhance twice get the suffix twice.
func EnhanceInstructions(instructions string, hasMCPTools bool) (string, error) {
	if strings.TrimSpace(instructions) == "" {
		return "", fmt.Errorf("instructions cannot be empty")
	}

	enhanced := instructions + capabilitySuffix
	if hasMCPTools {
		enhanced += mcpSuffix
	}
	return enhanced, nil
}
