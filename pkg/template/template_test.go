package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVars(t *testing.T) {
	tests := []struct {
		name string
		data interface{}
		want []string
	}{
		{
			name: "single placeholder",
			data: map[string]interface{}{"url": "https://api.example.com/{{TOKEN}}"},
			want: []string{"TOKEN"},
		},
		{
			name: "nested maps and lists",
			data: map[string]interface{}{
				"servers": map[string]interface{}{
					"cloud": map[string]interface{}{
						"url":     "https://{{HOST}}/mcp",
						"headers": map[string]string{"Authorization": "Bearer {{USER_TOKEN}}"},
						"args":    []interface{}{"--org", "{{ORG_ID}}"},
					},
				},
			},
			want: []string{"HOST", "ORG_ID", "USER_TOKEN"},
		},
		{
			name: "duplicates reported once",
			data: []string{"{{TOKEN}}", "{{TOKEN}}", "{{OTHER}}"},
			want: []string{"OTHER", "TOKEN"},
		},
		{
			name: "whitespace inside braces",
			data: "{{ TOKEN }} and {{  SPACED  }}",
			want: []string{"SPACED", "TOKEN"},
		},
		{
			name: "case sensitive",
			data: "{{token}} {{Token}} {{TOKEN}}",
			want: []string{"TOKEN", "Token", "token"},
		},
		{
			name: "malformed braces are not placeholders",
			data: "{TOKEN} {{TOKEN} {{BAD NAME}} {{dash-name}}",
			want: []string{},
		},
		{
			name: "non-string leaves ignored",
			data: map[string]interface{}{"port": 8080, "enabled": true, "ratio": 0.5},
			want: []string{},
		},
		{
			name: "empty input",
			data: map[string]interface{}{},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Vars(tt.data))
		})
	}
}

func TestHas(t *testing.T) {
	assert.True(t, Has(map[string]interface{}{"url": "https://{{HOST}}/mcp"}))
	assert.True(t, Has([]string{"plain", "{{TOKEN}}"}))
	assert.False(t, Has(map[string]interface{}{"url": "https://api.example.com/mcp"}))
	assert.False(t, Has("{{not a placeholder}"))
	assert.False(t, Has(nil))
}

func TestSubstitute(t *testing.T) {
	data := map[string]interface{}{
		"url": "https://api.example.com/mcp",
		"headers": map[string]string{
			"Authorization": "Bearer {{USER_TOKEN}}",
			"X-Org":         "{{ORG_ID}}",
		},
	}

	got, err := Substitute(data, map[string]string{
		"USER_TOKEN": "tok-123",
		"ORG_ID":     "org-9",
		"UNUSED":     "ignored",
	})
	require.NoError(t, err)

	result, ok := got.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "https://api.example.com/mcp", result["url"])
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer tok-123",
		"X-Org":         "org-9",
	}, result["headers"])
}

func TestSubstituteDoesNotMutateInput(t *testing.T) {
	data := map[string]interface{}{
		"headers": map[string]string{"Authorization": "Bearer {{USER_TOKEN}}"},
	}

	got, err := Substitute(data, map[string]string{"USER_TOKEN": "tok-123"})
	require.NoError(t, err)

	// Original still carries the placeholder.
	assert.Equal(t, "Bearer {{USER_TOKEN}}", data["headers"].(map[string]string)["Authorization"])

	// Mutating the result must not leak back into the original.
	got.(map[string]interface{})["headers"].(map[string]string)["Authorization"] = "changed"
	assert.Equal(t, "Bearer {{USER_TOKEN}}", data["headers"].(map[string]string)["Authorization"])
}

func TestSubstituteMissingVariables(t *testing.T) {
	data := map[string]interface{}{
		"url":     "https://{{HOST}}/{{PATH}}",
		"headers": map[string]string{"Authorization": "Bearer {{USER_TOKEN}}"},
	}

	got, err := Substitute(data, map[string]string{"PATH": "mcp"})
	require.Error(t, err)
	assert.Nil(t, got)

	var missing *MissingVariablesError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"HOST", "USER_TOKEN"}, missing.Names)
	assert.Contains(t, err.Error(), "HOST")
	assert.Contains(t, err.Error(), "USER_TOKEN")
}

func TestSubstituteRepeatedPlaceholder(t *testing.T) {
	got, err := Substitute("{{ENV}}-{{ENV}}-{{ENV}}", map[string]string{"ENV": "prod"})
	require.NoError(t, err)
	assert.Equal(t, "prod-prod-prod", got)
}

func TestSubstituteWhitespaceVariants(t *testing.T) {
	got, err := Substitute("{{TOKEN}} {{ TOKEN }} {{  TOKEN  }}", map[string]string{"TOKEN": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x x x", got)
}

func TestCheckSyntax(t *testing.T) {
	tests := []struct {
		name         string
		data         interface{}
		wantProblems int
	}{
		{
			name:         "well formed",
			data:         map[string]interface{}{"url": "https://{{HOST}}/mcp"},
			wantProblems: 0,
		},
		{
			name:         "unclosed placeholder",
			data:         map[string]interface{}{"token": "{{TOKEN}"},
			wantProblems: 1,
		},
		{
			name:         "stray closing braces",
			data:         "value}} here",
			wantProblems: 1,
		},
		{
			name:         "embedded json without doubled braces",
			data:         map[string]interface{}{"json": `{"key": "value"}`},
			wantProblems: 0,
		},
		{
			name:         "nested offenders each reported",
			data:         []interface{}{"{{A}", "{{B}", "{{OK}}"},
			wantProblems: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, CheckSyntax(tt.data), tt.wantProblems)
		})
	}
}
