package mcptoolset

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantoncloud/graphton/pkg/template"
	"github.com/plantoncloud/graphton/pkg/tool"
)

func staticDescriptor() map[string]any {
	return map[string]any{
		"transport": "streamable-http",
		"url":       "https://api.example.com/mcp",
		"headers": map[string]string{
			"X-Org": "org-9",
		},
	}
}

func templatedDescriptor() map[string]any {
	return map[string]any{
		"transport": "streamable-http",
		"url":       "https://{{HOST}}/mcp",
		"headers": map[string]string{
			"Authorization": "Bearer {{USER_TOKEN}}",
		},
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Name: "a"})
	assert.Error(t, err)

	_, err = New(Config{Name: "a", Descriptor: map[string]any{"transport": "sse"}})
	assert.Error(t, err)

	ts, err := New(Config{Name: "a", Descriptor: staticDescriptor()})
	require.NoError(t, err)
	assert.Equal(t, "a", ts.Name())
}

func TestStatic(t *testing.T) {
	ts, err := New(Config{Name: "a", Descriptor: staticDescriptor()})
	require.NoError(t, err)
	assert.True(t, ts.Static())

	ts, err = New(Config{Name: "a", Descriptor: templatedDescriptor()})
	require.NoError(t, err)
	assert.False(t, ts.Static())
}

func TestRender(t *testing.T) {
	ts, err := New(Config{Name: "cloud", Descriptor: templatedDescriptor(), AuthFromContext: true})
	require.NoError(t, err)

	ep, err := ts.Render(tool.Request{
		Vars: map[string]string{"HOST": "api.example.com", "USER_TOKEN": "tok-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/mcp", ep.URL)
	assert.Equal(t, "Bearer tok-1", ep.Headers["Authorization"])

	// A second render with different variables starts from the original
	// template, not the previous result.
	ep2, err := ts.Render(tool.Request{
		Vars: map[string]string{"HOST": "other.example.com", "USER_TOKEN": "tok-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/mcp", ep2.URL)
	assert.Equal(t, "Bearer tok-2", ep2.Headers["Authorization"])
	assert.Equal(t, "https://api.example.com/mcp", ep.URL)
}

func TestRenderMissingVariables(t *testing.T) {
	ts, err := New(Config{Name: "cloud", Descriptor: templatedDescriptor()})
	require.NoError(t, err)

	_, err = ts.Render(tool.Request{Vars: map[string]string{"HOST": "api.example.com"}})
	require.Error(t, err)

	var missing *template.MissingVariablesError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"USER_TOKEN"}, missing.Names)
	assert.Contains(t, err.Error(), "cloud")
}

func TestRenderTokenMerging(t *testing.T) {
	t.Run("token merged when auth from context", func(t *testing.T) {
		ts, err := New(Config{Name: "a", Descriptor: staticDescriptor(), AuthFromContext: true})
		require.NoError(t, err)

		ep, err := ts.Render(tool.Request{Token: "tok-3"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer tok-3", ep.Headers["Authorization"])
		assert.Equal(t, "org-9", ep.Headers["X-Org"])
	})

	t.Run("token ignored when opted out", func(t *testing.T) {
		ts, err := New(Config{Name: "a", Descriptor: staticDescriptor(), AuthFromContext: false})
		require.NoError(t, err)

		ep, err := ts.Render(tool.Request{Token: "tok-3"})
		require.NoError(t, err)
		assert.Empty(t, ep.Headers["Authorization"])
	})

	t.Run("token overrides static authorization header", func(t *testing.T) {
		desc := staticDescriptor()
		desc["headers"].(map[string]string)["Authorization"] = "Bearer static"

		ts, err := New(Config{Name: "a", Descriptor: desc, AuthFromContext: true})
		require.NoError(t, err)

		ep, err := ts.Render(tool.Request{Token: "tok-4"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer tok-4", ep.Headers["Authorization"])
	})
}

// fakeMCPServer answers initialize and tools/list over streamable-http.
func fakeMCPServer(t *testing.T, gotAuth *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotAuth != nil {
			*gotAuth = append(*gotAuth, r.Header.Get("Authorization"))
		}

		var req jsonRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result any
		switch req.Method {
		case "initialize":
			result = map[string]any{"protocolVersion": protocolDate}
		case "tools/list":
			result = map[string]any{
				"tools": []any{
					map[string]any{"name": "list-resources", "description": "List resources"},
					map[string]any{"name": "delete-everything", "description": "Dangerous"},
				},
			}
		case "tools/call":
			result = map[string]any{
				"content": []any{
					map[string]any{"type": "text", "text": "ok"},
				},
			}
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
	}))
}

func TestToolsOverHTTP(t *testing.T) {
	server := fakeMCPServer(t, nil)
	defer server.Close()

	ts, err := New(Config{
		Name: "cloud",
		Descriptor: map[string]any{
			"transport": "streamable-http",
			"url":       server.URL,
		},
		Filter: []string{"list-resources"},
	})
	require.NoError(t, err)
	defer ts.Close()

	tools, err := ts.Tools(context.Background(), tool.Request{})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "list-resources", tools[0].Name())

	result, err := tools[0].Call(context.Background(), map[string]any{"kind": "vm"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result["result"])
}

func TestStaticSessionIsShared(t *testing.T) {
	server := fakeMCPServer(t, nil)
	defer server.Close()

	ts, err := New(Config{
		Name: "cloud",
		Descriptor: map[string]any{
			"transport": "streamable-http",
			"url":       server.URL,
		},
	})
	require.NoError(t, err)
	defer ts.Close()

	s1, err := ts.Connect(context.Background(), tool.Request{})
	require.NoError(t, err)
	s2, err := ts.Connect(context.Background(), tool.Request{})
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	// Close on a shared session is a no-op; the toolset owns it.
	require.NoError(t, s1.Close())
	assert.NotEmpty(t, s1.Tools())
}

func TestTokenForcesFreshSession(t *testing.T) {
	var auths []string
	server := fakeMCPServer(t, &auths)
	defer server.Close()

	ts, err := New(Config{
		Name: "cloud",
		Descriptor: map[string]any{
			"transport": "streamable-http",
			"url":       server.URL,
		},
		AuthFromContext: true,
	})
	require.NoError(t, err)
	defer ts.Close()

	s1, err := ts.Connect(context.Background(), tool.Request{Token: "tok-a"})
	require.NoError(t, err)
	defer s1.Close()
	s2, err := ts.Connect(context.Background(), tool.Request{Token: "tok-b"})
	require.NoError(t, err)
	defer s2.Close()

	assert.NotSame(t, s1, s2)
	assert.Contains(t, auths, "Bearer tok-a")
	assert.Contains(t, auths, "Bearer tok-b")
}
