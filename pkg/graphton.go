// Package graphton provides a declarative configuration layer for building
// AI agents: validation of agent construction parameters and runtime
// substitution of secrets into MCP server connection descriptors.
//
// This is the main entry point for the graphton Go library. It re-exports
// the most commonly used types and functions from the sub-packages.
//
// # Quick Start
//
//	import "github.com/plantoncloud/graphton/pkg"
//
//	// Load and validate configuration
//	cfg, loader, err := graphton.LoadFile(ctx, "agent.yaml")
//
//	// Build an agent from it
//	a, err := graphton.NewAgent(ctx, cfg, constructor,
//		graphton.WithPromptEnhancement())
//
//	// Invoke with per-request secrets
//	out, err := a.Invoke(ctx, graphton.InvokeOptions{
//		Input: "list my VMs",
//		Token: userToken,
//	})
package graphton

import (
	"github.com/plantoncloud/graphton/pkg/agent"
	"github.com/plantoncloud/graphton/pkg/config"
	"github.com/plantoncloud/graphton/pkg/template"
)

// Re-export commonly used types
type (
	// Agent types
	Agent         = agent.Agent
	InvokeOptions = agent.InvokeOptions
	Middleware    = agent.Middleware

	// Config types
	AgentConfig     = config.AgentConfig
	ServerConfig    = config.ServerConfig
	ValidationError = config.ValidationError
	Issue           = config.Issue
	Warning         = config.Warning

	// Template types
	MissingVariablesError = template.MissingVariablesError
)

// Re-export commonly used functions
var (
	// Agent functions
	NewAgent              = agent.New
	WithModelHandle       = agent.WithModelHandle
	WithTools             = agent.WithTools
	WithMiddleware        = agent.WithMiddleware
	WithStateSchema       = agent.WithStateSchema
	WithPromptEnhancement = agent.WithPromptEnhancement

	// Config functions
	LoadFile = config.LoadFile
	Load     = config.Load

	// Template functions
	TemplateVars       = template.Vars
	TemplateHas        = template.Has
	TemplateSubstitute = template.Substitute
)
