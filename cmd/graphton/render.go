package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/plantoncloud/graphton/pkg/config"
	"github.com/plantoncloud/graphton/pkg/template"
)

// RenderCmd renders server descriptors with the given template variables.
// Useful for previewing exactly what a server connection will look like at
// runtime, with secrets substituted in.
type RenderCmd struct {
	Config string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	// Vars are NAME=VALUE pairs for template substitution
	Vars map[string]string `short:"v" name:"var" help:"Template variable (repeatable): -v USER_TOKEN=tok-123." mapsep:","`
}

// Run executes the render command.
func (c *RenderCmd) Run(cli *CLI) error {
	ctx := context.Background()

	_ = config.LoadDotEnvFor(c.Config)

	cfg, loader, err := config.LoadFile(ctx, c.Config)
	if err != nil {
		return err
	}
	defer loader.Close()

	names := make([]string, 0, len(cfg.Servers))
	for name := range cfg.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	rendered := make(map[string]interface{}, len(names))
	for _, name := range names {
		result, err := template.Substitute(cfg.Servers[name].Descriptor(), c.Vars)
		if err != nil {
			return fmt.Errorf("server %q: %w", name, err)
		}
		rendered[name] = result
	}

	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(2)
	if err := encoder.Encode(rendered); err != nil {
		return fmt.Errorf("failed to encode rendered descriptors: %w", err)
	}
	return encoder.Close()
}
