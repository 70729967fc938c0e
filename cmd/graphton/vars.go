package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/plantoncloud/graphton/pkg/config"
	"github.com/plantoncloud/graphton/pkg/template"
)

// VarsCmd lists the template variables a configuration references.
type VarsCmd struct {
	Config string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	// PerServer breaks variables down by server instead of one flat list
	PerServer bool `name:"per-server" help:"Group variables by server."`
}

// Run executes the vars command.
func (c *VarsCmd) Run(cli *CLI) error {
	ctx := context.Background()

	_ = config.LoadDotEnvFor(c.Config)

	cfg, loader, err := config.LoadFile(ctx, c.Config)
	if err != nil {
		return err
	}
	defer loader.Close()

	if c.PerServer {
		names := make([]string, 0, len(cfg.Servers))
		for name := range cfg.Servers {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			vars := template.Vars(cfg.Servers[name].Descriptor())
			if len(vars) == 0 {
				fmt.Fprintf(os.Stdout, "%s: (none)\n", name)
				continue
			}
			fmt.Fprintf(os.Stdout, "%s:\n", name)
			for _, v := range vars {
				fmt.Fprintf(os.Stdout, "  %s\n", v)
			}
		}
		return nil
	}

	seen := make(map[string]bool)
	var all []string
	for _, server := range cfg.Servers {
		for _, v := range template.Vars(server.Descriptor()) {
			if !seen[v] {
				seen[v] = true
				all = append(all, v)
			}
		}
	}
	sort.Strings(all)

	for _, v := range all {
		fmt.Fprintln(os.Stdout, v)
	}
	return nil
}
