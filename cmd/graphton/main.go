// Command graphton validates agent configuration files and renders their
// service connection descriptors.
//
// Usage:
//
//	graphton validate agent.yaml
//	graphton vars agent.yaml
//	graphton render agent.yaml -v USER_TOKEN=tok-123
//	graphton schema > agent-config.schema.json
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/plantoncloud/graphton/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Validate ValidateCmd `cmd:"" help:"Validate an agent configuration file."`
	Vars     VarsCmd     `cmd:"" help:"List template variables referenced by a configuration."`
	Render   RenderCmd   `cmd:"" help:"Render server descriptors with template variables."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for agent configuration."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("graphton version %s\n", version)
	return nil
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("graphton"),
		kong.Description("Declarative agent configuration: validation and runtime substitution."),
		kong.UsageOnError(),
	)

	output := os.Stderr
	if cli.LogFile != "" {
		file, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		output = file
	}
	logger.Init(logger.ParseLevel(cli.LogLevel), output, cli.LogFormat)

	kctx.FatalIfErrorf(kctx.Run(cli))
}
