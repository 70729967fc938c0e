package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plantoncloud/graphton/pkg/config"
)

// ValidateCmd validates an agent configuration file.
type ValidateCmd struct {
	// Config is the configuration file path (positional argument)
	Config string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	// Format specifies the output format
	Format string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`

	// PrintConfig prints the expanded configuration
	PrintConfig bool `short:"p" name:"print-config" help:"Print the expanded configuration (with defaults applied and env vars resolved)."`
}

// Run executes the validate command.
func (c *ValidateCmd) Run(cli *CLI) error {
	ctx := context.Background()

	// Load .env file sitting next to the config, if present
	_ = config.LoadDotEnvFor(c.Config)

	cfg, loader, err := config.LoadFile(ctx, c.Config)
	if err != nil {
		return printLoadError(c.Format, c.Config, err)
	}
	defer loader.Close()

	if c.PrintConfig {
		return printExpandedConfig(c.Format, c.Config, cfg)
	}

	printSuccess(c.Format, c.Config)
	return nil
}

// printLoadError reports a load or validation failure. Aggregated validation
// errors are listed issue by issue; everything else prints as one line.
func printLoadError(format, file string, err error) error {
	var verr *config.ValidationError
	isValidation := errors.As(err, &verr)

	switch format {
	case "json":
		if isValidation {
			printJSONResult(false, file, verr.Issues)
		} else {
			printJSONResult(false, file, []config.Issue{{Field: "", Message: err.Error()}})
		}
	case "verbose":
		fmt.Fprintf(os.Stderr, "Configuration Validation Failed\n")
		fmt.Fprintf(os.Stderr, "===============================\n\n")
		fmt.Fprintf(os.Stderr, "File:   %s\n\n", file)
		if isValidation {
			for _, issue := range verr.Issues {
				fmt.Fprintf(os.Stderr, "  - %s\n", issue)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Error:  %s\n", err.Error())
		}
	default: // compact
		if isValidation {
			for _, issue := range verr.Issues {
				fmt.Fprintf(os.Stderr, "%s: %s\n", file, issue)
			}
		} else {
			fmt.Fprintf(os.Stderr, "%s: %s\n", file, err.Error())
		}
	}
	return fmt.Errorf("config validation failed")
}

// printSuccess prints a success message.
func printSuccess(format, file string) {
	switch format {
	case "json":
		printJSONResult(true, file, nil)
	case "verbose":
		fmt.Fprintf(os.Stdout, "Configuration Validation Successful\n")
		fmt.Fprintf(os.Stdout, "===================================\n\n")
		fmt.Fprintf(os.Stdout, "File:   %s\n", file)
		fmt.Fprintf(os.Stdout, "Status: OK Valid\n")
	default: // compact
		fmt.Fprintf(os.Stdout, "%s: valid\n", file)
	}
}

// printExpandedConfig prints the configuration after defaults and env
// expansion. Template placeholders are preserved verbatim.
func printExpandedConfig(format, file string, cfg *config.AgentConfig) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
	case "verbose", "compact":
		fmt.Fprintf(os.Stdout, "# Expanded configuration from: %s\n", file)
		fmt.Fprintf(os.Stdout, "# (defaults applied, env vars resolved)\n\n")

		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as YAML: %w", err)
		}
		encoder.Close()
	}
	return nil
}

// jsonOutput is the JSON output structure.
type jsonOutput struct {
	Valid  bool           `json:"valid"`
	File   string         `json:"file"`
	Issues []config.Issue `json:"issues,omitempty"`
}

// printJSONResult prints a JSON validation result.
func printJSONResult(valid bool, file string, issues []config.Issue) {
	output := jsonOutput{
		Valid:  valid,
		File:   file,
		Issues: issues,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}
