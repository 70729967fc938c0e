package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/plantoncloud/graphton/pkg/config/provider"
	"gopkg.in/yaml.v3"
)

// Loader loads and watches agent configuration from a Provider.
type Loader struct {
	provider provider.Provider
	onChange func(*AgentConfig)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOnChange sets a callback invoked when a watched config reloads.
func WithOnChange(fn func(*AgentConfig)) LoaderOption {
	return func(l *Loader) {
		l.onChange = fn
	}
}

// NewLoader creates a Loader with the given provider.
func NewLoader(p provider.Provider, opts ...LoaderOption) *Loader {
	l := &Loader{
		provider: p,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads, parses, and processes the configuration: raw bytes, YAML/JSON
// parse, env expansion, strict decode, defaults, full validation. Validation
// failures come back as a *ValidationError with every issue listed.
func (l *Loader) Load(ctx context.Context) (*AgentConfig, error) {
	data, err := l.provider.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	rawMap, err := parseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expanded, _ := ExpandEnvVarsInData(rawMap).(map[string]interface{})

	cfg := &AgentConfig{}
	if err := decodeStrict(expanded, cfg); err != nil {
		return nil, err
	}

	if err := Process(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Watch blocks until ctx is cancelled, reloading the config whenever the
// provider signals a change. Reload failures are logged and watching
// continues with the previous config in effect.
func (l *Loader) Watch(ctx context.Context) error {
	changes, err := l.provider.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}

	if changes == nil {
		slog.Info("Config watching not supported by provider", "type", l.provider.Type())
		<-ctx.Done()
		return ctx.Err()
	}

	slog.Info("Started watching for config changes", "type", l.provider.Type())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}

			cfg, err := l.Load(ctx)
			if err != nil {
				slog.Error("Failed to reload config", "error", err)
				continue
			}

			slog.Info("Configuration reloaded successfully")
			if l.onChange != nil {
				l.onChange(cfg)
			}
		}
	}
}

// Close releases resources held by the loader.
func (l *Loader) Close() error {
	return l.provider.Close()
}

// parseBytes parses raw bytes into a map. YAML first, JSON fallback.
func parseBytes(data []byte) (map[string]interface{}, error) {
	var result map[string]interface{}

	if err := yaml.Unmarshal(data, &result); err == nil {
		return result, nil
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse as YAML or JSON: %w", err)
	}

	return result, nil
}

// decodeStrict decodes a raw map into an AgentConfig with unknown-field
// detection. Unknown keys are aggregated into a *ValidationError rather than
// surfaced as a single opaque decode failure, so typos in field names read
// like any other validation issue.
func decodeStrict(input map[string]interface{}, output *AgentConfig) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      output,
		TagName:     "yaml",
		ErrorUnused: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(input); err != nil {
		if unknown := extractUnknownFields(err.Error()); len(unknown) > 0 {
			issues := make([]Issue, 0, len(unknown))
			for _, field := range unknown {
				issues = append(issues, Issue{
					Field:   field,
					Message: "unknown configuration field",
					Remedy:  "Check for typos or incorrect nesting",
				})
			}
			return &ValidationError{Issues: issues}
		}
		return fmt.Errorf("failed to decode config: %w", err)
	}

	return nil
}

// extractUnknownFields parses mapstructure's "has invalid keys: a, b" error
// text into individual field names.
func extractUnknownFields(errMsg string) []string {
	idx := strings.Index(errMsg, "has invalid keys:")
	if idx == -1 {
		return nil
	}

	var fields []string
	for _, key := range strings.Split(errMsg[idx+len("has invalid keys:"):], ",") {
		key = strings.TrimSpace(key)
		if key != "" {
			fields = append(fields, key)
		}
	}
	return fields
}

// Load is a convenience function that creates a provider-backed loader and
// loads the config once.
func Load(ctx context.Context, opts provider.ProviderConfig) (*AgentConfig, *Loader, error) {
	p, err := provider.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provider: %w", err)
	}

	loader := NewLoader(p)
	cfg, err := loader.Load(ctx)
	if err != nil {
		p.Close()
		return nil, nil, err
	}

	return cfg, loader, nil
}

// LoadFile is a convenience function for loading from a file path.
func LoadFile(ctx context.Context, path string) (*AgentConfig, *Loader, error) {
	return Load(ctx, provider.ProviderConfig{
		Type: provider.TypeFile,
		Path: path,
	})
}
