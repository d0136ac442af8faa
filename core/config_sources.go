package core

import (
	"context"
	"fmt"
	"maps"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
	"gopkg.in/yaml.v3"
)

// CfgxConfigProvider builds a Config from a raw key/value loader with
// go-config, validating the result.
type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil || p.Loader == nil {
		return defaults, nil
	}
	raw, err := p.Loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	return buildConfig(raw, defaults)
}

// GoOptionsResolver stacks defaults, loaded and runtime configuration as
// go-options layers, in that order of precedence. Zero values in the loaded
// and runtime layers do not override lower layers.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	base, err := configLayer(defaults, true)
	if err != nil {
		return Config{}, err
	}
	fromFile, err := configLayer(loaded, false)
	if err != nil {
		return Config{}, err
	}
	fromCaller, err := configLayer(runtime, false)
	if err != nil {
		return Config{}, err
	}

	stack, err := opts.NewStack(
		opts.NewLayer(opts.NewScope("defaults", 0), base, opts.WithSnapshotID[map[string]any]("defaults")),
		opts.NewLayer(opts.NewScope("config", 10), fromFile, opts.WithSnapshotID[map[string]any]("config")),
		opts.NewLayer(opts.NewScope("runtime", 20), fromCaller, opts.WithSnapshotID[map[string]any]("runtime")),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	return buildConfig(merged.Value, defaults)
}

func buildConfig(raw map[string]any, defaults Config) (Config, error) {
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// configLayer renders cfg through its yaml tags so layer keys match the file
// format. Blank and zero leaves are dropped unless keepZero is set.
func configLayer(cfg Config, keepZero bool) (map[string]any, error) {
	encoded, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("core: encode config layer: %w", err)
	}
	layer := map[string]any{}
	if err := yaml.Unmarshal(encoded, &layer); err != nil {
		return nil, fmt.Errorf("core: decode config layer: %w", err)
	}
	if err := normalizeDurations(layer); err != nil {
		return nil, err
	}
	if !keepZero {
		pruneZero(layer)
	}
	return layer, nil
}

func pruneZero(layer map[string]any) {
	maps.DeleteFunc(layer, func(_ string, value any) bool {
		switch typed := value.(type) {
		case nil:
			return true
		case map[string]any:
			pruneZero(typed)
			return len(typed) == 0
		case string:
			return strings.TrimSpace(typed) == ""
		default:
			return reflect.ValueOf(typed).IsZero()
		}
	})
}

// FileConfigLoader reads a YAML document into the raw map consumed by
// CfgxConfigProvider. Duration fields accept Go duration strings.
type FileConfigLoader struct {
	Path string
}

func (l FileConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return map[string]any{}, nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("core: read config file: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("core: parse config file: %w", err)
	}
	if err := normalizeDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func normalizeDurations(raw map[string]any) error {
	for key, value := range raw {
		switch typed := value.(type) {
		case map[string]any:
			if err := normalizeDurations(typed); err != nil {
				return err
			}
		case string:
			if key != "delay" && key != "request_timeout" {
				continue
			}
			parsed, err := time.ParseDuration(strings.TrimSpace(typed))
			if err != nil {
				return fmt.Errorf("core: invalid duration for %s: %w", key, err)
			}
			raw[key] = parsed
		}
	}
	return nil
}
