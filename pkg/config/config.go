// Package config loads plugkit host configuration: engine settings and the
// plugin instances to activate, from JSON or YAML.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-plugkit/pkg/plugin"
)

// Config is the host configuration document.
type Config struct {
	Engine  Engine     `json:"engine" yaml:"engine"`
	Plugins []Instance `json:"plugins" yaml:"plugins"`
}

// Engine configures template loading and rendering.
type Engine struct {
	TemplatesDir string `json:"templates_dir" yaml:"templates_dir"`
	Extension    string `json:"extension" yaml:"extension"`
	// StrictTags makes rendering a tag outside its plugin instance an error
	// instead of rendering nothing.
	StrictTags bool `json:"strict_tags" yaml:"strict_tags"`
	// Registers seeds every render context, e.g. asset_host.
	Registers map[string]any `json:"registers" yaml:"registers"`
}

// Instance configures one plugin instance. ID doubles as the prefix of every
// tag and filter the instance contributes.
type Instance struct {
	ID       string         `json:"id" yaml:"id"`
	Type     string         `json:"type" yaml:"type"`
	Enabled  *bool          `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Settings map[string]any `json:"settings" yaml:"settings"`
}

// IsEnabled reports whether the instance is active; instances are enabled
// unless explicitly disabled.
func (i Instance) IsEnabled() bool {
	return i.Enabled == nil || *i.Enabled
}

// Option adjusts a Config after loading.
type Option func(*Config)

// WithStrictTags overrides engine.strict_tags.
func WithStrictTags(strict bool) Option {
	return func(cfg *Config) {
		cfg.Engine.StrictTags = strict
	}
}

// WithTemplatesDir overrides engine.templates_dir.
func WithTemplatesDir(dir string) Option {
	return func(cfg *Config) {
		if trimmed := strings.TrimSpace(dir); trimmed != "" {
			cfg.Engine.TemplatesDir = trimmed
		}
	}
}

// WithInstances appends plugin instances.
func WithInstances(instances ...Instance) Option {
	return func(cfg *Config) {
		cfg.Plugins = append(cfg.Plugins, instances...)
	}
}

// New builds a Config from options only.
func New(options ...Option) (*Config, error) {
	cfg := &Config{}
	return cfg.apply(options)
}

// Load reads and parses the file at path.
func Load(path string, options ...Option) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data, path, options...)
}

// Parse decodes JSON or YAML data. source names the input in errors.
func Parse(data []byte, source string, options ...Option) (*Config, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("config: %s is empty", source)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		cfg = Config{}
		if yerr := yaml.Unmarshal(data, &cfg); yerr != nil {
			return nil, fmt.Errorf("config: parse %s: invalid JSON or YAML: %w", source, yerr)
		}
	}
	return cfg.apply(options)
}

func (c *Config) apply(options []Option) (*Config, error) {
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	c.normalise()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) normalise() {
	c.Engine.TemplatesDir = strings.TrimSpace(c.Engine.TemplatesDir)
	ext := strings.TrimSpace(c.Engine.Extension)
	if ext == "" {
		ext = ".tpl"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Engine.Extension = ext
	for idx := range c.Plugins {
		c.Plugins[idx].ID = strings.TrimSpace(c.Plugins[idx].ID)
		c.Plugins[idx].Type = strings.TrimSpace(c.Plugins[idx].Type)
	}
}

// Validate checks instance ids and types.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Plugins))
	for idx, inst := range c.Plugins {
		if inst.Type == "" {
			return fmt.Errorf("config: plugins[%d] (%q) has no type", idx, inst.ID)
		}
		if err := plugin.ValidatePrefix(inst.ID); err != nil {
			return fmt.Errorf("config: plugins[%d] id: %w", idx, err)
		}
		if _, dup := seen[inst.ID]; dup {
			return fmt.Errorf("config: duplicate plugin id %q", inst.ID)
		}
		seen[inst.ID] = struct{}{}
	}
	return nil
}

// Policy returns the disabled-tag policy selected by the configuration.
func (c *Config) Policy() plugin.DisabledTagPolicy {
	if c != nil && c.Engine.StrictTags {
		return plugin.PolicyStrict
	}
	return plugin.PolicyNoOp
}

// EnabledInstances returns the instances that are not disabled, in order.
func (c *Config) EnabledInstances() []Instance {
	out := make([]Instance, 0, len(c.Plugins))
	for _, inst := range c.Plugins {
		if inst.IsEnabled() {
			out = append(out, inst)
		}
	}
	return out
}
