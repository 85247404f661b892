package plugkit

import (
	"context"
	"fmt"

	theme "github.com/goliatone/go-theme"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-plugkit/components/gallery"
	"github.com/goliatone/go-plugkit/components/htmlkit"
	"github.com/goliatone/go-plugkit/components/i18n"
	"github.com/goliatone/go-plugkit/components/timezones"
	"github.com/goliatone/go-plugkit/pkg/config"
	"github.com/goliatone/go-plugkit/pkg/orchestrator"
	"github.com/goliatone/go-plugkit/pkg/plugin"
	"github.com/goliatone/go-plugkit/pkg/render/template/pongo"
)

// Request aliases orchestrator.Request for callers using the root package.
type Request = orchestrator.Request

// Config aliases the host configuration document.
type Config = config.Config

// BuiltinClasses returns the plugin classes shipped with the module.
func BuiltinClasses() []*plugin.Class {
	return []*plugin.Class{gallery.Class, htmlkit.Class, i18n.Class, timezones.Class}
}

// NewOrchestrator constructs an orchestrator with the built-in classes
// already in its catalog.
func NewOrchestrator(options ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	opts := append([]orchestrator.Option{orchestrator.WithClasses(BuiltinClasses()...)}, options...)
	return orchestrator.New(opts...)
}

// LoadConfig reads a JSON or YAML host configuration.
func LoadConfig(path string, options ...config.Option) (*Config, error) {
	return config.Load(path, options...)
}

// WithConfig activates the instances of cfg.
func WithConfig(cfg *Config) orchestrator.Option {
	return orchestrator.WithConfig(cfg)
}

// WithThemeSelector passes a go-theme selector through to the orchestrator so
// theme/variant choices are resolved ahead of rendering.
func WithThemeSelector(selector theme.ThemeSelector) orchestrator.Option {
	return orchestrator.WithThemeSelector(selector)
}

// WithEmbeddedTemplates renders named templates from EmbeddedTemplates.
func WithEmbeddedTemplates(logger *logrus.Logger) (orchestrator.Option, error) {
	engine, err := pongo.New(
		pongo.WithName("plugkit-embedded"),
		pongo.WithFS(EmbeddedTemplates()),
		pongo.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("plugkit: embedded templates: %w", err)
	}
	return orchestrator.WithRenderer(engine), nil
}

// RenderString activates instances, keyed by plugin id, and renders content
// with all of them bound. It is the simplest entry point for one-off renders.
func RenderString(ctx context.Context, content string, data any, instances map[string]plugin.Instance, options ...orchestrator.Option) (string, error) {
	orch, err := NewOrchestrator(options...)
	if err != nil {
		return "", err
	}
	for id, instance := range instances {
		if err := orch.Activate(id, instance); err != nil {
			return "", err
		}
	}
	return orch.Render(ctx, Request{Content: content, Data: data})
}
