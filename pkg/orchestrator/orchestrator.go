package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	theme "github.com/goliatone/go-theme"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-plugkit/pkg/config"
	"github.com/goliatone/go-plugkit/pkg/drop"
	"github.com/goliatone/go-plugkit/pkg/plugin"
	"github.com/goliatone/go-plugkit/pkg/render/template"
	"github.com/goliatone/go-plugkit/pkg/render/template/pongo"
)

// ThemeKey is the template variable holding the selected theme.
const ThemeKey = "theme"

// Option customises the orchestrator.
type Option func(*Orchestrator)

// WithClasses adds plugin classes to the catalog.
func WithClasses(classes ...*plugin.Class) Option {
	return func(o *Orchestrator) {
		o.pendingClasses = append(o.pendingClasses, classes...)
	}
}

// WithRegistry injects the tag registry; the default is
// plugin.DefaultRegistry.
func WithRegistry(registry *plugin.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithRenderer injects the template renderer.
func WithRenderer(renderer template.TemplateRenderer) Option {
	return func(o *Orchestrator) {
		o.renderer = renderer
	}
}

// WithDisabledTagPolicy selects what disabled tag variants do.
func WithDisabledTagPolicy(policy plugin.DisabledTagPolicy) Option {
	return func(o *Orchestrator) {
		o.policy = policy
	}
}

// WithRegisters seeds every render context with values.
func WithRegisters(values map[string]any) Option {
	return func(o *Orchestrator) {
		for key, value := range values {
			o.registers[key] = value
		}
	}
}

// WithConfig applies engine settings and activates the configured instances.
func WithConfig(cfg *config.Config) Option {
	return func(o *Orchestrator) {
		o.cfg = cfg
	}
}

// WithThemeSelector resolves request theme choices through a go-theme
// selector and exposes the result as the theme template variable.
func WithThemeSelector(selector theme.ThemeSelector) Option {
	return func(o *Orchestrator) {
		o.themeSelector = selector
	}
}

// WithDefaultTheme sets the theme and variant used when a request names none.
func WithDefaultTheme(name, variant string) Option {
	return func(o *Orchestrator) {
		o.defaultTheme = name
		o.defaultVariant = variant
	}
}

// WithTransformers appends data transformers executed, in order, before each
// render.
func WithTransformers(transformers ...Transformer) Option {
	return func(o *Orchestrator) {
		for _, t := range transformers {
			if t != nil {
				o.transformers = append(o.transformers, t)
			}
		}
	}
}

// WithLogger sets the logger shared with render contexts.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *Orchestrator) {
		o.log = logger
	}
}

// Orchestrator owns the load phase (class catalog, tag registration, runtime
// derivation) and serves renders afterwards. Activation is not synchronised:
// activate every instance before serving renders concurrently.
type Orchestrator struct {
	catalog        *plugin.Catalog
	pendingClasses []*plugin.Class
	registry       *plugin.Registry
	renderer       template.TemplateRenderer
	policy         plugin.DisabledTagPolicy
	registers      map[string]any
	cfg            *config.Config
	themeSelector  theme.ThemeSelector
	defaultTheme   string
	defaultVariant string
	transformers   []Transformer
	log            *logrus.Logger

	runtimes map[string]*plugin.Runtime
	order    []string
}

// New constructs an orchestrator. Classes and configured instances are
// registered immediately; registration failures such as
// DuplicateRegistrationError are returned here.
func New(options ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		registers: make(map[string]any),
		runtimes:  make(map[string]*plugin.Runtime),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	if o.log == nil {
		o.log = logrus.New()
	}
	if o.registry == nil {
		o.registry = plugin.DefaultRegistry()
	}

	catalog, err := plugin.NewCatalog(o.pendingClasses...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	o.catalog = catalog
	o.pendingClasses = nil

	if o.cfg != nil {
		if err := o.applyConfig(o.cfg); err != nil {
			return nil, err
		}
	}
	if o.renderer == nil {
		engine, err := pongo.New(pongo.WithLogger(o.log))
		if err != nil {
			return nil, fmt.Errorf("orchestrator: default renderer: %w", err)
		}
		o.renderer = engine
	}
	return o, nil
}

func (o *Orchestrator) applyConfig(cfg *config.Config) error {
	o.policy = cfg.Policy()
	for key, value := range cfg.Engine.Registers {
		if _, set := o.registers[key]; !set {
			o.registers[key] = value
		}
	}
	if o.renderer == nil && cfg.Engine.TemplatesDir != "" {
		engine, err := pongo.New(
			pongo.WithBaseDir(cfg.Engine.TemplatesDir),
			pongo.WithExtension(cfg.Engine.Extension),
			pongo.WithLogger(o.log),
		)
		if err != nil {
			return fmt.Errorf("orchestrator: renderer: %w", err)
		}
		o.renderer = engine
	}
	for _, inst := range cfg.EnabledInstances() {
		if err := o.ActivateConfigured(inst); err != nil {
			return err
		}
	}
	return nil
}

// RegisterClass adds a class to the catalog after construction.
func (o *Orchestrator) RegisterClass(class *plugin.Class) error {
	return o.catalog.Register(class)
}

// Classes returns the catalog class names.
func (o *Orchestrator) Classes() []string {
	return o.catalog.List()
}

// ActivateConfigured validates the settings of a configured instance against
// its class schema, constructs it and activates it under its id.
func (o *Orchestrator) ActivateConfigured(inst config.Instance) error {
	class, err := o.catalog.Get(inst.Type)
	if err != nil {
		return fmt.Errorf("orchestrator: plugin %q: %w", inst.ID, err)
	}
	if class.New == nil {
		return fmt.Errorf("orchestrator: plugin %q: class %q cannot be built from settings", inst.ID, class.Name)
	}
	values, err := class.Settings.Apply(inst.Settings)
	if err != nil {
		return fmt.Errorf("orchestrator: plugin %q: %w", inst.ID, err)
	}
	instance, err := class.New(values)
	if err != nil {
		return fmt.Errorf("orchestrator: plugin %q: build instance: %w", inst.ID, err)
	}
	return o.Activate(inst.ID, instance)
}

// Activate registers the prefixed tags of instance under id and keeps its
// derived runtime for later renders. Re-activating an id replaces the
// instance; the class must stay the same because registered tags cannot be
// withdrawn from the engine.
func (o *Orchestrator) Activate(id string, instance plugin.Instance) error {
	if instance == nil || instance.Class() == nil {
		return fmt.Errorf("orchestrator: plugin %q: %w", id, plugin.ErrNilClass)
	}
	class := instance.Class()
	if err := o.catalog.Register(class); err != nil {
		return fmt.Errorf("orchestrator: plugin %q: %w", id, err)
	}
	if existing, ok := o.runtimes[id]; ok && existing.Instance.Class() != class {
		return fmt.Errorf("orchestrator: plugin id %q already used by class %q", id, existing.Instance.Class().Name)
	}

	if err := o.registry.RegisterClass(class, id); err != nil {
		return fmt.Errorf("orchestrator: plugin %q: %w", id, err)
	}
	runtime, err := plugin.NewRuntime(instance, id)
	if err != nil {
		return fmt.Errorf("orchestrator: plugin %q: %w", id, err)
	}

	if _, ok := o.runtimes[id]; !ok {
		o.order = append(o.order, id)
	}
	o.runtimes[id] = runtime

	o.log.WithFields(logrus.Fields{
		"plugin_id": id,
		"class":     class.Name,
		"tags":      runtime.TagNames(),
		"filters":   runtime.Filters.Names(),
	}).Debug("plugin activated")
	return nil
}

// Instances returns the active plugin ids in activation order.
func (o *Orchestrator) Instances() []string {
	return append([]string(nil), o.order...)
}

// NewRenderContext builds a context with the configured policy and registers
// and binds the requested instances (all active instances when ids is empty).
func (o *Orchestrator) NewRenderContext(ids ...string) (*plugin.RenderContext, error) {
	return o.newRenderContext(nil, ids)
}

func (o *Orchestrator) newRenderContext(overrides map[string]any, ids []string) (*plugin.RenderContext, error) {
	rc := plugin.NewRenderContext(
		plugin.WithDisabledTagPolicy(o.policy),
		plugin.WithLogger(o.log),
	)
	for key, value := range o.registers {
		rc.Registers().Set(key, value)
	}
	for key, value := range overrides {
		if key == plugin.EnabledTagsKey || key == plugin.PluginsKey {
			return nil, fmt.Errorf("orchestrator: register %q is reserved", key)
		}
		rc.Registers().Set(key, value)
	}

	if len(ids) == 0 {
		ids = o.order
	}
	for _, id := range ids {
		runtime, ok := o.runtimes[id]
		if !ok {
			return nil, fmt.Errorf("orchestrator: plugin %q is not active", id)
		}
		if err := runtime.Bind(rc); err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
	}
	return rc, nil
}

// Request describes one render.
type Request struct {
	// Template names a template resolved by the renderer's loaders.
	Template string
	// Content is inline template source; it wins over Template.
	Content string
	// Data is the template data.
	Data any
	// Plugins limits which active instances are bound. Empty binds all.
	Plugins []string
	// Registers overrides context registers for this render only. The keys
	// the binder owns are rejected.
	Registers map[string]any
	// ThemeName and ThemeVariant select a theme when a selector is set.
	ThemeName    string
	ThemeVariant string
}

// Render binds the requested instances into a fresh context and renders.
func (o *Orchestrator) Render(ctx context.Context, req Request, out ...io.Writer) (string, error) {
	if ctx == nil {
		return "", errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Content) == "" && strings.TrimSpace(req.Template) == "" {
		return "", errors.New("orchestrator: template or content is required")
	}

	data, err := drop.Convert(req.Data)
	if err != nil {
		return "", fmt.Errorf("orchestrator: convert data: %w", err)
	}
	for _, transformer := range o.transformers {
		if err := transformer.Transform(ctx, data); err != nil {
			return "", fmt.Errorf("orchestrator: transform data: %w", err)
		}
	}
	if err := o.applyTheme(req, data); err != nil {
		return "", err
	}

	rc, err := o.newRenderContext(req.Registers, req.Plugins)
	if err != nil {
		return "", err
	}

	var rendered string
	if strings.TrimSpace(req.Content) != "" {
		rendered, err = o.renderer.RenderString(rc, req.Content, data, out...)
	} else {
		rendered, err = o.renderer.RenderTemplate(rc, req.Template, data, out...)
	}
	if err != nil {
		return "", fmt.Errorf("orchestrator: render: %w", err)
	}
	return rendered, nil
}

func (o *Orchestrator) applyTheme(req Request, data map[string]any) error {
	if o.themeSelector == nil {
		return nil
	}
	name := firstNonEmpty(req.ThemeName, o.defaultTheme)
	variant := firstNonEmpty(req.ThemeVariant, o.defaultVariant)

	selection, err := o.themeSelector.Select(name, variant)
	if err != nil {
		return fmt.Errorf("orchestrator: select theme: %w", err)
	}
	if selection == nil {
		return nil
	}
	data[ThemeKey] = themeContext(selection)
	return nil
}

func themeContext(selection *theme.Selection) map[string]any {
	tokens := map[string]any{}
	if manifest := selection.Manifest; manifest != nil {
		for key, value := range manifest.Tokens {
			tokens[key] = value
		}
		if variant, ok := manifest.Variants[selection.Variant]; ok {
			for key, value := range variant.Tokens {
				tokens[key] = value
			}
		}
	}
	return map[string]any{
		"name":    selection.Theme,
		"variant": selection.Variant,
		"tokens":  tokens,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
