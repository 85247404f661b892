// Package pongo implements template.TemplateRenderer on a pongo2 template set.
package pongo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-plugkit/pkg/drop"
	"github.com/goliatone/go-plugkit/pkg/plugin"
	"github.com/goliatone/go-plugkit/pkg/render/template"
)

// Option configures the engine before construction.
type Option func(*config)

type config struct {
	name       string
	baseDir    string
	templates  fs.FS
	extension  string
	helpers    map[string]any
	globalData map[string]any
	logger     *logrus.Logger
}

// WithName names the underlying pongo2 template set.
func WithName(name string) Option {
	return func(cfg *config) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.name = trimmed
		}
	}
}

// WithBaseDir loads templates from a directory on disk.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

// WithFS loads templates from an fs.FS.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithExtension overrides the default template extension.
func WithExtension(ext string) Option {
	return func(cfg *config) {
		trimmed := strings.TrimSpace(ext)
		if trimmed == "" {
			return
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		cfg.extension = trimmed
	}
}

// WithHelpers exposes callables to every template as globals.
func WithHelpers(funcs map[string]any) Option {
	return func(cfg *config) {
		if len(funcs) == 0 {
			return
		}
		if cfg.helpers == nil {
			cfg.helpers = make(map[string]any, len(funcs))
		}
		for name, fn := range funcs {
			cfg.helpers[strings.TrimSpace(name)] = fn
		}
	}
}

// WithGlobalData seeds values available to every template.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// Engine renders pongo2 templates against plugin render contexts.
type Engine struct {
	mu sync.RWMutex

	templateSet *pongo2.TemplateSet
	templates   map[string]*pongo2.Template
	tplExt      string
	log         *logrus.Logger
}

var _ template.TemplateRenderer = (*Engine)(nil)

// New constructs an Engine. Without a base dir or fs.FS only RenderString is
// usable.
func New(options ...Option) (*Engine, error) {
	cfg := &config{
		name:      "plugkit",
		extension: ".tpl",
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logrus.New()
	}

	var loaders []pongo2.TemplateLoader
	if cfg.baseDir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(cfg.baseDir)
		if err != nil {
			return nil, fmt.Errorf("pongo: create local loader: %w", err)
		}
		loaders = append(loaders, loader)
	}
	if cfg.templates != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.templates))
	}
	if len(loaders) == 0 {
		loaders = append(loaders, pongo2.NewFSLoader(emptyFS{}))
	}

	engine := &Engine{
		templateSet: pongo2.NewSet(cfg.name, loaders...),
		templates:   make(map[string]*pongo2.Template),
		tplExt:      cfg.extension,
		log:         cfg.logger,
	}

	if err := engine.GlobalContext(cfg.globalData); err != nil {
		return nil, fmt.Errorf("pongo: apply global data: %w", err)
	}
	for name, fn := range cfg.helpers {
		if name == "" || fn == nil {
			continue
		}
		if err := engine.GlobalContext(map[string]any{name: fn}); err != nil {
			return nil, fmt.Errorf("pongo: register helper %q: %w", name, err)
		}
	}
	return engine, nil
}

// Render treats name as inline content when it contains template delimiters.
func (e *Engine) Render(rc *plugin.RenderContext, name string, data any, out ...io.Writer) (string, error) {
	if isTemplateContent(name) {
		return e.RenderString(rc, name, data, out...)
	}
	return e.RenderTemplate(rc, name, data, out...)
}

// RenderTemplate loads name (adding the configured extension) and renders it.
func (e *Engine) RenderTemplate(rc *plugin.RenderContext, name string, data any, out ...io.Writer) (string, error) {
	if e == nil || e.templateSet == nil {
		return "", errors.New("pongo: engine is nil")
	}
	templatePath := name
	if !strings.HasSuffix(templatePath, e.tplExt) {
		templatePath += e.tplExt
	}

	tmpl, err := e.getTemplate(templatePath)
	if err != nil {
		finalize(rc)
		return "", err
	}
	return e.execute(rc, tmpl, templatePath, data, out...)
}

// RenderString parses and renders templateContent.
func (e *Engine) RenderString(rc *plugin.RenderContext, templateContent string, data any, out ...io.Writer) (string, error) {
	if e == nil || e.templateSet == nil {
		return "", errors.New("pongo: engine is nil")
	}

	tmpl, err := e.templateSet.FromString(templateContent)
	if err != nil {
		finalize(rc)
		return "", fmt.Errorf("pongo: parse template string: %w", unwrap(err))
	}
	return e.execute(rc, tmpl, "string", data, out...)
}

// GlobalContext merges data into the set globals.
func (e *Engine) GlobalContext(data any) error {
	if e == nil || e.templateSet == nil {
		return errors.New("pongo: engine is nil")
	}
	if data == nil {
		return nil
	}

	globalCtx, err := toContext(data)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.templateSet.Globals == nil {
		e.templateSet.Globals = make(pongo2.Context)
	}
	e.templateSet.Globals.Update(globalCtx)
	return nil
}

// Invalidate drops cached templates so the next render re-parses them.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates = make(map[string]*pongo2.Template)
}

func (e *Engine) execute(rc *plugin.RenderContext, tmpl *pongo2.Template, label string, data any, out ...io.Writer) (string, error) {
	defer finalize(rc)

	viewContext, err := toContext(data)
	if err != nil {
		return "", fmt.Errorf("pongo: convert data: %w", err)
	}
	if rc != nil {
		if err := rc.BeginRender(); err != nil {
			return "", fmt.Errorf("pongo: %w", err)
		}
		e.installPlugins(viewContext, rc)
	}

	var buf bytes.Buffer

	e.mu.RLock()
	err = tmpl.ExecuteWriter(viewContext, &buf)
	e.mu.RUnlock()

	if err != nil {
		return "", fmt.Errorf("pongo: execute template %q: %w", label, unwrap(err))
	}

	rendered := buf.String()
	for _, w := range out {
		if _, err := w.Write([]byte(rendered)); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

// installPlugins exposes the bound drops under "plugins", every bound filter
// as a callable named after it, and the context itself for tag variants.
func (e *Engine) installPlugins(viewContext pongo2.Context, rc *plugin.RenderContext) {
	drops := make(map[string]any)
	for id, d := range rc.Plugins() {
		drops[id] = d.Values()
	}
	e.set(viewContext, plugin.PluginsKey, drops)

	for name, fn := range rc.Filters() {
		e.set(viewContext, name, callable(fn))
	}
	viewContext[plugin.ExecutionKey] = rc
}

func (e *Engine) set(viewContext pongo2.Context, key string, value any) {
	if _, exists := viewContext[key]; exists {
		e.log.WithField("key", key).Debug("plugin binding shadows template data")
	}
	viewContext[key] = value
}

func callable(fn func(any) (any, error)) func(*pongo2.Value) (*pongo2.Value, error) {
	return func(in *pongo2.Value) (*pongo2.Value, error) {
		var input any
		if in != nil && !in.IsNil() {
			input = in.Interface()
		}
		result, err := fn(input)
		if err != nil {
			return nil, err
		}
		if safe, ok := result.(plugin.SafeHTML); ok {
			return pongo2.AsSafeValue(string(safe)), nil
		}
		return pongo2.AsValue(result), nil
	}
}

func (e *Engine) getTemplate(path string) (*pongo2.Template, error) {
	e.mu.RLock()
	if tmpl, ok := e.templates[path]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.templates[path]; ok {
		return tmpl, nil
	}

	tmpl, err := e.templateSet.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("pongo: load template %q: %w", path, unwrap(err))
	}

	e.templates[path] = tmpl
	return tmpl, nil
}

func finalize(rc *plugin.RenderContext) {
	if rc != nil {
		rc.Finalize()
	}
}

// unwrap surfaces the error a tag or callable returned from inside pongo2 so
// callers can match plugin error types with errors.As.
func unwrap(err error) error {
	var perr *pongo2.Error
	if errors.As(err, &perr) && perr.OrigError != nil {
		return fmt.Errorf("%s line %d: %w", perr.Sender, perr.Line, perr.OrigError)
	}
	return err
}

func isTemplateContent(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

func toContext(data any) (pongo2.Context, error) {
	if ctx, ok := data.(pongo2.Context); ok {
		data = map[string]any(ctx)
	}
	converted, err := drop.Convert(data)
	if err != nil {
		return nil, err
	}
	return pongo2.Context(converted), nil
}

type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
