package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-plugkit"
	"github.com/goliatone/go-plugkit/internal/prompt"
	"github.com/goliatone/go-plugkit/pkg/config"
	"github.com/goliatone/go-plugkit/pkg/orchestrator"
)

func main() {
	configPath := flag.String("config", "plugkit.yaml", "host configuration (JSON or YAML)")
	templateName := flag.String("template", "", "template to render, resolved against engine.templates_dir")
	content := flag.String("content", "", "inline template source; wins over -template")
	dataPath := flag.String("data", "", "template data file (JSON or YAML)")
	output := flag.String("output", "", "output file (stdout if empty)")
	pluginIDs := flag.String("plugins", "", "comma-separated plugin ids to bind (all when empty)")
	interactive := flag.Bool("interactive", false, "choose plugins interactively")
	strict := flag.Bool("strict", false, "fail when a tag renders outside its plugin instance")
	embedded := flag.Bool("embedded", false, "render the built-in showcase templates")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := run(context.Background(), logger, options{
		configPath:   *configPath,
		templateName: *templateName,
		content:      *content,
		dataPath:     *dataPath,
		output:       *output,
		plugins:      splitList(*pluginIDs),
		interactive:  *interactive,
		strict:       *strict,
		embedded:     *embedded,
	}); err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			os.Exit(130)
		}
		logger.WithError(err).Fatal("render failed")
	}
}

type options struct {
	configPath   string
	templateName string
	content      string
	dataPath     string
	output       string
	plugins      []string
	interactive  bool
	strict       bool
	embedded     bool
}

func run(ctx context.Context, logger *logrus.Logger, opts options) error {
	var cfgOpts []config.Option
	if opts.strict {
		cfgOpts = append(cfgOpts, config.WithStrictTags(true))
	}
	cfg, err := plugkit.LoadConfig(opts.configPath, cfgOpts...)
	if err != nil {
		return err
	}
	if dir := cfg.Engine.TemplatesDir; dir != "" && !filepath.IsAbs(dir) {
		cfg.Engine.TemplatesDir = filepath.Join(filepath.Dir(opts.configPath), dir)
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
	}
	if opts.embedded {
		templates, err := plugkit.WithEmbeddedTemplates(logger)
		if err != nil {
			return err
		}
		orchOpts = append(orchOpts, templates)
	}
	orchOpts = append(orchOpts, plugkit.WithConfig(cfg))

	orch, err := plugkit.NewOrchestrator(orchOpts...)
	if err != nil {
		return err
	}

	data, err := loadData(opts.dataPath)
	if err != nil {
		return err
	}

	req := plugkit.Request{
		Template: opts.templateName,
		Content:  opts.content,
		Data:     data,
		Plugins:  opts.plugins,
	}
	if opts.interactive {
		choices, err := prompt.NewPicker(nil).Choose(ctx, orch.Instances(), false, "")
		if err != nil {
			return err
		}
		// empty Plugins binds everything
		if len(choices.Plugins) == 0 {
			return errors.New("no plugins selected")
		}
		req.Plugins = choices.Plugins
	}

	rendered, err := orch.Render(ctx, req)
	if err != nil {
		return err
	}
	return writeOutput(opts.output, rendered)
}

func loadData(path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data %s: %w", path, err)
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse data %s: %w", path, err)
	}
	return data, nil
}

func writeOutput(path, rendered string) error {
	if path == "" {
		fmt.Println(rendered)
		return nil
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Rendered to %s\n", path)
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
