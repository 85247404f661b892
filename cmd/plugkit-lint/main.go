package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/goliatone/go-plugkit"
	"github.com/goliatone/go-plugkit/pkg/config"
	"github.com/goliatone/go-plugkit/pkg/plugin"
)

type violation struct {
	file     string
	location string
	message  string
}

func main() {
	flag.Usage = func() {
		if _, err := fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [config paths...]\n", filepath.Base(os.Args[0])); err != nil {
			panic(err)
		}
		if _, err := fmt.Fprintf(flag.CommandLine.Output(), "\nLint plugkit configurations and the templates they point at.\n"); err != nil {
			panic(err)
		}
	}
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		paths = []string{"plugkit.yaml"}
	}

	catalog, err := plugin.NewCatalog(plugkit.BuiltinClasses()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		os.Exit(1)
	}

	var violations []violation
	for _, path := range paths {
		linted, err := lintFile(catalog, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lint %s: %v\n", path, err)
			os.Exit(1)
		}
		violations = append(violations, linted...)
	}

	if len(violations) > 0 {
		sortViolations(violations)
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "%s: %s -> %s\n", v.file, v.location, v.message)
		}
		os.Exit(1)
	}
}

func sortViolations(violations []violation) {
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].file == violations[j].file {
			if violations[i].location == violations[j].location {
				return violations[i].message < violations[j].message
			}
			return violations[i].location < violations[j].location
		}
		return violations[i].file < violations[j].file
	})
}

func lintFile(catalog *plugin.Catalog, path string) ([]violation, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	var result []violation
	enabled := map[string]*plugin.Class{}
	for idx, inst := range cfg.Plugins {
		location := fmt.Sprintf("plugins[%d] (%s)", idx, inst.ID)
		class, err := catalog.Get(inst.Type)
		if err != nil {
			result = append(result, violation{file: path, location: location, message: fmt.Sprintf("unknown plugin type %q", inst.Type)})
			continue
		}
		if _, err := class.Settings.Apply(inst.Settings); err != nil {
			result = append(result, violation{file: path, location: location, message: err.Error()})
		}
		if inst.IsEnabled() {
			enabled[inst.ID] = class
		}
	}

	dir := cfg.Engine.TemplatesDir
	if dir == "" {
		return result, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(path), dir)
	}
	templates, err := lintTemplates(os.DirFS(dir), cfg.Engine.Extension, catalog, enabled)
	if err != nil {
		return nil, fmt.Errorf("templates %s: %w", dir, err)
	}
	for _, v := range templates {
		v.file = filepath.Join(dir, v.file)
		result = append(result, v)
	}
	return result, nil
}

var tagRe = regexp.MustCompile(`\{%-?\s*([A-Za-z_][A-Za-z0-9_]*)`)

// lintTemplates reports prefixed plugin tags whose prefix names no enabled
// instance. Such tags render nothing, or fail under strict_tags.
func lintTemplates(fsys fs.FS, ext string, catalog *plugin.Catalog, enabled map[string]*plugin.Class) ([]violation, error) {
	tagNames := map[string]struct{}{}
	for _, name := range catalog.List() {
		class, err := catalog.Get(name)
		if err != nil {
			return nil, err
		}
		for _, tag := range class.TagNames() {
			tagNames[tag] = struct{}{}
		}
	}

	var result []violation
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ext {
			return nil
		}
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		lines := strings.Split(string(raw), "\n")
		opened := map[string]struct{}{}
		for _, line := range lines {
			for _, match := range tagRe.FindAllStringSubmatch(line, -1) {
				opened[match[1]] = struct{}{}
			}
		}
		for lineNo, line := range lines {
			for _, match := range tagRe.FindAllStringSubmatch(line, -1) {
				if msg := checkTag(match[1], tagNames, enabled, opened); msg != "" {
					result = append(result, violation{
						file:     path,
						location: fmt.Sprintf("line %d", lineNo+1),
						message:  msg,
					})
				}
			}
		}
		return nil
	})
	return result, err
}

// checkTag reports what is wrong with the tag name, or "". opened holds every
// tag name of the template; "end" + an opened name is a closing tag.
func checkTag(name string, tagNames map[string]struct{}, enabled map[string]*plugin.Class, opened map[string]struct{}) string {
	if rest, ok := strings.CutPrefix(name, "end"); ok {
		if _, closes := opened[rest]; closes {
			return ""
		}
	}
	tags := make([]string, 0, len(tagNames))
	for tag := range tagNames {
		tags = append(tags, tag)
	}
	// longest suffix first: a prefix may itself contain underscores
	sort.Slice(tags, func(i, j int) bool {
		if len(tags[i]) == len(tags[j]) {
			return tags[i] < tags[j]
		}
		return len(tags[i]) > len(tags[j])
	})
	for _, tag := range tags {
		prefix := strings.TrimSuffix(name, "_"+tag)
		if prefix == name || prefix == "" {
			continue
		}
		class, ok := enabled[prefix]
		if !ok {
			return fmt.Sprintf("tag %q: no enabled plugin instance %q", name, prefix)
		}
		if _, declared := class.Tags[tag]; !declared {
			return fmt.Sprintf("tag %q: plugin %q (%s) has no tag %q", name, prefix, class.Name, tag)
		}
		return ""
	}
	return ""
}
