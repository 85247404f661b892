package plugin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-plugkit/pkg/settings"
)

// Factory builds a plugin instance from validated settings.
type Factory func(settings map[string]any) (Instance, error)

// Class declares what a plugin type contributes to templates. A Class is a
// template for derivations: for any prefix it yields exactly one set of tag
// variants and one FilterCapability.
type Class struct {
	// Name identifies the plugin type (e.g. "gallery"). It is not a prefix:
	// several instances of one class coexist under different prefixes.
	Name string
	// Tags maps an original tag name to its undecorated pongo2 parser.
	Tags map[string]pongo2.TagParser
	// Filters lists filter modules in resolution order; the first module
	// declaring a method supplies its implementation.
	Filters []*FilterModule
	// Settings optionally describes the instance settings accepted by New.
	Settings *settings.Schema
	// New constructs an instance from settings. Optional for classes that are
	// only ever instantiated in code.
	New Factory
}

// Instance is a live plugin instance bound at render-setup time.
type Instance interface {
	Class() *Class
	// ToDrop returns the data object exposed to templates under
	// plugins.<id>. Maps, structs and nil are accepted.
	ToDrop() any
}

// TagNames returns the class tag names sorted.
func (c *Class) TagNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Tags))
	for name := range c.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks names declared by the class.
func (c *Class) Validate() error {
	if c == nil {
		return ErrNilClass
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("plugin: class name is required")
	}
	for _, name := range c.TagNames() {
		if err := validateName(name); err != nil {
			return fmt.Errorf("plugin: class %q tag: %w", c.Name, err)
		}
		if c.Tags[name] == nil {
			return fmt.Errorf("plugin: class %q tag %q has no parser", c.Name, name)
		}
	}
	for idx, mod := range c.Filters {
		if mod == nil {
			continue
		}
		for name, fn := range mod.Methods {
			if fn == nil {
				return fmt.Errorf("plugin: class %q filter module %d method %q is nil", c.Name, idx, name)
			}
		}
	}
	return nil
}

func (c *Class) String() string {
	if c == nil {
		return "<nil>"
	}
	return c.Name
}
