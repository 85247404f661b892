package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Catalog stores plugin classes by type name so configuration can refer to
// them.
type Catalog struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewCatalog creates a catalog holding classes.
func NewCatalog(classes ...*Class) (*Catalog, error) {
	c := &Catalog{classes: make(map[string]*Class)}
	for _, class := range classes {
		if err := c.Register(class); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a class by its Name. Duplicate names return an error.
func (c *Catalog) Register(class *Class) error {
	if err := class.Validate(); err != nil {
		return err
	}
	name := strings.TrimSpace(class.Name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.classes[name]; exists {
		if existing == class {
			return nil
		}
		return fmt.Errorf("plugin: class %q already registered", name)
	}
	c.classes[name] = class
	return nil
}

// MustRegister panics on registration failure.
func (c *Catalog) MustRegister(class *Class) {
	if err := c.Register(class); err != nil {
		panic(err)
	}
}

// Get retrieves a class by name.
func (c *Catalog) Get(name string) (*Class, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	class, ok := c.classes[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("plugin: class %q not found", name)
	}
	return class, nil
}

// List returns the registered class names sorted.
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.classes))
	for name := range c.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
