package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// TagBackend is the engine-wide tag registration API.
type TagBackend interface {
	RegisterTag(name string, parser pongo2.TagParser) error
}

// TagBackendFunc adapts a function to TagBackend.
type TagBackendFunc func(name string, parser pongo2.TagParser) error

// RegisterTag calls f.
func (f TagBackendFunc) RegisterTag(name string, parser pongo2.TagParser) error {
	return f(name, parser)
}

// Pongo2Backend registers tags in pongo2's process-global tag registry.
var Pongo2Backend TagBackend = TagBackendFunc(pongo2.RegisterTag)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBackend overrides the tag backend; the default is Pongo2Backend.
func WithBackend(backend TagBackend) RegistryOption {
	return func(r *Registry) {
		if backend != nil {
			r.backend = backend
		}
	}
}

// Registry fronts the engine-wide tag namespace. It remembers which
// definition owns each prefixed name so re-deriving the same (class, prefix)
// is a no-op while a different definition under a taken name fails.
type Registry struct {
	mu      sync.RWMutex
	backend TagBackend
	owners  map[string]TagVariant
}

// NewRegistry creates an empty registry.
func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		backend: Pongo2Backend,
		owners:  make(map[string]TagVariant),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry in front of
// Pongo2Backend. pongo2 keeps a single tag table per process, so every
// Registry using Pongo2Backend should be this one.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds one variant to the engine namespace.
func (r *Registry) Register(variant TagVariant) error {
	if variant.Base == nil {
		return fmt.Errorf("plugin: tag %q has no parser", variant.QualifiedName())
	}
	name := variant.QualifiedName()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.owners[name]; ok {
		if existing.sameDefinition(variant) {
			return nil
		}
		return &DuplicateRegistrationError{Name: name, Existing: existing.Owner(), Incoming: variant.Owner()}
	}

	if err := r.backend.RegisterTag(name, variant.Parser()); err != nil {
		var dup *DuplicateRegistrationError
		if errors.As(err, &dup) {
			return err
		}
		return &DuplicateRegistrationError{Name: name, Incoming: variant.Owner()}
	}
	r.owners[name] = variant
	return nil
}

// RegisterVariants registers variants in name order and stops at the first
// failure.
func (r *Registry) RegisterVariants(variants map[string]TagVariant) error {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Register(variants[name]); err != nil {
			return err
		}
	}
	return nil
}

// RegisterClass derives the variants of class under prefix and registers
// them.
func (r *Registry) RegisterClass(class *Class, prefix string) error {
	variants, err := DeriveTagVariants(class, prefix)
	if err != nil {
		return err
	}
	return r.RegisterVariants(variants)
}

// MustRegisterClass panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegisterClass(class *Class, prefix string) {
	if err := r.RegisterClass(class, prefix); err != nil {
		panic(err)
	}
}

// Has reports whether name was registered through this registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.owners[name]
	return ok
}

// Names returns the registered prefixed names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.owners))
	for name := range r.owners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MemoryBackend records registrations without touching pongo2. Names listed
// in Reserved are rejected as already taken.
type MemoryBackend struct {
	mu       sync.Mutex
	Reserved map[string]struct{}
	tags     map[string]pongo2.TagParser
}

// RegisterTag records parser under name.
func (b *MemoryBackend) RegisterTag(name string, parser pongo2.TagParser) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.Reserved[name]; ok {
		return fmt.Errorf("plugin: tag %q is reserved", name)
	}
	if b.tags == nil {
		b.tags = make(map[string]pongo2.TagParser)
	}
	if _, ok := b.tags[name]; ok {
		return fmt.Errorf("plugin: tag %q already registered", name)
	}
	b.tags[name] = parser
	return nil
}

// Lookup returns the parser recorded under name.
func (b *MemoryBackend) Lookup(name string) (pongo2.TagParser, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	parser, ok := b.tags[name]
	return parser, ok
}

// Len returns the number of recorded tags.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.tags)
}
