package plugin

import "sort"

// Register keys used inside a RenderContext.
const (
	EnabledTagsKey = "enabled_plugin_tags"
	PluginsKey     = "plugins"
)

// Registers is the per-render key/value store the binder writes to and tag
// variants read from.
type Registers interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapRegisters is the default Registers implementation.
type MapRegisters map[string]any

// Get returns the value stored under key.
func (r MapRegisters) Get(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// Set stores value under key.
func (r MapRegisters) Set(key string, value any) {
	r[key] = value
}

// TagSet is the set of prefixed tag variant names enabled in one context.
type TagSet map[string]struct{}

// Add inserts names into the set.
func (s TagSet) Add(names ...string) {
	for _, name := range names {
		s[name] = struct{}{}
	}
}

// Has reports membership.
func (s TagSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members sorted.
func (s TagSet) Names() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
