package plugin

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-plugkit/pkg/drop"
)

// FilterFunc is a filter implementation. recv exposes the render context the
// call was made from; input is the single explicit argument.
type FilterFunc func(recv Receiver, input any) (any, error)

// SafeHTML marks filter output that must not be escaped again.
type SafeHTML string

// FilterModule groups filter methods. Modules are listed on a Class in
// resolution order.
type FilterModule struct {
	Name    string
	Methods map[string]FilterFunc
}

// MethodNames returns the public method names of the module sorted.
func (m *FilterModule) MethodNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Methods))
	for name, fn := range m.Methods {
		if fn == nil || !isPublicMethod(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *FilterModule) lookup(method string) (FilterFunc, bool) {
	if m == nil || !isPublicMethod(method) {
		return nil, false
	}
	fn, ok := m.Methods[method]
	return fn, ok && fn != nil
}

// FilterCapability is the prefixed filter surface of one (class, prefix) pair.
type FilterCapability struct {
	prefix   string
	modules  []*FilterModule
	names    []string
	forward  map[string]FilterFunc
	original map[string]string
}

// BuildFilterCapability derives a forwarding function named prefix_m for every
// distinct public method m found across class.Filters. Forwarders carry only
// (prefix, m); the implementation is resolved at call time by
// Receiver.Passthrough against the module list bound for prefix.
func BuildFilterCapability(class *Class, prefix string) (*FilterCapability, error) {
	if class == nil {
		return nil, ErrNilClass
	}
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	capability := &FilterCapability{
		prefix:   prefix,
		modules:  flattenModules(class.Filters),
		forward:  make(map[string]FilterFunc),
		original: make(map[string]string),
	}
	for _, mod := range capability.modules {
		for _, method := range mod.MethodNames() {
			name := PrefixedName(prefix, method)
			if _, exists := capability.forward[name]; exists {
				continue
			}
			capability.names = append(capability.names, name)
			capability.forward[name] = forwarder(prefix, method)
			capability.original[name] = method
		}
	}
	return capability, nil
}

func forwarder(prefix, method string) FilterFunc {
	return func(recv Receiver, input any) (any, error) {
		return recv.Passthrough(prefix, method, input)
	}
}

func flattenModules(in []*FilterModule) []*FilterModule {
	out := make([]*FilterModule, 0, len(in))
	for _, mod := range in {
		if mod == nil || len(mod.Methods) == 0 {
			continue
		}
		out = append(out, mod)
	}
	return out
}

// Prefix returns the namespace of the capability.
func (c *FilterCapability) Prefix() string {
	if c == nil {
		return ""
	}
	return c.prefix
}

// Names returns the prefixed filter names in derivation order.
func (c *FilterCapability) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}

// Modules returns the ordered raw module list the dispatcher scans.
func (c *FilterCapability) Modules() []*FilterModule {
	if c == nil {
		return nil
	}
	return append([]*FilterModule(nil), c.modules...)
}

// Lookup returns the forwarder registered under a prefixed name.
func (c *FilterCapability) Lookup(name string) (FilterFunc, bool) {
	if c == nil {
		return nil, false
	}
	fn, ok := c.forward[name]
	return fn, ok
}

// Original returns the unprefixed method name behind a prefixed name.
func (c *FilterCapability) Original(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	method, ok := c.original[name]
	return method, ok
}

func (c *FilterCapability) resolve(method string) (FilterFunc, bool) {
	for _, mod := range c.modules {
		if fn, ok := mod.lookup(method); ok {
			return fn, true
		}
	}
	return nil, false
}

// Receiver is the value filters run against. Every filter invoked through a
// RenderContext sees the same render context; PluginID tells which prefixed
// name the call came in through.
type Receiver struct {
	rc     *RenderContext
	prefix string
}

// PluginID returns the prefix the current filter was invoked under, or ""
// outside a prefixed call.
func (r Receiver) PluginID() string {
	return r.prefix
}

// Self returns the drop of the instance the current filter belongs to.
func (r Receiver) Self() (*drop.Drop, bool) {
	if r.prefix == "" {
		return nil, false
	}
	return r.Plugin(r.prefix)
}

// Instance returns the live instance the current filter belongs to.
func (r Receiver) Instance() (Instance, bool) {
	if r.rc == nil || r.prefix == "" {
		return nil, false
	}
	return r.rc.Instance(r.prefix)
}

// Context returns the render context behind the receiver.
func (r Receiver) Context() *RenderContext {
	return r.rc
}

// Plugin returns the drop bound under id, if any.
func (r Receiver) Plugin(id string) (*drop.Drop, bool) {
	if r.rc == nil {
		return nil, false
	}
	return r.rc.Plugin(id)
}

// Register reads a value from the context registers.
func (r Receiver) Register(key string) (any, bool) {
	if r.rc == nil || r.rc.registers == nil {
		return nil, false
	}
	return r.rc.registers.Get(key)
}

// Passthrough resolves method against the modules bound for prefix, in
// declared order, and invokes the first match with this receiver.
func (r Receiver) Passthrough(prefix, method string, input any) (any, error) {
	if r.rc == nil {
		return nil, &FilterNotFoundError{Prefix: prefix, Method: method}
	}
	if r.rc.state != StateRendering {
		return nil, &LifecycleError{Op: fmt.Sprintf("filter %s", PrefixedName(prefix, method)), State: r.rc.state}
	}
	capability, ok := r.rc.filters[prefix]
	if !ok {
		return nil, r.rc.filterNotFound(prefix, method)
	}
	fn, ok := capability.resolve(method)
	if !ok {
		return nil, r.rc.filterNotFound(prefix, method)
	}
	return fn(Receiver{rc: r.rc, prefix: prefix}, input)
}
