package plugin

import (
	"sort"

	"github.com/flosch/pongo2/v6"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-plugkit/pkg/drop"
)

// ExecutionKey is the pongo2 context key the active RenderContext travels
// under while a template executes.
const ExecutionKey = "plugkit_registers"

// State is a RenderContext lifecycle stage.
type State int

const (
	StateConstructed State = iota
	StateBound
	StateRendering
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateBound:
		return "bound"
	case StateRendering:
		return "rendering"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// DisabledTagPolicy decides what a tag variant does when it renders in a
// context that did not enable it.
type DisabledTagPolicy int

const (
	// PolicyNoOp renders nothing. Template fragments can then be reused
	// outside the plugin instance that defines their tags.
	PolicyNoOp DisabledTagPolicy = iota
	// PolicyStrict fails the render with DisabledTagRenderError.
	PolicyStrict
)

func (p DisabledTagPolicy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "noop"
}

// ContextOption configures a RenderContext at construction.
type ContextOption func(*RenderContext)

// WithDisabledTagPolicy selects the disabled-tag policy.
func WithDisabledTagPolicy(policy DisabledTagPolicy) ContextOption {
	return func(rc *RenderContext) {
		rc.policy = policy
	}
}

// WithLogger sets the logger used to report dispatch defects.
func WithLogger(logger *logrus.Logger) ContextOption {
	return func(rc *RenderContext) {
		if logger != nil {
			rc.logger = logger
		}
	}
}

// WithRegisters replaces the default map-backed registers.
func WithRegisters(registers Registers) ContextOption {
	return func(rc *RenderContext) {
		if registers != nil {
			rc.registers = registers
		}
	}
}

// RenderContext is the per-render aggregate of enabled tags, plugin drops and
// filter bindings. It is not safe for concurrent use: bind everything, call
// BeginRender, render, then Finalize. Each concurrent render needs its own
// context.
type RenderContext struct {
	state     State
	policy    DisabledTagPolicy
	logger    *logrus.Logger
	registers Registers
	filters   map[string]*FilterCapability
	instances map[string]Instance
	order     []string
}

// NewRenderContext constructs an empty context.
func NewRenderContext(options ...ContextOption) *RenderContext {
	rc := &RenderContext{
		registers: MapRegisters{},
		filters:   make(map[string]*FilterCapability),
		instances: make(map[string]Instance),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(rc)
	}
	if rc.logger == nil {
		rc.logger = logrus.New()
	}
	return rc
}

// FromExecutionContext returns the RenderContext a pongo2 template is
// executing against.
func FromExecutionContext(ctx *pongo2.ExecutionContext) (*RenderContext, bool) {
	if ctx == nil {
		return nil, false
	}
	for _, scope := range []pongo2.Context{ctx.Private, ctx.Public} {
		if scope == nil {
			continue
		}
		if rc, ok := scope[ExecutionKey].(*RenderContext); ok && rc != nil {
			return rc, true
		}
	}
	return nil, false
}

// State returns the lifecycle stage.
func (rc *RenderContext) State() State {
	return rc.state
}

// Policy returns the disabled-tag policy chosen at construction.
func (rc *RenderContext) Policy() DisabledTagPolicy {
	return rc.policy
}

// Logger returns the context logger.
func (rc *RenderContext) Logger() *logrus.Logger {
	return rc.logger
}

// Registers exposes the underlying key/value store.
func (rc *RenderContext) Registers() Registers {
	return rc.registers
}

// Receiver returns the receiver filters invoked from this context run against.
func (rc *RenderContext) Receiver() Receiver {
	return Receiver{rc: rc}
}

// BeginRender closes the bind phase.
func (rc *RenderContext) BeginRender() error {
	switch rc.state {
	case StateConstructed, StateBound:
		rc.state = StateRendering
		return nil
	default:
		return &LifecycleError{Op: "begin render", State: rc.state}
	}
}

// Finalize discards enabled tags, drops and filter bindings. Finalizing twice
// is harmless.
func (rc *RenderContext) Finalize() {
	rc.state = StateFinalized
	rc.registers = MapRegisters{}
	rc.filters = make(map[string]*FilterCapability)
	rc.instances = make(map[string]Instance)
	rc.order = nil
}

// TagEnabled reports whether name is in the enabled tag set. Outside the
// rendering stage nothing is enabled.
func (rc *RenderContext) TagEnabled(name string) bool {
	if rc.state != StateRendering {
		return false
	}
	return rc.enabledTags(false).Has(name)
}

// EnabledTags returns the enabled tag names sorted.
func (rc *RenderContext) EnabledTags() []string {
	return rc.enabledTags(false).Names()
}

// Plugin returns the drop bound under id.
func (rc *RenderContext) Plugin(id string) (*drop.Drop, bool) {
	d, ok := rc.plugins(false)[id]
	return d, ok
}

// Instance returns the live instance bound under id. Tags and filters that
// need more than the drop data, such as callbacks, read it from here.
func (rc *RenderContext) Instance(id string) (Instance, bool) {
	inst, ok := rc.instances[id]
	return inst, ok
}

// Plugins returns a copy of the id to drop mapping.
func (rc *RenderContext) Plugins() map[string]*drop.Drop {
	src := rc.plugins(false)
	out := make(map[string]*drop.Drop, len(src))
	for id, d := range src {
		out[id] = d
	}
	return out
}

// FilterBindings returns the bound capabilities in binding order.
func (rc *RenderContext) FilterBindings() []*FilterCapability {
	out := make([]*FilterCapability, 0, len(rc.order))
	for _, prefix := range rc.order {
		out = append(out, rc.filters[prefix])
	}
	return out
}

// Filters returns every bound prefixed filter as a function of its input,
// already bound to this context's receiver. Bind rejects names that two
// prefixes would share.
func (rc *RenderContext) Filters() map[string]func(input any) (any, error) {
	recv := rc.Receiver()
	out := make(map[string]func(any) (any, error))
	for _, capability := range rc.FilterBindings() {
		for _, name := range capability.names {
			fn := capability.forward[name]
			out[name] = func(input any) (any, error) {
				return fn(recv, input)
			}
		}
	}
	return out
}

// FilterNames returns the sorted names Filters would expose.
func (rc *RenderContext) FilterNames() []string {
	seen := map[string]struct{}{}
	for _, capability := range rc.FilterBindings() {
		for _, name := range capability.names {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (rc *RenderContext) gate(name string) (bool, error) {
	if rc.TagEnabled(name) {
		return true, nil
	}
	if rc.policy == PolicyStrict {
		return false, &DisabledTagRenderError{Tag: name}
	}
	return false, nil
}

func (rc *RenderContext) filterNotFound(prefix, method string) error {
	err := &FilterNotFoundError{Prefix: prefix, Method: method}
	rc.logger.WithFields(logrus.Fields{
		"prefix": prefix,
		"filter": method,
	}).Error("plugin filter dispatch failed: capability and dispatcher disagree")
	return err
}

func (rc *RenderContext) enabledTags(create bool) TagSet {
	if raw, ok := rc.registers.Get(EnabledTagsKey); ok {
		if set, ok := raw.(TagSet); ok {
			return set
		}
	}
	set := TagSet{}
	if create {
		rc.registers.Set(EnabledTagsKey, set)
	}
	return set
}

func (rc *RenderContext) plugins(create bool) map[string]*drop.Drop {
	if raw, ok := rc.registers.Get(PluginsKey); ok {
		if m, ok := raw.(map[string]*drop.Drop); ok {
			return m
		}
	}
	m := map[string]*drop.Drop{}
	if create {
		rc.registers.Set(PluginsKey, m)
	}
	return m
}

// checkFilterNames fails when a name of capability is already provided under
// another prefix.
func (rc *RenderContext) checkFilterNames(capability *FilterCapability) error {
	if capability == nil {
		return nil
	}
	for _, prefix := range rc.order {
		if prefix == capability.prefix {
			continue
		}
		bound := rc.filters[prefix]
		for _, name := range capability.names {
			if _, clash := bound.forward[name]; clash {
				return &DuplicateFilterError{Name: name, Existing: prefix, Incoming: capability.prefix}
			}
		}
	}
	return nil
}

func (rc *RenderContext) addFilters(capability *FilterCapability) {
	if _, exists := rc.filters[capability.prefix]; !exists {
		rc.order = append(rc.order, capability.prefix)
	}
	rc.filters[capability.prefix] = capability
}
