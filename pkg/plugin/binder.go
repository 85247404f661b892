package plugin

import (
	"fmt"

	"github.com/goliatone/go-plugkit/pkg/drop"
)

// Runtime bundles everything derived for one instance under one plugin id:
// its tag variants, its filter capability and the instance whose drop is
// installed at bind time.
type Runtime struct {
	ID       string
	Instance Instance
	Variants map[string]TagVariant
	Filters  *FilterCapability
}

// NewRuntime derives the tag variants and filter capability for instance
// under pluginID.
func NewRuntime(instance Instance, pluginID string) (*Runtime, error) {
	if instance == nil {
		return nil, ErrNilClass
	}
	class := instance.Class()
	if class == nil {
		return nil, ErrNilClass
	}
	variants, err := DeriveTagVariants(class, pluginID)
	if err != nil {
		return nil, err
	}
	filters, err := BuildFilterCapability(class, pluginID)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		ID:       pluginID,
		Instance: instance,
		Variants: variants,
		Filters:  filters,
	}, nil
}

// TagNames returns the prefixed tag names of the runtime.
func (r *Runtime) TagNames() []string {
	return VariantNames(r.Instance.Class(), r.ID)
}

// Bind installs the runtime into rc. Binding the same runtime twice leaves the
// context unchanged; the drop entry is replaced on every bind.
func (r *Runtime) Bind(rc *RenderContext) error {
	if rc == nil {
		return fmt.Errorf("plugin: render context is required")
	}
	switch rc.state {
	case StateConstructed, StateBound:
	default:
		return &LifecycleError{Op: fmt.Sprintf("bind %q", r.ID), State: rc.state}
	}
	if err := rc.checkFilterNames(r.Filters); err != nil {
		return err
	}

	view, err := drop.New(r.ID, r.Instance.ToDrop())
	if err != nil {
		return fmt.Errorf("plugin: convert drop for %q: %w", r.ID, err)
	}

	rc.enabledTags(true).Add(r.TagNames()...)
	rc.plugins(true)[r.ID] = view
	rc.instances[r.ID] = r.Instance
	rc.addFilters(r.Filters)
	rc.state = StateBound

	rc.logger.WithField("plugin_id", r.ID).
		WithField("class", r.Instance.Class().Name).
		Debug("plugin bound to render context")
	return nil
}

// BindPlugin derives and binds instance under pluginID in one step.
func BindPlugin(instance Instance, pluginID string, rc *RenderContext) error {
	runtime, err := NewRuntime(instance, pluginID)
	if err != nil {
		return err
	}
	return runtime.Bind(rc)
}
