package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrNilClass is returned when a nil class or instance is supplied.
	ErrNilClass = errors.New("plugin: class is required")
	// ErrInvalidPrefix is returned for prefixes that are not template identifiers.
	ErrInvalidPrefix = errors.New("plugin: invalid prefix")
	// ErrInvalidName is returned for tag or filter names that are not template identifiers.
	ErrInvalidName = errors.New("plugin: invalid name")
)

// DuplicateRegistrationError reports two different tag definitions resolving to
// the same prefixed name in the engine-wide tag namespace.
type DuplicateRegistrationError struct {
	Name     string
	Existing string
	Incoming string
}

func (e *DuplicateRegistrationError) Error() string {
	if e.Existing == "" {
		return fmt.Sprintf("plugin: tag %q already registered with the template engine (incoming %s)", e.Name, e.Incoming)
	}
	return fmt.Sprintf("plugin: tag %q already registered by %s (incoming %s)", e.Name, e.Existing, e.Incoming)
}

// DuplicateFilterError reports two prefixes whose derived filter names meet,
// as prefix shop with asset_url and prefix shop_asset with url do.
type DuplicateFilterError struct {
	Name     string
	Existing string
	Incoming string
}

func (e *DuplicateFilterError) Error() string {
	return fmt.Sprintf("plugin: filter %q already provided by prefix %q (incoming prefix %q)", e.Name, e.Existing, e.Incoming)
}

// FilterNotFoundError reports a passthrough call that could not be resolved to
// a filter implementation. Forwarders are derived from the same module list the
// dispatcher scans, so this always indicates an internal inconsistency.
type FilterNotFoundError struct {
	Prefix string
	Method string
}

func (e *FilterNotFoundError) Error() string {
	return fmt.Sprintf("plugin: filter %q not found for prefix %q", e.Method, e.Prefix)
}

// DisabledTagRenderError is raised under PolicyStrict when a tag variant renders
// in a context that did not enable it.
type DisabledTagRenderError struct {
	Tag string
}

func (e *DisabledTagRenderError) Error() string {
	return fmt.Sprintf("plugin: tag %q is not enabled in this render context", e.Tag)
}

// LifecycleError reports an operation attempted in the wrong RenderContext state.
type LifecycleError struct {
	Op    string
	State State
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("plugin: %s not allowed while render context is %s", e.Op, e.State)
}
