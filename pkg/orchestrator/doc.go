// Package orchestrator hosts plugin instances for a template engine: it
// registers each instance's prefixed tags at load time, then builds, binds and
// renders a fresh render context per request.
package orchestrator
