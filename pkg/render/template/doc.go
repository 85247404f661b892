// Package template defines the renderer seam plugin-aware hosts render
// through. Implementations execute a template against a plugin.RenderContext
// and finalize that context when the render completes.
package template
