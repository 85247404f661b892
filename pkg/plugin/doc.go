// Package plugin namespaces plugin-contributed pongo2 tags and filters so that
// several plugin instances can render inside the same document without name
// collisions or behavior leaking between them.
//
// A Class declares tags and ordered filter modules. Given a prefix (usually the
// plugin instance id) the package derives:
//
//   - tag variants named prefix_tag whose output is gated on the render
//     context's enabled tag set (DeriveTagVariants, Registry.RegisterClass);
//   - a FilterCapability exposing prefix_method forwarders that dispatch back to
//     the first module declaring method (BuildFilterCapability).
//
// BindPlugin wires one instance into a RenderContext before rendering starts.
package plugin
