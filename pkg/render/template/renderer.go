package template

import (
	"io"

	"github.com/goliatone/go-plugkit/pkg/plugin"
)

// TemplateRenderer renders templates with plugin tags and filters resolved
// against rc. A nil rc renders without any plugin bound. Each call consumes
// rc: it moves to rendering on entry and is finalized on return.
type TemplateRenderer interface {
	Render(rc *plugin.RenderContext, name string, data any, out ...io.Writer) (string, error)
	RenderTemplate(rc *plugin.RenderContext, name string, data any, out ...io.Writer) (string, error)
	RenderString(rc *plugin.RenderContext, templateContent string, data any, out ...io.Writer) (string, error)
	GlobalContext(data any) error
}
