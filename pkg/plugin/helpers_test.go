package plugin

import (
	"github.com/flosch/pongo2/v6"
)

type stubInstance struct {
	class *Class
	data  any
}

func (s *stubInstance) Class() *Class { return s.class }

func (s *stubInstance) ToDrop() any { return s.data }

type staticNode string

func (n staticNode) Execute(_ *pongo2.ExecutionContext, writer pongo2.TemplateWriter) *pongo2.Error {
	_, _ = writer.WriteString(string(n))
	return nil
}

func staticTag(output string) pongo2.TagParser {
	return func(_ *pongo2.Parser, _ *pongo2.Token, _ *pongo2.Parser) (pongo2.INodeTag, *pongo2.Error) {
		return staticNode(output), nil
	}
}

func galleryClass(output string) *Class {
	return &Class{
		Name: "gallery",
		Tags: map[string]pongo2.TagParser{"gallery": staticTag(output)},
	}
}

// renderWith executes source against rc the way a template adapter does.
func renderWith(source string, rc *RenderContext) (string, error) {
	tpl, err := pongo2.FromString(source)
	if err != nil {
		return "", err
	}
	ctx := pongo2.Context{}
	if rc != nil {
		ctx[ExecutionKey] = rc
	}
	return tpl.Execute(ctx)
}
