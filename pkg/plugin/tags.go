package plugin

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-plugkit/pkg/drop"
)

// TagVariant wraps an undecorated tag with a prefix. The variant registers
// under QualifiedName and only renders the base tag when that name is enabled
// in the active RenderContext.
type TagVariant struct {
	Prefix string
	Name   string
	Class  *Class
	Base   pongo2.TagParser
}

// QualifiedName is the name the variant is registered under.
func (v TagVariant) QualifiedName() string {
	return PrefixedName(v.Prefix, v.Name)
}

// Owner describes the definition behind the variant for duplicate reporting.
func (v TagVariant) Owner() string {
	return fmt.Sprintf("%s.%s", v.Class, v.Name)
}

func (v TagVariant) sameDefinition(other TagVariant) bool {
	return v.Class == other.Class && v.Name == other.Name && v.Prefix == other.Prefix
}

// Parser returns the pongo2 parser to register for the variant. Parsing is
// delegated to the base parser unchanged; only execution is gated.
func (v TagVariant) Parser() pongo2.TagParser {
	name := v.QualifiedName()
	base := v.Base
	return func(doc *pongo2.Parser, start *pongo2.Token, arguments *pongo2.Parser) (pongo2.INodeTag, *pongo2.Error) {
		inner, err := base(doc, start, arguments)
		if err != nil {
			return nil, err
		}
		return &gatedNode{name: name, inner: inner, token: start}, nil
	}
}

type gatedNode struct {
	name  string
	inner pongo2.INodeTag
	token *pongo2.Token
}

func (n *gatedNode) Execute(ctx *pongo2.ExecutionContext, writer pongo2.TemplateWriter) *pongo2.Error {
	rc, ok := FromExecutionContext(ctx)
	if !ok {
		// Rendered outside any plugin-aware context: nothing enabled it.
		return nil
	}
	render, err := rc.gate(n.name)
	if err != nil {
		return ctx.OrigError(err, n.token)
	}
	if !render {
		return nil
	}
	return n.inner.Execute(ctx, writer)
}

// DeriveTagVariants produces one variant per tag declared by class, keyed by
// the prefixed name.
func DeriveTagVariants(class *Class, prefix string) (map[string]TagVariant, error) {
	if class == nil {
		return nil, ErrNilClass
	}
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	variants := make(map[string]TagVariant, len(class.Tags))
	for _, name := range class.TagNames() {
		if err := validateName(name); err != nil {
			return nil, fmt.Errorf("plugin: class %q: %w", class.Name, err)
		}
		variant := TagVariant{
			Prefix: prefix,
			Name:   name,
			Class:  class,
			Base:   class.Tags[name],
		}
		variants[variant.QualifiedName()] = variant
	}
	return variants, nil
}

// VariantNames returns the prefixed tag names class contributes under prefix.
func VariantNames(class *Class, prefix string) []string {
	if class == nil {
		return nil
	}
	names := class.TagNames()
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, PrefixedName(prefix, name))
	}
	return out
}

// TagPrefix recovers the prefix from the tag token as written in the
// template, e.g. "shop" for {% shop_gallery %} and name "gallery". It returns
// "" when the tag was used without a prefix.
func TagPrefix(start *pongo2.Token, name string) string {
	if start == nil {
		return ""
	}
	suffix := "_" + name
	if !strings.HasSuffix(start.Val, suffix) {
		return ""
	}
	return strings.TrimSuffix(start.Val, suffix)
}

// ExecutionDrop returns the drop bound under prefix in the render context ctx
// executes against.
func ExecutionDrop(ctx *pongo2.ExecutionContext, prefix string) (*drop.Drop, bool) {
	rc, ok := FromExecutionContext(ctx)
	if !ok {
		return nil, false
	}
	return rc.Plugin(prefix)
}
