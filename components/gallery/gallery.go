package gallery

import (
	"fmt"
	"html"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-plugkit/pkg/plugin"
	"github.com/goliatone/go-plugkit/pkg/settings"
)

// ClassName is the plugin type name used in configuration.
const ClassName = "gallery"

// AssetHostRegister is the register key asset_url prefixes paths with.
const AssetHostRegister = "asset_host"

// Schema describes gallery instance settings.
var Schema = settings.MustParse(`
type: object
properties:
  title:
    type: string
  columns:
    type: integer
    minimum: 1
    default: 3
  images:
    type: array
    items:
      type: string
required:
  - title
`)

// Class is the gallery plugin class.
var Class = &plugin.Class{
	Name: ClassName,
	Tags: map[string]pongo2.TagParser{
		"gallery": parseGallery,
		"caption": parseCaption,
	},
	Filters:  []*plugin.FilterModule{AssetFilters},
	Settings: Schema,
	New:      newFromSettings,
}

// Gallery is one configured gallery.
type Gallery struct {
	Title   string
	Columns int
	Images  []string
}

// New constructs a gallery instance.
func New(title string, columns int, images ...string) *Gallery {
	if columns <= 0 {
		columns = 3
	}
	return &Gallery{Title: title, Columns: columns, Images: append([]string(nil), images...)}
}

// Class implements plugin.Instance.
func (g *Gallery) Class() *plugin.Class { return Class }

// ToDrop implements plugin.Instance.
func (g *Gallery) ToDrop() any {
	images := make([]any, 0, len(g.Images))
	for _, img := range g.Images {
		images = append(images, img)
	}
	return map[string]any{
		"title":   g.Title,
		"columns": g.Columns,
		"images":  images,
	}
}

func newFromSettings(values map[string]any) (plugin.Instance, error) {
	title, _ := values["title"].(string)
	columns := 3
	switch v := values["columns"].(type) {
	case float64:
		columns = int(v)
	case int:
		columns = v
	}
	var images []string
	if raw, ok := values["images"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				images = append(images, s)
			}
		}
	}
	return New(title, columns, images...), nil
}

type galleryNode struct {
	prefix string
}

func parseGallery(doc *pongo2.Parser, start *pongo2.Token, arguments *pongo2.Parser) (pongo2.INodeTag, *pongo2.Error) {
	if arguments.Remaining() > 0 {
		return nil, arguments.Error("gallery takes no arguments", nil)
	}
	return &galleryNode{prefix: plugin.TagPrefix(start, "gallery")}, nil
}

func (n *galleryNode) Execute(ctx *pongo2.ExecutionContext, writer pongo2.TemplateWriter) *pongo2.Error {
	d, ok := plugin.ExecutionDrop(ctx, n.prefix)
	if !ok {
		return nil
	}
	columns, _ := d.Get("columns")
	var sb strings.Builder
	fmt.Fprintf(&sb, `<ul class="gallery" data-plugin="%s" data-columns="%v">`, html.EscapeString(d.PluginID()), columns)
	if images, ok := d.Get("images"); ok {
		if list, ok := images.([]any); ok {
			for _, img := range list {
				fmt.Fprintf(&sb, `<li><img src="%s"></li>`, html.EscapeString(fmt.Sprint(img)))
			}
		}
	}
	sb.WriteString("</ul>")
	if _, err := writer.WriteString(sb.String()); err != nil {
		return ctx.OrigError(err, nil)
	}
	return nil
}

type captionNode struct {
	wrapper *pongo2.NodeWrapper
}

// parseCaption wraps its body in a figcaption. The block closes with "end"
// plus the tag name as written, so {% shop_caption %} ends with
// {% endshop_caption %}.
func parseCaption(doc *pongo2.Parser, start *pongo2.Token, arguments *pongo2.Parser) (pongo2.INodeTag, *pongo2.Error) {
	if arguments.Remaining() > 0 {
		return nil, arguments.Error("caption takes no arguments", nil)
	}
	wrapper, endArgs, err := doc.WrapUntilTag("end" + start.Val)
	if err != nil {
		return nil, err
	}
	if endArgs.Remaining() > 0 {
		return nil, endArgs.Error("arguments not allowed on the closing caption tag", nil)
	}
	return &captionNode{wrapper: wrapper}, nil
}

func (n *captionNode) Execute(ctx *pongo2.ExecutionContext, writer pongo2.TemplateWriter) *pongo2.Error {
	if _, err := writer.WriteString("<figcaption>"); err != nil {
		return ctx.OrigError(err, nil)
	}
	if err := n.wrapper.Execute(ctx, writer); err != nil {
		return err
	}
	if _, err := writer.WriteString("</figcaption>"); err != nil {
		return ctx.OrigError(err, nil)
	}
	return nil
}
