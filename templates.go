package plugkit

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.tpl
var embeddedTemplates embed.FS

// EmbeddedTemplates exposes the built-in showcase templates. They expect a
// gallery instance under the id "shop" and an htmlkit instance under "ugc".
func EmbeddedTemplates() fs.FS {
	fsys, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return embeddedTemplates
	}
	return fsys
}
