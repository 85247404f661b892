package pongo_test

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-plugkit/components/gallery"
	"github.com/goliatone/go-plugkit/pkg/plugin"
	"github.com/goliatone/go-plugkit/pkg/render/template/pongo"
	"github.com/goliatone/go-plugkit/pkg/testsupport"
)

// Tags live in pongo2's global registry, so every test registers its own
// prefixes.
var registry = plugin.DefaultRegistry()

func bound(t *testing.T, instances map[string]plugin.Instance, options ...plugin.ContextOption) *plugin.RenderContext {
	t.Helper()

	rc := plugin.NewRenderContext(options...)
	for id, instance := range instances {
		if err := registry.RegisterClass(instance.Class(), id); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
		if err := plugin.BindPlugin(instance, id, rc); err != nil {
			t.Fatalf("bind %s: %v", id, err)
		}
	}
	return rc
}

func newEngine(t *testing.T, options ...pongo.Option) *pongo.Engine {
	t.Helper()

	engine, err := pongo.New(options...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestEngine_RenderStringWithEnabledTag(t *testing.T) {
	engine := newEngine(t)
	rc := bound(t, map[string]plugin.Instance{
		"eshop": gallery.New("Shop", 2, "a.png"),
	})

	got, err := engine.RenderString(rc, `{% eshop_gallery %}`, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `<ul class="gallery" data-plugin="eshop" data-columns="2"><li><img src="a.png"></li></ul>`
	if got != want {
		t.Fatalf("unexpected output:\nwant %s\ngot  %s", want, got)
	}
	if rc.State() != plugin.StateFinalized {
		t.Fatalf("render context not finalized: %s", rc.State())
	}
}

func TestEngine_TagOfOtherInstanceRendersNothing(t *testing.T) {
	engine := newEngine(t)
	if err := registry.RegisterClass(gallery.Class, "isop1"); err != nil {
		t.Fatalf("register isop1: %v", err)
	}
	rc := bound(t, map[string]plugin.Instance{
		"isop2": gallery.New("Blog", 1, "b.png"),
	})

	got, err := engine.RenderString(rc, `[{% isop1_gallery %}]`, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "[]" {
		t.Fatalf("expected isop1_gallery to be a no-op, got %q", got)
	}
}

func TestEngine_StrictPolicyReportsDisabledTag(t *testing.T) {
	engine := newEngine(t)
	if err := registry.RegisterClass(gallery.Class, "strict1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	rc := plugin.NewRenderContext(plugin.WithDisabledTagPolicy(plugin.PolicyStrict))

	_, err := engine.RenderString(rc, `{% strict1_gallery %}`, nil)
	var disabled *plugin.DisabledTagRenderError
	if !errors.As(err, &disabled) {
		t.Fatalf("expected DisabledTagRenderError, got %v", err)
	}
	if disabled.Tag != "strict1_gallery" {
		t.Fatalf("tag = %q", disabled.Tag)
	}
	if rc.State() != plugin.StateFinalized {
		t.Fatalf("failed render must still finalize, state %s", rc.State())
	}
}

func TestEngine_BoundFiltersAreCallable(t *testing.T) {
	engine := newEngine(t)
	rc := bound(t, map[string]plugin.Instance{
		"fshop": gallery.New("Shop", 1),
	}, plugin.WithRegisters(plugin.MapRegisters{gallery.AssetHostRegister: "https://cdn.test/"}))

	got, err := engine.RenderString(rc, `{{ fshop_thumbnail("img/a.png") }} {{ fshop_asset_url(path) }}`, map[string]any{
		"path": "img/b.png",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := "img/a_thumb.png https://cdn.test/img/b.png"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEngine_DropsExposedUnderPlugins(t *testing.T) {
	engine := newEngine(t)
	rc := bound(t, map[string]plugin.Instance{
		"dshop": gallery.New("Shop", 2, "a.png", "b.png"),
	})

	got, err := engine.RenderString(rc, `{{ plugins.dshop.plugin_id }}:{{ plugins.dshop.title }}:{{ plugins.dshop.images|length }}`, map[string]any{
		"plugins": "shadowed",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "dshop:Shop:2" {
		t.Fatalf("got %q", got)
	}
}

func TestEngine_NilContextRendersWithoutPlugins(t *testing.T) {
	engine := newEngine(t)
	if err := registry.RegisterClass(gallery.Class, "nilctx"); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := engine.RenderString(nil, `hello {{ name }}{% nilctx_gallery %}`, map[string]any{"name": "world"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestEngine_RenderTemplateFromFS(t *testing.T) {
	files := fstest.MapFS{
		"page.html": {Data: []byte(`<h1>{{ title }}</h1>{% fsshop_gallery %}`)},
	}
	engine := newEngine(t, pongo.WithFS(files), pongo.WithExtension("html"))
	rc := bound(t, map[string]plugin.Instance{
		"fsshop": gallery.New("Shop", 1, "x.png"),
	})

	out, written := testsupport.CaptureTemplateOutput(t, func(w io.Writer) (string, error) {
		return engine.Render(rc, "page", map[string]any{"title": "Hi"}, w)
	})
	want := `<h1>Hi</h1><ul class="gallery" data-plugin="fsshop" data-columns="1"><li><img src="x.png"></li></ul>`
	if out != want {
		t.Fatalf("unexpected output:\nwant %s\ngot  %s", want, out)
	}
	if written != out {
		t.Fatalf("writer received %q", written)
	}
}

func TestEngine_RenderTemplateMissing(t *testing.T) {
	engine := newEngine(t, pongo.WithFS(fstest.MapFS{}))
	rc := plugin.NewRenderContext()

	if _, err := engine.RenderTemplate(rc, "missing", nil); err == nil {
		t.Fatalf("expected error for missing template")
	}
	if rc.State() != plugin.StateFinalized {
		t.Fatalf("render context not finalized after load failure")
	}
}

func TestEngine_ContextIsSingleUse(t *testing.T) {
	engine := newEngine(t)
	rc := plugin.NewRenderContext()
	if _, err := engine.RenderString(rc, "first", nil); err != nil {
		t.Fatalf("first render: %v", err)
	}
	_, err := engine.RenderString(rc, "second", nil)
	var lifecycle *plugin.LifecycleError
	if !errors.As(err, &lifecycle) {
		t.Fatalf("expected LifecycleError reusing a finalized context, got %v", err)
	}
}

func TestEngine_GlobalsAndHelpers(t *testing.T) {
	engine := newEngine(t,
		pongo.WithGlobalData(map[string]any{"site": "plugkit"}),
		pongo.WithHelpers(map[string]any{
			"shout": func(s string) string { return strings.ToUpper(s) },
		}),
	)
	got, err := engine.RenderString(nil, `{{ site }} {{ shout("hi") }}`, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "plugkit HI" {
		t.Fatalf("got %q", got)
	}
}

func TestEngine_GalleryPageGolden(t *testing.T) {
	engine := newEngine(t, pongo.WithBaseDir(filepath.Join("testdata", "templates")))
	if err := registry.RegisterClass(gallery.Class, "pgblog"); err != nil {
		t.Fatalf("register pgblog: %v", err)
	}
	rc := bound(t, map[string]plugin.Instance{
		"pgshop": gallery.New("Shop", 2, "a.png", "b.png"),
	})

	got, err := engine.RenderTemplate(rc, "gallery_page", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got = testsupport.NormalizeMarkup(got)

	goldenPath := filepath.Join("testdata", "gallery_page.golden")
	if testsupport.WriteMaybeGolden(t, goldenPath, []byte(got+"\n")) {
		return
	}
	want := testsupport.NormalizeMarkup(testsupport.MustReadGoldenString(t, goldenPath))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("golden mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_CaptionParseErrors(t *testing.T) {
	engine := newEngine(t)
	if err := registry.RegisterClass(gallery.Class, "perr"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := engine.RenderString(plugin.NewRenderContext(), `{% perr_caption %}never closed`, nil)
	if err == nil {
		t.Fatalf("expected parse error for unclosed block tag")
	}
	if !strings.Contains(fmt.Sprint(err), "pongo: parse template string") {
		t.Fatalf("unexpected error: %v", err)
	}
}
