package htmlkit

import (
	"strings"
	"testing"

	"github.com/goliatone/go-plugkit/pkg/plugin"
	"github.com/goliatone/go-plugkit/pkg/render/template/pongo"
)

func TestNew_PolicyFallback(t *testing.T) {
	cases := map[string]string{
		"":         PolicyUGC,
		"STRICT":   PolicyStrict,
		"ugc":      PolicyUGC,
		"whatever": PolicyUGC,
	}
	for in, want := range cases {
		if got := New(in).Policy; got != want {
			t.Fatalf("New(%q).Policy = %q, want %q", in, got, want)
		}
	}
}

func TestSettings_EnumAndDefault(t *testing.T) {
	values, err := Schema.Apply(nil)
	if err != nil {
		t.Fatalf("apply defaults: %v", err)
	}
	if values["policy"] != PolicyUGC {
		t.Fatalf("default policy = %v", values["policy"])
	}
	if _, err := Schema.Apply(map[string]any{"policy": "lenient"}); err == nil {
		t.Fatalf("expected enum violation")
	}
}

func TestSanitizeFilters(t *testing.T) {
	got, err := sanitize(plugin.Receiver{}, `<b>bold</b><script>alert(1)</script>`)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if got != plugin.SafeHTML("<b>bold</b>") {
		t.Fatalf("sanitize: got %#v", got)
	}

	got, err = stripHTML(plugin.Receiver{}, `<p>Hello <em>world</em></p>`)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if got != "Hello world" {
		t.Fatalf("strip: got %#v", got)
	}
}

func TestSafeTag_UsesInstancePolicy(t *testing.T) {
	registry := plugin.DefaultRegistry()
	engine, err := pongo.New()
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	cases := []struct {
		id     string
		policy string
		want   string
	}{
		{id: "kitugc", policy: PolicyUGC, want: "<b>hi</b>"},
		{id: "kitstrict", policy: PolicyStrict, want: "hi"},
	}
	for _, tc := range cases {
		t.Run(tc.policy, func(t *testing.T) {
			if err := registry.RegisterClass(Class, tc.id); err != nil {
				t.Fatalf("register: %v", err)
			}
			rc := plugin.NewRenderContext()
			if err := plugin.BindPlugin(New(tc.policy), tc.id, rc); err != nil {
				t.Fatalf("bind: %v", err)
			}
			source := "{% " + tc.id + "_safe %}{{ body|safe }}{% end" + tc.id + "_safe %}"
			got, err := engine.RenderString(rc, source, map[string]any{
				"body": `<b>hi</b><img src=x onerror="alert(1)">`,
			})
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if strings.Contains(got, "onerror") || !strings.HasPrefix(got, tc.want) {
				t.Fatalf("got %q, want prefix %q", got, tc.want)
			}
		})
	}
}

func TestSanitizeFilter_RendersUnescaped(t *testing.T) {
	if err := plugin.DefaultRegistry().RegisterClass(Class, "kitfilter"); err != nil {
		t.Fatalf("register: %v", err)
	}
	engine, err := pongo.New()
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	rc := plugin.NewRenderContext()
	if err := plugin.BindPlugin(New(""), "kitfilter", rc); err != nil {
		t.Fatalf("bind: %v", err)
	}
	got, err := engine.RenderString(rc, `{{ kitfilter_sanitize(body) }}|{{ kitfilter_strip_html(body) }}`, map[string]any{
		"body": "<i>x</i>",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "<i>x</i>|x" {
		t.Fatalf("got %q", got)
	}
}

func TestMarkdownFilter_UsesInstancePolicy(t *testing.T) {
	cases := []struct {
		id     string
		policy string
		want   plugin.SafeHTML
	}{
		{id: "mdugc", policy: PolicyUGC, want: "<p><strong>bold</strong> text</p>"},
		{id: "mdstrict", policy: PolicyStrict, want: "bold text"},
	}
	for _, tc := range cases {
		t.Run(tc.policy, func(t *testing.T) {
			rc := plugin.NewRenderContext()
			if err := plugin.BindPlugin(New(tc.policy), tc.id, rc); err != nil {
				t.Fatalf("bind: %v", err)
			}
			if err := rc.BeginRender(); err != nil {
				t.Fatalf("begin: %v", err)
			}
			defer rc.Finalize()

			got, err := rc.Filters()[tc.id+"_markdown"]("**bold** text<script>x</script>")
			if err != nil {
				t.Fatalf("markdown: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestSanitizeFilter_UsesInstancePolicy(t *testing.T) {
	cases := []struct {
		id     string
		policy string
		want   plugin.SafeHTML
	}{
		{id: "snugc", policy: PolicyUGC, want: "<b>bold</b>"},
		{id: "snstrict", policy: PolicyStrict, want: "bold"},
	}
	for _, tc := range cases {
		t.Run(tc.policy, func(t *testing.T) {
			rc := plugin.NewRenderContext()
			if err := plugin.BindPlugin(New(tc.policy), tc.id, rc); err != nil {
				t.Fatalf("bind: %v", err)
			}
			if err := rc.BeginRender(); err != nil {
				t.Fatalf("begin: %v", err)
			}
			defer rc.Finalize()

			got, err := rc.Filters()[tc.id+"_sanitize"]("<b>bold</b><script>x</script>")
			if err != nil {
				t.Fatalf("sanitize: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}
