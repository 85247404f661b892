package plugin

import (
	"errors"
	"testing"

	"github.com/flosch/pongo2/v6"
	"github.com/google/go-cmp/cmp"
)

func TestDeriveTagVariants_PrefixesEveryTag(t *testing.T) {
	class := &Class{
		Name: "gallery",
		Tags: map[string]pongo2.TagParser{
			"gallery": staticTag("g"),
			"caption": staticTag("c"),
		},
	}

	variants, err := DeriveTagVariants(class, "shop")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	var names []string
	for name, variant := range variants {
		names = append(names, name)
		if variant.QualifiedName() != name {
			t.Fatalf("variant keyed %q reports %q", name, variant.QualifiedName())
		}
		if variant.Prefix != "shop" || variant.Class != class {
			t.Fatalf("unexpected variant: %+v", variant)
		}
	}
	if diff := cmp.Diff([]string{"shop_caption", "shop_gallery"}, sortedCopy(names)); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestDeriveTagVariants_DistinctPrefixesDistinctNames(t *testing.T) {
	class := galleryClass("g")
	p1, err := DeriveTagVariants(class, "p1")
	if err != nil {
		t.Fatalf("derive p1: %v", err)
	}
	p2, err := DeriveTagVariants(class, "p2")
	if err != nil {
		t.Fatalf("derive p2: %v", err)
	}
	if _, ok := p1["p1_gallery"]; !ok {
		t.Fatalf("missing p1_gallery: %v", p1)
	}
	if _, ok := p2["p2_gallery"]; !ok {
		t.Fatalf("missing p2_gallery: %v", p2)
	}
	if _, clash := p1["p2_gallery"]; clash {
		t.Fatalf("p1 derivation leaked p2 name")
	}
}

func TestDeriveTagVariants_Rejects(t *testing.T) {
	if _, err := DeriveTagVariants(nil, "shop"); !errors.Is(err, ErrNilClass) {
		t.Fatalf("expected ErrNilClass, got %v", err)
	}
	for _, prefix := range []string{"", "9shop", "shop-main", "a b"} {
		if _, err := DeriveTagVariants(galleryClass("g"), prefix); !errors.Is(err, ErrInvalidPrefix) {
			t.Fatalf("prefix %q: expected ErrInvalidPrefix, got %v", prefix, err)
		}
	}
	bad := &Class{Name: "bad", Tags: map[string]pongo2.TagParser{"no-dash": staticTag("x")}}
	if _, err := DeriveTagVariants(bad, "shop"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestTagPrefix(t *testing.T) {
	cases := []struct {
		val  string
		name string
		want string
	}{
		{val: "shop_gallery", name: "gallery", want: "shop"},
		{val: "blog_main_gallery", name: "gallery", want: "blog_main"},
		{val: "gallery", name: "gallery", want: ""},
	}
	for _, tc := range cases {
		if got := TagPrefix(&pongo2.Token{Val: tc.val}, tc.name); got != tc.want {
			t.Fatalf("TagPrefix(%q, %q) = %q, want %q", tc.val, tc.name, got, tc.want)
		}
	}
	if got := TagPrefix(nil, "gallery"); got != "" {
		t.Fatalf("nil token: got %q", got)
	}
}

func TestGatedTag_ScenarioEnabledAndEmpty(t *testing.T) {
	class := galleryClass("<gallery/>")
	DefaultRegistry().MustRegisterClass(class, "scnshop")

	rc := NewRenderContext()
	if err := BindPlugin(&stubInstance{class: class}, "scnshop", rc); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if diff := cmp.Diff([]string{"scnshop_gallery"}, rc.EnabledTags()); diff != "" {
		t.Fatalf("enabled set mismatch (-want +got):\n%s", diff)
	}
	if err := rc.BeginRender(); err != nil {
		t.Fatalf("begin render: %v", err)
	}
	got, err := renderWith("[{% scnshop_gallery %}]", rc)
	if err != nil {
		t.Fatalf("render enabled: %v", err)
	}
	if got != "[<gallery/>]" {
		t.Fatalf("enabled render: got %q", got)
	}

	empty := NewRenderContext()
	if err := empty.BeginRender(); err != nil {
		t.Fatalf("begin render: %v", err)
	}
	got, err = renderWith("[{% scnshop_gallery %}]", empty)
	if err != nil {
		t.Fatalf("render with empty set: %v", err)
	}
	if got != "[]" {
		t.Fatalf("expected no output with empty enabled set, got %q", got)
	}

	got, err = renderWith("[{% scnshop_gallery %}]", nil)
	if err != nil || got != "[]" {
		t.Fatalf("render without plugin context: got %q, err %v", got, err)
	}
}

func TestGatedTag_IsolationBetweenPrefixes(t *testing.T) {
	class := galleryClass("same")
	registry := DefaultRegistry()
	registry.MustRegisterClass(class, "isop1")
	registry.MustRegisterClass(class, "isop2")

	rc := NewRenderContext()
	if err := BindPlugin(&stubInstance{class: class}, "isop2", rc); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := rc.BeginRender(); err != nil {
		t.Fatalf("begin render: %v", err)
	}

	got, err := renderWith("a:{% isop1_gallery %} b:{% isop2_gallery %}", rc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "a: b:same" {
		t.Fatalf("isolation broken: got %q", got)
	}
}

func TestGatedTag_StrictPolicy(t *testing.T) {
	class := galleryClass("x")
	DefaultRegistry().MustRegisterClass(class, "strictshop")

	rc := NewRenderContext(WithDisabledTagPolicy(PolicyStrict))
	if err := rc.BeginRender(); err != nil {
		t.Fatalf("begin render: %v", err)
	}
	_, err := renderWith("{% strictshop_gallery %}", rc)
	if err == nil {
		t.Fatalf("expected strict policy to fail the render")
	}
	var perr *pongo2.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected pongo2 error, got %T: %v", err, err)
	}
	var disabled *DisabledTagRenderError
	if !errors.As(perr.OrigError, &disabled) {
		t.Fatalf("expected DisabledTagRenderError, got %v", perr.OrigError)
	}
	if disabled.Tag != "strictshop_gallery" {
		t.Fatalf("unexpected tag in error: %q", disabled.Tag)
	}
}

func TestGatedTag_NotEnabledOutsideRendering(t *testing.T) {
	class := galleryClass("x")
	rc := NewRenderContext()
	if err := BindPlugin(&stubInstance{class: class}, "shop", rc); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if rc.TagEnabled("shop_gallery") {
		t.Fatalf("tags must not report enabled before rendering starts")
	}
	if err := rc.BeginRender(); err != nil {
		t.Fatalf("begin render: %v", err)
	}
	if !rc.TagEnabled("shop_gallery") {
		t.Fatalf("expected tag enabled while rendering")
	}
	rc.Finalize()
	if rc.TagEnabled("shop_gallery") {
		t.Fatalf("finalized context must not enable tags")
	}
}
