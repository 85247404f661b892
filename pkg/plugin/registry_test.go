package plugin

import (
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func TestRegistry_ReRegistrationIsIdempotent(t *testing.T) {
	backend := &MemoryBackend{}
	registry := NewRegistry(WithBackend(backend))
	class := galleryClass("g")

	if err := registry.RegisterClass(class, "shop"); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := registry.RegisterClass(class, "shop"); err != nil {
		t.Fatalf("second registration should be harmless: %v", err)
	}
	if backend.Len() != 1 {
		t.Fatalf("expected one engine registration, got %d", backend.Len())
	}
	if _, ok := backend.Lookup("shop_gallery"); !ok {
		t.Fatalf("expected shop_gallery in backend")
	}
	if !registry.Has("shop_gallery") {
		t.Fatalf("registry should report shop_gallery")
	}
}

func TestRegistry_SamePrefixDifferentDefinitionIsDuplicate(t *testing.T) {
	registry := NewRegistry(WithBackend(&MemoryBackend{}))
	first := galleryClass("one")
	second := galleryClass("two")

	if err := registry.RegisterClass(first, "shop"); err != nil {
		t.Fatalf("register first: %v", err)
	}
	err := registry.RegisterClass(second, "shop")
	var dup *DuplicateRegistrationError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateRegistrationError, got %v", err)
	}
	if dup.Name != "shop_gallery" {
		t.Fatalf("unexpected duplicate name %q", dup.Name)
	}
}

func TestRegistry_SameTagAcrossClassesWithDistinctPrefixes(t *testing.T) {
	registry := NewRegistry(WithBackend(&MemoryBackend{}))
	if err := registry.RegisterClass(galleryClass("one"), "shop"); err != nil {
		t.Fatalf("register shop: %v", err)
	}
	if err := registry.RegisterClass(galleryClass("two"), "blog"); err != nil {
		t.Fatalf("register blog: %v", err)
	}
	if diff := cmp.Diff([]string{"blog_gallery", "shop_gallery"}, registry.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_EngineOwnedNameIsDuplicate(t *testing.T) {
	backend := &MemoryBackend{Reserved: map[string]struct{}{"shop_gallery": {}}}
	registry := NewRegistry(WithBackend(backend))

	err := registry.RegisterClass(galleryClass("g"), "shop")
	var dup *DuplicateRegistrationError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateRegistrationError, got %v", err)
	}
	if registry.Has("shop_gallery") {
		t.Fatalf("failed registration must not be recorded")
	}
}

func TestRegistry_MustRegisterClassPanics(t *testing.T) {
	registry := NewRegistry(WithBackend(&MemoryBackend{}))
	registry.MustRegisterClass(galleryClass("one"), "shop")

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate")
		}
	}()
	registry.MustRegisterClass(galleryClass("two"), "shop")
}

func TestCatalog(t *testing.T) {
	class := galleryClass("g")
	catalog, err := NewCatalog(class)
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if err := catalog.Register(class); err != nil {
		t.Fatalf("re-registering the same class: %v", err)
	}
	if err := catalog.Register(galleryClass("other")); err == nil {
		t.Fatalf("expected error for a different class with the same name")
	}
	got, err := catalog.Get("gallery")
	if err != nil || got != class {
		t.Fatalf("get: %v (%v)", got, err)
	}
	if _, err := catalog.Get("missing"); err == nil {
		t.Fatalf("expected error for unknown class")
	}
	if diff := cmp.Diff([]string{"gallery"}, catalog.List()); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultRegistry_SharedAcrossCallers(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Fatalf("default registry must be a single instance")
	}
	class := galleryClass("shared")
	if err := DefaultRegistry().RegisterClass(class, "sharedshop"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := DefaultRegistry().RegisterClass(class, "sharedshop"); err != nil {
		t.Fatalf("re-registering through the default registry: %v", err)
	}
	err := NewRegistry().RegisterClass(class, "sharedshop")
	var dup *DuplicateRegistrationError
	if !errors.As(err, &dup) {
		t.Fatalf("a separate registry cannot re-claim a pongo2 tag, got %v", err)
	}
}
