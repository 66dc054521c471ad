package snapshot

import (
	"errors"
	"reflect"
	"testing"
)

func TestTypeRegistryResolvesComposites(t *testing.T) {
	types := newTestService(t).Types()
	cases := map[string]reflect.Type{
		"*Button":          reflect.TypeOf(&testButton{}),
		"[]*Button":        reflect.TypeOf([]*testButton{}),
		"[3]Font":          reflect.TypeOf([3]testFont{}),
		"map[string][]int": reflect.TypeOf(map[string][]int{}),
		"map[string]*Font": reflect.TypeOf(map[string]*testFont{}),
	}
	for name, want := range cases {
		got, err := types.Resolve(name)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		if got != want {
			t.Fatalf("resolve %s = %s, want %s", name, got, want)
		}
		if back := types.NameOf(got); back != name {
			t.Fatalf("NameOf(%s) = %q, want %q", got, back, name)
		}
	}

	for _, bad := range []string{"", "Unknown", "[x]int", "map[string"} {
		if _, err := types.Resolve(bad); !errors.Is(err, ErrTypeNotFound) {
			t.Fatalf("resolve %q: expected ErrTypeNotFound, got %v", bad, err)
		}
	}
}

func TestTypeRegistryRejectsConflictingNames(t *testing.T) {
	types := NewTypeRegistry()
	if err := Register[testFont](types, "Font"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register[testFont](types, "Font"); err != nil {
		t.Fatalf("re-registering the same type is allowed: %v", err)
	}
	if err := Register[testButton](types, "Font"); err == nil {
		t.Fatalf("expected a conflict for a different type")
	}
}

func TestTypeRegistryProvenanceFallback(t *testing.T) {
	types := NewTypeRegistry()
	if err := types.Register("Typeface", reflect.TypeOf(testFont{})); err != nil {
		t.Fatalf("register: %v", err)
	}
	origin := reflect.TypeOf(testFont{}).PkgPath()

	if _, err := types.Resolve("*testFont"); err == nil {
		t.Fatalf("the short name is not registered here")
	}
	typ, err := types.ResolveWithProvenance("*testFont", []Provenance{{Type: "testFont", Origin: origin}})
	if err != nil {
		t.Fatalf("resolve with provenance: %v", err)
	}
	if typ != reflect.TypeOf(&testFont{}) {
		t.Fatalf("resolved %s", typ)
	}

	p, ok := types.ProvenanceOf(reflect.TypeOf([]*testFont{}))
	if !ok || p.Type != "Typeface" || p.Origin != origin {
		t.Fatalf("provenance = %+v", p)
	}
	if _, ok := types.ProvenanceOf(reflect.TypeOf(0)); ok {
		t.Fatalf("builtins have no provenance")
	}
}

func TestTypeRegistryNew(t *testing.T) {
	types := newTestService(t).Types()
	value, err := types.New(reflect.TypeOf(testButton{}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := value.(*testButton); !ok {
		t.Fatalf("structs are built as pointers, got %T", value)
	}
	if _, err := types.New(reflect.TypeOf(testButton{}), 1); err == nil {
		t.Fatalf("arguments need a registered constructor")
	}
	peer := &testLinked{}
	value, err = types.New(reflect.TypeOf(&testLinked{}), peer)
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}
	if value.(*testLinked).Peer != peer {
		t.Fatalf("constructor arguments not passed")
	}
	m, err := types.New(reflect.TypeOf(map[string]int{}))
	if err != nil || m.(map[string]int) == nil {
		t.Fatalf("maps should be allocated")
	}
}
