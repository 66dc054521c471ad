package snapshot

import (
	"context"
	"reflect"
	"testing"

	"github.com/goliatone/go-snapshot/ir"
)

func deserialize(t *testing.T, svc *Service, payload *Payload, c Container, opts ...DeserializeOption) *Result {
	t.Helper()
	result, err := svc.Deserialize(context.Background(), payload, c, opts...)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	return result
}

func TestResolverBreaksConstructorCycles(t *testing.T) {
	payload := &Payload{
		Names: []string{"a", "b"},
		Entries: map[string]*PayloadEntry{
			"a": {Statements: ir.Statements{
				&ir.Declaration{Name: "a", Type: "*Linked", Init: &ir.ObjectCreate{Type: "*Linked", Args: []ir.Expression{ir.Ref("b")}}},
			}},
			"b": {Statements: ir.Statements{
				&ir.Declaration{Name: "b", Type: "*Linked", Init: &ir.ObjectCreate{Type: "*Linked"}},
				ir.Assign(ir.Prop(ir.Ref("b"), "Peer"), ir.Ref("a")),
			}},
		},
	}
	result := deserialize(t, newTestService(t), payload, NewMapContainer())
	if err := result.Err(); err != nil {
		t.Fatalf("cycle should resolve without errors: %v", err)
	}
	a, _ := result.Instances["a"].(*testLinked)
	b, _ := result.Instances["b"].(*testLinked)
	if a == nil || b == nil {
		t.Fatalf("both names should resolve: %v", result.Instances)
	}
	if a.Peer != b {
		t.Fatalf("a should be constructed with b")
	}
	if b.Peer != nil {
		t.Fatalf("b saw a while it was still being constructed")
	}
	if !reflect.DeepEqual(result.Names, []string{"b", "a"}) {
		t.Fatalf("b completes first, got %v", result.Names)
	}
}

func TestResolverDefersRoot(t *testing.T) {
	payload := &Payload{
		Root:  "form1",
		Names: []string{"form1", "button1"},
		Entries: map[string]*PayloadEntry{
			"form1":   {Statements: ir.Statements{&ir.Declaration{Name: "form1", Type: "*Form"}}},
			"button1": {Statements: ir.Statements{&ir.Declaration{Name: "button1", Type: "*Button"}}},
		},
	}
	result := deserialize(t, newTestService(t), payload, NewMapContainer())
	if err := result.Err(); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}
	if !reflect.DeepEqual(result.Names, []string{"button1", "form1"}) {
		t.Fatalf("root should be resolved last, got %v", result.Names)
	}
	if _, ok := result.Root.(*testForm); !ok {
		t.Fatalf("root = %T", result.Root)
	}
}

func TestResolverNestedNames(t *testing.T) {
	header := &testButton{}
	panel := &testPanel{Children: map[string]*testButton{"header": header}}
	c := NewMapContainer()
	mustAdd(t, c, "panel1", panel)

	payload := &Payload{
		Names: []string{"panel1.header"},
		Entries: map[string]*PayloadEntry{
			"panel1.header": {Statements: ir.Statements{
				ir.Assign(ir.Prop(ir.Ref("panel1.header"), "Text"), ir.Lit("Title")),
			}},
		},
	}
	result := deserialize(t, newTestService(t), payload, c)
	if err := result.Err(); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}
	if header.Text != "Title" {
		t.Fatalf("nested component not updated: %+v", header)
	}
	if result.Instances["panel1.header"] != header {
		t.Fatalf("nested component should be bound under its dotted name")
	}

	payload.Names = []string{"panel1.footer"}
	payload.Entries = map[string]*PayloadEntry{"panel1.footer": {}}
	result = deserialize(t, newTestService(t), payload, c)
	if !result.Errors.Has(ErrUnresolvedName) {
		t.Fatalf("missing nested component should be reported, got %v", result.Errors)
	}
}

func TestResolverRestoresNestedNames(t *testing.T) {
	header := &testButton{Text: "Title", OnClick: "submit", Width: 120}
	panel := &testPanel{Children: map[string]*testButton{"header": header}}
	c := NewMapContainer()
	mustAdd(t, c, "panel1", panel)

	payload := &Payload{
		Names: []string{"panel1.header"},
		Entries: map[string]*PayloadEntry{
			"panel1.header": {
				DefaultMembers: []string{"Width"},
				EventResets:    []string{"OnClick"},
			},
		},
	}
	result := deserialize(t, newTestService(t), payload, c)
	if err := result.Err(); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}
	if header.OnClick != "" {
		t.Fatalf("event on nested component should be reset, got %q", header.OnClick)
	}
	if header.Width != 75 {
		t.Fatalf("nested component width = %d, want default 75", header.Width)
	}
	if header.Text != "Title" {
		t.Fatalf("members outside the restore lists must be left alone: %+v", header)
	}
}

func TestResolverBareExpressionsNameInstances(t *testing.T) {
	payload := &Payload{
		Names: []string{"font9"},
		Entries: map[string]*PayloadEntry{
			"font9": {Expressions: ir.Expressions{
				&ir.ObjectCreate{Type: "*Font", Members: []ir.MemberInit{{Name: "Family", Value: ir.Lit("Mono")}}},
			}},
		},
	}
	result := deserialize(t, newTestService(t), payload, NewMapContainer())
	if err := result.Err(); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}
	font, ok := result.Instances["font9"].(*testFont)
	if !ok || font.Family != "Mono" {
		t.Fatalf("expression should produce font9, got %#v", result.Instances["font9"])
	}
}

func TestResolverReportsUnresolvedNames(t *testing.T) {
	payload := &Payload{
		Names:   []string{"ghost"},
		Entries: map[string]*PayloadEntry{"ghost": {Placeholder: true}},
	}
	result := deserialize(t, newTestService(t), payload, NewMapContainer())
	if !result.Errors.Has(ErrUnresolvedName) {
		t.Fatalf("expected ErrUnresolvedName, got %v", result.Errors)
	}
}

func TestResolverReportsUnknownTypesAndContinues(t *testing.T) {
	payload := &Payload{
		Names: []string{"x", "button1"},
		Entries: map[string]*PayloadEntry{
			"x":       {Statements: ir.Statements{&ir.Declaration{Name: "x", Type: "*Unknown"}}},
			"button1": {Statements: ir.Statements{&ir.Declaration{Name: "button1", Type: "*Button"}}},
		},
	}
	c := NewMapContainer()
	result := deserialize(t, newTestService(t), payload, c)
	if !result.Errors.Has(ErrTypeNotFound) {
		t.Fatalf("expected ErrTypeNotFound, got %v", result.Errors)
	}
	if _, ok := c.Component("button1"); !ok {
		t.Fatalf("one bad name must not stop the rest of the graph")
	}
}

func TestDeserializeRecyclesHostInstances(t *testing.T) {
	host := &testButton{Text: "host"}
	c := NewMapContainer()
	mustAdd(t, c, "button1", host)
	payload := &Payload{
		Names: []string{"button1"},
		Entries: map[string]*PayloadEntry{
			"button1": {Statements: ir.Statements{
				&ir.Declaration{Name: "button1", Type: "*Button", Init: &ir.ObjectCreate{Type: "*Button"}},
				ir.Assign(ir.Prop(ir.Ref("button1"), "Text"), ir.Lit("loaded")),
			}},
		},
	}
	result := deserialize(t, newTestService(t), payload, c, WithRecycleInstances(true))
	if err := result.Err(); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}
	if result.Instances["button1"] != host || host.Text != "loaded" {
		t.Fatalf("host instance should be recycled and updated")
	}
}
