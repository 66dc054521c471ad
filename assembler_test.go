package snapshot

import (
	"testing"

	"github.com/goliatone/go-snapshot/ir"
)

func TestAssemblerHoistsDeclarationsAndHonoursHints(t *testing.T) {
	declA := &ir.Declaration{Name: "a", Type: "*Button", Init: &ir.ObjectCreate{Type: "*Button"}}
	setA := ir.Assign(ir.Prop(ir.Ref("a"), "Text"), ir.Lit("A"))
	endA := &ir.Call{Target: ir.Ref("a"), Method: "EndInit"}
	beginA := &ir.Call{Target: ir.Ref("a"), Method: "BeginInit"}
	fieldB := ir.Assign(&ir.FieldRef{Target: &ir.ThisRef{}, Name: "b"}, &ir.ObjectCreate{Type: "*Font"})
	setB := ir.Assign(ir.Prop(&ir.FieldRef{Target: &ir.ThisRef{}, Name: "b"}, "Size"), ir.Lit(9.0))

	asm := NewAssembler()
	asm.Hint(beginA, HintFirst)
	asm.Hint(endA, HintLast)
	asm.Add("Init", "a", declA, endA, setA, beginA)
	asm.Add("Init", "b", fieldB, setB)
	asm.Add("Other", "c", &ir.Comment{Text: "c"})

	methods := asm.Assemble()
	if len(methods) != 2 || methods[0].Name != "Init" || methods[1].Name != "Other" {
		t.Fatalf("unexpected methods %+v", methods)
	}
	want := []ir.Statement{declA, fieldB, beginA, setA, endA, setB}
	got := methods[0].Statements
	if len(got) != len(want) {
		t.Fatalf("got %d statements, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statement %d = %s, want %s", i, ir.Describe(got[i]), ir.Describe(want[i]))
		}
	}
}

func TestAssemblerClearsHint(t *testing.T) {
	first := &ir.Call{Target: ir.Ref("a"), Method: "Reset"}
	other := ir.Assign(ir.Prop(ir.Ref("a"), "X"), ir.Lit(1))
	asm := NewAssembler()
	asm.Hint(first, HintFirst)
	asm.Hint(first, HintNone)
	asm.Add("Init", "a", other, first)

	got := asm.Assemble()[0].Statements
	if got[0] != other || got[1] != first {
		t.Fatalf("cleared hint should keep group order")
	}
}
