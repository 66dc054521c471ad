package ir

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestTargetDerivation(t *testing.T) {
	cases := []struct {
		name string
		stmt Statement
		want string
	}{
		{"declaration", &Declaration{Name: "button1", Type: "Button"}, "button1"},
		{"property on variable", Assign(Prop(Ref("button1"), "Text"), Lit("OK")), "button1"},
		{"nested property", Assign(Prop(Prop(Ref("panel1"), "Font"), "Size"), Lit(12)), "panel1"},
		{"field on this", Assign(&FieldRef{Target: &ThisRef{}, Name: "label1"}, Ref("x")), "label1"},
		{"property on this", Assign(Prop(&ThisRef{}, "Title"), Lit("Main")), "form"},
		{"call", &Call{Target: Prop(Ref("list1"), "Items"), Method: "Add", Args: []Expression{Lit("a")}}, "list1"},
		{"invoke statement", &ExpressionStatement{Expr: &Invoke{Target: Ref("grid"), Method: "Refresh"}}, "grid"},
		{"bare expression", &ExpressionStatement{Expr: &ObjectCreate{Type: "Timer"}}, ""},
		{"attach", &AttachEvent{Target: Ref("button1"), Event: "Click", Handler: "onClick"}, "button1"},
		{"comment", &Comment{Text: "generated"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Target(tc.stmt, "form"); got != tc.want {
				t.Fatalf("Target() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReferencesWalksNestedExpressions(t *testing.T) {
	expr := &ObjectCreate{
		Type: "Binding",
		Args: []Expression{Ref("source"), &ThisRef{}},
		Members: []MemberInit{
			{Name: "Target", Value: Prop(Ref("label1"), "Text")},
			{Name: "Again", Value: Ref("source")},
		},
	}
	got := References(expr, "form")
	want := []string{"source", "form", "label1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("References() = %v, want %v", got, want)
	}
}

func TestStatementsJSONPreservesPrimitiveKinds(t *testing.T) {
	stmts := Statements{
		&Declaration{Name: "b", Type: "Button", Init: &ObjectCreate{Type: "Button"}},
		Assign(Prop(Ref("b"), "Width"), Lit(int32(42))),
		Assign(Prop(Ref("b"), "Ratio"), Lit(0.5)),
		Assign(Prop(Ref("b"), "Tags"), &ArrayCreate{ElementType: "string", Rank: 1, Items: []Expression{Lit("x")}}),
		&Call{Target: Prop(Ref("b"), "Items"), Method: "Add", Args: []Expression{Lit(uint8(7))}},
		&AttachEvent{Target: Ref("b"), Event: "Click", Handler: "onClick"},
		&ExpressionStatement{Expr: &Snippet{Engine: "expr", Text: "1 + 2"}},
		Assign(Prop(Ref("b"), "Caption"), &ResourceRef{Key: "b.Caption"}),
		&Comment{Text: "end"},
	}

	data, err := json.Marshal(stmts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Statements
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != len(stmts) {
		t.Fatalf("expected %d statements, got %d", len(stmts), len(decoded))
	}

	width := decoded[1].(*Assignment).Right.(*Primitive)
	if _, ok := width.Value.(int32); !ok {
		t.Fatalf("expected int32 primitive, got %T", width.Value)
	}
	item := decoded[4].(*Call).Args[0].(*Primitive)
	if item.Value != uint8(7) {
		t.Fatalf("expected uint8(7), got %#v", item.Value)
	}
	if got := Describe(decoded[5]); got != "b.Click += onClick" {
		t.Fatalf("unexpected attach description %q", got)
	}
	if !reflect.DeepEqual(stmts, decoded) {
		t.Fatalf("round trip mismatch\nwant: %s\n got: %s", describeAll(stmts), describeAll(decoded))
	}
}

func TestUnmarshalStatementRejectsUnknownKind(t *testing.T) {
	if _, err := UnmarshalStatement([]byte(`{"kind":"goto"}`)); err == nil {
		t.Fatalf("expected error for unknown statement kind")
	}
}

func describeAll(stmts Statements) []string {
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = Describe(s)
	}
	return out
}
