// Package ir defines the statement-oriented intermediate form that snapshots
// are written in. Statements and expressions are closed tagged unions: every
// concrete node is a pointer type implementing the unexported marker method,
// so a node's identity can be used as a map key (ordering hints, caches).
package ir

// Expression is a value-producing node.
type Expression interface {
	expressionNode()
}

// Statement is a single unit of the intermediate form.
type Statement interface {
	statementNode()
}

// Primitive is a literal value. Type records the Go kind name so the codec can
// restore the exact numeric type ("int", "float64", "string", ...).
type Primitive struct {
	Type  string
	Value any
}

// ThisRef refers to the root object of the snapshot.
type ThisRef struct{}

// VariableRef refers to a named object.
type VariableRef struct {
	Name string
}

// FieldRef addresses a named slot on Target. A FieldRef on ThisRef names an
// object owned by the root.
type FieldRef struct {
	Target Expression
	Name   string
}

// PropertyRef reads or writes a member of Target.
type PropertyRef struct {
	Target Expression
	Name   string
}

// MemberInit initialises one member inside an ObjectCreate.
type MemberInit struct {
	Name  string
	Value Expression
}

// ObjectCreate constructs a new instance of Type.
type ObjectCreate struct {
	Type    string
	Args    []Expression
	Members []MemberInit
}

// ArrayCreate builds a collection of ElementType. Rank is always 1 for
// collections the default serializers emit.
type ArrayCreate struct {
	ElementType string
	Rank        int
	Items       []Expression
}

// MapEntry is a single key/value pair of a MapCreate.
type MapEntry struct {
	Key   Expression
	Value Expression
}

// MapCreate builds a map of Type.
type MapCreate struct {
	Type    string
	Entries []MapEntry
}

// Invoke calls Method on Target.
type Invoke struct {
	Target Expression
	Method string
	Args   []Expression
}

// Cast converts Expr to Type.
type Cast struct {
	Type string
	Expr Expression
}

// Snippet is opaque source evaluated by a snippet evaluator at load time.
type Snippet struct {
	Engine string
	Text   string
}

// ResourceRef reads a value from the culture-layered resource store.
type ResourceRef struct {
	Key string
}

func (*Primitive) expressionNode()    {}
func (*ThisRef) expressionNode()      {}
func (*VariableRef) expressionNode()  {}
func (*FieldRef) expressionNode()     {}
func (*PropertyRef) expressionNode()  {}
func (*ObjectCreate) expressionNode() {}
func (*ArrayCreate) expressionNode()  {}
func (*MapCreate) expressionNode()    {}
func (*Invoke) expressionNode()       {}
func (*Cast) expressionNode()         {}
func (*Snippet) expressionNode()      {}
func (*ResourceRef) expressionNode()  {}

// Declaration introduces Name of Type, optionally initialised by Init.
type Declaration struct {
	Name string
	Type string
	Init Expression
}

// Assignment stores Right into Left.
type Assignment struct {
	Left  Expression
	Right Expression
}

// ExpressionStatement evaluates a bare expression for its side effects.
type ExpressionStatement struct {
	Expr Expression
}

// Call invokes Method on Target and discards the result.
type Call struct {
	Target Expression
	Method string
	Args   []Expression
}

// AttachEvent binds Handler to the Event member of Target.
type AttachEvent struct {
	Target  Expression
	Event   string
	Handler string
}

// Comment carries free text; it never affects the graph.
type Comment struct {
	Text string
}

func (*Declaration) statementNode()         {}
func (*Assignment) statementNode()          {}
func (*ExpressionStatement) statementNode() {}
func (*Call) statementNode()                {}
func (*AttachEvent) statementNode()         {}
func (*Comment) statementNode()             {}

// Field is a member slot declared on a TypeDeclaration.
type Field struct {
	Name     string
	Type     string
	Modifier string
}

// Method is a named, ordered statement body.
type Method struct {
	Name       string
	Statements []Statement
}

// TypeDeclaration is the type-level form of a whole root object.
type TypeDeclaration struct {
	Name    string
	Base    string
	Fields  []Field
	Methods []Method
}

// Method returns the method called name, if declared.
func (d *TypeDeclaration) Method(name string) (Method, bool) {
	if d == nil {
		return Method{}, false
	}
	for _, m := range d.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// Ref is shorthand for a VariableRef.
func Ref(name string) *VariableRef {
	return &VariableRef{Name: name}
}

// Prop is shorthand for a PropertyRef.
func Prop(target Expression, name string) *PropertyRef {
	return &PropertyRef{Target: target, Name: name}
}

// Lit is shorthand for a Primitive whose Type is derived from value.
func Lit(value any) *Primitive {
	return &Primitive{Type: KindName(value), Value: value}
}

// Assign is shorthand for an Assignment.
func Assign(left, right Expression) *Assignment {
	return &Assignment{Left: left, Right: right}
}
