package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

const (
	kindPrimitive   = "primitive"
	kindThis        = "this"
	kindVariable    = "variable"
	kindField       = "field"
	kindProperty    = "property"
	kindCreate      = "create"
	kindArray       = "array"
	kindMap         = "map"
	kindInvoke      = "invoke"
	kindCast        = "cast"
	kindSnippet     = "snippet"
	kindResource    = "resource"
	kindDeclaration = "declare"
	kindAssignment  = "assign"
	kindExpression  = "expression"
	kindCall        = "call"
	kindAttach      = "attach"
	kindComment     = "comment"
)

// node is the JSON envelope shared by every statement and expression kind.
type node struct {
	Kind    string          `json:"kind"`
	Name    string          `json:"name,omitempty"`
	Type    string          `json:"type,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Text    string          `json:"text,omitempty"`
	Engine  string          `json:"engine,omitempty"`
	Method  string          `json:"method,omitempty"`
	Event   string          `json:"event,omitempty"`
	Handler string          `json:"handler,omitempty"`
	Rank    int             `json:"rank,omitempty"`
	Target  *node           `json:"target,omitempty"`
	Left    *node           `json:"left,omitempty"`
	Right   *node           `json:"right,omitempty"`
	Init    *node           `json:"init,omitempty"`
	Expr    *node           `json:"expr,omitempty"`
	Args    []*node         `json:"args,omitempty"`
	Items   []*node         `json:"items,omitempty"`
	Members []memberNode    `json:"members,omitempty"`
	Entries []entryNode     `json:"entries,omitempty"`
}

type memberNode struct {
	Name  string `json:"name"`
	Value *node  `json:"value"`
}

type entryNode struct {
	Key   *node `json:"key"`
	Value *node `json:"value"`
}

// Statements is a statement list with a JSON representation.
type Statements []Statement

// MarshalJSON implements json.Marshaler.
func (s Statements) MarshalJSON() ([]byte, error) {
	nodes := make([]*node, 0, len(s))
	for i, stmt := range s {
		n, err := encodeStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("ir: statement %d: %w", i, err)
		}
		nodes = append(nodes, n)
	}
	return json.Marshal(nodes)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Statements) UnmarshalJSON(data []byte) error {
	var nodes []*node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return err
	}
	out := make(Statements, 0, len(nodes))
	for i, n := range nodes {
		stmt, err := decodeStatement(n)
		if err != nil {
			return fmt.Errorf("ir: statement %d: %w", i, err)
		}
		out = append(out, stmt)
	}
	*s = out
	return nil
}

// Expressions is an expression list with a JSON representation.
type Expressions []Expression

// MarshalJSON implements json.Marshaler.
func (e Expressions) MarshalJSON() ([]byte, error) {
	nodes, err := encodeExpressions(e)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []*node{}
	}
	return json.Marshal(nodes)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Expressions) UnmarshalJSON(data []byte) error {
	var nodes []*node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return err
	}
	out, err := decodeExpressions(nodes)
	if err != nil {
		return err
	}
	*e = out
	return nil
}

type methodJSON struct {
	Name       string     `json:"name"`
	Statements Statements `json:"statements"`
}

// MarshalJSON implements json.Marshaler.
func (m Method) MarshalJSON() ([]byte, error) {
	return json.Marshal(methodJSON{Name: m.Name, Statements: Statements(m.Statements)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Method) UnmarshalJSON(data []byte) error {
	var raw methodJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Name = raw.Name
	m.Statements = []Statement(raw.Statements)
	return nil
}

// MarshalStatement encodes a single statement.
func MarshalStatement(stmt Statement) ([]byte, error) {
	n, err := encodeStatement(stmt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

// UnmarshalStatement decodes a single statement produced by MarshalStatement.
func UnmarshalStatement(data []byte) (Statement, error) {
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return decodeStatement(&n)
}

func encodeStatement(stmt Statement) (*node, error) {
	switch s := stmt.(type) {
	case *Declaration:
		init, err := encodeExpression(s.Init)
		if err != nil {
			return nil, err
		}
		return &node{Kind: kindDeclaration, Name: s.Name, Type: s.Type, Init: init}, nil
	case *Assignment:
		left, err := encodeExpression(s.Left)
		if err != nil {
			return nil, err
		}
		right, err := encodeExpression(s.Right)
		if err != nil {
			return nil, err
		}
		return &node{Kind: kindAssignment, Left: left, Right: right}, nil
	case *ExpressionStatement:
		expr, err := encodeExpression(s.Expr)
		if err != nil {
			return nil, err
		}
		return &node{Kind: kindExpression, Expr: expr}, nil
	case *Call:
		target, err := encodeExpression(s.Target)
		if err != nil {
			return nil, err
		}
		args, err := encodeExpressions(s.Args)
		if err != nil {
			return nil, err
		}
		return &node{Kind: kindCall, Target: target, Method: s.Method, Args: args}, nil
	case *AttachEvent:
		target, err := encodeExpression(s.Target)
		if err != nil {
			return nil, err
		}
		return &node{Kind: kindAttach, Target: target, Event: s.Event, Handler: s.Handler}, nil
	case *Comment:
		return &node{Kind: kindComment, Text: s.Text}, nil
	default:
		return nil, fmt.Errorf("unsupported statement %T", stmt)
	}
}

func decodeStatement(n *node) (Statement, error) {
	if n == nil {
		return nil, fmt.Errorf("missing statement")
	}
	switch n.Kind {
	case kindDeclaration:
		init, err := decodeExpression(n.Init)
		if err != nil {
			return nil, err
		}
		return &Declaration{Name: n.Name, Type: n.Type, Init: init}, nil
	case kindAssignment:
		left, err := decodeExpression(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpression(n.Right)
		if err != nil {
			return nil, err
		}
		return &Assignment{Left: left, Right: right}, nil
	case kindExpression:
		expr, err := decodeExpression(n.Expr)
		if err != nil {
			return nil, err
		}
		return &ExpressionStatement{Expr: expr}, nil
	case kindCall:
		target, err := decodeExpression(n.Target)
		if err != nil {
			return nil, err
		}
		args, err := decodeExpressions(n.Args)
		if err != nil {
			return nil, err
		}
		return &Call{Target: target, Method: n.Method, Args: args}, nil
	case kindAttach:
		target, err := decodeExpression(n.Target)
		if err != nil {
			return nil, err
		}
		return &AttachEvent{Target: target, Event: n.Event, Handler: n.Handler}, nil
	case kindComment:
		return &Comment{Text: n.Text}, nil
	default:
		return nil, fmt.Errorf("unknown statement kind %q", n.Kind)
	}
}

func encodeExpressions(exprs []Expression) ([]*node, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	out := make([]*node, 0, len(exprs))
	for _, expr := range exprs {
		n, err := encodeExpression(expr)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func decodeExpressions(nodes []*node) ([]Expression, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	out := make([]Expression, 0, len(nodes))
	for _, n := range nodes {
		expr, err := decodeExpression(n)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

func encodeExpression(expr Expression) (*node, error) {
	switch e := expr.(type) {
	case nil:
		return nil, nil
	case *Primitive:
		raw, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("primitive %v: %w", e.Value, err)
		}
		typ := e.Type
		if typ == "" {
			typ = KindName(e.Value)
		}
		return &node{Kind: kindPrimitive, Type: typ, Value: raw}, nil
	case *ThisRef:
		return &node{Kind: kindThis}, nil
	case *VariableRef:
		return &node{Kind: kindVariable, Name: e.Name}, nil
	case *FieldRef:
		target, err := encodeExpression(e.Target)
		if err != nil {
			return nil, err
		}
		return &node{Kind: kindField, Name: e.Name, Target: target}, nil
	case *PropertyRef:
		target, err := encodeExpression(e.Target)
		if err != nil {
			return nil, err
		}
		return &node{Kind: kindProperty, Name: e.Name, Target: target}, nil
	case *ObjectCreate:
		args, err := encodeExpressions(e.Args)
		if err != nil {
			return nil, err
		}
		members := make([]memberNode, 0, len(e.Members))
		for _, m := range e.Members {
			value, err := encodeExpression(m.Value)
			if err != nil {
				return nil, err
			}
			members = append(members, memberNode{Name: m.Name, Value: value})
		}
		return &node{Kind: kindCreate, Type: e.Type, Args: args, Members: members}, nil
	case *ArrayCreate:
		items, err := encodeExpressions(e.Items)
		if err != nil {
			return nil, err
		}
		return &node{Kind: kindArray, Type: e.ElementType, Rank: e.Rank, Items: items}, nil
	case *MapCreate:
		entries := make([]entryNode, 0, len(e.Entries))
		for _, entry := range e.Entries {
			key, err := encodeExpression(entry.Key)
			if err != nil {
				return nil, err
			}
			value, err := encodeExpression(entry.Value)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entryNode{Key: key, Value: value})
		}
		return &node{Kind: kindMap, Type: e.Type, Entries: entries}, nil
	case *Invoke:
		target, err := encodeExpression(e.Target)
		if err != nil {
			return nil, err
		}
		args, err := encodeExpressions(e.Args)
		if err != nil {
			return nil, err
		}
		return &node{Kind: kindInvoke, Target: target, Method: e.Method, Args: args}, nil
	case *Cast:
		inner, err := encodeExpression(e.Expr)
		if err != nil {
			return nil, err
		}
		return &node{Kind: kindCast, Type: e.Type, Expr: inner}, nil
	case *Snippet:
		return &node{Kind: kindSnippet, Engine: e.Engine, Text: e.Text}, nil
	case *ResourceRef:
		return &node{Kind: kindResource, Name: e.Key}, nil
	default:
		return nil, fmt.Errorf("unsupported expression %T", expr)
	}
}

func decodeExpression(n *node) (Expression, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case kindPrimitive:
		value, err := decodePrimitive(n.Type, n.Value)
		if err != nil {
			return nil, err
		}
		return &Primitive{Type: n.Type, Value: value}, nil
	case kindThis:
		return &ThisRef{}, nil
	case kindVariable:
		return &VariableRef{Name: n.Name}, nil
	case kindField, kindProperty:
		target, err := decodeExpression(n.Target)
		if err != nil {
			return nil, err
		}
		if n.Kind == kindField {
			return &FieldRef{Target: target, Name: n.Name}, nil
		}
		return &PropertyRef{Target: target, Name: n.Name}, nil
	case kindCreate:
		args, err := decodeExpressions(n.Args)
		if err != nil {
			return nil, err
		}
		var members []MemberInit
		for _, m := range n.Members {
			value, err := decodeExpression(m.Value)
			if err != nil {
				return nil, err
			}
			members = append(members, MemberInit{Name: m.Name, Value: value})
		}
		return &ObjectCreate{Type: n.Type, Args: args, Members: members}, nil
	case kindArray:
		items, err := decodeExpressions(n.Items)
		if err != nil {
			return nil, err
		}
		return &ArrayCreate{ElementType: n.Type, Rank: n.Rank, Items: items}, nil
	case kindMap:
		var entries []MapEntry
		for _, entry := range n.Entries {
			key, err := decodeExpression(entry.Key)
			if err != nil {
				return nil, err
			}
			value, err := decodeExpression(entry.Value)
			if err != nil {
				return nil, err
			}
			entries = append(entries, MapEntry{Key: key, Value: value})
		}
		return &MapCreate{Type: n.Type, Entries: entries}, nil
	case kindInvoke:
		target, err := decodeExpression(n.Target)
		if err != nil {
			return nil, err
		}
		args, err := decodeExpressions(n.Args)
		if err != nil {
			return nil, err
		}
		return &Invoke{Target: target, Method: n.Method, Args: args}, nil
	case kindCast:
		inner, err := decodeExpression(n.Expr)
		if err != nil {
			return nil, err
		}
		return &Cast{Type: n.Type, Expr: inner}, nil
	case kindSnippet:
		return &Snippet{Engine: n.Engine, Text: n.Text}, nil
	case kindResource:
		return &ResourceRef{Key: n.Name}, nil
	default:
		return nil, fmt.Errorf("unknown expression kind %q", n.Kind)
	}
}

// KindName returns the primitive kind name recorded for value.
func KindName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).Kind().String()
}

func decodePrimitive(kind string, raw json.RawMessage) (any, error) {
	if len(raw) == 0 || kind == "nil" || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch kind {
	case "string":
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case "bool":
		var b bool
		err := json.Unmarshal(raw, &b)
		return b, err
	case "int", "int8", "int16", "int32", "int64":
		v, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("primitive %s: %w", kind, err)
		}
		return reflect.ValueOf(v).Convert(primitiveKinds[kind]).Interface(), nil
	case "uint", "uint8", "uint16", "uint32", "uint64", "uintptr":
		v, err := strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("primitive %s: %w", kind, err)
		}
		return reflect.ValueOf(v).Convert(primitiveKinds[kind]).Interface(), nil
	case "float32", "float64":
		v, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("primitive %s: %w", kind, err)
		}
		return reflect.ValueOf(v).Convert(primitiveKinds[kind]).Interface(), nil
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

var primitiveKinds = map[string]reflect.Type{
	"int":     reflect.TypeOf(int(0)),
	"int8":    reflect.TypeOf(int8(0)),
	"int16":   reflect.TypeOf(int16(0)),
	"int32":   reflect.TypeOf(int32(0)),
	"int64":   reflect.TypeOf(int64(0)),
	"uint":    reflect.TypeOf(uint(0)),
	"uint8":   reflect.TypeOf(uint8(0)),
	"uint16":  reflect.TypeOf(uint16(0)),
	"uint32":  reflect.TypeOf(uint32(0)),
	"uint64":  reflect.TypeOf(uint64(0)),
	"uintptr": reflect.TypeOf(uintptr(0)),
	"float32": reflect.TypeOf(float32(0)),
	"float64": reflect.TypeOf(float64(0)),
}
