package snapshot

import "github.com/goliatone/go-snapshot/ir"

// Hint pins a statement to one end of its group.
type Hint int

const (
	HintNone Hint = iota
	HintFirst
	HintLast
)

func (h Hint) String() string {
	switch h {
	case HintFirst:
		return "first"
	case HintLast:
		return "last"
	default:
		return "none"
	}
}

// Assembler merges per-object statement groups into methods.
//
// Within a method every declaration is hoisted ahead of the other
// statements, keeping declaration order. The remaining statements keep
// their group order; a group's hinted-first statements move to the front of
// that group and hinted-last ones to the back.
type Assembler struct {
	methods []string
	groups  map[string]*methodGroups
	hints   map[ir.Statement]Hint
}

type methodGroups struct {
	order  []string
	byName map[string]ir.Statements
}

// NewAssembler constructs an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		groups: map[string]*methodGroups{},
		hints:  map[ir.Statement]Hint{},
	}
}

// Add appends stmts to the group for name in method.
func (a *Assembler) Add(method, name string, stmts ...ir.Statement) {
	g, ok := a.groups[method]
	if !ok {
		g = &methodGroups{byName: map[string]ir.Statements{}}
		a.groups[method] = g
		a.methods = append(a.methods, method)
	}
	if _, ok := g.byName[name]; !ok {
		g.order = append(g.order, name)
	}
	g.byName[name] = append(g.byName[name], stmts...)
}

// Hint records the ordering hint for stmt.
func (a *Assembler) Hint(stmt ir.Statement, hint Hint) {
	if hint == HintNone {
		delete(a.hints, stmt)
		return
	}
	a.hints[stmt] = hint
}

// Assemble returns one method per Add target, in first-seen order.
func (a *Assembler) Assemble() []ir.Method {
	out := make([]ir.Method, 0, len(a.methods))
	for _, method := range a.methods {
		g := a.groups[method]
		var decls, body []ir.Statement
		for _, name := range g.order {
			var first, middle, last []ir.Statement
			for _, stmt := range g.byName[name] {
				if isConstruction(stmt) {
					decls = append(decls, stmt)
					continue
				}
				switch a.hints[stmt] {
				case HintFirst:
					first = append(first, stmt)
				case HintLast:
					last = append(last, stmt)
				default:
					middle = append(middle, stmt)
				}
			}
			body = append(body, first...)
			body = append(body, middle...)
			body = append(body, last...)
		}
		out = append(out, ir.Method{Name: method, Statements: append(decls, body...)})
	}
	return out
}

// isConstruction reports declarations and this-field assignments from an
// ObjectCreate, the statements that bring an object into existence.
func isConstruction(stmt ir.Statement) bool {
	switch s := stmt.(type) {
	case *ir.Declaration:
		return true
	case *ir.Assignment:
		field, ok := s.Left.(*ir.FieldRef)
		if !ok {
			return false
		}
		if _, ok := field.Target.(*ir.ThisRef); !ok {
			return false
		}
		_, ok = s.Right.(*ir.ObjectCreate)
		return ok
	}
	return false
}
