package ir

import (
	"fmt"
	"strings"
)

// Target returns the identifier a statement affects. Statements with no
// left-hand object (bare expressions, comments) return "". root is the name
// ThisRef resolves to.
func Target(stmt Statement, root string) string {
	switch s := stmt.(type) {
	case *Declaration:
		return s.Name
	case *Assignment:
		return ExpressionTarget(s.Left, root)
	case *Call:
		return ExpressionTarget(s.Target, root)
	case *AttachEvent:
		return ExpressionTarget(s.Target, root)
	case *ExpressionStatement:
		if inv, ok := s.Expr.(*Invoke); ok {
			return ExpressionTarget(inv.Target, root)
		}
		return ""
	default:
		return ""
	}
}

// ExpressionTarget walks member accesses down to the object they start from.
func ExpressionTarget(expr Expression, root string) string {
	switch e := expr.(type) {
	case *VariableRef:
		return e.Name
	case *ThisRef:
		return root
	case *FieldRef:
		if _, ok := e.Target.(*ThisRef); ok {
			return e.Name
		}
		return ExpressionTarget(e.Target, root)
	case *PropertyRef:
		return ExpressionTarget(e.Target, root)
	case *Invoke:
		return ExpressionTarget(e.Target, root)
	case *Cast:
		return ExpressionTarget(e.Expr, root)
	default:
		return ""
	}
}

// References returns the object names an expression reads, in encounter order.
func References(expr Expression, root string) []string {
	var out []string
	seen := map[string]struct{}{}
	var walk func(Expression)
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	walk = func(e Expression) {
		switch n := e.(type) {
		case *VariableRef:
			add(n.Name)
		case *ThisRef:
			add(root)
		case *FieldRef:
			if _, ok := n.Target.(*ThisRef); ok {
				add(n.Name)
				return
			}
			walk(n.Target)
		case *PropertyRef:
			walk(n.Target)
		case *ObjectCreate:
			for _, arg := range n.Args {
				walk(arg)
			}
			for _, m := range n.Members {
				walk(m.Value)
			}
		case *ArrayCreate:
			for _, item := range n.Items {
				walk(item)
			}
		case *MapCreate:
			for _, entry := range n.Entries {
				walk(entry.Key)
				walk(entry.Value)
			}
		case *Invoke:
			walk(n.Target)
			for _, arg := range n.Args {
				walk(arg)
			}
		case *Cast:
			walk(n.Expr)
		}
	}
	walk(expr)
	return out
}

// Describe renders a compact, single-line form of stmt for logs and the CLI.
func Describe(stmt Statement) string {
	switch s := stmt.(type) {
	case *Declaration:
		if s.Init == nil {
			return fmt.Sprintf("var %s %s", s.Name, s.Type)
		}
		return fmt.Sprintf("var %s %s = %s", s.Name, s.Type, DescribeExpression(s.Init))
	case *Assignment:
		return fmt.Sprintf("%s = %s", DescribeExpression(s.Left), DescribeExpression(s.Right))
	case *Call:
		return fmt.Sprintf("%s.%s(%s)", DescribeExpression(s.Target), s.Method, describeArgs(s.Args))
	case *AttachEvent:
		return fmt.Sprintf("%s.%s += %s", DescribeExpression(s.Target), s.Event, s.Handler)
	case *ExpressionStatement:
		return DescribeExpression(s.Expr)
	case *Comment:
		return "// " + s.Text
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("<%T>", stmt)
	}
}

// DescribeExpression renders expr in the same compact form as Describe.
func DescribeExpression(expr Expression) string {
	switch e := expr.(type) {
	case *Primitive:
		if s, ok := e.Value.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprint(e.Value)
	case *ThisRef:
		return "this"
	case *VariableRef:
		return e.Name
	case *FieldRef:
		return DescribeExpression(e.Target) + "." + e.Name
	case *PropertyRef:
		return DescribeExpression(e.Target) + "." + e.Name
	case *ObjectCreate:
		parts := make([]string, 0, len(e.Members))
		for _, m := range e.Members {
			parts = append(parts, m.Name+": "+DescribeExpression(m.Value))
		}
		if len(e.Args) > 0 {
			return fmt.Sprintf("new %s(%s){%s}", e.Type, describeArgs(e.Args), strings.Join(parts, ", "))
		}
		return fmt.Sprintf("%s{%s}", e.Type, strings.Join(parts, ", "))
	case *ArrayCreate:
		return fmt.Sprintf("[]%s{%s}", e.ElementType, describeArgs(e.Items))
	case *MapCreate:
		parts := make([]string, 0, len(e.Entries))
		for _, entry := range e.Entries {
			parts = append(parts, DescribeExpression(entry.Key)+": "+DescribeExpression(entry.Value))
		}
		return fmt.Sprintf("%s{%s}", e.Type, strings.Join(parts, ", "))
	case *Invoke:
		return fmt.Sprintf("%s.%s(%s)", DescribeExpression(e.Target), e.Method, describeArgs(e.Args))
	case *Cast:
		return fmt.Sprintf("%s(%s)", e.Type, DescribeExpression(e.Expr))
	case *Snippet:
		return fmt.Sprintf("`%s`", e.Text)
	case *ResourceRef:
		return fmt.Sprintf("resource(%q)", e.Key)
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("<%T>", expr)
	}
}

func describeArgs(args []Expression) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = DescribeExpression(arg)
	}
	return strings.Join(parts, ", ")
}
