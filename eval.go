package snapshot

import (
	"encoding"
	"fmt"
	"reflect"

	"github.com/goliatone/go-snapshot/internal/hydrate"
	"github.com/goliatone/go-snapshot/ir"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Evaluate produces the live value of expr. A reference to a name that is
// still being resolved evaluates to nil without error.
func (m *Manager) Evaluate(expr ir.Expression) (any, error) {
	switch e := expr.(type) {
	case nil:
		return nil, nil
	case *ir.Primitive:
		return e.Value, nil
	case *ir.ThisRef:
		return m.named(m.RootName())
	case *ir.VariableRef:
		return m.named(e.Name)
	case *ir.FieldRef:
		if _, ok := e.Target.(*ir.ThisRef); ok {
			return m.named(e.Name)
		}
		owner, err := m.Evaluate(e.Target)
		if err != nil || owner == nil {
			return nil, err
		}
		return m.readMember(owner, e.Name)
	case *ir.PropertyRef:
		owner, err := m.Evaluate(e.Target)
		if err != nil || owner == nil {
			return nil, err
		}
		return m.readMember(owner, e.Name)
	case *ir.ObjectCreate:
		return m.construct(e, "", false)
	case *ir.ArrayCreate:
		return m.evalArray(e)
	case *ir.MapCreate:
		return m.evalMap(e)
	case *ir.Invoke:
		target, err := m.Evaluate(e.Target)
		if err != nil {
			return nil, err
		}
		args, err := m.evalArgs(e.Args)
		if err != nil {
			return nil, err
		}
		return callMethod(target, e.Method, args)
	case *ir.Cast:
		typ, err := m.ResolveType(e.Type)
		if err != nil {
			return nil, err
		}
		value, err := m.Evaluate(e.Expr)
		if err != nil {
			return nil, err
		}
		return m.convert(value, typ, e.Type)
	case *ir.Snippet:
		return m.svc.EvaluateSnippet(e.Engine, e.Text, EvalContext{Name: m.RootName(), Bindings: m.bindings()})
	case *ir.ResourceRef:
		value, ok, err := m.Resources().GetObject(e.Key, false)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errorf(ErrUnresolvedName, e.Key, "resource not found in culture %s", m.Resources().Culture())
		}
		return value, nil
	default:
		return nil, errorf(ErrSerializationMismatch, "", "unsupported expression %T", expr)
	}
}

// Execute applies stmt to the live graph.
func (m *Manager) Execute(stmt ir.Statement) error {
	switch s := stmt.(type) {
	case nil, *ir.Comment:
		return nil
	case *ir.Declaration:
		return m.declare(s)
	case *ir.Assignment:
		return m.assign(s)
	case *ir.Call:
		return m.call(s)
	case *ir.ExpressionStatement:
		_, err := m.Evaluate(s.Expr)
		return err
	case *ir.AttachEvent:
		owner, err := m.Evaluate(s.Target)
		if err != nil {
			return err
		}
		if owner == nil {
			return errorf(ErrUnresolvedName, ir.ExpressionTarget(s.Target, m.RootName()), "event target is nil")
		}
		return m.writeMember(owner, s.Event, s.Handler)
	default:
		return errorf(ErrSerializationMismatch, "", "unsupported statement %T", stmt)
	}
}

func (m *Manager) named(name string) (any, error) {
	instance, pending := m.instance(name)
	if instance == nil && !pending {
		return nil, errorf(ErrUnresolvedName, name, "no instance")
	}
	return instance, nil
}

func (m *Manager) declare(s *ir.Declaration) error {
	addToContainer := !m.IsLocal(s.Name)
	switch init := s.Init.(type) {
	case nil:
		if s.Type == "" {
			return errorf(ErrTypeNotFound, s.Name, "declaration without type or initialiser")
		}
		typ, err := m.ResolveType(s.Type)
		if err != nil {
			return err
		}
		_, err = m.CreateInstance(typ, nil, s.Name, addToContainer)
		return err
	case *ir.ObjectCreate:
		_, err := m.construct(init, s.Name, addToContainer)
		return err
	default:
		value, err := m.Evaluate(init)
		if err != nil {
			return err
		}
		return m.bind(s.Name, value)
	}
}

// bind names value, replacing whatever name previously held.
func (m *Manager) bind(name string, value any) error {
	if value == nil {
		return nil
	}
	if existing, ok := m.lookup(name); ok && !sameInstance(existing, value) {
		m.unbind(name)
	}
	return m.SetName(value, name)
}

func (m *Manager) assign(s *ir.Assignment) error {
	switch left := s.Left.(type) {
	case *ir.VariableRef:
		if create, ok := s.Right.(*ir.ObjectCreate); ok {
			_, err := m.construct(create, left.Name, !m.IsLocal(left.Name))
			return err
		}
		value, err := m.Evaluate(s.Right)
		if err != nil {
			return err
		}
		return m.bind(left.Name, value)
	case *ir.FieldRef:
		if _, ok := left.Target.(*ir.ThisRef); ok {
			if create, ok := s.Right.(*ir.ObjectCreate); ok {
				_, err := m.construct(create, left.Name, true)
				return err
			}
			value, err := m.Evaluate(s.Right)
			if err != nil {
				return err
			}
			return m.bind(left.Name, value)
		}
		return m.assignMember(left.Target, left.Name, s.Right)
	case *ir.PropertyRef:
		return m.assignMember(left.Target, left.Name, s.Right)
	default:
		return errorf(ErrSerializationMismatch, "", "cannot assign to %T", s.Left)
	}
}

func (m *Manager) assignMember(target ir.Expression, name string, right ir.Expression) error {
	owner, err := m.Evaluate(target)
	if err != nil {
		return err
	}
	if owner == nil {
		return errorf(ErrUnresolvedName, ir.ExpressionTarget(target, m.RootName()), "assignment target is nil")
	}
	value, err := m.Evaluate(right)
	if err != nil {
		return err
	}
	return m.writeMember(owner, name, value)
}

func (m *Manager) call(s *ir.Call) error {
	if prop, ok := s.Target.(*ir.PropertyRef); ok && s.Method == "Add" {
		owner, err := m.Evaluate(prop.Target)
		if err != nil {
			return err
		}
		if owner == nil {
			return errorf(ErrUnresolvedName, ir.ExpressionTarget(prop.Target, m.RootName()), "collection owner is nil")
		}
		if member, ok := FindMember(m.Describer(), reflect.TypeOf(owner), prop.Name); ok && member.Type.Kind() == reflect.Slice {
			return m.appendMember(owner, member, s.Args)
		}
	}
	target, err := m.Evaluate(s.Target)
	if err != nil {
		return err
	}
	args, err := m.evalArgs(s.Args)
	if err != nil {
		return err
	}
	_, err = callMethod(target, s.Method, args)
	return err
}

func (m *Manager) appendMember(owner any, member Member, args []ir.Expression) error {
	current, err := member.Value(owner)
	if err != nil {
		return err
	}
	slice := reflect.ValueOf(current)
	if !slice.IsValid() {
		slice = reflect.Zero(member.Type)
	}
	for _, arg := range args {
		value, err := m.Evaluate(arg)
		if err != nil {
			return err
		}
		item, err := m.coerce(value, member.Type.Elem(), member.Name)
		if err != nil {
			return err
		}
		slice = reflect.Append(slice, reflect.ValueOf(item))
	}
	return member.SetValue(owner, slice.Interface())
}

func (m *Manager) readMember(owner any, name string) (any, error) {
	if member, ok := FindMember(m.Describer(), reflect.TypeOf(owner), name); ok {
		return member.Value(owner)
	}
	if nested, ok := owner.(NestedLookup); ok {
		if child, ok := nested.Nested(name); ok {
			return child, nil
		}
	}
	if field, ok := structField(owner, name); ok {
		return field.Interface(), nil
	}
	return nil, errorf(ErrSerializationMismatch, name, "%T has no member %s", owner, name)
}

func (m *Manager) writeMember(owner any, name string, value any) error {
	if member, ok := FindMember(m.Describer(), reflect.TypeOf(owner), name); ok {
		coerced, err := m.coerce(value, member.Type, name)
		if err != nil {
			return err
		}
		return member.SetValue(owner, coerced)
	}
	field, ok := structField(owner, name)
	if !ok || !field.CanSet() {
		return errorf(ErrSerializationMismatch, name, "%T has no settable member %s", owner, name)
	}
	coerced, err := m.coerce(value, field.Type(), name)
	if err != nil {
		return err
	}
	if coerced == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	field.Set(reflect.ValueOf(coerced))
	return nil
}

func structField(owner any, name string) (reflect.Value, bool) {
	rv := reflect.ValueOf(owner)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	field := rv.FieldByName(name)
	return field, field.IsValid()
}

// construct builds the value an ObjectCreate describes. Named pointer
// values go through CreateInstance so they are bound and recycled; plain
// struct values are populated through a temporary pointer.
func (m *Manager) construct(create *ir.ObjectCreate, name string, addToContainer bool) (any, error) {
	typ, err := m.ResolveType(create.Type)
	if err != nil {
		return nil, withName(err, name)
	}
	args, err := m.evalArgs(create.Args)
	if err != nil {
		return nil, withName(err, name)
	}

	var instance any
	if typ.Kind() == reflect.Struct || name == "" {
		instance, err = m.Types().New(typ, args...)
		if err == nil && !m.Types().HasConstructor(typ) {
			m.applyDeclaredDefaults(instance, name)
		}
	} else {
		instance, err = m.CreateInstance(typ, args, name, addToContainer)
	}
	if err != nil {
		return nil, withName(err, name)
	}

	for _, init := range create.Members {
		value, err := m.Evaluate(init.Value)
		if err != nil {
			return instance, withName(err, name)
		}
		if err := m.writeMember(instance, init.Name, value); err != nil {
			return instance, withName(err, name)
		}
	}

	rv := reflect.ValueOf(instance)
	if typ.Kind() != reflect.Pointer && rv.Kind() == reflect.Pointer && rv.Type().Elem() == typ {
		return rv.Elem().Interface(), nil
	}
	return instance, nil
}

func (m *Manager) evalArgs(exprs []ir.Expression) ([]any, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	out := make([]any, len(exprs))
	for i, expr := range exprs {
		value, err := m.Evaluate(expr)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = value
	}
	return out, nil
}

func (m *Manager) evalArray(e *ir.ArrayCreate) (any, error) {
	if e.Rank != 1 {
		return nil, errorf(ErrInvalidArrayRank, "", "rank %d", e.Rank)
	}
	elem, err := m.ResolveType(e.ElementType)
	if err != nil {
		return nil, err
	}
	out := reflect.MakeSlice(reflect.SliceOf(elem), 0, len(e.Items))
	for i, item := range e.Items {
		value, err := m.Evaluate(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		coerced, err := m.coerce(value, elem, e.ElementType)
		if err != nil {
			return nil, err
		}
		out = reflect.Append(out, valueOf(coerced, elem))
	}
	return out.Interface(), nil
}

func (m *Manager) evalMap(e *ir.MapCreate) (any, error) {
	typ, err := m.ResolveType(e.Type)
	if err != nil {
		return nil, err
	}
	if typ.Kind() != reflect.Map {
		return nil, errorf(ErrSerializationMismatch, "", "%s is not a map type", e.Type)
	}
	out := reflect.MakeMapWithSize(typ, len(e.Entries))
	for _, entry := range e.Entries {
		key, err := m.Evaluate(entry.Key)
		if err != nil {
			return nil, err
		}
		value, err := m.Evaluate(entry.Value)
		if err != nil {
			return nil, err
		}
		k, err := m.coerce(key, typ.Key(), e.Type)
		if err != nil {
			return nil, err
		}
		v, err := m.coerce(value, typ.Elem(), e.Type)
		if err != nil {
			return nil, err
		}
		out.SetMapIndex(valueOf(k, typ.Key()), valueOf(v, typ.Elem()))
	}
	return out.Interface(), nil
}

// convert honours TextUnmarshaler targets before falling back to coerce.
func (m *Manager) convert(value any, typ reflect.Type, key string) (any, error) {
	if text, ok := value.(string); ok {
		target := reflect.New(typ)
		if unmarshaler, ok := target.Interface().(encoding.TextUnmarshaler); ok {
			if err := unmarshaler.UnmarshalText([]byte(text)); err != nil {
				return nil, newError(ErrSerializationMismatch, key, err)
			}
			return target.Elem().Interface(), nil
		}
	}
	return m.coerce(value, typ, key)
}

func (m *Manager) coerce(value any, typ reflect.Type, key string) (any, error) {
	if value == nil {
		return nil, nil
	}
	if reflect.TypeOf(value).AssignableTo(typ) {
		return value, nil
	}
	ctx := hydrate.Context{Key: key, Culture: string(m.Resources().Culture())}
	rv, err := m.svc.decoder.Decode(ctx, value, typ)
	if err != nil {
		return nil, newError(ErrSerializationMismatch, key, err)
	}
	return rv.Interface(), nil
}

func valueOf(value any, typ reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(typ)
	}
	return reflect.ValueOf(value)
}

func (m *Manager) bindings() map[string]any {
	out := map[string]any{}
	if m.session == nil {
		return out
	}
	for name, instance := range m.session.names {
		out[name] = instance
	}
	return out
}

// callMethod invokes method on target. A trailing error result is returned
// as the call's error.
func callMethod(target any, method string, args []any) (any, error) {
	if target == nil {
		return nil, errorf(ErrUnresolvedName, method, "method called on nil")
	}
	fn := reflect.ValueOf(target).MethodByName(method)
	if !fn.IsValid() {
		return nil, errorf(ErrSerializationMismatch, method, "%T has no method %s", target, method)
	}
	ft := fn.Type()
	switch {
	case !ft.IsVariadic() && ft.NumIn() != len(args):
		return nil, errorf(ErrSerializationMismatch, method, "expects %d arguments, got %d", ft.NumIn(), len(args))
	case ft.IsVariadic() && len(args) < ft.NumIn()-1:
		return nil, errorf(ErrSerializationMismatch, method, "expects at least %d arguments, got %d", ft.NumIn()-1, len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var want reflect.Type
		if ft.IsVariadic() && i >= ft.NumIn()-1 {
			want = ft.In(ft.NumIn() - 1).Elem()
		} else {
			want = ft.In(i)
		}
		in[i] = valueOf(arg, want)
		if arg != nil && !in[i].Type().AssignableTo(want) {
			if !in[i].Type().ConvertibleTo(want) {
				return nil, errorf(ErrSerializationMismatch, method, "argument %d: %s is not %s", i, in[i].Type(), want)
			}
			in[i] = in[i].Convert(want)
		}
	}
	out := fn.Call(in)
	if n := len(out); n > 0 && ft.Out(n-1) == errorType {
		if err, _ := out[n-1].Interface().(error); err != nil {
			return nil, err
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}
