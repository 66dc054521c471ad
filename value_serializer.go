package snapshot

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/goliatone/go-snapshot/ir"
)

// errNotExpressible marks values with no statement form; callers move them
// into the resource store instead.
var errNotExpressible = errors.New("snapshot: value has no statement form")

// ExpressionMarshaler lets a value choose its own expression, typically a
// snippet evaluated at load time.
type ExpressionMarshaler interface {
	MarshalSnapshotExpression() (ir.Expression, error)
}

// SerializeValue returns the expression for value. Named values become
// references and every reference value is cached, so a value is only ever
// serialized once per session.
func (m *Manager) SerializeValue(value any) (ir.Expression, error) {
	if value == nil {
		return &ir.Primitive{Type: "nil"}, nil
	}
	cache := m.Expressions()
	if expr, preset, ok := cache.Get(value); ok {
		if preset {
			for _, name := range ir.References(expr, m.RootName()) {
				m.markReferenced(name)
			}
		}
		return expr, nil
	}
	if name, ok := m.GetName(value); ok {
		expr := m.Reference(name)
		cache.Set(value, expr, false)
		return expr, nil
	}
	if marshaler, ok := value.(ExpressionMarshaler); ok {
		expr, err := marshaler.MarshalSnapshotExpression()
		if err != nil {
			return nil, err
		}
		cache.Set(value, expr, false)
		return expr, nil
	}

	s, err := m.Serializer(reflect.TypeOf(value), CapabilityValue)
	if err != nil {
		return nil, err
	}
	vs, ok := s.(ValueSerializer)
	if !ok {
		return nil, errorf(ErrNoSerializer, "", "%T is not a value serializer", s)
	}
	expr, err := vs.SerializeValue(m, value)
	if err != nil {
		return nil, err
	}
	cache.Set(value, expr, false)
	return expr, nil
}

type valueSerializer struct{}

func (valueSerializer) SerializeValue(m *Manager, value any) (ir.Expression, error) {
	rv := reflect.ValueOf(value)
	typ := rv.Type()

	if marshaler, ok := value.(encoding.TextMarshaler); ok && typ.Kind() == reflect.Struct {
		text, err := marshaler.MarshalText()
		if err != nil {
			return nil, err
		}
		return &ir.Cast{Type: m.Types().NameOf(typ), Expr: ir.Lit(string(text))}, nil
	}

	switch typ.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return ir.Lit(value), nil

	case reflect.Slice, reflect.Array:
		if typ.Kind() == reflect.Array && typ.Elem().Kind() == reflect.Array {
			return nil, errorf(ErrInvalidArrayRank, "", "%s has more than one dimension", typ)
		}
		if typ.Kind() == reflect.Slice && rv.IsNil() {
			return &ir.Primitive{Type: "nil"}, nil
		}
		items := make([]ir.Expression, rv.Len())
		for i := range items {
			item, err := m.SerializeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			items[i] = item
		}
		m.addProvenance(typ)
		return &ir.ArrayCreate{ElementType: m.Types().NameOf(typ.Elem()), Rank: 1, Items: items}, nil

	case reflect.Map:
		if rv.IsNil() {
			return &ir.Primitive{Type: "nil"}, nil
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		entries := make([]ir.MapEntry, 0, len(keys))
		for _, key := range keys {
			k, err := m.SerializeValue(key.Interface())
			if err != nil {
				return nil, err
			}
			v, err := m.SerializeValue(rv.MapIndex(key).Interface())
			if err != nil {
				return nil, fmt.Errorf("key %v: %w", key.Interface(), err)
			}
			entries = append(entries, ir.MapEntry{Key: k, Value: v})
		}
		m.addProvenance(typ)
		return &ir.MapCreate{Type: m.Types().NameOf(typ), Entries: entries}, nil

	case reflect.Pointer:
		if rv.IsNil() {
			return &ir.Primitive{Type: "nil"}, nil
		}
		if typ.Elem().Kind() != reflect.Struct {
			return nil, errNotExpressible
		}
		if ctx := m.Statements(); ctx != nil {
			return declareLocal(m, ctx, value)
		}
		return objectCreate(m, typ, rv.Elem())

	case reflect.Struct:
		return objectCreate(m, typ, rv)

	default:
		return nil, errNotExpressible
	}
}

// objectCreate inlines a struct as a constructor with member initialisers.
func objectCreate(m *Manager, typ reflect.Type, rv reflect.Value) (ir.Expression, error) {
	m.addProvenance(typ)
	create := &ir.ObjectCreate{Type: m.Types().NameOf(typ)}
	owner := rv.Interface()
	for _, member := range m.Describer().Members(rv.Type()) {
		if member.Kind != PropertyMember || !member.ShouldSerialize(owner) {
			continue
		}
		value, err := member.Value(owner)
		if err != nil {
			return nil, err
		}
		expr, err := m.SerializeValue(value)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", member.Name, err)
		}
		create.Members = append(create.Members, ir.MemberInit{Name: member.Name, Value: expr})
	}
	return create, nil
}

// declareLocal gives an unnamed pointer its own local declaration so that
// every reference to it, however many, rebuilds one shared instance.
func declareLocal(m *Manager, ctx *StatementContext, value any) (ir.Expression, error) {
	typ := reflect.TypeOf(value)
	name := m.UniqueName(m.Types().NameOf(typ.Elem()))
	if err := m.SetName(value, name); err != nil {
		return nil, err
	}
	m.markLocal(name)
	ref := m.Reference(name)
	m.Expressions().Set(value, ref, false)

	serializer, err := m.objectSerializer(typ)
	if err != nil {
		return nil, err
	}
	stmts, err := serializer.Serialize(m, value, false)
	if err != nil {
		return nil, err
	}
	ctx.Add(stmts...)
	ctx.Locals = append(ctx.Locals, name)
	return ref, nil
}
