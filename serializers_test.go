package snapshot

import (
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-snapshot/ir"
)

type loudSerializer struct {
	inner ObjectSerializer
}

func (l loudSerializer) Serialize(m *Manager, value any, absolute bool) (ir.Statements, error) {
	stmts, err := l.inner.Serialize(m, value, absolute)
	return append(stmts, &ir.Comment{Text: "loud"}), err
}

func (l loudSerializer) Deserialize(m *Manager, name string, statements ir.Statements) (any, error) {
	return l.inner.Deserialize(m, name, statements)
}

type testBadge struct {
	Label string
}

type badgeSerializer struct{}

func (badgeSerializer) SerializeValue(_ *Manager, value any) (ir.Expression, error) {
	return ir.Lit("badge:" + value.(testBadge).Label), nil
}

func (testBadge) SnapshotSerializer(capability Capability) any {
	if capability == CapabilityValue {
		return badgeSerializer{}
	}
	return nil
}

func TestSerializerProvidersRunToFixpoint(t *testing.T) {
	calls := 0
	wrap := SerializerProviderFunc(func(_ *Manager, _ reflect.Type, capability Capability, current any) (any, bool) {
		calls++
		if capability != CapabilityObject {
			return nil, false
		}
		inner, ok := current.(componentSerializer)
		if !ok {
			return nil, false
		}
		return loudSerializer{inner: inner}, true
	})
	m := openManager(t, newTestService(t, WithSerializerProvider(wrap)), NewMapContainer())

	typ := reflect.TypeOf(&testButton{})
	s, err := m.Serializer(typ, CapabilityObject)
	if err != nil {
		t.Fatalf("serializer: %v", err)
	}
	if _, ok := s.(loudSerializer); !ok {
		t.Fatalf("provider should wrap the builtin choice, got %T", s)
	}
	if calls != 2 {
		t.Fatalf("expected one changing pass and one stable pass, got %d calls", calls)
	}
	if _, err := m.Serializer(typ, CapabilityObject); err != nil || calls != 2 {
		t.Fatalf("second lookup should be served from the session cache")
	}
}

func TestSerializerDeclaredByType(t *testing.T) {
	m := openManager(t, newTestService(t), NewMapContainer())
	expr, err := m.SerializeValue(testBadge{Label: "new"})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	lit, ok := expr.(*ir.Primitive)
	if !ok || lit.Value != "badge:new" {
		t.Fatalf("declared serializer not used, got %#v", expr)
	}
}

func TestSerializerMissing(t *testing.T) {
	m := openManager(t, newTestService(t), NewMapContainer())
	if _, err := m.Serializer(reflect.TypeOf(42), CapabilityObject); !errors.Is(err, ErrNoSerializer) {
		t.Fatalf("expected ErrNoSerializer, got %v", err)
	}
	if _, err := m.Serializer(reflect.TypeOf(""), CapabilityCollection); !errors.Is(err, ErrNoSerializer) {
		t.Fatalf("expected ErrNoSerializer for collection of string, got %v", err)
	}

	closed := newTestService(t).NewManager(NewMapContainer(), nil)
	if _, err := closed.Serializer(reflect.TypeOf(42), CapabilityValue); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestCapabilityString(t *testing.T) {
	if CapabilityResource.String() != "resource" || Capability(42).String() != "capability(42)" {
		t.Fatalf("unexpected capability names")
	}
}
