package snapshot

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-snapshot/ir"
)

// Capability selects which serializer variant is requested for a type.
type Capability int

const (
	// CapabilityObject serializes a named object as a whole.
	CapabilityObject Capability = iota
	// CapabilityMember serializes a single member of an object.
	CapabilityMember
	// CapabilityCollection serializes slice members against a base instance.
	CapabilityCollection
	// CapabilityResource moves values into the resource store.
	CapabilityResource
	// CapabilityValue turns an unnamed value into an expression.
	CapabilityValue
)

func (c Capability) String() string {
	switch c {
	case CapabilityObject:
		return "object"
	case CapabilityMember:
		return "member"
	case CapabilityCollection:
		return "collection"
	case CapabilityResource:
		return "resource"
	case CapabilityValue:
		return "value"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// ObjectSerializer converts a named object into statements and back.
type ObjectSerializer interface {
	Serialize(m *Manager, value any, absolute bool) (ir.Statements, error)
	Deserialize(m *Manager, name string, statements ir.Statements) (any, error)
}

// MemberSerializer emits the statements for one member of owner.
type MemberSerializer interface {
	SerializeMember(m *Manager, owner any, member Member, absolute bool) (ir.Statements, error)
}

// CollectionSerializer emits the statements that turn base into current on
// the member reached through target.
type CollectionSerializer interface {
	SerializeCollection(m *Manager, target ir.Expression, member Member, base, current any) (ir.Statements, error)
}

// ResourceSerializer stores value in the resource store and returns the
// expression that reads it back.
type ResourceSerializer interface {
	SerializeResource(m *Manager, key string, value any, ensureInvariant bool) (ir.Expression, error)
}

// ValueSerializer turns an unnamed value into an expression.
type ValueSerializer interface {
	SerializeValue(m *Manager, value any) (ir.Expression, error)
}

// SerializerDeclarer lets a type name its own serializers. It is checked on a
// new pointer to the type.
type SerializerDeclarer interface {
	SnapshotSerializer(capability Capability) any
}

// SerializerProvider may replace the serializer chosen so far. It returns
// false to keep current.
type SerializerProvider interface {
	Serializer(m *Manager, typ reflect.Type, capability Capability, current any) (any, bool)
}

// SerializerProviderFunc adapts a function to SerializerProvider.
type SerializerProviderFunc func(m *Manager, typ reflect.Type, capability Capability, current any) (any, bool)

// Serializer implements SerializerProvider.
func (f SerializerProviderFunc) Serializer(m *Manager, typ reflect.Type, capability Capability, current any) (any, bool) {
	if f == nil {
		return nil, false
	}
	return f(m, typ, capability, current)
}

// Serializer resolves the serializer for (typ, capability): the session
// cache, then the type's own declaration, then the provider chain until no
// provider changes the choice.
func (m *Manager) Serializer(typ reflect.Type, capability Capability) (any, error) {
	if m.session == nil {
		return nil, ErrNoSession
	}
	key := serializerKey{typ: typ, capability: capability}
	if cached, ok := m.session.serializers[key]; ok {
		return cached, nil
	}

	current := declaredSerializer(typ, capability)
	providers := append([]SerializerProvider{builtinProvider{}}, m.svc.cfg.providers...)
	for pass := 0; pass < len(providers); pass++ {
		changed := false
		for _, provider := range providers {
			if next, ok := provider.Serializer(m, typ, capability, current); ok {
				current = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	if current == nil {
		return nil, errorf(ErrNoSerializer, "", "%s serializer for %s", capability, typeLabel(typ))
	}
	m.session.serializers[key] = current
	return current, nil
}

func declaredSerializer(typ reflect.Type, capability Capability) any {
	if typ == nil {
		return nil
	}
	base := typ
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if declarer, ok := reflect.New(base).Interface().(SerializerDeclarer); ok {
		return declarer.SnapshotSerializer(capability)
	}
	return nil
}

func typeLabel(typ reflect.Type) string {
	if typ == nil {
		return "<nil>"
	}
	return typ.String()
}

func (m *Manager) objectSerializer(typ reflect.Type) (ObjectSerializer, error) {
	s, err := m.Serializer(typ, CapabilityObject)
	if err != nil {
		return nil, err
	}
	out, ok := s.(ObjectSerializer)
	if !ok {
		return nil, errorf(ErrNoSerializer, "", "%T is not an object serializer", s)
	}
	return out, nil
}

func (m *Manager) memberSerializer(typ reflect.Type) (MemberSerializer, error) {
	s, err := m.Serializer(typ, CapabilityMember)
	if err != nil {
		return nil, err
	}
	out, ok := s.(MemberSerializer)
	if !ok {
		return nil, errorf(ErrNoSerializer, "", "%T is not a member serializer", s)
	}
	return out, nil
}

func (m *Manager) collectionSerializer(typ reflect.Type) (CollectionSerializer, error) {
	s, err := m.Serializer(typ, CapabilityCollection)
	if err != nil {
		return nil, err
	}
	out, ok := s.(CollectionSerializer)
	if !ok {
		return nil, errorf(ErrNoSerializer, "", "%T is not a collection serializer", s)
	}
	return out, nil
}

func (m *Manager) resourceSerializer(typ reflect.Type) (ResourceSerializer, error) {
	s, err := m.Serializer(typ, CapabilityResource)
	if err != nil {
		return nil, err
	}
	out, ok := s.(ResourceSerializer)
	if !ok {
		return nil, errorf(ErrNoSerializer, "", "%T is not a resource serializer", s)
	}
	return out, nil
}

// builtinProvider fills in the default serializers when nothing else has
// been chosen.
type builtinProvider struct{}

func (builtinProvider) Serializer(_ *Manager, typ reflect.Type, capability Capability, current any) (any, bool) {
	if current != nil {
		return nil, false
	}
	switch capability {
	case CapabilityObject:
		if isComponentType(typ) {
			return componentSerializer{}, true
		}
	case CapabilityMember:
		return propertySerializer{}, true
	case CapabilityCollection:
		if typ != nil && typ.Kind() == reflect.Slice {
			return collectionSerializer{}, true
		}
	case CapabilityResource:
		return resourceSerializer{}, true
	case CapabilityValue:
		return valueSerializer{}, true
	}
	return nil, false
}

// isComponentType reports whether typ can be constructed and populated
// through member assignments: a pointer to a struct.
func isComponentType(typ reflect.Type) bool {
	return typ != nil && typ.Kind() == reflect.Pointer && typ.Elem().Kind() == reflect.Struct
}
