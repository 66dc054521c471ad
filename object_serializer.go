package snapshot

import (
	"errors"
	"reflect"

	"github.com/goliatone/go-snapshot/ir"
)

// Constructed is implemented by components whose construction needs
// arguments. The values are serialized as ObjectCreate arguments.
type Constructed interface {
	SnapshotConstructorArgs() []any
}

// Initializer brackets member assignment. BeginInit is emitted first and
// EndInit last in the component's statement group.
type Initializer interface {
	BeginInit()
	EndInit()
}

// componentSerializer handles named pointers to structs: a construction
// statement followed by one group of statements per member.
type componentSerializer struct{}

func (componentSerializer) Serialize(m *Manager, value any, absolute bool) (ir.Statements, error) {
	name, ok := m.GetName(value)
	if !ok {
		return nil, errorf(ErrUnresolvedName, "", "%T has no name in this session", value)
	}
	typ := reflect.TypeOf(value)
	m.addProvenance(typ)

	ctx := &StatementContext{Owner: name}
	m.PushContext(ctx)
	defer m.PopContext(ctx)

	self := m.Reference(name)
	if root := m.Root(); root == nil || root.Name != name {
		create := &ir.ObjectCreate{Type: m.Types().NameOf(typ)}
		if c, ok := value.(Constructed); ok {
			for _, arg := range c.SnapshotConstructorArgs() {
				expr, err := m.SerializeValue(arg)
				if err != nil {
					return nil, newError(ErrSerializationMismatch, name, err)
				}
				create.Args = append(create.Args, expr)
			}
		}
		if _, field := self.(*ir.FieldRef); field {
			ctx.Add(ir.Assign(self, create))
		} else {
			ctx.Add(&ir.Declaration{Name: name, Type: create.Type, Init: create})
		}
	}

	_, initializer := value.(Initializer)
	if initializer {
		begin := &ir.Call{Target: self, Method: "BeginInit"}
		m.SetHint(begin, HintFirst)
		ctx.Add(begin)
	}

	for _, member := range m.Describer().Members(typ) {
		serializer, err := m.memberSerializer(member.Type)
		if err != nil {
			m.ReportError(newError(ErrNoSerializer, name+"."+member.Name, err))
			continue
		}
		stmts, err := serializer.SerializeMember(m, value, member, absolute)
		if err != nil {
			m.ReportError(newError(ErrSerializationMismatch, name+"."+member.Name, err))
			continue
		}
		ctx.Add(stmts...)
	}

	if initializer {
		end := &ir.Call{Target: self, Method: "EndInit"}
		m.SetHint(end, HintLast)
		ctx.Add(end)
	}
	return ctx.Statements, nil
}

func (componentSerializer) Deserialize(m *Manager, name string, statements ir.Statements) (any, error) {
	var instance any
	rest := make(ir.Statements, 0, len(statements))
	for _, stmt := range statements {
		if instance == nil {
			created, ok, err := createFrom(m, stmt, name)
			if err != nil {
				return nil, err
			}
			if ok {
				instance = created
				continue
			}
		}
		rest = append(rest, stmt)
	}
	if instance == nil {
		existing, ok := m.lookup(name)
		if !ok {
			return nil, errorf(ErrUnresolvedName, name, "no construction statement and no existing instance")
		}
		instance = existing
	}

	for _, stmt := range rest {
		if err := m.Execute(stmt); err != nil {
			m.ReportError(withName(err, name))
		}
	}
	return instance, nil
}

// createFrom builds the instance when stmt is the construction statement
// for name: a typed declaration or a field assignment from ObjectCreate.
func createFrom(m *Manager, stmt ir.Statement, name string) (any, bool, error) {
	addToContainer := !m.IsLocal(name)
	switch s := stmt.(type) {
	case *ir.Declaration:
		if s.Name != name {
			return nil, false, nil
		}
		if create, ok := s.Init.(*ir.ObjectCreate); ok {
			instance, err := m.construct(create, name, addToContainer)
			return instance, err == nil, err
		}
		if s.Init == nil && s.Type != "" {
			typ, err := m.ResolveType(s.Type)
			if err != nil {
				return nil, false, err
			}
			instance, err := m.CreateInstance(typ, nil, name, addToContainer)
			return instance, err == nil, err
		}
	case *ir.Assignment:
		field, ok := s.Left.(*ir.FieldRef)
		if !ok || field.Name != name {
			return nil, false, nil
		}
		if _, ok := field.Target.(*ir.ThisRef); !ok {
			return nil, false, nil
		}
		if create, ok := s.Right.(*ir.ObjectCreate); ok {
			instance, err := m.construct(create, name, addToContainer)
			return instance, err == nil, err
		}
	}
	return nil, false, nil
}

// propertySerializer is the default member serializer.
type propertySerializer struct{}

func (propertySerializer) SerializeMember(m *Manager, owner any, member Member, absolute bool) (ir.Statements, error) {
	ownerName, ok := m.GetName(owner)
	if !ok {
		return nil, errorf(ErrUnresolvedName, member.Name, "owner %T has no name", owner)
	}
	target := m.Reference(ownerName)

	value, err := member.Value(owner)
	if err != nil {
		return nil, err
	}

	if member.Kind == EventMember {
		handler, _ := value.(string)
		if handler == "" {
			return nil, nil
		}
		return ir.Statements{&ir.AttachEvent{Target: target, Event: member.Name, Handler: handler}}, nil
	}

	if !absolute && !member.ShouldSerialize(owner) {
		return nil, nil
	}
	key := resourceKey(ownerName, member.Name)

	if member.DesignOnly {
		if err := m.Resources().SetMetadata(key, value); err != nil {
			m.assert(newError(ErrNonSerializableResource, key, err))
			return nil, nil
		}
		m.noteResourceRef(ownerName, member.Name)
		return nil, nil
	}

	if member.Localizable {
		serializer, err := m.resourceSerializer(member.Type)
		if err != nil {
			return nil, err
		}
		expr, err := serializer.SerializeResource(m, key, value, true)
		if err != nil {
			if errors.Is(err, ErrNonSerializableResource) {
				m.assert(err)
				return nil, nil
			}
			return nil, err
		}
		return ir.Statements{ir.Assign(ir.Prop(target, member.Name), expr)}, nil
	}

	if member.Type.Kind() == reflect.Slice {
		serializer, err := m.collectionSerializer(member.Type)
		if err != nil {
			return nil, err
		}
		return serializer.SerializeCollection(m, ir.Prop(target, member.Name), member, baseValue(m, owner, member), value)
	}

	expr, err := m.SerializeValue(value)
	if errors.Is(err, errNotExpressible) {
		if _, rerr := m.Resources().SetValue(key, value, false, true); rerr != nil {
			m.assert(newError(ErrNonSerializableResource, key, rerr))
			return nil, nil
		}
		m.noteResourceRef(ownerName, member.Name)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ir.Statements{ir.Assign(ir.Prop(target, member.Name), expr)}, nil
}

// baseValue reads member from a freshly constructed owner, the state a
// deserialized instance starts from. It returns nil when no fresh instance
// can be built, which forces a full assignment.
func baseValue(m *Manager, owner any, member Member) any {
	fresh, err := m.Types().New(reflect.TypeOf(owner))
	if err != nil {
		return nil
	}
	value, err := member.Value(fresh)
	if err != nil {
		return nil
	}
	return value
}

func resourceKey(owner, member string) string {
	return owner + "." + member
}
