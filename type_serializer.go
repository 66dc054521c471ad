package snapshot

import (
	"errors"
	"reflect"
	"time"

	"github.com/goliatone/go-snapshot/ir"
	"github.com/goliatone/go-snapshot/resources"
)

// InitializeComponent is the method a type declaration's statements are
// assembled into.
const InitializeComponent = "InitializeComponent"

// TypeSerializer converts a root object and the components around it into a
// type declaration: one field per component and a single method that builds
// them all.
type TypeSerializer struct {
	svc *Service
}

// TypeSerializer returns the type-level serializer for s.
func (s *Service) TypeSerializer() *TypeSerializer {
	return &TypeSerializer{svc: s}
}

// Serialize emits the declaration for root and every other component of
// container. Resources go to store, which may be nil. The returned error is
// an ErrorList when serialization completed with recoverable errors.
func (t *TypeSerializer) Serialize(container Container, root string, store *resources.Store) (*ir.TypeDeclaration, error) {
	if container == nil {
		return nil, newError(ErrMissingService, root, errors.New("nil container"))
	}
	rootValue, ok := container.Component(root)
	if !ok {
		return nil, errorf(ErrUnresolvedName, root, "root is not a component of the container")
	}
	start := time.Now()

	m := t.svc.NewManager(container, store)
	session, err := m.CreateSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	names := container.Names()
	for _, name := range names {
		component, _ := container.Component(name)
		if err := m.SetName(component, name); err != nil && !errors.Is(err, ErrNotReference) {
			m.ReportError(err)
		}
	}

	rootType := reflect.TypeOf(rootValue)
	m.addProvenance(rootType)
	decl := &ir.TypeDeclaration{Name: root, Base: m.Types().NameOf(rootType)}

	ctx := &RootContext{Name: root, Expression: &ir.ThisRef{}, Fields: true}
	m.PushContext(ctx)
	defer m.PopContext(ctx)

	asm := NewAssembler()
	serialize := func(name string, value any) {
		serializer, err := m.objectSerializer(reflect.TypeOf(value))
		if err != nil {
			m.ReportError(withName(err, name))
			return
		}
		stmts, err := serializer.Serialize(m, value, false)
		if err != nil {
			m.ReportError(withName(err, name))
		}
		for _, stmt := range stmts {
			asm.Hint(stmt, m.HintOf(stmt))
		}
		asm.Add(InitializeComponent, name, stmts...)
	}

	host, _ := container.(ModifierHost)
	for _, name := range names {
		if name == root {
			continue
		}
		component, _ := container.Component(name)
		field := ir.Field{Name: name, Type: m.Types().NameOf(reflect.TypeOf(component))}
		if host != nil {
			field.Modifier, _ = host.Modifier(name)
		}
		decl.Fields = append(decl.Fields, field)
		serialize(name, component)
	}
	serialize(root, rootValue)

	decl.Methods = asm.Assemble()
	if store != nil {
		if _, err := store.Flush(); err != nil {
			m.ReportError(newError(ErrNonSerializableResource, root, err))
		}
	}
	errs := m.Errors()
	t.svc.log("serialize-type", root, start, errs.Err())
	return decl, errs.Err()
}

// Deserialize builds the root described by decl, adds it and every field
// component to container, and replays the InitializeComponent method with
// the root resolved last.
func (t *TypeSerializer) Deserialize(decl *ir.TypeDeclaration, container Container, store *resources.Store, opts ...DeserializeOption) (any, error) {
	if decl == nil {
		return nil, newError(ErrMissingService, "", errors.New("nil type declaration"))
	}
	if container == nil {
		return nil, newError(ErrMissingService, decl.Name, errors.New("nil container"))
	}
	start := time.Now()

	m := t.svc.NewManager(container, store, opts...)
	session, err := m.CreateSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()
	m.SetRootName(decl.Name)

	rootType, err := m.ResolveType(decl.Base)
	if err != nil {
		return nil, withName(err, decl.Name)
	}
	root, err := m.CreateInstance(rootType, nil, decl.Name, true)
	if err != nil {
		return nil, withName(err, decl.Name)
	}

	method, _ := decl.Method(InitializeComponent)
	for _, stmt := range method.Statements {
		if d, ok := stmt.(*ir.Declaration); ok {
			m.markLocal(d.Name)
		}
	}

	data := map[string]*nameData{}
	fields := make([]string, 0, len(decl.Fields))
	for _, field := range decl.Fields {
		fields = append(fields, field.Name)
		if field.Modifier != "" {
			data[field.Name] = &nameData{Modifier: field.Modifier}
		}
	}

	table := NewStatementTable()
	names := FillStatementTable(table, method.Statements, decl.Name, fields)
	newResolver(m, table, data).run(names, decl.Name)

	errs := m.Errors()
	t.svc.log("deserialize-type", decl.Name, start, errs.Err())
	return root, errs.Err()
}
