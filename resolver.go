package snapshot

import (
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-snapshot/ir"
)

// nameData carries the per-name restore instructions recorded next to a
// statement group.
type nameData struct {
	DefaultMembers []string
	ResourceRefs   []string
	EventResets    []string
	Modifier       string
	Expressions    ir.Expressions
}

// resolver turns a statement table into live instances on demand. Each slot
// moves unresolved -> in-progress -> resolved exactly once, and inFlight
// short-circuits re-entry for names reached through the manager callback.
type resolver struct {
	m        *Manager
	table    *StatementTable
	data     map[string]*nameData
	inFlight map[string]bool
	applied  map[string]bool
}

func newResolver(m *Manager, table *StatementTable, data map[string]*nameData) *resolver {
	if data == nil {
		data = map[string]*nameData{}
	}
	return &resolver{
		m:        m,
		table:    table,
		data:     data,
		inFlight: map[string]bool{},
		applied:  map[string]bool{},
	}
}

// run resolves names in order with root deferred to last. Names that stay
// unresolved are reported.
func (r *resolver) run(names []string, root string) {
	start := time.Now()
	r.m.withResolver(r.callback, func() {
		for _, name := range names {
			if name == root {
				continue
			}
			r.request(name)
		}
		if root != "" {
			r.request(root)
		}
	})
	r.m.svc.log("resolve", root, start, nil)
}

func (r *resolver) request(name string) {
	if r.resolve(name) == nil {
		r.m.ReportError(errorf(ErrUnresolvedName, name, "no statements, expressions or existing instance produced it"))
	}
}

// resolve is the guarded top-level entry point.
func (r *resolver) resolve(name string) any {
	if r.inFlight[name] {
		return nil
	}
	r.inFlight[name] = true
	defer delete(r.inFlight, name)
	instance, _ := r.resolveName(name, true)
	return instance
}

// callback is installed on the manager. It never falls through to the
// manager's own lookup, which is what raised it.
func (r *resolver) callback(name string) (any, bool) {
	if r.inFlight[name] {
		return nil, true
	}
	r.inFlight[name] = true
	defer delete(r.inFlight, name)
	return r.resolveName(name, false)
}

func (r *resolver) resolveName(name string, allowExternalLookup bool) (any, bool) {
	if strings.Contains(name, ".") {
		instance := r.resolveNested(name)
		if instance == nil {
			return nil, false
		}
		return r.finish(name, instance), false
	}

	s, ok := r.table.slot(name)
	if !ok {
		instance := r.finish(name, nil)
		if instance == nil && allowExternalLookup {
			if existing, found := r.m.lookup(name); found {
				instance = existing
				if data, ok := r.data[name]; ok {
					r.restore(name, instance, data)
				}
			}
		}
		return instance, false
	}

	switch s.state {
	case slotResolved:
		return s.instance, false
	case slotInProgress:
		return nil, true
	}

	s.state = slotInProgress
	instance := r.resolveGroup(name, s.statements)
	s.instance = instance
	s.state = slotResolved
	s.instance = r.finish(name, instance)
	return s.instance, false
}

func (r *resolver) resolveGroup(name string, stmts ir.Statements) any {
	m := r.m
	if typeName := declaredType(stmts, name); typeName != "" {
		typ, err := m.ResolveType(typeName)
		if err != nil {
			m.ReportError(withName(err, name))
			return nil
		}
		serializer, err := m.objectSerializer(typ)
		if err == nil {
			instance, err := serializer.Deserialize(m, name, stmts)
			if err != nil {
				m.ReportError(withName(err, name))
			}
			return instance
		}
		m.ReportError(withName(err, name))
	}

	for _, stmt := range stmts {
		if err := m.Execute(stmt); err != nil {
			m.ReportError(withName(err, name))
		}
	}
	instance, _ := m.lookup(name)
	return instance
}

// declaredType finds the type name of the statement that constructs name.
func declaredType(stmts ir.Statements, name string) string {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ir.Declaration:
			if s.Name != name {
				continue
			}
			if s.Type != "" {
				return s.Type
			}
			if create, ok := s.Init.(*ir.ObjectCreate); ok {
				return create.Type
			}
		case *ir.Assignment:
			field, ok := s.Left.(*ir.FieldRef)
			if !ok || field.Name != name {
				continue
			}
			if _, ok := field.Target.(*ir.ThisRef); !ok {
				continue
			}
			if create, ok := s.Right.(*ir.ObjectCreate); ok {
				return create.Type
			}
		}
	}
	return ""
}

// resolveNested walks a dotted name through NestedLookup parents, binds the
// result under the full name and then resolves the parent, whose group is
// what actually constructs the child.
func (r *resolver) resolveNested(name string) any {
	m := r.m
	segments := strings.Split(name, ".")
	for _, segment := range segments {
		if segment == "" {
			m.ReportError(errorf(ErrUnresolvedName, name, "empty path segment"))
			return nil
		}
	}

	current := m.GetInstance(segments[0])
	if current == nil {
		m.ReportError(errorf(ErrUnresolvedName, name, "parent %q not found", segments[0]))
		return nil
	}
	for _, segment := range segments[1:] {
		parent, ok := current.(NestedLookup)
		if !ok {
			m.ReportError(errorf(ErrUnresolvedName, name, "%T has no nested components", current))
			return nil
		}
		child, ok := parent.Nested(segment)
		if !ok || child == nil {
			m.ReportError(errorf(ErrUnresolvedName, name, "nested component %q not found", segment))
			return nil
		}
		current = child
	}

	if _, named := m.GetName(current); !named {
		if err := m.SetName(current, name); err != nil {
			m.ReportError(err)
		}
	}

	if s, ok := r.table.slot(name); ok && s.state == slotUnresolved {
		s.state = slotResolved
		s.instance = current
		for _, stmt := range s.statements {
			if err := m.Execute(stmt); err != nil {
				m.ReportError(withName(err, name))
			}
		}
	}

	parent := name[:strings.LastIndex(name, ".")]
	if !r.inFlight[parent] {
		r.resolve(parent)
	}
	return current
}

// finish applies the restore instructions recorded for name, then its bare
// expressions. The first expression that produces a value names it when
// nothing else did.
func (r *resolver) finish(name string, instance any) any {
	if r.applied[name] {
		return instance
	}
	data, ok := r.data[name]
	if !ok {
		return instance
	}
	r.applied[name] = true
	m := r.m

	if instance != nil {
		r.restore(name, instance, data)
	}

	for _, expr := range data.Expressions {
		value, err := m.Evaluate(expr)
		if err != nil {
			m.ReportError(withName(err, name))
			continue
		}
		if instance == nil && value != nil {
			if err := m.bind(name, value); err != nil {
				m.ReportError(err)
				continue
			}
			instance = value
			r.restore(name, instance, data)
		}
	}
	return instance
}

func (r *resolver) restore(name string, instance any, data *nameData) {
	m := r.m
	typ := reflect.TypeOf(instance)

	if m.options.applyDefaults {
		for _, memberName := range data.DefaultMembers {
			member, ok := FindMember(m.Describer(), typ, memberName)
			if !ok || !member.CanReset(instance) {
				continue
			}
			if err := member.Reset(instance); err != nil {
				m.ReportError(newError(ErrSerializationMismatch, name, err))
			}
		}
	}

	for _, memberName := range data.ResourceRefs {
		key := resourceKey(name, memberName)
		value, found, err := m.Resources().GetMetadata(key)
		if err == nil && !found {
			value, found, err = m.Resources().GetObject(key, false)
		}
		if err != nil {
			m.ReportError(newError(ErrNonSerializableResource, key, err))
			continue
		}
		if !found {
			m.ReportError(errorf(ErrUnresolvedName, key, "resource not found"))
			continue
		}
		if err := m.writeMember(instance, memberName, value); err != nil {
			m.ReportError(withName(err, name))
		}
	}

	for _, event := range data.EventResets {
		if err := m.writeMember(instance, event, nil); err != nil {
			m.ReportError(withName(err, name))
		}
	}

	if data.Modifier != "" {
		if host, ok := m.container.(ModifierHost); ok {
			host.SetModifier(name, data.Modifier)
		}
	}
}
