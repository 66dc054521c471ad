package snapshot

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-snapshot/ir"
	"github.com/goliatone/go-snapshot/pkg/activity"
	"github.com/goliatone/go-snapshot/resources"
)

// ObjectRecord is an object registered into an open store.
type ObjectRecord struct {
	Name         string
	Value        any
	EntireObject bool
	Absolute     bool
	Members      []MemberRecord
}

// MemberRecord is one explicitly registered member of an object.
type MemberRecord struct {
	Member   Member
	Absolute bool
}

// Store collects objects and members from a container and closes them into
// a Payload. It is single use: once closed it only hands out the payload.
type Store struct {
	svc       *Service
	container Container
	resources *resources.Store
	root      string

	records []*ObjectRecord
	byName  map[string]*ObjectRecord

	closed      bool
	payload     *Payload
	errors      ErrorList
	eventResets map[string][]string
}

// Result is the outcome of a deserialization.
type Result struct {
	Root      any
	Names     []string
	Instances map[string]any
	Resources *resources.Store
	Errors    ErrorList
}

// Err returns the accumulated errors, or nil.
func (r *Result) Err() error {
	if r == nil {
		return nil
	}
	return r.Errors.Err()
}

// CreateStore opens a store over container. Resources are written to an
// in-memory service in the configured culture and embedded in the payload.
func (s *Service) CreateStore(container Container) *Store {
	return &Store{
		svc:         s,
		container:   container,
		resources:   resources.NewStore(resources.NewMemoryService(), s.cfg.culture),
		byName:      map[string]*ObjectRecord{},
		eventResets: map[string][]string{},
	}
}

// Resources returns the store's resource layer.
func (st *Store) Resources() *resources.Store {
	return st.resources
}

// SetRoot designates the object resolved last on load.
func (st *Store) SetRoot(name string) {
	st.root = name
}

// AddObject registers value for whole-object serialization. absolute emits
// members even when they hold their defaults.
func (st *Store) AddObject(value any, absolute bool) error {
	rec, err := st.record(value)
	if err != nil {
		return err
	}
	rec.EntireObject = true
	rec.Absolute = rec.Absolute || absolute
	return nil
}

// AddMember registers a single member of value.
func (st *Store) AddMember(value any, member string, absolute bool) error {
	rec, err := st.record(value)
	if err != nil {
		return err
	}
	desc, ok := FindMember(st.svc.Describer(), reflect.TypeOf(value), member)
	if !ok {
		return errorf(ErrSerializationMismatch, rec.Name, "%T has no member %s", value, member)
	}
	for i, existing := range rec.Members {
		if existing.Member.Name == member {
			rec.Members[i].Absolute = existing.Absolute || absolute
			return nil
		}
	}
	rec.Members = append(rec.Members, MemberRecord{Member: desc, Absolute: absolute})
	return nil
}

func (st *Store) record(value any) (*ObjectRecord, error) {
	if st.closed {
		return nil, ErrStoreClosed
	}
	if st.container == nil {
		return nil, newError(ErrMissingService, "", errors.New("store has no container"))
	}
	name, ok := containerNameOf(st.container, value)
	if !ok {
		return nil, errorf(ErrUnresolvedName, "", "%T is not a component of the container", value)
	}
	if rec, ok := st.byName[name]; ok {
		return rec, nil
	}
	rec := &ObjectRecord{Name: name, Value: value}
	st.records = append(st.records, rec)
	st.byName[name] = rec
	return rec, nil
}

// Errors returns the errors accumulated by Close.
func (st *Store) Errors() ErrorList {
	return append(ErrorList(nil), st.errors...)
}

// Payload returns the closed payload, or nil while the store is open.
func (st *Store) Payload() *Payload {
	return st.payload
}

// Close serializes every registered record and seals the store. Recoverable
// problems are collected in Errors; only a missing container fails Close.
func (st *Store) Close(ctx context.Context) (*Payload, error) {
	if st.closed {
		return st.payload, nil
	}
	if st.container == nil {
		return nil, newError(ErrMissingService, "", errors.New("store has no container"))
	}
	start := time.Now()

	m := st.svc.NewManager(st.container, st.resources)
	session, err := m.CreateSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()
	m.SetRootName(st.root)

	for _, rec := range st.records {
		if err := m.SetName(rec.Value, rec.Name); err != nil {
			m.ReportError(err)
		}
	}
	st.backReferences(m)

	names := make([]string, 0, len(st.records))
	var stmts ir.Statements
	for _, rec := range st.records {
		names = append(names, rec.Name)
		if rec.EntireObject {
			stmts = append(stmts, st.serializeObject(m, rec)...)
		} else {
			stmts = append(stmts, st.serializeMembers(m, rec)...)
		}
	}

	table := NewStatementTable()
	names = FillStatementTable(table, stmts, st.root, names)

	payload := &Payload{
		ID:        uuid.New(),
		Root:      st.root,
		Culture:   st.resources.Culture(),
		Entries:   map[string]*PayloadEntry{},
		CreatedAt: time.Now().UTC(),
	}
	for _, name := range names {
		payload.Entries[name] = st.entry(m, table, name)
		if m.IsLocal(name) {
			payload.Locals = append(payload.Locals, name)
		}
	}
	for _, name := range m.Names() {
		if !session.referenced[name] || m.IsLocal(name) {
			continue
		}
		if rec, ok := st.byName[name]; ok && rec.EntireObject {
			continue
		}
		payload.Shims = append(payload.Shims, name)
		if _, listed := payload.Entries[name]; !listed {
			names = append(names, name)
			payload.Entries[name] = &PayloadEntry{Placeholder: true}
		}
	}
	payload.Names = names
	payload.Provenance = append([]Provenance(nil), m.provenance...)

	cultures, err := st.resources.Flush()
	if err != nil {
		m.ReportError(newError(ErrNonSerializableResource, "", err))
	}
	if blobber, ok := st.resources.Service().(interface{ MarshalBlob() ([]byte, error) }); ok {
		blob, err := blobber.MarshalBlob()
		if err != nil {
			m.ReportError(newError(ErrNonSerializableResource, "", err))
		}
		payload.Resources = blob
	}

	st.errors = m.Errors()
	st.payload = payload
	st.closed = true
	st.records = nil
	st.byName = nil

	st.svc.log("close", st.root, start, st.errors.Err())
	input := activity.SnapshotEventInput{
		PayloadID:  payload.ID.String(),
		SessionID:  session.ID.String(),
		Root:       payload.Root,
		Names:      payload.Names,
		ErrorCount: len(st.errors),
	}
	if len(cultures) > 0 {
		flushed := input
		flushed.Cultures = cultureStrings(cultures)
		st.svc.emit(ctx, activity.BuildResourcesFlushedEvent(flushed))
	}
	st.svc.emit(ctx, activity.BuildSnapshotClosedEvent(input))
	return payload, nil
}

// backReferences presets a reference expression for every container
// component not serialized as a whole, so other objects can still point at
// it.
func (st *Store) backReferences(m *Manager) {
	for _, name := range st.container.Names() {
		if rec, ok := st.byName[name]; ok && rec.EntireObject {
			continue
		}
		component, ok := st.container.Component(name)
		if !ok {
			continue
		}
		if _, named := m.GetName(component); !named {
			if err := m.SetName(component, name); err != nil {
				if !errors.Is(err, ErrNotReference) {
					m.ReportError(err)
				}
				continue
			}
		}
		m.Expressions().Set(component, m.Reference(name), true)
	}
}

func (st *Store) serializeObject(m *Manager, rec *ObjectRecord) ir.Statements {
	cache := st.svc.ComponentCache()
	if cache != nil && !rec.Absolute {
		if entry, ok := cache.Lookup(m, rec.Value); ok {
			if err := entry.replay(m); err != nil {
				m.ReportError(err)
			}
			m.svc.cfg.logger.Log(LogEvent{Op: "cache", Name: rec.Name, Detail: "hit"})
			return entry.Statements
		}
	}

	refMark, provMark := len(m.session.refOrder), len(m.provenance)
	serializer, err := m.objectSerializer(reflect.TypeOf(rec.Value))
	if err != nil {
		m.ReportError(withName(err, rec.Name))
		return nil
	}
	stmts, err := serializer.Serialize(m, rec.Value, rec.Absolute)
	if err != nil {
		m.ReportError(withName(err, rec.Name))
		return stmts
	}

	if cache != nil && !rec.Absolute {
		var locals []string
		for _, stmt := range stmts {
			if decl, ok := stmt.(*ir.Declaration); ok && m.IsLocal(decl.Name) {
				locals = append(locals, decl.Name)
			}
		}
		entry := st.cacheEntry(m, rec.Name, stmts)
		entry.Referenced = append([]string(nil), m.session.refOrder[refMark:]...)
		entry.Provenance = append([]Provenance(nil), m.provenance[provMark:]...)
		cache.Store(m, rec.Value, entry, locals)
	}
	return stmts
}

func (st *Store) cacheEntry(m *Manager, name string, stmts ir.Statements) *CacheEntry {
	entry := &CacheEntry{
		Name:         name,
		Statements:   stmts,
		Resources:    map[string]any{},
		Metadata:     map[string]any{},
		ResourceRefs: m.resourceRefsOf(name),
	}
	keys, err := m.Resources().Keys(name + ".")
	if err == nil {
		for _, key := range keys {
			if value, ok, err := m.Resources().GetObject(key, false); err == nil && ok {
				entry.Resources[key] = value
			}
		}
	}
	for _, member := range entry.ResourceRefs {
		key := resourceKey(name, member)
		if value, ok, err := m.Resources().GetMetadata(key); err == nil && ok {
			entry.Metadata[key] = value
		}
	}
	return entry
}

func (st *Store) serializeMembers(m *Manager, rec *ObjectRecord) ir.Statements {
	ctx := &StatementContext{Owner: rec.Name}
	m.PushContext(ctx)
	defer m.PopContext(ctx)

	for _, mr := range rec.Members {
		member := mr.Member
		if member.Kind == EventMember {
			if handler, _ := member.Value(rec.Value); handler == nil || handler == "" {
				st.eventResets[rec.Name] = append(st.eventResets[rec.Name], member.Name)
				continue
			}
		} else if !mr.Absolute && !member.ShouldSerialize(rec.Value) {
			if member.CanReset(rec.Value) {
				m.noteDefault(rec.Name, member.Name)
			}
			continue
		}
		serializer, err := m.memberSerializer(member.Type)
		if err != nil {
			m.ReportError(withName(err, rec.Name+"."+member.Name))
			continue
		}
		stmts, err := serializer.SerializeMember(m, rec.Value, member, mr.Absolute)
		if err != nil {
			m.ReportError(withName(err, rec.Name+"."+member.Name))
			continue
		}
		ctx.Add(stmts...)
	}
	return ctx.Statements
}

func (st *Store) entry(m *Manager, table *StatementTable, name string) *PayloadEntry {
	entry := &PayloadEntry{
		DefaultMembers: append([]string(nil), m.session.defaults[name]...),
		ResourceRefs:   m.resourceRefsOf(name),
		EventResets:    append([]string(nil), st.eventResets[name]...),
	}
	for _, stmt := range table.Statements(name) {
		if bare, ok := stmt.(*ir.ExpressionStatement); ok {
			entry.Expressions = append(entry.Expressions, bare.Expr)
			continue
		}
		entry.Statements = append(entry.Statements, stmt)
	}
	if host, ok := st.container.(ModifierHost); ok {
		if modifier, ok := host.Modifier(name); ok {
			entry.Modifier = modifier
		}
	}
	return entry
}

// Deserialize closes the store if needed and materialises its payload into
// container.
func (st *Store) Deserialize(ctx context.Context, container Container, opts ...DeserializeOption) (*Result, error) {
	payload, err := st.Close(ctx)
	if err != nil {
		return nil, err
	}
	return st.svc.Deserialize(ctx, payload, container, opts...)
}

// Deserialize rebuilds the graph described by payload into container.
// Recoverable problems are collected in the result; a missing payload or
// container fails immediately.
func (s *Service) Deserialize(ctx context.Context, payload *Payload, container Container, opts ...DeserializeOption) (*Result, error) {
	if payload == nil {
		return nil, newError(ErrMissingService, "", errors.New("nil payload"))
	}
	if container == nil {
		return nil, newError(ErrMissingService, payload.Root, errors.New("nil container"))
	}
	start := time.Now()

	service, err := payload.ResourceService()
	if err != nil {
		return nil, newError(ErrMissingService, payload.Root, err)
	}
	culture := payload.Culture
	if cfg := applyDeserializeOptions(opts); cfg.culture != nil {
		culture = *cfg.culture
	}
	rs := resources.NewStore(service, culture)

	m := s.NewManager(container, rs, opts...)
	session, err := m.CreateSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()
	m.SetRootName(payload.Root)
	m.provenance = append([]Provenance(nil), payload.Provenance...)
	for _, name := range payload.Locals {
		m.markLocal(name)
	}

	var stmts ir.Statements
	for _, name := range payload.Names {
		if entry := payload.Entries[name]; entry != nil && !entry.Placeholder {
			stmts = append(stmts, entry.Statements...)
		}
	}
	table := NewStatementTable()
	names := FillStatementTable(table, stmts, payload.Root, payload.Names)
	newResolver(m, table, payload.nameData()).run(names, payload.Root)

	result := &Result{
		Names:     m.Names(),
		Instances: map[string]any{},
		Resources: rs,
		Errors:    m.Errors(),
	}
	for _, name := range result.Names {
		if instance, ok := m.lookup(name); ok {
			result.Instances[name] = instance
		}
	}
	if payload.Root != "" {
		result.Root, _ = m.lookup(payload.Root)
	}

	s.log("deserialize", payload.Root, start, result.Err())
	s.emit(ctx, activity.BuildSnapshotDeserializedEvent(activity.SnapshotEventInput{
		PayloadID:  payload.ID.String(),
		SessionID:  session.ID.String(),
		Root:       payload.Root,
		Names:      result.Names,
		ErrorCount: len(result.Errors),
	}))
	return result, nil
}

func cultureStrings(cultures []resources.Culture) []string {
	out := make([]string, len(cultures))
	for i, c := range cultures {
		out[i] = string(c)
	}
	return out
}
