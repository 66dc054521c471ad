package snapshot

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/goliatone/go-snapshot/ir"
	"github.com/goliatone/go-snapshot/resources"
)

// ResolveFunc is the pull-based fallback the manager uses for names it cannot
// find locally. It is installed for the duration of a resolution batch.
// pending reports that name is mid-resolution, so a nil instance is expected.
type ResolveFunc func(name string) (instance any, pending bool)

// Manager owns naming, instance creation, the context stack and serializer
// lookup for one session at a time.
type Manager struct {
	svc        *Service
	container  Container
	options    deserializeConfig
	resources  *resources.Store
	session    *Session
	resolver   ResolveFunc
	provenance []Provenance
	root       string
}

// Session holds every table scoped to one open session.
type Session struct {
	ID uuid.UUID

	manager     *Manager
	names       map[string]any
	order       []string
	instances   map[identity]string
	contexts    []any
	errors      ErrorList
	serializers map[serializerKey]any
	expressions *ExpressionCache

	resourceRefs map[string][]string
	defaults     map[string][]string
	referenced   map[string]bool
	refOrder     []string
	locals       map[string]bool
	hints        map[ir.Statement]Hint
}

type serializerKey struct {
	typ        reflect.Type
	capability Capability
}

// NewManager builds a manager over container. The resource store may be nil
// when no resources are read or written.
func (s *Service) NewManager(container Container, store *resources.Store, opts ...DeserializeOption) *Manager {
	if store == nil {
		store = resources.NewStore(nil, s.cfg.culture)
	}
	return &Manager{
		svc:       s,
		container: container,
		options:   applyDeserializeOptions(opts),
		resources: store,
	}
}

// CreateSession opens the single session this manager allows.
func (m *Manager) CreateSession() (*Session, error) {
	if m.session != nil {
		return nil, ErrSessionOpen
	}
	m.session = &Session{
		ID:          uuid.New(),
		manager:     m,
		names:       map[string]any{},
		instances:   map[identity]string{},
		serializers: map[serializerKey]any{},
		expressions: NewExpressionCache(),

		resourceRefs: map[string][]string{},
		defaults:     map[string][]string{},
		referenced:   map[string]bool{},
		locals:       map[string]bool{},
		hints:        map[ir.Statement]Hint{},
	}
	return m.session, nil
}

// Close disposes the session, clearing every session-scoped table.
func (s *Session) Close() error {
	if s == nil || s.manager == nil {
		return nil
	}
	if s.manager.session == s {
		s.manager.session = nil
		s.manager.resolver = nil
	}
	s.names = nil
	s.order = nil
	s.instances = nil
	s.contexts = nil
	s.errors = nil
	s.serializers = nil
	s.expressions = nil
	s.resourceRefs = nil
	s.defaults = nil
	s.referenced = nil
	s.refOrder = nil
	s.locals = nil
	s.hints = nil
	s.manager = nil
	return nil
}

// Session returns the open session or nil.
func (m *Manager) Session() *Session {
	return m.session
}

// Container returns the host container.
func (m *Manager) Container() Container {
	return m.container
}

// Types returns the type-resolution service.
func (m *Manager) Types() *TypeRegistry {
	return m.svc.cfg.types
}

// Describer returns the member metadata service.
func (m *Manager) Describer() Describer {
	return m.svc.cfg.describer
}

// Resources returns the culture-layered resource store.
func (m *Manager) Resources() *resources.Store {
	return m.resources
}

// Expressions returns the session expression cache.
func (m *Manager) Expressions() *ExpressionCache {
	if m.session == nil {
		return nil
	}
	return m.session.expressions
}

// SetName binds name and instance in both directions.
func (m *Manager) SetName(instance any, name string) error {
	if m.session == nil {
		return ErrNoSession
	}
	if name == "" {
		return errorf(ErrNameCollision, name, "name must not be empty")
	}
	id, ok := identityOf(instance)
	if !ok {
		return newError(ErrNotReference, name, fmt.Errorf("%T cannot be named", instance))
	}
	if existing, ok := m.session.names[name]; ok {
		if sameInstance(existing, instance) {
			return nil
		}
		return errorf(ErrNameCollision, name, "name already bound to %T", existing)
	}
	if current, ok := m.session.instances[id]; ok {
		return errorf(ErrNameCollision, name, "instance already named %q", current)
	}
	m.session.names[name] = instance
	m.session.instances[id] = name
	m.session.order = append(m.session.order, name)
	return nil
}

// GetName returns the name bound to instance in this session.
func (m *Manager) GetName(instance any) (string, bool) {
	if m.session == nil {
		return "", false
	}
	id, ok := identityOf(instance)
	if !ok {
		return "", false
	}
	name, ok := m.session.instances[id]
	return name, ok
}

// Names lists names bound in this session, in binding order.
func (m *Manager) Names() []string {
	if m.session == nil {
		return nil
	}
	return append([]string(nil), m.session.order...)
}

func (m *Manager) unbind(name string) {
	if m.session == nil {
		return
	}
	instance, ok := m.session.names[name]
	if !ok {
		return
	}
	delete(m.session.names, name)
	if id, ok := identityOf(instance); ok {
		delete(m.session.instances, id)
	}
	for i, n := range m.session.order {
		if n == name {
			m.session.order = append(m.session.order[:i], m.session.order[i+1:]...)
			break
		}
	}
}

// lookup checks the session table and, when names are preserved, the
// container. It never raises the resolver callback.
func (m *Manager) lookup(name string) (any, bool) {
	if m.session != nil {
		if instance, ok := m.session.names[name]; ok {
			return instance, true
		}
	}
	if m.options.preserveNames && m.container != nil {
		if instance, ok := m.container.Component(name); ok {
			return instance, true
		}
	}
	return nil, false
}

// GetInstance returns the instance for name: the session table first, then
// the container, then the resolver callback as a last resort.
func (m *Manager) GetInstance(name string) any {
	instance, _ := m.instance(name)
	return instance
}

func (m *Manager) instance(name string) (any, bool) {
	if instance, ok := m.lookup(name); ok {
		return instance, false
	}
	if m.resolver != nil {
		return m.resolver(name)
	}
	return nil, false
}

func (m *Manager) withResolver(fn ResolveFunc, body func()) {
	previous := m.resolver
	m.resolver = fn
	defer func() { m.resolver = previous }()
	body()
}

// CreateInstance recycles or builds an instance of typ, names it and adds it
// to the container.
func (m *Manager) CreateInstance(typ reflect.Type, args []any, name string, addToContainer bool) (any, error) {
	if m.session == nil {
		return nil, ErrNoSession
	}
	if typ == nil {
		return nil, errorf(ErrTypeNotFound, name, "nil type")
	}

	if m.options.recycleInstances && name != "" {
		if instance, ok := m.lookup(name); ok {
			if !m.options.validateRecycledTypes || instanceMatches(instance, typ) {
				if err := m.SetName(instance, name); err != nil {
					return nil, err
				}
				return instance, nil
			}
			m.unbind(name)
			if remover, ok := m.container.(interface{ Remove(string) }); ok {
				remover.Remove(name)
			}
		}
	}

	instance, err := m.Types().New(typ, args...)
	if err != nil {
		return nil, newError(ErrTypeNotFound, name, err)
	}
	if !m.Types().HasConstructor(typ) {
		m.applyDeclaredDefaults(instance, name)
	}
	if typ.Kind() != reflect.Pointer && reflect.TypeOf(instance) == reflect.PointerTo(typ) {
		instance = reflect.ValueOf(instance).Elem().Interface()
	}
	if name == "" {
		return instance, nil
	}
	if err := m.SetName(instance, name); err != nil {
		return instance, err
	}
	if addToContainer && m.container != nil {
		if err := m.container.Add(name, instance); err != nil {
			return instance, err
		}
	}
	return instance, nil
}

// applyDeclaredDefaults gives a zero-constructed instance the defaults its
// members declare. Serializers omit members equal to their default, so
// a rebuilt instance must start from them.
func (m *Manager) applyDeclaredDefaults(instance any, name string) {
	for _, member := range m.Describer().Members(reflect.TypeOf(instance)) {
		if !member.HasDefault || !member.CanReset(instance) {
			continue
		}
		if err := member.Reset(instance); err != nil {
			m.ReportError(newError(ErrSerializationMismatch, name, err))
		}
	}
}

func instanceMatches(instance any, typ reflect.Type) bool {
	actual := reflect.TypeOf(instance)
	if actual == typ {
		return true
	}
	return typ.Kind() == reflect.Struct && actual == reflect.PointerTo(typ)
}

// UniqueName derives an unused name from base ("Button" -> "button1").
func (m *Manager) UniqueName(base string) string {
	base = strings.TrimLeft(base, "*[]")
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		base = base[idx+1:]
	}
	if base == "" {
		base = "object"
	}
	runes := []rune(base)
	runes[0] = unicode.ToLower(runes[0])
	base = string(runes)
	for i := 1; ; i++ {
		candidate := base + strconv.Itoa(i)
		if _, taken := m.lookup(candidate); taken {
			continue
		}
		if m.container != nil {
			if _, taken := m.container.Component(candidate); taken {
				continue
			}
		}
		return candidate
	}
}

// ReportError accumulates a recoverable error on the session.
func (m *Manager) ReportError(err error) {
	if err == nil {
		return
	}
	m.svc.cfg.logger.Log(LogEvent{Op: "error", Err: err})
	if m.session == nil {
		return
	}
	m.session.errors.add(err)
}

// Errors returns the errors accumulated in this session.
func (m *Manager) Errors() ErrorList {
	if m.session == nil {
		return nil
	}
	return append(ErrorList(nil), m.session.errors...)
}

// PushContext pushes ctx onto the context stack.
func (m *Manager) PushContext(ctx any) {
	if m.session == nil {
		panic("snapshot: context push without an open session")
	}
	m.session.contexts = append(m.session.contexts, ctx)
}

// PopContext removes ctx, which must be the top of the stack.
func (m *Manager) PopContext(ctx any) {
	if m.session == nil || len(m.session.contexts) == 0 {
		panic("snapshot: context stack underflow")
	}
	top := m.session.contexts[len(m.session.contexts)-1]
	if !sameInstance(top, ctx) {
		panic(fmt.Sprintf("snapshot: context stack mismatch: popping %T, top is %T", ctx, top))
	}
	m.session.contexts = m.session.contexts[:len(m.session.contexts)-1]
}

// ContextDepth reports the number of pushed contexts.
func (m *Manager) ContextDepth() int {
	if m.session == nil {
		return 0
	}
	return len(m.session.contexts)
}

// RootContext is pushed while serializing a type so references to the root
// object and its fields use this-relative expressions.
type RootContext struct {
	Name       string
	Expression ir.Expression
	Fields     bool
}

// StatementContext collects statements emitted while serializing one owner.
// Serializers append local declarations here ahead of the statement that
// uses them.
type StatementContext struct {
	Owner      string
	Statements ir.Statements
	Locals     []string
}

// Add appends statements to the context.
func (c *StatementContext) Add(stmts ...ir.Statement) {
	c.Statements = append(c.Statements, stmts...)
}

func findContext[T any](m *Manager) (T, bool) {
	var zero T
	if m.session == nil {
		return zero, false
	}
	for i := len(m.session.contexts) - 1; i >= 0; i-- {
		if ctx, ok := m.session.contexts[i].(T); ok {
			return ctx, true
		}
	}
	return zero, false
}

// Root returns the innermost RootContext.
func (m *Manager) Root() *RootContext {
	ctx, _ := findContext[*RootContext](m)
	return ctx
}

// Statements returns the innermost StatementContext.
func (m *Manager) Statements() *StatementContext {
	ctx, _ := findContext[*StatementContext](m)
	return ctx
}

// Reference returns the expression statements use to refer to name.
func (m *Manager) Reference(name string) ir.Expression {
	if m.session != nil && m.session.locals[name] {
		return ir.Ref(name)
	}
	if root := m.Root(); root != nil {
		if root.Name == name && root.Expression != nil {
			return root.Expression
		}
		if root.Fields {
			return &ir.FieldRef{Target: &ir.ThisRef{}, Name: name}
		}
	}
	return ir.Ref(name)
}

// RootName returns the root object name for target derivation.
func (m *Manager) RootName() string {
	if root := m.Root(); root != nil {
		return root.Name
	}
	return m.root
}

// SetRootName designates the object ThisRef resolves to.
func (m *Manager) SetRootName(name string) {
	m.root = name
}

func (m *Manager) noteResourceRef(owner, member string) {
	if m.session == nil {
		return
	}
	for _, existing := range m.session.resourceRefs[owner] {
		if existing == member {
			return
		}
	}
	m.session.resourceRefs[owner] = append(m.session.resourceRefs[owner], member)
}

func (m *Manager) noteDefault(owner, member string) {
	if m.session == nil {
		return
	}
	for _, existing := range m.session.defaults[owner] {
		if existing == member {
			return
		}
	}
	m.session.defaults[owner] = append(m.session.defaults[owner], member)
}

// IsLocal reports whether name was introduced as a local declaration rather
// than a container component.
func (m *Manager) IsLocal(name string) bool {
	return m.session != nil && m.session.locals[name]
}

func (m *Manager) markLocal(name string) {
	if m.session != nil {
		m.session.locals[name] = true
	}
}

// SetHint records where stmt must land within its group when assembled.
func (m *Manager) SetHint(stmt ir.Statement, hint Hint) {
	if m.session == nil || stmt == nil {
		return
	}
	if hint == HintNone {
		delete(m.session.hints, stmt)
		return
	}
	m.session.hints[stmt] = hint
}

// HintOf returns the ordering hint recorded for stmt.
func (m *Manager) HintOf(stmt ir.Statement) Hint {
	if m.session == nil {
		return HintNone
	}
	return m.session.hints[stmt]
}

func (m *Manager) resourceRefsOf(owner string) []string {
	if m.session == nil {
		return nil
	}
	return append([]string(nil), m.session.resourceRefs[owner]...)
}

// markReferenced records that the payload must expose name as a shim.
func (m *Manager) markReferenced(name string) {
	if m.session == nil || m.session.referenced[name] {
		return
	}
	m.session.referenced[name] = true
	m.session.refOrder = append(m.session.refOrder, name)
}

func (m *Manager) addProvenance(typ reflect.Type) {
	if p, ok := m.Types().ProvenanceOf(typ); ok {
		m.noteProvenance(p)
	}
}

func (m *Manager) noteProvenance(p Provenance) {
	for _, existing := range m.provenance {
		if existing == p {
			return
		}
	}
	m.provenance = append(m.provenance, p)
}

// ResolveType maps name to a runtime type, falling back to the payload
// provenance.
func (m *Manager) ResolveType(name string) (reflect.Type, error) {
	typ, err := m.Types().ResolveWithProvenance(name, m.provenance)
	if err != nil {
		return nil, newError(ErrTypeNotFound, "", err)
	}
	return typ, nil
}

func (m *Manager) assert(err error) {
	if err == nil {
		return
	}
	if m.svc.cfg.devAsserts {
		panic(err)
	}
	m.svc.cfg.logger.Log(LogEvent{Op: "skip", Err: err})
}
