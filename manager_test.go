package snapshot

import (
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-snapshot/ir"
)

func TestSessionIsExclusiveAndScoped(t *testing.T) {
	svc := newTestService(t)
	m := svc.NewManager(NewMapContainer(), nil)

	session, err := m.CreateSession()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := m.CreateSession(); !errors.Is(err, ErrSessionOpen) {
		t.Fatalf("expected ErrSessionOpen, got %v", err)
	}

	button := &testButton{}
	if err := m.SetName(button, "button1"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if _, err := m.Serializer(reflect.TypeOf(button), CapabilityObject); err != nil {
		t.Fatalf("serializer: %v", err)
	}
	m.ReportError(errors.New("recoverable"))
	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if m.Session() != nil {
		t.Fatalf("session should be cleared after close")
	}
	if err := m.SetName(button, "button1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after close, got %v", err)
	}

	next, err := m.CreateSession()
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer next.Close()
	if next.ID == session.ID {
		t.Fatalf("sessions should get distinct ids")
	}
	if _, ok := m.GetName(button); ok {
		t.Fatalf("names must not survive the session")
	}
	if len(m.Errors()) != 0 {
		t.Fatalf("errors must not survive the session, got %v", m.Errors())
	}
	if len(next.serializers) != 0 {
		t.Fatalf("serializer cache must start empty")
	}
}

func TestSetNameKeepsBothDirectionsInSync(t *testing.T) {
	m := openManager(t, newTestService(t), NewMapContainer())
	a, b := &testButton{}, &testButton{}

	if err := m.SetName(a, "a"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if err := m.SetName(a, "a"); err != nil {
		t.Fatalf("rebinding the same pair should be a no-op, got %v", err)
	}
	if name, ok := m.GetName(a); !ok || name != "a" {
		t.Fatalf("expected a, got %q (%v)", name, ok)
	}
	if got := m.GetInstance("a"); got != a {
		t.Fatalf("expected instance for a")
	}

	if err := m.SetName(b, "a"); !errors.Is(err, ErrNameCollision) {
		t.Fatalf("expected collision for reused name, got %v", err)
	}
	if err := m.SetName(a, "other"); !errors.Is(err, ErrNameCollision) {
		t.Fatalf("expected collision for renamed instance, got %v", err)
	}
	if err := m.SetName(42, "answer"); !errors.Is(err, ErrNotReference) {
		t.Fatalf("expected ErrNotReference for an int, got %v", err)
	}
	if err := m.SetName(b, ""); !errors.Is(err, ErrNameCollision) {
		t.Fatalf("expected empty names to be rejected, got %v", err)
	}
	if got := m.Names(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestDistinctEqualValuesGetDistinctNames(t *testing.T) {
	m := openManager(t, newTestService(t), NewMapContainer())
	a, b := &testFont{Family: "Sans"}, &testFont{Family: "Sans"}
	if err := m.SetName(a, "font1"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if err := m.SetName(b, "font2"); err != nil {
		t.Fatalf("equal but distinct values must be nameable separately: %v", err)
	}
	if name, _ := m.GetName(b); name != "font2" {
		t.Fatalf("expected font2, got %q", name)
	}
}

func TestUniqueNameSkipsTakenNames(t *testing.T) {
	container := NewMapContainer()
	mustAdd(t, container, "button1", &testButton{})
	m := openManager(t, newTestService(t), container)
	if err := m.SetName(&testButton{}, "button2"); err != nil {
		t.Fatalf("set name: %v", err)
	}

	if got := m.UniqueName("Button"); got != "button3" {
		t.Fatalf("expected button3, got %q", got)
	}
	if got := m.UniqueName("*widgets.Slider"); got != "slider1" {
		t.Fatalf("expected slider1, got %q", got)
	}
	if got := m.UniqueName(""); got != "object1" {
		t.Fatalf("expected object1, got %q", got)
	}
}

func TestContextStackMisusePanics(t *testing.T) {
	m := openManager(t, newTestService(t), NewMapContainer())
	outer, inner := &StatementContext{Owner: "outer"}, &StatementContext{Owner: "inner"}
	m.PushContext(outer)
	m.PushContext(inner)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("popping a context that is not on top should panic")
			}
		}()
		m.PopContext(outer)
	}()

	if m.Statements() != inner {
		t.Fatalf("innermost statement context should be returned")
	}
	m.PopContext(inner)
	m.PopContext(outer)
	if m.ContextDepth() != 0 {
		t.Fatalf("expected empty stack, got %d", m.ContextDepth())
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("popping an empty stack should panic")
		}
	}()
	m.PopContext(outer)
}

func TestGetInstanceLookupOrder(t *testing.T) {
	container := NewMapContainer()
	hosted := &testButton{Text: "hosted"}
	mustAdd(t, container, "hosted", hosted)

	m := openManager(t, newTestService(t), container)
	if got := m.GetInstance("hosted"); got != hosted {
		t.Fatalf("container should be consulted when names are preserved")
	}

	var asked []string
	pulled := &testButton{}
	m.withResolver(func(name string) (any, bool) {
		asked = append(asked, name)
		return pulled, false
	}, func() {
		if got := m.GetInstance("hosted"); got != hosted {
			t.Fatalf("resolver must not shadow known names")
		}
		if got := m.GetInstance("missing"); got != pulled {
			t.Fatalf("resolver should supply unknown names")
		}
	})
	if !reflect.DeepEqual(asked, []string{"missing"}) {
		t.Fatalf("resolver asked for %v", asked)
	}
	if m.GetInstance("missing") != nil {
		t.Fatalf("resolver should be uninstalled after the batch")
	}

	strict := openManager(t, newTestService(t), container, WithPreserveNames(false))
	if strict.GetInstance("hosted") != nil {
		t.Fatalf("container must be skipped without preserveNames")
	}
}

func TestCreateInstanceRecycling(t *testing.T) {
	container := NewMapContainer()
	existing := &testButton{Text: "keep"}
	stale := &testFont{}
	mustAdd(t, container, "button1", existing)
	mustAdd(t, container, "button2", stale)
	buttonType := reflect.TypeOf(&testButton{})

	m := openManager(t, newTestService(t), container, WithRecycleInstances(true))
	got, err := m.CreateInstance(buttonType, nil, "button1", true)
	if err != nil {
		t.Fatalf("recycle: %v", err)
	}
	if got != existing {
		t.Fatalf("expected the container instance to be recycled")
	}

	got, err = m.CreateInstance(buttonType, nil, "button2", true)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, ok := got.(*testButton); !ok {
		t.Fatalf("expected a fresh *testButton, got %T", got)
	}
	if hosted, _ := container.Component("button2"); hosted != got {
		t.Fatalf("container should hold the replacement")
	}

	fresh := openManager(t, newTestService(t), NewMapContainer())
	built, err := fresh.CreateInstance(buttonType, nil, "button9", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if name, _ := fresh.GetName(built); name != "button9" {
		t.Fatalf("created instance should be named, got %q", name)
	}
	if _, err := fresh.CreateInstance(nil, nil, "x", false); !errors.Is(err, ErrTypeNotFound) {
		t.Fatalf("expected ErrTypeNotFound for nil type, got %v", err)
	}
}

func TestReferenceFollowsContext(t *testing.T) {
	m := openManager(t, newTestService(t), NewMapContainer())
	if _, ok := m.Reference("button1").(*ir.VariableRef); !ok {
		t.Fatalf("expected a variable reference outside a root context")
	}

	root := &RootContext{Name: "form1", Expression: &ir.ThisRef{}, Fields: true}
	m.PushContext(root)
	defer m.PopContext(root)

	if _, ok := m.Reference("form1").(*ir.ThisRef); !ok {
		t.Fatalf("root should be referenced as this")
	}
	field, ok := m.Reference("button1").(*ir.FieldRef)
	if !ok || field.Name != "button1" {
		t.Fatalf("components should be this fields, got %#v", m.Reference("button1"))
	}
	m.markLocal("temp1")
	if _, ok := m.Reference("temp1").(*ir.VariableRef); !ok {
		t.Fatalf("locals should stay variables")
	}
	if m.RootName() != "form1" {
		t.Fatalf("root name should come from the context, got %q", m.RootName())
	}
}
