package snapshot

import (
	"reflect"
	"testing"
)

type testFont struct {
	Family string
	Size   float64
}

type testButton struct {
	Text    string
	Width   int `snapshot:",default=75"`
	Tags    []string
	OnClick string `snapshot:",event"`
	Tooltip string `snapshot:",localizable"`
	Locked  bool   `snapshot:",designonly"`
	Next    *testButton
	Scratch func() `snapshot:"-"`
}

type testForm struct {
	Title    string
	Controls []*testButton
	Font     *testFont
	Options  map[string]int
	Handle   chan int

	inits []string
}

func (f *testForm) BeginInit() { f.inits = append(f.inits, "begin") }
func (f *testForm) EndInit()   { f.inits = append(f.inits, "end") }

// testPanel parents nested components reachable as "panel1.header".
type testPanel struct {
	Caption  string
	Children map[string]*testButton `snapshot:"-"`
}

func (p *testPanel) Nested(name string) (any, bool) {
	child, ok := p.Children[name]
	return child, ok
}

type testLinked struct {
	Label string
	Peer  *testLinked `snapshot:"-"`
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	types := NewTypeRegistry()
	for name, typ := range map[string]reflect.Type{
		"Font":   reflect.TypeOf(testFont{}),
		"Button": reflect.TypeOf(testButton{}),
		"Form":   reflect.TypeOf(testForm{}),
		"Panel":  reflect.TypeOf(testPanel{}),
	} {
		if err := types.Register(name, typ); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	err := types.RegisterConstructor("Linked", reflect.TypeOf(testLinked{}), func(args ...any) (any, error) {
		l := &testLinked{}
		if len(args) > 0 {
			if peer, ok := args[0].(*testLinked); ok {
				l.Peer = peer
			}
		}
		return l, nil
	})
	if err != nil {
		t.Fatalf("register Linked: %v", err)
	}
	return New(append([]Option{WithTypes(types)}, opts...)...)
}

func openManager(t *testing.T, svc *Service, container Container, opts ...DeserializeOption) *Manager {
	t.Helper()
	m := svc.NewManager(container, nil, opts...)
	session, err := m.CreateSession()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return m
}

func mustAdd(t *testing.T, c *MapContainer, name string, component any) {
	t.Helper()
	if err := c.Add(name, component); err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
}
