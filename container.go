package snapshot

import (
	"fmt"
	"sort"
)

// Container is the host that owns named components.
type Container interface {
	Add(name string, component any) error
	Component(name string) (any, bool)
	Names() []string
}

// NestedLookup is implemented by components that parent other components
// reachable through dotted names ("panel1.header").
type NestedLookup interface {
	Nested(name string) (any, bool)
}

// ModifierHost stores per-component access modifiers.
type ModifierHost interface {
	Modifier(name string) (string, bool)
	SetModifier(name, modifier string)
}

// MapContainer is an in-memory Container that keeps insertion order.
type MapContainer struct {
	order     []string
	items     map[string]any
	modifiers map[string]string
}

// NewMapContainer constructs an empty container.
func NewMapContainer() *MapContainer {
	return &MapContainer{
		items:     map[string]any{},
		modifiers: map[string]string{},
	}
}

// Add implements Container.
func (c *MapContainer) Add(name string, component any) error {
	if name == "" {
		return fmt.Errorf("snapshot: container name must not be empty")
	}
	if existing, ok := c.items[name]; ok {
		if sameInstance(existing, component) {
			return nil
		}
		return newError(ErrNameCollision, name, fmt.Errorf("container already holds %T", existing))
	}
	c.items[name] = component
	c.order = append(c.order, name)
	return nil
}

// Set replaces or adds the component under name.
func (c *MapContainer) Set(name string, component any) {
	if _, ok := c.items[name]; !ok {
		c.order = append(c.order, name)
	}
	c.items[name] = component
}

// Remove drops name.
func (c *MapContainer) Remove(name string) {
	if _, ok := c.items[name]; !ok {
		return
	}
	delete(c.items, name)
	delete(c.modifiers, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Component implements Container.
func (c *MapContainer) Component(name string) (any, bool) {
	value, ok := c.items[name]
	return value, ok
}

// Names implements Container.
func (c *MapContainer) Names() []string {
	return append([]string(nil), c.order...)
}

// NameOf returns the name component is registered under.
func (c *MapContainer) NameOf(component any) (string, bool) {
	for _, name := range c.order {
		if sameInstance(c.items[name], component) {
			return name, true
		}
	}
	return "", false
}

// Modifier implements ModifierHost.
func (c *MapContainer) Modifier(name string) (string, bool) {
	modifier, ok := c.modifiers[name]
	return modifier, ok
}

// SetModifier implements ModifierHost.
func (c *MapContainer) SetModifier(name, modifier string) {
	if modifier == "" {
		delete(c.modifiers, name)
		return
	}
	c.modifiers[name] = modifier
}

// Modifiers returns the names carrying a modifier, sorted.
func (c *MapContainer) Modifiers() []string {
	out := make([]string, 0, len(c.modifiers))
	for name := range c.modifiers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// containerNameOf finds component in any Container, using NameOf when the
// container offers it.
func containerNameOf(container Container, component any) (string, bool) {
	if container == nil {
		return "", false
	}
	if named, ok := container.(interface{ NameOf(any) (string, bool) }); ok {
		return named.NameOf(component)
	}
	for _, name := range container.Names() {
		if value, ok := container.Component(name); ok && sameInstance(value, component) {
			return name, true
		}
	}
	return "", false
}
