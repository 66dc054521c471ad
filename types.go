package snapshot

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// Constructor builds a new instance from evaluated constructor arguments.
type Constructor func(args ...any) (any, error)

// Provenance records where a type name came from so it can be resolved on a
// host without the short name registered.
type Provenance struct {
	Type   string `json:"type"`
	Origin string `json:"origin,omitempty"`
}

// TypeRegistry maps type names to runtime types.
type TypeRegistry struct {
	mu           sync.RWMutex
	byName       map[string]reflect.Type
	names        map[reflect.Type]string
	constructors map[reflect.Type]Constructor
}

var builtinTypes = map[string]reflect.Type{
	"bool":    reflect.TypeOf(false),
	"string":  reflect.TypeOf(""),
	"int":     reflect.TypeOf(int(0)),
	"int8":    reflect.TypeOf(int8(0)),
	"int16":   reflect.TypeOf(int16(0)),
	"int32":   reflect.TypeOf(int32(0)),
	"int64":   reflect.TypeOf(int64(0)),
	"uint":    reflect.TypeOf(uint(0)),
	"uint8":   reflect.TypeOf(uint8(0)),
	"uint16":  reflect.TypeOf(uint16(0)),
	"uint32":  reflect.TypeOf(uint32(0)),
	"uint64":  reflect.TypeOf(uint64(0)),
	"float32": reflect.TypeOf(float32(0)),
	"float64": reflect.TypeOf(float64(0)),
	"any":     reflect.TypeOf((*any)(nil)).Elem(),

	"time.Time":     reflect.TypeOf(time.Time{}),
	"time.Duration": reflect.TypeOf(time.Duration(0)),
}

// NewTypeRegistry constructs an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		byName:       make(map[string]reflect.Type),
		names:        make(map[reflect.Type]string),
		constructors: make(map[reflect.Type]Constructor),
	}
}

// Register stores typ under name and under its package-qualified name. The
// type is normalised to its element when a pointer is given.
func (r *TypeRegistry) Register(name string, typ reflect.Type) error {
	if typ == nil {
		return fmt.Errorf("snapshot: type %q is nil", name)
	}
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if name == "" {
		name = typ.Name()
	}
	if name == "" {
		return fmt.Errorf("snapshot: type %s needs an explicit name", typ)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[name]; ok && existing != typ {
		return fmt.Errorf("snapshot: type name %q already registered for %s", name, existing)
	}
	r.byName[name] = typ
	if qualified := qualifiedName(typ); qualified != "" {
		r.byName[qualified] = typ
	}
	if _, ok := r.names[typ]; !ok {
		r.names[typ] = name
	}
	return nil
}

// RegisterConstructor attaches a constructor used instead of reflect.New.
func (r *TypeRegistry) RegisterConstructor(name string, typ reflect.Type, ctor Constructor) error {
	if err := r.Register(name, typ); err != nil {
		return err
	}
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	r.mu.Lock()
	r.constructors[typ] = ctor
	r.mu.Unlock()
	return nil
}

// Register is a generic shorthand for TypeRegistry.Register.
func Register[T any](r *TypeRegistry, name string) error {
	return r.Register(name, reflect.TypeOf((*T)(nil)).Elem())
}

// NameOf returns the textual name used for typ in statements.
func (r *TypeRegistry) NameOf(typ reflect.Type) string {
	if typ == nil {
		return "nil"
	}
	switch typ.Kind() {
	case reflect.Pointer:
		return "*" + r.NameOf(typ.Elem())
	case reflect.Slice:
		return "[]" + r.NameOf(typ.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", typ.Len(), r.NameOf(typ.Elem()))
	case reflect.Map:
		return "map[" + r.NameOf(typ.Key()) + "]" + r.NameOf(typ.Elem())
	}
	r.mu.RLock()
	name, ok := r.names[typ]
	r.mu.RUnlock()
	if ok {
		return name
	}
	if typ.PkgPath() == "" && typ.Name() != "" {
		return typ.Name()
	}
	if typ.Kind() == reflect.Interface && typ.NumMethod() == 0 {
		return "any"
	}
	if qualified := qualifiedName(typ); qualified != "" {
		return qualified
	}
	return typ.String()
}

// Resolve maps name to a type, handling pointer, slice, array and map
// composites around registered or builtin names.
func (r *TypeRegistry) Resolve(name string) (reflect.Type, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: empty type name", ErrTypeNotFound)
	case strings.HasPrefix(name, "*"):
		elem, err := r.Resolve(name[1:])
		if err != nil {
			return nil, err
		}
		return reflect.PointerTo(elem), nil
	case strings.HasPrefix(name, "[]"):
		elem, err := r.Resolve(name[2:])
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	case strings.HasPrefix(name, "["):
		end := strings.Index(name, "]")
		if end < 0 {
			return nil, fmt.Errorf("%w: malformed array type %q", ErrTypeNotFound, name)
		}
		var n int
		if _, err := fmt.Sscanf(name[1:end], "%d", &n); err != nil {
			return nil, fmt.Errorf("%w: malformed array type %q", ErrTypeNotFound, name)
		}
		elem, err := r.Resolve(name[end+1:])
		if err != nil {
			return nil, err
		}
		return reflect.ArrayOf(n, elem), nil
	case strings.HasPrefix(name, "map["):
		key, elem, ok := splitMapType(name)
		if !ok {
			return nil, fmt.Errorf("%w: malformed map type %q", ErrTypeNotFound, name)
		}
		keyType, err := r.Resolve(key)
		if err != nil {
			return nil, err
		}
		elemType, err := r.Resolve(elem)
		if err != nil {
			return nil, err
		}
		return reflect.MapOf(keyType, elemType), nil
	}

	r.mu.RLock()
	typ, ok := r.byName[name]
	r.mu.RUnlock()
	if ok {
		return typ, nil
	}
	if typ, ok := builtinTypes[name]; ok {
		return typ, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrTypeNotFound, name)
}

// ResolveWithProvenance falls back to the recorded origin of name when the
// short name is not registered on this host.
func (r *TypeRegistry) ResolveWithProvenance(name string, provenance []Provenance) (reflect.Type, error) {
	typ, err := r.Resolve(name)
	if err == nil {
		return typ, nil
	}
	base := strings.TrimLeft(name, "*[]")
	for _, p := range provenance {
		if p.Type != base || p.Origin == "" {
			continue
		}
		qualified := strings.Replace(name, base, p.Origin+"."+base, 1)
		if resolved, qerr := r.Resolve(qualified); qerr == nil {
			return resolved, nil
		}
	}
	return nil, err
}

// ProvenanceOf describes typ for a payload's provenance list.
func (r *TypeRegistry) ProvenanceOf(typ reflect.Type) (Provenance, bool) {
	for typ != nil && isComposite(typ.Kind()) {
		typ = typ.Elem()
	}
	if typ == nil || typ.PkgPath() == "" {
		return Provenance{}, false
	}
	return Provenance{Type: r.NameOf(typ), Origin: typ.PkgPath()}, true
}

// HasConstructor reports whether typ, or the type it points to, was
// registered with a constructor.
func (r *TypeRegistry) HasConstructor(typ reflect.Type) bool {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.constructors[typ] != nil
}

// New constructs a value of typ. Struct types are returned as pointers.
func (r *TypeRegistry) New(typ reflect.Type, args ...any) (any, error) {
	base := typ
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	r.mu.RLock()
	ctor := r.constructors[base]
	r.mu.RUnlock()
	if ctor != nil {
		value, err := ctor(args...)
		if err != nil {
			return nil, fmt.Errorf("snapshot: construct %s: %w", r.NameOf(base), err)
		}
		return value, nil
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("snapshot: %s takes no constructor arguments without a registered constructor", r.NameOf(base))
	}
	switch base.Kind() {
	case reflect.Struct:
		return reflect.New(base).Interface(), nil
	case reflect.Map:
		return reflect.MakeMap(base).Interface(), nil
	case reflect.Slice:
		return reflect.MakeSlice(base, 0, 0).Interface(), nil
	default:
		return reflect.New(base).Elem().Interface(), nil
	}
}

// Names lists every registered short and qualified name.
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func isComposite(kind reflect.Kind) bool {
	switch kind {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return true
	default:
		return false
	}
}

func qualifiedName(typ reflect.Type) string {
	if typ.PkgPath() == "" || typ.Name() == "" {
		return ""
	}
	return typ.PkgPath() + "." + typ.Name()
}

func splitMapType(name string) (key, elem string, ok bool) {
	depth := 0
	for i := len("map"); i < len(name); i++ {
		switch name[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return name[len("map["):i], name[i+1:], true
			}
		}
	}
	return "", "", false
}
