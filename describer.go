package snapshot

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// MemberKind separates plain properties from event bindings.
type MemberKind int

const (
	PropertyMember MemberKind = iota
	EventMember
)

func (k MemberKind) String() string {
	if k == EventMember {
		return "event"
	}
	return "property"
}

// Member describes one serializable member of a type.
type Member struct {
	Name        string
	Kind        MemberKind
	Type        reflect.Type
	Default     any
	HasDefault  bool
	DesignOnly  bool
	Localizable bool

	index []int
}

// MemberFilter lets a value veto individual members, for state that only
// matters under some conditions.
type MemberFilter interface {
	ShouldSerializeMember(name string) bool
}

// Describer supplies member metadata for a type.
type Describer interface {
	Members(typ reflect.Type) []Member
}

// FindMember returns the member called name on typ.
func FindMember(d Describer, typ reflect.Type, name string) (Member, bool) {
	for _, member := range d.Members(typ) {
		if member.Name == name {
			return member, true
		}
	}
	return Member{}, false
}

// Value reads the member from owner.
func (m Member) Value(owner any) (any, error) {
	field, err := m.field(owner, false)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// SetValue writes value, which must already be assignable to the member type.
func (m Member) SetValue(owner any, value any) error {
	field, err := m.field(owner, true)
	if err != nil {
		return err
	}
	if value == nil {
		field.Set(reflect.Zero(m.Type))
		return nil
	}
	rv := reflect.ValueOf(value)
	if !rv.Type().AssignableTo(m.Type) {
		return fmt.Errorf("%w: member %s expects %s, got %s", ErrSerializationMismatch, m.Name, m.Type, rv.Type())
	}
	field.Set(rv)
	return nil
}

// ShouldSerialize reports whether the member differs from its default.
func (m Member) ShouldSerialize(owner any) bool {
	if filter, ok := owner.(MemberFilter); ok && !filter.ShouldSerializeMember(m.Name) {
		return false
	}
	field, err := m.field(owner, false)
	if err != nil {
		return false
	}
	if m.HasDefault {
		return !reflect.DeepEqual(field.Interface(), m.Default)
	}
	return !field.IsZero()
}

// CanReset reports whether Reset would change owner.
func (m Member) CanReset(owner any) bool {
	field, err := m.field(owner, true)
	if err != nil {
		return false
	}
	return field.CanSet()
}

// Reset restores the member default, or the zero value when none is declared.
func (m Member) Reset(owner any) error {
	if m.HasDefault {
		return m.SetValue(owner, m.Default)
	}
	return m.SetValue(owner, nil)
}

// DefaultValue returns the declared default or the zero value.
func (m Member) DefaultValue() any {
	if m.HasDefault {
		return m.Default
	}
	return reflect.Zero(m.Type).Interface()
}

func (m Member) field(owner any, settable bool) (reflect.Value, error) {
	rv := reflect.ValueOf(owner)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("snapshot: member %s on nil owner", m.Name)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("snapshot: member %s on non-struct %s", m.Name, rv.Type())
	}
	field := rv.FieldByIndex(m.index)
	if settable && !field.CanSet() {
		return reflect.Value{}, fmt.Errorf("snapshot: member %s is not settable on %s", m.Name, rv.Type())
	}
	return field, nil
}

// TagDescriber derives members from exported struct fields and the
// `snapshot:"name,default=..,designonly,localizable,event"` tag.
type TagDescriber struct {
	mu    sync.RWMutex
	cache map[reflect.Type][]Member
}

// NewTagDescriber constructs the default describer.
func NewTagDescriber() *TagDescriber {
	return &TagDescriber{cache: make(map[reflect.Type][]Member)}
}

// Members implements Describer.
func (d *TagDescriber) Members(typ reflect.Type) []Member {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil
	}
	d.mu.RLock()
	members, ok := d.cache[typ]
	d.mu.RUnlock()
	if ok {
		return members
	}
	members = collectMembers(typ, nil)
	d.mu.Lock()
	d.cache[typ] = members
	d.mu.Unlock()
	return members
}

func collectMembers(typ reflect.Type, prefix []int) []Member {
	var members []Member
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		index := append(append([]int(nil), prefix...), i)
		tag, hasTag := field.Tag.Lookup("snapshot")
		if field.Anonymous && !hasTag && field.Type.Kind() == reflect.Struct {
			members = append(members, collectMembers(field.Type, index)...)
			continue
		}
		if !field.IsExported() {
			continue
		}
		member, skip := parseMemberTag(field, tag)
		if skip {
			continue
		}
		member.index = index
		members = append(members, member)
	}
	return members
}

func parseMemberTag(field reflect.StructField, tag string) (Member, bool) {
	member := Member{Name: field.Name, Type: field.Type}
	if tag == "" {
		return member, false
	}
	segments := strings.Split(tag, ",")
	if strings.TrimSpace(segments[0]) == "-" {
		return Member{}, true
	}
	if name := strings.TrimSpace(segments[0]); name != "" {
		member.Name = name
	}
	for _, segment := range segments[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(segment), "=")
		switch key {
		case "designonly":
			member.DesignOnly = true
		case "localizable":
			member.Localizable = true
		case "event":
			member.Kind = EventMember
		case "default":
			if parsed, err := parseScalar(field.Type, value); err == nil {
				member.Default = parsed
				member.HasDefault = true
			}
		}
	}
	return member, false
}

// parseScalar converts a tag default into a value of typ.
func parseScalar(typ reflect.Type, raw string) (any, error) {
	var (
		value any
		err   error
	)
	switch typ.Kind() {
	case reflect.Bool:
		value, err = strconv.ParseBool(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value, err = strconv.ParseInt(raw, 10, typ.Bits())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		value, err = strconv.ParseUint(raw, 10, typ.Bits())
	case reflect.Float32, reflect.Float64:
		value, err = strconv.ParseFloat(raw, typ.Bits())
	case reflect.String:
		value = raw
	default:
		return nil, fmt.Errorf("snapshot: default not supported for %s", typ)
	}
	if err != nil {
		return nil, err
	}
	return reflect.ValueOf(value).Convert(typ).Interface(), nil
}
