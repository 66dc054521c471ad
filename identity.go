package snapshot

import "reflect"

// identity keys tables by reference rather than by value, so two distinct
// pointers to equal structs stay distinct and maps can be used as keys.
type identity struct {
	typ reflect.Type
	ptr uintptr
	len int
}

func identityOf(value any) (identity, bool) {
	if value == nil {
		return identity{}, false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Slice:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer(), len: rv.Len()}, true
	default:
		return identity{}, false
	}
}

func sameInstance(a, b any) bool {
	ia, okA := identityOf(a)
	ib, okB := identityOf(b)
	if okA && okB {
		return ia == ib
	}
	if okA != okB {
		return false
	}
	return reflect.DeepEqual(a, b)
}
