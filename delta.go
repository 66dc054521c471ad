package snapshot

import (
	"fmt"
	"reflect"
)

// Delta returns the members of modified that are not accounted for by
// original. Matching is by multiset membership: each value of original
// consumes one equal value of modified. Unmatched values ahead of the first
// match are treated as already consumed; if nothing matches at all the whole
// of modified is new.
func Delta[T comparable](original, modified []T) []T {
	return DeltaFunc(original, modified, func(v T) T { return v })
}

// DeltaFunc is Delta for values compared through key.
func DeltaFunc[T any, K comparable](original, modified []T, key func(T) K) []T {
	if len(original) == 0 {
		return modified
	}
	counts := make(map[K]int, len(original))
	for _, v := range original {
		counts[key(v)]++
	}

	result := make([]T, 0)
	matched := false
	for _, v := range modified {
		k := key(v)
		if counts[k] > 0 {
			counts[k]--
			matched = true
			continue
		}
		if matched {
			result = append(result, v)
		}
	}
	if !matched {
		return modified
	}
	return result
}

type valueKey struct {
	id   identity
	repr string
}

// keyOf gives reference values their identity and everything else a
// printable form, so slices of structs or maps can be diffed.
func keyOf(value any) valueKey {
	if id, ok := identityOf(value); ok {
		return valueKey{id: id}
	}
	if value != nil && reflect.TypeOf(value).Comparable() {
		return valueKey{repr: fmt.Sprintf("%T:%#v", value, value)}
	}
	return valueKey{repr: fmt.Sprintf("%T:%+v", value, value)}
}

func sliceItems(value any) []any {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
