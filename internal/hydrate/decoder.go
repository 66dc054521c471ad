package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Context identifies the value being hydrated, for hooks and error messages.
type Context struct {
	Key     string
	Culture string
}

// PreHook lets callers normalise a raw value before it is coerced.
type PreHook func(Context, any) (any, error)

// PostHook lets callers adjust or validate the hydrated value.
type PostHook func(Context, reflect.Value) error

// Option configures a Decoder.
type Option func(*Decoder)

// Decoder turns loosely typed values (JSON-decoded resource entries, literal
// values from the intermediate form) into values of a concrete reflect.Type.
type Decoder struct {
	preHooks     []PreHook
	postHooks    []PostHook
	configureDec []func(*json.Decoder)
}

// WithPreHook applies hook prior to coercion.
func WithPreHook(hook PreHook) Option {
	return func(d *Decoder) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after coercion completes.
func WithPostHook(hook PostHook) Option {
	return func(d *Decoder) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithDisallowUnknownFields rejects JSON fields the target type lacks.
func WithDisallowUnknownFields() Option {
	return func(d *Decoder) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

// NewDecoder builds a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode coerces value into target. Direct assignment and numeric/string
// conversions are tried first; anything else goes through a JSON round trip.
func (d *Decoder) Decode(ctx Context, value any, target reflect.Type) (reflect.Value, error) {
	if target == nil {
		return reflect.Value{}, fmt.Errorf("hydrate: target type is nil for key %q", ctx.Key)
	}

	current := value
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("hydrate: pre-hook for key %q failed: %w", ctx.Key, err)
		}
		current = next
	}

	result, err := d.coerce(ctx, current, target)
	if err != nil {
		return reflect.Value{}, err
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, result); err != nil {
			return reflect.Value{}, fmt.Errorf("hydrate: post-hook for key %q failed: %w", ctx.Key, err)
		}
	}
	return result, nil
}

func (d *Decoder) coerce(ctx Context, value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(target) {
		out := reflect.New(target).Elem()
		out.Set(rv)
		return out, nil
	}
	if number, ok := value.(json.Number); ok && isNumeric(target.Kind()) {
		return convertNumber(ctx, number, target)
	}
	if convertible(rv.Type(), target) {
		return rv.Convert(target), nil
	}

	buffer, err := json.Marshal(value)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("hydrate: marshal key %q: %w", ctx.Key, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	for _, configure := range d.configureDec {
		if configure != nil {
			configure(decoder)
		}
	}
	out := reflect.New(target)
	if err := decoder.Decode(out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("hydrate: decode key %q into %s: %w", ctx.Key, target, err)
	}
	return out.Elem(), nil
}

// convertible limits reflect conversions to numeric<->numeric and
// string<->string; reflect would otherwise turn ints into runes.
func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	switch {
	case isNumeric(from.Kind()) && isNumeric(to.Kind()):
		return true
	case from.Kind() == reflect.String && to.Kind() == reflect.String:
		return true
	case from.Kind() == reflect.Bool && to.Kind() == reflect.Bool:
		return true
	default:
		return false
	}
}

func convertNumber(ctx Context, number json.Number, target reflect.Type) (reflect.Value, error) {
	switch target.Kind() {
	case reflect.Float32, reflect.Float64:
		f, err := number.Float64()
		if err != nil {
			return reflect.Value{}, fmt.Errorf("hydrate: key %q: %w", ctx.Key, err)
		}
		return reflect.ValueOf(f).Convert(target), nil
	default:
		i, err := number.Int64()
		if err != nil {
			return reflect.Value{}, fmt.Errorf("hydrate: key %q: %w", ctx.Key, err)
		}
		return reflect.ValueOf(i).Convert(target), nil
	}
}

func isNumeric(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
