package snapshot

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Function is a helper callable from snippet expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry holds the helpers exposed to snippet evaluators. Names
// are case-insensitive and stored lower-cased, which is how snippets must
// call them.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{funcs: map[string]Function{}}
}

func functionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds fn under name. Empty names, nil functions and duplicates
// are rejected.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := functionKey(name)
	switch {
	case key == "":
		return errorf(ErrMissingService, name, "function name must not be empty")
	case fn == nil:
		return errorf(ErrMissingService, name, "function is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = map[string]Function{}
	}
	if _, taken := r.funcs[key]; taken {
		return newError(ErrNameCollision, key, errors.New("function already registered"))
	}
	r.funcs[key] = fn
	return nil
}

// Has reports whether name is registered.
func (r *FunctionRegistry) Has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

func (r *FunctionRegistry) lookup(name string) (Function, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[functionKey(name)]
	return fn, ok
}

// Call runs the helper registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	fn, ok := r.lookup(name)
	if !ok {
		return nil, errorf(ErrNoEvaluator, name, "function not registered")
	}
	return fn(args...)
}

// Clone copies the registry so evaluators are unaffected by later
// registrations.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &FunctionRegistry{funcs: make(map[string]Function, len(r.funcs))}
	for key, fn := range r.funcs {
		out.funcs[key] = fn
	}
	return out
}

// Names lists the registered keys in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.funcs))
	for key := range r.funcs {
		names = append(names, key)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
