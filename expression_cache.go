package snapshot

import "github.com/goliatone/go-snapshot/ir"

// ExpressionCache remembers the expression already emitted for a value. It
// keys by identity and never keeps the value alive.
type ExpressionCache struct {
	entries map[identity]expressionEntry
}

type expressionEntry struct {
	expr   ir.Expression
	preset bool
}

// NewExpressionCache constructs an empty cache.
func NewExpressionCache() *ExpressionCache {
	return &ExpressionCache{entries: map[identity]expressionEntry{}}
}

// Get returns the cached expression for value and whether it was preset by
// the caller rather than generated by a serializer.
func (c *ExpressionCache) Get(value any) (expr ir.Expression, preset bool, ok bool) {
	if c == nil {
		return nil, false, false
	}
	id, valid := identityOf(value)
	if !valid {
		return nil, false, false
	}
	entry, ok := c.entries[id]
	return entry.expr, entry.preset, ok
}

// Set caches expr for value. Values without identity are ignored and Set
// returns false. A preset entry is never replaced by a generated one.
func (c *ExpressionCache) Set(value any, expr ir.Expression, preset bool) bool {
	if c == nil || expr == nil {
		return false
	}
	id, valid := identityOf(value)
	if !valid {
		return false
	}
	if existing, ok := c.entries[id]; ok && existing.preset && !preset {
		return true
	}
	c.entries[id] = expressionEntry{expr: expr, preset: preset}
	return true
}

// Remove drops the entry for value.
func (c *ExpressionCache) Remove(value any) {
	if c == nil {
		return
	}
	if id, ok := identityOf(value); ok {
		delete(c.entries, id)
	}
}

// Len reports the number of cached entries.
func (c *ExpressionCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}
