package snapshot

import (
	"sync"

	"github.com/goliatone/go-snapshot/ir"
)

// CacheEntry is the output produced for one component.
type CacheEntry struct {
	Name         string
	Statements   ir.Statements
	Resources    map[string]any
	Metadata     map[string]any
	ResourceRefs []string
	// Referenced and Provenance hold the session bookkeeping the
	// serializers recorded while producing Statements.
	Referenced   []string
	Provenance   []Provenance
	Dependencies map[string]identity
	Valid        bool
	Tracking     bool
}

// ComponentCache memoizes serializer output per component across sessions.
// An entry is reused only while every name it references still resolves to
// the same instance; hosts call Invalidate when a component changes.
type ComponentCache struct {
	mu      sync.Mutex
	entries map[identity]*CacheEntry
	hits    int
	misses  int
}

// NewComponentCache constructs an empty cache.
func NewComponentCache() *ComponentCache {
	return &ComponentCache{entries: map[identity]*CacheEntry{}}
}

// Lookup returns the entry for value when it is still valid for m's
// session. Tracking entries are dropped so the component is regenerated.
func (c *ComponentCache) Lookup(m *Manager, value any) (*CacheEntry, bool) {
	if c == nil {
		return nil, false
	}
	id, ok := identityOf(value)
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok || !entry.Valid {
		c.misses++
		return nil, false
	}
	if entry.Tracking {
		delete(c.entries, id)
		c.misses++
		return nil, false
	}
	for name, dep := range entry.Dependencies {
		current, found := m.lookup(name)
		if !found {
			entry.Valid = false
			c.misses++
			return nil, false
		}
		if currentID, ok := identityOf(current); !ok || currentID != dep {
			entry.Valid = false
			c.misses++
			return nil, false
		}
	}
	c.hits++
	return entry, true
}

// Store records the output for value. locals lists the local declarations
// the output introduced; any local besides the component itself marks the
// entry as tracking.
func (c *ComponentCache) Store(m *Manager, value any, entry *CacheEntry, locals []string) {
	if c == nil || entry == nil {
		return
	}
	id, ok := identityOf(value)
	if !ok {
		return
	}
	entry.Valid = true
	for _, local := range locals {
		if local != entry.Name {
			entry.Tracking = true
			break
		}
	}
	if entry.Dependencies == nil {
		entry.Dependencies = map[string]identity{}
	}
	for _, name := range statementReferences(entry.Statements, m.RootName()) {
		if instance, found := m.lookup(name); found {
			if depID, ok := identityOf(instance); ok {
				entry.Dependencies[name] = depID
			}
		}
	}

	c.mu.Lock()
	c.entries[id] = entry
	c.mu.Unlock()
}

// Invalidate marks the entry for value stale, along with every entry that
// depends on it.
func (c *ComponentCache) Invalidate(value any) {
	if c == nil {
		return
	}
	id, ok := identityOf(value)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidate(id, map[identity]bool{})
}

func (c *ComponentCache) invalidate(id identity, seen map[identity]bool) {
	if seen[id] {
		return
	}
	seen[id] = true
	if entry, ok := c.entries[id]; ok {
		entry.Valid = false
	}
	for other, entry := range c.entries {
		for _, dep := range entry.Dependencies {
			if dep == id {
				c.invalidate(other, seen)
				break
			}
		}
	}
}

// Reset drops every entry.
func (c *ComponentCache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = map[identity]*CacheEntry{}
	c.mu.Unlock()
}

// Len reports the number of entries, valid or not.
func (c *ComponentCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports lookup hits and misses.
func (c *ComponentCache) Stats() (hits, misses int) {
	if c == nil {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// statementReferences lists the names stmts read or write, in encounter
// order.
func statementReferences(stmts ir.Statements, root string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(names ...string) {
		for _, name := range names {
			if name != "" && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	for _, stmt := range stmts {
		add(ir.Target(stmt, root))
		switch s := stmt.(type) {
		case *ir.Declaration:
			add(ir.References(s.Init, root)...)
		case *ir.Assignment:
			add(ir.References(s.Left, root)...)
			add(ir.References(s.Right, root)...)
		case *ir.Call:
			add(ir.References(s.Target, root)...)
			for _, arg := range s.Args {
				add(ir.References(arg, root)...)
			}
		case *ir.ExpressionStatement:
			add(ir.References(s.Expr, root)...)
		}
	}
	return out
}

// replay reapplies the resources and session bookkeeping of a cached entry
// to m.
func (e *CacheEntry) replay(m *Manager) error {
	var errs ErrorList
	for key, value := range e.Resources {
		if _, err := m.Resources().SetValue(key, value, false, true); err != nil {
			errs.add(newError(ErrNonSerializableResource, key, err))
		}
	}
	for key, value := range e.Metadata {
		if err := m.Resources().SetMetadata(key, value); err != nil {
			errs.add(newError(ErrNonSerializableResource, key, err))
		}
	}
	for _, member := range e.ResourceRefs {
		m.noteResourceRef(e.Name, member)
	}
	for _, name := range e.Referenced {
		m.markReferenced(name)
	}
	for _, p := range e.Provenance {
		m.noteProvenance(p)
	}
	return errs.Err()
}
