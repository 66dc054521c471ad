package snapshot

import (
	"errors"

	"github.com/goliatone/go-snapshot/ir"
	"github.com/goliatone/go-snapshot/resources"
)

// collectionSerializer emits only the items current adds to base. When
// current is not base plus appended items the whole collection is assigned.
type collectionSerializer struct{}

func (collectionSerializer) SerializeCollection(m *Manager, target ir.Expression, member Member, base, current any) (ir.Statements, error) {
	assign := func() (ir.Statements, error) {
		expr, err := m.SerializeValue(current)
		if err != nil {
			return nil, err
		}
		return ir.Statements{ir.Assign(target, expr)}, nil
	}
	if base == nil {
		return assign()
	}

	baseItems := sliceItems(base)
	currentItems := sliceItems(current)
	if len(currentItems) == 0 {
		if len(baseItems) == 0 {
			return nil, nil
		}
		empty := &ir.ArrayCreate{ElementType: m.Types().NameOf(member.Type.Elem()), Rank: 1, Items: []ir.Expression{}}
		return ir.Statements{ir.Assign(target, empty)}, nil
	}

	delta := DeltaFunc(baseItems, currentItems, keyOf)
	if !appends(baseItems, delta, currentItems) {
		return assign()
	}
	stmts := make(ir.Statements, 0, len(delta))
	for _, item := range delta {
		expr, err := m.SerializeValue(item)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, &ir.Call{Target: target, Method: "Add", Args: []ir.Expression{expr}})
	}
	return stmts, nil
}

// appends reports whether current is exactly base followed by delta.
func appends(base, delta, current []any) bool {
	if len(base)+len(delta) != len(current) {
		return false
	}
	for i, item := range base {
		if keyOf(item) != keyOf(current[i]) {
			return false
		}
	}
	for i, item := range delta {
		if keyOf(item) != keyOf(current[len(base)+i]) {
			return false
		}
	}
	return true
}

// resourceSerializer writes values into the active culture and reads them
// back through a ResourceRef.
type resourceSerializer struct{}

func (resourceSerializer) SerializeResource(m *Manager, key string, value any, ensureInvariant bool) (ir.Expression, error) {
	if _, err := m.Resources().SetValue(key, value, false, ensureInvariant); err != nil {
		if errors.Is(err, resources.ErrNotSerializable) {
			return nil, newError(ErrNonSerializableResource, key, err)
		}
		return nil, err
	}
	return &ir.ResourceRef{Key: key}, nil
}
