package snapshot

import "github.com/goliatone/go-snapshot/ir"

type slotState int

const (
	slotUnresolved slotState = iota
	slotInProgress
	slotResolved
)

func (s slotState) String() string {
	switch s {
	case slotInProgress:
		return "in-progress"
	case slotResolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

type slot struct {
	state      slotState
	statements ir.Statements
	instance   any
}

// StatementTable groups statements by the name they target. Groups keep the
// order their first statement was seen in, and statements keep their order
// within a group.
type StatementTable struct {
	order []string
	slots map[string]*slot
}

// NewStatementTable constructs an empty table.
func NewStatementTable() *StatementTable {
	return &StatementTable{slots: map[string]*slot{}}
}

// Add appends stmts to the group for name.
func (t *StatementTable) Add(name string, stmts ...ir.Statement) {
	s, ok := t.slots[name]
	if !ok {
		s = &slot{}
		t.slots[name] = s
		t.order = append(t.order, name)
	}
	s.statements = append(s.statements, stmts...)
}

// Names lists group names in insertion order.
func (t *StatementTable) Names() []string {
	return append([]string(nil), t.order...)
}

// Statements returns the group for name.
func (t *StatementTable) Statements(name string) ir.Statements {
	if s, ok := t.slots[name]; ok {
		return s.statements
	}
	return nil
}

// Len reports the number of groups.
func (t *StatementTable) Len() int {
	return len(t.order)
}

func (t *StatementTable) slot(name string) (*slot, bool) {
	s, ok := t.slots[name]
	return s, ok
}

// FillStatementTable groups statements by target into table and returns
// names extended with every table name it did not already list. root is the
// name ThisRef targets. Statements with no target are dropped.
func FillStatementTable(table *StatementTable, statements ir.Statements, root string, names []string) []string {
	for _, stmt := range statements {
		target := ir.Target(stmt, root)
		if target == "" {
			continue
		}
		table.Add(target, stmt)
	}

	out := append([]string(nil), names...)
	listed := make(map[string]struct{}, len(out))
	for _, name := range out {
		listed[name] = struct{}{}
	}
	for _, name := range table.order {
		if _, ok := listed[name]; !ok {
			listed[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
