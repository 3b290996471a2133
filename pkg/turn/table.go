// Package turn drives the finite-state orchestration loop: a declarative
// state table, and the coordinator that schedules listening, image capture,
// oracle turns, timers, and speech around it.
package turn

import (
	"fmt"
	"sort"

	"github.com/harunnryd/remy/pkg/errorsx"
)

// StateDefinition describes one FSM state. Pure data, constructed once at
// startup and never mutated.
type StateDefinition struct {
	Name          string
	Goal          string
	AllowedNext   []string
	RequiresImage bool
}

// Allows reports whether name is a permitted successor.
func (d *StateDefinition) Allows(name string) bool {
	for _, n := range d.AllowedNext {
		if n == name {
			return true
		}
	}
	return false
}

// UnknownStateError reports a state name absent from the table. With a
// validated table this is unreachable at runtime; hitting it means a
// programming error.
type UnknownStateError struct {
	Name string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown state %q", e.Name)
}

// Table is an immutable lookup of state definitions.
type Table struct {
	states map[string]*StateDefinition
}

// NewTable builds and validates a table: every name appearing in any
// AllowedNext set must itself be a key. Terminal states (empty AllowedNext)
// are legal targets like any other.
func NewTable(defs []StateDefinition) (*Table, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("state table is empty")
	}
	states := make(map[string]*StateDefinition, len(defs))
	for i := range defs {
		d := defs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("state %d has no name", i)
		}
		if _, dup := states[d.Name]; dup {
			return nil, fmt.Errorf("duplicate state %q", d.Name)
		}
		sort.Strings(d.AllowedNext)
		states[d.Name] = &d
	}
	for _, d := range states {
		for _, next := range d.AllowedNext {
			if _, ok := states[next]; !ok {
				return nil, fmt.Errorf("state %q allows transition to undefined state %q", d.Name, next)
			}
		}
	}
	return &Table{states: states}, nil
}

// Get returns the definition for name. The definition is shared, never
// copied; callers must not mutate it.
func (t *Table) Get(name string) (*StateDefinition, error) {
	d, ok := t.states[name]
	if !ok {
		return nil, errorsx.Wrap(&UnknownStateError{Name: name}, errorsx.ReasonUnknownState)
	}
	return d, nil
}

// IsTerminal reports whether name has no successors. Unknown names are not
// terminal.
func (t *Table) IsTerminal(name string) bool {
	d, ok := t.states[name]
	return ok && len(d.AllowedNext) == 0
}

// Names returns the sorted state names.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.states))
	for name := range t.states {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
