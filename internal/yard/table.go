// Package yard is the Yard Route Execution component (part of C9, §4.11):
// a keyed route table, a two-hex-digit key entry accumulator, and a
// stepped (one turnout per tick) executor.
package yard

import "github.com/hotrack/layoutctl/types"

// Step is one (turnout, position) command in a route.
type Step struct {
	Turnout int
	Target  types.Position
}

// Table maps a route key to its ordered steps. Keys are the table's own
// representation: "R45" for the forward route keyed by digits 4,5; "r45"
// for its lowercase mirror entry used for reverse traversal; "X01" etc.
// for composite "all turnouts to normal for this track" entries.
type Table struct {
	routes map[string][]Step
}

// NewTable builds a Table from a key->steps map.
func NewTable(routes map[string][]Step) *Table {
	return &Table{routes: routes}
}

// Lookup returns key's steps, or false if the key is unknown.
func (t *Table) Lookup(key string) ([]Step, bool) {
	steps, ok := t.routes[key]
	return steps, ok
}
