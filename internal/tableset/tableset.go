// Package tableset implements the table-set algebra used to prove that every
// table referenced by a clause is supplied by a sibling clause.
//
// Sets are immutable values. Identity is the table name: two tables with the
// same name are the same table, regardless of their columns or requirements.
package tableset

import (
	"slices"
	"strings"
)

// Table is a named relation with an ordered column list.
//
// A plain table requires nothing. A derived table (for example a subquery
// aliased as a table) requires the tables its definition reads from.
type Table struct {
	name     string
	columns  []string
	requires Set
}

// NewTable creates a base table with no requirements.
func NewTable(name string, columns ...string) Table {
	return Table{name: name, columns: slices.Clone(columns)}
}

// DerivedTable creates a table whose definition depends on other tables.
func DerivedTable(name string, requires Set, columns ...string) Table {
	return Table{name: name, columns: slices.Clone(columns), requires: requires}
}

// Name returns the table identifier.
func (t Table) Name() string { return t.name }

// Columns returns a copy of the declared column names.
func (t Table) Columns() []string { return slices.Clone(t.columns) }

// Requires returns the tables this table depends on.
func (t Table) Requires() Set { return t.requires }

// HasColumn reports whether name is a declared column.
// A table declared without columns accepts any column name.
func (t Table) HasColumn(name string) bool {
	if len(t.columns) == 0 {
		return true
	}
	return slices.Contains(t.columns, name)
}

// Column returns a reference to a column of t.
func (t Table) Column(name string) Column {
	return Column{table: t, name: name}
}

// AllColumns returns references to every declared column, in order.
func (t Table) AllColumns() []Column {
	cols := make([]Column, len(t.columns))
	for i, c := range t.columns {
		cols[i] = t.Column(c)
	}
	return cols
}

func (t Table) String() string { return t.name }

// Column is a column reference. It requires its owning table.
type Column struct {
	table Table
	name  string
}

// Name returns the bare column name.
func (c Column) Name() string { return c.name }

// Table returns the owning table.
func (c Column) Table() Table { return c.table }

// Qualified returns "table.column".
func (c Column) Qualified() string { return c.table.name + "." + c.name }

// Requires returns the singleton set of the owning table.
func (c Column) Requires() Set { return Of(c.table) }

func (c Column) String() string { return c.Qualified() }

// Set is an immutable set of tables ordered by name.
// The zero value is the empty set.
type Set struct {
	tables []Table
}

// Of builds a set from tables. Duplicate names collapse to the first occurrence.
func Of(tables ...Table) Set {
	if len(tables) == 0 {
		return Set{}
	}
	out := make([]Table, 0, len(tables))
	for _, t := range tables {
		if i, found := search(out, t.name); !found {
			out = slices.Insert(out, i, t)
		}
	}
	return Set{tables: out}
}

func search(tables []Table, name string) (int, bool) {
	return slices.BinarySearchFunc(tables, name, func(t Table, n string) int {
		return strings.Compare(t.name, n)
	})
}

// Len returns the number of tables in s.
func (s Set) Len() int { return len(s.tables) }

// Empty reports whether s has no tables.
func (s Set) Empty() bool { return len(s.tables) == 0 }

// Has reports whether a table with the given name is in s.
func (s Set) Has(name string) bool {
	_, found := search(s.tables, name)
	return found
}

// Lookup returns the table with the given name.
func (s Set) Lookup(name string) (Table, bool) {
	i, found := search(s.tables, name)
	if !found {
		return Table{}, false
	}
	return s.tables[i], true
}

// Tables returns the members of s in name order.
func (s Set) Tables() []Table { return slices.Clone(s.tables) }

// Names returns the member names in sorted order.
func (s Set) Names() []string {
	names := make([]string, len(s.tables))
	for i, t := range s.tables {
		names[i] = t.name
	}
	return names
}

// Equal reports whether s and other contain the same table names.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s.Names(), other.Names())
}

func (s Set) String() string {
	return "{" + strings.Join(s.Names(), ", ") + "}"
}

// Union returns the tables present in a or b.
// When both contain the same name, the entry from a is kept.
func Union(a, b Set) Set {
	switch {
	case a.Empty():
		return b
	case b.Empty():
		return a
	}
	out := make([]Table, 0, len(a.tables)+len(b.tables))
	i, j := 0, 0
	for i < len(a.tables) && j < len(b.tables) {
		switch c := strings.Compare(a.tables[i].name, b.tables[j].name); {
		case c < 0:
			out = append(out, a.tables[i])
			i++
		case c > 0:
			out = append(out, b.tables[j])
			j++
		default:
			out = append(out, a.tables[i])
			i++
			j++
		}
	}
	out = append(out, a.tables[i:]...)
	out = append(out, b.tables[j:]...)
	return Set{tables: out}
}

// Difference returns the tables of a whose names are not in b.
func Difference(a, b Set) Set {
	if a.Empty() || b.Empty() {
		return a
	}
	var out []Table
	for _, t := range a.tables {
		if !b.Has(t.name) {
			out = append(out, t)
		}
	}
	return Set{tables: out}
}

// IsSubset reports whether every table of a is in b.
func IsSubset(a, b Set) bool {
	for _, t := range a.tables {
		if !b.Has(t.name) {
			return false
		}
	}
	return true
}

// Join is the variadic union used when aggregating many clauses.
func Join(sets ...Set) Set {
	var out Set
	for _, s := range sets {
		out = Union(out, s)
	}
	return out
}
