// Package clause defines the composable units of a SQL statement.
//
// A clause contributes one grammatical fragment and a table-dependency
// declaration: the tables its content references (Requires), the tables it
// supplies to sibling clauses (Provides), and tables it makes known only to
// dynamic additions (Extra).
//
// This is a sealed interface - only types in this package implement it.
// Clause kinds:
//   - Placeholder: unfilled slot, emits nothing
//   - SingleTable: target table of INSERT/UPDATE/DELETE
//   - ValueList: INSERT column/value list or DEFAULT VALUES
//   - Assignments: UPDATE SET list
//   - SelectList: SELECT column list
//   - From: SELECT table list
//   - Where: predicate filter
//
// Clauses are immutable values. Every With/Add method returns a new clause.
package clause

import "github.com/roach88/sqlclause/internal/tableset"

// Kind names the role a clause plays in a statement layout.
type Kind string

const (
	KindTable   Kind = "table"
	KindValues  Kind = "values"
	KindSet     Kind = "set"
	KindColumns Kind = "columns"
	KindFrom    Kind = "from"
	KindWhere   Kind = "where"
)

// Clause is one slot of a statement.
type Clause interface {
	Kind() Kind
	Requires() tableset.Set
	Provides() tableset.Set
	Extra() tableset.Set
	// Slots returns parameter slots in emission order.
	Slots() []Slot
	IsPlaceholder() bool
	// Emit appends the clause fragment to ctx. Placeholders emit nothing.
	Emit(ctx *Context)

	clauseNode() // Marker method - seals interface to this package
}

// Placeholder occupies a clause slot until a concrete clause replaces it.
// Its only surface is the list of fluent methods it injects into the
// enclosing statement; once replaced, those methods are gone.
type Placeholder struct {
	kind    Kind
	methods []string
}

// NewPlaceholder creates a placeholder of kind that offers methods.
func NewPlaceholder(kind Kind, methods ...string) Placeholder {
	return Placeholder{kind: kind, methods: append([]string(nil), methods...)}
}

// Methods returns the fluent methods this placeholder injects.
func (p Placeholder) Methods() []string { return append([]string(nil), p.methods...) }

// Offers reports whether method is one of the injected methods.
func (p Placeholder) Offers(method string) bool {
	for _, m := range p.methods {
		if m == method {
			return true
		}
	}
	return false
}

func (p Placeholder) Kind() Kind           { return p.kind }
func (Placeholder) Requires() tableset.Set { return tableset.Set{} }
func (Placeholder) Provides() tableset.Set { return tableset.Set{} }
func (Placeholder) Extra() tableset.Set    { return tableset.Set{} }
func (Placeholder) Slots() []Slot          { return nil }
func (Placeholder) IsPlaceholder() bool    { return true }
func (Placeholder) Emit(*Context)          {}
func (Placeholder) clauseNode()            {}
