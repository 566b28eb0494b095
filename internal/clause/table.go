package clause

import "github.com/roach88/sqlclause/internal/tableset"

// SingleTable names the one table a statement writes to.
// It provides exactly that table and requires nothing.
type SingleTable struct {
	table   tableset.Table
	keyword string
}

// newSingleTable rejects derived tables: a target table cannot itself
// depend on another table.
func newSingleTable(keyword string, t tableset.Table) (SingleTable, error) {
	if t.Name() == "" {
		return SingleTable{}, Newf(ErrCodeShapeViolation, KindTable, "target table has no name")
	}
	if req := t.Requires(); !req.Empty() {
		return SingleTable{}, &CompositionError{
			Code:    ErrCodeShapeViolation,
			Message: "target table " + t.Name() + " must not require other tables",
			Clause:  KindTable,
			Tables:  req.Names(),
		}
	}
	return SingleTable{table: t, keyword: keyword}, nil
}

// Into builds the INSERT target clause: INTO <table>.
func Into(t tableset.Table) (SingleTable, error) { return newSingleTable("INTO", t) }

// FromTable builds the DELETE target clause: FROM <table>.
func FromTable(t tableset.Table) (SingleTable, error) { return newSingleTable("FROM", t) }

// Target builds the UPDATE target clause: <table>.
func Target(t tableset.Table) (SingleTable, error) { return newSingleTable("", t) }

// Table returns the target table.
func (s SingleTable) Table() tableset.Table { return s.table }

func (SingleTable) Kind() Kind               { return KindTable }
func (SingleTable) Requires() tableset.Set   { return tableset.Set{} }
func (s SingleTable) Provides() tableset.Set { return tableset.Of(s.table) }
func (SingleTable) Extra() tableset.Set      { return tableset.Set{} }
func (SingleTable) Slots() []Slot            { return nil }
func (SingleTable) IsPlaceholder() bool      { return false }
func (SingleTable) clauseNode()              {}

// Emit writes "INTO users", "FROM users", or "users".
func (s SingleTable) Emit(ctx *Context) {
	ctx.Space()
	if s.keyword != "" {
		ctx.WriteString(s.keyword)
		ctx.WriteString(" ")
	}
	ctx.WriteString(s.table.Name())
}
