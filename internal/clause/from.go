package clause

import "github.com/roach88/sqlclause/internal/tableset"

// From is the SELECT table list.
//
// Static tables are Provided. Tables added dynamically are Extra: they are
// emitted and known to later dynamic additions, but never discharge the
// requirements of static clauses.
type From struct {
	tables  []tableset.Table
	dynamic []tableset.Table
}

// FromTables builds a FROM clause. A derived table must have its
// requirements satisfied by an earlier table in the same list.
func FromTables(tables ...tableset.Table) (From, error) {
	if len(tables) == 0 {
		return From{}, Newf(ErrCodeShapeViolation, KindFrom, "FROM must name at least one table")
	}
	var seen tableset.Set
	for _, t := range tables {
		if seen.Has(t.Name()) {
			return From{}, Newf(ErrCodeShapeViolation, KindFrom, "table %s listed twice", t.Name())
		}
		if missing := tableset.Difference(t.Requires(), seen); !missing.Empty() {
			return From{}, &CompositionError{
				Code:    ErrCodeShapeViolation,
				Message: "derived table " + t.Name() + " requires tables not listed before it",
				Clause:  KindFrom,
				Tables:  missing.Names(),
			}
		}
		seen = tableset.Union(seen, tableset.Of(t))
	}
	return From{tables: append([]tableset.Table(nil), tables...)}, nil
}

// DynamicFrom builds a FROM clause holding only dynamic tables.
func DynamicFrom() From { return From{} }

// WithDynamic returns a copy with t appended as a dynamic table.
// The caller checks t against the statement's known tables.
func (f From) WithDynamic(t tableset.Table) (From, error) {
	if tableset.Union(f.Provides(), f.Extra()).Has(t.Name()) {
		return From{}, Newf(ErrCodeShapeViolation, KindFrom, "table %s listed twice", t.Name())
	}
	next := f
	next.dynamic = append(append([]tableset.Table(nil), f.dynamic...), t)
	return next, nil
}

// Tables returns static then dynamic tables in emission order.
func (f From) Tables() []tableset.Table {
	out := append([]tableset.Table(nil), f.tables...)
	return append(out, f.dynamic...)
}

func (From) Kind() Kind               { return KindFrom }
func (From) Requires() tableset.Set   { return tableset.Set{} }
func (f From) Provides() tableset.Set { return tableset.Of(f.tables...) }
func (f From) Extra() tableset.Set    { return tableset.Of(f.dynamic...) }
func (From) Slots() []Slot            { return nil }
func (From) IsPlaceholder() bool      { return false }
func (From) clauseNode()              {}

// Emit writes "FROM a, b".
func (f From) Emit(ctx *Context) {
	ctx.Space()
	ctx.WriteString("FROM ")
	for i, t := range f.Tables() {
		if i > 0 {
			ctx.WriteString(", ")
		}
		ctx.WriteString(t.Name())
	}
}
