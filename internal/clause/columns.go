package clause

import "github.com/roach88/sqlclause/internal/tableset"

// SelectList is the SELECT column list. It requires every table it reads.
type SelectList struct {
	columns []tableset.Column
}

// Columns builds a select list in declaration order.
func Columns(cols ...tableset.Column) (SelectList, error) {
	if len(cols) == 0 {
		return SelectList{}, Newf(ErrCodeShapeViolation, KindColumns, "select list must name at least one column")
	}
	for _, c := range cols {
		if !c.Table().HasColumn(c.Name()) {
			return SelectList{}, Newf(ErrCodeShapeViolation, KindColumns, "table %s has no column %s", c.Table().Name(), c.Name())
		}
	}
	return SelectList{columns: append([]tableset.Column(nil), cols...)}, nil
}

// Columns returns the selected columns.
func (s SelectList) Columns() []tableset.Column {
	return append([]tableset.Column(nil), s.columns...)
}

func (SelectList) Kind() Kind { return KindColumns }

func (s SelectList) Requires() tableset.Set {
	sets := make([]tableset.Set, len(s.columns))
	for i, c := range s.columns {
		sets[i] = c.Requires()
	}
	return tableset.Join(sets...)
}

func (SelectList) Provides() tableset.Set { return tableset.Set{} }
func (SelectList) Extra() tableset.Set    { return tableset.Set{} }
func (SelectList) Slots() []Slot          { return nil }
func (SelectList) IsPlaceholder() bool    { return false }
func (SelectList) clauseNode()            {}

// Emit writes qualified column names.
func (s SelectList) Emit(ctx *Context) {
	ctx.Space()
	for i, c := range s.columns {
		if i > 0 {
			ctx.WriteString(", ")
		}
		ctx.WriteString(c.Qualified())
	}
}
