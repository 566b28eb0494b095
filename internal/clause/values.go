package clause

import (
	"github.com/roach88/sqlclause/internal/tableset"
)

// Assignment pairs a column with the operand written to it.
type Assignment struct {
	Column tableset.Column
	Value  Operand
}

// Assign builds an Assignment.
func Assign(col tableset.Column, v Operand) Assignment {
	return Assignment{Column: col, Value: v}
}

func (a Assignment) requires() tableset.Set {
	return tableset.Union(a.Column.Requires(), a.Value.Requires())
}

// assignmentList is shared by ValueList and Assignments. Static entries
// count toward Requires; dynamic entries were checked against the
// statement's known tables when added and do not.
type assignmentList struct {
	static  []Assignment
	dynamic []Assignment
}

func (l assignmentList) all() []Assignment {
	out := make([]Assignment, 0, len(l.static)+len(l.dynamic))
	out = append(out, l.static...)
	return append(out, l.dynamic...)
}

func (l assignmentList) requires() tableset.Set {
	sets := make([]tableset.Set, len(l.static))
	for i, a := range l.static {
		sets[i] = a.requires()
	}
	return tableset.Join(sets...)
}

func (l assignmentList) slots() []Slot {
	var slots []Slot
	for _, a := range l.all() {
		slots = a.Value.appendSlots(slots)
	}
	return slots
}

func (l assignmentList) has(name string) bool {
	for _, a := range l.all() {
		if a.Column.Name() == name {
			return true
		}
	}
	return false
}

// validateAssignments rejects nil operands, undeclared columns, and
// columns assigned twice.
func validateAssignments(kind Kind, existing assignmentList, add []Assignment) error {
	seen := existing
	for _, a := range add {
		if a.Value == nil {
			return Newf(ErrCodeShapeViolation, kind, "column %s has no value", a.Column.Qualified())
		}
		if !a.Column.Table().HasColumn(a.Column.Name()) {
			return Newf(ErrCodeShapeViolation, kind, "table %s has no column %s", a.Column.Table().Name(), a.Column.Name())
		}
		if seen.has(a.Column.Name()) {
			return Newf(ErrCodeShapeViolation, kind, "column %s assigned twice", a.Column.Name())
		}
		seen.static = append(seen.static[:len(seen.static):len(seen.static)], a)
	}
	return nil
}

// ValueList is the INSERT payload: "(a, b) VALUES (?, ?)" or "DEFAULT VALUES".
type ValueList struct {
	list     assignmentList
	defaults bool
}

// Values builds a value list from assignments in declaration order.
func Values(assignments ...Assignment) (ValueList, error) {
	if len(assignments) == 0 {
		return ValueList{}, Newf(ErrCodeShapeViolation, KindValues, "value list must name at least one column")
	}
	if err := validateAssignments(KindValues, assignmentList{}, assignments); err != nil {
		return ValueList{}, err
	}
	return ValueList{list: assignmentList{static: append([]Assignment(nil), assignments...)}}, nil
}

// ColumnsOf builds a value list with one deferred parameter per column.
func ColumnsOf(cols ...tableset.Column) (ValueList, error) {
	assignments := make([]Assignment, len(cols))
	for i, c := range cols {
		assignments[i] = Assign(c, Param(c.Name()))
	}
	return Values(assignments...)
}

// DefaultValues builds "DEFAULT VALUES".
func DefaultValues() ValueList { return ValueList{defaults: true} }

// DynamicValues builds a value list holding only dynamic assignments.
func DynamicValues() ValueList { return ValueList{} }

// WithDynamic returns a copy with a appended as a dynamic assignment.
func (v ValueList) WithDynamic(a Assignment) (ValueList, error) {
	if v.defaults {
		return ValueList{}, Newf(ErrCodeShapeViolation, KindValues, "cannot add %s to DEFAULT VALUES", a.Column.Name())
	}
	if err := validateAssignments(KindValues, v.list, []Assignment{a}); err != nil {
		return ValueList{}, err
	}
	next := v
	next.list.dynamic = append(append([]Assignment(nil), v.list.dynamic...), a)
	return next, nil
}

// IsDefault reports whether this is DEFAULT VALUES.
func (v ValueList) IsDefault() bool { return v.defaults }

// Assignments returns static then dynamic assignments in emission order.
func (v ValueList) Assignments() []Assignment { return v.list.all() }

func (ValueList) Kind() Kind               { return KindValues }
func (v ValueList) Requires() tableset.Set { return v.list.requires() }
func (ValueList) Provides() tableset.Set   { return tableset.Set{} }
func (ValueList) Extra() tableset.Set      { return tableset.Set{} }
func (v ValueList) Slots() []Slot          { return v.list.slots() }
func (ValueList) IsPlaceholder() bool      { return false }
func (ValueList) clauseNode()              {}

// Emit writes the column list then the value tuple.
func (v ValueList) Emit(ctx *Context) {
	ctx.Space()
	all := v.list.all()
	if v.defaults || len(all) == 0 {
		ctx.WriteString("DEFAULT VALUES")
		return
	}
	ctx.WriteString("(")
	for i, a := range all {
		if i > 0 {
			ctx.WriteString(", ")
		}
		ctx.WriteString(a.Column.Name())
	}
	ctx.WriteString(") VALUES (")
	for i, a := range all {
		if i > 0 {
			ctx.WriteString(", ")
		}
		a.Value.emit(ctx)
	}
	ctx.WriteString(")")
}

// Assignments is the UPDATE payload: "SET a = ?, b = ?".
type Assignments struct {
	list assignmentList
}

// Set builds a SET clause.
func Set(assignments ...Assignment) (Assignments, error) {
	if len(assignments) == 0 {
		return Assignments{}, Newf(ErrCodeShapeViolation, KindSet, "SET must assign at least one column")
	}
	if err := validateAssignments(KindSet, assignmentList{}, assignments); err != nil {
		return Assignments{}, err
	}
	return Assignments{list: assignmentList{static: append([]Assignment(nil), assignments...)}}, nil
}

// WithDynamic returns a copy with a appended as a dynamic assignment.
func (s Assignments) WithDynamic(a Assignment) (Assignments, error) {
	if err := validateAssignments(KindSet, s.list, []Assignment{a}); err != nil {
		return Assignments{}, err
	}
	next := s
	next.list.dynamic = append(append([]Assignment(nil), s.list.dynamic...), a)
	return next, nil
}

// Assignments returns static then dynamic assignments in emission order.
func (s Assignments) Assignments() []Assignment { return s.list.all() }

func (Assignments) Kind() Kind               { return KindSet }
func (s Assignments) Requires() tableset.Set { return s.list.requires() }
func (Assignments) Provides() tableset.Set   { return tableset.Set{} }
func (Assignments) Extra() tableset.Set      { return tableset.Set{} }
func (s Assignments) Slots() []Slot          { return s.list.slots() }
func (Assignments) IsPlaceholder() bool      { return false }
func (Assignments) clauseNode()              {}

// Emit writes "SET col = operand, ...". Target columns are unqualified.
func (s Assignments) Emit(ctx *Context) {
	ctx.Space()
	ctx.WriteString("SET ")
	for i, a := range s.list.all() {
		if i > 0 {
			ctx.WriteString(", ")
		}
		ctx.WriteString(a.Column.Name())
		ctx.WriteString(" = ")
		a.Value.emit(ctx)
	}
}
