package clause

import "github.com/roach88/sqlclause/internal/tableset"

// Predicate is a filter condition.
//
// This is a sealed interface. Predicate types:
//   - comparison: column <op> operand
//   - null test: column IS [NOT] NULL
//   - And / Or: combinators
type Predicate interface {
	Requires() tableset.Set
	appendSlots(dst []Slot) []Slot
	emit(ctx *Context)
	predicateNode() // Marker method - seals interface to this package
}

type comparison struct {
	col tableset.Column
	op  string
	rhs Operand
}

func compare(op string, col tableset.Column, rhs Operand) Predicate {
	return comparison{col: col, op: op, rhs: rhs}
}

// Eq is col = rhs.
func Eq(col tableset.Column, rhs Operand) Predicate { return compare("=", col, rhs) }

// Ne is col <> rhs.
func Ne(col tableset.Column, rhs Operand) Predicate { return compare("<>", col, rhs) }

// Lt is col < rhs.
func Lt(col tableset.Column, rhs Operand) Predicate { return compare("<", col, rhs) }

// Le is col <= rhs.
func Le(col tableset.Column, rhs Operand) Predicate { return compare("<=", col, rhs) }

// Gt is col > rhs.
func Gt(col tableset.Column, rhs Operand) Predicate { return compare(">", col, rhs) }

// Ge is col >= rhs.
func Ge(col tableset.Column, rhs Operand) Predicate { return compare(">=", col, rhs) }

// Compare builds a comparison from an operator string.
// Accepted operators: = <> != < <= > >=.
func Compare(op string, col tableset.Column, rhs Operand) (Predicate, error) {
	switch op {
	case "=", "<>", "<", "<=", ">", ">=":
		return compare(op, col, rhs), nil
	case "!=":
		return compare("<>", col, rhs), nil
	default:
		return nil, Newf(ErrCodeShapeViolation, KindWhere, "unsupported operator %q", op)
	}
}

func (c comparison) Requires() tableset.Set {
	return tableset.Union(c.col.Requires(), c.rhs.Requires())
}
func (c comparison) appendSlots(dst []Slot) []Slot { return c.rhs.appendSlots(dst) }
func (c comparison) emit(ctx *Context) {
	ctx.WriteString(c.col.Qualified())
	ctx.WriteString(" " + c.op + " ")
	c.rhs.emit(ctx)
}
func (comparison) predicateNode() {}

type nullTest struct {
	col tableset.Column
	not bool
}

// IsNull is col IS NULL.
func IsNull(col tableset.Column) Predicate { return nullTest{col: col} }

// IsNotNull is col IS NOT NULL.
func IsNotNull(col tableset.Column) Predicate { return nullTest{col: col, not: true} }

func (n nullTest) Requires() tableset.Set      { return n.col.Requires() }
func (nullTest) appendSlots(dst []Slot) []Slot { return dst }
func (n nullTest) emit(ctx *Context) {
	ctx.WriteString(n.col.Qualified())
	if n.not {
		ctx.WriteString(" IS NOT NULL")
	} else {
		ctx.WriteString(" IS NULL")
	}
}
func (nullTest) predicateNode() {}

type combinator struct {
	op    string
	preds []Predicate
}

// And is true when every predicate is true.
func And(preds ...Predicate) Predicate { return combinator{op: "AND", preds: preds} }

// Or is true when any predicate is true.
func Or(preds ...Predicate) Predicate { return combinator{op: "OR", preds: preds} }

func (c combinator) Requires() tableset.Set { return predicateRequires(c.preds) }
func (c combinator) appendSlots(dst []Slot) []Slot {
	for _, p := range c.preds {
		dst = p.appendSlots(dst)
	}
	return dst
}

// emit parenthesizes so nesting never depends on operator precedence.
func (c combinator) emit(ctx *Context) {
	if len(c.preds) == 1 {
		c.preds[0].emit(ctx)
		return
	}
	ctx.WriteString("(")
	emitJoined(ctx, c.preds, " "+c.op+" ")
	ctx.WriteString(")")
}
func (combinator) predicateNode() {}

func emitJoined(ctx *Context, preds []Predicate, sep string) {
	for i, p := range preds {
		if i > 0 {
			ctx.WriteString(sep)
		}
		p.emit(ctx)
	}
}

func predicateRequires(preds []Predicate) tableset.Set {
	sets := make([]tableset.Set, len(preds))
	for i, p := range preds {
		sets[i] = p.Requires()
	}
	return tableset.Join(sets...)
}

// Where filters rows. Top-level predicates are joined with AND.
// Dynamic predicates do not count toward Requires.
type Where struct {
	static  []Predicate
	dynamic []Predicate
}

// Filter builds a WHERE clause.
func Filter(preds ...Predicate) (Where, error) {
	if len(preds) == 0 {
		return Where{}, Newf(ErrCodeShapeViolation, KindWhere, "WHERE needs at least one predicate")
	}
	for _, p := range preds {
		if err := checkPredicate(p); err != nil {
			return Where{}, err
		}
	}
	return Where{static: append([]Predicate(nil), preds...)}, nil
}

// DynamicWhere builds a WHERE clause holding only dynamic predicates.
func DynamicWhere() Where { return Where{} }

// WithDynamic returns a copy with p appended as a dynamic predicate.
func (w Where) WithDynamic(p Predicate) (Where, error) {
	if err := checkPredicate(p); err != nil {
		return Where{}, err
	}
	next := w
	next.dynamic = append(append([]Predicate(nil), w.dynamic...), p)
	return next, nil
}

func checkPredicate(p Predicate) error {
	switch v := p.(type) {
	case nil:
		return Newf(ErrCodeShapeViolation, KindWhere, "nil predicate")
	case comparison:
		if v.rhs == nil {
			return Newf(ErrCodeShapeViolation, KindWhere, "comparison on %s has no operand", v.col.Qualified())
		}
		if v.rhs == Default {
			return Newf(ErrCodeShapeViolation, KindWhere, "DEFAULT is not a comparison operand")
		}
	case combinator:
		if len(v.preds) == 0 {
			return Newf(ErrCodeShapeViolation, KindWhere, "empty %s", v.op)
		}
		for _, inner := range v.preds {
			if err := checkPredicate(inner); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w Where) all() []Predicate {
	out := append([]Predicate(nil), w.static...)
	return append(out, w.dynamic...)
}

func (Where) Kind() Kind               { return KindWhere }
func (w Where) Requires() tableset.Set { return predicateRequires(w.static) }
func (Where) Provides() tableset.Set   { return tableset.Set{} }
func (Where) Extra() tableset.Set      { return tableset.Set{} }
func (Where) IsPlaceholder() bool      { return false }
func (Where) clauseNode()              {}

func (w Where) Slots() []Slot {
	var slots []Slot
	for _, p := range w.all() {
		slots = p.appendSlots(slots)
	}
	return slots
}

// Emit writes "WHERE p1 AND p2". An empty dynamic WHERE emits nothing.
func (w Where) Emit(ctx *Context) {
	all := w.all()
	if len(all) == 0 {
		return
	}
	ctx.Space()
	ctx.WriteString("WHERE ")
	emitJoined(ctx, all, " AND ")
}
