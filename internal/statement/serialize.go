package statement

import (
	"github.com/roach88/sqlclause/internal/clause"
	"github.com/roach88/sqlclause/internal/ir"
)

// Serialize writes the statement keyword and then each clause's fragment in
// declaration order. It knows nothing about validation: callers validate
// first. Calling it twice on the same statement yields identical output.
func Serialize(s Statement, ctx *clause.Context) *clause.Context {
	ctx.WriteString(layouts[s.kind].keyword)
	for _, c := range s.clauses {
		c.Emit(ctx)
	}
	return ctx
}

// Rendered is a serialized statement: SQL text plus its ordered slots.
type Rendered struct {
	SQL     string
	Slots   []clause.Slot
	Dialect clause.Dialect
}

// ParameterCount is the number of deferred slots.
func (r Rendered) ParameterCount() int {
	n := 0
	for _, s := range r.Slots {
		if s.Deferred() {
			n++
		}
	}
	return n
}

// Fingerprint is the content-addressed identity of the rendered statement.
func (r Rendered) Fingerprint() (string, error) {
	records := make([]ir.SlotRecord, len(r.Slots))
	for i, s := range r.Slots {
		records[i] = s.Record()
	}
	return ir.Fingerprint(r.SQL, records)
}

// Bind merges caller arguments into the slot list, producing positional
// driver arguments. Literal slots supply their own value; deferred slots
// consume args in order.
func (r Rendered) Bind(args ...any) ([]any, error) {
	if want := r.ParameterCount(); len(args) != want {
		return nil, clause.Newf(clause.ErrCodeParameterMismatch, "",
			"statement takes %d parameters, got %d", want, len(args))
	}
	out := make([]any, len(r.Slots))
	next := 0
	for i, s := range r.Slots {
		if s.Deferred() {
			out[i] = args[next]
			next++
			continue
		}
		v, err := ir.ToDriver(s.Value)
		if err != nil {
			return nil, clause.Newf(clause.ErrCodeShapeViolation, "", "slot %s: %v", s.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

// Render gates s through Ready and serializes it for dialect.
func (s Statement) Render(dialect clause.Dialect) (Rendered, error) {
	if err := s.Ready(); err != nil {
		return Rendered{}, err
	}
	ctx := Serialize(s, clause.NewContext(dialect))
	return Rendered{SQL: ctx.SQL(), Slots: ctx.Slots(), Dialect: ctx.Dialect()}, nil
}

// SQL renders s for its own dialect hint.
func (s Statement) SQL() (string, error) {
	r, err := s.Render(s.dialect)
	if err != nil {
		return "", err
	}
	return r.SQL, nil
}

// String serializes without gating, for diagnostics.
func (s Statement) String() string {
	return Serialize(s, clause.NewContext(s.dialect)).SQL()
}
