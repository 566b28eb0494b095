package compiler

import (
	"fmt"
	"regexp"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sqlclause/internal/clause"
	"github.com/roach88/sqlclause/internal/ir"
	"github.com/roach88/sqlclause/internal/statement"
	"github.com/roach88/sqlclause/internal/tableset"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func isIdentifier(s string) bool { return identifierPattern.MatchString(s) }

// Definition is a named statement compiled from CUE.
type Definition struct {
	Name      string
	Statement statement.Statement
	Pos       token.Pos
}

// CompileStatement parses a CUE statement definition against a catalog:
//
//	statement: rename_user: {
//		kind:  "update"
//		table: "users"
//		set: [{column: "name", param: "name"}]
//		where: [{column: "id", param: "id"}]
//	}
//
// Fields are applied in a fixed order (table, from, columns, values,
// default_values, set, where, then the dynamic add_from, add_values and
// add_where). Bare column names resolve against the target table, or the
// single table of a SELECT's from; otherwise they must be qualified as
// table.column. Composition errors surface as a CompileError whose Err
// is the underlying clause.CompositionError. The result is not required to
// validate; call Validate for that.
func CompileStatement(v cue.Value, cat Catalog) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{Pos: v.Pos()}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = labels[len(labels)-1].String()
	}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return nil, &CompileError{Field: "kind", Message: "kind is required", Pos: v.Pos()}
	}
	kindStr, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	kind, err := statement.ParseKind(kindStr)
	if err != nil {
		return nil, &CompileError{Field: "kind", Message: err.Error(), Pos: kindVal.Pos()}
	}

	dynamic, err := optionalBool(v, "dynamic")
	if err != nil {
		return nil, err
	}
	var st statement.Statement
	if dynamic {
		dialect := clause.SQLite
		if dv := v.LookupPath(cue.ParsePath("dialect")); dv.Exists() {
			name, err := dv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if dialect, err = clause.ParseDialect(name); err != nil {
				return nil, &CompileError{Field: "dialect", Message: err.Error(), Pos: dv.Pos()}
			}
		}
		st, err = statement.BeginDynamic(kind, dialect)
	} else {
		st, err = statement.Begin(kind)
	}
	if err != nil {
		return nil, wrapComposition("kind", kindVal.Pos(), err)
	}

	b := &defBuilder{cat: cat, st: st}
	for _, step := range []struct {
		field string
		apply func(cue.Value) error
	}{
		{"table", b.table},
		{"from", b.from},
		{"columns", b.columns},
		{"values", b.values},
		{"default_values", b.defaultValues},
		{"set", b.set},
		{"where", b.where},
		{"add_from", b.addFrom},
		{"add_values", b.addValues},
		{"add_where", b.addWhere},
	} {
		fv := v.LookupPath(cue.ParsePath(step.field))
		if !fv.Exists() {
			continue
		}
		if err := fv.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if err := step.apply(fv); err != nil {
			return nil, err
		}
	}

	def.Statement = b.st
	return def, nil
}

// defBuilder threads a statement through the field steps. target is the
// table bare column names resolve against.
type defBuilder struct {
	cat    Catalog
	st     statement.Statement
	target string
}

func (b *defBuilder) step(field string, pos token.Pos, next statement.Statement, err error) error {
	if err != nil {
		return wrapComposition(field, pos, err)
	}
	b.st = next
	return nil
}

func (b *defBuilder) lookupTable(field string, v cue.Value) (tableset.Table, error) {
	name, err := v.String()
	if err != nil {
		return tableset.Table{}, formatCUEError(err)
	}
	t, err := b.cat.Table(name)
	if err != nil {
		return tableset.Table{}, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return t, nil
}

func (b *defBuilder) tables(field string, v cue.Value) ([]tableset.Table, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []tableset.Table
	for iter.Next() {
		t, err := b.lookupTable(field, iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (b *defBuilder) column(field string, v cue.Value) (tableset.Column, error) {
	ref, err := v.String()
	if err != nil {
		return tableset.Column{}, formatCUEError(err)
	}
	col, err := b.cat.Column(ref, b.target)
	if err != nil {
		return tableset.Column{}, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return col, nil
}

func (b *defBuilder) table(v cue.Value) error {
	t, err := b.lookupTable("table", v)
	if err != nil {
		return err
	}
	var next statement.Statement
	switch b.st.Kind() {
	case statement.Insert:
		next, err = b.st.Into(t)
	case statement.Delete:
		next, err = b.st.From(t)
	default:
		next, err = b.st.Table(t)
	}
	if err == nil {
		b.target = t.Name()
	}
	return b.step("table", v.Pos(), next, err)
}

func (b *defBuilder) columns(v cue.Value) error {
	iter, err := v.List()
	if err != nil {
		return formatCUEError(err)
	}
	var cols []tableset.Column
	for iter.Next() {
		col, err := b.column("columns", iter.Value())
		if err != nil {
			return err
		}
		cols = append(cols, col)
	}
	next, err := b.st.Columns(cols...)
	return b.step("columns", v.Pos(), next, err)
}

func (b *defBuilder) assignments(field string, v cue.Value) ([]clause.Assignment, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []clause.Assignment
	for iter.Next() {
		a, err := b.assignment(field, iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (b *defBuilder) assignment(field string, v cue.Value) (clause.Assignment, error) {
	colVal := v.LookupPath(cue.ParsePath("column"))
	if !colVal.Exists() {
		return clause.Assignment{}, &CompileError{Field: field, Message: "assignment needs a column", Pos: v.Pos()}
	}
	col, err := b.column(field, colVal)
	if err != nil {
		return clause.Assignment{}, err
	}
	op, err := b.operand(field, col, v, true)
	if err != nil {
		return clause.Assignment{}, err
	}
	return clause.Assign(col, op), nil
}

// operand reads exactly one of param, value, ref or default from v.
// A literal is named after its column.
func (b *defBuilder) operand(field string, col tableset.Column, v cue.Value, allowDefault bool) (clause.Operand, error) {
	var found []string
	var op clause.Operand

	if pv := v.LookupPath(cue.ParsePath("param")); pv.Exists() {
		name, err := pv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if !isIdentifier(name) {
			return nil, &CompileError{Field: field, Message: fmt.Sprintf("invalid parameter name %q", name), Pos: pv.Pos()}
		}
		found = append(found, "param")
		op = clause.Param(name)
	}
	if lv := v.LookupPath(cue.ParsePath("value")); lv.Exists() {
		val, err := literal(lv)
		if err != nil {
			return nil, err
		}
		found = append(found, "value")
		op = clause.Literal(col.Name(), val)
	}
	if rv := v.LookupPath(cue.ParsePath("ref")); rv.Exists() {
		ref, err := b.column(field, rv)
		if err != nil {
			return nil, err
		}
		found = append(found, "ref")
		op = clause.Ref(ref)
	}
	if dv := v.LookupPath(cue.ParsePath("default")); dv.Exists() {
		on, err := dv.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if on {
			if !allowDefault {
				return nil, &CompileError{Field: field, Message: "DEFAULT is only valid in an assignment", Pos: dv.Pos()}
			}
			found = append(found, "default")
			op = clause.Default
		}
	}

	switch len(found) {
	case 0:
		if field == "values" || field == "add_values" || field == "set" {
			return clause.Param(col.Name()), nil
		}
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("%s needs one of param, value, ref", col.Qualified()), Pos: v.Pos()}
	case 1:
		return op, nil
	default:
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("%s sets more than one of %v", col.Qualified(), found), Pos: v.Pos()}
	}
}

// literal converts a concrete CUE scalar to an IR value.
func literal(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{Field: "value", Message: "floating point literals are not supported; use int or string", Pos: v.Pos()}
	default:
		return nil, &CompileError{Field: "value", Message: fmt.Sprintf("unsupported literal kind %s", v.Kind()), Pos: v.Pos()}
	}
}

func (b *defBuilder) values(v cue.Value) error {
	as, err := b.assignments("values", v)
	if err != nil {
		return err
	}
	next, err := b.st.Values(as...)
	return b.step("values", v.Pos(), next, err)
}

func (b *defBuilder) defaultValues(v cue.Value) error {
	on, err := v.Bool()
	if err != nil {
		return formatCUEError(err)
	}
	if !on {
		return nil
	}
	next, err := b.st.DefaultValues()
	return b.step("default_values", v.Pos(), next, err)
}

func (b *defBuilder) set(v cue.Value) error {
	as, err := b.assignments("set", v)
	if err != nil {
		return err
	}
	next, err := b.st.Set(as...)
	return b.step("set", v.Pos(), next, err)
}

func (b *defBuilder) from(v cue.Value) error {
	ts, err := b.tables("from", v)
	if err != nil {
		return err
	}
	next, err := b.st.From(ts...)
	if err == nil && len(ts) == 1 {
		b.target = ts[0].Name()
	}
	return b.step("from", v.Pos(), next, err)
}

func (b *defBuilder) predicates(field string, v cue.Value) ([]clause.Predicate, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []clause.Predicate
	for iter.Next() {
		p, err := b.predicate(field, iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// predicate reads {any: [...]}, {all: [...]}, {column, is_null} or
// {column, op?, param|value|ref}. op defaults to "=".
func (b *defBuilder) predicate(field string, v cue.Value) (clause.Predicate, error) {
	if anyVal := v.LookupPath(cue.ParsePath("any")); anyVal.Exists() {
		preds, err := b.predicates(field, anyVal)
		if err != nil {
			return nil, err
		}
		return clause.Or(preds...), nil
	}
	if allVal := v.LookupPath(cue.ParsePath("all")); allVal.Exists() {
		preds, err := b.predicates(field, allVal)
		if err != nil {
			return nil, err
		}
		return clause.And(preds...), nil
	}

	colVal := v.LookupPath(cue.ParsePath("column"))
	if !colVal.Exists() {
		return nil, &CompileError{Field: field, Message: "predicate needs a column, any or all", Pos: v.Pos()}
	}
	col, err := b.column(field, colVal)
	if err != nil {
		return nil, err
	}

	if nv := v.LookupPath(cue.ParsePath("is_null")); nv.Exists() {
		isNull, err := nv.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if isNull {
			return clause.IsNull(col), nil
		}
		return clause.IsNotNull(col), nil
	}

	op := "="
	if ov := v.LookupPath(cue.ParsePath("op")); ov.Exists() {
		if op, err = ov.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	rhs, err := b.operand(field, col, v, false)
	if err != nil {
		return nil, err
	}
	p, err := clause.Compare(op, col, rhs)
	if err != nil {
		return nil, wrapComposition(field, v.Pos(), err)
	}
	return p, nil
}

func (b *defBuilder) where(v cue.Value) error {
	preds, err := b.predicates("where", v)
	if err != nil {
		return err
	}
	next, err := b.st.Where(preds...)
	return b.step("where", v.Pos(), next, err)
}

func (b *defBuilder) addFrom(v cue.Value) error {
	ts, err := b.tables("add_from", v)
	if err != nil {
		return err
	}
	for _, t := range ts {
		next, err := b.st.AddFrom(t)
		if err := b.step("add_from", v.Pos(), next, err); err != nil {
			return err
		}
	}
	return nil
}

func (b *defBuilder) addValues(v cue.Value) error {
	as, err := b.assignments("add_values", v)
	if err != nil {
		return err
	}
	for _, a := range as {
		next, err := b.st.AddValue(a)
		if err := b.step("add_values", v.Pos(), next, err); err != nil {
			return err
		}
	}
	return nil
}

func (b *defBuilder) addWhere(v cue.Value) error {
	preds, err := b.predicates("add_where", v)
	if err != nil {
		return err
	}
	for _, p := range preds {
		next, err := b.st.AddWhere(p)
		if err := b.step("add_where", v.Pos(), next, err); err != nil {
			return err
		}
	}
	return nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}
