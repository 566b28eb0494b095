package statement

import (
	"github.com/roach88/sqlclause/internal/clause"
	"github.com/roach88/sqlclause/internal/tableset"
)

// Dynamic additions extend a clause after composition. They are checked
// against Known when added and never count toward Required, so a dynamic
// part may reference a table that only a dynamic FROM supplies.

func (s Statement) requireDynamic(method string, kinds ...clause.Kind) (clause.Kind, error) {
	if !s.dynamic {
		return "", clause.Newf(clause.ErrCodeDuplicateClauseUse, "",
			"%s requires a statement created with BeginDynamic", method)
	}
	for _, k := range kinds {
		if s.index(k) >= 0 {
			return k, nil
		}
	}
	return "", clause.Newf(clause.ErrCodeDuplicateClauseUse, "",
		"%s statements do not offer %s", s.kindName(), method)
}

func (s Statement) checkKnown(kind clause.Kind, what string, requires tableset.Set) error {
	if unknown := tableset.Difference(requires, s.Known()); !unknown.Empty() {
		return &clause.CompositionError{
			Code:    clause.ErrCodeUnknownTable,
			Message: what + " references tables the statement does not know",
			Clause:  kind,
			Tables:  unknown.Names(),
		}
	}
	return nil
}

// AddValue appends an assignment to the INSERT value list or UPDATE SET list.
func (s Statement) AddValue(a clause.Assignment) (Statement, error) {
	kind, err := s.requireDynamic(MethodAddValue, clause.KindValues, clause.KindSet)
	if err != nil {
		return Statement{}, err
	}
	requires := a.Column.Requires()
	if a.Value != nil {
		requires = tableset.Union(requires, a.Value.Requires())
	}
	if err := s.checkKnown(kind, "value for "+a.Column.Qualified(), requires); err != nil {
		return Statement{}, err
	}

	current, _ := s.Clause(kind)
	var next clause.Clause
	switch c := current.(type) {
	case clause.ValueList:
		next, err = c.WithDynamic(a)
	case clause.Assignments:
		next, err = c.WithDynamic(a)
	default:
		if kind == clause.KindValues {
			next, err = clause.DynamicValues().WithDynamic(a)
		} else {
			next, err = clause.Assignments{}.WithDynamic(a)
		}
	}
	if err != nil {
		return Statement{}, err
	}
	return s.Replace(kind, next)
}

// AddFrom appends a table to the SELECT table list. The table becomes Extra.
func (s Statement) AddFrom(t tableset.Table) (Statement, error) {
	kind, err := s.requireDynamic(MethodAddFrom, clause.KindFrom)
	if err != nil {
		return Statement{}, err
	}
	if err := s.checkKnown(kind, "table "+t.Name(), t.Requires()); err != nil {
		return Statement{}, err
	}
	current, _ := s.Clause(kind)
	base, ok := current.(clause.From)
	if !ok {
		base = clause.DynamicFrom()
	}
	next, err := base.WithDynamic(t)
	if err != nil {
		return Statement{}, err
	}
	return s.Replace(kind, next)
}

// AddWhere ANDs a predicate onto the filter.
func (s Statement) AddWhere(p clause.Predicate) (Statement, error) {
	kind, err := s.requireDynamic(MethodAddWhere, clause.KindWhere)
	if err != nil {
		return Statement{}, err
	}
	if p == nil {
		return Statement{}, clause.Newf(clause.ErrCodeShapeViolation, kind, "nil predicate")
	}
	if err := s.checkKnown(kind, "predicate", p.Requires()); err != nil {
		return Statement{}, err
	}
	current, _ := s.Clause(kind)
	base, ok := current.(clause.Where)
	if !ok {
		base = clause.DynamicWhere()
	}
	next, err := base.WithDynamic(p)
	if err != nil {
		return Statement{}, err
	}
	return s.Replace(kind, next)
}
