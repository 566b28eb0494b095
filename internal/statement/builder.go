package statement

import (
	"github.com/roach88/sqlclause/internal/clause"
	"github.com/roach88/sqlclause/internal/tableset"
)

// InsertInto is Begin(Insert) followed by Into(t).
func InsertInto(t tableset.Table) (Statement, error) {
	s, _ := Begin(Insert)
	return s.Into(t)
}

// DynamicInsertInto is BeginDynamic(Insert, dialect) followed by Into(t).
func DynamicInsertInto(dialect clause.Dialect, t tableset.Table) (Statement, error) {
	s, _ := BeginDynamic(Insert, dialect)
	return s.Into(t)
}

// UpdateTable is Begin(Update) followed by Table(t).
func UpdateTable(t tableset.Table) (Statement, error) {
	s, _ := Begin(Update)
	return s.Table(t)
}

// DeleteFrom is Begin(Delete) followed by From(t).
func DeleteFrom(t tableset.Table) (Statement, error) {
	s, _ := Begin(Delete)
	return s.From(t)
}

// SelectColumns is Begin(Select) followed by Columns(cols...).
func SelectColumns(cols ...tableset.Column) (Statement, error) {
	s, _ := Begin(Select)
	return s.Columns(cols...)
}

// placeholderFor finds the placeholder offering method. A method that the
// layout declares but whose placeholder is gone was already used.
func (s Statement) placeholderFor(method string) (clause.Placeholder, error) {
	for _, c := range s.clauses {
		if p, ok := c.(clause.Placeholder); ok && p.Offers(method) {
			return p, nil
		}
	}
	for _, p := range layouts[s.kind].slots {
		if p.Offers(method) {
			return clause.Placeholder{}, clause.Newf(clause.ErrCodeDuplicateClauseUse, p.Kind(),
				"%s is no longer available: the %s clause is already set", method, p.Kind())
		}
	}
	return clause.Placeholder{}, clause.Newf(clause.ErrCodeDuplicateClauseUse, "",
		"%s statements do not offer %s", s.kindName(), method)
}

func (s Statement) fill(method string, construct func(p clause.Placeholder) (clause.Clause, error)) (Statement, error) {
	p, err := s.placeholderFor(method)
	if err != nil {
		return Statement{}, err
	}
	c, err := construct(p)
	if err != nil {
		return Statement{}, err
	}
	return s.Replace(p.Kind(), c)
}

// Into sets the INSERT target table.
func (s Statement) Into(t tableset.Table) (Statement, error) {
	return s.fill(MethodInto, func(clause.Placeholder) (clause.Clause, error) {
		return clause.Into(t)
	})
}

// Table sets the UPDATE target table.
func (s Statement) Table(t tableset.Table) (Statement, error) {
	return s.fill(MethodTable, func(clause.Placeholder) (clause.Clause, error) {
		return clause.Target(t)
	})
}

// From sets the DELETE target table, or the SELECT table list.
func (s Statement) From(tables ...tableset.Table) (Statement, error) {
	return s.fill(MethodFrom, func(p clause.Placeholder) (clause.Clause, error) {
		if p.Kind() == clause.KindTable {
			if len(tables) != 1 {
				return nil, clause.Newf(clause.ErrCodeShapeViolation, clause.KindTable,
					"%s FROM takes exactly one table, got %d", s.kind, len(tables))
			}
			return clause.FromTable(tables[0])
		}
		return clause.FromTables(tables...)
	})
}

// Columns sets the INSERT column list (one parameter per column) or the
// SELECT column list.
func (s Statement) Columns(cols ...tableset.Column) (Statement, error) {
	return s.fill(MethodColumns, func(p clause.Placeholder) (clause.Clause, error) {
		if p.Kind() == clause.KindValues {
			return clause.ColumnsOf(cols...)
		}
		return clause.Columns(cols...)
	})
}

// Values sets the INSERT value list from explicit assignments.
func (s Statement) Values(assignments ...clause.Assignment) (Statement, error) {
	return s.fill(MethodValues, func(clause.Placeholder) (clause.Clause, error) {
		return clause.Values(assignments...)
	})
}

// DefaultValues sets the INSERT value list to DEFAULT VALUES.
func (s Statement) DefaultValues() (Statement, error) {
	return s.fill(MethodDefaultValues, func(clause.Placeholder) (clause.Clause, error) {
		return clause.DefaultValues(), nil
	})
}

// Set sets the UPDATE assignments.
func (s Statement) Set(assignments ...clause.Assignment) (Statement, error) {
	return s.fill(MethodSet, func(clause.Placeholder) (clause.Clause, error) {
		return clause.Set(assignments...)
	})
}

// Where sets the filter. Top-level predicates are joined with AND.
func (s Statement) Where(preds ...clause.Predicate) (Statement, error) {
	return s.fill(MethodWhere, func(clause.Placeholder) (clause.Clause, error) {
		return clause.Filter(preds...)
	})
}
