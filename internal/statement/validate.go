package statement

import (
	"fmt"

	"github.com/roach88/sqlclause/internal/clause"
)

// Check is the validator: a pure function of the statement's clause set.
// It succeeds iff every required table is provided. Parameter values are
// never inspected.
func Check(s Statement) error {
	unresolved := s.Unresolved()
	if unresolved.Empty() {
		return nil
	}
	return &clause.CompositionError{
		Code:    clause.ErrCodeIncomplete,
		Message: fmt.Sprintf("%s statement references tables no clause provides", s.kindName()),
		Tables:  unresolved.Names(),
	}
}

// Validate runs Check on s. It may be called at any point during
// composition; an incomplete statement is still a representable value.
func (s Statement) Validate() error { return Check(s) }

// Complete reports the first mandatory clause still holding its placeholder.
// An INSERT without a target table validates (it requires nothing) but has
// nothing meaningful to serialize.
func (s Statement) Complete() error {
	l, ok := layouts[s.kind]
	if !ok {
		return clause.Newf(clause.ErrCodeMissingClause, "", "statement was not created with Begin")
	}
	for _, kind := range l.mandatory {
		if c, _ := s.Clause(kind); c.IsPlaceholder() {
			return clause.Newf(clause.ErrCodeMissingClause, kind, "%s statement has no %s clause", s.kind, kind)
		}
	}
	return nil
}

// Ready is the gate every executable path passes: Validate then Complete.
func (s Statement) Ready() error {
	if err := s.Validate(); err != nil {
		return err
	}
	return s.Complete()
}
