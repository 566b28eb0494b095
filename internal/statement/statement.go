// Package statement composes clauses into statements, proves every
// referenced table is provided, and serializes the result.
//
// A Statement is an immutable value holding a fixed-arity clause tuple whose
// layout is set by its kind. Every compositional operation returns a new
// Statement; none mutates its receiver. Statements may be shared freely
// between goroutines.
package statement

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/sqlclause/internal/clause"
	"github.com/roach88/sqlclause/internal/tableset"
)

// Kind is a statement kind.
type Kind string

const (
	Insert Kind = "INSERT"
	Update Kind = "UPDATE"
	Delete Kind = "DELETE"
	Select Kind = "SELECT"
)

// Kinds lists every statement kind.
var Kinds = []Kind{Insert, Update, Delete, Select}

// ParseKind accepts a kind name in any case.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := layouts[k]; !ok {
		return "", fmt.Errorf("unknown statement kind %q: must be one of %v", name, Kinds)
	}
	return k, nil
}

// Fluent method names injected by placeholders.
const (
	MethodInto          = "Into"
	MethodTable         = "Table"
	MethodFrom          = "From"
	MethodColumns       = "Columns"
	MethodValues        = "Values"
	MethodDefaultValues = "DefaultValues"
	MethodSet           = "Set"
	MethodWhere         = "Where"

	MethodAddValue = "AddValue"
	MethodAddFrom  = "AddFrom"
	MethodAddWhere = "AddWhere"
)

// layout is the fixed clause shape of a statement kind. Clause order is
// emission order.
type layout struct {
	keyword   string
	slots     []clause.Placeholder
	mandatory []clause.Kind
}

var layouts = map[Kind]layout{
	Insert: {
		keyword: "INSERT",
		slots: []clause.Placeholder{
			clause.NewPlaceholder(clause.KindTable, MethodInto),
			clause.NewPlaceholder(clause.KindValues, MethodColumns, MethodValues, MethodDefaultValues),
		},
		mandatory: []clause.Kind{clause.KindTable, clause.KindValues},
	},
	Update: {
		keyword: "UPDATE",
		slots: []clause.Placeholder{
			clause.NewPlaceholder(clause.KindTable, MethodTable),
			clause.NewPlaceholder(clause.KindSet, MethodSet),
			clause.NewPlaceholder(clause.KindWhere, MethodWhere),
		},
		mandatory: []clause.Kind{clause.KindTable, clause.KindSet},
	},
	Delete: {
		keyword: "DELETE",
		slots: []clause.Placeholder{
			clause.NewPlaceholder(clause.KindTable, MethodFrom),
			clause.NewPlaceholder(clause.KindWhere, MethodWhere),
		},
		mandatory: []clause.Kind{clause.KindTable},
	},
	Select: {
		keyword: "SELECT",
		slots: []clause.Placeholder{
			clause.NewPlaceholder(clause.KindColumns, MethodColumns),
			clause.NewPlaceholder(clause.KindFrom, MethodFrom),
			clause.NewPlaceholder(clause.KindWhere, MethodWhere),
		},
		mandatory: []clause.Kind{clause.KindColumns},
	},
}

// dynamicMethods maps dynamic additions to the clause kinds they extend.
var dynamicMethods = map[string][]clause.Kind{
	MethodAddValue: {clause.KindValues, clause.KindSet},
	MethodAddFrom:  {clause.KindFrom},
	MethodAddWhere: {clause.KindWhere},
}

// Statement is an ordered, fixed-arity composition of clauses.
type Statement struct {
	kind    Kind
	clauses []clause.Clause
	dynamic bool
	dialect clause.Dialect

	required tableset.Set
	provided tableset.Set
	extra    tableset.Set
}

// Begin returns the all-placeholder statement for kind.
func Begin(kind Kind) (Statement, error) {
	return begin(kind, false, clause.SQLite)
}

// BeginDynamic returns the all-placeholder statement for kind with dynamic
// additions enabled. The dialect is the hint executors check against.
func BeginDynamic(kind Kind, dialect clause.Dialect) (Statement, error) {
	return begin(kind, true, dialect)
}

func begin(kind Kind, dynamic bool, dialect clause.Dialect) (Statement, error) {
	l, ok := layouts[kind]
	if !ok {
		return Statement{}, fmt.Errorf("unknown statement kind %q: must be one of %v", kind, Kinds)
	}
	if dialect == "" {
		dialect = clause.SQLite
	}
	clauses := make([]clause.Clause, len(l.slots))
	for i, p := range l.slots {
		clauses[i] = p
	}
	return build(kind, clauses, dynamic, dialect), nil
}

// build recomputes the derived table sets.
func build(kind Kind, clauses []clause.Clause, dynamic bool, dialect clause.Dialect) Statement {
	req := make([]tableset.Set, len(clauses))
	prov := make([]tableset.Set, len(clauses))
	extra := make([]tableset.Set, len(clauses))
	for i, c := range clauses {
		req[i] = c.Requires()
		prov[i] = c.Provides()
		extra[i] = c.Extra()
	}
	return Statement{
		kind:     kind,
		clauses:  clauses,
		dynamic:  dynamic,
		dialect:  dialect,
		required: tableset.Join(req...),
		provided: tableset.Join(prov...),
		extra:    tableset.Join(extra...),
	}
}

// Replace returns a new statement with the clause of kind substituted by c.
// All other clauses are carried over unchanged.
func (s Statement) Replace(kind clause.Kind, c clause.Clause) (Statement, error) {
	if c == nil {
		return Statement{}, clause.Newf(clause.ErrCodeDuplicateClauseUse, kind, "nil replacement for %s clause", kind)
	}
	if c.Kind() != kind {
		return Statement{}, clause.Newf(clause.ErrCodeDuplicateClauseUse, kind,
			"cannot replace %s clause with a %s clause", kind, c.Kind())
	}
	i := s.index(kind)
	if i < 0 {
		return Statement{}, clause.Newf(clause.ErrCodeDuplicateClauseUse, kind,
			"%s statements declare no %s clause", s.kindName(), kind)
	}
	clauses := slices.Clone(s.clauses)
	clauses[i] = c
	return build(s.kind, clauses, s.dynamic, s.dialect), nil
}

func (s Statement) index(kind clause.Kind) int {
	for i, c := range s.clauses {
		if c.Kind() == kind {
			return i
		}
	}
	return -1
}

func (s Statement) kindName() string {
	if s.kind == "" {
		return "uninitialized"
	}
	return string(s.kind)
}

// Kind returns the statement kind.
func (s Statement) Kind() Kind { return s.kind }

// Dialect returns the dialect hint.
func (s Statement) Dialect() clause.Dialect { return s.dialect }

// IsDynamic reports whether dynamic additions are enabled.
func (s Statement) IsDynamic() bool { return s.dynamic }

// Clauses returns the clauses in declaration order.
func (s Statement) Clauses() []clause.Clause { return slices.Clone(s.clauses) }

// Clause returns the clause of kind, if declared.
func (s Statement) Clause(kind clause.Kind) (clause.Clause, bool) {
	i := s.index(kind)
	if i < 0 {
		return nil, false
	}
	return s.clauses[i], true
}

// Required is the union of every clause's required tables.
func (s Statement) Required() tableset.Set { return s.required }

// Provided is the union of every clause's provided tables.
func (s Statement) Provided() tableset.Set { return s.provided }

// Extra is the union of every clause's extra tables.
func (s Statement) Extra() tableset.Set { return s.extra }

// Known is Provided ∪ Extra: the tables dynamic additions may reference.
func (s Statement) Known() tableset.Set { return tableset.Union(s.provided, s.extra) }

// Unresolved is Required − Provided. Extra tables never discharge a requirement.
func (s Statement) Unresolved() tableset.Set { return tableset.Difference(s.required, s.provided) }

// Slots returns every parameter slot in binding order.
func (s Statement) Slots() []clause.Slot {
	var slots []clause.Slot
	for _, c := range s.clauses {
		slots = append(slots, c.Slots()...)
	}
	return slots
}

// ParameterCount is the number of deferred slots the caller must bind.
func (s Statement) ParameterCount() int {
	n := 0
	for _, slot := range s.Slots() {
		if slot.Deferred() {
			n++
		}
	}
	return n
}

// Capabilities returns the fluent methods currently available, sorted.
// A method disappears once its placeholder has been replaced.
func (s Statement) Capabilities() []string {
	var methods []string
	for _, c := range s.clauses {
		if p, ok := c.(clause.Placeholder); ok {
			methods = append(methods, p.Methods()...)
		}
	}
	if s.dynamic {
		for method, kinds := range dynamicMethods {
			for _, k := range kinds {
				if s.index(k) >= 0 {
					methods = append(methods, method)
					break
				}
			}
		}
	}
	slices.Sort(methods)
	return slices.Compact(methods)
}

// Can reports whether method is currently available.
func (s Statement) Can(method string) bool {
	return slices.Contains(s.Capabilities(), method)
}
