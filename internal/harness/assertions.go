package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/sqlclause/internal/clause"
	"github.com/roach88/sqlclause/internal/compiler"
	"github.com/roach88/sqlclause/internal/ir"
	"github.com/roach88/sqlclause/internal/statement"
	"github.com/roach88/sqlclause/internal/store"
	"github.com/roach88/sqlclause/internal/tableset"
)

// validIdentifier matches scenario names: alphanumeric and underscore,
// starting with a letter or underscore.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", i+1, event.Statement, event.Args)
		}
	}
	return buf.String()
}

// assertTraceContains checks that a step ran the statement. When the
// assertion names args they must match exactly.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Statement == assertion.Statement && matchArgs(event.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("statement %s with args %v", assertion.Statement, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that statements first ran in the given order.
// They need not be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Statement]; !seen {
			positions[event.Statement] = i + 1 // 1-indexed for readability
		}
	}

	for _, name := range assertion.Statements {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all statements present: %v", assertion.Statements),
				Actual:   fmt.Sprintf("missing statement: %s", name),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Statements); i++ {
		prev := assertion.Statements[i-1]
		curr := assertion.Statements[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("statements in order: %v", assertion.Statements),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the statement ran exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Statement == assertion.Statement {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Statement),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks that exactly one row matches Where and that it
// holds the expected column values (subset semantics).
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	rows, err := queryTable(actx, assertion)
	if err != nil {
		return err
	}
	whereDesc := formatWhereClause(assertion.Where)

	if len(rows) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	}
	if len(rows) > 1 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actual := rows[0]
	for _, key := range sortedKeys(assertion.Expect) {
		actualValue, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("column %q to exist", key),
				Actual:   fmt.Sprintf("column %q not present in %s", key, ir.Format(actual)),
			}
		}
		expected, err := ir.FromGo(assertion.Expect[key])
		if err != nil {
			return fmt.Errorf("final_state expect %q: %w", key, err)
		}
		if !stateValuesEqual(expected, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("column %q = %s", key, ir.Format(expected)),
				Actual:   fmt.Sprintf("column %q = %s", key, ir.Format(actualValue)),
			}
		}
	}
	return nil
}

// assertRowCount checks how many rows match Where.
func assertRowCount(actx *AssertionContext, assertion Assertion) error {
	rows, err := queryTable(actx, assertion)
	if err != nil {
		return err
	}
	if len(rows) != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", assertion.Count, assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d rows", len(rows)),
		}
	}
	return nil
}

// queryTable reads assertion.Table through a composed SELECT of every
// catalog column, filtered by assertion.Where.
func queryTable(actx *AssertionContext, assertion Assertion) ([]ir.Object, error) {
	st, err := selectTable(actx.Catalog, assertion)
	if err != nil {
		return nil, err
	}
	rows, err := actx.Store.Fetch(actx.Ctx, st)
	if err != nil {
		return nil, &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	return rows, nil
}

func selectTable(cat compiler.Catalog, assertion Assertion) (statement.Statement, error) {
	table, err := cat.Table(assertion.Table)
	if err != nil {
		return statement.Statement{}, err
	}
	preds, err := wherePredicates(table, assertion.Where)
	if err != nil {
		return statement.Statement{}, err
	}

	st, err := statement.SelectColumns(table.AllColumns()...)
	if err != nil {
		return statement.Statement{}, err
	}
	if st, err = st.From(table); err != nil {
		return statement.Statement{}, err
	}
	if len(preds) > 0 {
		if st, err = st.Where(preds...); err != nil {
			return statement.Statement{}, err
		}
	}
	return st, nil
}

// wherePredicates turns assertion.Where into equality predicates with
// literal operands, sorted by column for determinism. A nil value becomes
// IS NULL.
func wherePredicates(table tableset.Table, where map[string]any) ([]clause.Predicate, error) {
	keys := sortedKeys(where)
	preds := make([]clause.Predicate, 0, len(keys))
	for _, key := range keys {
		if !table.HasColumn(key) {
			return nil, fmt.Errorf("where: table %s has no column %q", table.Name(), key)
		}
		v, err := ir.FromGo(where[key])
		if err != nil {
			return nil, fmt.Errorf("where %q: %w", key, err)
		}
		col := table.Column(key)
		if _, isNull := v.(ir.Null); isNull {
			preds = append(preds, clause.IsNull(col))
			continue
		}
		preds = append(preds, clause.Eq(col, clause.Literal(key, v)))
	}
	return preds, nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stateValuesEqual compares an expected value with one read back from
// SQLite, which stores booleans as integers.
func stateValuesEqual(expected, actual ir.Value) bool {
	if exp, ok := expected.(ir.Bool); ok {
		if n, isInt := actual.(ir.Int); isInt {
			return bool(exp) == (n != 0)
		}
	}
	return reflect.DeepEqual(expected, actual)
}

// matchArgs reports whether actual equals expected after IR conversion.
// A nil expected matches any args.
func matchArgs(actual, expected []any) bool {
	if expected == nil {
		return true
	}
	a, errA := ir.FromGo(actual)
	e, errE := ir.FromGo(expected)
	if errA != nil || errE != nil {
		return false
	}
	return reflect.DeepEqual(a, e)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context

	// Catalog resolves the tables named by final_state and row_count.
	Catalog compiler.Catalog
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState, AssertRowCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertFinalState {
				err = assertFinalState(actx, assertion)
			} else {
				err = assertRowCount(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
