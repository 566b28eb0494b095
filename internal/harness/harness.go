package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/roach88/sqlclause/internal/clause"
	"github.com/roach88/sqlclause/internal/compiler"
	"github.com/roach88/sqlclause/internal/ir"
	"github.com/roach88/sqlclause/internal/statement"
	"github.com/roach88/sqlclause/internal/store"
	"github.com/roach88/sqlclause/internal/testutil"
)

// Harness is the scenario execution engine. It runs steps with a
// deterministic clock so traces are reproducible.
type Harness struct {
	store  *store.Store
	specs  *compiler.Specs
	clock  *testutil.DeterministicClock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile the scenario's CUE specs
// 2. Create a fresh in-memory database and run setup SQL
// 3. Execute steps, checking each expect clause
// 4. Evaluate assertions and hash the trace
//
// An error return means the scenario could not run at all; step mismatches
// and failed assertions are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	specs, err := compiler.CompileFiles(scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile specs: %w", err)
	}

	st, err := store.OpenSQLite(ctx, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		specs:  specs,
		clock:  testutil.NewDeterministicClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	for i, query := range scenario.Setup {
		if _, err := st.ExecRaw(ctx, query); err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, Catalog: specs.Catalog}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	trace, err := canonicalTrace(result.Trace)
	if err != nil {
		return nil, fmt.Errorf("canonical trace: %w", err)
	}
	if result.TraceHash, err = ir.TraceHash(trace); err != nil {
		return nil, err
	}
	return result, nil
}

// executeStep runs one step, appends its trace event, and checks Expect.
// It returns an error only for steps that cannot be attempted.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	args, err := convertArgs(step.Args)
	if err != nil {
		return err
	}

	event := TraceEvent{
		Seq:       h.clock.Next(),
		Statement: step.Statement,
		Args:      step.Args,
	}

	def, ok := h.specs.Statement(step.Statement)
	if !ok {
		compileErr, failed := h.specs.Failed[step.Statement]
		if !failed {
			return fmt.Errorf("unknown statement %q", step.Statement)
		}
		// Definitions that failed to compose still produce a trace event so
		// scenarios can expect their error codes.
		event.Error = CompileError
		if code := clause.CodeOf(compileErr); code != "" {
			event.Error = string(code)
		}
		h.logger.Info("statement did not compile", "step", i, "statement", step.Statement, "error", compileErr)
	} else {
		h.execute(ctx, def.Statement, step, args, &event)
		h.logger.Info("step completed",
			"step", i,
			"statement", step.Statement,
			"sql", event.SQL,
			"error", event.Error,
		)
	}

	result.Trace = append(result.Trace, event)
	for _, msg := range checkExpect(step, event) {
		result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Statement, msg))
	}
	return nil
}

// execute records the outcome of one step. Run steps go through
// Statement.Run; everything else binds its args on a prepared handle that
// the store closes before returning.
func (h *Harness) execute(ctx context.Context, st statement.Statement, step Step, args []any, event *TraceEvent) {
	r, err := st.Render(h.store.Dialect())
	if err != nil {
		event.Error = errorCode(err)
		return
	}
	event.SQL = r.SQL

	switch {
	case step.Run:
		n, err := st.Run(ctx, h.store)
		event.record(n, err)
	case st.Kind() == statement.Select:
		rows, err := h.store.Fetch(ctx, st, args...)
		if err != nil {
			event.Error = errorCode(err)
			return
		}
		if rows == nil {
			rows = []ir.Object{}
		}
		event.Rows = rows
	default:
		n, err := h.store.Exec(ctx, st, args...)
		event.record(n, err)
	}
}

func (e *TraceEvent) record(n int64, err error) {
	if err != nil {
		e.Error = errorCode(err)
		return
	}
	e.Affected = &n
}

// errorCode maps err to its trace code.
func errorCode(err error) string {
	if code := clause.CodeOf(err); code != "" {
		return string(code)
	}
	return DriverError
}

// checkExpect compares the event with the step's expectation.
func checkExpect(step Step, event TraceEvent) []string {
	exp := step.Expect
	if exp == nil {
		if event.Error != "" {
			return []string{fmt.Sprintf("unexpected error %s", event.Error)}
		}
		return nil
	}

	var errs []string
	if exp.Error != event.Error {
		switch {
		case exp.Error == "":
			errs = append(errs, fmt.Sprintf("unexpected error %s", event.Error))
		case event.Error == "":
			errs = append(errs, fmt.Sprintf("expected error %s, statement succeeded", exp.Error))
		default:
			errs = append(errs, fmt.Sprintf("expected error %s, got %s", exp.Error, event.Error))
		}
	}
	if exp.SQL != "" && exp.SQL != event.SQL {
		errs = append(errs, fmt.Sprintf("expected sql %q, got %q", exp.SQL, event.SQL))
	}
	if exp.Affected != nil {
		if event.Affected == nil {
			errs = append(errs, fmt.Sprintf("expected %d rows affected, got none", *exp.Affected))
		} else if *exp.Affected != *event.Affected {
			errs = append(errs, fmt.Sprintf("expected %d rows affected, got %d", *exp.Affected, *event.Affected))
		}
	}
	if exp.Rows != nil {
		want, err := convertRows(exp.Rows)
		if err != nil {
			errs = append(errs, fmt.Sprintf("expected rows: %v", err))
		} else if !reflect.DeepEqual(want, event.Rows) {
			errs = append(errs, fmt.Sprintf("expected rows %v, got %v", formatRows(want), formatRows(event.Rows)))
		}
	}
	return errs
}

// convertArgs converts YAML-decoded args to driver values.
// Nested arrays and objects cannot be bound.
func convertArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := ir.FromGo(a)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		if out[i], err = ir.ToDriver(v); err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
	}
	return out, nil
}

func convertRows(rows []map[string]any) ([]ir.Object, error) {
	out := make([]ir.Object, len(rows))
	for i, row := range rows {
		v, err := ir.FromGo(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, errors.New("row must be a mapping")
		}
		out[i] = obj
	}
	return out, nil
}

func formatRows(rows []ir.Object) string {
	arr := make(ir.Array, len(rows))
	for i, r := range rows {
		arr[i] = r
	}
	return ir.Format(arr)
}
