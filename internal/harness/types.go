package harness

import "github.com/roach88/sqlclause/internal/ir"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq       int64       `json:"seq"`
	Statement string      `json:"statement"`
	SQL       string      `json:"sql,omitempty"`
	Args      []any       `json:"args,omitempty"`
	Affected  *int64      `json:"affected,omitempty"`
	Rows      []ir.Object `json:"rows,omitempty"`

	// Error is the composition error code, DriverError for failures
	// reported by the database, or CompileError for broken definitions.
	Error string `json:"error,omitempty"`
}

// Trace codes for errors that are not composition errors.
const (
	DriverError  = "DRIVER_ERROR"
	CompileError = "COMPILE_ERROR"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds mismatch and assertion messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// TraceHash is the content hash of the canonical trace.
	TraceHash string `json:"trace_hash"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// canonical converts an event to an ir.Object for canonical JSON.
func (e TraceEvent) canonical() (ir.Object, error) {
	obj := ir.Object{
		"seq":       ir.Int(e.Seq),
		"statement": ir.String(e.Statement),
	}
	if e.SQL != "" {
		obj["sql"] = ir.String(e.SQL)
	}
	if len(e.Args) > 0 {
		args, err := ir.FromGo(e.Args)
		if err != nil {
			return nil, err
		}
		obj["args"] = args
	}
	if e.Affected != nil {
		obj["affected"] = ir.Int(*e.Affected)
	}
	if e.Rows != nil {
		rows := make(ir.Array, len(e.Rows))
		for i, r := range e.Rows {
			rows[i] = r
		}
		obj["rows"] = rows
	}
	if e.Error != "" {
		obj["error"] = ir.String(e.Error)
	}
	return obj, nil
}

// canonicalTrace converts a trace to an ir.Array.
func canonicalTrace(trace []TraceEvent) (ir.Array, error) {
	arr := make(ir.Array, len(trace))
	for i, e := range trace {
		obj, err := e.canonical()
		if err != nil {
			return nil, err
		}
		arr[i] = obj
	}
	return arr, nil
}
