package statement

import (
	"context"

	"github.com/roach88/sqlclause/internal/clause"
)

// Executor dispatches statements. Implementations own connections,
// binding, and row decoding; the statement owns correctness.
type Executor interface {
	// Dialect is the placeholder style the executor renders with.
	Dialect() clause.Dialect
	// Run executes a parameterless statement and returns the row count.
	Run(ctx context.Context, s Statement) (int64, error)
	// Prepare readies a statement for repeated execution.
	Prepare(ctx context.Context, s Statement) (Prepared, error)
}

// Prepared is an executor-owned handle for a statement with deferred slots.
type Prepared interface {
	// Exec binds args positionally to the deferred slots and runs.
	Exec(ctx context.Context, args ...any) (int64, error)
	ParameterCount() int
	Close() error
}

// Run validates s and hands it to ex. A statement with deferred slots is
// rejected before any I/O: use Prepare.
func (s Statement) Run(ctx context.Context, ex Executor) (int64, error) {
	if err := s.Ready(); err != nil {
		return 0, err
	}
	if n := s.ParameterCount(); n > 0 {
		return 0, clause.Newf(clause.ErrCodeParameterMismatch, "",
			"statement has %d parameters: use Prepare", n)
	}
	if err := s.checkDialect(ex); err != nil {
		return 0, err
	}
	return ex.Run(ctx, s)
}

// Prepare validates s and asks ex for a prepared handle.
func (s Statement) Prepare(ctx context.Context, ex Executor) (Prepared, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	if err := s.checkDialect(ex); err != nil {
		return nil, err
	}
	return ex.Prepare(ctx, s)
}

// checkDialect holds dynamic statements to the dialect they were begun for.
func (s Statement) checkDialect(ex Executor) error {
	if s.dynamic && s.dialect != ex.Dialect() {
		return clause.Newf(clause.ErrCodeDialectMismatch, "",
			"dynamic statement built for %s cannot run on %s executor", s.dialect, ex.Dialect())
	}
	return nil
}
