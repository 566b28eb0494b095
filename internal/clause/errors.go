package clause

import (
	"errors"
	"fmt"
	"strings"
)

// CompositionError reports a statement that cannot be formed or run.
//
// All composition errors are local and synchronous. None is retried: each
// names a programmer error the caller fixes by composing a different
// statement. Environment failures come from the executor instead.
type CompositionError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Clause is the clause kind involved, if any.
	Clause Kind

	// Tables names the offending tables (unresolved or unknown).
	Tables []string
}

// ErrorCode categorizes composition errors.
type ErrorCode string

const (
	// ErrCodeIncomplete indicates required tables no clause provides.
	ErrCodeIncomplete ErrorCode = "STRUCTURAL_INCOMPLETENESS"

	// ErrCodeShapeViolation indicates a clause payload failed its precondition.
	ErrCodeShapeViolation ErrorCode = "SHAPE_VIOLATION"

	// ErrCodeParameterMismatch indicates Run on a parameterized statement,
	// or an argument count that does not match the deferred slots.
	ErrCodeParameterMismatch ErrorCode = "PARAMETER_MISMATCH"

	// ErrCodeDuplicateClauseUse indicates an undeclared clause kind or a
	// fluent method whose placeholder was already replaced.
	ErrCodeDuplicateClauseUse ErrorCode = "DUPLICATE_CLAUSE_USE"

	// ErrCodeUnknownTable indicates a dynamic addition referencing a table
	// outside the statement's known tables.
	ErrCodeUnknownTable ErrorCode = "UNKNOWN_TABLE"

	// ErrCodeMissingClause indicates a mandatory clause still holds its placeholder.
	ErrCodeMissingClause ErrorCode = "MISSING_CLAUSE"

	// ErrCodeDialectMismatch indicates a dynamic statement handed to an
	// executor of another dialect.
	ErrCodeDialectMismatch ErrorCode = "DIALECT_MISMATCH"
)

// Sentinels for errors.Is. They match any CompositionError with the same code.
var (
	ErrIncomplete         = &CompositionError{Code: ErrCodeIncomplete}
	ErrShapeViolation     = &CompositionError{Code: ErrCodeShapeViolation}
	ErrParameterMismatch  = &CompositionError{Code: ErrCodeParameterMismatch}
	ErrDuplicateClauseUse = &CompositionError{Code: ErrCodeDuplicateClauseUse}
	ErrUnknownTable       = &CompositionError{Code: ErrCodeUnknownTable}
	ErrMissingClause      = &CompositionError{Code: ErrCodeMissingClause}
	ErrDialectMismatch    = &CompositionError{Code: ErrCodeDialectMismatch}
)

// Error implements the error interface.
func (e *CompositionError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.ToLower(strings.ReplaceAll(string(e.Code), "_", " "))
	}
	if len(e.Tables) > 0 {
		return fmt.Sprintf("%s: %s (tables=%s)", e.Code, msg, strings.Join(e.Tables, ","))
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Is matches another CompositionError with the same code.
func (e *CompositionError) Is(target error) bool {
	var other *CompositionError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Newf creates a CompositionError with a formatted message.
func Newf(code ErrorCode, kind Kind, format string, args ...any) *CompositionError {
	return &CompositionError{Code: code, Clause: kind, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the composition error code of err, or "" if err is not one.
func CodeOf(err error) ErrorCode {
	var ce *CompositionError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsIncomplete reports whether err is a structural-incompleteness error.
func IsIncomplete(err error) bool { return CodeOf(err) == ErrCodeIncomplete }

// IsShapeViolation reports whether err is a shape-violation error.
func IsShapeViolation(err error) bool { return CodeOf(err) == ErrCodeShapeViolation }

// IsParameterMismatch reports whether err is a parameter-mismatch error.
func IsParameterMismatch(err error) bool { return CodeOf(err) == ErrCodeParameterMismatch }

// IsDuplicateClauseUse reports whether err is a duplicate-clause-use error.
func IsDuplicateClauseUse(err error) bool { return CodeOf(err) == ErrCodeDuplicateClauseUse }

// IsUnknownTable reports whether err is an unknown-table error.
func IsUnknownTable(err error) bool { return CodeOf(err) == ErrCodeUnknownTable }

// IsMissingClause reports whether err is a missing-clause error.
func IsMissingClause(err error) bool { return CodeOf(err) == ErrCodeMissingClause }

// IsDialectMismatch reports whether err is a dialect-mismatch error.
func IsDialectMismatch(err error) bool { return CodeOf(err) == ErrCodeDialectMismatch }
