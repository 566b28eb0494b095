package compiler

import (
	"errors"
	"fmt"
	"sort"

	"cuelang.org/go/cue"

	"github.com/roach88/sqlclause/internal/clause"
)

// Validation error codes (E200-E299)
const (
	// Composition errors (E201-E206), one per clause.ErrorCode
	ErrStructuralIncompleteness = "E201" // required tables not provided
	ErrShapeViolation           = "E202" // clause payload failed its precondition
	ErrParameterMismatch        = "E203" // parameter and argument counts disagree
	ErrDuplicateClauseUse       = "E204" // method used twice or not offered
	ErrUnknownTable             = "E205" // dynamic addition outside known tables
	ErrMissingClause            = "E206" // mandatory clause never filled
	ErrDialectMismatch          = "E207" // dynamic statement run on another dialect

	// Definition errors (E210)
	ErrMalformedDefinition = "E210" // CUE definition could not be compiled
)

var compositionCodes = map[clause.ErrorCode]string{
	clause.ErrCodeIncomplete:         ErrStructuralIncompleteness,
	clause.ErrCodeShapeViolation:     ErrShapeViolation,
	clause.ErrCodeParameterMismatch:  ErrParameterMismatch,
	clause.ErrCodeDuplicateClauseUse: ErrDuplicateClauseUse,
	clause.ErrCodeUnknownTable:       ErrUnknownTable,
	clause.ErrCodeMissingClause:      ErrMissingClause,
	clause.ErrCodeDialectMismatch:    ErrDialectMismatch,
}

// ValidationError represents a statement that cannot be executed.
type ValidationError struct {
	Statement string `json:"statement"`
	Field     string `json:"field"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	Line      int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] %s line %d: %s: %s", e.Code, e.Statement, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Statement, e.Field, e.Message)
}

// CodeFor maps an error from compilation or validation to its E2xx code.
func CodeFor(err error) string {
	if code, ok := compositionCodes[clause.CodeOf(err)]; ok {
		return code
	}
	return ErrMalformedDefinition
}

// ErrorFor converts err into a ValidationError for statement name.
func ErrorFor(name string, err error) ValidationError {
	ve := ValidationError{Statement: name, Field: "statement", Message: err.Error(), Code: CodeFor(err)}
	var ce *CompileError
	if errors.As(err, &ce) {
		ve.Field = ce.Field
		ve.Message = ce.Message
		if ce.Err != nil {
			ve.Message = ce.Err.Error()
		}
		if ce.Pos.IsValid() {
			ve.Line = ce.Pos.Line()
		}
	}
	var comp *clause.CompositionError
	if ve.Field == "statement" && errors.As(err, &comp) && comp.Clause != "" {
		ve.Field = string(comp.Clause)
	}
	return ve
}

// Validate checks that a compiled definition is ready to execute.
// Returns all errors found (does not fail-fast): the table check and the
// mandatory clause check run independently.
func Validate(def *Definition) []ValidationError {
	var errs []ValidationError
	if err := def.Statement.Validate(); err != nil {
		errs = append(errs, withLine(ErrorFor(def.Name, err), def))
	}
	if err := def.Statement.Complete(); err != nil {
		errs = append(errs, withLine(ErrorFor(def.Name, err), def))
	}
	return errs
}

func withLine(ve ValidationError, def *Definition) ValidationError {
	if ve.Line == 0 && def.Pos.IsValid() {
		ve.Line = def.Pos.Line()
	}
	return ve
}

// Specs is everything compiled from one CUE value.
type Specs struct {
	Catalog    Catalog
	Statements []*Definition

	// Failed holds statements that did not compile, keyed by name.
	Failed map[string]error
}

// Statement looks up a compiled definition by name.
func (s *Specs) Statement(name string) (*Definition, bool) {
	for _, d := range s.Statements {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// CompileSpecs compiles the top-level `table` and `statement` structs.
// A broken catalog fails the whole compile; a broken statement is recorded
// in Failed so the rest can still be used.
func CompileSpecs(v cue.Value) (*Specs, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	cat, err := CompileCatalog(v.LookupPath(cue.ParsePath("table")))
	if err != nil {
		return nil, err
	}

	specs := &Specs{Catalog: cat, Failed: map[string]error{}}
	stmts := v.LookupPath(cue.ParsePath("statement"))
	if !stmts.Exists() {
		return specs, nil
	}
	iter, err := stmts.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		def, err := CompileStatement(iter.Value(), cat)
		if err != nil {
			specs.Failed[name] = err
			continue
		}
		def.Name = name
		specs.Statements = append(specs.Statements, def)
	}
	sort.Slice(specs.Statements, func(i, j int) bool {
		return specs.Statements[i].Name < specs.Statements[j].Name
	})
	return specs, nil
}

// FailedNames returns the names in Failed, sorted.
func (s *Specs) FailedNames() []string {
	names := make([]string, 0, len(s.Failed))
	for n := range s.Failed {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
