package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlclause/internal/clause"
	"github.com/roach88/sqlclause/internal/compiler"
	"github.com/roach88/sqlclause/internal/ir"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Dialect string // overrides the configured dialect
	Output  string // output file path
}

// RenderedStatement is one statement's SQL and slot layout.
type RenderedStatement struct {
	Name        string      `json:"name"`
	Kind        string      `json:"kind"`
	Dialect     string      `json:"dialect"`
	Dynamic     bool        `json:"dynamic,omitempty"`
	SQL         string      `json:"sql"`
	Params      []string    `json:"params"`
	Literals    []SlotValue `json:"literals,omitempty"`
	Fingerprint string      `json:"fingerprint"`
}

// SlotValue is a literal bound at a slot position.
type SlotValue struct {
	Position int      `json:"position"`
	Name     string   `json:"name"`
	Value    ir.Value `json:"value"`
}

// RenderResult holds every rendered statement.
type RenderResult struct {
	Statements []RenderedStatement `json:"statements"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render [specs-dir] [statement...]",
		Short: "Render statements to SQL",
		Long: `Render compiled statements to SQL text for a dialect.

Each statement is checked for readiness before rendering. The output lists
the SQL, the deferred parameters in binding order, literal slots, and a
fingerprint that identifies the statement's SQL and slot layout.

Dynamic statements always render for the dialect they were begun with.

Examples:
  sqlclause render ./specs
  sqlclause render ./specs add_user list_users --dialect postgres
  sqlclause render ./specs -o statements.json`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			var names []string
			if len(args) > 1 {
				names = args[1:]
			}
			return runRender(opts, specsDirArg(rootOpts, args), names, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (sqlite|postgres|mysql)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runRender(opts *RenderOptions, specsDir string, names []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	dialect, err := renderDialect(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid dialect", err)
	}

	loaded, err := LoadSpecs(specsDir)
	if err != nil {
		return loadErrorResponse(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, specsDir)

	defs, missing := selectStatements(loaded.Specs, names)

	var result RenderResult
	var errs []CLIError
	for _, name := range missing {
		errs = append(errs, CLIError{Code: ErrCodeNotFound, Statement: name, Message: "no such statement"})
	}
	for _, name := range selectFailed(loaded.Specs, names) {
		ve := compiler.ErrorFor(name, loaded.Specs.Failed[name])
		errs = append(errs, CLIError{Code: ve.Code, Statement: name, Message: ve.Message})
	}
	for _, def := range defs {
		formatter.VerboseLog("Rendering statement: %s", def.Name)
		rs, err := renderDefinition(def, dialect)
		if err != nil {
			errs = append(errs, CLIError{Code: compiler.CodeFor(err), Statement: def.Name, Message: err.Error()})
			continue
		}
		result.Statements = append(result.Statements, rs)
	}

	if len(errs) > 0 {
		_ = formatter.Errors("✗ Rendering failed", errs)
		return NewExitError(ExitCommandError, fmt.Sprintf("rendering failed with %d error(s)", len(errs)))
	}

	if opts.Output != "" {
		if err := writeRenderFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}
	return outputRenderSuccess(formatter, result, opts.Output)
}

// renderDialect resolves --dialect, falling back to the config.
func renderDialect(opts *RenderOptions) (clause.Dialect, error) {
	if opts.Dialect != "" {
		return clause.ParseDialect(opts.Dialect)
	}
	if opts.Config != nil {
		return opts.Config.DialectValue(), nil
	}
	return clause.SQLite, nil
}

// selectStatements returns the named compiled definitions (all of them
// when names is empty) and the names that do not exist at all.
func selectStatements(specs *compiler.Specs, names []string) ([]*compiler.Definition, []string) {
	if len(names) == 0 {
		return specs.Statements, nil
	}
	var defs []*compiler.Definition
	var missing []string
	for _, name := range names {
		if def, ok := specs.Statement(name); ok {
			defs = append(defs, def)
			continue
		}
		if _, failed := specs.Failed[name]; !failed {
			missing = append(missing, name)
		}
	}
	return defs, missing
}

// selectFailed returns the requested names that failed to compile.
func selectFailed(specs *compiler.Specs, names []string) []string {
	if len(names) == 0 {
		return specs.FailedNames()
	}
	var out []string
	for _, name := range names {
		if _, ok := specs.Failed[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func renderDefinition(def *compiler.Definition, dialect clause.Dialect) (RenderedStatement, error) {
	st := def.Statement
	if st.IsDynamic() {
		dialect = st.Dialect()
	}
	r, err := st.Render(dialect)
	if err != nil {
		return RenderedStatement{}, err
	}
	fp, err := r.Fingerprint()
	if err != nil {
		return RenderedStatement{}, err
	}

	rs := RenderedStatement{
		Name:        def.Name,
		Kind:        string(st.Kind()),
		Dialect:     string(r.Dialect),
		Dynamic:     st.IsDynamic(),
		SQL:         r.SQL,
		Params:      []string{},
		Fingerprint: fp,
	}
	for i, s := range r.Slots {
		if s.Deferred() {
			rs.Params = append(rs.Params, s.Name)
			continue
		}
		rs.Literals = append(rs.Literals, SlotValue{Position: i + 1, Name: s.Name, Value: s.Value})
	}
	return rs, nil
}

// outputRenderSuccess outputs the rendered statements.
func outputRenderSuccess(formatter *OutputFormatter, result RenderResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Rendered %d statement(s)\n\n", len(result.Statements))
	for _, rs := range result.Statements {
		fmt.Fprintf(w, "%s (%s, %s)\n", rs.Name, strings.ToLower(rs.Kind), rs.Dialect)
		fmt.Fprintf(w, "  %s\n", rs.SQL)
		if len(rs.Params) > 0 {
			fmt.Fprintf(w, "  params: %s\n", strings.Join(rs.Params, ", "))
		}
		for _, lit := range rs.Literals {
			fmt.Fprintf(w, "  literal %d (%s): %s\n", lit.Position, lit.Name, ir.Format(lit.Value))
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote %d statement(s) to %s\n", len(result.Statements), outputFile)
	}
	return nil
}

// writeRenderFile writes the result as indented JSON.
func writeRenderFile(result RenderResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling statements: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
