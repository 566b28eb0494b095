package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sqlclause/internal/clause"
	"github.com/roach88/sqlclause/internal/compiler"
	"github.com/roach88/sqlclause/internal/ir"
	"github.com/roach88/sqlclause/internal/statement"
	"github.com/roach88/sqlclause/internal/store"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Args []string // positional parameter values, YAML scalars
	Run  bool     // execute through Statement.Run
	DSN  string   // bound to database.dsn by the config loader
	// Driver is bound to database.driver by the config loader.
	Driver string
}

// ExecResult is the outcome of one execution.
type ExecResult struct {
	Statement string      `json:"statement"`
	SQL       string      `json:"sql"`
	Affected  *int64      `json:"affected,omitempty"`
	Rows      []ir.Object `json:"rows,omitempty"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec [specs-dir] <statement>",
		Short: "Execute one statement against the configured database",
		Long: `Execute a compiled statement against the database named by
database.driver and database.dsn (config file, SQLCLAUSE_DATABASE_* env,
or --driver/--dsn).

Parameter values are given in binding order with --arg and parsed as YAML
scalars: 42 is an integer, true a boolean, null is NULL, anything else a
string. SELECT statements print their rows; other kinds print the number
of rows affected. With --run the statement must take no parameters and
SELECT reports the number of rows read.

Examples:
  sqlclause exec ./specs add_user --arg 1 --arg ada
  sqlclause exec list_users --dsn file:app.db
  sqlclause exec ./specs purge_users --run`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[len(args)-1]
			return runExec(opts, specsDirArg(rootOpts, args[:len(args)-1]), name, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "parameter value (repeatable, in binding order)")
	cmd.Flags().BoolVar(&opts.Run, "run", false, "run a parameterless statement")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "database DSN")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|postgres|pgx|mysql)")

	return cmd
}

func runExec(opts *ExecOptions, specsDir, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Run && len(opts.Args) > 0 {
		_ = formatter.Error(ErrCodeGeneric, "--run takes no --arg values", nil)
		return NewExitError(ExitCommandError, "--run takes no --arg values")
	}
	args, err := parseArgs(opts.Args)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --arg", err)
	}

	loaded, err := LoadSpecs(specsDir)
	if err != nil {
		return loadErrorResponse(formatter, err)
	}
	def, err := findDefinition(loaded.Specs, name)
	if err != nil {
		code := ErrCodeNotFound
		if _, failed := loaded.Specs.Failed[name]; failed {
			code = compiler.CodeFor(err)
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, name, err)
	}

	if opts.Config == nil {
		return NewExitError(ExitCommandError, "no configuration loaded")
	}
	sc, err := opts.Config.StoreConfig()
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "database", err)
	}

	ctx := cmd.Context()
	st, err := store.Open(ctx, sc)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening database", err)
	}
	defer st.Close()

	formatter.VerboseLog("Executing %s on %s (%s)", name, sc.Driver, st.Dialect())
	result, err := execute(ctx, st, def, args, opts.Run)
	if err != nil {
		if code := clause.CodeOf(err); code != "" {
			_ = formatter.Error(compiler.CodeFor(err), err.Error(), map[string]string{"statement": name, "code": string(code)})
			return WrapExitError(ExitFailure, name, err)
		}
		_ = formatter.Error(ErrCodeDatabase, err.Error(), map[string]string{"statement": name})
		return WrapExitError(ExitCommandError, name, err)
	}
	return outputExecSuccess(formatter, result)
}

func findDefinition(specs *compiler.Specs, name string) (*compiler.Definition, error) {
	if def, ok := specs.Statement(name); ok {
		return def, nil
	}
	if err, failed := specs.Failed[name]; failed {
		return nil, fmt.Errorf("statement %s did not compile: %w", name, err)
	}
	return nil, fmt.Errorf("no such statement: %s", name)
}

// execute runs def on st. The rendered SQL is reported even when binding
// or execution fails afterwards.
func execute(ctx context.Context, st *store.Store, def *compiler.Definition, args []any, run bool) (*ExecResult, error) {
	stmt := def.Statement
	dialect := st.Dialect()
	if stmt.IsDynamic() {
		dialect = stmt.Dialect()
	}
	r, err := stmt.Render(dialect)
	if err != nil {
		return nil, err
	}
	result := &ExecResult{Statement: def.Name, SQL: r.SQL}

	switch {
	case run:
		n, err := stmt.Run(ctx, st)
		if err != nil {
			return nil, err
		}
		result.Affected = &n
	case stmt.Kind() == statement.Select:
		rows, err := st.Fetch(ctx, stmt, args...)
		if err != nil {
			return nil, err
		}
		result.Rows = rows
		if result.Rows == nil {
			result.Rows = []ir.Object{}
		}
	default:
		n, err := st.Exec(ctx, stmt, args...)
		if err != nil {
			return nil, err
		}
		result.Affected = &n
	}
	return result, nil
}

// parseArgs decodes each --arg as a YAML scalar and converts it for the
// driver.
func parseArgs(raw []string) ([]any, error) {
	out := make([]any, len(raw))
	for i, s := range raw {
		var decoded any
		if err := yaml.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, fmt.Errorf("--arg %d: %w", i+1, err)
		}
		v, err := ir.FromGo(decoded)
		if err != nil {
			return nil, fmt.Errorf("--arg %d: %w", i+1, err)
		}
		if out[i], err = ir.ToDriver(v); err != nil {
			return nil, fmt.Errorf("--arg %d: %w", i+1, err)
		}
	}
	return out, nil
}

// outputExecSuccess prints rows or the affected count.
func outputExecSuccess(formatter *OutputFormatter, result *ExecResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	formatter.VerboseLog("%s", result.SQL)
	if result.Rows != nil {
		for _, row := range result.Rows {
			fmt.Fprintln(w, ir.Format(row))
		}
		fmt.Fprintf(w, "%d row(s)\n", len(result.Rows))
		return nil
	}
	fmt.Fprintf(w, "✓ %s: %d row(s)\n", result.Statement, *result.Affected)
	return nil
}
