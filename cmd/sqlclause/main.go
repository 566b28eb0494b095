// Command sqlclause compiles CUE statement definitions, checks that each
// statement provides every table it references, and renders or executes
// them.
//
// Usage:
//
//	sqlclause [--config file] [--format text|json] [-v] <command>
//
// Commands:
//   - validate: check every statement is ready to execute
//   - render: print SQL, parameter order and fingerprints
//   - exec: run one statement against the configured database
//   - test: run YAML scenarios against in-memory SQLite
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/sqlclause/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		// Commands report ExitErrors themselves; anything else (bad flags,
		// wrong arity) is printed here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
