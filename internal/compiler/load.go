package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// CompileFiles unifies the given CUE files and compiles the result.
// Each file is compiled on its own first so errors carry its name.
func CompileFiles(paths ...string) (*Specs, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no spec files given")
	}
	ctx := cuecontext.New()
	var merged cue.Value
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading spec file: %w", err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if i == 0 {
			merged = v
		} else {
			merged = merged.Unify(v)
		}
	}
	return CompileSpecs(merged)
}
