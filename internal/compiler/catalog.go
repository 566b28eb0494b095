package compiler

import (
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/sqlclause/internal/tableset"
)

// Catalog is the set of tables statements may reference.
type Catalog struct {
	tables tableset.Set
}

// NewCatalog builds a catalog from tables already constructed in Go.
func NewCatalog(tables ...tableset.Table) Catalog {
	return Catalog{tables: tableset.Of(tables...)}
}

// Tables returns the catalog tables in name order.
func (c Catalog) Tables() []tableset.Table { return c.tables.Tables() }

// Len returns the number of tables.
func (c Catalog) Len() int { return c.tables.Len() }

// Table looks up a table by name.
func (c Catalog) Table(name string) (tableset.Table, error) {
	t, ok := c.tables.Lookup(name)
	if !ok {
		return tableset.Table{}, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// Column resolves "table.column". When the reference is bare, def names
// the table it belongs to.
func (c Catalog) Column(ref, def string) (tableset.Column, error) {
	tableName, colName := def, ref
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		tableName, colName = ref[:i], ref[i+1:]
	}
	if tableName == "" {
		return tableset.Column{}, fmt.Errorf("column %q must be qualified as table.column", ref)
	}
	t, err := c.Table(tableName)
	if err != nil {
		return tableset.Column{}, err
	}
	if !t.HasColumn(colName) {
		return tableset.Column{}, fmt.Errorf("table %q has no column %q", tableName, colName)
	}
	return t.Column(colName), nil
}

type tableDef struct {
	name     string
	columns  []string
	requires []string
	pos      cue.Value
}

// CompileCatalog parses the `table` struct:
//
//	table: users: { columns: ["id", "name"] }
//	table: recent: { columns: ["id"], requires: ["orders"] }
//
// Tables may require other tables in any declaration order; a dependency
// cycle or a reference to an undeclared table is an error.
func CompileCatalog(v cue.Value) (Catalog, error) {
	if !v.Exists() {
		return Catalog{}, nil
	}
	if err := v.Err(); err != nil {
		return Catalog{}, formatCUEError(err)
	}

	iter, err := v.Fields()
	if err != nil {
		return Catalog{}, formatCUEError(err)
	}

	defs := map[string]tableDef{}
	for iter.Next() {
		def, err := parseTableDef(iter.Label(), iter.Value())
		if err != nil {
			return Catalog{}, err
		}
		defs[def.name] = def
	}

	built := map[string]tableset.Table{}
	for len(built) < len(defs) {
		progress := false
		for _, name := range sortedNames(defs) {
			if _, done := built[name]; done {
				continue
			}
			def := defs[name]
			deps, ready, err := resolveRequires(def, defs, built)
			if err != nil {
				return Catalog{}, err
			}
			if !ready {
				continue
			}
			if len(deps) == 0 {
				built[name] = tableset.NewTable(name, def.columns...)
			} else {
				built[name] = tableset.DerivedTable(name, tableset.Of(deps...), def.columns...)
			}
			progress = true
		}
		if !progress {
			var pending []string
			for _, name := range sortedNames(defs) {
				if _, done := built[name]; !done {
					pending = append(pending, name)
				}
			}
			first := defs[pending[0]]
			return Catalog{}, &CompileError{
				Field:   "requires",
				Message: fmt.Sprintf("table dependency cycle among %s", strings.Join(pending, ", ")),
				Pos:     first.pos.Pos(),
			}
		}
	}

	tables := make([]tableset.Table, 0, len(built))
	for _, t := range built {
		tables = append(tables, t)
	}
	return NewCatalog(tables...), nil
}

func resolveRequires(def tableDef, defs map[string]tableDef, built map[string]tableset.Table) ([]tableset.Table, bool, error) {
	deps := make([]tableset.Table, 0, len(def.requires))
	for _, req := range def.requires {
		if _, declared := defs[req]; !declared {
			return nil, false, &CompileError{
				Field:   "requires",
				Message: fmt.Sprintf("table %s requires undeclared table %s", def.name, req),
				Pos:     def.pos.Pos(),
			}
		}
		t, ok := built[req]
		if !ok {
			return nil, false, nil
		}
		deps = append(deps, t)
	}
	return deps, true, nil
}

func sortedNames(defs map[string]tableDef) []string {
	names := make([]string, 0, len(defs))
	for n := range defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func parseTableDef(name string, v cue.Value) (tableDef, error) {
	def := tableDef{name: name, pos: v}
	if err := v.Err(); err != nil {
		return def, formatCUEError(err)
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return def, &CompileError{Field: "columns", Message: fmt.Sprintf("table %s: columns is required", name), Pos: v.Pos()}
	}
	cols, err := stringList(colsVal)
	if err != nil {
		return def, err
	}
	if len(cols) == 0 {
		return def, &CompileError{Field: "columns", Message: fmt.Sprintf("table %s: at least one column is required", name), Pos: colsVal.Pos()}
	}
	seen := map[string]bool{}
	for _, c := range cols {
		if !isIdentifier(c) {
			return def, &CompileError{Field: "columns", Message: fmt.Sprintf("table %s: invalid column name %q", name, c), Pos: colsVal.Pos()}
		}
		if seen[c] {
			return def, &CompileError{Field: "columns", Message: fmt.Sprintf("table %s: duplicate column %q", name, c), Pos: colsVal.Pos()}
		}
		seen[c] = true
	}
	def.columns = cols

	if reqVal := v.LookupPath(cue.ParsePath("requires")); reqVal.Exists() {
		reqs, err := stringList(reqVal)
		if err != nil {
			return def, err
		}
		def.requires = reqs
	}
	if !isIdentifier(name) {
		return def, &CompileError{Field: "table", Message: fmt.Sprintf("invalid table name %q", name), Pos: v.Pos()}
	}
	return def, nil
}

// stringList decodes a CUE list of strings.
func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
