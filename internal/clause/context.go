package clause

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/sqlclause/internal/ir"
)

// Dialect selects the placeholder style. It is the only dialect-specific
// detail the serializer knows about.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// Dialects lists the supported dialects.
var Dialects = []Dialect{SQLite, Postgres, MySQL}

// ParseDialect validates a dialect name. The empty string means SQLite.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	default:
		return "", fmt.Errorf("unknown dialect %q: must be one of %v", name, Dialects)
	}
}

// Slot is a parameter position in the emitted text.
// A deferred slot (Value == nil) is bound at execution time; a bound slot
// carries a literal the executor supplies itself.
type Slot struct {
	Name  string
	Value ir.Value
}

// Deferred reports whether the slot must be supplied by the caller.
func (s Slot) Deferred() bool { return s.Value == nil }

// Record converts the slot to its fingerprint form.
func (s Slot) Record() ir.SlotRecord {
	return ir.SlotRecord{Name: s.Name, Deferred: s.Deferred(), Value: s.Value}
}

// Context accumulates SQL text and the ordered slot list during
// serialization. It is scoped to a single serialization call.
type Context struct {
	dialect Dialect
	buf     strings.Builder
	slots   []Slot
}

// NewContext creates an empty context for dialect.
func NewContext(dialect Dialect) *Context {
	if dialect == "" {
		dialect = SQLite
	}
	return &Context{dialect: dialect}
}

// Dialect returns the target dialect.
func (c *Context) Dialect() Dialect { return c.dialect }

// WriteString appends raw SQL text.
func (c *Context) WriteString(s string) { c.buf.WriteString(s) }

// Space separates fragments: it writes one space unless the buffer is empty.
func (c *Context) Space() {
	if c.buf.Len() > 0 {
		c.buf.WriteByte(' ')
	}
}

// Bind writes the placeholder for s and records it.
// Values are never inlined into the text.
func (c *Context) Bind(s Slot) {
	c.slots = append(c.slots, s)
	if c.dialect == Postgres {
		c.buf.WriteString("$" + strconv.Itoa(len(c.slots)))
		return
	}
	c.buf.WriteByte('?')
}

// SQL returns the accumulated text.
func (c *Context) SQL() string { return c.buf.String() }

// Slots returns the recorded slots in binding order.
func (c *Context) Slots() []Slot { return append([]Slot(nil), c.slots...) }
