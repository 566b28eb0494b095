package clause

import (
	"github.com/roach88/sqlclause/internal/ir"
	"github.com/roach88/sqlclause/internal/tableset"
)

// Operand is the right-hand side of an assignment or comparison.
//
// This is a sealed interface. Operand types:
//   - Param: deferred slot bound at execution
//   - Literal: bound slot carrying a value
//   - Default: the DEFAULT keyword, no slot
//   - Ref: another column, no slot
type Operand interface {
	Requires() tableset.Set
	appendSlots(dst []Slot) []Slot
	emit(ctx *Context)
	operandNode() // Marker method - seals interface to this package
}

type paramOperand struct{ name string }

// Param is a deferred parameter named for diagnostics.
func Param(name string) Operand { return paramOperand{name: name} }

func (paramOperand) Requires() tableset.Set { return tableset.Set{} }
func (p paramOperand) appendSlots(dst []Slot) []Slot {
	return append(dst, Slot{Name: p.name})
}
func (p paramOperand) emit(ctx *Context) { ctx.Bind(Slot{Name: p.name}) }
func (paramOperand) operandNode()        {}

type literalOperand struct {
	name  string
	value ir.Value
}

// Literal is a value known at composition time. It is still emitted as a
// placeholder; the executor binds the value.
func Literal(name string, v ir.Value) Operand {
	if v == nil {
		v = ir.Null{}
	}
	return literalOperand{name: name, value: v}
}

func (literalOperand) Requires() tableset.Set { return tableset.Set{} }
func (l literalOperand) appendSlots(dst []Slot) []Slot {
	return append(dst, Slot{Name: l.name, Value: l.value})
}
func (l literalOperand) emit(ctx *Context) { ctx.Bind(Slot{Name: l.name, Value: l.value}) }
func (literalOperand) operandNode()        {}

type defaultOperand struct{}

// Default is the DEFAULT keyword.
var Default Operand = defaultOperand{}

func (defaultOperand) Requires() tableset.Set        { return tableset.Set{} }
func (defaultOperand) appendSlots(dst []Slot) []Slot { return dst }
func (defaultOperand) emit(ctx *Context)             { ctx.WriteString("DEFAULT") }
func (defaultOperand) operandNode()                  {}

type refOperand struct{ col tableset.Column }

// Ref refers to another column. It requires that column's table.
func Ref(col tableset.Column) Operand { return refOperand{col: col} }

func (r refOperand) Requires() tableset.Set      { return r.col.Requires() }
func (refOperand) appendSlots(dst []Slot) []Slot { return dst }
func (r refOperand) emit(ctx *Context)           { ctx.WriteString(r.col.Qualified()) }
func (refOperand) operandNode()                  {}
