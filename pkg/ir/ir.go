package ir

import (
	"fmt"
	"strings"
)

type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpCEq
	OpCLt
	OpCLe
	OpCGt
	OpCGe
	OpPhi
	OpRet
	OpDispatch
)

var opNames = [...]string{
	OpAdd:      "add",
	OpSub:      "sub",
	OpMul:      "mul",
	OpDiv:      "div",
	OpCEq:      "eq",
	OpCLt:      "lt",
	OpCLe:      "leq",
	OpCGt:      "gt",
	OpCGe:      "geq",
	OpPhi:      "PHI",
	OpRet:      "RETURN",
	OpDispatch: "DISPATCH",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("op(%d)", int(o))
	}
	return opNames[o]
}

// IsBinary reports whether o is an arithmetic or comparison instruction.
func (o Op) IsBinary() bool { return o <= OpCGe }

// IsSpecial reports whether o is one of the tagged special instructions.
func (o Op) IsSpecial() bool { return o >= OpPhi }

func checkArity(op Op, n int) {
	switch {
	case op.IsBinary() || op == OpPhi:
		if n != 2 {
			invariant("%s takes 2 operands, got %d", op, n)
		}
	case op == OpRet:
		if n > 1 {
			invariant("RETURN takes at most 1 operand, got %d", n)
		}
	case op == OpDispatch:
		if n < 3 {
			invariant("DISPATCH needs class, procedure and receiver operands, got %d", n)
		}
	default:
		invariant("unknown op %d", int(op))
	}
}

// Instruction is one node of a block's singly linked instruction list. The
// operand slots are fixed in number but their contents may be rewritten.
type Instruction struct {
	Op       Op
	id       int
	operands []Operand
	next     *Instruction
}

// NewInstruction builds a detached instruction. Most callers should go through
// Func.NewInstr so the id comes from the owning procedure.
func NewInstruction(id int, op Op, operands ...Operand) *Instruction {
	checkArity(op, len(operands))
	ops := make([]Operand, len(operands))
	copy(ops, operands)
	return &Instruction{Op: op, id: id, operands: ops}
}

func (i *Instruction) ID() int               { return i.id }
func (i *Instruction) Next() *Instruction    { return i.next }
func (i *Instruction) IsPhi() bool           { return i.Op == OpPhi }
func (i *Instruction) NumOperands() int      { return len(i.operands) }
func (i *Instruction) Operand(n int) Operand { return i.operands[n] }

// Operands returns a snapshot of the operand slots.
func (i *Instruction) Operands() []Operand {
	ops := make([]Operand, len(i.operands))
	copy(ops, i.operands)
	return ops
}

func (i *Instruction) SetOperand(n int, op Operand) {
	if n < 0 || n >= len(i.operands) {
		invariant("instruction %d has no operand slot %d", i.id, n)
	}
	i.operands[n] = op
}

func (i *Instruction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d: %s", i.id, i.Op)
	for n, op := range i.operands {
		if n > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(" ")
		if op == nil {
			sb.WriteString("<nil>")
		} else {
			sb.WriteString(op.String())
		}
	}
	return sb.String()
}

// InvariantError reports misuse of the IR builder. It is raised with panic and
// recovered at the code generator boundary.
type InvariantError struct{ Msg string }

func (e *InvariantError) Error() string { return "ir: invariant violated: " + e.Msg }

func invariant(format string, args ...interface{}) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}
