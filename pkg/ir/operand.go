package ir

import "strconv"

// Operand is a reference to a value consumed by an instruction. Every variant
// is a small comparable value: two operands are equal when they are the same
// variant and point at the same target.
type Operand interface {
	isOperand()
	String() string
	Copy() Operand
}

type Constant struct{ Value int64 }
type InstructionOperand struct{ Instr *Instruction }
type ParameterOperand struct{ Var *Variable }
type SymbolicOperand struct{ Symbol string }

func (Constant) isOperand()           {}
func (InstructionOperand) isOperand() {}
func (ParameterOperand) isOperand()   {}
func (SymbolicOperand) isOperand()    {}

func (c Constant) String() string { return strconv.FormatInt(c.Value, 10) }

func (o InstructionOperand) String() string {
	if o.Instr == nil {
		return "(?)"
	}
	return "(" + strconv.Itoa(o.Instr.ID()) + ")"
}

func (o ParameterOperand) String() string {
	if o.Var == nil {
		return "?"
	}
	return o.Var.Name
}

func (s SymbolicOperand) String() string { return "'" + s.Symbol + "'" }

// Copy duplicates the reference, never the referenced instruction or variable.
func (c Constant) Copy() Operand           { return Constant{c.Value} }
func (o InstructionOperand) Copy() Operand { return InstructionOperand{o.Instr} }
func (o ParameterOperand) Copy() Operand   { return ParameterOperand{o.Var} }
func (s SymbolicOperand) Copy() Operand    { return SymbolicOperand{s.Symbol} }

// Variable is the SSA binding of one declared source variable. Its operand is
// the value bound to the variable at the current point of code generation; a
// nil operand means the variable has no definition yet (procedure parameters,
// uninitialised locals).
type Variable struct {
	Name    string
	operand Operand
}

func NewVariable(name string, initial Operand) *Variable {
	return &Variable{Name: name, operand: initial}
}

func (v *Variable) Operand() Operand      { return v.operand }
func (v *Variable) SetOperand(op Operand) { v.operand = op }
func (v *Variable) Bound() bool           { return v.operand != nil }

func (v *Variable) String() string { return v.Name }

// Placeholder returns the lazy reference to whatever v will be bound to.
func (v *Variable) Placeholder() Operand { return ParameterOperand{Var: v} }
