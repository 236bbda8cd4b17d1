package ir

import (
	"fmt"

	"github.com/pkg/errors"
)

// Func owns the control-flow graph of one procedure: every block and
// instruction created for it, and the ids they carry.
type Func struct {
	Name      string
	Params    []*Variable
	Locals    []*Variable
	HasResult bool
	Entry     Block
	Blocks    []Block
	Joins     []*JoinBlock

	nextInstr int
	nextBlock int
}

func NewFunc(name string) *Func {
	f := &Func{Name: name}
	f.Entry = f.NewBlock()
	return f
}

func (f *Func) NewBlock() *BaseBlock {
	b := NewBaseBlock(f.nextBlock)
	f.nextBlock++
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewJoin creates a join block. With a nil inner the join gets storage of its
// own and is listed as a block of f; otherwise it decorates inner, which must
// already belong to f.
func (f *Func) NewJoin(inner Block, env Environment) *JoinBlock {
	j := &JoinBlock{
		Env:   env,
		inner: inner,
		fn:    f,
		phis:  make(map[*Variable]*phiEntry),
	}
	if inner == nil {
		j.own = NewBaseBlock(f.nextBlock)
		f.nextBlock++
		f.Blocks = append(f.Blocks, j)
	}
	f.Joins = append(f.Joins, j)
	return j
}

func (f *Func) NewInstr(op Op, operands ...Operand) *Instruction {
	instr := NewInstruction(f.nextInstr, op, operands...)
	f.nextInstr++
	return instr
}

// Emit appends a new instruction to b and returns a reference to its result.
func (f *Func) Emit(b Block, op Op, operands ...Operand) InstructionOperand {
	instr := f.NewInstr(op, operands...)
	b.Insert(instr)
	return InstructionOperand{Instr: instr}
}

func (f *Func) NumInstructions() int { return f.nextInstr }

func (f *Func) DeclareParam(name string) *Variable {
	v := NewVariable(name, nil)
	f.Params = append(f.Params, v)
	return v
}

func (f *Func) DeclareLocal(name string) *Variable {
	v := NewVariable(name, nil)
	f.Locals = append(f.Locals, v)
	return v
}

// Lookup finds a declared parameter or local by name, locals first.
func (f *Func) Lookup(name string) *Variable {
	for _, v := range f.Locals {
		if v.Name == name {
			return v
		}
	}
	for _, v := range f.Params {
		if v.Name == name {
			return v
		}
	}
	return nil
}

func (f *Func) owns(b Block) bool {
	for _, own := range f.Blocks {
		if own.Equal(b) {
			return true
		}
	}
	return false
}

func (f *Func) declared(v *Variable) bool {
	for _, p := range f.Params {
		if p == v {
			return true
		}
	}
	for _, l := range f.Locals {
		if l == v {
			return true
		}
	}
	return false
}

// Verify checks the structural invariants of a finished graph: every join was
// committed and sealed, phis are binary, placeholders only name variables of
// this procedure and no edge leaves the procedure.
func (f *Func) Verify() error {
	for _, j := range f.Joins {
		if !j.Committed() {
			return errors.Errorf("%s: join block %d was never committed", f.Name, j.ID())
		}
		if !j.Sealed() {
			return errors.Errorf("%s: join block %d has unsealed phis", f.Name, j.ID())
		}
	}
	for _, b := range f.Blocks {
		for _, s := range Successors(b) {
			if !f.owns(s) {
				return errors.Errorf("%s: block %d has an edge to foreign block %d", f.Name, b.ID(), s.ID())
			}
		}
		for i := b.FirstInstruction(); i != nil; i = i.Next() {
			if err := f.verifyInstr(i); err != nil {
				return errors.Wrapf(err, "%s: block %d", f.Name, b.ID())
			}
		}
	}
	return nil
}

func (f *Func) verifyInstr(i *Instruction) error {
	if i.IsPhi() && i.NumOperands() != 2 {
		return fmt.Errorf("phi %d has %d operands", i.ID(), i.NumOperands())
	}
	for n, op := range i.operands {
		switch op := op.(type) {
		case nil:
			return fmt.Errorf("instruction %d: operand %d is unset", i.ID(), n)
		case ParameterOperand:
			if !f.declared(op.Var) {
				return fmt.Errorf("instruction %d: operand %d names undeclared variable %s", i.ID(), n, op)
			}
		case InstructionOperand:
			if op.Instr == nil {
				return fmt.Errorf("instruction %d: operand %d references no instruction", i.ID(), n)
			}
		}
	}
	return nil
}

// Program is the IR of one compilation unit.
type Program struct {
	Class  string
	Consts map[string]int64
	Funcs  []*Func
}

func NewProgram(class string) *Program {
	return &Program{Class: class, Consts: make(map[string]int64)}
}

func (p *Program) FindFunc(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Verify runs Func.Verify over every procedure.
func (p *Program) Verify() error {
	for _, f := range p.Funcs {
		if err := f.Verify(); err != nil {
			return err
		}
	}
	return nil
}
