package ir

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func expectInvariant(t *testing.T, substr string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		assert.Assert(t, r != nil, "expected an invariant violation")
		err, ok := r.(*InvariantError)
		assert.Assert(t, ok, "unexpected panic value %v", r)
		assert.ErrorContains(t, err, substr)
	}()
	fn()
}

func assertOperands(t *testing.T, instr *Instruction, want ...Operand) {
	t.Helper()
	got := instr.Operands()
	assert.Equal(t, len(got), len(want), "operand count of %s", instr)
	for i := range want {
		assert.Equal(t, got[i], want[i], "slot %d of %s", i, instr)
	}
}

func TestOperandCopySharesTarget(t *testing.T) {
	f := NewFunc("p")
	x := NewVariable("x", Constant{Value: 1})
	instr := f.NewInstr(OpAdd, Constant{Value: 1}, Constant{Value: 2})

	ops := []Operand{
		Constant{Value: 42},
		InstructionOperand{Instr: instr},
		ParameterOperand{Var: x},
		SymbolicOperand{Symbol: "this"},
	}
	for _, op := range ops {
		assert.Equal(t, op.Copy(), op)
	}

	c := InstructionOperand{Instr: instr}.Copy().(InstructionOperand)
	instr.SetOperand(1, Constant{Value: 7})
	assert.Equal(t, c.Instr.Operand(1), Operand(Constant{Value: 7}))

	p := ParameterOperand{Var: x}.Copy().(ParameterOperand)
	x.SetOperand(Constant{Value: 9})
	assert.Equal(t, p.Var.Operand(), Operand(Constant{Value: 9}))
}

func TestOperandString(t *testing.T) {
	f := NewFunc("p")
	f.NewInstr(OpAdd, Constant{Value: 0}, Constant{Value: 0})
	instr := f.NewInstr(OpSub, Constant{Value: -3}, SymbolicOperand{Symbol: "k"})

	assert.Equal(t, Constant{Value: -3}.String(), "-3")
	assert.Equal(t, InstructionOperand{Instr: instr}.String(), "(1)")
	assert.Equal(t, ParameterOperand{Var: NewVariable("a", nil)}.String(), "a")
	assert.Equal(t, SymbolicOperand{Symbol: "this"}.String(), "'this'")
	assert.Equal(t, instr.String(), "1: sub -3, 'k'")
}

func TestCommitMakesPhiVisible(t *testing.T) {
	f := NewFunc("p")
	x := NewVariable("x", Constant{Value: 0})
	a, b := Constant{Value: 1}, Constant{Value: 2}
	j := f.NewJoin(nil, EnvIfElse)
	f.Emit(j, OpAdd, Constant{Value: 3}, Constant{Value: 4})

	j.Position = First
	j.UpdatePhi(x, a)
	j.Position = Second
	j.UpdatePhi(x, b)
	assert.Equal(t, x.Operand(), Operand(Constant{Value: 0}), "UpdatePhi must not rebind")
	j.CommitPhi(nil)

	p := j.FirstInstruction()
	assert.Assert(t, p.IsPhi())
	assertOperands(t, p, a, b)
	assert.Equal(t, x.Operand(), Operand(InstructionOperand{Instr: p}))
	assert.Equal(t, p.Next().Op, OpAdd)
}

func TestCommitLeavesUntouchedVariable(t *testing.T) {
	f := NewFunc("p")
	x := NewVariable("x", Constant{Value: 0})
	y := NewVariable("y", Constant{Value: 5})
	j := f.NewJoin(nil, EnvIfElse)

	j.UpdatePhi(x, Constant{Value: 1})
	j.CommitPhi(nil)

	assert.Equal(t, y.Operand(), Operand(Constant{Value: 5}))
	assert.Assert(t, j.Phi(y) == nil)
	assert.Check(t, is.Len(Instructions(j), 1))
}

func TestResetRestoresOriginal(t *testing.T) {
	f := NewFunc("p")
	c0 := Constant{Value: 10}
	x := NewVariable("x", c0)
	j := f.NewJoin(nil, EnvIfElse)

	j.Position = First
	j.UpdatePhi(x, Constant{Value: 11})
	x.SetOperand(Constant{Value: 11})
	j.ResetPhi()

	assert.Equal(t, x.Operand(), Operand(c0))
	assert.Assert(t, j.Phi(x) != nil, "reset must keep the table")
	orig, ok := j.Original(x)
	assert.Assert(t, ok)
	assert.Equal(t, orig, Operand(c0))

	// a second branch still targets the same phi
	j.Position = Second
	j.UpdatePhi(x, Constant{Value: 12})
	j.CommitPhi(nil)
	assertOperands(t, j.Phi(x), Constant{Value: 11}, Constant{Value: 12})
}

func TestRenamePhiRewritesEagerUses(t *testing.T) {
	f := NewFunc("p")
	x := NewVariable("x", Constant{Value: 1})
	header := f.NewBlock()
	j := f.NewJoin(header, EnvWhile)
	j.Position = Second
	body := f.NewBlock()

	use := f.Emit(body, OpMul, x.Placeholder(), Constant{Value: 2})
	j.UpdatePhi(x, use)
	j.CommitPhi(nil)
	j.RenamePhi(body)

	phi := j.Phi(x)
	assert.Equal(t, use.Instr.Operand(0), Operand(InstructionOperand{Instr: phi}))
	// the phi keeps its own placeholder slot
	assert.Equal(t, phi.Operand(0), x.Placeholder())
	assert.Equal(t, phi.Operand(1), Operand(use))

	j.RenamePhi(header)
	assert.Equal(t, phi.Operand(0), x.Placeholder())
}

func TestPropagationCarriesOriginal(t *testing.T) {
	f := NewFunc("p")
	c0 := Constant{Value: 1}
	x := NewVariable("x", c0)
	outer := f.NewJoin(nil, EnvIfElse)
	inner := f.NewJoin(nil, EnvIfElse)

	inner.Position = First
	inner.UpdatePhi(x, Constant{Value: 2})
	inner.Position = Second
	inner.UpdatePhi(x, Constant{Value: 3})
	inner.CommitPhi(outer)

	orig, ok := outer.Original(x)
	assert.Assert(t, ok)
	assert.Equal(t, orig, Operand(c0))
	innerPhi := InstructionOperand{Instr: inner.Phi(x)}
	assert.Equal(t, outer.Phi(x).Operand(int(First)), Operand(innerPhi))
	assert.Equal(t, x.Operand(), Operand(innerPhi))
}

func TestPropagationKeepsExistingOriginal(t *testing.T) {
	f := NewFunc("p")
	x := NewVariable("x", Constant{Value: 1})
	outer := f.NewJoin(nil, EnvIfElse)
	inner := f.NewJoin(nil, EnvIfElse)

	// x = 5 in the outer then-branch before a nested conditional
	outer.UpdatePhi(x, Constant{Value: 5})
	x.SetOperand(Constant{Value: 5})
	inner.UpdatePhi(x, Constant{Value: 6})
	inner.CommitPhi(outer)

	orig, _ := outer.Original(x)
	assert.Equal(t, orig, Operand(Constant{Value: 1}))
	innerOrig, _ := inner.Original(x)
	assert.Equal(t, innerOrig, Operand(Constant{Value: 5}))
}

func TestIfWithoutElseScenario(t *testing.T) {
	f := NewFunc("p")
	x := NewVariable("x", Constant{Value: 1})
	j := f.NewJoin(nil, EnvIfElse)
	then := f.NewBlock()

	j.Position = First
	add := f.Emit(then, OpAdd, x.Operand(), Constant{Value: 1})
	j.UpdatePhi(x, add)
	x.SetOperand(add)
	j.ResetPhi()
	assert.Equal(t, x.Operand(), Operand(Constant{Value: 1}))
	j.Position = Second
	j.CommitPhi(nil)

	p := j.Phi(x)
	assertOperands(t, p, add, x.Placeholder())
	assert.Equal(t, x.Operand(), Operand(InstructionOperand{Instr: p}))

	j.SealPhi(nil)
	assertOperands(t, p, add, Constant{Value: 1})
	assert.Equal(t, p.String(), "1: PHI (0), 1")
}

func TestSealKeepsPendingAndUnbound(t *testing.T) {
	f := NewFunc("p")
	a := f.DeclareParam("a")
	b := NewVariable("b", Constant{Value: 3})
	j := f.NewJoin(nil, EnvIfElse)

	j.UpdatePhi(a, Constant{Value: 1})
	j.UpdatePhi(b, Constant{Value: 2})
	j.CommitPhi(nil)
	j.SealPhi(func(v *Variable) bool { return v == b })

	assert.Equal(t, j.Phi(a).Operand(1), a.Placeholder())
	assert.Equal(t, j.Phi(b).Operand(1), b.Placeholder())
	assert.Assert(t, j.Sealed())
}

func TestRenamePhiArgsKeepsOwnPendingSlots(t *testing.T) {
	f := NewFunc("p")
	x := NewVariable("x", Constant{Value: 0})
	loop := f.NewJoin(f.NewBlock(), EnvWhile)
	loop.Position = Second
	body := f.NewBlock()
	cond := f.NewJoin(nil, EnvIfElse)

	// the nested conditional reads x before the loop has a phi for it
	cond.UpdatePhi(x, x.Placeholder())
	cond.CommitPhi(loop)
	cond.SealPhi(func(*Variable) bool { return true })
	body.SetBranch(cond)

	loop.CommitPhi(nil)
	loop.RenamePhiArgs(cond)
	loop.RenamePhiArgs(loop)

	loopPhi := InstructionOperand{Instr: loop.Phi(x)}
	assertOperands(t, cond.Phi(x), loopPhi, loopPhi)
	assert.Equal(t, loop.Phi(x).Operand(0), x.Placeholder())
}

func TestRenamePhiArgsRewritesOwnWrittenSlots(t *testing.T) {
	f := NewFunc("p")
	x := NewVariable("x", Constant{Value: 0})
	y := NewVariable("y", Constant{Value: 5})
	loop := f.NewJoin(f.NewBlock(), EnvWhile)
	loop.Position = Second

	// x = y; y = 7; inside the body: x takes y's value from the loop header
	loop.UpdatePhi(x, y.Placeholder())
	loop.UpdatePhi(y, Constant{Value: 7})
	loop.CommitPhi(nil)
	loop.RenamePhiArgs(loop)

	yPhi := InstructionOperand{Instr: loop.Phi(y)}
	assertOperands(t, loop.Phi(x), x.Placeholder(), yPhi)
	assertOperands(t, loop.Phi(y), y.Placeholder(), Constant{Value: 7})

	loop.SealPhi(nil)
	assertOperands(t, loop.Phi(x), Constant{Value: 0}, yPhi)
	assertOperands(t, loop.Phi(y), Constant{Value: 5}, Constant{Value: 7})
}

func TestJoinMisuse(t *testing.T) {
	f := NewFunc("p")
	x := NewVariable("x", Constant{Value: 0})
	j := f.NewJoin(nil, EnvIfElse)
	j.UpdatePhi(x, Constant{Value: 1})

	expectInvariant(t, "before commit", func() { j.SealPhi(nil) })
	expectInvariant(t, "into itself", func() { j.CommitPhi(j) })
	j.CommitPhi(nil)
	expectInvariant(t, "committed twice", func() { j.CommitPhi(nil) })
	expectInvariant(t, "ResetPhi", func() { j.ResetPhi() })
	expectInvariant(t, "after commit", func() { j.UpdatePhi(x, Constant{Value: 2}) })
	expectInvariant(t, "nil variable", func() { f.NewJoin(nil, EnvNone).UpdatePhi(nil, Constant{}) })
}

func TestCommitOrderFollowsFirstTouch(t *testing.T) {
	f := NewFunc("p")
	vars := []*Variable{
		NewVariable("c", nil), NewVariable("a", nil), NewVariable("b", nil),
	}
	j := f.NewJoin(nil, EnvIfElse)
	for i, v := range vars {
		j.UpdatePhi(v, Constant{Value: int64(i)})
	}
	j.CommitPhi(nil)

	instrs := Instructions(j)
	assert.Assert(t, is.Len(instrs, 3))
	for i, v := range vars {
		assert.Equal(t, instrs[i], j.Phi(v))
	}
	got := j.Variables()
	assert.Assert(t, is.Len(got, len(vars)))
	for i := range vars {
		assert.Equal(t, got[i], vars[i])
	}
}
