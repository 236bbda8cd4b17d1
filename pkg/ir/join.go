package ir

// Position selects the phi operand slot written by UpdatePhi.
type Position int

const (
	First Position = iota
	Second
)

func (p Position) String() string {
	if p == Second {
		return "SECOND"
	}
	return "FIRST"
}

// Environment records which construct a join block merges.
type Environment int

const (
	EnvNone Environment = iota
	EnvWhile
	EnvIfElse
)

func (e Environment) String() string {
	switch e {
	case EnvWhile:
		return "WHILE"
	case EnvIfElse:
		return "IFELSE"
	default:
		return "NONE"
	}
}

type phiEntry struct {
	original Operand
	phi      *Instruction
	filled   [2]bool
}

// JoinBlock is a block placed at a control-flow merge. It collects one phi
// instruction per variable written on any incoming path and places them at
// the head of its instruction list on commit.
//
// A join may wrap an existing block. All block-level operations are then
// forwarded to the wrapped block, so references to it elsewhere in the graph
// stay valid, while the phi table stays local to the join.
type JoinBlock struct {
	Position Position
	Env      Environment

	inner Block
	own   *BaseBlock
	fn    *Func

	phis  map[*Variable]*phiEntry
	order []*Variable

	committed bool
	sealed    bool
}

func (j *JoinBlock) target() Block {
	if j.inner != nil {
		return j.inner
	}
	return j.own
}

// Inner returns the wrapped block, or nil when the join owns its storage.
func (j *JoinBlock) Inner() Block { return j.inner }

func (j *JoinBlock) ID() int                        { return j.target().ID() }
func (j *JoinBlock) Insert(instr *Instruction)      { j.target().Insert(instr) }
func (j *JoinBlock) InsertFirst(instr *Instruction) { j.target().InsertFirst(instr) }
func (j *JoinBlock) FirstInstruction() *Instruction { return j.target().FirstInstruction() }
func (j *JoinBlock) LastInstruction() *Instruction  { return j.target().LastInstruction() }
func (j *JoinBlock) Branch() Block                  { return j.target().Branch() }
func (j *JoinBlock) Fail() Block                    { return j.target().Fail() }
func (j *JoinBlock) SetBranch(b Block)              { j.target().SetBranch(b) }
func (j *JoinBlock) SetFail(b Block)                { j.target().SetFail(b) }
func (j *JoinBlock) Equal(other Block) bool         { return j.target().Equal(other) }
func (j *JoinBlock) Committed() bool                { return j.committed }
func (j *JoinBlock) Sealed() bool                   { return j.sealed }

// Phi returns the phi instruction recorded for v, or nil.
func (j *JoinBlock) Phi(v *Variable) *Instruction {
	if e := j.phis[v]; e != nil {
		return e.phi
	}
	return nil
}

// Original returns the operand v was bound to when the join first saw it.
func (j *JoinBlock) Original(v *Variable) (Operand, bool) {
	e := j.phis[v]
	if e == nil {
		return nil, false
	}
	return e.original, true
}

// Variables lists the variables with a phi entry, in first-touch order.
func (j *JoinBlock) Variables() []*Variable {
	out := make([]*Variable, len(j.order))
	copy(out, j.order)
	return out
}

func (j *JoinBlock) entryFor(instr *Instruction) *phiEntry {
	if instr == nil || !instr.IsPhi() {
		return nil
	}
	for _, e := range j.phis {
		if e.phi == instr {
			return e
		}
	}
	return nil
}

// UpdatePhi records that operand reaches the join for v along the path
// selected by Position. The first call for v builds its phi with the other
// slot holding a placeholder for v and remembers v's current operand as the
// pre-join original. v itself is never modified here.
func (j *JoinBlock) UpdatePhi(v *Variable, operand Operand) {
	j.update(v, operand)
}

func (j *JoinBlock) update(v *Variable, operand Operand) *phiEntry {
	if v == nil {
		invariant("UpdatePhi on join %d with a nil variable", j.ID())
	}
	if j.committed {
		invariant("UpdatePhi(%s) on join %d after commit", v.Name, j.ID())
	}
	slot := int(j.Position)
	e := j.phis[v]
	if e == nil {
		phi := j.fn.NewInstr(OpPhi, v.Placeholder(), v.Placeholder())
		e = &phiEntry{original: v.Operand(), phi: phi}
		j.phis[v] = e
		j.order = append(j.order, v)
	}
	e.phi.operands[slot] = operand
	e.filled[slot] = true
	return e
}

// CommitPhi places every pending phi at the head of the block, in first-touch
// order, and rebinds each variable to its phi. With a non-nil propagateTo the
// new phi values are forwarded into that join as writes on its current path;
// entries created there by the forwarding inherit this join's original.
func (j *JoinBlock) CommitPhi(propagateTo *JoinBlock) {
	if j.committed {
		invariant("join %d committed twice", j.ID())
	}
	if propagateTo == j {
		invariant("join %d cannot propagate into itself", j.ID())
	}
	for n := len(j.order) - 1; n >= 0; n-- {
		j.InsertFirst(j.phis[j.order[n]].phi)
	}
	for _, v := range j.order {
		e := j.phis[v]
		result := InstructionOperand{Instr: e.phi}
		v.SetOperand(result)
		if propagateTo == nil {
			continue
		}
		_, existed := propagateTo.phis[v]
		outer := propagateTo.update(v, result)
		if !existed {
			outer.original = e.original
		}
	}
	j.committed = true
}

// ResetPhi rebinds every variable in the table to its pre-join original. The
// table itself is kept. Reset must precede commit.
func (j *JoinBlock) ResetPhi() {
	if j.committed {
		invariant("ResetPhi on join %d after commit", j.ID())
	}
	for _, v := range j.order {
		v.SetOperand(j.phis[v].original)
	}
}

// RenamePhi rewrites, in block, every ParameterOperand whose variable has an
// entry in this join into a reference to that entry's phi. Phi instructions
// are left alone.
func (j *JoinBlock) RenamePhi(block Block) {
	RewriteOperands(block, func(instr *Instruction, _ int, op Operand) Operand {
		if instr.IsPhi() {
			return op
		}
		return j.rename(op)
	})
}

// RenamePhiArgs applies the RenamePhi rewrite to the phi instructions of block.
// Phis of other joins, such as those of a conditional nested in a loop body,
// are rewritten in full. This join's own phis are rewritten only in the slots
// a path has written; the remaining slots still wait for SealPhi.
func (j *JoinBlock) RenamePhiArgs(block Block) {
	RewriteOperands(block, func(instr *Instruction, slot int, op Operand) Operand {
		if !instr.IsPhi() {
			return op
		}
		if e := j.entryFor(instr); e != nil && !e.filled[slot] {
			return op
		}
		return j.rename(op)
	})
}

func (j *JoinBlock) rename(op Operand) Operand {
	p, ok := op.(ParameterOperand)
	if !ok {
		return op
	}
	if e := j.phis[p.Var]; e != nil {
		return InstructionOperand{Instr: e.phi}
	}
	return op
}

// SealPhi back-patches the placeholder slots no path wrote with the original
// operand of their variable. A slot keeps its placeholder when the original is
// unbound or when keep reports that the variable's value is still pending in
// an enclosing construct. A nil keep seals everything it can.
func (j *JoinBlock) SealPhi(keep func(v *Variable) bool) {
	if !j.committed {
		invariant("SealPhi on join %d before commit", j.ID())
	}
	if j.sealed {
		invariant("join %d sealed twice", j.ID())
	}
	for _, v := range j.order {
		e := j.phis[v]
		for slot := range e.filled {
			if e.filled[slot] {
				continue
			}
			if e.original != nil && (keep == nil || !keep(v)) {
				e.phi.operands[slot] = e.original.Copy()
			}
			e.filled[slot] = true
		}
	}
	j.sealed = true
}
