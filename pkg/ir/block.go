package ir

// Block is a basic block of the control-flow graph: an ordered instruction
// list with up to two successors. Branch is the edge taken when the block's
// condition holds, Fail the not-taken or fallthrough edge.
type Block interface {
	ID() int
	Insert(instr *Instruction)
	InsertFirst(instr *Instruction)
	FirstInstruction() *Instruction
	LastInstruction() *Instruction
	Branch() Block
	Fail() Block
	SetBranch(b Block)
	SetFail(b Block)
	Equal(other Block) bool
}

type BaseBlock struct {
	id           int
	first, last  *Instruction
	branch, fail Block
}

func NewBaseBlock(id int) *BaseBlock { return &BaseBlock{id: id} }

func (b *BaseBlock) ID() int                        { return b.id }
func (b *BaseBlock) FirstInstruction() *Instruction { return b.first }
func (b *BaseBlock) LastInstruction() *Instruction  { return b.last }
func (b *BaseBlock) Branch() Block                  { return b.branch }
func (b *BaseBlock) Fail() Block                    { return b.fail }
func (b *BaseBlock) SetBranch(s Block)              { b.branch = s }
func (b *BaseBlock) SetFail(s Block)                { b.fail = s }

// Equal compares block identity. A join block wrapping b is equal to b.
func (b *BaseBlock) Equal(other Block) bool {
	return other != nil && other.ID() == b.id
}

// Insert appends instr, together with any instructions already chained after
// it, to the end of the list.
func (b *BaseBlock) Insert(instr *Instruction) {
	if instr == nil {
		return
	}
	if b.last == nil {
		b.first = instr
	} else {
		b.last.next = instr
	}
	b.last = chainTail(instr)
}

// InsertFirst prepends instr and its chain to the head of the list.
func (b *BaseBlock) InsertFirst(instr *Instruction) {
	if instr == nil {
		return
	}
	tail := chainTail(instr)
	tail.next = b.first
	if b.last == nil {
		b.last = tail
	}
	b.first = instr
}

func chainTail(instr *Instruction) *Instruction {
	for instr.next != nil {
		instr = instr.next
	}
	return instr
}

// Instructions collects the instruction list of b in order.
func Instructions(b Block) []*Instruction {
	var out []*Instruction
	for i := b.FirstInstruction(); i != nil; i = i.Next() {
		out = append(out, i)
	}
	return out
}

// RewriteOperands calls fn for every operand slot of every instruction in b and
// stores the returned operand back into the slot.
func RewriteOperands(b Block, fn func(instr *Instruction, slot int, op Operand) Operand) {
	for i := b.FirstInstruction(); i != nil; i = i.next {
		for n, op := range i.operands {
			i.operands[n] = fn(i, n, op)
		}
	}
}

// Successors returns the non-nil successor edges of b, branch first.
func Successors(b Block) []Block {
	var out []Block
	if s := b.Branch(); s != nil {
		out = append(out, s)
	}
	if s := b.Fail(); s != nil {
		out = append(out, s)
	}
	return out
}
