package codegen

import (
	"github.com/xplshn/sstc/pkg/ast"
	"github.com/xplshn/sstc/pkg/config"
	"github.com/xplshn/sstc/pkg/ir"
	"github.com/xplshn/sstc/pkg/token"
	"github.com/xplshn/sstc/pkg/util"
)

var binaryOps = map[token.Type]ir.Op{
	token.Plus:  ir.OpAdd,
	token.Minus: ir.OpSub,
	token.Star:  ir.OpMul,
	token.Slash: ir.OpDiv,
	token.EqEq:  ir.OpCEq,
	token.Lt:    ir.OpCLt,
	token.Lte:   ir.OpCLe,
	token.Gt:    ir.OpCGt,
	token.Gte:   ir.OpCGe,
}

func (ctx *Context) activeJoin() *ir.JoinBlock {
	if len(ctx.joins) == 0 {
		return nil
	}
	return ctx.joins[len(ctx.joins)-1]
}

func (ctx *Context) loop() *loopFrame {
	if len(ctx.loops) == 0 {
		return nil
	}
	return ctx.loops[len(ctx.loops)-1]
}

// pending reports whether v has not been written since the innermost loop
// started, so its value there is the loop's phi rather than its binding.
func (ctx *Context) pending(v *ir.Variable) bool {
	fr := ctx.loop()
	return fr != nil && !fr.defined[v]
}

func (ctx *Context) snapshotDefined() map[*ir.Variable]bool {
	fr := ctx.loop()
	if fr == nil {
		return nil
	}
	snap := make(map[*ir.Variable]bool, len(fr.defined))
	for v := range fr.defined {
		snap[v] = true
	}
	return snap
}

func (ctx *Context) restoreDefined(snap map[*ir.Variable]bool) {
	if fr := ctx.loop(); fr != nil {
		fr.defined = make(map[*ir.Variable]bool, len(snap))
		for v := range snap {
			fr.defined[v] = true
		}
	}
}

func (ctx *Context) markDefined(vars []*ir.Variable) {
	if fr := ctx.loop(); fr != nil {
		for _, v := range vars {
			fr.defined[v] = true
		}
	}
}

// assign binds v to op. The innermost open join learns about the write
// before the binding changes so that it can remember the previous value.
func (ctx *Context) assign(v *ir.Variable, op ir.Operand) {
	if j := ctx.activeJoin(); j != nil {
		ctx.log.Debugf("b%d: update phi %s at %s <- %s", j.ID(), v, j.Position, op)
		j.UpdatePhi(v, op)
	}
	v.SetOperand(op)
	if fr := ctx.loop(); fr != nil {
		fr.defined[v] = true
	}
}

func (ctx *Context) read(v *ir.Variable, tok token.Token) ir.Operand {
	if ctx.pending(v) {
		return v.Placeholder()
	}
	if op := v.Operand(); op != nil {
		return op.Copy()
	}
	if ctx.loop() == nil && ctx.isLocal(v) {
		util.Warn(ctx.cfg, config.WarnUninitialized, tok, "'%s' is used before it is assigned", v.Name)
	}
	return v.Placeholder()
}

func (ctx *Context) isLocal(v *ir.Variable) bool {
	for _, l := range ctx.currentFunc.Locals {
		if l == v {
			return true
		}
	}
	return false
}

func (ctx *Context) commit(j *ir.JoinBlock, outer *ir.JoinBlock) {
	if outer != nil {
		ctx.log.Debugf("b%d: commit %d phi(s), propagating to b%d", j.ID(), len(j.Variables()), outer.ID())
	} else {
		ctx.log.Debugf("b%d: commit %d phi(s)", j.ID(), len(j.Variables()))
	}
	j.CommitPhi(outer)
}

func (ctx *Context) seal(j *ir.JoinBlock) {
	ctx.log.Debugf("b%d: seal", j.ID())
	j.SealPhi(ctx.pending)
}

// resolveInvariants replaces the placeholders left in a loop region for
// variables the loop never writes. Those read the value bound before the
// loop, unless that value is itself still pending in an enclosing loop.
func (ctx *Context) resolveInvariants(j *ir.JoinBlock, region []ir.Block) {
	for _, b := range region {
		ir.RewriteOperands(b, func(_ *ir.Instruction, _ int, op ir.Operand) ir.Operand {
			p, ok := op.(ir.ParameterOperand)
			if !ok || j.Phi(p.Var) != nil || ctx.pending(p.Var) {
				return op
			}
			if !p.Var.Bound() {
				return op
			}
			return p.Var.Operand().Copy()
		})
	}
}

func (ctx *Context) codegenExpr(node *ast.Node) ir.Operand {
	switch node.Type {
	case ast.Number:
		return ir.Constant{Value: node.Data.(ast.NumberNode).Value}
	case ast.Ident:
		name := node.Data.(ast.IdentNode).Name
		if v := ctx.currentFunc.Lookup(name); v != nil {
			return ctx.read(v, node.Tok)
		}
		if val, ok := ctx.consts[name]; ok {
			return ir.Constant{Value: val}
		}
		ctx.fail(node.Tok, "Undefined name '%s'.", name)
	case ast.BinaryOp:
		d := node.Data.(ast.BinaryOpNode)
		op, ok := binaryOps[d.Op]
		if !ok {
			ctx.fail(node.Tok, "Unsupported operator '%s'.", d.Op)
		}
		left := ctx.codegenExpr(d.Left)
		right := ctx.codegenExpr(d.Right)
		return ctx.currentFunc.Emit(ctx.currentBlock, op, left, right)
	case ast.Call:
		return ctx.codegenCall(node, true)
	}
	ctx.fail(node.Tok, "Unexpected %s node in expression.", node.Type)
	return nil
}

// codegenCall emits DISPATCH 'Class', 'proc', 'this', args...
func (ctx *Context) codegenCall(node *ast.Node, needResult bool) ir.Operand {
	d := node.Data.(ast.CallNode)
	callee, ok := ctx.procs[d.Name]
	if !ok {
		ctx.fail(node.Tok, "Call to undefined procedure '%s'.", d.Name)
	}
	if len(d.Args) != len(callee.Params) {
		ctx.fail(node.Tok, "Procedure '%s' expects %d argument(s), got %d.", d.Name, len(callee.Params), len(d.Args))
	}
	if needResult && !callee.HasResult {
		ctx.fail(node.Tok, "Procedure '%s' does not return a value.", d.Name)
	}
	ops := []ir.Operand{
		ir.SymbolicOperand{Symbol: ctx.prog.Class},
		ir.SymbolicOperand{Symbol: d.Name},
		ir.SymbolicOperand{Symbol: "this"},
	}
	for _, arg := range d.Args {
		ops = append(ops, ctx.codegenExpr(arg))
	}
	return ctx.currentFunc.Emit(ctx.currentBlock, ir.OpDispatch, ops...)
}

// evalConst folds the initializer of a class constant. Comparisons fold to
// 1 or 0.
func (ctx *Context) evalConst(node *ast.Node) int64 {
	switch node.Type {
	case ast.Number:
		return node.Data.(ast.NumberNode).Value
	case ast.Ident:
		name := node.Data.(ast.IdentNode).Name
		val, ok := ctx.consts[name]
		if !ok {
			ctx.fail(node.Tok, "'%s' is not a constant declared before this one.", name)
		}
		return val
	case ast.BinaryOp:
		d := node.Data.(ast.BinaryOpNode)
		l, r := ctx.evalConst(d.Left), ctx.evalConst(d.Right)
		switch d.Op {
		case token.Plus:
			return l + r
		case token.Minus:
			return l - r
		case token.Star:
			return l * r
		case token.Slash:
			if r == 0 {
				ctx.fail(node.Tok, "Division by zero in constant expression.")
			}
			return l / r
		case token.EqEq:
			return boolToInt(l == r)
		case token.Lt:
			return boolToInt(l < r)
		case token.Lte:
			return boolToInt(l <= r)
		case token.Gt:
			return boolToInt(l > r)
		case token.Gte:
			return boolToInt(l >= r)
		}
	case ast.Call:
		ctx.fail(node.Tok, "Procedure calls are not allowed in constant expressions.")
	}
	ctx.fail(node.Tok, "Invalid constant expression.")
	return 0
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
