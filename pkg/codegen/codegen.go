// Package codegen lowers a parsed class into SSA form, placing phi
// instructions with join blocks while the statements are walked.
package codegen

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xplshn/sstc/pkg/ast"
	"github.com/xplshn/sstc/pkg/config"
	"github.com/xplshn/sstc/pkg/ir"
	"github.com/xplshn/sstc/pkg/token"
	"github.com/xplshn/sstc/pkg/util"
)

// loopFrame tracks the variables written since the innermost loop started.
// Reading any other variable inside the loop yields a placeholder that is
// resolved once the loop's phis are known.
type loopFrame struct {
	join    *ir.JoinBlock
	defined map[*ir.Variable]bool
}

type Context struct {
	// Logger receives the phi protocol at debug level.
	Logger *logrus.Logger

	cfg    *config.Config
	prog   *ir.Program
	procs  map[string]ast.ProcDeclNode
	consts map[string]int64

	currentFunc  *ir.Func
	currentBlock ir.Block
	joins        []*ir.JoinBlock
	loops        []*loopFrame
	pos          token.Token
	log          *logrus.Entry
}

// genError carries the first error up to GenerateIR.
type genError struct{ err error }

func NewContext(cfg *config.Config) *Context {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Context{
		Logger: logrus.StandardLogger(),
		cfg:    cfg,
		procs:  make(map[string]ast.ProcDeclNode),
		consts: make(map[string]int64),
	}
}

func (ctx *Context) fail(tok token.Token, format string, args ...interface{}) {
	panic(genError{util.Errorf(tok, format, args...)})
}

// GenerateIR builds the SSA program for a class declaration. The first error
// stops generation; misuse of the IR builder surfaces as an error located at
// the statement being lowered.
func (ctx *Context) GenerateIR(root *ast.Node) (prog *ir.Program, err error) {
	if root == nil || root.Type != ast.Class {
		return nil, errors.New("codegen: expected a class declaration")
	}
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case genError:
				prog, err = nil, e.err
			case *ir.InvariantError:
				prog, err = nil, util.Errorf(ctx.pos, "internal error: %v", e)
			default:
				panic(r)
			}
		}
	}()

	d := root.Data.(ast.ClassNode)
	ctx.prog = ir.NewProgram(d.Name)
	ctx.log = ctx.Logger.WithField("class", d.Name)

	for _, c := range d.Consts {
		cd := c.Data.(ast.ConstDeclNode)
		val := ctx.evalConst(cd.Value)
		ctx.consts[cd.Name] = val
		ctx.prog.Consts[cd.Name] = val
	}
	// collected up front so calls may refer to later procedures
	for _, p := range d.Procs {
		pd := p.Data.(ast.ProcDeclNode)
		ctx.procs[pd.Name] = pd
	}
	for _, p := range d.Procs {
		ctx.prog.Funcs = append(ctx.prog.Funcs, ctx.codegenProcDecl(p))
	}

	if ctx.cfg.IsFeatureEnabled(config.FeatVerifyIR) {
		if err := ctx.prog.Verify(); err != nil {
			return nil, errors.Wrap(err, "SSA verification failed")
		}
	}
	ctx.log.Infof("generated %d procedure(s)", len(ctx.prog.Funcs))
	return ctx.prog, nil
}

func (ctx *Context) codegenProcDecl(node *ast.Node) *ir.Func {
	d := node.Data.(ast.ProcDeclNode)
	fn := ir.NewFunc(d.Name)
	fn.HasResult = d.HasResult

	ctx.currentFunc, ctx.currentBlock = fn, fn.Entry
	ctx.joins, ctx.loops = nil, nil
	ctx.pos = node.Tok
	log := ctx.log
	ctx.log = log.WithField("proc", d.Name)
	defer func() { ctx.log = log }()

	for _, p := range d.Params {
		fn.DeclareParam(p.Data.(ast.VarDeclNode).Name)
	}
	for _, l := range d.Locals {
		ld := l.Data.(ast.VarDeclNode)
		v := fn.DeclareLocal(ld.Name)
		if ld.Init != nil {
			ctx.pos = l.Tok
			ctx.assign(v, ctx.codegenExpr(ld.Init))
		}
	}

	stmts := d.Body.Data.(ast.BlockNode).Stmts
	for i, stmt := range stmts {
		if stmt.Type == ast.Return && i == len(stmts)-1 {
			ctx.codegenReturn(stmt)
			break
		}
		ctx.codegenStmt(stmt)
	}
	if d.HasResult && (len(stmts) == 0 || stmts[len(stmts)-1].Type != ast.Return) {
		util.Warn(ctx.cfg, config.WarnExtra, node.Tok, "int procedure '%s' does not end with a return", d.Name)
	}
	ctx.log.Debugf("%d block(s), %d instruction(s)", len(fn.Blocks), fn.NumInstructions())
	return fn
}

func (ctx *Context) codegenBlock(node *ast.Node) {
	for _, stmt := range node.Data.(ast.BlockNode).Stmts {
		ctx.codegenStmt(stmt)
	}
}

func (ctx *Context) codegenStmt(node *ast.Node) {
	ctx.pos = node.Tok
	switch node.Type {
	case ast.Assign:
		d := node.Data.(ast.AssignNode)
		v := ctx.currentFunc.Lookup(d.Name)
		if v == nil {
			if _, ok := ctx.consts[d.Name]; ok {
				ctx.fail(node.Tok, "Cannot assign to constant '%s'.", d.Name)
			}
			ctx.fail(node.Tok, "Assignment to undeclared variable '%s'.", d.Name)
		}
		ctx.assign(v, ctx.codegenExpr(d.Rhs))
	case ast.Call:
		ctx.codegenCall(node, false)
	case ast.If:
		ctx.codegenIf(node)
	case ast.While:
		ctx.codegenWhile(node)
	case ast.Return:
		ctx.fail(node.Tok, "'return' is only allowed as the last statement of a procedure body.")
	default:
		ctx.fail(node.Tok, "Unexpected %s node in statement position.", node.Type)
	}
}

func (ctx *Context) codegenReturn(node *ast.Node) {
	ctx.pos = node.Tok
	d := node.Data.(ast.ReturnNode)
	fn := ctx.currentFunc
	switch {
	case d.Expr == nil && fn.HasResult:
		ctx.fail(node.Tok, "Procedure '%s' must return a value.", fn.Name)
	case d.Expr != nil && !fn.HasResult:
		ctx.fail(node.Tok, "Void procedure '%s' cannot return a value.", fn.Name)
	case d.Expr == nil:
		fn.Emit(ctx.currentBlock, ir.OpRet)
	default:
		fn.Emit(ctx.currentBlock, ir.OpRet, ctx.codegenExpr(d.Expr))
	}
}

// codegenIf lowers a conditional. The condition ends the current block, whose
// branch edge enters the then-part and whose fail edge enters the else-part,
// or the join directly when there is none. Both parts flow into a fresh join
// block that becomes the current block.
func (ctx *Context) codegenIf(node *ast.Node) {
	d := node.Data.(ast.IfNode)
	fn := ctx.currentFunc
	ctx.codegenCond(d.Cond)

	entry := ctx.currentBlock
	thenB := fn.NewBlock()
	var elseB *ir.BaseBlock
	if d.ElseBody != nil {
		elseB = fn.NewBlock()
	}
	join := fn.NewJoin(nil, ir.EnvIfElse)
	entry.SetBranch(thenB)
	if elseB != nil {
		entry.SetFail(elseB)
	} else {
		entry.SetFail(join)
	}

	outer := ctx.activeJoin()
	snapshot := ctx.snapshotDefined()
	ctx.joins = append(ctx.joins, join)

	join.Position = ir.First
	ctx.currentBlock = thenB
	ctx.codegenBlock(d.ThenBody)
	ctx.currentBlock.SetBranch(join)

	join.ResetPhi()
	ctx.restoreDefined(snapshot)
	join.Position = ir.Second
	if elseB != nil {
		ctx.currentBlock = elseB
		ctx.codegenBlock(d.ElseBody)
		ctx.currentBlock.SetBranch(join)
	}

	ctx.joins = ctx.joins[:len(ctx.joins)-1]
	ctx.commit(join, outer)
	ctx.restoreDefined(snapshot)
	ctx.seal(join)
	ctx.markDefined(join.Variables())
	ctx.currentBlock = join
}

// codegenWhile lowers a loop. A fresh header block is wrapped by the loop's
// join: the condition is computed there, its branch edge enters the body and
// its fail edge leaves the loop. Writes in the body fill the SECOND slot of
// the header phis; the FIRST slot carries the value from before the loop.
func (ctx *Context) codegenWhile(node *ast.Node) {
	d := node.Data.(ast.WhileNode)
	fn := ctx.currentFunc

	header := fn.NewBlock()
	start := len(fn.Blocks) - 1
	ctx.currentBlock.SetBranch(header)
	join := fn.NewJoin(header, ir.EnvWhile)
	join.Position = ir.Second

	outer := ctx.activeJoin()
	ctx.loops = append(ctx.loops, &loopFrame{join: join, defined: make(map[*ir.Variable]bool)})
	ctx.joins = append(ctx.joins, join)

	ctx.currentBlock = join
	ctx.codegenCond(d.Cond)
	body := fn.NewBlock()
	join.SetBranch(body)
	ctx.currentBlock = body
	ctx.codegenBlock(d.Body)
	ctx.currentBlock.SetBranch(join)

	region := make([]ir.Block, len(fn.Blocks)-start)
	copy(region, fn.Blocks[start:])

	ctx.joins = ctx.joins[:len(ctx.joins)-1]
	ctx.loops = ctx.loops[:len(ctx.loops)-1]
	ctx.commit(join, outer)
	for _, b := range region {
		join.RenamePhi(b)
		join.RenamePhiArgs(b)
	}
	ctx.seal(join)
	ctx.resolveInvariants(join, region)
	ctx.markDefined(join.Variables())

	exit := fn.NewBlock()
	join.SetFail(exit)
	ctx.currentBlock = exit
}

// codegenCond lowers a branch condition into the current block.
func (ctx *Context) codegenCond(node *ast.Node) ir.Operand {
	cond := ctx.codegenExpr(node)
	if ctx.isConstCond(cond) {
		util.Warn(ctx.cfg, config.WarnConstCondition, node.Tok, "condition is always the same")
	}
	return cond
}

func (ctx *Context) isConstCond(cond ir.Operand) bool {
	if _, ok := cond.(ir.Constant); ok {
		return true
	}
	res, ok := cond.(ir.InstructionOperand)
	if !ok || !res.Instr.Op.IsBinary() {
		return false
	}
	for _, op := range res.Instr.Operands() {
		if _, ok := op.(ir.Constant); !ok {
			return false
		}
	}
	return true
}
