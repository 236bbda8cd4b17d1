// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"github.com/xplshn/sstc/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	Ident
	BinaryOp
	Call

	// Statements
	Assign
	If
	While
	Return
	Block

	// Declarations
	Class
	ConstDecl
	VarDecl
	ProcDecl
)

var nodeTypeNames = [...]string{
	Number: "Number", Ident: "Ident", BinaryOp: "BinaryOp", Call: "Call",
	Assign: "Assign", If: "If", While: "While", Return: "Return", Block: "Block",
	Class: "Class", ConstDecl: "ConstDecl", VarDecl: "VarDecl", ProcDecl: "ProcDecl",
}

func (t NodeType) String() string {
	if t < 0 || int(t) >= len(nodeTypeNames) {
		return "Unknown"
	}
	return nodeTypeNames[t]
}

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent *Node
	Data   interface{}
}

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type IdentNode struct{ Name string }
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}
type CallNode struct {
	Name string
	Args []*Node
}
type AssignNode struct {
	Name string
	Rhs  *Node
}
type IfNode struct{ Cond, ThenBody, ElseBody *Node }
type WhileNode struct{ Cond, Body *Node }
type ReturnNode struct{ Expr *Node }
type BlockNode struct{ Stmts []*Node }
type ClassNode struct {
	Name   string
	Consts []*Node
	Procs  []*Node
}
type ConstDeclNode struct {
	Name  string
	Value *Node
}
type VarDeclNode struct {
	Name string
	Init *Node
}
type ProcDeclNode struct {
	Name      string
	Params    []*Node
	Locals    []*Node
	Body      *Node
	HasResult bool
}

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Tok: tok, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewNumber(tok token.Token, value int64) *Node {
	return newNode(tok, Number, NumberNode{Value: value})
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewCall(tok token.Token, name string, args []*Node) *Node {
	return newNode(tok, Call, CallNode{Name: name, Args: args}, args...)
}
func NewAssign(tok token.Token, name string, rhs *Node) *Node {
	return newNode(tok, Assign, AssignNode{Name: name, Rhs: rhs}, rhs)
}
func NewIf(tok token.Token, cond, thenBody, elseBody *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody}, cond, thenBody, elseBody)
}
func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body}, cond, body)
}
func NewReturn(tok token.Token, expr *Node) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr}, expr)
}
func NewBlock(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, Block, BlockNode{Stmts: stmts}, stmts...)
}
func NewClass(tok token.Token, name string, consts, procs []*Node) *Node {
	node := newNode(tok, Class, ClassNode{Name: name, Consts: consts, Procs: procs}, consts...)
	for _, p := range procs {
		p.Parent = node
	}
	return node
}
func NewConstDecl(tok token.Token, name string, value *Node) *Node {
	return newNode(tok, ConstDecl, ConstDeclNode{Name: name, Value: value}, value)
}
func NewVarDecl(tok token.Token, name string, init *Node) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Name: name, Init: init}, init)
}
func NewProcDecl(tok token.Token, name string, params, locals []*Node, body *Node, hasResult bool) *Node {
	node := newNode(tok, ProcDecl, ProcDeclNode{Name: name, Params: params, Locals: locals, Body: body, HasResult: hasResult}, body)
	for _, n := range params {
		n.Parent = node
	}
	for _, n := range locals {
		n.Parent = node
	}
	return node
}

// Walk visits node and its descendants depth first, in source order. Returning
// false from fn skips the children of the current node.
func Walk(node *Node, fn func(*Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch d := node.Data.(type) {
	case BinaryOpNode:
		Walk(d.Left, fn)
		Walk(d.Right, fn)
	case CallNode:
		for _, a := range d.Args {
			Walk(a, fn)
		}
	case AssignNode:
		Walk(d.Rhs, fn)
	case IfNode:
		Walk(d.Cond, fn)
		Walk(d.ThenBody, fn)
		Walk(d.ElseBody, fn)
	case WhileNode:
		Walk(d.Cond, fn)
		Walk(d.Body, fn)
	case ReturnNode:
		Walk(d.Expr, fn)
	case BlockNode:
		for _, s := range d.Stmts {
			Walk(s, fn)
		}
	case ClassNode:
		for _, c := range d.Consts {
			Walk(c, fn)
		}
		for _, p := range d.Procs {
			Walk(p, fn)
		}
	case ConstDeclNode:
		Walk(d.Value, fn)
	case VarDeclNode:
		Walk(d.Init, fn)
	case ProcDeclNode:
		for _, p := range d.Params {
			Walk(p, fn)
		}
		for _, l := range d.Locals {
			Walk(l, fn)
		}
		Walk(d.Body, fn)
	}
}
