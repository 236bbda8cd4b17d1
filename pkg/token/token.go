package token

import "fmt"

type Type int

const (
	EOF Type = iota
	Illegal
	Ident
	Number
	// Keywords
	Class
	Else
	Final
	If
	Int
	Public
	Return
	Void
	While
	// Punctuation
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semi
	Comma
	// Operators
	Assign
	Plus
	Minus
	Star
	Slash
	EqEq
	Lt
	Lte
	Gt
	Gte
)

var KeywordMap = map[string]Type{
	"class":  Class,
	"else":   Else,
	"final":  Final,
	"if":     If,
	"int":    Int,
	"public": Public,
	"return": Return,
	"void":   Void,
	"while":  While,
}

var symbols = map[Type]string{
	LParen:   "(",
	RParen:   ")",
	LBrace:   "{",
	RBrace:   "}",
	LBracket: "[",
	RBracket: "]",
	Semi:     ";",
	Comma:    ",",
	Assign:   "=",
	Plus:     "+",
	Minus:    "-",
	Star:     "*",
	Slash:    "/",
	EqEq:     "==",
	Lt:       "<",
	Lte:      "<=",
	Gt:       ">",
	Gte:      ">=",
}

// Reverse mapping from Type to the keyword or symbol spelling
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	for typ, str := range symbols {
		TypeStrings[typ] = str
	}
	TypeStrings[EOF] = "end of file"
	TypeStrings[Illegal] = "illegal token"
	TypeStrings[Ident] = "identifier"
	TypeStrings[Number] = "number"
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

func (t Type) IsKeyword() bool { return t >= Class && t <= While }

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}

// String renders the token the way the scan stage prints it.
func (t Token) String() string {
	switch t.Type {
	case Ident, Number, Illegal:
		return fmt.Sprintf("%d:%d %s %q", t.Line, t.Column, typeName(t.Type), t.Value)
	default:
		return fmt.Sprintf("%d:%d %s", t.Line, t.Column, typeName(t.Type))
	}
}

func typeName(t Type) string {
	switch t {
	case EOF:
		return "EOF"
	case Illegal:
		return "ILLEGAL"
	case Ident:
		return "IDENT"
	case Number:
		return "NUMBER"
	}
	if t.IsKeyword() {
		return "KEYWORD " + t.String()
	}
	return "SYMBOL " + t.String()
}
