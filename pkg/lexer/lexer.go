package lexer

import (
	"strings"
	"unicode"

	"github.com/xplshn/sstc/pkg/token"
)

// Lexer turns SST source into tokens on demand. Once the input is exhausted
// every further call to Next yields an EOF token. Characters outside the
// language and unterminated block comments come back as Illegal tokens whose
// Value describes the problem.
type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
}

func NewLexer(source []rune, fileIndex int) *Lexer {
	return &Lexer{source: source, fileIndex: fileIndex, line: 1, column: 1}
}

func (l *Lexer) Next() token.Token {
	if tok, bad := l.skipWhitespaceAndComments(); bad {
		return tok
	}
	startPos, startCol, startLine := l.pos, l.column, l.line

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startPos, startCol, startLine)
	}

	ch := l.peek()
	if isLetter(ch) {
		l.advance()
		return l.identifierOrKeyword(startPos, startCol, startLine)
	}
	if isDigit(ch) {
		return l.numberLiteral(startPos, startCol, startLine)
	}

	l.advance()
	switch ch {
	case '(': return l.makeToken(token.LParen, "", startPos, startCol, startLine)
	case ')': return l.makeToken(token.RParen, "", startPos, startCol, startLine)
	case '{': return l.makeToken(token.LBrace, "", startPos, startCol, startLine)
	case '}': return l.makeToken(token.RBrace, "", startPos, startCol, startLine)
	case '[': return l.makeToken(token.LBracket, "", startPos, startCol, startLine)
	case ']': return l.makeToken(token.RBracket, "", startPos, startCol, startLine)
	case ';': return l.makeToken(token.Semi, "", startPos, startCol, startLine)
	case ',': return l.makeToken(token.Comma, "", startPos, startCol, startLine)
	case '+': return l.makeToken(token.Plus, "", startPos, startCol, startLine)
	case '-': return l.makeToken(token.Minus, "", startPos, startCol, startLine)
	case '*': return l.makeToken(token.Star, "", startPos, startCol, startLine)
	case '/': return l.makeToken(token.Slash, "", startPos, startCol, startLine)
	case '=': return l.matchThen('=', token.EqEq, token.Assign, startPos, startCol, startLine)
	case '<': return l.matchThen('=', token.Lte, token.Lt, startPos, startCol, startLine)
	case '>': return l.matchThen('=', token.Gte, token.Gt, startPos, startCol, startLine)
	}

	return l.makeToken(token.Illegal, "unexpected character '"+string(ch)+"'", startPos, startCol, startLine)
}

// Tokenize drains the lexer, including the trailing EOF token.
func (l *Lexer) Tokenize() []token.Token {
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func isLetter(ch rune) bool { return ch < unicode.MaxASCII && (unicode.IsLetter(ch) || ch == '_') }
func isDigit(ch rune) bool  { return ch >= '0' && ch <= '9' }

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) matchThen(expected rune, thenType, elseType token.Type, startPos, startCol, startLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, "", startPos, startCol, startLine)
	}
	return l.makeToken(elseType, "", startPos, startCol, startLine)
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespaceAndComments() (token.Token, bool) {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r', '\f':
			l.advance()
		case '/':
			switch l.peekNext() {
			case '*':
				if tok, ok := l.blockComment(); !ok {
					return tok, true
				}
			case '/':
				l.lineComment()
			default:
				return token.Token{}, false
			}
		default:
			return token.Token{}, false
		}
	}
}

// blockComment skips a /* */ comment. Comments do not nest: the first */ ends
// the comment.
func (l *Lexer) blockComment() (token.Token, bool) {
	startPos, startCol, startLine := l.pos, l.column, l.line
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return token.Token{}, true
		}
		l.advance()
	}
	return l.makeToken(token.Illegal, "unterminated block comment", startPos, startCol, startLine), false
}

func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for isLetter(l.peek()) || isDigit(l.peek()) {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, "", startPos, startCol, startLine)
	}
	return l.makeToken(token.Ident, value, startPos, startCol, startLine)
}

// numberLiteral scans a decimal integer. Leading zeros carry no meaning, so
// the token value is the canonical spelling without them.
func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	for isDigit(l.peek()) {
		l.advance()
	}
	digits := strings.TrimLeft(string(l.source[startPos:l.pos]), "0")
	if digits == "" {
		digits = "0"
	}
	return l.makeToken(token.Number, digits, startPos, startCol, startLine)
}
