package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/sstc/pkg/token"
	"gotest.tools/v3/assert"
)

type tokView struct {
	Type   token.Type
	Value  string
	Line   int
	Column int
}

func scan(src string) []tokView {
	var out []tokView
	for _, tok := range NewLexer([]rune(src), 0).Tokenize() {
		out = append(out, tokView{tok.Type, tok.Value, tok.Line, tok.Column})
	}
	return out
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	got := scan("class Foo { final int X = 007; public void bar() {} }")
	want := []tokView{
		{token.Class, "", 1, 1},
		{token.Ident, "Foo", 1, 7},
		{token.LBrace, "", 1, 11},
		{token.Final, "", 1, 13},
		{token.Int, "", 1, 19},
		{token.Ident, "X", 1, 23},
		{token.Assign, "", 1, 25},
		{token.Number, "7", 1, 27},
		{token.Semi, "", 1, 30},
		{token.Public, "", 1, 32},
		{token.Void, "", 1, 39},
		{token.Ident, "bar", 1, 44},
		{token.LParen, "", 1, 47},
		{token.RParen, "", 1, 48},
		{token.LBrace, "", 1, 50},
		{token.RBrace, "", 1, 51},
		{token.RBrace, "", 1, 53},
		{token.EOF, "", 1, 54},
	}
	assert.DeepEqual(t, got, want)
}

func TestKeywordsAreCaseSensitive(t *testing.T) {
	got := scan("While while If_ ifx")
	assert.DeepEqual(t, got, []tokView{
		{token.Ident, "While", 1, 1},
		{token.While, "", 1, 7},
		{token.Ident, "If_", 1, 13},
		{token.Ident, "ifx", 1, 17},
		{token.EOF, "", 1, 20},
	})
}

func TestOperators(t *testing.T) {
	var types []token.Type
	for _, tv := range scan("+ - * / = == < <= > >= ( ) { } [ ] , ;") {
		types = append(types, tv.Type)
	}
	want := []token.Type{
		token.Plus, token.Minus, token.Star, token.Slash, token.Assign, token.EqEq,
		token.Lt, token.Lte, token.Gt, token.Gte, token.LParen, token.RParen,
		token.LBrace, token.RBrace, token.LBracket, token.RBracket, token.Comma,
		token.Semi, token.EOF,
	}
	assert.DeepEqual(t, types, want)
}

func TestCommentsAndPositions(t *testing.T) {
	src := "a // line comment\n/* block\n * still */ b/**/c\n  0"
	got := scan(src)
	want := []tokView{
		{token.Ident, "a", 1, 1},
		{token.Ident, "b", 3, 13},
		{token.Ident, "c", 3, 18},
		{token.Number, "0", 4, 3},
		{token.EOF, "", 4, 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("token mismatch (-want +got):\n%s", diff)
	}
}

func TestBlockCommentsDoNotNest(t *testing.T) {
	got := scan("/* a /* b */ x */")
	assert.DeepEqual(t, got, []tokView{
		{token.Ident, "x", 1, 14},
		{token.Star, "", 1, 16},
		{token.Slash, "", 1, 17},
		{token.EOF, "", 1, 18},
	})
}

func TestIllegalInput(t *testing.T) {
	got := scan("x # /* open")
	assert.DeepEqual(t, got, []tokView{
		{token.Ident, "x", 1, 1},
		{token.Illegal, "unexpected character '#'", 1, 3},
		{token.Illegal, "unterminated block comment", 1, 5},
		{token.EOF, "", 1, 12},
	})
}

func TestEOFIsSticky(t *testing.T) {
	l := NewLexer([]rune("x"), 3)
	assert.Equal(t, l.Next().Type, token.Ident)
	for i := 0; i < 3; i++ {
		tok := l.Next()
		assert.Equal(t, tok.Type, token.EOF)
		assert.Equal(t, tok.FileIndex, 3)
	}
}

func TestLeadingZerosAreDropped(t *testing.T) {
	got := scan("007 000 10")
	want := []tokView{
		{token.Number, "7", 1, 1},
		{token.Number, "0", 1, 5},
		{token.Number, "10", 1, 9},
		{token.EOF, "", 1, 11},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("token mismatch (-want +got):\n%s", diff)
	}
}
