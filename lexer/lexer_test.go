package lexer

import (
	"testing"

	"github.com/skx/muc/token"
)

// Trivial test of the parsing of numbers, decimal and hex.
func TestParseNumbers(t *testing.T) {
	input := `3 43 0x1F 0X10`

	tests := []struct {
		expectedType    token.Type
		expectedLiteral string
		expectedValue   uint32
	}{
		{token.NUMBER, "3", 3},
		{token.NUMBER, "43", 43},
		{token.NUMBER, "0x1F", 0x1F},
		{token.NUMBER, "0X10", 0x10},
		{token.EOF, "", 0},
	}
	l := New("t.muc", input)
	for i, tt := range tests {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("tests[%d] - unexpected error: %s", i, err)
		}
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong, expected=%q, got=%q", i, tt.expectedType, tok.Type)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - Literal wrong, expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
		if tok.Type == token.NUMBER && tok.IntVal != tt.expectedValue {
			t.Fatalf("tests[%d] - IntVal wrong, expected=%d, got=%d", i, tt.expectedValue, tok.IntVal)
		}
	}
}

// Trivial test of the parsing of operators, including maximal-munch
// two-character operators.
func TestParseOperators(t *testing.T) {
	input := `+ - * / % & | ^ ~ ! < > = == != <= >= && || << >> ++ --`

	tests := []struct {
		expectedType    token.Type
		expectedLiteral string
	}{
		{token.PLUS, "+"},
		{token.MINUS, "-"},
		{token.ASTERISK, "*"},
		{token.SLASH, "/"},
		{token.PERCENT, "%"},
		{token.AMP, "&"},
		{token.PIPE, "|"},
		{token.CARET, "^"},
		{token.TILDE, "~"},
		{token.BANG, "!"},
		{token.LT, "<"},
		{token.GT, ">"},
		{token.ASSIGN, "="},
		{token.EQ, "=="},
		{token.NOTEQ, "!="},
		{token.LTE, "<="},
		{token.GTE, ">="},
		{token.AND, "&&"},
		{token.OR, "||"},
		{token.SHL, "<<"},
		{token.SHR, ">>"},
		{token.INC, "++"},
		{token.DEC, "--"},
		{token.EOF, ""},
	}
	l := New("t.muc", input)
	for i, tt := range tests {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("tests[%d] - unexpected error: %s", i, err)
		}
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong, expected=%q, got=%q", i, tt.expectedType, tok.Type)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - Literal wrong, expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

// Keywords must be recognized distinctly from plain identifiers.
func TestKeywords(t *testing.T) {
	input := `function if else while do for return break continue register volatile interrupt asm uint32 int32 steve`

	tests := []struct {
		expectedType token.Type
	}{
		{token.FUNCTION}, {token.IF}, {token.ELSE}, {token.WHILE}, {token.DO},
		{token.FOR}, {token.RETURN}, {token.BREAK}, {token.CONTINUE},
		{token.REGISTER}, {token.VOLATILE}, {token.INTERRUPT}, {token.ASM},
		{token.UINT32}, {token.INT32}, {token.IDENT}, {token.EOF},
	}
	l := New("t.muc", input)
	for i, tt := range tests {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("tests[%d] - unexpected error: %s", i, err)
		}
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong, expected=%q, got=%q", i, tt.expectedType, tok.Type)
		}
	}
}

// An unterminated block comment is a hard LexError.
func TestUnterminatedComment(t *testing.T) {
	l := New("t.muc", "1 + /* oops")
	var err error
	for {
		var tok token.Token
		tok, err = l.NextToken()
		if err != nil || tok.Type == token.EOF {
			break
		}
	}
	if err == nil {
		t.Fatalf("expected an error for an unterminated block comment")
	}
}

// A stray character produces a LexError carrying a position.
func TestStrayCharacter(t *testing.T) {
	l := New("t.muc", "1 @ 2")
	_, err := l.NextToken() // "1"
	if err != nil {
		t.Fatalf("unexpected error reading number: %s", err)
	}
	_, err = l.NextToken() // "@"
	if err == nil {
		t.Fatalf("expected an error for the stray '@' character")
	}
}

// Comments, both line and block, are discarded.
func TestComments(t *testing.T) {
	input := "1 // trailing comment\n+ /* block */ 2"

	l := New("t.muc", input)
	want := []token.Type{token.NUMBER, token.PLUS, token.NUMBER, token.EOF}
	for i, w := range want {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("tests[%d] - unexpected error: %s", i, err)
		}
		if tok.Type != w {
			t.Fatalf("tests[%d] - tokentype wrong, expected=%q, got=%q", i, w, tok.Type)
		}
	}
}

// Line numbers advance correctly across embedded newlines.
func TestLineTracking(t *testing.T) {
	input := "1\n2\n3"
	l := New("t.muc", input)

	wantLines := []int{1, 2, 3, 3}
	for i, want := range wantLines {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("tests[%d] - unexpected error: %s", i, err)
		}
		if tok.Pos.Line != want {
			t.Fatalf("tests[%d] - line wrong, expected=%d, got=%d", i, want, tok.Pos.Line)
		}
	}
}
