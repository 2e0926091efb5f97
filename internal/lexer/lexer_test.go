package lexer

import "testing"

func TestNextTokenOperators(t *testing.T) {
	input := "+ ++ += - -- -= -> * *= / /= % .. ..= :: ! != = == < <= << > >= >> & && | || ^ ~ ? :"
	expected := []TokenType{
		Plus, PlusPlus, PlusEqual, Minus, MinusMinus, MinusEqual, Arrow,
		Star, StarEqual, Slash, SlashEqual, Percent, DotDot, DotDotEqual,
		ColonColon, Bang, BangEqual, Equal, EqualEqual, Less, LessEqual,
		LeftShift, Greater, GreaterEqual, RightShift, BitAnd, AmpAmp,
		BitOr, PipePipe, BitXor, Tilde, Question, Colon, EndOfFile,
	}

	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Fatalf("token %d: expected %s, got %s (%q)", i, want, tok.Type, tok.Lexeme)
		}
	}
}

func TestNextTokenKeywordsAndIdentifiers(t *testing.T) {
	input := "fn main var x const ref class this super typeof move xs1"
	expected := []struct {
		typ    TokenType
		lexeme string
	}{
		{KwFn, "fn"},
		{Identifier, "main"},
		{KwVar, "var"},
		{Identifier, "x"},
		{KwConst, "const"},
		{KwRef, "ref"},
		{KwClass, "class"},
		{KwThis, "this"},
		{KwSuper, "super"},
		{KwTypeof, "typeof"},
		{KwMove, "move"},
		{Identifier, "xs1"},
		{EndOfFile, ""},
	}

	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want.typ || tok.Lexeme != want.lexeme {
			t.Fatalf("token %d: expected %s %q, got %s %q", i, want.typ, want.lexeme, tok.Type, tok.Lexeme)
		}
	}
}

func TestNumberLiterals(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"0", IntValue},
		{"42", IntValue},
		{"3.25", FloatValue},
		{"10.0", FloatValue},
	}

	for _, tt := range tests {
		tok := New(tt.input).NextToken()
		if tok.Type != tt.typ || tok.Lexeme != tt.input {
			t.Errorf("%q: expected %s %q, got %s %q", tt.input, tt.typ, tt.input, tok.Type, tok.Lexeme)
		}
	}
}

func TestRangeDoesNotEatDots(t *testing.T) {
	l := New("0 ..= 2")
	if tok := l.NextToken(); tok.Type != IntValue || tok.Lexeme != "0" {
		t.Fatalf("expected int 0, got %s %q", tok.Type, tok.Lexeme)
	}
	if tok := l.NextToken(); tok.Type != DotDotEqual {
		t.Fatalf("expected ..=, got %s", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != IntValue || tok.Lexeme != "2" {
		t.Fatalf("expected int 2, got %s %q", tok.Type, tok.Lexeme)
	}
}

func TestStringEscapes(t *testing.T) {
	l := New(`"a\tb\n\"q\"\\"`)
	tok := l.NextToken()
	if tok.Type != StringValue {
		t.Fatalf("expected string, got %s", tok.Type)
	}
	if tok.Lexeme != "a\tb\n\"q\"\\" {
		t.Fatalf("unexpected string value %q", tok.Lexeme)
	}
}

func TestNestedBlockComments(t *testing.T) {
	l := New("/* outer /* inner */ still outer */ 1")
	tok := l.NextToken()
	if tok.Type != IntValue || tok.Lexeme != "1" {
		t.Fatalf("expected int 1 after nested comment, got %s %q", tok.Type, tok.Lexeme)
	}
}

func TestKeepComments(t *testing.T) {
	l := New("// note\n1", KeepComments())
	tok := l.NextToken()
	if tok.Type != SingleLineComment || tok.Lexeme != "// note" {
		t.Fatalf("expected comment token, got %s %q", tok.Type, tok.Lexeme)
	}
	if tok := l.NextToken(); tok.Type != IntValue {
		t.Fatalf("expected int after comment, got %s", tok.Type)
	}
}

func TestPositions(t *testing.T) {
	l := New("var x\n  = 1")
	var toks []Token
	for {
		tok := l.NextToken()
		if tok.Type == EndOfFile {
			break
		}
		toks = append(toks, tok)
	}
	want := []Position{{1, 1}, {1, 5}, {2, 3}, {2, 5}}
	for i, pos := range want {
		if toks[i].Line != pos.Line || toks[i].Column != pos.Column {
			t.Errorf("token %d: expected %d:%d, got %d:%d", i, pos.Line, pos.Column, toks[i].Line, toks[i].Column)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	l := New(`"abc`)
	tok := l.NextToken()
	if tok.Type != Illegal {
		t.Fatalf("expected illegal token, got %s", tok.Type)
	}
	if len(l.Errors()) == 0 {
		t.Fatal("expected a scan error")
	}
}
