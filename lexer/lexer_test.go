package lexer

import (
	"testing"

	"github.com/mathvm/mathvm/token"
)

func TestNextToken(t *testing.T) {
	input := `
function int add(int a, int b) {
    return a + b;
}
double x = 3.14;
string s = "hi\nthere";
int i = 0;
for (i in 1..10) {
    i += 1;
}
if (a <= b && b >= a) {
    print(a, " ", b);
} else {
    i -= 1;
}
x = a != b || a == b;
y = a & b | c ^ d;
z = a % 2;
`

	tests := []struct {
		expectedType    token.Type
		expectedLiteral string
	}{
		{token.FUNCTION, "function"},
		{token.INT_TYPE, "int"},
		{token.IDENT, "add"},
		{token.LPAREN, "("},
		{token.INT_TYPE, "int"},
		{token.IDENT, "a"},
		{token.COMMA, ","},
		{token.INT_TYPE, "int"},
		{token.IDENT, "b"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.RETURN, "return"},
		{token.IDENT, "a"},
		{token.PLUS, "+"},
		{token.IDENT, "b"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.DOUBLE_TYPE, "double"},
		{token.IDENT, "x"},
		{token.ASSIGN, "="},
		{token.DOUBLE, "3.14"},
		{token.SEMICOLON, ";"},
		{token.STRING_TYPE, "string"},
		{token.IDENT, "s"},
		{token.ASSIGN, "="},
		{token.STRING, "hi\nthere"},
		{token.SEMICOLON, ";"},
		{token.INT_TYPE, "int"},
		{token.IDENT, "i"},
		{token.ASSIGN, "="},
		{token.INT, "0"},
		{token.SEMICOLON, ";"},
		{token.FOR, "for"},
		{token.LPAREN, "("},
		{token.IDENT, "i"},
		{token.IN, "in"},
		{token.INT, "1"},
		{token.RANGE, ".."},
		{token.INT, "10"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.IDENT, "i"},
		{token.PLUS_EQ, "+="},
		{token.INT, "1"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.IF, "if"},
		{token.LPAREN, "("},
		{token.IDENT, "a"},
		{token.LTE, "<="},
		{token.IDENT, "b"},
		{token.AND, "&&"},
		{token.IDENT, "b"},
		{token.GTE, ">="},
		{token.IDENT, "a"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.PRINT, "print"},
		{token.LPAREN, "("},
		{token.IDENT, "a"},
		{token.COMMA, ","},
		{token.STRING, " "},
		{token.COMMA, ","},
		{token.IDENT, "b"},
		{token.RPAREN, ")"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.ELSE, "else"},
		{token.LBRACE, "{"},
		{token.IDENT, "i"},
		{token.MINUS_EQ, "-="},
		{token.INT, "1"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.IDENT, "x"},
		{token.ASSIGN, "="},
		{token.IDENT, "a"},
		{token.NOT_EQ, "!="},
		{token.IDENT, "b"},
		{token.OR, "||"},
		{token.IDENT, "a"},
		{token.EQ, "=="},
		{token.IDENT, "b"},
		{token.SEMICOLON, ";"},
		{token.IDENT, "y"},
		{token.ASSIGN, "="},
		{token.IDENT, "a"},
		{token.BIT_AND, "&"},
		{token.IDENT, "b"},
		{token.BIT_OR, "|"},
		{token.IDENT, "c"},
		{token.BIT_XOR, "^"},
		{token.IDENT, "d"},
		{token.SEMICOLON, ";"},
		{token.IDENT, "z"},
		{token.ASSIGN, "="},
		{token.IDENT, "a"},
		{token.PERCENT, "%"},
		{token.INT, "2"},
		{token.SEMICOLON, ";"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (literal=%q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestComments(t *testing.T) {
	input := `int a = 1; // this sets a
int b = 2;`
	l := New(input)
	var types []token.Type
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}
		types = append(types, tok.Type)
	}
	want := []token.Type{
		token.INT_TYPE, token.IDENT, token.ASSIGN, token.INT, token.SEMICOLON,
		token.INT_TYPE, token.IDENT, token.ASSIGN, token.INT, token.SEMICOLON,
	}
	if len(types) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(types), len(want), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("token %d: got %q want %q", i, types[i], want[i])
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	l := New(`"abc`)
	tok := l.NextToken()
	if tok.Type != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL, got %q", tok.Type)
	}
}

func TestStringEscapes(t *testing.T) {
	l := New(`"a\tb\nc\"d\\e"`)
	tok := l.NextToken()
	if tok.Type != token.STRING {
		t.Fatalf("expected STRING, got %q", tok.Type)
	}
	want := "a\tb\nc\"d\\e"
	if tok.Literal != want {
		t.Fatalf("got %q want %q", tok.Literal, want)
	}
}

func TestLineColTracking(t *testing.T) {
	l := New("int a;\nint b;")
	l.NextToken() // int
	l.NextToken() // a
	semi := l.NextToken()
	if semi.Line != 1 {
		t.Fatalf("expected line 1, got %d", semi.Line)
	}
	l.NextToken() // int
	bTok := l.NextToken()
	if bTok.Line != 2 {
		t.Fatalf("expected line 2, got %d", bTok.Line)
	}
}
