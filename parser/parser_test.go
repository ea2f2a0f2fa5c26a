package parser

import (
	"testing"

	"github.com/mathvm/mathvm/ast"
	"github.com/mathvm/mathvm/lexer"
)

func parseProgram(t *testing.T, input string) *ast.Program {
	t.Helper()
	p := New(lexer.New(input))
	prog := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}
	return prog
}

func TestVarDecl(t *testing.T) {
	prog := parseProgram(t, `int x = 5;`)
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	decl, ok := prog.Statements[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("expected *ast.VarDecl, got %T", prog.Statements[0])
	}
	if decl.Type != ast.IntType || decl.Name.Value != "x" {
		t.Fatalf("got %+v", decl)
	}
	lit, ok := decl.Value.(*ast.IntLiteral)
	if !ok || lit.Value != 5 {
		t.Fatalf("expected int literal 5, got %#v", decl.Value)
	}
}

func TestFunctionDecl(t *testing.T) {
	prog := parseProgram(t, `function int add(int a, int b) { return a + b; }`)
	fd, ok := prog.Statements[0].(*ast.FunctionDecl)
	if !ok {
		t.Fatalf("expected *ast.FunctionDecl, got %T", prog.Statements[0])
	}
	if fd.Name != "add" || fd.ReturnType != ast.IntType || len(fd.Params) != 2 {
		t.Fatalf("got %+v", fd)
	}
	if fd.Params[0].Name != "a" || fd.Params[1].Name != "b" {
		t.Fatalf("unexpected params: %+v", fd.Params)
	}
	if len(fd.Body.Statements) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(fd.Body.Statements))
	}
}

func TestForStmt(t *testing.T) {
	prog := parseProgram(t, `for (i in 1..10) { print(i); }`)
	fs, ok := prog.Statements[0].(*ast.ForStmt)
	if !ok {
		t.Fatalf("expected *ast.ForStmt, got %T", prog.Statements[0])
	}
	if fs.Var.Value != "i" {
		t.Fatalf("expected loop var i, got %s", fs.Var.Value)
	}
	low, ok := fs.Low.(*ast.IntLiteral)
	if !ok || low.Value != 1 {
		t.Fatalf("unexpected low bound %#v", fs.Low)
	}
	high, ok := fs.High.(*ast.IntLiteral)
	if !ok || high.Value != 10 {
		t.Fatalf("unexpected high bound %#v", fs.High)
	}
}

func TestRangeOutsideForIsSyntaxError(t *testing.T) {
	p := New(lexer.New(`int x = 1..10;`))
	p.ParseProgram()
	if len(p.Errors()) == 0 {
		t.Fatalf("expected a syntax error for '..' outside a for header")
	}
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a + b * c;", "(a + (b * c));"},
		{"a || b && c;", "(a || (b && c));"},
		{"a & b | c ^ d;", "((a & b) | (c ^ d));"},
		{"-a * b;", "((-a) * b);"},
		{"!a == b;", "((!a) == b);"},
		{"a % 2 == 0;", "((a % 2) == 0);"},
	}
	for _, tt := range tests {
		prog := parseProgram(t, tt.input)
		got := prog.String()
		if got != tt.want {
			t.Errorf("input %q: got %q want %q", tt.input, got, tt.want)
		}
	}
}

func TestAssignmentOps(t *testing.T) {
	for _, tt := range []struct {
		input string
		op    ast.AssignOp
	}{
		{"x = 1;", ast.Assign},
		{"x += 1;", ast.AssignAdd},
		{"x -= 1;", ast.AssignSub},
	} {
		prog := parseProgram(t, tt.input)
		a, ok := prog.Statements[0].(*ast.Assignment)
		if !ok {
			t.Fatalf("%s: expected *ast.Assignment, got %T", tt.input, prog.Statements[0])
		}
		if a.Op != tt.op {
			t.Fatalf("%s: got op %s want %s", tt.input, a.Op, tt.op)
		}
	}
}

func TestPrintStmtMultipleArgs(t *testing.T) {
	prog := parseProgram(t, `print(1, " ", 2);`)
	ps, ok := prog.Statements[0].(*ast.PrintStmt)
	if !ok {
		t.Fatalf("expected *ast.PrintStmt, got %T", prog.Statements[0])
	}
	if len(ps.Arguments) != 3 {
		t.Fatalf("expected 3 arguments, got %d", len(ps.Arguments))
	}
}

func TestCallExpr(t *testing.T) {
	prog := parseProgram(t, `int y = add(1, 2 * 3);`)
	decl := prog.Statements[0].(*ast.VarDecl)
	call, ok := decl.Value.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected *ast.CallExpr, got %T", decl.Value)
	}
	if call.Function != "add" || len(call.Arguments) != 2 {
		t.Fatalf("got %+v", call)
	}
}

func TestNestedFunctionDecl(t *testing.T) {
	prog := parseProgram(t, `
function int outer(int n) {
    function int inner(int m) {
        return m + 1;
    }
    return inner(n);
}`)
	outer := prog.Statements[0].(*ast.FunctionDecl)
	if len(outer.Body.Statements) != 2 {
		t.Fatalf("expected 2 statements in outer body, got %d", len(outer.Body.Statements))
	}
	if _, ok := outer.Body.Statements[0].(*ast.FunctionDecl); !ok {
		t.Fatalf("expected nested function decl, got %T", outer.Body.Statements[0])
	}
}

func TestParseErrorsAccumulate(t *testing.T) {
	p := New(lexer.New(`int x = ; function`))
	p.ParseProgram()
	if len(p.Errors()) < 2 {
		t.Fatalf("expected both parse errors to be collected, got %v", p.Errors())
	}
}
