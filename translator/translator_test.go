package translator

import (
	"strings"
	"testing"

	"github.com/mathvm/mathvm/bytecode"
)

func translate(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	prog, err := Translate(src)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return prog
}

func disasmOf(prog *bytecode.Program, name string) string {
	fn, ok := prog.FunctionByName(name)
	if !ok {
		return ""
	}
	return bytecode.Disassemble(fn.Code)
}

func TestFunctionCallAndArithmetic(t *testing.T) {
	prog := translate(t, `function int add(int a, int b) { return a + b; } print(add(2, 3));`)
	top := disasmOf(prog, bytecode.EntryFunctionName)
	if !strings.Contains(top, "CALL") || !strings.Contains(top, "IPRINT") {
		t.Fatalf("expected CALL and IPRINT in <top>, got:\n%s", top)
	}
	add := disasmOf(prog, "add")
	if !strings.Contains(add, "IADD") || !strings.Contains(add, "RETURN") {
		t.Fatalf("expected IADD and RETURN in add, got:\n%s", add)
	}
}

func TestWhileLoop(t *testing.T) {
	prog := translate(t, `int i; i = 0; while (i < 5) { print(i); i = i + 1; }`)
	top := disasmOf(prog, bytecode.EntryFunctionName)
	if !strings.Contains(top, "IFICMPLE") {
		t.Fatalf("expected a direct IFICMPLE fast path for `i < 5`, got:\n%s", top)
	}
	if !strings.Contains(top, "IPRINT") {
		t.Fatalf("expected IPRINT in loop body, got:\n%s", top)
	}
}

func TestForRange(t *testing.T) {
	prog := translate(t, `int i; for (i in 1..4) { print(i); }`)
	top := disasmOf(prog, bytecode.EntryFunctionName)
	if !strings.Contains(top, "ICMP") || !strings.Contains(top, "IFICMPE") {
		t.Fatalf("expected ICMP/IFICMPE exit test in for-loop, got:\n%s", top)
	}
}

func TestIntToDoubleCoercion(t *testing.T) {
	prog := translate(t, `double x; x = 1; print(x + 2.5);`)
	top := disasmOf(prog, bytecode.EntryFunctionName)
	if !strings.Contains(top, "I2D") {
		t.Fatalf("expected an I2D coercion, got:\n%s", top)
	}
	if !strings.Contains(top, "DADD") || !strings.Contains(top, "DPRINT") {
		t.Fatalf("expected DADD/DPRINT, got:\n%s", top)
	}
}

func TestRecursion(t *testing.T) {
	prog := translate(t, `function int f(int n) { if (n <= 1) { return 1; } return n * f(n - 1); } print(f(5));`)
	f := disasmOf(prog, "f")
	if !strings.Contains(f, "CALL") {
		t.Fatalf("expected f to call itself, got:\n%s", f)
	}
	if !strings.Contains(f, "IMUL") {
		t.Fatalf("expected IMUL, got:\n%s", f)
	}
}

func TestContextVariableAccess(t *testing.T) {
	prog := translate(t, `int outer; outer = 7; function void g() { print(outer); } g();`)
	g := disasmOf(prog, "g")
	if !strings.Contains(g, "LOADCTXIVAR") {
		t.Fatalf("expected g to read outer as a context variable, got:\n%s", g)
	}
}

func TestDirectIntComparisonSkipsMaterialization(t *testing.T) {
	prog := translate(t, `int a; int b; if (a > b) { print(1); } else { print(0); }`)
	top := disasmOf(prog, bytecode.EntryFunctionName)
	if !strings.Contains(top, "IFICMPGE") {
		t.Fatalf("expected a direct IFICMPGE fast path for `a > b`, got:\n%s", top)
	}
}

func TestEachComparisonOperatorOutsideCondition(t *testing.T) {
	// Used in a non-branch position, comparisons must fall back to the
	// cmp/neg materialization path and leave a usable int on the stack.
	for _, src := range []string{
		`int a; int b; int c; c = a == b;`,
		`int a; int b; int c; c = a != b;`,
		`int a; int b; int c; c = a < b;`,
		`int a; int b; int c; c = a <= b;`,
		`int a; int b; int c; c = a > b;`,
		`int a; int b; int c; c = a >= b;`,
	} {
		top := disasmOf(translate(t, src), bytecode.EntryFunctionName)
		if !strings.Contains(top, " ICMP\n") {
			t.Fatalf("%s: expected a standalone ICMP materializing the comparison, got:\n%s", src, top)
		}
	}
}

func TestGreaterEqualMaterializesNormalizedBoolean(t *testing.T) {
	// The ICMP-against-(-1) result is 0 or -1, never +1; INEG must be
	// present to normalize it to the canonical 0/1.
	prog := translate(t, `int a; int b; int c; c = a >= b;`)
	top := disasmOf(prog, bytecode.EntryFunctionName)
	if !strings.Contains(top, "INEG") {
		t.Fatalf("expected INEG to normalize >= to 0/1, got:\n%s", top)
	}
}

func TestUnaryOperators(t *testing.T) {
	prog := translate(t, `int a; a = -5; int b; b = !a;`)
	top := disasmOf(prog, bytecode.EntryFunctionName)
	if !strings.Contains(top, "INEG") {
		t.Fatalf("expected INEG, got:\n%s", top)
	}
}

func TestCompoundAssignment(t *testing.T) {
	prog := translate(t, `int a; a = 1; a += 2; a -= 1;`)
	top := disasmOf(prog, bytecode.EntryFunctionName)
	if !strings.Contains(top, "IADD") || !strings.Contains(top, "ISUB") {
		t.Fatalf("expected IADD and ISUB, got:\n%s", top)
	}
}

func TestUndefinedVariableIsCompileError(t *testing.T) {
	_, err := Translate(`print(missing);`)
	if err == nil {
		t.Fatal("expected a compile error")
	}
}

func TestUndefinedFunctionIsCompileError(t *testing.T) {
	_, err := Translate(`print(missing());`)
	if err == nil {
		t.Fatal("expected a compile error")
	}
}

func TestModOnDoubleIsCompileError(t *testing.T) {
	_, err := Translate(`double a; double b; double c; c = a % b;`)
	if err == nil {
		t.Fatal("expected a compile error for %% on doubles")
	}
}

func TestCompoundAssignmentOnDoubleIsCompileError(t *testing.T) {
	_, err := Translate(`double a; a = 1.0; a += 2.0;`)
	if err == nil {
		t.Fatal("expected a compile error for += on a double")
	}
}

func TestCompoundAssignmentOnStringIsCompileError(t *testing.T) {
	_, err := Translate(`string a; a = "x"; a += "y";`)
	if err == nil {
		t.Fatal("expected a compile error for += on a string")
	}
}

func TestDuplicateFunctionNameIsCompileError(t *testing.T) {
	_, err := Translate(`function int f() { return 1; } function int f() { return 2; }`)
	if err == nil {
		t.Fatal("expected a compile error for a duplicate function name")
	}
}

func TestDuplicateVariableIsCompileError(t *testing.T) {
	_, err := Translate(`int a; int a;`)
	if err == nil {
		t.Fatal("expected a compile error for a duplicate variable")
	}
}

func TestMissingReturnIsCompileError(t *testing.T) {
	_, err := Translate(`function int f() { print(1); }`)
	if err == nil {
		t.Fatal("expected a compile error for a non-void function without a trailing return")
	}
}

func TestStringComparisonIsCompileError(t *testing.T) {
	_, err := Translate(`string a; string b; int c; c = a == b;`)
	if err == nil {
		t.Fatal("expected a compile error comparing strings")
	}
}

func TestScopeResolutionDeterminism(t *testing.T) {
	src := `int x; function void f() { print(x); } f();`
	p1 := translate(t, src)
	p2 := translate(t, src)
	f1, _ := p1.FunctionByName("f")
	f2, _ := p2.FunctionByName("f")
	if string(f1.Code) != string(f2.Code) {
		t.Fatalf("two translations of the same program produced different bytecode")
	}
}

func TestRoundTripOfTranslatedProgram(t *testing.T) {
	prog := translate(t, `function int add(int a, int b) { return a + b; } print(add(2, 3));`)
	encoded := prog.Encode()
	decoded, err := bytecode.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	top, _ := prog.FunctionByName(bytecode.EntryFunctionName)
	decTop, ok := decoded.FunctionByName(bytecode.EntryFunctionName)
	if !ok || string(decTop.Code) != string(top.Code) {
		t.Fatalf("round-trip mismatch for <top>")
	}
}
