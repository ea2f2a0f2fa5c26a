package bytecode

import (
	"testing"

	"github.com/mathvm/mathvm/value"
)

func TestMakeAndReadOperands(t *testing.T) {
	ins := Make(CALL, 259)
	if len(ins) != 3 {
		t.Fatalf("expected 3 bytes, got %d", len(ins))
	}
	def, err := Lookup(ins[0])
	if err != nil {
		t.Fatal(err)
	}
	operands, n := ReadOperands(def, ins[1:])
	if n != 2 || operands[0] != 259 {
		t.Fatalf("got operands=%v n=%d", operands, n)
	}
}

func TestOpcodeCoverage(t *testing.T) {
	// Every opcode from ILOAD to STOP must have a definition whose
	// operand width list can round-trip through Make/ReadOperands.
	for op := ILOAD; op <= STOP; op++ {
		def, err := Lookup(byte(op))
		if err != nil {
			t.Fatalf("opcode %d has no definition", op)
		}
		operands := make([]int, len(def.OperandWidths))
		for i, w := range def.OperandWidths {
			if w == 8 {
				operands[i] = 123456789
			} else {
				operands[i] = 42
			}
		}
		ins := Make(op, operands...)
		gotOperands, n := ReadOperands(def, ins[1:])
		if n != len(ins)-1 {
			t.Fatalf("%s: consumed %d bytes, instruction is %d bytes", def.Name, n, len(ins)-1)
		}
		for i := range operands {
			if gotOperands[i] != operands[i] {
				t.Fatalf("%s: operand %d round-trip mismatch: wrote %d got %d", def.Name, i, operands[i], gotOperands[i])
			}
		}
	}
}

func TestLabelBindForward(t *testing.T) {
	buf := NewBuffer()
	l := NewLabel()
	buf.AddBranch(JA, l) // forward reference, not yet bound
	buf.WriteOpcode(POP)
	buf.WriteOpcode(POP)
	buf.Bind(l)

	code := buf.Bytes()
	// ref is the byte right after the JA opcode (offset 1).
	ref := 1
	disp := ReadInt16At(code, ref)
	target := ref + int(disp)
	if target != l.target {
		t.Fatalf("resolved displacement points at %d, want %d", target, l.target)
	}
}

func TestLabelBindBackward(t *testing.T) {
	buf := NewBuffer()
	l := NewLabel()
	buf.Bind(l) // loop head at offset 0
	buf.WriteOpcode(POP)
	buf.AddBranch(JA, l) // backward reference, label already bound

	code := buf.Bytes()
	ref := 2 // POP is 1 byte, JA opcode is the next byte, displacement follows
	disp := ReadInt16At(code, ref)
	target := ref + int(disp)
	if target != 0 {
		t.Fatalf("backward branch should target offset 0, got %d", target)
	}
}

func TestLabelDoubleBindPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic binding a label twice")
		}
	}()
	buf := NewBuffer()
	l := NewLabel()
	buf.Bind(l)
	buf.Bind(l)
}

func TestCheckSealedDetectsUnbound(t *testing.T) {
	l := NewLabel()
	if err := CheckSealed([]*Label{l}); err == nil {
		t.Fatal("expected an error for an unbound label")
	}
	buf := NewBuffer()
	buf.Bind(l)
	if err := CheckSealed([]*Label{l}); err != nil {
		t.Fatalf("expected no error once bound: %v", err)
	}
}

func TestProgramRoundTrip(t *testing.T) {
	p := NewProgram()
	hello := p.AddStringConstant("hello")

	buf := NewBuffer()
	buf.WriteOpcode(SLOAD)
	buf.WriteUint16(hello)
	buf.WriteOpcode(SPRINT)
	buf.WriteOpcode(STOP)

	p.AddFunction(&Function{
		Name:       EntryFunctionName,
		ParamTypes: nil,
		ReturnType: value.Void,
		ScopeID:    0,
		NumLocals:  0,
		Code:       buf.Bytes(),
	})

	encoded := p.Encode()
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(decoded.Strings) != len(p.Strings) {
		t.Fatalf("string pool length mismatch: got %d want %d", len(decoded.Strings), len(p.Strings))
	}
	for i, s := range p.Strings {
		if decoded.Strings[i] != s {
			t.Fatalf("string %d mismatch: got %q want %q", i, decoded.Strings[i], s)
		}
	}

	f, ok := decoded.FunctionByName(EntryFunctionName)
	if !ok {
		t.Fatal("entry function missing after decode")
	}
	orig, _ := p.FunctionByName(EntryFunctionName)
	if string(f.Code) != string(orig.Code) {
		t.Fatalf("bytecode mismatch after round-trip")
	}
	if f.ReturnType != orig.ReturnType || f.ScopeID != orig.ScopeID || f.NumLocals != orig.NumLocals {
		t.Fatalf("function metadata mismatch: got %+v want %+v", f, orig)
	}
}

func TestAddStringConstantDedups(t *testing.T) {
	p := NewProgram()
	a := p.AddStringConstant("x")
	b := p.AddStringConstant("x")
	if a != b {
		t.Fatalf("expected dedup, got %d and %d", a, b)
	}
	if p.StringConstant(0) != "" {
		t.Fatalf("index 0 must be the reserved empty string")
	}
}
