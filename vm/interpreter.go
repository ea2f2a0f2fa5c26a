// Package vm executes a bytecode.Program produced by the translator:
// a stack machine with a typed operand stack and a LIFO chain of call
// frames, each resolving context-variable references against the
// nearest enclosing frame already on the stack.
package vm

import (
	"fmt"
	"io"
	"strconv"

	"github.com/mathvm/mathvm/bytecode"
	"github.com/mathvm/mathvm/value"
)

// Interpreter runs a single program to completion.
type Interpreter struct {
	prog   *bytecode.Program
	stdout io.Writer
	stack  []value.Value
	frames []*frame
}

// Execute runs program's "<top>" function to completion, writing
// print output to stdout. initialVars seeds the entry frame's slot
// array by position, letting a host (e.g. a REPL) carry variables
// across successive runs against the same program layout.
func Execute(program *bytecode.Program, stdout io.Writer, initialVars []value.Value) *RuntimeError {
	top, ok := program.FunctionByName(bytecode.EntryFunctionName)
	if !ok {
		return runtimeErrorf("program has no %s entry function", bytecode.EntryFunctionName)
	}

	entry := newFrame(top, nil)
	for i := 0; i < len(initialVars) && i < len(entry.slots); i++ {
		entry.slots[i] = initialVars[i]
	}

	it := &Interpreter{prog: program, stdout: stdout, frames: []*frame{entry}}
	return it.run()
}

func (it *Interpreter) current() *frame { return it.frames[len(it.frames)-1] }

func (it *Interpreter) push(v value.Value) { it.stack = append(it.stack, v) }

func (it *Interpreter) pop() value.Value {
	v := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]
	return v
}

// popInt2 pops the two most recent int operands, a (top) then b
// (below), matching ICMP's and the arithmetic opcodes' convention.
func (it *Interpreter) popInt2() (a, b int64) {
	a = it.pop().I
	b = it.pop().I
	return
}

func (it *Interpreter) popDbl2() (a, b float64) {
	a = it.pop().D
	b = it.pop().D
	return
}

func (it *Interpreter) run() *RuntimeError {
	for {
		f := it.current()
		code := f.fn.Code
		if f.pc >= len(code) {
			return runtimeErrorf("%s ran out of instructions without STOP or RETURN", f.fn.Name)
		}

		op := bytecode.Opcode(code[f.pc])
		if _, err := bytecode.Lookup(byte(op)); err != nil {
			return runtimeErrorf("%s", err)
		}
		f.pc++

		switch op {
		case bytecode.ILOAD:
			it.push(value.Int(bytecode.ReadInt64At(code, f.pc)))
			f.pc += 8
		case bytecode.DLOAD:
			it.push(value.Dbl(bytecode.ReadFloat64At(code, f.pc)))
			f.pc += 8
		case bytecode.SLOAD:
			it.push(value.Str(bytecode.ReadUint16At(code, f.pc)))
			f.pc += 2
		case bytecode.ILOAD0:
			it.push(value.Int(0))
		case bytecode.ILOAD1:
			it.push(value.Int(1))
		case bytecode.ILOADM1:
			it.push(value.Int(-1))
		case bytecode.DLOAD0:
			it.push(value.Dbl(0))
		case bytecode.DLOAD1:
			it.push(value.Dbl(1))
		case bytecode.DLOADM1:
			it.push(value.Dbl(-1))
		case bytecode.SLOAD0:
			it.push(value.Str(0))

		case bytecode.IADD:
			a, b := it.popInt2()
			it.push(value.Int(a + b))
		case bytecode.ISUB:
			a, b := it.popInt2()
			it.push(value.Int(a - b))
		case bytecode.IMUL:
			a, b := it.popInt2()
			it.push(value.Int(a * b))
		case bytecode.IDIV:
			a, b := it.popInt2()
			if b == 0 {
				return runtimeErrorf("integer division by zero")
			}
			it.push(value.Int(a / b))
		case bytecode.IMOD:
			a, b := it.popInt2()
			if b == 0 {
				return runtimeErrorf("integer modulo by zero")
			}
			it.push(value.Int(a % b))
		case bytecode.DADD:
			a, b := it.popDbl2()
			it.push(value.Dbl(a + b))
		case bytecode.DSUB:
			a, b := it.popDbl2()
			it.push(value.Dbl(a - b))
		case bytecode.DMUL:
			a, b := it.popDbl2()
			it.push(value.Dbl(a * b))
		case bytecode.DDIV:
			a, b := it.popDbl2()
			it.push(value.Dbl(a / b))
		case bytecode.INEG:
			a := it.pop().I
			it.push(value.Int(-a))
		case bytecode.DNEG:
			a := it.pop().D
			it.push(value.Dbl(-a))

		case bytecode.IAOR:
			a, b := it.popInt2()
			it.push(value.Int(a | b))
		case bytecode.IAAND:
			a, b := it.popInt2()
			it.push(value.Int(a & b))
		case bytecode.IAXOR:
			a, b := it.popInt2()
			it.push(value.Int(a ^ b))

		case bytecode.I2D:
			a := it.pop().I
			it.push(value.Dbl(float64(a)))
		case bytecode.D2I:
			a := it.pop().D
			it.push(value.Int(int64(a)))
		case bytecode.S2I:
			s := it.prog.StringConstant(it.pop().S)
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return runtimeErrorf("cannot parse %q as int", s)
			}
			it.push(value.Int(n))

		case bytecode.ICMP:
			a, b := it.popInt2()
			it.push(value.Int(int64(sign(a - b))))
		case bytecode.DCMP:
			a, b := it.popDbl2()
			if isNaN(a) || isNaN(b) {
				it.push(value.Int(1))
			} else {
				it.push(value.Int(int64(signFloat(a - b))))
			}

		case bytecode.SWAP:
			a := it.pop()
			b := it.pop()
			it.push(a)
			it.push(b)
		case bytecode.POP:
			it.pop()

		case bytecode.LOADIVAR0, bytecode.LOADIVAR1, bytecode.LOADIVAR2, bytecode.LOADIVAR3:
			it.push(f.slots[int(op-bytecode.LOADIVAR0)])
		case bytecode.LOADDVAR0, bytecode.LOADDVAR1, bytecode.LOADDVAR2, bytecode.LOADDVAR3:
			it.push(f.slots[int(op-bytecode.LOADDVAR0)])
		case bytecode.LOADSVAR0, bytecode.LOADSVAR1, bytecode.LOADSVAR2, bytecode.LOADSVAR3:
			it.push(f.slots[int(op-bytecode.LOADSVAR0)])
		case bytecode.STOREIVAR0, bytecode.STOREIVAR1, bytecode.STOREIVAR2, bytecode.STOREIVAR3:
			f.slots[int(op-bytecode.STOREIVAR0)] = it.pop()
		case bytecode.STOREDVAR0, bytecode.STOREDVAR1, bytecode.STOREDVAR2, bytecode.STOREDVAR3:
			f.slots[int(op-bytecode.STOREDVAR0)] = it.pop()
		case bytecode.STORESVAR0, bytecode.STORESVAR1, bytecode.STORESVAR2, bytecode.STORESVAR3:
			f.slots[int(op-bytecode.STORESVAR0)] = it.pop()

		case bytecode.LOADIVAR, bytecode.LOADDVAR, bytecode.LOADSVAR:
			slot := bytecode.ReadUint16At(code, f.pc)
			f.pc += 2
			if int(slot) >= len(f.slots) {
				return runtimeErrorf("local slot %d out of range in %s", slot, f.fn.Name)
			}
			it.push(f.slots[slot])
		case bytecode.STOREIVAR, bytecode.STOREDVAR, bytecode.STORESVAR:
			slot := bytecode.ReadUint16At(code, f.pc)
			f.pc += 2
			if int(slot) >= len(f.slots) {
				return runtimeErrorf("local slot %d out of range in %s", slot, f.fn.Name)
			}
			f.slots[slot] = it.pop()

		case bytecode.LOADCTXIVAR, bytecode.LOADCTXDVAR, bytecode.LOADCTXSVAR:
			scopeID := bytecode.ReadUint16At(code, f.pc)
			slot := bytecode.ReadUint16At(code, f.pc+2)
			f.pc += 4
			owner, ok := f.resolveContext(scopeID)
			if !ok {
				return runtimeErrorf("no active frame for scope %d", scopeID)
			}
			if int(slot) >= len(owner.slots) {
				return runtimeErrorf("context slot %d out of range for scope %d", slot, scopeID)
			}
			it.push(owner.slots[slot])
		case bytecode.STORECTXIVAR, bytecode.STORECTXDVAR, bytecode.STORECTXSVAR:
			scopeID := bytecode.ReadUint16At(code, f.pc)
			slot := bytecode.ReadUint16At(code, f.pc+2)
			f.pc += 4
			owner, ok := f.resolveContext(scopeID)
			if !ok {
				return runtimeErrorf("no active frame for scope %d", scopeID)
			}
			if int(slot) >= len(owner.slots) {
				return runtimeErrorf("context slot %d out of range for scope %d", slot, scopeID)
			}
			owner.slots[slot] = it.pop()

		case bytecode.IPRINT:
			fmt.Fprintf(it.stdout, "%d", it.pop().I)
		case bytecode.DPRINT:
			fmt.Fprintf(it.stdout, "%s", formatDouble(it.pop().D))
		case bytecode.SPRINT:
			fmt.Fprintf(it.stdout, "%s", it.prog.StringConstant(it.pop().S))

		case bytecode.JA:
			disp := bytecode.ReadInt16At(code, f.pc)
			target := f.pc + int(disp)
			f.pc += 2
			if err := it.checkBranchTarget(f, target); err != nil {
				return err
			}
			f.pc = target
		case bytecode.IFICMPE, bytecode.IFICMPNE, bytecode.IFICMPG, bytecode.IFICMPGE, bytecode.IFICMPL, bytecode.IFICMPLE:
			disp := bytecode.ReadInt16At(code, f.pc)
			ref := f.pc
			f.pc += 2
			a := it.pop().I
			b := it.pop().I
			if compareTakesBranch(op, b, a) {
				target := ref + int(disp)
				if err := it.checkBranchTarget(f, target); err != nil {
					return err
				}
				f.pc = target
			}

		case bytecode.CALL:
			id := bytecode.ReadUint16At(code, f.pc)
			f.pc += 2
			callee, ok := it.prog.FunctionByID(id)
			if !ok {
				return runtimeErrorf("call to undefined function id %d", id)
			}
			parent := findParentFrame(it.frames, callee.ParentScopeID)
			it.frames = append(it.frames, newFrame(callee, parent))
		case bytecode.RETURN:
			it.frames = it.frames[:len(it.frames)-1]
			if len(it.frames) == 0 {
				return nil
			}
		case bytecode.STOP:
			return nil

		default:
			return runtimeErrorf("unknown opcode %d", op)
		}
	}
}

func (it *Interpreter) checkBranchTarget(f *frame, target int) *RuntimeError {
	if target < 0 || target > len(f.fn.Code) {
		return runtimeErrorf("branch target %d out of range in %s", target, f.fn.Name)
	}
	return nil
}

// compareTakesBranch reports whether IFICMPxx should branch: it pops
// top=a, below=b, and takes the branch when `b xx a` holds.
func compareTakesBranch(op bytecode.Opcode, b, a int64) bool {
	switch op {
	case bytecode.IFICMPE:
		return b == a
	case bytecode.IFICMPNE:
		return b != a
	case bytecode.IFICMPG:
		return b > a
	case bytecode.IFICMPGE:
		return b >= a
	case bytecode.IFICMPL:
		return b < a
	case bytecode.IFICMPLE:
		return b <= a
	}
	return false
}

func sign(v int64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func signFloat(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func isNaN(v float64) bool { return v != v }

// formatDouble renders v with the shortest representation that
// round-trips, per the documented print contract.
func formatDouble(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
