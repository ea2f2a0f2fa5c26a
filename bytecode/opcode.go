// Package bytecode implements MathVM's instruction set, its binary
// encoding, the per-function bytecode buffer with label-based branch
// patching, and the program-level function table and string pool.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Opcode identifies a single bytecode instruction.
type Opcode byte

//nolint:revive
const (
	ILOAD Opcode = iota
	DLOAD
	SLOAD
	ILOAD0
	ILOAD1
	ILOADM1
	DLOAD0
	DLOAD1
	DLOADM1
	SLOAD0

	IADD
	ISUB
	IMUL
	IDIV
	IMOD
	DADD
	DSUB
	DMUL
	DDIV
	INEG
	DNEG

	IAOR
	IAAND
	IAXOR

	I2D
	D2I
	S2I

	ICMP
	DCMP

	SWAP
	POP

	LOADIVAR0
	LOADIVAR1
	LOADIVAR2
	LOADIVAR3
	LOADDVAR0
	LOADDVAR1
	LOADDVAR2
	LOADDVAR3
	LOADSVAR0
	LOADSVAR1
	LOADSVAR2
	LOADSVAR3
	STOREIVAR0
	STOREIVAR1
	STOREIVAR2
	STOREIVAR3
	STOREDVAR0
	STOREDVAR1
	STOREDVAR2
	STOREDVAR3
	STORESVAR0
	STORESVAR1
	STORESVAR2
	STORESVAR3

	LOADIVAR
	LOADDVAR
	LOADSVAR
	STOREIVAR
	STOREDVAR
	STORESVAR

	LOADCTXIVAR
	LOADCTXDVAR
	LOADCTXSVAR
	STORECTXIVAR
	STORECTXDVAR
	STORECTXSVAR

	IPRINT
	DPRINT
	SPRINT

	JA
	IFICMPE
	IFICMPNE
	IFICMPG
	IFICMPGE
	IFICMPL
	IFICMPLE
	CALL
	RETURN
	STOP
)

// Definition describes one opcode's mnemonic and the byte width of
// each of its immediate operands, in encoding order.
type Definition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*Definition{
	ILOAD:   {"ILOAD", []int{8}},
	DLOAD:   {"DLOAD", []int{8}},
	SLOAD:   {"SLOAD", []int{2}},
	ILOAD0:  {"ILOAD0", nil},
	ILOAD1:  {"ILOAD1", nil},
	ILOADM1: {"ILOADM1", nil},
	DLOAD0:  {"DLOAD0", nil},
	DLOAD1:  {"DLOAD1", nil},
	DLOADM1: {"DLOADM1", nil},
	SLOAD0:  {"SLOAD0", nil},

	IADD: {"IADD", nil},
	ISUB: {"ISUB", nil},
	IMUL: {"IMUL", nil},
	IDIV: {"IDIV", nil},
	IMOD: {"IMOD", nil},
	DADD: {"DADD", nil},
	DSUB: {"DSUB", nil},
	DMUL: {"DMUL", nil},
	DDIV: {"DDIV", nil},
	INEG: {"INEG", nil},
	DNEG: {"DNEG", nil},

	IAOR:  {"IAOR", nil},
	IAAND: {"IAAND", nil},
	IAXOR: {"IAXOR", nil},

	I2D: {"I2D", nil},
	D2I: {"D2I", nil},
	S2I: {"S2I", nil},

	ICMP: {"ICMP", nil},
	DCMP: {"DCMP", nil},

	SWAP: {"SWAP", nil},
	POP:  {"POP", nil},

	LOADIVAR0:  {"LOADIVAR0", nil},
	LOADIVAR1:  {"LOADIVAR1", nil},
	LOADIVAR2:  {"LOADIVAR2", nil},
	LOADIVAR3:  {"LOADIVAR3", nil},
	LOADDVAR0:  {"LOADDVAR0", nil},
	LOADDVAR1:  {"LOADDVAR1", nil},
	LOADDVAR2:  {"LOADDVAR2", nil},
	LOADDVAR3:  {"LOADDVAR3", nil},
	LOADSVAR0:  {"LOADSVAR0", nil},
	LOADSVAR1:  {"LOADSVAR1", nil},
	LOADSVAR2:  {"LOADSVAR2", nil},
	LOADSVAR3:  {"LOADSVAR3", nil},
	STOREIVAR0: {"STOREIVAR0", nil},
	STOREIVAR1: {"STOREIVAR1", nil},
	STOREIVAR2: {"STOREIVAR2", nil},
	STOREIVAR3: {"STOREIVAR3", nil},
	STOREDVAR0: {"STOREDVAR0", nil},
	STOREDVAR1: {"STOREDVAR1", nil},
	STOREDVAR2: {"STOREDVAR2", nil},
	STOREDVAR3: {"STOREDVAR3", nil},
	STORESVAR0: {"STORESVAR0", nil},
	STORESVAR1: {"STORESVAR1", nil},
	STORESVAR2: {"STORESVAR2", nil},
	STORESVAR3: {"STORESVAR3", nil},

	LOADIVAR:  {"LOADIVAR", []int{2}},
	LOADDVAR:  {"LOADDVAR", []int{2}},
	LOADSVAR:  {"LOADSVAR", []int{2}},
	STOREIVAR: {"STOREIVAR", []int{2}},
	STOREDVAR: {"STOREDVAR", []int{2}},
	STORESVAR: {"STORESVAR", []int{2}},

	LOADCTXIVAR:  {"LOADCTXIVAR", []int{2, 2}},
	LOADCTXDVAR:  {"LOADCTXDVAR", []int{2, 2}},
	LOADCTXSVAR:  {"LOADCTXSVAR", []int{2, 2}},
	STORECTXIVAR: {"STORECTXIVAR", []int{2, 2}},
	STORECTXDVAR: {"STORECTXDVAR", []int{2, 2}},
	STORECTXSVAR: {"STORECTXSVAR", []int{2, 2}},

	IPRINT: {"IPRINT", nil},
	DPRINT: {"DPRINT", nil},
	SPRINT: {"SPRINT", nil},

	JA:       {"JA", []int{2}},
	IFICMPE:  {"IFICMPE", []int{2}},
	IFICMPNE: {"IFICMPNE", []int{2}},
	IFICMPG:  {"IFICMPG", []int{2}},
	IFICMPGE: {"IFICMPGE", []int{2}},
	IFICMPL:  {"IFICMPL", []int{2}},
	IFICMPLE: {"IFICMPLE", []int{2}},
	CALL:     {"CALL", []int{2}},
	RETURN:   {"RETURN", nil},
	STOP:     {"STOP", nil},
}

// Lookup returns the Definition for op, or an error if op is unknown.
func Lookup(op byte) (*Definition, error) {
	def, ok := definitions[Opcode(op)]
	if !ok {
		return nil, fmt.Errorf("bytecode: opcode %d undefined", op)
	}
	return def, nil
}

// Make encodes op and its operands into a standalone byte slice,
// mainly useful for tests; the translator itself writes directly
// through a Buffer.
func Make(op Opcode, operands ...int) []byte {
	def, ok := definitions[op]
	if !ok {
		return []byte{}
	}

	length := 1
	for _, w := range def.OperandWidths {
		length += w
	}

	instruction := make([]byte, length)
	instruction[0] = byte(op)

	offset := 1
	for i, o := range operands {
		width := def.OperandWidths[i]
		switch width {
		case 2:
			binary.LittleEndian.PutUint16(instruction[offset:], uint16(o))
		case 8:
			binary.LittleEndian.PutUint64(instruction[offset:], uint64(o))
		}
		offset += width
	}
	return instruction
}

// String returns op's mnemonic, or "OP(n)" for an undefined opcode.
// It does not render operands; Disassemble does that.
func (op Opcode) String() string {
	if def, ok := definitions[op]; ok {
		return def.Name
	}
	return fmt.Sprintf("OP(%d)", byte(op))
}

// Disassemble renders ins as a sequence of "OFFSET MNEMONIC operands"
// lines.
func Disassemble(ins []byte) string {
	var out strings.Builder
	i := 0
	for i < len(ins) {
		def, err := Lookup(ins[i])
		if err != nil {
			fmt.Fprintf(&out, "%04d ERROR: %s\n", i, err)
			i++
			continue
		}
		operands, read := ReadOperands(def, ins[i+1:])
		fmt.Fprintf(&out, "%04d %s", i, def.Name)
		for _, o := range operands {
			fmt.Fprintf(&out, " %d", o)
		}
		out.WriteByte('\n')
		i += 1 + read
	}
	return out.String()
}

// ReadOperands decodes the operands described by def from ins and
// returns them along with the number of bytes consumed.
func ReadOperands(def *Definition, ins []byte) ([]int, int) {
	operands := make([]int, len(def.OperandWidths))
	offset := 0
	for i, width := range def.OperandWidths {
		switch width {
		case 2:
			operands[i] = int(ReadUint16(ins[offset:]))
		case 8:
			operands[i] = int(ReadInt64(ins[offset:]))
		}
		offset += width
	}
	return operands, offset
}

func ReadUint16(ins []byte) uint16 { return binary.LittleEndian.Uint16(ins) }
func ReadInt64(ins []byte) int64   { return int64(binary.LittleEndian.Uint64(ins)) }
