package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mathvm/mathvm/value"
)

// magic identifies a persisted MathVM bytecode file.
const magic = "MVM1"

// EntryFunctionName is the name of the program's entry function, the
// lowering of the surface program's top-level statements.
const EntryFunctionName = "<top>"

// Function is one compiled function: its signature, the scope id
// introduced by its body, its local-slot count, and its finalized
// bytecode.
type Function struct {
	ID         uint16
	Name       string
	ParamTypes []value.Kind
	ReturnType value.Kind
	ScopeID    uint16
	// ParentScopeID is the scope id that lexically encloses this
	// function's declaration. A call frame's parent-frame pointer is
	// resolved against it: the nearest frame on the call stack whose
	// function's ScopeID equals ParentScopeID at the moment of the call.
	// Meaningless for the entry function, which is never called.
	ParentScopeID uint16
	// NumLocals counts only the non-parameter locals; a runtime frame's
	// slot array is sized len(ParamTypes)+NumLocals, with parameters
	// occupying slots [0, len(ParamTypes)).
	NumLocals uint16
	Code      []byte
}

// NumParams is the number of formal parameters.
func (f *Function) NumParams() int { return len(f.ParamTypes) }

// FrameSize is the number of slots a call frame for f needs.
func (f *Function) FrameSize() int { return len(f.ParamTypes) + int(f.NumLocals) }

// Program is the translator's output: the function table and string
// pool shared read-only by every interpreter run.
type Program struct {
	Functions   []*Function
	byName      map[string]uint16
	Strings     []string
	stringIndex map[string]uint16
}

// NewProgram returns an empty Program whose string pool already
// contains the reserved empty string at index 0.
func NewProgram() *Program {
	return &Program{
		byName:      make(map[string]uint16),
		Strings:     []string{""},
		stringIndex: map[string]uint16{"": 0},
	}
}

// AddFunction appends f to the function table, assigning it the next
// id, interns its name in the string pool (the persisted layout refers
// to function names by pool index), and returns that id.
func (p *Program) AddFunction(f *Function) uint16 {
	p.AddStringConstant(f.Name)
	f.ID = uint16(len(p.Functions))
	p.Functions = append(p.Functions, f)
	p.byName[f.Name] = f.ID
	return f.ID
}

// FunctionByID returns the function with the given id.
func (p *Program) FunctionByID(id uint16) (*Function, bool) {
	if int(id) >= len(p.Functions) {
		return nil, false
	}
	return p.Functions[id], true
}

// FunctionByName returns the function with the given name.
func (p *Program) FunctionByName(name string) (*Function, bool) {
	id, ok := p.byName[name]
	if !ok {
		return nil, false
	}
	return p.Functions[id], true
}

// StringConstant returns the string stored at id in the pool.
func (p *Program) StringConstant(id uint16) string {
	return p.Strings[id]
}

// AddStringConstant interns s in the pool, returning its existing
// index if already present or inserting it at the next index.
func (p *Program) AddStringConstant(s string) uint16 {
	if id, ok := p.stringIndex[s]; ok {
		return id
	}
	id := uint16(len(p.Strings))
	p.Strings = append(p.Strings, s)
	p.stringIndex[s] = id
	return id
}

// Encode serializes p into the persisted bytecode file layout: a
// 4-byte magic, the string pool, and the function table.
func (p *Program) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)

	writeU16 := func(v uint16) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	writeU32 := func(v uint32) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	writeU16(uint16(len(p.Strings)))
	for _, s := range p.Strings {
		writeU16(uint16(len(s)))
		buf.WriteString(s)
	}

	writeU16(uint16(len(p.Functions)))
	for _, f := range p.Functions {
		nameID := p.stringIndex[f.Name]
		writeU16(nameID)
		buf.WriteByte(byte(f.ReturnType))
		buf.WriteByte(byte(len(f.ParamTypes)))
		for _, pt := range f.ParamTypes {
			buf.WriteByte(byte(pt))
		}
		writeU16(f.ScopeID)
		writeU16(f.ParentScopeID)
		writeU16(f.NumLocals)
		writeU32(uint32(len(f.Code)))
		buf.Write(f.Code)
	}
	return buf.Bytes()
}

// Decode parses the persisted bytecode file layout written by
// Encode, reconstructing a Program with byte-identical function
// bytecode, string pool, and function metadata.
func Decode(data []byte) (*Program, error) {
	if len(data) < 4 || string(data[:4]) != magic {
		return nil, fmt.Errorf("bytecode: missing %q magic", magic)
	}
	r := bytes.NewReader(data[4:])

	readU16 := func() (uint16, error) {
		var v uint16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	}
	readU32 := func() (uint32, error) {
		var v uint32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	}

	p := &Program{byName: make(map[string]uint16), stringIndex: make(map[string]uint16)}

	strCount, err := readU16()
	if err != nil {
		return nil, fmt.Errorf("bytecode: reading string pool count: %w", err)
	}
	p.Strings = make([]string, 0, strCount)
	for i := 0; i < int(strCount); i++ {
		l, err := readU16()
		if err != nil {
			return nil, fmt.Errorf("bytecode: reading string %d length: %w", i, err)
		}
		b := make([]byte, l)
		if _, err := r.Read(b); err != nil {
			return nil, fmt.Errorf("bytecode: reading string %d bytes: %w", i, err)
		}
		s := string(b)
		p.stringIndex[s] = uint16(i)
		p.Strings = append(p.Strings, s)
	}

	fnCount, err := readU16()
	if err != nil {
		return nil, fmt.Errorf("bytecode: reading function table count: %w", err)
	}
	for i := 0; i < int(fnCount); i++ {
		nameID, err := readU16()
		if err != nil {
			return nil, fmt.Errorf("bytecode: reading function %d name index: %w", i, err)
		}
		retType, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("bytecode: reading function %d return type: %w", i, err)
		}
		paramCount, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("bytecode: reading function %d param count: %w", i, err)
		}
		params := make([]value.Kind, paramCount)
		for j := range params {
			b, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("bytecode: reading function %d param %d type: %w", i, j, err)
			}
			params[j] = value.Kind(b)
		}
		scopeID, err := readU16()
		if err != nil {
			return nil, fmt.Errorf("bytecode: reading function %d scope id: %w", i, err)
		}
		parentScopeID, err := readU16()
		if err != nil {
			return nil, fmt.Errorf("bytecode: reading function %d parent scope id: %w", i, err)
		}
		locals, err := readU16()
		if err != nil {
			return nil, fmt.Errorf("bytecode: reading function %d locals count: %w", i, err)
		}
		codeLen, err := readU32()
		if err != nil {
			return nil, fmt.Errorf("bytecode: reading function %d code length: %w", i, err)
		}
		code := make([]byte, codeLen)
		if _, err := r.Read(code); err != nil {
			return nil, fmt.Errorf("bytecode: reading function %d code: %w", i, err)
		}

		f := &Function{
			ID:         uint16(i),
			Name:       p.Strings[nameID],
			ParamTypes: params,
			ReturnType: value.Kind(retType),
			ScopeID:       scopeID,
			ParentScopeID: parentScopeID,
			NumLocals:     locals,
			Code:          code,
		}
		p.Functions = append(p.Functions, f)
		p.byName[f.Name] = f.ID
	}
	return p, nil
}
