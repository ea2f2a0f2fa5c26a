package bytecode

import (
	"encoding/binary"
	"math"
)

// Buffer is an append-only byte sequence with a monotonically
// increasing write cursor, used by the translator to assemble one
// function's instructions.
type Buffer struct {
	code []byte
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Len returns the current write-cursor position.
func (b *Buffer) Len() int { return len(b.code) }

// Bytes returns the buffer's contents. The returned slice aliases the
// buffer's storage and must not be retained across further writes.
func (b *Buffer) Bytes() []byte { return b.code }

// WriteOpcode appends a single opcode byte and returns the offset it
// was written at.
func (b *Buffer) WriteOpcode(op Opcode) int {
	pos := len(b.code)
	b.code = append(b.code, byte(op))
	return pos
}

// WriteInt64 appends v as a little-endian 8-byte integer.
func (b *Buffer) WriteInt64(v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	b.code = append(b.code, buf[:]...)
}

// WriteFloat64 appends v as a little-endian IEEE-754 binary64.
func (b *Buffer) WriteFloat64(v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	b.code = append(b.code, buf[:]...)
}

// WriteUint16 appends v as a little-endian 2-byte unsigned integer
// and returns the offset it was written at (used by label patching).
func (b *Buffer) WriteUint16(v uint16) int {
	pos := len(b.code)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	b.code = append(b.code, buf[:]...)
	return pos
}

// WriteInt16 appends v as a little-endian signed 2-byte integer.
func (b *Buffer) WriteInt16(v int16) int {
	return b.WriteUint16(uint16(v))
}

// PatchInt16 overwrites the 2-byte field at offset with v. Used to
// resolve a branch displacement once its target label is bound.
func (b *Buffer) PatchInt16(offset int, v int16) {
	binary.LittleEndian.PutUint16(b.code[offset:offset+2], uint16(v))
}

// ReadInt64At reads a little-endian 8-byte integer at offset.
func ReadInt64At(code []byte, offset int) int64 {
	return int64(binary.LittleEndian.Uint64(code[offset:]))
}

// ReadFloat64At reads a little-endian IEEE-754 binary64 at offset.
func ReadFloat64At(code []byte, offset int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(code[offset:]))
}

// ReadUint16At reads a little-endian 2-byte unsigned integer at
// offset.
func ReadUint16At(code []byte, offset int) uint16 {
	return binary.LittleEndian.Uint16(code[offset:])
}

// ReadInt16At reads a little-endian 2-byte signed integer at offset.
func ReadInt16At(code []byte, offset int) int16 {
	return int16(binary.LittleEndian.Uint16(code[offset:]))
}
