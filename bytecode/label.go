package bytecode

import "fmt"

// Label is a forward- or backward-referenceable branch target within
// one function's bytecode. Bind records the label's resolved offset;
// AddBranch emits a branch opcode whose displacement either points
// directly at an already-bound label, or is left as a placeholder
// that Bind patches in once the label is later bound.
type Label struct {
	bound  bool
	target int
	refs   []int
}

// NewLabel returns an unbound Label.
func NewLabel() *Label { return &Label{} }

// Bound reports whether Bind has been called on l.
func (l *Label) Bound() bool { return l.bound }

// Bind records buf's current write cursor as l's resolved offset and
// patches every placeholder previously registered by AddBranch to the
// displacement `resolved - placeholder_offset`. Binding a label twice
// is a contract violation.
func (buf *Buffer) Bind(l *Label) {
	if l.bound {
		panic("bytecode: label bound twice")
	}
	l.bound = true
	l.target = buf.Len()
	for _, ref := range l.refs {
		buf.PatchInt16(ref, int16(l.target-ref))
	}
	l.refs = nil
}

// AddBranch emits op followed by a signed 16-bit displacement to l,
// relative to the displacement field's own position (i.e. the first
// byte following the opcode). If l is already
// bound the displacement is written immediately; otherwise a
// placeholder is written and patched later by Bind.
func (buf *Buffer) AddBranch(op Opcode, l *Label) {
	buf.WriteOpcode(op)
	ref := buf.Len()
	if l.bound {
		buf.WriteInt16(int16(l.target - ref))
		return
	}
	buf.WriteInt16(0)
	l.refs = append(l.refs, ref)
}

// CheckSealed returns an error if any label in labels was never
// bound — a contract violation at end-of-function.
func CheckSealed(labels []*Label) error {
	for _, l := range labels {
		if !l.bound {
			return fmt.Errorf("bytecode: label left unbound at end of function")
		}
	}
	return nil
}
