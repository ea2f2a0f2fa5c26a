package vm

import (
	"github.com/mathvm/mathvm/bytecode"
	"github.com/mathvm/mathvm/value"
)

// frame is one call's execution record: its function, program counter,
// local slot array, and a link to the nearest enclosing frame on the
// call stack at the moment this frame was pushed.
type frame struct {
	fn     *bytecode.Function
	pc     int
	slots  []value.Value
	parent *frame
}

func newFrame(fn *bytecode.Function, parent *frame) *frame {
	return &frame{fn: fn, slots: make([]value.Value, fn.FrameSize()), parent: parent}
}

// resolveContext walks the parent-frame chain from f looking for the
// frame whose function introduced the given scope id.
func (f *frame) resolveContext(scopeID uint16) (*frame, bool) {
	for cur := f.parent; cur != nil; cur = cur.parent {
		if cur.fn.ScopeID == scopeID {
			return cur, true
		}
	}
	return nil, false
}

// findParentFrame scans the live call stack, innermost first, for the
// nearest frame whose function introduced scopeID. This reproduces
// the call-time "nearest match on the stack" convention: it is
// intentionally unsound for re-entrant or recursive enclosing calls,
// since two active invocations of the same enclosing function are
// indistinguishable by scope id alone.
func findParentFrame(stack []*frame, scopeID uint16) *frame {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].fn.ScopeID == scopeID {
			return stack[i]
		}
	}
	return nil
}
