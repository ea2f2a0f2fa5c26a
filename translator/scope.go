package translator

import "github.com/mathvm/mathvm/value"

// varSlot is a variable's position within its owning scope's slot
// array and the type it was declared with.
type varSlot struct {
	slot uint16
	kind value.Kind
}

// scope is one node of the lexical scope tree built during
// translation. Only function bodies introduce a new scope; nested
// blocks (if/while/for bodies) share their enclosing function's
// scope, since at runtime they all live in the same call frame.
type scope struct {
	id       uint16
	parent   *scope
	vars     map[string]varSlot
	funcs    map[string]uint16
	nextSlot uint16
}

func newScope(id uint16, parent *scope) *scope {
	return &scope{
		id:     id,
		parent: parent,
		vars:   make(map[string]varSlot),
		funcs:  make(map[string]uint16),
	}
}

// declareVar allocates the next slot for name, or reports false if
// name is already declared in this scope.
func (s *scope) declareVar(name string, kind value.Kind) (uint16, bool) {
	if _, exists := s.vars[name]; exists {
		return 0, false
	}
	slot := s.nextSlot
	s.vars[name] = varSlot{slot: slot, kind: kind}
	s.nextSlot++
	return slot, true
}

// declareFunc registers a function id under name, or reports false if
// name is already a function in this scope.
func (s *scope) declareFunc(name string, id uint16) bool {
	if _, exists := s.funcs[name]; exists {
		return false
	}
	s.funcs[name] = id
	return true
}

// resolveVar walks outward from s looking for name, returning the
// scope that owns the declaration.
func (s *scope) resolveVar(name string) (*scope, varSlot, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return cur, v, true
		}
	}
	return nil, varSlot{}, false
}

// resolveFunc walks outward from s looking for a function named name.
func (s *scope) resolveFunc(name string) (uint16, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if id, ok := cur.funcs[name]; ok {
			return id, true
		}
	}
	return 0, false
}
