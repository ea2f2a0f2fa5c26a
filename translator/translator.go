// Package translator lowers a parsed MathVM abstract syntax tree into
// a bytecode.Program: it resolves every variable and function
// reference against a lexical scope tree, tracks the compile-time
// top-of-stack type to select typed opcodes, and inserts the
// coercions the instruction set requires.
package translator

import (
	"fmt"

	"github.com/mathvm/mathvm/ast"
	"github.com/mathvm/mathvm/bytecode"
	"github.com/mathvm/mathvm/lexer"
	"github.com/mathvm/mathvm/parser"
	"github.com/mathvm/mathvm/token"
	"github.com/mathvm/mathvm/value"
)

// Position is a source location, carried by every CompileError.
type Position struct {
	Line int
	Col  int
}

// CompileError describes the first error encountered while
// translating a program. The translator records only the first one
// and stops translating; Translate returns the partially built program
// alongside it.
type CompileError struct {
	Msg string
	Pos Position
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Col, e.Msg)
}

const maxID = 0xFFFF

// negatedIntComparison maps a surface comparison operator to the
// IFICMPxx opcode that branches when the comparison is FALSE, letting
// if/while conditions that are themselves direct int comparisons skip
// materializing a boolean value.
var negatedIntComparison = map[string]bytecode.Opcode{
	"<":  bytecode.IFICMPLE,
	"<=": bytecode.IFICMPL,
	">":  bytecode.IFICMPGE,
	">=": bytecode.IFICMPG,
	"==": bytecode.IFICMPNE,
	"!=": bytecode.IFICMPE,
}

// funcContext is the compile-time state for one function currently
// being translated.
type funcContext struct {
	fn         *bytecode.Function
	scope      *scope
	buf        *bytecode.Buffer
	tos        value.Kind
	returnType value.Kind
	labels     []*bytecode.Label
}

func (ctx *funcContext) newLabel() *bytecode.Label {
	l := bytecode.NewLabel()
	ctx.labels = append(ctx.labels, l)
	return l
}

// declaredFunc remembers where a nested function declaration was
// found, so its body can be translated in the declaring scope's
// context once the enclosing block's two-pass declaration is done.
type declaredFunc struct {
	decl   *ast.FunctionDecl
	fn     *bytecode.Function
	parent *scope
}

// Translator drives AST-to-bytecode lowering for a single program.
type Translator struct {
	prog        *bytecode.Program
	nextScopeID uint16
	pending     map[*ast.FunctionDecl]*declaredFunc
	err         *CompileError
}

// Translate parses and lowers source into a Program. On a compile
// error it returns the first error encountered together with the
// partial program (nil if parsing failed).
func Translate(source string) (*bytecode.Program, *CompileError) {
	l := lexer.New(source)
	p := parser.New(l)
	astProgram := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, &CompileError{Msg: errs[0]}
	}

	t := &Translator{
		prog:    bytecode.NewProgram(),
		pending: make(map[*ast.FunctionDecl]*declaredFunc),
	}
	t.run(astProgram)
	if t.err != nil {
		return t.prog, t.err
	}
	return t.prog, nil
}

func (t *Translator) fail(tok token.Token, format string, args ...any) {
	if t.err != nil {
		return
	}
	t.err = &CompileError{
		Msg: fmt.Sprintf(format, args...),
		Pos: Position{Line: tok.Line, Col: tok.Col},
	}
}

func typeKind(tn ast.TypeName) value.Kind {
	switch tn {
	case ast.IntType:
		return value.Int64
	case ast.DoubleType:
		return value.Double
	case ast.StringType:
		return value.StringID
	default:
		return value.Void
	}
}

// run translates the top-level program into the "<top>" entry
// function, which always ends with STOP regardless of its last
// statement.
func (t *Translator) run(program *ast.Program) {
	root := newScope(0, nil)
	t.nextScopeID = 1

	top := &bytecode.Function{Name: bytecode.EntryFunctionName, ReturnType: value.Void, ScopeID: 0}
	t.prog.AddFunction(top)

	ctx := &funcContext{fn: top, scope: root, buf: bytecode.NewBuffer(), returnType: value.Void}
	t.compileBlock(ctx, program.Statements)
	if t.err != nil {
		return
	}

	ctx.buf.WriteOpcode(bytecode.STOP)
	if err := bytecode.CheckSealed(ctx.labels); err != nil {
		t.fail(program.Pos(), "%s", err)
		return
	}
	top.Code = ctx.buf.Bytes()
	top.NumLocals = root.nextSlot
}

// compileBlock implements the two-pass-then-nested-functions block
// translation: declare every variable and function first (so forward
// references resolve), emit the block's own statements in order, then
// translate each nested function's body.
func (t *Translator) compileBlock(ctx *funcContext, stmts []ast.Statement) {
	var nested []*ast.FunctionDecl

	for _, s := range stmts {
		switch n := s.(type) {
		case *ast.VarDecl:
			if ctx.scope.nextSlot >= maxID {
				t.fail(n.Pos(), "too many variables in scope")
				return
			}
			kind := typeKind(n.Type)
			if _, ok := ctx.scope.declareVar(n.Name.Value, kind); !ok {
				t.fail(n.Pos(), "duplicate variable %q", n.Name.Value)
				return
			}
		case *ast.FunctionDecl:
			if !t.declareFunction(ctx, n) {
				return
			}
			nested = append(nested, n)
		}
	}

	for _, s := range stmts {
		if _, ok := s.(*ast.FunctionDecl); ok {
			continue
		}
		t.compileStmt(ctx, s)
		if t.err != nil {
			return
		}
	}

	for _, fd := range nested {
		t.compileFunctionDecl(fd)
		if t.err != nil {
			return
		}
	}
}

func (t *Translator) declareFunction(ctx *funcContext, fd *ast.FunctionDecl) bool {
	if t.nextScopeID >= maxID {
		t.fail(fd.Pos(), "too many scopes")
		return false
	}
	paramTypes := make([]value.Kind, len(fd.Params))
	for i, p := range fd.Params {
		paramTypes[i] = typeKind(p.Type)
	}
	fn := &bytecode.Function{
		Name:          fd.Name,
		ParamTypes:    paramTypes,
		ReturnType:    typeKind(fd.ReturnType),
		ScopeID:       t.nextScopeID,
		ParentScopeID: ctx.scope.id,
	}
	t.nextScopeID++

	id := t.prog.AddFunction(fn)
	if !ctx.scope.declareFunc(fd.Name, id) {
		t.fail(fd.Pos(), "duplicate function %q in this scope", fd.Name)
		return false
	}
	t.pending[fd] = &declaredFunc{decl: fd, fn: fn, parent: ctx.scope}
	return true
}

func (t *Translator) compileFunctionDecl(fd *ast.FunctionDecl) {
	pf := t.pending[fd]
	fnScope := newScope(pf.fn.ScopeID, pf.parent)

	for i, p := range fd.Params {
		fnScope.declareVar(p.Name, typeKind(p.Type))
		_ = i
	}

	newCtx := &funcContext{fn: pf.fn, scope: fnScope, buf: bytecode.NewBuffer(), returnType: pf.fn.ReturnType}

	// Prologue: drain the call's argument values, pushed so that
	// parameter 0 is on top, into their slots in declaration order.
	for i, p := range fd.Params {
		emitLocalStore(newCtx.buf, typeKind(p.Type), uint16(i))
	}

	t.compileBlock(newCtx, fd.Body.Statements)
	if t.err != nil {
		return
	}

	if !lastStatementIsReturn(fd.Body.Statements) {
		t.emitImplicitReturn(newCtx, fd.Pos())
		if t.err != nil {
			return
		}
	}

	if err := bytecode.CheckSealed(newCtx.labels); err != nil {
		t.fail(fd.Pos(), "%s", err)
		return
	}

	pf.fn.Code = newCtx.buf.Bytes()
	pf.fn.NumLocals = fnScope.nextSlot - uint16(len(pf.fn.ParamTypes))
}

func (t *Translator) emitImplicitReturn(ctx *funcContext, tok token.Token) {
	if ctx.returnType != value.Void {
		t.fail(tok, "function must return a value of type %s on every path", ctx.returnType)
		return
	}
	ctx.buf.WriteOpcode(bytecode.RETURN)
}

func lastStatementIsReturn(stmts []ast.Statement) bool {
	for i := len(stmts) - 1; i >= 0; i-- {
		if _, ok := stmts[i].(*ast.FunctionDecl); ok {
			continue
		}
		_, ok := stmts[i].(*ast.ReturnStmt)
		return ok
	}
	return false
}
