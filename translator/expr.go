package translator

import (
	"github.com/mathvm/mathvm/ast"
	"github.com/mathvm/mathvm/bytecode"
	"github.com/mathvm/mathvm/token"
	"github.com/mathvm/mathvm/value"
)

func emitLocalLoad(buf *bytecode.Buffer, kind value.Kind, slot uint16) {
	switch kind {
	case value.Int64:
		buf.WriteOpcode(bytecode.LOADIVAR)
	case value.Double:
		buf.WriteOpcode(bytecode.LOADDVAR)
	case value.StringID:
		buf.WriteOpcode(bytecode.LOADSVAR)
	}
	buf.WriteUint16(slot)
}

func emitLocalStore(buf *bytecode.Buffer, kind value.Kind, slot uint16) {
	switch kind {
	case value.Int64:
		buf.WriteOpcode(bytecode.STOREIVAR)
	case value.Double:
		buf.WriteOpcode(bytecode.STOREDVAR)
	case value.StringID:
		buf.WriteOpcode(bytecode.STORESVAR)
	}
	buf.WriteUint16(slot)
}

func emitCtxLoad(buf *bytecode.Buffer, kind value.Kind, ownerScope, slot uint16) {
	switch kind {
	case value.Int64:
		buf.WriteOpcode(bytecode.LOADCTXIVAR)
	case value.Double:
		buf.WriteOpcode(bytecode.LOADCTXDVAR)
	case value.StringID:
		buf.WriteOpcode(bytecode.LOADCTXSVAR)
	}
	buf.WriteUint16(ownerScope)
	buf.WriteUint16(slot)
}

func emitCtxStore(buf *bytecode.Buffer, kind value.Kind, ownerScope, slot uint16) {
	switch kind {
	case value.Int64:
		buf.WriteOpcode(bytecode.STORECTXIVAR)
	case value.Double:
		buf.WriteOpcode(bytecode.STORECTXDVAR)
	case value.StringID:
		buf.WriteOpcode(bytecode.STORECTXSVAR)
	}
	buf.WriteUint16(ownerScope)
	buf.WriteUint16(slot)
}

// emitLoad resolves name in ctx's scope and emits the local or
// context-qualified load, updating ctx.tos.
func (t *Translator) emitLoad(ctx *funcContext, name string, pos token.Token) {
	owner, v, ok := ctx.scope.resolveVar(name)
	if !ok {
		t.fail(pos, "undefined variable %q", name)
		return
	}
	if owner.id == ctx.fn.ScopeID {
		emitLocalLoad(ctx.buf, v.kind, v.slot)
	} else {
		emitCtxLoad(ctx.buf, v.kind, owner.id, v.slot)
	}
	ctx.tos = v.kind
}

// emitStore resolves name and emits the matching store, popping the
// current TOS. The caller is responsible for having coerced TOS to
// the variable's declared kind first.
func (t *Translator) emitStore(ctx *funcContext, name string, pos token.Token) {
	owner, v, ok := ctx.scope.resolveVar(name)
	if !ok {
		t.fail(pos, "undefined variable %q", name)
		return
	}
	if owner.id == ctx.fn.ScopeID {
		emitLocalStore(ctx.buf, v.kind, v.slot)
	} else {
		emitCtxStore(ctx.buf, v.kind, owner.id, v.slot)
	}
}

// coerceTOS inserts an I2D if ctx.tos is Int64 and want is Double.
// Any other mismatch is a compile error.
func (t *Translator) coerceTOS(ctx *funcContext, want value.Kind, pos token.Token) {
	if ctx.tos == want {
		return
	}
	if ctx.tos == value.Int64 && want == value.Double {
		ctx.buf.WriteOpcode(bytecode.I2D)
		ctx.tos = value.Double
		return
	}
	t.fail(pos, "cannot use %s where %s is expected", ctx.tos, want)
}

// inferType statically determines an expression's result kind without
// emitting anything, used to decide whether an if/while condition can
// use the direct IFICMPxx fast path.
func (t *Translator) inferType(ctx *funcContext, expr ast.Expression) value.Kind {
	switch n := expr.(type) {
	case *ast.IntLiteral:
		return value.Int64
	case *ast.BoolLiteral:
		return value.Int64
	case *ast.DoubleLiteral:
		return value.Double
	case *ast.StringLiteral:
		return value.StringID
	case *ast.Identifier:
		_, v, ok := ctx.scope.resolveVar(n.Value)
		if !ok {
			return value.Void
		}
		return v.kind
	case *ast.UnaryExpr:
		return t.inferType(ctx, n.Right)
	case *ast.BinaryExpr:
		switch n.Operator {
		case "==", "!=", "<", "<=", ">", ">=":
			return value.Int64
		default:
			l := t.inferType(ctx, n.Left)
			r := t.inferType(ctx, n.Right)
			if l == value.Double || r == value.Double {
				return value.Double
			}
			return value.Int64
		}
	case *ast.CallExpr:
		if id, ok := ctx.scope.resolveFunc(n.Function); ok {
			if fn, ok := t.prog.FunctionByID(id); ok {
				return fn.ReturnType
			}
		}
		return value.Void
	default:
		return value.Void
	}
}

func (t *Translator) compileExpr(ctx *funcContext, expr ast.Expression) {
	switch n := expr.(type) {
	case *ast.IntLiteral:
		ctx.buf.WriteOpcode(bytecode.ILOAD)
		ctx.buf.WriteInt64(n.Value)
		ctx.tos = value.Int64
	case *ast.BoolLiteral:
		if n.Value {
			ctx.buf.WriteOpcode(bytecode.ILOAD1)
		} else {
			ctx.buf.WriteOpcode(bytecode.ILOAD0)
		}
		ctx.tos = value.Int64
	case *ast.DoubleLiteral:
		ctx.buf.WriteOpcode(bytecode.DLOAD)
		ctx.buf.WriteFloat64(n.Value)
		ctx.tos = value.Double
	case *ast.StringLiteral:
		id := t.internString(n.Value, n.Pos())
		ctx.buf.WriteOpcode(bytecode.SLOAD)
		ctx.buf.WriteUint16(id)
		ctx.tos = value.StringID
	case *ast.Identifier:
		t.emitLoad(ctx, n.Value, n.Pos())
	case *ast.UnaryExpr:
		t.compileUnary(ctx, n)
	case *ast.BinaryExpr:
		t.compileBinary(ctx, n)
	case *ast.CallExpr:
		t.compileCall(ctx, n)
	default:
		t.fail(expr.Pos(), "unsupported expression")
	}
}

func (t *Translator) internString(s string, pos token.Token) uint16 {
	if len(t.prog.Strings) >= maxID {
		t.fail(pos, "too many string constants")
		return 0
	}
	return t.prog.AddStringConstant(s)
}

func (t *Translator) compileUnary(ctx *funcContext, n *ast.UnaryExpr) {
	switch n.Operator {
	case "-":
		t.compileExpr(ctx, n.Right)
		if t.err != nil {
			return
		}
		switch ctx.tos {
		case value.Int64:
			ctx.buf.WriteOpcode(bytecode.INEG)
		case value.Double:
			ctx.buf.WriteOpcode(bytecode.DNEG)
		default:
			t.fail(n.Pos(), "unary - requires a numeric operand, got %s", ctx.tos)
		}
	case "!":
		t.compileExpr(ctx, n.Right)
		if t.err != nil {
			return
		}
		if ctx.tos != value.Int64 {
			t.fail(n.Pos(), "unary ! requires an int operand, got %s", ctx.tos)
			return
		}
		t.emitNeg(ctx)
	default:
		t.fail(n.Pos(), "unsupported unary operator %q", n.Operator)
	}
}

var intOnlyBinary = map[string]bool{
	"%": true, "&": true, "|": true, "^": true, "&&": true, "||": true,
}

var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// compileBinary evaluates the right operand then the left, so the
// left operand ends on top of the stack, then dispatches by operator
// group.
func (t *Translator) compileBinary(ctx *funcContext, n *ast.BinaryExpr) {
	if comparisonOps[n.Operator] {
		t.compileComparison(ctx, n)
		return
	}

	if intOnlyBinary[n.Operator] {
		t.compileExpr(ctx, n.Right)
		if t.err != nil {
			return
		}
		if ctx.tos != value.Int64 {
			t.fail(n.Pos(), "operator %q requires int operands, got %s", n.Operator, ctx.tos)
			return
		}
		t.compileExpr(ctx, n.Left)
		if t.err != nil {
			return
		}
		if ctx.tos != value.Int64 {
			t.fail(n.Pos(), "operator %q requires int operands, got %s", n.Operator, ctx.tos)
			return
		}
		switch n.Operator {
		case "%":
			ctx.buf.WriteOpcode(bytecode.IMOD)
		case "&", "&&":
			ctx.buf.WriteOpcode(bytecode.IAAND)
		case "|", "||":
			ctx.buf.WriteOpcode(bytecode.IAOR)
		case "^":
			ctx.buf.WriteOpcode(bytecode.IAXOR)
		}
		ctx.tos = value.Int64
		return
	}

	// +, -, *, /: numeric, common-type promoted.
	rightKind := t.inferType(ctx, n.Right)
	leftKind := t.inferType(ctx, n.Left)
	if rightKind != value.Int64 && rightKind != value.Double {
		t.fail(n.Pos(), "operator %q requires numeric operands, got %s", n.Operator, rightKind)
		return
	}
	if leftKind != value.Int64 && leftKind != value.Double {
		t.fail(n.Pos(), "operator %q requires numeric operands, got %s", n.Operator, leftKind)
		return
	}
	common := value.Common(leftKind, rightKind)

	t.compileExpr(ctx, n.Right)
	if t.err != nil {
		return
	}
	t.coerceRightThenLeft(ctx, n.Left, common)
	if t.err != nil {
		return
	}

	switch n.Operator {
	case "+":
		ctx.buf.WriteOpcode(opFor(common, bytecode.IADD, bytecode.DADD))
	case "-":
		ctx.buf.WriteOpcode(opFor(common, bytecode.ISUB, bytecode.DSUB))
	case "*":
		ctx.buf.WriteOpcode(opFor(common, bytecode.IMUL, bytecode.DMUL))
	case "/":
		ctx.buf.WriteOpcode(opFor(common, bytecode.IDIV, bytecode.DDIV))
	default:
		t.fail(n.Pos(), "unsupported binary operator %q", n.Operator)
		return
	}
	ctx.tos = common
}

func opFor(k value.Kind, intOp, dblOp bytecode.Opcode) bytecode.Opcode {
	if k == value.Double {
		return dblOp
	}
	return intOp
}

// coerceRightThenLeft compiles left (the right operand is already on
// the stack below it) and inserts an I2D on whichever side is Int64
// when common is Double. Left, sitting on top once compiled, is
// coerced in place; right, buried one slot down, is reached by
// bracketing its I2D with a pair of SWAPs rather than recompiling it.
func (t *Translator) coerceRightThenLeft(ctx *funcContext, left ast.Expression, common value.Kind) {
	rightWasInt := ctx.tos == value.Int64

	t.compileExpr(ctx, left)
	if t.err != nil {
		return
	}
	if common == value.Double && ctx.tos == value.Int64 {
		ctx.buf.WriteOpcode(bytecode.I2D)
	}
	if common == value.Double && rightWasInt {
		ctx.buf.WriteOpcode(bytecode.SWAP)
		ctx.buf.WriteOpcode(bytecode.I2D)
		ctx.buf.WriteOpcode(bytecode.SWAP)
	}
	ctx.tos = common
}

// compileComparison implements the documented cmp/neg/icmp reductions.
// ICMP/DCMP pop a = top (most recently pushed), b = below, and push
// sign(a-b); right-then-left evaluation puts the right operand below
// and the left on top, so a plain ICMP computes sign(left-right).
func (t *Translator) compileComparison(ctx *funcContext, n *ast.BinaryExpr) {
	rightKind := t.inferType(ctx, n.Right)
	leftKind := t.inferType(ctx, n.Left)
	if rightKind == value.StringID || leftKind == value.StringID || rightKind == value.Void || leftKind == value.Void {
		t.fail(n.Pos(), "operator %q requires numeric operands", n.Operator)
		return
	}
	common := value.Common(leftKind, rightKind)

	t.compileExpr(ctx, n.Right)
	if t.err != nil {
		return
	}
	t.coerceRightThenLeft(ctx, n.Left, common)
	if t.err != nil {
		return
	}

	if common == value.Double {
		ctx.buf.WriteOpcode(bytecode.DCMP)
	} else {
		ctx.buf.WriteOpcode(bytecode.ICMP)
	}
	ctx.tos = value.Int64

	switch n.Operator {
	case "==":
		t.emitNeg(ctx)
	case "!=":
		// cmp itself, nonzero is truthy.
	case ">":
		ctx.buf.WriteOpcode(bytecode.ILOAD1)
		ctx.buf.WriteOpcode(bytecode.ICMP)
		t.emitNeg(ctx)
	case ">=":
		// ICMP against -1 lands on 0 (false) or -1 (true, never +1);
		// INEG turns that into the canonical 0/1 without a branch.
		ctx.buf.WriteOpcode(bytecode.ILOADM1)
		ctx.buf.WriteOpcode(bytecode.ICMP)
		ctx.buf.WriteOpcode(bytecode.INEG)
	case "<":
		ctx.buf.WriteOpcode(bytecode.ILOADM1)
		ctx.buf.WriteOpcode(bytecode.ICMP)
		t.emitNeg(ctx)
	case "<=":
		ctx.buf.WriteOpcode(bytecode.ILOAD1)
		ctx.buf.WriteOpcode(bytecode.ICMP)
	}
	ctx.tos = value.Int64
}

// emitNeg pushes 1 if the TOS int is 0, else 0, consuming the TOS.
func (t *Translator) emitNeg(ctx *funcContext) {
	trueLabel := ctx.newLabel()
	endLabel := ctx.newLabel()

	ctx.buf.WriteOpcode(bytecode.ILOAD0)
	ctx.buf.AddBranch(bytecode.IFICMPE, trueLabel)
	ctx.buf.WriteOpcode(bytecode.ILOAD0)
	ctx.buf.AddBranch(bytecode.JA, endLabel)
	ctx.buf.Bind(trueLabel)
	ctx.buf.WriteOpcode(bytecode.ILOAD1)
	ctx.buf.Bind(endLabel)
	ctx.tos = value.Int64
}

// compileCall evaluates arguments in reverse declared order (so
// argument 0 ends on top of the stack at entry) and emits CALL.
func (t *Translator) compileCall(ctx *funcContext, n *ast.CallExpr) {
	id, ok := ctx.scope.resolveFunc(n.Function)
	if !ok {
		t.fail(n.Pos(), "undefined function %q", n.Function)
		return
	}
	fn, ok := t.prog.FunctionByID(id)
	if !ok {
		t.fail(n.Pos(), "undefined function %q", n.Function)
		return
	}
	if len(n.Arguments) != len(fn.ParamTypes) {
		t.fail(n.Pos(), "function %q expects %d argument(s), got %d", n.Function, len(fn.ParamTypes), len(n.Arguments))
		return
	}
	for i := len(n.Arguments) - 1; i >= 0; i-- {
		t.compileExpr(ctx, n.Arguments[i])
		if t.err != nil {
			return
		}
		t.coerceTOS(ctx, fn.ParamTypes[i], n.Arguments[i].Pos())
		if t.err != nil {
			return
		}
	}
	ctx.buf.WriteOpcode(bytecode.CALL)
	ctx.buf.WriteUint16(fn.ID)
	ctx.tos = fn.ReturnType
}
