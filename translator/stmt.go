package translator

import (
	"github.com/mathvm/mathvm/ast"
	"github.com/mathvm/mathvm/bytecode"
	"github.com/mathvm/mathvm/value"
)

func (t *Translator) compileStmt(ctx *funcContext, stmt ast.Statement) {
	switch n := stmt.(type) {
	case *ast.VarDecl:
		t.compileVarDecl(ctx, n)
	case *ast.Assignment:
		t.compileAssignment(ctx, n)
	case *ast.IfStmt:
		t.compileIf(ctx, n)
	case *ast.WhileStmt:
		t.compileWhile(ctx, n)
	case *ast.ForStmt:
		t.compileFor(ctx, n)
	case *ast.ReturnStmt:
		t.compileReturn(ctx, n)
	case *ast.PrintStmt:
		t.compilePrint(ctx, n)
	case *ast.ExprStmt:
		if n.Expression == nil {
			return
		}
		t.compileExpr(ctx, n.Expression)
		if t.err != nil {
			return
		}
		if ctx.tos != value.Void {
			ctx.buf.WriteOpcode(bytecode.POP)
		}
	case *ast.BlockStatement:
		t.compileBlock(ctx, n.Statements)
	case *ast.FunctionDecl:
		// declared and emitted separately by compileBlock.
	default:
		t.fail(stmt.Pos(), "unsupported statement")
	}
}

func (t *Translator) compileVarDecl(ctx *funcContext, n *ast.VarDecl) {
	if n.Value == nil {
		return
	}
	kind := typeKind(n.Type)
	t.compileExpr(ctx, n.Value)
	if t.err != nil {
		return
	}
	t.coerceTOS(ctx, kind, n.Pos())
	if t.err != nil {
		return
	}
	t.emitStore(ctx, n.Name.Value, n.Pos())
}

func (t *Translator) compileAssignment(ctx *funcContext, n *ast.Assignment) {
	_, slot, ok := ctx.scope.resolveVar(n.Name.Value)
	if !ok {
		t.fail(n.Pos(), "undefined variable %q", n.Name.Value)
		return
	}

	switch n.Op {
	case ast.Assign:
		t.compileExpr(ctx, n.Value)
		if t.err != nil {
			return
		}
		t.coerceTOS(ctx, slot.kind, n.Pos())
		if t.err != nil {
			return
		}
		t.emitStore(ctx, n.Name.Value, n.Pos())
	case ast.AssignAdd, ast.AssignSub:
		if slot.kind != value.Int64 {
			t.fail(n.Pos(), "compound assignment is only allowed on int variables")
			return
		}
		t.compileExpr(ctx, n.Value)
		if t.err != nil {
			return
		}
		if ctx.tos != value.Int64 {
			t.fail(n.Pos(), "compound assignment requires an int operand")
			return
		}
		t.emitLoad(ctx, n.Name.Value, n.Pos())
		if n.Op == ast.AssignAdd {
			ctx.buf.WriteOpcode(bytecode.IADD)
		} else {
			ctx.buf.WriteOpcode(bytecode.ISUB)
		}
		ctx.tos = value.Int64
		t.emitStore(ctx, n.Name.Value, n.Pos())
	default:
		t.fail(n.Pos(), "unsupported assignment operator %q", n.Op)
	}
}

// compileBranchIfFalse evaluates cond and emits a branch to exit that
// is taken when cond is false. When cond is a direct int-int
// comparison, it skips materializing a boolean and emits the negated
// IFICMPxx comparison directly.
func (t *Translator) compileBranchIfFalse(ctx *funcContext, cond ast.Expression, exit *bytecode.Label) {
	if be, ok := cond.(*ast.BinaryExpr); ok {
		if op, ok := negatedIntComparison[be.Operator]; ok {
			if t.inferType(ctx, be.Left) == value.Int64 && t.inferType(ctx, be.Right) == value.Int64 {
				t.compileExpr(ctx, be.Right)
				if t.err != nil {
					return
				}
				t.compileExpr(ctx, be.Left)
				if t.err != nil {
					return
				}
				ctx.buf.AddBranch(op, exit)
				ctx.tos = value.Void
				return
			}
		}
	}

	t.compileExpr(ctx, cond)
	if t.err != nil {
		return
	}
	if ctx.tos != value.Int64 {
		t.fail(cond.Pos(), "condition must be an int, got %s", ctx.tos)
		return
	}
	ctx.buf.WriteOpcode(bytecode.ILOAD0)
	ctx.buf.AddBranch(bytecode.IFICMPE, exit)
}

func (t *Translator) compileIf(ctx *funcContext, n *ast.IfStmt) {
	elseLabel := ctx.newLabel()
	t.compileBranchIfFalse(ctx, n.Condition, elseLabel)
	if t.err != nil {
		return
	}

	t.compileBlock(ctx, n.Consequence.Statements)
	if t.err != nil {
		return
	}

	if n.Alternative == nil {
		ctx.buf.Bind(elseLabel)
		return
	}

	endLabel := ctx.newLabel()
	ctx.buf.AddBranch(bytecode.JA, endLabel)
	ctx.buf.Bind(elseLabel)
	t.compileBlock(ctx, n.Alternative.Statements)
	if t.err != nil {
		return
	}
	ctx.buf.Bind(endLabel)
}

func (t *Translator) compileWhile(ctx *funcContext, n *ast.WhileStmt) {
	head := ctx.newLabel()
	exit := ctx.newLabel()

	ctx.buf.Bind(head)
	t.compileBranchIfFalse(ctx, n.Condition, exit)
	if t.err != nil {
		return
	}
	t.compileBlock(ctx, n.Body.Statements)
	if t.err != nil {
		return
	}
	ctx.buf.AddBranch(bytecode.JA, head)
	ctx.buf.Bind(exit)
}

// compileFor lowers `for v in lo..hi B` per the documented algorithm:
// evaluate lo, store v; bind head; evaluate hi, load v, ICMP, push 1,
// IFICMPE exit (exits once v > hi); emit B; load v, push 1, IADD,
// store v; jump head; bind exit.
func (t *Translator) compileFor(ctx *funcContext, n *ast.ForStmt) {
	_, slot, ok := ctx.scope.resolveVar(n.Var.Value)
	if !ok {
		t.fail(n.Pos(), "undefined variable %q", n.Var.Value)
		return
	}
	if slot.kind != value.Int64 {
		t.fail(n.Pos(), "for-loop variable %q must be declared int", n.Var.Value)
		return
	}

	t.compileExpr(ctx, n.Low)
	if t.err != nil {
		return
	}
	t.coerceTOS(ctx, value.Int64, n.Low.Pos())
	if t.err != nil {
		return
	}
	t.emitStore(ctx, n.Var.Value, n.Pos())

	head := ctx.newLabel()
	exit := ctx.newLabel()
	ctx.buf.Bind(head)

	t.compileExpr(ctx, n.High)
	if t.err != nil {
		return
	}
	t.coerceTOS(ctx, value.Int64, n.High.Pos())
	if t.err != nil {
		return
	}
	t.emitLoad(ctx, n.Var.Value, n.Pos())
	ctx.buf.WriteOpcode(bytecode.ICMP)
	ctx.buf.WriteOpcode(bytecode.ILOAD1)
	ctx.buf.AddBranch(bytecode.IFICMPE, exit)

	t.compileBlock(ctx, n.Body.Statements)
	if t.err != nil {
		return
	}

	t.emitLoad(ctx, n.Var.Value, n.Pos())
	ctx.buf.WriteOpcode(bytecode.ILOAD1)
	ctx.buf.WriteOpcode(bytecode.IADD)
	t.emitStore(ctx, n.Var.Value, n.Pos())
	ctx.buf.AddBranch(bytecode.JA, head)
	ctx.buf.Bind(exit)
}

func (t *Translator) compileReturn(ctx *funcContext, n *ast.ReturnStmt) {
	if n.Value == nil {
		if ctx.returnType != value.Void {
			t.fail(n.Pos(), "function must return a value of type %s", ctx.returnType)
			return
		}
		ctx.buf.WriteOpcode(bytecode.RETURN)
		return
	}
	if ctx.returnType == value.Void {
		t.fail(n.Pos(), "void function cannot return a value")
		return
	}
	t.compileExpr(ctx, n.Value)
	if t.err != nil {
		return
	}
	t.coerceTOS(ctx, ctx.returnType, n.Pos())
	if t.err != nil {
		return
	}
	ctx.buf.WriteOpcode(bytecode.RETURN)
}

func (t *Translator) compilePrint(ctx *funcContext, n *ast.PrintStmt) {
	for _, arg := range n.Arguments {
		t.compileExpr(ctx, arg)
		if t.err != nil {
			return
		}
		switch ctx.tos {
		case value.Int64:
			ctx.buf.WriteOpcode(bytecode.IPRINT)
		case value.Double:
			ctx.buf.WriteOpcode(bytecode.DPRINT)
		case value.StringID:
			ctx.buf.WriteOpcode(bytecode.SPRINT)
		default:
			t.fail(arg.Pos(), "cannot print a value of type %s", ctx.tos)
			return
		}
	}
}
