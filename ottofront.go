package modeledjs

import (
	"fmt"

	"com.github.sebastianobarrera.modeledjs/modeledjs/jsast"
	"github.com/robertkrimen/otto/ast"
	"github.com/robertkrimen/otto/token"
)

// LowerProgram adapts an otto ES5.1 AST into the jsast tree the
// evaluator consumes. otto's parser can't produce anything past
// ES5.1 (no let/const, classes, arrows, generators, async/await,
// destructuring, modules, template literals) so this front end only
// ever emits the corresponding jsast subset; everything else in the
// tree is reachable only by constructing jsast nodes directly.
func LowerProgram(prog *ast.Program) *jsast.Program {
	out := &jsast.Program{}
	for _, s := range prog.Body {
		out.Body = append(out.Body, lowerStmt(s))
	}
	return out
}

func line(n ast.Node) int {
	if n == nil {
		return 0
	}
	return int(n.Idx0())
}

func lowerStmtList(list []ast.Statement) []jsast.Stmt {
	out := make([]jsast.Stmt, 0, len(list))
	for _, s := range list {
		out = append(out, lowerStmt(s))
	}
	return out
}

func lowerStmt(s ast.Statement) jsast.Stmt {
	if s == nil {
		return &jsast.EmptyStmt{}
	}
	switch s := s.(type) {
	case *ast.EmptyStatement:
		return &jsast.EmptyStmt{Pos: jsast.Pos{L: line(s)}}

	case *ast.BlockStatement:
		return &jsast.BlockStmt{Pos: jsast.Pos{L: line(s)}, List: lowerStmtList(s.List)}

	case *ast.ExpressionStatement:
		return &jsast.ExpressionStmt{Pos: jsast.Pos{L: line(s)}, Expression: lowerExpr(s.Expression)}

	case *ast.IfStatement:
		return &jsast.IfStmt{
			Pos:        jsast.Pos{L: line(s)},
			Test:       lowerExpr(s.Test),
			Consequent: lowerStmt(s.Consequent),
			Alternate:  lowerStmt(s.Alternate),
		}

	case *ast.ReturnStatement:
		var arg jsast.Expr
		if s.Argument != nil {
			arg = lowerExpr(s.Argument)
		}
		return &jsast.ReturnStmt{Pos: jsast.Pos{L: line(s)}, Argument: arg}

	case *ast.ThrowStatement:
		return &jsast.ThrowStmt{Pos: jsast.Pos{L: line(s)}, Argument: lowerExpr(s.Argument)}

	case *ast.TryStatement:
		t := &jsast.TryStmt{Pos: jsast.Pos{L: line(s)}, Body: asBlock(lowerStmt(s.Body))}
		if s.Catch != nil {
			t.Catch = &jsast.CatchClause{
				Pos:   jsast.Pos{L: line(s.Catch)},
				Param: &jsast.Identifier{Name: s.Catch.Parameter.Name},
				Body:  asBlock(lowerStmt(s.Catch.Body)),
			}
		}
		if s.Finally != nil {
			t.Finally = asBlock(lowerStmt(s.Finally))
		}
		return t

	case *ast.VariableStatement:
		decl := &jsast.VarDecl{Pos: jsast.Pos{L: line(s)}, Kind: jsast.VarVar}
		for _, item := range s.List {
			ve := item.(*ast.VariableExpression)
			var init jsast.Expr
			if ve.Initializer != nil {
				init = lowerExpr(ve.Initializer)
			}
			decl.Decls = append(decl.Decls, &jsast.VarDeclarator{
				Pos:    jsast.Pos{L: line(ve)},
				Target: &jsast.Identifier{Name: ve.Name},
				Init:   init,
			})
		}
		return decl

	case *ast.FunctionStatement:
		return &jsast.FunctionDecl{Pos: jsast.Pos{L: line(s)}, Function: lowerFunctionLiteral(s.Function)}

	case *ast.ForStatement:
		var init jsast.Node
		switch i := s.Initializer.(type) {
		case nil:
		case *ast.VariableExpression:
			init = varDeclFromExpr(i)
		default:
			init = lowerExpr(i.(ast.Expression))
		}
		var test, update jsast.Expr
		if s.Test != nil {
			test = lowerExpr(s.Test)
		}
		if s.Update != nil {
			update = lowerExpr(s.Update)
		}
		return &jsast.ForStmt{Pos: jsast.Pos{L: line(s)}, Init: init, Test: test, Update: update, Body: lowerStmt(s.Body)}

	case *ast.ForInStatement:
		fi := &jsast.ForInStmt{Pos: jsast.Pos{L: line(s)}, Object: lowerExpr(s.Source), Body: lowerStmt(s.Body)}
		switch into := s.Into.(type) {
		case *ast.VariableExpression:
			fi.Decl = &jsast.VarDecl{Kind: jsast.VarVar, Decls: []*jsast.VarDeclarator{{Target: &jsast.Identifier{Name: into.Name}}}}
		default:
			fi.Target = exprToLValuePattern(lowerExpr(into.(ast.Expression)))
		}
		return fi

	case *ast.WhileStatement:
		return &jsast.WhileStmt{Pos: jsast.Pos{L: line(s)}, Test: lowerExpr(s.Test), Body: lowerStmt(s.Body)}

	case *ast.DoWhileStatement:
		return &jsast.DoWhileStmt{Pos: jsast.Pos{L: line(s)}, Test: lowerExpr(s.Test), Body: lowerStmt(s.Body)}

	case *ast.BranchStatement:
		label := ""
		if s.Label != nil {
			label = s.Label.Name
		}
		if s.Token == token.BREAK {
			return &jsast.BreakStmt{Pos: jsast.Pos{L: line(s)}, Label: label}
		}
		return &jsast.ContinueStmt{Pos: jsast.Pos{L: line(s)}, Label: label}

	case *ast.LabelledStatement:
		return &jsast.LabeledStmt{Pos: jsast.Pos{L: line(s)}, Label: s.Label.Name, Body: lowerStmt(s.Statement)}

	case *ast.WithStatement:
		return &jsast.WithStmt{Pos: jsast.Pos{L: line(s)}, Object: lowerExpr(s.Object), Body: lowerStmt(s.Body)}

	case *ast.SwitchStatement:
		sw := &jsast.SwitchStmt{Pos: jsast.Pos{L: line(s)}, Discriminant: lowerExpr(s.Discriminant)}
		for _, c := range s.Body {
			var test jsast.Expr
			if c.Test != nil {
				test = lowerExpr(c.Test)
			}
			sw.Cases = append(sw.Cases, &jsast.SwitchCase{Test: test, Consequent: lowerStmtList(c.Consequent)})
		}
		return sw

	default:
		panic(fmt.Sprintf("ottofront: unsupported statement node %T", s))
	}
}

func varDeclFromExpr(ve *ast.VariableExpression) *jsast.VarDecl {
	var init jsast.Expr
	if ve.Initializer != nil {
		init = lowerExpr(ve.Initializer)
	}
	return &jsast.VarDecl{Kind: jsast.VarVar, Decls: []*jsast.VarDeclarator{{
		Target: &jsast.Identifier{Name: ve.Name},
		Init:   init,
	}}}
}

func asBlock(s jsast.Stmt) *jsast.BlockStmt {
	if b, ok := s.(*jsast.BlockStmt); ok {
		return b
	}
	return &jsast.BlockStmt{List: []jsast.Stmt{s}}
}

// exprToLValuePattern wraps an already-lowered member/identifier
// expression as the binding target of a for-in/for-of loop whose
// head isn't a fresh declaration (`for (x in obj)`).
func exprToLValuePattern(e jsast.Expr) jsast.Pattern {
	switch e := e.(type) {
	case jsast.Pattern:
		return e
	default:
		_ = e
		panic("ottofront: for-in/for-of target is not a valid assignment target")
	}
}

func lowerFunctionLiteral(lit *ast.FunctionLiteral) *jsast.FunctionLiteral {
	out := &jsast.FunctionLiteral{Pos: jsast.Pos{L: line(lit)}}
	if lit.Name != nil {
		out.Name = lit.Name.Name
	}
	if lit.ParameterList != nil {
		for _, p := range lit.ParameterList.List {
			out.Params = append(out.Params, &jsast.Param{Target: &jsast.Identifier{Name: p.Name}})
		}
	}
	if block, ok := lit.Body.(*ast.BlockStatement); ok {
		out.Body = lowerStmtList(block.List)
		out.IsStrict = hasUseStrict(out.Body)
	}
	return out
}

func lowerExprList(list []ast.Expression) []jsast.Expr {
	out := make([]jsast.Expr, 0, len(list))
	for _, e := range list {
		out = append(out, lowerExpr(e))
	}
	return out
}

func lowerExpr(e ast.Expression) jsast.Expr {
	if e == nil {
		return nil
	}
	switch e := e.(type) {
	case *ast.FunctionLiteral:
		return lowerFunctionLiteral(e)

	case *ast.ObjectLiteral:
		out := &jsast.ObjectLiteral{Pos: jsast.Pos{L: line(e)}}
		for _, p := range e.Value {
			kind := jsast.PropInit
			switch p.Kind {
			case "get":
				kind = jsast.PropGet
			case "set":
				kind = jsast.PropSet
			}
			out.Properties = append(out.Properties, &jsast.Property{
				Key:   p.Key,
				Kind:  kind,
				Value: lowerExpr(p.Value),
			})
		}
		return out

	case *ast.ArrayLiteral:
		out := &jsast.ArrayLiteral{Pos: jsast.Pos{L: line(e)}}
		out.Elements = lowerExprList(e.Value)
		return out

	case *ast.AssignExpression:
		return &jsast.AssignExpr{
			Pos:      jsast.Pos{L: line(e)},
			Operator: assignOperatorString(e.Operator),
			Target:   lowerExpr(e.Left),
			Value:    lowerExpr(e.Right),
		}

	case *ast.BinaryExpression:
		switch e.Operator {
		case token.LOGICAL_AND:
			return &jsast.LogicalExpr{Pos: jsast.Pos{L: line(e)}, Operator: jsast.LogicalAnd, Left: lowerExpr(e.Left), Right: lowerExpr(e.Right)}
		case token.LOGICAL_OR:
			return &jsast.LogicalExpr{Pos: jsast.Pos{L: line(e)}, Operator: jsast.LogicalOr, Left: lowerExpr(e.Left), Right: lowerExpr(e.Right)}
		default:
			return &jsast.BinaryExpr{Pos: jsast.Pos{L: line(e)}, Operator: jsast.BinaryOp(e.Operator.String()), Left: lowerExpr(e.Left), Right: lowerExpr(e.Right)}
		}

	case *ast.DotExpression:
		return &jsast.MemberExpr{Pos: jsast.Pos{L: line(e)}, Object: lowerExpr(e.Left), Property: e.Identifier.Name}

	case *ast.BracketExpression:
		return &jsast.MemberExpr{Pos: jsast.Pos{L: line(e)}, Object: lowerExpr(e.Left), PropExpr: lowerExpr(e.Member), Computed: true}

	case *ast.CallExpression:
		return &jsast.CallExpr{Pos: jsast.Pos{L: line(e)}, Callee: lowerExpr(e.Callee), Arguments: lowerExprList(e.ArgumentList)}

	case *ast.NewExpression:
		return &jsast.NewExpr{Pos: jsast.Pos{L: line(e)}, Callee: lowerExpr(e.Callee), Arguments: lowerExprList(e.ArgumentList)}

	case *ast.UnaryExpression:
		if e.Operator == token.INCREMENT || e.Operator == token.DECREMENT {
			op := "++"
			if e.Operator == token.DECREMENT {
				op = "--"
			}
			return &jsast.UpdateExpr{Pos: jsast.Pos{L: line(e)}, Operator: op, Operand: lowerExpr(e.Operand), Prefix: !e.Postfix}
		}
		var op jsast.UnaryOp
		switch e.Operator {
		case token.DELETE:
			op = jsast.UnaryDelete
		case token.TYPEOF:
			op = jsast.UnaryTypeof
		case token.NOT:
			op = jsast.UnaryNot
		case token.PLUS:
			op = jsast.UnaryPlus
		case token.MINUS:
			op = jsast.UnaryMinus
		case token.VOID:
			op = jsast.UnaryVoid
		case token.BITWISE_NOT:
			op = jsast.UnaryBitNot
		default:
			panic(fmt.Sprintf("ottofront: unsupported unary operator %s", e.Operator.String()))
		}
		return &jsast.UnaryExpr{Pos: jsast.Pos{L: line(e)}, Operator: op, Operand: lowerExpr(e.Operand)}

	case *ast.ConditionalExpression:
		return &jsast.ConditionalExpr{Pos: jsast.Pos{L: line(e)}, Test: lowerExpr(e.Test), Consequent: lowerExpr(e.Consequent), Alternate: lowerExpr(e.Alternate)}

	case *ast.EmptyExpression:
		return &jsast.Identifier{Name: "undefined"}

	case *ast.SequenceExpression:
		return &jsast.SequenceExpr{Pos: jsast.Pos{L: line(e)}, Expressions: lowerExprList(e.Sequence)}

	case *ast.ThisExpression:
		return &jsast.ThisExpr{Pos: jsast.Pos{L: line(e)}}

	case *ast.VariableExpression:
		// a `var x = ...` appearing as an expression (for-loop head);
		// evaluated here as a plain assignment-with-declaration-effect.
		var init jsast.Expr = &jsast.Identifier{Name: "undefined"}
		if e.Initializer != nil {
			init = lowerExpr(e.Initializer)
		}
		return &jsast.AssignExpr{Pos: jsast.Pos{L: line(e)}, Operator: "=", Target: &jsast.Identifier{Name: e.Name}, Value: init}

	case *ast.Identifier:
		return &jsast.Identifier{Pos: jsast.Pos{L: line(e)}, Name: e.Name}

	case *ast.BooleanLiteral:
		return &jsast.BooleanLiteral{Pos: jsast.Pos{L: line(e)}, Value: e.Value}

	case *ast.NullLiteral:
		return &jsast.NullLiteral{Pos: jsast.Pos{L: line(e)}}

	case *ast.NumberLiteral:
		switch v := e.Value.(type) {
		case float64:
			return &jsast.NumberLiteral{Pos: jsast.Pos{L: line(e)}, Value: v}
		case int64:
			return &jsast.BigIntLiteral{Pos: jsast.Pos{L: line(e)}, Value: v}
		default:
			panic(fmt.Sprintf("ottofront: unsupported number literal value %#v", e.Value))
		}

	case *ast.StringLiteral:
		return &jsast.StringLiteral{Pos: jsast.Pos{L: line(e)}, Value: e.Value}

	case *ast.RegExpLiteral:
		return &jsast.RegexpLiteral{Pos: jsast.Pos{L: line(e)}, Pattern: e.Pattern, Flags: e.Flags}

	default:
		panic(fmt.Sprintf("ottofront: unsupported expression node %T", e))
	}
}

func assignOperatorString(op token.Token) string {
	if op == token.ASSIGN {
		return "="
	}
	s := op.String()
	if len(s) > 0 && s[len(s)-1] == '=' {
		return s
	}
	return s + "="
}
