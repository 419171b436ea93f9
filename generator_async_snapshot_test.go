package modeledjs

import (
	"testing"

	"com.github.sebastianobarrera.modeledjs/modeledjs/jsast"
	"github.com/gkampitakis/go-snaps/snaps"
)

// TestGeneratorAsyncOrderingSnapshot records the interleaving of a
// generator's yield points against an async function's await points
// into a shared log array and snapshots the resulting trace, the way
// CWBudde-go-dws's fixture_test.go snapshots interpreter output with
// go-snaps instead of a hand-maintained golden string. Built as a
// hand-constructed *jsast.Program for the same reason as
// evaluator_test.go: generators/async functions are ES6+ syntax otto's
// parser can't produce.
func TestGeneratorAsyncOrderingSnapshot(t *testing.T) {
	logPush := func(s string) jsast.Stmt {
		return &jsast.ExpressionStmt{Expression: &jsast.CallExpr{
			Callee:    &jsast.MemberExpr{Object: ident("log"), Property: "push"},
			Arguments: []jsast.Expr{&jsast.StringLiteral{Value: s}},
		}}
	}

	genFn := &jsast.FunctionDecl{Function: &jsast.FunctionLiteral{
		Name:  "gen",
		IsGen: true,
		Body: []jsast.Stmt{
			logPush("gen:start"),
			&jsast.ExpressionStmt{Expression: &jsast.YieldExpr{Argument: &jsast.NumberLiteral{Value: 1}}},
			logPush("gen:resume"),
			&jsast.ExpressionStmt{Expression: &jsast.YieldExpr{Argument: &jsast.NumberLiteral{Value: 2}}},
			logPush("gen:end"),
		},
	}}

	runFn := &jsast.FunctionDecl{Function: &jsast.FunctionLiteral{
		Name:    "run",
		IsAsync: true,
		Body: []jsast.Stmt{
			logPush("async:start"),
			&jsast.ExpressionStmt{Expression: &jsast.AwaitExpr{Argument: &jsast.NullLiteral{}}},
			logPush("async:resume"),
			&jsast.ReturnStmt{Argument: &jsast.StringLiteral{Value: "done"}},
		},
	}}

	itDecl := varDecl(jsast.VarVar, "it", &jsast.CallExpr{Callee: ident("gen")})
	nextPush := func() jsast.Stmt {
		return &jsast.ExpressionStmt{Expression: &jsast.CallExpr{
			Callee: &jsast.MemberExpr{Object: ident("log"), Property: "push"},
			Arguments: []jsast.Expr{&jsast.BinaryExpr{
				Operator: "+",
				Left:     &jsast.StringLiteral{Value: "next:"},
				Right: &jsast.MemberExpr{
					Object:   &jsast.CallExpr{Callee: &jsast.MemberExpr{Object: ident("it"), Property: "next"}},
					Property: "value",
				},
			}},
		}}
	}
	next1 := nextPush()
	next2 := nextPush()

	callThen := &jsast.ExpressionStmt{Expression: &jsast.CallExpr{
		Callee: &jsast.MemberExpr{Object: &jsast.CallExpr{Callee: ident("run")}, Property: "then"},
		Arguments: []jsast.Expr{&jsast.FunctionLiteral{
			Params: []*jsast.Param{{Target: ident("v")}},
			Body: []jsast.Stmt{
				logPush("async:resolved"),
			},
		}},
	}}

	joinLog := varDecl(jsast.VarVar, "trace", &jsast.CallExpr{
		Callee:    &jsast.MemberExpr{Object: ident("log"), Property: "join"},
		Arguments: []jsast.Expr{&jsast.StringLiteral{Value: "|"}},
	})

	prog := &jsast.Program{Body: []jsast.Stmt{
		varDecl(jsast.VarVar, "log", &jsast.ArrayLiteral{}),
		genFn,
		runFn,
		itDecl,
		next1,
		next2,
		callThen,
	}}

	vm := runProgram(t, prog)
	vm.RunPendingAsyncTasks()

	_, err := vm.Evaluate(&jsast.Program{Body: []jsast.Stmt{joinLog}})
	if err != nil {
		t.Fatalf("joining trace log: %v", err)
	}

	trace, err := vm.GetGlobalVariable("trace")
	if err != nil {
		t.Fatalf("reading trace: %v", err)
	}

	snaps.MatchSnapshot(t, string(trace.(JSString)))
}
