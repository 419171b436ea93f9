package modeledjs

import (
	"testing"

	"com.github.sebastianobarrera.modeledjs/modeledjs/jsast"
	"github.com/stretchr/testify/require"
)

// These tests exercise let/class/generator/async/destructuring
// semantics by constructing jsast trees directly, per jsast's own
// documented contract: otto's ES5.1 grammar (the only front end this
// module ships) cannot parse any of this syntax, so RunScriptReader is
// not an option here — vm.Evaluate is fed a hand-built *jsast.Program
// the way an embedder's own front end would.

func runProgram(t *testing.T, prog *jsast.Program) *VM {
	t.Helper()
	vm := NewVM()
	_, err := vm.Evaluate(prog)
	require.NoError(t, err)
	return vm
}

func ident(name string) *jsast.Identifier { return &jsast.Identifier{Name: name} }

func varDecl(kind jsast.VarKind, name string, init jsast.Expr) *jsast.VarDecl {
	return &jsast.VarDecl{Kind: kind, Decls: []*jsast.VarDeclarator{{Target: ident(name), Init: init}}}
}

func TestLetTemporalDeadZone(t *testing.T) {
	// var threw = false;
	// var message = "";
	// try { x; let x = 1; } catch (e) { threw = true; message = e.message; }
	tryStmt := &jsast.TryStmt{
		Body: &jsast.BlockStmt{List: []jsast.Stmt{
			&jsast.ExpressionStmt{Expression: ident("x")},
			varDecl(jsast.VarLet, "x", &jsast.NumberLiteral{Value: 1}),
		}},
		Catch: &jsast.CatchClause{
			Param: ident("e"),
			Body: &jsast.BlockStmt{List: []jsast.Stmt{
				&jsast.ExpressionStmt{Expression: &jsast.AssignExpr{Operator: "=", Target: ident("threw"), Value: &jsast.BooleanLiteral{Value: true}}},
				&jsast.ExpressionStmt{Expression: &jsast.AssignExpr{
					Operator: "=",
					Target:   ident("message"),
					Value:    &jsast.MemberExpr{Object: ident("e"), Property: "message"},
				}},
			}},
		},
	}

	prog := &jsast.Program{Body: []jsast.Stmt{
		varDecl(jsast.VarVar, "threw", &jsast.BooleanLiteral{Value: false}),
		varDecl(jsast.VarVar, "message", &jsast.StringLiteral{Value: ""}),
		tryStmt,
	}}

	vm := runProgram(t, prog)

	threw, err := vm.GetGlobalVariable("threw")
	require.NoError(t, err)
	require.Equal(t, JSBoolean(true), threw)

	message, err := vm.GetGlobalVariable("message")
	require.NoError(t, err)
	require.Contains(t, string(message.(JSString)), "before initialization")
}

func TestClassExtendsAndSuperCall(t *testing.T) {
	// function Animal(name) { this.name = name; }
	// Animal.prototype.speak = function() { return this.name + " makes a noise."; };
	animalCtor := &jsast.FunctionDecl{Function: &jsast.FunctionLiteral{
		Name:   "Animal",
		Params: []*jsast.Param{{Target: ident("name")}},
		Body: []jsast.Stmt{
			&jsast.ExpressionStmt{Expression: &jsast.AssignExpr{
				Operator: "=",
				Target:   &jsast.MemberExpr{Object: &jsast.ThisExpr{}, Property: "name"},
				Value:    ident("name"),
			}},
		},
	}}
	assignSpeak := &jsast.ExpressionStmt{Expression: &jsast.AssignExpr{
		Operator: "=",
		Target:   &jsast.MemberExpr{Object: &jsast.MemberExpr{Object: ident("Animal"), Property: "prototype"}, Property: "speak"},
		Value: &jsast.FunctionLiteral{
			Body: []jsast.Stmt{&jsast.ReturnStmt{Argument: &jsast.BinaryExpr{
				Operator: "+",
				Left:     &jsast.MemberExpr{Object: &jsast.ThisExpr{}, Property: "name"},
				Right:    &jsast.StringLiteral{Value: " makes a noise."},
			}}},
		},
	}}

	// class Dog extends Animal {
	//   constructor(name) { super(name); this.kind = "dog"; }
	//   speak() { return this.name + " barks."; }
	// }
	classDecl := &jsast.ClassDecl{Class: &jsast.ClassLiteral{
		Name:       "Dog",
		SuperClass: ident("Animal"),
		Members: []*jsast.ClassMember{
			{
				Kind: jsast.MemberMethod,
				Key:  "constructor",
				Value: &jsast.FunctionLiteral{
					Params: []*jsast.Param{{Target: ident("name")}},
					Body: []jsast.Stmt{
						&jsast.ExpressionStmt{Expression: &jsast.CallExpr{Callee: &jsast.SuperExpr{}, Arguments: []jsast.Expr{ident("name")}}},
						&jsast.ExpressionStmt{Expression: &jsast.AssignExpr{
							Operator: "=",
							Target:   &jsast.MemberExpr{Object: &jsast.ThisExpr{}, Property: "kind"},
							Value:    &jsast.StringLiteral{Value: "dog"},
						}},
					},
				},
			},
			{
				Kind: jsast.MemberMethod,
				Key:  "speak",
				Value: &jsast.FunctionLiteral{
					Body: []jsast.Stmt{&jsast.ReturnStmt{Argument: &jsast.BinaryExpr{
						Operator: "+",
						Left:     &jsast.MemberExpr{Object: &jsast.ThisExpr{}, Property: "name"},
						Right:    &jsast.StringLiteral{Value: " barks."},
					}}},
				},
			},
		},
	}}

	prog := &jsast.Program{Body: []jsast.Stmt{
		animalCtor,
		assignSpeak,
		classDecl,
		varDecl(jsast.VarVar, "d", &jsast.NewExpr{Callee: ident("Dog"), Arguments: []jsast.Expr{&jsast.StringLiteral{Value: "Rex"}}}),
		varDecl(jsast.VarVar, "result", &jsast.CallExpr{Callee: &jsast.MemberExpr{Object: ident("d"), Property: "speak"}}),
		varDecl(jsast.VarVar, "kind", &jsast.MemberExpr{Object: ident("d"), Property: "kind"}),
		varDecl(jsast.VarVar, "isAnimal", &jsast.BinaryExpr{Operator: "instanceof", Left: ident("d"), Right: ident("Animal")}),
	}}

	vm := runProgram(t, prog)

	result, err := vm.GetGlobalVariable("result")
	require.NoError(t, err)
	require.Equal(t, JSString("Rex barks."), result)

	kind, err := vm.GetGlobalVariable("kind")
	require.NoError(t, err)
	require.Equal(t, JSString("dog"), kind)

	isAnimal, err := vm.GetGlobalVariable("isAnimal")
	require.NoError(t, err)
	require.Equal(t, JSBoolean(true), isAnimal)
}

func TestGeneratorSpreadIntoArray(t *testing.T) {
	// function* range(n) { for (var i = 0; i < n; i++) { yield i; } }
	// var values = [...range(4)];
	// var sum = values[0] + values[1] + values[2] + values[3];
	rangeFn := &jsast.FunctionDecl{Function: &jsast.FunctionLiteral{
		Name:   "range",
		IsGen:  true,
		Params: []*jsast.Param{{Target: ident("n")}},
		Body: []jsast.Stmt{
			&jsast.ForStmt{
				Init: varDeclForInit("i", &jsast.NumberLiteral{Value: 0}),
				Test: &jsast.BinaryExpr{Operator: "<", Left: ident("i"), Right: ident("n")},
				Update: &jsast.UpdateExpr{Operator: "++", Operand: ident("i"), Prefix: false},
				Body: &jsast.BlockStmt{List: []jsast.Stmt{
					&jsast.ExpressionStmt{Expression: &jsast.YieldExpr{Argument: ident("i")}},
				}},
			},
		},
	}}

	prog := &jsast.Program{Body: []jsast.Stmt{
		rangeFn,
		varDecl(jsast.VarVar, "values", &jsast.ArrayLiteral{Elements: []jsast.Expr{
			&jsast.SpreadElement{Argument: &jsast.CallExpr{Callee: ident("range"), Arguments: []jsast.Expr{&jsast.NumberLiteral{Value: 4}}}},
		}}),
		varDecl(jsast.VarVar, "sum", &jsast.BinaryExpr{
			Operator: "+",
			Left: &jsast.BinaryExpr{
				Operator: "+",
				Left: &jsast.BinaryExpr{
					Operator: "+",
					Left:     &jsast.MemberExpr{Object: ident("values"), PropExpr: &jsast.NumberLiteral{Value: 0}, Computed: true},
					Right:    &jsast.MemberExpr{Object: ident("values"), PropExpr: &jsast.NumberLiteral{Value: 1}, Computed: true},
				},
				Right: &jsast.MemberExpr{Object: ident("values"), PropExpr: &jsast.NumberLiteral{Value: 2}, Computed: true},
			},
			Right: &jsast.MemberExpr{Object: ident("values"), PropExpr: &jsast.NumberLiteral{Value: 3}, Computed: true},
		}),
	}}

	vm := runProgram(t, prog)

	values, err := vm.GetGlobalVariable("values")
	require.NoError(t, err)
	arr, ok := values.(*JSObject)
	require.True(t, ok)
	require.Equal(t, []JSValue{JSNumber(0), JSNumber(1), JSNumber(2), JSNumber(3)}, arr.arrayPart)

	sum, err := vm.GetGlobalVariable("sum")
	require.NoError(t, err)
	require.Equal(t, JSNumber(6), sum)
}

func varDeclForInit(name string, init jsast.Expr) *jsast.VarDecl {
	return varDecl(jsast.VarVar, name, init)
}

func TestAsyncAwaitResolvesPromiseChain(t *testing.T) {
	// function delay(v) { return new Promise(function(resolve) { resolve(v); }); }
	// async function run() { var a = await delay(1); var b = await delay(a + 1); return a + b; }
	// run().then(function(v) { result = v; });
	delayFn := &jsast.FunctionDecl{Function: &jsast.FunctionLiteral{
		Name:   "delay",
		Params: []*jsast.Param{{Target: ident("v")}},
		Body: []jsast.Stmt{
			&jsast.ReturnStmt{Argument: &jsast.NewExpr{
				Callee: ident("Promise"),
				Arguments: []jsast.Expr{&jsast.FunctionLiteral{
					Params: []*jsast.Param{{Target: ident("resolve")}},
					Body: []jsast.Stmt{
						&jsast.ExpressionStmt{Expression: &jsast.CallExpr{Callee: ident("resolve"), Arguments: []jsast.Expr{ident("v")}}},
					},
				}},
			}},
		},
	}}

	runFn := &jsast.FunctionDecl{Function: &jsast.FunctionLiteral{
		Name:    "run",
		IsAsync: true,
		Body: []jsast.Stmt{
			varDecl(jsast.VarVar, "a", &jsast.AwaitExpr{Argument: &jsast.CallExpr{Callee: ident("delay"), Arguments: []jsast.Expr{&jsast.NumberLiteral{Value: 1}}}}),
			varDecl(jsast.VarVar, "b", &jsast.AwaitExpr{Argument: &jsast.CallExpr{Callee: ident("delay"), Arguments: []jsast.Expr{&jsast.BinaryExpr{Operator: "+", Left: ident("a"), Right: &jsast.NumberLiteral{Value: 1}}}}}),
			&jsast.ReturnStmt{Argument: &jsast.BinaryExpr{Operator: "+", Left: ident("a"), Right: ident("b")}},
		},
	}}

	callThen := &jsast.ExpressionStmt{Expression: &jsast.CallExpr{
		Callee: &jsast.MemberExpr{Object: &jsast.CallExpr{Callee: ident("run")}, Property: "then"},
		Arguments: []jsast.Expr{&jsast.FunctionLiteral{
			Params: []*jsast.Param{{Target: ident("v")}},
			Body: []jsast.Stmt{
				&jsast.ExpressionStmt{Expression: &jsast.AssignExpr{Operator: "=", Target: ident("result"), Value: ident("v")}},
			},
		}},
	}}

	prog := &jsast.Program{Body: []jsast.Stmt{
		varDecl(jsast.VarVar, "result", &jsast.NullLiteral{}),
		delayFn,
		runFn,
		callThen,
	}}

	vm := runProgram(t, prog)
	vm.RunPendingAsyncTasks()

	result, err := vm.GetGlobalVariable("result")
	require.NoError(t, err)
	require.Equal(t, JSNumber(3), result)
}

func TestDestructuringWithDefaultsAndRest(t *testing.T) {
	// function f({a, b = 10, ...rest}) { return a + b + rest.c; }
	// var total = f({a: 1, c: 5});
	// var [first, , ...others] = [1, 2, 3, 4];
	fFn := &jsast.FunctionDecl{Function: &jsast.FunctionLiteral{
		Name: "f",
		Params: []*jsast.Param{{
			Target: &jsast.ObjectPattern{
				Properties: []*jsast.ObjectPatternProp{
					{Key: "a", Value: ident("a")},
					{Key: "b", Value: &jsast.AssignPattern{Target: ident("b"), Default: &jsast.NumberLiteral{Value: 10}}},
				},
				Rest: "rest",
			},
		}},
		Body: []jsast.Stmt{
			&jsast.ReturnStmt{Argument: &jsast.BinaryExpr{
				Operator: "+",
				Left:     &jsast.BinaryExpr{Operator: "+", Left: ident("a"), Right: ident("b")},
				Right:    &jsast.MemberExpr{Object: ident("rest"), Property: "c"},
			}},
		},
	}}

	callF := varDecl(jsast.VarVar, "total", &jsast.CallExpr{
		Callee: ident("f"),
		Arguments: []jsast.Expr{&jsast.ObjectLiteral{Properties: []*jsast.Property{
			{Key: "a", Kind: jsast.PropInit, Value: &jsast.NumberLiteral{Value: 1}},
			{Key: "c", Kind: jsast.PropInit, Value: &jsast.NumberLiteral{Value: 5}},
		}}},
	})

	arrayDestructure := &jsast.VarDecl{Kind: jsast.VarVar, Decls: []*jsast.VarDeclarator{{
		Target: &jsast.ArrayPattern{Elements: []*jsast.ArrayPatternElement{
			{Target: ident("first")},
			{Target: nil},
			{Target: &jsast.RestElement{Target: ident("others")}},
		}},
		Init: &jsast.ArrayLiteral{Elements: []jsast.Expr{
			&jsast.NumberLiteral{Value: 1}, &jsast.NumberLiteral{Value: 2}, &jsast.NumberLiteral{Value: 3}, &jsast.NumberLiteral{Value: 4},
		}},
	}}}

	prog := &jsast.Program{Body: []jsast.Stmt{fFn, callF, arrayDestructure}}

	vm := runProgram(t, prog)

	total, err := vm.GetGlobalVariable("total")
	require.NoError(t, err)
	require.Equal(t, JSNumber(16), total)

	first, err := vm.GetGlobalVariable("first")
	require.NoError(t, err)
	require.Equal(t, JSNumber(1), first)

	others, err := vm.GetGlobalVariable("others")
	require.NoError(t, err)
	othersArr, ok := others.(*JSObject)
	require.True(t, ok)
	require.Equal(t, []JSValue{JSNumber(3), JSNumber(4)}, othersArr.arrayPart)
}

// TestBigIntArbitraryPrecisionMultiplication exercises spec.md §3.1's
// BigInt being arbitrary-precision: squaring a value past 2^63 must
// not wrap the way a fixed-width int64 would.
func TestBigIntArbitraryPrecisionMultiplication(t *testing.T) {
	// var big = 9223372036854775807n; // 2^63 - 1, the largest int64
	// var squared = big * big;
	bigLit := &jsast.BigIntLiteral{Value: 9223372036854775807}

	prog := &jsast.Program{Body: []jsast.Stmt{
		varDecl(jsast.VarVar, "big", bigLit),
		varDecl(jsast.VarVar, "squared", &jsast.BinaryExpr{Operator: "*", Left: ident("big"), Right: ident("big")}),
	}}

	vm := runProgram(t, prog)

	squared, err := vm.GetGlobalVariable("squared")
	require.NoError(t, err)
	bi, ok := squared.(JSBigInt)
	require.True(t, ok)
	require.Equal(t, "85070591730234615847396907784232501249", bi.Big().String())

	asString, err := vm.DisplayString(squared)
	require.NoError(t, err)
	require.Equal(t, "85070591730234615847396907784232501249", asString)
}
