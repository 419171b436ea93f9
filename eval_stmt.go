package modeledjs

import "com.github.sebastianobarrera.modeledjs/modeledjs/jsast"

// runStmts/runStmt implement the statement grammar of spec.md §4.2,
// grounded on the teacher's runStmts/runStmt switch but generalized to
// every ES2022 statement form (loops, switch, try/finally, labels,
// classes) the teacher's ES5.1 subset never had to handle.
func (vm *VM) runStmts(body []Stmt) error {
	for _, s := range body {
		if err := vm.runStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) runStmt(s Stmt) (err error) {
	vm.synCtx.Push(s)
	defer vm.synCtx.Pop(s)

	switch st := s.(type) {
	case *jsast.EmptyStmt:
		return nil

	case *jsast.BlockStmt:
		return vm.withBlockScope(st.List, nil)

	case *jsast.ExpressionStmt:
		_, err := vm.evalExpr(st.Expression)
		return err

	case *jsast.IfStmt:
		test, err := vm.evalExpr(st.Test)
		if err != nil {
			return err
		}
		if vm.coerceToBoolean(test) {
			return vm.runStmt(st.Consequent)
		}
		if st.Alternate != nil {
			return vm.runStmt(st.Alternate)
		}
		return nil

	case *jsast.VarDecl:
		return vm.runVarDecl(st)

	case *jsast.FunctionDecl:
		// already bound during hoisting; nothing to do at statement time
		// unless this is a nested, non-hoisted block redeclaration.
		fn := vm.defineFunction(st.Function, vm.curScope)
		vm.curScope.env.defineVar(vm.curScope, DeclFunction, NameStr(st.Function.Name), fn)
		return nil

	case *jsast.ClassDecl:
		cls, err := vm.evalClassLiteral(st.Class)
		if err != nil {
			return err
		}
		vm.curScope.env.defineVar(vm.curScope, DeclLet, NameStr(st.Class.Name), cls)
		return nil

	case *jsast.ReturnStmt:
		var v JSValue = JSUndefined{}
		if st.Argument != nil {
			v, err = vm.evalExpr(st.Argument)
			if err != nil {
				return err
			}
		}
		return ReturnValue{v}

	case *jsast.ThrowStmt:
		v, err := vm.evalExpr(st.Argument)
		if err != nil {
			return err
		}
		return vm.makeException(v)

	case *jsast.BreakStmt:
		return BreakSignal{label: st.Label}

	case *jsast.ContinueStmt:
		return ContinueSignal{label: st.Label}

	case *jsast.TryStmt:
		return vm.runTryStmt(st)

	case *jsast.WhileStmt:
		return vm.runLoop(st.Label, func() (bool, error) {
			test, err := vm.evalExpr(st.Test)
			if err != nil {
				return false, err
			}
			return vm.coerceToBoolean(test) == JSBoolean(true), nil
		}, nil, st.Body)

	case *jsast.DoWhileStmt:
		first := true
		return vm.runLoop(st.Label, func() (bool, error) {
			if first {
				first = false
				return true, nil
			}
			test, err := vm.evalExpr(st.Test)
			if err != nil {
				return false, err
			}
			return vm.coerceToBoolean(test) == JSBoolean(true), nil
		}, nil, st.Body)

	case *jsast.ForStmt:
		return vm.runForStmt(st)

	case *jsast.ForInStmt:
		return vm.runForInStmt(st)

	case *jsast.ForOfStmt:
		return vm.runForOfStmt(st)

	case *jsast.SwitchStmt:
		return vm.runSwitchStmt(st)

	case *jsast.LabeledStmt:
		err := vm.runStmt(st.Body)
		if brk, ok := err.(BreakSignal); ok && brk.label == st.Label {
			return nil
		}
		return err

	case *jsast.WithStmt:
		return vm.runWithStmt(st)

	case *jsast.ImportDecl, *jsast.ExportNamedDecl, *jsast.ExportDefaultDecl, *jsast.ExportAllDecl:
		// handled by the module linker before evaluation reaches here
		// (module.go); a bare top-level run (script mode) simply ignores
		// the export wrapper and still executes wrapped declarations.
		return vm.runModuleDeclStmt(s)

	default:
		panic("unhandled statement kind in runStmt")
	}
}

func (vm *VM) runVarDecl(st *jsast.VarDecl) error {
	for _, d := range st.Decls {
		var v JSValue = JSUndefined{}
		if d.Init != nil {
			var err error
			v, err = vm.evalExpr(d.Init)
			if err != nil {
				return err
			}
			if id, ok := d.Target.(*jsast.Identifier); ok {
				if fn, isFn := v.(*JSObject); isFn && fn.funcPart != nil && fn.funcPart.name == "" {
					fn.funcPart.name = id.Name
					fn.SetProperty(NameStr("name"), JSString(id.Name), vm)
				}
			}
		}
		kind := DeclVar
		if st.Kind == jsast.VarLet {
			kind = DeclLet
		} else if st.Kind == jsast.VarConst {
			kind = DeclConst
		}
		if err := vm.bindPattern(vm.curScope, kind, d.Target, v); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) withBlockScope(body []Stmt, extra func(*Scope)) error {
	blockScope := newScope(make(DirectEnv))
	blockScope.parent = vm.curScope
	if extra != nil {
		extra(&blockScope)
	}
	hoistDeclarations(body, &blockScope)

	saveScope := vm.curScope
	vm.curScope = &blockScope
	defer func() { vm.curScope = saveScope }()
	return vm.runStmts(body)
}

func (vm *VM) runTryStmt(st *jsast.TryStmt) error {
	err := vm.withBlockScope(st.Body.List, nil)

	if st.Catch != nil {
		if pexc, ok := err.(*ProgramException); ok {
			catchErr := vm.withBlockScope(st.Catch.Body.List, func(s *Scope) {
				if st.Catch.Param != nil {
					vm.bindPattern(s, DeclLet, st.Catch.Param, pexc.Value())
				}
			})
			err = catchErr
		}
	}

	if st.Finally != nil {
		finallyErr := vm.withBlockScope(st.Finally.List, nil)
		if finallyErr != nil {
			return finallyErr
		}
	}
	return err
}

// runLoop factors the break/continue/label handling shared by
// while/do-while/for: test returns whether to keep iterating, update
// runs (if non-nil) after each body execution.
func (vm *VM) runLoop(label string, test func() (bool, error), update func() error, body Stmt) error {
	for {
		cont, err := test()
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
		err = vm.runStmt(body)
		if err != nil {
			if cs, ok := err.(ContinueSignal); ok && (cs.label == "" || cs.label == label) {
				// fall through to update
			} else if bs, ok := err.(BreakSignal); ok && (bs.label == "" || bs.label == label) {
				return nil
			} else {
				return err
			}
		}
		if update != nil {
			if err := update(); err != nil {
				return err
			}
		}
	}
}

func (vm *VM) runForStmt(st *jsast.ForStmt) error {
	loopScope := newScope(make(DirectEnv))
	loopScope.parent = vm.curScope
	saveScope := vm.curScope
	vm.curScope = &loopScope
	defer func() { vm.curScope = saveScope }()

	if vd, ok := st.Init.(*jsast.VarDecl); ok {
		hoistDeclarations([]Stmt{vd}, &loopScope)
		if err := vm.runVarDecl(vd); err != nil {
			return err
		}
	} else if initExpr, ok := st.Init.(jsast.Expr); ok && initExpr != nil {
		if _, err := vm.evalExpr(initExpr); err != nil {
			return err
		}
	}

	return vm.runLoop(st.Label, func() (bool, error) {
		if st.Test == nil {
			return true, nil
		}
		v, err := vm.evalExpr(st.Test)
		if err != nil {
			return false, err
		}
		return bool(vm.coerceToBoolean(v)), nil
	}, func() error {
		if st.Update == nil {
			return nil
		}
		_, err := vm.evalExpr(st.Update)
		return err
	}, st.Body)
}

func (vm *VM) runForInStmt(st *jsast.ForInStmt) error {
	objVal, err := vm.evalExpr(st.Object)
	if err != nil {
		return err
	}
	if _, isU := objVal.(JSUndefined); isU {
		return nil
	}
	if _, isN := objVal.(JSNull); isN {
		return nil
	}
	obj, err := vm.coerceToObject(objVal)
	if err != nil {
		return err
	}

	var keys []string
	seen := map[string]bool{}
	for o := obj; o != nil; o = o.Prototype {
		for _, k := range o.OwnKeys() {
			if k.isSymbol || seen[k.string] {
				continue
			}
			seen[k.string] = true
			if d, ok := o.getOwnPropertyDescriptor(k); ok && !d.enumerable {
				continue
			}
			keys = append(keys, k.string)
		}
	}

	for _, k := range keys {
		iterScope := newScope(make(DirectEnv))
		iterScope.parent = vm.curScope
		saveScope := vm.curScope
		vm.curScope = &iterScope
		if st.Decl != nil {
			kind := DeclVar
			if st.Decl.Kind == jsast.VarLet {
				kind = DeclLet
			} else if st.Decl.Kind == jsast.VarConst {
				kind = DeclConst
			}
			vm.bindPattern(&iterScope, kind, st.Target, JSString(k))
		} else {
			vm.assignToTarget(st.Target.(jsast.Expr), JSString(k))
		}
		err := vm.runStmt(st.Body)
		vm.curScope = saveScope
		if err != nil {
			if bs, ok := err.(BreakSignal); ok && (bs.label == "" || bs.label == st.Label) {
				return nil
			}
			if cs, ok := err.(ContinueSignal); ok && (cs.label == "" || cs.label == st.Label) {
				continue
			}
			return err
		}
	}
	return nil
}

func (vm *VM) runForOfStmt(st *jsast.ForOfStmt) error {
	objVal, err := vm.evalExpr(st.Object)
	if err != nil {
		return err
	}
	items, err := vm.iterateGeneric(objVal)
	if err != nil {
		return err
	}
	for _, item := range items {
		iterScope := newScope(make(DirectEnv))
		iterScope.parent = vm.curScope
		saveScope := vm.curScope
		vm.curScope = &iterScope
		if st.Decl != nil {
			kind := DeclVar
			if st.Decl.Kind == jsast.VarLet {
				kind = DeclLet
			} else if st.Decl.Kind == jsast.VarConst {
				kind = DeclConst
			}
			vm.bindPattern(&iterScope, kind, st.Target, item)
		} else {
			vm.assignToTarget(st.Target.(jsast.Expr), item)
		}
		err := vm.runStmt(st.Body)
		vm.curScope = saveScope
		if err != nil {
			if bs, ok := err.(BreakSignal); ok && (bs.label == "" || bs.label == st.Label) {
				return nil
			}
			if cs, ok := err.(ContinueSignal); ok && (cs.label == "" || cs.label == st.Label) {
				continue
			}
			return err
		}
	}
	return nil
}

func (vm *VM) runSwitchStmt(st *jsast.SwitchStmt) error {
	disc, err := vm.evalExpr(st.Discriminant)
	if err != nil {
		return err
	}

	switchScope := newScope(make(DirectEnv))
	switchScope.parent = vm.curScope
	for _, c := range st.Cases {
		hoistDeclarations(c.Consequent, &switchScope)
	}
	saveScope := vm.curScope
	vm.curScope = &switchScope
	defer func() { vm.curScope = saveScope }()

	matched := -1
	for i, c := range st.Cases {
		if c.Test == nil {
			continue
		}
		cv, err := vm.evalExpr(c.Test)
		if err != nil {
			return err
		}
		if vm.strictEqual(disc, cv) {
			matched = i
			break
		}
	}
	if matched == -1 {
		for i, c := range st.Cases {
			if c.Test == nil {
				matched = i
				break
			}
		}
	}
	if matched == -1 {
		return nil
	}
	for i := matched; i < len(st.Cases); i++ {
		if err := vm.runStmts(st.Cases[i].Consequent); err != nil {
			if bs, ok := err.(BreakSignal); ok && bs.label == "" {
				return nil
			}
			return err
		}
	}
	return nil
}

func (vm *VM) runWithStmt(st *jsast.WithStmt) error {
	objVal, err := vm.evalExpr(st.Object)
	if err != nil {
		return err
	}
	obj, err := vm.coerceToObject(objVal)
	if err != nil {
		return err
	}
	withScope := newScope(ObjectEnv{obj})
	withScope.parent = vm.curScope
	saveScope := vm.curScope
	vm.curScope = &withScope
	defer func() { vm.curScope = saveScope }()
	return vm.runStmt(st.Body)
}
