package modeledjs

import "com.github.sebastianobarrera.modeledjs/modeledjs/jsast"

// evalMember resolves a MemberExpr to its value, its receiving object
// (for method calls) and the resolved property key, honoring optional
// chaining (spec.md §4.1) and the `super.prop`/`#priv` special forms.
func (vm *VM) evalMember(ex *jsast.MemberExpr) (value JSValue, receiver JSValue, key Name, err error) {
	objVal, isSuper, thisVal, err := vm.evalMemberObject(ex)
	if err != nil {
		return nil, nil, Name{}, err
	}
	if ex.Optional {
		switch objVal.(type) {
		case JSUndefined, JSNull:
			return JSUndefined{}, JSUndefined{}, Name{}, nil
		}
	}

	key, err = vm.memberKey(ex)
	if err != nil {
		return nil, nil, Name{}, err
	}

	if isSuper {
		superObj, ok := objVal.(*JSObject)
		if !ok {
			return nil, nil, Name{}, vm.ThrowError("TypeError", "'super' used outside of a method")
		}
		v, err := superObj.GetProperty(key, vm)
		return v, thisVal, key, err
	}

	if ex.PrivateRef {
		obj, ok := objVal.(*JSObject)
		if !ok {
			return nil, nil, Name{}, vm.ThrowError("TypeError", "Cannot read private member of non-object")
		}
		v, ok := obj.privateFields[key.string]
		if !ok {
			return nil, nil, Name{}, vm.ThrowError("TypeError", "Cannot read private member "+key.string+" from an object whose class did not declare it")
		}
		return v, objVal, key, nil
	}

	switch objVal.(type) {
	case JSUndefined:
		return nil, nil, Name{}, vm.ThrowError("TypeError", "Cannot read properties of undefined (reading '"+key.String()+"')")
	case JSNull:
		return nil, nil, Name{}, vm.ThrowError("TypeError", "Cannot read properties of null (reading '"+key.String()+"')")
	}

	obj, err := vm.coerceToObject(objVal)
	if err != nil {
		return nil, nil, Name{}, err
	}
	v, err := obj.GetProperty(key, vm)
	return v, objVal, key, err
}

// evalMemberObject evaluates just the object/base half of a member
// expression, reporting whether the base was `super` (in which case
// the returned value is the home object's [[Prototype]], and thisVal
// is the real `this` to use as receiver for the eventual get/call).
func (vm *VM) evalMemberObject(ex *jsast.MemberExpr) (objVal JSValue, isSuper bool, thisVal JSValue, err error) {
	if _, ok := ex.Object.(*jsast.SuperExpr); ok {
		call := currentCall(vm.curScope)
		if call == nil || call.call.classCtx == nil {
			return nil, false, nil, vm.ThrowError("SyntaxError", "'super' keyword is only valid inside a class")
		}
		home := call.call.classCtx.homeObjectProto
		return home, true, call.call.this, nil
	}
	v, err := vm.evalExpr(ex.Object)
	return v, false, nil, err
}

func (vm *VM) memberKey(ex *jsast.MemberExpr) (Name, error) {
	if ex.Computed {
		v, err := vm.evalExpr(ex.PropExpr)
		if err != nil {
			return Name{}, err
		}
		return vm.toPropertyKey(v)
	}
	return NameStr(ex.Property), nil
}

// evalCall implements CallExpression evaluation, including method
// calls (subject resolution mirrors the teacher's CallExpression case),
// `super(...)` calls in derived constructors, and optional chaining
// short-circuit.
func (vm *VM) evalCall(ex *jsast.CallExpr) (JSValue, error) {
	if _, ok := ex.Callee.(*jsast.SuperExpr); ok {
		return vm.evalSuperCall(ex)
	}
	if id, ok := ex.Callee.(*jsast.Identifier); ok && id.Name == "import" && !vm.HasGlobalVariable("import") {
		return vm.evalDynamicImport(ex)
	}

	var fnVal JSValue
	var subject JSValue = JSUndefined{}
	var err error

	if me, ok := ex.Callee.(*jsast.MemberExpr); ok {
		fnVal, subject, _, err = vm.evalMember(me)
		if err != nil {
			return nil, err
		}
		if me.Optional {
			switch fnVal.(type) {
			case JSUndefined, JSNull:
				return JSUndefined{}, nil
			}
		}
	} else {
		fnVal, err = vm.evalExpr(ex.Callee)
		if err != nil {
			return nil, err
		}
	}

	if ex.Optional {
		switch fnVal.(type) {
		case JSUndefined, JSNull:
			return JSUndefined{}, nil
		}
	}

	args, err := vm.evalArguments(ex.Arguments)
	if err != nil {
		return nil, err
	}

	fnObj, ok := fnVal.(*JSObject)
	if !ok || fnObj.funcPart == nil {
		return nil, vm.ThrowError("TypeError", calleeName(ex.Callee)+" is not a function")
	}
	return fnObj.Invoke(vm, subject, args, CallFlags{})
}

func calleeName(e jsast.Expr) string {
	switch t := e.(type) {
	case *jsast.Identifier:
		return t.Name
	case *jsast.MemberExpr:
		return t.Property
	default:
		return "expression"
	}
}

func (vm *VM) evalArguments(exprs []jsast.Expr) ([]JSValue, error) {
	var args []JSValue
	for _, a := range exprs {
		if spread, ok := a.(*jsast.SpreadElement); ok {
			v, err := vm.evalExpr(spread.Argument)
			if err != nil {
				return nil, err
			}
			items, err := vm.iterateToSlice(v)
			if err != nil {
				return nil, err
			}
			args = append(args, items...)
			continue
		}
		v, err := vm.evalExpr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

func (vm *VM) evalNew(ex *jsast.NewExpr) (JSValue, error) {
	calleeVal, err := vm.evalExpr(ex.Callee)
	if err != nil {
		return nil, err
	}
	ctor, ok := calleeVal.(*JSObject)
	if !ok || ctor.funcPart == nil {
		return nil, vm.ThrowError("TypeError", calleeName(ex.Callee)+" is not a constructor")
	}
	args, err := vm.evalArguments(ex.Arguments)
	if err != nil {
		return nil, err
	}
	return vm.DoNew(ctor, args, nil)
}

// iterateGeneric drains any iterable via its Symbol.iterator method,
// the fallback path for for-of/spread/destructuring over non-arrays
// (Maps, Sets, Strings, generators, user iterables).
func (vm *VM) iterateGeneric(value JSValue) ([]JSValue, error) {
	if s, ok := value.(JSString); ok {
		runes := []rune(string(s))
		out := make([]JSValue, len(runes))
		for i, r := range runes {
			out[i] = JSString(string(r))
		}
		return out, nil
	}

	obj, ok := value.(*JSObject)
	if !ok {
		return nil, vm.ThrowError("TypeError", "value is not iterable")
	}
	if obj.kind == KindArray {
		return append([]JSValue{}, obj.arrayPart...), nil
	}
	if obj.kind == KindMap {
		var out []JSValue
		for _, k := range obj.mapData.keys {
			v, _ := obj.mapData.get(vm, k)
			pair := NewJSArray(vm.realm)
			pair.arrayPart = append(pair.arrayPart, k, v)
			out = append(out, pair)
		}
		return out, nil
	}
	if obj.kind == KindSet {
		return append([]JSValue{}, obj.setData.keys...), nil
	}

	iterFnVal, err := obj.GetProperty(NameSym(vm.realm.wellKnown.iterator), vm)
	if err != nil {
		return nil, err
	}
	iterFn, ok := iterFnVal.(*JSObject)
	if !ok || iterFn.funcPart == nil {
		return nil, vm.ThrowError("TypeError", "value is not iterable")
	}
	iterVal, err := iterFn.Invoke(vm, obj, nil, CallFlags{})
	if err != nil {
		return nil, err
	}
	iterObj, ok := iterVal.(*JSObject)
	if !ok {
		return nil, vm.ThrowError("TypeError", "Result of the Symbol.iterator method is not an object")
	}

	var out []JSValue
	for {
		nextVal, err := iterObj.GetProperty(NameStr("next"), vm)
		if err != nil {
			return nil, err
		}
		nextFn, ok := nextVal.(*JSObject)
		if !ok || nextFn.funcPart == nil {
			return nil, vm.ThrowError("TypeError", "iterator.next is not a function")
		}
		res, err := nextFn.Invoke(vm, iterObj, nil, CallFlags{})
		if err != nil {
			return nil, err
		}
		resObj, ok := res.(*JSObject)
		if !ok {
			return nil, vm.ThrowError("TypeError", "Iterator result is not an object")
		}
		doneVal, err := resObj.GetProperty(NameStr("done"), vm)
		if err != nil {
			return nil, err
		}
		if vm.coerceToBoolean(doneVal) {
			break
		}
		v, err := resObj.GetProperty(NameStr("value"), vm)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if len(out) > 10_000_000 {
			return nil, vm.ThrowError("RangeError", "iterator produced too many values")
		}
	}
	return out, nil
}
