package modeledjs

import (
	"math/big"

	"com.github.sebastianobarrera.modeledjs/modeledjs/jsast"
)

// evalExpr dispatches every expression node of spec.md §4.1, grounded
// on the teacher's evalExpr switch and generalized to the full ES2022
// grammar (classes/generators/async/optional-chaining/destructuring/
// spread/template-literals/BigInt/Symbol all absent from the teacher).
func (vm *VM) evalExpr(e jsast.Expr) (JSValue, error) {
	switch ex := e.(type) {
	case *jsast.Identifier:
		return vm.lookupIdentifier(ex.Name)

	case *jsast.ThisExpr:
		call := currentCall(vm.curScope)
		if call == nil || call.call.this == nil {
			if call != nil && call.call.isDerived && !call.call.superCalled {
				return nil, vm.ThrowError("ReferenceError", "must call super constructor in derived class before accessing 'this'")
			}
			return JSUndefined{}, nil
		}
		return call.call.this, nil

	case *jsast.SuperExpr:
		panic("bug: SuperExpr must be handled by its enclosing MemberExpr/CallExpr")

	case *jsast.NewTargetExpr:
		call := currentCall(vm.curScope)
		if call == nil {
			return JSUndefined{}, nil
		}
		return call.call.newTarget, nil

	case *jsast.ImportMetaExpr:
		return vm.currentModuleMeta()

	case *jsast.NullLiteral:
		return JSNull{}, nil

	case *jsast.BooleanLiteral:
		return JSBoolean(ex.Value), nil

	case *jsast.NumberLiteral:
		return JSNumber(ex.Value), nil

	case *jsast.BigIntLiteral:
		return NewBigInt(ex.Value), nil

	case *jsast.StringLiteral:
		return JSString(ex.Value), nil

	case *jsast.TemplateLiteral:
		return vm.evalTemplateLiteral(ex)

	case *jsast.RegexpLiteral:
		return vm.newRegexp(ex.Pattern, ex.Flags)

	case *jsast.ArrayLiteral:
		return vm.evalArrayLiteral(ex)

	case *jsast.ObjectLiteral:
		return vm.evalObjectLiteral(ex)

	case *jsast.FunctionLiteral:
		return vm.defineFunction(ex, vm.curScope), nil

	case *jsast.ClassLiteral:
		return vm.evalClassLiteral(ex)

	case *jsast.UnaryExpr:
		return vm.evalUnary(ex)

	case *jsast.UpdateExpr:
		return vm.evalUpdate(ex)

	case *jsast.BinaryExpr:
		return vm.evalBinary(ex)

	case *jsast.LogicalExpr:
		return vm.evalLogical(ex)

	case *jsast.AssignExpr:
		return vm.evalAssign(ex)

	case *jsast.ConditionalExpr:
		test, err := vm.evalExpr(ex.Test)
		if err != nil {
			return nil, err
		}
		if vm.coerceToBoolean(test) {
			return vm.evalExpr(ex.Consequent)
		}
		return vm.evalExpr(ex.Alternate)

	case *jsast.MemberExpr:
		v, _, _, err := vm.evalMember(ex)
		return v, err

	case *jsast.CallExpr:
		return vm.evalCall(ex)

	case *jsast.NewExpr:
		return vm.evalNew(ex)

	case *jsast.SequenceExpr:
		var last JSValue = JSUndefined{}
		for _, sub := range ex.Expressions {
			v, err := vm.evalExpr(sub)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil

	case *jsast.YieldExpr:
		return vm.evalYield(ex)

	case *jsast.AwaitExpr:
		return vm.evalAwait(ex)

	case *jsast.SpreadElement:
		return vm.evalExpr(ex.Argument)

	default:
		panic("unhandled expression kind in evalExpr")
	}
}

func (vm *VM) lookupIdentifier(name string) (JSValue, error) {
	if name == "undefined" {
		return JSUndefined{}, nil
	}
	v, found, err := vm.curScope.env.lookupVar(vm.curScope, NameStr(name))
	if err != nil {
		return nil, vm.ThrowError("ReferenceError", "Cannot access '"+name+"' before initialization")
	}
	if !found {
		return nil, vm.ThrowError("ReferenceError", name+" is not defined")
	}
	return v, nil
}

func (vm *VM) evalTemplateLiteral(ex *jsast.TemplateLiteral) (JSValue, error) {
	var out string
	for i, q := range ex.Quasis {
		out += q
		if i < len(ex.Exprs) {
			v, err := vm.evalExpr(ex.Exprs[i])
			if err != nil {
				return nil, err
			}
			s, err := vm.coerceToString(v)
			if err != nil {
				return nil, err
			}
			out += string(s)
		}
	}
	return JSString(out), nil
}

func (vm *VM) evalArrayLiteral(ex *jsast.ArrayLiteral) (JSValue, error) {
	arr := NewJSArray(vm.realm)
	for _, el := range ex.Elements {
		if el == nil {
			arr.arrayPart = append(arr.arrayPart, JSUndefined{})
			continue
		}
		if spread, ok := el.(*jsast.SpreadElement); ok {
			v, err := vm.evalExpr(spread.Argument)
			if err != nil {
				return nil, err
			}
			items, err := vm.iterateToSlice(v)
			if err != nil {
				return nil, err
			}
			arr.arrayPart = append(arr.arrayPart, items...)
			continue
		}
		v, err := vm.evalExpr(el)
		if err != nil {
			return nil, err
		}
		arr.arrayPart = append(arr.arrayPart, v)
	}
	return arr, nil
}

func (vm *VM) evalObjectLiteral(ex *jsast.ObjectLiteral) (JSValue, error) {
	o := new(JSObject)
	*o = NewJSObject(vm.realm.protoObject)
	o.realm = vm.realm

	for _, p := range ex.Properties {
		if p.Kind == jsast.PropSpread {
			v, err := vm.evalExpr(p.Value)
			if err != nil {
				return nil, err
			}
			if src, ok := v.(*JSObject); ok {
				for _, k := range src.OwnKeys() {
					if d, ok := src.getOwnPropertyDescriptor(k); ok && !d.enumerable {
						continue
					}
					kv, err := src.GetProperty(k, vm)
					if err != nil {
						return nil, err
					}
					o.SetProperty(k, kv, vm)
				}
			}
			continue
		}

		key, err := vm.propertyKeyOf(p)
		if err != nil {
			return nil, err
		}

		switch p.Kind {
		case jsast.PropGet, jsast.PropSet:
			fn := vm.defineFunction(p.Value.(*jsast.FunctionLiteral), vm.curScope)
			d, _ := o.getOwnPropertyDescriptor(key)
			if d == nil {
				d = o.DefineProperty(key, Descriptor{configurable: true, enumerable: true})
			}
			if p.Kind == jsast.PropGet {
				d.get = fn
			} else {
				d.set = fn
			}
		default:
			v, err := vm.evalExpr(p.Value)
			if err != nil {
				return nil, err
			}
			if fn, ok := v.(*JSObject); ok && fn.funcPart != nil && fn.funcPart.name == "" {
				fn.funcPart.name = key.String()
			}
			o.DefineProperty(key, Descriptor{value: v, configurable: true, enumerable: true, writable: true})
		}
	}
	return o, nil
}

func (vm *VM) propertyKeyOf(p *jsast.Property) (Name, error) {
	if p.Computed {
		v, err := vm.evalExpr(p.KeyExpr)
		if err != nil {
			return Name{}, err
		}
		return vm.toPropertyKey(v)
	}
	return NameStr(p.Key), nil
}

func (vm *VM) evalUnary(ex *jsast.UnaryExpr) (JSValue, error) {
	if ex.Operator == jsast.UnaryDelete {
		if me, ok := ex.Operand.(*jsast.MemberExpr); ok {
			objVal, _, _, err := vm.evalMemberObject(me)
			if err != nil {
				return nil, err
			}
			obj, err := vm.coerceToObject(objVal)
			if err != nil {
				return nil, err
			}
			key, err := vm.memberKey(me)
			if err != nil {
				return nil, err
			}
			return JSBoolean(obj.DeleteProperty(key)), nil
		}
		return JSBoolean(true), nil
	}

	if ex.Operator == jsast.UnaryTypeof {
		if id, ok := ex.Operand.(*jsast.Identifier); ok {
			v, found, err := vm.curScope.env.lookupVar(vm.curScope, NameStr(id.Name))
			if err != nil || !found {
				return JSString("undefined"), nil
			}
			return JSString(typeofString(v)), nil
		}
	}

	v, err := vm.evalExpr(ex.Operand)
	if err != nil {
		return nil, err
	}

	switch ex.Operator {
	case jsast.UnaryTypeof:
		return JSString(typeofString(v)), nil
	case jsast.UnaryVoid:
		return JSUndefined{}, nil
	case jsast.UnaryNot:
		return !vm.coerceToBoolean(v), nil
	case jsast.UnaryMinus:
		n, err := vm.coerceNumeric(v)
		if err != nil {
			return nil, err
		}
		if bi, ok := n.(JSBigInt); ok {
			return bigIntFromBig(new(big.Int).Neg(bi.v)), nil
		}
		return -n.(JSNumber), nil
	case jsast.UnaryPlus:
		return vm.coerceToNumber(v)
	case jsast.UnaryBitNot:
		i, err := vm.toInt32(v)
		if err != nil {
			return nil, err
		}
		return JSNumber(^i), nil
	default:
		panic("unhandled unary operator")
	}
}

func typeofString(v JSValue) string {
	switch v.(type) {
	case JSUndefined:
		return "undefined"
	case JSNull:
		return "object"
	case JSBoolean:
		return "boolean"
	case JSNumber:
		return "number"
	case JSBigInt:
		return "bigint"
	case JSString:
		return "string"
	case JSSymbol:
		return "symbol"
	case *JSObject:
		if v.(*JSObject).funcPart != nil {
			return "function"
		}
		return "object"
	default:
		return "object"
	}
}

func (vm *VM) evalUpdate(ex *jsast.UpdateExpr) (JSValue, error) {
	old, err := vm.evalExpr(ex.Operand)
	if err != nil {
		return nil, err
	}
	oldNum, err := vm.coerceNumeric(old)
	if err != nil {
		return nil, err
	}
	var newVal JSValue
	if bi, ok := oldNum.(JSBigInt); ok {
		delta := int64(1)
		if ex.Operator != "++" {
			delta = -1
		}
		newVal = bigIntFromBig(new(big.Int).Add(bi.v, big.NewInt(delta)))
	} else {
		n := oldNum.(JSNumber)
		if ex.Operator == "++" {
			newVal = n + 1
		} else {
			newVal = n - 1
		}
	}
	if err := vm.assignToTarget(ex.Operand, newVal); err != nil {
		return nil, err
	}
	if ex.Prefix {
		return newVal, nil
	}
	return oldNum, nil
}

func (vm *VM) evalBinary(ex *jsast.BinaryExpr) (JSValue, error) {
	left, err := vm.evalExpr(ex.Left)
	if err != nil {
		return nil, err
	}
	right, err := vm.evalExpr(ex.Right)
	if err != nil {
		return nil, err
	}
	switch ex.Operator {
	case "+":
		return addition(vm, left, right)
	case "-":
		return arithmeticOp(vm, left, right, OpSub)
	case "*":
		return arithmeticOp(vm, left, right, OpMul)
	case "/":
		return arithmeticOp(vm, left, right, OpDiv)
	case "%":
		return arithmeticOp(vm, left, right, OpMod)
	case "**":
		return arithmeticOp(vm, left, right, OpPow)
	case "<<":
		return arithmeticOp(vm, left, right, OpShl)
	case ">>":
		return arithmeticOp(vm, left, right, OpShr)
	case ">>>":
		return arithmeticOp(vm, left, right, OpUShr)
	case "&":
		return arithmeticOp(vm, left, right, OpAnd)
	case "|":
		return arithmeticOp(vm, left, right, OpOr)
	case "^":
		return arithmeticOp(vm, left, right, OpXor)
	case "===":
		return JSBoolean(vm.strictEqual(left, right)), nil
	case "!==":
		return JSBoolean(!vm.strictEqual(left, right)), nil
	case "==":
		eq, err := vm.looseEqual(left, right)
		return JSBoolean(eq), err
	case "!=":
		eq, err := vm.looseEqual(left, right)
		return JSBoolean(!eq), err
	case "<":
		return boolOrNaN(isLessThan(vm, left, right))
	case ">":
		return boolOrNaN(isLessThan(vm, right, left))
	case "<=":
		b, err := isNotLessThan(vm, right, left)
		return boolOrNaN(b, err)
	case ">=":
		b, err := isNotLessThan(vm, left, right)
		return boolOrNaN(b, err)
	case "instanceof":
		return vm.evalInstanceof(left, right)
	case "in":
		return vm.evalIn(left, right)
	default:
		panic("unhandled binary operator: " + string(ex.Operator))
	}
}

func boolOrNaN(b bool, err error) (JSValue, error) {
	if err != nil {
		return nil, err
	}
	return JSBoolean(b), nil
}

func (vm *VM) evalInstanceof(left, right JSValue) (JSValue, error) {
	ctor, ok := right.(*JSObject)
	if !ok || ctor.funcPart == nil {
		return nil, vm.ThrowError("TypeError", "Right-hand side of 'instanceof' is not callable")
	}
	protoVal, err := ctor.GetProperty(NameStr("prototype"), vm)
	if err != nil {
		return nil, err
	}
	proto, ok := protoVal.(*JSObject)
	if !ok {
		return nil, vm.ThrowError("TypeError", "Function has non-object prototype")
	}
	obj, ok := left.(*JSObject)
	if !ok {
		return JSBoolean(false), nil
	}
	for p := obj.Prototype; p != nil; p = p.Prototype {
		if p == proto {
			return JSBoolean(true), nil
		}
	}
	return JSBoolean(false), nil
}

func (vm *VM) evalIn(left, right JSValue) (JSValue, error) {
	obj, ok := right.(*JSObject)
	if !ok {
		return nil, vm.ThrowError("TypeError", "Cannot use 'in' operator on a non-object")
	}
	key, err := vm.toPropertyKey(left)
	if err != nil {
		return nil, err
	}
	for o := obj; o != nil; o = o.Prototype {
		if o.HasOwnProperty(key) {
			return JSBoolean(true), nil
		}
	}
	return JSBoolean(false), nil
}

func (vm *VM) evalLogical(ex *jsast.LogicalExpr) (JSValue, error) {
	left, err := vm.evalExpr(ex.Left)
	if err != nil {
		return nil, err
	}
	switch ex.Operator {
	case jsast.LogicalAnd:
		if !vm.coerceToBoolean(left) {
			return left, nil
		}
		return vm.evalExpr(ex.Right)
	case jsast.LogicalOr:
		if vm.coerceToBoolean(left) {
			return left, nil
		}
		return vm.evalExpr(ex.Right)
	case jsast.LogicalNullish:
		switch left.(type) {
		case JSUndefined, JSNull:
			return vm.evalExpr(ex.Right)
		default:
			return left, nil
		}
	default:
		panic("unhandled logical operator")
	}
}

func (vm *VM) evalAssign(ex *jsast.AssignExpr) (JSValue, error) {
	if ex.Operator == "=" {
		if pat, ok := ex.Target.(interface{ asPattern() jsast.Pattern }); ok {
			_ = pat
		}
		v, err := vm.evalExpr(ex.Value)
		if err != nil {
			return nil, err
		}
		if err := vm.assignToTarget(ex.Target, v); err != nil {
			return nil, err
		}
		return v, nil
	}

	cur, err := vm.evalExpr(ex.Target)
	if err != nil {
		return nil, err
	}

	op := ex.Operator[:len(ex.Operator)-1]
	if op == "&&" || op == "||" || op == "??" {
		switch op {
		case "&&":
			if !vm.coerceToBoolean(cur) {
				return cur, nil
			}
		case "||":
			if vm.coerceToBoolean(cur) {
				return cur, nil
			}
		case "??":
			switch cur.(type) {
			case JSUndefined, JSNull:
			default:
				return cur, nil
			}
		}
		v, err := vm.evalExpr(ex.Value)
		if err != nil {
			return nil, err
		}
		if err := vm.assignToTarget(ex.Target, v); err != nil {
			return nil, err
		}
		return v, nil
	}

	rhs, err := vm.evalExpr(ex.Value)
	if err != nil {
		return nil, err
	}
	var result JSValue
	switch op {
	case "+":
		result, err = addition(vm, cur, rhs)
	case "-":
		result, err = arithmeticOp(vm, cur, rhs, OpSub)
	case "*":
		result, err = arithmeticOp(vm, cur, rhs, OpMul)
	case "/":
		result, err = arithmeticOp(vm, cur, rhs, OpDiv)
	case "%":
		result, err = arithmeticOp(vm, cur, rhs, OpMod)
	case "**":
		result, err = arithmeticOp(vm, cur, rhs, OpPow)
	case "<<":
		result, err = arithmeticOp(vm, cur, rhs, OpShl)
	case ">>":
		result, err = arithmeticOp(vm, cur, rhs, OpShr)
	case ">>>":
		result, err = arithmeticOp(vm, cur, rhs, OpUShr)
	case "&":
		result, err = arithmeticOp(vm, cur, rhs, OpAnd)
	case "|":
		result, err = arithmeticOp(vm, cur, rhs, OpOr)
	case "^":
		result, err = arithmeticOp(vm, cur, rhs, OpXor)
	default:
		panic("unhandled compound assignment operator: " + ex.Operator)
	}
	if err != nil {
		return nil, err
	}
	if err := vm.assignToTarget(ex.Target, result); err != nil {
		return nil, err
	}
	return result, nil
}

// assignToTarget writes a value to an assignable expression: plain
// identifier, member access, or (array/object-literal-shaped)
// destructuring target reinterpreted as a pattern.
func (vm *VM) assignToTarget(target jsast.Expr, value JSValue) error {
	switch t := target.(type) {
	case *jsast.Identifier:
		return vm.curScope.env.setVar(vm.curScope, NameStr(t.Name), value, vm)
	case *jsast.MemberExpr:
		objVal, _, _, err := vm.evalMemberObject(t)
		if err != nil {
			return err
		}
		obj, err := vm.coerceToObject(objVal)
		if err != nil {
			return err
		}
		key, err := vm.memberKey(t)
		if err != nil {
			return err
		}
		return obj.SetProperty(key, value, vm)
	case *jsast.ArrayLiteral, *jsast.ObjectLiteral:
		pat := exprToPattern(target)
		return vm.assignPattern(pat, value)
	default:
		panic("invalid assignment target")
	}
}

// exprToPattern reinterprets an array/object literal parsed as an
// expression (because the grammar is ambiguous until `=`) as a
// destructuring pattern. The caller hands the result to assignPattern,
// which assigns to existing bindings and properties rather than
// declaring new ones.
func exprToPattern(e jsast.Expr) jsast.Pattern {
	switch t := e.(type) {
	case *jsast.Identifier:
		return t
	case *jsast.MemberExpr:
		return t
	case *jsast.ArrayLiteral:
		elems := make([]*jsast.ArrayPatternElement, len(t.Elements))
		for i, el := range t.Elements {
			if el == nil {
				continue
			}
			if spread, ok := el.(*jsast.SpreadElement); ok {
				elems[i] = &jsast.ArrayPatternElement{Target: &jsast.RestElement{Target: exprToPattern(spread.Argument)}}
				continue
			}
			elems[i] = &jsast.ArrayPatternElement{Target: exprToPattern(el)}
		}
		return &jsast.ArrayPattern{Elements: elems}
	case *jsast.ObjectLiteral:
		var props []*jsast.ObjectPatternProp
		rest := ""
		for _, p := range t.Properties {
			if p.Kind == jsast.PropSpread {
				if id, ok := p.Value.(*jsast.Identifier); ok {
					rest = id.Name
				}
				continue
			}
			props = append(props, &jsast.ObjectPatternProp{Key: p.Key, Computed: p.Computed, KeyExpr: p.KeyExpr, Value: exprToPattern(p.Value)})
		}
		return &jsast.ObjectPattern{Properties: props, Rest: rest}
	case *jsast.AssignExpr:
		return &jsast.AssignPattern{Target: exprToPattern(t.Target), Default: t.Value}
	default:
		panic("cannot reinterpret expression as pattern")
	}
}
