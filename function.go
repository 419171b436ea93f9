package modeledjs

import (
	"com.github.sebastianobarrera.modeledjs/modeledjs/jsast"
)

// paramListFromNames wraps plain Go strings as jsast.Param, for native
// functions and bootstrap constructors that don't go through a parser.
func paramListFromNames(names []string) []*jsast.Param {
	params := make([]*jsast.Param, len(names))
	for i, n := range names {
		params[i] = &jsast.Param{Target: &jsast.Identifier{Name: n}}
	}
	return params
}

// FuncFlags controls how defineFunction builds a JSObject's FunctionPart,
// mirroring the teacher's FuncFlags but extended with async/generator.
type FuncFlags struct {
	IsArrow bool
	IsAsync bool
	IsGen   bool
}

func (vm *VM) defineFunction(lit *jsast.FunctionLiteral, scope *Scope) *JSObject {
	o := new(JSObject)
	*o = NewJSObject(vm.realm.protoFunction)
	o.kind = KindFunction
	o.realm = vm.realm
	fp := &FunctionPart{
		isStrict:     lit.IsStrict || isStrict(scope),
		isArrow:      lit.IsArrow,
		isAsync:      lit.IsAsync,
		isGen:        lit.IsGen,
		params:       lit.Params,
		body:         lit.Body,
		exprBody:     lit.ExprBody,
		lexicalScope: scope,
		realm:        vm.realm,
		line:         lit.Line(),
		name:         lit.Name,
	}
	o.funcPart = fp

	if !lit.IsArrow {
		proto := new(JSObject)
		*proto = NewJSObject(vm.realm.protoObject)
		proto.realm = vm.realm
		proto.DefineProperty(NameStr("constructor"), Descriptor{value: o, writable: true, configurable: true})
		o.DefineProperty(NameStr("prototype"), Descriptor{value: proto, writable: true})
	}
	paramCount := 0
	for _, p := range fp.params {
		if p.Rest || p.Default != nil {
			break
		}
		paramCount++
	}
	o.DefineProperty(NameStr("length"), Descriptor{value: JSNumber(paramCount), configurable: true})
	o.DefineProperty(NameStr("name"), Descriptor{value: JSString(lit.Name), configurable: true})
	return o
}

// Invoke is the single call-dispatch path for every callable JSObject:
// native, ordinary, arrow, bound, class-constructor. Mirrors the
// teacher's Invoke but threads realm-scoped scopes, the `new` protocol,
// and async/generator bodies (an async body runs under driveAsyncTask
// and a generator body under generatorNext, which catch the
// AsyncSuspensionSignal/GeneratorYieldSignal values those bodies raise).
func (jso *JSObject) Invoke(vm *VM, subject JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
	fp := jso.funcPart
	if fp == nil {
		return nil, vm.ThrowError("TypeError", "value is not callable")
	}

	if fp.boundTarget != nil {
		allArgs := append(append([]JSValue{}, fp.boundArgs...), args...)
		return fp.boundTarget.Invoke(vm, fp.boundThis, allArgs, flags)
	}

	if fp.native != nil {
		return fp.native(vm, subject, args, flags)
	}

	if fp.isGen {
		return vm.startGenerator(jso, subject, args, flags)
	}

	callScope := newScope(make(DirectEnv))
	callScope.parent = fp.lexicalScope
	callScope.isSetStrict = fp.isStrict

	this := subject
	if !fp.isArrow {
		if fp.isStrict {
			if this == nil {
				this = JSUndefined{}
			}
		} else {
			if this == nil {
				this = JSUndefined{}
			}
			switch this.(type) {
			case JSUndefined, JSNull:
				this = vm.realm.globalObject
			}
		}
	}

	var newTarget JSValue = JSUndefined{}
	if flags.isNew {
		newTarget = flags.newTarget
		if newTarget == nil {
			newTarget = jso
		}
	}

	if !fp.isArrow {
		callScope.call = &ScopeCall{
			this:          this,
			newTarget:     newTarget,
			fn:            jso,
			debugName:     fp.name,
			isConstructor: fp.isClassCt,
			isDerived:     fp.class != nil && (fp.class.superClass != nil || fp.class.extendsNull),
		}
		if callScope.call.isDerived {
			// derived-constructor `this` starts in TDZ until super() runs
			// (spec.md §4.4).
			callScope.call.this = nil
		}
	}

	paramScope := newScope(make(DirectEnv))
	paramScope.parent = &callScope
	paramScope.isParamScope = true
	if err := vm.bindParameters(&paramScope, fp.params, args); err != nil {
		return nil, err
	}

	if !fp.isArrow {
		argsObj := vm.makeArgumentsObject(&paramScope, fp.params, args)
		paramScope.env.(DirectEnv).defineVar(&paramScope, DeclVar, NameStr("arguments"), argsObj)
		callScope.call.arguments = argsObj
	}

	bodyScope := newScope(make(DirectEnv))
	bodyScope.parent = &paramScope

	if fp.isAsync {
		return vm.runAsyncFunction(jso, &bodyScope, fp)
	}

	if fp.exprBody != nil {
		saveScope, saveSyn := vm.curScope, vm.synCtx
		vm.curScope = &bodyScope
		defer func() { vm.curScope, vm.synCtx = saveScope, saveSyn }()
		return vm.evalExpr(fp.exprBody)
	}

	hoistDeclarations(fp.body, &bodyScope)

	saveScope := vm.curScope
	vm.curScope = &bodyScope
	defer func() { vm.curScope = saveScope }()

	err := vm.runStmts(fp.body)
	var result JSValue = JSUndefined{}
	if rv, ok := err.(ReturnValue); ok {
		result, err = rv.JSValue, nil
	}
	if err != nil {
		return nil, err
	}
	if _, isUndef := result.(JSUndefined); isUndef && callScope.call != nil && callScope.call.isDerived && callScope.call.this != nil {
		// a derived constructor completing without an explicit object
		// yields the `this` that super() initialized.
		return callScope.call.this, nil
	}
	return result, nil
}

// bindParameters implements the FormalParameters binding algorithm of
// spec.md §4.3: positional, default-valued, and rest parameters, plus
// destructuring targets.
func (vm *VM) bindParameters(scope *Scope, params []*jsast.Param, args []JSValue) error {
	i := 0
	for _, p := range params {
		if p.Rest {
			rest := NewJSArray(vm.realm)
			for ; i < len(args); i++ {
				rest.arrayPart = append(rest.arrayPart, args[i])
			}
			return vm.bindPattern(scope, DeclParameter, p.Target, rest)
		}
		var v JSValue = JSUndefined{}
		if i < len(args) {
			v = args[i]
		}
		i++
		if _, isUndef := v.(JSUndefined); isUndef && p.Default != nil {
			saveScope := vm.curScope
			vm.curScope = scope
			dv, err := vm.evalExpr(p.Default)
			vm.curScope = saveScope
			if err != nil {
				return err
			}
			v = dv
		}
		if err := vm.bindPattern(scope, DeclParameter, p.Target, v); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) makeArgumentsObject(paramScope *Scope, params []*jsast.Param, args []JSValue) *JSObject {
	o := new(JSObject)
	*o = NewJSObject(vm.realm.protoObject)
	o.kind = KindArguments
	o.realm = vm.realm
	for i, a := range args {
		o.DefineProperty(NameStr(itoa(i)), Descriptor{value: a, writable: true, enumerable: true, configurable: true})
	}
	o.DefineProperty(NameStr("length"), Descriptor{value: JSNumber(len(args)), writable: true, configurable: true})
	o.argsData = &ArgumentsData{mapped: false, paramEnv: paramScope}
	return o
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// bindPattern implements destructuring binding (spec.md §4.1) for
// parameters, var/let/const declarators, and assignment targets that
// are patterns rather than plain identifiers.
func (vm *VM) bindPattern(scope *Scope, kind DeclKind, target jsast.Pattern, value JSValue) error {
	switch t := target.(type) {
	case *jsast.Identifier:
		declareInScope(scope, kind, NameStr(t.Name), value)
		return nil
	case *jsast.AssignPattern:
		if _, isUndef := value.(JSUndefined); isUndef {
			saveScope := vm.curScope
			vm.curScope = scope
			dv, err := vm.evalExpr(t.Default)
			vm.curScope = saveScope
			if err != nil {
				return err
			}
			value = dv
		}
		return vm.bindPattern(scope, kind, t.Target, value)
	case *jsast.ArrayPattern:
		items, err := vm.iterateToSlice(value)
		if err != nil {
			return err
		}
		for i, el := range t.Elements {
			if el.Target == nil {
				continue
			}
			if rest, isRest := el.Target.(*jsast.RestElement); isRest {
				restArr := NewJSArray(vm.realm)
				if i < len(items) {
					restArr.arrayPart = append(restArr.arrayPart, items[i:]...)
				}
				return vm.bindPattern(scope, kind, rest.Target, restArr)
			}
			var v JSValue = JSUndefined{}
			if i < len(items) {
				v = items[i]
			}
			if err := vm.bindPattern(scope, kind, el.Target, v); err != nil {
				return err
			}
		}
		return nil
	case *jsast.ObjectPattern:
		obj, ok := value.(*JSObject)
		used := map[string]bool{}
		for _, p := range t.Properties {
			key := p.Key
			if p.Computed {
				saveScope := vm.curScope
				vm.curScope = scope
				kv, err := vm.evalExpr(p.KeyExpr)
				vm.curScope = saveScope
				if err != nil {
					return err
				}
				name, err := vm.toPropertyKey(kv)
				if err != nil {
					return err
				}
				key = name.String()
			}
			used[key] = true
			var v JSValue = JSUndefined{}
			if ok {
				var err error
				v, err = obj.GetProperty(NameStr(key), vm)
				if err != nil {
					return err
				}
			} else if value != nil {
				boxed, err := vm.coerceToObject(value)
				if err != nil {
					return err
				}
				v, err = boxed.GetProperty(NameStr(key), vm)
				if err != nil {
					return err
				}
			}
			if err := vm.bindPattern(scope, kind, p.Value, v); err != nil {
				return err
			}
		}
		if t.Rest != "" {
			rest := new(JSObject)
			*rest = NewJSObject(vm.realm.protoObject)
			rest.realm = vm.realm
			if ok {
				for _, k := range obj.OwnKeys() {
					if k.isSymbol || used[k.string] {
						continue
					}
					d, _ := obj.getOwnPropertyDescriptor(k)
					if d != nil && !d.enumerable {
						continue
					}
					v, err := obj.GetProperty(k, vm)
					if err != nil {
						return err
					}
					rest.SetProperty(k, v, vm)
				}
			}
			declareInScope(scope, kind, NameStr(t.Rest), rest)
		}
		return nil
	default:
		panic("unknown pattern kind in bindPattern")
	}
}

// assignPattern implements destructuring assignment (as opposed to
// destructuring declaration, see bindPattern): identifier/member
// targets are assigned via the normal assignment path rather than
// declared into a scope.
func (vm *VM) assignPattern(target jsast.Pattern, value JSValue) error {
	switch t := target.(type) {
	case *jsast.Identifier:
		return vm.curScope.env.setVar(vm.curScope, NameStr(t.Name), value, vm)
	case *jsast.MemberExpr:
		return vm.assignToTarget(t, value)
	case *jsast.AssignPattern:
		if _, isUndef := value.(JSUndefined); isUndef {
			dv, err := vm.evalExpr(t.Default)
			if err != nil {
				return err
			}
			value = dv
		}
		return vm.assignPattern(t.Target, value)
	case *jsast.ArrayPattern:
		items, err := vm.iterateToSlice(value)
		if err != nil {
			return err
		}
		for i, el := range t.Elements {
			if el.Target == nil {
				continue
			}
			if rest, isRest := el.Target.(*jsast.RestElement); isRest {
				restArr := NewJSArray(vm.realm)
				if i < len(items) {
					restArr.arrayPart = append(restArr.arrayPart, items[i:]...)
				}
				return vm.assignPattern(rest.Target, restArr)
			}
			var v JSValue = JSUndefined{}
			if i < len(items) {
				v = items[i]
			}
			if err := vm.assignPattern(el.Target, v); err != nil {
				return err
			}
		}
		return nil
	case *jsast.ObjectPattern:
		obj, ok := value.(*JSObject)
		used := map[string]bool{}
		for _, p := range t.Properties {
			key := p.Key
			if p.Computed {
				kv, err := vm.evalExpr(p.KeyExpr)
				if err != nil {
					return err
				}
				name, err := vm.toPropertyKey(kv)
				if err != nil {
					return err
				}
				key = name.String()
			}
			used[key] = true
			var v JSValue = JSUndefined{}
			if ok {
				var err error
				v, err = obj.GetProperty(NameStr(key), vm)
				if err != nil {
					return err
				}
			}
			if err := vm.assignPattern(p.Value, v); err != nil {
				return err
			}
		}
		if t.Rest != "" {
			rest := new(JSObject)
			*rest = NewJSObject(vm.realm.protoObject)
			rest.realm = vm.realm
			if ok {
				for _, k := range obj.OwnKeys() {
					if k.isSymbol || used[k.string] {
						continue
					}
					v, err := obj.GetProperty(k, vm)
					if err != nil {
						return err
					}
					rest.SetProperty(k, v, vm)
				}
			}
			return vm.curScope.env.setVar(vm.curScope, NameStr(t.Rest), rest, vm)
		}
		return nil
	default:
		panic("unknown pattern kind in assignPattern")
	}
}

func declareInScope(scope *Scope, kind DeclKind, name Name, value JSValue) {
	target := scope
	if kind == DeclVar {
		target = nearestVariableScope(scope)
	}
	target.env.defineVar(target, kind, name, value)
}

// iterateToSlice drains an iterable (array fast-path, else via
// Symbol.iterator) into a Go slice, used by array-destructuring and
// spread.
func (vm *VM) iterateToSlice(value JSValue) ([]JSValue, error) {
	if obj, ok := value.(*JSObject); ok && obj.kind == KindArray {
		return append([]JSValue{}, obj.arrayPart...), nil
	}
	return vm.iterateGeneric(value)
}

func NewBoundFunction(realm *Realm, target *JSObject, boundThis JSValue, boundArgs []JSValue) *JSObject {
	o := new(JSObject)
	*o = NewJSObject(realm.protoFunction)
	o.kind = KindFunction
	o.realm = realm
	o.funcPart = &FunctionPart{
		isStrict:    true,
		boundTarget: target,
		boundThis:   boundThis,
		boundArgs:   boundArgs,
		name:        "bound " + target.funcPart.name,
	}
	o.DefineProperty(NameStr("name"), Descriptor{value: JSString(o.funcPart.name), configurable: true})
	return o
}

// DoNew implements the `new` operator / Reflect.construct: allocate an
// ordinary object linked to the constructor's .prototype (unless it's
// a derived class, whose `this` is deferred to super()), then invoke.
func (vm *VM) DoNew(ctor *JSObject, args []JSValue, newTarget JSValue) (JSValue, error) {
	if ctor.funcPart == nil {
		return nil, vm.ThrowError("TypeError", "not a constructor")
	}
	if newTarget == nil {
		newTarget = ctor
	}

	isDerived := ctor.funcPart.class != nil && (ctor.funcPart.class.superClass != nil || ctor.funcPart.class.extendsNull)

	var this JSValue
	if !isDerived {
		ntObj, _ := newTarget.(*JSObject)
		proto := vm.realm.protoObject
		if ntObj != nil {
			if p, err := ntObj.GetProperty(NameStr("prototype"), vm); err == nil {
				if po, ok := p.(*JSObject); ok {
					proto = po
				}
			}
		}
		inst := new(JSObject)
		*inst = NewJSObject(proto)
		inst.realm = vm.realm
		if ctor.funcPart.class != nil {
			if err := vm.initInstanceFields(inst, ctor.funcPart.class); err != nil {
				return nil, err
			}
		}
		this = inst
	}

	ret, err := ctor.Invoke(vm, this, args, CallFlags{isNew: true, newTarget: newTarget})
	if err != nil {
		return nil, err
	}
	if retObj, ok := ret.(*JSObject); ok {
		return retObj, nil
	}
	if this != nil {
		return this, nil
	}
	return nil, vm.ThrowError("ReferenceError", "must call super constructor before returning from derived constructor")
}
