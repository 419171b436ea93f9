package modeledjs

import "com.github.sebastianobarrera.modeledjs/modeledjs/jsast"

// ClassData is the class-specific payload referenced from a
// constructor's FunctionPart.class, carrying the pieces spec.md §4.4
// needs beyond an ordinary function: the super class, the home object
// used to resolve `super.foo` inside methods, and the field
// initializers run during instance construction.
type ClassData struct {
	name            string
	superClass      *JSObject
	extendsNull     bool // `extends null`: this is bound like a derived class (TDZ until super()) but super() is never callable
	homeObjectProto *JSObject // constructor's own prototype, for super lookup in static methods/blocks
	instanceFields  []*fieldInit
	staticBlocks    [][]jsast.Stmt
	lexicalScope    *Scope
}

type fieldInit struct {
	key      string
	isPriv   bool
	computed jsast.Expr
	init     jsast.Expr
}

// evalClassLiteral builds the constructor function object, wires the
// prototype chain (including the super class's prototype), and
// installs methods/accessors/static members, deferring instance-field
// initialization to DoNew (initInstanceFields) since fields run per
// instance, not once at class-definition time.
func (vm *VM) evalClassLiteral(lit *jsast.ClassLiteral) (JSValue, error) {
	classScope := newScope(make(DirectEnv))
	classScope.parent = vm.curScope

	var superClass *JSObject
	var superProto *JSObject = vm.realm.protoObject
	if lit.SuperClass != nil {
		saveScope := vm.curScope
		vm.curScope = &classScope
		sv, err := vm.evalExpr(lit.SuperClass)
		vm.curScope = saveScope
		if err != nil {
			return nil, err
		}
		sc, ok := sv.(*JSObject)
		if !ok || sc.funcPart == nil {
			return nil, vm.ThrowError("TypeError", "Class extends value is not a constructor")
		}
		superClass = sc
		pv, err := sc.GetProperty(NameStr("prototype"), vm)
		if err != nil {
			return nil, err
		}
		if po, ok := pv.(*JSObject); ok {
			superProto = po
		}
	} else if lit.ExtendsNull {
		superProto = nil
	}

	proto := new(JSObject)
	*proto = NewJSObject(superProto)
	proto.realm = vm.realm

	cd := &ClassData{name: lit.Name, superClass: superClass, extendsNull: lit.ExtendsNull, homeObjectProto: proto, lexicalScope: &classScope}

	ctor := new(JSObject)
	*ctor = NewJSObject(vm.realm.protoFunction)
	if superClass != nil {
		ctor.Prototype = superClass
	}
	ctor.kind = KindClass
	ctor.realm = vm.realm

	var ctorLit *jsast.FunctionLiteral
	for _, m := range lit.Members {
		if m.Kind == jsast.MemberMethod && m.Key == "constructor" && !m.IsStatic {
			ctorLit = m.Value
		}
	}
	if ctorLit == nil {
		ctorLit = defaultConstructor(superClass != nil || lit.ExtendsNull)
	}

	ctor.funcPart = &FunctionPart{
		isStrict:     true,
		isClassCt:    true,
		params:       ctorLit.Params,
		body:         ctorLit.Body,
		lexicalScope: &classScope,
		realm:        vm.realm,
		line:         lit.Line(),
		name:         lit.Name,
		class:        cd,
	}
	ctor.DefineProperty(NameStr("prototype"), Descriptor{value: proto})
	ctor.DefineProperty(NameStr("name"), Descriptor{value: JSString(lit.Name), configurable: true})
	proto.DefineProperty(NameStr("constructor"), Descriptor{value: ctor, writable: true, configurable: true})

	if lit.Name != "" {
		classScope.env.defineVar(&classScope, DeclConst, NameStr(lit.Name), ctor)
	}

	for _, m := range lit.Members {
		if m.Kind == jsast.MemberMethod && m.Key == "constructor" && !m.IsStatic {
			continue
		}
		target := proto
		homeProto := proto
		if m.IsStatic {
			target = ctor
			homeProto = ctor.Prototype
		}

		switch m.Kind {
		case jsast.MemberMethod, jsast.MemberGetter, jsast.MemberSetter:
			key, err := classMemberKey(vm, &classScope, m)
			if err != nil {
				return nil, err
			}
			fn := vm.defineFunction(m.Value, &classScope)
			fn.funcPart.class = &ClassData{homeObjectProto: homeProto}
			switch m.Kind {
			case jsast.MemberMethod:
				target.DefineProperty(key, Descriptor{value: fn, writable: true, configurable: true})
			case jsast.MemberGetter:
				d, _ := target.getOwnPropertyDescriptor(key)
				if d == nil {
					d = target.DefineProperty(key, Descriptor{configurable: true})
				}
				d.get = fn
			case jsast.MemberSetter:
				d, _ := target.getOwnPropertyDescriptor(key)
				if d == nil {
					d = target.DefineProperty(key, Descriptor{configurable: true})
				}
				d.set = fn
			}

		case jsast.MemberField:
			if m.IsStatic {
				saveScope := vm.curScope
				vm.curScope = &classScope
				var v JSValue = JSUndefined{}
				var err error
				if m.FieldInit != nil {
					v, err = vm.evalExpr(m.FieldInit)
				}
				vm.curScope = saveScope
				if err != nil {
					return nil, err
				}
				if m.IsPrivate {
					if ctor.privateFields == nil {
						ctor.privateFields = map[string]JSValue{}
					}
					ctor.privateFields[m.Key] = v
				} else {
					ctor.SetProperty(NameStr(m.Key), v, vm)
				}
			} else {
				cd.instanceFields = append(cd.instanceFields, &fieldInit{key: m.Key, isPriv: m.IsPrivate, computed: m.KeyExpr, init: m.FieldInit})
			}

		case jsast.MemberStaticBlock:
			cd.staticBlocks = append(cd.staticBlocks, m.Block)
		}
	}

	for _, block := range cd.staticBlocks {
		saveScope := vm.curScope
		blockScope := newScope(make(DirectEnv))
		blockScope.parent = &classScope
		blockScope.call = &ScopeCall{this: ctor, classCtx: &ClassData{homeObjectProto: ctor.Prototype}}
		hoistDeclarations(block, &blockScope)
		vm.curScope = &blockScope
		err := vm.runStmts(block)
		vm.curScope = saveScope
		if err != nil {
			return nil, err
		}
	}

	return ctor, nil
}

func classMemberKey(vm *VM, scope *Scope, m *jsast.ClassMember) (Name, error) {
	if m.IsPrivate {
		return NameStr(m.Key), nil
	}
	if m.Computed {
		saveScope := vm.curScope
		vm.curScope = scope
		v, err := vm.evalExpr(m.KeyExpr)
		vm.curScope = saveScope
		if err != nil {
			return Name{}, err
		}
		return vm.toPropertyKey(v)
	}
	return NameStr(m.Key), nil
}

func defaultConstructor(derived bool) *jsast.FunctionLiteral {
	if !derived {
		return &jsast.FunctionLiteral{Body: nil}
	}
	return &jsast.FunctionLiteral{
		Params: []*jsast.Param{{Target: &jsast.Identifier{Name: "args"}, Rest: true}},
		Body: []jsast.Stmt{
			&jsast.ExpressionStmt{Expression: &jsast.CallExpr{
				Callee:    &jsast.SuperExpr{},
				Arguments: []jsast.Expr{&jsast.SpreadElement{Argument: &jsast.Identifier{Name: "args"}}},
			}},
		},
	}
}

// initInstanceFields runs instance field initializers against a
// freshly-allocated (non-derived) instance; for derived classes it
// runs after super() returns (see evalSuperCall).
func (vm *VM) initInstanceFields(inst *JSObject, cd *ClassData) error {
	for _, f := range cd.instanceFields {
		fieldScope := newScope(make(DirectEnv))
		fieldScope.parent = cd.lexicalScope
		fieldScope.call = &ScopeCall{this: inst, classCtx: cd}
		saveScope := vm.curScope
		vm.curScope = &fieldScope
		var v JSValue = JSUndefined{}
		var err error
		if f.init != nil {
			v, err = vm.evalExpr(f.init)
		}
		vm.curScope = saveScope
		if err != nil {
			return err
		}
		if f.isPriv {
			if inst.privateFields == nil {
				inst.privateFields = map[string]JSValue{}
			}
			inst.privateFields[f.key] = v
		} else {
			inst.SetProperty(NameStr(f.key), v, vm)
		}
	}
	return nil
}

// evalSuperCall implements `super(...)` inside a derived constructor:
// arguments are evaluated first even if the super-already-called check
// then fails (spec.md §4.4 invariant on side-effect ordering), `this`
// is created and bound for the remainder of the constructor, and
// instance fields run immediately after.
func (vm *VM) evalSuperCall(ex *jsast.CallExpr) (JSValue, error) {
	args, err := vm.evalArguments(ex.Arguments)
	if err != nil {
		return nil, err
	}

	call := currentCall(vm.curScope)
	if call == nil || call.call.fn == nil || call.call.fn.funcPart.class == nil {
		return nil, vm.ThrowError("SyntaxError", "'super' keyword is only valid inside a derived class constructor")
	}
	cd := call.call.fn.funcPart.class
	if cd.superClass == nil {
		return nil, vm.ThrowError("SyntaxError", "'super' keyword unexpected here")
	}
	if call.call.superCalled {
		return nil, vm.ThrowError("ReferenceError", "Super constructor may only be called once")
	}

	newTarget := call.call.newTarget
	ntObj, _ := newTarget.(*JSObject)
	proto := vm.realm.protoObject
	if ntObj != nil {
		if p, err := ntObj.GetProperty(NameStr("prototype"), vm); err == nil {
			if po, ok := p.(*JSObject); ok {
				proto = po
			}
		}
	}

	superIsDerived := cd.superClass.funcPart.class != nil && cd.superClass.funcPart.class.superClass != nil

	var subject JSValue
	if !superIsDerived {
		pre := new(JSObject)
		*pre = NewJSObject(proto)
		pre.realm = vm.realm
		if cd.superClass.funcPart.class != nil {
			if err := vm.initInstanceFields(pre, cd.superClass.funcPart.class); err != nil {
				return nil, err
			}
		}
		subject = pre
	}

	ret, err := cd.superClass.Invoke(vm, subject, args, CallFlags{isNew: true, newTarget: newTarget})
	if err != nil {
		return nil, err
	}
	inst, ok := ret.(*JSObject)
	if !ok {
		inst, ok = subject.(*JSObject)
		if !ok {
			inst = new(JSObject)
			*inst = NewJSObject(proto)
			inst.realm = vm.realm
		}
	}

	call.call.this = inst
	call.call.superCalled = true

	if err := vm.initInstanceFields(inst, cd); err != nil {
		return nil, err
	}
	return inst, nil
}
