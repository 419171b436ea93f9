package modeledjs

// defineGlobalConstructors installs the global constructor functions
// (Object/Array/String/Number/Boolean/BigInt/Symbol/Map/Set/Promise/
// Error family/Proxy/Reflect), grounded on the teacher's
// addPrimitiveWrapperConstructor generic helper and createGlobalObject,
// extended with the constructors the teacher never had.
func defineGlobalConstructors(realm *Realm, vm *VM, nf func(string, []string, NativeCallback) *JSObject) {
	g := realm.globalObject

	objectCtor := nf("Object", []string{"value"}, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		v := arg(args, 0)
		switch v.(type) {
		case JSUndefined, JSNull:
			o := new(JSObject)
			*o = NewJSObject(realm.protoObject)
			o.realm = realm
			return o, nil
		}
		return vm.coerceToObject(v)
	})
	objectCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoObject})
	installObjectStatics(realm, vm, objectCtor)
	g.DefineProperty(NameStr("Object"), Descriptor{value: objectCtor, writable: true, configurable: true})

	arrayCtor := nf("Array", []string{"length"}, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		arr := NewJSArray(realm)
		if len(args) == 1 {
			if n, ok := args[0].(JSNumber); ok {
				return arr, arr.setArrayLength(int(n))
			}
		}
		arr.arrayPart = append(arr.arrayPart, args...)
		return arr, nil
	})
	arrayCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoArray})
	if scratch, ok := scratchStatics[realm]; ok {
		for _, k := range scratch.OwnKeys() {
			d, _ := scratch.getOwnPropertyDescriptor(k)
			arrayCtor.defineOwn(k, d)
		}
		delete(scratchStatics, realm)
	}
	g.DefineProperty(NameStr("Array"), Descriptor{value: arrayCtor, writable: true, configurable: true})

	strCtor := nf("String", []string{"value"}, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		var s JSString
		if len(args) > 0 {
			sv, err := vm.coerceToString(args[0])
			if err != nil {
				return nil, err
			}
			s = sv
		}
		if flags.isNew {
			return realm.wrapPrimitive(vm, "String", s)
		}
		return s, nil
	})
	strCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoString})
	g.DefineProperty(NameStr("String"), Descriptor{value: strCtor, writable: true, configurable: true})

	numCtor := nf("Number", []string{"value"}, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		var n JSNumber
		if len(args) > 0 {
			nv, err := vm.coerceToNumber(args[0])
			if err != nil {
				return nil, err
			}
			n = nv
		}
		if flags.isNew {
			return realm.wrapPrimitive(vm, "Number", n)
		}
		return n, nil
	})
	numCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoNumber})
	g.DefineProperty(NameStr("Number"), Descriptor{value: numCtor, writable: true, configurable: true})

	boolCtor := nf("Boolean", []string{"value"}, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		b := vm.coerceToBoolean(arg(args, 0))
		if flags.isNew {
			return realm.wrapPrimitive(vm, "Boolean", b)
		}
		return b, nil
	})
	boolCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoBoolean})
	g.DefineProperty(NameStr("Boolean"), Descriptor{value: boolCtor, writable: true, configurable: true})

	symCtor := nf("Symbol", []string{"description"}, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		if flags.isNew {
			return nil, vm.ThrowError("TypeError", "Symbol is not a constructor")
		}
		if len(args) == 0 {
			return NewSymbol("", false), nil
		}
		s, err := vm.coerceToString(args[0])
		if err != nil {
			return nil, err
		}
		return NewSymbol(string(s), true), nil
	})
	symCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoSymbol})
	symCtor.DefineProperty(NameStr("iterator"), Descriptor{value: realm.wellKnown.iterator})
	symCtor.DefineProperty(NameStr("asyncIterator"), Descriptor{value: realm.wellKnown.asyncIterator})
	symCtor.DefineProperty(NameStr("toPrimitive"), Descriptor{value: realm.wellKnown.toPrimitive})
	symCtor.DefineProperty(NameStr("toStringTag"), Descriptor{value: realm.wellKnown.toStringTag})
	symCtor.DefineProperty(NameStr("hasInstance"), Descriptor{value: realm.wellKnown.hasInstance})
	g.DefineProperty(NameStr("Symbol"), Descriptor{value: symCtor, writable: true, configurable: true})

	bigIntCtor := nf("BigInt", []string{"value"}, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		if flags.isNew {
			return nil, vm.ThrowError("TypeError", "BigInt is not a constructor")
		}
		return vm.coerceToBigInt(arg(args, 0))
	})
	bigIntCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoBigint})
	g.DefineProperty(NameStr("BigInt"), Descriptor{value: bigIntCtor, writable: true, configurable: true})

	mapCtor := nf("Map", nil, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		if !flags.isNew {
			return nil, vm.ThrowError("TypeError", "Constructor Map requires 'new'")
		}
		o := new(JSObject)
		*o = NewJSObject(realm.protoMap)
		o.kind = KindMap
		o.realm = realm
		o.mapData = newOrderedMap()
		if len(args) > 0 {
			if entries, ok := args[0].(*JSObject); ok && entries.kind == KindArray {
				for _, e := range entries.arrayPart {
					if pair, ok := e.(*JSObject); ok && len(pair.arrayPart) >= 2 {
						o.mapData.set(vm, pair.arrayPart[0], pair.arrayPart[1])
					}
				}
			}
		}
		return o, nil
	})
	mapCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoMap})
	g.DefineProperty(NameStr("Map"), Descriptor{value: mapCtor, writable: true, configurable: true})

	setCtor := nf("Set", nil, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		if !flags.isNew {
			return nil, vm.ThrowError("TypeError", "Constructor Set requires 'new'")
		}
		o := new(JSObject)
		*o = NewJSObject(realm.protoSet)
		o.kind = KindSet
		o.realm = realm
		o.setData = newOrderedMap()
		if len(args) > 0 {
			items, err := vm.iterateToSlice(args[0])
			if err == nil {
				for _, it := range items {
					o.setData.set(vm, it, it)
				}
			}
		}
		return o, nil
	})
	setCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoSet})
	g.DefineProperty(NameStr("Set"), Descriptor{value: setCtor, writable: true, configurable: true})

	weakMapCtor := nf("WeakMap", nil, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		if !flags.isNew {
			return nil, vm.ThrowError("TypeError", "Constructor WeakMap requires 'new'")
		}
		o := new(JSObject)
		*o = NewJSObject(realm.protoWeakMap)
		o.kind = KindWeakMap
		o.realm = realm
		o.mapData = newOrderedMap()
		if len(args) > 0 {
			if entries, ok := args[0].(*JSObject); ok && entries.kind == KindArray {
				for _, e := range entries.arrayPart {
					if pair, ok := e.(*JSObject); ok && len(pair.arrayPart) >= 2 {
						if _, err := requireObjectKey(vm, pair.arrayPart[0], "weak map key"); err != nil {
							return nil, err
						}
						o.mapData.set(vm, pair.arrayPart[0], pair.arrayPart[1])
					}
				}
			}
		}
		return o, nil
	})
	weakMapCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoWeakMap})
	g.DefineProperty(NameStr("WeakMap"), Descriptor{value: weakMapCtor, writable: true, configurable: true})

	weakSetCtor := nf("WeakSet", nil, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		if !flags.isNew {
			return nil, vm.ThrowError("TypeError", "Constructor WeakSet requires 'new'")
		}
		o := new(JSObject)
		*o = NewJSObject(realm.protoWeakSet)
		o.kind = KindWeakSet
		o.realm = realm
		o.setData = newOrderedMap()
		if len(args) > 0 {
			items, err := vm.iterateToSlice(args[0])
			if err == nil {
				for _, it := range items {
					if _, err := requireObjectKey(vm, it, "weak set value"); err != nil {
						return nil, err
					}
					o.setData.set(vm, it, it)
				}
			}
		}
		return o, nil
	})
	weakSetCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoWeakSet})
	g.DefineProperty(NameStr("WeakSet"), Descriptor{value: weakSetCtor, writable: true, configurable: true})

	weakRefCtor := nf("WeakRef", []string{"target"}, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		if !flags.isNew {
			return nil, vm.ThrowError("TypeError", "Constructor WeakRef requires 'new'")
		}
		target, err := requireObjectKey(vm, arg(args, 0), "weak ref target")
		if err != nil {
			return nil, err
		}
		o := new(JSObject)
		*o = NewJSObject(realm.protoWeakRef)
		o.kind = KindWeakRef
		o.realm = realm
		o.weakRefTarget = target
		return o, nil
	})
	weakRefCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoWeakRef})
	g.DefineProperty(NameStr("WeakRef"), Descriptor{value: weakRefCtor, writable: true, configurable: true})

	finRegCtor := nf("FinalizationRegistry", []string{"cleanupCallback"}, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		if !flags.isNew {
			return nil, vm.ThrowError("TypeError", "Constructor FinalizationRegistry requires 'new'")
		}
		cb, ok := arg(args, 0).(*JSObject)
		if !ok || cb.funcPart == nil {
			return nil, vm.ThrowError("TypeError", "cleanupCallback must be a function")
		}
		o := new(JSObject)
		*o = NewJSObject(realm.protoFinRegist)
		o.kind = KindFinalizationRegistry
		o.realm = realm
		o.finalizer = &FinalizationRegistryData{cleanup: cb}
		return o, nil
	})
	finRegCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoFinRegist})
	g.DefineProperty(NameStr("FinalizationRegistry"), Descriptor{value: finRegCtor, writable: true, configurable: true})

	promiseCtor := nf("Promise", []string{"executor"}, promiseConstructor)
	promiseCtor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoPromise})
	installPromiseStatics(realm, vm, promiseCtor)
	g.DefineProperty(NameStr("Promise"), Descriptor{value: promiseCtor, writable: true, configurable: true})

	for _, kind := range []string{"Error", "TypeError", "RangeError", "ReferenceError", "SyntaxError", "URIError", "EvalError", "AggregateError"} {
		kind := kind
		ctor := nf(kind, []string{"message"}, func(vm *VM, subject JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
			msg := ""
			if len(args) > 0 {
				if _, isU := args[0].(JSUndefined); !isU {
					s, err := vm.coerceToString(args[0])
					if err != nil {
						return nil, err
					}
					msg = string(s)
				}
			}
			var o *JSObject
			if flags.isNew {
				if inst, ok := subject.(*JSObject); ok {
					o = inst
				}
			}
			if o == nil {
				o = new(JSObject)
				*o = NewJSObject(realm.protoError[kind])
			}
			o.kind = KindError
			o.realm = realm
			o.errorData = &ErrorData{kind: kind, message: msg}
			o.SetProperty(NameStr("message"), JSString(msg), vm)
			o.SetProperty(NameStr("stack"), JSString(kind+": "+msg), vm)
			return o, nil
		})
		ctor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoError[kind]})
		realm.protoError[kind].DefineProperty(NameStr("constructor"), Descriptor{value: ctor, writable: true, configurable: true})
		g.DefineProperty(NameStr(kind), Descriptor{value: ctor, writable: true, configurable: true})
	}

	installRegexpConstructor(realm, vm, g, nf)
	installReflectAndProxy(realm, vm, g, nf)
}

func installObjectStatics(realm *Realm, vm *VM, ctor *JSObject) {
	static := func(name string, params []string, cb NativeCallback) {
		o := NewNativeFunction(realm, params, cb)
		o.funcPart.name = name
		ctor.DefineProperty(NameStr(name), Descriptor{value: &o, writable: true, configurable: true})
	}
	static("keys", []string{"obj"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		obj, ok := arg(args, 0).(*JSObject)
		out := NewJSArray(realm)
		if !ok {
			return out, nil
		}
		for _, k := range obj.OwnKeys() {
			if k.isSymbol {
				continue
			}
			if d, ok := obj.getOwnPropertyDescriptor(k); ok && !d.enumerable {
				continue
			}
			out.arrayPart = append(out.arrayPart, JSString(k.string))
		}
		return out, nil
	})
	static("values", []string{"obj"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		obj, ok := arg(args, 0).(*JSObject)
		out := NewJSArray(realm)
		if !ok {
			return out, nil
		}
		for _, k := range obj.OwnKeys() {
			if k.isSymbol {
				continue
			}
			if d, ok := obj.getOwnPropertyDescriptor(k); ok && !d.enumerable {
				continue
			}
			v, err := obj.GetProperty(k, vm)
			if err != nil {
				return nil, err
			}
			out.arrayPart = append(out.arrayPart, v)
		}
		return out, nil
	})
	static("entries", []string{"obj"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		obj, ok := arg(args, 0).(*JSObject)
		out := NewJSArray(realm)
		if !ok {
			return out, nil
		}
		for _, k := range obj.OwnKeys() {
			if k.isSymbol {
				continue
			}
			if d, ok := obj.getOwnPropertyDescriptor(k); ok && !d.enumerable {
				continue
			}
			v, err := obj.GetProperty(k, vm)
			if err != nil {
				return nil, err
			}
			pair := NewJSArray(realm)
			pair.arrayPart = append(pair.arrayPart, JSString(k.string), v)
			out.arrayPart = append(out.arrayPart, pair)
		}
		return out, nil
	})
	static("assign", []string{"target"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		target, ok := arg(args, 0).(*JSObject)
		if !ok {
			return nil, vm.ThrowError("TypeError", "Object.assign target is not an object")
		}
		for _, src := range args[1:] {
			srcObj, ok := src.(*JSObject)
			if !ok {
				continue
			}
			for _, k := range srcObj.OwnKeys() {
				if k.isSymbol {
					continue
				}
				if d, ok := srcObj.getOwnPropertyDescriptor(k); ok && !d.enumerable {
					continue
				}
				v, err := srcObj.GetProperty(k, vm)
				if err != nil {
					return nil, err
				}
				target.SetProperty(k, v, vm)
			}
		}
		return target, nil
	})
	static("freeze", []string{"obj"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		obj, ok := arg(args, 0).(*JSObject)
		if !ok {
			return arg(args, 0), nil
		}
		obj.extensible = false
		for _, d := range obj.descriptors {
			d.writable = false
			d.configurable = false
		}
		return obj, nil
	})
	static("isFrozen", []string{"obj"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		obj, ok := arg(args, 0).(*JSObject)
		if !ok {
			return JSBoolean(true), nil
		}
		if obj.extensible {
			return JSBoolean(false), nil
		}
		for _, d := range obj.descriptors {
			if d.writable || d.configurable {
				return JSBoolean(false), nil
			}
		}
		return JSBoolean(true), nil
	})
	static("getPrototypeOf", []string{"obj"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		obj, err := vm.coerceToObject(arg(args, 0))
		if err != nil {
			return nil, err
		}
		if obj.Prototype == nil {
			return JSNull{}, nil
		}
		return obj.Prototype, nil
	})
	static("setPrototypeOf", []string{"obj", "proto"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		obj, ok := arg(args, 0).(*JSObject)
		if !ok {
			return arg(args, 0), nil
		}
		switch p := arg(args, 1).(type) {
		case *JSObject:
			obj.Prototype = p
		case JSNull:
			obj.Prototype = nil
		}
		return obj, nil
	})
	static("defineProperty", []string{"obj", "key", "descriptor"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		obj, ok := arg(args, 0).(*JSObject)
		if !ok {
			return nil, vm.ThrowError("TypeError", "Object.defineProperty called on non-object")
		}
		key, err := vm.toPropertyKey(arg(args, 1))
		if err != nil {
			return nil, err
		}
		descObj, ok := arg(args, 2).(*JSObject)
		if !ok {
			return nil, vm.ThrowError("TypeError", "Property description must be an object")
		}
		d, err := descriptorFromObject(vm, descObj)
		if err != nil {
			return nil, err
		}
		obj.DefineProperty(key, *d)
		return obj, nil
	})
	static("create", []string{"proto"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := new(JSObject)
		switch p := arg(args, 0).(type) {
		case *JSObject:
			*o = NewJSObject(p)
		default:
			*o = NewJSObject(nil)
		}
		o.realm = realm
		return o, nil
	})
}

func descriptorFromObject(vm *VM, descObj *JSObject) (*Descriptor, error) {
	d := &Descriptor{}
	if descObj.HasOwnProperty(NameStr("value")) {
		v, _ := descObj.GetProperty(NameStr("value"), vm)
		d.value = v
	}
	if descObj.HasOwnProperty(NameStr("get")) {
		v, _ := descObj.GetProperty(NameStr("get"), vm)
		d.get, _ = v.(*JSObject)
	}
	if descObj.HasOwnProperty(NameStr("set")) {
		v, _ := descObj.GetProperty(NameStr("set"), vm)
		d.set, _ = v.(*JSObject)
	}
	if descObj.HasOwnProperty(NameStr("writable")) {
		v, _ := descObj.GetProperty(NameStr("writable"), vm)
		d.writable = bool(vm.coerceToBoolean(v))
	}
	if descObj.HasOwnProperty(NameStr("enumerable")) {
		v, _ := descObj.GetProperty(NameStr("enumerable"), vm)
		d.enumerable = bool(vm.coerceToBoolean(v))
	}
	if descObj.HasOwnProperty(NameStr("configurable")) {
		v, _ := descObj.GetProperty(NameStr("configurable"), vm)
		d.configurable = bool(vm.coerceToBoolean(v))
	}
	return d, nil
}

func installPromiseStatics(realm *Realm, vm *VM, ctor *JSObject) {
	static := func(name string, cb NativeCallback) {
		o := NewNativeFunction(realm, nil, cb)
		o.funcPart.name = name
		ctor.DefineProperty(NameStr(name), Descriptor{value: &o, writable: true, configurable: true})
	}
	static("resolve", func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		v := arg(args, 0)
		if p, ok := v.(*JSObject); ok && p.kind == KindPromise {
			return p, nil
		}
		p := realm.newPromise()
		realm.resolvePromise(p, v)
		return p, nil
	})
	static("reject", func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		p := realm.newPromise()
		realm.rejectPromise(p, arg(args, 0))
		return p, nil
	})
	static("all", func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		items, err := vm.iterateToSlice(arg(args, 0))
		if err != nil {
			return nil, err
		}
		result := realm.newPromise()
		values := make([]JSValue, len(items))
		remaining := len(items)
		if remaining == 0 {
			arr := NewJSArray(realm)
			realm.resolvePromise(result, arr)
			return result, nil
		}
		for i, it := range items {
			idx := i
			if p, ok := it.(*JSObject); ok && p.kind == KindPromise {
				realm.onSettled(p,
					func(v JSValue) {
						values[idx] = v
						remaining--
						if remaining == 0 {
							arr := NewJSArray(realm)
							arr.arrayPart = values
							realm.resolvePromise(result, arr)
						}
					},
					func(v JSValue) { realm.rejectPromise(result, v) },
				)
			} else {
				values[idx] = it
				remaining--
			}
		}
		if remaining == 0 {
			arr := NewJSArray(realm)
			arr.arrayPart = values
			realm.resolvePromise(result, arr)
		}
		return result, nil
	})
}
