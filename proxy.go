package modeledjs

import "go.uber.org/zap"

// ProxyData backs KindProxy objects: the [[ProxyTarget]]/[[ProxyHandler]]
// internal slots of spec.md §4.7, forwarded to from every core
// JSObject operation (GetProperty/SetProperty/HasOwnProperty/
// DeleteProperty/OwnKeys in object.go) rather than threaded through
// every call site individually.
type ProxyData struct {
	target  *JSObject
	handler *JSObject
}

// trap looks up a named handler function, returning ok=false when the
// handler has none (the trap's default behavior then falls through to
// the target directly, per spec.md §4.7) or when vm is nil: callers
// reached without a live VM (HasOwnProperty/DeleteProperty/OwnKeys
// carry no vm parameter in this object model) cannot actually invoke a
// user trap function, so they fall back to the default behavior too.
func (pd *ProxyData) trap(vm *VM, name string) (*JSObject, bool) {
	if vm == nil {
		return nil, false
	}
	v, err := pd.handler.GetProperty(NameStr(name), vm)
	if err != nil {
		return nil, false
	}
	fn, ok := v.(*JSObject)
	if !ok || fn.funcPart == nil {
		return nil, false
	}
	vm.withScopeLogger().Debug("proxy trap invoked", zap.String("trap", name))
	return fn, true
}

func (pd *ProxyData) proxyGet(vm *VM, name Name, receiver JSValue) (JSValue, error) {
	if fn, ok := pd.trap(vm, "get"); ok {
		return fn.Invoke(vm, pd.handler, []JSValue{pd.target, nameToJSValue(name), receiver}, CallFlags{})
	}
	return pd.target.GetProperty(name, vm)
}

func (pd *ProxyData) proxySet(vm *VM, name Name, value JSValue, receiver JSValue) error {
	if fn, ok := pd.trap(vm, "set"); ok {
		_, err := fn.Invoke(vm, pd.handler, []JSValue{pd.target, nameToJSValue(name), value, receiver}, CallFlags{})
		return err
	}
	return pd.target.SetProperty(name, value, vm)
}

func (pd *ProxyData) proxyHas(vm *VM, name Name) (bool, error) {
	if fn, ok := pd.trap(vm, "has"); ok {
		v, err := fn.Invoke(vm, pd.handler, []JSValue{pd.target, nameToJSValue(name)}, CallFlags{})
		if err != nil {
			return false, err
		}
		return bool(vm.coerceToBoolean(v)), nil
	}
	object := pd.target
	for ; object != nil; object = object.Prototype {
		if object.HasOwnProperty(name) {
			return true, nil
		}
	}
	return false, nil
}

func (pd *ProxyData) proxyDelete(vm *VM, name Name) (bool, error) {
	if fn, ok := pd.trap(vm, "deleteProperty"); ok {
		v, err := fn.Invoke(vm, pd.handler, []JSValue{pd.target, nameToJSValue(name)}, CallFlags{})
		if err != nil {
			return false, err
		}
		return bool(vm.coerceToBoolean(v)), nil
	}
	return pd.target.DeleteProperty(name), nil
}

func (pd *ProxyData) proxyOwnKeys(vm *VM) ([]Name, error) {
	if fn, ok := pd.trap(vm, "ownKeys"); ok {
		v, err := fn.Invoke(vm, pd.handler, []JSValue{pd.target}, CallFlags{})
		if err != nil {
			return nil, err
		}
		arr, ok := v.(*JSObject)
		if !ok {
			return nil, vm.ThrowError("TypeError", "'ownKeys' trap must return an array")
		}
		keys := make([]Name, 0, len(arr.arrayPart))
		for _, el := range arr.arrayPart {
			if s, ok := el.(JSString); ok {
				keys = append(keys, NameStr(string(s)))
			}
		}
		return keys, nil
	}
	return pd.target.OwnKeys(), nil
}

func (pd *ProxyData) proxyGetPrototypeOf(vm *VM) (JSValue, error) {
	if fn, ok := pd.trap(vm, "getPrototypeOf"); ok {
		return fn.Invoke(vm, pd.handler, []JSValue{pd.target}, CallFlags{})
	}
	if pd.target.Prototype == nil {
		return JSNull{}, nil
	}
	return pd.target.Prototype, nil
}

func (pd *ProxyData) proxySetPrototypeOf(vm *VM, proto JSValue) (bool, error) {
	if fn, ok := pd.trap(vm, "setPrototypeOf"); ok {
		v, err := fn.Invoke(vm, pd.handler, []JSValue{pd.target, proto}, CallFlags{})
		if err != nil {
			return false, err
		}
		return bool(vm.coerceToBoolean(v)), nil
	}
	switch p := proto.(type) {
	case *JSObject:
		pd.target.Prototype = p
	case JSNull:
		pd.target.Prototype = nil
	}
	return true, nil
}

func (pd *ProxyData) proxyDefineProperty(vm *VM, name Name, desc *Descriptor) (bool, error) {
	if fn, ok := pd.trap(vm, "defineProperty"); ok {
		descObj := descriptorToObject(vm, desc)
		v, err := fn.Invoke(vm, pd.handler, []JSValue{pd.target, nameToJSValue(name), descObj}, CallFlags{})
		if err != nil {
			return false, err
		}
		return bool(vm.coerceToBoolean(v)), nil
	}
	pd.target.defineOwn(name, desc)
	return true, nil
}

func (pd *ProxyData) proxyGetOwnPropertyDescriptor(vm *VM, name Name) (JSValue, error) {
	if fn, ok := pd.trap(vm, "getOwnPropertyDescriptor"); ok {
		return fn.Invoke(vm, pd.handler, []JSValue{pd.target, nameToJSValue(name)}, CallFlags{})
	}
	d, ok := pd.target.getOwnPropertyDescriptor(name)
	if !ok {
		return JSUndefined{}, nil
	}
	return descriptorToObject(vm, d), nil
}

func (pd *ProxyData) proxyIsExtensible(vm *VM) (bool, error) {
	if fn, ok := pd.trap(vm, "isExtensible"); ok {
		v, err := fn.Invoke(vm, pd.handler, []JSValue{pd.target}, CallFlags{})
		if err != nil {
			return false, err
		}
		return bool(vm.coerceToBoolean(v)), nil
	}
	return pd.target.extensible, nil
}

func (pd *ProxyData) proxyPreventExtensions(vm *VM) (bool, error) {
	if fn, ok := pd.trap(vm, "preventExtensions"); ok {
		v, err := fn.Invoke(vm, pd.handler, []JSValue{pd.target}, CallFlags{})
		if err != nil {
			return false, err
		}
		return bool(vm.coerceToBoolean(v)), nil
	}
	pd.target.extensible = false
	return true, nil
}

func (pd *ProxyData) proxyApply(vm *VM, thisArg JSValue, args []JSValue) (JSValue, error) {
	if fn, ok := pd.trap(vm, "apply"); ok {
		argsArr := NewJSArray(vm.realm)
		argsArr.arrayPart = append(argsArr.arrayPart, args...)
		return fn.Invoke(vm, pd.handler, []JSValue{pd.target, thisArg, argsArr}, CallFlags{})
	}
	return pd.target.Invoke(vm, thisArg, args, CallFlags{})
}

func (pd *ProxyData) proxyConstruct(vm *VM, args []JSValue, newTarget JSValue) (JSValue, error) {
	if fn, ok := pd.trap(vm, "construct"); ok {
		argsArr := NewJSArray(vm.realm)
		argsArr.arrayPart = append(argsArr.arrayPart, args...)
		return fn.Invoke(vm, pd.handler, []JSValue{pd.target, argsArr, newTarget}, CallFlags{})
	}
	return vm.DoNew(pd.target, args, newTarget)
}

func nameToJSValue(name Name) JSValue {
	if name.isSymbol {
		return name.symbol
	}
	return JSString(name.string)
}

func descriptorToObject(vm *VM, d *Descriptor) *JSObject {
	o := new(JSObject)
	*o = NewJSObject(vm.realm.protoObject)
	o.realm = vm.realm
	if d.isAccessor() {
		if d.get != nil {
			o.DefineProperty(NameStr("get"), Descriptor{value: d.get, writable: true, enumerable: true, configurable: true})
		}
		if d.set != nil {
			o.DefineProperty(NameStr("set"), Descriptor{value: d.set, writable: true, enumerable: true, configurable: true})
		}
	} else {
		o.DefineProperty(NameStr("value"), Descriptor{value: d.value, writable: true, enumerable: true, configurable: true})
		o.DefineProperty(NameStr("writable"), Descriptor{value: JSBoolean(d.writable), writable: true, enumerable: true, configurable: true})
	}
	o.DefineProperty(NameStr("enumerable"), Descriptor{value: JSBoolean(d.enumerable), writable: true, enumerable: true, configurable: true})
	o.DefineProperty(NameStr("configurable"), Descriptor{value: JSBoolean(d.configurable), writable: true, enumerable: true, configurable: true})
	return o
}

// installReflectAndProxy wires the global Proxy constructor and the
// Reflect namespace object (spec.md §4.7), grounded on
// installObjectStatics' native-static-method pattern.
func installReflectAndProxy(realm *Realm, vm *VM, g *JSObject, nf func(string, []string, NativeCallback) *JSObject) {
	proxyCtor := nf("Proxy", []string{"target", "handler"}, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		if !flags.isNew {
			return nil, vm.ThrowError("TypeError", "Constructor Proxy requires 'new'")
		}
		target, ok := arg(args, 0).(*JSObject)
		if !ok {
			return nil, vm.ThrowError("TypeError", "Cannot create proxy with a non-object as target")
		}
		handler, ok := arg(args, 1).(*JSObject)
		if !ok {
			return nil, vm.ThrowError("TypeError", "Cannot create proxy with a non-object as handler")
		}
		pd := &ProxyData{target: target, handler: handler}

		o := new(JSObject)
		*o = NewJSObject(target.Prototype)
		o.kind = KindProxy
		o.realm = realm
		o.proxy = pd

		if target.funcPart != nil {
			o.funcPart = &FunctionPart{
				isStrict: true,
				realm:    realm,
				name:     target.funcPart.name,
				native: func(vm *VM, subject JSValue, callArgs []JSValue, callFlags CallFlags) (JSValue, error) {
					if callFlags.isNew {
						return pd.proxyConstruct(vm, callArgs, callFlags.newTarget)
					}
					return pd.proxyApply(vm, subject, callArgs)
				},
			}
		}
		return o, nil
	})
	g.DefineProperty(NameStr("Proxy"), Descriptor{value: proxyCtor, writable: true, configurable: true})

	reflect := new(JSObject)
	*reflect = NewJSObject(realm.protoObject)
	reflect.realm = realm

	static := func(name string, params []string, cb NativeCallback) {
		o := NewNativeFunction(realm, params, cb)
		o.funcPart.name = name
		reflect.DefineProperty(NameStr(name), Descriptor{value: &o, writable: true, configurable: true})
	}

	asObject := func(vm *VM, v JSValue) (*JSObject, error) {
		o, ok := v.(*JSObject)
		if !ok {
			return nil, vm.ThrowError("TypeError", "Reflect call requires a target object")
		}
		return o, nil
	}

	static("get", []string{"target", "key"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		key, err := nameFromJSValue(vm, arg(args, 1))
		if err != nil {
			return nil, err
		}
		return o.GetProperty(key, vm)
	})
	static("set", []string{"target", "key", "value"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		key, err := nameFromJSValue(vm, arg(args, 1))
		if err != nil {
			return nil, err
		}
		if err := o.SetProperty(key, arg(args, 2), vm); err != nil {
			return nil, err
		}
		return JSBoolean(true), nil
	})
	static("has", []string{"target", "key"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		key, err := nameFromJSValue(vm, arg(args, 1))
		if err != nil {
			return nil, err
		}
		for object := o; object != nil; object = object.Prototype {
			if object.HasOwnProperty(key) {
				return JSBoolean(true), nil
			}
		}
		return JSBoolean(false), nil
	})
	static("deleteProperty", []string{"target", "key"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		key, err := nameFromJSValue(vm, arg(args, 1))
		if err != nil {
			return nil, err
		}
		return JSBoolean(o.DeleteProperty(key)), nil
	})
	static("ownKeys", []string{"target"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		arr := NewJSArray(realm)
		for _, k := range o.OwnKeys() {
			arr.arrayPart = append(arr.arrayPart, nameToJSValue(k))
		}
		return arr, nil
	})
	static("getPrototypeOf", []string{"target"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		if o.Prototype == nil {
			return JSNull{}, nil
		}
		return o.Prototype, nil
	})
	static("setPrototypeOf", []string{"target", "proto"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		switch p := arg(args, 1).(type) {
		case *JSObject:
			o.Prototype = p
		case JSNull:
			o.Prototype = nil
		}
		return JSBoolean(true), nil
	})
	static("defineProperty", []string{"target", "key", "descriptor"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		key, err := nameFromJSValue(vm, arg(args, 1))
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
		o.defineOwn(key, d)
		return JSBoolean(true), nil
	})
	static("getOwnPropertyDescriptor", []string{"target", "key"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		key, err := nameFromJSValue(vm, arg(args, 1))
		if err != nil {
			return nil, err
		}
		d, ok := o.getOwnPropertyDescriptor(key)
		if !ok {
			return JSUndefined{}, nil
		}
		return descriptorToObject(vm, d), nil
	})
	static("isExtensible", []string{"target"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		return JSBoolean(o.extensible), nil
	})
	static("preventExtensions", []string{"target"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		o.extensible = false
		return JSBoolean(true), nil
	})
	static("apply", []string{"target", "thisArg", "args"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		callArgs, err := vm.iterateToSlice(arg(args, 2))
		if err != nil {
			return nil, err
		}
		return o.Invoke(vm, arg(args, 1), callArgs, CallFlags{})
	})
	static("construct", []string{"target", "args"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asObject(vm, arg(args, 0))
		if err != nil {
			return nil, err
		}
		callArgs, err := vm.iterateToSlice(arg(args, 1))
		if err != nil {
			return nil, err
		}
		return vm.DoNew(o, callArgs, nil)
	})

	g.DefineProperty(NameStr("Reflect"), Descriptor{value: reflect, writable: true, configurable: true})
}

func nameFromJSValue(vm *VM, v JSValue) (Name, error) {
	if sym, ok := v.(JSSymbol); ok {
		return Name{isSymbol: true, symbol: sym}, nil
	}
	s, err := vm.coerceToString(v)
	if err != nil {
		return Name{}, err
	}
	return NameStr(string(s)), nil
}
