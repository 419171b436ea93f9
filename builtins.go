package modeledjs

import (
	"fmt"
	"math"
)

// bootstrap wires every intrinsic prototype and the global object,
// grounded on the teacher's init()/createGlobalObject but realm-scoped
// and extended with the constructors/methods spec.md §11 adds (Map,
// Set, Promise, Symbol, Proxy, Reflect) beyond the teacher's
// String/Boolean/Number/Array/Object/$print surface.
func (realm *Realm) bootstrap() {
	realm.protoObject = &JSObject{descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoFunction = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm, kind: KindFunction}
	realm.protoArray = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoString = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoNumber = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoBoolean = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoBigint = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoSymbol = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoRegexp = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoPromise = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoGenerator = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoMap = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoSet = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoWeakMap = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoWeakSet = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoWeakRef = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}
	realm.protoFinRegist = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm}

	for _, kind := range []string{"Error", "TypeError", "RangeError", "ReferenceError", "SyntaxError", "URIError", "EvalError", "AggregateError"} {
		parent := realm.protoObject
		if kind != "Error" {
			parent = realm.protoError["Error"]
		}
		realm.protoError[kind] = &JSObject{Prototype: parent, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm, kind: KindError}
		realm.protoError[kind].DefineProperty(NameStr("name"), Descriptor{value: JSString(kind), writable: true, configurable: true})
	}

	realm.globalObject = &JSObject{Prototype: realm.protoObject, descriptors: map[Name]*Descriptor{}, extensible: true, realm: realm, kind: KindGlobalThis}

	vm := NewEvaluator(realm)

	nf := func(name string, params []string, cb NativeCallback) *JSObject {
		o := NewNativeFunction(realm, params, cb)
		o.funcPart.name = name
		o.SetProperty(NameStr("name"), JSString(name), vm)
		return &o
	}
	method := func(target *JSObject, name string, params []string, cb NativeCallback) {
		target.DefineProperty(NameStr(name), Descriptor{value: nf(name, params, cb), writable: true, configurable: true})
	}

	// Object.prototype
	method(realm.protoObject, "hasOwnProperty", []string{"key"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		obj, err := vm.coerceToObject(subject)
		if err != nil {
			return nil, err
		}
		key, err := vm.toPropertyKey(arg(args, 0))
		if err != nil {
			return nil, err
		}
		return JSBoolean(obj.HasOwnProperty(key)), nil
	})
	method(realm.protoObject, "toString", nil, func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		return JSString("[object Object]"), nil
	})
	method(realm.protoObject, "isPrototypeOf", []string{"obj"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		self, ok := subject.(*JSObject)
		other, ok2 := arg(args, 0).(*JSObject)
		if !ok || !ok2 {
			return JSBoolean(false), nil
		}
		for p := other.Prototype; p != nil; p = p.Prototype {
			if p == self {
				return JSBoolean(true), nil
			}
		}
		return JSBoolean(false), nil
	})

	// Function.prototype
	method(realm.protoFunction, "call", nil, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		fn, ok := subject.(*JSObject)
		if !ok || fn.funcPart == nil {
			return nil, vm.ThrowError("TypeError", "not a function")
		}
		var this JSValue = JSUndefined{}
		var rest []JSValue
		if len(args) > 0 {
			this = args[0]
			rest = args[1:]
		}
		return fn.Invoke(vm, this, rest, CallFlags{})
	})
	method(realm.protoFunction, "apply", nil, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		fn, ok := subject.(*JSObject)
		if !ok || fn.funcPart == nil {
			return nil, vm.ThrowError("TypeError", "not a function")
		}
		var this JSValue = JSUndefined{}
		if len(args) > 0 {
			this = args[0]
		}
		var rest []JSValue
		if len(args) > 1 {
			if arr, ok := args[1].(*JSObject); ok {
				rest = append(rest, arr.arrayPart...)
			}
		}
		return fn.Invoke(vm, this, rest, CallFlags{})
	})
	method(realm.protoFunction, "bind", nil, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		fn, ok := subject.(*JSObject)
		if !ok || fn.funcPart == nil {
			return nil, vm.ThrowError("TypeError", "not a function")
		}
		var this JSValue = JSUndefined{}
		var rest []JSValue
		if len(args) > 0 {
			this = args[0]
			rest = args[1:]
		}
		return NewBoundFunction(realm, fn, this, rest), nil
	})

	// Array.prototype (minimal but realistic surface)
	bootstrapArrayProto(realm, vm, method)
	bootstrapStringProto(realm, vm, method)
	bootstrapMapSetProto(realm, vm, method)
	bootstrapWeakCollectionProto(realm, vm, method)
	bootstrapPromiseProto(realm)
	bootstrapGeneratorProto(realm)

	defineGlobalConstructors(realm, vm, nf)

	realm.globalObject.DefineProperty(NameStr("globalThis"), Descriptor{value: realm.globalObject, writable: true, configurable: true})
	realm.globalObject.DefineProperty(NameStr("undefined"), Descriptor{value: JSUndefined{}})
	realm.globalObject.DefineProperty(NameStr("NaN"), Descriptor{value: JSNumber(math.NaN())})
	realm.globalObject.DefineProperty(NameStr("Infinity"), Descriptor{value: JSNumber(math.Inf(1))})

	console := new(JSObject)
	*console = NewJSObject(realm.protoObject)
	console.realm = realm
	method(console, "log", nil, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			s, err := vm.coerceToString(a)
			if err != nil {
				parts[i] = fmt.Sprintf("%v", a)
				continue
			}
			parts[i] = string(s)
		}
		fmt.Println(joinStrings(parts, " "))
		return JSUndefined{}, nil
	})
	realm.globalObject.DefineProperty(NameStr("console"), Descriptor{value: console, writable: true, configurable: true})

	method(realm.globalObject, "$print", nil, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		for _, a := range args {
			s, _ := vm.coerceToString(a)
			fmt.Println(string(s))
		}
		return JSUndefined{}, nil
	})
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func arg(args []JSValue, i int) JSValue {
	if i < len(args) {
		return args[i]
	}
	return JSUndefined{}
}

