package modeledjs

type methodFn func(target *JSObject, name string, params []string, cb NativeCallback)

func bootstrapArrayProto(realm *Realm, vm *VM, method methodFn) {
	p := realm.protoArray
	method(p, "push", nil, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		arr, ok := subject.(*JSObject)
		if !ok {
			return nil, vm.ThrowError("TypeError", "Array.prototype.push called on non-array")
		}
		arr.arrayPart = append(arr.arrayPart, args...)
		return JSNumber(len(arr.arrayPart)), nil
	})
	method(p, "pop", nil, func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		if len(arr.arrayPart) == 0 {
			return JSUndefined{}, nil
		}
		v := arr.arrayPart[len(arr.arrayPart)-1]
		arr.arrayPart = arr.arrayPart[:len(arr.arrayPart)-1]
		return v, nil
	})
	method(p, "shift", nil, func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		if len(arr.arrayPart) == 0 {
			return JSUndefined{}, nil
		}
		v := arr.arrayPart[0]
		arr.arrayPart = arr.arrayPart[1:]
		return v, nil
	})
	method(p, "unshift", nil, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		arr.arrayPart = append(append([]JSValue{}, args...), arr.arrayPart...)
		return JSNumber(len(arr.arrayPart)), nil
	})
	method(p, "slice", nil, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		n := len(arr.arrayPart)
		start, end := sliceBounds(args, n)
		out := NewJSArray(realm)
		if start < end {
			out.arrayPart = append(out.arrayPart, arr.arrayPart[start:end]...)
		}
		return out, nil
	})
	method(p, "indexOf", []string{"searchElement"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		for i, v := range arr.arrayPart {
			if vm.strictEqual(v, arg(args, 0)) {
				return JSNumber(i), nil
			}
		}
		return JSNumber(-1), nil
	})
	method(p, "includes", []string{"searchElement"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		for _, v := range arr.arrayPart {
			if vm.sameValueZero(v, arg(args, 0)) {
				return JSBoolean(true), nil
			}
		}
		return JSBoolean(false), nil
	})
	method(p, "join", []string{"separator"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		sep := ","
		if len(args) > 0 {
			if _, isU := args[0].(JSUndefined); !isU {
				s, err := vm.coerceToString(args[0])
				if err != nil {
					return nil, err
				}
				sep = string(s)
			}
		}
		parts := make([]string, len(arr.arrayPart))
		for i, v := range arr.arrayPart {
			switch v.(type) {
			case JSUndefined, JSNull:
				parts[i] = ""
			default:
				s, err := vm.coerceToString(v)
				if err != nil {
					return nil, err
				}
				parts[i] = string(s)
			}
		}
		return JSString(joinStrings(parts, sep)), nil
	})
	method(p, "forEach", []string{"callback"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		cb, ok := arg(args, 0).(*JSObject)
		if !ok || cb.funcPart == nil {
			return nil, vm.ThrowError("TypeError", "callback is not a function")
		}
		for i, v := range arr.arrayPart {
			if _, err := cb.Invoke(vm, arg(args, 1), []JSValue{v, JSNumber(i), arr}, CallFlags{}); err != nil {
				return nil, err
			}
		}
		return JSUndefined{}, nil
	})
	method(p, "map", []string{"callback"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		cb, ok := arg(args, 0).(*JSObject)
		if !ok || cb.funcPart == nil {
			return nil, vm.ThrowError("TypeError", "callback is not a function")
		}
		out := NewJSArray(realm)
		for i, v := range arr.arrayPart {
			r, err := cb.Invoke(vm, arg(args, 1), []JSValue{v, JSNumber(i), arr}, CallFlags{})
			if err != nil {
				return nil, err
			}
			out.arrayPart = append(out.arrayPart, r)
		}
		return out, nil
	})
	method(p, "filter", []string{"callback"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		cb, ok := arg(args, 0).(*JSObject)
		if !ok || cb.funcPart == nil {
			return nil, vm.ThrowError("TypeError", "callback is not a function")
		}
		out := NewJSArray(realm)
		for i, v := range arr.arrayPart {
			r, err := cb.Invoke(vm, arg(args, 1), []JSValue{v, JSNumber(i), arr}, CallFlags{})
			if err != nil {
				return nil, err
			}
			if vm.coerceToBoolean(r) {
				out.arrayPart = append(out.arrayPart, v)
			}
		}
		return out, nil
	})
	method(p, "reduce", []string{"callback"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		cb, ok := arg(args, 0).(*JSObject)
		if !ok || cb.funcPart == nil {
			return nil, vm.ThrowError("TypeError", "callback is not a function")
		}
		i := 0
		var acc JSValue
		if len(args) > 1 {
			acc = args[1]
		} else {
			if len(arr.arrayPart) == 0 {
				return nil, vm.ThrowError("TypeError", "Reduce of empty array with no initial value")
			}
			acc = arr.arrayPart[0]
			i = 1
		}
		for ; i < len(arr.arrayPart); i++ {
			r, err := cb.Invoke(vm, JSUndefined{}, []JSValue{acc, arr.arrayPart[i], JSNumber(i), arr}, CallFlags{})
			if err != nil {
				return nil, err
			}
			acc = r
		}
		return acc, nil
	})
	method(p, "concat", nil, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		out := NewJSArray(realm)
		out.arrayPart = append(out.arrayPart, arr.arrayPart...)
		for _, a := range args {
			if other, ok := a.(*JSObject); ok && other.kind == KindArray {
				out.arrayPart = append(out.arrayPart, other.arrayPart...)
			} else {
				out.arrayPart = append(out.arrayPart, a)
			}
		}
		return out, nil
	})
	method(p, "toString", nil, func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		arr := subject.(*JSObject)
		parts := make([]string, len(arr.arrayPart))
		for i, v := range arr.arrayPart {
			switch v.(type) {
			case JSUndefined, JSNull:
				parts[i] = ""
			default:
				s, err := vm.coerceToString(v)
				if err != nil {
					return nil, err
				}
				parts[i] = string(s)
			}
		}
		return JSString(joinStrings(parts, ",")), nil
	})

	method(arrayCtorHolder(realm), "isArray", []string{"value"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, ok := arg(args, 0).(*JSObject)
		return JSBoolean(ok && o.kind == KindArray), nil
	})
}

// arrayCtorHolder lazily allocates a scratch object used only to host
// Array's static methods before the real constructor is built in
// defineGlobalConstructors; it is merged into the constructor there.
var scratchStatics = map[*Realm]*JSObject{}

func arrayCtorHolder(realm *Realm) *JSObject {
	if o, ok := scratchStatics[realm]; ok {
		return o
	}
	o := new(JSObject)
	*o = NewJSObject(realm.protoObject)
	o.realm = realm
	scratchStatics[realm] = o
	return o
}

func sliceBounds(args []JSValue, n int) (int, int) {
	start, end := 0, n
	if len(args) > 0 {
		if f, ok := args[0].(JSNumber); ok {
			start = normalizeIndex(int(f), n)
		}
	}
	if len(args) > 1 {
		if _, isU := args[1].(JSUndefined); !isU {
			if f, ok := args[1].(JSNumber); ok {
				end = normalizeIndex(int(f), n)
			}
		}
	}
	if start > end {
		start = end
	}
	return start, end
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func bootstrapStringProto(realm *Realm, vm *VM, method methodFn) {
	p := realm.protoString
	method(p, "toString", nil, func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		return vm.primitiveStringOf(subject)
	})
	method(p, "valueOf", nil, func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		return vm.primitiveStringOf(subject)
	})
	method(p, "charAt", []string{"index"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		s, err := vm.primitiveStringOf(subject)
		if err != nil {
			return nil, err
		}
		runes := []rune(string(s.(JSString)))
		idx := int(toF(arg(args, 0)))
		if idx < 0 || idx >= len(runes) {
			return JSString(""), nil
		}
		return JSString(string(runes[idx])), nil
	})
	method(p, "slice", nil, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		s, err := vm.primitiveStringOf(subject)
		if err != nil {
			return nil, err
		}
		runes := []rune(string(s.(JSString)))
		start, end := sliceBounds(args, len(runes))
		if start > end {
			return JSString(""), nil
		}
		return JSString(string(runes[start:end])), nil
	})
	method(p, "indexOf", []string{"search"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		s, err := vm.primitiveStringOf(subject)
		if err != nil {
			return nil, err
		}
		needle, err := vm.coerceToString(arg(args, 0))
		if err != nil {
			return nil, err
		}
		return JSNumber(runeIndexOf(string(s.(JSString)), string(needle))), nil
	})
	method(p, "split", []string{"separator"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		s, err := vm.primitiveStringOf(subject)
		if err != nil {
			return nil, err
		}
		out := NewJSArray(realm)
		str := string(s.(JSString))
		if len(args) == 0 {
			out.arrayPart = append(out.arrayPart, JSString(str))
			return out, nil
		}
		sep, err := vm.coerceToString(args[0])
		if err != nil {
			return nil, err
		}
		for _, part := range splitString(str, string(sep)) {
			out.arrayPart = append(out.arrayPart, JSString(part))
		}
		return out, nil
	})
	method(p, "toUpperCase", nil, func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		s, err := vm.primitiveStringOf(subject)
		if err != nil {
			return nil, err
		}
		return JSString(toUpper(string(s.(JSString)))), nil
	})
	method(p, "toLowerCase", nil, func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		s, err := vm.primitiveStringOf(subject)
		if err != nil {
			return nil, err
		}
		return JSString(toLower(string(s.(JSString)))), nil
	})
}

func (vm *VM) primitiveStringOf(subject JSValue) (JSValue, error) {
	if s, ok := subject.(JSString); ok {
		return s, nil
	}
	if o, ok := subject.(*JSObject); ok && o.hasPrimWrap {
		return o.primString, nil
	}
	return vm.coerceToString(subject)
}

func toF(v JSValue) float64 {
	if n, ok := v.(JSNumber); ok {
		return float64(n)
	}
	return 0
}

func runeIndexOf(haystack, needle string) int {
	hs := []rune(haystack)
	ns := []rune(needle)
	if len(ns) == 0 {
		return 0
	}
	for i := 0; i+len(ns) <= len(hs); i++ {
		match := true
		for j := range ns {
			if hs[i+j] != ns[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func splitString(s, sep string) []string {
	if sep == "" {
		runes := []rune(s)
		out := make([]string, len(runes))
		for i, r := range runes {
			out[i] = string(r)
		}
		return out
	}
	var out []string
	for {
		i := runeIndexOf(s, sep)
		if i < 0 {
			out = append(out, s)
			return out
		}
		rs := []rune(s)
		out = append(out, string(rs[:i]))
		s = string(rs[i+len([]rune(sep)):])
	}
}

func toUpper(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'a' && r <= 'z' {
			out[i] = r - 32
		}
	}
	return string(out)
}

func toLower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + 32
		}
	}
	return string(out)
}

func bootstrapMapSetProto(realm *Realm, vm *VM, method methodFn) {
	method(realm.protoMap, "get", []string{"key"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		v, _ := o.mapData.get(vm, arg(args, 0))
		return v, nil
	})
	method(realm.protoMap, "set", []string{"key", "value"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		o.mapData.set(vm, arg(args, 0), arg(args, 1))
		return o, nil
	})
	method(realm.protoMap, "has", []string{"key"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		return JSBoolean(o.mapData.has(vm, arg(args, 0))), nil
	})
	method(realm.protoMap, "delete", []string{"key"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		return JSBoolean(o.mapData.delete(vm, arg(args, 0))), nil
	})
	method(realm.protoMap, "clear", nil, func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		subject.(*JSObject).mapData.clear()
		return JSUndefined{}, nil
	})

	method(realm.protoSet, "add", []string{"value"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		o.setData.set(vm, arg(args, 0), arg(args, 0))
		return o, nil
	})
	method(realm.protoSet, "has", []string{"value"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		return JSBoolean(o.setData.has(vm, arg(args, 0))), nil
	})
	method(realm.protoSet, "delete", []string{"value"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		return JSBoolean(o.setData.delete(vm, arg(args, 0))), nil
	})
	method(realm.protoSet, "clear", nil, func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		subject.(*JSObject).setData.clear()
		return JSUndefined{}, nil
	})
}

// requireObjectKey enforces spec.md §3.1/§3.3: WeakMap keys and
// WeakSet values must be objects (symbols are allowed too in later
// editions, but this engine's Non-goals don't call for that), since
// only objects are plausible weak-reference targets.
func requireObjectKey(vm *VM, v JSValue, what string) (*JSObject, error) {
	o, ok := v.(*JSObject)
	if !ok {
		return nil, vm.ThrowError("TypeError", "Invalid value used as "+what)
	}
	return o, nil
}

// bootstrapWeakCollectionProto wires WeakMap/WeakSet/WeakRef/
// FinalizationRegistry prototype methods, mirroring
// bootstrapMapSetProto's shape but restricted to the weak variants'
// narrower surface: no .size, no .clear(), not iterable (spec.md §3.3).
// The backing storage reuses mapData/setData (collections.go's
// orderedMap) since this engine has no real weak-reference/GC-hook
// mechanism to model actual non-retention; DESIGN.md records that gap.
func bootstrapWeakCollectionProto(realm *Realm, vm *VM, method methodFn) {
	method(realm.protoWeakMap, "get", []string{"key"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		v, _ := o.mapData.get(vm, arg(args, 0))
		return v, nil
	})
	method(realm.protoWeakMap, "set", []string{"key", "value"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		if _, err := requireObjectKey(vm, arg(args, 0), "weak map key"); err != nil {
			return nil, err
		}
		o.mapData.set(vm, arg(args, 0), arg(args, 1))
		return o, nil
	})
	method(realm.protoWeakMap, "has", []string{"key"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		return JSBoolean(o.mapData.has(vm, arg(args, 0))), nil
	})
	method(realm.protoWeakMap, "delete", []string{"key"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		return JSBoolean(o.mapData.delete(vm, arg(args, 0))), nil
	})

	method(realm.protoWeakSet, "add", []string{"value"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		if _, err := requireObjectKey(vm, arg(args, 0), "weak set value"); err != nil {
			return nil, err
		}
		o.setData.set(vm, arg(args, 0), arg(args, 0))
		return o, nil
	})
	method(realm.protoWeakSet, "has", []string{"value"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		return JSBoolean(o.setData.has(vm, arg(args, 0))), nil
	})
	method(realm.protoWeakSet, "delete", []string{"value"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		return JSBoolean(o.setData.delete(vm, arg(args, 0))), nil
	})

	method(realm.protoWeakRef, "deref", nil, func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		if o.weakRefTarget == nil {
			return JSUndefined{}, nil
		}
		return o.weakRefTarget, nil
	})

	method(realm.protoFinRegist, "register", []string{"target", "heldValue", "unregisterToken"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		target, err := requireObjectKey(vm, arg(args, 0), "finalization registry target")
		if err != nil {
			return nil, err
		}
		held := arg(args, 1)
		if vm.sameValueZero(target, held) {
			return nil, vm.ThrowError("TypeError", "target and heldValue must not be the same")
		}
		var unregTok JSValue
		if len(args) > 2 {
			if _, isU := args[2].(JSUndefined); !isU {
				unregTok = args[2]
			}
		}
		o.finalizer.register(target, held, unregTok)
		return JSUndefined{}, nil
	})
	method(realm.protoFinRegist, "unregister", []string{"unregisterToken"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o := subject.(*JSObject)
		return JSBoolean(o.finalizer.unregister(vm, arg(args, 0))), nil
	})
}

func bootstrapPromiseProto(realm *Realm) {
	method := func(target *JSObject, name string, cb NativeCallback) {
		o := NewNativeFunction(realm, nil, cb)
		o.funcPart.name = name
		target.DefineProperty(NameStr(name), Descriptor{value: &o, writable: true, configurable: true})
	}
	method(realm.protoPromise, "then", promiseThen)
	method(realm.protoPromise, "catch", promiseCatch)
	method(realm.protoPromise, "finally", promiseFinally)
}

func bootstrapGeneratorProto(realm *Realm) {
	method := func(target *JSObject, name string, cb NativeCallback) {
		o := NewNativeFunction(realm, nil, cb)
		o.funcPart.name = name
		target.DefineProperty(NameStr(name), Descriptor{value: &o, writable: true, configurable: true})
	}
	method(realm.protoGenerator, "next", func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		gen, ok := subject.(*JSObject)
		if !ok || gen.kind != KindGenerator {
			return nil, vm.ThrowError("TypeError", "not a generator")
		}
		return vm.generatorNext(gen, arg(args, 0), len(args) > 0)
	})
	method(realm.protoGenerator, "return", func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		gen := subject.(*JSObject)
		gen.generator.done = true
		return vm.makeIterResult(arg(args, 0), true), nil
	})
	method(realm.protoGenerator, "throw", func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		gen := subject.(*JSObject)
		gen.generator.done = true
		return nil, vm.makeException(arg(args, 0))
	})
	method(realm.protoGenerator, "Symbol(Symbol.iterator)", func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		return subject, nil
	})
	fn := NewNativeFunction(realm, nil, func(vm *VM, subject JSValue, _ []JSValue, _ CallFlags) (JSValue, error) {
		return subject, nil
	})
	realm.protoGenerator.DefineProperty(NameSym(realm.wellKnown.iterator), Descriptor{value: &fn, writable: true, configurable: true})
}
