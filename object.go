package modeledjs

import (
	"fmt"

	"com.github.sebastianobarrera.modeledjs/modeledjs/jsast"
)

// ObjectKind discriminates the object variants named in spec.md §3.1.
// Every variant shares JSObject's common header (property table,
// prototype slot, extensible flag, internal slots); the kind-specific
// payload lives in the matching field below.
type ObjectKind uint8

const (
	KindPlain ObjectKind = iota
	KindArray
	KindFunction
	KindClass
	KindPromise
	KindMap
	KindSet
	KindWeakMap
	KindWeakSet
	KindWeakRef
	KindFinalizationRegistry
	KindDate
	KindRegexp
	KindError
	KindArguments
	KindTypedArray
	KindArrayBuffer
	KindDataView
	KindProxy
	KindGlobalThis
	KindGenerator
	KindPrimitiveWrapper
)

// Descriptor is a property descriptor: either a data descriptor
// (value/writable) or an accessor descriptor (get/set). Every flag is
// always present explicitly, never defaulted across calls (spec.md §9
// "Config objects").
type Descriptor struct {
	get, set     *JSObject
	value        JSValue
	configurable bool
	enumerable   bool
	writable     bool
}

func (d *Descriptor) isAccessor() bool { return d.get != nil || d.set != nil }

// FunctionPart is the payload for the KindFunction/KindClass variants:
// user functions, native functions, bound functions, arrows, async and
// generator functions are all one Function enum distinguished by these
// flags, per spec.md §9 "deep inheritance & dynamic dispatch".
type FunctionPart struct {
	isStrict  bool
	isArrow   bool
	isAsync   bool
	isGen     bool
	isClassCt bool // is this object a class constructor

	native NativeCallback

	params       []*jsast.Param
	body         []jsast.Stmt
	exprBody     jsast.Expr
	lexicalScope *Scope
	realm        *Realm

	line int
	name string

	// bound-function payload
	boundTarget *JSObject
	boundThis   JSValue
	boundArgs   []JSValue

	// class payload (nil for ordinary functions)
	class *ClassData
}

type NativeCallback func(vm *VM, subject JSValue, args []JSValue, flags CallFlags) (JSValue, error)

type CallFlags struct {
	isNew     bool
	newTarget JSValue
}

// ErrUndefinedProperty signals that a GetOwnProperty lookup found
// nothing; it is not itself a JS-visible error — callers translate it
// to JSUndefined{} in the common case.
type ErrUndefinedProperty struct{ name Name }

func (err ErrUndefinedProperty) Error() string {
	return fmt.Sprintf("undefined property: %s", err.name.String())
}

// JSObject is the common representation for every object variant.
type JSObject struct {
	Prototype   *JSObject
	descriptors map[Name]*Descriptor
	keyOrder    []Name // insertion order, for Reflect.ownKeys / for-in
	extensible  bool
	kind        ObjectKind

	realm *Realm

	// at most one of these is populated, selected by kind.
	arrayPart  []JSValue
	funcPart   *FunctionPart
	mapData    *orderedMap
	setData    *orderedMap // sets reuse the map with value==key
	promise    *PromiseState
	proxy      *ProxyData
	errorData  *ErrorData
	argsData   *ArgumentsData
	generator  *GeneratorState
	moduleNS   *Module
	regexpData *RegexpData

	// weakRefTarget is the referent of a WeakRef (KindWeakRef). This
	// engine has no GC hook to observe collection (spec.md §11 notes the
	// gap), so the target is held strongly: deref() never returns
	// undefined once set.
	weakRefTarget JSValue
	// finalizer holds a FinalizationRegistry's (KindFinalizationRegistry)
	// registered cleanup callback; register()/unregister() are tracked
	// but the callback is never invoked since nothing observes GC.
	finalizer *FinalizationRegistryData

	primBigInt  JSBigInt
	primNumber  JSNumber
	primBoolean JSBoolean
	primString  JSString
	primSymbol  JSSymbol
	hasPrimWrap bool

	// privateFields holds #-prefixed instance fields, lexically scoped
	// to the declaring class body (spec.md §4.4) rather than reachable
	// through ordinary property lookup.
	privateFields map[string]JSValue
}

type ArgumentsData struct {
	mapped    bool
	paramEnv  *Scope
	paramName []string // index -> name, for mapped two-way alias
}

type ErrorData struct {
	kind    string // "TypeError", "RangeError", ...
	message string
}

func (v *JSObject) Category() JSVCategory {
	if v.funcPart == nil {
		return VObject
	}
	return VFunction
}

func NewJSObject(proto *JSObject) JSObject {
	return JSObject{
		Prototype:   proto,
		descriptors: make(map[Name]*Descriptor),
		extensible:  true,
		kind:        KindPlain,
	}
}

func (jso *JSObject) resolveDescriptor(descriptor *Descriptor, vm *VM) (JSValue, error) {
	if descriptor.get == nil {
		if descriptor.isAccessor() {
			return JSUndefined{}, nil
		}
		return descriptor.value, nil
	}
	if vm == nil {
		panic("bug: looking up described value but vm not passed")
	}
	return descriptor.get.Invoke(vm, jso, []JSValue{}, CallFlags{})
}

func (jso *JSObject) getOwnPropertyDescriptor(name Name) (*Descriptor, bool) {
	d, ok := jso.descriptors[name]
	return d, ok
}

func (jso *JSObject) GetOwnProperty(name Name, vm *VM) (JSValue, error) {
	if jso.kind == KindProxy {
		return jso.proxy.proxyGet(vm, name, jso)
	}
	if jso.kind == KindArray {
		if idx, isIdx := arrayIndexOf(name); isIdx {
			if int(idx) < len(jso.arrayPart) {
				return jso.arrayPart[idx], nil
			}
			return JSUndefined{}, nil
		}
	}
	descriptor, isThere := jso.descriptors[name]
	if !isThere {
		return JSUndefined{}, nil
	}
	return jso.resolveDescriptor(descriptor, vm)
}

func (jso *JSObject) HasOwnProperty(name Name) bool {
	if jso.kind == KindProxy {
		ok, _ := jso.proxy.proxyHas(nil, name)
		return ok
	}
	if jso.kind == KindArray {
		if idx, isIdx := arrayIndexOf(name); isIdx {
			return int(idx) < len(jso.arrayPart)
		}
	}
	_, isThere := jso.descriptors[name]
	return isThere
}

// GetProperty walks the prototype chain. vm may be nil only when the
// caller can statically guarantee no accessor will be invoked.
func (jso *JSObject) GetProperty(name Name, vm *VM) (JSValue, error) {
	if jso.kind == KindProxy {
		return jso.proxy.proxyGet(vm, name, jso)
	}
	receiver := jso
	for object := jso; object != nil; object = object.Prototype {
		if object.kind == KindProxy {
			return object.proxy.proxyGet(vm, name, receiver)
		}
		if object.kind == KindArray && object == receiver {
			if idx, isIdx := arrayIndexOf(name); isIdx {
				if int(idx) < len(object.arrayPart) {
					return object.arrayPart[idx], nil
				}
				return JSUndefined{}, nil
			}
			if name.string == "length" && !name.isSymbol {
				return JSNumber(len(object.arrayPart)), nil
			}
		}
		descriptor, isThere := object.getOwnPropertyDescriptor(name)
		if isThere {
			if descriptor.get != nil {
				if vm == nil {
					panic("bug: looking up described value but vm not passed")
				}
				return descriptor.get.Invoke(vm, receiver, []JSValue{}, CallFlags{})
			}
			if descriptor.isAccessor() {
				return JSUndefined{}, nil
			}
			return descriptor.value, nil
		}
	}
	return JSUndefined{}, nil
}

func (jso *JSObject) SetProperty(name Name, value JSValue, vm *VM) error {
	if jso.kind == KindProxy {
		return jso.proxy.proxySet(vm, name, value, jso)
	}
	if jso.kind == KindArray {
		if idx, isIdx := arrayIndexOf(name); isIdx {
			jso.SetIndex(int(idx), value)
			return nil
		}
		if name.string == "length" && !name.isSymbol {
			n, err := vm.coerceToNumber(value)
			if err != nil {
				return err
			}
			return jso.setArrayLength(int(n))
		}
	}

	var descriptor *Descriptor
	isThere := false
	owner := jso
	for object := jso; object != nil; object = object.Prototype {
		descriptor, isThere = object.getOwnPropertyDescriptor(name)
		if isThere {
			owner = object
			break
		}
	}

	if !isThere {
		if value == nil {
			panic("value can't be nil here")
		}
		jso.defineOwn(name, &Descriptor{
			value:        value,
			configurable: true,
			enumerable:   true,
			writable:     true,
		})
		return nil
	}

	if descriptor.set != nil {
		_, err := descriptor.set.Invoke(vm, jso, []JSValue{value}, CallFlags{})
		return err
	}
	if descriptor.isAccessor() {
		// accessor with no setter: silently ignored in sloppy mode,
		// TypeError in strict mode (spec.md §4.2).
		if vm != nil && isStrict(vm.curScope) {
			return vm.ThrowError("TypeError", "Cannot set property "+name.String()+" which has only a getter")
		}
		return nil
	}
	if owner != jso {
		// inherited data property: shadow with an own property, unless
		// non-writable (spec.md §3.2 invariant).
		if !descriptor.writable {
			if vm != nil && isStrict(vm.curScope) {
				return vm.ThrowError("TypeError", "Cannot assign to read only property "+name.String())
			}
			return nil
		}
		jso.defineOwn(name, &Descriptor{value: value, configurable: true, enumerable: true, writable: true})
		return nil
	}
	if !descriptor.writable {
		if vm != nil && isStrict(vm.curScope) {
			return vm.ThrowError("TypeError", "Cannot assign to read only property "+name.String())
		}
		return nil
	}
	descriptor.value = value
	return nil
}

func (jso *JSObject) getOrDefineProperty(name Name) *Descriptor {
	ds, isThere := jso.getOwnPropertyDescriptor(name)
	if !isThere {
		ds = jso.DefineProperty(name, Descriptor{value: JSUndefined{}})
	}
	return ds
}

// DefineProperty installs an own property unconditionally, honoring
// every flag supplied (spec.md §9 "Config objects": no defaulting).
func (jso *JSObject) DefineProperty(name Name, descriptor Descriptor) *Descriptor {
	dp := &descriptor
	jso.defineOwn(name, dp)
	return dp
}

func (jso *JSObject) defineOwn(name Name, dp *Descriptor) {
	if _, exists := jso.descriptors[name]; !exists {
		jso.keyOrder = append(jso.keyOrder, name)
	}
	jso.descriptors[name] = dp
}

func (jso *JSObject) DeleteProperty(name Name) bool {
	if jso.kind == KindProxy {
		ok, _ := jso.proxy.proxyDelete(nil, name)
		return ok
	}
	_, wasThere := jso.descriptors[name]
	delete(jso.descriptors, name)
	if wasThere {
		for i, k := range jso.keyOrder {
			if k == name {
				jso.keyOrder = append(jso.keyOrder[:i], jso.keyOrder[i+1:]...)
				break
			}
		}
	}
	return wasThere
}

// OwnKeys returns own property keys ordered per spec.md §8: integer-
// like ascending, then string insertion order, then symbols.
func (jso *JSObject) OwnKeys() []Name {
	if jso.kind == KindProxy {
		keys, _ := jso.proxy.proxyOwnKeys(nil)
		return keys
	}
	var ints []uint64
	var strs []Name
	var syms []Name

	if jso.kind == KindArray {
		for i := range jso.arrayPart {
			ints = append(ints, uint64(i))
		}
	}

	for _, k := range jso.keyOrder {
		if k.isSymbol {
			syms = append(syms, k)
			continue
		}
		if idx, ok := arrayIndexOf(k); ok {
			ints = append(ints, uint64(idx))
			continue
		}
		strs = append(strs, k)
	}

	sortUint64(ints)

	out := make([]Name, 0, len(ints)+len(strs)+len(syms))
	for _, i := range ints {
		out = append(out, NameStr(fmt.Sprint(i)))
	}
	out = append(out, strs...)
	out = append(out, syms...)
	return out
}

func sortUint64(s []uint64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// arrayIndexOf reports whether name is a canonical array index string
// (spec.md §4.2: integer keys 0 <= k < 2^32-1 map to dense storage).
func arrayIndexOf(name Name) (uint32, bool) {
	if name.isSymbol || name.string == "" {
		return 0, false
	}
	s := name.string
	if s == "0" {
		return 0, true
	}
	if s[0] < '1' || s[0] > '9' {
		return 0, false
	}
	var n uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
		if n >= 1<<32-1 {
			return 0, false
		}
	}
	return uint32(n), true
}

func (jso *JSObject) GetIndex(ndx uint) (JSValue, error) {
	if jso.kind == KindArray {
		if int(ndx) < len(jso.arrayPart) {
			return jso.arrayPart[ndx], nil
		}
		return JSUndefined{}, nil
	}
	return jso.GetProperty(NameStr(fmt.Sprint(ndx)), nil)
}

func (jso *JSObject) SetIndex(ndx int, value JSValue) {
	if jso.kind == KindArray {
		for len(jso.arrayPart) < ndx+1 {
			jso.arrayPart = append(jso.arrayPart, JSUndefined{})
		}
		jso.arrayPart[ndx] = value
		return
	}
	err := jso.SetProperty(NameStr(fmt.Sprint(ndx)), value, nil)
	if err != nil {
		panic("bug: error in SetIndex")
	}
}

// setArrayLength implements the truncation invariant of spec.md §3.2:
// assignment to `length` removes exactly the indices >= n.
func (jso *JSObject) setArrayLength(n int) error {
	if n < 0 {
		return fmt.Errorf("invalid array length: %d", n)
	}
	if n < len(jso.arrayPart) {
		jso.arrayPart = jso.arrayPart[:n]
		return nil
	}
	for len(jso.arrayPart) < n {
		jso.arrayPart = append(jso.arrayPart, JSUndefined{})
	}
	return nil
}

func NewJSArray(realm *Realm) (obj *JSObject) {
	obj = new(JSObject)
	*obj = NewJSObject(realm.protoArray)
	obj.kind = KindArray
	obj.realm = realm
	obj.arrayPart = make([]JSValue, 0, 8)
	return
}

func NewNativeFunction(realm *Realm, paramNames []string, cb NativeCallback) JSObject {
	o := NewJSObject(realm.protoFunction)
	o.kind = KindFunction
	o.realm = realm
	o.funcPart = &FunctionPart{
		isStrict: true,
		native:   cb,
		params:   paramListFromNames(paramNames),
		realm:    realm,
	}
	return o
}
