package modeledjs

import "fmt"

type DeclKind uint8

const (
	DeclVar DeclKind = iota
	DeclLet
	DeclConst
	DeclFunction
	DeclParameter
)

// binding is one slot in a DirectEnv: a value together with its kind
// and whether it has left the Temporal Dead Zone (spec.md §3.4).
type binding struct {
	value       JSValue
	kind        DeclKind
	initialized bool
}

// Environment is the binding-table contract shared by lexical, module,
// function, block, and global-object-backed ("with"/global) scopes.
type Environment interface {
	defineVar(scope *Scope, kind DeclKind, name Name, value JSValue)
	// declareTDZ installs an uninitialized let/const binding (no value
	// yet readable) so TDZ can be detected before the declaration runs.
	declareTDZ(scope *Scope, kind DeclKind, name Name)
	setVar(scope *Scope, name Name, value JSValue, vm *VM) error
	lookupVar(scope *Scope, name Name) (JSValue, bool, error)
	deleteVar(scope *Scope, name Name) bool
}

// Scope is one node in the lexical-environment chain. Per spec.md
// §3.4/§3.5, a function with parameter expressions gets two nested
// scopes (parameter scope, parent of a body scope) so that `var`
// declarations in the body don't leak into parameter-default closures;
// Scope.isParamScope marks the former.
type Scope struct {
	parent       *Scope
	isSetStrict  bool
	isParamScope bool
	env          Environment
	doNotDelete  map[Name]struct{}

	// non-nil iff this scope is a function call's execution-context
	// scope (spec.md §3.5): this, new.target, current function, etc.
	call *ScopeCall
}

// ScopeCall carries the Execution Context fields of spec.md §3.5 that
// live for the duration of one call.
type ScopeCall struct {
	this       JSValue
	newTarget  JSValue
	fn         *JSObject
	arguments  *JSObject
	asyncTask  *AsyncTask
	paramNames map[string]bool
	debugName  string

	// class-construction bookkeeping (spec.md §4.4)
	isConstructor bool
	isDerived     bool
	superCalled   bool
	classCtx      *ClassData
}

func isStrict(s *Scope) bool {
	for ; s != nil; s = s.parent {
		if s.isSetStrict {
			return true
		}
	}
	return false
}

func newScope(env Environment) Scope {
	return Scope{env: env, doNotDelete: make(map[Name]struct{})}
}

func newVarScope() Scope {
	return newScope(make(DirectEnv))
}

func currentCall(scope *Scope) *Scope {
	for ; scope != nil; scope = scope.parent {
		if scope.call != nil {
			return scope
		}
	}
	return nil
}

// nearestVariableScope finds the scope `var`/function declarations
// hoist into: the nearest enclosing function/global/module scope that
// is not itself a parameter scope or plain block.
func nearestVariableScope(s *Scope) *Scope {
	for ; s != nil; s = s.parent {
		if s.call != nil || s.parent == nil {
			return s
		}
		if _, isObj := s.env.(ObjectEnv); isObj {
			return s
		}
	}
	return s
}

// DirectEnv is a plain binding table (block/function/parameter scope).
type DirectEnv map[Name]*binding

func (denv DirectEnv) defineVar(scope *Scope, kind DeclKind, name Name, value JSValue) {
	if kind == DeclVar && scope.call == nil && !scope.isParamScope && scope.parent != nil {
		scope.parent.env.defineVar(scope.parent, kind, name, value)
		return
	}
	if b, ok := denv[name]; ok {
		if kind == DeclVar || kind == DeclFunction || !b.initialized {
			// DeclVar/DeclFunction re-entry, or this is the first real
			// assignment completing a let/const/class TDZ slot hoisting
			// pre-declared: initialize it.
			b.value = value
			b.initialized = true
			return
		}
		// re-declaration of an already-initialized let/const: discard,
		// matching teacher's "redefinition! => discard" behavior for the
		// var case.
		return
	}
	denv[name] = &binding{value: value, kind: kind, initialized: true}
}

func (denv DirectEnv) declareTDZ(scope *Scope, kind DeclKind, name Name) {
	if _, ok := denv[name]; !ok {
		denv[name] = &binding{kind: kind, initialized: false}
	}
}

func (denv DirectEnv) setVar(scope *Scope, name Name, value JSValue, vm *VM) error {
	if vm == nil {
		panic("vm not passed (required to throw ReferenceError)")
	}
	if b, ok := denv[name]; ok {
		if !b.initialized {
			return vm.ThrowError("ReferenceError", "Cannot access '"+name.String()+"' before initialization")
		}
		if b.kind == DeclConst {
			return vm.ThrowError("TypeError", "Assignment to constant variable '"+name.String()+"'")
		}
		b.value = value
		return nil
	}
	if parent := scope.parent; parent != nil {
		return parent.env.setVar(parent, name, value, vm)
	}
	if isStrict(scope) {
		return vm.ThrowError("ReferenceError", name.String()+" is not defined")
	}
	return vm.realm.globalObject.SetProperty(name, value, vm)
}

func (denv DirectEnv) lookupVar(scope *Scope, name Name) (JSValue, bool, error) {
	if b, ok := denv[name]; ok {
		if !b.initialized {
			return nil, true, fmt.Errorf("tdz")
		}
		return b.value, true, nil
	}
	if scope.parent != nil {
		return scope.parent.env.lookupVar(scope.parent, name)
	}
	return nil, false, nil
}

func (denv DirectEnv) deleteVar(scope *Scope, name Name) bool {
	if _, dnd := scope.doNotDelete[name]; dnd {
		return false
	}
	_, defined := denv[name]
	delete(denv, name)
	return defined
}

// ObjectEnv backs the global scope and module scope: declarations land
// as properties of a backing JSObject (globalThis, or a module's
// namespace object).
type ObjectEnv struct{ *JSObject }

func (oenv ObjectEnv) defineVar(_ *Scope, kind DeclKind, name Name, value JSValue) {
	oenv.SetProperty(name, value, nil)
}

func (oenv ObjectEnv) declareTDZ(_ *Scope, kind DeclKind, name Name) {
	// let/const at global/module scope still honor TDZ, but we model it
	// as an own, non-enumerable property with a sentinel until
	// initialized. Good enough for the global case this engine targets.
	if !oenv.HasOwnProperty(name) {
		oenv.DefineProperty(name, Descriptor{value: tdzSentinel{}, configurable: false, enumerable: false, writable: true})
	}
}

type tdzSentinel struct{}

func (tdzSentinel) Category() JSVCategory { return VUndefined }

func (oenv ObjectEnv) setVar(scope *Scope, name Name, value JSValue, vm *VM) error {
	if scope.isSetStrict {
		if !oenv.HasOwnProperty(name) {
			return vm.ThrowError("ReferenceError", "assignment to undeclared global variable: "+name.String())
		}
	}
	if cur, err := oenv.GetOwnProperty(name, vm); err == nil {
		if _, isTDZ := cur.(tdzSentinel); isTDZ {
			// fallthrough: initializing assignment
		}
	}
	return oenv.SetProperty(name, value, vm)
}

func (oenv ObjectEnv) lookupVar(scope *Scope, name Name) (JSValue, bool, error) {
	if !oenv.HasOwnProperty(name) {
		// only own properties of the backing object are consulted; its
		// prototype chain is not searched.
		return nil, false, nil
	}
	value, err := oenv.GetOwnProperty(name, nil)
	if err != nil {
		return nil, false, err
	}
	if _, isTDZ := value.(tdzSentinel); isTDZ {
		return nil, true, fmt.Errorf("tdz")
	}
	return value, true, nil
}

func (oenv ObjectEnv) deleteVar(scope *Scope, name Name) bool {
	if _, dnd := scope.doNotDelete[name]; dnd {
		return false
	}
	return oenv.DeleteProperty(name)
}

func (vm *VM) withScope(action func()) {
	saveScope := vm.curScope
	innerScope := newVarScope()
	innerScope.parent = vm.curScope
	vm.curScope = &innerScope
	defer func() { vm.curScope = saveScope }()
	action()
}
