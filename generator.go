package modeledjs

import (
	"com.github.sebastianobarrera.modeledjs/modeledjs/jsast"
	"go.uber.org/zap"
)

// GeneratorState is the per-generator-object payload. Like AsyncTask,
// it uses the cached-replay technique: .next(v) appends v to
// resumeValues and re-runs the body from the top, fast-forwarding
// through already-resumed yields until it reaches the first one with
// no cached resumption value, where it genuinely suspends.
type GeneratorState struct {
	fn         *JSObject
	subject    JSValue
	args       []JSValue
	paramScope *Scope

	started      bool
	done         bool
	resumeValues []JSValue
}

type generatorReplayCtx struct {
	idx            int
	resumeValues   []JSValue
	didSuspend     bool
	suspendedValue JSValue
}

// GeneratorYieldSignal unwinds a generator body up to the .next()
// driver when it reaches a yield with no cached resumption value yet.
type GeneratorYieldSignal struct{}

func (GeneratorYieldSignal) Error() string { return "[generator-yield]" }

func (vm *VM) startGenerator(fn *JSObject, subject JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
	fp := fn.funcPart

	callScope := newScope(make(DirectEnv))
	callScope.parent = fp.lexicalScope
	callScope.isSetStrict = fp.isStrict
	this := subject
	if this == nil {
		this = JSUndefined{}
	}
	callScope.call = &ScopeCall{this: this, fn: fn, newTarget: JSUndefined{}}

	paramScope := newScope(make(DirectEnv))
	paramScope.parent = &callScope
	paramScope.isParamScope = true
	if err := vm.bindParameters(&paramScope, fp.params, args); err != nil {
		return nil, err
	}

	genObj := new(JSObject)
	*genObj = NewJSObject(vm.realm.protoGenerator)
	genObj.kind = KindGenerator
	genObj.realm = vm.realm
	genObj.generator = &GeneratorState{fn: fn, subject: this, args: args, paramScope: &paramScope}
	return genObj, nil
}

func (vm *VM) generatorNext(gen *JSObject, sentValue JSValue, hasSent bool) (JSValue, error) {
	gs := gen.generator
	if gs == nil {
		return nil, vm.ThrowError("TypeError", "not a generator")
	}
	if gs.done {
		return vm.makeIterResult(JSUndefined{}, true), nil
	}
	if gs.started {
		gs.resumeValues = append(gs.resumeValues, sentValue)
	}
	gs.started = true

	fp := gs.fn.funcPart
	ctx := &generatorReplayCtx{resumeValues: gs.resumeValues}
	saveCtx := vm.genCtx
	vm.genCtx = ctx

	bodyScope := newScope(make(DirectEnv))
	bodyScope.parent = gs.paramScope
	hoistDeclarations(fp.body, &bodyScope)

	saveScope := vm.curScope
	vm.curScope = &bodyScope
	err := vm.runStmts(fp.body)
	vm.curScope = saveScope
	vm.genCtx = saveCtx

	switch e := err.(type) {
	case nil:
		gs.done = true
		vm.withScopeLogger().Debug("generator completed", zap.String("fn", fp.name))
		return vm.makeIterResult(JSUndefined{}, true), nil
	case ReturnValue:
		gs.done = true
		vm.withScopeLogger().Debug("generator returned", zap.String("fn", fp.name))
		return vm.makeIterResult(e.JSValue, true), nil
	case GeneratorYieldSignal:
		vm.withScopeLogger().Debug("generator suspended", zap.String("fn", fp.name), zap.Int("replayed", ctx.idx))
		return vm.makeIterResult(ctx.suspendedValue, false), nil
	default:
		gs.done = true
		return nil, err
	}
}

func (vm *VM) makeIterResult(value JSValue, done bool) *JSObject {
	o := new(JSObject)
	*o = NewJSObject(vm.realm.protoObject)
	o.realm = vm.realm
	o.SetProperty(NameStr("value"), value, vm)
	o.SetProperty(NameStr("done"), JSBoolean(done), vm)
	return o
}

func (vm *VM) evalYield(ex *jsast.YieldExpr) (JSValue, error) {
	if vm.genCtx == nil {
		return nil, vm.ThrowError("SyntaxError", "yield is only valid inside generator functions")
	}
	ctx := vm.genCtx

	if ex.Delegate {
		// simplified yield*: the delegated iterable is drained eagerly
		// and each of its values is replayed as one cached yield. This
		// loses true two-way communication with the inner iterator but
		// preserves the values/ordering for the common case. The
		// argument is evaluated and drained again on every replay pass;
		// items already resumed on a prior pass take their cached
		// resumption values in yieldOne.
		var argVal JSValue = JSUndefined{}
		if ex.Argument != nil {
			v, err := vm.evalExpr(ex.Argument)
			if err != nil {
				return nil, err
			}
			argVal = v
		}
		items, err := vm.iterateGeneric(argVal)
		if err != nil {
			return nil, err
		}
		var last JSValue = JSUndefined{}
		for _, item := range items {
			v, err := vm.yieldOne(ctx, item)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil
	}

	idx := ctx.idx
	if idx < len(ctx.resumeValues) {
		// cached from a prior replay pass: return the cached value
		// without re-evaluating ex.Argument, so yield-argument side
		// effects don't rerun on every subsequent .next() call.
		return vm.yieldOne(ctx, JSUndefined{})
	}

	var argVal JSValue = JSUndefined{}
	if ex.Argument != nil {
		v, err := vm.evalExpr(ex.Argument)
		if err != nil {
			return nil, err
		}
		argVal = v
	}
	return vm.yieldOne(ctx, argVal)
}

func (vm *VM) yieldOne(ctx *generatorReplayCtx, argVal JSValue) (JSValue, error) {
	idx := ctx.idx
	if idx < len(ctx.resumeValues) {
		ctx.idx++
		return ctx.resumeValues[idx], nil
	}
	ctx.didSuspend = true
	ctx.suspendedValue = argVal
	return nil, GeneratorYieldSignal{}
}
