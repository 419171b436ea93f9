package modeledjs

import (
	"com.github.sebastianobarrera.modeledjs/modeledjs/jsast"
	"go.uber.org/zap"
)

// AsyncTask drives one async-function activation using the
// cached-replay technique: each drive re-executes the function body
// from the top against a fresh body scope chained under the same
// param scope, replaying already-resolved `await`s from resumeValues
// and genuinely suspending at the first unresolved one. A `new`-
// expression executed before the suspension point runs again on every
// replay pass and builds a new object: newExprCache is allocated per
// task, but evalNew does not consult it.
type AsyncTask struct {
	fn         *JSObject
	paramScope *Scope
	promise    *JSObject

	resumeValues []JSValue
	newExprCache map[asyncNewCacheKey]JSValue
}

type asyncNewCacheKey struct {
	node interface{ Line() int }
	step int
}

type asyncReplayCtx struct {
	idx          int
	resumeValues []JSValue
	pendingAwait JSValue
}

// AsyncSuspensionSignal unwinds an async function body up to
// driveAsyncTask when it reaches an await whose value isn't cached yet.
type AsyncSuspensionSignal struct{}

func (AsyncSuspensionSignal) Error() string { return "[async-suspend]" }

func (vm *VM) runAsyncFunction(fn *JSObject, bodyScope *Scope, fp *FunctionPart) (JSValue, error) {
	task := &AsyncTask{
		fn:           fn,
		paramScope:   bodyScope.parent,
		promise:      vm.realm.newPromise(),
		newExprCache: map[asyncNewCacheKey]JSValue{},
	}
	vm.driveAsyncTask(task, fp)
	return task.promise, nil
}

func (vm *VM) driveAsyncTask(task *AsyncTask, fp *FunctionPart) {
	ctx := &asyncReplayCtx{resumeValues: task.resumeValues}
	saveCtx := vm.asyncCtx
	saveTask := vm.asyncTask
	vm.asyncCtx = ctx
	vm.asyncTask = task

	runScope := newScope(make(DirectEnv))
	runScope.parent = task.paramScope
	hoistDeclarations(fp.body, &runScope)

	saveScope := vm.curScope
	vm.curScope = &runScope
	err := vm.runStmts(fp.body)
	vm.curScope = saveScope
	vm.asyncCtx = saveCtx
	vm.asyncTask = saveTask

	switch e := err.(type) {
	case nil:
		vm.withScopeLogger().Debug("async function resolved", zap.String("fn", fp.name))
		vm.realm.resolvePromise(task.promise, JSUndefined{})
	case ReturnValue:
		vm.withScopeLogger().Debug("async function returned", zap.String("fn", fp.name))
		vm.realm.resolvePromise(task.promise, e.JSValue)
	case AsyncSuspensionSignal:
		vm.withScopeLogger().Debug("async function suspended at await", zap.String("fn", fp.name), zap.Int("replayed", len(task.resumeValues)))
		awaited := ctx.pendingAwait
		boxed, isPromise := awaited.(*JSObject)
		if isPromise && boxed.kind == KindPromise {
			vm.realm.onSettled(boxed,
				func(v JSValue) {
					task.resumeValues = append(task.resumeValues, v)
					vm.driveAsyncTask(task, fp)
				},
				func(v JSValue) {
					task.resumeValues = append(task.resumeValues, nil)
					vm.driveAsyncTaskWithThrow(task, fp, v)
				},
			)
		} else {
			v := awaited
			vm.realm.enqueueMicrotask(func() {
				task.resumeValues = append(task.resumeValues, v)
				vm.driveAsyncTask(task, fp)
			})
		}
	case *ProgramException:
		vm.realm.rejectPromise(task.promise, e.Value())
	default:
		vm.realm.rejectPromise(task.promise, JSString(err.Error()))
	}
}

// driveAsyncTaskWithThrow resumes a task whose awaited promise
// rejected: the replay must re-throw at the same await point instead
// of returning a resumption value, so the count of cached values still
// advances the replay counter but the suspension path throws.
func (vm *VM) driveAsyncTaskWithThrow(task *AsyncTask, fp *FunctionPart, reason JSValue) {
	ctx := &asyncReplayCtx{resumeValues: task.resumeValues[:len(task.resumeValues)-1], pendingAwait: nil}
	ctx.idx = len(ctx.resumeValues)
	saveCtx := vm.asyncCtx
	saveTask := vm.asyncTask
	vm.asyncCtx = ctx
	vm.asyncTask = task
	vm.asyncThrowAt = len(ctx.resumeValues)
	vm.asyncThrowValue = reason

	runScope := newScope(make(DirectEnv))
	runScope.parent = task.paramScope
	hoistDeclarations(fp.body, &runScope)

	saveScope := vm.curScope
	vm.curScope = &runScope
	err := vm.runStmts(fp.body)
	vm.curScope = saveScope
	vm.asyncCtx = saveCtx
	vm.asyncTask = saveTask
	vm.asyncThrowAt = -1

	switch e := err.(type) {
	case nil:
		vm.realm.resolvePromise(task.promise, JSUndefined{})
	case ReturnValue:
		vm.realm.resolvePromise(task.promise, e.JSValue)
	case AsyncSuspensionSignal:
		awaited := ctx.pendingAwait
		boxed, isPromise := awaited.(*JSObject)
		if isPromise && boxed.kind == KindPromise {
			vm.realm.onSettled(boxed,
				func(v JSValue) {
					task.resumeValues = append(task.resumeValues, v)
					vm.driveAsyncTask(task, fp)
				},
				func(v JSValue) {
					task.resumeValues = append(task.resumeValues, nil)
					vm.driveAsyncTaskWithThrow(task, fp, v)
				},
			)
		}
	case *ProgramException:
		vm.realm.rejectPromise(task.promise, e.Value())
	default:
		vm.realm.rejectPromise(task.promise, JSString(err.Error()))
	}
}

func (vm *VM) evalAwait(ex *jsast.AwaitExpr) (JSValue, error) {
	if vm.asyncCtx == nil {
		// top-level await (spec.md §8): treated as if inside an implicit
		// async wrapper driven by the module loader.
		if vm.topLevelAwaitCtx == nil {
			return nil, vm.ThrowError("SyntaxError", "await is only valid in async functions and the top level bodies of modules")
		}
		return vm.evalAwaitWithCtx(ex, vm.topLevelAwaitCtx)
	}
	return vm.evalAwaitWithCtx(ex, vm.asyncCtx)
}

func (vm *VM) evalAwaitWithCtx(ex *jsast.AwaitExpr, ctx *asyncReplayCtx) (JSValue, error) {
	idx := ctx.idx
	if idx == vm.asyncThrowAt {
		ctx.idx++
		return nil, vm.makeException(vm.asyncThrowValue)
	}
	if idx < len(ctx.resumeValues) {
		ctx.idx++
		return ctx.resumeValues[idx], nil
	}
	v, err := vm.evalExpr(ex.Argument)
	if err != nil {
		return nil, err
	}
	ctx.pendingAwait = v
	return nil, AsyncSuspensionSignal{}
}
