package modeledjs

// PromiseState backs KindPromise objects: status plus the reaction
// queues spec.md §6 describes (fulfill/reject callbacks registered by
// .then, run in registration order once settled).
type PromiseState struct {
	status     promiseStatus
	value      JSValue
	onFulfill  []func(JSValue)
	onReject   []func(JSValue)
	isHandled  bool
}

type promiseStatus uint8

const (
	PromisePending promiseStatus = iota
	PromiseFulfilled
	PromiseRejected
)

func (realm *Realm) newPromise() *JSObject {
	p := new(JSObject)
	*p = NewJSObject(realm.protoPromise)
	p.kind = KindPromise
	p.realm = realm
	p.promise = &PromiseState{status: PromisePending}
	return p
}

func (realm *Realm) resolvePromise(p *JSObject, value JSValue) {
	ps := p.promise
	if ps.status != PromisePending {
		return
	}
	if inner, ok := value.(*JSObject); ok && inner.kind == KindPromise {
		realm.onSettled(inner, func(v JSValue) { realm.fulfillPromise(p, v) }, func(v JSValue) { realm.rejectPromise(p, v) })
		return
	}
	realm.fulfillPromise(p, value)
}

func (realm *Realm) fulfillPromise(p *JSObject, value JSValue) {
	ps := p.promise
	if ps.status != PromisePending {
		return
	}
	ps.status = PromiseFulfilled
	ps.value = value
	cbs := ps.onFulfill
	ps.onFulfill, ps.onReject = nil, nil
	for _, cb := range cbs {
		cb := cb
		realm.enqueueMicrotask(func() { cb(value) })
	}
}

func (realm *Realm) rejectPromise(p *JSObject, reason JSValue) {
	ps := p.promise
	if ps.status != PromisePending {
		return
	}
	ps.status = PromiseRejected
	ps.value = reason
	cbs := ps.onReject
	ps.onFulfill, ps.onReject = nil, nil
	for _, cb := range cbs {
		cb := cb
		realm.enqueueMicrotask(func() { cb(reason) })
	}
}

// onSettled registers fulfill/reject continuations, running immediately
// (as a microtask) if the promise already settled, per spec.md §6
// ordering guarantees (reactions fire in registration order, never
// synchronously within the same turn).
func (realm *Realm) onSettled(p *JSObject, onFulfill func(JSValue), onReject func(JSValue)) {
	ps := p.promise
	ps.isHandled = true
	switch ps.status {
	case PromisePending:
		ps.onFulfill = append(ps.onFulfill, onFulfill)
		ps.onReject = append(ps.onReject, onReject)
	case PromiseFulfilled:
		v := ps.value
		realm.enqueueMicrotask(func() { onFulfill(v) })
	case PromiseRejected:
		v := ps.value
		realm.enqueueMicrotask(func() { onReject(v) })
	}
}

func (realm *Realm) enqueueMicrotask(task func()) {
	realm.microtasks = append(realm.microtasks, task)
}

// RunPendingAsyncTasks drains the microtask queue, the public entry
// point an embedder calls after a script finishes (spec.md §6: the
// host is responsible for pumping the job queue since there is no
// real event loop inside the evaluator).
func (vm *VM) RunPendingAsyncTasks() {
	realm := vm.realm
	for len(realm.microtasks) > 0 {
		task := realm.microtasks[0]
		realm.microtasks = realm.microtasks[1:]
		task()
	}
}

func promiseThen(vm *VM, subject JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
	p, ok := subject.(*JSObject)
	if !ok || p.kind != KindPromise {
		return nil, vm.ThrowError("TypeError", "Promise.prototype.then called on non-Promise")
	}
	var onF, onR *JSObject
	if len(args) > 0 {
		onF, _ = args[0].(*JSObject)
	}
	if len(args) > 1 {
		onR, _ = args[1].(*JSObject)
	}

	result := vm.realm.newPromise()
	vm.realm.onSettled(p,
		func(v JSValue) { runReaction(vm, result, onF, v, true) },
		func(v JSValue) { runReaction(vm, result, onR, v, false) },
	)
	return result, nil
}

func runReaction(vm *VM, result *JSObject, handler *JSObject, value JSValue, wasFulfilled bool) {
	if handler == nil || handler.funcPart == nil {
		if wasFulfilled {
			vm.realm.resolvePromise(result, value)
		} else {
			vm.realm.rejectPromise(result, value)
		}
		return
	}
	ret, err := handler.Invoke(vm, JSUndefined{}, []JSValue{value}, CallFlags{})
	if err != nil {
		if pexc, ok := err.(*ProgramException); ok {
			vm.realm.rejectPromise(result, pexc.Value())
			return
		}
		vm.realm.rejectPromise(result, JSString(err.Error()))
		return
	}
	vm.realm.resolvePromise(result, ret)
}

func promiseCatch(vm *VM, subject JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
	var onR JSValue = JSUndefined{}
	if len(args) > 0 {
		onR = args[0]
	}
	return promiseThen(vm, subject, []JSValue{JSUndefined{}, onR}, flags)
}

func promiseFinally(vm *VM, subject JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
	p, ok := subject.(*JSObject)
	if !ok || p.kind != KindPromise {
		return nil, vm.ThrowError("TypeError", "Promise.prototype.finally called on non-Promise")
	}
	var onFin *JSObject
	if len(args) > 0 {
		onFin, _ = args[0].(*JSObject)
	}
	result := vm.realm.newPromise()
	vm.realm.onSettled(p,
		func(v JSValue) {
			if onFin != nil {
				onFin.Invoke(vm, JSUndefined{}, nil, CallFlags{})
			}
			vm.realm.resolvePromise(result, v)
		},
		func(v JSValue) {
			if onFin != nil {
				onFin.Invoke(vm, JSUndefined{}, nil, CallFlags{})
			}
			vm.realm.rejectPromise(result, v)
		},
	)
	return result, nil
}

func promiseConstructor(vm *VM, subject JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
	if !flags.isNew {
		return nil, vm.ThrowError("TypeError", "Promise constructor cannot be invoked without 'new'")
	}
	if len(args) == 0 {
		return nil, vm.ThrowError("TypeError", "Promise resolver is not a function")
	}
	executor, ok := args[0].(*JSObject)
	if !ok || executor.funcPart == nil {
		return nil, vm.ThrowError("TypeError", "Promise resolver is not a function")
	}

	p := vm.realm.newPromise()
	resolve := NewNativeFunction(vm.realm, []string{"value"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		var v JSValue = JSUndefined{}
		if len(args) > 0 {
			v = args[0]
		}
		vm.realm.resolvePromise(p, v)
		return JSUndefined{}, nil
	})
	reject := NewNativeFunction(vm.realm, []string{"reason"}, func(vm *VM, _ JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		var v JSValue = JSUndefined{}
		if len(args) > 0 {
			v = args[0]
		}
		vm.realm.rejectPromise(p, v)
		return JSUndefined{}, nil
	})

	_, err := executor.Invoke(vm, JSUndefined{}, []JSValue{&resolve, &reject}, CallFlags{})
	if err != nil {
		if pexc, ok := err.(*ProgramException); ok {
			vm.realm.rejectPromise(p, pexc.Value())
		} else {
			return nil, err
		}
	}
	return p, nil
}
