package modeledjs

import (
	"fmt"

	"com.github.sebastianobarrera.modeledjs/modeledjs/jsast"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Realm is one isolated set of intrinsics (spec.md §9 design note):
// every prototype, the global object, well-known symbols, and the
// module registry are realm-scoped rather than package globals, so a
// host can run multiple mutually-isolated realms in one process.
type Realm struct {
	instanceID uuid.UUID
	logger     *zap.Logger

	globalObject *JSObject

	protoObject    *JSObject
	protoFunction  *JSObject
	protoArray     *JSObject
	protoString    *JSObject
	protoNumber    *JSObject
	protoBoolean   *JSObject
	protoBigint    *JSObject
	protoSymbol    *JSObject
	protoRegexp    *JSObject
	protoPromise   *JSObject
	protoGenerator *JSObject
	protoMap       *JSObject
	protoSet       *JSObject
	protoWeakMap   *JSObject
	protoWeakSet   *JSObject
	protoWeakRef   *JSObject
	protoFinRegist *JSObject
	protoError     map[string]*JSObject // per error-class prototype, chained to protoError["Error"]

	wellKnown wellKnownSymbols

	microtasks []func()

	modules *ModuleRegistry
}

type wellKnownSymbols struct {
	iterator      JSSymbol
	asyncIterator JSSymbol
	toPrimitive   JSSymbol
	toStringTag   JSSymbol
	hasInstance   JSSymbol
}

// VM is one evaluator attached to a realm: the live Execution Context
// stack (curScope), the error-reporting context, and the replay
// contexts for whichever generator/async function is currently
// resuming. Mirrors the teacher's VM{globalObject,curScope,synCtx}
// extended with the suspension bookkeeping its ES5.1 subset never
// needed.
type VM struct {
	realm    *Realm
	curScope *Scope
	synCtx   ProgramContext

	genCtx *generatorReplayCtx

	asyncCtx         *asyncReplayCtx
	asyncTask        *AsyncTask
	asyncThrowAt     int
	asyncThrowValue  JSValue
	topLevelAwaitCtx *asyncReplayCtx

	currentModule *Module
}

func newSymbol(desc string) JSSymbol {
	return NewSymbol(desc, true)
}

// NewRealm builds one isolated set of intrinsics: prototypes, the
// global object, and the well-known symbols, wired the way the
// teacher's createGlobalObject/init() wire the single shared globals,
// generalized to per-realm instances.
func NewRealm(logger *zap.Logger) *Realm {
	if logger == nil {
		logger = zap.NewNop()
	}
	realm := &Realm{
		instanceID: uuid.New(),
		logger:     logger,
		protoError: map[string]*JSObject{},
		wellKnown: wellKnownSymbols{
			iterator:      newSymbol("Symbol.iterator"),
			asyncIterator: newSymbol("Symbol.asyncIterator"),
			toPrimitive:   newSymbol("Symbol.toPrimitive"),
			toStringTag:   newSymbol("Symbol.toStringTag"),
			hasInstance:   newSymbol("Symbol.hasInstance"),
		},
	}
	realm.modules = newModuleRegistry(realm)
	realm.bootstrap()
	return realm
}

// NewEvaluator attaches a fresh Execution-Context stack to a realm, the
// public entry point an embedder uses to run a script or module body.
func NewEvaluator(realm *Realm) *VM {
	globalScope := newScope(ObjectEnv{realm.globalObject})
	vm := &VM{realm: realm, curScope: &globalScope, asyncThrowAt: -1}
	return vm
}

// NewVM constructs a realm and an evaluator over it in one call, for
// the common single-realm embedding case (mirrors the teacher's
// NewVM entry point).
func NewVM() *VM {
	return NewEvaluator(NewRealm(nil))
}

func (realm *Realm) errorProtoFor(className string) *JSObject {
	if p, ok := realm.protoError[className]; ok {
		return p
	}
	return realm.protoError["Error"]
}

func (realm *Realm) wrapPrimitive(vm *VM, ctorName string, value JSValue) (*JSObject, error) {
	var proto *JSObject
	switch ctorName {
	case "Number":
		proto = realm.protoNumber
	case "Boolean":
		proto = realm.protoBoolean
	case "String":
		proto = realm.protoString
	default:
		return nil, fmt.Errorf("unknown primitive wrapper: %s", ctorName)
	}
	o := new(JSObject)
	*o = NewJSObject(proto)
	o.kind = KindPrimitiveWrapper
	o.realm = realm
	o.hasPrimWrap = true
	switch v := value.(type) {
	case JSNumber:
		o.primNumber = v
	case JSBoolean:
		o.primBoolean = v
	case JSString:
		o.primString = v
	}
	return o, nil
}

// Evaluate runs a top-level script (non-module) body: top-level `var`/
// function declarations go directly onto the global object, matching
// sloppy/strict script semantics (spec.md §8).
func (vm *VM) Evaluate(prog *jsast.Program) (JSValue, error) {
	strict := hasUseStrict(prog.Body)
	vm.curScope.isSetStrict = strict
	hoistDeclarations(prog.Body, vm.curScope)

	var last JSValue = JSUndefined{}
	for _, s := range prog.Body {
		if es, ok := s.(*jsast.ExpressionStmt); ok {
			v, err := vm.evalExpr(es.Expression)
			if err != nil {
				return nil, err
			}
			last = v
			continue
		}
		if err := vm.runStmt(s); err != nil {
			return nil, err
		}
	}
	return last, nil
}

func (vm *VM) SetGlobalVariable(name string, value JSValue) {
	vm.realm.globalObject.SetProperty(NameStr(name), value, vm)
}

func (vm *VM) GetGlobalVariable(name string) (JSValue, error) {
	return vm.realm.globalObject.GetProperty(NameStr(name), vm)
}

func (vm *VM) HasGlobalVariable(name string) bool {
	return vm.realm.globalObject.HasOwnProperty(NameStr(name))
}

func (vm *VM) CallFunction(fn *JSObject, this JSValue, args []JSValue) (JSValue, error) {
	return fn.Invoke(vm, this, args, CallFlags{})
}

func (vm *VM) withScopeLogger() *zap.Logger {
	return vm.realm.logger.With(zap.String("realm", vm.realm.instanceID.String()))
}
