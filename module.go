package modeledjs

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"com.github.sebastianobarrera.modeledjs/modeledjs/jsast"
	tsparser "com.github.sebastianobarrera.modeledjs/modeledjs/ts-parser"
	"github.com/pkg/errors"
	"github.com/robertkrimen/otto/parser"
)

// Loader is the host-supplied pair of callbacks that let an embedder
// resolve a module specifier against an importer and fetch its source
// text (spec.md §4.8/§8). Load takes a context so a real embedder can
// cancel a hung fetch; the core itself never imposes a timeout.
type Loader interface {
	Resolve(specifier, importerID string) (string, error)
	Load(ctx context.Context, resolvedID string) (string, error)
}

type moduleStatus uint8

const (
	moduleUnlinked moduleStatus = iota
	moduleLinking
	moduleLinked
	moduleEvaluating
	moduleEvaluatingAsync
	moduleEvaluated
	moduleErrored
)

// Module is one linked unit of the module graph: its own lexical
// environment, its resolved dependency ids, and its named exports.
// Exports backed by a plain local declaration (the overwhelming common
// case, and the one spec.md §8's cyclic-import requirement is about)
// are live bindings: exportLocals records the local binding name, and
// an importer that can alias it shares the same *binding pointer (see
// bindingFor/bindLiveImport below) instead of copying a value, so a
// later assignment to the exporting module's local variable is visible
// to every importer immediately. exports itself remains a value
// snapshot, used as a fallback for exports that aren't backed by a
// single local binding (export of an expression, re-export chained
// through another module's namespace) and to build the namespace
// object's own enumerable properties.
type Module struct {
	id      string
	program *jsast.Program
	hasTLA  bool

	status   moduleStatus
	dfsIndex int
	lowLink  int
	onStack  bool

	deps        []string
	importSpecs []parsedImportSpec
	reexports   []parsedExportSpec

	exports      map[string]JSValue
	exportLocals map[string]Name // export name -> local binding name in mod.env, for live exports
	exportOrder  []string
	namespace    *JSObject

	env     *Scope
	promise *JSObject
	err     error
}

func (mod *Module) getExport(name string) (JSValue, bool) {
	v, ok := mod.exports[name]
	return v, ok
}

// bindingFor returns the *binding backing a declared name in mod's own
// top-level environment, or nil if mod hasn't set up its env yet or
// the name isn't a direct module-scope binding.
func (mod *Module) bindingFor(localName Name) *binding {
	if mod.env == nil {
		return nil
	}
	denv, ok := mod.env.env.(DirectEnv)
	if !ok {
		return nil
	}
	return denv[localName]
}

// recordLocalExport marks exportName as backed by the module's own
// localName binding, making it a candidate for live-binding aliasing
// by importers (see bindLiveImport).
func (mod *Module) recordLocalExport(exportName, localName string) {
	if mod.exportLocals == nil {
		mod.exportLocals = map[string]Name{}
	}
	mod.exportLocals[exportName] = NameStr(localName)
}

// bindLiveImport aliases a dependency's local binding directly into
// scope under localAlias, so reads and the dependency's own writes to
// that binding are observed through the same *binding pointer, instead
// of the one-time value copy a plain defineVar would produce. Returns
// false (caller should fall back to a snapshot copy) when the export
// isn't backed by a single local binding dep can resolve yet.
func (vm *VM) bindLiveImport(scope *Scope, localAlias string, dep *Module, exportKey string) bool {
	localName, ok := dep.exportLocals[exportKey]
	if !ok {
		return false
	}
	b := dep.bindingFor(localName)
	if b == nil {
		return false
	}
	denv, ok := scope.env.(DirectEnv)
	if !ok {
		return false
	}
	denv[NameStr(localAlias)] = b
	return true
}

// ModuleRegistry is the realm-scoped module graph/cache (spec.md §8):
// one registry per realm, so two realms never share linked modules.
type ModuleRegistry struct {
	realm  *Realm
	loader Loader
	cache  map[string]*Module
	stack  []*Module
	index  int

	syntaxPreCheck bool
}

func newModuleRegistry(realm *Realm) *ModuleRegistry {
	return &ModuleRegistry{realm: realm, cache: map[string]*Module{}}
}

// SetModuleLoader installs the host's Resolve/Load callbacks; an
// embedder must call this before ImportModule/dynamic import can do
// anything beyond erroring with "no module loader configured".
func (vm *VM) SetModuleLoader(loader Loader) {
	vm.realm.modules.loader = loader
}

// SetModuleSyntaxPreCheck toggles the tree-sitter well-formedness pass
// (SPEC_FULL.md §4.10/§8) that runs over a module's source before it
// reaches the otto front end: a cheap second opinion that turns a
// malformed module deep in a dependency graph into an early
// SyntaxError instead of an otto parser panic/error surfacing from
// whatever lowerModuleBody happens to produce.
func (vm *VM) SetModuleSyntaxPreCheck(enabled bool) {
	vm.realm.modules.syntaxPreCheck = enabled
}

// ImportModule links and evaluates the module graph rooted at
// entryID, synchronously for the non-top-level-await case, returning
// its namespace object.
func (vm *VM) ImportModule(entryID string) (*JSObject, error) {
	mr := vm.realm.modules
	mod, err := mr.LinkModule(entryID)
	if err != nil {
		return nil, err
	}
	if err := vm.evaluateModule(mod); err != nil {
		return nil, err
	}
	return mod.namespace, nil
}

// LinkModule runs Tarjan's SCC algorithm over the import graph rooted
// at entryID (spec.md §8's cycle-handling requirement), registering
// each module at `linking` before recursing into its dependencies so
// a cyclic import observes the live, already-registered module instead
// of re-entering the loader.
func (mr *ModuleRegistry) LinkModule(entryID string) (*Module, error) {
	if mr.loader == nil {
		return nil, fmt.Errorf("no module loader configured")
	}
	return mr.linkFrom(entryID)
}

func (mr *ModuleRegistry) linkFrom(id string) (*Module, error) {
	if mod, ok := mr.cache[id]; ok {
		return mod, nil
	}

	src, err := mr.loader.Load(context.Background(), id)
	if err != nil {
		return nil, errors.Wrapf(err, "loading module %q", id)
	}

	if mr.syntaxPreCheck {
		if err := tsparser.ParseBytes(id, []byte(src)); err != nil {
			return nil, errors.Wrapf(err, "syntax pre-check on module %q", id)
		}
	}

	body, imports, exports, hasTLA := parseModuleSource(src)
	program, err := lowerModuleBody(body)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing module %q", id)
	}
	hasTLA = hasTLA || program.HasTopLevelAwait
	program.HasTopLevelAwait = hasTLA

	mod := &Module{
		id:       id,
		program:  program,
		hasTLA:   hasTLA,
		status:   moduleLinking,
		dfsIndex: mr.index,
		lowLink:  mr.index,
		onStack:  true,
		exports:  map[string]JSValue{},
	}
	mr.index++
	mr.cache[id] = mod
	mr.stack = append(mr.stack, mod)

	for _, imp := range imports {
		resolved, err := mr.loader.Resolve(imp.source, id)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving %q from %q", imp.source, id)
		}
		mod.deps = append(mod.deps, resolved)
		dep, err := mr.linkFrom(resolved)
		if err != nil {
			return nil, err
		}
		if dep.onStack && dep.dfsIndex < mod.lowLink {
			mod.lowLink = dep.dfsIndex
		} else if !dep.onStack && dep.lowLink < mod.lowLink {
			mod.lowLink = dep.lowLink
		}
	}
	for _, reexp := range exports {
		if reexp.source == "" {
			continue
		}
		resolved, err := mr.loader.Resolve(reexp.source, id)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving %q from %q", reexp.source, id)
		}
		dep, err := mr.linkFrom(resolved)
		if err != nil {
			return nil, err
		}
		if dep.onStack && dep.dfsIndex < mod.lowLink {
			mod.lowLink = dep.dfsIndex
		} else if !dep.onStack && dep.lowLink < mod.lowLink {
			mod.lowLink = dep.lowLink
		}
	}

	mod.importSpecs = imports
	mod.reexports = exports

	if mod.lowLink == mod.dfsIndex {
		for {
			n := len(mr.stack) - 1
			w := mr.stack[n]
			mr.stack = mr.stack[:n]
			w.onStack = false
			w.status = moduleLinked
			if w == mod {
				break
			}
		}
	}

	return mod, nil
}

func (vm *VM) evaluateModule(mod *Module) error {
	if mod.status == moduleEvaluated {
		return nil
	}
	if mod.status == moduleEvaluating || mod.status == moduleEvaluatingAsync {
		return nil // already in progress (cycle): its exports settle later
	}
	mod.status = moduleEvaluating

	for _, depID := range mod.deps {
		dep := vm.realm.modules.cache[depID]
		if dep != nil {
			if err := vm.evaluateModule(dep); err != nil {
				mod.status = moduleErrored
				mod.err = err
				return err
			}
		}
	}

	globalScope := newScope(ObjectEnv{vm.realm.globalObject})
	modScope := newScope(make(DirectEnv))
	modScope.parent = &globalScope
	mod.env = &modScope

	for _, imp := range mod.importSpecs {
		resolved, _ := vm.realm.modules.loader.Resolve(imp.source, mod.id)
		dep := vm.realm.modules.cache[resolved]
		for _, spec := range imp.specifiers {
			if dep == nil {
				modScope.env.defineVar(&modScope, DeclConst, NameStr(spec.local), JSUndefined{})
				continue
			}
			if spec.imported == "*" {
				modScope.env.defineVar(&modScope, DeclConst, NameStr(spec.local), dep.namespaceOrBuild(vm))
				continue
			}
			key := spec.imported
			if key == "" {
				key = "default"
			}
			if vm.bindLiveImport(&modScope, spec.local, dep, key) {
				continue
			}
			v, _ := dep.getExport(key)
			if v == nil {
				v = JSUndefined{}
			}
			modScope.env.defineVar(&modScope, DeclConst, NameStr(spec.local), v)
		}
	}

	for _, reexp := range mod.reexports {
		if reexp.source == "" {
			continue
		}
		resolved, _ := vm.realm.modules.loader.Resolve(reexp.source, mod.id)
		dep := vm.realm.modules.cache[resolved]
		if dep == nil {
			continue
		}
		if reexp.star {
			for _, name := range dep.exportOrder {
				if name == "default" {
					continue
				}
				exportName := name
				if reexp.as != "" {
					exportName = reexp.as
				}
				v, _ := dep.getExport(name)
				mod.recordExport(exportName, v)
			}
			continue
		}
		for _, spec := range reexp.specifiers {
			v, _ := dep.getExport(spec.imported)
			mod.recordExport(spec.local, v)
		}
	}

	saveScope := vm.curScope
	saveModule := vm.currentModule
	vm.curScope = &modScope
	vm.currentModule = mod

	hoistDeclarations(mod.program.Body, &modScope)

	var err error
	if mod.hasTLA {
		mod.status = moduleEvaluatingAsync
		err = vm.runModuleBodyWithTLA(mod)
	} else {
		err = vm.runStmts(mod.program.Body)
	}

	if err == nil {
		for _, reexp := range mod.reexports {
			if reexp.source != "" {
				continue
			}
			for _, spec := range reexp.specifiers {
				// textual pre-scan reuses this struct for both re-exports
				// ("from" set, handled above) and plain in-module renamed
				// exports: for the latter, .imported is the locally
				// declared name and .local is the exported alias.
				v, _, lookupErr := modScope.env.lookupVar(&modScope, NameStr(spec.imported))
				if lookupErr != nil || v == nil {
					v = JSUndefined{}
				}
				mod.recordLocalExport(spec.local, spec.imported)
				mod.recordExport(spec.local, v)
			}
		}
	}

	vm.curScope = saveScope
	vm.currentModule = saveModule

	if err != nil {
		mod.status = moduleErrored
		mod.err = err
		return err
	}

	mod.status = moduleEvaluated
	mod.namespaceOrBuild(vm)
	return nil
}

// runModuleBodyWithTLA drives a module body containing a top-level
// `await` with the same cached-replay technique async.go uses for
// async function bodies (spec.md §8's "wraps the body in an async
// task" requirement), re-running the whole body from the top on every
// resumption and fast-forwarding through already-settled awaits.
//
// Unlike an ordinary async function, module evaluation has no caller
// willing to receive a pending promise and keep going: ImportModule
// returns a namespace, not a promise, so a pending await here pumps
// the microtask queue in place until the awaited promise settles
// rather than suspending back to an event loop.
func (vm *VM) runModuleBodyWithTLA(mod *Module) error {
	resumeValues := []JSValue(nil)
	for {
		ctx := &asyncReplayCtx{resumeValues: resumeValues}
		saveCtx := vm.topLevelAwaitCtx
		vm.topLevelAwaitCtx = ctx
		err := vm.runStmts(mod.program.Body)
		vm.topLevelAwaitCtx = saveCtx

		if _, suspended := err.(AsyncSuspensionSignal); !suspended {
			return err
		}
		awaited := ctx.pendingAwait
		boxed, isPromise := awaited.(*JSObject)
		if !isPromise || boxed.kind != KindPromise {
			resumeValues = append(resumeValues, awaited)
			continue
		}
		for boxed.promise.status == PromisePending {
			if len(vm.realm.microtasks) == 0 {
				return vm.ThrowError("InternalError", "top-level await never settles: no pending microtasks")
			}
			vm.RunPendingAsyncTasks()
		}
		if boxed.promise.status == PromiseRejected {
			return vm.makeException(boxed.promise.value)
		}
		resumeValues = append(resumeValues, boxed.promise.value)
	}
}

func (mod *Module) recordExport(name string, v JSValue) {
	if _, exists := mod.exports[name]; !exists {
		mod.exportOrder = append(mod.exportOrder, name)
	}
	mod.exports[name] = v
}

func (mod *Module) namespaceOrBuild(vm *VM) *JSObject {
	if mod.namespace != nil {
		return mod.namespace
	}
	ns := new(JSObject)
	*ns = NewJSObject(nil)
	ns.realm = vm.realm
	ns.moduleNS = mod
	for _, name := range mod.exportOrder {
		if localName, ok := mod.exportLocals[name]; ok {
			getter := NewNativeFunction(vm.realm, nil, func(innerName Name) NativeCallback {
				return func(vm *VM, subject JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
					if b := mod.bindingFor(innerName); b != nil {
						return b.value, nil
					}
					return mod.exports[name], nil
				}
			}(localName))
			ns.DefineProperty(NameStr(name), Descriptor{get: &getter, enumerable: true})
			continue
		}
		v := mod.exports[name]
		ns.DefineProperty(NameStr(name), Descriptor{value: v, enumerable: true})
	}
	mod.namespace = ns
	return ns
}

// evalDynamicImport handles `import(specifier)` (spec.md §8): a
// call-like expression, resolved against whichever module is
// currently evaluating (or the empty importer id for a dynamic import
// reached from a non-module script), returning a promise of the
// target's namespace object rather than the synchronous namespace
// ImportModule returns.
func (vm *VM) evalDynamicImport(ex *jsast.CallExpr) (JSValue, error) {
	args, err := vm.evalArguments(ex.Arguments)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, vm.ThrowError("TypeError", "import() requires a specifier")
	}
	specifier, err := vm.coerceToString(args[0])
	if err != nil {
		return nil, err
	}

	importerID := ""
	if vm.currentModule != nil {
		importerID = vm.currentModule.id
	}

	p := vm.realm.newPromise()
	mr := vm.realm.modules
	if mr.loader == nil {
		vm.realm.rejectPromise(p, mustThrowValue(vm, "TypeError", "no module loader configured"))
		return p, nil
	}
	resolved, err := mr.loader.Resolve(string(specifier), importerID)
	if err != nil {
		vm.realm.rejectPromise(p, mustThrowValue(vm, "TypeError", err.Error()))
		return p, nil
	}
	mod, err := mr.LinkModule(resolved)
	if err != nil {
		vm.realm.rejectPromise(p, mustThrowValue(vm, "SyntaxError", err.Error()))
		return p, nil
	}
	if err := vm.evaluateModule(mod); err != nil {
		if exc, ok := err.(*ProgramException); ok {
			vm.realm.rejectPromise(p, exc.Value())
		} else {
			vm.realm.rejectPromise(p, mustThrowValue(vm, "Error", err.Error()))
		}
		return p, nil
	}
	vm.realm.resolvePromise(p, mod.namespaceOrBuild(vm))
	return p, nil
}

func mustThrowValue(vm *VM, className, message string) JSValue {
	err := vm.ThrowError(className, message)
	if exc, ok := err.(*ProgramException); ok {
		return exc.Value()
	}
	return JSString(message)
}

func (vm *VM) currentModuleMeta() (JSValue, error) {
	if vm.currentModule == nil {
		return nil, vm.ThrowError("SyntaxError", "import.meta is only valid inside a module")
	}
	meta := new(JSObject)
	*meta = NewJSObject(vm.realm.protoObject)
	meta.realm = vm.realm
	meta.DefineProperty(NameStr("url"), Descriptor{value: JSString(vm.currentModule.id), enumerable: true})
	return meta, nil
}

// runModuleDeclStmt handles the declarations that only make sense
// inside a module body. Imports were already bound into the module
// environment before the body ran (evaluateModule above), so reaching
// one here is a no-op; exports execute their wrapped declaration (if
// any) and then record the bound value(s) into the current module's
// export table.
func (vm *VM) runModuleDeclStmt(s jsast.Stmt) error {
	mod := vm.currentModule
	switch st := s.(type) {
	case *jsast.ImportDecl:
		// Only reached for hand-constructed jsast trees (otto can't parse
		// `import`); module text loaded through Loader is already bound
		// into scope before its body runs, by evaluateModule above.
		if mod == nil || vm.realm.modules.loader == nil {
			return nil
		}
		resolved, err := vm.realm.modules.loader.Resolve(st.Source, mod.id)
		if err != nil {
			return err
		}
		dep, err := vm.realm.modules.LinkModule(resolved)
		if err != nil {
			return err
		}
		if err := vm.evaluateModule(dep); err != nil {
			return err
		}
		for _, spec := range st.Specifiers {
			if spec.Imported != "*" {
				key := spec.Imported
				if key == "" {
					key = "default"
				}
				if vm.bindLiveImport(vm.curScope, spec.Local, dep, key) {
					continue
				}
			}
			var v JSValue
			if spec.Imported == "*" {
				v = dep.namespaceOrBuild(vm)
			} else {
				key := spec.Imported
				if key == "" {
					key = "default"
				}
				var ok bool
				v, ok = dep.getExport(key)
				if !ok {
					v = JSUndefined{}
				}
			}
			vm.curScope.env.defineVar(vm.curScope, DeclConst, NameStr(spec.Local), v)
		}
		return nil

	case *jsast.ExportNamedDecl:
		if st.Decl == nil {
			if mod != nil {
				for _, spec := range st.Specifiers {
					v, _, _ := vm.curScope.env.lookupVar(vm.curScope, NameStr(spec.Local))
					mod.recordLocalExport(spec.Exported, spec.Local)
					mod.recordExport(spec.Exported, v)
				}
			}
			return nil
		}
		if err := vm.runStmt(st.Decl); err != nil {
			return err
		}
		if mod == nil {
			return nil
		}
		for _, name := range declaredNamesOf(st.Decl) {
			v, _, _ := vm.curScope.env.lookupVar(vm.curScope, NameStr(name))
			mod.recordLocalExport(name, name)
			mod.recordExport(name, v)
		}
		return nil

	case *jsast.ExportDefaultDecl:
		var v JSValue
		var err error
		switch d := st.Decl.(type) {
		case *jsast.FunctionLiteral:
			v = vm.defineFunction(d, vm.curScope)
		case *jsast.ClassLiteral:
			v, err = vm.evalClassLiteral(d)
		case jsast.Expr:
			v, err = vm.evalExpr(d)
		default:
			return fmt.Errorf("unsupported export default payload: %T", d)
		}
		if err != nil {
			return err
		}
		if mod != nil {
			mod.recordExport("default", v)
		}
		return nil

	case *jsast.ExportAllDecl:
		// Text loaded through Loader resolves re-exports eagerly in
		// evaluateModule from mod.reexports; only a hand-built jsast tree
		// reaches this case, so resolve it here the same way ImportDecl
		// does above.
		if mod == nil || vm.realm.modules.loader == nil {
			return nil
		}
		resolved, err := vm.realm.modules.loader.Resolve(st.Source, mod.id)
		if err != nil {
			return err
		}
		dep, err := vm.realm.modules.LinkModule(resolved)
		if err != nil {
			return err
		}
		if err := vm.evaluateModule(dep); err != nil {
			return err
		}
		if st.As != "" {
			mod.recordExport(st.As, dep.namespaceOrBuild(vm))
			return nil
		}
		for _, name := range dep.exportOrder {
			if name == "default" {
				continue
			}
			v, _ := dep.getExport(name)
			mod.recordExport(name, v)
		}
		return nil

	default:
		return fmt.Errorf("unhandled module declaration: %T", s)
	}
}

func declaredNamesOf(s jsast.Stmt) []string {
	switch d := s.(type) {
	case *jsast.VarDecl:
		var names []string
		for _, decl := range d.Decls {
			names = append(names, patternNames(decl.Target)...)
		}
		return names
	case *jsast.FunctionDecl:
		return []string{d.Function.Name}
	case *jsast.ClassDecl:
		return []string{d.Class.Name}
	default:
		return nil
	}
}

// ---- textual import/export pre-scan --------------------------------
//
// otto's ES5.1 grammar has no notion of `import`/`export`, so module
// source text is pre-scanned line by line: import/export lines are
// extracted (and, for inline export declarations, reduced to the
// bare declaration) before the remaining body is handed to the otto
// front end. This covers the common single-line ESM forms; multi-line
// import/export clauses aren't recognized.

type parsedImportSpec struct {
	source     string
	specifiers []moduleSpecifier
}

type moduleSpecifier struct {
	imported string // "" for default, "*" for namespace
	local    string
}

type parsedExportSpec struct {
	source     string
	star       bool
	as         string
	specifiers []moduleSpecifier
}

var (
	reImportDefault   = regexp.MustCompile(`^import\s+(\w+)\s+from\s+["'](.+)["'];?\s*$`)
	reImportNamed     = regexp.MustCompile(`^import\s*\{([^}]*)\}\s*from\s*["'](.+)["'];?\s*$`)
	reImportNamespace = regexp.MustCompile(`^import\s*\*\s*as\s+(\w+)\s+from\s*["'](.+)["'];?\s*$`)
	reImportBare      = regexp.MustCompile(`^import\s*["'](.+)["'];?\s*$`)
	reExportDefault   = regexp.MustCompile(`^export\s+default\s+`)
	reExportNamed     = regexp.MustCompile(`^export\s*\{([^}]*)\}\s*(?:from\s*["'](.+)["'])?;?\s*$`)
	reExportAll       = regexp.MustCompile(`^export\s*\*\s*(?:as\s+(\w+)\s+)?from\s*["'](.+)["'];?\s*$`)
	reExportDecl      = regexp.MustCompile(`^export\s+(var|let|const|function\*?|class|async function)\s+`)
	reDeclName        = regexp.MustCompile(`^\w+\**\s+(\w+)`)
)

var reImportDefaultNamed = regexp.MustCompile(`^import\s+(\w+)\s*,\s*\{([^}]*)\}\s*from\s*["'](.+)["'];?\s*$`)

func parseModuleSource(src string) (body string, imports []parsedImportSpec, exports []parsedExportSpec, hasTLA bool) {
	var out []string
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)

		if m := reImportDefaultNamed.FindStringSubmatch(trimmed); m != nil {
			specs := append([]moduleSpecifier{{local: m[1]}}, parseSpecifierList(m[2])...)
			imports = append(imports, parsedImportSpec{source: m[3], specifiers: specs})
			continue
		}
		if m := reImportDefault.FindStringSubmatch(trimmed); m != nil {
			imports = append(imports, parsedImportSpec{source: m[2], specifiers: []moduleSpecifier{{local: m[1]}}})
			continue
		}
		if m := reImportNamespace.FindStringSubmatch(trimmed); m != nil {
			imports = append(imports, parsedImportSpec{source: m[2], specifiers: []moduleSpecifier{{imported: "*", local: m[1]}}})
			continue
		}
		if m := reImportNamed.FindStringSubmatch(trimmed); m != nil {
			imports = append(imports, parsedImportSpec{source: m[2], specifiers: parseSpecifierList(m[1])})
			continue
		}
		if m := reImportBare.FindStringSubmatch(trimmed); m != nil {
			imports = append(imports, parsedImportSpec{source: m[1]})
			continue
		}
		if m := reExportAll.FindStringSubmatch(trimmed); m != nil {
			exports = append(exports, parsedExportSpec{source: m[2], star: true, as: m[1]})
			continue
		}
		if m := reExportNamed.FindStringSubmatch(trimmed); m != nil {
			exports = append(exports, parsedExportSpec{source: m[2], specifiers: parseSpecifierList(m[1])})
			out = append(out, "")
			continue
		}
		if reExportDefault.MatchString(trimmed) {
			rest := reExportDefault.ReplaceAllString(trimmed, "")
			out = append(out, "var $moduleDefault = "+rest)
			exports = append(exports, parsedExportSpec{specifiers: []moduleSpecifier{{imported: "$moduleDefault", local: "default"}}})
			continue
		}
		if reExportDecl.MatchString(trimmed) {
			rest := reExportDecl.ReplaceAllString(trimmed, "$1 ")
			out = append(out, rest)
			if nm := reDeclName.FindStringSubmatch(rest); nm != nil {
				exports = append(exports, parsedExportSpec{specifiers: []moduleSpecifier{{imported: nm[1], local: nm[1]}}})
			}
			continue
		}
		if strings.Contains(trimmed, "await") && !strings.Contains(trimmed, "async") {
			hasTLA = true
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n"), imports, exports, hasTLA
}

func parseSpecifierList(raw string) []moduleSpecifier {
	var specs []moduleSpecifier
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(strings.ReplaceAll(part, " as ", " "))
		if len(fields) == 2 {
			specs = append(specs, moduleSpecifier{imported: fields[0], local: fields[1]})
		} else {
			specs = append(specs, moduleSpecifier{imported: part, local: part})
		}
	}
	return specs
}

func lowerModuleBody(body string) (prog *jsast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	program, perr := parser.ParseFile(nil, "<module>", body, 0)
	if perr != nil {
		return nil, perr
	}
	return LowerProgram(program), nil
}
