package modeledjs

import (
	"fmt"
	"reflect"
	"strings"
)

// VMError is implemented by every value that can propagate up through
// runStmt/evalExpr as something other than a "normal" Go error: the
// distinguished flow-control signals of spec.md §7 (return, break,
// continue), the JS-visible exception wrapper, and the suspension
// signals used by generators/async functions (defined in
// generator.go/async.go).
type VMError error

// ReturnValue unwinds a function body up to Invoke.
type ReturnValue struct{ JSValue }

func (rv ReturnValue) Error() string { return "(a value was returned)" }

// BreakSignal unwinds up to the nearest matching loop/switch/labeled
// statement. An empty label matches any innermost breakable construct.
type BreakSignal struct{ label string }

func (sigb BreakSignal) Error() string { return "[break:" + sigb.label + "]" }

// ContinueSignal unwinds up to the nearest matching loop.
type ContinueSignal struct{ label string }

func (sigc ContinueSignal) Error() string { return "[continue:" + sigc.label + "]" }

// ProgramException is a JS-thrown value (any JSValue, per spec.md §7)
// together with the JS call-stack context captured at throw time.
type ProgramException struct {
	exceptionValue JSValue
	context        ProgramContext
}

func (pexc *ProgramException) Value() JSValue { return pexc.exceptionValue }

func (pexc *ProgramException) message() string {
	if excStr, isStr := pexc.exceptionValue.(JSString); isStr {
		return string(excStr)
	}
	if excObj, isObj := pexc.exceptionValue.(*JSObject); isObj {
		msgValue, err := excObj.GetOwnProperty(NameStr("message"), nil)
		if err != nil {
			return fmt.Sprintf("while getting error's `message` property: %s", err)
		}
		if msgStr, isStr := msgValue.(JSString); isStr {
			return string(msgStr)
		}
	}
	return "(neither string nor object)"
}

func (pexc *ProgramException) Error() string {
	msg := pexc.message()
	lines := make([]string, 1+len(pexc.context.stack))
	lines[0] = fmt.Sprintf("JS exception: %s", msg)
	for i, item := range pexc.context.stack {
		lines[1+i] = fmt.Sprintf(" JS @ line %d %s", item.line, reflect.TypeOf(item.node).String())
	}
	return strings.Join(lines, "\n")
}

// ProgramContext tracks the live AST-node stack for error reporting,
// mirroring the teacher's ProgramContext/ContextItem but keyed on
// jsast nodes (which carry only a line, not a byte range).
type ProgramContext struct {
	stack []ContextItem
}

type ContextItem struct {
	line int
	node interface{ Line() int }
}

func (pctx *ProgramContext) Push(node interface{ Line() int }) {
	if node == nil {
		return
	}
	pctx.stack = append(pctx.stack, ContextItem{line: node.Line(), node: node})
}

func (pctx *ProgramContext) Pop(nodeCheck interface{ Line() int }) {
	if nodeCheck == nil {
		return
	}
	sl := len(pctx.stack)
	if sl == 0 {
		panic("bug: ProgramContext.Pop but stack already empty")
	}
	pctx.stack = pctx.stack[:sl-1]
}

// ThrowError constructs a JS Error object of the given constructor
// name (TypeError, RangeError, ReferenceError, SyntaxError, ...) and
// wraps it as a *ProgramException, exactly as the teacher's ThrowError
// did, but now resolving the constructor/prototype through the realm
// rather than a single shared global error prototype.
func (vm *VM) ThrowError(className string, message string) error {
	proto := vm.realm.errorProtoFor(className)
	exc := NewJSObject(proto)
	exc.kind = KindError
	exc.realm = vm.realm
	exc.errorData = &ErrorData{kind: className, message: message}
	exc.SetProperty(NameStr("message"), JSString(message), nil)
	exc.SetProperty(NameStr("name"), JSString(className), nil)
	exc.SetProperty(NameStr("stack"), JSString(className+": "+message), nil)
	return &ProgramException{exceptionValue: &exc, context: vm.synCtx}
}

func (vm *VM) makeException(excValue JSValue) error {
	return &ProgramException{exceptionValue: excValue, context: vm.synCtx}
}
