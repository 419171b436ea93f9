package modeledjs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func runScript(t *testing.T, src string) *VM {
	t.Helper()
	vm := NewVM()
	err := vm.RunScriptReader("<test>", strings.NewReader(src))
	require.NoError(t, err)
	return vm
}

func TestProxyGetTrapIntercepts(t *testing.T) {
	vm := runScript(t, `
		var log = [];
		var target = {greeting: "hi"};
		var handler = {
			get: function(t, key, receiver) {
				log.push(key);
				return t[key] + "!";
			}
		};
		var p = new Proxy(target, handler);
		var result = p.greeting;
	`)

	result, err := vm.GetGlobalVariable("result")
	require.NoError(t, err)
	require.Equal(t, JSString("hi!"), result)

	logVal, err := vm.GetGlobalVariable("log")
	require.NoError(t, err)
	logObj, ok := logVal.(*JSObject)
	require.True(t, ok)
	require.Equal(t, []JSValue{JSString("greeting")}, logObj.arrayPart)
}

func TestProxyWithoutTrapFallsThroughToTarget(t *testing.T) {
	vm := runScript(t, `
		var target = {a: 1, b: 2};
		var p = new Proxy(target, {});
		var sum = p.a + p.b;
	`)

	sum, err := vm.GetGlobalVariable("sum")
	require.NoError(t, err)
	require.Equal(t, JSNumber(3), sum)
}

func TestProxySetTrapIntercepts(t *testing.T) {
	vm := runScript(t, `
		var calls = 0;
		var target = {};
		var p = new Proxy(target, {
			set: function(t, key, value) {
				calls++;
				t[key] = value * 2;
				return true;
			}
		});
		p.x = 10;
	`)

	calls, err := vm.GetGlobalVariable("calls")
	require.NoError(t, err)
	require.Equal(t, JSNumber(1), calls)
}

func TestReflectGetBypassesTrap(t *testing.T) {
	vm := runScript(t, `
		var trapCalled = false;
		var target = {a: 42};
		var p = new Proxy(target, {
			get: function() { trapCalled = true; return -1; }
		});
		var direct = Reflect.get(target, "a");
	`)

	direct, err := vm.GetGlobalVariable("direct")
	require.NoError(t, err)
	require.Equal(t, JSNumber(42), direct)
}

func TestProxyApplyTrap(t *testing.T) {
	vm := runScript(t, `
		var seenArgs = null;
		function add(a, b) { return a + b; }
		var p = new Proxy(add, {
			apply: function(target, thisArg, args) {
				seenArgs = args;
				return target(args[0], args[1]) + 100;
			}
		});
		var result = p(1, 2);
	`)

	result, err := vm.GetGlobalVariable("result")
	require.NoError(t, err)
	require.Equal(t, JSNumber(103), result)
}
