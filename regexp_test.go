package modeledjs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegexpLiteralTestAndExec(t *testing.T) {
	vm := runScript(t, `
		var re = /(\d+)-(\d+)/;
		var matched = re.test("order 12-34 placed");
		var m = re.exec("order 12-34 placed");
	`)

	matched, err := vm.GetGlobalVariable("matched")
	require.NoError(t, err)
	require.Equal(t, JSBoolean(true), matched)

	mVal, err := vm.GetGlobalVariable("m")
	require.NoError(t, err)
	mObj, ok := mVal.(*JSObject)
	require.True(t, ok)
	require.Equal(t, []JSValue{JSString("12-34"), JSString("12"), JSString("34")}, mObj.arrayPart)
}

func TestRegexpGlobalFlagAdvancesLastIndex(t *testing.T) {
	vm := runScript(t, `
		var re = /a/g;
		var first = re.exec("aba");
		var firstIndex = re.lastIndex;
		var second = re.exec("aba");
		var secondIndex = re.lastIndex;
		var third = re.exec("aba");
	`)

	firstIndex, err := vm.GetGlobalVariable("firstIndex")
	require.NoError(t, err)
	require.Equal(t, JSNumber(1), firstIndex)

	secondIndex, err := vm.GetGlobalVariable("secondIndex")
	require.NoError(t, err)
	require.Equal(t, JSNumber(3), secondIndex)

	third, err := vm.GetGlobalVariable("third")
	require.NoError(t, err)
	_, isNull := third.(JSNull)
	require.True(t, isNull, "exec should yield null once lastIndex runs past the end of input")
}

func TestRegexpConstructorFromString(t *testing.T) {
	vm := runScript(t, `
		var re = new RegExp("^h.llo$", "i");
		var matched = re.test("HELLO");
	`)

	matched, err := vm.GetGlobalVariable("matched")
	require.NoError(t, err)
	require.Equal(t, JSBoolean(true), matched)
}

func TestRegexpToString(t *testing.T) {
	vm := runScript(t, `
		var re = /foo/gi;
		var s = re.toString();
	`)

	s, err := vm.GetGlobalVariable("s")
	require.NoError(t, err)
	require.Equal(t, JSString("/foo/gi"), s)
}
