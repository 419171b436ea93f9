package modeledjs

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// RegexpData is the KindRegexp payload. Matching is delegated to
// regexp2's ECMAScript mode rather than a hand-rolled engine (spec.md's
// Non-goals explicitly disclaim "a conforming RegExp engine" — this
// gets the common test/exec/flags surface right without reimplementing
// backtracking).
type RegexpData struct {
	source string
	flags  string
	re     *regexp2.Regexp

	global    bool
	sticky    bool
	lastIndex int
}

func compileRegexpOptions(flags string) regexp2.RegexOptions {
	opts := regexp2.ECMAScript
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		}
	}
	return opts
}

// newRegexp builds a KindRegexp object from a literal or from the
// RegExp constructor; grounded on ottofront.go's RegExpLiteral lowering,
// which hands the raw pattern/flags text straight through.
func (vm *VM) newRegexp(pattern, flags string) (JSValue, error) {
	re, err := regexp2.Compile(pattern, compileRegexpOptions(flags))
	if err != nil {
		return nil, vm.ThrowError("SyntaxError", "Invalid regular expression: "+err.Error())
	}
	o := new(JSObject)
	*o = NewJSObject(vm.realm.protoRegexp)
	o.kind = KindRegexp
	o.realm = vm.realm
	o.regexpData = &RegexpData{
		source: pattern,
		flags:  flags,
		re:     re,
		global: strings.ContainsRune(flags, 'g'),
		sticky: strings.ContainsRune(flags, 'y'),
	}
	o.DefineProperty(NameStr("lastIndex"), Descriptor{value: JSNumber(0), writable: true})
	o.DefineProperty(NameStr("source"), Descriptor{value: JSString(pattern)})
	o.DefineProperty(NameStr("flags"), Descriptor{value: JSString(flags)})
	o.DefineProperty(NameStr("global"), Descriptor{value: JSBoolean(o.regexpData.global)})
	o.DefineProperty(NameStr("ignoreCase"), Descriptor{value: JSBoolean(strings.ContainsRune(flags, 'i'))})
	o.DefineProperty(NameStr("multiline"), Descriptor{value: JSBoolean(strings.ContainsRune(flags, 'm'))})
	o.DefineProperty(NameStr("sticky"), Descriptor{value: JSBoolean(o.regexpData.sticky)})
	return o, nil
}

// execRegexp runs one match attempt, honoring lastIndex for global/
// sticky regexes (spec.md's exec/test semantics), and returns the
// match-result array (or JSNull{} for no match).
func (rd *RegexpData) exec(realm *Realm, s string) (JSValue, error) {
	start := 0
	if rd.global || rd.sticky {
		start = rd.lastIndex
	}
	if start < 0 || start > len(s) {
		rd.lastIndex = 0
		return JSNull{}, nil
	}

	m, err := rd.re.FindStringMatchStartingAt(s, start)
	if err != nil {
		return nil, err
	}
	if m == nil || (rd.sticky && m.Index != start) {
		if rd.global || rd.sticky {
			rd.lastIndex = 0
		}
		return JSNull{}, nil
	}

	if rd.global || rd.sticky {
		next := m.Index + m.Length
		if m.Length == 0 {
			next++
		}
		rd.lastIndex = next
	}

	groups := m.Groups()
	result := NewJSArray(realm)
	for _, g := range groups {
		if len(g.Captures) == 0 {
			result.arrayPart = append(result.arrayPart, JSUndefined{})
			continue
		}
		result.arrayPart = append(result.arrayPart, JSString(g.String()))
	}
	result.DefineProperty(NameStr("index"), Descriptor{value: JSNumber(m.Index), writable: true, configurable: true, enumerable: true})
	result.DefineProperty(NameStr("input"), Descriptor{value: JSString(s), writable: true, configurable: true, enumerable: true})
	return result, nil
}

func installRegexpPrototype(realm *Realm, vm *VM, nf func(string, []string, NativeCallback) *JSObject) {
	method := func(name string, params []string, cb NativeCallback) {
		realm.protoRegexp.DefineProperty(NameStr(name), Descriptor{value: nf(name, params, cb), writable: true, configurable: true})
	}

	asRegexp := func(vm *VM, subject JSValue) (*JSObject, error) {
		o, ok := subject.(*JSObject)
		if !ok || o.kind != KindRegexp {
			return nil, vm.ThrowError("TypeError", "method called on incompatible receiver")
		}
		return o, nil
	}

	method("exec", []string{"str"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asRegexp(vm, subject)
		if err != nil {
			return nil, err
		}
		s, err := vm.coerceToString(arg(args, 0))
		if err != nil {
			return nil, err
		}
		if v, lookupErr := o.GetProperty(NameStr("lastIndex"), vm); lookupErr == nil {
			if n, isNum := v.(JSNumber); isNum {
				o.regexpData.lastIndex = int(n)
			}
		}
		res, err := o.regexpData.exec(realm, string(s))
		if err != nil {
			return nil, vm.ThrowError("SyntaxError", err.Error())
		}
		o.SetProperty(NameStr("lastIndex"), JSNumber(o.regexpData.lastIndex), vm)
		return res, nil
	})

	method("test", []string{"str"}, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asRegexp(vm, subject)
		if err != nil {
			return nil, err
		}
		s, err := vm.coerceToString(arg(args, 0))
		if err != nil {
			return nil, err
		}
		res, err := o.regexpData.exec(realm, string(s))
		if err != nil {
			return nil, vm.ThrowError("SyntaxError", err.Error())
		}
		o.SetProperty(NameStr("lastIndex"), JSNumber(o.regexpData.lastIndex), vm)
		_, isNull := res.(JSNull)
		return JSBoolean(!isNull), nil
	})

	method("toString", nil, func(vm *VM, subject JSValue, args []JSValue, _ CallFlags) (JSValue, error) {
		o, err := asRegexp(vm, subject)
		if err != nil {
			return nil, err
		}
		return JSString("/" + o.regexpData.source + "/" + o.regexpData.flags), nil
	})
}

// installRegexpConstructor wires the global RegExp function, grounded
// on the teacher's addPrimitiveWrapperConstructor pattern (builtins_ctors.go).
func installRegexpConstructor(realm *Realm, vm *VM, g *JSObject, nf func(string, []string, NativeCallback) *JSObject) {
	installRegexpPrototype(realm, vm, nf)

	ctor := nf("RegExp", []string{"pattern", "flags"}, func(vm *VM, _ JSValue, args []JSValue, flags CallFlags) (JSValue, error) {
		pattern := ""
		fl := ""
		switch p := arg(args, 0).(type) {
		case *JSObject:
			if p.kind == KindRegexp {
				pattern = p.regexpData.source
				fl = p.regexpData.flags
			} else {
				s, err := vm.coerceToString(p)
				if err != nil {
					return nil, err
				}
				pattern = string(s)
			}
		case JSUndefined:
			pattern = ""
		default:
			s, err := vm.coerceToString(p)
			if err != nil {
				return nil, err
			}
			pattern = string(s)
		}
		if len(args) > 1 {
			if _, isU := args[1].(JSUndefined); !isU {
				s, err := vm.coerceToString(args[1])
				if err != nil {
					return nil, err
				}
				fl = string(s)
			}
		}
		return vm.newRegexp(pattern, fl)
	})
	ctor.DefineProperty(NameStr("prototype"), Descriptor{value: realm.protoRegexp})
	realm.protoRegexp.DefineProperty(NameStr("constructor"), Descriptor{value: ctor, writable: true, configurable: true})
	g.DefineProperty(NameStr("RegExp"), Descriptor{value: ctor, writable: true, configurable: true})
}
