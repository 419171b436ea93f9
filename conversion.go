package modeledjs

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
)

// This file implements the ES2022 abstract operations named in
// spec.md §4.1, grounded on the teacher's coerceToBoolean/
// coerceToNumber/coerceToPrimitive/coerceToString/coerceToBigInt/
// coerceNumeric/strictEqual/looseEqual/compareLessThan/addition/
// arithmeticOp/floatRemainder, extended with ToInt32/ToUint32/
// ToInteger/SameValue/SameValueZero/ToPropertyKey which the teacher
// lacked entirely.

func (vm *VM) coerceToObject(value JSValue) (obj *JSObject, err error) {
	switch specific := value.(type) {
	case JSBigInt:
		obj = new(JSObject)
		*obj = NewJSObject(vm.realm.protoBigint)
		obj.kind = KindPrimitiveWrapper
		obj.primBigInt = specific
		obj.hasPrimWrap = true
		return obj, nil
	case JSSymbol:
		obj = new(JSObject)
		*obj = NewJSObject(vm.realm.protoSymbol)
		obj.kind = KindPrimitiveWrapper
		obj.primSymbol = specific
		obj.hasPrimWrap = true
		return obj, nil
	case JSNumber:
		return vm.realm.wrapPrimitive(vm, "Number", value)
	case JSBoolean:
		return vm.realm.wrapPrimitive(vm, "Boolean", value)
	case JSString:
		return vm.realm.wrapPrimitive(vm, "String", value)
	case *JSObject:
		return specific, nil
	default:
		msg := fmt.Sprintf("can't convert to object: %#v", value)
		return nil, vm.ThrowError("TypeError", msg)
	}
}

func (vm *VM) coerceToBoolean(value JSValue) JSBoolean {
	switch spec := value.(type) {
	case JSBigInt:
		return spec.v.Sign() != 0
	case JSBoolean:
		return spec
	case JSNull:
		return false
	case JSNumber:
		return spec != 0.0 && !math.IsNaN(float64(spec))
	case *JSObject:
		return true
	case JSString:
		return spec != ""
	case JSSymbol:
		return true
	case JSUndefined:
		return false
	default:
		panic(fmt.Sprintf("coerceToBoolean: invalid value type: %#v", value))
	}
}

// SameValueZero implements the ES SameValueZero algorithm used by
// Map/Set/Array.includes.
func (vm *VM) sameValueZero(a, b JSValue) bool {
	if a.Category() != b.Category() {
		return false
	}
	if an, ok := a.(JSNumber); ok {
		bn := b.(JSNumber)
		if math.IsNaN(float64(an)) && math.IsNaN(float64(bn)) {
			return true
		}
		return an == bn
	}
	return vm.strictEqual(a, b)
}

func (vm *VM) sameValue(a, b JSValue) bool {
	if an, ok := a.(JSNumber); ok {
		bn, ok2 := b.(JSNumber)
		if !ok2 {
			return false
		}
		if math.IsNaN(float64(an)) && math.IsNaN(float64(bn)) {
			return true
		}
		if an == 0 && bn == 0 {
			return math.Signbit(float64(an)) == math.Signbit(float64(bn))
		}
		return an == bn
	}
	return vm.strictEqual(a, b)
}

func (vm *VM) strictEqual(left, right JSValue) bool {
	switch leftV := left.(type) {
	case JSBigInt:
		rightV, ok := right.(JSBigInt)
		return ok && leftV.v.Cmp(rightV.v) == 0
	case JSBoolean:
		rightV, ok := right.(JSBoolean)
		return ok && leftV == rightV
	case JSNumber:
		rightV, ok := right.(JSNumber)
		return ok && leftV == rightV
	case *JSObject:
		rightV, ok := right.(*JSObject)
		return ok && leftV == rightV
	case JSString:
		rightV, ok := right.(JSString)
		return ok && leftV == rightV
	case JSSymbol:
		rightV, ok := right.(JSSymbol)
		return ok && leftV.data == rightV.data
	case JSNull:
		_, ok := right.(JSNull)
		return ok
	case JSUndefined:
		_, ok := right.(JSUndefined)
		return ok
	default:
		panic(fmt.Sprintf("unexpected value for strict equal comparison: %#v", left))
	}
}

func (vm *VM) looseEqual(a, b JSValue) (ret bool, err error) {
	aOrig, bOrig := a, b

	for counter := 0; counter < 8; counter++ {
		if a.Category() == b.Category() {
			return vm.strictEqual(a, b), nil
		}

		_, isAU := a.(JSUndefined)
		_, isAN := a.(JSNull)
		_, isBU := b.(JSUndefined)
		_, isBN := b.(JSNull)
		if isAU || isAN || isBU || isBN {
			return (isAU || isAN) && (isBU || isBN), nil
		}

		if _, isAObj := a.(*JSObject); isAObj {
			a, err = vm.coerceToPrimitive(a, PrimCoerceValueOfFirst)
			if err != nil {
				return false, err
			}
			continue
		}
		if _, isBObj := b.(*JSObject); isBObj {
			b, err = vm.coerceToPrimitive(b, PrimCoerceValueOfFirst)
			if err != nil {
				return false, err
			}
			continue
		}

		if aBool, isABool := a.(JSBoolean); isABool {
			if aBool {
				a = JSNumber(1.0)
			} else {
				a = JSNumber(0.0)
			}
			continue
		}
		if bBool, isBBool := b.(JSBoolean); isBBool {
			if bBool {
				b = JSNumber(1.0)
			} else {
				b = JSNumber(0.0)
			}
			continue
		}

		_, isAStr := a.(JSString)
		_, isBStr := b.(JSString)
		_, isANum := a.(JSNumber)
		_, isBNum := b.(JSNumber)
		if isAStr && isBNum {
			a, err = vm.coerceToNumber(a)
			continue
		}
		if isANum && isBStr {
			b, err = vm.coerceToNumber(b)
			continue
		}

		ai, isABigInt := a.(JSBigInt)
		bi, isBBigInt := b.(JSBigInt)
		if isAStr && isBBigInt {
			a, err = vm.coerceToBigInt(a)
			continue
		}
		if isABigInt && isBStr {
			b, err = vm.coerceToBigInt(b)
			continue
		}
		if isANum && isBBigInt {
			b = JSNumber(bigToFloat(bi))
			continue
		}
		if isABigInt && isBNum {
			a = JSNumber(bigToFloat(ai))
			continue
		}

		msg := fmt.Sprintf("unreachable! looseEqual called with %s (->%s) / %s (->%s)",
			reflect.TypeOf(aOrig), reflect.TypeOf(a), reflect.TypeOf(bOrig), reflect.TypeOf(b))
		panic(msg)
	}
	panic("bug: looseEqual iterated too many times!")
}

func (vm *VM) coerceNumeric(value JSValue) (num JSValue, err error) {
	num, err = vm.coerceToPrimitive(value, PrimCoerceValueOfFirst)
	if err != nil {
		return
	}
	if _, isBigInt := num.(JSBigInt); !isBigInt {
		num, err = vm.coerceToNumber(num)
	}
	return
}

func (vm *VM) coerceToNumber(value JSValue) (num JSNumber, err error) {
	switch spec := value.(type) {
	case JSNull:
		return 0, nil
	case JSBigInt:
		return JSNumber(bigToFloat(spec)), nil
	case JSBoolean:
		if spec {
			return 1, nil
		}
		return 0, nil
	case JSNumber:
		return spec, nil
	case *JSObject:
		prim, err := vm.coerceToPrimitive(value, PrimCoerceValueOfFirst)
		if err != nil {
			return 0, err
		}
		return vm.coerceToNumber(prim)
	case JSString:
		s := trimJSWhitespace(string(spec))
		if s == "" {
			return 0, nil
		}
		if s == "Infinity" || s == "+Infinity" {
			return JSNumber(math.Inf(1)), nil
		}
		if s == "-Infinity" {
			return JSNumber(math.Inf(-1)), nil
		}
		f, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return JSNumber(math.NaN()), nil
		}
		return JSNumber(f), nil
	case JSUndefined:
		return JSNumber(math.NaN()), nil
	case JSSymbol:
		return 0, vm.ThrowError("TypeError", "Cannot convert a Symbol value to a number")
	default:
		panic(fmt.Sprintf("unexpected modeledjs.JSValue: %#v", spec))
	}
}

func trimJSWhitespace(s string) string {
	start, end := 0, len(s)
	isWS := func(c byte) bool {
		return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
	}
	for start < end && isWS(s[start]) {
		start++
	}
	for end > start && isWS(s[end-1]) {
		end--
	}
	return s[start:end]
}

type PrimCoerceOrder uint8

const (
	PrimCoerceValueOfFirst PrimCoerceOrder = iota
	PrimCoerceToStringFirst
)

func (vm *VM) coerceToPrimitive(value JSValue, order PrimCoerceOrder) (prim JSValue, err error) {
	obj, isObj := value.(*JSObject)
	if !isObj {
		return value, nil
	}

	if toPrim, err := obj.GetProperty(NameSym(vm.realm.wellKnown.toPrimitive), vm); err == nil {
		if fnObj, ok := toPrim.(*JSObject); ok && fnObj.funcPart != nil {
			hint := "default"
			if order == PrimCoerceValueOfFirst {
				hint = "number"
			} else {
				hint = "string"
			}
			ret, err := fnObj.Invoke(vm, value, []JSValue{JSString(hint)}, CallFlags{})
			if err != nil {
				return nil, err
			}
			if _, stillObj := ret.(*JSObject); !stillObj {
				return ret, nil
			}
		}
	}

	var callOrder []string
	if order == PrimCoerceValueOfFirst {
		callOrder = []string{"valueOf", "toString"}
	} else {
		callOrder = []string{"toString", "valueOf"}
	}

	for _, methodName := range callOrder {
		methodVal, err := obj.GetProperty(NameStr(methodName), vm)
		if err != nil {
			return nil, err
		}
		methodObj, isFn := methodVal.(*JSObject)
		if !isFn || methodObj.funcPart == nil {
			continue
		}
		ret, err := methodObj.Invoke(vm, value, []JSValue{}, CallFlags{})
		if err != nil {
			return nil, err
		}
		if _, stillObj := ret.(*JSObject); stillObj {
			continue
		}
		return ret, nil
	}
	return nil, vm.ThrowError("TypeError", "value can't be converted to a primitive")
}

func (vm *VM) coerceToString(val JSValue) (JSString, error) {
	switch val := val.(type) {
	case JSString:
		return val, nil
	case JSSymbol:
		return "", vm.ThrowError("TypeError", "Cannot convert a Symbol value to a string")
	case JSUndefined:
		return "undefined", nil
	case JSNull:
		return "null", nil
	case JSBoolean:
		if val {
			return "true", nil
		}
		return "false", nil
	case JSNumber:
		return JSString(formatJSNumber(float64(val))), nil
	case JSBigInt:
		return JSString(val.v.String()), nil
	case *JSObject:
		prim, err := vm.coerceToPrimitive(val, PrimCoerceToStringFirst)
		if err != nil {
			return "", err
		}
		if _, isObj := prim.(*JSObject); isObj {
			panic("bug: coerceToPrimitive returned object")
		}
		return vm.coerceToString(prim)
	default:
		panic("bug: invalid type for coerceToString operand: " + reflect.TypeOf(val).String())
	}
}

// DisplayString renders any value the way ToString would inside JS
// (spec.md §6 embedder API), for hosts such as cmd/modeledjs that need
// to print a completion value without reaching into package internals.
func (vm *VM) DisplayString(val JSValue) (string, error) {
	s, err := vm.coerceToString(val)
	return string(s), err
}

func formatJSNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (vm *VM) coerceToBigInt(value JSValue) (ret JSBigInt, err error) {
	if _, isObj := value.(*JSObject); isObj {
		value, err = vm.coerceToPrimitive(value, PrimCoerceValueOfFirst)
		if err != nil {
			return
		}
	}
	switch spec := value.(type) {
	case JSBigInt:
		return spec, nil
	case JSNumber:
		if spec != JSNumber(int64(spec)) {
			return JSBigInt{}, vm.ThrowError("RangeError", "not an integer")
		}
		return NewBigInt(int64(spec)), nil
	case JSBoolean:
		if spec {
			return NewBigInt(1), nil
		}
		return NewBigInt(0), nil
	case JSString:
		n, ok := new(big.Int).SetString(trimJSWhitespace(string(spec)), 10)
		if !ok {
			return JSBigInt{}, vm.ThrowError("SyntaxError", "Cannot convert string to a BigInt")
		}
		return bigIntFromBig(n), nil
	case JSNull, JSUndefined:
		return JSBigInt{}, vm.ThrowError("TypeError", "can't convert to BigInt from null or undefined")
	default:
		panic(fmt.Sprintf("unexpected modeledjs.JSValue: %#v", value))
	}
}

// ToInt32/ToUint32/ToInteger round out the integer-conversion
// operations spec.md §4.1 names, absent from the teacher.
func (vm *VM) toInt32(value JSValue) (int32, error) {
	n, err := vm.coerceToNumber(value)
	if err != nil {
		return 0, err
	}
	return jsToInt32(float64(n)), nil
}

func jsToInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return 0
	}
	m := math.Mod(math.Trunc(f), 4294967296)
	if m < 0 {
		m += 4294967296
	}
	if m >= 2147483648 {
		m -= 4294967296
	}
	return int32(m)
}

func (vm *VM) toUint32(value JSValue) (uint32, error) {
	n, err := vm.coerceToNumber(value)
	if err != nil {
		return 0, err
	}
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return 0, nil
	}
	m := math.Mod(math.Trunc(f), 4294967296)
	if m < 0 {
		m += 4294967296
	}
	return uint32(m), nil
}

func (vm *VM) toInteger(value JSValue) (float64, error) {
	n, err := vm.coerceToNumber(value)
	if err != nil {
		return 0, err
	}
	f := float64(n)
	if math.IsNaN(f) {
		return 0, nil
	}
	if math.IsInf(f, 0) {
		return f, nil
	}
	return math.Trunc(f), nil
}

func (vm *VM) toPropertyKey(value JSValue) (Name, error) {
	if sym, ok := value.(JSSymbol); ok {
		return NameSym(sym), nil
	}
	s, err := vm.coerceToString(value)
	if err != nil {
		return Name{}, err
	}
	return NameStr(string(s)), nil
}

// ---- arithmetic -------------------------------------------------------

type arithOp uint8

const (
	OpAdd arithOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpShl
	OpShr
	OpUShr
	OpAnd
	OpOr
	OpXor
)

func addition(vm *VM, left, right JSValue) (res JSValue, err error) {
	lprim, err := vm.coerceToPrimitive(left, PrimCoerceValueOfFirst)
	if err != nil {
		return
	}
	rprim, err := vm.coerceToPrimitive(right, PrimCoerceValueOfFirst)
	if err != nil {
		return
	}

	_, isLStr := lprim.(JSString)
	_, isRStr := rprim.(JSString)
	if isLStr || isRStr {
		lstr, err := vm.coerceToString(lprim)
		if err != nil {
			return nil, err
		}
		rstr, err := vm.coerceToString(rprim)
		if err != nil {
			return nil, err
		}
		return lstr + rstr, nil
	}
	return arithmeticOp(vm, lprim, rprim, OpAdd)
}

func arithmeticOp(vm *VM, l, r JSValue, op arithOp) (res JSValue, err error) {
	lin, err := vm.coerceNumeric(l)
	if err != nil {
		return nil, err
	}
	rin, err := vm.coerceNumeric(r)
	if err != nil {
		return nil, err
	}

	if lin.Category() != rin.Category() {
		return nil, vm.ThrowError("TypeError", "arithmetic is invalid for types number/bigint or bigint/number")
	}

	if li, isBigInt := lin.(JSBigInt); isBigInt {
		ri := rin.(JSBigInt)
		switch op {
		case OpMul:
			return bigIntFromBig(new(big.Int).Mul(li.v, ri.v)), nil
		case OpAdd:
			return bigIntFromBig(new(big.Int).Add(li.v, ri.v)), nil
		case OpSub:
			return bigIntFromBig(new(big.Int).Sub(li.v, ri.v)), nil
		case OpShl:
			if ri.v.Sign() < 0 {
				return nil, vm.ThrowError("RangeError", "BigInt negative shift amount")
			}
			return bigIntFromBig(new(big.Int).Lsh(li.v, uint(ri.v.Uint64()))), nil
		case OpShr:
			if ri.v.Sign() < 0 {
				return nil, vm.ThrowError("RangeError", "BigInt negative shift amount")
			}
			return bigIntFromBig(new(big.Int).Rsh(li.v, uint(ri.v.Uint64()))), nil
		case OpXor:
			return bigIntFromBig(new(big.Int).Xor(li.v, ri.v)), nil
		case OpAnd:
			return bigIntFromBig(new(big.Int).And(li.v, ri.v)), nil
		case OpOr:
			return bigIntFromBig(new(big.Int).Or(li.v, ri.v)), nil
		case OpDiv:
			if ri.v.Sign() == 0 {
				return nil, vm.ThrowError("RangeError", "Division by zero")
			}
			return bigIntFromBig(new(big.Int).Quo(li.v, ri.v)), nil
		case OpMod:
			if ri.v.Sign() == 0 {
				return nil, vm.ThrowError("RangeError", "Division by zero")
			}
			return bigIntFromBig(new(big.Int).Rem(li.v, ri.v)), nil
		case OpPow:
			if ri.v.Sign() < 0 {
				return nil, vm.ThrowError("RangeError", "Exponent must be non-negative")
			}
			return bigIntFromBig(new(big.Int).Exp(li.v, ri.v, nil)), nil
		case OpUShr:
			return nil, vm.ThrowError("TypeError", "BigInts have no unsigned right shift, use >> instead")
		default:
			panic("unreachable arithOp")
		}
	}

	ln := lin.(JSNumber)
	rn := rin.(JSNumber)
	switch op {
	case OpMul:
		return ln * rn, nil
	case OpDiv:
		return ln / rn, nil
	case OpMod:
		return JSNumber(floatRemainder(float64(ln), float64(rn))), nil
	case OpAdd:
		return ln + rn, nil
	case OpSub:
		return ln - rn, nil
	case OpPow:
		return JSNumber(math.Pow(float64(ln), float64(rn))), nil
	case OpShl:
		return JSNumber(jsToInt32(float64(ln)) << (uint32(jsToInt32(float64(rn))) & 31)), nil
	case OpShr:
		return JSNumber(jsToInt32(float64(ln)) >> (uint32(jsToInt32(float64(rn))) & 31)), nil
	case OpUShr:
		l32 := uint32(jsToInt32(float64(ln)))
		return JSNumber(l32 >> (uint32(jsToInt32(float64(rn))) & 31)), nil
	case OpAnd:
		return JSNumber(jsToInt32(float64(ln)) & jsToInt32(float64(rn))), nil
	case OpOr:
		return JSNumber(jsToInt32(float64(ln)) | jsToInt32(float64(rn))), nil
	case OpXor:
		return JSNumber(jsToInt32(float64(ln)) ^ jsToInt32(float64(rn))), nil
	default:
		panic("unreachable arithOp")
	}
}

func floatRemainder(n, d float64) float64 {
	if math.IsNaN(n) || math.IsNaN(d) {
		return math.NaN()
	}
	if math.IsInf(n, 0) {
		return math.NaN()
	}
	if math.IsInf(d, 0) {
		return n
	}
	if d == 0.0 || d == math.Copysign(0, -1) {
		return math.NaN()
	}
	if n == 0.0 || n == math.Copysign(0, -1) {
		return n
	}
	quotient := n / d
	q := math.Trunc(quotient)
	r := n - (d * q)
	if r == 0 && n < math.Copysign(0, -1) {
		return math.Copysign(0, -1)
	}
	return r
}

type tribool uint8

const (
	TFalse tribool = iota
	TTrue
	TNeither
)

func bool2tri(b bool) tribool {
	if b {
		return TTrue
	}
	return TFalse
}

func compareLessThan(vm *VM, a, b JSValue) (ret tribool, err error) {
	if aStr, isAStr := a.(JSString); isAStr {
		if bStr, isBStr := b.(JSString); isBStr {
			return bool2tri(aStr < bStr), nil
		}
	}

	abn, err := vm.coerceNumeric(a)
	if err != nil {
		return TNeither, err
	}
	bbn, err := vm.coerceNumeric(b)
	if err != nil {
		return TNeither, err
	}

	an, isANum := abn.(JSNumber)
	bn, isBNum := bbn.(JSNumber)
	ai, isABigInt := abn.(JSBigInt)
	bi, isBBigInt := bbn.(JSBigInt)

	if isANum && math.IsNaN(float64(an)) {
		return TNeither, nil
	}
	if isBNum && math.IsNaN(float64(bn)) {
		return TNeither, nil
	}

	if isANum && isBNum {
		return bool2tri(an < bn), nil
	}
	if isABigInt && isBBigInt {
		return bool2tri(ai.v.Cmp(bi.v) < 0), nil
	}
	if isANum {
		return bool2tri(float64(an) < bigToFloat(bi)), nil
	}
	return bool2tri(bigToFloat(ai) < float64(bn)), nil
}

func isLessThan(vm *VM, a, b JSValue) (bool, error) {
	tri, err := compareLessThan(vm, a, b)
	if err != nil {
		return false, err
	}
	return tri == TTrue, nil
}

func isNotLessThan(vm *VM, a, b JSValue) (bool, error) {
	tri, err := compareLessThan(vm, a, b)
	if err != nil {
		return false, err
	}
	return tri == TFalse, nil
}
