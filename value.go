package modeledjs

import (
	"fmt"
	"math/big"
)

// JSValue is the tagged sum over all runtime values a program can
// produce: undefined, null, boolean, number, bigint, string, symbol,
// and object (which itself is a sum of many object variants, see
// object.go).
type JSValue interface {
	Category() JSVCategory
}

type JSVCategory uint8

const (
	VUndefined JSVCategory = iota
	VNull
	VNumber
	VBoolean
	VString
	VObject
	VBigInt
	VFunction
	VSymbol
)

type JSUndefined struct{}

func (v JSUndefined) Category() JSVCategory { return VUndefined }

type JSNull struct{}

func (v JSNull) Category() JSVCategory { return VNull }

type JSNumber float64

func (v JSNumber) Category() JSVCategory { return VNumber }

type JSBoolean bool

func (v JSBoolean) Category() JSVCategory { return VBoolean }

type JSString string

func (v JSString) Category() JSVCategory { return VString }

// JSBigInt is an arbitrary-precision integer (spec.md §3.1), backed by
// math/big rather than a fixed-width Go int: BigInt arithmetic must
// not silently wrap or lose precision the way int64 would once values
// exceed 2^63.
type JSBigInt struct{ v *big.Int }

func (v JSBigInt) Category() JSVCategory { return VBigInt }

// NewBigInt wraps a native integer as a BigInt value.
func NewBigInt(n int64) JSBigInt { return JSBigInt{v: big.NewInt(n)} }

// bigIntFromBig takes ownership of a *big.Int computed by a caller
// (e.g. the result of a big.Int arithmetic op) without copying.
func bigIntFromBig(n *big.Int) JSBigInt { return JSBigInt{v: n} }

func (v JSBigInt) Big() *big.Int { return v.v }

func bigToFloat(v JSBigInt) float64 {
	f := new(big.Float).SetInt(v.v)
	out, _ := f.Float64()
	return out
}

// JSSymbol is a process-unique value identity. Symbols never compare
// equal to one another except by identity (pointer equality on the
// *symbolData they share), including two symbols created with the
// same description.
type JSSymbol struct {
	data *symbolData
}

type symbolData struct {
	description string
	hasDesc     bool
	// globalKey is set for symbols registered/retrieved through
	// Symbol.for(key); two calls with the same key return the same
	// JSSymbol.
	globalKey string
	isGlobal  bool
	// wellKnown names a well-known symbol ("iterator", "asyncIterator",
	// ...) or is empty for ordinary symbols.
	wellKnown string
}

func (v JSSymbol) Category() JSVCategory { return VSymbol }

func NewSymbol(description string, hasDescription bool) JSSymbol {
	return JSSymbol{data: &symbolData{description: description, hasDesc: hasDescription}}
}

func (s JSSymbol) Description() (string, bool) {
	return s.data.description, s.data.hasDesc
}

func (s JSSymbol) String() string {
	if s.data.hasDesc {
		return fmt.Sprintf("Symbol(%s)", s.data.description)
	}
	return "Symbol()"
}

// Name is a property key: either a string or a symbol.
type Name struct {
	string
	isSymbol bool
	symbol   JSSymbol
}

func (n Name) String() string {
	if n.isSymbol {
		return n.symbol.String()
	}
	return n.string
}

func NameStr(s string) Name {
	return Name{isSymbol: false, string: s}
}

func NameSym(s JSSymbol) Name {
	desc, _ := s.Description()
	return Name{isSymbol: true, string: desc, symbol: s}
}

func (n Name) IsSymbol() bool   { return n.isSymbol }
func (n Name) Symbol() JSSymbol { return n.symbol }
