// Package value implements the tagged-sum Value type shared by documents,
// rule literals and the tau engine.
package value

import (
	"fmt"
	"math"
	"strconv"
)

// Kind tags the variant a Value currently holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindUInt64
	KindFloat64
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindUInt64:
		return "uint64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged sum: Null, Bool, Int64, UInt64, Float64, String, Array, Object.
type Value struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
	arr  []Value
	obj  *Object
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Int64(i int64) Value         { return Value{kind: KindInt64, i: i} }
func UInt64(u uint64) Value       { return Value{kind: KindUInt64, u: u} }
func Float64(f float64) Value     { return Value{kind: KindFloat64, f: f} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func Array(vs []Value) Value      { return Value{kind: KindArray, arr: vs} }
func FromObject(o *Object) Value  { return Value{kind: KindObject, obj: o} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) {
	if v.kind == KindBool {
		return v.b, true
	}
	return false, false
}

func (v Value) Int64() (int64, bool) {
	if v.kind == KindInt64 {
		return v.i, true
	}
	return 0, false
}

func (v Value) UInt64Raw() (uint64, bool) {
	if v.kind == KindUInt64 {
		return v.u, true
	}
	return 0, false
}

func (v Value) Float64Raw() (float64, bool) {
	if v.kind == KindFloat64 {
		return v.f, true
	}
	return 0, false
}

func (v Value) StringRaw() (string, bool) {
	if v.kind == KindString {
		return v.s, true
	}
	return "", false
}

func (v Value) Array() ([]Value, bool) {
	if v.kind == KindArray {
		return v.arr, true
	}
	return nil, false
}

func (v Value) Object() (*Object, bool) {
	if v.kind == KindObject {
		return v.obj, true
	}
	return nil, false
}

// Stringify renders any Value as a string, the form used by Search/Match
// predicates and aggregation group keys.
func (v Value) Stringify() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindUInt64:
		return strconv.FormatUint(v.u, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	case KindArray:
		out := "["
		for i, e := range v.arr {
			if i > 0 {
				out += ","
			}
			out += e.Stringify()
		}
		return out + "]"
	case KindObject:
		return fmt.Sprintf("object(%d keys)", v.obj.Len())
	default:
		return ""
	}
}

// ToInt64 coerces the value to an integer following the numeric
// conversion rules in spec.md section 3: try direct numeric forms first,
// then string->int parse, then string->float parse. A float (direct or
// parsed) converts only when it has no fractional part; Bool gives 1 or 0.
func (v Value) ToInt64() (int64, bool) {
	switch v.kind {
	case KindInt64:
		return v.i, true
	case KindUInt64:
		if v.u <= math.MaxInt64 {
			return int64(v.u), true
		}
		return 0, false
	case KindFloat64:
		if v.f == math.Trunc(v.f) {
			return int64(v.f), true
		}
		return 0, false
	case KindString:
		if i, err := strconv.ParseInt(v.s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(v.s, 64); err == nil && f == math.Trunc(f) {
			return int64(f), true
		}
		return 0, false
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// ToFloat64 coerces a numeric value, or a string that parses as a number,
// to a float. Unlike ToInt64 it does not convert Bool.
func (v Value) ToFloat64() (float64, bool) {
	switch v.kind {
	case KindInt64:
		return float64(v.i), true
	case KindUInt64:
		return float64(v.u), true
	case KindFloat64:
		return v.f, true
	case KindString:
		if f, err := strconv.ParseFloat(v.s, 64); err == nil {
			return f, true
		}
		if i, err := strconv.ParseInt(v.s, 10, 64); err == nil {
			return float64(i), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// ToUInt64 prefers the unsigned form per spec.md section 3.
func (v Value) ToUInt64() (uint64, bool) {
	switch v.kind {
	case KindUInt64:
		return v.u, true
	case KindInt64:
		if v.i >= 0 {
			return uint64(v.i), true
		}
		return 0, false
	case KindFloat64:
		if v.f >= 0 && v.f == math.Trunc(v.f) {
			return uint64(v.f), true
		}
		return 0, false
	case KindString:
		if u, err := strconv.ParseUint(v.s, 10, 64); err == nil {
			return u, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// ToStr stringifies numeric/bool values; it always succeeds when the
// value itself is present, matching the mapper's Str cast semantics.
func (v Value) ToStr() (string, bool) {
	switch v.kind {
	case KindNull:
		return "", false
	default:
		return v.Stringify(), true
	}
}

// Equal performs a deep structural comparison (Objects compare without
// regard to key order).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt64:
		return a.i == b.i
	case KindUInt64:
		return a.u == b.u
	case KindFloat64:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return ObjectEqual(a.obj, b.obj)
	default:
		return false
	}
}
