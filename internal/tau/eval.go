package tau

import (
	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/value"
)

// Doc is the minimal surface the tau engine needs from a document: a
// dotted-key lookup. document.Document satisfies it directly; a Nested
// sub-document is rebuilt as a KindUnknown document.
type Doc interface {
	Find(dottedKey string) (value.Value, bool)
}

// Solve evaluates expression h against doc. It is total (never panics)
// and deterministic, per spec.md section 8's quantified invariants.
func Solve(a *Arena, h Handle, doc Doc) bool {
	if !a.Valid(h) {
		return false
	}
	n := a.at(h)
	switch n.kind {
	case kindBooleanGroup:
		if n.op == And {
			for _, c := range n.children {
				if !Solve(a, c, doc) {
					return false
				}
			}
			return true
		}
		for _, c := range n.children {
			if Solve(a, c, doc) {
				return true
			}
		}
		return false

	case kindBooleanExpression:
		lhs, ok := evalNumeric(a, n.lhs, doc)
		if !ok {
			return false
		}
		rhs, ok := evalNumeric(a, n.rhs, doc)
		if !ok {
			return false
		}
		return compareNumeric(lhs, n.cmp, rhs)

	case kindNegate:
		return !Solve(a, n.inner, doc)

	case kindField:
		v, ok := doc.Find(n.field)
		return ok && !v.IsNull()

	case kindCast:
		return evalCastCapability(n.field, n.castMod, doc)

	case kindNested:
		v, ok := doc.Find(n.field)
		if !ok {
			return false
		}
		obj, ok := v.Object()
		if !ok {
			return false
		}
		nested := document.New(document.KindUnknown, value.FromObject(obj))
		return Solve(a, n.inner, nested)

	case kindMatch:
		v, ok := evalValue(a, n.inner, doc)
		if !ok {
			return false
		}
		if arr, ok := v.Array(); ok {
			for _, elem := range arr {
				if n.pattern.Match(elem) {
					return true
				}
			}
			return false
		}
		return n.pattern.Match(v)

	case kindSearch:
		v, ok := doc.Find(n.field)
		if !ok {
			return false
		}
		if arr, ok := v.Array(); ok {
			for _, elem := range arr {
				if searchMatchesElement(n.search, elem, n.castToStr) {
					return true
				}
			}
			return false
		}
		return searchMatchesElement(n.search, v, n.castToStr)

	case kindMatrix:
		for _, row := range n.rows {
			if matrixRowMatches(row, n.fields, doc) {
				return true
			}
		}
		return false

	case kindBoolLit:
		return n.boolVal

	case kindIdentifier:
		// Invariant: identifiers must be coalesced away before Solve runs.
		return false

	default:
		return false
	}
}

func searchMatchesElement(s Search, v value.Value, castToStr bool) bool {
	if !castToStr && v.Kind() != value.KindString && s.Kind != SearchAny {
		return false
	}
	return s.Match(v)
}

func matrixRowMatches(row MatrixRow, fields []string, doc Doc) bool {
	if len(row.Patterns) != len(fields) {
		return false
	}
	for i, f := range fields {
		v, ok := doc.Find(f)
		if !ok {
			return false
		}
		if !row.Patterns[i].MatchCI(v, row.IgnoreCase) {
			return false
		}
	}
	return true
}

// evalValue resolves an expression to a single Value, for the operand of
// a Match expression (typically a Field lookup or a literal).
func evalValue(a *Arena, h Handle, doc Doc) (value.Value, bool) {
	if !a.Valid(h) {
		return value.Value{}, false
	}
	n := a.at(h)
	switch n.kind {
	case kindField:
		return doc.Find(n.field)
	case kindBoolLit:
		return value.Bool(n.boolVal), true
	case kindIntLit:
		return value.Int64(n.intVal), true
	case kindFloatLit:
		return value.Float64(n.floatVal), true
	case kindNullLit:
		return value.Null(), true
	default:
		return value.Value{}, false
	}
}

type numVal struct {
	isFloat bool
	i       int64
	f       float64
}

// evalNumeric resolves an expression to a numeric form: literal, field, or
// cast, per spec.md section 4.1's BooleanExpression semantics.
func evalNumeric(a *Arena, h Handle, doc Doc) (numVal, bool) {
	if !a.Valid(h) {
		return numVal{}, false
	}
	n := a.at(h)
	switch n.kind {
	case kindIntLit:
		return numVal{i: n.intVal}, true
	case kindFloatLit:
		return numVal{isFloat: true, f: n.floatVal}, true
	case kindField:
		v, ok := doc.Find(n.field)
		if !ok {
			return numVal{}, false
		}
		return valueToNumeric(v)
	case kindCast:
		v, ok := doc.Find(n.field)
		if !ok {
			return numVal{}, false
		}
		switch n.castMod {
		case CastInt:
			if i, ok := v.ToInt64(); ok {
				return numVal{i: i}, true
			}
			return numVal{}, false
		case CastFlt:
			if f, ok := v.ToFloat64(); ok {
				return numVal{isFloat: true, f: f}, true
			}
			return numVal{}, false
		default:
			return valueToNumeric(v)
		}
	default:
		return numVal{}, false
	}
}

func valueToNumeric(v value.Value) (numVal, bool) {
	if i, ok := v.ToInt64(); ok {
		return numVal{i: i}, true
	}
	if f, ok := v.ToFloat64(); ok {
		return numVal{isFloat: true, f: f}, true
	}
	return numVal{}, false
}

func compareNumeric(lhs numVal, cmp CompareOp, rhs numVal) bool {
	if !lhs.isFloat && !rhs.isFloat {
		switch cmp {
		case CmpEq:
			return lhs.i == rhs.i
		case CmpGt:
			return lhs.i > rhs.i
		case CmpGe:
			return lhs.i >= rhs.i
		case CmpLt:
			return lhs.i < rhs.i
		case CmpLe:
			return lhs.i <= rhs.i
		}
		return false
	}
	l, r := lhs.f, rhs.f
	if !lhs.isFloat {
		l = float64(lhs.i)
	}
	if !rhs.isFloat {
		r = float64(rhs.i)
	}
	switch cmp {
	case CmpEq:
		return l == r
	case CmpGt:
		return l > r
	case CmpGe:
		return l >= r
	case CmpLt:
		return l < r
	case CmpLe:
		return l <= r
	}
	return false
}

func evalCastCapability(field string, mod CastMod, doc Doc) bool {
	v, ok := doc.Find(field)
	if !ok {
		return false
	}
	switch mod {
	case CastInt:
		_, ok := v.ToInt64()
		return ok
	case CastFlt:
		_, ok := v.ToFloat64()
		return ok
	case CastStr:
		return true
	default:
		return false
	}
}
