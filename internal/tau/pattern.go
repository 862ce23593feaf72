package tau

import (
	"regexp"
	"strings"

	"github.com/bearer/tauhunt/internal/value"
)

// PatternKind tags the leaf predicate categories applied to a single Value
// (spec.md section 3, "Pattern (applied to a Value)").
type PatternKind int

const (
	PatternAny PatternKind = iota
	PatternEq
	PatternGt
	PatternGe
	PatternLt
	PatternLe
	PatternFEq
	PatternFGt
	PatternFGe
	PatternFLt
	PatternFLe
	PatternRegex
	PatternContains
	PatternEndsWith
	PatternExact
	PatternStartsWith
)

// Pattern is a compiled leaf predicate. Regex patterns compile once at
// load time (spec.md section 5, "Regex engines are compiled once per rule
// at load time; reuse is mandatory") using Go's RE2-backed regexp package,
// which already guarantees linear-time matching (spec.md section 9).
type Pattern struct {
	Kind  PatternKind
	Int   int64
	Float float64
	Str   string
	Re    *regexp.Regexp
}

// NewRegexPattern compiles re once; a compile failure is surfaced as a
// ParseError by the caller (the rule compiler), never at solve time.
func NewRegexPattern(re string, ignoreCase bool) (Pattern, error) {
	pat := re
	if ignoreCase {
		pat = "(?i)" + pat
	}
	compiled, err := regexp.Compile(pat)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{Kind: PatternRegex, Re: compiled}, nil
}

// Match applies the pattern to v.
func (p Pattern) Match(v value.Value) bool {
	switch p.Kind {
	case PatternAny:
		return !v.IsNull()
	case PatternEq, PatternGt, PatternGe, PatternLt, PatternLe:
		i, ok := v.ToInt64()
		if !ok {
			return false
		}
		return compareInt(i, p.Kind, p.Int)
	case PatternFEq, PatternFGt, PatternFGe, PatternFLt, PatternFLe:
		f, ok := v.ToFloat64()
		if !ok {
			return false
		}
		return compareFloat(f, p.Kind, p.Float)
	case PatternRegex:
		if v.IsNull() {
			return false
		}
		return p.Re.MatchString(v.Stringify())
	case PatternContains:
		return strings.Contains(v.Stringify(), p.Str)
	case PatternEndsWith:
		return strings.HasSuffix(v.Stringify(), p.Str)
	case PatternStartsWith:
		return strings.HasPrefix(v.Stringify(), p.Str)
	case PatternExact:
		return v.Stringify() == p.Str
	default:
		return false
	}
}

// MatchCI is Match with optional ASCII case folding applied to the
// string-shortcut pattern kinds, used by Matrix rows (spec.md section 3,
// "Matrix(fields, rows) — each row is ([Pattern], ignore_case)").
func (p Pattern) MatchCI(v value.Value, ignoreCase bool) bool {
	if !ignoreCase {
		return p.Match(v)
	}
	switch p.Kind {
	case PatternContains:
		return strings.Contains(asciiLowerStr(v.Stringify()), asciiLowerStr(p.Str))
	case PatternEndsWith:
		return strings.HasSuffix(asciiLowerStr(v.Stringify()), asciiLowerStr(p.Str))
	case PatternStartsWith:
		return strings.HasPrefix(asciiLowerStr(v.Stringify()), asciiLowerStr(p.Str))
	case PatternExact:
		return asciiLowerStr(v.Stringify()) == asciiLowerStr(p.Str)
	default:
		return p.Match(v)
	}
}

func asciiLowerStr(s string) string {
	return asciiLower(s)
}

func compareInt(lhs int64, kind PatternKind, rhs int64) bool {
	switch kind {
	case PatternEq:
		return lhs == rhs
	case PatternGt:
		return lhs > rhs
	case PatternGe:
		return lhs >= rhs
	case PatternLt:
		return lhs < rhs
	case PatternLe:
		return lhs <= rhs
	default:
		return false
	}
}

func compareFloat(lhs float64, kind PatternKind, rhs float64) bool {
	switch kind {
	case PatternFEq:
		return lhs == rhs
	case PatternFGt:
		return lhs > rhs
	case PatternFGe:
		return lhs >= rhs
	case PatternFLt:
		return lhs < rhs
	case PatternFLe:
		return lhs <= rhs
	default:
		return false
	}
}
