package sigma

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Mod tags one field-key modifier (spec.md section 4.3, "Supported
// modifiers").
type Mod int

const (
	ModAll Mod = iota
	ModBase64
	ModBase64Offset
	ModContains
	ModEndsWith
	ModStartsWith
	ModRe
)

var modNames = map[string]Mod{
	"all":         ModAll,
	"base64":      ModBase64,
	"base64offset": ModBase64Offset,
	"contains":    ModContains,
	"endswith":    ModEndsWith,
	"startswith":  ModStartsWith,
	"re":          ModRe,
}

// ParseFieldKey splits a detection field key of the form
// `name(|modifier)*` into the bare field name and its modifier list,
// rejecting any unrecognised modifier (spec.md section 4.3).
func ParseFieldKey(key string) (field string, mods []Mod, err error) {
	parts := strings.Split(key, "|")
	field = parts[0]
	for _, p := range parts[1:] {
		m, ok := modNames[p]
		if !ok {
			return "", nil, fmt.Errorf("sigma: unsupported modifier %q on field %q", p, field)
		}
		mods = append(mods, m)
	}
	return field, mods, nil
}

func hasMod(mods []Mod, m Mod) bool {
	for _, x := range mods {
		if x == m {
			return true
		}
	}
	return false
}

// endTrim implements spec.md section 4.3's base64offset trailing-trim
// formula: end_trim(n) = 0 if n%3==0 else 3 if n%3==1 else 2.
func endTrim(n int) int {
	switch n % 3 {
	case 0:
		return 0
	case 1:
		return 3
	default:
		return 2
	}
}

// base64Offsets implements spec.md section 4.3's base64offset value
// transformation and section 8 scenario 6: three encodings derived from
// padding the value with 0, 1, or 2 leading spaces, base64-encoding, then
// trimming the characters that padding polluted.
func base64Offsets(value string) [3]string {
	var out [3]string
	for offset := 0; offset < 3; offset++ {
		padded := strings.Repeat(" ", offset) + value
		enc := base64.StdEncoding.EncodeToString([]byte(padded))
		switch offset {
		case 0:
			out[0] = enc
		case 1:
			trim := endTrim(len(" " + value))
			enc = enc[2:]
			if trim > 0 && trim <= len(enc) {
				enc = enc[:len(enc)-trim]
			}
			out[1] = enc
		case 2:
			trim := endTrim(len("  " + value))
			enc = enc[3:]
			if trim > 0 && trim <= len(enc) {
				enc = enc[:len(enc)-trim]
			}
			out[2] = enc
		}
	}
	return out
}

// leafKind tags how a transformed leaf string should become a tau
// predicate (spec.md section 4.3, "Value transformation").
type leafKind int

const (
	leafExact leafKind = iota // "ivalue": case-insensitive exact match
	leafContains
	leafEndsWith
	leafStartsWith
	leafRegex
)

// transformedLeaf is one fully-transformed candidate match for a single
// source value (base64offset produces three per value; everything else
// produces exactly one).
type transformedLeaf struct {
	kind  leafKind
	value string // literal text, or regex source for leafRegex
}

// hasWildcard reports whether s contains a sigma wildcard (`*` or `?`);
// backslash escapes are not recognised.
func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// wildcardToRegex rewrites a sigma wildcard literal (`*` -> any run, `?`
// -> at most one char) into an anchored, case-insensitive regex, per spec.md
// section 4.3's default-modifier wildcard branch.
func wildcardToRegex(s string) string {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range s {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".?")
		default:
			b.WriteString(regexEscapeRune(r))
		}
	}
	b.WriteString("$")
	return b.String()
}

func regexEscapeRune(r rune) string {
	switch r {
	case '.', '+', '(', ')', '[', ']', '{', '}', '^', '$', '|', '\\':
		return "\\" + string(r)
	default:
		return string(r)
	}
}

// applyValueTransform runs spec.md section 4.3's per-leaf value
// transformation: base64/base64offset rewrite the value, then the
// remaining modifiers (contains/endswith/startswith/re, or the default
// branch) decide the final predicate shape.
func applyValueTransform(raw string, mods []Mod) ([]transformedLeaf, error) {
	values := []string{raw}
	if hasMod(mods, ModBase64Offset) {
		offsets := base64Offsets(raw)
		values = []string{offsets[0], offsets[1], offsets[2]}
	} else if hasMod(mods, ModBase64) {
		values = []string{base64.StdEncoding.EncodeToString([]byte(raw))}
	}

	var out []transformedLeaf
	for _, v := range values {
		switch {
		case hasMod(mods, ModContains):
			out = append(out, transformedLeaf{kind: leafContains, value: v})
		case hasMod(mods, ModEndsWith):
			out = append(out, transformedLeaf{kind: leafEndsWith, value: v})
		case hasMod(mods, ModStartsWith):
			out = append(out, transformedLeaf{kind: leafStartsWith, value: v})
		case hasMod(mods, ModRe):
			out = append(out, transformedLeaf{kind: leafRegex, value: v})
		case hasWildcard(v):
			out = append(out, transformedLeaf{kind: leafRegex, value: wildcardToRegex(v)})
		default:
			out = append(out, transformedLeaf{kind: leafExact, value: v})
		}
	}
	return out, nil
}
