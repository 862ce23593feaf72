package sigma

import (
	"fmt"

	"github.com/bearer/tauhunt/internal/tau"
	"github.com/bearer/tauhunt/internal/value"
)

// buildLeafExpr combines one scalar value's transformed leaves (a single
// leaf, or three for base64offset) into one tau expression. Non-regex
// kinds share a single AhoCorasick search per spec.md section 8 scenario
// 1; regex leaves each become their own Search node, OR'd in if mixed
// with non-regex kinds.
func buildLeafExpr(arena *tau.Arena, field string, leaves []transformedLeaf) (tau.Handle, error) {
	var entries []tau.AhoEntry
	var branches []tau.Handle

	for _, l := range leaves {
		switch l.kind {
		case leafExact:
			entries = append(entries, tau.AhoEntry{Value: l.value, Type: tau.AhoExact})
		case leafContains:
			entries = append(entries, tau.AhoEntry{Value: l.value, Type: tau.AhoContains})
		case leafEndsWith:
			entries = append(entries, tau.AhoEntry{Value: l.value, Type: tau.AhoEndsWith})
		case leafStartsWith:
			entries = append(entries, tau.AhoEntry{Value: l.value, Type: tau.AhoStartsWith})
		case leafRegex:
			search, err := tau.NewRegexSearch(l.value, false)
			if err != nil {
				return tau.Invalid, fmt.Errorf("sigma: invalid regex for field %q: %w", field, err)
			}
			branches = append(branches, arena.Search(search, field, false))
		}
	}

	if len(entries) > 0 {
		search := tau.NewAhoCorasickSearch(entries, true)
		branches = append(branches, arena.Search(search, field, false))
	}

	switch len(branches) {
	case 0:
		return arena.BoolLit(false), nil
	case 1:
		return branches[0], nil
	default:
		return arena.BooleanGroup(tau.Or, branches...), nil
	}
}

// compileFieldEntry compiles one `name(|modifier)*: value` detection
// entry. A list value ORs across its members (AND instead, if the field
// carries the `all` modifier per spec.md section 4.3's "map identifiers
// with all modifier on a field" rule).
func compileFieldEntry(arena *tau.Arena, field string, mods []Mod, raw value.Value) (tau.Handle, error) {
	var scalars []value.Value
	if arr, ok := raw.Array(); ok {
		scalars = arr
	} else {
		scalars = []value.Value{raw}
	}

	perScalar := make([]tau.Handle, 0, len(scalars))
	for _, sv := range scalars {
		leaves, err := applyValueTransform(sv.Stringify(), mods)
		if err != nil {
			return tau.Invalid, err
		}
		h, err := buildLeafExpr(arena, field, leaves)
		if err != nil {
			return tau.Invalid, err
		}
		perScalar = append(perScalar, h)
	}

	switch len(perScalar) {
	case 0:
		return arena.BoolLit(false), nil
	case 1:
		return perScalar[0], nil
	default:
		op := tau.Or
		if hasMod(mods, ModAll) {
			op = tau.And
		}
		return arena.BooleanGroup(op, perScalar...), nil
	}
}

// compileMapBlock ANDs every field-key entry in one detection mapping
// (spec.md section 4.3, "a mapping (AND across its fields)").
func compileMapBlock(arena *tau.Arena, obj *value.Object) (tau.Handle, error) {
	keys := obj.Keys()
	children := make([]tau.Handle, 0, len(keys))
	for _, key := range keys {
		field, mods, err := ParseFieldKey(key)
		if err != nil {
			return tau.Invalid, err
		}
		raw, _ := obj.Get(key)
		h, err := compileFieldEntry(arena, field, mods, raw)
		if err != nil {
			return tau.Invalid, err
		}
		children = append(children, h)
	}
	switch len(children) {
	case 0:
		return arena.BoolLit(true), nil
	case 1:
		return children[0], nil
	default:
		return arena.BooleanGroup(tau.And, children...), nil
	}
}

// CompiledIdentifier is one detection identifier's compiled form: the
// default reference (OR across sequence-of-maps entries, or the bare map
// block) and, for sequence-of-maps identifiers, the `all`-combined
// variant used by the condition's `all of <id>` rewrite.
type CompiledIdentifier struct {
	Default tau.Handle
	AllOf   tau.Handle // Invalid when this identifier isn't a sequence
}

// CompileIdentifierBlock compiles one identifier's YAML value, which is
// either a mapping (AND across fields) or a sequence of mappings (OR
// across mappings), per spec.md section 4.3.
func CompileIdentifierBlock(arena *tau.Arena, raw value.Value) (CompiledIdentifier, error) {
	if arr, ok := raw.Array(); ok {
		children := make([]tau.Handle, 0, len(arr))
		for _, item := range arr {
			obj, ok := item.Object()
			if !ok {
				return CompiledIdentifier{}, fmt.Errorf("sigma: sequence identifier entries must be mappings")
			}
			h, err := compileMapBlock(arena, obj)
			if err != nil {
				return CompiledIdentifier{}, err
			}
			children = append(children, h)
		}
		var orH, andH tau.Handle
		switch len(children) {
		case 0:
			orH, andH = arena.BoolLit(false), arena.BoolLit(true)
		case 1:
			orH, andH = children[0], children[0]
		default:
			orH = arena.BooleanGroup(tau.Or, children...)
			andH = arena.BooleanGroup(tau.And, children...)
		}
		return CompiledIdentifier{Default: orH, AllOf: andH}, nil
	}

	obj, ok := raw.Object()
	if !ok {
		return CompiledIdentifier{}, fmt.Errorf("sigma: identifier value must be a mapping or sequence of mappings")
	}
	h, err := compileMapBlock(arena, obj)
	if err != nil {
		return CompiledIdentifier{}, err
	}
	return CompiledIdentifier{Default: h, AllOf: tau.Invalid}, nil
}
