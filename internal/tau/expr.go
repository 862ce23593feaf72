// Package tau implements the tau-IR expression language: the single
// intermediate form that Chainsaw and Sigma rules compile down to, plus
// the engine that solves it against documents.
package tau

// Op tags BooleanGroup's combinator.
type Op int

const (
	And Op = iota
	Or
)

// CompareOp tags BooleanExpression's comparison.
type CompareOp int

const (
	CmpEq CompareOp = iota
	CmpGt
	CmpGe
	CmpLt
	CmpLe
)

// CastMod tags the Cast expression's target type.
type CastMod int

const (
	CastInt CastMod = iota
	CastStr
	CastFlt
)

type exprKind int

const (
	kindBooleanGroup exprKind = iota
	kindBooleanExpression
	kindNegate
	kindNested
	kindMatch
	kindSearch
	kindMatrix
	kindField
	kindCast
	kindBoolLit
	kindIntLit
	kindFloatLit
	kindNullLit
	kindIdentifier
)

// Handle is an index into an Arena; the first node pushed gets Handle 0.
// Invalid marks "no node"; check Arena.Valid.
type Handle int

// Invalid is the sentinel "no node" handle.
const Invalid Handle = -1

// MatrixRow is one row of a Matrix expression: a tuple of per-field
// patterns plus a shared case-folding flag.
type MatrixRow struct {
	Patterns   []Pattern
	IgnoreCase bool
}

type node struct {
	kind exprKind

	op       Op
	children []Handle

	lhs, rhs Handle
	cmp      CompareOp

	inner Handle

	field     string
	pattern   Pattern
	search    Search
	castToStr bool

	fields []string
	rows   []MatrixRow

	castMod CastMod

	boolVal  bool
	intVal   int64
	floatVal float64

	name string
}

// Arena stores tau-IR expression nodes by index rather than by pointer,
// per spec.md section 9 ("prefer indexed arena storage ... for cheap
// clone, traversal and serialisation"). Each compiled rule owns one Arena.
type Arena struct {
	nodes []node
}

// NewArena returns an empty Arena.
func NewArena() *Arena {
	return &Arena{}
}

func (a *Arena) push(n node) Handle {
	a.nodes = append(a.nodes, n)
	return Handle(len(a.nodes) - 1)
}

// Valid reports whether h refers to a real node in this arena.
func (a *Arena) Valid(h Handle) bool {
	return h >= 0 && int(h) < len(a.nodes)
}

func (a *Arena) at(h Handle) node {
	return a.nodes[h]
}

// --- constructors ---

func (a *Arena) BooleanGroup(op Op, children ...Handle) Handle {
	return a.push(node{kind: kindBooleanGroup, op: op, children: append([]Handle{}, children...)})
}

func (a *Arena) BooleanExpression(lhs Handle, cmp CompareOp, rhs Handle) Handle {
	return a.push(node{kind: kindBooleanExpression, lhs: lhs, rhs: rhs, cmp: cmp})
}

func (a *Arena) Negate(inner Handle) Handle {
	return a.push(node{kind: kindNegate, inner: inner})
}

func (a *Arena) Nested(field string, inner Handle) Handle {
	return a.push(node{kind: kindNested, field: field, inner: inner})
}

func (a *Arena) Match(pattern Pattern, inner Handle) Handle {
	return a.push(node{kind: kindMatch, pattern: pattern, inner: inner})
}

func (a *Arena) Search(search Search, field string, castToStr bool) Handle {
	return a.push(node{kind: kindSearch, search: search, field: field, castToStr: castToStr})
}

func (a *Arena) Matrix(fields []string, rows []MatrixRow) Handle {
	return a.push(node{kind: kindMatrix, fields: append([]string{}, fields...), rows: rows})
}

func (a *Arena) Field(name string) Handle {
	return a.push(node{kind: kindField, field: name})
}

func (a *Arena) Cast(field string, mod CastMod) Handle {
	return a.push(node{kind: kindCast, field: field, castMod: mod})
}

func (a *Arena) BoolLit(b bool) Handle {
	return a.push(node{kind: kindBoolLit, boolVal: b})
}

func (a *Arena) IntLit(i int64) Handle {
	return a.push(node{kind: kindIntLit, intVal: i})
}

func (a *Arena) FloatLit(f float64) Handle {
	return a.push(node{kind: kindFloatLit, floatVal: f})
}

func (a *Arena) NullLit() Handle {
	return a.push(node{kind: kindNullLit})
}

// Identifier is only valid pre-coalesce; solving a Detection without
// first calling Coalesce is a programming error (spec.md section 8).
func (a *Arena) Identifier(name string) Handle {
	return a.push(node{kind: kindIdentifier, name: name})
}

// Clone deep-copies a subtree rooted at h into dst, returning the new
// root handle. Used by the optimiser passes (Shake, Rewrite, MergeMatrix)
// for node kinds they leave unchanged.
func Clone(dst *Arena, src *Arena, h Handle) Handle {
	if !src.Valid(h) {
		return Invalid
	}
	n := src.at(h)
	switch n.kind {
	case kindBooleanGroup:
		children := make([]Handle, len(n.children))
		for i, c := range n.children {
			children[i] = Clone(dst, src, c)
		}
		return dst.BooleanGroup(n.op, children...)
	case kindBooleanExpression:
		return dst.BooleanExpression(Clone(dst, src, n.lhs), n.cmp, Clone(dst, src, n.rhs))
	case kindNegate:
		return dst.Negate(Clone(dst, src, n.inner))
	case kindNested:
		return dst.Nested(n.field, Clone(dst, src, n.inner))
	case kindMatch:
		return dst.Match(n.pattern, Clone(dst, src, n.inner))
	case kindSearch:
		return dst.Search(n.search, n.field, n.castToStr)
	case kindMatrix:
		return dst.Matrix(n.fields, n.rows)
	case kindField:
		return dst.Field(n.field)
	case kindCast:
		return dst.Cast(n.field, n.castMod)
	case kindBoolLit:
		return dst.BoolLit(n.boolVal)
	case kindIntLit:
		return dst.IntLit(n.intVal)
	case kindFloatLit:
		return dst.FloatLit(n.floatVal)
	case kindNullLit:
		return dst.NullLit()
	case kindIdentifier:
		return dst.Identifier(n.name)
	default:
		return Invalid
	}
}
