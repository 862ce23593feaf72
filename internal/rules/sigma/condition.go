package sigma

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bearer/tauhunt/internal/tau"
)

// aggPattern matches the detached aggregation tail: `count(field) [by
// group] op N` (spec.md section 4.3, "Aggregation"). Only count() is
// supported; anything else is a compile error.
var aggPattern = regexp.MustCompile(`(?i)^\s*count\(\s*([A-Za-z0-9_.]*)\s*\)\s*(?:by\s+([A-Za-z0-9_.]+))?\s*(==|>=|<=|>|<)\s*(\d+)\s*$`)

// detachAggregation splits off a trailing ` | count(...) op N` clause,
// per spec.md section 4.3. cond has no `|` if there is nothing to detach.
func detachAggregation(cond string) (string, *tau.Aggregate, error) {
	idx := strings.Index(cond, "|")
	if idx < 0 {
		return cond, nil, nil
	}
	base := strings.TrimSpace(cond[:idx])
	tail := strings.TrimSpace(cond[idx+1:])

	m := aggPattern.FindStringSubmatch(tail)
	if m == nil {
		return "", nil, fmt.Errorf("sigma: unsupported aggregation expression %q (only count() is supported)", tail)
	}

	n, err := strconv.ParseInt(m[4], 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("sigma: invalid aggregation count %q", m[4])
	}

	var kind tau.AggregateCountKind
	switch m[3] {
	case "==":
		kind = tau.AggCountEq
	case ">":
		kind = tau.AggCountGt
	case ">=":
		kind = tau.AggCountGe
	case "<":
		kind = tau.AggCountLt
	case "<=":
		kind = tau.AggCountLe
	}

	var fields []string
	if m[1] != "" {
		fields = append(fields, m[1])
	}
	if m[2] != "" {
		fields = append(fields, m[2])
	}

	return base, &tau.Aggregate{Count: kind, N: n, Fields: fields}, nil
}

// ofPattern matches `all of <target>` / `1 of <target>` where target is
// `them`, a wildcard prefix (`prefix*`), or a bare identifier name
// (spec.md section 4.3, "Condition rewriting").
var ofPattern = regexp.MustCompile(`(?i)\b(all|1)\s+of\s+(them\b|[A-Za-z0-9_]+\*|[A-Za-z0-9_]+)`)

func allOfToken(name string) string { return "__allof_" + name }

// rewriteOfForms expands the `all of`/`1 of` condition grammar into plain
// boolean-combinator text, per spec.md section 4.3. identifiers is
// mutated: an `all of <id>` reference over a sequence identifier gets a
// synthetic entry registered under allOfToken(id) so the parser can
// resolve it like any other identifier.
func rewriteOfForms(cond string, names []string, identifiers map[string]CompiledIdentifier) (string, error) {
	var rewriteErr error
	out := ofPattern.ReplaceAllStringFunc(cond, func(m string) string {
		sub := ofPattern.FindStringSubmatch(m)
		qty := strings.ToLower(sub[1])
		target := strings.TrimSpace(sub[2])

		joiner := " or "
		if qty == "all" {
			joiner = " and "
		}

		switch {
		case strings.EqualFold(target, "them"):
			if len(names) == 0 {
				rewriteErr = fmt.Errorf("sigma: %q of them has no identifiers to expand", qty)
				return m
			}
			return "(" + strings.Join(names, joiner) + ")"

		case strings.HasSuffix(target, "*"):
			prefix := strings.TrimSuffix(target, "*")
			var matched []string
			for _, n := range names {
				if strings.HasPrefix(n, prefix) {
					matched = append(matched, n)
				}
			}
			if len(matched) == 0 {
				rewriteErr = fmt.Errorf("sigma: %q of %q matched no identifiers", qty, target)
				return m
			}
			return "(" + strings.Join(matched, joiner) + ")"

		default:
			if qty == "all" {
				if ci, ok := identifiers[target]; ok && ci.AllOf != tau.Invalid {
					token := allOfToken(target)
					identifiers[token] = CompiledIdentifier{Default: ci.AllOf, AllOf: tau.Invalid}
					return token
				}
			}
			return target
		}
	})
	if rewriteErr != nil {
		return "", rewriteErr
	}
	return out, nil
}

// guardDisallowed rejects condition text spec.md section 9's Open
// Question 3 names as unsupported grammar: unresolved wildcards,
// unresolved `of`, and the non-count aggregation keywords.
func guardDisallowed(cond string) error {
	padded := " " + cond + " "
	for _, bad := range []string{" of ", " | ", " avg ", " max ", " min ", " near ", " sum "} {
		if strings.Contains(strings.ToLower(padded), bad) {
			return fmt.Errorf("sigma: unsupported condition syntax near %q", strings.TrimSpace(bad))
		}
	}
	if strings.Contains(cond, "*") {
		return fmt.Errorf("sigma: unresolved wildcard in condition %q", cond)
	}
	return nil
}

func tokenize(cond string) []string {
	var toks []string
	i, n := 0, len(cond)
	for i < n {
		c := cond[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(' || c == ')':
			toks = append(toks, string(c))
			i++
		default:
			j := i
			for j < n && cond[j] != ' ' && cond[j] != '\t' && cond[j] != '\n' && cond[j] != '(' && cond[j] != ')' {
				j++
			}
			toks = append(toks, cond[i:j])
			i = j
		}
	}
	return toks
}

// conditionParser is a small recursive-descent parser over the
// normalised condition grammar: `or` of `and` of (optional `not`) atoms,
// atoms being parenthesised sub-expressions or identifier references
// (spec.md section 9, Open Question 3 - "accepts only key: value pairs
// plus boolean combinators").
type conditionParser struct {
	toks  []string
	idx   int
	arena *tau.Arena
}

func (p *conditionParser) peek() string {
	if p.idx >= len(p.toks) {
		return ""
	}
	return p.toks[p.idx]
}

func (p *conditionParser) parseOr() (tau.Handle, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return tau.Invalid, err
	}
	children := []tau.Handle{lhs}
	for strings.EqualFold(p.peek(), "or") {
		p.idx++
		rhs, err := p.parseAnd()
		if err != nil {
			return tau.Invalid, err
		}
		children = append(children, rhs)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return p.arena.BooleanGroup(tau.Or, children...), nil
}

func (p *conditionParser) parseAnd() (tau.Handle, error) {
	lhs, err := p.parseNot()
	if err != nil {
		return tau.Invalid, err
	}
	children := []tau.Handle{lhs}
	for strings.EqualFold(p.peek(), "and") {
		p.idx++
		rhs, err := p.parseNot()
		if err != nil {
			return tau.Invalid, err
		}
		children = append(children, rhs)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return p.arena.BooleanGroup(tau.And, children...), nil
}

func (p *conditionParser) parseNot() (tau.Handle, error) {
	if strings.EqualFold(p.peek(), "not") {
		p.idx++
		inner, err := p.parseNot()
		if err != nil {
			return tau.Invalid, err
		}
		return p.arena.Negate(inner), nil
	}
	return p.parseAtom()
}

func (p *conditionParser) parseAtom() (tau.Handle, error) {
	tok := p.peek()
	if tok == "" {
		return tau.Invalid, fmt.Errorf("sigma: unexpected end of condition")
	}
	if tok == "(" {
		p.idx++
		h, err := p.parseOr()
		if err != nil {
			return tau.Invalid, err
		}
		if p.peek() != ")" {
			return tau.Invalid, fmt.Errorf("sigma: unbalanced parentheses in condition")
		}
		p.idx++
		return h, nil
	}
	p.idx++
	return p.arena.Identifier(tok), nil
}

// CompileConditionExpr parses raw (the full `condition:` string, possibly
// carrying an aggregation tail) into a tau Detection ready for Resolve,
// plus the detached Aggregate, if any.
func CompileConditionExpr(arena *tau.Arena, raw string, names []string, identifiers map[string]CompiledIdentifier) (tau.Handle, map[string]tau.Handle, *tau.Aggregate, error) {
	base, agg, err := detachAggregation(raw)
	if err != nil {
		return tau.Invalid, nil, nil, err
	}

	base = strings.Join(strings.Fields(base), " ")
	// Normalise combinator case per spec.md section 4.3, "Normalise token
	// case: uppercase AND/OR/NOT -> lowercase."
	base = lowerCombinators(base)

	rewritten, err := rewriteOfForms(base, names, identifiers)
	if err != nil {
		return tau.Invalid, nil, nil, err
	}
	if err := guardDisallowed(rewritten); err != nil {
		return tau.Invalid, nil, nil, err
	}

	toks := tokenize(rewritten)
	p := &conditionParser{toks: toks, arena: arena}
	root, err := p.parseOr()
	if err != nil {
		return tau.Invalid, nil, nil, err
	}
	if p.idx != len(p.toks) {
		return tau.Invalid, nil, nil, fmt.Errorf("sigma: unexpected token %q in condition", p.toks[p.idx])
	}

	idHandles := make(map[string]tau.Handle, len(identifiers))
	for name, ci := range identifiers {
		idHandles[name] = ci.Default
	}
	return root, idHandles, agg, nil
}

func lowerCombinators(cond string) string {
	toks := strings.Fields(cond)
	for i, t := range toks {
		switch strings.ToLower(t) {
		case "and", "or", "not":
			toks[i] = strings.ToLower(t)
		}
	}
	return strings.Join(toks, " ")
}
