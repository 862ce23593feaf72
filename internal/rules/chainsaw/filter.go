package chainsaw

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bearer/tauhunt/internal/rules/sigma"
	"github.com/bearer/tauhunt/internal/tau"
	"github.com/bearer/tauhunt/internal/value"
)

// The scalar `filter` form is a small key:value boolean grammar; spec.md
// section 9's Open Question 3 leaves its exact grammar undecided outside
// Sigma lowering and directs "document and reject anything else", so this
// module fixes one: `field[|modifier]*: value` atoms (the same
// modifier/value-transform vocabulary Sigma uses, reused via
// sigma.CompileIdentifierBlock so one leaf value transforms identically
// whichever compiler produced it) combined with `and`/`or`/`not` and
// parentheses. Quoted values (`'...'`/`"..."`) may contain spaces.

type kvAtom struct {
	key string
	val string
}

type kvToken struct {
	isAtom bool
	atom   kvAtom
	text   string // "(" | ")" | "and" | "or" | "not"
}

func tokenizeKV(s string) ([]kvToken, error) {
	var toks []kvToken
	i, n := 0, len(s)
	for i < n {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(' || c == ')':
			toks = append(toks, kvToken{text: string(c)})
			i++
		default:
			j := i
			for j < n && s[j] != ' ' && s[j] != '\t' && s[j] != '\n' && s[j] != '(' && s[j] != ')' && s[j] != ':' {
				j++
			}
			word := s[i:j]
			if j < n && s[j] == ':' {
				key := word
				j++ // consume ':'
				for j < n && (s[j] == ' ' || s[j] == '\t') {
					j++
				}
				var val string
				if j < n && (s[j] == '\'' || s[j] == '"') {
					quote := s[j]
					j++
					start := j
					for j < n && s[j] != quote {
						j++
					}
					if j >= n {
						return nil, fmt.Errorf("chainsaw: unterminated quoted value for field %q", key)
					}
					val = s[start:j]
					j++
				} else {
					start := j
					for j < n && s[j] != ' ' && s[j] != '\t' && s[j] != '\n' && s[j] != ')' {
						j++
					}
					val = s[start:j]
				}
				toks = append(toks, kvToken{isAtom: true, atom: kvAtom{key: key, val: val}})
				i = j
				continue
			}
			switch strings.ToLower(word) {
			case "and", "or", "not":
				toks = append(toks, kvToken{text: strings.ToLower(word)})
			default:
				return nil, fmt.Errorf("chainsaw: unexpected token %q in filter (only key:value pairs and and/or/not/() are accepted)", word)
			}
			i = j
		}
	}
	return toks, nil
}

type kvParser struct {
	toks  []kvToken
	idx   int
	arena *tau.Arena
}

func (p *kvParser) peek() kvToken {
	if p.idx >= len(p.toks) {
		return kvToken{}
	}
	return p.toks[p.idx]
}

func (p *kvParser) parseOr() (tau.Handle, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return tau.Invalid, err
	}
	children := []tau.Handle{lhs}
	for p.peek().text == "or" {
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

func (p *kvParser) parseAnd() (tau.Handle, error) {
	lhs, err := p.parseNot()
	if err != nil {
		return tau.Invalid, err
	}
	children := []tau.Handle{lhs}
	for p.peek().text == "and" {
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

func (p *kvParser) parseNot() (tau.Handle, error) {
	if p.peek().text == "not" {
		p.idx++
		inner, err := p.parseNot()
		if err != nil {
			return tau.Invalid, err
		}
		return p.arena.Negate(inner), nil
	}
	return p.parseAtom()
}

func (p *kvParser) parseAtom() (tau.Handle, error) {
	tok := p.peek()
	if tok.text == "(" {
		p.idx++
		h, err := p.parseOr()
		if err != nil {
			return tau.Invalid, err
		}
		if p.peek().text != ")" {
			return tau.Invalid, fmt.Errorf("chainsaw: unbalanced parentheses in filter")
		}
		p.idx++
		return h, nil
	}
	if !tok.isAtom {
		return tau.Invalid, fmt.Errorf("chainsaw: expected a key:value pair in filter")
	}
	p.idx++
	return compileKVAtom(p.arena, tok.atom)
}

// compileKVAtom builds a single-field detection mapping from one atom and
// reuses sigma.CompileIdentifierBlock so literal/modifier/wildcard
// transformation is identical between the two rule families.
func compileKVAtom(arena *tau.Arena, atom kvAtom) (tau.Handle, error) {
	obj := value.NewObject()
	obj.Set(atom.key, scalarValue(atom.val))
	ci, err := sigma.CompileIdentifierBlock(arena, value.FromObject(obj))
	if err != nil {
		return tau.Invalid, err
	}
	return ci.Default, nil
}

// scalarValue classifies a bare filter-value token as a number (so
// `EventId: 4688` compiles to a numeric match) or a string otherwise.
func scalarValue(s string) value.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int64(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float64(f)
	}
	return value.String(s)
}

// CompileKVFilter compiles Chainsaw's scalar τ-KV filter string into a
// tau expression (spec.md section 4.2).
func CompileKVFilter(arena *tau.Arena, filter string) (tau.Handle, error) {
	toks, err := tokenizeKV(filter)
	if err != nil {
		return tau.Invalid, err
	}
	p := &kvParser{toks: toks, arena: arena}
	h, err := p.parseOr()
	if err != nil {
		return tau.Invalid, err
	}
	if p.idx != len(p.toks) {
		return tau.Invalid, fmt.Errorf("chainsaw: unexpected trailing token in filter")
	}
	return h, nil
}
