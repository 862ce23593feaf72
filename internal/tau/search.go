package tau

import (
	"regexp"
	"strings"

	ahocorasick "github.com/BobuSumisu/aho-corasick"

	"github.com/bearer/tauhunt/internal/value"
)

// SearchKind tags the Search sum type (spec.md section 3).
type SearchKind int

const (
	SearchAny SearchKind = iota
	SearchRegex
	SearchAhoCorasick
	SearchContains
	SearchEndsWith
	SearchExact
	SearchStartsWith
)

// AhoMatchType tags the per-entry match type inside an AhoCorasick search.
type AhoMatchType int

const (
	AhoContains AhoMatchType = iota
	AhoEndsWith
	AhoExact
	AhoStartsWith
)

// AhoEntry is one typed alternative inside an AhoCorasick search.
type AhoEntry struct {
	Value string
	Type  AhoMatchType
}

// Search is a compiled multi-alternative predicate. The AhoCorasick variant
// is backed by github.com/BobuSumisu/aho-corasick, giving an O(n) single
// pass over the haystack regardless of alternative count, rather than one
// regexp per alternative.
type Search struct {
	Kind       SearchKind
	Re         *regexp.Regexp
	Str        string
	IgnoreCase bool

	trie       *ahocorasick.Trie
	byKeyword  map[string][]AhoMatchType // normalised keyword -> match types requested for it
}

// NewRegexSearch compiles re once at load time.
func NewRegexSearch(re string, ignoreCase bool) (Search, error) {
	pat := re
	if ignoreCase {
		pat = "(?i)" + pat
	}
	compiled, err := regexp.Compile(pat)
	if err != nil {
		return Search{}, err
	}
	return Search{Kind: SearchRegex, Re: compiled, IgnoreCase: ignoreCase}, nil
}

// NewAhoCorasickSearch builds one automaton over all entries; ignoreCase
// folds ASCII only, per spec.md section 4.1 ("Search semantics").
func NewAhoCorasickSearch(entries []AhoEntry, ignoreCase bool) Search {
	byKeyword := make(map[string][]AhoMatchType, len(entries))
	keywords := make([]string, 0, len(entries))
	for _, e := range entries {
		s := e.Value
		if ignoreCase {
			s = asciiLower(s)
		}
		if _, seen := byKeyword[s]; !seen {
			keywords = append(keywords, s)
		}
		byKeyword[s] = append(byKeyword[s], e.Type)
	}

	trie := ahocorasick.NewTrieBuilder().AddStrings(keywords).Build()

	return Search{
		Kind:       SearchAhoCorasick,
		IgnoreCase: ignoreCase,
		trie:       trie,
		byKeyword:  byKeyword,
	}
}

// Match applies the search to a single (non-array) Value. Array iteration
// is the caller's responsibility (the tau engine's Search expression
// evaluator), per spec.md section 4.1.
func (s Search) Match(v value.Value) bool {
	switch s.Kind {
	case SearchAny:
		return !v.IsNull()
	case SearchRegex:
		if v.IsNull() {
			return false
		}
		return s.Re.MatchString(v.Stringify())
	case SearchContains:
		if v.IsNull() {
			return false
		}
		return strings.Contains(v.Stringify(), s.Str)
	case SearchEndsWith:
		if v.IsNull() {
			return false
		}
		return strings.HasSuffix(v.Stringify(), s.Str)
	case SearchStartsWith:
		if v.IsNull() {
			return false
		}
		return strings.HasPrefix(v.Stringify(), s.Str)
	case SearchExact:
		if v.IsNull() {
			return false
		}
		return v.Stringify() == s.Str
	case SearchAhoCorasick:
		return s.matchAho(v)
	default:
		return false
	}
}

func (s Search) matchAho(v value.Value) bool {
	if v.IsNull() {
		return false
	}
	haystack := v.Stringify()
	folded := haystack
	if s.IgnoreCase {
		folded = asciiLower(haystack)
	}

	for _, m := range s.trie.MatchString(folded) {
		word := m.MatchString()
		types, ok := s.byKeyword[word]
		if !ok {
			continue
		}
		start := m.Pos()
		end := start + len(word)
		for _, t := range types {
			switch t {
			case AhoContains:
				return true
			case AhoStartsWith:
				if start == 0 {
					return true
				}
			case AhoEndsWith:
				if end == len(folded) {
					return true
				}
			case AhoExact:
				if start == 0 && end == len(folded) {
					return true
				}
			}
		}
	}
	return false
}

// asciiLower folds only ASCII letters, per spec.md's "Case-insensitive
// variants fold ASCII only."
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
