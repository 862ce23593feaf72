// Package chainsaw compiles Chainsaw-native YAML rules into tau-IR
// (spec.md section 4.2). Identifier blocks and condition rewriting reuse
// the Sigma compiler verbatim ("Identifier blocks use the same YAML
// conventions as Sigma"); this package only adds the scalar τ-KV filter
// grammar and the rule-header/field/aggregate shape that is Chainsaw's
// own.
package chainsaw

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/mapper"
	"github.com/bearer/tauhunt/internal/rules"
	"github.com/bearer/tauhunt/internal/rules/sigma"
	"github.com/bearer/tauhunt/internal/tau"
	"github.com/bearer/tauhunt/internal/value"
	"gopkg.in/yaml.v3"
)

type rawContainer struct {
	Field     string `yaml:"field"`
	Format    string `yaml:"format"`
	Delimiter string `yaml:"delimiter"`
	Separator string `yaml:"separator"`
	Trim      bool   `yaml:"trim"`
}

type rawField struct {
	Name      string        `yaml:"name"`
	From      string        `yaml:"from"`
	To        string        `yaml:"to"`
	Visible   bool          `yaml:"visible"`
	Cast      string        `yaml:"cast"`
	Container *rawContainer `yaml:"container"`
}

type rawAggregate struct {
	Count  string   `yaml:"count"`
	Fields []string `yaml:"fields"`
}

// rawFilter covers both shapes `filter` may take: a bare scalar τ-KV
// string, or a mapping of `condition:` plus named identifier blocks
// (spec.md section 4.2). yaml.v3 decodes a scalar node into Scalar and a
// mapping node into Block; exactly one is populated.
type rawFilter struct {
	Scalar string
	Block  map[string]yaml.Node
}

func (f *rawFilter) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&f.Scalar)
	case yaml.MappingNode:
		return node.Decode(&f.Block)
	default:
		return fmt.Errorf("chainsaw: filter must be a string or a mapping")
	}
}

type rawRule struct {
	Title       string       `yaml:"title"`
	Name        string       `yaml:"name"`
	Group       string       `yaml:"group"`
	Description string       `yaml:"description"`
	Authors     []string     `yaml:"authors"`
	DocKind     string       `yaml:"kind"`
	Level       string       `yaml:"level"`
	Status      string       `yaml:"status"`
	Timestamp   string       `yaml:"timestamp"`
	Fields      []rawField   `yaml:"fields"`
	Filter      rawFilter    `yaml:"filter"`
	Aggregate   *rawAggregate `yaml:"aggregate"`
}

var docKindNames = map[string]document.Kind{
	"evtx":  document.KindEvtx,
	"hve":   document.KindHve,
	"json":  document.KindJson,
	"xml":   document.KindXml,
	"mft":   document.KindMft,
	"esedb": document.KindEsedb,
}

var castNames = map[string]mapper.CastMod{
	"int": mapper.CastInt,
	"str": mapper.CastStr,
	"flt": mapper.CastFlt,
}

var containerFormatNames = map[string]mapper.ContainerFormat{
	"json": mapper.ContainerJson,
	"kv":   mapper.ContainerKV,
}

func compileFields(raw []rawField) ([]mapper.Field, error) {
	out := make([]mapper.Field, 0, len(raw))
	for _, rf := range raw {
		f := mapper.Field{Name: rf.Name, From: rf.From, To: rf.To, Visible: rf.Visible}
		if rf.From == "" {
			f.From = rf.Name
		}
		if rf.To == "" {
			f.To = rf.Name
		}
		if rf.Cast != "" {
			cast, ok := castNames[strings.ToLower(rf.Cast)]
			if !ok {
				return nil, fmt.Errorf("chainsaw: unrecognised cast %q on field %q", rf.Cast, rf.Name)
			}
			f.Cast = cast
		}
		if rf.Container != nil {
			format, ok := containerFormatNames[strings.ToLower(rf.Container.Format)]
			if !ok {
				return nil, fmt.Errorf("chainsaw: unrecognised container format %q on field %q", rf.Container.Format, rf.Name)
			}
			f.Container = &mapper.Container{
				Field:  rf.Container.Field,
				Format: format,
				KVParams: mapper.KVParams{
					Delimiter: rf.Container.Delimiter,
					Separator: rf.Container.Separator,
					Trim:      rf.Container.Trim,
				},
			}
		}
		out = append(out, f)
	}
	return out, nil
}

func compileAggregate(raw *rawAggregate) (*tau.Aggregate, error) {
	if raw == nil {
		return nil, nil
	}
	kind, n, err := parseCountExpr(raw.Count)
	if err != nil {
		return nil, err
	}
	return &tau.Aggregate{Count: kind, N: n, Fields: raw.Fields}, nil
}

func parseCountExpr(s string) (tau.AggregateCountKind, int64, error) {
	s = strings.TrimSpace(s)
	op := "=="
	numStr := s
	for _, candidate := range []string{">=", "<=", "==", ">", "<"} {
		if strings.HasPrefix(s, candidate) {
			op = candidate
			numStr = strings.TrimSpace(s[len(candidate):])
			break
		}
	}
	n, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("chainsaw: invalid aggregate count %q", s)
	}
	var kind tau.AggregateCountKind
	switch op {
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
	return kind, n, nil
}

// yamlValue decodes one YAML node straight into a value.Value, reusing
// value.Value's own yaml.Unmarshaler implementation so identifier blocks
// written in Chainsaw's `filter:` mapping decode exactly like Sigma's
// `detection:` blocks do.
func yamlValue(node *yaml.Node) (value.Value, error) {
	var v value.Value
	if err := node.Decode(&v); err != nil {
		return value.Value{}, err
	}
	return v, nil
}

// compileFilter dispatches on rawFilter's populated shape: a scalar
// string goes through CompileKVFilter; a mapping goes through the same
// identifier-block/condition-rewrite path Sigma uses (spec.md section
// 4.2, "Identifier blocks use the same YAML conventions as Sigma").
func compileFilter(arena *tau.Arena, f rawFilter) (tau.Handle, map[string]tau.Handle, *tau.Aggregate, error) {
	if f.Block == nil {
		h, err := CompileKVFilter(arena, f.Scalar)
		if err != nil {
			return tau.Invalid, nil, nil, err
		}
		return h, nil, nil, nil
	}

	condNode, ok := f.Block["condition"]
	if !ok {
		return tau.Invalid, nil, nil, fmt.Errorf("chainsaw: mapping filter missing condition")
	}
	var condStr string
	if err := condNode.Decode(&condStr); err != nil {
		return tau.Invalid, nil, nil, fmt.Errorf("chainsaw: condition must be a string")
	}

	var names []string
	identifiers := map[string]sigma.CompiledIdentifier{}
	for key, node := range f.Block {
		if key == "condition" {
			continue
		}
		node := node
		val, err := yamlValue(&node)
		if err != nil {
			return tau.Invalid, nil, nil, fmt.Errorf("chainsaw: identifier %q: %w", key, err)
		}
		ci, err := sigma.CompileIdentifierBlock(arena, val)
		if err != nil {
			return tau.Invalid, nil, nil, fmt.Errorf("chainsaw: identifier %q: %w", key, err)
		}
		identifiers[key] = ci
		names = append(names, key)
	}

	root, idHandles, agg, err := sigma.CompileConditionExpr(arena, condStr, names, identifiers)
	if err != nil {
		return tau.Invalid, nil, nil, err
	}
	return root, idHandles, agg, nil
}

// Compile parses one Chainsaw rule document into a rules.Rule.
func Compile(r []byte) (*rules.Rule, error) {
	var raw rawRule
	if err := yaml.Unmarshal(r, &raw); err != nil {
		return nil, fmt.Errorf("chainsaw: %w", err)
	}

	name := raw.Title
	if name == "" {
		name = raw.Name
	}
	if name == "" {
		return nil, fmt.Errorf("chainsaw: missing required title/name")
	}

	docKind, ok := docKindNames[strings.ToLower(raw.DocKind)]
	if !ok {
		return nil, fmt.Errorf("chainsaw: unrecognised document kind %q", raw.DocKind)
	}

	fields, err := compileFields(raw.Fields)
	if err != nil {
		return nil, err
	}

	arena := tau.NewArena()
	root, idHandles, agg, err := compileFilter(arena, raw.Filter)
	if err != nil {
		return nil, err
	}
	if raw.Aggregate != nil {
		agg, err = compileAggregate(raw.Aggregate)
		if err != nil {
			return nil, err
		}
	}

	det := tau.Detection{Arena: arena, Expression: root, Identifiers: idHandles}
	if err := det.Resolve(); err != nil {
		return nil, fmt.Errorf("chainsaw: %w", err)
	}
	optArena, optRoot := tau.Optimise(det.Arena, det.Expression)
	det.Arena, det.Expression = optArena, optRoot

	level, ok := normaliseLevel(raw.Level)
	if !ok {
		return nil, fmt.Errorf("chainsaw: unrecognised level %q", raw.Level)
	}

	rule := &rules.Rule{
		Kind:      rules.KindChainsaw,
		Name:      name,
		Level:     level,
		Status:    normaliseStatus(raw.Status),
		Authors:   raw.Authors,
		Aggregate: agg,
		Filter:    det,
		Group:     raw.Group,
		Timestamp: raw.Timestamp,
		DocKind:   docKind,
		Fields:    fields,
	}
	return rule, nil
}
