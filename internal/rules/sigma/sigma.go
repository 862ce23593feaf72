// Package sigma compiles Sigma YAML detection rules into tau-IR
// (spec.md section 4.3), the hardest sub-part of the rule compiler:
// modifier expansion, value transformation, condition rewriting and
// multi-document rule collections.
package sigma

import (
	"fmt"
	"io"
	"strings"

	"github.com/bearer/tauhunt/internal/rules"
	"github.com/bearer/tauhunt/internal/tau"
	"github.com/bearer/tauhunt/internal/value"
	"gopkg.in/yaml.v3"
)

type rawDoc struct {
	Title          string       `yaml:"title"`
	ID             string       `yaml:"id"`
	Status         string       `yaml:"status"`
	Level          string       `yaml:"level"`
	Author         string       `yaml:"author"`
	References     []string     `yaml:"references"`
	Tags           []string     `yaml:"tags"`
	FalsePositives []string     `yaml:"falsepositives"`
	LogSource      rawLogSource `yaml:"logsource"`
	Detection      value.Value  `yaml:"detection"`
	Action         string       `yaml:"action"`
}

// header is the inheritable portion of a rule collection's base document
// (spec.md section 4.3, "later documents inherit the base header").
type header struct {
	title      string
	id         string
	status     string
	level      string
	author     string
	references []string
	tags       []string
	falsePos   []string
	logSource  rawLogSource
}

func (d rawDoc) header() header {
	return header{
		title: d.Title, id: d.ID, status: d.Status, level: d.Level,
		author: d.Author, references: d.References, tags: d.Tags,
		falsePos: d.FalsePositives, logSource: d.LogSource,
	}
}

// mergeOver returns base overridden field-by-field by any non-empty
// field doc sets (spec.md section 4.3, rule-collection inheritance).
func (base header) mergeOver(doc rawDoc) header {
	out := base
	if doc.Title != "" {
		out.title = doc.Title
	}
	if doc.ID != "" {
		out.id = doc.ID
	}
	if doc.Status != "" {
		out.status = doc.Status
	}
	if doc.Level != "" {
		out.level = doc.Level
	}
	if doc.Author != "" {
		out.author = doc.Author
	}
	if len(doc.References) > 0 {
		out.references = doc.References
	}
	if len(doc.Tags) > 0 {
		out.tags = doc.Tags
	}
	if len(doc.FalsePositives) > 0 {
		out.falsePos = doc.FalsePositives
	}
	if doc.LogSource != (rawLogSource{}) {
		out.logSource = doc.LogSource
	}
	return out
}

// CompileFile loads every rule from a Sigma YAML file (possibly several
// `---`-separated documents). Documents that fail to parse are silently
// skipped (spec.md section 4.3, "Documents that fail to parse are
// silently skipped"); a file with no valid detections yields zero rules.
func CompileFile(r io.Reader) ([]rules.Rule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("sigma: %w", err)
	}

	// Documents are split on `---` lines and decoded one at a time, since a
	// yaml.Decoder repeats its first parse error on every later call.
	var docs []rawDoc
	for _, chunk := range strings.Split("\n"+string(data), "\n---\n") {
		var raw rawDoc
		if err := yaml.Unmarshal([]byte(chunk), &raw); err != nil || strings.TrimSpace(chunk) == "" {
			// A malformed or empty document is skipped, not fatal (section 4.3).
			continue
		}
		docs = append(docs, raw)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var out []rules.Rule

	base := docs[0].header()
	rest := docs
	if docs[0].Action == "global" {
		rest = docs[1:]
	} else {
		// No collection header; every document stands alone with its own
		// fields (base carries nothing to inherit).
		base = header{}
	}

	for _, doc := range rest {
		hdr := base.mergeOver(doc)
		rule, err := compileDocument(hdr, doc)
		if err != nil {
			// Per-document compile failures are not fatal to the file
			// (mirrors the YAML-parse-skip policy for malformed documents);
			// the caller's rule registry simply won't see this rule id.
			continue
		}
		if rule != nil {
			out = append(out, *rule)
		}
	}
	return out, nil
}

func compileDocument(hdr header, doc rawDoc) (*rules.Rule, error) {
	if hdr.title == "" {
		return nil, fmt.Errorf("sigma: missing required title")
	}

	detObj, ok := doc.Detection.Object()
	if !ok {
		return nil, fmt.Errorf("sigma: missing or invalid detection block")
	}
	condVal, ok := detObj.Get("condition")
	if !ok {
		return nil, fmt.Errorf("sigma: detection block missing condition")
	}
	condStr, ok := condVal.StringRaw()
	if !ok {
		return nil, fmt.Errorf("sigma: condition must be a string")
	}

	var names []string
	identifiers := map[string]CompiledIdentifier{}
	arena := tau.NewArena()
	for _, key := range detObj.Keys() {
		if key == "condition" {
			continue
		}
		raw, _ := detObj.Get(key)
		ci, err := CompileIdentifierBlock(arena, raw)
		if err != nil {
			return nil, fmt.Errorf("sigma: identifier %q: %w", key, err)
		}
		identifiers[key] = ci
		names = append(names, key)
	}

	root, idHandles, agg, err := CompileConditionExpr(arena, condStr, names, identifiers)
	if err != nil {
		return nil, err
	}

	det := tau.Detection{Arena: arena, Expression: root, Identifiers: idHandles}
	if err := det.Resolve(); err != nil {
		return nil, fmt.Errorf("sigma: %w", err)
	}
	optArena, optRoot := tau.Optimise(det.Arena, det.Expression)
	det.Arena, det.Expression = optArena, optRoot

	level, ok := normaliseLevel(hdr.level)
	if !ok {
		return nil, fmt.Errorf("sigma: unrecognised level %q", hdr.level)
	}

	rule := &rules.Rule{
		Kind:           rules.KindSigma,
		Name:           hdr.title,
		Level:          level,
		Status:         normaliseStatus(hdr.status),
		Authors:        splitAuthors(hdr.author),
		Aggregate:      agg,
		ID:             hdr.id,
		References:     hdr.references,
		Tags:           hdr.tags,
		FalsePositives: hdr.falsePos,
		LogSource: rules.LogSource{
			Category:   hdr.logSource.Category,
			Product:    hdr.logSource.Product,
			Service:    hdr.logSource.Service,
			Definition: hdr.logSource.Definition,
		},
		Filter: det,
	}
	return rule, nil
}
