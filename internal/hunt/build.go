// Package hunt implements the hunt executor (spec.md section 4.5): pairs
// compiled rules with mapper-backed document views, dispatches each
// record against every applicable hunt, and emits Detections records.
package hunt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bearer/tauhunt/internal/diagnostic"
	"github.com/bearer/tauhunt/internal/mapper"
	"github.com/bearer/tauhunt/internal/rules"
	"github.com/bearer/tauhunt/internal/tau"
)

// Executor holds the compiled hunt set built from a rule registry and a
// mapping set (spec.md section 4.5, "Build").
type Executor struct {
	// Rules is sorted by name; a rule's index here is its stable rule id
	// (spec.md section 4.5, "sort rules by name before assigning
	// rule-ids for deterministic hunt order").
	Rules []rules.Rule
	// Mappings is sorted by path (spec.md section 4.5, "sort mappings by
	// path").
	Mappings []rules.Mapping
	Hunts    []rules.Hunt
}

// Build compiles a rule registry and mapping set into an Executor. It is a
// hard error at build time for a mapping to name rules.KindChainsaw as its
// Rules kind (spec.md section 3, "Chainsaw rules never carry mappings";
// section 7 names this under the Configuration error kind).
func Build(ruleSet []rules.Rule, mappingSet []rules.Mapping) (*Executor, error) {
	for _, m := range mappingSet {
		if m.Rules == rules.KindChainsaw {
			return nil, diagnostic.New(diagnostic.KindConfiguration, m.Path,
				fmt.Errorf("mapping names Chainsaw as its rules kind, but a Chainsaw rule paired with any mapping is a hard error"))
		}
	}

	sortedRules := append([]rules.Rule{}, ruleSet...)
	sort.SliceStable(sortedRules, func(i, j int) bool {
		return sortedRules[i].Name < sortedRules[j].Name
	})

	nameToID := make(map[string]int, len(sortedRules))
	for i, r := range sortedRules {
		nameToID[r.Name] = i
	}

	sortedMappings := append([]rules.Mapping{}, mappingSet...)
	sort.SliceStable(sortedMappings, func(i, j int) bool {
		return sortedMappings[i].Path < sortedMappings[j].Path
	})

	var hunts []rules.Hunt
	nextID := 0

	for _, m := range sortedMappings {
		exclusions := make(map[int]struct{}, len(m.Exclusions))
		for name := range m.Exclusions {
			if id, ok := nameToID[name]; ok {
				exclusions[id] = struct{}{}
			}
		}

		preconditions := make(map[int]tau.Detection)
		for _, pc := range m.Preconditions {
			for id, r := range sortedRules {
				if r.Kind != rules.KindSigma {
					continue
				}
				if matchesPrecondition(r, pc.For) {
					preconditions[id] = pc.Filter
				}
			}
		}

		for _, g := range m.Groups {
			hunts = append(hunts, rules.Hunt{
				ID:            nextID,
				GroupName:     g.Name,
				DocKind:       m.DocKind,
				Timestamp:     g.Timestamp,
				Mapper:        mapper.Compile(g.Fields),
				Kind:          rules.HuntGroup,
				GroupFilter:   g.Filter,
				RulesKind:     m.Rules,
				Exclusions:    exclusions,
				Preconditions: preconditions,
			})
			nextID++
		}
	}

	for id, r := range sortedRules {
		if r.Kind != rules.KindChainsaw {
			continue
		}
		hunts = append(hunts, rules.Hunt{
			ID:        nextID,
			DocKind:   r.DocKind,
			Timestamp: r.Timestamp,
			Mapper:    mapper.Compile(r.Fields),
			Kind:      rules.HuntRule,
			RuleID:    id,
			Filter:    r.Filter,
			Aggregate: r.Aggregate,
		})
		nextID++
	}

	return &Executor{Rules: sortedRules, Mappings: sortedMappings, Hunts: hunts}, nil
}

// matchesPrecondition reports whether every key/value pair in for_ equals
// the corresponding header field on r (spec.md section 4.5, "preconditions
// are matched by trying every precondition's for map against each Sigma
// rule's header").
func matchesPrecondition(r rules.Rule, for_ map[string]string) bool {
	for key, want := range for_ {
		got, ok := ruleHeaderField(r, key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func ruleHeaderField(r rules.Rule, key string) (string, bool) {
	switch strings.ToLower(key) {
	case "category":
		return r.LogSource.Category, true
	case "product":
		return r.LogSource.Product, true
	case "service":
		return r.LogSource.Service, true
	case "definition":
		return r.LogSource.Definition, true
	case "status":
		return r.Status.String(), true
	case "level":
		return r.Level.String(), true
	case "id":
		return r.ID, true
	default:
		return "", false
	}
}
