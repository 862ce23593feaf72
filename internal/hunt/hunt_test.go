package hunt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearer/tauhunt/internal/diagnostic"
	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/rules"
	"github.com/bearer/tauhunt/internal/rules/chainsaw"
	"github.com/bearer/tauhunt/internal/rules/sigma"
	"github.com/bearer/tauhunt/internal/tau"
	"github.com/bearer/tauhunt/internal/value"
)

func mustCompileChainsaw(t *testing.T, src string) rules.Rule {
	t.Helper()
	r, err := chainsaw.Compile([]byte(src))
	require.NoError(t, err)
	return *r
}

func docWithFields(kind document.Kind, fields map[string]value.Value) document.Document {
	obj := value.NewObject()
	for k, v := range fields {
		obj.Set(k, v)
	}
	return document.New(kind, value.FromObject(obj))
}

// TestAggregationFiresOnceAtThreshold mirrors spec.md section 8 scenario
// 4: three matching documents for "alice" fire once, reporting the
// minimum timestamp; two for "bob" never fire.
func TestAggregationFiresOnceAtThreshold(t *testing.T) {
	rule := mustCompileChainsaw(t, `
title: Bruteforce
kind: json
timestamp: Timestamp
filter: 'EventID: 4625'
aggregate:
  count: ">=3"
  fields:
    - User
`)
	exec, err := Build([]rules.Rule{rule}, nil)
	require.NoError(t, err)
	run := NewRun(exec, Options{})

	var emitted []rules.Detections
	emit := func(d rules.Detections) { emitted = append(emitted, d) }

	times := []string{"2024-01-01T10:00:00Z", "2024-01-01T10:05:00Z", "2024-01-01T10:10:00Z"}
	for _, ts := range times {
		doc := docWithFields(document.KindJson, map[string]value.Value{
			"EventID":   value.Int64(4625),
			"User":      value.String("alice"),
			"Timestamp": value.String(ts),
		})
		require.NoError(t, run.Process(doc, emit))
	}
	require.Len(t, emitted, 1)
	assert.Equal(t, rules.DetectionAggregate, emitted[0].Kind)
	reported := emitted[0].ReportedTimestamp()
	want, _ := time.Parse(time.RFC3339, "2024-01-01T10:00:00Z")
	assert.True(t, reported.Equal(want))

	emitted = nil
	for _, ts := range []string{"2024-01-01T11:00:00Z", "2024-01-01T11:05:00Z"} {
		doc := docWithFields(document.KindJson, map[string]value.Value{
			"EventID":   value.Int64(4625),
			"User":      value.String("bob"),
			"Timestamp": value.String(ts),
		})
		require.NoError(t, run.Process(doc, emit))
	}
	assert.Empty(t, emitted)
}

// TestTimeWindowBoundaries mirrors spec.md section 8 scenario 5: both
// window ends are exclusive.
func TestTimeWindowBoundaries(t *testing.T) {
	rule := mustCompileChainsaw(t, `
title: Always
kind: json
timestamp: Timestamp
filter: 'EventID: 1'
`)
	from, _ := time.Parse(time.RFC3339, "2024-01-01T00:00:00Z")
	to, _ := time.Parse(time.RFC3339, "2024-01-02T00:00:00Z")
	exec, err := Build([]rules.Rule{rule}, nil)
	require.NoError(t, err)
	run := NewRun(exec, Options{Window: Window{From: from, To: to}})

	cases := []struct {
		ts   string
		want bool
	}{
		{"2024-01-01T00:00:00.000000Z", false},
		{"2024-01-01T00:00:00.000001Z", true},
		{"2024-01-02T00:00:00Z", false},
	}
	for _, c := range cases {
		var emitted []rules.Detections
		doc := docWithFields(document.KindJson, map[string]value.Value{
			"EventID":   value.Int64(1),
			"Timestamp": value.String(c.ts),
		})
		require.NoError(t, run.Process(doc, func(d rules.Detections) { emitted = append(emitted, d) }))
		assert.Equal(t, c.want, len(emitted) == 1, "ts=%s", c.ts)
	}
}

func alwaysTrueFilter() tau.Detection {
	a := tau.NewArena()
	return tau.Detection{Arena: a, Expression: a.BoolLit(true)}
}

// TestGroupHuntExclusionsAndPreconditions builds a Sigma rule registry
// under one mapping group, verifying exclusions drop a named rule and
// preconditions gate on a rule's logsource header (spec.md section 4.5,
// "Build").
func TestGroupHuntExclusionsAndPreconditions(t *testing.T) {
	src := `
title: Included Rule
logsource:
  category: process_creation
detection:
  sel:
    X: "1"
  condition: sel
---
title: Excluded Rule
logsource:
  category: process_creation
detection:
  sel:
    X: "1"
  condition: sel
---
title: Wrong Category
logsource:
  category: network
detection:
  sel:
    X: "1"
  condition: sel
`
	rs, err := sigma.CompileFile(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, rs, 3)

	mapping := rules.Mapping{
		Path:       "evtx.yaml",
		DocKind:    document.KindJson,
		Rules:      rules.KindSigma,
		Exclusions: map[string]struct{}{"Excluded Rule": {}},
		Preconditions: []rules.Precondition{
			{For: map[string]string{"category": "process_creation"}, Filter: alwaysTrueFilter()},
		},
		Groups: []rules.Group{
			{Name: "selection", Timestamp: "Timestamp", Filter: alwaysTrueFilter()},
		},
	}

	exec, err := Build(rs, []rules.Mapping{mapping})
	require.NoError(t, err)
	run := NewRun(exec, Options{})

	doc := docWithFields(document.KindJson, map[string]value.Value{
		"X":         value.String("1"),
		"Timestamp": value.String("2024-01-01T00:00:00Z"),
	})

	var emitted []rules.Detections
	require.NoError(t, run.Process(doc, func(d rules.Detections) { emitted = append(emitted, d) }))
	require.Len(t, emitted, 1)

	fired := map[int]bool{}
	for _, h := range emitted[0].Hits {
		fired[h.RuleID] = true
	}
	var firedNames []string
	for id := range fired {
		firedNames = append(firedNames, exec.Rules[id].Name)
	}
	// "Excluded Rule" is dropped by the mapping's exclusions set.
	// "Wrong Category" has no precondition attached to it (its logsource
	// didn't match the precondition's `for`), so it is ungated and still
	// fires - a precondition only gates the rules it actually matched.
	assert.ElementsMatch(t, []string{"Included Rule", "Wrong Category"}, firedNames)
}

// TestBuildRejectsChainsawMapping mirrors spec.md section 3's invariant
// "Chainsaw rules never carry mappings": a mapping naming rules.KindChainsaw
// is a hard Configuration error at Build, not a silently ignored mapping.
func TestBuildRejectsChainsawMapping(t *testing.T) {
	mapping := rules.Mapping{
		Path:  "chainsaw.yaml",
		Rules: rules.KindChainsaw,
	}
	exec, err := Build(nil, []rules.Mapping{mapping})
	assert.Nil(t, exec)
	require.Error(t, err)

	var diagErr *diagnostic.Error
	require.ErrorAs(t, err, &diagErr)
	assert.Equal(t, diagnostic.KindConfiguration, diagErr.Kind)
	assert.Equal(t, "chainsaw.yaml", diagErr.Path)
}

// TestEmptyRuleSetYieldsNoDetections mirrors spec.md section 8's boundary
// behaviour: empty rule set => zero detections.
func TestEmptyRuleSetYieldsNoDetections(t *testing.T) {
	exec, err := Build(nil, nil)
	require.NoError(t, err)
	run := NewRun(exec, Options{})
	doc := docWithFields(document.KindJson, map[string]value.Value{"A": value.String("1")})

	var emitted []rules.Detections
	require.NoError(t, run.Process(doc, func(d rules.Detections) { emitted = append(emitted, d) }))
	assert.Empty(t, emitted)
}
