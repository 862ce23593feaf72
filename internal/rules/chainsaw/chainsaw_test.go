package chainsaw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/rules"
	"github.com/bearer/tauhunt/internal/tau"
	"github.com/bearer/tauhunt/internal/value"
)

func TestCompileScalarKVFilter(t *testing.T) {
	src := `
title: Suspicious logon
kind: evtx
level: high
timestamp: Event.System.TimeCreated
filter: 'EventID: 4688 and CommandLine|contains: "-enc"'
`
	rule, err := Compile([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, rules.KindChainsaw, rule.Kind)
	assert.Equal(t, document.KindEvtx, rule.DocKind)
	assert.Equal(t, rules.LevelHigh, rule.Level)

	match := value.NewObject()
	match.Set("EventID", value.Int64(4688))
	match.Set("CommandLine", value.String("powershell -enc AAAA"))
	doc := document.New(document.KindJson, value.FromObject(match))
	assert.True(t, tau.Solve(rule.Filter.Arena, rule.Filter.Expression, doc))

	nomatch := value.NewObject()
	nomatch.Set("EventID", value.Int64(4688))
	nomatch.Set("CommandLine", value.String("notepad"))
	assert.False(t, tau.Solve(rule.Filter.Arena, rule.Filter.Expression, document.New(document.KindJson, value.FromObject(nomatch))))
}

func TestCompileMappingFilterReusesSigmaConventions(t *testing.T) {
	src := `
title: Two selections
kind: json
filter:
  sel:
    A: "1"
  other:
    B: "2"
  condition: all of them
`
	rule, err := Compile([]byte(src))
	require.NoError(t, err)

	both := value.NewObject()
	both.Set("A", value.String("1"))
	both.Set("B", value.String("2"))
	assert.True(t, tau.Solve(rule.Filter.Arena, rule.Filter.Expression, document.New(document.KindJson, value.FromObject(both))))

	onlyA := value.NewObject()
	onlyA.Set("A", value.String("1"))
	assert.False(t, tau.Solve(rule.Filter.Arena, rule.Filter.Expression, document.New(document.KindJson, value.FromObject(onlyA))))
}

func TestCompileAggregateField(t *testing.T) {
	src := `
title: Bruteforce
kind: evtx
filter: 'EventID: 4625'
aggregate:
  count: ">= 3"
  fields:
    - User
    - Host
`
	rule, err := Compile([]byte(src))
	require.NoError(t, err)
	require.NotNil(t, rule.Aggregate)
	assert.Equal(t, tau.AggCountGe, rule.Aggregate.Count)
	assert.Equal(t, int64(3), rule.Aggregate.N)
	assert.Equal(t, []string{"User", "Host"}, rule.Aggregate.Fields)
}

func TestCompileRejectsUnknownDocKind(t *testing.T) {
	src := `
title: Bad kind
kind: pcap
filter: 'A: "1"'
`
	_, err := Compile([]byte(src))
	assert.Error(t, err)
}

func TestCompileRequiresTitleOrName(t *testing.T) {
	src := `
kind: json
filter: 'A: "1"'
`
	_, err := Compile([]byte(src))
	assert.Error(t, err)
}
