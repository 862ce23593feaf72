package sigma

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/tau"
	"github.com/bearer/tauhunt/internal/value"
)

func TestContainsLowering(t *testing.T) {
	src := `
title: Suspicious PowerShell
level: high
logsource:
  category: process_creation
detection:
  sel:
    CommandLine|contains:
      - " -Nop "
  condition: sel
`
	rs, err := CompileFile(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, rs, 1)
	rule := rs[0]

	obj1 := value.NewObject()
	obj1.Set("CommandLine", value.String("powershell -NOP -enc"))
	match := document.New(document.KindJson, value.FromObject(obj1))
	assert.True(t, tau.Solve(rule.Filter.Arena, rule.Filter.Expression, match))

	obj2 := value.NewObject()
	obj2.Set("CommandLine", value.String("notepad"))
	nomatch := document.New(document.KindJson, value.FromObject(obj2))
	assert.False(t, tau.Solve(rule.Filter.Arena, rule.Filter.Expression, nomatch))
}

func TestAllOfThem(t *testing.T) {
	src := `
title: Two selections
level: medium
detection:
  A:
    X: "1"
  B:
    Y: "2"
  condition: all of them
`
	rs, err := CompileFile(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, rs, 1)
	rule := rs[0]

	both := value.NewObject()
	both.Set("X", value.String("1"))
	both.Set("Y", value.String("2"))
	assert.True(t, tau.Solve(rule.Filter.Arena, rule.Filter.Expression, document.New(document.KindJson, value.FromObject(both))))

	onlyX := value.NewObject()
	onlyX.Set("X", value.String("1"))
	assert.False(t, tau.Solve(rule.Filter.Arena, rule.Filter.Expression, document.New(document.KindJson, value.FromObject(onlyX))))
}

func TestMalformedDocumentSkipped(t *testing.T) {
	src := "title: [unterminated\n---\ntitle: Valid\ndetection:\n  sel:\n    A: \"1\"\n  condition: sel\n"
	rs, err := CompileFile(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "Valid", rs[0].Name)
}

func TestAggregationDetached(t *testing.T) {
	src := `
title: Bruteforce
level: low
detection:
  sel:
    EventID: 4625
  condition: sel | count(User) by Host >= 3
`
	rs, err := CompileFile(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, rs, 1)
	require.NotNil(t, rs[0].Aggregate)
	assert.Equal(t, int64(3), rs[0].Aggregate.N)
	assert.Equal(t, []string{"User", "Host"}, rs[0].Aggregate.Fields)
}

func TestUnsupportedAggregationDropsOnlyThatDocument(t *testing.T) {
	src := `
title: Bad agg
detection:
  sel:
    A: "1"
  condition: sel | avg(x) > 3
`
	rs, err := CompileFile(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, rs, 0)
}

func TestLevelAndStatusNormalisation(t *testing.T) {
	lvl, ok := normaliseLevel("HIGH")
	require.True(t, ok)
	assert.Equal(t, 3, int(lvl))

	assert.Equal(t, 1, int(normaliseStatus("stable")))
	assert.Equal(t, 0, int(normaliseStatus("test")))
}

func TestSplitAuthors(t *testing.T) {
	assert.Equal(t, []string{"unknown"}, splitAuthors(""))
	assert.Equal(t, []string{"alice", "bob"}, splitAuthors("alice, bob"))
}
