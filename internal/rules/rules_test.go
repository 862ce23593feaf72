package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReportedTimestampIsMinimum(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(5 * time.Minute)
	t2 := t0.Add(10 * time.Minute)

	d := Detections{
		Kind: DetectionAggregate,
		Hits: []Hit{
			{HuntID: 1, RuleID: 1, Timestamp: t1},
			{HuntID: 1, RuleID: 1, Timestamp: t0},
			{HuntID: 1, RuleID: 1, Timestamp: t2},
		},
	}

	assert.Equal(t, t0, d.ReportedTimestamp())
}

func TestLevelAndStatusStrings(t *testing.T) {
	assert.Equal(t, "critical", LevelCritical.String())
	assert.Equal(t, "info", Level(99).String())
	assert.Equal(t, "stable", StatusStable.String())
	assert.Equal(t, "experimental", StatusExperimental.String())
}
