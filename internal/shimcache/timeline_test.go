package shimcache

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustTime(s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return ts
}

// TestBuildTimelineScenario3 mirrors spec.md section 8 scenario 3
// verbatim: three entries newest-first with last_modified T0, T1, T2, a
// shimcache-last-update TL, and a regex matching only entry 1's path.
func TestBuildTimelineScenario3(t *testing.T) {
	tl := mustTime("2024-01-01T12:00:00Z")
	t0 := mustTime("2024-01-01T11:00:00Z")
	t1 := mustTime("2024-01-01T10:00:00Z")
	t2 := mustTime("2024-01-01T09:00:00Z")

	entries := []Entry{
		{Type: EntryFile, File: FileEntry{Path: `C:\other.exe`}, LastModified: t0, HasLastModified: true},
		{Type: EntryFile, File: FileEntry{Path: `C:\Windows\match.exe`}, LastModified: t1, HasLastModified: true},
		{Type: EntryFile, File: FileEntry{Path: `C:\another.exe`}, LastModified: t2, HasLastModified: true},
	}

	opts := Options{PatternPaths: []*regexp.Regexp{regexp.MustCompile(`match\.exe$`)}}
	timeline := BuildTimeline(entries, tl, opts)

	require := assert.New(t)
	require.Len(timeline, 4)

	require.Equal(TimestampExact, timeline[0].Timestamp.Kind)
	require.Equal(ExactShimcacheLastUpdate, timeline[0].Timestamp.ExactKind)
	require.True(timeline[0].Timestamp.Ts.Equal(tl))

	require.Equal(TimestampRange, timeline[1].Timestamp.Kind)
	require.True(timeline[1].Timestamp.From.Equal(t1))
	require.True(timeline[1].Timestamp.To.Equal(tl))

	require.Equal(TimestampExact, timeline[2].Timestamp.Kind)
	require.Equal(ExactPatternMatch, timeline[2].Timestamp.ExactKind)
	require.True(timeline[2].Timestamp.Ts.Equal(t1))

	require.Equal(TimestampRangeEnd, timeline[3].Timestamp.Kind)
	require.True(timeline[3].Timestamp.Ts.Equal(t1))
}

// TestPatternMatchNeverOverwritten covers spec.md section 8's second
// shimcache invariant directly: once an entity is PatternMatch, the
// NearTSMatch pass must not touch it even when an amcache timestamp
// would otherwise qualify.
func TestPatternMatchNeverOverwritten(t *testing.T) {
	tl := mustTime("2024-01-01T12:00:00Z")
	matchTs := mustTime("2024-01-01T10:00:00Z")
	amcacheTs := matchTs.Add(1 * time.Second)

	entries := []Entry{
		{Type: EntryFile, File: FileEntry{Path: `C:\match.exe`}, LastModified: matchTs, HasLastModified: true},
	}
	idx := AmcacheIndex{Files: map[string]AmcacheFileRecord{
		`c:\match.exe`: {Path: `C:\match.exe`, KeyModified: amcacheTs},
	}}

	opts := Options{
		PatternPaths:       []*regexp.Regexp{regexp.MustCompile(`match\.exe$`)},
		Amcache:            &idx,
		NearTSPairMatching: true,
	}
	timeline := BuildTimeline(entries, tl, opts)

	require := assert.New(t)
	require.Equal(TimestampExact, timeline[1].Timestamp.Kind)
	require.Equal(ExactPatternMatch, timeline[1].Timestamp.ExactKind)
	require.True(timeline[1].Timestamp.Ts.Equal(matchTs))
}

func TestNearTSPassPromotesUnmatchedEntries(t *testing.T) {
	tl := mustTime("2024-01-01T12:00:00Z")
	shimTs := mustTime("2024-01-01T10:00:00Z")
	amcacheTs := shimTs.Add(30 * time.Second)

	entries := []Entry{
		{Type: EntryFile, File: FileEntry{Path: `C:\app.exe`}, LastModified: shimTs, HasLastModified: true},
	}
	idx := AmcacheIndex{Files: map[string]AmcacheFileRecord{
		`c:\app.exe`: {Path: `C:\app.exe`, KeyModified: amcacheTs},
	}}

	timeline := BuildTimeline(entries, tl, Options{Amcache: &idx, NearTSPairMatching: true})

	assert.Equal(t, TimestampExact, timeline[1].Timestamp.Kind)
	assert.Equal(t, ExactNearTSMatch, timeline[1].Timestamp.ExactKind)
	assert.True(t, timeline[1].Timestamp.Ts.Equal(amcacheTs))
}

func TestNoInvertedRangeAfterAmcachePromotion(t *testing.T) {
	tl := mustTime("2024-01-01T12:00:00Z")
	t0 := mustTime("2024-01-01T09:00:00Z")
	t1 := mustTime("2024-01-01T08:00:00Z")

	entries := []Entry{
		{Type: EntryFile, File: FileEntry{Path: `C:\a.exe`}, LastModified: t0, HasLastModified: true},
		{Type: EntryFile, File: FileEntry{Path: `C:\b.exe`}, LastModified: t1, HasLastModified: true},
	}
	// amcache timestamp for b.exe is newer than tl; once b is promoted to
	// Exact (5h from t1, inside the 6h window), the tl<->b range around
	// a.exe would invert without the swap.
	idx := AmcacheIndex{Files: map[string]AmcacheFileRecord{
		`c:\b.exe`: {Path: `C:\b.exe`, KeyModified: tl.Add(1 * time.Hour)},
	}}

	timeline := BuildTimeline(entries, tl, Options{
		Amcache:            &idx,
		NearTSPairMatching: true,
		NearTSWindow:       6 * time.Hour,
	})

	assert.Equal(t, TimestampRange, timeline[1].Timestamp.Kind)
	for _, e := range timeline {
		if e.Timestamp.Kind == TimestampRange {
			assert.False(t, e.Timestamp.From.After(e.Timestamp.To), "range must not invert: from=%v to=%v", e.Timestamp.From, e.Timestamp.To)
		}
	}
}
