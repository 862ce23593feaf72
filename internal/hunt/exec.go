package hunt

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/mapper"
	"github.com/bearer/tauhunt/internal/rules"
	"github.com/bearer/tauhunt/internal/tau"
)

// Window is the exclusive-at-both-ends time filter applied to every record
// (spec.md section 4.5, "Time filter"). Zero value on either bound means
// that bound is unset.
type Window struct {
	From, To time.Time
}

// within reports whether ts passes the window, with both bounds
// exclusive (spec.md section 8, "Time window `[from, to]` is exclusive
// at both ends").
func (w Window) within(ts time.Time) bool {
	if !w.From.IsZero() && !ts.After(w.From) {
		return false
	}
	if !w.To.IsZero() && !ts.Before(w.To) {
		return false
	}
	return true
}

// Options configures one Run.
type Options struct {
	Window Window
	// SkipErrors governs failure policy for timestamp-parse errors
	// (spec.md section 4.5, "If parse fails and skip_errors, skip hunt;
	// otherwise fail the run").
	SkipErrors bool
	// CacheWriter, if non-nil, turns on cache-to-disk mode: each emitted
	// Detections record's document is serialised through it instead of
	// carried inline (spec.md section 4.5 step 3).
	CacheWriter *CacheWriter
}

// aggKey identifies one running aggregation bucket: a hunt, the rule
// firing under it (equal to hunt.RuleID for a HuntRule, or the matched
// rule's id under a HuntGroup), and the stringified group-by tuple.
type aggKey struct {
	huntID int
	ruleID int
	key    string
}

type aggBucket struct {
	hits  []rules.Hit
	docs  []document.Document
	fired bool
}

// Run holds the mutable aggregation state for one execution of an
// Executor over a stream of records. A Run is safe for concurrent use
// from multiple worker goroutines (spec.md section 5's file-level
// fan-out model).
type Run struct {
	exec *Executor
	opts Options

	mu   sync.Mutex
	aggs map[aggKey]*aggBucket
}

// NewRun starts a fresh aggregation state over exec.
func NewRun(exec *Executor, opts Options) *Run {
	return &Run{exec: exec, opts: opts, aggs: make(map[aggKey]*aggBucket)}
}

// Process runs one record through every hunt targeting docKind, invoking
// emit for each resulting Detections record (spec.md section 4.5,
// "Per-record processing"). doc.ID is assigned here (step 1).
func (run *Run) Process(doc document.Document, emit func(rules.Detections)) error {
	doc.ID = uuid.NewString()

	var hits []rules.Hit
	for _, h := range run.exec.Hunts {
		if h.DocKind != doc.Kind {
			continue
		}
		md := mapper.Wrap(doc, h.Mapper)

		ts, ok, err := extractTimestamp(md, h.Timestamp)
		if err != nil {
			if run.opts.SkipErrors {
				continue
			}
			return fmt.Errorf("hunt: %w", err)
		}
		if !ok {
			if run.opts.SkipErrors {
				continue
			}
			return fmt.Errorf("hunt: hunt %d: timestamp field %q missing", h.ID, h.Timestamp)
		}
		if !run.opts.Window.within(ts) {
			continue
		}

		switch h.Kind {
		case rules.HuntGroup:
			run.processGroup(h, md, ts, doc, &hits, emit)
		case rules.HuntRule:
			if tau.Solve(h.Filter.Arena, h.Filter.Expression, md) {
				run.fire(h.ID, h.RuleID, h.Aggregate, md, doc, ts, &hits, emit)
			}
		}
	}

	if len(hits) == 0 {
		return nil
	}
	emit(run.buildDetections(hits, doc))
	return nil
}

func (run *Run) processGroup(h rules.Hunt, md mapper.View, ts time.Time, doc document.Document, hits *[]rules.Hit, emit func(rules.Detections)) {
	if !tau.Solve(h.GroupFilter.Arena, h.GroupFilter.Expression, md) {
		return
	}
	for ruleID, r := range run.exec.Rules {
		if r.Kind != h.RulesKind {
			continue
		}
		if _, excluded := h.Exclusions[ruleID]; excluded {
			continue
		}
		if pc, ok := h.Preconditions[ruleID]; ok {
			if !tau.Solve(pc.Arena, pc.Expression, md) {
				continue
			}
		}
		if !tau.Solve(r.Filter.Arena, r.Filter.Expression, md) {
			continue
		}
		run.fire(h.ID, ruleID, r.Aggregate, md, doc, ts, hits, emit)
	}
}

// fire records either a plain Hit or an aggregation-bucket contribution,
// firing the aggregate the first time its count pattern is satisfied
// (spec.md section 8 scenario 4: a bucket fires once, reporting the
// minimum timestamp). Once fired, a bucket ignores further records and
// never re-emits - this project's resolution of an aggregation re-trigger
// question the spec leaves unstated; see DESIGN.md.
func (run *Run) fire(huntID, ruleID int, agg *tau.Aggregate, md mapper.View, doc document.Document, ts time.Time, hits *[]rules.Hit, emit func(rules.Detections)) {
	if agg == nil {
		*hits = append(*hits, rules.Hit{HuntID: huntID, RuleID: ruleID, Timestamp: ts})
		return
	}

	key := aggKey{huntID: huntID, ruleID: ruleID, key: groupKey(md, agg.Fields)}

	run.mu.Lock()
	defer run.mu.Unlock()

	b, ok := run.aggs[key]
	if !ok {
		b = &aggBucket{}
		run.aggs[key] = b
	}
	if b.fired {
		return
	}
	b.hits = append(b.hits, rules.Hit{HuntID: huntID, RuleID: ruleID, Timestamp: ts})
	b.docs = append(b.docs, doc)

	if agg.Matches(len(b.hits)) {
		b.fired = true
		detHits := append([]rules.Hit{}, b.hits...)
		docs := append([]document.Document{}, b.docs...)
		emit(rules.Detections{Hits: detHits, Kind: rules.DetectionAggregate, Docs: docs})
	}
}

func groupKey(md mapper.View, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		v, ok := md.Find(f)
		if !ok {
			parts[i] = ""
			continue
		}
		parts[i] = v.Stringify()
	}
	return strings.Join(parts, "\x00")
}

func (run *Run) buildDetections(hits []rules.Hit, doc document.Document) rules.Detections {
	if run.opts.CacheWriter == nil {
		return rules.Detections{Hits: hits, Kind: rules.DetectionIndividual, Doc: &doc}
	}
	kind, path, offset, size, err := run.opts.CacheWriter.Write(doc)
	if err != nil {
		// Caching failed: fall back to an inline record rather than
		// drop the detection. The write error itself is not reported.
		return rules.Detections{Hits: hits, Kind: rules.DetectionIndividual, Doc: &doc}
	}
	return rules.Detections{
		Hits: hits, Kind: rules.DetectionCached,
		CacheKind: kind, CachePath: path, CacheOffset: offset, CacheSize: size,
	}
}

// extractTimestamp resolves field through md and parses it as ISO-8601.
// EVTX's microsecond-precision timestamps parse the same way: Go's
// RFC3339Nano layout accepts any fractional-second width.
func extractTimestamp(md mapper.View, field string) (time.Time, bool, error) {
	v, ok := md.Find(field)
	if !ok {
		return time.Time{}, false, nil
	}
	raw, ok := v.StringRaw()
	if !ok {
		raw = v.Stringify()
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid ISO-8601 timestamp %q: %w", raw, err)
	}
	return ts, true, nil
}

// SortDetections orders a batch of Detections deterministically by
// reported timestamp, then by the lowest hunt id among its hits (spec.md
// section 9, "Determinism under parallelism" - a driver merging
// per-worker buffers needs a stable total order).
func SortDetections(dets []rules.Detections) {
	sort.SliceStable(dets, func(i, j int) bool {
		ti, tj := dets[i].ReportedTimestamp(), dets[j].ReportedTimestamp()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return minHuntID(dets[i]) < minHuntID(dets[j])
	})
}

func minHuntID(d rules.Detections) int {
	min := -1
	for i, h := range d.Hits {
		if i == 0 || h.HuntID < min {
			min = h.HuntID
		}
	}
	return min
}
