// Package rules holds the common compiled-rule shapes shared by the
// Chainsaw and Sigma compilers and consumed by the hunt executor
// (spec.md section 3: Rule, Detection, Aggregate, Mapping, Hunt,
// Detections).
package rules

import (
	"time"

	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/mapper"
	"github.com/bearer/tauhunt/internal/tau"
)

// Level is the rule severity (spec.md section 3).
type Level int

const (
	LevelInfo Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelCritical:
		return "critical"
	case LevelHigh:
		return "high"
	case LevelMedium:
		return "medium"
	case LevelLow:
		return "low"
	default:
		return "info"
	}
}

// Status is the rule maturity tag.
type Status int

const (
	StatusExperimental Status = iota
	StatusStable
)

func (s Status) String() string {
	if s == StatusStable {
		return "stable"
	}
	return "experimental"
}

// Kind tags which rule family a Rule belongs to.
type Kind int

const (
	KindChainsaw Kind = iota
	KindSigma
)

// LogSource is Sigma's `logsource` header block.
type LogSource struct {
	Category   string
	Product    string
	Service    string
	Definition string
}

// Rule is the compiled sum type over Chainsaw and Sigma rules (spec.md
// section 3). Fields only meaningful for one variant are zero-valued on
// the other.
type Rule struct {
	Kind    Kind
	Name    string
	Level   Level
	Status  Status
	Authors []string

	Aggregate *tau.Aggregate

	// Filter is the compiled expression both rule families carry.
	Filter tau.Detection

	// Chainsaw-only.
	Group     string
	Timestamp string
	DocKind   document.Kind
	Fields    []mapper.Field

	// Sigma-only.
	ID             string
	LogSource      LogSource
	References     []string
	Tags           []string
	FalsePositives []string
}

// Precondition gates a Group hunt's per-rule dispatch: it applies only to
// Sigma rules whose header matches every key/value in For (spec.md
// section 4.5, "Build").
type Precondition struct {
	For    map[string]string
	Filter tau.Detection
}

// Group is one mapping entry: a named filter plus the fields it exposes
// to a rule evaluated under it (spec.md section 3, "Mapping").
type Group struct {
	ID        string
	Name      string
	Timestamp string
	Filter    tau.Detection
	Fields    []mapper.Field
}

// Mapping is the hunt-group schema paired with Sigma rules of matching
// DocKind (spec.md section 3, invariant: Chainsaw rules never carry
// mappings).
type Mapping struct {
	Path          string
	DocKind       document.Kind
	Rules         Kind
	Exclusions    map[string]struct{}
	Preconditions []Precondition
	Groups        []Group
}

// HuntKind tags Hunt's sum variant.
type HuntKind int

const (
	HuntRule HuntKind = iota
	HuntGroup
)

// Hunt is one compiled rule-plus-mapper unit (spec.md section 3).
type Hunt struct {
	ID        int
	GroupName string
	DocKind   document.Kind
	Timestamp string
	Mapper    *mapper.Spec
	Kind      HuntKind

	// HuntRule variant.
	RuleID    int
	Filter    tau.Detection
	Aggregate *tau.Aggregate

	// HuntGroup variant.
	GroupFilter   tau.Detection
	RulesKind     Kind
	Exclusions    map[int]struct{}
	Preconditions map[int]tau.Detection
}

// Hit is one rule match against one document (spec.md section 3,
// "Detections (output record)").
type Hit struct {
	HuntID    int
	RuleID    int
	Timestamp time.Time
}

// DetectionsKind tags the Detections payload variant.
type DetectionsKind int

const (
	DetectionIndividual DetectionsKind = iota
	DetectionAggregate
	DetectionCached
)

// Detections is the output record emitted per matching document (or
// group, for aggregates), per spec.md section 3 and section 6's
// "Detection record schema".
type Detections struct {
	Hits []Hit
	Kind DetectionsKind

	// DetectionIndividual variant.
	Doc *document.Document

	// DetectionAggregate variant.
	Docs []document.Document

	// DetectionCached variant: the document payload was serialised to a
	// side file instead of carried inline (spec.md section 4.5).
	CacheKind   document.Kind
	CachePath   string
	CacheOffset int64
	CacheSize   int64
}

// ReportedTimestamp returns the detection's reported timestamp: for aggregates
// this is the minimum timestamp among Hits (spec.md section 3, "For
// aggregates, the reported timestamp is the minimum timestamp in the
// group").
func (d Detections) ReportedTimestamp() time.Time {
	var min time.Time
	for i, h := range d.Hits {
		if i == 0 || h.Timestamp.Before(min) {
			min = h.Timestamp
		}
	}
	return min
}
