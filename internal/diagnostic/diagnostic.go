// Package diagnostic implements the typed error taxonomy from spec.md
// section 7, plus a warning sink for skip_errors paths.
package diagnostic

import "fmt"

// Kind tags the error taxonomy.
type Kind int

const (
	KindInvalidFormat Kind = iota
	KindUnsupportedVersion
	KindKeyNotFound
	KindValueNotFound
	KindInvalidType
	KindParseError
	KindIo
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindInvalidFormat:
		return "invalid_format"
	case KindUnsupportedVersion:
		return "unsupported_version"
	case KindKeyNotFound:
		return "key_not_found"
	case KindValueNotFound:
		return "value_not_found"
	case KindInvalidType:
		return "invalid_type"
	case KindParseError:
		return "parse_error"
	case KindIo:
		return "io"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error carries a Kind plus context referencing the artefact path and the
// offending rule or record (spec.md section 7, "User-visible failure").
type Error struct {
	Kind   Kind
	Path   string
	Rule   string
	Record string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg += " path=" + e.Path
	}
	if e.Rule != "" {
		msg += " rule=" + e.Rule
	}
	if e.Record != "" {
		msg += " record=" + e.Record
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with the given kind and wrapped cause.
func New(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// WithRule returns a copy of e annotated with the offending rule name.
func (e *Error) WithRule(rule string) *Error {
	cp := *e
	cp.Rule = rule
	return &cp
}

// WithRecord returns a copy of e annotated with the offending record
// identifier.
func (e *Error) WithRecord(record string) *Error {
	cp := *e
	cp.Record = record
	return &cp
}

// Sink collects warnings produced by skip_errors code paths, so callers
// can surface them to the diagnostic stream without the core writing to
// a terminal directly (spec.md section 7, "The core never writes to a
// terminal directly").
type Sink interface {
	Warn(err error)
}

// NopSink discards every warning; used where the caller doesn't care.
type NopSink struct{}

func (NopSink) Warn(error) {}

// SliceSink accumulates warnings in memory, useful for tests and for
// batch callers that want to inspect everything after a run.
type SliceSink struct {
	Warnings []error
}

func (s *SliceSink) Warn(err error) {
	s.Warnings = append(s.Warnings, err)
}

var _ fmt.Stringer = Kind(0)
