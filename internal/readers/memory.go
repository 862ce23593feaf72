package readers

import "github.com/bearer/tauhunt/internal/document"

// MemoryReader is an in-memory Reader test double used by internal/hunt
// and internal/cli tests to exercise the full pipeline without a
// real format parser, per spec.md section 6's "named interfaces only"
// scoping rule.
type MemoryReader struct {
	kind docs
	pos  int
	list []document.Document
}

type docs = document.Kind

// NewMemoryReader wraps a pre-built slice of documents as a Reader.
func NewMemoryReader(kind document.Kind, docs []document.Document) *MemoryReader {
	return &MemoryReader{kind: kind, list: docs}
}

func (m *MemoryReader) Next() (document.Document, bool) {
	if m.pos >= len(m.list) {
		return document.Document{}, false
	}
	d := m.list[m.pos]
	m.pos++
	return d, true
}

func (m *MemoryReader) Kind() document.Kind { return m.kind }

func (m *MemoryReader) Close() error { return nil }
