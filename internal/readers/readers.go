// Package readers defines the Reader facade: the external collaborator
// interface that concrete binary/text parsers (EVTX, HVE, ESEDB, MFT,
// XML, JSON) implement to produce document.Document values. No concrete
// parser lives in this module (spec.md section 1, "Deliberately OUT of
// scope"); this package only fixes the contract and the
// extension-to-kind table.
package readers

import (
	"path/filepath"
	"strings"

	"github.com/bearer/tauhunt/internal/document"
)

// Reader streams Document values out of one artefact file.
type Reader interface {
	// Next returns the next document, or (zero, false) at end of stream.
	Next() (document.Document, bool)
	// Kind reports the document kind this reader produces.
	Kind() document.Kind
	// Close releases any held resources.
	Close() error
}

// Opener constructs a Reader for path. Concrete implementations (not
// provided by this module) register themselves against a DocumentKind via
// a host-specific factory; this interface is what the hunt executor and
// any presentation-layer CLI depend on.
type Opener interface {
	Open(path string, loadUnknown bool, skipErrors bool) (Reader, error)
}

// extensionKind is the fixed extension -> DocumentKind table from
// spec.md section 6.
var extensionKind = map[string]document.Kind{
	"evt":  document.KindEvtx,
	"evtx": document.KindEvtx,
	"json": document.KindJson,
	"xml":  document.KindXml,
	"hve":  document.KindHve,
	"mft":  document.KindMft,
	"bin":  document.KindMft,
	"dat":  document.KindEsedb,
	"edb":  document.KindEsedb,
}

// jsonlExtension is handled separately: Jsonl documents are exposed as
// Json to downstream code, and Jsonl is never probed under load_unknown.
const jsonlExtension = "jsonl"

// probeOrder is the fixed order unrecognised extensions are tried under
// load_unknown (spec.md section 6). Jsonl is deliberately excluded.
var probeOrder = []document.Kind{
	document.KindEvtx,
	document.KindMft,
	document.KindJson,
	document.KindXml,
	document.KindHve,
	document.KindEsedb,
}

// KindForExtension resolves path's extension to a DocumentKind. The
// second return is false for an unrecognised extension (other than
// .jsonl, which always resolves to Json).
func KindForExtension(path string) (document.Kind, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == jsonlExtension {
		return document.KindJson, true
	}
	if ext == "$mft" || strings.EqualFold(filepath.Base(path), "$MFT") {
		return document.KindMft, true
	}
	k, ok := extensionKind[ext]
	return k, ok
}

// ProbeOrder returns the fixed load_unknown probing order.
func ProbeOrder() []document.Kind {
	return append([]document.Kind{}, probeOrder...)
}

// IsJsonl reports whether path's extension is .jsonl (never probed under
// load_unknown, per spec.md section 6).
func IsJsonl(path string) bool {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".") == jsonlExtension
}
