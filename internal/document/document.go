// Package document defines the polymorphic Document record that readers
// produce and that the tau engine and mapper operate on.
package document

import "github.com/bearer/tauhunt/internal/value"

// Kind tags which artefact format a Document originated from.
type Kind int

const (
	KindUnknown Kind = iota
	KindEvtx
	KindHve
	KindJson
	KindXml
	KindMft
	KindEsedb
)

func (k Kind) String() string {
	switch k {
	case KindEvtx:
		return "evtx"
	case KindHve:
		return "hve"
	case KindJson:
		return "json"
	case KindXml:
		return "xml"
	case KindMft:
		return "mft"
	case KindEsedb:
		return "esedb"
	default:
		return "unknown"
	}
}

// evtxAliases implements the two fixed EVTX aliases from spec.md section 3:
// reads of the alias key fall back to the underlying XML-attribute field
// when the alias itself is absent.
var evtxAliases = map[string]string{
	"Event.System.Provider":    "Event.System.Provider_attributes.Name",
	"Event.System.TimeCreated": "Event.System.TimeCreated_attributes.SystemTime",
}

// Document is a polymorphic record: a kind tag plus a Value payload.
type Document struct {
	Kind    Kind
	Payload value.Value

	// ID is assigned by the hunt executor per spec.md section 4.5 step 1;
	// zero value means "unassigned".
	ID string
}

// New wraps a decoded Value as a Document of the given kind.
func New(kind Kind, payload value.Value) Document {
	return Document{Kind: kind, Payload: payload}
}

// Find traverses dotted-key segments through the payload, resolving the
// fixed EVTX aliases first when this is an EVTX document.
func (d Document) Find(dottedKey string) (value.Value, bool) {
	if d.Kind == KindEvtx {
		if target, ok := evtxAliases[dottedKey]; ok {
			if v, ok := value.Find(d.Payload, dottedKey); ok {
				return v, ok
			}
			return value.Find(d.Payload, target)
		}
	}
	return value.Find(d.Payload, dottedKey)
}
