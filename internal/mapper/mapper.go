// Package mapper implements the field-remapping layer between a Document
// and the tau engine (spec.md section 4.4).
package mapper

import (
	"encoding/json"
	"strings"

	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/value"
)

// CastMod is the mapper's own cast tag, a separate type from tau.CastMod;
// no code converts between the two.
type CastMod int

const (
	CastNone CastMod = iota
	CastInt
	CastStr
	CastFlt
)

// ContainerFormat tags how a container field should be parsed to reach
// a nested logical field.
type ContainerFormat int

const (
	ContainerNone ContainerFormat = iota
	ContainerJson
	ContainerKV
)

// KVParams configures Container's KV extraction mode.
type KVParams struct {
	Delimiter string // splits the container string into items
	Separator string // splits each item into key/value
	Trim      bool
}

// Container describes extracting a logical field from inside another
// field's string payload (spec.md section 3, "Field (mapper entry)").
type Container struct {
	Field    string
	Format   ContainerFormat
	KVParams KVParams
}

// Field is one mapper entry. Cast and Container are mutually exclusive
// (spec.md invariant).
type Field struct {
	Name      string
	From      string
	To        string
	Visible   bool
	Cast      CastMod
	Container *Container
}

// Mode tags which of the three mapper strategies applies, selected once
// at build time from the Field set (spec.md section 4.4 table).
type Mode int

const (
	ModeNone Mode = iota
	ModeFast
	ModeFull
)

// Spec is a compiled field mapper: a closed-over set of Fields plus the
// Mode they imply.
type Spec struct {
	Fields []Field
	mode   Mode
	byTo   map[string]*Field // To -> Field, for Fast/Full lookup
}

// Compile selects None/Fast/Full per the table in spec.md section 4.4.
func Compile(fields []Field) *Spec {
	mode := ModeNone
	byTo := make(map[string]*Field, len(fields))
	for i := range fields {
		f := &fields[i]
		if f.To != "" {
			byTo[f.To] = f
		}
		if f.Cast != CastNone || f.Container != nil {
			mode = ModeFull
		} else if f.From != f.To && mode == ModeNone {
			mode = ModeFast
		}
	}
	return &Spec{Fields: fields, mode: mode, byTo: byTo}
}

// Mode reports the selected mapper strategy.
func (s *Spec) Mode() Mode {
	if s == nil {
		return ModeNone
	}
	return s.mode
}

// View wraps a Document behind the mapper, implementing tau.Doc.
type View struct {
	doc  document.Document
	spec *Spec
}

// Wrap builds a mapped view of doc using spec. A nil spec behaves as
// ModeNone (delegates verbatim).
func Wrap(doc document.Document, spec *Spec) View {
	return View{doc: doc, spec: spec}
}

// Find resolves key through the mapper's active mode.
func (v View) Find(key string) (value.Value, bool) {
	if v.spec == nil || v.spec.Mode() == ModeNone {
		return v.doc.Find(key)
	}

	f, ok := v.spec.byTo[key]
	if !ok {
		// No rule for this key: Fast mode still falls back to verbatim
		// lookup for fields the mapper doesn't rename (spec.md's Fast row
		// only promises renamed fields route through the table).
		return v.doc.Find(key)
	}

	if v.spec.Mode() == ModeFast {
		return v.doc.Find(f.From)
	}

	// ModeFull: container extraction and/or cast.
	raw, ok := v.resolveFull(f)
	if !ok {
		return value.Value{}, false
	}
	return applyCast(raw, f.Cast), true
}

func (v View) resolveFull(f *Field) (value.Value, bool) {
	if f.Container == nil {
		return v.doc.Find(f.From)
	}

	containerVal, ok := v.doc.Find(f.Container.Field)
	if !ok {
		return value.Value{}, false
	}
	raw, ok := containerVal.StringRaw()
	if !ok {
		raw = containerVal.Stringify()
	}

	switch f.Container.Format {
	case ContainerJson:
		var decoded value.Value
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return value.Value{}, false
		}
		return value.Find(decoded, f.To)
	case ContainerKV:
		return findKV(raw, f.Container.KVParams, f.To)
	default:
		return value.Value{}, false
	}
}

func findKV(raw string, params KVParams, key string) (value.Value, bool) {
	delim := params.Delimiter
	if delim == "" {
		delim = ";"
	}
	sep := params.Separator
	if sep == "" {
		sep = "="
	}
	for _, item := range strings.Split(raw, delim) {
		if params.Trim {
			item = strings.TrimSpace(item)
		}
		kv := strings.SplitN(item, sep, 2)
		if len(kv) != 2 {
			continue
		}
		k, val := kv[0], kv[1]
		if params.Trim {
			k = strings.TrimSpace(k)
			val = strings.TrimSpace(val)
		}
		if k == key {
			return value.String(val), true
		}
	}
	return value.Value{}, false
}

// applyCast converts per spec.md section 4.4: failure to parse returns
// the original value unchanged.
func applyCast(v value.Value, mod CastMod) value.Value {
	switch mod {
	case CastInt:
		if i, ok := v.ToInt64(); ok {
			return value.Int64(i)
		}
		return v
	case CastFlt:
		if f, ok := v.ToFloat64(); ok {
			return value.Float64(f)
		}
		return v
	case CastStr:
		if s, ok := v.ToStr(); ok {
			return value.String(s)
		}
		return v
	default:
		return v
	}
}
