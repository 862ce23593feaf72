// Package shimcache decodes the Windows AppCompatCache (Shimcache)
// Registry value and builds the exact/range timeline described in
// spec.md section 4.6. Hive access goes through internal/registry only
// - this package owns no HVE file-format parser, only the AppCompatCache
// binary blob once a Key/Value has already resolved it (spec.md section
// 1's "Deliberately OUT of scope" excludes HVE parsing, not Shimcache
// decoding itself, which the budget table lists as core work).
package shimcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/bearer/tauhunt/internal/diagnostic"
	"github.com/bearer/tauhunt/internal/registry"
)

// Variant identifies the AppCompatCache binary layout a buffer was
// written by (spec.md section 4.6's signature-dispatch table).
type Variant int

const (
	VariantUnknown Variant = iota
	VariantWinXP
	VariantVista
	VariantWin7x86
	VariantWin7x64
	VariantWin8
	VariantWin81
	VariantWin10
	VariantWin10Creators
	VariantWin10Fallback
)

func (v Variant) String() string {
	switch v {
	case VariantWinXP:
		return "winxp"
	case VariantVista:
		return "vista"
	case VariantWin7x86:
		return "win7-x86"
	case VariantWin7x64:
		return "win7-x64"
	case VariantWin8:
		return "win8"
	case VariantWin81:
		return "win8.1"
	case VariantWin10:
		return "win10"
	case VariantWin10Creators:
		return "win10-creators"
	case VariantWin10Fallback:
		return "win10-fallback"
	default:
		return "unknown"
	}
}

const (
	sigXP    uint32 = 0xdeadbeef
	sigVista uint32 = 0xbadc0ffe
	sigWin7  uint32 = 0xbadc0fee

	win8TagOffset       = 128
	tagWin8             = "00ts"
	tagWin81            = "10ts"
	tagWin10            = "10ts"
	win10CreatorsOffset = 0x34

	// filetimeEpochOffset is the number of 100ns intervals between the
	// FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01).
	filetimeEpochOffset = 116444736000000000
)

// unsupportedVersion builds the diagnostic.Error for a recognised but
// unhandled signature (spec.md's error taxonomy, "UnsupportedVersion").
func unsupportedVersion(variant Variant) error {
	return diagnostic.New(diagnostic.KindUnsupportedVersion, "", fmt.Errorf("shimcache variant %s", variant))
}

// invalidFormat builds the diagnostic.Error for bytes that don't match
// any declared signature (spec.md's error taxonomy, "InvalidFormat").
func invalidFormat(reason string) error {
	return diagnostic.New(diagnostic.KindInvalidFormat, "", fmt.Errorf("shimcache: %s", reason))
}

// DetectVariant inspects the raw AppCompatCache value and returns which
// binary layout decodes it, along with the byte offset past any "00ts"/
// "10ts" tag header (4, just past the signature, for the signature-only
// XP/Vista/Win7 variants).
func DetectVariant(data []byte) (Variant, int, error) {
	if len(data) < 4 {
		return VariantUnknown, 0, invalidFormat("buffer shorter than a signature")
	}

	switch binary.LittleEndian.Uint32(data[:4]) {
	case sigXP:
		return VariantWinXP, 4, nil
	case sigVista:
		return VariantVista, 4, nil
	case sigWin7:
		if os.Getenv("PROCESSOR_ARCHITECTURE") == "x86" {
			return VariantWin7x86, 4, nil
		}
		return VariantWin7x64, 4, nil
	}

	if len(data) >= win8TagOffset+4 {
		switch string(data[win8TagOffset : win8TagOffset+4]) {
		case tagWin8:
			return VariantWin8, win8TagOffset + 4, nil
		case tagWin81:
			return VariantWin81, win8TagOffset + 4, nil
		}
	}

	headerOffset := binary.LittleEndian.Uint32(data[0:4])
	if off := int(headerOffset); off >= 0 && off+4 <= len(data) && string(data[off:off+4]) == tagWin10 {
		if off == win10CreatorsOffset {
			return VariantWin10Creators, off + 4, nil
		}
		return VariantWin10, off + 4, nil
	}

	if idx := bytes.Index(data, []byte(tagWin10)); idx >= 0 {
		// The tag exists somewhere in the buffer but the declared header
		// offset didn't point at it - a Win10 build whose header field
		// went stale (spec.md section 4.6's Win11 fallback row).
		return VariantWin10Fallback, idx + 4, nil
	}

	return VariantUnknown, 0, invalidFormat("no recognised signature or tag")
}

// EntryType distinguishes the two kinds of decoded cache record (spec.md
// section 4.6).
type EntryType int

const (
	EntryUnknown EntryType = iota
	EntryFile
	EntryProgram
)

// FileEntry is a plain executable-path record.
type FileEntry struct {
	Path string
}

// ProgramEntry is a UWP program record (8-hex-prefixed package id).
type ProgramEntry struct {
	Name         string
	Version      string
	Architecture string
	Publisher    string
}

// Entry is one decoded Shimcache cache record (spec.md section 3,
// "Shimcache Entry").
type Entry struct {
	CacheEntryPosition int
	ControlSet         int
	Signature          Variant
	PathSize           int
	DataSize           int
	Data               []byte

	Type    EntryType
	File    FileEntry
	Program ProgramEntry

	Executed        *bool
	LastModified    time.Time
	HasLastModified bool
}

// Path returns a File entry's path, or "" for any other entry type
// (a Program entry's identity isn't path-shaped).
func (e Entry) Path() string {
	if e.Type == EntryFile {
		return e.File.Path
	}
	return ""
}

// appCompatCacheKeyPath builds the Registry path to the AppCompatCache
// value under the active control set (spec.md section 4.6, "Decode").
func appCompatCacheKeyPath(controlSet int) string {
	return fmt.Sprintf(`ControlSet%03d\Control\Session Manager\AppCompatCache`, controlSet)
}

// Locate resolves the active control set via `Select\Current` and opens
// the AppCompatCache key and value beneath it.
func Locate(hive registry.Hive) (registry.Key, registry.Value, int, error) {
	selectKey, ok := hive.GetKey(`Select`)
	if !ok {
		return nil, nil, 0, diagnostic.New(diagnostic.KindKeyNotFound, `Select`, nil)
	}
	cur, ok := selectKey.GetValue("Current")
	if !ok {
		return nil, nil, 0, diagnostic.New(diagnostic.KindValueNotFound, `Select\Current`, nil)
	}
	n, ok := cur.AsU32()
	if !ok {
		return nil, nil, 0, diagnostic.New(diagnostic.KindInvalidType, `Select\Current`, nil)
	}

	path := appCompatCacheKeyPath(int(n))
	key, ok := hive.GetKey(path)
	if !ok {
		return nil, nil, 0, diagnostic.New(diagnostic.KindKeyNotFound, path, nil)
	}
	val, ok := key.GetValue("AppCompatCache")
	if !ok {
		return nil, nil, 0, diagnostic.New(diagnostic.KindValueNotFound, path+`\AppCompatCache`, nil)
	}
	return key, val, int(n), nil
}

// Decode loads and decodes the AppCompatCache value reachable from hive,
// returning its entries and the Registry key's own last-write time (the
// "shimcache_last_update" timestamp of spec.md section 4.6).
func Decode(hive registry.Hive) ([]Entry, time.Time, error) {
	key, val, controlSet, err := Locate(hive)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, ok := val.AsBinary()
	if !ok {
		return nil, time.Time{}, diagnostic.New(diagnostic.KindInvalidType, "AppCompatCache", nil)
	}

	entries, err := DecodeBuffer(data, controlSet)
	if err != nil {
		return nil, time.Time{}, err
	}
	return entries, key.LastModified(), nil
}

// DecodeBuffer decodes a raw AppCompatCache buffer directly - split out
// from Decode so tests can exercise variant dispatch without a registry
// fixture.
func DecodeBuffer(data []byte, controlSet int) ([]Entry, error) {
	variant, headerEnd, err := DetectVariant(data)
	if err != nil {
		return nil, err
	}

	switch variant {
	case VariantWinXP, VariantVista:
		return nil, unsupportedVersion(variant)
	}

	return decodeRecords(data, headerEnd, variant, controlSet)
}

// decodeRecords walks the fixed per-entry layout shared by every
// supported variant from headerEnd: a 4-byte entry count followed by
// that many records of { u32 path byte length, UTF-16LE path, int64
// FILETIME last-modified, u32 data length, data }. Each variant's own
// header (signature-only for Win7, tag-terminated for Win8/Win10)
// differs only in where this common body starts.
func decodeRecords(data []byte, headerEnd int, variant Variant, controlSet int) ([]Entry, error) {
	if headerEnd+4 > len(data) {
		return nil, invalidFormat("truncated entry count")
	}
	count := binary.LittleEndian.Uint32(data[headerEnd : headerEnd+4])
	cursor := headerEnd + 4

	entries := make([]Entry, 0, count)
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

	for i := 0; i < int(count); i++ {
		if cursor+4 > len(data) {
			return nil, invalidFormat("truncated record path length")
		}
		pathLen := int(binary.LittleEndian.Uint32(data[cursor : cursor+4]))
		cursor += 4

		if cursor+pathLen > len(data) {
			return nil, invalidFormat("truncated record path")
		}
		rawPath := data[cursor : cursor+pathLen]
		cursor += pathLen

		path, err := decoder.Bytes(rawPath)
		if err != nil {
			return nil, fmt.Errorf("shimcache: decoding UTF-16 path: %w", err)
		}

		if cursor+8 > len(data) {
			return nil, invalidFormat("truncated record timestamp")
		}
		filetime := int64(binary.LittleEndian.Uint64(data[cursor : cursor+8]))
		cursor += 8

		if cursor+4 > len(data) {
			return nil, invalidFormat("truncated record data length")
		}
		dataLen := int(binary.LittleEndian.Uint32(data[cursor : cursor+4]))
		cursor += 4

		if cursor+dataLen > len(data) {
			return nil, invalidFormat("truncated record data")
		}
		recordData := append([]byte(nil), data[cursor:cursor+dataLen]...)
		cursor += dataLen

		entry := Entry{
			CacheEntryPosition: i,
			ControlSet:         controlSet,
			Signature:          variant,
			PathSize:           pathLen,
			DataSize:           dataLen,
			Data:               recordData,
		}
		if filetime > 0 {
			entry.LastModified = filetimeToTime(filetime)
			entry.HasLastModified = true
		}
		classify(&entry, string(path), variant)
		entries = append(entries, entry)
	}

	return entries, nil
}

func filetimeToTime(ft int64) time.Time {
	unixNano := (ft - filetimeEpochOffset) * 100
	return time.Unix(0, unixNano).UTC()
}
