package shimcache

import (
	"regexp"
	"strings"
)

// programIDPattern matches the UWP program-identity string Win8/Win10
// store in place of a path: an 8-hex-digit publisher id followed by a
// space. isProgramIdentity adds the field-count check (spec.md section
// 4.6, "Win8/Win10 records classify paths as Program").
var programIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8} `)

const ntPathPrefix = `\??\`
const sysvolPrefix = `SYSVOL\`

// classify fills entry.Type and the corresponding File/Program payload
// from a raw decoded path string, applying each variant's path-normalisation
// rules (spec.md section 4.6).
func classify(entry *Entry, raw string, variant Variant) {
	path := raw

	switch variant {
	case VariantWin7x86, VariantWin7x64:
		path = strings.TrimPrefix(path, ntPathPrefix)
	case VariantWin8, VariantWin81:
		if strings.HasPrefix(path, sysvolPrefix) {
			path = `C:\` + strings.TrimPrefix(path, sysvolPrefix)
		}
	}

	if (variant == VariantWin8 || variant == VariantWin81 || isWin10(variant)) && isProgramIdentity(path) {
		entry.Type = EntryProgram
		entry.Program = parseProgramIdentity(path)
		return
	}

	entry.Type = EntryFile
	entry.File = FileEntry{Path: path}
}

func isWin10(v Variant) bool {
	switch v {
	case VariantWin10, VariantWin10Creators, VariantWin10Fallback:
		return true
	default:
		return false
	}
}

// isProgramIdentity reports whether path looks like a UWP program
// identity rather than a filesystem path: an 8-hex-digit prefix and at
// least six whitespace-separated groups in all, the prefix included.
func isProgramIdentity(path string) bool {
	if !programIDPattern.MatchString(path) {
		return false
	}
	return len(strings.Fields(path)) >= 6
}

// parseProgramIdentity decodes a UWP program-identity string of the
// shape "<8hex> <name> <version> <architecture> <publisher> ...".
func parseProgramIdentity(path string) ProgramEntry {
	fields := strings.Fields(path)
	p := ProgramEntry{}
	if len(fields) > 1 {
		p.Name = fields[1]
	}
	if len(fields) > 2 {
		p.Version = fields[2]
	}
	if len(fields) > 3 {
		p.Architecture = fields[3]
	}
	if len(fields) > 4 {
		p.Publisher = strings.Join(fields[4:], " ")
	}
	return p
}
