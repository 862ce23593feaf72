package shimcache

import (
	"strings"
	"time"

	"github.com/bearer/tauhunt/internal/registry"
)

// AmcacheFileRecord is the subset of an Amcache InventoryApplicationFile
// entry the timeline enrichment passes need (spec.md section 4.6 step 3).
type AmcacheFileRecord struct {
	Path        string
	KeyModified time.Time
}

// AmcacheProgramRecord is the subset of an Amcache InventoryApplication
// entry the timeline enrichment passes need, keyed by (name, version).
type AmcacheProgramRecord struct {
	Name        string
	Version     string
	KeyModified time.Time
}

// AmcacheIndex is a resolved Amcache hive, indexed the way the timeline
// builder looks records up: files by lower-cased path, programs by
// (lower-cased name, version as stored).
type AmcacheIndex struct {
	Files    map[string]AmcacheFileRecord
	Programs map[string]AmcacheProgramRecord
}

func programKey(name, version string) string {
	return strings.ToLower(name) + "\x00" + version
}

// LoadAmcacheIndex walks an Amcache hive's InventoryApplicationFile and
// InventoryApplication keys through the same registry.Hive interface
// Shimcache decoding uses, keyed the way enrichment needs.
func LoadAmcacheIndex(hive registry.Hive) (AmcacheIndex, error) {
	idx := AmcacheIndex{
		Files:    map[string]AmcacheFileRecord{},
		Programs: map[string]AmcacheProgramRecord{},
	}

	if key, ok := hive.GetKey(`Root\InventoryApplicationFile`); ok {
		for _, name := range key.SubkeyNames() {
			sub, ok := key.Subkey(name)
			if !ok {
				continue
			}
			pathVal, ok := sub.GetValue("LowerCaseLongPath")
			if !ok {
				continue
			}
			path, ok := pathVal.AsString()
			if !ok {
				continue
			}
			idx.Files[strings.ToLower(path)] = AmcacheFileRecord{
				Path:        path,
				KeyModified: sub.LastModified(),
			}
		}
	}

	if key, ok := hive.GetKey(`Root\InventoryApplication`); ok {
		for _, name := range key.SubkeyNames() {
			sub, ok := key.Subkey(name)
			if !ok {
				continue
			}
			nameVal, _ := sub.GetValue("Name")
			verVal, _ := sub.GetValue("Version")
			programName, _ := nameVal.AsString()
			version, _ := verVal.AsString()
			idx.Programs[programKey(programName, version)] = AmcacheProgramRecord{
				Name:        programName,
				Version:     version,
				KeyModified: sub.LastModified(),
			}
		}
	}

	return idx, nil
}
