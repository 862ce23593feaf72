// Package registry defines the HVE (Windows Registry hive) external
// collaborator interface used by the Amcache/Shimcache timeline builder
// and the SRUM glue to walk hive-backed data without this module owning
// any hive binary parser (spec.md section 1, "Deliberately OUT of
// scope": HVE parsing).
package registry

import "time"

// Key is one registry key node: a named container of subkeys and values.
type Key interface {
	// Name is the key's own name (not the full path).
	Name() string
	// SubkeyNames lists the immediate child key names, in hive order.
	SubkeyNames() []string
	// Subkey opens a named immediate child, or (nil, false) if absent.
	Subkey(name string) (Key, bool)
	// LastModified is the key's hive-recorded last-write timestamp.
	LastModified() time.Time
	// GetValue looks up a named value under this key.
	GetValue(name string) (Value, bool)
	// ValueNames lists the value names stored directly on this key.
	ValueNames() []string
}

// Value is one registry value: a name tagged with a type and payload.
type Value interface {
	Name() string
	AsString() (string, bool)
	AsU32() (uint32, bool)
	AsU64() (uint64, bool)
	AsBinary() ([]byte, bool)
}

// Hive is the root entry point into a loaded hive file.
type Hive interface {
	// GetKey resolves a backslash-separated path from the hive root.
	GetKey(path string) (Key, bool)
	Close() error
}

// Loader opens a hive file at path. No concrete implementation lives in
// this module; a host binds this to its HVE parser of choice.
type Loader interface {
	Load(path string) (Hive, error)
}
