// Package esedb defines the ESEDB (Extensible Storage Engine database)
// external collaborator interface used by the SRUM analyser to read
// srudb.dat tables without this module owning any ESE binary parser
// (spec.md section 1, "Deliberately OUT of scope": ESEDB parsing).
package esedb

import "github.com/bearer/tauhunt/internal/value"

// Record is one ESE table row, exposed as an ordered Object so it can
// flow straight into document.Document and the mapper/tau pipeline.
type Record = value.Object

// Table streams Records out of one named ESE table.
type Table interface {
	Name() string
	Records() ([]Record, error)
}

// Parser is a loaded srudb.dat-style database.
type Parser interface {
	// Tables lists every table name in the database.
	Tables() []string
	// Table opens a named table.
	Table(name string) (Table, bool)
	// ParseSruDbIdMapTable resolves the SruDbIdMapTable, returning the
	// id -> resolved-identifier map used to translate AppId/UserId
	// foreign keys in the other SRUM tables (spec.md section 4.7).
	ParseSruDbIdMapTable() (map[uint32]string, error)
	Close() error
}

// Loader opens an ESE database file at path. No concrete implementation
// lives in this module; a host binds this to its ESEDB parser of
// choice.
type Loader interface {
	Load(path string) (Parser, error)
}
