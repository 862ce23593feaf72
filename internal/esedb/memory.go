package esedb

import "fmt"

// MemoryTable is an in-memory Table test double.
type MemoryTable struct {
	TableName string
	Rows      []Record
}

func (t *MemoryTable) Name() string { return t.TableName }

func (t *MemoryTable) Records() ([]Record, error) {
	return t.Rows, nil
}

// MemoryParser is an in-memory Parser test double used by internal/srum
// tests to exercise table resolution and id-map translation without a
// real ESE parser.
type MemoryParser struct {
	ByName map[string]*MemoryTable
	order  []string
	IDMap  map[uint32]string
}

func NewMemoryParser() *MemoryParser {
	return &MemoryParser{ByName: map[string]*MemoryTable{}, IDMap: map[uint32]string{}}
}

func (p *MemoryParser) AddTable(t *MemoryTable) {
	p.ByName[t.TableName] = t
	p.order = append(p.order, t.TableName)
}

func (p *MemoryParser) Tables() []string {
	return append([]string{}, p.order...)
}

func (p *MemoryParser) Table(name string) (Table, bool) {
	t, ok := p.ByName[name]
	if !ok {
		return nil, false
	}
	return t, true
}

func (p *MemoryParser) ParseSruDbIdMapTable() (map[uint32]string, error) {
	if p.IDMap == nil {
		return nil, fmt.Errorf("esedb: SruDbIdMapTable not loaded")
	}
	return p.IDMap, nil
}

func (p *MemoryParser) Close() error { return nil }
