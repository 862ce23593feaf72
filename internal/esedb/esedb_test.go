package esedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearer/tauhunt/internal/value"
)

func TestMemoryParserResolvesTableAndIDMap(t *testing.T) {
	p := NewMemoryParser()

	row := value.NewObject()
	row.Set("AppId", value.UInt64(7))
	row.Set("EndTime", value.String("2024-01-01T00:00:00Z"))
	p.AddTable(&MemoryTable{TableName: "{D10CA2FE-6FCF-4F6D-848E-B2E99266FA89}", Rows: []Record{row}})
	p.IDMap[7] = "C:\\Windows\\System32\\svchost.exe"

	names := p.Tables()
	require.Len(t, names, 1)

	tbl, ok := p.Table(names[0])
	require.True(t, ok)
	rows, err := tbl.Records()
	require.NoError(t, err)
	require.Len(t, rows, 1)

	idMap, err := p.ParseSruDbIdMapTable()
	require.NoError(t, err)
	assert.Equal(t, "C:\\Windows\\System32\\svchost.exe", idMap[7])
}

func TestMemoryParserMissingTable(t *testing.T) {
	p := NewMemoryParser()
	_, ok := p.Table("nope")
	assert.False(t, ok)
}
