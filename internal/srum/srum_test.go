package srum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearer/tauhunt/internal/diagnostic"
	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/esedb"
	"github.com/bearer/tauhunt/internal/registry"
	"github.com/bearer/tauhunt/internal/value"
)

func TestResolveIDMap(t *testing.T) {
	parser := esedb.NewMemoryParser()
	parser.IDMap = map[uint32]string{1: `C:\Windows\app.exe`}

	idMap, err := ResolveIDMap(parser)
	require.NoError(t, err)
	assert.Equal(t, `C:\Windows\app.exe`, idMap[1])
}

func TestResolveIDMapErrorsWhenUnloaded(t *testing.T) {
	parser := &esedb.MemoryParser{ByName: map[string]*esedb.MemoryTable{}}
	_, err := ResolveIDMap(parser)
	require.Error(t, err)
	var target *diagnostic.Error
	require.ErrorAs(t, err, &target)
	assert.Equal(t, diagnostic.KindParseError, target.Kind)
}

func TestBuildDocumentsResolvesForeignKeysAndAttachesRetention(t *testing.T) {
	row := value.NewObject()
	row.Set("AppId", value.Int64(1))
	row.Set("UserId", value.Int64(2))
	row.Set("BytesSent", value.Int64(4096))

	table := &esedb.MemoryTable{TableName: TableNetworkUsage, Rows: []esedb.Record{*row}}
	parser := esedb.NewMemoryParser()
	parser.AddTable(table)

	idMap := map[uint32]string{
		1: `C:\Windows\app.exe`,
		2: "S-1-5-21-1-2-3-1001",
	}

	docs, err := BuildDocuments(parser, TableNetworkUsage, idMap, 30)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, document.KindEsedb, docs[0].Kind)

	appID, ok := docs[0].Find("AppId")
	require.True(t, ok)
	raw, _ := appID.StringRaw()
	assert.Equal(t, `C:\Windows\app.exe`, raw)

	userID, ok := docs[0].Find("UserId")
	require.True(t, ok)
	raw, _ = userID.StringRaw()
	assert.Equal(t, "S-1-5-21-1-2-3-1001", raw)

	bytesSent, ok := docs[0].Find("BytesSent")
	require.True(t, ok)
	n, _ := bytesSent.Int64()
	assert.Equal(t, int64(4096), n)

	retention, ok := docs[0].Find(retentionFieldName)
	require.True(t, ok)
	n, _ = retention.Int64()
	assert.Equal(t, int64(30), n)
}

func TestBuildDocumentsUnknownTableErrors(t *testing.T) {
	parser := esedb.NewMemoryParser()
	_, err := BuildDocuments(parser, "nope", nil, 30)
	require.Error(t, err)
	var target *diagnostic.Error
	require.ErrorAs(t, err, &target)
	assert.Equal(t, diagnostic.KindKeyNotFound, target.Kind)
}

func TestBuildDocumentsLeavesUnmappedForeignKeyAsIs(t *testing.T) {
	row := value.NewObject()
	row.Set("AppId", value.Int64(999))

	table := &esedb.MemoryTable{TableName: TableAppResourceUsage, Rows: []esedb.Record{*row}}
	parser := esedb.NewMemoryParser()
	parser.AddTable(table)

	docs, err := BuildDocuments(parser, TableAppResourceUsage, map[uint32]string{}, 30)
	require.NoError(t, err)

	appID, ok := docs[0].Find("AppId")
	require.True(t, ok)
	n, _ := appID.Int64()
	assert.Equal(t, int64(999), n)
}

func TestReadRetentionDaysFallsBackToDefault(t *testing.T) {
	hive := registry.NewMemoryHive(registry.NewMemoryKey("ROOT", time.Now()))
	days, err := ReadRetentionDays(hive)
	require.NoError(t, err)
	assert.Equal(t, defaultRetentionDays, days)
}

func TestReadRetentionDaysReadsConfiguredValue(t *testing.T) {
	root := registry.NewMemoryKey("ROOT", time.Now())
	software := registry.NewMemoryKey("SOFTWARE", time.Now())
	ms := registry.NewMemoryKey("Microsoft", time.Now())
	nt := registry.NewMemoryKey("Windows NT", time.Now())
	cv := registry.NewMemoryKey("CurrentVersion", time.Now())
	srumKey := registry.NewMemoryKey("SRUM", time.Now())
	params := registry.NewMemoryKey("Parameters", time.Now())
	params.AddValue(&registry.MemoryValue{ValueName: "RetentionDays", U32: 90, HasU32: true})

	srumKey.AddSubkey(params)
	cv.AddSubkey(srumKey)
	nt.AddSubkey(cv)
	ms.AddSubkey(nt)
	software.AddSubkey(ms)
	root.AddSubkey(software)

	hive := registry.NewMemoryHive(root)
	days, err := ReadRetentionDays(hive)
	require.NoError(t, err)
	assert.Equal(t, 90, days)
}

func TestReadRetentionDaysRejectsWrongType(t *testing.T) {
	root := registry.NewMemoryKey("ROOT", time.Now())
	software := registry.NewMemoryKey("SOFTWARE", time.Now())
	ms := registry.NewMemoryKey("Microsoft", time.Now())
	nt := registry.NewMemoryKey("Windows NT", time.Now())
	cv := registry.NewMemoryKey("CurrentVersion", time.Now())
	srumKey := registry.NewMemoryKey("SRUM", time.Now())
	params := registry.NewMemoryKey("Parameters", time.Now())
	params.AddValue(&registry.MemoryValue{ValueName: "RetentionDays", Str: "ninety", HasStr: true})

	srumKey.AddSubkey(params)
	cv.AddSubkey(srumKey)
	nt.AddSubkey(cv)
	ms.AddSubkey(nt)
	software.AddSubkey(ms)
	root.AddSubkey(software)

	hive := registry.NewMemoryHive(root)
	_, err := ReadRetentionDays(hive)
	require.Error(t, err)
	var target *diagnostic.Error
	require.ErrorAs(t, err, &target)
	assert.Equal(t, diagnostic.KindInvalidType, target.Kind)
}
