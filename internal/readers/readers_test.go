package readers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bearer/tauhunt/internal/document"
)

func TestKindForExtension(t *testing.T) {
	cases := map[string]document.Kind{
		"logs.evtx":    document.KindEvtx,
		"logs.evt":     document.KindEvtx,
		"records.json": document.KindJson,
		"records.xml":  document.KindXml,
		"SYSTEM.hve":   document.KindHve,
		"$MFT":         document.KindMft,
		"ntfs.mft":     document.KindMft,
		"srudb.dat":    document.KindEsedb,
		"srudb.edb":    document.KindEsedb,
	}
	for path, want := range cases {
		got, ok := KindForExtension(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
}

func TestJsonlExposedAsJson(t *testing.T) {
	k, ok := KindForExtension("events.jsonl")
	assert.True(t, ok)
	assert.Equal(t, document.KindJson, k)
	assert.True(t, IsJsonl("events.jsonl"))
}

func TestUnknownExtension(t *testing.T) {
	_, ok := KindForExtension("data.weird")
	assert.False(t, ok)
}

func TestProbeOrderExcludesJsonl(t *testing.T) {
	order := ProbeOrder()
	for _, k := range order {
		assert.NotEqual(t, document.Kind(-1), k)
	}
	assert.Equal(t, document.KindEvtx, order[0])
	assert.Equal(t, document.KindEsedb, order[len(order)-1])
}
