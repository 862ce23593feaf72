package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHiveWalksNestedPath(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	root := NewMemoryKey("ROOT", ts)
	ctl := NewMemoryKey("ControlSet001", ts)
	cache := NewMemoryKey("BAM", ts)
	cache.AddValue(&MemoryValue{ValueName: "Executable", Str: "C:\\a.exe", HasStr: true})
	ctl.AddSubkey(cache)
	root.AddSubkey(ctl)
	hive := NewMemoryHive(root)

	key, ok := hive.GetKey("ControlSet001\\BAM")
	require.True(t, ok)
	assert.Equal(t, "BAM", key.Name())

	v, ok := key.GetValue("Executable")
	require.True(t, ok)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "C:\\a.exe", s)
}

func TestMemoryHiveMissingPath(t *testing.T) {
	hive := NewMemoryHive(NewMemoryKey("ROOT", time.Now().UTC()))
	_, ok := hive.GetKey("Nope\\Missing")
	assert.False(t, ok)
}

func TestSubkeyNamesPreservesInsertionOrder(t *testing.T) {
	root := NewMemoryKey("ROOT", time.Now().UTC())
	root.AddSubkey(NewMemoryKey("b", time.Now().UTC()))
	root.AddSubkey(NewMemoryKey("a", time.Now().UTC()))
	assert.Equal(t, []string{"b", "a"}, root.SubkeyNames())
}
