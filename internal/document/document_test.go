package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearer/tauhunt/internal/value"
)

func TestEvtxProviderAlias(t *testing.T) {
	nameAttrs := value.NewObject()
	nameAttrs.Set("Name", value.String("Microsoft-Windows-Security-Auditing"))

	providerAttrs := value.NewObject()
	providerAttrs.Set("Provider_attributes", value.FromObject(nameAttrs))

	sys := value.NewObject()
	sys.Set("System", value.FromObject(providerAttrs))

	event := value.NewObject()
	event.Set("Event", value.FromObject(sys))

	doc := New(KindEvtx, value.FromObject(event))

	v, ok := doc.Find("Event.System.Provider")
	require.True(t, ok)
	s, _ := v.StringRaw()
	assert.Equal(t, "Microsoft-Windows-Security-Auditing", s)
}

func TestNonEvtxDoesNotAlias(t *testing.T) {
	obj := value.NewObject()
	doc := New(KindJson, value.FromObject(obj))
	_, ok := doc.Find("Event.System.Provider")
	assert.False(t, ok)
}
