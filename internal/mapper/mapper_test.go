package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/value"
)

func TestModeNoneDelegatesVerbatim(t *testing.T) {
	obj := value.NewObject()
	obj.Set("EventID", value.Int64(1))
	doc := document.New(document.KindJson, value.FromObject(obj))

	spec := Compile(nil)
	v := Wrap(doc, spec)

	got, ok := v.Find("EventID")
	require.True(t, ok)
	i, _ := got.Int64()
	assert.Equal(t, int64(1), i)
}

func TestFastModeRenames(t *testing.T) {
	obj := value.NewObject()
	obj.Set("Event.System.EventID", value.Int64(4688))
	doc := document.New(document.KindJson, value.FromObject(obj))

	spec := Compile([]Field{{Name: "event_id", From: "Event.System.EventID", To: "EventID"}})
	assert.Equal(t, ModeFast, spec.Mode())

	v := Wrap(doc, spec)
	got, ok := v.Find("EventID")
	require.True(t, ok)
	i, _ := got.Int64()
	assert.Equal(t, int64(4688), i)
}

func TestFullModeCast(t *testing.T) {
	obj := value.NewObject()
	obj.Set("pid_str", value.String("4242"))
	doc := document.New(document.KindJson, value.FromObject(obj))

	spec := Compile([]Field{{Name: "pid", From: "pid_str", To: "pid", Cast: CastInt}})
	assert.Equal(t, ModeFull, spec.Mode())

	v := Wrap(doc, spec)
	got, ok := v.Find("pid")
	require.True(t, ok)
	i, ok := got.Int64()
	require.True(t, ok)
	assert.Equal(t, int64(4242), i)
}

func TestFullModeContainerJSON(t *testing.T) {
	obj := value.NewObject()
	obj.Set("raw", value.String(`{"user":"alice"}`))
	doc := document.New(document.KindJson, value.FromObject(obj))

	spec := Compile([]Field{{
		Name:      "user",
		To:        "user",
		Container: &Container{Field: "raw", Format: ContainerJson},
	}})
	v := Wrap(doc, spec)

	got, ok := v.Find("user")
	require.True(t, ok)
	s, _ := got.StringRaw()
	assert.Equal(t, "alice", s)
}

func TestFullModeContainerKV(t *testing.T) {
	obj := value.NewObject()
	obj.Set("raw", value.String("user=alice; host=box1"))
	doc := document.New(document.KindJson, value.FromObject(obj))

	spec := Compile([]Field{{
		Name: "host",
		To:   "host",
		Container: &Container{
			Field:  "raw",
			Format: ContainerKV,
			KVParams: KVParams{
				Delimiter: ";",
				Separator: "=",
				Trim:      true,
			},
		},
	}})
	v := Wrap(doc, spec)

	got, ok := v.Find("host")
	require.True(t, ok)
	s, _ := got.StringRaw()
	assert.Equal(t, "box1", s)
}

func TestCastFailureReturnsOriginal(t *testing.T) {
	obj := value.NewObject()
	obj.Set("n", value.String("not-a-number"))
	doc := document.New(document.KindJson, value.FromObject(obj))

	spec := Compile([]Field{{Name: "n", From: "n", To: "n", Cast: CastInt}})
	v := Wrap(doc, spec)

	got, ok := v.Find("n")
	require.True(t, ok)
	s, ok := got.StringRaw()
	require.True(t, ok)
	assert.Equal(t, "not-a-number", s)
}
