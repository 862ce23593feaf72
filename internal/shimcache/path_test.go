package shimcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyWin7StripsNTPrefix(t *testing.T) {
	e := Entry{}
	classify(&e, `\??\C:\Windows\a.exe`, VariantWin7x64)
	assert.Equal(t, EntryFile, e.Type)
	assert.Equal(t, `C:\Windows\a.exe`, e.File.Path)
}

func TestClassifyWin8MapsSysvol(t *testing.T) {
	e := Entry{}
	classify(&e, `SYSVOL\Windows\a.exe`, VariantWin8)
	assert.Equal(t, EntryFile, e.Type)
	assert.Equal(t, `C:\Windows\a.exe`, e.File.Path)
}

func TestClassifyWin10ProgramIdentity(t *testing.T) {
	e := Entry{}
	classify(&e, `0011aabb MyApp 1.2.3.4 x64 Contoso Corp`, VariantWin10)
	assert.Equal(t, EntryProgram, e.Type)
	assert.Equal(t, "MyApp", e.Program.Name)
	assert.Equal(t, "1.2.3.4", e.Program.Version)
	assert.Equal(t, "x64", e.Program.Architecture)
	assert.Equal(t, "Contoso Corp", e.Program.Publisher)
}

func TestClassifyWin10PlainFileIsNotProgram(t *testing.T) {
	e := Entry{}
	classify(&e, `C:\Program Files\app\a.exe`, VariantWin10)
	assert.Equal(t, EntryFile, e.Type)
	assert.Equal(t, `C:\Program Files\app\a.exe`, e.File.Path)
}
