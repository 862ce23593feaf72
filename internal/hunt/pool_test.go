package hunt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/readers"
	"github.com/bearer/tauhunt/internal/rules"
	"github.com/bearer/tauhunt/internal/value"
)

func docFile(ts string, eventID int64) document.Document {
	return docWithFields(document.KindJson, map[string]value.Value{
		"EventID":   value.Int64(eventID),
		"Timestamp": value.String(ts),
	})
}

func TestRunFilesMergesAndSortsAcrossWorkers(t *testing.T) {
	rule := mustCompileChainsaw(t, `
title: Logon
kind: json
timestamp: Timestamp
filter: 'EventID: 4624'
`)
	exec, err := Build([]rules.Rule{rule}, nil)
	require.NoError(t, err)

	readerA := readers.NewMemoryReader(document.KindJson, []document.Document{
		docFile("2024-01-01T10:05:00Z", 4624),
	})
	readerB := readers.NewMemoryReader(document.KindJson, []document.Document{
		docFile("2024-01-01T10:00:00Z", 4624),
	})

	dets, err := RunFiles(context.Background(), exec, []readers.Reader{readerA, readerB}, ExecutorOptions{
		Workers: 2,
	})
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.True(t, dets[0].ReportedTimestamp().Before(dets[1].ReportedTimestamp()))
}

func TestRunFilesPropagatesFirstFatalError(t *testing.T) {
	rule := mustCompileChainsaw(t, `
title: Logon
kind: json
timestamp: Timestamp
filter: 'EventID: 4624'
`)
	exec, err := Build([]rules.Rule{rule}, nil)
	require.NoError(t, err)

	readerList := []readers.Reader{
		&failingReader{kind: document.KindJson},
		readers.NewMemoryReader(document.KindJson, []document.Document{
			docFile("2024-01-01T10:00:00Z", 4624),
		}),
	}

	_, err = RunFiles(context.Background(), exec, readerList, ExecutorOptions{Workers: 2})
	require.Error(t, err)
}

func TestExecutorOptionsWorkerCountDerivesFromFilesPerWorker(t *testing.T) {
	opts := ExecutorOptions{FilesPerWorker: 2}
	assert.Equal(t, 3, opts.workerCount(5))
	assert.Equal(t, 1, opts.workerCount(1))

	capped := ExecutorOptions{Workers: 2, FilesPerWorker: 1}
	assert.Equal(t, 2, capped.workerCount(10))
}

// failingReader always returns a document whose missing timestamp field
// makes Run.Process fail (Options.SkipErrors left false), exercising
// RunFiles's fatal-error propagation path.
type failingReader struct {
	kind  document.Kind
	drawn bool
}

func (f *failingReader) Next() (document.Document, bool) {
	if f.drawn {
		return document.Document{}, false
	}
	f.drawn = true
	return docWithFields(f.kind, map[string]value.Value{"EventID": value.Int64(4624)}), true
}

func (f *failingReader) Kind() document.Kind { return f.kind }

func (f *failingReader) Close() error { return nil }
