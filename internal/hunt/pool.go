package hunt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bearer/tauhunt/internal/readers"
	"github.com/bearer/tauhunt/internal/rules"
)

// ExecutorOptions bounds the file-level worker pool that drives many
// Reader streams through one Run concurrently (spec.md section 5's
// file-level fan-out model), modeled on the teacher's WorkerOptions /
// Timeout* / FilesPerWorker knobs (settings.go:22-36).
type ExecutorOptions struct {
	// Workers caps the number of files processed concurrently. Zero
	// derives the cap from FilesPerWorker.
	Workers int
	// FilesPerWorker mirrors the teacher's sizing heuristic: when
	// Workers is zero, derive it from the file count so a handful of
	// files doesn't spin up one goroutine per CPU for no benefit.
	FilesPerWorker int
	// TimeoutFile bounds how long a single Reader's stream may run
	// before its context is cancelled (teacher's TimeoutFileMinimum/
	// TimeoutFileMaximum pairing, collapsed to one knob here since this
	// module doesn't scale the timeout by file size).
	TimeoutFile time.Duration
	// Options is forwarded to every per-file Run.
	Options Options
}

// workerCount resolves how many goroutines RunFiles should use for
// fileCount files, following the teacher's FilesPerWorker sizing rule:
// start a worker per FilesPerWorker files, capped by Workers when set.
func (o ExecutorOptions) workerCount(fileCount int) int {
	if o.Workers > 0 {
		return o.Workers
	}
	perWorker := o.FilesPerWorker
	if perWorker <= 0 {
		perWorker = 1
	}
	n := (fileCount + perWorker - 1) / perWorker
	if n < 1 {
		n = 1
	}
	if n > fileCount {
		n = fileCount
	}
	return n
}

// RunFiles drains every Reader in readerList through its own Run.Process
// loop, fanning out across ExecutorOptions.workerCount(len(readerList))
// goroutines via errgroup so the first fatal error cancels the rest
// (spec.md section 5, "propagate the first fatal error"). Detections
// collected across every file are merged into one deterministically
// ordered slice via SortDetections before returning, giving callers the
// same output regardless of how many workers actually ran.
func RunFiles(ctx context.Context, exec *Executor, readerList []readers.Reader, opts ExecutorOptions) ([]rules.Detections, error) {
	run := NewRun(exec, opts.Options)

	var mu sync.Mutex
	var all []rules.Detections

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workerCount(len(readerList)))

	for _, r := range readerList {
		r := r
		g.Go(func() error {
			return processReader(gctx, run, r, opts.TimeoutFile, func(d rules.Detections) {
				mu.Lock()
				all = append(all, d)
				mu.Unlock()
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	SortDetections(all)
	return all, nil
}

// processReader drains one Reader, honoring ctx cancellation (the first
// failing file's error cancels every other in-flight worker) and an
// optional per-file timeout.
func processReader(ctx context.Context, run *Run, r readers.Reader, timeout time.Duration, emit func(rules.Detections)) error {
	defer r.Close()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		doc, ok := r.Next()
		if !ok {
			return nil
		}
		if err := run.Process(doc, emit); err != nil {
			return fmt.Errorf("hunt: %s: %w", r.Kind(), err)
		}
	}
}
