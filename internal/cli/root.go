// Package cli is the composition-root command: it parses flags, wires
// the rule compiler, hunt executor and an externally supplied set of
// readers.Opener implementations together, and runs one hunt pass. It
// owns no business logic of its own - spec.md section 1 keeps "CLI
// argument parsing, help/version rendering, banner, progress UI" and
// "Output rendering" as external concerns, so this package sticks to
// flag parsing and wiring (SPEC_FULL.md's module layout table names
// cmd/tauhunt as the thin composition root; the command itself lives
// here so cmd/tauhunt's main.go stays a bare Execute() call).
//
// Concrete artefact parsers are "external collaborators with named
// interfaces only" (spec.md section 1): this package never constructs a
// readers.Opener itself. NewRootCmd takes a caller-supplied registry so
// a real triage binary can link in EVTX/HVE/ESEDB/MFT/XML/JSON parsers
// without this module depending on any of them.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/hunt"
	"github.com/bearer/tauhunt/internal/readers"
	"github.com/bearer/tauhunt/internal/rules"
	"github.com/bearer/tauhunt/internal/rules/chainsaw"
	"github.com/bearer/tauhunt/internal/rules/sigma"
)

// flags holds the parsed command-line options for one run.
type flags struct {
	chainsawRuleFiles []string
	sigmaRuleFiles    []string
	windowFrom        string
	windowTo          string
	skipErrors        bool
	loadUnknown       bool
	workers           int
	filesPerWorker    int
	timeoutFile       time.Duration
}

// NewRootCmd builds the tauhunt root command. openers maps a
// document.Kind to the Opener a real binary has registered for it; a
// nil or incomplete map is valid - artefacts whose kind has no
// registered Opener are logged as a warning and skipped; the run fails
// only when no artefact has one.
func NewRootCmd(openers map[document.Kind]readers.Opener) *cobra.Command {
	f := &flags{}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cmd := &cobra.Command{
		Use:   "tauhunt [artefact...]",
		Short: "Evaluate Chainsaw/Sigma detection rules against Windows forensic artefacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), logger, f, openers, args)
		},
	}

	flagsSet := cmd.Flags()
	flagsSet.StringArrayVar(&f.chainsawRuleFiles, "rule", nil, "Chainsaw rule file (repeatable)")
	flagsSet.StringArrayVar(&f.sigmaRuleFiles, "sigma", nil, "Sigma rule file (repeatable)")
	flagsSet.StringVar(&f.windowFrom, "from", "", "RFC3339 lower time-window bound (exclusive)")
	flagsSet.StringVar(&f.windowTo, "to", "", "RFC3339 upper time-window bound (exclusive)")
	flagsSet.BoolVar(&f.skipErrors, "skip-errors", false, "Skip records with unparseable timestamps instead of failing the run")
	flagsSet.BoolVar(&f.loadUnknown, "load-unknown", false, "Hand files with unrecognised extensions to the reader registered for the unknown document kind")
	flagsSet.IntVar(&f.workers, "workers", 0, "Maximum concurrent artefact readers (0 derives from --files-per-worker)")
	flagsSet.IntVar(&f.filesPerWorker, "files-per-worker", 1000, "Start a worker per this many artefacts, mirrors the teacher's FilesPerWorker sizing")
	flagsSet.DurationVar(&f.timeoutFile, "timeout-file", 0, "Per-artefact processing timeout (0 disables)")

	return cmd
}

func run(ctx context.Context, logger zerolog.Logger, f *flags, openers map[document.Kind]readers.Opener, artefacts []string) error {
	ruleSet, err := loadRules(f)
	if err != nil {
		return err
	}
	if len(ruleSet) == 0 {
		return fmt.Errorf("tauhunt: no rules loaded, pass --rule and/or --sigma")
	}

	window, err := parseWindow(f.windowFrom, f.windowTo)
	if err != nil {
		return err
	}

	exec, err := hunt.Build(ruleSet, nil)
	if err != nil {
		return fmt.Errorf("tauhunt: %w", err)
	}

	readerList, err := openArtefacts(artefacts, openers, f.loadUnknown, f.skipErrors, logger)
	if err != nil {
		return err
	}
	if len(readerList) == 0 {
		return fmt.Errorf("tauhunt: no artefact had a registered reader")
	}

	start := time.Now()
	detections, err := hunt.RunFiles(ctx, exec, readerList, hunt.ExecutorOptions{
		Workers:        f.workers,
		FilesPerWorker: f.filesPerWorker,
		TimeoutFile:    f.timeoutFile,
		Options: hunt.Options{
			Window:     window,
			SkipErrors: f.skipErrors,
		},
	})
	if err != nil {
		return fmt.Errorf("tauhunt: %w", err)
	}

	logger.Info().
		Int("detections", len(detections)).
		Int("artefacts", len(readerList)).
		Dur("elapsed", time.Since(start)).
		Msg("hunt complete")

	return nil
}

func loadRules(f *flags) ([]rules.Rule, error) {
	var out []rules.Rule

	for _, path := range f.chainsawRuleFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("tauhunt: reading chainsaw rule %s: %w", path, err)
		}
		rule, err := chainsaw.Compile(data)
		if err != nil {
			return nil, fmt.Errorf("tauhunt: compiling chainsaw rule %s: %w", path, err)
		}
		out = append(out, *rule)
	}

	for _, path := range f.sigmaRuleFiles {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("tauhunt: reading sigma rule %s: %w", path, err)
		}
		compiled, err := sigma.CompileFile(file)
		closeErr := file.Close()
		if err != nil {
			return nil, fmt.Errorf("tauhunt: compiling sigma rule %s: %w", path, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("tauhunt: closing sigma rule %s: %w", path, closeErr)
		}
		out = append(out, compiled...)
	}

	return out, nil
}

func parseWindow(from, to string) (hunt.Window, error) {
	var w hunt.Window
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return w, fmt.Errorf("tauhunt: invalid --from: %w", err)
		}
		w.From = t
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return w, fmt.Errorf("tauhunt: invalid --to: %w", err)
		}
		w.To = t
	}
	return w, nil
}

func openArtefacts(paths []string, openers map[document.Kind]readers.Opener, loadUnknown, skipErrors bool, logger zerolog.Logger) ([]readers.Reader, error) {
	var out []readers.Reader

	for _, path := range paths {
		kind, ok := readers.KindForExtension(path)
		if !ok && !loadUnknown {
			logger.Warn().Str("path", path).Msg("unrecognised extension, skipping (pass --load-unknown to probe)")
			continue
		}

		opener, ok := openers[kind]
		if !ok {
			logger.Warn().Str("path", path).Str("kind", kind.String()).Msg("no reader registered for this document kind, skipping")
			continue
		}

		r, err := opener.Open(path, loadUnknown, skipErrors)
		if err != nil {
			if skipErrors {
				logger.Warn().Str("path", path).Err(err).Msg("skipping artefact that failed to open")
				continue
			}
			return nil, fmt.Errorf("tauhunt: opening %s: %w", path, err)
		}
		out = append(out, r)
	}

	return out, nil
}
