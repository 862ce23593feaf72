package main

import (
	"os"

	"github.com/bearer/tauhunt/internal/cli"
	"github.com/bearer/tauhunt/internal/document"
	"github.com/bearer/tauhunt/internal/readers"
)

func main() {
	// No Opener is registered here: concrete artefact parsers are
	// external collaborators this module never implements (spec.md
	// section 1). A real triage binary imports internal/cli directly
	// and passes its own readers.Opener implementations to
	// cli.NewRootCmd instead of using this binary as-is.
	openers := map[document.Kind]readers.Opener{}

	if err := cli.NewRootCmd(openers).Execute(); err != nil {
		os.Exit(1)
	}
}
