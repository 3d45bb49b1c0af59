package main

import (
	"fmt"
	"os"

	"github.com/imgfit/imgfit/internal/cli"
	"github.com/imgfit/imgfit/internal/cli/ui"
)

// Set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersion(version, commit, date)
	if err := cli.Execute(); err != nil {
		msg := err.Error()
		fmt.Fprint(os.Stderr, ui.FormatError(msg, ui.Suggestions(msg)...))
		os.Exit(1)
	}
}
