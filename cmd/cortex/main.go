// Package main provides the entry point for the cortex CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/cortex/internal/cli"
)

// Set at build time via ldflags.
var (
	version = "dev"     //nolint:gochecknoglobals // ldflags target
	commit  = "none"    //nolint:gochecknoglobals // ldflags target
	date    = "unknown" //nolint:gochecknoglobals // ldflags target
)

func main() {
	ctx := context.Background()
	info := cli.BuildInfo{Version: version, Commit: commit, Date: date}
	if err := cli.Execute(ctx, info); err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(cli.ExitCodeForError(err))
	}
}
