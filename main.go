package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/ami-backup/internal/commands"
	"github.com/chainguard-dev/clog"
)

// these will be set by the goreleaser configuration
// to appropriate values for the compiled binary.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	commands.SetVersionInfo(version, commit)

	if err := commands.Root().ExecuteContext(ctx); err != nil {
		clog.FromContext(ctx).Error("ami-backup failed", "error", err)
		stop()
		os.Exit(1)
	}
}
