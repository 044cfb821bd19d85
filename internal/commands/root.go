// Package commands defines the ami-backup command tree.
package commands

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/chainguard-dev/ami-backup/internal/backup"
	"github.com/spf13/cobra"
)

// deps are the process collaborators a command needs; tests replace them.
type deps struct {
	newAPI func(ctx context.Context, region string) (backup.API, error)
	stdout io.Writer
	getenv func(string) string
	now    func() time.Time
}

func defaultDeps() deps {
	return deps{
		newAPI: func(ctx context.Context, region string) (backup.API, error) {
			return backup.NewClient(ctx, region)
		},
		stdout: os.Stdout,
		getenv: os.Getenv,
		now:    time.Now,
	}
}

// Root returns the root command for the ami-backup CLI.
func Root() *cobra.Command {
	return newRoot(defaultDeps())
}

func newRoot(d deps) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "ami-backup",
		Short: "Back up an EC2 instance to an AMI and expire old AMIs",
		Long: `ami-backup finds the running EC2 instance whose Name tag matches the
configured server name, creates an AMI from it without rebooting, tags the AMI
and its snapshots, then deregisters AMIs of the same server that are older than
the retention window and deletes their snapshots.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f.register(cmd)

	cmd.AddCommand(Run(d, f))
	cmd.AddCommand(Sweep(d, f))
	cmd.AddCommand(Version())

	return cmd
}
