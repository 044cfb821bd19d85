package commands

import (
	"github.com/chainguard-dev/ami-backup/internal/backup"
	"github.com/spf13/cobra"
)

// Run returns the command performing a full backup: create and tag a new
// AMI, then expire old ones.
func Run(d deps, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Create a new AMI of the server and expire old AMIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := prepare(cmd, d, f)
			if err != nil {
				return err
			}

			runner := &backup.Runner{
				API:           a.api,
				ServerName:    a.cfg.ServerName,
				RetentionDays: a.cfg.RetentionDays,
				Wait: backup.WaitOptions{
					Timeout:       a.cfg.WaitTimeout,
					PollInterval:  a.cfg.PollInterval,
					WaitAvailable: a.cfg.WaitAvailable,
				},
				Sweeper: a.sweeper(),
				Now:     a.now,
			}

			result, err := runner.Run(ctx)
			if result != nil {
				if result.ImageID != "" {
					a.metrics.ImageCreated()
				}
				a.recordSweep(result.Sweep)
			}
			return a.finish(ctx, err)
		},
	}
}
