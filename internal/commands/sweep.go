package commands

import (
	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

// Sweep returns the command expiring old AMIs without creating a new one.
func Sweep(d deps, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire AMIs older than the retention window",
		Long: `sweep deregisters every AMI tagged with the server name that is older than
the retention window and deletes its snapshots. Cleanups left unfinished by an
earlier run are completed first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := prepare(cmd, d, f)
			if err != nil {
				return err
			}

			report, err := a.sweeper().Sweep(ctx, a.cfg.RetentionDays, a.cfg.ServerName)
			a.recordSweep(report)
			if err == nil {
				clog.FromContext(ctx).Info("sweep complete",
					"found", report.Found,
					"kept", len(report.Kept),
					"deregistered", len(report.Deregistered),
					"snapshots_deleted", len(report.SnapshotsDeleted),
				)
			}
			return a.finish(ctx, err)
		},
	}
}
