package commands

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// these will be set by the goreleaser configuration
// to appropriate values for the compiled binary.
var (
	version = "dev"
	commit  = "none"
)

// SetVersionInfo sets the version reported by the version command.
func SetVersionInfo(v, c string) {
	version, commit = v, c
}

// Version returns the command printing the build version.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			goVersion := "unknown"
			if info, ok := debug.ReadBuildInfo(); ok {
				goVersion = info.GoVersion
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "ami-backup %s (commit %s, %s)\n", version, commit, goVersion)
			return err
		},
	}
}
