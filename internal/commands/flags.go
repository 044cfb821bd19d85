package commands

import (
	"time"

	"github.com/chainguard-dev/ami-backup/internal/config"
	"github.com/spf13/cobra"
)

// flags are bound to the root command and shared by every subcommand. They
// take precedence over the config file and the environment.
type flags struct {
	configPath string

	serverName     string
	region         string
	days           int
	waitTimeout    time.Duration
	pollInterval   time.Duration
	waitAvailable  bool
	journalPath    string
	noJournal      bool
	dryRun         bool
	allowEmpty     bool
	pushgatewayURL string
	logLevel       string
	logFormat      string
}

func (f *flags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "Path to a YAML config file")
	pf.StringVarP(&f.serverName, "server-name", "s", "", "Name tag of the instance to back up")
	pf.StringVar(&f.region, "region", "", "AWS region (default: resolved by the AWS SDK)")
	pf.IntVarP(&f.days, "days", "d", config.DefaultRetentionDays, "Delete AMIs older than this many days")
	pf.DurationVar(&f.waitTimeout, "wait-timeout", config.DefaultWaitTimeout, "How long to wait for the new AMI's snapshots")
	pf.DurationVar(&f.pollInterval, "poll-interval", config.DefaultPollInterval, "Delay between AMI state checks")
	pf.BoolVar(&f.waitAvailable, "wait-available", false, "Wait for the new AMI to become available before tagging")
	pf.StringVar(&f.journalPath, "journal", "", "Path of the cleanup journal (default: user cache dir)")
	pf.BoolVar(&f.noJournal, "no-journal", false, "Keep cleanup progress in memory only")
	pf.BoolVar(&f.dryRun, "dry-run", false, "Report expired AMIs without deleting them")
	pf.BoolVar(&f.allowEmpty, "allow-empty", false, "Do not fail when no AMI carries the server's Name tag")
	pf.StringVar(&f.pushgatewayURL, "pushgateway-url", "", "Push run metrics to this Prometheus Pushgateway")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&f.logFormat, "log-format", "", "Log format: text, json, logfmt")
}

// apply overrides cfg with every flag set on the command line.
func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("server-name") {
		cfg.ServerName = f.serverName
	}
	if changed("region") {
		cfg.Region = f.region
	}
	if changed("days") {
		cfg.RetentionDays = f.days
	}
	if changed("wait-timeout") {
		cfg.WaitTimeout = f.waitTimeout
	}
	if changed("poll-interval") {
		cfg.PollInterval = f.pollInterval
	}
	if changed("wait-available") {
		cfg.WaitAvailable = f.waitAvailable
	}
	if changed("journal") {
		cfg.JournalPath = f.journalPath
	}
	if changed("no-journal") {
		cfg.NoJournal = f.noJournal
	}
	if changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if changed("allow-empty") {
		cfg.AllowEmpty = f.allowEmpty
	}
	if changed("pushgateway-url") {
		cfg.PushgatewayURL = f.pushgatewayURL
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
}
