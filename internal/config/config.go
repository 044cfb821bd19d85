// Package config holds the runtime configuration of an ami-backup run.
//
// Values are layered: defaults, then a YAML file, then AMI_BACKUP_*
// environment variables, then command line flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gosimple/slug"
)

// Config configures a backup run.
type Config struct {
	// Required
	ServerName string `yaml:"server_name"`

	// Optional with defaults
	Region        string        `yaml:"region"`         // default: resolved by the AWS SDK
	RetentionDays int           `yaml:"retention_days"` // default: 7
	WaitTimeout   time.Duration `yaml:"wait_timeout"`   // default: 10m
	PollInterval  time.Duration `yaml:"poll_interval"`  // default: 5s
	WaitAvailable bool          `yaml:"wait_available"`

	// Cleanup journal; default: <user cache dir>/ami-backup/<server>.db
	JournalPath string `yaml:"journal_path"`
	NoJournal   bool   `yaml:"no_journal"`

	// Operational
	DryRun     bool `yaml:"dry_run"`
	AllowEmpty bool `yaml:"allow_empty"`

	// Observability
	PushgatewayURL string `yaml:"pushgateway_url"`
	LogLevel       string `yaml:"log_level"`  // default: info
	LogFormat      string `yaml:"log_format"` // default: text
}

const (
	DefaultRetentionDays = 7
	DefaultWaitTimeout   = 10 * time.Minute
	DefaultPollInterval  = 5 * time.Second
)

// Default returns a Config holding every default that an explicit zero
// must be able to override. Load layers the file and environment on top.
func Default() *Config {
	return &Config{RetentionDays: DefaultRetentionDays}
}

// ApplyDefaults fills every unset optional value whose zero value is
// meaningless. RetentionDays is seeded by Default instead, so an explicit 0
// reaches Validate.
func (c *Config) ApplyDefaults() {
	if c.WaitTimeout == 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.JournalPath == "" && !c.NoJournal && c.ServerName != "" {
		c.JournalPath = DefaultJournalPath(c.ServerName)
	}
}

// DefaultJournalPath is where the journal for serverName lives unless
// configured otherwise.
func DefaultJournalPath(serverName string) string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "ami-backup", slug.Make(serverName)+".db")
}

// Validate checks a Config after ApplyDefaults.
func (c *Config) Validate() error {
	if c.ServerName == "" {
		return fmt.Errorf("server_name is required")
	}
	// A zero day window would expire the AMI this very run creates.
	if c.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be at least 1, got %d", c.RetentionDays)
	}
	if c.WaitTimeout < 0 {
		return fmt.Errorf("wait_timeout must not be negative")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative")
	}
	if c.PollInterval > c.WaitTimeout {
		return fmt.Errorf("poll_interval (%s) must not exceed wait_timeout (%s)", c.PollInterval, c.WaitTimeout)
	}
	if c.PushgatewayURL != "" {
		u, err := url.Parse(c.PushgatewayURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("pushgateway_url %q is not an absolute URL", c.PushgatewayURL)
		}
	}
	return nil
}
