package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding the config file, one per field.
const (
	EnvServerName     = "AMI_BACKUP_SERVER_NAME"
	EnvRegion         = "AMI_BACKUP_REGION"
	EnvRetentionDays  = "AMI_BACKUP_RETENTION_DAYS"
	EnvWaitTimeout    = "AMI_BACKUP_WAIT_TIMEOUT"
	EnvPollInterval   = "AMI_BACKUP_POLL_INTERVAL"
	EnvWaitAvailable  = "AMI_BACKUP_WAIT_AVAILABLE"
	EnvJournalPath    = "AMI_BACKUP_JOURNAL_PATH"
	EnvNoJournal      = "AMI_BACKUP_NO_JOURNAL"
	EnvDryRun         = "AMI_BACKUP_DRY_RUN"
	EnvAllowEmpty     = "AMI_BACKUP_ALLOW_EMPTY"
	EnvPushgatewayURL = "AMI_BACKUP_PUSHGATEWAY_URL"
	EnvLogLevel       = "AMI_BACKUP_LOG_LEVEL"
	EnvLogFormat      = "AMI_BACKUP_LOG_FORMAT"
)

// Load starts from Default, reads the YAML file at path, if any, and applies
// environment overrides looked up with getenv. ApplyDefaults is left to the
// caller so flags can be layered in between.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	texts := map[string]*string{
		EnvServerName:     &c.ServerName,
		EnvRegion:         &c.Region,
		EnvJournalPath:    &c.JournalPath,
		EnvPushgatewayURL: &c.PushgatewayURL,
		EnvLogLevel:       &c.LogLevel,
		EnvLogFormat:      &c.LogFormat,
	}
	for key, field := range texts {
		if v := getenv(key); v != "" {
			*field = v
		}
	}

	if v := getenv(EnvRetentionDays); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRetentionDays, v, err)
		}
		c.RetentionDays = days
	}

	durations := map[string]*time.Duration{
		EnvWaitTimeout:  &c.WaitTimeout,
		EnvPollInterval: &c.PollInterval,
	}
	for key, field := range durations {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*field = d
		}
	}

	bools := map[string]*bool{
		EnvWaitAvailable: &c.WaitAvailable,
		EnvNoJournal:     &c.NoJournal,
		EnvDryRun:        &c.DryRun,
		EnvAllowEmpty:    &c.AllowEmpty,
	}
	for key, field := range bools {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*field = b
		}
	}
	return nil
}
