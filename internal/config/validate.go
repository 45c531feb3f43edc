package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate checks config values for consistency. It is called by Load after
// normalization, and again by the daemon before startup checks run.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.DataDir == "" {
		errs = append(errs, errors.New("paths.data_dir must not be empty"))
	}
	if c.Paths.LogDir == "" {
		errs = append(errs, errors.New("paths.log_dir must not be empty"))
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}

	switch c.Embedding.Provider {
	case "local":
	case "ollama":
		if c.Embedding.OllamaHost == "" {
			errs = append(errs, errors.New("embedding.ollama_host is required for the ollama provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("embedding.provider: unsupported value %q", c.Embedding.Provider))
	}

	if c.Correlation.DiscoveryConfidence > 1 {
		errs = append(errs, fmt.Errorf("correlation.discovery_confidence must be in (0, 1], got %v", c.Correlation.DiscoveryConfidence))
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"daemon.correlation_schedule": c.Daemon.CorrelationSchedule,
		"daemon.cleanup_schedule":     c.Daemon.CleanupSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}
