package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		problems = append(problems, "paths.media_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must be set")
	}
	if c.Paths.MediaDir != "" && c.Paths.MediaDir == c.Paths.DataDir {
		problems = append(problems, "paths.media_dir and paths.data_dir must differ")
	}
	if c.Workflow.RetryLimit > 20 {
		problems = append(problems, "workflow.retry_limit must be 20 or fewer")
	}
	if c.Workflow.Workers > 64 {
		problems = append(problems, "workflow.workers must be 64 or fewer")
	}
	switch c.Logging.Format {
	case "console", "json", "":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
