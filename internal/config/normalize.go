package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeMedia()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		c.Paths.MediaDir = defaultMediaDir
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.RetryLimit < 0 {
		c.Workflow.RetryLimit = defaultRetryLimit
	}
	if c.Workflow.RetryDelaySeconds <= 0 {
		c.Workflow.RetryDelaySeconds = defaultRetryDelaySeconds
	}
	if c.Workflow.QueuePollSeconds <= 0 {
		c.Workflow.QueuePollSeconds = defaultQueuePollSeconds
	}
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
}

func (c *Config) normalizeMedia() {
	if len(c.Media.AllowedCodecs) == 0 {
		c.Media.AllowedCodecs = append([]string(nil), defaultAllowedCodecs...)
	}
	for i, codec := range c.Media.AllowedCodecs {
		c.Media.AllowedCodecs[i] = strings.ToLower(strings.TrimSpace(codec))
	}
	for i, client := range c.Media.AllowedClients {
		c.Media.AllowedClients[i] = strings.ToLower(strings.TrimSpace(client))
	}
	if c.Media.DefaultTimelineCount <= 0 {
		c.Media.DefaultTimelineCount = defaultTimelineCount
	}
	c.Media.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Media.PublicBaseURL), "/")
	if c.Media.PublicBaseURL == "" {
		c.Media.PublicBaseURL = strings.TrimRight(defaultPublicBaseURL, "/")
	}
	if strings.TrimSpace(c.Media.FFmpegBinary) == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Media.FFprobeBinary) == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
