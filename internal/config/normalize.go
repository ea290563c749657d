package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	if err := c.normalizeAcquire(); err != nil {
		return err
	}
	c.normalizeLocate()
	c.normalizeSeparate()
	c.normalizeArchive()
	if err := c.normalizePublish(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
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
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollSeconds <= 0 {
		c.Workflow.QueuePollSeconds = defaultQueuePollSeconds
	}
	if c.Workflow.JobCooldownMillis < 0 {
		c.Workflow.JobCooldownMillis = 0
	}
	if c.Workflow.RetentionHours <= 0 {
		c.Workflow.RetentionHours = defaultRetentionHours
	}
	if c.Workflow.SweepIntervalMinutes <= 0 {
		c.Workflow.SweepIntervalMinutes = defaultSweepIntervalMinutes
	}
}

func (c *Config) normalizeAcquire() error {
	c.Acquire.YtDlpBinary = strings.TrimSpace(c.Acquire.YtDlpBinary)
	if c.Acquire.YtDlpBinary == "" {
		c.Acquire.YtDlpBinary = defaultYtDlpBinary
	}
	if c.Acquire.CookiesFile == "" {
		if value, ok := os.LookupEnv("YTDLP_COOKIES_FILE"); ok {
			c.Acquire.CookiesFile = strings.TrimSpace(value)
		}
	}
	if c.Acquire.CookiesFile != "" {
		expanded, err := expandPath(c.Acquire.CookiesFile)
		if err != nil {
			return fmt.Errorf("acquire.cookies_file: %w", err)
		}
		c.Acquire.CookiesFile = expanded
	}
	if c.Acquire.AttemptTimeoutSeconds <= 0 {
		c.Acquire.AttemptTimeoutSeconds = defaultAttemptTimeoutSeconds
	}
	c.Acquire.AudioFormat = strings.ToLower(strings.TrimSpace(c.Acquire.AudioFormat))
	if c.Acquire.AudioFormat == "" {
		c.Acquire.AudioFormat = defaultAudioFormat
	}
	c.Acquire.FormatSelector = strings.TrimSpace(c.Acquire.FormatSelector)
	if c.Acquire.FormatSelector == "" {
		c.Acquire.FormatSelector = defaultFormatSelector
	}
	if len(c.Acquire.Strategies) == 0 {
		c.Acquire.Strategies = DefaultStrategies()
	}
	for i := range c.Acquire.Strategies {
		s := &c.Acquire.Strategies[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Client = strings.ToLower(strings.TrimSpace(s.Client))
		if s.Name == "" {
			s.Name = s.Client
		}
	}
	return nil
}

func (c *Config) normalizeLocate() {
	c.Locate.SearchPrefix = strings.TrimSpace(c.Locate.SearchPrefix)
	if c.Locate.SearchPrefix == "" {
		c.Locate.SearchPrefix = defaultSearchPrefix
	}
	if c.Locate.TimeoutSeconds <= 0 {
		c.Locate.TimeoutSeconds = defaultLocateTimeoutSeconds
	}
}

func (c *Config) normalizeSeparate() {
	c.Separate.PythonBinary = strings.TrimSpace(c.Separate.PythonBinary)
	if c.Separate.PythonBinary == "" {
		c.Separate.PythonBinary = defaultPythonBinary
	}
	c.Separate.Model = strings.TrimSpace(c.Separate.Model)
	if c.Separate.Model == "" {
		c.Separate.Model = defaultSeparateModel
	}
	c.Separate.Device = strings.ToLower(strings.TrimSpace(c.Separate.Device))
	if c.Separate.Device == "" {
		c.Separate.Device = defaultSeparateDevice
	}
	if c.Separate.Shifts <= 0 {
		c.Separate.Shifts = defaultSeparateShifts
	}
	if c.Separate.TimeoutMinutes <= 0 {
		c.Separate.TimeoutMinutes = defaultSeparateTimeoutMinutes
	}
}

func (c *Config) normalizeArchive() {
	if c.Archive.NameMaxLength <= 0 {
		c.Archive.NameMaxLength = defaultArchiveNameMaxLength
	}
	c.Archive.FallbackName = strings.TrimSpace(c.Archive.FallbackName)
	if c.Archive.FallbackName == "" {
		c.Archive.FallbackName = defaultArchiveFallbackName
	}
}

func (c *Config) normalizePublish() error {
	c.Publish.Backend = strings.ToLower(strings.TrimSpace(c.Publish.Backend))

	s3 := &c.Publish.S3
	s3.Bucket = strings.TrimSpace(s3.Bucket)
	s3.Endpoint = strings.TrimSpace(s3.Endpoint)
	s3.Prefix = strings.Trim(strings.TrimSpace(s3.Prefix), "/")
	s3.Region = strings.TrimSpace(s3.Region)
	if s3.Region == "" {
		s3.Region = defaultS3Region
	}

	scp := &c.Publish.SCP
	scp.Host = strings.TrimSpace(scp.Host)
	scp.Username = strings.TrimSpace(scp.Username)
	if scp.Port <= 0 {
		scp.Port = defaultSCPPort
	}
	if strings.TrimSpace(scp.RemotePath) == "" {
		scp.RemotePath = defaultSCPRemotePath
	}
	if scp.TimeoutSeconds <= 0 {
		scp.TimeoutSeconds = defaultSCPTimeoutSeconds
	}
	var err error
	if scp.KeyFile != "" {
		if scp.KeyFile, err = expandPath(scp.KeyFile); err != nil {
			return fmt.Errorf("publish.scp.key_file: %w", err)
		}
	}
	if scp.KnownHosts != "" {
		if scp.KnownHosts, err = expandPath(scp.KnownHosts); err != nil {
			return fmt.Errorf("publish.scp.known_hosts: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	c.Notifications.RedisAddr = strings.TrimSpace(c.Notifications.RedisAddr)
	c.Notifications.RedisChannel = strings.TrimSpace(c.Notifications.RedisChannel)
	if c.Notifications.RedisChannel == "" {
		c.Notifications.RedisChannel = defaultNotifyRedisChannel
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
