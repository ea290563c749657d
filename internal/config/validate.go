package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAcquire(); err != nil {
		return err
	}
	if err := c.validateSeparate(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAcquire() error {
	if len(c.Acquire.Strategies) == 0 {
		return errors.New("acquire.strategies must list at least one strategy")
	}
	seen := make(map[string]struct{}, len(c.Acquire.Strategies))
	for idx, strategy := range c.Acquire.Strategies {
		if strategy.Name == "" {
			return fmt.Errorf("acquire.strategies[%d]: name or client must be set", idx)
		}
		if _, ok := seen[strategy.Name]; ok {
			return fmt.Errorf("acquire.strategies[%d]: duplicate strategy name %q", idx, strategy.Name)
		}
		seen[strategy.Name] = struct{}{}
	}
	switch c.Acquire.AudioFormat {
	case "wav", "flac", "mp3", "m4a", "opus":
	default:
		return fmt.Errorf("acquire.audio_format: unsupported value %q", c.Acquire.AudioFormat)
	}
	return nil
}

func (c *Config) validateSeparate() error {
	switch c.Separate.Device {
	case "cpu", "cuda", "mps":
		return nil
	default:
		return fmt.Errorf("separate.device must be cpu, cuda, or mps (got %q)", c.Separate.Device)
	}
}

func (c *Config) validatePublish() error {
	switch c.Publish.Backend {
	case "":
		return nil
	case publishBackendS3:
		if c.Publish.S3.Bucket == "" {
			return errors.New("publish.s3.bucket must be set when publish.backend is s3")
		}
		if (c.Publish.S3.AccessKeyID == "") != (c.Publish.S3.SecretAccessKey == "") {
			return errors.New("publish.s3.access_key_id and publish.s3.secret_access_key must be set together")
		}
		return nil
	case publishBackendSCP:
		if c.Publish.SCP.Host == "" {
			return errors.New("publish.scp.host must be set when publish.backend is scp")
		}
		if c.Publish.SCP.Username == "" {
			return errors.New("publish.scp.username must be set when publish.backend is scp")
		}
		if c.Publish.SCP.Password == "" && c.Publish.SCP.KeyFile == "" {
			return errors.New("publish.scp requires password or key_file")
		}
		return nil
	default:
		return fmt.Errorf("publish.backend must be empty, s3, or scp (got %q)", c.Publish.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
