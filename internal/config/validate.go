package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateSubmission(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.VideoDevice == "" && c.Capture.AudioDevice == "" {
		return errors.New("capture.video_device or capture.audio_device must be set")
	}
	if c.Capture.ChunkSize < 0 || c.Capture.ChunkSize > maxChunkSize {
		return fmt.Errorf("capture.chunk_size must be between 1 and %d bytes", maxChunkSize)
	}
	if c.Capture.AcquireTimeoutSeconds < 0 {
		return errors.New("capture.acquire_timeout_seconds must not be negative (0 disables the timeout)")
	}
	if c.Capture.HaltTimeoutSeconds < 0 {
		return errors.New("capture.halt_timeout_seconds must be positive")
	}
	if !strings.Contains(c.Capture.ContentType, "/") {
		return fmt.Errorf("capture.content_type %q is not a media type", c.Capture.ContentType)
	}
	return nil
}

func (c *Config) validateSubmission() error {
	if c.Submission.BaseURL == "" {
		return errors.New("submission.base_url must be set (or export RETRO_BASE_URL)")
	}
	parsed, err := url.Parse(c.Submission.BaseURL)
	if err != nil {
		return fmt.Errorf("submission.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("submission.base_url must use http or https, got %q", c.Submission.BaseURL)
	}
	if c.Submission.TimeoutSeconds < 0 {
		return errors.New("submission.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}
