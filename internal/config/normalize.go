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
	c.normalizeCapture()
	c.normalizeSubmission()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("RETRO_SESSION_FILE"); ok && strings.TrimSpace(value) != "" {
		c.Paths.SessionFile = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if strings.TrimSpace(c.Paths.LockDir) == "" {
		c.Paths.LockDir = defaultLockDir
	}
	if strings.TrimSpace(c.Paths.SessionFile) == "" {
		c.Paths.SessionFile = defaultSessionFile
	}

	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LockDir, err = expandPath(c.Paths.LockDir); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	if c.Paths.SessionFile, err = expandPath(c.Paths.SessionFile); err != nil {
		return fmt.Errorf("paths.session_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.FFmpegBinary = withDefault(c.Capture.FFmpegBinary, defaultFFmpegBinary)
	c.Capture.VideoDevice = strings.TrimSpace(c.Capture.VideoDevice)
	c.Capture.VideoFormat = strings.ToLower(withDefault(c.Capture.VideoFormat, defaultVideoFormat))
	c.Capture.AudioDevice = strings.TrimSpace(c.Capture.AudioDevice)
	c.Capture.AudioFormat = strings.ToLower(withDefault(c.Capture.AudioFormat, defaultAudioFormat))
	c.Capture.VideoCodec = withDefault(c.Capture.VideoCodec, defaultVideoCodec)
	c.Capture.AudioCodec = withDefault(c.Capture.AudioCodec, defaultAudioCodec)
	c.Capture.Container = strings.ToLower(withDefault(c.Capture.Container, defaultContainer))
	c.Capture.ContentType = strings.ToLower(withDefault(c.Capture.ContentType, defaultContentType))
	if c.Capture.ChunkSize == 0 {
		c.Capture.ChunkSize = defaultChunkSize
	}
	if c.Capture.HaltTimeoutSeconds == 0 {
		c.Capture.HaltTimeoutSeconds = defaultHaltTimeoutSeconds
	}
}

func (c *Config) normalizeSubmission() {
	if value, ok := os.LookupEnv("RETRO_BASE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Submission.BaseURL = value
	}
	if c.Submission.APIToken == "" {
		if value, ok := os.LookupEnv("RETRO_API_TOKEN"); ok {
			c.Submission.APIToken = value
		}
	}
	c.Submission.BaseURL = strings.TrimRight(strings.TrimSpace(c.Submission.BaseURL), "/")
	c.Submission.APIToken = strings.TrimSpace(c.Submission.APIToken)
	c.Submission.UploadPath = withDefault(c.Submission.UploadPath, defaultSubmissionPath)
	if !strings.HasPrefix(c.Submission.UploadPath, "/") {
		c.Submission.UploadPath = "/" + c.Submission.UploadPath
	}
	c.Submission.FieldName = withDefault(c.Submission.FieldName, defaultSubmissionField)
	if c.Submission.TimeoutSeconds == 0 {
		c.Submission.TimeoutSeconds = defaultSubmissionTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(withDefault(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(withDefault(c.Logging.Level, defaultLogLevel))
}

func withDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
