package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and state file configuration.
type Paths struct {
	LogDir      string `toml:"log_dir"`
	LockDir     string `toml:"lock_dir"`
	SessionFile string `toml:"session_file"`
}

// Capture contains configuration for the ffmpeg-backed capture device.
type Capture struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
	VideoDevice  string `toml:"video_device"`
	VideoFormat  string `toml:"video_format"`
	AudioDevice  string `toml:"audio_device"`
	AudioFormat  string `toml:"audio_format"`
	VideoCodec   string `toml:"video_codec"`
	AudioCodec   string `toml:"audio_codec"`
	Container    string `toml:"container"`
	ContentType  string `toml:"content_type"`
	// ChunkSize bounds the bytes delivered per chunk to the recording buffer.
	ChunkSize int `toml:"chunk_size"`
	// AcquireTimeoutSeconds of 0 waits for the device indefinitely.
	AcquireTimeoutSeconds int `toml:"acquire_timeout_seconds"`
	HaltTimeoutSeconds    int `toml:"halt_timeout_seconds"`
}

// Submission contains configuration for the upload endpoint.
type Submission struct {
	BaseURL        string `toml:"base_url"`
	UploadPath     string `toml:"upload_path"`
	FieldName      string `toml:"field_name"`
	APIToken       string `toml:"api_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for retro.
//
// Configuration sections by subsystem:
//   - Paths: log directory, device lock directory, stored user session
//   - Capture: ffmpeg binary, input devices, codecs and chunking
//   - Submission: upload endpoint and credentials
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Capture    Capture    `toml:"capture"`
	Submission Submission `toml:"submission"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/retro/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("retro.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and device lock directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.LockDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AcquireTimeout returns the device acquisition deadline; zero means none.
func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Capture.AcquireTimeoutSeconds) * time.Second
}

// HaltTimeout returns how long a stop waits for the encoder to flush.
func (c *Config) HaltTimeout() time.Duration {
	return time.Duration(c.Capture.HaltTimeoutSeconds) * time.Second
}

// SubmissionTimeout returns the per-request upload timeout.
func (c *Config) SubmissionTimeout() time.Duration {
	return time.Duration(c.Submission.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
