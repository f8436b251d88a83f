package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/UtsahaJoshi/The-New-Hires/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockDir = filepath.Join(base, "locks")
	cfgVal.Paths.SessionFile = filepath.Join(base, "session.json")
	cfgVal.Capture.VideoDevice = filepath.Join(base, "dev", "video0")
	cfgVal.Submission.BaseURL = "http://127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSessionUser writes a stored user record with the given id.
func WithSessionUser(id string) ConfigOption {
	return func(b *configBuilder) {
		WriteSessionFile(b.t, b.cfg.Paths.SessionFile, id)
	}
}

// WithBaseURL points submission at url, typically an httptest server.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Submission.BaseURL = url
	}
}

// WithVideoNode creates an accessible placeholder for the configured video
// device node.
func WithVideoNode() ConfigOption {
	return func(b *configBuilder) {
		path := b.cfg.Capture.VideoDevice
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			b.t.Fatalf("mkdir dev dir: %v", err)
		}
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			b.t.Fatalf("write video node: %v", err)
		}
	}
}

// WithFFmpegScript installs script as the ffmpeg binary for the config.
func WithFFmpegScript(script string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.FFmpegBinary = WriteScript(b.t, filepath.Join(b.baseDir, "bin"), "ffmpeg", script)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, binDir, name, "#!/bin/sh\nexit 0\n")
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
