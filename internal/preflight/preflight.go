package preflight

import (
	"context"
	"fmt"

	"github.com/UtsahaJoshi/The-New-Hires/internal/config"
	"github.com/UtsahaJoshi/The-New-Hires/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Blocking reports whether the result should stop a recording.
func (r Result) Blocking() bool { return !r.Passed && !r.Optional }

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Lock directory", cfg.Paths.LockDir),
	}

	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, fromStatus(status))
	}

	if cfg.Capture.VideoDevice != "" {
		results = append(results, CheckDevice("Camera", cfg.Capture.VideoDevice))
	}
	if cfg.Capture.AudioDevice != "" {
		results = append(results, CheckDevice("Microphone", cfg.Capture.AudioDevice))
	}

	identity := CheckIdentity(ctx, cfg.Paths.SessionFile)
	// --user can stand in for the session file.
	identity.Optional = true
	results = append(results, identity)

	results = append(results, CheckEndpoint(ctx, cfg.Submission.BaseURL, cfg.Submission.APIToken))
	return results
}

// Blocking returns the failed required checks.
func Blocking(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Blocking() {
			out = append(out, r)
		}
	}
	return out
}

// CheckSystemDeps evaluates the external binaries retro shells out to.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return []deps.Status{deps.ResolveFFmpeg(cfg.Capture.FFmpegBinary)}
}

func fromStatus(status deps.Status) Result {
	result := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
	if status.Available {
		result.Detail = fmt.Sprintf("%s (found)", status.Command)
	} else {
		result.Detail = status.Detail
	}
	return result
}
