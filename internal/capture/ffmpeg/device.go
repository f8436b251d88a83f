// Package ffmpeg implements capture.Device by running ffmpeg against a
// video4linux camera and an ALSA or PulseAudio source, streaming the encoded
// container from ffmpeg's stdout.
package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/UtsahaJoshi/The-New-Hires/internal/capture"
	"github.com/UtsahaJoshi/The-New-Hires/internal/config"
	"github.com/UtsahaJoshi/The-New-Hires/internal/deps"
	"github.com/UtsahaJoshi/The-New-Hires/internal/devices"
	"github.com/UtsahaJoshi/The-New-Hires/internal/logging"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

// Device opens ffmpeg capture streams.
type Device struct {
	binary      string
	videoDevice string
	videoFormat string
	audioDevice string
	audioFormat string
	videoCodec  string
	audioCodec  string
	container   string
	chunkSize   int
	haltTimeout time.Duration
	lockDir     string
	logger      *slog.Logger
}

// New builds a Device from the capture section of cfg.
func New(cfg *config.Config, logger *slog.Logger) *Device {
	c := cfg.Capture
	return &Device{
		binary:      c.FFmpegBinary,
		videoDevice: c.VideoDevice,
		videoFormat: c.VideoFormat,
		audioDevice: c.AudioDevice,
		audioFormat: c.AudioFormat,
		videoCodec:  c.VideoCodec,
		audioCodec:  c.AudioCodec,
		container:   c.Container,
		chunkSize:   c.ChunkSize,
		haltTimeout: cfg.HaltTimeout(),
		lockDir:     cfg.Paths.LockDir,
		logger:      logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

type target struct {
	video string
	audio string
}

func (d *Device) resolve(constraints capture.Constraints) target {
	var t target
	if constraints.Video {
		t.video = firstNonEmpty(constraints.VideoDevice, d.videoDevice)
	}
	if constraints.Audio {
		t.audio = firstNonEmpty(constraints.AudioDevice, d.audioDevice)
	}
	return t
}

// CommandArgs returns the ffmpeg arguments used for constraints.
func (d *Device) CommandArgs(constraints capture.Constraints) []string {
	return d.buildArgs(d.resolve(constraints))
}

func (d *Device) buildArgs(t target) []string {
	args := []string{"-hide_banner", "-nostats", "-loglevel", "error"}
	if t.video != "" {
		args = append(args, "-f", d.videoFormat, "-i", t.video)
	}
	if t.audio != "" {
		args = append(args, "-f", d.audioFormat, "-i", t.audio)
	}
	if t.video != "" {
		args = append(args, "-c:v", d.videoCodec)
		if d.videoCodec == "libvpx" || d.videoCodec == "libvpx-vp9" {
			args = append(args, "-deadline", "realtime", "-cpu-used", "8")
		}
	} else {
		args = append(args, "-vn")
	}
	if t.audio != "" {
		args = append(args, "-c:a", d.audioCodec)
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-f", d.container, "pipe:1")
	return args
}

// Open probes the requested nodes, takes the per-device lock and starts
// ffmpeg. Output produced before Stream.Start is held and delivered first.
func (d *Device) Open(ctx context.Context, constraints capture.Constraints) (capture.Stream, error) {
	t := d.resolve(constraints)
	if t.video == "" && t.audio == "" {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "ffmpeg", "open", "no capture device configured", nil)
	}

	bin := deps.ResolveFFmpeg(d.binary)
	if !bin.Available {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "ffmpeg", "open", bin.Detail, nil)
	}

	for _, node := range []string{t.video, t.audio} {
		if node == "" || !devices.IsPath(node) {
			continue
		}
		if err := devices.Probe(node); err != nil {
			return nil, err
		}
	}

	lock, err := d.lock(t)
	if err != nil {
		return nil, err
	}
	// From here every failure path must unlock.
	fail := func(err error) (capture.Stream, error) {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return fail(services.Wrap(services.ErrDeviceUnavailable, "ffmpeg", "open", "acquisition cancelled", err))
	}

	args := d.buildArgs(t)
	cmd := exec.Command(bin.Command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fail(services.Wrap(nil, "ffmpeg", "open", "stdin pipe", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fail(services.Wrap(nil, "ffmpeg", "open", "stdout pipe", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fail(services.Wrap(nil, "ffmpeg", "open", "stderr pipe", err))
	}
	if err := cmd.Start(); err != nil {
		if os.IsPermission(err) {
			return fail(services.Wrap(services.ErrPermissionDenied, "ffmpeg", "open", "start ffmpeg", err))
		}
		return fail(services.Wrap(services.ErrDeviceUnavailable, "ffmpeg", "open", "start ffmpeg", err))
	}

	source := firstNonEmpty(t.video, t.audio)
	d.logger.Debug("ffmpeg capture started",
		logging.String("source", source),
		logging.String("command", bin.Command+" "+strings.Join(args, " ")),
		logging.Int("pid", cmd.Process.Pid),
	)

	return newStream(streamParams{
		cmd:         cmd,
		stdin:       stdin,
		stdout:      stdout,
		stderr:      stderr,
		lock:        lock,
		source:      source,
		chunkSize:   d.chunkSize,
		haltTimeout: d.haltTimeout,
		logger:      d.logger,
	}), nil
}

// lock takes an exclusive advisory lock for the capture node so two
// recorders never share one camera.
func (d *Device) lock(t target) (*flock.Flock, error) {
	if strings.TrimSpace(d.lockDir) == "" {
		return nil, nil
	}
	if err := os.MkdirAll(d.lockDir, 0o755); err != nil {
		return nil, services.Wrap(nil, "ffmpeg", "lock", "create lock directory", err)
	}
	node := firstNonEmpty(t.video, t.audio)
	lock := flock.New(filepath.Join(d.lockDir, LockName(node)))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "ffmpeg", "lock", node, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "ffmpeg", "lock", fmt.Sprintf("%s is in use by another recorder", node), nil)
	}
	return lock, nil
}

// LockName maps a device name to its lock file name.
func LockName(device string) string {
	name := strings.Trim(strings.TrimSpace(device), "/")
	name = strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(name)
	if name == "" {
		name = "default"
	}
	return name + ".lock"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
