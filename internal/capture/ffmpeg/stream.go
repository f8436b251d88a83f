package ffmpeg

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/UtsahaJoshi/The-New-Hires/internal/logging"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

const (
	defaultChunkSize = 64 * 1024
	stderrTailBytes  = 4 * 1024
)

type streamParams struct {
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdout      io.Reader
	stderr      io.Reader
	lock        *flock.Flock
	source      string
	chunkSize   int
	haltTimeout time.Duration
	logger      *slog.Logger
}

type stream struct {
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	lock        *flock.Flock
	source      string
	haltTimeout time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	emit      func([]byte)
	pending   [][]byte
	halting   bool
	stderrBuf *tailBuffer

	done      chan struct{}
	waitErr   error
	closeOnce sync.Once
	closeErr  error
}

func newStream(p streamParams) *stream {
	chunkSize := p.chunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	s := &stream{
		cmd:         p.cmd,
		stdin:       p.stdin,
		lock:        p.lock,
		source:      p.source,
		haltTimeout: p.haltTimeout,
		logger:      p.logger,
		stderrBuf:   &tailBuffer{limit: stderrTailBytes},
		done:        make(chan struct{}),
	}

	var g errgroup.Group
	g.Go(func() error { return s.pump(p.stdout, chunkSize) })
	g.Go(func() error {
		_, err := io.Copy(s.stderrBuf, p.stderr)
		return err
	})
	go func() {
		pumpErr := g.Wait()
		waitErr := s.cmd.Wait()
		s.waitErr = errors.Join(pumpErr, waitErr)

		s.mu.Lock()
		halting := s.halting
		s.mu.Unlock()
		if !halting {
			logging.WarnWithContext(s.logger, "ffmpeg exited before recording stopped", "ffmpeg_exited_early",
				logging.Error(s.waitErr),
				logging.String("stderr", s.stderrBuf.String()),
				logging.String(logging.FieldErrorHint, "check the camera connection and ffmpeg input format"),
				logging.String(logging.FieldImpact, "recording ends at the last delivered chunk"),
			)
		}
		close(s.done)
	}()
	return s
}

func (s *stream) Source() string { return s.source }

// Start attaches emit, flushing output captured since Open first.
func (s *stream) Start(emit func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		if len(s.pending) == 0 {
			return services.Wrap(services.ErrDeviceUnavailable, "ffmpeg", "start", "ffmpeg exited: "+s.stderrBuf.String(), s.waitErr)
		}
	default:
	}
	for _, data := range s.pending {
		emit(data)
	}
	s.pending = nil
	s.emit = emit
	return nil
}

func (s *stream) pump(r io.Reader, chunkSize int) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.dispatch(data)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (s *stream) dispatch(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emit == nil {
		s.pending = append(s.pending, data)
		return
	}
	s.emit(data)
}

// Halt asks ffmpeg to finish the container and waits until its output is
// fully delivered. ffmpeg is killed when the halt timeout or ctx expires.
func (s *stream) Halt(ctx context.Context) error {
	s.mu.Lock()
	alreadyHalting := s.halting
	s.halting = true
	s.mu.Unlock()

	if !alreadyHalting {
		_, _ = io.WriteString(s.stdin, "q")
		_ = s.stdin.Close()
	}

	var timeout <-chan time.Time
	if s.haltTimeout > 0 {
		timer := time.NewTimer(s.haltTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var haltErr error
	select {
	case <-s.done:
	case <-timeout:
		s.kill()
		<-s.done
		haltErr = services.Wrap(nil, "ffmpeg", "halt", "ffmpeg did not finish in time; recording may be truncated", nil)
	case <-ctx.Done():
		s.kill()
		<-s.done
		haltErr = services.Wrap(nil, "ffmpeg", "halt", "halt cancelled", ctx.Err())
	}

	s.mu.Lock()
	s.emit = nil
	s.mu.Unlock()

	if haltErr != nil {
		return haltErr
	}
	if s.waitErr != nil {
		return services.Wrap(nil, "ffmpeg", "halt", strings.TrimSpace(s.stderrBuf.String()), s.waitErr)
	}
	return nil
}

// Close stops ffmpeg if it is still running and releases the device lock.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.halting = true
		s.emit = nil
		s.pending = nil
		s.mu.Unlock()

		select {
		case <-s.done:
		default:
			_ = s.stdin.Close()
			s.kill()
			<-s.done
		}
		if s.lock != nil {
			if err := s.lock.Unlock(); err != nil {
				s.closeErr = services.Wrap(nil, "ffmpeg", "close", "release device lock", err)
			}
		}
	})
	return s.closeErr
}

func (s *stream) kill() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = b.data[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.data))
}
