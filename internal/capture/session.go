package capture

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UtsahaJoshi/The-New-Hires/internal/logging"
	"github.com/UtsahaJoshi/The-New-Hires/internal/recording"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

// ChunkSink consumes recorded chunks. *recording.Buffer satisfies it.
type ChunkSink interface {
	Append(recording.Chunk) error
}

// Option configures Acquire.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	attemptID string
	timeout   time.Duration
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAttemptID tags the session's log lines.
func WithAttemptID(id string) Option {
	return func(o *options) { o.attemptID = id }
}

// WithTimeout bounds device acquisition. Zero waits indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Session is one active capture bound to a single Stream.
type Session struct {
	stream    Stream
	logger    *slog.Logger
	attemptID string

	mu        sync.Mutex
	sink      ChunkSink
	recording bool
	stopped   bool
	delivered int

	active      atomic.Bool
	releaseOnce sync.Once
	releaseErr  error
}

// Acquire opens dev and returns an active Session. On failure no hardware
// is held and the error matches services.ErrPermissionDenied or
// services.ErrDeviceUnavailable.
func Acquire(ctx context.Context, dev Device, constraints Constraints, opts ...Option) (*Session, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if dev == nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire", "no capture device configured", nil)
	}
	if !constraints.Video && !constraints.Audio {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire", "no tracks requested", nil)
	}

	acquireCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	stream, err := dev.Open(acquireCtx, constraints)
	if err != nil {
		return nil, classifyOpenError(acquireCtx, err)
	}
	if stream == nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire", "device returned no stream", nil)
	}

	s := &Session{
		stream:    stream,
		logger:    logging.NewComponentLogger(o.logger, "capture"),
		attemptID: o.attemptID,
	}
	if s.attemptID != "" {
		s.logger = s.logger.With(logging.String(logging.FieldAttemptID, s.attemptID))
	}
	s.active.Store(true)
	s.logger.Info("capture device acquired",
		logging.String(logging.FieldEventType, "capture_acquired"),
		logging.String("source", stream.Source()),
	)
	return s, nil
}

func classifyOpenError(ctx context.Context, err error) error {
	switch services.Classify(err) {
	case services.KindPermissionDenied, services.KindDeviceUnavailable:
		return err
	}
	if ctx.Err() != nil {
		return services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire", "device did not respond", err)
	}
	return services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire", "open device", err)
}

// Active reports whether the session still holds hardware.
func (s *Session) Active() bool {
	return s != nil && s.active.Load()
}

// Source describes the live stream used as the preview surface.
func (s *Session) Source() string {
	if s == nil {
		return ""
	}
	return s.stream.Source()
}

// Delivered reports the number of chunks forwarded to the sink.
func (s *Session) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

// StartRecording registers sink and begins emission.
func (s *Session) StartRecording(sink ChunkSink) error {
	if sink == nil {
		return services.Wrap(services.ErrInvalidState, "capture", "start recording", "no chunk sink", nil)
	}
	s.mu.Lock()
	if !s.active.Load() || s.stopped {
		s.mu.Unlock()
		return services.Wrap(services.ErrInvalidState, "capture", "start recording", "session released", nil)
	}
	if s.recording {
		s.mu.Unlock()
		return services.Wrap(services.ErrInvalidState, "capture", "start recording", "already recording", nil)
	}
	s.sink = sink
	s.recording = true
	s.mu.Unlock()

	if err := s.stream.Start(s.deliver); err != nil {
		s.mu.Lock()
		s.sink = nil
		s.recording = false
		s.mu.Unlock()
		return services.Wrap(services.ErrDeviceUnavailable, "capture", "start recording", "start stream", err)
	}
	return nil
}

// deliver forwards one chunk while the sink is attached. Chunks arriving
// after the sink is detached are dropped.
func (s *Session) deliver(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink == nil {
		return
	}
	if err := s.sink.Append(recording.Chunk{Data: data, At: time.Now()}); err != nil {
		s.logger.Warn("chunk rejected by recording buffer",
			logging.Error(err),
			logging.String(logging.FieldEventType, "chunk_rejected"),
			logging.String(logging.FieldErrorHint, "recording was finalized before the stream halted"),
			logging.String(logging.FieldImpact, "late chunk dropped"),
		)
		return
	}
	s.delivered++
}

// Stop halts emission, detaches the sink and releases the hardware. Every
// chunk delivered before Stop returns was emitted before the halt completed.
// Calling Stop on a stopped or released session is a no-op.
func (s *Session) Stop(ctx context.Context) (err error) {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.stopped || !s.active.Load() {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	wasRecording := s.recording
	s.mu.Unlock()

	defer func() {
		if releaseErr := s.Release(); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	if wasRecording {
		if haltErr := s.stream.Halt(ctx); haltErr != nil {
			err = services.Wrap(nil, "capture", "stop", "halt stream", haltErr)
		}
	}
	s.detach()
	return err
}

// Release abandons the stream without halting and frees the hardware. Only
// the first call does work; later calls return the first result.
func (s *Session) Release() error {
	if s == nil {
		return nil
	}
	s.releaseOnce.Do(func() {
		s.detach()
		s.active.Store(false)
		if err := s.stream.Close(); err != nil {
			s.releaseErr = services.Wrap(nil, "capture", "release", "close stream", err)
			logging.WarnWithContext(s.logger, "capture release reported an error", "capture_release_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "unplug and reconnect the camera if it stays busy"),
				logging.String(logging.FieldImpact, "device may remain busy until the process exits"),
			)
			return
		}
		s.logger.Info("capture device released",
			logging.String(logging.FieldEventType, "capture_released"),
			logging.Int("chunks", s.Delivered()),
		)
	})
	return s.releaseErr
}

func (s *Session) detach() {
	s.mu.Lock()
	s.sink = nil
	s.recording = false
	s.mu.Unlock()
}
