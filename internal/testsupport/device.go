package testsupport

import (
	"context"
	"errors"
	"sync"

	"github.com/UtsahaJoshi/The-New-Hires/internal/capture"
)

// FakeDevice is an in-memory capture.Device that counts acquisitions and
// releases so tests can assert that hardware is never double-held.
type FakeDevice struct {
	mu        sync.Mutex
	openErr   error
	gate      chan struct{}
	opens     int
	releases  int
	maxActive int
	streams   []*FakeStream
	lastReq   capture.Constraints
}

// NewFakeDevice returns a device whose Open succeeds immediately.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{}
}

// FailWith makes subsequent Open calls return err. Pass nil to recover.
func (d *FakeDevice) FailWith(err error) {
	d.mu.Lock()
	d.openErr = err
	d.mu.Unlock()
}

// Hold makes subsequent Open calls block until the returned function is
// called or the caller's context ends.
func (d *FakeDevice) Hold() (release func()) {
	gate := make(chan struct{})
	d.mu.Lock()
	d.gate = gate
	d.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			if d.gate == gate {
				d.gate = nil
			}
			d.mu.Unlock()
			close(gate)
		})
	}
}

// Open implements capture.Device.
func (d *FakeDevice) Open(ctx context.Context, constraints capture.Constraints) (capture.Stream, error) {
	d.mu.Lock()
	gate := d.gate
	d.lastReq = constraints
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opens++
	if active := d.opens - d.releases; active > d.maxActive {
		d.maxActive = active
	}
	stream := &FakeStream{dev: d, source: "fake-camera"}
	d.streams = append(d.streams, stream)
	return stream, nil
}

func (d *FakeDevice) release() {
	d.mu.Lock()
	d.releases++
	d.mu.Unlock()
}

// Opens reports successful acquisitions.
func (d *FakeDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Releases reports closed streams.
func (d *FakeDevice) Releases() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releases
}

// Active reports streams opened but not yet closed.
func (d *FakeDevice) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens - d.releases
}

// MaxActive reports the highest number of simultaneously open streams.
func (d *FakeDevice) MaxActive() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxActive
}

// LastConstraints returns the constraints of the most recent Open call.
func (d *FakeDevice) LastConstraints() capture.Constraints {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastReq
}

// Last returns the most recently opened stream, or nil.
func (d *FakeDevice) Last() *FakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// FakeStream is a capture.Stream driven by the test through Emit.
type FakeStream struct {
	dev    *FakeDevice
	source string

	mu       sync.Mutex
	emit     func([]byte)
	started  bool
	halted   bool
	closed   bool
	startErr error
	haltErr  error
	closeErr error
}

// FailStart makes Start return err.
func (s *FakeStream) FailStart(err error) {
	s.mu.Lock()
	s.startErr = err
	s.mu.Unlock()
}

// FailHalt makes Halt return err.
func (s *FakeStream) FailHalt(err error) {
	s.mu.Lock()
	s.haltErr = err
	s.mu.Unlock()
}

// FailClose makes Close return err. The hardware is still counted as released.
func (s *FakeStream) FailClose(err error) {
	s.mu.Lock()
	s.closeErr = err
	s.mu.Unlock()
}

func (s *FakeStream) Source() string { return s.source }

func (s *FakeStream) Start(emit func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	if s.startErr != nil {
		return s.startErr
	}
	s.emit = emit
	s.started = true
	return nil
}

// Emit delivers data as the next chunk. It reports false when the stream is
// not emitting.
func (s *FakeStream) Emit(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.halted || s.closed || s.emit == nil {
		return false
	}
	s.emit(data)
	return true
}

func (s *FakeStream) Halt(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halted = true
	s.emit = nil
	return s.haltErr
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.emit = nil
	err := s.closeErr
	s.mu.Unlock()
	s.dev.release()
	return err
}

// Closed reports whether the hardware was released.
func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Halted reports whether Halt ran.
func (s *FakeStream) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}
