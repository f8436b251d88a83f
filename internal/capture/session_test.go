package capture_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/UtsahaJoshi/The-New-Hires/internal/capture"
	"github.com/UtsahaJoshi/The-New-Hires/internal/recording"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
	"github.com/UtsahaJoshi/The-New-Hires/internal/testsupport"
)

func TestAcquireRecordStopReleasesHardware(t *testing.T) {
	dev := testsupport.NewFakeDevice()
	session, err := capture.Acquire(context.Background(), dev, capture.AudioVideo(), capture.WithAttemptID("a1"))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !session.Active() || dev.Active() != 1 {
		t.Fatalf("expected one active session, device active=%d", dev.Active())
	}
	if got := dev.LastConstraints(); !got.Video || !got.Audio {
		t.Fatalf("expected audio+video constraints, got %+v", got)
	}

	buf := recording.NewBuffer("a1")
	if err := session.StartRecording(buf); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	stream := dev.Last()
	for _, c := range []string{"c1", "c2", "c3"} {
		if !stream.Emit([]byte(c)) {
			t.Fatalf("emit %s rejected", c)
		}
	}

	if err := session.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if session.Active() || dev.Active() != 0 || !stream.Closed() || !stream.Halted() {
		t.Fatalf("expected hardware released after stop (active=%d closed=%v)", dev.Active(), stream.Closed())
	}
	if session.Delivered() != 3 || buf.Len() != 3 {
		t.Fatalf("expected 3 delivered chunks, got %d/%d", session.Delivered(), buf.Len())
	}
	if stream.Emit([]byte("late")) {
		t.Fatal("expected emission to stop after Stop")
	}
	if buf.Len() != 3 {
		t.Fatalf("late chunk leaked into buffer: %d", buf.Len())
	}
}

func TestStopIsNoOpWhenAlreadyStopped(t *testing.T) {
	dev := testsupport.NewFakeDevice()
	session, err := capture.Acquire(context.Background(), dev, capture.AudioVideo())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := session.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := session.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop should be a no-op, got %v", err)
	}
	if err := session.Release(); err != nil {
		t.Fatalf("Release after Stop: %v", err)
	}
	if dev.Releases() != 1 {
		t.Fatalf("expected exactly one release, got %d", dev.Releases())
	}
}

func TestStopReleasesEvenWhenHaltFails(t *testing.T) {
	dev := testsupport.NewFakeDevice()
	session, err := capture.Acquire(context.Background(), dev, capture.AudioVideo())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := session.StartRecording(recording.NewBuffer("a")); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	haltErr := errors.New("encoder wedged")
	dev.Last().FailHalt(haltErr)

	err = session.Stop(context.Background())
	if !errors.Is(err, haltErr) {
		t.Fatalf("expected halt error surfaced, got %v", err)
	}
	if dev.Active() != 0 {
		t.Fatalf("expected release on error path, active=%d", dev.Active())
	}
}

func TestReleaseAbandonsWithoutHalting(t *testing.T) {
	dev := testsupport.NewFakeDevice()
	session, err := capture.Acquire(context.Background(), dev, capture.AudioVideo())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	buf := recording.NewBuffer("a")
	if err := session.StartRecording(buf); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	stream := dev.Last()
	stream.Emit([]byte("x"))

	if err := session.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if stream.Halted() {
		t.Fatal("expected Release not to halt")
	}
	if !stream.Closed() || session.Active() {
		t.Fatal("expected hardware released")
	}
	if err := session.StartRecording(buf); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState after release, got %v", err)
	}
}

func TestReleaseReportsCloseErrorOnce(t *testing.T) {
	dev := testsupport.NewFakeDevice()
	session, err := capture.Acquire(context.Background(), dev, capture.AudioVideo())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	closeErr := errors.New("device busy")
	dev.Last().FailClose(closeErr)

	if err := session.Release(); !errors.Is(err, closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if err := session.Release(); !errors.Is(err, closeErr) {
		t.Fatalf("expected repeated release to return the first result, got %v", err)
	}
	if dev.Releases() != 1 {
		t.Fatalf("expected one release, got %d", dev.Releases())
	}
}

func TestStartRecordingTwiceIsRejected(t *testing.T) {
	dev := testsupport.NewFakeDevice()
	session, err := capture.Acquire(context.Background(), dev, capture.AudioVideo())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer session.Release()

	buf := recording.NewBuffer("a")
	if err := session.StartRecording(buf); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := session.StartRecording(buf); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if err := session.StartRecording(nil); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for nil sink, got %v", err)
	}
}

func TestAcquireErrorsAreClassified(t *testing.T) {
	cases := []struct {
		name    string
		openErr error
		want    error
	}{
		{"permission denied", services.Wrap(services.ErrPermissionDenied, "fake", "open", "user declined", nil), services.ErrPermissionDenied},
		{"device unavailable", services.Wrap(services.ErrDeviceUnavailable, "fake", "open", "no camera", nil), services.ErrDeviceUnavailable},
		{"unclassified", errors.New("ioctl failed"), services.ErrDeviceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dev := testsupport.NewFakeDevice()
			dev.FailWith(tc.openErr)
			session, err := capture.Acquire(context.Background(), dev, capture.AudioVideo())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if session != nil {
				t.Fatal("expected no session on failure")
			}
			if dev.Active() != 0 {
				t.Fatalf("expected nothing held, active=%d", dev.Active())
			}
		})
	}
}

func TestAcquireRejectsEmptyConstraintsAndNilDevice(t *testing.T) {
	if _, err := capture.Acquire(context.Background(), testsupport.NewFakeDevice(), capture.Constraints{}); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable for no tracks, got %v", err)
	}
	if _, err := capture.Acquire(context.Background(), nil, capture.AudioVideo()); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable for nil device, got %v", err)
	}
}

func TestAcquireTimeout(t *testing.T) {
	dev := testsupport.NewFakeDevice()
	release := dev.Hold()
	defer release()

	_, err := capture.Acquire(context.Background(), dev, capture.AudioVideo(), capture.WithTimeout(20*time.Millisecond))
	if !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable on timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause preserved, got %v", err)
	}
}
