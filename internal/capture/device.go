package capture

import (
	"context"
)

// Constraints selects which tracks to capture. Empty device fields mean the
// Device's configured default.
type Constraints struct {
	Video       bool
	Audio       bool
	VideoDevice string
	AudioDevice string
}

// AudioVideo requests both tracks from the default devices.
func AudioVideo() Constraints {
	return Constraints{Video: true, Audio: true}
}

// Device is the boundary to capture hardware.
//
// Open fails with an error matching services.ErrPermissionDenied when access
// is refused and services.ErrDeviceUnavailable when no matching hardware
// exists or it is held elsewhere.
type Device interface {
	Open(ctx context.Context, constraints Constraints) (Stream, error)
}

// Stream is a live, exclusively owned device stream.
type Stream interface {
	// Source describes the live input for preview.
	Source() string
	// Start begins delivering encoded media to emit. Calls to emit are
	// sequential and in emission order.
	Start(emit func([]byte)) error
	// Halt stops emission and returns after the last in-flight chunk has
	// been delivered.
	Halt(ctx context.Context) error
	// Close releases every hardware track. It must be safe after Halt and
	// on a stream that never started.
	Close() error
}
