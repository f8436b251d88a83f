// Package recording accumulates media chunks for one recording attempt and
// finalizes them into an immutable Artifact.
//
// A Buffer is append-only while open. Finalize concatenates the chunks in
// arrival order exactly once; afterwards appends are rejected with
// services.ErrInvalidState until Reset starts a fresh attempt. Buffers are
// never merged across attempts.
package recording
