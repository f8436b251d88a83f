// Package capture owns the lifecycle of a live camera and microphone stream.
//
// A Device opens a Stream for the requested Constraints. Acquire wraps that
// stream in a Session which is the only owner of the hardware while active:
// StartRecording forwards chunks to a ChunkSink in emission order, Stop halts
// emission and releases every track, and Release abandons the stream without
// halting. Release runs exactly once on every exit path.
package capture
