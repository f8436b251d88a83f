// Package workflow drives a retrospective recording through its steps:
// intro, recording, review and done.
//
// Plan is the authoritative transition table. It is pure: given the current
// State and a Trigger it returns the target state and the ordered Effects to
// run, or an error matching services.ErrInvalidState. Machine executes those
// effects against the capture device, recording buffer, preview surface and
// submission client, and commits the new state only when every effect
// succeeded. A failed acquisition or upload leaves the machine in the state
// it started from.
//
// Exactly one transition runs at a time. Triggers arriving while another is
// pending are rejected with services.ErrBusy; queries never wait on device or
// network I/O.
package workflow
