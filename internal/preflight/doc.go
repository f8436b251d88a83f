// Package preflight provides readiness checks for the devices, binaries,
// paths and services that retro depends on.
//
// These checks run in two contexts:
//   - The CLI "retro doctor" command runs RunAll and renders every result.
//   - "retro record" runs RunAll before acquiring the camera and refuses to
//     start when a required check fails, so a user never records a take that
//     cannot be uploaded.
//
// Optional checks report problems without blocking a recording.
package preflight
