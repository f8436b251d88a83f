// Package services defines shared utilities consumed by the capture pipeline,
// the workflow state machine, and the submission client.
//
// Key responsibilities:
//   - Sentinel error markers (permission denied, device unavailable, invalid
//     state, submission failed) plus the Wrap helper so every layer reports
//     failures that still classify with errors.Is.
//   - Context helpers that stamp attempt IDs, triggers, and correlation
//     identifiers for logging.
//   - UserMessage, which turns any workflow error into the actionable text
//     shown to the user ("stay in this step, fix X, retry").
package services
