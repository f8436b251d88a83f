package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPermissionDenied marks acquisition failures where the user or the OS
	// refused access to the camera or microphone.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDeviceUnavailable marks acquisition failures where no matching
	// hardware exists or it is held by another recorder.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrInvalidState marks an operation invoked outside its legal state.
	ErrInvalidState = errors.New("invalid state")
	// ErrSubmissionFailed marks upload failures, including unmet preconditions.
	ErrSubmissionFailed = errors.New("submission failed")
)

var (
	// ErrBusy rejects a trigger that arrives while another transition is pending.
	ErrBusy = fmt.Errorf("%w: transition in progress", ErrInvalidState)
	// ErrMissingIdentifier reports an absent user identifier at submission time.
	ErrMissingIdentifier = fmt.Errorf("%w: user identifier unavailable", ErrSubmissionFailed)
	// ErrEmptyArtifact reports a recording that produced no media bytes.
	ErrEmptyArtifact = fmt.Errorf("%w: recording is empty", ErrSubmissionFailed)
)

// Kind names the error class used for messaging and exit reporting.
type Kind string

const (
	KindNone              Kind = ""
	KindPermissionDenied  Kind = "permission_denied"
	KindDeviceUnavailable Kind = "device_unavailable"
	KindInvalidState      Kind = "invalid_state"
	KindSubmissionFailed  Kind = "submission_failed"
	KindUnknown           Kind = "unknown"
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		if err != nil {
			return fmt.Errorf("%s: %w", detail, err)
		}
		return errors.New(detail)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error onto the workflow error taxonomy.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrSubmissionFailed):
		return KindSubmissionFailed
	default:
		return KindUnknown
	}
}

// UserMessage returns an actionable, user-facing description of err. Every
// message tells the user what to do next from the current step.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindPermissionDenied:
		return "Camera permission required! Allow access to the camera and microphone, then try again."
	case KindDeviceUnavailable:
		return "No camera or microphone is available. Connect a device (or close other recorders) and try again."
	case KindInvalidState:
		if errors.Is(err, ErrBusy) {
			return "Still working on the previous action. Wait for it to finish."
		}
		return "That action is not available right now."
	case KindSubmissionFailed:
		switch {
		case errors.Is(err, ErrMissingIdentifier):
			return "You are not signed in. Sign in to the dashboard, then submit again."
		case errors.Is(err, ErrEmptyArtifact):
			return "The recording is empty. Retake the video before submitting."
		default:
			return "Upload failed. Your recording is kept; submit again to retry."
		}
	default:
		return fmt.Sprintf("Unexpected error: %s", strings.TrimSpace(err.Error()))
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
