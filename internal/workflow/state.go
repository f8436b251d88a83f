package workflow

// State is a workflow step.
type State string

const (
	StateIntro     State = "intro"
	StateRecording State = "recording"
	StateReview    State = "review"
	StateDone      State = "done"
)

// Terminal reports whether no trigger is accepted from s.
func (s State) Terminal() bool { return s == StateDone }

// Trigger is a user action.
type Trigger string

const (
	TriggerStart  Trigger = "start"
	TriggerStop   Trigger = "stop"
	TriggerRetake Trigger = "retake"
	TriggerSubmit Trigger = "submit"
)

// Triggers lists every trigger in display order.
var Triggers = []Trigger{TriggerStart, TriggerStop, TriggerRetake, TriggerSubmit}

// Effect is a side effect the machine performs during a transition.
type Effect string

const (
	// EffectRelease frees any capture session still held.
	EffectRelease Effect = "release"
	// EffectAcquire opens the capture device for a new attempt.
	EffectAcquire Effect = "acquire"
	// EffectDiscardArtifact drops the previous attempt's recording.
	EffectDiscardArtifact Effect = "discard_artifact"
	// EffectResetBuffer empties the recording buffer for the new attempt.
	EffectResetBuffer Effect = "reset_buffer"
	// EffectBeginBuffering routes captured chunks into the buffer.
	EffectBeginBuffering Effect = "begin_buffering"
	// EffectShowLive points the preview surface at the live stream.
	EffectShowLive Effect = "show_live"
	// EffectHalt stops chunk emission and releases the hardware.
	EffectHalt Effect = "halt"
	// EffectFinalize turns the buffer into the attempt's artifact.
	EffectFinalize Effect = "finalize"
	// EffectShowPlayback points the preview surface at the artifact.
	EffectShowPlayback Effect = "show_playback"
	// EffectReadIdentifier loads the user identifier.
	EffectReadIdentifier Effect = "read_identifier"
	// EffectSubmit uploads the artifact.
	EffectSubmit Effect = "submit"
)
