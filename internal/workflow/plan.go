package workflow

import (
	"fmt"
	"slices"

	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

// Transition is a planned state change.
type Transition struct {
	From    State
	Trigger Trigger
	To      State
	// OnFailure is the state kept when any effect fails.
	OnFailure State
	Effects   []Effect
}

type planKey struct {
	from    State
	trigger Trigger
}

var transitions = map[planKey]Transition{
	{StateIntro, TriggerStart}: {
		To:        StateRecording,
		OnFailure: StateIntro,
		Effects:   []Effect{EffectAcquire, EffectBeginBuffering, EffectShowLive},
	},
	{StateRecording, TriggerStop}: {
		To:        StateReview,
		OnFailure: StateRecording,
		Effects:   []Effect{EffectHalt, EffectFinalize, EffectRelease, EffectShowPlayback},
	},
	{StateReview, TriggerRetake}: {
		To:        StateRecording,
		OnFailure: StateReview,
		Effects: []Effect{
			EffectRelease,
			EffectAcquire,
			EffectDiscardArtifact,
			EffectResetBuffer,
			EffectBeginBuffering,
			EffectShowLive,
		},
	},
	{StateReview, TriggerSubmit}: {
		To:        StateDone,
		OnFailure: StateReview,
		Effects:   []Effect{EffectReadIdentifier, EffectSubmit},
	},
}

// Plan returns the transition for trigger from state. Undefined pairs fail
// with an error matching services.ErrInvalidState.
func Plan(from State, trigger Trigger) (Transition, error) {
	tr, ok := transitions[planKey{from, trigger}]
	if !ok {
		return Transition{}, services.Wrap(services.ErrInvalidState, "workflow", string(trigger),
			fmt.Sprintf("not allowed in %s", from), nil)
	}
	tr.From = from
	tr.Trigger = trigger
	tr.Effects = slices.Clone(tr.Effects)
	return tr, nil
}

// Allowed lists the triggers Plan accepts from state, in display order.
func Allowed(state State) []Trigger {
	var out []Trigger
	for _, trigger := range Triggers {
		if _, ok := transitions[planKey{state, trigger}]; ok {
			out = append(out, trigger)
		}
	}
	return out
}
