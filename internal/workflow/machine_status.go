package workflow

import (
	"slices"

	"github.com/UtsahaJoshi/The-New-Hires/internal/preview"
	"github.com/UtsahaJoshi/The-New-Hires/internal/recording"
)

// Snapshot is a consistent view of the machine.
type Snapshot struct {
	State       State
	Pending     Trigger
	Affordances []Trigger
	Artifact    *recording.Artifact
	Capturing   bool
	Outcome     Outcome
	LastError   error
	Closed      bool
}

// Snapshot returns the current machine view.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:       m.state,
		Pending:     m.pending,
		Affordances: m.affordancesLocked(),
		Artifact:    m.artifact,
		Capturing:   m.session.Active(),
		Outcome:     m.outcome,
		LastError:   m.lastErr,
		Closed:      m.closed,
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending returns the trigger currently executing, or "".
func (m *Machine) Pending() Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Artifact returns the recording under review, or nil before review and
// after a retake.
func (m *Machine) Artifact() *recording.Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifact
}

func (m *Machine) Outcome() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

// LastError returns the error of the most recent failed transition; a
// successful transition clears it.
func (m *Machine) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Capturing reports whether a capture session currently holds hardware.
func (m *Machine) Capturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Active()
}

// Affordances lists the triggers the caller should offer now. It is empty
// while a transition is pending and after Close.
func (m *Machine) Affordances() []Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.affordancesLocked()
}

func (m *Machine) affordancesLocked() []Trigger {
	if m.pending != "" || m.closed {
		return nil
	}
	return Allowed(m.state)
}

// Surface returns the preview surface the machine drives.
func (m *Machine) Surface() *preview.Surface { return m.surface }

// OnChange registers fn to receive a snapshot after every completed or
// failed transition.
func (m *Machine) OnChange(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Machine) listenersLocked() []func(Snapshot) {
	return slices.Clone(m.listeners)
}
