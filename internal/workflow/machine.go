package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/UtsahaJoshi/The-New-Hires/internal/capture"
	"github.com/UtsahaJoshi/The-New-Hires/internal/identity"
	"github.com/UtsahaJoshi/The-New-Hires/internal/logging"
	"github.com/UtsahaJoshi/The-New-Hires/internal/preview"
	"github.com/UtsahaJoshi/The-New-Hires/internal/recording"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
	"github.com/UtsahaJoshi/The-New-Hires/internal/submission"
)

const defaultContentType = "video/webm"

// Dependencies are the collaborators a Machine drives.
type Dependencies struct {
	Device    capture.Device
	Submitter submission.Client
	Identity  identity.Source
	// Surface is created when nil.
	Surface *preview.Surface
}

// Option configures optional Machine behavior.
type Option func(*Machine)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.baseLogger = logger
		m.logger = logging.NewComponentLogger(logger, "workflow")
	}
}

// WithConstraints overrides the default audio+video capture request.
func WithConstraints(c capture.Constraints) Option {
	return func(m *Machine) { m.constraints = c }
}

// WithContentType sets the content type stamped on artifacts.
func WithContentType(contentType string) Option {
	return func(m *Machine) {
		if contentType != "" {
			m.contentType = contentType
		}
	}
}

// WithAcquireTimeout bounds device acquisition. Zero waits indefinitely.
func WithAcquireTimeout(d time.Duration) Option {
	return func(m *Machine) { m.acquireTimeout = d }
}

// WithAttemptIDs replaces the attempt identifier generator.
func WithAttemptIDs(next func() string) Option {
	return func(m *Machine) {
		if next != nil {
			m.newAttemptID = next
		}
	}
}

// Outcome summarizes submission attempts for the current recording.
type Outcome struct {
	Attempts int
	Receipt  submission.Receipt
	Err      error
}

// Succeeded reports whether the latest submission was acknowledged.
func (o Outcome) Succeeded() bool { return o.Attempts > 0 && o.Err == nil }

// Machine is the single source of truth for which trigger is legal.
type Machine struct {
	device         capture.Device
	submitter      submission.Client
	identity       identity.Source
	surface        *preview.Surface
	baseLogger     *slog.Logger
	logger         *slog.Logger
	constraints    capture.Constraints
	contentType    string
	acquireTimeout time.Duration
	newAttemptID   func() string

	mu        sync.Mutex
	state     State
	pending   Trigger
	closed    bool
	attemptID string
	session   *capture.Session
	buffer    *recording.Buffer
	artifact  *recording.Artifact
	outcome   Outcome
	lastErr   error
	listeners []func(Snapshot)
}

// NewMachine returns a machine in StateIntro.
func NewMachine(deps Dependencies, opts ...Option) *Machine {
	m := &Machine{
		device:       deps.Device,
		submitter:    deps.Submitter,
		identity:     deps.Identity,
		surface:      deps.Surface,
		logger:       logging.NewComponentLogger(nil, "workflow"),
		constraints:  capture.AudioVideo(),
		contentType:  defaultContentType,
		newAttemptID: uuid.NewString,
		state:        StateIntro,
	}
	if m.surface == nil {
		m.surface = preview.NewSurface()
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start acquires the device and begins recording.
func (m *Machine) Start(ctx context.Context) error { return m.fire(ctx, TriggerStart) }

// Stop ends the recording and moves to review. It is a no-op when no
// capture session is active or another stop is in flight. A stop that arrives
// while a start or retake is still acquiring the device fails with
// services.ErrBusy.
func (m *Machine) Stop(ctx context.Context) error { return m.fire(ctx, TriggerStop) }

// Retake discards the reviewed recording and starts a fresh attempt. The
// previous recording is kept if the device cannot be acquired.
func (m *Machine) Retake(ctx context.Context) error { return m.fire(ctx, TriggerRetake) }

// Submit uploads the reviewed recording. On failure the machine stays in
// review with the recording intact so the caller may retry.
func (m *Machine) Submit(ctx context.Context) error { return m.fire(ctx, TriggerSubmit) }

// Fire dispatches trigger by name.
func (m *Machine) Fire(ctx context.Context, trigger Trigger) error {
	switch trigger {
	case TriggerStart, TriggerStop, TriggerRetake, TriggerSubmit:
		return m.fire(ctx, trigger)
	default:
		return services.Wrap(services.ErrInvalidState, "workflow", string(trigger), "unknown trigger", nil)
	}
}

// Close releases any active capture session and rejects further triggers.
// It is safe in any state and may be called more than once.
func (m *Machine) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	session := m.session
	m.session = nil
	state := m.state
	m.mu.Unlock()

	logger := logging.WithContext(ctx, m.logger)
	if session.Active() {
		logger.Info("releasing capture session on close",
			logging.String(logging.FieldEventType, "capture_abandoned"),
			logging.String(logging.FieldState, string(state)),
		)
		if err := session.Release(); err != nil {
			return err
		}
		m.surface.Clear()
	}
	return nil
}

// errNoop marks a trigger that is accepted but does nothing.
var errNoop = errors.New("no-op")

// run carries one transition's working state. Machine fields change only in
// commit, so an aborted run leaves the machine as it was.
type run struct {
	tr        Transition
	ctx       context.Context
	logger    *slog.Logger
	attemptID string
	session   *capture.Session
	acquired  bool
	buffer    *recording.Buffer
	artifact  *recording.Artifact
	ident     identity.ID
	receipt   submission.Receipt
}

func (m *Machine) begin(ctx context.Context, trigger Trigger) (*run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, services.Wrap(services.ErrInvalidState, "workflow", string(trigger), "workflow closed", nil)
	}
	if trigger == TriggerStop && (m.pending == TriggerStop || (m.pending == "" && !m.session.Active())) {
		return nil, errNoop
	}
	if m.pending != "" {
		return nil, fmt.Errorf("%w: %s requested while %s is pending", services.ErrBusy, trigger, m.pending)
	}
	tr, err := Plan(m.state, trigger)
	if err != nil {
		return nil, err
	}
	m.pending = trigger

	ctx = services.WithTrigger(ctx, string(trigger))
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	ctx = services.WithAttemptID(ctx, m.attemptID)

	return &run{
		tr:        tr,
		ctx:       ctx,
		logger:    logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldState, string(tr.From))),
		attemptID: m.attemptID,
		session:   m.session,
		buffer:    m.buffer,
		artifact:  m.artifact,
	}, nil
}

func (m *Machine) fire(ctx context.Context, trigger Trigger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r, err := m.begin(ctx, trigger)
	if errors.Is(err, errNoop) {
		logging.WithContext(ctx, m.logger).Debug("stop ignored; no active capture session",
			logging.String(logging.FieldTrigger, string(trigger)),
		)
		return nil
	}
	if err != nil {
		m.reject(ctx, trigger, err)
		return err
	}

	r.logger.Debug("transition started",
		logging.String(logging.FieldEventType, "transition_started"),
		logging.String("target", string(r.tr.To)),
	)
	started := time.Now()
	for _, effect := range r.tr.Effects {
		if err := m.execute(r, effect); err != nil {
			m.abort(r, effect, err)
			return err
		}
	}
	return m.commit(r, time.Since(started))
}

func (m *Machine) reject(ctx context.Context, trigger Trigger, err error) {
	hint := "use one of the currently offered actions"
	if errors.Is(err, services.ErrBusy) {
		hint = "wait for the current action to finish"
	}
	logging.WarnWithContext(logging.WithContext(ctx, m.logger), "trigger rejected", "trigger_rejected",
		logging.Error(err),
		logging.String(logging.FieldTrigger, string(trigger)),
		logging.String(logging.FieldState, string(m.State())),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "state unchanged"),
	)
}

func (m *Machine) abort(r *run, effect Effect, err error) {
	if r.acquired && r.session != nil {
		if releaseErr := r.session.Release(); releaseErr != nil {
			r.logger.Warn("release after failed transition reported an error", logging.Error(releaseErr))
		}
	}

	m.mu.Lock()
	m.pending = ""
	m.state = r.tr.OnFailure
	m.lastErr = err
	if r.tr.Trigger == TriggerSubmit {
		m.outcome = Outcome{Attempts: m.outcome.Attempts + 1, Err: err}
	}
	snapshot, listeners := m.snapshotLocked(), m.listenersLocked()
	m.mu.Unlock()

	logging.WarnWithContext(r.logger, "transition failed", "transition_failed",
		logging.Error(err),
		logging.String(logging.FieldTrigger, string(r.tr.Trigger)),
		logging.String("effect", string(effect)),
		logging.String("error_kind", string(services.Classify(err))),
		logging.String(logging.FieldErrorHint, services.UserMessage(err)),
		logging.String(logging.FieldImpact, "remained in "+string(r.tr.OnFailure)),
	)
	notify(listeners, snapshot)
}

func (m *Machine) commit(r *run, elapsed time.Duration) error {
	m.mu.Lock()
	if m.closed {
		m.pending = ""
		m.mu.Unlock()
		if r.acquired && r.session != nil {
			_ = r.session.Release()
			m.surface.Clear()
		}
		return services.Wrap(services.ErrInvalidState, "workflow", string(r.tr.Trigger), "workflow closed during transition", nil)
	}
	m.state = r.tr.To
	m.attemptID = r.attemptID
	m.session = r.session
	m.buffer = r.buffer
	m.artifact = r.artifact
	m.lastErr = nil
	switch r.tr.Trigger {
	case TriggerSubmit:
		m.outcome = Outcome{Attempts: m.outcome.Attempts + 1, Receipt: r.receipt}
	case TriggerStart, TriggerRetake:
		m.outcome = Outcome{}
	}
	m.pending = ""
	snapshot, listeners := m.snapshotLocked(), m.listenersLocked()
	m.mu.Unlock()

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "transition_applied"),
		logging.String(logging.FieldAttemptID, r.attemptID),
		logging.String(logging.FieldState, string(r.tr.To)),
		logging.String("from", string(r.tr.From)),
		logging.Duration("elapsed", elapsed),
		logging.Bool("capturing", snapshot.Capturing),
	}
	if r.tr.Trigger == TriggerStop && r.artifact != nil {
		attrs = append(attrs,
			logging.Int("bytes", r.artifact.Size()),
			logging.Int("chunks", r.artifact.ChunkCount()),
		)
	}
	r.logger.Info("transition applied", logging.Args(attrs...)...)
	notify(listeners, snapshot)
	return nil
}

func notify(listeners []func(Snapshot), snapshot Snapshot) {
	for _, fn := range listeners {
		fn(snapshot)
	}
}
