package workflow

import (
	"github.com/UtsahaJoshi/The-New-Hires/internal/capture"
	"github.com/UtsahaJoshi/The-New-Hires/internal/logging"
	"github.com/UtsahaJoshi/The-New-Hires/internal/recording"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

func (m *Machine) execute(r *run, effect Effect) error {
	switch effect {
	case EffectRelease:
		if r.session != nil {
			// Release logs its own failure and the hardware is counted as freed either way.
			_ = r.session.Release()
			r.session = nil
			r.acquired = false
		}
		return nil

	case EffectAcquire:
		attemptID := m.newAttemptID()
		r.ctx = services.WithAttemptID(r.ctx, attemptID)
		session, err := capture.Acquire(r.ctx, m.device, m.constraints,
			capture.WithLogger(m.baseLogger),
			capture.WithAttemptID(attemptID),
			capture.WithTimeout(m.acquireTimeout),
		)
		if err != nil {
			return err
		}
		r.attemptID = attemptID
		r.logger = r.logger.With(logging.String(logging.FieldAttemptID, attemptID))
		r.session = session
		r.acquired = true
		return nil

	case EffectDiscardArtifact:
		if r.artifact != nil {
			r.logger.Debug("discarding previous recording",
				logging.String("previous_attempt", r.artifact.AttemptID()),
				logging.Int("bytes", r.artifact.Size()),
			)
		}
		r.artifact = nil
		return nil

	case EffectResetBuffer:
		if r.buffer == nil {
			r.buffer = recording.NewBuffer(r.attemptID)
			return nil
		}
		r.buffer.Reset(r.attemptID)
		return nil

	case EffectBeginBuffering:
		if r.session == nil {
			return services.Wrap(services.ErrInvalidState, "workflow", "begin buffering", "no capture session", nil)
		}
		if r.buffer == nil || r.buffer.Finalized() {
			r.buffer = recording.NewBuffer(r.attemptID)
		}
		return r.session.StartRecording(r.buffer)

	case EffectShowLive:
		m.surface.ShowLive(r.session.Source())
		return nil

	case EffectHalt:
		if err := r.session.Stop(r.ctx); err != nil {
			logging.WarnWithContext(r.logger, "capture did not halt cleanly", "capture_halt_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "review the playback before submitting"),
				logging.String(logging.FieldImpact, "recording may be truncated"),
			)
		}
		return nil

	case EffectFinalize:
		// The hardware is already released here, so stop must still reach review.
		artifact, err := m.finalize(r)
		if err != nil {
			logging.WarnWithContext(r.logger, "recording could not be finalized", "recording_finalize_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "retake the recording"),
				logging.String(logging.FieldImpact, "review shows an empty recording"),
			)
			artifact = recording.NewArtifact(r.attemptID, m.contentType, nil)
		}
		if artifact.Empty() {
			logging.WarnWithContext(r.logger, "recording captured no media", "recording_empty",
				logging.String(logging.FieldErrorHint, "retake the recording"),
				logging.String(logging.FieldImpact, "submission will be refused"),
			)
		}
		r.artifact = artifact
		return nil

	case EffectShowPlayback:
		m.surface.ShowPlayback(r.artifact)
		return nil

	case EffectReadIdentifier:
		if m.identity == nil {
			return services.Wrap(services.ErrMissingIdentifier, "workflow", "submit", "no identity source", nil)
		}
		id, err := m.identity.Identifier(r.ctx)
		if err != nil {
			if services.Classify(err) != services.KindSubmissionFailed {
				return services.Wrap(services.ErrMissingIdentifier, "workflow", "submit", "read identifier", err)
			}
			return err
		}
		r.ident = id
		return nil

	case EffectSubmit:
		if r.artifact.Empty() {
			return services.Wrap(services.ErrEmptyArtifact, "workflow", "submit", "nothing recorded", nil)
		}
		if m.submitter == nil {
			return services.Wrap(services.ErrSubmissionFailed, "workflow", "submit", "no submission client", nil)
		}
		receipt, err := m.submitter.Submit(r.ctx, r.artifact, r.ident)
		if err != nil {
			if services.Classify(err) != services.KindSubmissionFailed {
				return services.Wrap(services.ErrSubmissionFailed, "workflow", "submit", "upload", err)
			}
			return err
		}
		r.receipt = receipt
		return nil

	default:
		return services.Wrap(services.ErrInvalidState, "workflow", string(effect), "unknown effect", nil)
	}
}

func (m *Machine) finalize(r *run) (*recording.Artifact, error) {
	if r.buffer == nil {
		return nil, services.Wrap(services.ErrInvalidState, "workflow", "finalize", "no recording buffer", nil)
	}
	return r.buffer.Finalize(m.contentType)
}
