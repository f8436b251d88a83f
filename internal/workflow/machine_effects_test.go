package workflow

import (
	"errors"
	"testing"

	"github.com/UtsahaJoshi/The-New-Hires/internal/logging"
	"github.com/UtsahaJoshi/The-New-Hires/internal/recording"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

func TestFinalizeFailureFallsBackToEmptyRecording(t *testing.T) {
	m := NewMachine(Dependencies{})

	finalized := recording.NewBuffer("attempt-1")
	if _, err := finalized.Finalize(defaultContentType); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	cases := []struct {
		name   string
		buffer *recording.Buffer
	}{
		{name: "already finalized", buffer: finalized},
		{name: "no buffer", buffer: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &run{logger: logging.NewNop(), attemptID: "attempt-1", buffer: tc.buffer}
			if err := m.execute(r, EffectFinalize); err != nil {
				t.Fatalf("finalize should not fail the stop, got %v", err)
			}
			if r.artifact == nil || !r.artifact.Empty() {
				t.Fatalf("expected an empty artifact, got %+v", r.artifact)
			}
			if r.artifact.AttemptID() != "attempt-1" || r.artifact.ContentType() != defaultContentType {
				t.Fatalf("unexpected artifact metadata: %s %s", r.artifact.AttemptID(), r.artifact.ContentType())
			}
			if r.artifact.ChunkCount() != 0 {
				t.Fatalf("expected no chunks, got %d", r.artifact.ChunkCount())
			}
			if err := m.execute(r, EffectSubmit); !errors.Is(err, services.ErrEmptyArtifact) {
				t.Fatalf("expected empty recording to be refused, got %v", err)
			}
		})
	}
}
