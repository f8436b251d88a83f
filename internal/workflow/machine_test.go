package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/UtsahaJoshi/The-New-Hires/internal/identity"
	"github.com/UtsahaJoshi/The-New-Hires/internal/preview"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
	"github.com/UtsahaJoshi/The-New-Hires/internal/testsupport"
	"github.com/UtsahaJoshi/The-New-Hires/internal/workflow"
)

type harness struct {
	device    *testsupport.FakeDevice
	submitter *testsupport.FakeSubmitter
	machine   *workflow.Machine
}

func newHarness(t *testing.T, ident identity.Source) *harness {
	t.Helper()
	if ident == nil {
		ident = identity.Static("user-42")
	}
	h := &harness{
		device:    testsupport.NewFakeDevice(),
		submitter: testsupport.NewFakeSubmitter(),
	}
	var mu sync.Mutex
	next := 0
	h.machine = workflow.NewMachine(workflow.Dependencies{
		Device:    h.device,
		Submitter: h.submitter,
		Identity:  ident,
	}, workflow.WithAttemptIDs(func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("attempt-%d", next)
	}))
	t.Cleanup(func() { _ = h.machine.Close(context.Background()) })
	return h
}

func (h *harness) record(t *testing.T, chunks ...string) {
	t.Helper()
	ctx := context.Background()
	if err := h.machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.emit(t, chunks...)
	if err := h.machine.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func (h *harness) emit(t *testing.T, chunks ...string) {
	t.Helper()
	stream := h.device.Last()
	for _, c := range chunks {
		if !stream.Emit([]byte(c)) {
			t.Fatalf("stream refused chunk %q", c)
		}
	}
}

func expectState(t *testing.T, m *workflow.Machine, want workflow.State) {
	t.Helper()
	if got := m.State(); got != want {
		t.Fatalf("unexpected state: got %s want %s", got, want)
	}
}

func TestStartRecordStopReachesReview(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	expectState(t, h.machine, workflow.StateRecording)
	if view := h.machine.Surface().Current(); view.Mode != preview.ModeLive || view.Source != "fake-camera" {
		t.Fatalf("expected live preview, got %+v", view)
	}
	if !h.machine.Capturing() {
		t.Fatal("expected an active capture session while recording")
	}
	stream := h.device.Last()
	h.emit(t, "aa", "bb", "cc")

	if err := h.machine.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	expectState(t, h.machine, workflow.StateReview)

	artifact := h.machine.Artifact()
	if artifact.Empty() {
		t.Fatal("expected non-empty artifact")
	}
	if !bytes.Equal(artifact.Bytes(), []byte("aabbcc")) {
		t.Fatalf("unexpected artifact bytes %q", artifact.Bytes())
	}
	if artifact.ChunkCount() != 3 || artifact.AttemptID() != "attempt-1" {
		t.Fatalf("unexpected artifact metadata: chunks=%d attempt=%s", artifact.ChunkCount(), artifact.AttemptID())
	}
	if artifact.ContentType() != "video/webm" {
		t.Fatalf("unexpected content type %q", artifact.ContentType())
	}
	if !stream.Halted() || !stream.Closed() {
		t.Fatalf("expected stream halted and closed, halted=%v closed=%v", stream.Halted(), stream.Closed())
	}
	if h.device.Active() != 0 || h.machine.Capturing() {
		t.Fatal("expected hardware released in review")
	}
	view := h.machine.Surface().Current()
	if view.Mode != preview.ModePlayback || view.Artifact != artifact || !view.Controls || !view.Autoplay {
		t.Fatalf("expected playback of the artifact when Stop returns, got %+v", view)
	}
	if got := h.machine.Affordances(); !slices.Equal(got, []workflow.Trigger{workflow.TriggerRetake, workflow.TriggerSubmit}) {
		t.Fatalf("unexpected review affordances %v", got)
	}
}

func TestAcquirePermissionDeniedStaysInIntro(t *testing.T) {
	h := newHarness(t, nil)
	h.device.FailWith(services.Wrap(services.ErrPermissionDenied, "test", "open", "camera blocked", nil))

	err := h.machine.Start(context.Background())
	if !errors.Is(err, services.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	expectState(t, h.machine, workflow.StateIntro)
	if h.machine.Artifact() != nil {
		t.Fatal("expected no artifact")
	}
	if !errors.Is(h.machine.LastError(), services.ErrPermissionDenied) {
		t.Fatalf("expected last error recorded, got %v", h.machine.LastError())
	}
	if h.machine.Surface().Current().Mode != preview.ModeBlank {
		t.Fatal("expected blank preview after failed acquire")
	}

	h.device.FailWith(nil)
	if err := h.machine.Start(context.Background()); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	expectState(t, h.machine, workflow.StateRecording)
	if h.machine.LastError() != nil {
		t.Fatalf("expected last error cleared, got %v", h.machine.LastError())
	}
}

func TestAcquireFailureIsClassifiedAsUnavailable(t *testing.T) {
	h := newHarness(t, nil)
	h.device.FailWith(errors.New("no such device"))
	if err := h.machine.Start(context.Background()); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected device unavailable, got %v", err)
	}
	expectState(t, h.machine, workflow.StateIntro)
}

func TestSubmitFailureKeepsRecordingForRetry(t *testing.T) {
	h := newHarness(t, nil)
	h.record(t, "take-one")
	artifact := h.machine.Artifact()

	h.submitter.Script(services.Wrap(services.ErrSubmissionFailed, "test", "upload", "server returned 502", nil))
	err := h.machine.Submit(context.Background())
	if !errors.Is(err, services.ErrSubmissionFailed) {
		t.Fatalf("expected submission failure, got %v", err)
	}
	expectState(t, h.machine, workflow.StateReview)
	if h.machine.Artifact() != artifact || !bytes.Equal(artifact.Bytes(), []byte("take-one")) {
		t.Fatal("expected artifact unchanged after failed submit")
	}
	outcome := h.machine.Outcome()
	if outcome.Attempts != 1 || outcome.Err == nil || outcome.Succeeded() {
		t.Fatalf("unexpected outcome after failure: %+v", outcome)
	}

	if err := h.machine.Submit(context.Background()); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	expectState(t, h.machine, workflow.StateDone)
	outcome = h.machine.Outcome()
	if outcome.Attempts != 2 || !outcome.Succeeded() {
		t.Fatalf("unexpected outcome after retry: %+v", outcome)
	}
	calls := h.submitter.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 submit calls, got %d", len(calls))
	}
	for _, call := range calls {
		if call.Artifact != artifact || call.ID != "user-42" {
			t.Fatalf("unexpected submit call %+v", call)
		}
	}
}

func TestUntypedSubmitErrorIsReportedAsSubmissionFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.record(t, "x")
	h.submitter.Script(errors.New("connection reset"))
	if err := h.machine.Submit(context.Background()); !errors.Is(err, services.ErrSubmissionFailed) {
		t.Fatalf("expected submission failure, got %v", err)
	}
	expectState(t, h.machine, workflow.StateReview)
}

func TestDoneIsTerminal(t *testing.T) {
	h := newHarness(t, nil)
	h.record(t, "x")
	if err := h.machine.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	expectState(t, h.machine, workflow.StateDone)
	if len(h.machine.Affordances()) != 0 {
		t.Fatalf("expected no affordances in done, got %v", h.machine.Affordances())
	}

	for _, trigger := range []workflow.Trigger{workflow.TriggerRetake, workflow.TriggerSubmit, workflow.TriggerStart} {
		if err := h.machine.Fire(context.Background(), trigger); !errors.Is(err, services.ErrInvalidState) {
			t.Fatalf("%s in done: expected invalid state, got %v", trigger, err)
		}
	}
	expectState(t, h.machine, workflow.StateDone)
	if len(h.submitter.Calls()) != 1 {
		t.Fatalf("expected one submission, got %d", len(h.submitter.Calls()))
	}
	if h.device.Opens() != 1 {
		t.Fatalf("expected no reacquire after done, got %d opens", h.device.Opens())
	}
}

func TestRetakeStartsWithFreshBuffer(t *testing.T) {
	h := newHarness(t, nil)
	h.record(t, "old-1", "old-2")
	oldStream := h.device.Last()
	previous := h.machine.Artifact()

	if err := h.machine.Retake(context.Background()); err != nil {
		t.Fatalf("Retake: %v", err)
	}
	expectState(t, h.machine, workflow.StateRecording)
	if h.machine.Artifact() != nil {
		t.Fatal("expected previous artifact discarded")
	}
	if h.device.Opens() != 2 || h.device.MaxActive() != 1 {
		t.Fatalf("unexpected device usage: opens=%d maxActive=%d", h.device.Opens(), h.device.MaxActive())
	}
	if oldStream.Emit([]byte("late")) {
		t.Fatal("old stream should not accept chunks after retake")
	}
	if h.machine.Surface().Current().Mode != preview.ModeLive {
		t.Fatal("expected live preview after retake")
	}

	h.emit(t, "new")
	if err := h.machine.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	artifact := h.machine.Artifact()
	if !bytes.Equal(artifact.Bytes(), []byte("new")) {
		t.Fatalf("chunks leaked across attempts: %q", artifact.Bytes())
	}
	if artifact.AttemptID() != "attempt-2" || artifact.AttemptID() == previous.AttemptID() {
		t.Fatalf("expected a new attempt id, got %s", artifact.AttemptID())
	}
	if !bytes.Equal(previous.Bytes(), []byte("old-1old-2")) {
		t.Fatal("discarded artifact should stay immutable")
	}
}

func TestRetakeFailureKeepsPreviousRecording(t *testing.T) {
	h := newHarness(t, nil)
	h.record(t, "keep-me")
	artifact := h.machine.Artifact()

	h.device.FailWith(services.Wrap(services.ErrDeviceUnavailable, "test", "open", "camera unplugged", nil))
	err := h.machine.Retake(context.Background())
	if !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected device unavailable, got %v", err)
	}
	expectState(t, h.machine, workflow.StateReview)
	if h.machine.Artifact() != artifact {
		t.Fatal("expected previous artifact kept after failed retake")
	}
	if view := h.machine.Surface().Current(); view.Mode != preview.ModePlayback || view.Artifact != artifact {
		t.Fatalf("expected playback preserved, got %+v", view)
	}
	if h.device.Active() != 0 {
		t.Fatal("expected no hardware held after failed retake")
	}
	if err := h.machine.Submit(context.Background()); err != nil {
		t.Fatalf("Submit after failed retake: %v", err)
	}
}

func TestStopWithoutActiveSessionIsNoOp(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.machine.Stop(context.Background()); err != nil {
		t.Fatalf("Stop in intro: %v", err)
	}
	expectState(t, h.machine, workflow.StateIntro)

	h.record(t, "x")
	artifact := h.machine.Artifact()
	if err := h.machine.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	expectState(t, h.machine, workflow.StateReview)
	if h.machine.Artifact() != artifact {
		t.Fatal("second stop must not refinalize")
	}
	if h.device.Releases() != 1 {
		t.Fatalf("expected exactly one release, got %d", h.device.Releases())
	}
}

func TestStopProceedsWhenHaltFails(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.machine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.emit(t, "partial")
	h.device.Last().FailHalt(errors.New("encoder wedged"))

	if err := h.machine.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	expectState(t, h.machine, workflow.StateReview)
	if h.device.Active() != 0 {
		t.Fatal("expected hardware released despite halt failure")
	}
	if !bytes.Equal(h.machine.Artifact().Bytes(), []byte("partial")) {
		t.Fatalf("unexpected artifact %q", h.machine.Artifact().Bytes())
	}
}

func TestTriggersRejectedWhileStartIsPending(t *testing.T) {
	h := newHarness(t, nil)
	release := h.device.Hold()
	defer release()

	done := make(chan error, 1)
	go func() { done <- h.machine.Start(context.Background()) }()
	testsupport.Eventually(t, time.Second, func() bool { return h.machine.Pending() == workflow.TriggerStart }, "start pending")

	if got := h.machine.Affordances(); len(got) != 0 {
		t.Fatalf("expected no affordances while pending, got %v", got)
	}
	if err := h.machine.Start(context.Background()); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy for duplicate start, got %v", err)
	}
	if err := h.machine.Stop(context.Background()); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy for stop before acquisition completes, got %v", err)
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}
	expectState(t, h.machine, workflow.StateRecording)
	if !h.machine.Capturing() {
		t.Fatal("expected the started session to be capturing")
	}
	if err := h.machine.Stop(context.Background()); err != nil {
		t.Fatalf("Stop after start committed: %v", err)
	}
	expectState(t, h.machine, workflow.StateReview)
	if h.device.Opens() != 1 {
		t.Fatalf("expected a single acquisition, got %d", h.device.Opens())
	}
}

func TestDuplicateSubmitIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.record(t, "x")
	release := h.submitter.Hold()
	defer release()

	done := make(chan error, 1)
	go func() { done <- h.machine.Submit(context.Background()) }()
	testsupport.Eventually(t, time.Second, func() bool { return len(h.submitter.Calls()) == 1 }, "submit in flight")

	if err := h.machine.Submit(context.Background()); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy for duplicate submit, got %v", err)
	}
	if err := h.machine.Retake(context.Background()); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy for retake during submit, got %v", err)
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}
	expectState(t, h.machine, workflow.StateDone)
	if len(h.submitter.Calls()) != 1 {
		t.Fatalf("expected one upload, got %d", len(h.submitter.Calls()))
	}
}

func TestMissingIdentifierBlocksSubmission(t *testing.T) {
	h := newHarness(t, identity.Static(""))
	h.record(t, "x")

	err := h.machine.Submit(context.Background())
	if !errors.Is(err, services.ErrMissingIdentifier) {
		t.Fatalf("expected missing identifier, got %v", err)
	}
	expectState(t, h.machine, workflow.StateReview)
	if len(h.submitter.Calls()) != 0 {
		t.Fatal("expected no upload without an identifier")
	}
}

func TestIdentifierIsReadAtSubmitTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	h := newHarness(t, identity.NewFileSource(path))
	h.record(t, "x")

	if err := h.machine.Submit(context.Background()); !errors.Is(err, services.ErrMissingIdentifier) {
		t.Fatalf("expected missing identifier before sign-in, got %v", err)
	}
	testsupport.WriteSessionFile(t, path, "77")
	if err := h.machine.Submit(context.Background()); err != nil {
		t.Fatalf("Submit after sign-in: %v", err)
	}
	if calls := h.submitter.Calls(); len(calls) != 1 || calls[0].ID != "77" {
		t.Fatalf("unexpected calls %+v", calls)
	}
}

func TestEmptyRecordingIsNotSubmitted(t *testing.T) {
	h := newHarness(t, nil)
	h.record(t)
	expectState(t, h.machine, workflow.StateReview)
	if !h.machine.Artifact().Empty() {
		t.Fatal("expected empty artifact")
	}
	if err := h.machine.Submit(context.Background()); !errors.Is(err, services.ErrEmptyArtifact) {
		t.Fatalf("expected empty artifact error, got %v", err)
	}
	expectState(t, h.machine, workflow.StateReview)
	if len(h.submitter.Calls()) != 0 {
		t.Fatal("empty recording must not be uploaded")
	}
}

func TestCloseReleasesActiveSession(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.machine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.machine.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if h.device.Active() != 0 {
		t.Fatal("expected hardware released on close")
	}
	if err := h.machine.Stop(context.Background()); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected invalid state after close, got %v", err)
	}
	if err := h.machine.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if h.device.Releases() != 1 {
		t.Fatalf("expected one release, got %d", h.device.Releases())
	}
}

func TestCloseDuringAcquireReleasesLateSession(t *testing.T) {
	h := newHarness(t, nil)
	release := h.device.Hold()

	done := make(chan error, 1)
	go func() { done <- h.machine.Start(context.Background()) }()
	testsupport.Eventually(t, time.Second, func() bool { return h.machine.Pending() == workflow.TriggerStart }, "start pending")

	if err := h.machine.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	release()
	if err := <-done; !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected start to fail after close, got %v", err)
	}
	if h.device.Active() != 0 {
		t.Fatal("expected the late session released")
	}
	if view := h.machine.Surface().Current(); view.Mode != preview.ModeBlank {
		t.Fatalf("expected blank surface after late release, got %s (%s)", view.Mode, view.Source)
	}
}

func TestOnChangeReportsEachTransition(t *testing.T) {
	h := newHarness(t, nil)
	var mu sync.Mutex
	var states []workflow.State
	h.machine.OnChange(func(s workflow.Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	h.device.FailWith(errors.New("busy"))
	_ = h.machine.Start(context.Background())
	h.device.FailWith(nil)
	h.record(t, "x")

	mu.Lock()
	defer mu.Unlock()
	want := []workflow.State{workflow.StateIntro, workflow.StateRecording, workflow.StateReview}
	if !slices.Equal(states, want) {
		t.Fatalf("unexpected notifications %v, want %v", states, want)
	}
}

func TestRandomTriggerSequencesNeverHoldHardwareOutsideRecording(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for run := 0; run < 25; run++ {
		h := newHarness(t, nil)
		for step := 0; step < 40; step++ {
			switch rng.IntN(5) {
			case 0:
				if rng.IntN(4) == 0 {
					h.device.FailWith(errors.New("flaky camera"))
				} else {
					h.device.FailWith(nil)
				}
			case 1:
				if rng.IntN(3) == 0 {
					h.submitter.Script(errors.New("flaky network"))
				}
			case 2:
				if stream := h.device.Last(); stream != nil {
					stream.Emit([]byte{byte(step)})
				}
			}

			trigger := workflow.Triggers[rng.IntN(len(workflow.Triggers))]
			before := h.machine.State()
			err := h.machine.Fire(context.Background(), trigger)
			after := h.machine.State()

			if _, planErr := workflow.Plan(before, trigger); planErr != nil {
				if after != before {
					t.Fatalf("run %d: illegal %s moved %s to %s", run, trigger, before, after)
				}
				if err != nil && !errors.Is(err, services.ErrInvalidState) {
					t.Fatalf("run %d: illegal %s returned %v", run, trigger, err)
				}
			}
			if after == workflow.StateRecording {
				if h.device.Active() != 1 {
					t.Fatalf("run %d: recording with %d active streams", run, h.device.Active())
				}
			} else if h.device.Active() != 0 {
				t.Fatalf("run %d: %d streams held in %s", run, h.device.Active(), after)
			}
			if after == workflow.StateReview && h.machine.Artifact() == nil {
				t.Fatalf("run %d: review without an artifact", run)
			}
			if h.device.MaxActive() > 1 {
				t.Fatalf("run %d: hardware double-held", run)
			}
		}
	}
}
