package testsupport

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/UtsahaJoshi/The-New-Hires/internal/identity"
	"github.com/UtsahaJoshi/The-New-Hires/internal/recording"
	"github.com/UtsahaJoshi/The-New-Hires/internal/submission"
)

// SubmitCall records one FakeSubmitter invocation.
type SubmitCall struct {
	Artifact *recording.Artifact
	ID       identity.ID
}

// FakeSubmitter is a submission.Client with scripted outcomes.
type FakeSubmitter struct {
	mu      sync.Mutex
	calls   []SubmitCall
	results []error
	gate    chan struct{}
}

// NewFakeSubmitter returns a submitter that succeeds unless scripted
// otherwise.
func NewFakeSubmitter() *FakeSubmitter {
	return &FakeSubmitter{}
}

// Script queues outcomes for successive calls; nil means success. Calls
// beyond the script succeed.
func (f *FakeSubmitter) Script(results ...error) {
	f.mu.Lock()
	f.results = append(f.results, results...)
	f.mu.Unlock()
}

// Hold makes subsequent Submit calls block until the returned function runs.
func (f *FakeSubmitter) Hold() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

func (f *FakeSubmitter) Submit(ctx context.Context, artifact *recording.Artifact, id identity.ID) (submission.Receipt, error) {
	f.mu.Lock()
	f.calls = append(f.calls, SubmitCall{Artifact: artifact, ID: id})
	gate := f.gate
	var result error
	if len(f.results) > 0 {
		result = f.results[0]
		f.results = f.results[1:]
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return submission.Receipt{}, ctx.Err()
		}
	}
	if result != nil {
		return submission.Receipt{}, result
	}
	return submission.Receipt{StatusCode: http.StatusOK, RequestID: "fake", SubmittedAt: time.Now()}, nil
}

// Calls returns a copy of the recorded invocations.
func (f *FakeSubmitter) Calls() []SubmitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SubmitCall(nil), f.calls...)
}

// Eventually polls cond until it holds or the timeout elapses.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting: %s", msg)
		}
		time.Sleep(time.Millisecond)
	}
}
