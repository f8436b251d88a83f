package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/UtsahaJoshi/The-New-Hires/internal/fileutil"
	"github.com/UtsahaJoshi/The-New-Hires/internal/identity"
	"github.com/UtsahaJoshi/The-New-Hires/internal/logging"
	"github.com/UtsahaJoshi/The-New-Hires/internal/preview"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
	"github.com/UtsahaJoshi/The-New-Hires/internal/submission"
	"github.com/UtsahaJoshi/The-New-Hires/internal/workflow"
)

const closeTimeout = 15 * time.Second

var errInputClosed = errors.New("input closed before the recording was submitted")

// recorder drives a workflow.Machine from line-oriented user input.
type recorder struct {
	machine  *workflow.Machine
	in       io.Reader
	out      io.Writer
	colorize bool
	saveDir  string
	title    cases.Caser
	logger   *slog.Logger
}

func newRecorder(machine *workflow.Machine, in io.Reader, out io.Writer, colorize bool) *recorder {
	r := &recorder{
		machine:  machine,
		in:       in,
		out:      out,
		colorize: colorize,
		saveDir:  ".",
		title:    cases.Title(language.English),
		logger:   logging.NewNop(),
	}
	machine.Surface().OnChange(r.showPreview)
	return r
}

func (r *recorder) run(ctx context.Context) error {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := r.machine.Close(closeCtx); err != nil {
			logging.ErrorWithContext(r.logger, "capture device not released on exit", "capture_release_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "close other recorders or unplug the camera"),
			)
			r.printError(err)
		}
	}()

	r.printIntro()
	lines := readLines(ctx, r.in)
	r.prompt()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out, "\nInterrupted; releasing the camera.")
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if r.machine.State() == workflow.StateDone {
					return nil
				}
				return errInputClosed
			}
			done := r.handle(ctx, line)
			if done {
				return nil
			}
			if ctx.Err() != nil {
				continue
			}
			r.prompt()
		}
	}
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// handle executes one input line and reports whether the session is over.
func (r *recorder) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "help", "?":
		r.printHelp()
		return false
	case "quit", "exit", "q":
		fmt.Fprintln(r.out, "Leaving without submitting.")
		return true
	case "status":
		r.printStatus()
		return false
	case "save":
		var target string
		if len(fields) > 1 {
			// Paths keep their original case.
			target = strings.TrimSpace(strings.TrimSpace(line)[len(fields[0]):])
		}
		r.save(target)
		return false
	}

	trigger, ok := parseTrigger(fields[0])
	if !ok {
		fmt.Fprintf(r.out, "Unknown action %q. Type \"help\" for the list.\n", fields[0])
		return false
	}
	if trigger == workflow.TriggerSubmit {
		fmt.Fprintln(r.out, "Uploading...")
	}
	if err := r.machine.Fire(ctx, trigger); err != nil {
		if ctx.Err() == nil {
			r.printError(err)
		}
		return false
	}
	r.afterTransition(trigger)
	return r.machine.State().Terminal()
}

func parseTrigger(word string) (workflow.Trigger, bool) {
	switch word {
	case "start", "record", "rec":
		return workflow.TriggerStart, true
	case "stop":
		return workflow.TriggerStop, true
	case "retake", "redo":
		return workflow.TriggerRetake, true
	case "submit", "send", "upload":
		return workflow.TriggerSubmit, true
	default:
		return "", false
	}
}

func (r *recorder) afterTransition(trigger workflow.Trigger) {
	switch trigger {
	case workflow.TriggerStart, workflow.TriggerRetake:
		fmt.Fprintln(r.out, renderStatusLine("Recording", statusInfo, "type \"stop\" when you are finished", r.colorize))
	case workflow.TriggerStop:
		artifact := r.machine.Artifact()
		if artifact.Empty() {
			fmt.Fprintln(r.out, renderStatusLine("Review", statusWarn, "nothing was captured; retake before submitting", r.colorize))
			return
		}
		fmt.Fprintln(r.out, renderStatusLine("Review", statusOK,
			fmt.Sprintf("captured %s in %d chunk(s)", formatBytes(artifact.Size()), artifact.ChunkCount()), r.colorize))
	case workflow.TriggerSubmit:
		outcome := r.machine.Outcome()
		fmt.Fprintln(r.out, renderStatusLine("Submitted", statusOK,
			fmt.Sprintf("HTTP %d, request %s", outcome.Receipt.StatusCode, outcome.Receipt.RequestID), r.colorize))
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, "You're Hired! Welcome to the team, officially.")
	}
}

func (r *recorder) showPreview(view preview.View) {
	switch view.Mode {
	case preview.ModeLive:
		fmt.Fprintln(r.out, renderStatusLine("Preview", statusInfo, "live feed from "+view.Source, r.colorize))
	case preview.ModePlayback:
		fmt.Fprintln(r.out, renderStatusLine("Preview", statusInfo, "playback ready; type \"save\" to keep a copy", r.colorize))
	}
}

func (r *recorder) save(target string) {
	artifact := r.machine.Artifact()
	if artifact == nil {
		fmt.Fprintln(r.out, "Nothing to save yet; record a take first.")
		return
	}
	if target == "" {
		target = filepath.Join(r.saveDir, submission.FileName(identity.ID(artifact.AttemptID()), artifact.ContentType()))
	}
	if err := fileutil.WriteVerified(target, artifact.Reader(), int64(artifact.Size()), 0o644); err != nil {
		r.printError(fmt.Errorf("save recording: %w", err))
		return
	}
	fmt.Fprintln(r.out, renderStatusLine("Saved", statusOK, target, r.colorize))
}

func (r *recorder) printIntro() {
	for _, line := range renderSectionHeader("Sprint Retrospective", r.colorize) {
		fmt.Fprintln(r.out, line)
	}
	fmt.Fprintln(r.out, "Congratulations on surviving your first sprint!")
	fmt.Fprintln(r.out, "Record a short testimonial for the company archives.")
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Prompt: \"What was your biggest challenge, and what did you learn about The New Hire culture?\"")
	fmt.Fprintln(r.out)
}

func (r *recorder) printHelp() {
	fmt.Fprintln(r.out, "Actions:")
	fmt.Fprintln(r.out, "  start    open the camera and begin recording")
	fmt.Fprintln(r.out, "  stop     finish recording and review the take")
	fmt.Fprintln(r.out, "  retake   discard the take and record again")
	fmt.Fprintln(r.out, "  submit   upload the take")
	fmt.Fprintln(r.out, "  save [path]  write the take to disk")
	fmt.Fprintln(r.out, "  status   show the current step")
	fmt.Fprintln(r.out, "  quit     leave without submitting")
}

func (r *recorder) printStatus() {
	snap := r.machine.Snapshot()
	fmt.Fprintln(r.out, renderStatusLine("Step", statusInfo, r.title.String(string(snap.State)), r.colorize))
	fmt.Fprintln(r.out, renderStatusLine("Camera in use", statusInfo, yesNo(snap.Capturing), r.colorize))
	if snap.Artifact != nil {
		fmt.Fprintln(r.out, renderStatusLine("Take", statusInfo, formatBytes(snap.Artifact.Size()), r.colorize))
	}
	if snap.Outcome.Attempts > 0 {
		fmt.Fprintln(r.out, renderStatusLine("Upload attempts", statusInfo, fmt.Sprint(snap.Outcome.Attempts), r.colorize))
	}
	if snap.LastError != nil {
		fmt.Fprintln(r.out, renderStatusLine("Last error", statusWarn, services.UserMessage(snap.LastError), r.colorize))
	}
}

func (r *recorder) printError(err error) {
	fmt.Fprintln(r.out, renderStatusLine("Error", statusError, services.UserMessage(err), r.colorize))
}

func (r *recorder) prompt() {
	actions := make([]string, 0, 4)
	for _, trigger := range r.machine.Affordances() {
		actions = append(actions, string(trigger))
	}
	if r.machine.State() == workflow.StateReview {
		actions = append(actions, "save")
	}
	actions = append(actions, "quit")
	fmt.Fprintf(r.out, "[%s] %s > ", r.title.String(string(r.machine.State())), strings.Join(actions, " | "))
}

func formatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
