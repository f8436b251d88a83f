package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/UtsahaJoshi/The-New-Hires/internal/capture"
	"github.com/UtsahaJoshi/The-New-Hires/internal/capture/ffmpeg"
	"github.com/UtsahaJoshi/The-New-Hires/internal/config"
	"github.com/UtsahaJoshi/The-New-Hires/internal/devices"
	"github.com/UtsahaJoshi/The-New-Hires/internal/identity"
	"github.com/UtsahaJoshi/The-New-Hires/internal/logging"
	"github.com/UtsahaJoshi/The-New-Hires/internal/preflight"
	"github.com/UtsahaJoshi/The-New-Hires/internal/submission"
	"github.com/UtsahaJoshi/The-New-Hires/internal/workflow"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var waitDevice bool
	var skipChecks bool
	var saveDir string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record, review and submit a retrospective video",
		Long: `Record a retrospective interactively.

Type an action and press Enter. Only the actions valid for the current step
are offered: start, then stop, then retake or submit. While reviewing, "save"
writes the take to disk for playback in any video player.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if waitDevice && devices.IsPath(cfg.Capture.VideoDevice) {
				fmt.Fprintf(out, "Waiting for %s...\n", cfg.Capture.VideoDevice)
				if err := devices.WaitFor(runCtx, cfg.Capture.VideoDevice, logger); err != nil {
					return err
				}
			}

			if !skipChecks {
				results := preflight.RunAll(runCtx, cfg)
				if blocking := preflight.Blocking(results); len(blocking) > 0 {
					for _, line := range checkLines(blocking, colorize) {
						fmt.Fprintln(out, line)
					}
					return fmt.Errorf("%d required check(s) failed; run `retro doctor` for details", len(blocking))
				}
			}

			var source identity.Source = identity.NewFileSource(cfg.Paths.SessionFile)
			if strings.TrimSpace(userID) != "" {
				source = identity.Static(userID)
			}

			machine := workflow.NewMachine(workflow.Dependencies{
				Device:    ffmpeg.New(cfg, logger),
				Submitter: submission.New(cfg, submission.WithLogger(logger)),
				Identity:  source,
			},
				workflow.WithLogger(logger),
				workflow.WithConstraints(captureConstraints(cfg)),
				workflow.WithContentType(cfg.Capture.ContentType),
				workflow.WithAcquireTimeout(cfg.AcquireTimeout()),
			)

			logger.Info("retrospective session started",
				logging.String(logging.FieldEventType, "session_started"),
				logging.String("config", ctx.configPath),
			)
			rec := newRecorder(machine, cmd.InOrStdin(), out, colorize)
			rec.saveDir = saveDir
			rec.logger = logger
			return rec.run(runCtx)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User identifier to submit as (defaults to the stored session)")
	cmd.Flags().BoolVar(&waitDevice, "wait-device", false, "Wait for the camera to be plugged in before starting")
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip readiness checks before recording")
	cmd.Flags().StringVar(&saveDir, "save-dir", ".", "Directory used by the save action when no path is given")
	return cmd
}

func captureConstraints(cfg *config.Config) capture.Constraints {
	return capture.Constraints{
		Video: strings.TrimSpace(cfg.Capture.VideoDevice) != "",
		Audio: strings.TrimSpace(cfg.Capture.AudioDevice) != "",
	}
}
