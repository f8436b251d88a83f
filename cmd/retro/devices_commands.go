package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/UtsahaJoshi/The-New-Hires/internal/devices"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect capture devices",
	}
	devicesCmd.AddCommand(newDevicesListCommand())
	devicesCmd.AddCommand(newDevicesWatchCommand(ctx))
	return devicesCmd
}

func newDevicesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "list",
		Short:       "List camera and microphone nodes and whether retro can open them",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := devices.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(nodes) == 0 {
				fmt.Fprintln(out, "No capture devices found")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Device", "Kind", "Usable", "Detail"},
				deviceRows(nodes),
			))
			return nil
		},
	}
}

func deviceRows(nodes []devices.Node) [][]string {
	rows := make([][]string, 0, len(nodes))
	for _, node := range nodes {
		detail := ""
		if node.Err != nil {
			detail = fmt.Sprintf("%s: %v", services.Classify(node.Err), node.Err)
		}
		rows = append(rows, []string{node.Path, string(node.Kind), yesNo(node.Accessible()), detail})
	}
	return rows
}

func newDevicesWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print camera and microphone hot-plug events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			watcher := devices.NewWatcher(logger)
			if err := watcher.Start(runCtx, func(e devices.Event) {
				fmt.Fprintf(out, "%-6s %s (%s)\n", e.Action, e.Path, e.Subsystem)
			}); err != nil {
				return err
			}
			defer watcher.Stop()

			fmt.Fprintln(out, "Watching for capture devices; press Ctrl+C to stop.")
			<-runCtx.Done()
			return nil
		},
	}
}
