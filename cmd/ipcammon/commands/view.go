package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
	"github.com/bryanchriswhite/IPCamMonitor/internal/tui"
)

var logFileFlag string

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Control the monitor from the terminal",
	Long: `Start the monitor with a terminal control panel. The HTTP server runs as
with serve, so the web views and API stay available.

Keys: c connect, f floating view, r record, d disconnect, q quit.`,
	Example: `  # Terminal UI, logs to ipcammon.log
  ipcammon view

  # Terminal UI with X11 video windows
  ipcammon view --display x11`,
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().StringVar(&logFileFlag, "log-file", "ipcammon.log", "file receiving log output while the UI runs (empty discards)")
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.WithComponent("view").Warn().Err(err).Msg("Shutdown finished with errors")
		}
	}()

	go func() {
		if err := a.server.Start(cfg.ServerPort); err != nil {
			logger.WithComponent("view").Error().Err(err).Msg("Server stopped")
		}
	}()

	// signals and the main window close the monitor, which ends the UI
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		select {
		case <-ctx.Done():
		case <-a.quit:
		}
		if err := a.monitor.Close(); err != nil {
			logger.WithComponent("view").Warn().Err(err).Msg("Failed to close monitor")
		}
	}()

	if err := tui.Run(a.monitor, a.camera, logFileFlag); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	stop()
	return nil
}
