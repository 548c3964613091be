package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/IPCamMonitor/internal/config"
	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the IPCamMonitor server",
	Long: `Start the monitor with its HTTP control page and API.

With the web display backend the main and floating views are served as MJPEG
streams; with the x11 backend they open as desktop windows. When a camera is
configured the monitor connects to it on startup.`,
	Example: `  # Start server on default port (8080)
  ipcammon serve

  # Start server on custom port
  ipcammon serve --port 9090

  # Show video in X11 windows
  ipcammon serve --display x11

  # Start with debug logging
  ipcammon serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.WithComponent("serve")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("Shutdown finished with errors")
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start(cfg.ServerPort)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.autoConnect(ctx)

	log.Info().
		Str("web_ui", fmt.Sprintf("http://localhost:%d", cfg.ServerPort)).
		Str("api", fmt.Sprintf("http://localhost:%d/api", cfg.ServerPort)).
		Msg("IPCamMonitor is running, press Ctrl+C to stop")
	if cfg.Display.Backend == config.DisplayWeb {
		log.Info().
			Str("main", fmt.Sprintf("http://localhost:%d/stream/main", cfg.ServerPort)).
			Str("floating", fmt.Sprintf("http://localhost:%d/stream/floating", cfg.ServerPort)).
			Msg("Video streams")
	}

	select {
	case <-ctx.Done():
	case <-a.quit:
		log.Info().Msg("Main window closed")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	log.Info().Msg("Shutting down gracefully...")
	return nil
}
