package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bryanchriswhite/IPCamMonitor/internal/api"
	"github.com/bryanchriswhite/IPCamMonitor/internal/config"
	"github.com/bryanchriswhite/IPCamMonitor/internal/connection"
	"github.com/bryanchriswhite/IPCamMonitor/internal/display"
	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
	"github.com/bryanchriswhite/IPCamMonitor/internal/media"
	"github.com/bryanchriswhite/IPCamMonitor/internal/output"
	"github.com/bryanchriswhite/IPCamMonitor/internal/overlay"
	"github.com/bryanchriswhite/IPCamMonitor/internal/session"

	// Capture and recording backends
	_ "github.com/bryanchriswhite/IPCamMonitor/internal/media/ffmpeg"
	_ "github.com/bryanchriswhite/IPCamMonitor/internal/media/gstreamer"
	_ "github.com/bryanchriswhite/IPCamMonitor/internal/media/mjpeg"
	"github.com/bryanchriswhite/IPCamMonitor/internal/media/opencv"
)

// app is the wired monitor with its display backend and API server
type app struct {
	cfg     *config.Config
	camera  connection.Params
	monitor *session.Monitor
	server  *api.Server

	x11      *display.X11
	surfaces []display.Surface

	// quit is closed when the user closes the main window
	quit     chan struct{}
	quitOnce sync.Once
}

// loadConfig reads configuration and initializes logging
func loadConfig() (*config.Config, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}
	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	return cfg, nil
}

func cameraParams(cfg *config.Config) connection.Params {
	return connection.Params{
		URL:      cfg.Camera.URL,
		Host:     cfg.Camera.Host,
		Port:     cfg.Camera.Port,
		Username: cfg.Camera.Username,
		Password: cfg.Camera.Password,
	}
}

// newApp builds every component from cfg. The monitor starts idle.
func newApp(cfg *config.Config) (*app, error) {
	log := logger.WithComponent("app")

	opener, err := media.NewOpener(cfg.Camera.Backend)
	if err != nil {
		return nil, err
	}
	writers, err := media.NewWriterOpener(cfg.Recording.Backend)
	if err != nil {
		return nil, err
	}
	if (cfg.Camera.Backend == opencv.BackendName || cfg.Recording.Backend == opencv.BackendName) && !opencv.Available {
		log.Warn().Msg("OpenCV backend selected but not compiled in; rebuild with -tags gocv")
	}

	if err := os.MkdirAll(cfg.Recording.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	a := &app{
		cfg:    cfg,
		camera: cameraParams(cfg),
		quit:   make(chan struct{}),
	}

	var (
		mainSurface display.Surface
		newFloating display.SurfaceFactory
		opts        = api.Options{Camera: a.camera}
	)

	switch cfg.Display.Backend {
	case config.DisplayX11:
		x, err := display.NewX11()
		if err != nil {
			return nil, err
		}
		a.x11 = x

		win, err := x.NewWindow(display.MainTitle, cfg.Display.Width, cfg.Display.Height, a.requestQuit)
		if err != nil {
			x.Close()
			return nil, err
		}
		mainSurface = win
		newFloating = func() (display.Surface, error) {
			return x.NewWindow(display.FloatingTitle, cfg.Display.Width, cfg.Display.Height, func() {
				if err := a.monitor.FloatingClosed(); err != nil {
					logger.WithComponent("app").Warn().Err(err).Msg("Failed to close floating view")
				}
			})
		}

	default:
		surfaceCfg := output.Config{
			Width:   cfg.Display.Width,
			Height:  cfg.Display.Height,
			Quality: cfg.Display.Quality,
		}
		main := output.NewMJPEGSurface("main", surfaceCfg)
		floating := output.NewMJPEGSurface("floating", surfaceCfg)
		// the router closes floating only once created
		a.surfaces = append(a.surfaces, floating)

		mainSurface = main
		newFloating = func() (display.Surface, error) { return floating, nil }
		opts.Main = main
		opts.Floating = floating
	}

	router := display.NewRouter(mainSurface, newFloating)
	if err := router.SetTarget(display.TargetMain); err != nil {
		a.closeDisplay()
		return nil, err
	}

	a.monitor = session.New(session.Config{
		Opener:       opener,
		WriterOpener: writers,
		Router:       router,
		Recording: session.RecordingParams{
			Width:     cfg.Recording.Width,
			Height:    cfg.Recording.Height,
			FPS:       cfg.Recording.FPS,
			Directory: cfg.Recording.Directory,
			FileName:  cfg.Recording.FileName,
			FourCC:    cfg.Recording.FourCC,
		},
		PumpInterval: time.Duration(cfg.Pump.IntervalMS) * time.Millisecond,
	})

	// always installed so the API can switch it on at runtime
	statusOverlay := overlay.NewStatusOverlay(func() overlay.State {
		s := a.monitor.Snapshot()
		return overlay.State{Recording: s.Recording, Source: s.Source}
	})
	statusOverlay.SetEnabled(cfg.Display.Overlay)
	router.SetOverlay(statusOverlay)
	opts.Overlay = statusOverlay

	a.server = api.NewServer(a.monitor, opts)

	log.Info().
		Str("camera_backend", opener.Name()).
		Str("recording_backend", writers.Name()).
		Str("display_backend", cfg.Display.Backend).
		Msg("Monitor ready")
	return a, nil
}

// autoConnect connects to the configured camera when one is set
func (a *app) autoConnect(ctx context.Context) {
	if a.camera == (connection.Params{}) {
		return
	}
	if err := a.monitor.Connect(ctx, a.camera); err != nil {
		logger.WithComponent("app").Warn().Err(err).Msg("Auto-connect failed")
	}
}

func (a *app) requestQuit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

// Close tears down the monitor, the API server and the display
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}
	if err := a.monitor.Close(); err != nil {
		errs = append(errs, err)
	}
	a.closeDisplay()
	return errors.Join(errs...)
}

func (a *app) closeDisplay() {
	for _, s := range a.surfaces {
		s.Close()
	}
	if a.x11 != nil {
		a.x11.Close()
	}
}
