package display

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
	"github.com/bryanchriswhite/IPCamMonitor/internal/media"
)

// Target selects which surface receives frames
type Target int

const (
	TargetMain Target = iota
	TargetFloating
)

// String returns the target name used in status and logs
func (t Target) String() string {
	switch t {
	case TargetMain:
		return "main"
	case TargetFloating:
		return "floating"
	default:
		return "unknown"
	}
}

// MarshalText renders the target as its name in JSON
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// FloatingState is the lifecycle of the floating surface
type FloatingState int

const (
	FloatingNotCreated FloatingState = iota
	FloatingVisible
	FloatingHidden
)

// String returns the state name used in status and logs
func (s FloatingState) String() string {
	switch s {
	case FloatingNotCreated:
		return "not_created"
	case FloatingVisible:
		return "visible"
	case FloatingHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// MarshalText renders the state as its name in JSON
func (s FloatingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Surface is something a frame can be painted on
type Surface interface {
	// Show makes the surface visible
	Show() error

	// Hide makes the surface invisible without releasing it
	Hide() error

	// Paint draws an image exactly Size() large
	Paint(img *image.RGBA) error

	// Size returns the drawable size in pixels
	Size() (width, height int)

	// Close releases the surface
	Close() error

	// Name returns a human-readable name for logs
	Name() string
}

// SurfaceFactory creates the floating surface on first use
type SurfaceFactory func() (Surface, error)

// Overlay draws on top of a displayed image
type Overlay interface {
	Render(img *image.RGBA) error
}

// Router decides which surface receives each frame and owns the floating
// surface. The floating surface is created once and then only shown and
// hidden until Close.
type Router struct {
	mu          sync.Mutex
	main        Surface
	newFloating SurfaceFactory
	floating    Surface
	state       FloatingState
	target      Target
	overlay     Overlay

	// current is the last painted image; surfaces may repaint from it
	// asynchronously so it must stay reachable until replaced
	current *image.RGBA
	frames  int64
}

// NewRouter creates a router painting on main until floating is requested
func NewRouter(main Surface, newFloating SurfaceFactory) *Router {
	return &Router{
		main:        main,
		newFloating: newFloating,
		state:       FloatingNotCreated,
		target:      TargetMain,
	}
}

// SetOverlay installs an overlay drawn on every displayed image
func (r *Router) SetOverlay(o Overlay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overlay = o
}

// SetTarget switches the active surface
func (r *Router) SetTarget(t Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setTargetLocked(t)
}

func (r *Router) setTargetLocked(t Target) error {
	log := logger.WithComponent("display")

	switch t {
	case TargetFloating:
		if r.floating == nil {
			if r.newFloating == nil {
				return errors.New("no floating surface available")
			}
			s, err := r.newFloating()
			if err != nil {
				return fmt.Errorf("failed to create floating surface: %w", err)
			}
			r.floating = s
			log.Info().Str("surface", s.Name()).Msg("Floating surface created")
		}
		if err := r.floating.Show(); err != nil {
			return fmt.Errorf("failed to show floating surface: %w", err)
		}
		r.state = FloatingVisible
		r.target = TargetFloating
		if err := r.main.Hide(); err != nil {
			log.Warn().Err(err).Msg("Failed to hide main surface")
		}

	case TargetMain:
		if r.floating != nil && r.state == FloatingVisible {
			if err := r.floating.Hide(); err != nil {
				log.Warn().Err(err).Msg("Failed to hide floating surface")
			}
			r.state = FloatingHidden
		}
		r.target = TargetMain
		if err := r.main.Show(); err != nil {
			return fmt.Errorf("failed to show main surface: %w", err)
		}

	default:
		return fmt.Errorf("unknown display target %d", t)
	}

	log.Debug().
		Stringer("target", r.target).
		Stringer("floating", r.state).
		Msg("Display target changed")
	return nil
}

// Toggle flips between main and floating
func (r *Router) Toggle() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.target == TargetFloating {
		return r.setTargetLocked(TargetMain)
	}
	return r.setTargetLocked(TargetFloating)
}

// FloatingClosed handles the user closing the floating window
func (r *Router) FloatingClosed() error {
	return r.SetTarget(TargetMain)
}

// Render converts the frame to display order, fits it to the active
// surface and paints it
func (r *Router) Render(frame *media.Frame) error {
	if !frame.Valid() {
		return errors.New("invalid frame")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	surface := r.main
	if r.target == TargetFloating && r.floating != nil {
		surface = r.floating
	}

	w, h := surface.Size()
	img := media.Letterbox(frame.Convert(media.OrderRGB).RGBA(), w, h)

	if r.overlay != nil {
		if err := r.overlay.Render(img); err != nil {
			logger.WithComponent("display").Debug().Err(err).Msg("Overlay render failed")
		}
	}

	if err := surface.Paint(img); err != nil {
		return fmt.Errorf("failed to paint %s: %w", surface.Name(), err)
	}
	r.current = img
	r.frames++
	return nil
}

// Target returns the active target
func (r *Router) Target() Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// FloatingState returns the floating surface lifecycle state
func (r *Router) FloatingState() FloatingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Floating returns the floating surface, nil before first use
func (r *Router) Floating() Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.floating
}

// Current returns the image most recently painted
func (r *Router) Current() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Frames returns the number of frames painted
func (r *Router) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close destroys the floating surface and closes the main one
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.floating != nil {
		if err := r.floating.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close floating surface: %w", err))
		}
		r.floating = nil
	}
	r.state = FloatingNotCreated
	r.target = TargetMain
	r.current = nil

	if err := r.main.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close main surface: %w", err))
	}
	return errors.Join(errs...)
}
