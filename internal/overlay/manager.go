package overlay

import (
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
)

// State is what the status overlay shows
type State struct {
	Recording bool
	Source    string
}

// Manager draws widgets in the order they were added
type Manager struct {
	widgets []Widget
	mu      sync.RWMutex
	enabled bool
}

// NewManager creates a new overlay manager
func NewManager() *Manager {
	return &Manager{enabled: true}
}

// NewStatusOverlay creates a manager with the recording badge in the top
// right corner and the source label in the bottom left
func NewStatusOverlay(state func() State) *Manager {
	m := NewManager()
	// IDs are fixed and distinct, AddWidget cannot fail here
	_ = m.AddWidget(NewRecordingBadge("recording", TopRight, func() bool {
		return state().Recording
	}))
	_ = m.AddWidget(NewTextWidget("source", BottomLeft, func() string {
		return state().Source
	}))
	return m
}

// AddWidget adds a widget on top of the existing ones
func (m *Manager) AddWidget(widget Widget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.widgets {
		if w.ID() == widget.ID() {
			return fmt.Errorf("widget with ID %s already exists", widget.ID())
		}
	}

	m.widgets = append(m.widgets, widget)
	logger.WithComponent("overlay").Debug().
		Str("id", widget.ID()).
		Str("type", widget.Type()).
		Msg("Added widget")
	return nil
}

// SetEnabled enables or disables the entire overlay
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// IsEnabled returns whether the overlay is enabled
func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Render renders all enabled widgets onto img
func (m *Manager) Render(img *image.RGBA) error {
	m.mu.RLock()
	if !m.enabled {
		m.mu.RUnlock()
		return nil
	}
	widgets := append([]Widget(nil), m.widgets...)
	m.mu.RUnlock()

	for _, widget := range widgets {
		if !widget.IsEnabled() {
			continue
		}
		if err := widget.Render(img); err != nil {
			logger.WithComponent("overlay").Debug().
				Err(err).
				Str("id", widget.ID()).
				Msg("Failed to render widget")
		}
	}
	return nil
}
