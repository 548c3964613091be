package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/IPCamMonitor/internal/connection"
	"github.com/bryanchriswhite/IPCamMonitor/internal/display"
	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
	"github.com/bryanchriswhite/IPCamMonitor/internal/media"
)

// ErrClosed is returned by actions after Close
var ErrClosed = errors.New("monitor closed")

// statusInterval bounds how often frame counters are published while
// streaming; state transitions are always published
const statusInterval = time.Second

// Status is a snapshot of the monitor state
type Status struct {
	Connected      bool                  `json:"connected"`
	Source         string                `json:"source,omitempty"`
	Backend        string                `json:"backend"`
	SessionID      string                `json:"session_id,omitempty"`
	Streaming      bool                  `json:"streaming"`
	Target         display.Target        `json:"target"`
	Floating       display.FloatingState `json:"floating"`
	Recording      bool                  `json:"recording"`
	RecordingID    string                `json:"recording_id,omitempty"`
	RecordingPath  string                `json:"recording_path,omitempty"`
	Frames         int64                 `json:"frames"`
	RecordedFrames int64                 `json:"recorded_frames"`
	LastError      string                `json:"last_error,omitempty"`
	Time           time.Time             `json:"time"`
}

// Config wires a Monitor to its backends
type Config struct {
	Opener       media.Opener
	WriterOpener media.WriterOpener
	Router       *display.Router
	Recording    RecordingParams
	PumpInterval time.Duration
}

// Monitor is the single entry point for user actions. Every action and
// every pump tick run under one mutex, so a tick never observes a
// half-applied open, close, start or stop.
type Monitor struct {
	mu        sync.Mutex
	capture   *CaptureSession
	recording *RecordingSession
	router    *display.Router
	pump      *Pump
	recParams RecordingParams

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	frames      int64
	lastErr     string
	lastPublish time.Time
	snapshot    atomic.Pointer[Status]

	listenerMu sync.RWMutex
	listeners  []chan Status
	// set once Close has closed every listener channel
	listenersDone bool
}

// New creates an idle monitor
func New(cfg Config) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())

	capture := NewCaptureSession(cfg.Opener)
	m := &Monitor{
		capture:   capture,
		recording: NewRecordingSession(capture, cfg.WriterOpener),
		router:    cfg.Router,
		recParams: cfg.Recording.withDefaults(),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make([]chan Status, 0),
	}
	m.pump = NewPump(cfg.PumpInterval, m.tick, m.streamFailed)

	m.mu.Lock()
	m.publishLocked()
	m.mu.Unlock()
	return m
}

// Connect builds the connection string and opens it, replacing any current
// source. Invalid input leaves the current session untouched; a failed open
// returns the monitor to idle.
func (m *Monitor) Connect(ctx context.Context, params connection.Params) error {
	conn, err := connection.Build(params)
	if err != nil {
		m.mu.Lock()
		m.lastErr = err.Error()
		m.publishLocked()
		m.mu.Unlock()
		return err
	}

	// Stop waits for the in-flight tick, which needs m.mu
	m.pump.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if err := m.capture.Open(ctx, conn); err != nil {
		if idleErr := m.idleLocked(err); idleErr != nil {
			logger.WithComponent("monitor").Warn().Err(idleErr).Msg("Cleanup after failed connect")
		}
		m.publishLocked()
		return err
	}

	m.frames = 0
	m.lastErr = ""
	m.pump.Start()
	m.publishLocked()
	return nil
}

// Disconnect stops streaming and returns to idle
func (m *Monitor) Disconnect() error {
	m.pump.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	err := m.idleLocked(nil)
	m.publishLocked()
	return err
}

// ToggleFloating switches between the main and floating views
func (m *Monitor) ToggleFloating() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	err := m.router.Toggle()
	m.publishLocked()
	return err
}

// SetFloating shows or hides the floating view
func (m *Monitor) SetFloating(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	target := display.TargetMain
	if on {
		target = display.TargetFloating
	}
	err := m.router.SetTarget(target)
	m.publishLocked()
	return err
}

// FloatingClosed handles the user closing the floating window
func (m *Monitor) FloatingClosed() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	err := m.router.FloatingClosed()
	m.publishLocked()
	return err
}

// ToggleRecording starts recording when stopped and stops it when recording
func (m *Monitor) ToggleRecording() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	var err error
	if m.recording.IsRecording() {
		err = m.recording.Stop()
	} else {
		err = m.recording.Start(m.recParams)
	}
	m.publishLocked()
	return err
}

// StartRecording starts recording; it is a no-op while recording
func (m *Monitor) StartRecording() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	err := m.recording.Start(m.recParams)
	m.publishLocked()
	return err
}

// StopRecording stops recording; it is a no-op while stopped
func (m *Monitor) StopRecording() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	err := m.recording.Stop()
	m.publishLocked()
	return err
}

// Close stops the pump and releases every handle. It is safe to call more
// than once.
func (m *Monitor) Close() error {
	// unblock a read stuck inside a tick
	m.cancel()
	m.pump.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if err := m.recording.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := m.capture.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.router.Close(); err != nil {
		errs = append(errs, err)
	}

	m.publishLocked()

	m.listenerMu.Lock()
	for _, ch := range m.listeners {
		close(ch)
	}
	m.listeners = nil
	m.listenersDone = true
	m.listenerMu.Unlock()

	logger.WithComponent("monitor").Info().Msg("Monitor closed")
	return errors.Join(errs...)
}

// Status returns a fresh snapshot
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Snapshot returns the last published status without waiting for an
// in-flight tick
func (m *Monitor) Snapshot() Status {
	if s := m.snapshot.Load(); s != nil {
		return *s
	}
	return Status{}
}

// Subscribe adds a listener for status changes. After Close it returns an
// already closed channel.
func (m *Monitor) Subscribe() chan Status {
	ch := make(chan Status, 10)
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()

	if m.listenersDone {
		close(ch)
		return ch
	}
	m.listeners = append(m.listeners, ch)
	return ch
}

// Unsubscribe removes a listener
func (m *Monitor) Unsubscribe(ch chan Status) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()

	for i, listener := range m.listeners {
		if listener == ch {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// tick moves one frame from the capture to the display and, when recording,
// to the writer. Display and recording each convert their own copy.
func (m *Monitor) tick() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame, err := m.capture.ReadFrame(m.ctx)
	if err != nil {
		return err
	}
	m.frames++

	log := logger.WithComponent("monitor")

	if err := m.router.Render(frame); err != nil {
		log.Warn().Err(err).Msg("Failed to render frame")
	}

	if m.recording.IsRecording() {
		if err := m.recording.WriteFrame(frame); err != nil {
			log.Error().Err(err).Msg("Recording failed, stopping")
			if stopErr := m.recording.Stop(); stopErr != nil {
				log.Warn().Err(stopErr).Msg("Failed to stop recording")
			}
			m.lastErr = err.Error()
			m.publishLocked()
			return nil
		}
	}

	if time.Since(m.lastPublish) >= statusInterval {
		m.publishLocked()
	}
	return nil
}

// streamFailed runs on the pump goroutine after a failed tick
func (m *Monitor) streamFailed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	logger.WithSession("monitor", m.capture.SessionID()).Error().
		Err(err).
		Int64("frames", m.frames).
		Msg("Stream failed, reconnect required")

	if idleErr := m.idleLocked(err); idleErr != nil {
		logger.WithComponent("monitor").Warn().Err(idleErr).Msg("Cleanup after stream failure")
	}
	m.publishLocked()
}

// idleLocked stops recording, releases the capture and shows the main view
func (m *Monitor) idleLocked(cause error) error {
	var errs []error
	if err := m.recording.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := m.capture.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.router.SetTarget(display.TargetMain); err != nil {
		errs = append(errs, fmt.Errorf("failed to restore main view: %w", err))
	}

	if cause != nil {
		m.lastErr = cause.Error()
	}
	return errors.Join(errs...)
}

func (m *Monitor) statusLocked() Status {
	return Status{
		Connected:      m.capture.IsOpen(),
		Source:         m.capture.Source(),
		Backend:        m.capture.Backend(),
		SessionID:      m.capture.SessionID(),
		Streaming:      m.pump.Running(),
		Target:         m.router.Target(),
		Floating:       m.router.FloatingState(),
		Recording:      m.recording.IsRecording(),
		RecordingID:    m.recording.ID(),
		RecordingPath:  m.recording.Path(),
		Frames:         m.frames,
		RecordedFrames: m.recording.Frames(),
		LastError:      m.lastErr,
		Time:           time.Now(),
	}
}

// publishLocked stores the snapshot and notifies listeners without blocking
func (m *Monitor) publishLocked() {
	s := m.statusLocked()
	m.snapshot.Store(&s)
	m.lastPublish = s.Time

	m.listenerMu.RLock()
	defer m.listenerMu.RUnlock()

	for _, listener := range m.listeners {
		select {
		case listener <- s:
		default:
			// Skip if channel is full
		}
	}
}
