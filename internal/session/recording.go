package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
	"github.com/bryanchriswhite/IPCamMonitor/internal/media"
)

// Recording defaults
const (
	DefaultFPS       = 20.0
	DefaultWidth     = 640
	DefaultHeight    = 480
	DefaultFourCC    = "XVID"
	DefaultFileName  = "video.avi"
	DefaultDirectory = "recorded_videos"
)

// CaptureState reports whether a capture handle is open
type CaptureState interface {
	IsOpen() bool
}

// RecordingParams configures the writer opened by Start
type RecordingParams struct {
	Width     int
	Height    int
	FPS       float64
	Directory string
	FileName  string
	FourCC    string
}

// withDefaults fills zero fields
func (p RecordingParams) withDefaults() RecordingParams {
	if p.Width <= 0 {
		p.Width = DefaultWidth
	}
	if p.Height <= 0 {
		p.Height = DefaultHeight
	}
	if p.FPS <= 0 {
		p.FPS = DefaultFPS
	}
	if p.Directory == "" {
		p.Directory = DefaultDirectory
	}
	if p.FileName == "" {
		p.FileName = DefaultFileName
	}
	if p.FourCC == "" {
		p.FourCC = DefaultFourCC
	}
	return p
}

// RecordingSession owns the writer handle. It only records while the
// capture it was created with has an open handle.
type RecordingSession struct {
	mu      sync.Mutex
	capture CaptureState
	opener  media.WriterOpener

	writer  media.Writer
	params  RecordingParams
	path    string
	id      string
	frames  int64
	started time.Time
}

// NewRecordingSession creates a stopped recording session
func NewRecordingSession(capture CaptureState, opener media.WriterOpener) *RecordingSession {
	return &RecordingSession{capture: capture, opener: opener}
}

// Start opens the writer. Starting while already recording is a no-op.
func (r *RecordingSession) Start(params RecordingParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer != nil {
		return nil
	}
	if r.capture == nil || !r.capture.IsOpen() {
		return ErrNoActiveCapture
	}

	params = params.withDefaults()
	if err := os.MkdirAll(params.Directory, 0o755); err != nil {
		return fmt.Errorf("failed to create recording directory: %w", err)
	}

	path := filepath.Join(params.Directory, params.FileName)
	w, err := r.opener.Create(path, media.WriterParams{
		FourCC: params.FourCC,
		FPS:    params.FPS,
		Width:  params.Width,
		Height: params.Height,
	})
	if err != nil {
		return fmt.Errorf("failed to open writer %s: %w", path, err)
	}

	r.writer = w
	r.params = params
	r.path = path
	r.id = uuid.NewString()
	r.frames = 0
	r.started = time.Now()

	logger.WithSession("recording", r.id).Info().
		Str("path", path).
		Str("backend", r.opener.Name()).
		Str("fourcc", params.FourCC).
		Float64("fps", params.FPS).
		Int("width", params.Width).
		Int("height", params.Height).
		Msg("Recording started")
	return nil
}

// WriteFrame appends an encoder-order copy of frame. It does nothing when
// not recording.
func (r *RecordingSession) WriteFrame(frame *media.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return nil
	}
	if !frame.Valid() {
		return fmt.Errorf("invalid frame")
	}

	out := frame.Convert(media.OrderBGR)
	if out.Width != r.params.Width || out.Height != r.params.Height {
		out = out.Resize(r.params.Width, r.params.Height)
	}

	if err := r.writer.Write(out); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	r.frames++
	return nil
}

// Stop flushes and releases the writer; stopping when stopped is a no-op
func (r *RecordingSession) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return nil
	}

	w := r.writer
	r.writer = nil
	err := w.Close()

	logger.WithSession("recording", r.id).Info().
		Str("path", r.path).
		Int64("frames", r.frames).
		Dur("duration", time.Since(r.started)).
		Msg("Recording stopped")

	if err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// IsRecording reports whether a writer is open
func (r *RecordingSession) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer != nil
}

// Path returns the output file of the current (or last) recording
func (r *RecordingSession) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// ID returns the id of the current (or last) recording
func (r *RecordingSession) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// Frames returns the number of frames written to the current (or last)
// recording
func (r *RecordingSession) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
