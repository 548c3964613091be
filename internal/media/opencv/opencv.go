//go:build gocv

package opencv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/bryanchriswhite/IPCamMonitor/internal/connection"
	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
	"github.com/bryanchriswhite/IPCamMonitor/internal/media"
)

// Available reports whether the OpenCV backend was compiled in
const Available = true

func init() {
	media.RegisterSource(BackendName, func() media.Opener { return &Opener{} })
	media.RegisterWriter(BackendName, func() media.WriterOpener { return &WriterOpener{} })
}

// Opener opens sources with cv::VideoCapture
type Opener struct{}

// Name returns the backend name
func (o *Opener) Name() string {
	return BackendName
}

// Open opens the stream; OpenCV picks the transport from the URL
func (o *Opener) Open(ctx context.Context, conn string) (media.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.VideoCaptureFile(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture did not open")
	}
	// Keep latency low: only the newest frame matters
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	logger.WithComponent("opencv").Info().
		Str("url", connection.Redact(conn)).
		Msg("OpenCV capture opened")

	return &Source{vc: vc, mat: gocv.NewMat()}, nil
}

// Source wraps an open VideoCapture
type Source struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	seq    int64
	closed bool
}

// Read grabs and decodes one frame
func (s *Source) Read(ctx context.Context) (*media.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.vc.IsOpened() {
		return nil, fmt.Errorf("capture not opened")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, media.ErrNoData
	}
	if s.mat.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("unexpected mat type %v", s.mat.Type())
	}

	// ToBytes copies out of the Mat, so the Mat can be reused
	frame := &media.Frame{
		Width:  s.mat.Cols(),
		Height: s.mat.Rows(),
		Order:  media.OrderBGR,
		Pix:    s.mat.ToBytes(),
		Time:   time.Now(),
	}
	s.seq++
	frame.Seq = s.seq
	return frame, nil
}

// Close releases the capture
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.mat.Close()
	return s.vc.Close()
}

// WriterOpener creates cv::VideoWriter outputs
type WriterOpener struct{}

// Name returns the backend name
func (o *WriterOpener) Name() string {
	return BackendName
}

// Create opens a VideoWriter with the given fourcc, rate and size
func (o *WriterOpener) Create(path string, params media.WriterParams) (media.Writer, error) {
	vw, err := gocv.VideoWriterFile(path, params.FourCC, params.FPS, params.Width, params.Height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open video writer: %w", err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("video writer did not open %s", path)
	}

	logger.WithComponent("opencv").Info().
		Str("path", path).
		Str("fourcc", params.FourCC).
		Msg("OpenCV writer opened")

	return &Writer{vw: vw, width: params.Width, height: params.Height}, nil
}

// Writer wraps an open VideoWriter
type Writer struct {
	mu     sync.Mutex
	vw     *gocv.VideoWriter
	width  int
	height int
	closed bool
}

// Write appends one BGR frame
func (w *Writer) Write(frame *media.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer closed")
	}
	if frame.Width != w.width || frame.Height != w.height {
		return fmt.Errorf("frame is %dx%d, writer expects %dx%d", frame.Width, frame.Height, w.width, w.height)
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pix)
	if err != nil {
		return fmt.Errorf("failed to wrap frame: %w", err)
	}
	defer mat.Close()

	return w.vw.Write(mat)
}

// Close flushes and releases the writer
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.vw.Close()
}
