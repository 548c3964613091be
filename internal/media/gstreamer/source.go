// Package gstreamer captures network streams through a gst-launch-1.0
// subprocess that decodes to raw BGR on stdout. Running GStreamer out of
// process keeps cgo out of the binary.
package gstreamer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/IPCamMonitor/internal/connection"
	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
	"github.com/bryanchriswhite/IPCamMonitor/internal/media"
)

// BackendName is the config value selecting this backend
const BackendName = "gstreamer"

// Binary is the launcher looked up on PATH
const Binary = "gst-launch-1.0"

func init() {
	media.RegisterSource(BackendName, func() media.Opener { return NewOpener(640, 480) })
}

// Opener starts one gst-launch pipeline per Open
type Opener struct {
	width  int
	height int
}

// NewOpener creates an opener scaling every stream to width x height.
// Raw output carries no framing, so the size has to be fixed up front.
func NewOpener(width, height int) *Opener {
	return &Opener{width: width, height: height}
}

// Name returns the backend name
func (o *Opener) Name() string {
	return BackendName
}

// PipelineArgs returns the gst-launch arguments for a stream. Each element
// is a separate argv entry so the URL never passes through a shell.
func PipelineArgs(uri string, width, height int) []string {
	return []string{
		"-q",
		"uridecodebin", "uri=" + uri, "!",
		"videoconvert", "!",
		"videoscale", "!",
		fmt.Sprintf("video/x-raw,format=BGR,width=%d,height=%d", width, height), "!",
		"fdsink", "fd=1", "sync=false",
	}
}

// Open starts the pipeline and waits for the first frame so that an
// unreachable camera is reported here rather than on the first Read
func (o *Opener) Open(ctx context.Context, conn string) (media.Source, error) {
	path, err := exec.LookPath(Binary)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", Binary, err)
	}

	log := logger.WithComponent("gstreamer")

	cmd := exec.Command(path, PipelineArgs(conn, o.width, o.height)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", Binary, err)
	}

	s := &Source{
		cmd:       cmd,
		reader:    bufio.NewReaderSize(stdout, o.width*o.height*3*2),
		width:     o.width,
		height:    o.height,
		stderrLog: &tail{max: 20},
		done:      make(chan struct{}),
	}
	go s.logStderr(stderr)

	log.Debug().
		Int("pid", cmd.Process.Pid).
		Str("url", connection.Redact(conn)).
		Msg("GStreamer subprocess started")

	// No timeout of its own, but a cancelled Open must not hang on the pipe
	stop := context.AfterFunc(ctx, s.kill)
	first, err := s.readFrame(ctx)
	stop()
	if err != nil {
		s.Close()
		if msg := s.stderrLog.String(); msg != "" {
			return nil, fmt.Errorf("pipeline produced no frames: %w (%s)", err, msg)
		}
		return nil, fmt.Errorf("pipeline produced no frames: %w", err)
	}
	s.pending = first

	log.Info().
		Str("url", connection.Redact(conn)).
		Int("width", o.width).
		Int("height", o.height).
		Msg("GStreamer stream opened")

	return s, nil
}

// Source reads fixed-size raw frames from a gst-launch process
type Source struct {
	mu        sync.Mutex
	cmd       *exec.Cmd
	reader    *bufio.Reader
	width     int
	height    int
	seq       int64
	pending   *media.Frame
	stderrLog *tail
	closed    bool
	done      chan struct{}
	killOnce  sync.Once
}

// Read returns the next frame. Cancelling ctx kills the pipeline.
func (s *Source) Read(ctx context.Context) (*media.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("pipeline stopped")
	}
	if s.pending != nil {
		f := s.pending
		s.pending = nil
		return f, nil
	}

	stop := context.AfterFunc(ctx, s.kill)
	defer stop()
	return s.readFrameLocked(ctx)
}

func (s *Source) readFrame(ctx context.Context) (*media.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readFrameLocked(ctx)
}

// readFrameLocked reads exactly one frame
func (s *Source) readFrameLocked(ctx context.Context) (*media.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame := media.NewFrame(s.width, s.height, media.OrderBGR)
	if _, err := io.ReadFull(s.reader, frame.Pix); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("read aborted: %w", ctxErr)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: pipeline exited", media.ErrNoData)
		}
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	s.seq++
	frame.Seq = s.seq
	frame.Time = time.Now()
	return frame, nil
}

// logStderr forwards gst-launch diagnostics and keeps the last lines for
// error messages
func (s *Source) logStderr(r io.Reader) {
	defer close(s.done)

	log := logger.WithComponent("gstreamer")
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		s.stderrLog.add(line)
		if strings.Contains(line, "ERROR") || strings.Contains(line, "WARN") {
			log.Warn().Str("gst", line).Msg("GStreamer message")
		} else {
			log.Debug().Str("gst", line).Msg("GStreamer output")
		}
	}
}

// kill stops the process; a Read blocked on stdout then returns EOF
func (s *Source) kill() {
	s.killOnce.Do(func() {
		if s.cmd.Process != nil {
			logger.WithComponent("gstreamer").Debug().Int("pid", s.cmd.Process.Pid).Msg("Killing GStreamer subprocess")
			s.cmd.Process.Kill()
		}
	})
}

// Close kills the pipeline and reaps the process
func (s *Source) Close() error {
	s.kill()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	// Drain stderr before Wait closes the pipe
	<-s.done
	s.cmd.Wait()
	return nil
}

// tail keeps the last max lines written to it
type tail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "; ")
}
