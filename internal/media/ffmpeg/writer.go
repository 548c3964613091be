// Package ffmpeg records frames by piping raw BGR video into an ffmpeg
// subprocess.
package ffmpeg

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
	"github.com/bryanchriswhite/IPCamMonitor/internal/media"
)

// BackendName is the config value selecting this backend
const BackendName = "ffmpeg"

func init() {
	media.RegisterWriter(BackendName, func() media.WriterOpener { return NewWriterOpener() })
}

// findBinary locates a binary in PATH or common locations
func findBinary(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/opt/homebrew/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case "linux":
		paths = []string{
			"/usr/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case "windows":
		paths = []string{
			"C:\\ffmpeg\\bin\\" + name + ".exe",
			"C:\\Program Files\\ffmpeg\\bin\\" + name + ".exe",
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH or common locations", name)
}

// WriterOpener starts one ffmpeg process per recording
type WriterOpener struct {
	binary string
}

// NewWriterOpener creates an opener; the binary is resolved on first use
func NewWriterOpener() *WriterOpener {
	return &WriterOpener{}
}

// Name returns the backend name
func (o *WriterOpener) Name() string {
	return BackendName
}

// codecFor maps a fourcc onto an ffmpeg encoder
func codecFor(fourcc string) string {
	switch strings.ToUpper(fourcc) {
	case "MJPG":
		return "mjpeg"
	case "H264", "X264", "AVC1":
		return "libx264"
	default:
		// XVID, DIVX, FMP4 are all MPEG-4 part 2
		return "mpeg4"
	}
}

// EncoderArgs builds the ffmpeg command line for a recording
func EncoderArgs(path string, params media.WriterParams) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",

		// Input: packed BGR frames on stdin
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"-r", fmt.Sprintf("%g", params.FPS),
		"-i", "pipe:0",

		// Output
		"-c:v", codecFor(params.FourCC),
		"-vtag", params.FourCC,
		"-q:v", "5",
		"-pix_fmt", "yuv420p",
		path,
	}
}

// Create starts ffmpeg writing to path
func (o *WriterOpener) Create(path string, params media.WriterParams) (media.Writer, error) {
	if o.binary == "" {
		bin, err := findBinary("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found: %w", err)
		}
		o.binary = bin
	}

	cmd := exec.Command(o.binary, EncoderArgs(path, params)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	w := &Writer{
		cmd:       cmd,
		stdin:     stdin,
		frameSize: params.Width * params.Height * 3,
		done:      make(chan error, 1),
		stderrEnd: make(chan struct{}),
	}
	go w.logStderr(stderr)
	go func() {
		<-w.stderrEnd
		w.done <- cmd.Wait()
	}()

	logger.WithComponent("ffmpeg").Info().
		Str("path", path).
		Str("fourcc", params.FourCC).
		Int("pid", cmd.Process.Pid).
		Msg("ffmpeg encoder started")

	return w, nil
}

// Writer is a running ffmpeg encoder
type Writer struct {
	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	frameSize int
	done      chan error
	stderrEnd chan struct{}
	closed    bool
}

// Write pipes one frame into the encoder
func (w *Writer) Write(frame *media.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer closed")
	}
	if len(frame.Pix) != w.frameSize {
		return fmt.Errorf("frame is %d bytes, encoder expects %d", len(frame.Pix), w.frameSize)
	}
	if _, err := w.stdin.Write(frame.Pix); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close closes stdin and waits for ffmpeg to finalize the file
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.stdin.Close()
	w.mu.Unlock()

	if err := <-w.done; err != nil {
		return fmt.Errorf("ffmpeg exited: %w", err)
	}
	return nil
}

func (w *Writer) logStderr(r io.Reader) {
	defer close(w.stderrEnd)
	log := logger.WithComponent("ffmpeg")
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Warn().Str("ffmpeg", scanner.Text()).Msg("ffmpeg message")
	}
}
