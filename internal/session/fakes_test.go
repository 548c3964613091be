package session

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/bryanchriswhite/IPCamMonitor/internal/display"
	"github.com/bryanchriswhite/IPCamMonitor/internal/media"
)

// fakeOpener hands out fakeSources and tracks how many are live
type fakeOpener struct {
	mu      sync.Mutex
	fail    error
	readErr error
	stall   bool // reads block until their context is cancelled
	frames  int // frames each source yields before ErrNoData; <0 is endless
	opened  []*fakeSource
	live    int
	maxLive int
}

func (o *fakeOpener) Name() string { return "fake" }

func (o *fakeOpener) Open(ctx context.Context, conn string) (media.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.fail != nil {
		return nil, o.fail
	}
	s := &fakeSource{opener: o, conn: conn, remaining: o.frames}
	o.opened = append(o.opened, s)
	o.live++
	if o.live > o.maxLive {
		o.maxLive = o.live
	}
	return s, nil
}

func (o *fakeOpener) failReads(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.readErr = err
}

func (o *fakeOpener) liveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.live
}

type fakeSource struct {
	opener    *fakeOpener
	conn      string
	remaining int
	reads     int
	closed    bool
}

func (s *fakeSource) Read(ctx context.Context) (*media.Frame, error) {
	s.opener.mu.Lock()
	stall := s.opener.stall
	s.opener.mu.Unlock()
	if stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	s.opener.mu.Lock()
	defer s.opener.mu.Unlock()

	if s.closed {
		return nil, errors.New("read after close")
	}
	if s.opener.readErr != nil {
		return nil, s.opener.readErr
	}
	if s.remaining == 0 {
		return nil, media.ErrNoData
	}
	if s.remaining > 0 {
		s.remaining--
	}
	s.reads++

	f := media.NewFrame(8, 6, media.OrderBGR)
	for i := 0; i < len(f.Pix); i += 3 {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = 10, 20, 30
	}
	f.Seq = int64(s.reads)
	return f, nil
}

func (s *fakeSource) Close() error {
	s.opener.mu.Lock()
	defer s.opener.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.opener.live--
	}
	return nil
}

// fakeCapture is a CaptureState with a settable flag
type fakeCapture struct{ open bool }

func (c *fakeCapture) IsOpen() bool { return c.open }

type fakeWriterOpener struct {
	mu      sync.Mutex
	created []*fakeWriter
	paths   []string
	fail    error
}

func (o *fakeWriterOpener) Name() string { return "fake" }

func (o *fakeWriterOpener) Create(path string, params media.WriterParams) (media.Writer, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.fail != nil {
		return nil, o.fail
	}
	w := &fakeWriter{params: params}
	o.created = append(o.created, w)
	o.paths = append(o.paths, path)
	return w, nil
}

func (o *fakeWriterOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.created)
}

type fakeWriter struct {
	mu     sync.Mutex
	params media.WriterParams
	frames []*media.Frame
	closes int
	fail   error
}

func (w *fakeWriter) Write(f *media.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.frames = append(w.frames, f)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closes++
	return nil
}

func (w *fakeWriter) written() []*media.Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*media.Frame(nil), w.frames...)
}

type fakeSurface struct {
	mu      sync.Mutex
	name    string
	painted []*image.RGBA
	closed  bool
}

func (s *fakeSurface) Show() error      { return nil }
func (s *fakeSurface) Hide() error      { return nil }
func (s *fakeSurface) Size() (int, int) { return 8, 6 }
func (s *fakeSurface) Name() string     { return s.name }

func (s *fakeSurface) Paint(img *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.painted = append(s.painted, img)
	return nil
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSurface) paints() []*image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*image.RGBA(nil), s.painted...)
}

func newFakeRouter() (*display.Router, *fakeSurface) {
	main := &fakeSurface{name: "main"}
	return display.NewRouter(main, func() (display.Surface, error) {
		return &fakeSurface{name: "floating"}, nil
	}), main
}
