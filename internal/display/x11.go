package display

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
)

// Window titles
const (
	MainTitle     = "IP Camera Monitor"
	FloatingTitle = "Floating Video"
)

// X11 owns one X server connection and the windows created on it
type X11 struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo

	bytesPerPixel int
	scanlinePad   int
	maxRequest    int // bytes

	wmProtocols xproto.Atom
	wmDelete    xproto.Atom

	mu      sync.Mutex
	windows map[xproto.Window]*X11Window
	closed  bool
}

// NewX11 connects to the X server named by $DISPLAY and starts its event loop
func NewX11() (*X11, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	x := &X11{
		conn:       conn,
		screen:     screen,
		maxRequest: int(setup.MaximumRequestLength) * 4,
		windows:    make(map[xproto.Window]*X11Window),
	}

	for _, format := range setup.PixmapFormats {
		if format.Depth == screen.RootDepth {
			x.bytesPerPixel = int(format.BitsPerPixel) / 8
			x.scanlinePad = int(format.ScanlinePad) / 8
			break
		}
	}
	if x.bytesPerPixel != 3 && x.bytesPerPixel != 4 {
		conn.Close()
		return nil, fmt.Errorf("unsupported pixmap format for depth %d", screen.RootDepth)
	}

	if x.wmProtocols, err = x.getAtom("WM_PROTOCOLS"); err != nil {
		conn.Close()
		return nil, err
	}
	if x.wmDelete, err = x.getAtom("WM_DELETE_WINDOW"); err != nil {
		conn.Close()
		return nil, err
	}

	go x.eventLoop()

	logger.WithComponent("x11").Info().
		Uint8("depth", screen.RootDepth).
		Int("bytes_per_pixel", x.bytesPerPixel).
		Msg("Connected to X server")
	return x, nil
}

// NewWindow creates an unmapped window. onClose runs when the user closes
// it through the window manager.
func (x *X11) NewWindow(title string, width, height int, onClose func()) (*X11Window, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil, errors.New("X11 connection closed")
	}

	id, err := xproto.NewWindowId(x.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create window ID: %w", err)
	}

	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		0x000000, // Black background
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify,
	}

	err = xproto.CreateWindowChecked(
		x.conn,
		x.screen.RootDepth,
		id,
		x.screen.Root,
		0, 0, // x, y
		uint16(width), uint16(height),
		0, // border width
		xproto.WindowClassInputOutput,
		x.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	w := &X11Window{
		x:       x,
		id:      id,
		title:   title,
		width:   width,
		height:  height,
		onClose: onClose,
	}

	log := logger.WithComponent("x11")
	if err := w.setTitle(title); err != nil {
		log.Warn().Err(err).Msg("Failed to set window title")
	}
	if err := w.setClass("ipcammon", "IPCamMonitor"); err != nil {
		log.Warn().Err(err).Msg("Failed to set window class")
	}
	if err := w.setProtocols(); err != nil {
		log.Warn().Err(err).Msg("Failed to set WM_PROTOCOLS")
	}

	gc, err := xproto.NewGcontextId(x.conn)
	if err != nil {
		xproto.DestroyWindow(x.conn, id)
		return nil, fmt.Errorf("failed to create graphics context ID: %w", err)
	}
	if err := xproto.CreateGCChecked(x.conn, gc, xproto.Drawable(id), 0, nil).Check(); err != nil {
		xproto.DestroyWindow(x.conn, id)
		return nil, fmt.Errorf("failed to create GC: %w", err)
	}
	w.gc = gc

	x.windows[id] = w

	log.Info().
		Str("title", title).
		Int("width", width).
		Int("height", height).
		Uint32("window_id", uint32(id)).
		Msg("Window created")
	return w, nil
}

// Close disconnects from the X server. Windows not closed yet are
// destroyed with the connection.
func (x *X11) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true
	x.windows = nil
	x.conn.Close()
	return nil
}

func (x *X11) eventLoop() {
	log := logger.WithComponent("x11")

	for {
		ev, err := x.conn.WaitForEvent()
		if ev == nil && err == nil {
			log.Debug().Msg("X11 event loop stopped")
			return
		}
		if err != nil {
			log.Debug().Err(err).Msg("X11 error")
			continue
		}

		switch e := ev.(type) {
		case xproto.ClientMessageEvent:
			if e.Type != x.wmProtocols || len(e.Data.Data32) == 0 ||
				xproto.Atom(e.Data.Data32[0]) != x.wmDelete {
				continue
			}
			if w := x.window(e.Window); w != nil {
				log.Info().Str("title", w.title).Msg("Window closed by user")
				w.requestClose()
			}

		case xproto.ExposeEvent:
			if e.Count != 0 {
				continue
			}
			if w := x.window(e.Window); w != nil {
				w.repaint()
			}
		}
	}
}

func (x *X11) window(id xproto.Window) *X11Window {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.windows[id]
}

func (x *X11) forget(id xproto.Window) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.windows, id)
}

// getAtom gets an atom ID by name
func (x *X11) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(x.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern atom %s: %w", name, err)
	}
	return reply.Atom, nil
}

// X11Window is a Surface backed by a top-level X11 window
type X11Window struct {
	x       *X11
	id      xproto.Window
	gc      xproto.Gcontext
	title   string
	width   int
	height  int
	onClose func()

	mu     sync.Mutex
	mapped bool
	closed bool
	last   *image.RGBA // kept for Expose repaints
}

// Name returns the surface name
func (w *X11Window) Name() string {
	return "x11:" + w.title
}

// Size returns the window size
func (w *X11Window) Size() (int, int) {
	return w.width, w.height
}

// Show maps the window
func (w *X11Window) Show() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("window closed")
	}
	if w.mapped {
		return nil
	}
	if err := xproto.MapWindowChecked(w.x.conn, w.id).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}
	w.mapped = true
	return nil
}

// Hide unmaps the window without destroying it
func (w *X11Window) Hide() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || !w.mapped {
		return nil
	}
	if err := xproto.UnmapWindowChecked(w.x.conn, w.id).Check(); err != nil {
		return fmt.Errorf("failed to unmap window: %w", err)
	}
	w.mapped = false
	return nil
}

// Paint draws img, which must match the window size
func (w *X11Window) Paint(img *image.RGBA) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("window closed")
	}
	w.last = img
	if !w.mapped {
		return nil
	}
	return w.putImage(img)
}

// Close destroys the window. It does not wait for the event loop.
func (w *X11Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.last = nil
	w.x.forget(w.id)

	xproto.FreeGC(w.x.conn, w.gc)
	xproto.DestroyWindow(w.x.conn, w.id)
	w.x.conn.Sync()

	logger.WithComponent("x11").Info().Str("title", w.title).Msg("Window destroyed")
	return nil
}

// requestClose must not block the event loop; onClose may wait for a tick
// that is painting into this connection
func (w *X11Window) requestClose() {
	if w.onClose != nil {
		go w.onClose()
		return
	}
	if err := w.Hide(); err != nil {
		logger.WithComponent("x11").Warn().Err(err).Msg("Failed to hide window")
	}
}

func (w *X11Window) repaint() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || !w.mapped || w.last == nil {
		return
	}
	if err := w.putImage(w.last); err != nil {
		logger.WithComponent("x11").Debug().Err(err).Msg("Expose repaint failed")
	}
}

// putImage converts img to the server's pixel format and sends it in row
// strips that fit the maximum request length
func (w *X11Window) putImage(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		return fmt.Errorf("image size mismatch: got %dx%d, expected %dx%d",
			b.Dx(), b.Dy(), w.width, w.height)
	}

	bpp := w.x.bytesPerPixel
	pad := w.x.scanlinePad
	stride := ((w.width*bpp + pad - 1) / pad) * pad

	// 24 bytes of PutImage request header
	rowsPerStrip := (w.x.maxRequest - 24) / stride
	if rowsPerStrip < 1 {
		return fmt.Errorf("row of %d bytes exceeds the X request limit", stride)
	}

	depth := w.x.screen.RootDepth
	for y0 := 0; y0 < w.height; y0 += rowsPerStrip {
		rows := rowsPerStrip
		if y0+rows > w.height {
			rows = w.height - y0
		}

		data := make([]byte, stride*rows)
		for y := 0; y < rows; y++ {
			src := img.Pix[(y0+y)*img.Stride:]
			dst := data[y*stride:]
			for x := 0; x < w.width; x++ {
				// BGRx, matching the visual masks 0xff0000/0xff00/0xff
				dst[x*bpp] = src[x*4+2]
				dst[x*bpp+1] = src[x*4+1]
				dst[x*bpp+2] = src[x*4]
				if bpp == 4 && depth == 32 {
					dst[x*bpp+3] = src[x*4+3]
				}
			}
		}

		err := xproto.PutImageChecked(
			w.x.conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(w.id),
			w.gc,
			uint16(w.width), uint16(rows),
			0, int16(y0),
			0, // left pad
			depth,
			data,
		).Check()
		if err != nil {
			return fmt.Errorf("failed to put image: %w", err)
		}
	}
	return nil
}

func (w *X11Window) setTitle(title string) error {
	nameAtom, err := w.x.getAtom("_NET_WM_NAME")
	if err != nil {
		return err
	}
	utf8Atom, err := w.x.getAtom("UTF8_STRING")
	if err != nil {
		return err
	}

	if err := xproto.ChangePropertyChecked(
		w.x.conn, xproto.PropModeReplace, w.id,
		nameAtom, utf8Atom, 8,
		uint32(len(title)), []byte(title),
	).Check(); err != nil {
		return err
	}

	// legacy WM_NAME for window managers without EWMH
	return xproto.ChangePropertyChecked(
		w.x.conn, xproto.PropModeReplace, w.id,
		xproto.AtomWmName, xproto.AtomString, 8,
		uint32(len(title)), []byte(title),
	).Check()
}

func (w *X11Window) setClass(instance, class string) error {
	// WM_CLASS format: instance\0class\0
	classStr := instance + "\x00" + class + "\x00"

	return xproto.ChangePropertyChecked(
		w.x.conn, xproto.PropModeReplace, w.id,
		xproto.AtomWmClass, xproto.AtomString, 8,
		uint32(len(classStr)), []byte(classStr),
	).Check()
}

// setProtocols asks the window manager to send WM_DELETE_WINDOW instead of
// killing the connection when the user closes the window
func (w *X11Window) setProtocols() error {
	buf := make([]byte, 4)
	xgb.Put32(buf, uint32(w.x.wmDelete))

	return xproto.ChangePropertyChecked(
		w.x.conn, xproto.PropModeReplace, w.id,
		w.x.wmProtocols, xproto.AtomAtom, 32,
		1, buf,
	).Check()
}
