package output

import (
	"bytes"
	"fmt"
	"html/template"
	"image"
	"image/draw"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
)

// MJPEGSurface is a display surface streamed to browsers as Motion JPEG.
// Hidden surfaces send a black frame and then nothing until shown again.
type MJPEGSurface struct {
	name    string
	config  Config
	mu      sync.RWMutex
	visible bool
	closed  bool

	// Current frame buffer
	frameMu      sync.RWMutex
	currentFrame *image.RGBA
	currentJPEG  []byte
	lastUpdate   time.Time

	// Connected clients
	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	// Stats
	frameCount uint64
	startTime  time.Time
}

// Stats describes a surface for the status API
type Stats struct {
	Name       string    `json:"name"`
	Visible    bool      `json:"visible"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Frames     uint64    `json:"frames"`
	Clients    int       `json:"clients"`
	LastUpdate time.Time `json:"last_update"`
}

// NewMJPEGSurface creates a hidden surface
func NewMJPEGSurface(name string, config Config) *MJPEGSurface {
	if config.Quality < 1 || config.Quality > 100 {
		config.Quality = DefaultQuality
	}
	return &MJPEGSurface{
		name:      name,
		config:    config,
		clients:   make(map[chan []byte]struct{}),
		startTime: time.Now(),
	}
}

// Name returns the surface name
func (m *MJPEGSurface) Name() string {
	return "mjpeg:" + m.name
}

// Size returns the stream resolution
func (m *MJPEGSurface) Size() (int, int) {
	return m.config.Width, m.config.Height
}

// Show resumes streaming and resends the last frame
func (m *MJPEGSurface) Show() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("surface %s closed", m.name)
	}
	m.visible = true
	m.mu.Unlock()

	m.frameMu.RLock()
	current := m.currentFrame
	m.frameMu.RUnlock()

	if current != nil {
		return m.publish(current)
	}
	return nil
}

// Hide blanks viewers and stops streaming until Show
func (m *MJPEGSurface) Hide() error {
	m.mu.Lock()
	if !m.visible {
		m.mu.Unlock()
		return nil
	}
	m.visible = false
	m.mu.Unlock()

	blank := image.NewRGBA(image.Rect(0, 0, m.config.Width, m.config.Height))
	draw.Draw(blank, blank.Bounds(), image.Black, image.Point{}, draw.Src)
	data, err := m.encode(blank)
	if err != nil {
		return err
	}
	m.broadcast(data)
	return nil
}

// Paint stores the frame and sends it to viewers when visible
func (m *MJPEGSurface) Paint(img *image.RGBA) error {
	m.frameMu.Lock()
	m.currentFrame = img
	m.currentJPEG = nil
	m.lastUpdate = time.Now()
	m.frameMu.Unlock()

	m.mu.Lock()
	m.frameCount++
	visible := m.visible && !m.closed
	m.mu.Unlock()

	if !visible {
		return nil
	}
	return m.publish(img)
}

// Close disconnects all viewers
func (m *MJPEGSurface) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.visible = false
	frames := m.frameCount
	m.mu.Unlock()

	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan []byte]struct{})
	m.clientsMu.Unlock()

	logger.WithComponent("mjpeg").Info().
		Str("surface", m.name).
		Uint64("frames", frames).
		Msg("Surface closed")
	return nil
}

// IsVisible reports whether frames are being streamed
func (m *MJPEGSurface) IsVisible() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visible
}

// Stats returns surface statistics
func (m *MJPEGSurface) Stats() Stats {
	m.mu.RLock()
	s := Stats{
		Name:    m.name,
		Visible: m.visible,
		Width:   m.config.Width,
		Height:  m.config.Height,
		Frames:  m.frameCount,
	}
	m.mu.RUnlock()

	m.frameMu.RLock()
	s.LastUpdate = m.lastUpdate
	m.frameMu.RUnlock()

	m.clientsMu.RLock()
	s.Clients = len(m.clients)
	m.clientsMu.RUnlock()
	return s
}

// publish encodes img once and broadcasts it when anyone is watching
func (m *MJPEGSurface) publish(img *image.RGBA) error {
	m.clientsMu.RLock()
	watching := len(m.clients) > 0
	m.clientsMu.RUnlock()
	if !watching {
		return nil
	}

	data, err := m.encode(img)
	if err != nil {
		return err
	}

	m.frameMu.Lock()
	if m.currentFrame == img {
		m.currentJPEG = data
	}
	m.frameMu.Unlock()

	m.broadcast(data)
	return nil
}

func (m *MJPEGSurface) encode(img *image.RGBA) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: m.config.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *MJPEGSurface) broadcast(data []byte) {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()

	for ch := range m.clients {
		select {
		case ch <- data:
		default:
			// Client is slow, skip this frame
		}
	}
}

// latest returns the JPEG for the current frame, encoding it if needed
func (m *MJPEGSurface) latest() []byte {
	m.frameMu.Lock()
	defer m.frameMu.Unlock()

	if m.currentFrame == nil {
		return nil
	}
	if m.currentJPEG == nil {
		data, err := m.encode(m.currentFrame)
		if err != nil {
			return nil
		}
		m.currentJPEG = data
	}
	return m.currentJPEG
}

// ServeHTTP streams the surface as multipart/x-mixed-replace
func (m *MJPEGSurface) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	closed := m.closed
	visible := m.visible
	m.mu.RUnlock()
	if closed {
		http.Error(w, "stream closed", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("Connection", "close")

	frameChan := make(chan []byte, 2) // Buffer 2 frames

	m.clientsMu.Lock()
	m.clients[frameChan] = struct{}{}
	clientCount := len(m.clients)
	m.clientsMu.Unlock()

	log := logger.WithComponent("mjpeg")
	log.Info().Str("surface", m.name).Int("clients", clientCount).Msg("Viewer connected")

	defer func() {
		m.clientsMu.Lock()
		delete(m.clients, frameChan)
		clientCount := len(m.clients)
		m.clientsMu.Unlock()
		log.Info().Str("surface", m.name).Int("clients", clientCount).Msg("Viewer disconnected")
	}()

	if visible {
		if data := m.latest(); data != nil {
			select {
			case frameChan <- data:
			default:
			}
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-frameChan:
			if !ok {
				return
			}
			if err := writePart(w, data); err != nil {
				return
			}
		}
	}
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

var viewerTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #000;
            overflow: hidden;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
        }
        img {
            width: 100vw;
            height: 100vh;
            object-fit: contain;
            display: block;
            background: #000;
        }
    </style>
</head>
<body>
    <img src="{{.Stream}}" alt="{{.Title}}">
{{if .OnClose}}
    <script>
        window.addEventListener('pagehide', () => {
            navigator.sendBeacon('{{.OnClose}}');
        });
    </script>
{{end}}
</body>
</html>`))

// ViewerHandler serves a full-window page showing streamPath. When onClose
// is set the page notifies it when the tab is closed.
func ViewerHandler(title, streamPath, onClose string) http.HandlerFunc {
	data := struct{ Title, Stream, OnClose string }{title, streamPath, onClose}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := viewerTemplate.Execute(w, data); err != nil {
			logger.WithComponent("mjpeg").Warn().Err(err).Msg("Failed to render viewer")
		}
	}
}
