package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/IPCamMonitor/internal/connection"
	"github.com/bryanchriswhite/IPCamMonitor/internal/display"
	"github.com/bryanchriswhite/IPCamMonitor/internal/overlay"
	"github.com/bryanchriswhite/IPCamMonitor/internal/session"
)

type fakeController struct {
	mu        sync.Mutex
	err       error
	connected []connection.Params
	calls     []string
	status    session.Status
	subs      []chan session.Status
}

func (c *fakeController) record(call string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return c.err
}

func (c *fakeController) Connect(ctx context.Context, p connection.Params) error {
	c.mu.Lock()
	c.connected = append(c.connected, p)
	c.mu.Unlock()
	return c.record("connect")
}

func (c *fakeController) Disconnect() error      { return c.record("disconnect") }
func (c *fakeController) ToggleFloating() error  { return c.record("toggle_floating") }
func (c *fakeController) FloatingClosed() error  { return c.record("floating_closed") }
func (c *fakeController) ToggleRecording() error { return c.record("toggle_recording") }

func (c *fakeController) Status() session.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *fakeController) Subscribe() chan session.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan session.Status, 10)
	c.subs = append(c.subs, ch)
	return ch
}

func (c *fakeController) Unsubscribe(ch chan session.Status) {}

func (c *fakeController) publish(s session.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		ch <- s
	}
}

func (c *fakeController) subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_ActionsRoute(t *testing.T) {
	tests := []struct {
		path string
		call string
	}{
		{"/api/disconnect", "disconnect"},
		{"/api/floating/toggle", "toggle_floating"},
		{"/api/floating/close", "floating_closed"},
		{"/api/recording/toggle", "toggle_recording"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ctrl := &fakeController{status: session.Status{Target: display.TargetFloating}}
			h := NewServer(ctrl, Options{}).Handler()

			rec := do(t, h, http.MethodPost, tt.path, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			if len(ctrl.calls) != 1 || ctrl.calls[0] != tt.call {
				t.Errorf("calls = %v, want [%s]", ctrl.calls, tt.call)
			}

			var got map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got["target"] != "floating" {
				t.Errorf("response target = %v, want the status after the action", got["target"])
			}
		})
	}
}

func TestServer_ErrorStatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: missing host", connection.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: refused", session.ErrConnection), http.StatusBadGateway},
		{session.ErrNoActiveCapture, http.StatusConflict},
		{session.ErrClosed, http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			ctrl := &fakeController{err: tt.err}
			rec := do(t, NewServer(ctrl, Options{}).Handler(), http.MethodPost, "/api/recording/toggle", "")

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
				t.Errorf("body = %s, want {\"error\": ...}", rec.Body)
			}
		})
	}
}

func TestServer_Connect(t *testing.T) {
	camera := connection.Params{Host: "10.0.0.5", Port: "8080"}

	t.Run("request body", func(t *testing.T) {
		ctrl := &fakeController{}
		h := NewServer(ctrl, Options{Camera: camera}).Handler()

		rec := do(t, h, http.MethodPost, "/api/connect", `{"url":"http://cam.local/stream","username":"a b","password":"p@ss"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		want := connection.Params{URL: "http://cam.local/stream", Username: "a b", Password: "p@ss"}
		if ctrl.connected[0] != want {
			t.Errorf("Connect(%+v), want %+v", ctrl.connected[0], want)
		}
	})

	t.Run("empty body uses configured camera", func(t *testing.T) {
		ctrl := &fakeController{}
		h := NewServer(ctrl, Options{Camera: camera}).Handler()

		if rec := do(t, h, http.MethodPost, "/api/connect", ""); rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ctrl.connected[0] != camera {
			t.Errorf("Connect(%+v), want %+v", ctrl.connected[0], camera)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		ctrl := &fakeController{}
		rec := do(t, NewServer(ctrl, Options{}).Handler(), http.MethodPost, "/api/connect", "{")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if len(ctrl.connected) != 0 {
			t.Error("Connect called for a malformed body")
		}
	})
}

func TestServer_StatusAndHealth(t *testing.T) {
	ctrl := &fakeController{status: session.Status{Connected: true, Source: "http://cam/video", Frames: 42}}
	h := NewServer(ctrl, Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/api/status", "")
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["connected"] != true || got["frames"] != float64(42) || got["target"] != "main" {
		t.Errorf("status body = %v", got)
	}

	if rec := do(t, h, http.MethodGet, "/api/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/disconnect", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET on an action = %d, want 405", rec.Code)
	}
}

func TestServer_ActionsRejectWrongMethod(t *testing.T) {
	h := NewServer(&fakeController{}, Options{}).Handler()

	for _, path := range []string{"/api/connect", "/api/disconnect", "/api/floating/toggle", "/api/recording/toggle"} {
		if rec := do(t, h, http.MethodGet, path, ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s = %d, want 405", path, rec.Code)
		}
	}
	if rec := do(t, h, http.MethodPost, "/api/status", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/status = %d, want 405", rec.Code)
	}
}

func TestServer_ToggleOverlay(t *testing.T) {
	ov := overlay.NewManager()
	h := NewServer(&fakeController{}, Options{Overlay: ov}).Handler()

	for _, want := range []bool{false, true} {
		rec := do(t, h, http.MethodPost, "/api/overlay/toggle", "")
		var got map[string]bool
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got["overlay"] != want || ov.IsEnabled() != want {
			t.Errorf("toggle reported %v, manager enabled %v, want %v", got["overlay"], ov.IsEnabled(), want)
		}
	}

	noOverlay := NewServer(&fakeController{}, Options{}).Handler()
	if rec := do(t, noOverlay, http.MethodPost, "/api/overlay/toggle", ""); rec.Code != http.StatusNotFound {
		t.Errorf("toggle without an overlay = %d, want 404", rec.Code)
	}
}

func TestServer_IndexHidesPassword(t *testing.T) {
	ctrl := &fakeController{}
	opts := Options{Camera: connection.Params{Host: "10.0.0.5", Port: "8080", Username: "admin", Password: "hunter2"}}

	rec := do(t, NewServer(ctrl, opts).Handler(), http.MethodGet, "/", "")
	body := rec.Body.String()
	if !strings.Contains(body, `value="10.0.0.5"`) {
		t.Error("index does not prefill the host")
	}
	if strings.Contains(body, "hunter2") {
		t.Error("index leaks the configured password")
	}
}

func TestServer_EventsStream(t *testing.T) {
	ctrl := &fakeController{status: session.Status{Frames: 1}}
	srv := httptest.NewServer(NewServer(ctrl, Options{}).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first["frames"] != float64(1) {
		t.Errorf("initial status frames = %v, want 1", first["frames"])
	}

	deadline := time.Now().Add(2 * time.Second)
	for ctrl.subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ctrl.publish(session.Status{Recording: true})

	var next map[string]any
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatal(err)
	}
	if next["recording"] != true {
		t.Errorf("pushed status = %v, want recording", next)
	}
}
