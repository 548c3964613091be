// Package mjpeg reads Motion JPEG streams served as
// multipart/x-mixed-replace over HTTP, the format most IP cameras and
// phone camera apps expose at /video.
package mjpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/IPCamMonitor/internal/connection"
	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
	"github.com/bryanchriswhite/IPCamMonitor/internal/media"
)

// BackendName is the config value selecting this backend
const BackendName = "mjpeg"

// maxPartSize bounds a single JPEG part so a broken stream cannot exhaust memory
const maxPartSize = 16 << 20

func init() {
	media.RegisterSource(BackendName, func() media.Opener { return NewOpener(nil) })
}

// Opener opens MJPEG-over-HTTP sources
type Opener struct {
	client *http.Client
}

// NewOpener creates an opener; a nil client uses http.DefaultClient
func NewOpener(client *http.Client) *Opener {
	if client == nil {
		client = http.DefaultClient
	}
	return &Opener{client: client}
}

// Name returns the backend name
func (o *Opener) Name() string {
	return BackendName
}

// Open issues the GET request and validates the multipart response
func (o *Opener) Open(ctx context.Context, conn string) (media.Source, error) {
	log := logger.WithComponent("mjpeg")

	u, err := url.Parse(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("mjpeg backend supports http and https, got %q", u.Scheme)
	}

	// The stream outlives the Open call, so it gets its own cancel
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var user *url.Userinfo
	user, u.User = u.User, nil

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if user != nil {
		pass, _ := user.Password()
		req.SetBasicAuth(user.Username(), pass)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("camera responded %s", resp.Status)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("unsupported content type %q (want multipart/x-mixed-replace)", resp.Header.Get("Content-Type"))
	}

	// Some cameras advertise the boundary with its leading dashes
	boundary := strings.TrimPrefix(params["boundary"], "--")
	if boundary == "" {
		resp.Body.Close()
		cancel()
		return nil, errors.New("multipart response has no boundary")
	}

	log.Info().
		Str("url", connection.Redact(conn)).
		Str("content_type", mediaType).
		Msg("MJPEG stream opened")

	return &Source{
		body:   resp.Body,
		reader: multipart.NewReader(bufio.NewReaderSize(resp.Body, 64<<10), boundary),
		cancel: cancel,
	}, nil
}

// Source is an open MJPEG stream
type Source struct {
	mu     sync.Mutex
	body   io.ReadCloser
	reader *multipart.Reader
	cancel context.CancelFunc
	seq    int64
	closed bool
}

// Read decodes the next JPEG part into a BGR frame. Cancelling ctx aborts
// the stream; the source cannot be read afterwards.
func (s *Source) Read(ctx context.Context) (*media.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("stream closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	for {
		part, err := s.reader.NextPart()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("read aborted: %w", ctxErr)
			}
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: stream ended", media.ErrNoData)
			}
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		// Skip non-image parts (some firmwares interleave metadata)
		if ct := part.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
			part.Close()
			continue
		}

		img, err := jpeg.Decode(io.LimitReader(part, maxPartSize))
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode JPEG: %w", err)
		}

		frame := media.FromImage(img, media.OrderBGR)
		s.seq++
		frame.Seq = s.seq
		frame.Time = time.Now()
		return frame, nil
	}
}

// Close aborts the request and releases the connection
func (s *Source) Close() error {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
