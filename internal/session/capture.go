package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bryanchriswhite/IPCamMonitor/internal/connection"
	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
	"github.com/bryanchriswhite/IPCamMonitor/internal/media"
)

// CaptureSession owns the one live source handle. Callers never see the
// handle itself; they open, read and close through the session.
type CaptureSession struct {
	mu        sync.Mutex
	opener    media.Opener
	source    media.Source
	connected bool // an Open has succeeded at least once
	sessionID string
	conn      string
}

// NewCaptureSession creates a closed session that opens sources with opener
func NewCaptureSession(opener media.Opener) *CaptureSession {
	return &CaptureSession{opener: opener}
}

// Open releases any held handle and opens a new one against conn. The old
// handle is released even when the new open fails.
func (c *CaptureSession) Open(ctx context.Context, conn string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := logger.WithComponent("capture")

	if err := c.closeLocked(); err != nil {
		log.Warn().Err(err).Msg("Failed to release previous source")
	}

	src, err := c.opener.Open(ctx, conn)
	if err != nil {
		log.Error().
			Err(err).
			Str("backend", c.opener.Name()).
			Str("url", connection.Redact(conn)).
			Msg("Failed to open source")
		return fmt.Errorf("%w: %s: %w", ErrConnection, connection.Redact(conn), err)
	}

	c.source = src
	c.connected = true
	c.sessionID = uuid.NewString()
	c.conn = conn

	logger.WithSession("capture", c.sessionID).Info().
		Str("backend", c.opener.Name()).
		Str("url", connection.Redact(conn)).
		Msg("Source opened")
	return nil
}

// ReadFrame returns the next frame from the open source
func (c *CaptureSession) ReadFrame(ctx context.Context) (*media.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, ErrNotConnected
	}
	if c.source == nil {
		return nil, fmt.Errorf("%w: source released", ErrReadFailed)
	}

	frame, err := c.source.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	if !frame.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, media.ErrNoData)
	}
	return frame, nil
}

// Close releases the handle; closing a closed session is a no-op
func (c *CaptureSession) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *CaptureSession) closeLocked() error {
	if c.source == nil {
		return nil
	}

	src := c.source
	c.source = nil
	if err := src.Close(); err != nil {
		return fmt.Errorf("failed to close source: %w", err)
	}

	logger.WithSession("capture", c.sessionID).Info().Msg("Source released")
	return nil
}

// IsOpen reports whether a handle is held
func (c *CaptureSession) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source != nil
}

// SessionID identifies the current (or last) open source
func (c *CaptureSession) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Source returns the connection string with the password redacted
func (c *CaptureSession) Source() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == "" {
		return ""
	}
	return connection.Redact(c.conn)
}

// Backend returns the opener's backend name
func (c *CaptureSession) Backend() string {
	return c.opener.Name()
}
