// Package media defines the frame type and the pluggable capture and
// recording backends.
package media

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoData is returned by a Source when a read produced no frame
var ErrNoData = errors.New("no frame data")

// Source is an open video source handle
type Source interface {
	// Read blocks until one frame is available or the source fails
	Read(ctx context.Context) (*Frame, error)

	// Close releases the underlying handle
	Close() error
}

// Opener opens sources against a connection string
type Opener interface {
	Open(ctx context.Context, conn string) (Source, error)

	// Name returns the backend name used in configuration
	Name() string
}

// WriterParams describes the file a Writer produces
type WriterParams struct {
	FourCC string
	FPS    float64
	Width  int
	Height int
}

// Writer is an open video output handle. Frames passed to Write are BGR
// and already WriterParams.Width x Height.
type Writer interface {
	Write(frame *Frame) error

	// Close flushes and releases the output
	Close() error
}

// WriterOpener creates writers for a file path
type WriterOpener interface {
	Create(path string, params WriterParams) (Writer, error)
	Name() string
}

var (
	registryMu sync.RWMutex
	sources    = make(map[string]func() Opener)
	writers    = make(map[string]func() WriterOpener)
)

// RegisterSource registers a capture backend
func RegisterSource(name string, factory func() Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	sources[name] = factory
}

// RegisterWriter registers a recording backend
func RegisterWriter(name string, factory func() WriterOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	writers[name] = factory
}

// NewOpener returns the capture backend registered under name
func NewOpener(name string) (Opener, error) {
	registryMu.RLock()
	factory, ok := sources[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown capture backend %q (available: %v)", name, SourceNames())
	}
	return factory(), nil
}

// NewWriterOpener returns the recording backend registered under name
func NewWriterOpener(name string) (WriterOpener, error) {
	registryMu.RLock()
	factory, ok := writers[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown recording backend %q (available: %v)", name, WriterNames())
	}
	return factory(), nil
}

// SourceNames lists registered capture backends
func SourceNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriterNames lists registered recording backends
func WriterNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(writers))
	for name := range writers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
