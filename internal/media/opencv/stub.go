//go:build !gocv

package opencv

import (
	"context"
	"errors"

	"github.com/bryanchriswhite/IPCamMonitor/internal/media"
)

var errNotAvailable = errors.New("OpenCV backend not available - build with -tags gocv")

// Available reports whether the OpenCV backend was compiled in
const Available = false

func init() {
	media.RegisterSource(BackendName, func() media.Opener { return &Opener{} })
	media.RegisterWriter(BackendName, func() media.WriterOpener { return &WriterOpener{} })
}

// Opener reports that OpenCV is not compiled in
type Opener struct{}

// Name returns the backend name
func (o *Opener) Name() string {
	return BackendName
}

// Open always fails without the gocv build tag
func (o *Opener) Open(ctx context.Context, conn string) (media.Source, error) {
	return nil, errNotAvailable
}

// WriterOpener reports that OpenCV is not compiled in
type WriterOpener struct{}

// Name returns the backend name
func (o *WriterOpener) Name() string {
	return BackendName
}

// Create always fails without the gocv build tag
func (o *WriterOpener) Create(path string, params media.WriterParams) (media.Writer, error) {
	return nil, errNotAvailable
}
