package session

import "errors"

var (
	// ErrConnection means the source could not be opened
	ErrConnection = errors.New("connection failed")

	// ErrNotConnected means no source was ever opened successfully
	ErrNotConnected = errors.New("not connected")

	// ErrReadFailed means the source is released or returned no frame
	ErrReadFailed = errors.New("frame read failed")

	// ErrNoActiveCapture means recording was requested without an open source
	ErrNoActiveCapture = errors.New("no active capture")
)
