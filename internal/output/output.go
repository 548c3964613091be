// Package output provides surfaces that publish displayed frames over HTTP.
package output

// Config holds common configuration for all output types
type Config struct {
	Width   int
	Height  int
	Quality int // JPEG quality, 1-100
}

// DefaultQuality is used when Config.Quality is out of range
const DefaultQuality = 85
