// Package audio defines the device abstractions and PCM helpers used by the
// capture and playback sessions.
//
// The two device interfaces are:
//
//   - [Input] opens a microphone as an [InputStream] delivering fixed-size
//     chunks of interleaved 16-bit little-endian PCM.
//   - [Output] opens a speaker as an [OutputStream] accepting the same format.
//
// The production implementation lives in audio/portaudio; tests use
// audio/mock. Both directions exchange raw bytes rather than sample slices so
// the sessions can hand buffers to recognizers and synthesizers unchanged.
package audio

import (
	"errors"
	"io"
)

// ErrDeviceUnavailable is returned when a device is missing, busy, or cannot
// be opened in the requested [Format]. Callers use errors.Is to detect it.
var ErrDeviceUnavailable = errors.New("audio: device unavailable")

// Input is a source of captured audio.
//
// Implementations must be safe for concurrent use, but a single device is
// expected to serve at most one open stream at a time.
type Input interface {
	// OpenInput acquires the device and starts capture in format f. Every Read
	// on the returned stream fills exactly chunkBytes bytes unless it fails.
	// Returns an error wrapping [ErrDeviceUnavailable] if the device cannot
	// be opened.
	OpenInput(f Format, chunkBytes int) (InputStream, error)
}

// InputStream is an open capture stream. Read blocks until one chunk has been
// captured. Close releases the device; Read after Close returns an error.
type InputStream interface {
	io.ReadCloser
}

// Output is a sink for rendered audio.
type Output interface {
	// OpenOutput acquires the device for playback in format f.
	// Returns an error wrapping [ErrDeviceUnavailable] if the device cannot
	// be opened.
	OpenOutput(f Format) (OutputStream, error)
}

// OutputStream is an open playback stream. Write blocks until the data has
// been queued to the device. Close stops playback immediately, discarding any
// queued audio, and releases the device.
type OutputStream interface {
	io.WriteCloser
}

// Drainer is implemented by output streams that buffer audio internally.
// Drain blocks until everything written so far has been played. Close after
// Drain releases the device without cutting audio short.
type Drainer interface {
	Drain() error
}
