// Package mock provides in-memory implementations of [audio.Input] and
// [audio.Output] for unit tests.
//
// All mocks are safe for concurrent use. They record opened streams so tests
// can assert on what was captured or played, and expose fields that control
// timing and failures.
//
//	in := &mock.Input{ChunkDelay: 5 * time.Millisecond, Fill: 0x01}
//	out := &mock.Output{WriteDelay: 20 * time.Millisecond}
package mock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Shaxina0930/vocalis-app/pkg/audio"
)

// ErrClosed is returned by stream operations after Close.
var ErrClosed = errors.New("mock audio: stream closed")

// ─── Input ────────────────────────────────────────────────────────────────────

// Input is a mock [audio.Input] that produces chunks filled with Fill.
type Input struct {
	mu sync.Mutex

	// OpenErr, if set, is wrapped in [audio.ErrDeviceUnavailable] and returned
	// by OpenInput.
	OpenErr error

	// ChunkDelay is how long each Read takes. Defaults to 1ms.
	ChunkDelay time.Duration

	// Fill is the byte value of every captured sample byte.
	Fill byte

	// Hang, when non-nil, makes every Read after the first block until Hang
	// is closed, ignoring Close. It simulates a driver that does not return
	// promptly.
	Hang chan struct{}

	// Opens counts OpenInput calls that succeeded.
	Opens int

	streams []*InputStream
}

var _ audio.Input = (*Input)(nil)

// OpenInput implements [audio.Input].
func (in *Input) OpenInput(f audio.Format, chunkBytes int) (audio.InputStream, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.OpenErr != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, in.OpenErr)
	}
	delay := in.ChunkDelay
	if delay <= 0 {
		delay = time.Millisecond
	}
	s := &InputStream{
		Format:     f,
		ChunkBytes: chunkBytes,
		delay:      delay,
		fill:       in.Fill,
		hang:       in.Hang,
		closed:     make(chan struct{}),
	}
	in.Opens++
	in.streams = append(in.streams, s)
	return s, nil
}

// Streams returns every stream opened so far.
func (in *Input) Streams() []*InputStream {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]*InputStream(nil), in.streams...)
}

// InputStream is a mock [audio.InputStream].
type InputStream struct {
	Format     audio.Format
	ChunkBytes int

	delay time.Duration
	fill  byte
	hang  chan struct{}

	mu        sync.Mutex
	reads     int
	closeOnce sync.Once
	closed    chan struct{}
}

// Read fills p[:ChunkBytes] after ChunkDelay.
func (s *InputStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	s.reads++
	first := s.reads == 1
	s.mu.Unlock()

	if s.hang != nil && !first {
		<-s.hang
	}
	select {
	case <-s.closed:
		return 0, ErrClosed
	case <-time.After(s.delay):
	}
	n := min(len(p), s.ChunkBytes)
	for i := range n {
		p[i] = s.fill
	}
	return n, nil
}

// Close implements io.Closer. It is idempotent.
func (s *InputStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Closed reports whether Close was called.
func (s *InputStream) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// ─── Output ───────────────────────────────────────────────────────────────────

// Output is a mock [audio.Output] that records written audio.
type Output struct {
	mu sync.Mutex

	// OpenErr, if set, is wrapped in [audio.ErrDeviceUnavailable] and returned
	// by OpenOutput.
	OpenErr error

	// WriteDelay is how long each Write takes unless the stream is closed
	// first.
	WriteDelay time.Duration

	streams []*OutputStream
}

var _ audio.Output = (*Output)(nil)

// OpenOutput implements [audio.Output].
func (o *Output) OpenOutput(f audio.Format) (audio.OutputStream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.OpenErr != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, o.OpenErr)
	}
	s := &OutputStream{Format: f, delay: o.WriteDelay, closed: make(chan struct{})}
	o.streams = append(o.streams, s)
	return s, nil
}

// Streams returns every stream opened so far.
func (o *Output) Streams() []*OutputStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*OutputStream(nil), o.streams...)
}

// Active returns the number of opened streams that are not yet closed.
func (o *Output) Active() int {
	n := 0
	for _, s := range o.Streams() {
		if !s.Closed() {
			n++
		}
	}
	return n
}

// OutputStream is a mock [audio.OutputStream].
type OutputStream struct {
	Format audio.Format

	delay time.Duration

	mu        sync.Mutex
	written   []byte
	closeOnce sync.Once
	closed    chan struct{}
}

// Write records p after WriteDelay, or fails if the stream is closed first.
func (s *OutputStream) Write(p []byte) (int, error) {
	if s.delay > 0 {
		select {
		case <-s.closed:
			return 0, ErrClosed
		case <-time.After(s.delay):
		}
	}
	if s.Closed() {
		return 0, ErrClosed
	}
	s.mu.Lock()
	s.written = append(s.written, p...)
	s.mu.Unlock()
	return len(p), nil
}

// Close implements io.Closer. It is idempotent.
func (s *OutputStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Closed reports whether Close was called.
func (s *OutputStream) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Written returns a copy of everything written so far.
func (s *OutputStream) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written...)
}
