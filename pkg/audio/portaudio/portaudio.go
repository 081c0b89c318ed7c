// Package portaudio implements [audio.Input] and [audio.Output] on top of the
// PortAudio C library, using blocking-mode streams.
//
// A single [Host] owns PortAudio initialisation. It initialises the library
// when the first stream opens and terminates it when the last one closes, so
// an idle assistant holds no audio device at all.
package portaudio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	pa "github.com/gordonklaus/portaudio"

	"github.com/Shaxina0930/vocalis-app/pkg/audio"
)

// outputBufferMs is the length of one playback buffer. Stop latency is bounded
// by one buffer.
const outputBufferMs = 50

var (
	_ audio.Input  = (*Host)(nil)
	_ audio.Output = (*Host)(nil)
)

// Option configures a [Host].
type Option func(*Host)

// WithInputDevice selects the capture device by exact name. Empty selects the
// system default.
func WithInputDevice(name string) Option {
	return func(h *Host) { h.inputDevice = name }
}

// WithOutputDevice selects the playback device by exact name. Empty selects
// the system default.
func WithOutputDevice(name string) Option {
	return func(h *Host) { h.outputDevice = name }
}

// Host opens PortAudio streams. The zero value uses the default devices.
type Host struct {
	inputDevice  string
	outputDevice string

	mu   sync.Mutex
	refs int
}

// New returns a Host configured by opts.
func New(opts ...Option) *Host {
	h := &Host{}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Host) acquire() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs == 0 {
		if err := pa.Initialize(); err != nil {
			return err
		}
	}
	h.refs++
	return nil
}

func (h *Host) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs--
	if h.refs == 0 {
		_ = pa.Terminate()
	}
}

// open builds and starts a stream. in/out are channel counts; exactly one is
// non-zero.
func (h *Host) open(f audio.Format, in, out, frames int, buf []int16) (*pa.Stream, error) {
	if err := h.acquire(); err != nil {
		return nil, fmt.Errorf("%w: initialise portaudio: %w", audio.ErrDeviceUnavailable, err)
	}

	var (
		stream *pa.Stream
		err    error
	)
	name := h.inputDevice
	if out > 0 {
		name = h.outputDevice
	}
	if name == "" {
		stream, err = pa.OpenDefaultStream(in, out, float64(f.SampleRate), frames, buf)
	} else {
		var dev *pa.DeviceInfo
		dev, err = findDevice(name, in > 0)
		if err == nil {
			var p pa.StreamParameters
			if in > 0 {
				p = pa.LowLatencyParameters(dev, nil)
				p.Input.Channels = in
			} else {
				p = pa.LowLatencyParameters(nil, dev)
				p.Output.Channels = out
			}
			p.SampleRate = float64(f.SampleRate)
			p.FramesPerBuffer = frames
			stream, err = pa.OpenStream(p, buf)
		}
	}
	if err != nil {
		h.release()
		return nil, fmt.Errorf("%w: open %s: %w", audio.ErrDeviceUnavailable, f, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		h.release()
		return nil, fmt.Errorf("%w: start %s: %w", audio.ErrDeviceUnavailable, f, err)
	}
	return stream, nil
}

func findDevice(name string, input bool) (*pa.DeviceInfo, error) {
	devices, err := pa.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name != name {
			continue
		}
		if input && d.MaxInputChannels > 0 || !input && d.MaxOutputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device %q not found", name)
}

// ─── Input ────────────────────────────────────────────────────────────────────

// OpenInput implements [audio.Input]. chunkBytes must be a whole number of
// frames.
func (h *Host) OpenInput(f audio.Format, chunkBytes int) (audio.InputStream, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
	}
	if chunkBytes <= 0 || chunkBytes%f.FrameBytes() != 0 {
		return nil, fmt.Errorf("%w: chunk of %d bytes is not a whole number of %s frames",
			audio.ErrDeviceUnavailable, chunkBytes, f)
	}
	buf := make([]int16, chunkBytes/2)
	stream, err := h.open(f, f.Channels, 0, chunkBytes/f.FrameBytes(), buf)
	if err != nil {
		return nil, err
	}
	return &inputStream{host: h, stream: stream, buf: buf}, nil
}

type inputStream struct {
	host   *Host
	stream *pa.Stream
	buf    []int16

	mu     sync.Mutex
	closed bool
}

// Read captures one chunk. Input overflow is not an error: the chunk is
// returned and the dropped audio is lost.
func (s *inputStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("portaudio: read on closed input stream")
	}
	if len(p) < len(s.buf)*2 {
		return 0, fmt.Errorf("portaudio: read buffer of %d bytes is smaller than one chunk", len(p))
	}
	if err := s.stream.Read(); err != nil && !errors.Is(err, pa.InputOverflowed) {
		return 0, fmt.Errorf("portaudio: read: %w", err)
	}
	return copy(p, audio.SamplesToBytes(s.buf)), nil
}

// Close waits for an in-flight Read to finish, then releases the device.
func (s *inputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.stream.Close()
	s.host.release()
	if err != nil {
		return fmt.Errorf("portaudio: close input: %w", err)
	}
	return nil
}

// ─── Output ───────────────────────────────────────────────────────────────────

// OpenOutput implements [audio.Output].
func (h *Host) OpenOutput(f audio.Format) (audio.OutputStream, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
	}
	frames := f.SampleRate * outputBufferMs / 1000
	buf := make([]int16, frames*f.Channels)
	stream, err := h.open(f, 0, f.Channels, frames, buf)
	if err != nil {
		return nil, err
	}
	return &outputStream{host: h, stream: stream, buf: buf}, nil
}

var _ audio.Drainer = (*outputStream)(nil)

type outputStream struct {
	host   *Host
	stream *pa.Stream
	buf    []int16

	stopping atomic.Bool
	mu       sync.Mutex
	closed   bool
}

// Write plays p buffer by buffer, zero-padding the last one. It returns early
// once Close has been requested.
func (s *outputStream) Write(p []byte) (int, error) {
	samples := audio.BytesToSamples(p)
	written := 0
	for off := 0; off < len(samples); off += len(s.buf) {
		if s.stopping.Load() {
			return written, errors.New("portaudio: write on closed output stream")
		}
		n := copy(s.buf, samples[off:])
		clear(s.buf[n:])

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return written, errors.New("portaudio: write on closed output stream")
		}
		err := s.stream.Write()
		s.mu.Unlock()
		if err != nil && !errors.Is(err, pa.OutputUnderflowed) {
			return written, fmt.Errorf("portaudio: write: %w", err)
		}
		written += n * 2
	}
	return written, nil
}

// Drain implements [audio.Drainer] by stopping the stream, which returns once
// the host buffers have played out.
func (s *outputStream) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("portaudio: drain output: %w", err)
	}
	return nil
}

// Close aborts playback and releases the device.
func (s *outputStream) Close() error {
	s.stopping.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stream.Abort()
	err := s.stream.Close()
	s.host.release()
	if err != nil {
		return fmt.Errorf("portaudio: close output: %w", err)
	}
	return nil
}
