// Package capture records microphone audio between an explicit start and
// stop.
//
// A [Session] owns the input device only while recording. [Session.Start]
// opens the device and spawns a reader goroutine that appends fixed-size
// chunks to an in-memory buffer; [Session.Stop] signals the reader, waits a
// bounded time for it to notice, releases the device, and hands back
// everything captured so far. A reader that fails to acknowledge in time
// never blocks the caller past the stop timeout: the device is released in
// the background and any bytes it reads afterwards are dropped.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/Shaxina0930/vocalis-app/internal/observe"
	"github.com/Shaxina0930/vocalis-app/pkg/audio"
)

const (
	// DefaultChunkBytes is the read size per device call: 128ms of 16 kHz
	// mono 16-bit PCM.
	DefaultChunkBytes = 4096

	// DefaultStopTimeout bounds how long Stop waits for the reader.
	DefaultStopTimeout = time.Second
)

// ErrAlreadyRecording is returned by [Session.Start] while a recording is in
// progress. The running recording is not affected.
var ErrAlreadyRecording = errors.New("capture: already recording")

// State is the lifecycle state of a [Session].
type State int

const (
	// Idle means no device is held.
	Idle State = iota

	// Recording means the device is open and chunks are being appended.
	Recording
)

// String returns "idle" or "recording".
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a [Session].
type Option func(*Session)

// WithChunkBytes sets the device read size. Values that are not a positive
// multiple of the frame size are ignored.
func WithChunkBytes(n int) Option {
	return func(s *Session) {
		if n > 0 && n%s.format.FrameBytes() == 0 {
			s.chunkBytes = n
		}
	}
}

// WithStopTimeout sets how long Stop waits for the reader to acknowledge.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithFormat overrides the capture format. Defaults to [audio.CaptureFormat].
func WithFormat(f audio.Format) Option {
	return func(s *Session) {
		if f.Validate() == nil {
			s.format = f
		}
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics records recording length and device occupancy.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithDump writes every finished recording as a WAV file under dir on fs.
// Dump failures are logged and never affect the returned audio.
func WithDump(fs afero.Fs, dir string) Option {
	return func(s *Session) {
		s.dumpFs = fs
		s.dumpDir = dir
	}
}

// Session captures audio from an [audio.Input]. The zero value is not
// usable; create one with [New]. All methods are safe for concurrent use.
type Session struct {
	input       audio.Input
	format      audio.Format
	chunkBytes  int
	stopTimeout time.Duration
	logger      *slog.Logger
	metrics     *observe.Metrics
	dumpFs      afero.Fs
	dumpDir     string

	// mu serialises Start and Stop so the device has a single owner.
	mu     sync.Mutex
	active *recording
}

// New creates an idle session reading from input.
func New(input audio.Input, opts ...Option) *Session {
	s := &Session{
		input:       input,
		format:      audio.CaptureFormat,
		chunkBytes:  DefaultChunkBytes,
		stopTimeout: DefaultStopTimeout,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	// A format override may invalidate the default chunk size.
	if s.chunkBytes%s.format.FrameBytes() != 0 {
		s.chunkBytes -= s.chunkBytes % s.format.FrameBytes()
	}
	return s
}

// Format returns the PCM format of the audio returned by Stop.
func (s *Session) Format() audio.Format { return s.format }

// State reports whether the session currently holds the device.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return Recording
	}
	return Idle
}

// Start opens the input device and begins buffering audio.
//
// If a recording is already in progress Start logs a warning and returns
// [ErrAlreadyRecording] without touching it. If the device cannot be opened
// the error wraps [audio.ErrDeviceUnavailable] and the session stays Idle.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.logger.Warn("capture: start ignored, already recording")
		return ErrAlreadyRecording
	}

	stream, err := s.input.OpenInput(s.format, s.chunkBytes)
	if err != nil {
		if !errors.Is(err, audio.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
		}
		s.logger.Error("capture: open input device", "err", err)
		return fmt.Errorf("capture: start: %w", err)
	}

	rec := &recording{
		stream:  stream,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		started: time.Now(),
		logger:  s.logger,
	}
	go rec.run(s.chunkBytes)

	s.active = rec
	if s.metrics != nil {
		s.metrics.ActiveRecordings.Add(context.Background(), 1)
	}
	s.logger.Debug("capture: recording started", "format", s.format.String(), "chunk_bytes", s.chunkBytes)
	return nil
}

// Stop ends the recording and returns every byte captured since Start. It
// returns an empty, non-nil slice when the session is Idle.
//
// Stop waits at most the stop timeout for the reader to acknowledge. The
// session is Idle when Stop returns, whether or not the reader did.
func (s *Session) Stop() []byte {
	s.mu.Lock()
	rec := s.active
	if rec == nil {
		s.mu.Unlock()
		return []byte{}
	}
	s.active = nil

	close(rec.stop)
	timer := time.NewTimer(s.stopTimeout)
	acked := true
	select {
	case <-rec.done:
	case <-timer.C:
		acked = false
	}
	timer.Stop()

	data := rec.seal()
	if acked {
		if err := rec.stream.Close(); err != nil {
			s.logger.Warn("capture: close input device", "err", err)
		}
	} else {
		s.logger.Warn("capture: reader did not stop in time, releasing device in background",
			"timeout", s.stopTimeout)
		go func() {
			if err := rec.stream.Close(); err != nil {
				s.logger.Warn("capture: close input device", "err", err)
			}
		}()
	}
	s.mu.Unlock()

	length := s.format.Duration(len(data))
	if s.metrics != nil {
		ctx := context.Background()
		s.metrics.ActiveRecordings.Add(ctx, -1)
		s.metrics.RecordingDuration.Record(ctx, length.Seconds())
	}
	if err := rec.err(); err != nil {
		s.logger.Warn("capture: recording ended early", "err", err)
	}
	s.logger.Debug("capture: recording stopped", "bytes", len(data), "audio", length, "wall", time.Since(rec.started))

	if s.dumpFs != nil && len(data) > 0 {
		s.dump(rec.started, data)
	}
	return data
}

// dump writes data as a WAV file named after the recording start time.
func (s *Session) dump(started time.Time, data []byte) {
	name := path.Join(s.dumpDir, "recording-"+started.Format("20060102-150405.000")+".wav")
	if err := s.dumpFs.MkdirAll(s.dumpDir, 0o755); err != nil {
		s.logger.Warn("capture: create dump dir", "dir", s.dumpDir, "err", err)
		return
	}
	f, err := s.dumpFs.Create(name)
	if err != nil {
		s.logger.Warn("capture: create dump file", "path", name, "err", err)
		return
	}
	defer f.Close()
	if err := audio.WriteWAV(f, data, s.format); err != nil {
		s.logger.Warn("capture: write dump file", "path", name, "err", err)
		return
	}
	s.logger.Debug("capture: recording dumped", "path", name)
}

// ─── Reader ───────────────────────────────────────────────────────────────────

// recording is the state of one Start..Stop span.
type recording struct {
	stream  audio.InputStream
	stop    chan struct{}
	done    chan struct{}
	started time.Time
	logger  *slog.Logger

	mu      sync.Mutex
	buf     bytes.Buffer
	sealed  bool
	readErr error
}

// run reads chunks until stopped or the stream fails.
func (r *recording) run(chunkBytes int) {
	defer close(r.done)
	chunk := make([]byte, chunkBytes)
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		n, err := r.stream.Read(chunk)
		if n > 0 {
			r.append(chunk[:n])
		}
		if err != nil {
			select {
			case <-r.stop:
				// Errors caused by Stop releasing the device are expected.
			default:
				r.fail(err)
			}
			return
		}
	}
}

// append adds p to the buffer unless the recording was already handed out.
func (r *recording) append(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	r.buf.Write(p)
}

func (r *recording) fail(err error) {
	r.mu.Lock()
	r.readErr = err
	r.mu.Unlock()
	r.logger.Warn("capture: read from input device", "err", err)
}

func (r *recording) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readErr
}

// seal freezes the buffer and returns a copy of its contents.
func (r *recording) seal() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
	out := make([]byte, r.buf.Len())
	copy(out, r.buf.Bytes())
	return out
}
