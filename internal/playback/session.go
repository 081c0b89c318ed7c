// Package playback speaks response text through a TTS provider and an audio
// output device.
//
// A [Session] plays at most one utterance at a time. [Session.Speak] stops
// whatever is playing, then synthesises and plays the new text on a
// background goroutine so the caller never waits on the network or the
// device. [Session.Stop] may be called from any goroutine at any time; it
// halts playback immediately and guarantees that a synthesis result still in
// flight is discarded on arrival instead of starting playback.
//
// Every utterance carries a generation number. Stop and Speak bump the
// session generation under the lock, and a background run only touches the
// device while its generation is current.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Shaxina0930/vocalis-app/internal/observe"
	"github.com/Shaxina0930/vocalis-app/pkg/audio"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/tts"
)

const (
	// DefaultSynthesisTimeout bounds one Synthesize call.
	DefaultSynthesisTimeout = 30 * time.Second

	// chunkDuration is the amount of audio handed to the device per Write.
	// Stop takes effect at the next chunk boundary at the latest.
	chunkDuration = 100 * time.Millisecond
)

var (
	// ErrEmptyText is returned by [Session.Speak] for blank text.
	ErrEmptyText = errors.New("playback: empty text")

	// ErrStopped is reported by an [Utterance] that was cut short or
	// discarded by Stop or a newer Speak.
	ErrStopped = errors.New("playback: stopped")
)

// State is the lifecycle state of a [Session].
type State int

const (
	// Idle means the output device is not held.
	Idle State = iota

	// Speaking means synthesised audio is being written to the device.
	Speaking
)

// String returns "idle" or "speaking".
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a [Session].
type Option func(*Session)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics records synthesis latency and device occupancy.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithSynthesisTimeout bounds each synthesis request.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.synthTimeout = d
		}
	}
}

// WithStateHook registers fn to be called on every Idle/Speaking transition.
// fn runs with the session lock held: it must not block and must not call
// back into the Session.
func WithStateHook(fn func(State)) Option {
	return func(s *Session) { s.onState = fn }
}

// Session plays synthesised speech on an [audio.Output]. Create one with
// [New]. All methods are safe for concurrent use.
type Session struct {
	synth        tts.Provider
	out          audio.Output
	logger       *slog.Logger
	metrics      *observe.Metrics
	synthTimeout time.Duration
	onState      func(State)

	mu     sync.Mutex
	gen    uint64
	state  State
	cancel context.CancelFunc
	stream audio.OutputStream
}

// New creates an idle session.
func New(synth tts.Provider, out audio.Output, opts ...Option) *Session {
	s := &Session{
		synth:        synth,
		out:          out,
		logger:       slog.Default(),
		synthTimeout: DefaultSynthesisTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State reports whether the session currently holds the output device.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Speak stops any current playback and starts speaking text in the
// background. It returns immediately; the returned [Utterance] reports when
// playback finished and why.
//
// Blank text returns [ErrEmptyText] and the session is left Idle.
func (s *Session) Speak(text string) (*Utterance, error) {
	s.mu.Lock()
	s.stopLocked()
	if strings.TrimSpace(text) == "" {
		s.mu.Unlock()
		return nil, ErrEmptyText
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithTimeout(context.Background(), s.synthTimeout)
	s.cancel = cancel
	s.mu.Unlock()

	u := &Utterance{Text: text, done: make(chan struct{})}
	go s.run(ctx, gen, u)
	return u, nil
}

// Stop halts playback and discards any pending synthesis. It is a no-op when
// nothing is in progress.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Close stops playback. The session remains usable.
func (s *Session) Close() error {
	s.Stop()
	return nil
}

// stopLocked invalidates the current generation, cancels synthesis, and
// releases the device. Callers must hold s.mu.
func (s *Session) stopLocked() {
	if s.cancel == nil && s.stream == nil {
		return
	}
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			s.logger.Warn("playback: close output device", "err", err)
		}
		s.stream = nil
	}
	s.setStateLocked(Idle)
	s.logger.Debug("playback: stopped")
}

// setStateLocked records a transition and notifies the hook. Callers must
// hold s.mu.
func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	s.state = next
	if s.metrics != nil {
		delta := int64(1)
		if next == Idle {
			delta = -1
		}
		s.metrics.ActivePlayback.Add(context.Background(), delta)
	}
	if s.onState != nil {
		s.onState(next)
	}
}

// run synthesises u.Text and plays it while gen is current.
func (s *Session) run(ctx context.Context, gen uint64, u *Utterance) {
	defer close(u.done)

	start := time.Now()
	a, err := s.synth.Synthesize(ctx, u.Text)
	if s.metrics != nil {
		s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err == nil && len(a.PCM) == 0 {
		err = fmt.Errorf("%w: provider returned no audio", tts.ErrSynthesis)
	}
	if err == nil {
		err = a.Format.Validate()
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		u.err = ErrStopped
		return
	}
	if err != nil {
		s.clearLocked()
		s.mu.Unlock()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: timed out after %s", tts.ErrSynthesis, s.synthTimeout)
		}
		s.logger.Error("playback: synthesis failed", "err", err)
		u.err = fmt.Errorf("playback: synthesize: %w", err)
		return
	}
	stream, err := s.out.OpenOutput(a.Format)
	if err != nil {
		s.clearLocked()
		s.mu.Unlock()
		s.logger.Error("playback: open output device", "err", err)
		u.err = fmt.Errorf("playback: open output: %w", err)
		return
	}
	s.stream = stream
	s.setStateLocked(Speaking)
	s.mu.Unlock()

	s.logger.Debug("playback: speaking", "audio", a.Duration(), "format", a.Format.String())
	playErr := play(stream, a)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		u.err = ErrStopped
		return
	}
	if err := stream.Close(); err != nil {
		s.logger.Warn("playback: close output device", "err", err)
	}
	s.stream = nil
	s.clearLocked()
	s.setStateLocked(Idle)
	if playErr != nil {
		s.logger.Warn("playback: write to output device", "err", playErr)
		u.err = fmt.Errorf("playback: play: %w", playErr)
	}
}

// clearLocked releases the synthesis context of the current generation.
func (s *Session) clearLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// play writes a to stream in chunkDuration pieces and waits for the device
// to drain. Stop closes the stream, which makes the next Write fail.
func play(stream audio.OutputStream, a tts.Audio) error {
	step := a.Format.BytesPerSecond() * int(chunkDuration) / int(time.Second)
	step -= step % a.Format.FrameBytes()
	if step <= 0 {
		step = a.Format.FrameBytes()
	}
	for off := 0; off < len(a.PCM); off += step {
		end := min(off+step, len(a.PCM))
		if _, err := stream.Write(a.PCM[off:end]); err != nil {
			return err
		}
	}
	if d, ok := stream.(audio.Drainer); ok {
		return d.Drain()
	}
	return nil
}

// ─── Utterance ────────────────────────────────────────────────────────────────

// Utterance tracks one Speak call.
type Utterance struct {
	// Text is the text being spoken.
	Text string

	done chan struct{}
	err  error
}

// Done is closed when the utterance finished playing, failed, or was
// stopped.
func (u *Utterance) Done() <-chan struct{} { return u.done }

// Err reports the outcome once Done is closed: nil after a full playback,
// [ErrStopped] if it was interrupted, or an error wrapping
// [tts.ErrSynthesis] or [audio.ErrDeviceUnavailable].
func (u *Utterance) Err() error {
	select {
	case <-u.done:
		return u.err
	default:
		return nil
	}
}

// Wait blocks until the utterance is done or ctx is cancelled.
func (u *Utterance) Wait(ctx context.Context) error {
	select {
	case <-u.done:
		return u.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
