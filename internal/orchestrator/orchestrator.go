// Package orchestrator drives one voice interaction at a time: record,
// recognise, interpret, execute, reply and speak.
//
// All state lives on a single dispatcher goroutine. The public methods only
// enqueue work for it, and the blocking stages (stopping the recorder,
// recognition, command execution, chat replies) run on worker goroutines that
// post their results back to the dispatcher. Every [Event] is emitted from
// the dispatcher, so subscribers observe chat messages, task list changes and
// state transitions in a single consistent order.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Shaxina0930/vocalis-app/internal/capture"
	"github.com/Shaxina0930/vocalis-app/internal/chat"
	"github.com/Shaxina0930/vocalis-app/internal/command"
	"github.com/Shaxina0930/vocalis-app/internal/executor"
	"github.com/Shaxina0930/vocalis-app/internal/observe"
	"github.com/Shaxina0930/vocalis-app/internal/playback"
	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
	"github.com/Shaxina0930/vocalis-app/pkg/audio"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt"
)

const (
	// DefaultRecognitionTimeout bounds one recognition request.
	DefaultRecognitionTimeout = 30 * time.Second

	defaultSubscriberBuffer = 64
	opsBuffer               = 32
)

// ErrClosed is returned by the trigger methods after [Orchestrator.Close].
var ErrClosed = errors.New("orchestrator: closed")

// User-visible system messages.
const (
	MsgListening        = "Listening... Speak now."
	MsgProcessing       = "Processing speech..."
	MsgNoAudio          = "No audio captured."
	MsgNoSpeech         = "No speech recognized."
	MsgAlreadyRecording = "Already recording."
	MsgBusy             = "Still processing the last request."
	MsgSTTUnavailable   = "Speech recognition not available."
	MsgTTSUnavailable   = "Text-to-speech not available."
	MsgTTSStopped       = "TTS stopped."
	MsgSpeaking         = "Speaking..."
	MsgNothingToSpeak   = "No text to speak. Type something first."
)

// ─── Collaborators ────────────────────────────────────────────────────────────

// Recorder captures microphone audio. Implemented by [capture.Session].
type Recorder interface {
	Start() error
	Stop() []byte
}

// Player speaks text. Implemented by [playback.Session].
type Player interface {
	Speak(text string) (*playback.Utterance, error)
	Stop()
}

// Parser classifies text. Implemented by [command.Parser].
type Parser interface {
	Parse(text string) command.Intent
}

// Runner executes intents. Implemented by [executor.Executor].
type Runner interface {
	Execute(ctx context.Context, in command.Intent) (executor.Result, error)
	Store() taskstore.Store
}

// Responder answers text that is not a command. Implemented by
// [chat.Responder].
type Responder interface {
	Reply(ctx context.Context, text string) string
}

var (
	_ Recorder  = (*capture.Session)(nil)
	_ Player    = (*playback.Session)(nil)
	_ Parser    = (*command.Parser)(nil)
	_ Runner    = (*executor.Executor)(nil)
	_ Responder = (*chat.Responder)(nil)
)

// Components are the collaborators wired into an [Orchestrator]. Executor is
// required. A nil Recorder or Recognizer disables voice input, a nil Player
// disables speech output, a nil Parser uses [command.NewParser] and a nil
// Responder replies with [chat.Fallback].
type Components struct {
	Recorder   Recorder
	Recognizer stt.Provider
	Parser     Parser
	Executor   Runner
	Player     Player
	Responder  Responder
}

// ─── Options ──────────────────────────────────────────────────────────────────

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records recognition latency and command outcomes.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithAudioConfig sets the format and hints passed to the recognizer.
// Defaults to 16 kHz mono with [stt.DefaultKeywords].
func WithAudioConfig(cfg stt.AudioConfig) Option {
	return func(o *Orchestrator) { o.audioCfg = cfg }
}

// WithRecognitionTimeout bounds each recognition request.
func WithRecognitionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.recognizeTimeout = d
		}
	}
}

// WithSpeakResponses sets whether replies are spoken. Defaults to true.
func WithSpeakResponses(on bool) Option {
	return func(o *Orchestrator) { o.speak = on }
}

// WithEcho sets whether recognised text is echoed as a "You" message.
// Defaults to true.
func WithEcho(on bool) Option {
	return func(o *Orchestrator) { o.echo = on }
}

// WithSubscriberBuffer sets the channel capacity of each subscription.
func WithSubscriberBuffer(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.subBuffer = n
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// ─── Orchestrator ─────────────────────────────────────────────────────────────

// Orchestrator coordinates capture, recognition, execution and playback.
// Create one with [New] and release it with [Close]. All methods are safe for
// concurrent use.
type Orchestrator struct {
	rec        Recorder
	recognizer stt.Provider
	parser     Parser
	exec       Runner
	player     Player
	responder  Responder

	logger           *slog.Logger
	metrics          *observe.Metrics
	audioCfg         stt.AudioConfig
	recognizeTimeout time.Duration
	subBuffer        int
	now              func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	ops      chan func()
	done     chan struct{}
	loopDone chan struct{}
	workers  sync.WaitGroup
	once     sync.Once

	// current mirrors state for readers outside the dispatcher.
	current atomic.Int32

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	// Owned by the dispatcher goroutine.
	state     State
	speak     bool
	echo      bool
	utter     *playback.Utterance
	lastReply string
}

// New validates c and starts the dispatcher.
func New(c Components, opts ...Option) (*Orchestrator, error) {
	if c.Executor == nil {
		return nil, errors.New("orchestrator: executor is required")
	}
	if c.Parser == nil {
		c.Parser = command.NewParser()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		rec:        c.Recorder,
		recognizer: c.Recognizer,
		parser:     c.Parser,
		exec:       c.Executor,
		player:     c.Player,
		responder:  c.Responder,
		logger:     slog.Default(),
		audioCfg: stt.AudioConfig{
			SampleRate: audio.CaptureFormat.SampleRate,
			Channels:   audio.CaptureFormat.Channels,
			Keywords:   stt.DefaultKeywords(),
		},
		recognizeTimeout: DefaultRecognitionTimeout,
		subBuffer:        defaultSubscriberBuffer,
		now:              time.Now,
		ctx:              ctx,
		cancel:           cancel,
		ops:              make(chan func(), opsBuffer),
		done:             make(chan struct{}),
		loopDone:         make(chan struct{}),
		subs:             make(map[int]chan Event),
		speak:            true,
		echo:             true,
	}
	for _, opt := range opts {
		opt(o)
	}
	go o.loop()
	return o, nil
}

// State returns the current interaction state.
func (o *Orchestrator) State() State {
	return State(o.current.Load())
}

// Store returns the task store commands run against.
func (o *Orchestrator) Store() taskstore.Store {
	return o.exec.Store()
}

// ToggleListening starts recording when idle or speaking and stops it when
// listening. While a recording is being processed the request is rejected
// with a system message.
func (o *Orchestrator) ToggleListening() error {
	return o.submit(o.toggleListening)
}

// ToggleSpeech stops playback when speaking. Otherwise it speaks the last
// assistant reply again.
func (o *Orchestrator) ToggleSpeech() error {
	return o.submit(o.toggleSpeech)
}

// Say runs typed text through the same command and chat path as speech.
func (o *Orchestrator) Say(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return o.submit(func() { o.say(text) })
}

// SetSpeakResponses changes whether replies are spoken. Turning it off stops
// any playback in progress.
func (o *Orchestrator) SetSpeakResponses(on bool) error {
	return o.submit(func() {
		o.speak = on
		if !on && o.state == Speaking {
			o.stopSpeaking()
		}
	})
}

// SetEcho changes whether recognised text is echoed to the chat log.
func (o *Orchestrator) SetEcho(on bool) error {
	return o.submit(func() { o.echo = on })
}

// Close stops recording and playback, waits for in-flight work to finish and
// closes every subscription. It is safe to call more than once.
func (o *Orchestrator) Close() error {
	o.once.Do(func() {
		o.cancel()
		close(o.done)
		<-o.loopDone
		o.workers.Wait()

		o.subMu.Lock()
		for id, ch := range o.subs {
			close(ch)
			delete(o.subs, id)
		}
		o.subMu.Unlock()
	})
	return nil
}

// ─── Dispatcher ───────────────────────────────────────────────────────────────

func (o *Orchestrator) loop() {
	defer close(o.loopDone)
	for {
		select {
		case fn := <-o.ops:
			fn()
		case <-o.done:
			o.shutdown()
			return
		}
	}
}

// shutdown releases the devices. Runs on the dispatcher.
func (o *Orchestrator) shutdown() {
	switch o.state {
	case Listening:
		o.rec.Stop()
	case Speaking:
		o.player.Stop()
	}
	o.utter = nil
	o.setState(Idle)
}

// submit hands fn to the dispatcher.
func (o *Orchestrator) submit(fn func()) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}
	select {
	case o.ops <- fn:
		return nil
	case <-o.done:
		return ErrClosed
	}
}

// post is submit for worker goroutines, which drop their result after Close.
func (o *Orchestrator) post(fn func()) {
	_ = o.submit(fn)
}

// spawn runs fn on a worker goroutine tracked by Close. Only the dispatcher
// calls spawn.
func (o *Orchestrator) spawn(fn func(ctx context.Context)) {
	o.workers.Add(1)
	go func() {
		defer o.workers.Done()
		fn(o.ctx)
	}()
}

func (o *Orchestrator) toggleListening() {
	switch o.state {
	case Processing:
		o.system(MsgBusy)
		return
	case Listening:
		o.setState(Processing)
		o.system(MsgProcessing)
		o.spawn(o.finishRecording)
		return
	}

	if o.rec == nil || o.recognizer == nil {
		o.system(MsgSTTUnavailable)
		return
	}
	if o.state == Speaking {
		o.stopSpeaking()
	}
	if err := o.rec.Start(); err != nil {
		if errors.Is(err, capture.ErrAlreadyRecording) {
			o.system(MsgAlreadyRecording)
			return
		}
		o.system("Error starting microphone: " + err.Error())
		return
	}
	o.system(MsgListening)
	o.setState(Listening)
}

func (o *Orchestrator) toggleSpeech() {
	if o.player == nil {
		o.system(MsgTTSUnavailable)
		return
	}
	switch o.state {
	case Speaking:
		o.stopSpeaking()
		o.system(MsgTTSStopped)
		return
	case Listening, Processing:
		o.player.Stop()
		o.system(MsgTTSStopped)
		return
	}
	if o.lastReply == "" {
		o.system(MsgNothingToSpeak)
		return
	}
	o.system(MsgSpeaking)
	o.startSpeaking(o.lastReply)
}

func (o *Orchestrator) say(text string) {
	switch o.state {
	case Listening, Processing:
		o.system(MsgBusy)
		return
	case Speaking:
		o.stopSpeaking()
	}
	o.chat(SpeakerYou, text)
	o.setState(Processing)
	o.spawn(func(ctx context.Context) { o.respond(ctx, text) })
}

// reply publishes the outcome of one request and speaks it. Runs on the
// dispatcher.
func (o *Orchestrator) reply(out outcome) {
	if out.err != nil {
		o.system("Could not complete the command: " + out.err.Error())
		o.setState(Idle)
		return
	}
	o.chat(SpeakerAssistant, out.reply)
	if out.listed {
		o.emit(Event{Kind: EventTasksChanged, Tasks: out.tasks})
	}
	o.lastReply = out.reply
	if !o.speak {
		o.setState(Idle)
		return
	}
	o.startSpeaking(out.reply)
}

// startSpeaking hands text to the player. Runs on the dispatcher.
func (o *Orchestrator) startSpeaking(text string) {
	if o.player == nil {
		o.setState(Idle)
		return
	}
	u, err := o.player.Speak(text)
	if err != nil {
		if !errors.Is(err, playback.ErrEmptyText) {
			o.system("Speech failed: " + err.Error())
		}
		o.setState(Idle)
		return
	}
	o.utter = u
	o.setState(Speaking)
	o.spawn(func(context.Context) {
		<-u.Done()
		o.post(func() { o.spoken(u) })
	})
}

// spoken handles the end of an utterance. Runs on the dispatcher.
func (o *Orchestrator) spoken(u *playback.Utterance) {
	if o.utter != u {
		return
	}
	o.utter = nil
	if err := u.Err(); err != nil && !errors.Is(err, playback.ErrStopped) {
		o.system("Speech failed: " + err.Error())
	}
	if o.state == Speaking {
		o.setState(Idle)
	}
}

// stopSpeaking halts playback. Runs on the dispatcher.
func (o *Orchestrator) stopSpeaking() {
	o.player.Stop()
	o.utter = nil
	o.setState(Idle)
}

// ─── Workers ──────────────────────────────────────────────────────────────────

// outcome is the result of running one piece of text.
type outcome struct {
	reply string
	err   error

	// listed is set when the store changed and tasks holds the new list.
	listed bool
	tasks  []taskstore.Task
}

// finishRecording stops the recorder, then recognises and runs the audio.
func (o *Orchestrator) finishRecording(ctx context.Context) {
	pcm := o.rec.Stop()
	if len(pcm) == 0 {
		o.post(func() {
			o.system(MsgNoAudio)
			o.setState(Idle)
		})
		return
	}

	text, err := o.recognize(ctx, pcm)
	if err != nil {
		msg := recognitionMessage(err)
		o.post(func() {
			o.system(msg)
			o.setState(Idle)
		})
		return
	}
	o.post(func() {
		if o.echo {
			o.chat(SpeakerYou, text)
		}
	})
	o.respond(ctx, text)
}

// recognize transcribes pcm. An empty transcript is reported as
// [stt.ErrNoSpeech] so it never reaches the parser.
func (o *Orchestrator) recognize(ctx context.Context, pcm []byte) (_ string, err error) {
	ctx, span := observe.StartSpan(ctx, "orchestrator.recognize",
		trace.WithAttributes(observe.AttrAudioBytes.Int(len(pcm))))
	defer func() { observe.EndSpan(span, err) }()

	rctx, cancel := context.WithTimeout(ctx, o.recognizeTimeout)
	defer cancel()

	start := time.Now()
	var tr stt.Transcript
	tr, err = o.recognizer.Recognize(rctx, pcm, o.audioCfg)
	if o.metrics != nil {
		o.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
		o.metrics.RecordProviderRequest(ctx, "stt", "recognize", observe.Status(err))
		if err != nil && !errors.Is(err, stt.ErrNoSpeech) {
			o.metrics.RecordProviderError(ctx, "stt", "recognize")
		}
	}
	if err == nil && tr.Empty() {
		err = stt.ErrNoSpeech
	}
	if err != nil {
		observe.Logger(ctx).Warn("orchestrator: recognition failed", "err", err, "bytes", len(pcm))
		return "", err
	}
	return strings.TrimSpace(tr.Text), nil
}

// respond runs text through the parser, executor and chat responder and
// posts the outcome.
func (o *Orchestrator) respond(ctx context.Context, text string) {
	out := o.run(ctx, text)
	o.post(func() { o.reply(out) })
}

func (o *Orchestrator) run(ctx context.Context, text string) outcome {
	intent := o.parser.Parse(text)
	ctx, span := observe.StartSpan(ctx, "orchestrator.command",
		trace.WithAttributes(observe.AttrIntent.String(intent.Kind().String())))
	log := observe.Logger(ctx)

	start := time.Now()
	res, err := o.exec.Execute(ctx, intent)
	defer func() { observe.EndSpan(span, err) }()
	if o.metrics != nil {
		o.metrics.RecordCommand(ctx, intent.Kind().String(), observe.Status(err), time.Since(start))
	}
	if err != nil {
		log.Error("orchestrator: command failed", "intent", intent.Kind().String(), "err", err)
		return outcome{err: err}
	}
	log.Debug("orchestrator: command executed", "intent", intent.Kind().String(), "was_command", res.WasCommand)

	out := outcome{reply: res.Response}
	if out.reply == "" {
		if o.responder != nil {
			out.reply = o.responder.Reply(ctx, text)
		} else {
			out.reply = chat.Fallback(text)
		}
	}
	if res.Mutated {
		tasks, err := o.exec.Store().List(ctx)
		if err != nil {
			log.Warn("orchestrator: list tasks after change", "err", err)
		} else {
			out.listed, out.tasks = true, tasks
		}
	}
	return out
}

// recognitionMessage turns a recognition error into a system message.
func recognitionMessage(err error) string {
	switch {
	case errors.Is(err, stt.ErrNoSpeech):
		return MsgNoSpeech
	case errors.Is(err, context.Canceled):
		return "Speech recognition cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "Speech recognition timed out."
	default:
		return "Speech recognition failed: " + err.Error()
	}
}
