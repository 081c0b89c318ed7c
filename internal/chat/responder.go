// Package chat answers utterances that are not task commands.
//
// A [Responder] asks an optional LLM for a short reply grounded in the user's
// current task list. Without a model, or when the model fails, it echoes the
// transcript back as `I heard: "<text>"` so the user always gets feedback.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Shaxina0930/vocalis-app/internal/observe"
	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/llm"
)

const (
	// DefaultTimeout bounds one LLM completion.
	DefaultTimeout = 15 * time.Second

	// DefaultHistory is the number of past exchanges sent with each request.
	DefaultHistory = 4

	defaultMaxTokens   = 150
	defaultTemperature = 0.5
)

// Fallback returns the fixed reply for text when no model answer is
// available. The transcript is quoted verbatim, without escaping.
func Fallback(text string) string {
	return `I heard: "` + text + `"`
}

// Option configures a [Responder].
type Option func(*Responder)

// WithLLM enables model replies. A nil provider keeps the echo fallback.
func WithLLM(p llm.Provider) Option {
	return func(r *Responder) { r.llm = p }
}

// WithTasks supplies the store whose contents are included in the prompt.
func WithTasks(s taskstore.Store) Option {
	return func(r *Responder) { r.tasks = s }
}

// WithHistory sets how many previous exchanges are replayed to the model.
// Zero disables history.
func WithHistory(n int) Option {
	return func(r *Responder) {
		if n >= 0 {
			r.historyLen = n
		}
	}
}

// WithTimeout bounds each completion.
func WithTimeout(d time.Duration) Option {
	return func(r *Responder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock overrides the time source used for "today" in the prompt.
func WithClock(now func() time.Time) Option {
	return func(r *Responder) { r.now = now }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(r *Responder) { r.logger = l }
}

// WithMetrics records completion latency and provider errors.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Responder) { r.metrics = m }
}

// Responder produces chat replies. It is safe for concurrent use.
type Responder struct {
	llm        llm.Provider
	tasks      taskstore.Store
	historyLen int
	timeout    time.Duration
	now        func() time.Time
	logger     *slog.Logger
	metrics    *observe.Metrics

	mu      sync.Mutex
	history []llm.Message
}

// New creates a Responder.
func New(opts ...Option) *Responder {
	r := &Responder{
		historyLen: DefaultHistory,
		timeout:    DefaultTimeout,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Enabled reports whether a model is configured.
func (r *Responder) Enabled() bool { return r.llm != nil }

// Reply answers text. It never fails: any model problem degrades to
// [Fallback]. A cancelled ctx also yields the fallback.
func (r *Responder) Reply(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if r.llm == nil || text == "" {
		return Fallback(text)
	}

	reply, err := r.complete(ctx, text)
	if err != nil {
		r.logger.Warn("chat: completion failed, using fallback", "err", err)
		return Fallback(text)
	}
	if reply == "" {
		r.logger.Warn("chat: model returned an empty reply, using fallback")
		return Fallback(text)
	}

	r.remember(text, reply)
	return reply
}

// Reset forgets the conversation history.
func (r *Responder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
}

func (r *Responder) complete(ctx context.Context, text string) (string, error) {
	var tasks []taskstore.Task
	if r.tasks != nil {
		var err error
		tasks, err = r.tasks.List(ctx)
		if err != nil {
			// A reply without task context is still useful.
			r.logger.Warn("chat: list tasks for prompt", "err", err)
		}
	}

	r.mu.Lock()
	msgs := make([]llm.Message, len(r.history), len(r.history)+1)
	copy(msgs, r.history)
	r.mu.Unlock()
	msgs = append(msgs, llm.UserMessage(text))

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: FormatSystemPrompt(tasks, r.now()),
		Messages:     msgs,
		Temperature:  defaultTemperature,
		MaxTokens:    defaultMaxTokens,
	})
	if r.metrics != nil {
		r.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
		r.metrics.RecordProviderRequest(ctx, "llm", "chat", observe.Status(err))
		if err != nil {
			r.metrics.RecordProviderError(ctx, "llm", "chat")
		}
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// remember appends one exchange and trims history to historyLen exchanges.
func (r *Responder) remember(text, reply string) {
	if r.historyLen == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, llm.UserMessage(text), llm.AssistantMessage(reply))
	if over := len(r.history) - 2*r.historyLen; over > 0 {
		r.history = append([]llm.Message(nil), r.history[over:]...)
	}
}
