// Package gateway exposes the assistant to a browser UI.
//
// A websocket at /ws streams orchestrator events as JSON and accepts the UI
// triggers; GET /api/tasks returns the current task list. Every connected
// client has its own orchestrator subscription, so a slow client only loses
// its own events.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Shaxina0930/vocalis-app/internal/observe"
	"github.com/Shaxina0930/vocalis-app/internal/orchestrator"
	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
)

const defaultWriteTimeout = 5 * time.Second

// Controller is the part of the orchestrator the gateway drives.
type Controller interface {
	ToggleListening() error
	ToggleSpeech() error
	Say(text string) error
	Subscribe() (<-chan orchestrator.Event, func())
	State() orchestrator.State
	Store() taskstore.Store
}

var _ Controller = (*orchestrator.Orchestrator)(nil)

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics tracks connected clients.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithOriginPatterns allows cross-origin websocket connections from hosts
// matching patterns (see [websocket.AcceptOptions]).
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = patterns }
}

// WithWriteTimeout bounds each websocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// Server serves the UI endpoints.
type Server struct {
	ctl          Controller
	logger       *slog.Logger
	metrics      *observe.Metrics
	origins      []string
	writeTimeout time.Duration
}

// New creates a Server driving ctl.
func New(ctl Controller, opts ...Option) *Server {
	s := &Server{
		ctl:          ctl,
		logger:       slog.Default(),
		writeTimeout: defaultWriteTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds the gateway routes to mux:
//
//	GET /ws         event stream and UI triggers
//	GET /api/tasks  current task list
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
}

// Handler returns a mux serving only the gateway routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// ─── Wire format ──────────────────────────────────────────────────────────────

// Message types.
const (
	TypeChat            = "chat"
	TypeTasksChanged    = "tasks_changed"
	TypeState           = "state"
	TypeError           = "error"
	TypeToggleListening = "toggle_listening"
	TypeToggleSpeech    = "toggle_speech"
	TypeSay             = "say"
)

type chatMessage struct {
	Type    string    `json:"type"`
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
}

type tasksMessage struct {
	Type  string           `json:"type"`
	Tasks []taskstore.Task `json:"tasks"`
}

type stateMessage struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

type errorMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// clientMessage is what the UI sends.
type clientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// tasksResponse is the body of GET /api/tasks.
type tasksResponse struct {
	Tasks []taskstore.Task `json:"tasks"`
}

func tasksPayload(tasks []taskstore.Task) tasksMessage {
	if tasks == nil {
		tasks = []taskstore.Task{}
	}
	return tasksMessage{Type: TypeTasksChanged, Tasks: tasks}
}

// encode converts an orchestrator event to its wire message.
func encode(ev orchestrator.Event) any {
	switch ev.Kind {
	case orchestrator.EventChat:
		return chatMessage{Type: TypeChat, Speaker: string(ev.Speaker), Text: ev.Text, Time: ev.Time}
	case orchestrator.EventTasksChanged:
		return tasksPayload(ev.Tasks)
	default:
		return stateMessage{Type: TypeState, State: ev.State.String()}
	}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// handleTasks handles GET /api/tasks.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.ctl.Store().List(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("gateway: list tasks", "err", err)
		http.Error(w, "failed to list tasks", http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []taskstore.Task{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(tasksResponse{Tasks: tasks})
}

// handleWS handles GET /ws. The connection first receives the current state
// and task list, then every event until either side goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.logger.Warn("gateway: websocket accept", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := s.ctl.Subscribe()
	defer unsubscribe()

	if s.metrics != nil {
		s.metrics.GatewayClients.Add(ctx, 1)
		defer s.metrics.GatewayClients.Add(context.Background(), -1)
	}
	s.logger.Debug("gateway: client connected", "remote", r.RemoteAddr)

	if err := s.write(ctx, conn, stateMessage{Type: TypeState, State: s.ctl.State().String()}); err != nil {
		return
	}
	tasks, err := s.ctl.Store().List(ctx)
	if err != nil {
		s.logger.Warn("gateway: list tasks for new client", "err", err)
	} else if err := s.write(ctx, conn, tasksPayload(tasks)); err != nil {
		return
	}

	go s.readLoop(ctx, cancel, conn)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("gateway: client disconnected", "remote", r.RemoteAddr)
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := s.write(ctx, conn, encode(ev)); err != nil {
				return
			}
		}
	}
}

// readLoop applies client triggers until the connection fails, then cancels
// ctx.
func (s *Server) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				s.logger.Debug("gateway: read", "err", err)
			}
			return
		}
		// Decoded here rather than with wsjson.Read, which closes the
		// connection on malformed input.
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = s.write(ctx, conn, errorMessage{Type: TypeError, Text: "invalid message: " + err.Error()})
			continue
		}
		if err := s.apply(msg); err != nil {
			_ = s.write(ctx, conn, errorMessage{Type: TypeError, Text: err.Error()})
			if errors.Is(err, orchestrator.ErrClosed) {
				return
			}
		}
	}
}

// apply forwards one client message to the controller.
func (s *Server) apply(msg clientMessage) error {
	switch msg.Type {
	case TypeToggleListening:
		return s.ctl.ToggleListening()
	case TypeToggleSpeech:
		return s.ctl.ToggleSpeech()
	case TypeSay:
		if strings.TrimSpace(msg.Text) == "" {
			return errors.New("say: text is required")
		}
		return s.ctl.Say(msg.Text)
	default:
		return errors.New("unknown message type: " + msg.Type)
	}
}

// write sends v as a JSON text frame.
func (s *Server) write(ctx context.Context, conn *websocket.Conn, v any) error {
	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, conn, v); err != nil {
		if ctx.Err() == nil {
			s.logger.Debug("gateway: write", "err", err)
		}
		return err
	}
	return nil
}
