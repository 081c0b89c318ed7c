// Package taskserver exposes the task commands as MCP tools so that other
// assistants can manage the same task list.
//
// Six tools are registered:
//   - "add_task"     adds a task with an optional date and time.
//   - "delete_task"  deletes by 1-based position or title substring.
//   - "list_tasks"   returns the current list.
//   - "count_tasks"  reports how many tasks exist.
//   - "clear_tasks"  deletes every task.
//   - "run_command"  runs free text through the voice command parser.
//
// Every tool goes through the same executor as the voice pipeline, so the
// responses match what the assistant would say.
package taskserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shaxina0930/vocalis-app/internal/chat"
	"github.com/Shaxina0930/vocalis-app/internal/command"
	"github.com/Shaxina0930/vocalis-app/internal/executor"
	"github.com/Shaxina0930/vocalis-app/internal/observe"
	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
	"github.com/Shaxina0930/vocalis-app/pkg/types"
)

// Implementation name and version announced to clients.
const (
	ServerName    = "vocalis-tasks"
	ServerVersion = "1.0.0"
)

// Runner executes intents. Implemented by [executor.Executor].
type Runner interface {
	Execute(ctx context.Context, in command.Intent) (executor.Result, error)
	Store() taskstore.Store
}

var _ Runner = (*executor.Executor)(nil)

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics counts tool calls.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithClock sets the time source used to resolve "today" and "tomorrow".
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithReplier answers run_command text that is not a command. Defaults to
// [chat.Fallback].
func WithReplier(fn func(ctx context.Context, text string) string) Option {
	return func(s *Server) { s.reply = fn }
}

// Server is an MCP server over a task executor.
type Server struct {
	exec    Runner
	logger  *slog.Logger
	metrics *observe.Metrics
	now     func() time.Time
	reply   func(ctx context.Context, text string) string
	mcp     *mcpsdk.Server
}

// New builds the MCP server and registers the tools.
func New(exec Runner, opts ...Option) *Server {
	s := &Server{
		exec:   exec,
		logger: slog.Default(),
		now:    time.Now,
		reply:  func(_ context.Context, text string) string { return chat.Fallback(text) },
	}
	for _, o := range opts {
		o(s)
	}
	s.mcp = mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: ServerVersion}, nil)
	s.register()
	return s
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcpsdk.Server { return s.mcp }

// Run serves one client over t until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context, t mcpsdk.Transport) error {
	s.logger.Info("mcp task server: serving", "name", ServerName)
	if err := s.mcp.Run(ctx, t); err != nil && ctx.Err() == nil {
		return fmt.Errorf("taskserver: %w", err)
	}
	return nil
}

// ServeStdio serves a client over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Run(ctx, &mcpsdk.StdioTransport{})
}

// ─── Tool schemas ─────────────────────────────────────────────────────────────

// AddArgs is the input of add_task.
type AddArgs struct {
	Title string `json:"title" jsonschema:"the task title"`
	Date  string `json:"date,omitempty" jsonschema:"optional day as YYYY-MM-DD, today or tomorrow"`
	Time  string `json:"time,omitempty" jsonschema:"optional 24-hour time as HH:MM"`
}

// DeleteArgs is the input of delete_task.
type DeleteArgs struct {
	Identifier string `json:"identifier" jsonschema:"1-based position in the list or part of the title"`
}

// CommandArgs is the input of run_command.
type CommandArgs struct {
	Text string `json:"text" jsonschema:"what the user said, e.g. add task buy milk tomorrow at 3pm"`
}

// NoArgs is the input of the tools without parameters.
type NoArgs struct{}

// TaskView is a task as reported to clients.
type TaskView struct {
	Position    int    `json:"position"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Description string `json:"description,omitempty"`
}

// Output is the structured result of every tool.
type Output struct {
	// Response is the sentence the assistant would speak.
	Response string `json:"response"`

	// WasCommand is false when run_command text was not a command.
	WasCommand bool `json:"was_command"`

	// Tasks is the list after the call, for tools that read or change it.
	Tasks []TaskView `json:"tasks,omitempty"`
}

func (s *Server) register() {
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "add_task",
		Description: "Add a task to the user's list.",
	}, s.addTask)
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "delete_task",
		Description: "Delete one task, chosen by its position in the list or by part of its title. Only the first title match is deleted.",
	}, s.deleteTask)
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "list_tasks",
		Description: "List the user's tasks in display order.",
	}, s.fixed("list_tasks", command.ListTasks{}))
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "count_tasks",
		Description: "Report how many tasks the user has.",
	}, s.fixed("count_tasks", command.CountTasks{}))
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "clear_tasks",
		Description: "Delete every task.",
	}, s.fixed("clear_tasks", command.ClearAll{}))
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "run_command",
		Description: "Interpret a spoken-style sentence exactly as the voice assistant would and run it.",
	}, s.runCommand)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

func (s *Server) addTask(ctx context.Context, _ *mcpsdk.CallToolRequest, args AddArgs) (*mcpsdk.CallToolResult, Output, error) {
	in := command.AddTask{Title: strings.TrimSpace(args.Title)}
	if args.Date != "" {
		d, err := s.parseDate(args.Date)
		if err != nil {
			return s.fail(ctx, "add_task", err)
		}
		in.Date = &d
	}
	if args.Time != "" {
		t, err := types.ParseTimeOfDay(strings.TrimSpace(args.Time))
		if err != nil {
			return s.fail(ctx, "add_task", err)
		}
		in.Time = &t
	}
	return s.run(ctx, "add_task", in, "")
}

func (s *Server) deleteTask(ctx context.Context, _ *mcpsdk.CallToolRequest, args DeleteArgs) (*mcpsdk.CallToolResult, Output, error) {
	return s.run(ctx, "delete_task", command.DeleteTask{Identifier: strings.TrimSpace(args.Identifier)}, "")
}

// fixed returns a handler that always runs in.
func (s *Server) fixed(tool string, in command.Intent) func(context.Context, *mcpsdk.CallToolRequest, NoArgs) (*mcpsdk.CallToolResult, Output, error) {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, _ NoArgs) (*mcpsdk.CallToolResult, Output, error) {
		return s.run(ctx, tool, in, "")
	}
}

func (s *Server) runCommand(ctx context.Context, _ *mcpsdk.CallToolRequest, args CommandArgs) (*mcpsdk.CallToolResult, Output, error) {
	text := strings.TrimSpace(args.Text)
	if text == "" {
		return s.fail(ctx, "run_command", fmt.Errorf("text is required"))
	}
	return s.run(ctx, "run_command", command.Parse(text, s.now()), text)
}

// run executes in and reports the outcome. text is the original utterance
// for run_command and is answered by the replier when in is not a command.
func (s *Server) run(ctx context.Context, tool string, in command.Intent, text string) (_ *mcpsdk.CallToolResult, _ Output, err error) {
	ctx, span := observe.StartSpan(ctx, "mcp."+tool, trace.WithAttributes(
		observe.AttrTool.String(tool),
		observe.AttrIntent.String(in.Kind().String()),
	))
	defer func() { observe.EndSpan(span, err) }()

	res, err := s.exec.Execute(ctx, in)
	if err != nil {
		return s.fail(ctx, tool, err)
	}
	out := Output{Response: res.Response, WasCommand: res.WasCommand}
	if out.Response == "" && text != "" {
		out.Response = s.reply(ctx, text)
	}

	switch in.(type) {
	case command.ListTasks, command.AddTask, command.DeleteTask, command.ClearAll:
		tasks, err := s.exec.Store().List(ctx)
		if err != nil {
			return s.fail(ctx, tool, err)
		}
		out.Tasks = views(tasks)
	}

	if s.metrics != nil {
		s.metrics.RecordToolCall(ctx, tool, "ok")
	}
	observe.Logger(ctx).Debug("mcp task server: tool called", "tool", tool, "intent", in.Kind().String())
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out.Response}},
	}, out, nil
}

// fail logs and returns err as a tool error.
func (s *Server) fail(ctx context.Context, tool string, err error) (*mcpsdk.CallToolResult, Output, error) {
	if s.metrics != nil {
		s.metrics.RecordToolCall(ctx, tool, "error")
	}
	observe.Logger(ctx).Warn("mcp task server: tool failed", "tool", tool, "err", err)
	return nil, Output{}, fmt.Errorf("%s: %w", tool, err)
}

// parseDate accepts an ISO date or the words the voice parser knows.
func (s *Server) parseDate(v string) (types.Date, error) {
	today := types.DateOf(s.now())
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDays(1), nil
	}
	return types.ParseDate(strings.TrimSpace(v))
}

func views(tasks []taskstore.Task) []TaskView {
	out := make([]TaskView, len(tasks))
	for i, t := range tasks {
		v := TaskView{Position: i + 1, ID: t.ID, Title: t.Title, Description: t.Description}
		if t.Date != nil {
			v.Date = t.Date.String()
		}
		if t.Time != nil {
			v.Time = t.Time.String()
		}
		out[i] = v
	}
	return out
}
