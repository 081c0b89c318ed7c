package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Shaxina0930/vocalis-app/internal/config"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseCmd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args []string
		want parsedIntent
	}{
		{[]string{"add", "task", "buy", "milk"}, parsedIntent{Kind: "add_task", Title: "Buy milk"}},
		{[]string{"delete task 2"}, parsedIntent{Kind: "delete_task", Identifier: "2"}},
		{[]string{"list", "tasks"}, parsedIntent{Kind: "list_tasks"}},
		{[]string{"what's the weather"}, parsedIntent{Kind: "unrecognized"}},
	}
	for _, tc := range tests {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			t.Parallel()
			out, err := execute(t, append([]string{"parse"}, tc.args...)...)
			if err != nil {
				t.Fatal(err)
			}
			var got parsedIntent
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("decode %q: %v", out, err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseCmd_RequiresText(t *testing.T) {
	t.Parallel()
	if _, err := execute(t, "parse"); err == nil {
		t.Error("parse without text succeeded")
	}
}

func TestTasksCmd_FileStore(t *testing.T) {
	t.Parallel()

	tasks := filepath.Join(t.TempDir(), "tasks.json")
	cfgPath := writeConfig(t, `
providers:
  stt: {name: whisper, base_url: "http://localhost:8080"}
  tts: {name: coqui, base_url: "http://localhost:5002"}
store:
  backend: file
  path: `+tasks+`
`)

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"tasks", "list"}, "You have no tasks.\n"},
		{[]string{"tasks", "add", "buy", "milk"}, "Task added: Buy milk\n"},
		{[]string{"tasks", "add", "call", "mom"}, "Task added: Call mom\n"},
		{[]string{"tasks", "list"}, "1. Buy milk\n2. Call mom\n"},
		{[]string{"tasks", "delete", "1"}, "Deleted task: Buy milk\n"},
		{[]string{"tasks", "clear"}, "Deleted all 1 tasks.\n"},
		{[]string{"tasks", "list"}, "You have no tasks.\n"},
	}
	for _, s := range steps {
		out, err := execute(t, append([]string{"--config", cfgPath}, s.args...)...)
		if err != nil {
			t.Fatalf("%v: %v", s.args, err)
		}
		if out != s.want {
			t.Errorf("%v = %q, want %q", s.args, out, s.want)
		}
	}
}

func TestTasksCmd_MissingConfig(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "tasks", "list")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want a not-found hint", err)
	}
}

func TestInstantiate_SkipsUnregistered(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	got, err := instantiate("tts",
		config.ProviderEntry{Name: "coqui", BaseURL: "http://localhost:5002"},
		[]config.ProviderEntry{{Name: "nonexistent"}},
		reg.CreateTTS)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].name != "coqui" {
		t.Errorf("instantiated = %+v", got)
	}
}

func TestInstantiate_FactoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := instantiate("stt", config.ProviderEntry{Name: "x"}, nil,
		func(config.ProviderEntry) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestBuildProviders_Checks(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	cfg := &config.Config{Providers: config.ProvidersConfig{
		STT: config.ProviderEntry{Name: "whisper", BaseURL: "http://localhost:8080"},
		TTS: config.ProviderEntry{Name: "coqui", BaseURL: "http://localhost:5002"},
	}}
	ps, err := buildProviders(cfg, reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ps.STT == nil || ps.TTS == nil {
		t.Fatalf("providers = %+v", ps)
	}
	if ps.LLM != nil {
		t.Error("LLM built without a configured model")
	}
	if len(ps.Checks) != 2 {
		t.Errorf("checks = %d, want 2", len(ps.Checks))
	}
	for _, c := range ps.Checks {
		if err := c.Check(context.Background()); err != nil {
			t.Errorf("%s check: %v", c.Name, err)
		}
	}
}

func TestPrintStartupSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg := &config.Config{Providers: config.ProvidersConfig{
		STT: config.ProviderEntry{Name: "deepgram", Model: "nova-2"},
	}}
	config.ApplyDefaults(cfg)
	printStartupSummary(&buf, cfg)
	out := buf.String()
	for _, want := range []string{"deepgram / nova-2", "(not configured)", "memory"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

// TestStartTelemetry covers the serve start-up path: the service resource must
// merge with the SDK defaults and the providers must become global.
func TestStartTelemetry(t *testing.T) {
	origTP, origMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(origTP)
		otel.SetMeterProvider(origMP)
	})

	stop, err := startTelemetry(context.Background())
	if err != nil {
		t.Fatalf("startTelemetry: %v", err)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Errorf("global tracer provider = %T, want the SDK provider", otel.GetTracerProvider())
	}
	_, span := otel.Tracer("test").Start(context.Background(), "serve")
	if !span.SpanContext().IsValid() {
		t.Error("span from the global provider has no valid context")
	}
	span.End()
	stop()
}
