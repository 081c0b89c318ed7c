package config_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/Shaxina0930/vocalis-app/internal/config"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/llm"
	llmmock "github.com/Shaxina0930/vocalis-app/pkg/provider/llm/mock"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/stt"
	sttmock "github.com/Shaxina0930/vocalis-app/pkg/provider/stt/mock"
	"github.com/Shaxina0930/vocalis-app/pkg/provider/tts"
	ttsmock "github.com/Shaxina0930/vocalis-app/pkg/provider/tts/mock"
)

func TestProviderEntry_Options(t *testing.T) {
	t.Parallel()

	e := config.ProviderEntry{Options: map[string]any{
		"voice":  "alloy",
		"speed":  1.25,
		"boost":  10,
		"broken": []string{"x"},
	}}
	if got := e.OptionString("voice"); got != "alloy" {
		t.Errorf("OptionString(voice) = %q", got)
	}
	if got := e.OptionString("speed"); got != "" {
		t.Errorf("OptionString(speed) = %q, want empty for non-string", got)
	}
	if v, ok := e.OptionFloat("speed"); !ok || v != 1.25 {
		t.Errorf("OptionFloat(speed) = %v, %v", v, ok)
	}
	if v, ok := e.OptionFloat("boost"); !ok || v != 10 {
		t.Errorf("OptionFloat(boost) = %v, %v", v, ok)
	}
	if _, ok := e.OptionFloat("missing"); ok {
		t.Error("OptionFloat(missing) ok = true")
	}
}

func TestAssistantConfig_Flags(t *testing.T) {
	t.Parallel()

	off := false
	if a := (config.AssistantConfig{}); !a.Echo() || !a.Speak() {
		t.Errorf("unset flags = echo %v, speak %v; want both true", a.Echo(), a.Speak())
	}
	if (config.AssistantConfig{EchoTranscript: &off}).Echo() {
		t.Error("Echo() ignores explicit false")
	}
	if (config.AssistantConfig{SpeakResponses: &off}).Speak() {
		t.Error("Speak() ignores explicit false")
	}
}

func TestEnums(t *testing.T) {
	t.Parallel()

	if !config.LogWarn.IsValid() || config.LogLevel("trace").IsValid() {
		t.Error("LogLevel.IsValid misclassifies")
	}
	if !config.StorePostgres.IsValid() || config.StoreBackend("sqlite").IsValid() {
		t.Error("StoreBackend.IsValid misclassifies")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterSTT("mock", func(e config.ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{Result: stt.Transcript{Text: e.Model}}, nil
	})
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) { return &ttsmock.Provider{}, nil })
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })
	reg.RegisterLLM("broken", func(config.ProviderEntry) (llm.Provider, error) { return nil, errors.New("no key") })

	p, err := reg.CreateSTT(config.ProviderEntry{Name: "mock", Model: "tiny"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	tr, _ := p.Recognize(context.Background(), []byte{1}, stt.AudioConfig{})
	if tr.Text != "tiny" {
		t.Errorf("factory did not receive the entry: %q", tr.Text)
	}
	if _, err := reg.CreateTTS(config.ProviderEntry{Name: "mock"}); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "mock"}); err != nil {
		t.Errorf("CreateLLM: %v", err)
	}

	if _, err := reg.CreateTTS(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateTTS(nope) err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "broken"}); err == nil || errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM(broken) err = %v, want factory error", err)
	}

	if got := reg.Names("llm"); !slices.Equal(got, []string{"broken", "mock"}) {
		t.Errorf("Names(llm) = %v", got)
	}
	if got := reg.Names("vad"); len(got) != 0 {
		t.Errorf("Names(vad) = %v, want none", got)
	}
}
