package stt

import (
	"strings"
	"time"
)

// Transcript is the text recognised in one recording.
type Transcript struct {
	// Text is the transcribed speech content, trimmed.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// provider does not report confidence.
	Confidence float64

	// Language is the detected or requested language, if the provider reports
	// one.
	Language string

	// Words contains per-word detail when available (Deepgram, Google).
	// May be nil for providers that don't support word-level output.
	Words []WordDetail

	// Duration is the length of the recognised audio.
	Duration time.Duration
}

// Empty reports whether t carries no text.
func (t Transcript) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost is a phrase to boost during recognition.
type KeywordBoost struct {
	// Keyword is the text to boost (e.g., "add task").
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}

// DefaultKeywords are the command trigger phrases, offered to providers as
// recognition hints.
func DefaultKeywords() []KeywordBoost {
	phrases := []string{
		"add task", "create task", "new task", "delete task", "remove task",
		"list tasks", "show tasks", "clear all tasks", "how many tasks",
	}
	out := make([]KeywordBoost, len(phrases))
	for i, p := range phrases {
		out[i] = KeywordBoost{Keyword: p, Boost: 10}
	}
	return out
}
