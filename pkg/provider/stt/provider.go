// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a recognition service (e.g., Google Speech-to-Text,
// OpenAI, Deepgram, or a local Whisper model) and turns one finished
// recording into one [Transcript]. Recognition is batch: the caller captures
// a complete utterance, then asks for its text.
//
// A recognition failure is always reported as a non-nil error, never as text.
// Callers must not forward anything but a successful Transcript to the
// command parser.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

var (
	// ErrRecognition is wrapped by every error a provider returns for a
	// request it could not complete: transport failures, non-2xx responses,
	// and malformed payloads. Callers use errors.Is to detect it.
	ErrRecognition = errors.New("stt: recognition failed")

	// ErrNoSpeech is returned when the provider completed the request but
	// found no speech in the audio.
	ErrNoSpeech = errors.New("stt: no speech found")
)

// AudioConfig describes the PCM handed to [Provider.Recognize] and the
// recognition hints to apply.
type AudioConfig struct {
	// SampleRate is the audio sample rate in Hz. Recordings from the
	// microphone are 16000.
	SampleRate int

	// Channels is the number of interleaved channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider pick its default or auto-detect.
	Language string

	// Keywords are vocabulary hints that raise the recognition probability
	// of command phrases. Providers that do not support hints ignore them.
	Keywords []KeywordBoost
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Recognize transcribes pcm, which holds 16-bit little-endian samples in
	// the format described by cfg.
	//
	// Returns an error wrapping [ErrNoSpeech] if the audio held no speech,
	// an error wrapping [ErrRecognition] if the backend failed, or ctx.Err()
	// if ctx was cancelled first.
	Recognize(ctx context.Context, pcm []byte, cfg AudioConfig) (Transcript, error)
}
