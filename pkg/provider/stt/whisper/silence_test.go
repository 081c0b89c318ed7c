package whisper

import (
	"encoding/binary"
	"testing"

	"github.com/Shaxina0930/vocalis-app/pkg/audio"
)

func constPCM(samples int, v int16) []byte {
	buf := make([]byte, samples*2)
	for i := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func TestVoicedSpan(t *testing.T) {
	f := audio.CaptureFormat
	loud := constPCM(1600, 5000) // 100 ms
	quiet := constPCM(16000, 0)  // 1 s

	tests := []struct {
		name    string
		pcm     []byte
		wantOK  bool
		wantLen int
	}{
		{name: "empty", pcm: nil},
		{name: "silence", pcm: quiet},
		{name: "all voiced", pcm: loud, wantOK: true, wantLen: len(loud)},
		{
			name:    "padded",
			pcm:     append(append(append([]byte{}, quiet...), loud...), quiet...),
			wantOK:  true,
			wantLen: len(loud) + 2*6400, // 200 ms each side
		},
		{
			name:    "short lead-in",
			pcm:     append(constPCM(800, 0), loud...),
			wantOK:  true,
			wantLen: 1600 + len(loud),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			span, ok := voicedSpan(tc.pcm, f, defaultRMSThreshold)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if len(span) != tc.wantLen {
				t.Errorf("len(span) = %d, want %d", len(span), tc.wantLen)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := map[string]string{
		"  hello   world \n":  "hello world",
		"[BLANK_AUDIO]":       "",
		" (silence) add task": "add task",
		"":                    "",
	}
	for in, want := range tests {
		if got := cleanText(in); got != want {
			t.Errorf("cleanText(%q) = %q, want %q", in, got, want)
		}
	}
}
