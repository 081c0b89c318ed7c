package whisper

import (
	"github.com/Shaxina0930/vocalis-app/pkg/audio"
)

const (
	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit PCM
	// units) below which audio is considered silent. The maximum possible value
	// for 16-bit audio is 32 767; 300 corresponds to near-silence.
	defaultRMSThreshold = 300.0

	// windowMs is the analysis window for silence trimming.
	windowMs = 20

	// paddingMs of quiet audio is kept on each side of the voiced span so
	// word onsets and tails are not clipped.
	paddingMs = 200
)

// voicedSpan returns pcm with leading and trailing silence removed. ok is
// false when no window rises above threshold, in which case the recording
// holds no speech and must not be sent to the model.
func voicedSpan(pcm []byte, f audio.Format, threshold float64) (span []byte, ok bool) {
	window := f.BytesPerSecond() * windowMs / 1000
	window -= window % f.FrameBytes()
	if window <= 0 || len(pcm) == 0 {
		return nil, false
	}

	first, last := -1, -1
	for off := 0; off < len(pcm); off += window {
		end := min(off+window, len(pcm))
		if audio.RMS(pcm[off:end]) >= threshold {
			if first < 0 {
				first = off
			}
			last = end
		}
	}
	if first < 0 {
		return nil, false
	}

	pad := f.BytesPerSecond() * paddingMs / 1000
	pad -= pad % f.FrameBytes()
	start := max(first-pad, 0)
	stop := min(last+pad, len(pcm))
	return pcm[start:stop], true
}
