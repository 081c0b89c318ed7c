package audio

import (
	"bytes"
	"errors"
	"fmt"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// wavPCMFormat is the WAVE format tag for uncompressed integer PCM.
const wavPCMFormat = 1

// ErrInvalidWAV is returned by [DecodeWAV] for data that is not a 16-bit PCM
// RIFF/WAVE file.
var ErrInvalidWAV = errors.New("audio: invalid wav data")

// scratch backs WAV encoding. The encoder needs an io.WriteSeeker to patch the
// RIFF sizes on Close; an in-memory afero file provides one without temp files
// on disk.
var scratch = afero.NewMemMapFs()

// EncodeWAV wraps 16-bit PCM in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, f Format) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	file, err := afero.TempFile(scratch, "", "wav-*")
	if err != nil {
		return nil, fmt.Errorf("audio: wav scratch file: %w", err)
	}
	name := file.Name()
	defer scratch.Remove(name)

	if err := WriteWAV(file, pcm, f); err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("audio: close wav scratch file: %w", err)
	}
	return afero.ReadFile(scratch, name)
}

// WriteWAV encodes pcm as a WAVE file into f, which must be empty. f is left
// open.
func WriteWAV(file afero.File, pcm []byte, f Format) error {
	samples := BytesToSamples(pcm)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	enc := wav.NewEncoder(file, f.SampleRate, bytesPerSample*8, f.Channels, wavPCMFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:           data,
		SourceBitDepth: bytesPerSample * 8,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalise wav: %w", err)
	}
	return nil
}

// DecodeWAV extracts the 16-bit PCM payload and its format from a WAVE file.
func DecodeWAV(data []byte) ([]byte, Format, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, Format{}, ErrInvalidWAV
	}
	if dec.BitDepth != bytesPerSample*8 {
		return nil, Format{}, fmt.Errorf("%w: %d-bit samples", ErrInvalidWAV, dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	f := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	return SamplesToBytes(samples), f, nil
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}
