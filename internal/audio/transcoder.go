package audio

import (
	"context"
	"fmt"
	"os"

	"github.com/gopxl/beep/wav"

	"github.com/eren1106/video-audio-to-text-converter/internal/ffmpeg"
)

// Transcoder decodes arbitrary media into a mono Buffer at the source sample
// rate, using ffmpeg for the container and codec work.
type Transcoder struct {
	Dir string
}

// NewTranscoder returns a Transcoder keeping its intermediate file in dir.
func NewTranscoder(dir string) *Transcoder {
	return &Transcoder{Dir: dir}
}

// Decode converts the media at path into a Buffer.
func (t *Transcoder) Decode(ctx context.Context, path string) (*Buffer, error) {
	tmp, err := os.CreateTemp(t.Dir, "decoded_*.wav")
	if err != nil {
		return nil, fmt.Errorf("create intermediate file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer removeArtifact(tmpPath)

	if err := ffmpeg.DecodeToWAV(ctx, path, tmpPath); err != nil {
		return nil, err
	}
	return ReadWAV(tmpPath)
}

// ReadWAV loads a PCM WAV file into a Buffer.
func ReadWAV(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	s, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return NewBuffer(format, s)
}
