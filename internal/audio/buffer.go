package audio

import (
	"fmt"
	"time"

	"github.com/gopxl/beep"
)

// Buffer is decoded audio held in memory. It is never appended to after
// NewBuffer returns, so segments cut from it are stable.
type Buffer struct {
	data *beep.Buffer
}

// NewBuffer drains s into a new Buffer with the given format.
func NewBuffer(format beep.Format, s beep.Streamer) (*Buffer, error) {
	data := beep.NewBuffer(format)
	data.Append(s)
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("buffer samples: %w", err)
	}
	return &Buffer{data: data}, nil
}

// Format returns the sample format of the buffer.
func (b *Buffer) Format() beep.Format {
	return b.data.Format()
}

// SampleRate returns the sample rate of the buffer.
func (b *Buffer) SampleRate() beep.SampleRate {
	return b.data.Format().SampleRate
}

// Len returns the number of samples (frames) in the buffer.
func (b *Buffer) Len() int {
	return b.data.Len()
}

// Duration returns the total playing time of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate() <= 0 {
		return 0
	}
	return b.SampleRate().D(b.Len())
}

// Streamer returns a streamer over samples [from, to).
func (b *Buffer) Streamer(from, to int) beep.StreamSeeker {
	return b.data.Streamer(from, to)
}
