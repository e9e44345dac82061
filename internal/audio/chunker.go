package audio

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/gopxl/beep"
)

// Segment is a contiguous slice [Start, End) of a Buffer, in samples.
type Segment struct {
	Index int // Zero-based position in the sequence.
	Start int
	End   int
	Rate  beep.SampleRate
}

// Len returns the number of samples in the segment.
func (s Segment) Len() int {
	return s.End - s.Start
}

// StartTime returns the segment offset in the source audio.
func (s Segment) StartTime() time.Duration {
	return s.Rate.D(s.Start)
}

// Duration returns the length of the segment.
func (s Segment) Duration() time.Duration {
	return s.Rate.D(s.Len())
}

// String returns a human-readable representation for logging.
func (s Segment) String() string {
	return fmt.Sprintf("segment %d: %s-%s", s.Index+1, formatClock(s.StartTime()), formatClock(s.StartTime()+s.Duration()))
}

// Chunks returns the fixed-length segments of buf in order. Segment k covers
// [k*length, min((k+1)*length, total)). The sequence is lazy and may be
// ranged over any number of times with identical results. An empty buffer
// or a non-positive length yields nothing.
func Chunks(buf *Buffer, length time.Duration) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		step, ok := stepSamples(buf, length)
		if !ok {
			return
		}
		total := buf.Len()
		rate := buf.SampleRate()
		for i, start := 0, 0; start < total; i, start = i+1, start+step {
			seg := Segment{Index: i, Start: start, End: min(start+step, total), Rate: rate}
			if !yield(seg) {
				return
			}
		}
	}
}

// Count returns the number of segments Chunks yields: ceil(total/length).
func Count(buf *Buffer, length time.Duration) int {
	step, ok := stepSamples(buf, length)
	if !ok {
		return 0
	}
	return (buf.Len() + step - 1) / step
}

// Segments collects Chunks into a slice.
func Segments(buf *Buffer, length time.Duration) []Segment {
	return slices.Collect(Chunks(buf, length))
}

func stepSamples(buf *Buffer, length time.Duration) (int, bool) {
	if buf == nil || length <= 0 || buf.SampleRate() <= 0 {
		return 0, false
	}
	return max(buf.SampleRate().N(length), 1), true
}

func formatClock(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
