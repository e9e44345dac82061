package audio

import (
	"testing"
	"time"

	"github.com/gopxl/beep"
)

const testRate beep.SampleRate = 100

func silentBuffer(t *testing.T, rate beep.SampleRate, d time.Duration) *Buffer {
	t.Helper()
	format := beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}
	buf, err := NewBuffer(format, beep.Silence(rate.N(d)))
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return buf
}

func durations(segs []Segment) []time.Duration {
	out := make([]time.Duration, len(segs))
	for i, s := range segs {
		out[i] = s.Duration()
	}
	return out
}

func TestChunks_PartialLastSegment(t *testing.T) {
	buf := silentBuffer(t, testRate, 65*time.Second)
	segs := Segments(buf, 30*time.Second)

	want := []time.Duration{30 * time.Second, 30 * time.Second, 5 * time.Second}
	got := durations(segs)
	if len(got) != len(want) {
		t.Fatalf("got %d segments, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d duration = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestChunks_ExactMultipleHasNoTrailingSegment(t *testing.T) {
	for _, total := range []time.Duration{60 * time.Second, 90 * time.Second} {
		buf := silentBuffer(t, testRate, total)
		segs := Segments(buf, 30*time.Second)

		wantCount := int(total / (30 * time.Second))
		if len(segs) != wantCount {
			t.Fatalf("%v: got %d segments, want %d", total, len(segs), wantCount)
		}
		for i, s := range segs {
			if s.Duration() != 30*time.Second {
				t.Errorf("%v: segment %d duration = %v, want 30s", total, i, s.Duration())
			}
		}
	}
}

func TestChunks_EmptyBuffer(t *testing.T) {
	buf := silentBuffer(t, testRate, 0)
	if n := len(Segments(buf, 30*time.Second)); n != 0 {
		t.Fatalf("expected no segments for empty buffer, got %d", n)
	}
	if Count(buf, 30*time.Second) != 0 {
		t.Fatal("expected Count 0 for empty buffer")
	}
}

func TestChunks_NonPositiveLength(t *testing.T) {
	buf := silentBuffer(t, testRate, 10*time.Second)
	if n := len(Segments(buf, 0)); n != 0 {
		t.Fatalf("expected no segments for zero length, got %d", n)
	}
	if n := len(Segments(buf, -time.Second)); n != 0 {
		t.Fatalf("expected no segments for negative length, got %d", n)
	}
}

func TestChunks_CoverageProperties(t *testing.T) {
	lengths := []time.Duration{time.Second, 7 * time.Second, 30 * time.Second, 2 * time.Minute}
	totals := []time.Duration{0, 10 * time.Millisecond, time.Second, 29 * time.Second, 65 * time.Second, 119990 * time.Millisecond}

	for _, length := range lengths {
		for _, total := range totals {
			buf := silentBuffer(t, testRate, total)
			segs := Segments(buf, length)

			step := testRate.N(length)
			wantCount := (buf.Len() + step - 1) / step
			if len(segs) != wantCount || Count(buf, length) != wantCount {
				t.Errorf("T=%v D=%v: got %d segments (Count %d), want %d", length, total, len(segs), Count(buf, length), wantCount)
				continue
			}

			next := 0
			var sum time.Duration
			for i, s := range segs {
				if s.Index != i {
					t.Errorf("T=%v D=%v: segment %d has index %d", length, total, i, s.Index)
				}
				if s.Start != next {
					t.Errorf("T=%v D=%v: segment %d starts at %d, want %d", length, total, i, s.Start, next)
				}
				if s.Len() <= 0 || s.Len() > step {
					t.Errorf("T=%v D=%v: segment %d has length %d", length, total, i, s.Len())
				}
				next = s.End
				sum += s.Duration()
			}
			if next != buf.Len() {
				t.Errorf("T=%v D=%v: segments end at %d, want %d", length, total, next, buf.Len())
			}
			if sum != buf.Duration() {
				t.Errorf("T=%v D=%v: durations sum to %v, want %v", length, total, sum, buf.Duration())
			}
		}
	}
}

func TestChunks_Restartable(t *testing.T) {
	buf := silentBuffer(t, testRate, 95*time.Second)
	seq := Chunks(buf, 30*time.Second)

	var first, second []Segment
	for s := range seq {
		first = append(first, s)
	}
	for s := range seq {
		second = append(second, s)
	}
	if len(first) != len(second) {
		t.Fatalf("re-ranging changed length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("segment %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestChunks_StopsEarly(t *testing.T) {
	buf := silentBuffer(t, testRate, 5*time.Minute)
	n := 0
	for range Chunks(buf, 30*time.Second) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("expected to stop after 2 segments, got %d", n)
	}
}

func TestSegment_String(t *testing.T) {
	s := Segment{Index: 1, Start: 3000, End: 6000, Rate: testRate}
	if got := s.String(); got != "segment 2: 00:30-01:00" {
		t.Errorf("String() = %q", got)
	}
	if s.StartTime() != 30*time.Second {
		t.Errorf("StartTime() = %v, want 30s", s.StartTime())
	}
}
