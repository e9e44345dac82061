package pipeline

import (
	"fmt"
	"time"
)

// State is the position of a run in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateDecoding
	StateChunking
	StateExporting
	StateTranscribing
	StateCleanup
	StateAggregating
	StateDone
	StateFailed
	StateCanceled
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateDecoding:     "decoding",
	StateChunking:     "chunking",
	StateExporting:    "exporting",
	StateTranscribing: "transcribing",
	StateCleanup:      "cleanup",
	StateAggregating:  "aggregating",
	StateDone:         "done",
	StateFailed:       "failed",
	StateCanceled:     "canceled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCanceled
}

// MarshalText renders the state by name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// SegmentResult is the outcome of transcribing one segment. Err is nil on
// success; Text is empty on failure.
type SegmentResult struct {
	Index    int
	Start    time.Duration
	Duration time.Duration
	Text     string
	Err      error
}

// OK reports whether the segment was transcribed.
func (r SegmentResult) OK() bool {
	return r.Err == nil
}

// Result is everything a run produced.
type Result struct {
	Source      string
	Fingerprint string
	Duration    time.Duration
	ChunkLength time.Duration
	// Transcript joins the text of successful segments in order, each
	// followed by a single space.
	Transcript string
	Segments   []SegmentResult
	State      State
}

// Failures returns the segments that could not be transcribed.
func (r *Result) Failures() []SegmentResult {
	var out []SegmentResult
	for _, s := range r.Segments {
		if !s.OK() {
			out = append(out, s)
		}
	}
	return out
}

// Succeeded returns the number of transcribed segments.
func (r *Result) Succeeded() int {
	n := 0
	for _, s := range r.Segments {
		if s.OK() {
			n++
		}
	}
	return n
}

// Observer receives progress from a single run. Calls are made from the
// goroutine executing Run, in order.
type Observer interface {
	StateChanged(State)
	SegmentStarted(index, total int)
	SegmentFinished(res SegmentResult, total int)
	Finished(res *Result, err error)
}

// NopObserver ignores all progress.
type NopObserver struct{}

func (NopObserver) StateChanged(State)                 {}
func (NopObserver) SegmentStarted(int, int)            {}
func (NopObserver) SegmentFinished(SegmentResult, int) {}
func (NopObserver) Finished(*Result, error)            {}
