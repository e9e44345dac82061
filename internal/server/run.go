package server

import (
	"errors"
	"sync"
	"time"

	"github.com/eren1106/video-audio-to-text-converter/internal/api"
	"github.com/eren1106/video-audio-to-text-converter/internal/audio"
	"github.com/eren1106/video-audio-to-text-converter/internal/pipeline"
)

// Event is one progress message of a run, sent to WebSocket subscribers.
type Event struct {
	Type       string         `json:"type"`
	State      pipeline.State `json:"state,omitempty"`
	Index      int            `json:"index,omitempty"`
	Total      int            `json:"total,omitempty"`
	Text       string         `json:"text,omitempty"`
	Cause      string         `json:"cause,omitempty"`
	Error      string         `json:"error,omitempty"`
	Transcript string         `json:"transcript,omitempty"`
}

// Event types.
const (
	EventFetching        = "fetching"
	EventState           = "state"
	EventSegmentStarted  = "segment_started"
	EventSegmentFinished = "segment_finished"
	EventFinished        = "finished"
)

const subscriberBuffer = 256

// run tracks one transcription job for the UI. It implements
// pipeline.Observer; all observer calls come from the job goroutine.
type run struct {
	id      string
	source  string
	created time.Time

	mu       sync.Mutex
	state    pipeline.State
	events   []Event
	subs     map[chan Event]struct{}
	result   *pipeline.Result
	err      error
	done     bool
	finished time.Time
}

func newRun(id, source string) *run {
	return &run{
		id:      id,
		source:  source,
		created: time.Now(),
		subs:    make(map[chan Event]struct{}),
	}
}

func (r *run) publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishLocked(ev)
}

func (r *run) publishLocked(ev Event) {
	r.events = append(r.events, ev)
	for ch := range r.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; it can reconnect and replay.
			delete(r.subs, ch)
			close(ch)
		}
	}
}

// subscribe returns the events so far and a channel of the ones that
// follow. The channel is closed when the run finishes or cancel is called.
func (r *run) subscribe() (replay []Event, events <-chan Event, cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	replay = append([]Event(nil), r.events...)
	ch := make(chan Event, subscriberBuffer)
	if r.done {
		close(ch)
		return replay, ch, func() {}
	}
	r.subs[ch] = struct{}{}
	return replay, ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[ch]; ok {
			delete(r.subs, ch)
			close(ch)
		}
	}
}

func (r *run) StateChanged(s pipeline.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	r.publishLocked(Event{Type: EventState, State: s})
}

func (r *run) SegmentStarted(index, total int) {
	r.publish(Event{Type: EventSegmentStarted, Index: index, Total: total})
}

func (r *run) SegmentFinished(res pipeline.SegmentResult, total int) {
	ev := Event{Type: EventSegmentFinished, Index: res.Index, Total: total, Text: res.Text}
	if res.Err != nil {
		ev.Cause = failureCause(res.Err)
		ev.Error = res.Err.Error()
	}
	r.publish(ev)
}

func (r *run) Finished(res *pipeline.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked(res, err)
}

// fail ends a run that never reached the pipeline.
func (r *run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.state = pipeline.StateFailed
	r.publishLocked(Event{Type: EventState, State: pipeline.StateFailed})
	r.finishLocked(nil, err)
}

func (r *run) finishLocked(res *pipeline.Result, err error) {
	r.result = res
	r.err = err
	ev := Event{Type: EventFinished}
	if res != nil {
		ev.Transcript = res.Transcript
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.publishLocked(ev)

	r.done = true
	r.finished = time.Now()
	for ch := range r.subs {
		delete(r.subs, ch)
		close(ch)
	}
}

func (r *run) expired(now time.Time, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done && now.Sub(r.finished) > ttl
}

type segmentView struct {
	Index           int     `json:"index"`
	StartSeconds    float64 `json:"start_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	Text            string  `json:"text,omitempty"`
	Cause           string  `json:"cause,omitempty"`
	Error           string  `json:"error,omitempty"`
}

type runView struct {
	ID              string         `json:"id"`
	Source          string         `json:"source"`
	State           pipeline.State `json:"state"`
	Done            bool           `json:"done"`
	CreatedAt       time.Time      `json:"created_at"`
	DurationSeconds float64        `json:"duration_seconds,omitempty"`
	Transcript      string         `json:"transcript"`
	Segments        []segmentView  `json:"segments"`
	Error           string         `json:"error,omitempty"`
}

func (r *run) snapshot() runView {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := runView{
		ID:        r.id,
		Source:    r.source,
		State:     r.state,
		Done:      r.done,
		CreatedAt: r.created,
		Segments:  []segmentView{},
	}
	if r.err != nil {
		v.Error = r.err.Error()
	}
	if r.result == nil {
		return v
	}
	v.DurationSeconds = r.result.Duration.Seconds()
	v.Transcript = r.result.Transcript
	for _, s := range r.result.Segments {
		sv := segmentView{
			Index:           s.Index,
			StartSeconds:    s.Start.Seconds(),
			DurationSeconds: s.Duration.Seconds(),
			Text:            s.Text,
		}
		if s.Err != nil {
			sv.Cause = failureCause(s.Err)
			sv.Error = s.Err.Error()
		}
		v.Segments = append(v.Segments, sv)
	}
	return v
}

func failureCause(err error) string {
	var recErr *api.RecognitionError
	if errors.As(err, &recErr) {
		return string(recErr.Cause)
	}
	var expErr *audio.ExportError
	if errors.As(err, &expErr) {
		return "export"
	}
	return "unknown"
}

// registry holds runs in memory until they expire.
type registry struct {
	mu   sync.Mutex
	runs map[string]*run
}

func newRegistry() *registry {
	return &registry{runs: make(map[string]*run)}
}

func (g *registry) add(r *run) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runs[r.id] = r
}

func (g *registry) get(id string) (*run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.runs[id]
	return r, ok
}

// evict drops runs finished more than ttl ago and returns how many.
func (g *registry) evict(now time.Time, ttl time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for id, r := range g.runs {
		if r.expired(now, ttl) {
			delete(g.runs, id)
			n++
		}
	}
	return n
}
