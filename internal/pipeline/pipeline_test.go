package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/eren1106/video-audio-to-text-converter/internal/api"
	"github.com/eren1106/video-audio-to-text-converter/internal/audio"
	"github.com/eren1106/video-audio-to-text-converter/internal/source"
)

const testRate beep.SampleRate = 100

func silentBuffer(t *testing.T, rate beep.SampleRate, d time.Duration) *audio.Buffer {
	t.Helper()
	format := beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}
	buf, err := audio.NewBuffer(format, beep.Silence(rate.N(d)))
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return buf
}

type fakeDecoder struct {
	buf *audio.Buffer
	err error
}

func (d *fakeDecoder) Decode(ctx context.Context, path string) (*audio.Buffer, error) {
	return d.buf, d.err
}

// fileExporter writes an empty placeholder per segment so tests can check
// that artifacts never outlive their segment.
type fileExporter struct {
	dir     string
	live    int
	maxLive int
	fail    map[int]error
}

func (e *fileExporter) Export(ctx context.Context, buf *audio.Buffer, seg audio.Segment, use func(audio.Artifact) error) error {
	if err := e.fail[seg.Index]; err != nil {
		return &audio.ExportError{Index: seg.Index, Err: err}
	}
	f, err := os.CreateTemp(e.dir, fmt.Sprintf("segment_%03d_*.wav", seg.Index))
	if err != nil {
		return &audio.ExportError{Index: seg.Index, Err: err}
	}
	f.Close()
	e.live++
	e.maxLive = max(e.maxLive, e.live)
	defer func() {
		os.Remove(f.Name())
		e.live--
	}()
	return use(audio.Artifact{Index: seg.Index, Path: f.Name(), SampleRate: audio.TargetSampleRate, Duration: seg.Duration()})
}

// scriptedRecognizer answers the n-th call with texts[n] or errs[n].
type scriptedRecognizer struct {
	texts []string
	errs  map[int]error
	calls int
	paths []string
	hook  func(call int)
}

func (r *scriptedRecognizer) Transcribe(ctx context.Context, path string) (string, error) {
	call := r.calls
	r.calls++
	r.paths = append(r.paths, path)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("artifact missing during transcription: %w", err)
	}
	if r.hook != nil {
		r.hook(call)
	}
	if err := r.errs[call]; err != nil {
		return "", err
	}
	if call < len(r.texts) {
		return r.texts[call], nil
	}
	return "", nil
}

type recordingObserver struct {
	states   []State
	started  []int
	finished []SegmentResult
	done     bool
	doneErr  error
}

func (o *recordingObserver) StateChanged(s State) {
	o.states = append(o.states, s)
}

func (o *recordingObserver) SegmentStarted(index, total int) {
	o.started = append(o.started, index)
}

func (o *recordingObserver) SegmentFinished(res SegmentResult, total int) {
	o.finished = append(o.finished, res)
}

func (o *recordingObserver) Finished(res *Result, err error) {
	o.done, o.doneErr = true, err
}

func ownedMedia(t *testing.T, dir string) *source.Media {
	t.Helper()
	m, err := source.Stage(context.Background(), dir, "talk.wav", strings.NewReader("not really audio"))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	return m
}

func newPipeline(t *testing.T, d Decoder, e Exporter, r Recognizer, chunk time.Duration) *Pipeline {
	t.Helper()
	p, err := New(d, e, r, chunk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func assertNoArtifacts(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "segment_*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("artifacts left behind: %v", matches)
	}
}

func assertReleased(t *testing.T, m *source.Media) {
	t.Helper()
	if _, err := os.Stat(m.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("source media %s still exists (err=%v)", m.Path, err)
	}
}

func TestRun_PartialLastSegment(t *testing.T) {
	dir := t.TempDir()
	media := ownedMedia(t, dir)
	rec := &scriptedRecognizer{texts: []string{"a", "b", "c"}}
	exp := &fileExporter{dir: dir}
	obs := &recordingObserver{}

	p := newPipeline(t, &fakeDecoder{buf: silentBuffer(t, testRate, 65*time.Second)}, exp, rec, 30*time.Second)
	res, err := p.Run(context.Background(), media, obs)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if res.Transcript != "a b c " {
		t.Errorf("Transcript = %q, want %q", res.Transcript, "a b c ")
	}
	if res.State != StateDone {
		t.Errorf("State = %v, want done", res.State)
	}
	if res.Duration != 65*time.Second {
		t.Errorf("Duration = %v, want 65s", res.Duration)
	}

	want := []time.Duration{30 * time.Second, 30 * time.Second, 5 * time.Second}
	if len(res.Segments) != len(want) {
		t.Fatalf("got %d segments, want %d", len(res.Segments), len(want))
	}
	for i, d := range want {
		seg := res.Segments[i]
		if seg.Index != i || seg.Duration != d || seg.Start != time.Duration(i)*30*time.Second {
			t.Errorf("segment %d = %+v", i, seg)
		}
	}

	if exp.maxLive != 1 {
		t.Errorf("max live artifacts = %d, want 1", exp.maxLive)
	}
	assertNoArtifacts(t, dir)
	assertReleased(t, media)

	if !obs.done || obs.doneErr != nil {
		t.Errorf("observer finished = %v err = %v", obs.done, obs.doneErr)
	}
	if len(obs.started) != 3 || len(obs.finished) != 3 {
		t.Errorf("observer saw %d starts and %d finishes, want 3", len(obs.started), len(obs.finished))
	}
}

func TestRun_StateSequence(t *testing.T) {
	dir := t.TempDir()
	obs := &recordingObserver{}
	p := newPipeline(t,
		&fakeDecoder{buf: silentBuffer(t, testRate, 40*time.Second)},
		&fileExporter{dir: dir},
		&scriptedRecognizer{texts: []string{"x", "y"}},
		30*time.Second)

	if _, err := p.Run(context.Background(), &source.Media{Path: "in.wav", Name: "in.wav"}, obs); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []State{
		StateDecoding, StateChunking,
		StateExporting, StateTranscribing, StateCleanup,
		StateExporting, StateTranscribing, StateCleanup,
		StateAggregating, StateDone,
	}
	if len(obs.states) != len(want) {
		t.Fatalf("states = %v, want %v", obs.states, want)
	}
	for i := range want {
		if obs.states[i] != want[i] {
			t.Errorf("state %d = %v, want %v", i, obs.states[i], want[i])
		}
	}
}

func TestRun_ExactMultiple(t *testing.T) {
	dir := t.TempDir()
	rec := &scriptedRecognizer{texts: []string{"one", "two", "three"}}
	p := newPipeline(t, &fakeDecoder{buf: silentBuffer(t, testRate, 90*time.Second)}, &fileExporter{dir: dir}, rec, 30*time.Second)

	res, err := p.Run(context.Background(), ownedMedia(t, dir), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Segments) != 3 || rec.calls != 3 {
		t.Fatalf("segments = %d, recognizer calls = %d, want 3", len(res.Segments), rec.calls)
	}
	for _, seg := range res.Segments {
		if seg.Duration != 30*time.Second {
			t.Errorf("segment %d duration = %v", seg.Index, seg.Duration)
		}
	}
	if res.Transcript != "one two three " {
		t.Errorf("Transcript = %q", res.Transcript)
	}
}

func TestRun_EmptyAudio(t *testing.T) {
	dir := t.TempDir()
	rec := &scriptedRecognizer{}
	p := newPipeline(t, &fakeDecoder{buf: silentBuffer(t, testRate, 0)}, &fileExporter{dir: dir}, rec, 30*time.Second)

	res, err := p.Run(context.Background(), ownedMedia(t, dir), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Transcript != "" || len(res.Segments) != 0 || rec.calls != 0 {
		t.Errorf("transcript = %q segments = %d calls = %d", res.Transcript, len(res.Segments), rec.calls)
	}
	if res.State != StateDone {
		t.Errorf("State = %v", res.State)
	}
}

func TestRun_AllSegmentsFail(t *testing.T) {
	dir := t.TempDir()
	noSpeech := &api.RecognitionError{Backend: "fake", Cause: api.CauseNoSpeech, Err: api.ErrNoSpeech}
	rec := &scriptedRecognizer{errs: map[int]error{0: noSpeech, 1: noSpeech, 2: noSpeech}}
	media := ownedMedia(t, dir)
	p := newPipeline(t, &fakeDecoder{buf: silentBuffer(t, testRate, 65*time.Second)}, &fileExporter{dir: dir}, rec, 30*time.Second)

	res, err := p.Run(context.Background(), media, nil)
	if err != nil {
		t.Fatalf("Run returned error for segment failures: %v", err)
	}
	if res.Transcript != "" {
		t.Errorf("Transcript = %q, want empty", res.Transcript)
	}
	if got := len(res.Failures()); got != 3 {
		t.Errorf("Failures = %d, want 3", got)
	}
	if res.Succeeded() != 0 {
		t.Errorf("Succeeded = %d", res.Succeeded())
	}
	for _, f := range res.Failures() {
		if !errors.Is(f.Err, api.ErrNoSpeech) {
			t.Errorf("segment %d err = %v", f.Index, f.Err)
		}
	}
	assertNoArtifacts(t, dir)
	assertReleased(t, media)
}

func TestRun_MiddleSegmentFails(t *testing.T) {
	dir := t.TempDir()
	rec := &scriptedRecognizer{
		texts: []string{"first", "", "third"},
		errs:  map[int]error{1: &api.RecognitionError{Backend: "fake", Cause: api.CauseNetwork, Err: errors.New("connection reset")}},
	}
	p := newPipeline(t, &fakeDecoder{buf: silentBuffer(t, testRate, 90*time.Second)}, &fileExporter{dir: dir}, rec, 30*time.Second)

	res, err := p.Run(context.Background(), ownedMedia(t, dir), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Transcript != "first third " {
		t.Errorf("Transcript = %q, want %q", res.Transcript, "first third ")
	}
	failures := res.Failures()
	if len(failures) != 1 || failures[0].Index != 1 {
		t.Fatalf("Failures = %+v", failures)
	}
	var recErr *api.RecognitionError
	if !errors.As(failures[0].Err, &recErr) || recErr.Cause != api.CauseNetwork {
		t.Errorf("failure err = %v", failures[0].Err)
	}
}

func TestRun_ExportFailureIsSegmentLocal(t *testing.T) {
	dir := t.TempDir()
	rec := &scriptedRecognizer{texts: []string{"a", "c"}}
	exp := &fileExporter{dir: dir, fail: map[int]error{1: errors.New("disk full")}}
	p := newPipeline(t, &fakeDecoder{buf: silentBuffer(t, testRate, 65*time.Second)}, exp, rec, 30*time.Second)

	res, err := p.Run(context.Background(), ownedMedia(t, dir), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Transcript != "a c " {
		t.Errorf("Transcript = %q", res.Transcript)
	}
	var expErr *audio.ExportError
	if !errors.As(res.Segments[1].Err, &expErr) || expErr.Index != 1 {
		t.Errorf("segment 1 err = %v", res.Segments[1].Err)
	}
}

func TestRun_DecodeFailure(t *testing.T) {
	dir := t.TempDir()
	media := ownedMedia(t, dir)
	rec := &scriptedRecognizer{}
	obs := &recordingObserver{}
	p := newPipeline(t, &fakeDecoder{err: errors.New("invalid data found when processing input")}, &fileExporter{dir: dir}, rec, 30*time.Second)

	res, err := p.Run(context.Background(), media, obs)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("error = %v, want DecodeError", err)
	}
	if decErr.Path != media.Path {
		t.Errorf("DecodeError.Path = %q", decErr.Path)
	}
	if res.State != StateFailed || res.Transcript != "" {
		t.Errorf("State = %v Transcript = %q", res.State, res.Transcript)
	}
	if rec.calls != 0 {
		t.Errorf("recognizer called %d times", rec.calls)
	}
	if !errors.Is(obs.doneErr, err) {
		t.Errorf("observer error = %v", obs.doneErr)
	}
	assertNoArtifacts(t, dir)
	assertReleased(t, media)
}

func TestRun_UnknownSampleRateFailsChunking(t *testing.T) {
	dir := t.TempDir()
	format := beep.Format{SampleRate: 0, NumChannels: 1, Precision: 2}
	buf, err := audio.NewBuffer(format, beep.Silence(10))
	if err != nil {
		t.Fatal(err)
	}
	obs := &recordingObserver{}
	media := ownedMedia(t, dir)
	p := newPipeline(t, &fakeDecoder{buf: buf}, &fileExporter{dir: dir}, &scriptedRecognizer{}, 30*time.Second)

	res, err := p.Run(context.Background(), media, obs)
	if !errors.Is(err, ErrNoSampleRate) {
		t.Fatalf("error = %v, want ErrNoSampleRate", err)
	}
	if res.State != StateFailed {
		t.Errorf("State = %v", res.State)
	}
	if last := obs.states[len(obs.states)-2]; last != StateChunking {
		t.Errorf("state before failure = %v, want chunking", last)
	}
	assertReleased(t, media)
}

func TestRun_CanceledBetweenSegments(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &scriptedRecognizer{
		texts: []string{"a", "b", "c"},
		hook: func(call int) {
			if call == 1 {
				cancel()
			}
		},
	}
	media := ownedMedia(t, dir)
	p := newPipeline(t, &fakeDecoder{buf: silentBuffer(t, testRate, 90*time.Second)}, &fileExporter{dir: dir}, rec, 30*time.Second)

	res, err := p.Run(ctx, media, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if res.State != StateCanceled {
		t.Errorf("State = %v", res.State)
	}
	if res.Transcript != "a b " || rec.calls != 2 {
		t.Errorf("Transcript = %q calls = %d", res.Transcript, rec.calls)
	}
	assertNoArtifacts(t, dir)
	assertReleased(t, media)
}

func TestRun_LocalMediaIsKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mine.wav")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := newPipeline(t, &fakeDecoder{buf: silentBuffer(t, testRate, time.Second)}, &fileExporter{dir: dir}, &scriptedRecognizer{texts: []string{"hi"}}, 30*time.Second)

	if _, err := p.Run(context.Background(), &source.Media{Path: path, Name: "mine.wav"}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("local media removed: %v", err)
	}
}

func TestRun_WithAudioExporter(t *testing.T) {
	dir := t.TempDir()
	var rates []beep.SampleRate
	rec := &scriptedRecognizer{texts: []string{"x", "y", "z"}}
	check := &wavInspector{next: rec, rates: &rates}

	p := newPipeline(t,
		&fakeDecoder{buf: silentBuffer(t, 8000, 2500*time.Millisecond)},
		audio.NewExporter(dir),
		check,
		time.Second)

	res, err := p.Run(context.Background(), ownedMedia(t, dir), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Transcript != "x y z " {
		t.Errorf("Transcript = %q", res.Transcript)
	}
	for i, r := range rates {
		if r != audio.TargetSampleRate {
			t.Errorf("artifact %d sample rate = %d, want %d", i, r, audio.TargetSampleRate)
		}
	}
	assertNoArtifacts(t, dir)
}

// wavInspector reads each artifact before handing it on.
type wavInspector struct {
	next  Recognizer
	rates *[]beep.SampleRate
}

func (w *wavInspector) Transcribe(ctx context.Context, path string) (string, error) {
	buf, err := audio.ReadWAV(path)
	if err != nil {
		return "", err
	}
	*w.rates = append(*w.rates, buf.SampleRate())
	return w.next.Transcribe(ctx, path)
}

func TestNew_Validation(t *testing.T) {
	d, e, r := &fakeDecoder{}, &fileExporter{}, &scriptedRecognizer{}
	for _, chunk := range []time.Duration{0, -time.Second} {
		if _, err := New(d, e, r, chunk); !errors.Is(err, ErrInvalidChunkLength) {
			t.Errorf("New(chunk=%v) error = %v, want ErrInvalidChunkLength", chunk, err)
		}
	}
	if _, err := New(nil, e, r, time.Second); err == nil {
		t.Error("expected error for missing decoder")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateIdle, "idle"},
		{StateTranscribing, "transcribing"},
		{StateCanceled, "canceled"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
	if !StateFailed.Terminal() || StateCleanup.Terminal() {
		t.Error("Terminal mismatch")
	}
}
