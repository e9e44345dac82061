package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eren1106/video-audio-to-text-converter/internal/audio"
	"github.com/eren1106/video-audio-to-text-converter/internal/source"
)

// Decoder turns a media file into an in-memory audio buffer.
type Decoder interface {
	Decode(ctx context.Context, path string) (*audio.Buffer, error)
}

// Exporter renders one segment to a temporary file that exists only while
// use runs.
type Exporter interface {
	Export(ctx context.Context, buf *audio.Buffer, seg audio.Segment, use func(audio.Artifact) error) error
}

// Recognizer turns one rendered segment file into text.
type Recognizer interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Pipeline converts a media file into a transcript by splitting its audio
// into fixed-length segments and transcribing them one at a time.
type Pipeline struct {
	decoder     Decoder
	exporter    Exporter
	recognizer  Recognizer
	chunkLength time.Duration
}

// New returns a Pipeline. All state of a run lives in Run, so one Pipeline
// may serve many runs.
func New(d Decoder, e Exporter, r Recognizer, chunkLength time.Duration) (*Pipeline, error) {
	if chunkLength <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChunkLength, chunkLength)
	}
	if d == nil || e == nil || r == nil {
		return nil, errors.New("pipeline needs a decoder, an exporter and a recognizer")
	}
	return &Pipeline{decoder: d, exporter: e, recognizer: r, chunkLength: chunkLength}, nil
}

// ChunkLength returns the target segment length.
func (p *Pipeline) ChunkLength() time.Duration {
	return p.chunkLength
}

// Run transcribes media. Segment failures are recorded in the result and do
// not fail the run; only decoding and chunking failures do. The media is
// released when Run returns, whatever the outcome. When ctx is canceled
// between segments the partial result is returned with ctx's error.
func (p *Pipeline) Run(ctx context.Context, media *source.Media, obs Observer) (res *Result, err error) {
	if obs == nil {
		obs = NopObserver{}
	}
	res = &Result{
		Source:      media.Name,
		Fingerprint: media.Fingerprint,
		ChunkLength: p.chunkLength,
		State:       StateIdle,
	}
	enter := func(s State) {
		res.State = s
		obs.StateChanged(s)
	}

	defer func() {
		if relErr := media.Release(); relErr != nil {
			slog.Warn("release source media", "file", media.Name, "err", relErr)
		}
		obs.Finished(res, err)
	}()

	enter(StateDecoding)
	buf, err := p.decoder.Decode(ctx, media.Path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			enter(StateCanceled)
			return res, ctxErr
		}
		enter(StateFailed)
		var decErr *DecodeError
		if errors.As(err, &decErr) {
			return res, err
		}
		return res, &DecodeError{Path: media.Path, Err: err}
	}
	res.Duration = buf.Duration()

	enter(StateChunking)
	if buf.SampleRate() <= 0 {
		enter(StateFailed)
		return res, fmt.Errorf("chunk %s: %w", media.Name, ErrNoSampleRate)
	}
	total := audio.Count(buf, p.chunkLength)
	slog.Info("audio decoded",
		"file", media.Name,
		"duration", res.Duration.Round(time.Millisecond),
		"segments", total,
		"chunk_length", p.chunkLength)

	var transcript strings.Builder
	for seg := range audio.Chunks(buf, p.chunkLength) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.Transcript = transcript.String()
			enter(StateCanceled)
			slog.Info("run canceled", "file", media.Name, "completed", fmt.Sprintf("%d/%d", seg.Index, total))
			return res, ctxErr
		}

		obs.SegmentStarted(seg.Index, total)
		sr := p.segment(ctx, buf, seg, total, enter)
		res.Segments = append(res.Segments, sr)
		if sr.OK() {
			transcript.WriteString(sr.Text)
			transcript.WriteByte(' ')
		}
		obs.SegmentFinished(sr, total)
	}

	enter(StateAggregating)
	res.Transcript = transcript.String()
	if failed := total - res.Succeeded(); failed > 0 {
		slog.Warn("some segments could not be transcribed", "file", media.Name, "failed", failed, "total", total)
	}
	enter(StateDone)
	return res, nil
}
