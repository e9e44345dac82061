package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/eren1106/video-audio-to-text-converter/internal/audio"
)

// segment exports and transcribes a single segment. The artifact is gone by
// the time it returns.
func (p *Pipeline) segment(ctx context.Context, buf *audio.Buffer, seg audio.Segment, total int, enter func(State)) SegmentResult {
	progress := fmt.Sprintf("%d/%d", seg.Index+1, total)
	res := SegmentResult{
		Index:    seg.Index,
		Start:    seg.StartTime(),
		Duration: seg.Duration(),
	}

	enter(StateExporting)
	err := p.exporter.Export(ctx, buf, seg, func(a audio.Artifact) error {
		enter(StateTranscribing)
		slog.Debug("transcribing segment", "segment", progress, "file", filepath.Base(a.Path))
		text, err := p.recognizer.Transcribe(ctx, a.Path)
		if err != nil {
			return err
		}
		res.Text = text
		return nil
	})
	enter(StateCleanup)

	if err != nil {
		res.Text = ""
		res.Err = err
		slog.Warn("segment failed", "segment", progress, "err", err)
		return res
	}
	slog.Info("segment transcribed", "segment", progress, "chars", len(res.Text))
	return res
}
