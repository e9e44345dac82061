package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// TargetSampleRate is the rate every artifact is rendered at.
const TargetSampleRate beep.SampleRate = 16000

// ArtifactPattern matches artifact file names inside the export directory.
const ArtifactPattern = "segment_*.wav"

const resampleQuality = 4

// Artifact is a rendered segment on disk. It is only valid inside the
// callback passed to Exporter.Export.
type Artifact struct {
	Index      int
	Path       string
	SampleRate beep.SampleRate
	Duration   time.Duration
}

// ExportError reports a segment that could not be rendered.
type ExportError struct {
	Index int
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export segment %d: %v", e.Index+1, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Exporter renders segments as mono 16-bit WAV files in Dir.
type Exporter struct {
	Dir        string
	SampleRate beep.SampleRate
}

// NewExporter returns an Exporter writing TargetSampleRate artifacts into dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{Dir: dir, SampleRate: TargetSampleRate}
}

// Export renders seg, passes the artifact to use, and removes the file when
// use returns, on every path. Render failures are returned as *ExportError;
// errors from use are returned unchanged.
func (e *Exporter) Export(ctx context.Context, buf *Buffer, seg Segment, use func(Artifact) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if seg.Len() <= 0 || seg.Start < 0 || seg.End > buf.Len() {
		return &ExportError{Index: seg.Index, Err: fmt.Errorf("invalid sample range [%d, %d) of %d", seg.Start, seg.End, buf.Len())}
	}

	f, err := os.CreateTemp(e.Dir, fmt.Sprintf("segment_%03d_*.wav", seg.Index))
	if err != nil {
		return &ExportError{Index: seg.Index, Err: err}
	}
	path := f.Name()
	defer removeArtifact(path)

	if err := e.render(f, buf, seg); err != nil {
		f.Close()
		return &ExportError{Index: seg.Index, Err: err}
	}
	if err := f.Close(); err != nil {
		return &ExportError{Index: seg.Index, Err: err}
	}

	return use(Artifact{
		Index:      seg.Index,
		Path:       path,
		SampleRate: e.rate(),
		Duration:   seg.Duration(),
	})
}

func (e *Exporter) render(w io.WriteSeeker, buf *Buffer, seg Segment) error {
	var s beep.Streamer = buf.Streamer(seg.Start, seg.End)
	if seg.Rate != e.rate() {
		s = beep.Resample(resampleQuality, seg.Rate, e.rate(), s)
	}
	format := beep.Format{SampleRate: e.rate(), NumChannels: 1, Precision: 2}
	if err := wav.Encode(w, s, format); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}

func (e *Exporter) rate() beep.SampleRate {
	if e.SampleRate <= 0 {
		return TargetSampleRate
	}
	return e.SampleRate
}

func removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("remove segment artifact", "file", filepath.Base(path), "err", err)
	}
}
