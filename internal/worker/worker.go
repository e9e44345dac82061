package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/eren1106/video-audio-to-text-converter/internal/api"
	"github.com/eren1106/video-audio-to-text-converter/internal/audio"
	"github.com/eren1106/video-audio-to-text-converter/internal/config"
	"github.com/eren1106/video-audio-to-text-converter/internal/ffmpeg"
	"github.com/eren1106/video-audio-to-text-converter/internal/pipeline"
	"github.com/eren1106/video-audio-to-text-converter/internal/source"
	"github.com/eren1106/video-audio-to-text-converter/internal/workspace"
)

// Runner wires configuration, the shared workspace and the pipeline
// collaborators together. It is safe for concurrent use; runs queue on the
// workspace.
type Runner struct {
	cfg        *config.Config
	ws         *workspace.Workspace
	fetcher    *source.Fetcher
	decoder    pipeline.Decoder
	exporter   pipeline.Exporter
	recognizer pipeline.Recognizer
}

// Option customizes a Runner.
type Option func(*Runner)

// WithRecognizer replaces the configured recognition backend.
func WithRecognizer(r pipeline.Recognizer) Option {
	return func(rn *Runner) { rn.recognizer = r }
}

// WithDecoder replaces the ffmpeg decoder.
func WithDecoder(d pipeline.Decoder) Option {
	return func(rn *Runner) { rn.decoder = d }
}

// NewRunner opens the workspace and builds the default collaborators.
func NewRunner(cfg *config.Config, opts ...Option) (*Runner, error) {
	ws, err := workspace.Open(cfg.Paths.WorkDir)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg: cfg,
		ws:  ws,
		fetcher: &source.Fetcher{
			Binary:  cfg.Fetch.YtDlpBinary,
			Dir:     ws.Dir,
			Timeout: cfg.FetchTimeout(),
		},
		decoder:  audio.NewTranscoder(ws.Dir),
		exporter: audio.NewExporter(ws.Dir),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.recognizer == nil {
		rec, err := api.New(cfg)
		if err != nil {
			return nil, err
		}
		r.recognizer = rec
	}
	if !ffmpeg.Available() {
		slog.Warn("ffmpeg not found in PATH, media cannot be decoded")
	}
	return r, nil
}

// Workspace returns the directory shared by all runs.
func (r *Runner) Workspace() *workspace.Workspace {
	return r.ws
}

// ChunkLength returns the configured segment length.
func (r *Runner) ChunkLength() time.Duration {
	return r.cfg.ChunkLength()
}

// Stage stores an uploaded file in the workspace.
func (r *Runner) Stage(ctx context.Context, name string, body io.Reader) (*source.Media, error) {
	return source.Stage(ctx, r.ws.Dir, name, body)
}

// Resolve turns a CLI or form input into media: http(s) URLs are
// downloaded, anything else is treated as a local path.
func (r *Runner) Resolve(ctx context.Context, input string) (*source.Media, error) {
	input = strings.TrimSpace(input)
	if source.IsRemote(input) {
		return r.fetcher.Fetch(ctx, input)
	}
	if !source.Supported(input) {
		return nil, fmt.Errorf("%w: %q (want one of %s)", source.ErrUnsupported,
			filepath.Ext(input), strings.Join(source.SupportedExtensions, ", "))
	}
	return source.Local(ctx, input)
}

// Run transcribes media once the workspace is free. chunkLength overrides
// the configured segment length when positive. The media is released on
// every path.
func (r *Runner) Run(ctx context.Context, media *source.Media, chunkLength time.Duration, obs pipeline.Observer) (*pipeline.Result, error) {
	if chunkLength <= 0 {
		chunkLength = r.cfg.ChunkLength()
	}

	p, err := pipeline.New(r.decoder, r.exporter, r.recognizer, chunkLength)
	if err != nil {
		releaseMedia(media)
		return nil, err
	}

	release, err := r.ws.Acquire(ctx)
	if err != nil {
		releaseMedia(media)
		return nil, err
	}
	defer release()

	slog.Info("processing file",
		"input", media.Name,
		"video", media.Video,
		"duration", media.Duration.Round(time.Second),
		"backend", r.cfg.Transcription.Backend,
		"chunk_length", chunkLength)

	return p.Run(ctx, media, obs)
}

func releaseMedia(m *source.Media) {
	if err := m.Release(); err != nil {
		slog.Warn("release source media", "file", m.Name, "err", err)
	}
}
