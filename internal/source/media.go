package source

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lukechampine.com/blake3"

	"github.com/eren1106/video-audio-to-text-converter/internal/ffmpeg"
)

// SupportedExtensions lists the upload formats accepted by the UI.
var SupportedExtensions = []string{".mp3", ".mp4", ".mov", ".avi", ".wav"}

// ErrUnsupported is returned for uploads with an extension outside SupportedExtensions.
var ErrUnsupported = errors.New("unsupported media type")

// Media is a local file holding decodable audio or video. Owned media was
// created by this process (upload or download) and is deleted by Release.
type Media struct {
	Path        string
	Name        string
	Size        int64
	Duration    time.Duration
	SampleRate  int
	Channels    int
	Fingerprint string
	Video       bool

	owned bool
}

// Owned reports whether Release deletes the backing file.
func (m *Media) Owned() bool {
	return m.owned
}

// Release deletes the backing file of owned media. It is safe to call more
// than once.
func (m *Media) Release() error {
	if !m.owned {
		return nil
	}
	if err := os.Remove(m.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove source media: %w", err)
	}
	return nil
}

// Supported reports whether name has an accepted upload extension.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Stage copies an uploaded stream into dir and returns owned Media for it.
func Stage(ctx context.Context, dir, name string, r io.Reader) (*Media, error) {
	if !Supported(name) {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnsupported, filepath.Ext(name), strings.Join(SupportedExtensions, ", "))
	}

	f, err := os.CreateTemp(dir, "upload_*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	h := blake3.New(32, nil)
	size, copyErr := io.Copy(io.MultiWriter(f, h), r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	m := &Media{
		Path:        f.Name(),
		Name:        filepath.Base(name),
		Size:        size,
		Fingerprint: hex.EncodeToString(h.Sum(nil)),
		owned:       true,
	}
	describe(ctx, m)
	return m, nil
}

// Local wraps a file the user already has on disk. The file is not owned.
func Local(ctx context.Context, path string) (*Media, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open source media: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open source media: %s is a directory", path)
	}

	fingerprint, err := fingerprintFile(abs)
	if err != nil {
		return nil, err
	}

	m := &Media{
		Path:        abs,
		Name:        filepath.Base(abs),
		Size:        info.Size(),
		Fingerprint: fingerprint,
	}
	describe(ctx, m)
	return m, nil
}

// describe fills stream attributes from ffprobe. Probing is informational;
// an unreadable file is reported later by the decoder.
func describe(ctx context.Context, m *Media) {
	m.Video = ffmpeg.IsVideoExtension(filepath.Ext(m.Name))
	info := ffmpeg.LogMediaInfo(ctx, m.Path)
	if info == nil {
		slog.Debug("source media not probed", "file", m.Name)
		return
	}
	m.Duration = info.DurationTime()
	m.SampleRate = info.SampleRate
	m.Channels = info.Channels
}

func fingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint source media: %w", err)
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("fingerprint source media: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
