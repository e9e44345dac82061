package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// MediaInfo holds stream and container information from ffprobe.
type MediaInfo struct {
	Duration   float64
	Codec      string
	SampleRate int
	Channels   int
	Size       int64
}

// DurationTime returns the probed duration as a time.Duration.
func (m *MediaInfo) DurationTime() time.Duration {
	if m == nil {
		return 0
	}
	return time.Duration(m.Duration * float64(time.Second))
}

// Available returns true if ffmpeg is on the PATH.
func Available() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// probeOutput mirrors ffprobe JSON structure.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// ProbeMedia uses ffprobe to get the duration and first audio stream of a file.
func ProbeMedia(ctx context.Context, path string) (*MediaInfo, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name,sample_rate,channels:format=duration,size",
		"-of", "json",
		"--", path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (*MediaInfo, error) {
	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("ffprobe JSON parse error: %w", err)
	}

	dur, _ := strconv.ParseFloat(probe.Format.Duration, 64)
	size, _ := strconv.ParseInt(probe.Format.Size, 10, 64)
	info := &MediaInfo{Duration: dur, Size: size, Codec: "N/A"}

	if len(probe.Streams) > 0 {
		s := probe.Streams[0]
		if s.CodecName != "" {
			info.Codec = s.CodecName
		}
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		info.Channels = s.Channels
	}
	return info, nil
}

// DecodeToWAV decodes the first audio stream of any supported container into
// a mono 16-bit PCM WAV file at the source sample rate.
func DecodeToWAV(ctx context.Context, inputPath, outputPath string) error {
	slog.Debug("decoding audio", "input", filepath.Base(inputPath), "output", filepath.Base(outputPath))

	cmd := exec.CommandContext(ctx,
		"ffmpeg", "-nostdin", "-v", "error",
		"-i", inputPath,
		"-vn", "-ac", "1",
		"-c:a", "pcm_s16le",
		"-f", "wav", "-y",
		outputPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg decode failed: %w\n%s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// IsVideoExtension returns true for common video file extensions.
func IsVideoExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp4", ".mkv", ".mov", ".avi", ".flv", ".webm":
		return true
	}
	return false
}

// LogMediaInfo logs file size and media information. It returns nil when
// the file cannot be probed.
func LogMediaInfo(ctx context.Context, path string) *MediaInfo {
	stat, err := os.Stat(path)
	if err != nil {
		slog.Warn("cannot stat file", "path", path, "err", err)
		return nil
	}

	sizeMB := float64(stat.Size()) / (1024 * 1024)
	msg := fmt.Sprintf("file size: %.2f MB", sizeMB)

	info, err := ProbeMedia(ctx, path)
	if err != nil {
		slog.Debug("probe media", "file", filepath.Base(path), "err", err)
		slog.Info(msg, "file", filepath.Base(path))
		return nil
	}
	info.Size = stat.Size()
	minutes := int(info.Duration) / 60
	seconds := int(info.Duration) % 60
	msg += fmt.Sprintf(" | duration: %02d:%02d | codec: %s | %d Hz x%d", minutes, seconds, info.Codec, info.SampleRate, info.Channels)

	slog.Info(msg, "file", filepath.Base(path))
	return info
}
