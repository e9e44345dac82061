package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FetchError reports a remote source that could not be obtained.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsRemote reports whether input looks like an http(s) URL rather than a path.
func IsRemote(input string) bool {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetcher downloads the best audio stream of a remote video with yt-dlp.
type Fetcher struct {
	Binary  string
	Dir     string
	Timeout time.Duration
}

// Fetch downloads rawURL into Dir and returns owned Media for it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Media, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !IsRemote(rawURL) {
		return nil, &FetchError{URL: rawURL, Err: errors.New("not an http(s) URL")}
	}

	binary := f.Binary
	if binary == "" {
		binary = "yt-dlp"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("%s not found: %w", binary, err)}
	}

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	id := uuid.NewString()
	template := filepath.Join(f.Dir, "fetch_"+id+".%(ext)s")
	slog.Info("fetching remote media", "url", rawURL)

	cmd := exec.CommandContext(ctx, binary,
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"-f", "bestaudio/best",
		"-o", template,
		"--print", "after_move:filepath",
		"--", rawURL,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		f.discard(id)
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))}
	}

	path := lastLine(out)
	if path == "" {
		f.discard(id)
		return nil, &FetchError{URL: rawURL, Err: errors.New("downloader reported no output file")}
	}
	info, err := os.Stat(path)
	if err != nil {
		f.discard(id)
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	m := &Media{
		Path:  path,
		Name:  filepath.Base(path),
		Size:  info.Size(),
		owned: true,
	}
	if fingerprint, err := fingerprintFile(path); err == nil {
		m.Fingerprint = fingerprint
	}
	describe(ctx, m)
	return m, nil
}

// discard removes everything the downloader wrote for one fetch, including
// partial and intermediate files.
func (f *Fetcher) discard(id string) {
	matches, err := filepath.Glob(filepath.Join(f.Dir, "fetch_"+id+".*"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove partial download", "path", path, "error", err)
		}
	}
}

func lastLine(out []byte) string {
	var last string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	return last
}
