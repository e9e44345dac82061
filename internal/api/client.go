package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// ProgressFunc is called with (bytesRead, totalBytes) during upload.
type ProgressFunc func(bytesRead, totalBytes int64)

// progressReader wraps an io.Reader and reports progress.
type progressReader struct {
	reader   io.Reader
	total    int64
	read     int64
	callback ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.read += int64(n)
	if pr.callback != nil {
		pr.callback(pr.read, pr.total)
	}
	return n, err
}

// mimeFromExt returns the MIME type for common audio/video extensions.
func mimeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp3":
		return "audio/mp3"
	case ".m4a":
		return "audio/m4a"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

// debugProgress logs upload progress at debug level.
func debugProgress(path string) ProgressFunc {
	return func(read, total int64) {
		pct := 0.0
		if total > 0 {
			pct = math.Min(float64(read)/float64(total)*100, 100)
		}
		slog.Debug("upload progress", "file", filepath.Base(path), "percent", fmt.Sprintf("%.1f%%", pct))
	}
}

// upload is one multipart/form-data request carrying a single audio file.
type upload struct {
	backend  string
	url      string
	header   http.Header
	fields   [][2]string
	path     string
	progress ProgressFunc
}

// do streams the form through a pipe so the file is never held in memory,
// then decodes a JSON response into out.
func (u upload) do(ctx context.Context, client *http.Client, out any) error {
	f, err := os.Open(u.path)
	if err != nil {
		return &RecognitionError{Backend: u.backend, Cause: CauseBackend, Err: fmt.Errorf("open file: %w", err)}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return &RecognitionError{Backend: u.backend, Cause: CauseBackend, Err: fmt.Errorf("stat file: %w", err)}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		err := writeForm(mw, u.fields, u.path, f)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
		errCh <- err
	}()

	// Estimate total size: file size + ~1KB form overhead.
	body := &progressReader{
		reader:   pr,
		total:    stat.Size() + 1024,
		callback: u.progress,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, body)
	if err != nil {
		pr.CloseWithError(err)
		return &RecognitionError{Backend: u.backend, Cause: CauseBackend, Err: fmt.Errorf("create request: %w", err)}
	}
	for k, vals := range u.header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return networkError(u.backend, fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		// The server may answer before consuming the whole form.
		pr.CloseWithError(io.ErrClosedPipe)
		<-errCh
		return statusError(u.backend, resp.StatusCode, respBody)
	}

	if writeErr := <-errCh; writeErr != nil {
		return networkError(u.backend, fmt.Errorf("multipart write error: %w", writeErr))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RecognitionError{Backend: u.backend, Cause: CauseBackend, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func writeForm(mw *multipart.Writer, fields [][2]string, path string, file io.Reader) error {
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(path)))
	h.Set("Content-Type", mimeFromExt(filepath.Ext(path)))
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}
