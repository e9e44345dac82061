package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// Google transcribes with the Google Web Speech v2 endpoint used by
// Chromium, posting raw 16-bit PCM.
type Google struct {
	BaseURL  string
	APIKey   string
	Language string // BCP 47, e.g. en-US
	Client   *http.Client
}

type googleResponse struct {
	Result []struct {
		Alternative []struct {
			Transcript string   `json:"transcript"`
			Confidence *float64 `json:"confidence"`
		} `json:"alternative"`
		Final bool `json:"final"`
	} `json:"result"`
}

// Transcribe sends the WAV file's samples and returns the best alternative.
func (g *Google) Transcribe(ctx context.Context, path string) (string, error) {
	const backend = "google"

	pcm, rate, err := readPCM(path)
	if err != nil {
		return "", &RecognitionError{Backend: backend, Cause: CauseBackend, Err: err}
	}

	q := url.Values{}
	q.Set("client", "chromium")
	q.Set("lang", g.Language)
	q.Set("key", g.APIKey)
	q.Set("pFilter", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"?"+q.Encode(), bytes.NewReader(pcm))
	if err != nil {
		return "", &RecognitionError{Backend: backend, Cause: CauseBackend, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d", rate))

	resp, err := httpClient(g.Client).Do(req)
	if err != nil {
		return "", networkError(backend, fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", networkError(backend, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(backend, resp.StatusCode, body)
	}

	text, err := bestTranscript(body)
	if err != nil {
		return "", &RecognitionError{Backend: backend, Cause: CauseBackend, Status: resp.StatusCode, Err: err}
	}
	if text == "" {
		return "", noSpeechError(backend)
	}
	return text, nil
}

// bestTranscript scans the newline-delimited JSON objects of a response and
// returns the highest-confidence alternative of the first non-empty result.
func bestTranscript(body []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r googleResponse
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		for _, result := range r.Result {
			if len(result.Alternative) == 0 {
				continue
			}
			best := result.Alternative[0]
			for _, alt := range result.Alternative[1:] {
				if alt.Confidence != nil && (best.Confidence == nil || *alt.Confidence > *best.Confidence) {
					best = alt
				}
			}
			return strings.TrimSpace(best.Transcript), nil
		}
	}
	return "", scanner.Err()
}

// readPCM decodes a WAV file into little-endian signed 16-bit mono samples.
func readPCM(path string) ([]byte, beep.SampleRate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	s, format, err := wav.Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("decode artifact: %w", err)
	}
	out := beep.Format{SampleRate: format.SampleRate, NumChannels: 1, Precision: 2}

	var (
		pcm     bytes.Buffer
		samples [512][2]float64
		frame   = make([]byte, out.Width())
	)
	for {
		n, ok := s.Stream(samples[:])
		for _, sample := range samples[:n] {
			out.EncodeSigned(frame, sample)
			pcm.Write(frame)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, 0, fmt.Errorf("read artifact samples: %w", err)
	}
	return pcm.Bytes(), format.SampleRate, nil
}
