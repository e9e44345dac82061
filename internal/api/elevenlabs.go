package api

import (
	"context"
	"net/http"
	"strings"
)

const elevenLabsSite = "https://elevenlabs.io"

// ElevenLabs transcribes with the ElevenLabs speech-to-text endpoint.
type ElevenLabs struct {
	BaseURL  string
	APIKey   string // empty uses the unauthenticated browser endpoint
	ModelID  string
	Language string // ISO 639-1, empty for auto-detect
	Client   *http.Client
	Progress ProgressFunc
}

type elevenLabsResponse struct {
	LanguageCode string `json:"language_code"`
	Text         string `json:"text"`
}

// Transcribe uploads the file and returns the recognized text.
func (e *ElevenLabs) Transcribe(ctx context.Context, path string) (string, error) {
	u := upload{
		backend:  "elevenlabs",
		url:      strings.TrimRight(e.BaseURL, "/") + "/v1/speech-to-text",
		path:     path,
		progress: e.Progress,
		fields: [][2]string{
			{"model_id", e.ModelID},
			{"diarize", "false"},
			{"tag_audio_events", "false"},
		},
	}
	if e.Progress == nil {
		u.progress = debugProgress(path)
	}
	if e.Language != "" {
		u.fields = append(u.fields, [2]string{"language_code", e.Language})
	}
	if e.APIKey != "" {
		u.header = authHeader("xi-api-key", e.APIKey)
	} else {
		u.url += "?allow_unauthenticated=1"
		u.header = browserHeaders(elevenLabsSite)
	}

	var resp elevenLabsResponse
	if err := u.do(ctx, httpClient(e.Client), &resp); err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", noSpeechError(u.backend)
	}
	return text, nil
}
