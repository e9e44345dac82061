package api

import (
	"context"
	"net/http"
	"strings"
)

// OpenAI transcribes with the OpenAI audio transcription endpoint.
type OpenAI struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string // ISO 639-1, empty for auto-detect
	Client   *http.Client
}

type openAIResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the file and returns the recognized text.
func (o *OpenAI) Transcribe(ctx context.Context, path string) (string, error) {
	u := upload{
		backend:  "openai",
		url:      strings.TrimRight(o.BaseURL, "/") + "/v1/audio/transcriptions",
		header:   authHeader("Authorization", "Bearer "+o.APIKey),
		path:     path,
		progress: debugProgress(path),
		fields: [][2]string{
			{"model", o.Model},
			{"response_format", "json"},
		},
	}
	if o.Language != "" {
		u.fields = append(u.fields, [2]string{"language", o.Language})
	}

	var resp openAIResponse
	if err := u.do(ctx, httpClient(o.Client), &resp); err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", noSpeechError(u.backend)
	}
	return text, nil
}
