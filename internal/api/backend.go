package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/eren1106/video-audio-to-text-converter/internal/config"
)

const defaultTimeout = 2 * time.Minute

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

// New builds the configured backend, paced to the configured request rate.
func New(cfg *config.Config) (Recognizer, error) {
	client := &http.Client{Timeout: cfg.RequestTimeout()}
	lang := cfg.Transcription.Language

	var r Recognizer
	switch cfg.Transcription.Backend {
	case "google":
		r = &Google{
			BaseURL:  cfg.Google.BaseURL,
			APIKey:   cfg.Google.APIKey,
			Language: lang,
			Client:   client,
		}
	case "openai":
		r = &OpenAI{
			BaseURL:  cfg.OpenAI.BaseURL,
			APIKey:   cfg.OpenAI.APIKey,
			Model:    cfg.OpenAI.Model,
			Language: config.BaseLanguage(lang),
			Client:   client,
		}
	case "elevenlabs":
		r = &ElevenLabs{
			BaseURL:  cfg.ElevenLabs.BaseURL,
			APIKey:   cfg.ElevenLabs.APIKey,
			ModelID:  cfg.ElevenLabs.ModelID,
			Language: config.BaseLanguage(lang),
			Client:   client,
		}
	default:
		return nil, fmt.Errorf("unknown recognition backend %q", cfg.Transcription.Backend)
	}
	return Paced(r, cfg.Transcription.RequestsPerMinute), nil
}
