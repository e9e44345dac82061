package config

import (
	"errors"
	"fmt"
	"strings"
)

// Backends lists the recognition backends understood by the api package.
var Backends = []string{"google", "openai", "elevenlabs"}

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []error

	t := c.Transcription
	if t.ChunkLengthSeconds <= 0 {
		errs = append(errs, fmt.Errorf("transcription.chunk_length_seconds must be positive, got %d", t.ChunkLengthSeconds))
	}
	if t.TargetSampleRateHz != TargetSampleRateHz {
		errs = append(errs, fmt.Errorf("transcription.target_sample_rate_hz is fixed at %d, got %d", TargetSampleRateHz, t.TargetSampleRateHz))
	}
	if !knownBackend(t.Backend) {
		errs = append(errs, fmt.Errorf("transcription.backend %q is not one of %s", t.Backend, strings.Join(Backends, ", ")))
	}
	if t.RequestsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("transcription.requests_per_minute must be positive, got %d", t.RequestsPerMinute))
	}
	if t.RequestTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("transcription.request_timeout_seconds must be positive, got %d", t.RequestTimeoutSeconds))
	}

	switch t.Backend {
	case "openai":
		if strings.TrimSpace(c.OpenAI.APIKey) == "" {
			errs = append(errs, errors.New("openai backend selected but openai.api_key (or OPENAI_API_KEY) is empty"))
		}
	case "google":
		if strings.TrimSpace(c.Google.APIKey) == "" {
			errs = append(errs, errors.New("google backend selected but google.api_key is empty"))
		}
	}

	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		errs = append(errs, errors.New("paths.work_dir must be set"))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB))
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout_seconds must be positive, got %d", c.Fetch.TimeoutSeconds))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level))
	}

	return errors.Join(errs...)
}

func knownBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}
