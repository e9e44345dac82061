package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Recognizer turns one rendered audio file into text.
type Recognizer interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Cause classifies why recognition failed.
type Cause string

const (
	CauseNetwork  Cause = "network"
	CauseNoSpeech Cause = "no-speech"
	CauseAuth     Cause = "auth"
	CauseQuota    Cause = "quota"
	CauseBackend  Cause = "backend"
)

// ErrNoSpeech is wrapped when the backend heard nothing it could transcribe.
var ErrNoSpeech = errors.New("no recognizable speech")

// RecognitionError reports a failed recognition request.
type RecognitionError struct {
	Backend string
	Cause   Cause
	Status  int // HTTP status, 0 when no response was received.
	Err     error
}

func (e *RecognitionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s recognition failed (%s, HTTP %d): %v", e.Backend, e.Cause, e.Status, e.Err)
	}
	return fmt.Sprintf("%s recognition failed (%s): %v", e.Backend, e.Cause, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

func networkError(backend string, err error) error {
	return &RecognitionError{Backend: backend, Cause: CauseNetwork, Err: err}
}

func noSpeechError(backend string) error {
	return &RecognitionError{Backend: backend, Cause: CauseNoSpeech, Err: ErrNoSpeech}
}

func statusError(backend string, status int, body []byte) error {
	return &RecognitionError{
		Backend: backend,
		Cause:   causeForStatus(status),
		Status:  status,
		Err:     fmt.Errorf("API returned status %d: %s", status, truncate(string(body), 512)),
	}
}

func causeForStatus(status int) Cause {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return CauseAuth
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return CauseQuota
	default:
		return CauseBackend
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
