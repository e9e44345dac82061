package api

import (
	"context"

	"golang.org/x/time/rate"
)

type paced struct {
	next    Recognizer
	limiter *rate.Limiter
}

// Paced spaces requests to next at most requestsPerMinute apart. It never
// retries; each call still makes exactly one request.
func Paced(next Recognizer, requestsPerMinute int) Recognizer {
	if requestsPerMinute <= 0 {
		return next
	}
	// Rate limiter: tokens per second = RPM / 60.
	return &paced{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
	}
}

func (p *paced) Transcribe(ctx context.Context, path string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", &RecognitionError{Backend: "pacer", Cause: CauseNetwork, Err: err}
	}
	return p.next.Transcribe(ctx, path)
}
