package asr

import (
	"errors"
	"fmt"
)

// ErrNativeUnavailable is returned when the binary was built without the
// whispercpp tag.
var ErrNativeUnavailable = errors.New("asr: whisper backend not compiled in (build with -tags whispercpp)")

// RetryExhaustedError reports that every upload attempt failed.
type RetryExhaustedError struct {
	Attempts     int
	MaxRetry     int
	LastResponse []byte
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("exceeded max retries (%d) after %d attempts: %s", e.MaxRetry, e.Attempts, formatResponse(e.LastResponse))
}
