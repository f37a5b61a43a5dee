//go:build !whispercpp

package asr

import (
	"context"

	"go.uber.org/zap"
)

// Whisper is unavailable in builds without the whispercpp tag.
type Whisper struct{}

// NewWhisper always fails with ErrNativeUnavailable.
func NewWhisper(string, int, *zap.SugaredLogger) (*Whisper, error) {
	return nil, ErrNativeUnavailable
}

// Recognize implements Recognizer.
func (*Whisper) Recognize(context.Context, []float32, string) (string, error) {
	return "", ErrNativeUnavailable
}

// Close implements Closer.
func (*Whisper) Close() error { return nil }
