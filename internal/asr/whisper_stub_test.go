//go:build !whispercpp

package asr

import (
	"context"
	"errors"
	"testing"
)

func TestWhisperUnavailableWithoutTag(t *testing.T) {
	cfg := testConfig("")
	cfg.Backend = "whisper"
	cfg.ModelPath = "ggml-tiny.bin"
	if _, err := New(cfg, nil, nil, nil); !errors.Is(err, ErrNativeUnavailable) {
		t.Fatalf("expected ErrNativeUnavailable, got %v", err)
	}
	var w *Whisper
	if _, err := w.Recognize(context.Background(), []float32{1}, "en"); !errors.Is(err, ErrNativeUnavailable) {
		t.Fatalf("expected ErrNativeUnavailable, got %v", err)
	}
}
