// Package asr turns audio segments into text.
package asr

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"voicekb/internal/cache"
	"voicekb/internal/config"
)

// Recognizer converts a finite mono segment into text. language may be empty
// or "auto" to let the model detect it.
type Recognizer interface {
	Recognize(ctx context.Context, samples []float32, language string) (string, error)
}

// Func adapts a function to Recognizer.
type Func func(ctx context.Context, samples []float32, language string) (string, error)

// Recognize implements Recognizer.
func (f Func) Recognize(ctx context.Context, samples []float32, language string) (string, error) {
	return f(ctx, samples, language)
}

// Closer is implemented by recognizers holding native resources.
type Closer interface {
	Close() error
}

// New builds the recognizer selected by cfg.Backend.
func New(cfg config.Config, httpClient *http.Client, store *cache.Store, log *zap.SugaredLogger) (Recognizer, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "http":
		c, err := NewClient(cfg, httpClient, store, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "whisper":
		w, err := NewWhisper(cfg.ModelPath, cfg.SamplingRate, log)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("asr: unknown backend %q (supported: http, whisper)", cfg.Backend)
	}
}

func autoLanguage(lang string) bool {
	l := strings.TrimSpace(strings.ToLower(lang))
	return l == "" || l == "auto"
}
