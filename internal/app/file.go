package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"voicekb/internal/asr"
	"voicekb/internal/audio/ffmpeg"
	"voicekb/internal/audio/resample"
	"voicekb/internal/audio/wavfile"
	"voicekb/internal/cache"
	"voicekb/internal/config"
	"voicekb/internal/logging"
)

// RunFile transcribes an existing audio file and writes the text next to
// it, or to outputPath when given. It returns the path written.
func RunFile(ctx context.Context, cfg config.Config, inputPath, outputPath string, log *zap.SugaredLogger) (string, error) {
	log = logging.OrNop(log)
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("file '%s' stat failed: %w", inputPath, err)
	}

	config.InitCacheDir(&cfg, log)
	store := cache.New(config.TempDir(&cfg), cfg.KeepCache, log)
	store.CleanupOldTempFiles()

	rec, err := asr.New(cfg, asr.NewHTTPClient(cfg), store, log)
	if err != nil {
		return "", err
	}
	if c, ok := rec.(asr.Closer); ok {
		defer c.Close()
	}

	samples, err := loadSamples(ctx, cfg, store, inputPath, log)
	if err != nil {
		return "", err
	}
	log.Infow("transcribing file", "path", inputPath, "samples", len(samples))

	text, err := rec.Recognize(ctx, samples, cfg.Language)
	if err != nil {
		return "", err
	}

	outPath := outputPath
	if outPath == "" {
		outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".txt"
	}
	if err := os.WriteFile(outPath, []byte(strings.TrimSpace(text)), 0644); err != nil {
		return "", err
	}
	return outPath, nil
}

// loadSamples decodes WAV input directly, resampling it when its rate differs,
// and converts everything else with ffmpeg first.
func loadSamples(ctx context.Context, cfg config.Config, store *cache.Store, path string, log *zap.SugaredLogger) ([]float32, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		samples, rate, err := wavfile.Read(path)
		if err == nil {
			if rate != cfg.SamplingRate {
				log.Debugw("resampling wav", "path", path, "rate", rate, "want", cfg.SamplingRate)
				return resample.Mono(samples, rate, cfg.SamplingRate)
			}
			return samples, nil
		}
		log.Debugw("wav decode failed, converting with ffmpeg", "path", path, "error", err)
	}

	tmp := store.TempPath("wav")
	defer os.Remove(tmp)
	opts := ffmpeg.Options{Codec: "pcm_s16le", SampleRate: cfg.SamplingRate}
	if err := ffmpeg.Convert(ctx, opts, path, tmp, log); err != nil {
		return nil, err
	}
	samples, _, err := wavfile.Read(tmp)
	return samples, err
}
