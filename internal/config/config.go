package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"voicekb/internal/segment"
)

// DefaultPath is looked up in the working directory when -config is absent.
const DefaultPath = "config.json"

// ErrNoConfig is returned by Resolve when no config file exists and no flag
// was given; main writes a default file and exits.
var ErrNoConfig = errors.New("no config file found")

// Config holds configurable parameters.
type Config struct {
	// Recognition
	Backend        string  `json:"BACKEND" yaml:"BACKEND"`
	APIEndpoint    string  `json:"API_ENDPOINT" yaml:"API_ENDPOINT"`
	Token          string  `json:"TOKEN" yaml:"TOKEN"`
	Model          string  `json:"MODEL" yaml:"MODEL"`
	ModelPath      string  `json:"MODEL_PATH" yaml:"MODEL_PATH"`
	Language       string  `json:"LANGUAGE" yaml:"LANGUAGE"`
	Prompt         string  `json:"PROMPT" yaml:"PROMPT"`
	TextPath       string  `json:"TEXT_PATH" yaml:"TEXT_PATH"`
	ExtraConfig    string  `json:"EXTRA_CONFIG" yaml:"EXTRA_CONFIG"`
	RequestTimeout int     `json:"REQUEST_TIMEOUT" yaml:"REQUEST_TIMEOUT"`
	MaxRetry       int     `json:"MAX_RETRY" yaml:"MAX_RETRY"`
	RetryBaseDelay float64 `json:"RETRY_BASE_DELAY" yaml:"RETRY_BASE_DELAY"`
	EnableHTTP2    bool    `json:"ENABLE_HTTP2" yaml:"ENABLE_HTTP2"`
	VerifySSL      bool    `json:"VERIFY_SSL" yaml:"VERIFY_SSL"`

	// Capture
	DeviceIndex     int `json:"DEVICE_INDEX" yaml:"DEVICE_INDEX"`
	SamplingRate    int `json:"SAMPLING_RATE" yaml:"SAMPLING_RATE"`
	FramesPerBuffer int `json:"FRAMES_PER_BUFFER" yaml:"FRAMES_PER_BUFFER"`

	// Segmentation, durations in seconds
	SilenceDuration   float64 `json:"SILENCE_DURATION" yaml:"SILENCE_DURATION"`
	MinSegment        float64 `json:"MIN_SEGMENT" yaml:"MIN_SEGMENT"`
	MaxSegment        float64 `json:"MAX_SEGMENT" yaml:"MAX_SEGMENT"`
	PollInterval      float64 `json:"POLL_INTERVAL" yaml:"POLL_INTERVAL"`
	ActivityThreshold float64 `json:"ACTIVITY_THRESHOLD" yaml:"ACTIVITY_THRESHOLD"`

	// Upload encoding
	Codecs    string `json:"CODECS" yaml:"CODECS"`
	Container string `json:"CONTAINER" yaml:"CONTAINER"`
	BitRate   int    `json:"BIT_RATE" yaml:"BIT_RATE"`

	// Desktop integration
	Inject        string `json:"INJECT" yaml:"INJECT"`
	TrailingSpace bool   `json:"TRAILING_SPACE" yaml:"TRAILING_SPACE"`
	Hotkeys       bool   `json:"HOTKEYS" yaml:"HOTKEYS"`
	ToggleKey     string `json:"TOGGLE_KEY" yaml:"TOGGLE_KEY"`
	PauseKey      string `json:"PAUSE_KEY" yaml:"PAUSE_KEY"`
	Tray          bool   `json:"TRAY" yaml:"TRAY"`
	Notification  bool   `json:"NOTIFICATION" yaml:"NOTIFICATION"`
	AutoStart     bool   `json:"AUTO_START" yaml:"AUTO_START"`

	CacheDir    string `json:"CACHE_DIR" yaml:"CACHE_DIR"`
	KeepCache   bool   `json:"KEEP_CACHE" yaml:"KEEP_CACHE"`
	MetricsAddr string `json:"METRICS_ADDR" yaml:"METRICS_ADDR"`
	Debug       bool   `json:"DEBUG" yaml:"DEBUG"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Backend:           "http",
		APIEndpoint:       "http://127.0.0.1:8080/inference",
		Model:             "tiny",
		Language:          "en",
		TextPath:          "text",
		RequestTimeout:    30,
		MaxRetry:          3,
		RetryBaseDelay:    0.5,
		EnableHTTP2:       false,
		VerifySSL:         true,
		DeviceIndex:       -1,
		SamplingRate:      16000,
		FramesPerBuffer:   1024,
		SilenceDuration:   0.5,
		MinSegment:        1.0,
		MaxSegment:        30,
		PollInterval:      0.1,
		ActivityThreshold: 0.01,
		Codecs:            "pcm_s16le",
		Container:         "wav",
		BitRate:           128,
		Inject:            "paste",
		TrailingSpace:     true,
		Hotkeys:           true,
		ToggleKey:         "alt+q",
		PauseKey:          "alt+s",
		Tray:              true,
		Notification:      false,
	}
}

// Load loads config from a JSON or YAML file, chosen by extension. An empty
// path yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// SaveDefault writes a default config to path, JSON unless the extension says YAML.
func SaveDefault(path string) error {
	cfg := DefaultConfig()
	var (
		b   []byte
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(cfg)
	default:
		b, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Resolve picks the config source the way the CLI always has: an explicit
// path, else ./config.json, else defaults when the user passed flags.
func Resolve(explicit string, anyFlag bool) (Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return Load(DefaultPath)
	} else if !os.IsNotExist(err) {
		return DefaultConfig(), err
	}
	if !anyFlag {
		return DefaultConfig(), ErrNoConfig
	}
	return DefaultConfig(), nil
}

var (
	allowedBackends = map[string]bool{"http": true, "whisper": true}
	allowedInject   = map[string]bool{"paste": true, "none": true}
)

// Validate verifies config fields and returns an error if any value is invalid.
func Validate(cfg *Config) error {
	if !allowedBackends[strings.ToLower(cfg.Backend)] {
		return fmt.Errorf("invalid BACKEND: %s (allowed: http, whisper)", cfg.Backend)
	}
	if strings.EqualFold(cfg.Backend, "http") && cfg.APIEndpoint == "" {
		return fmt.Errorf("API_ENDPOINT is required for the http backend")
	}
	if strings.EqualFold(cfg.Backend, "whisper") && cfg.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH is required for the whisper backend")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("invalid REQUEST_TIMEOUT: %d (must be > 0)", cfg.RequestTimeout)
	}
	if cfg.MaxRetry < 1 {
		return fmt.Errorf("invalid MAX_RETRY: %d (must be >= 1)", cfg.MaxRetry)
	}
	if cfg.RetryBaseDelay < 0 {
		return fmt.Errorf("invalid RETRY_BASE_DELAY: %v (must be >= 0)", cfg.RetryBaseDelay)
	}
	if cfg.SamplingRate <= 0 {
		return fmt.Errorf("invalid SAMPLING_RATE: %d (must be > 0)", cfg.SamplingRate)
	}
	if cfg.FramesPerBuffer <= 0 {
		return fmt.Errorf("invalid FRAMES_PER_BUFFER: %d (must be > 0)", cfg.FramesPerBuffer)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("invalid POLL_INTERVAL: %v (must be > 0)", cfg.PollInterval)
	}
	if err := cfg.Segment().Validate(); err != nil {
		return err
	}
	if cfg.BitRate <= 0 {
		return fmt.Errorf("invalid BIT_RATE: %d (must be > 0)", cfg.BitRate)
	}
	if !allowedCodecs[strings.ToLower(cfg.Codecs)] {
		return fmt.Errorf("invalid CODECS: %s", cfg.Codecs)
	}
	if !allowedContainers[strings.ToLower(cfg.Container)] {
		return fmt.Errorf("invalid CONTAINER: %s", cfg.Container)
	}
	if !allowedInject[strings.ToLower(cfg.Inject)] {
		return fmt.Errorf("invalid INJECT: %s (allowed: paste, none)", cfg.Inject)
	}
	return nil
}

var allowedCodecs = map[string]bool{
	"opus": true, "libopus": true, "aac": true, "mp3": true, "flac": true,
	"vorbis": true, "libvorbis": true, "pcm": true,
	"pcm_s16le": true, "pcm_s16be": true, "pcm_f32le": true, "pcm_f32be": true,
}

var allowedContainers = map[string]bool{
	"wav": true, "ogg": true, "oga": true, "opus": true, "mp3": true,
	"flac": true, "m4a": true, "aac": true, "webm": true,
}

// Segment converts the segmentation keys into a segment.Config.
func (c Config) Segment() segment.Config {
	return segment.Config{
		SampleRate:        c.SamplingRate,
		SilenceDuration:   seconds(c.SilenceDuration),
		MinSegment:        seconds(c.MinSegment),
		MaxSegment:        seconds(c.MaxSegment),
		PollInterval:      seconds(c.PollInterval),
		Language:          c.Language,
		ActivityThreshold: float32(c.ActivityThreshold),
	}
}

// NeedsConversion reports whether segments must go through ffmpeg before upload.
func (c Config) NeedsConversion() bool {
	return ContainerExt(c.Container) != "wav"
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// InitCacheDir validates/creates the configured cache directory.
// It mutates cfg.CacheDir to an absolute path or clears it on failure.
func InitCacheDir(cfg *Config, log *zap.SugaredLogger) {
	if cfg.CacheDir == "" {
		return
	}
	abs, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		log.Warnw("cache dir path invalid, falling back to cwd", "dir", cfg.CacheDir, "error", err)
		cfg.CacheDir = ""
		return
	}
	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		log.Warnw("cache dir is not a directory, falling back to cwd", "dir", abs)
		cfg.CacheDir = ""
	case err == nil:
		cfg.CacheDir = abs
		log.Infow("using existing cache dir", "dir", abs)
	case os.IsNotExist(err):
		if err := os.MkdirAll(abs, 0755); err != nil {
			log.Warnw("cannot create cache dir, falling back to cwd", "dir", abs, "error", err)
			cfg.CacheDir = ""
			return
		}
		cfg.CacheDir = abs
		log.Infow("created cache dir", "dir", abs)
	default:
		log.Warnw("cannot access cache dir, falling back to cwd", "dir", abs, "error", err)
		cfg.CacheDir = ""
	}
}

// TempDir returns the directory to use for temporary files.
func TempDir(cfg *Config) string {
	if cfg.CacheDir != "" {
		return cfg.CacheDir
	}
	cwd, _ := os.Getwd()
	return cwd
}

// ContainerExt maps container names to file extensions (lowercase).
func ContainerExt(container string) string {
	c := strings.ToLower(strings.TrimSpace(container))
	if c == "" {
		return "wav"
	}
	return c
}
