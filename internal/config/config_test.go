package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	seg := cfg.Segment()
	if seg.SilenceDuration != 500*time.Millisecond {
		t.Fatalf("silence = %s", seg.SilenceDuration)
	}
	if seg.PollInterval != 100*time.Millisecond {
		t.Fatalf("poll interval = %s", seg.PollInterval)
	}
	if seg.MinSamples() != 16000 {
		t.Fatalf("min samples = %d, want 16000", seg.MinSamples())
	}
}

func TestLoadJSONAndYAML(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(jsonPath, []byte(`{"LANGUAGE":"de","SILENCE_DURATION":0.8,"SAMPLING_RATE":8000}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(jsonPath)
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	if cfg.Language != "de" || cfg.SilenceDuration != 0.8 || cfg.SamplingRate != 8000 {
		t.Fatalf("unexpected json config: %+v", cfg)
	}
	if cfg.FramesPerBuffer != 1024 {
		t.Fatalf("unset keys must keep defaults, FRAMES_PER_BUFFER = %d", cfg.FramesPerBuffer)
	}

	yamlPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(yamlPath, []byte("LANGUAGE: fr\nMIN_SEGMENT: 0.5\nTRAY: false\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(yamlPath)
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	if cfg.Language != "fr" || cfg.MinSegment != 0.5 || cfg.Tray {
		t.Fatalf("unexpected yaml config: %+v", cfg)
	}
}

func TestSaveDefaultRoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yml"} {
		path := filepath.Join(t.TempDir(), name)
		if err := SaveDefault(path); err != nil {
			t.Fatalf("SaveDefault(%s): %v", name, err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", name, err)
		}
		if cfg != DefaultConfig() {
			t.Fatalf("%s: reloaded config differs from defaults", name)
		}
	}
}

func TestResolveWithoutConfig(t *testing.T) {
	wd, _ := os.Getwd()
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	if _, err := Resolve("", false); !errors.Is(err, ErrNoConfig) {
		t.Fatalf("expected ErrNoConfig, got %v", err)
	}
	if _, err := Resolve("", true); err != nil {
		t.Fatalf("flags without config file should use defaults: %v", err)
	}
	if err := SaveDefault(DefaultPath); err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve("", false); err != nil {
		t.Fatalf("existing config.json should load: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Backend = "cloud" }},
		{"endpoint", func(c *Config) { c.APIEndpoint = "" }},
		{"whisper without model", func(c *Config) { c.Backend = "whisper"; c.ModelPath = "" }},
		{"rate", func(c *Config) { c.SamplingRate = 0 }},
		{"frames", func(c *Config) { c.FramesPerBuffer = 0 }},
		{"poll", func(c *Config) { c.PollInterval = 0 }},
		{"silence", func(c *Config) { c.SilenceDuration = -1 }},
		{"threshold", func(c *Config) { c.ActivityThreshold = 2 }},
		{"max below min", func(c *Config) { c.MaxSegment = 0.2 }},
		{"codec", func(c *Config) { c.Codecs = "mystery" }},
		{"container", func(c *Config) { c.Container = "avi" }},
		{"inject", func(c *Config) { c.Inject = "telepathy" }},
		{"retry", func(c *Config) { c.MaxRetry = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := Validate(&cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestApplyFlagsOnlySetValues(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fv := BindFlags(fs)
	if err := fs.Parse([]string{"-language", "ja", "-silence-duration", "0.75", "-tray=false", "-device", "3", "-hotkeys=no"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !fv.AnySet() {
		t.Fatalf("AnySet = false")
	}

	cfg := DefaultConfig()
	cfg.Model = "from-file"
	ApplyFlags(&cfg, fv)

	if cfg.Language != "ja" || cfg.SilenceDuration != 0.75 || cfg.Tray || cfg.DeviceIndex != 3 || cfg.Hotkeys {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Model != "from-file" {
		t.Fatalf("unset flag overwrote file value: model = %q", cfg.Model)
	}
}

func TestBoolFlagWithoutValue(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fv := BindFlags(fs)
	if err := fs.Parse([]string{"-debug", "-keep-cache"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg := DefaultConfig()
	ApplyFlags(&cfg, fv)
	if !cfg.Debug || !cfg.KeepCache {
		t.Fatalf("bare bool flags not applied: debug=%v keep=%v", cfg.Debug, cfg.KeepCache)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvToken, "secret")
	t.Setenv(EnvDevice, "2")
	t.Setenv(EnvLanguage, "  ")

	cfg := DefaultConfig()
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Token != "secret" || cfg.DeviceIndex != 2 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Language != "en" {
		t.Fatalf("blank env value must be ignored, language = %q", cfg.Language)
	}

	t.Setenv(EnvDevice, "mic")
	if err := ApplyEnv(&cfg); err == nil {
		t.Fatalf("expected error for non-numeric device")
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing .env must be ignored: %v", err)
	}
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("VOICEKB_MODEL_PATH=/models/ggml-tiny.bin\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvModelPath, "")
	os.Unsetenv(EnvModelPath)
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	defer os.Unsetenv(EnvModelPath)
	if got := os.Getenv(EnvModelPath); got != "/models/ggml-tiny.bin" {
		t.Fatalf("model path = %q", got)
	}
}
