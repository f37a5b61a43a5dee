package config

import (
	"flag"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FlagValues collects config overrides from the command line. Only flags the
// user actually passed are applied, so a flag left at its zero value never
// clobbers the file.
type FlagValues struct {
	set     map[string]func(*Config)
	Output  string
	File    string
	Config  string
	Devices bool
	Init    bool
}

type stringFlag struct {
	fv    *FlagValues
	name  string
	value string
	apply func(*Config, string)
}

func (s *stringFlag) String() string { return s.value }

func (s *stringFlag) Set(v string) error {
	s.value = v
	s.fv.set[s.name] = func(c *Config) { s.apply(c, v) }
	return nil
}

type intFlag struct {
	fv    *FlagValues
	name  string
	value int
	apply func(*Config, int)
}

func (i *intFlag) String() string { return strconv.Itoa(i.value) }

func (i *intFlag) Set(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	i.value = n
	i.fv.set[i.name] = func(c *Config) { i.apply(c, n) }
	return nil
}

type floatFlag struct {
	fv    *FlagValues
	name  string
	value float64
	apply func(*Config, float64)
}

func (f *floatFlag) String() string { return strconv.FormatFloat(f.value, 'g', -1, 64) }

func (f *floatFlag) Set(v string) error {
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return err
	}
	f.value = n
	f.fv.set[f.name] = func(c *Config) { f.apply(c, n) }
	return nil
}

type boolFlag struct {
	fv    *FlagValues
	name  string
	value bool
	apply func(*Config, bool)
}

func (b *boolFlag) String() string { return strconv.FormatBool(b.value) }

// IsBoolFlag lets "-tray" work without "=true".
func (b *boolFlag) IsBoolFlag() bool { return true }

func (b *boolFlag) Set(v string) error {
	n, err := parseBoolExt(v)
	if err != nil {
		return err
	}
	b.value = n
	b.fv.set[b.name] = func(c *Config) { b.apply(c, n) }
	return nil
}

func parseBoolExt(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean: %s", v)
}

// BindFlags registers all flags on fs and returns the collector.
func BindFlags(fs *flag.FlagSet) *FlagValues {
	fv := &FlagValues{set: make(map[string]func(*Config))}

	str := func(name, usage string, apply func(*Config, string)) {
		fs.Var(&stringFlag{fv: fv, name: name, apply: apply}, name, usage)
	}
	num := func(name, usage string, apply func(*Config, int)) {
		fs.Var(&intFlag{fv: fv, name: name, apply: apply}, name, usage)
	}
	dec := func(name, usage string, apply func(*Config, float64)) {
		fs.Var(&floatFlag{fv: fv, name: name, apply: apply}, name, usage)
	}
	boolean := func(name, usage string, apply func(*Config, bool)) {
		fs.Var(&boolFlag{fv: fv, name: name, apply: apply}, name, usage)
	}

	fs.StringVar(&fv.Config, "config", "", "path to config file (.json or .yaml)")
	fs.StringVar(&fv.File, "file", "", "transcribe an existing audio file instead of dictating")
	fs.StringVar(&fv.Output, "output", "", "output txt path for -file mode")
	fs.BoolVar(&fv.Devices, "list-devices", false, "list audio input devices and exit")
	fs.BoolVar(&fv.Init, "init-config", false, "write a default config file and exit")

	str("backend", "recognizer backend (http, whisper)", func(c *Config, v string) { c.Backend = v })
	str("api-endpoint", "speech server endpoint URL", func(c *Config, v string) { c.APIEndpoint = v })
	str("token", "authorization token", func(c *Config, v string) { c.Token = v })
	str("model", "model name sent to the speech server", func(c *Config, v string) { c.Model = v })
	str("model-path", "ggml model file for the whisper backend", func(c *Config, v string) { c.ModelPath = v })
	str("language", "language code, or auto", func(c *Config, v string) { c.Language = v })
	str("prompt", "initial prompt", func(c *Config, v string) { c.Prompt = v })
	str("text-path", "JSON path to extract text", func(c *Config, v string) { c.TextPath = v })
	str("extra-config", "extra JSON merged into the request form", func(c *Config, v string) { c.ExtraConfig = v })
	num("request-timeout", "request timeout seconds", func(c *Config, v int) { c.RequestTimeout = v })
	num("max-retry", "max retry attempts", func(c *Config, v int) { c.MaxRetry = v })
	dec("retry-base-delay", "retry base delay seconds", func(c *Config, v float64) { c.RetryBaseDelay = v })
	boolean("enable-http2", "enable HTTP/2", func(c *Config, v bool) { c.EnableHTTP2 = v })
	boolean("verify-ssl", "verify TLS certificates", func(c *Config, v bool) { c.VerifySSL = v })

	num("device", "input device index (-1 = default)", func(c *Config, v int) { c.DeviceIndex = v })
	num("sampling-rate", "sampling rate (Hz)", func(c *Config, v int) { c.SamplingRate = v })
	num("frames-per-buffer", "samples per captured frame", func(c *Config, v int) { c.FramesPerBuffer = v })

	dec("silence-duration", "seconds of silence that end an utterance", func(c *Config, v float64) { c.SilenceDuration = v })
	dec("min-segment", "minimum utterance length in seconds", func(c *Config, v float64) { c.MinSegment = v })
	dec("max-segment", "maximum utterance length in seconds (0 = unbounded)", func(c *Config, v float64) { c.MaxSegment = v })
	dec("poll-interval", "segmentation poll interval in seconds", func(c *Config, v float64) { c.PollInterval = v })
	dec("activity-threshold", "peak amplitude that counts as speech (0 = any frame)", func(c *Config, v float64) { c.ActivityThreshold = v })

	str("codecs", "upload codec (e.g. PCM_S16LE, OPUS, FLAC)", func(c *Config, v string) { c.Codecs = v })
	str("container", "upload container (e.g. WAV, OGG, FLAC)", func(c *Config, v string) { c.Container = v })
	num("bit-rate", "bit rate (kbps)", func(c *Config, v int) { c.BitRate = v })

	str("inject", "text injection (paste, none)", func(c *Config, v string) { c.Inject = v })
	boolean("trailing-space", "append a space to injected text", func(c *Config, v bool) { c.TrailingSpace = v })
	boolean("hotkeys", "register global hotkeys", func(c *Config, v bool) { c.Hotkeys = v })
	str("toggle-key", "start/stop hotkey", func(c *Config, v string) { c.ToggleKey = v })
	str("pause-key", "pause/resume hotkey", func(c *Config, v string) { c.PauseKey = v })
	boolean("tray", "show the system tray icon", func(c *Config, v bool) { c.Tray = v })
	boolean("notification", "enable notifications", func(c *Config, v bool) { c.Notification = v })
	boolean("auto-start", "start recording immediately", func(c *Config, v bool) { c.AutoStart = v })

	str("cache-dir", "cache directory", func(c *Config, v string) { c.CacheDir = v })
	boolean("keep-cache", "keep uploaded segments and responses", func(c *Config, v bool) { c.KeepCache = v })
	str("metrics-addr", "serve Prometheus metrics on this address", func(c *Config, v string) { c.MetricsAddr = v })
	boolean("debug", "enable debug logging", func(c *Config, v bool) { c.Debug = v })

	return fv
}

// ApplyFlags applies the flags present on the command line to cfg.
func ApplyFlags(cfg *Config, fv *FlagValues) {
	for _, name := range fv.Names() {
		fv.set[name](cfg)
	}
}

// Names lists the config flags that were set, sorted.
func (fv *FlagValues) Names() []string {
	names := make([]string, 0, len(fv.set))
	for name := range fv.set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AnySet reports whether any config flag was explicitly set by the user.
func (fv *FlagValues) AnySet() bool {
	return len(fv.set) > 0 || fv.File != "" || fv.Output != ""
}
