package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file values. Secrets such as the token
// are usually kept here rather than in config.json.
const (
	EnvAPIEndpoint = "VOICEKB_API_ENDPOINT"
	EnvToken       = "VOICEKB_TOKEN"
	EnvLanguage    = "VOICEKB_LANGUAGE"
	EnvModelPath   = "VOICEKB_MODEL_PATH"
	EnvDevice      = "VOICEKB_DEVICE"
)

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is fine.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with any VOICEKB_* variables present.
func ApplyEnv(cfg *Config) error {
	if v, ok := lookup(EnvAPIEndpoint); ok {
		cfg.APIEndpoint = v
	}
	if v, ok := lookup(EnvToken); ok {
		cfg.Token = v
	}
	if v, ok := lookup(EnvLanguage); ok {
		cfg.Language = v
	}
	if v, ok := lookup(EnvModelPath); ok {
		cfg.ModelPath = v
	}
	if v, ok := lookup(EnvDevice); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %q", EnvDevice, v)
		}
		cfg.DeviceIndex = n
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
