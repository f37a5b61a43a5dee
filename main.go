package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"voicekb/internal/app"
	"voicekb/internal/asr"
	"voicekb/internal/capture"
	"voicekb/internal/config"
	"voicekb/internal/logging"
)

// The tray's event loop must own the main thread on macOS.
func init() { runtime.LockOSThread() }

func usage(fs *flag.FlagSet) func() {
	return func() {
		programName := filepath.Base(os.Args[0])
		fmt.Fprintf(fs.Output(), `Usage: %s [options]

Dictates into the focused window: microphone audio is cut into utterances at
pauses, transcribed by a speech server or a local whisper model, and pasted.

Config is read from -config, else ./config.json. With neither present and no
flags given, a default config.json is written and the program exits.
Precedence: defaults < config file < .env / VOICEKB_* variables < flags.

Examples:
  %[1]s -init-config
  %[1]s -api-endpoint http://127.0.0.1:8080/inference -language en
  %[1]s -list-devices
  %[1]s -file memo.m4a -output memo.txt

Options:
`, programName)
		fs.PrintDefaults()
	}
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fv := config.BindFlags(fs)
	fs.Usage = usage(fs)
	_ = fs.Parse(os.Args[1:])

	if fv.Init {
		path := fv.Config
		if path == "" {
			path = config.DefaultPath
		}
		if err := config.SaveDefault(path); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write default config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("default config written to %s\n", path)
		return
	}

	if fv.Devices {
		if err := app.ListDevices(os.Stdout, capture.Devices); err != nil {
			fmt.Fprintf(os.Stderr, "list devices failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := config.LoadDotEnv(""); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Resolve(fv.Config, fv.AnySet())
	if errors.Is(err, config.ErrNoConfig) {
		if err := config.SaveDefault(config.DefaultPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write default config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("default config created at %s. Please edit it and re-run.\n", config.DefaultPath)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}
	config.ApplyFlags(&cfg, fv)
	if err := config.Validate(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Debug)
	defer log.Sync()
	if names := fv.Names(); len(names) > 0 {
		log.Debugw("flag overrides applied", "flags", names)
	}

	ctx := context.Background()
	if fv.File != "" {
		out, err := app.RunFile(ctx, cfg, fv.File, fv.Output, log)
		if err != nil {
			log.Errorw("file transcription failed", "file", fv.File, "error", err)
			var re *asr.RetryExhaustedError
			if errors.As(err, &re) {
				os.Exit(3)
			}
			os.Exit(1)
		}
		log.Infow("transcript written", "path", out)
		return
	}

	if err := app.RunDictation(ctx, cfg, log); err != nil {
		log.Errorw("dictation failed", "error", err)
		os.Exit(1)
	}
}
