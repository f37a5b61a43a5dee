package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Options selects the output encoding.
type Options struct {
	Codec      string
	SampleRate int
	BitRate    int // kbps
	Binary     string
}

// Available reports whether the ffmpeg binary can be found on PATH.
func Available(binary string) bool {
	if binary == "" {
		binary = "ffmpeg"
	}
	_, err := exec.LookPath(binary)
	return err == nil
}

// Convert re-encodes inPath into outPath as mono audio with the requested codec.
func Convert(ctx context.Context, opts Options, inPath, outPath string, log *zap.SugaredLogger) error {
	args, err := Args(opts, inPath, outPath)
	if err != nil {
		return err
	}
	bin := opts.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	if log != nil {
		log.Debugw("executing ffmpeg", "args", strings.Join(args, " "))
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w\n%s", err, stderr.String())
	}
	return nil
}

// Args builds the ffmpeg command line for Convert.
func Args(opts Options, inPath, outPath string) ([]string, error) {
	ffCodec, hasBitrate := codecFor(opts.Codec)
	if ffCodec == "" {
		return nil, fmt.Errorf("unsupported codec: %s", opts.Codec)
	}
	args := []string{"-y", "-i", inPath, "-ac", "1"}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	args = append(args, "-c:a", ffCodec)
	if hasBitrate {
		bitrate := opts.BitRate
		if bitrate <= 0 {
			bitrate = 128
		}
		args = append(args, "-b:a", fmt.Sprintf("%dk", bitrate))
	}
	return append(args, outPath), nil
}

func codecFor(key string) (string, bool) {
	k := strings.ToLower(key)
	switch k {
	case "opus", "libopus":
		return "libopus", true
	case "aac":
		return "aac", true
	case "mp3":
		return "libmp3lame", true
	case "flac":
		return "flac", false
	case "vorbis", "libvorbis":
		return "libvorbis", true
	case "pcm":
		return "pcm_s16le", false
	case "pcm_s16le", "pcm_s16be", "pcm_f32le", "pcm_f32be":
		return k, false
	default:
		return "", false
	}
}
