// Package wavfile converts between float32 sample slices and PCM WAV files.
package wavfile

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitDepth = 16

// Write encodes mono samples in [-1, 1] as 16-bit PCM. Values outside the
// range are clipped.
func Write(path string, samples []float32, rate int) error {
	if rate <= 0 {
		return fmt.Errorf("wavfile: sample rate must be > 0, got %d", rate)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav failed: %w", err)
	}

	enc := wav.NewEncoder(file, rate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	for i, v := range samples {
		buf.Data[i] = toInt16(v)
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("wav write failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("wav close failed: %w", err)
	}
	return file.Close()
}

func toInt16(v float32) int {
	switch {
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int(math.Round(float64(v) * math.MaxInt16))
}

// Read decodes a PCM WAV file into mono float32 samples in [-1, 1].
// Multi-channel files are averaged down to one channel.
func Read(path string) ([]float32, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("wavfile: not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("wavfile: decode: %w", err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = bitDepth
	}
	full := float64(int64(1) << (depth - 1))
	if depth == 8 {
		// 8-bit WAV is unsigned.
		full = 128
	}

	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := float64(buf.Data[i*channels+c])
			if depth == 8 {
				v -= 128
			}
			sum += v
		}
		out[i] = float32(sum / float64(channels) / full)
	}
	return out, int(dec.SampleRate), nil
}
