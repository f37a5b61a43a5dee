// Package resample converts mono float32 audio between sample rates with libsoxr.
package resample

import (
	"bytes"
	"encoding/binary"
	"fmt"

	soxr "github.com/zaf/resample"
)

// Mono resamples samples from rate from to rate to. The input is clipped to
// [-1, 1] and passes through 16-bit PCM.
func Mono(samples []float32, from, to int) ([]float32, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", from, to)
	}
	if from == to || len(samples) == 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}

	in := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(in[2*i:], uint16(toInt16(s)))
	}

	var buf bytes.Buffer
	r, err := soxr.New(&buf, float64(from), float64(to), 1, soxr.I16, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	if _, err := r.Write(in); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("resample: %w", err)
	}
	// Close flushes the tail of the filter into buf.
	if err := r.Close(); err != nil {
		return nil, fmt.Errorf("resample flush: %w", err)
	}

	b := buf.Bytes()
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(b[2*i:]))) / 32768
	}
	return out, nil
}

func toInt16(v float32) int16 {
	switch {
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int16(v * 32767)
}
