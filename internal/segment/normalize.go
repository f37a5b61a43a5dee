package segment

import "math"

// Peak returns the largest absolute sample value.
func Peak(samples []float32) float32 {
	var peak float32
	for _, v := range samples {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Normalize rescales samples in place so the peak absolute value is 1.
func Normalize(samples []float32) error {
	peak := Peak(samples)
	if peak == 0 || math.IsNaN(float64(peak)) || math.IsInf(float64(peak), 0) {
		return ErrSilentSegment
	}
	scale := 1 / peak
	for i := range samples {
		samples[i] *= scale
	}
	return nil
}
