// Package eval scores separated estimates against their reference sources
// with signal-to-distortion ratios, and writes per-track score files.
package eval

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// eps floors energy denominators so silent references and perfect estimates
// stay finite
const eps = 2.220446049250313e-16

// SDR returns the signal-to-distortion ratio in dB between a reference and an
// estimate, both indexed [channel][sample], computed over the whole signal.
func SDR(reference, estimate [][]float64) float64 {
	refEnergy := 0.0
	errEnergy := 0.0

	for ch := range reference {
		ref := reference[ch]
		est := estimate[ch]
		refEnergy += floats.Dot(ref, ref)
		for i := range ref {
			d := ref[i] - est[i]
			errEnergy += d * d
		}
	}

	return 10 * math.Log10((eps+refEnergy)/(eps+errEnergy))
}

// FramewiseSDR splits the signals into non-overlapping frames of frameLen
// samples and returns the SDR of each frame where the reference carries
// energy. Silent reference frames are skipped, matching the usual evaluation
// convention.
func FramewiseSDR(reference, estimate [][]float64, frameLen int) []float64 {
	if frameLen <= 0 || len(reference) == 0 {
		return nil
	}

	samples := len(reference[0])
	var sdrs []float64

	for start := 0; start+frameLen <= samples; start += frameLen {
		refEnergy := 0.0
		errEnergy := 0.0
		for ch := range reference {
			for i := start; i < start+frameLen; i++ {
				r := reference[ch][i]
				d := r - estimate[ch][i]
				refEnergy += r * r
				errEnergy += d * d
			}
		}

		if refEnergy < 1e-12 {
			continue
		}
		sdrs = append(sdrs, 10*math.Log10(refEnergy/(eps+errEnergy)))
	}

	return sdrs
}

// Median returns the empirical median of the values, or NaN for an empty
// slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}
