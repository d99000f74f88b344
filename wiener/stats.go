package wiener

import (
	"fmt"
	"math/cmplx"

	"github.com/soundprobe/wienersep/dsp/stft"
)

// SourceStats holds the local-Gaussian model parameters estimated for one
// source: a power spectral density per time-frequency bin and a spatial
// covariance matrix per frequency, assumed constant over time.
type SourceStats struct {
	Name    string
	PSD     [][]float64 // [bin][frame], real and non-negative
	Spatial []Mat2      // [bin], Hermitian positive-definite after regularization
}

// EstimateSourceStats estimates the PSD and spatial covariance of a source
// from its spectrogram. The first PSD estimate is the naive channel average;
// the spatial covariance is the time average of the instantaneous covariance
// normalized by that PSD. A second pass re-estimates the PSD through the
// inverted spatial model, which improves the estimate when the channels are
// correlated. eps is added before every reciprocal.
func EstimateSourceStats(name string, spec *stft.Spectrogram, eps float64) (*SourceStats, error) {
	if spec.Channels != NumChannels {
		return nil, fmt.Errorf("source %q: spectrogram has %d channels, want %d", name, spec.Channels, NumChannels)
	}
	if spec.Frames == 0 {
		return nil, fmt.Errorf("source %q: empty spectrogram", name)
	}

	bins, frames := spec.Bins, spec.Frames
	psd := make([][]float64, bins)
	spatial := make([]Mat2, bins)
	obs := make([]Mat2, frames)

	for f := 0; f < bins; f++ {
		psd[f] = make([]float64, frames)

		// Instantaneous covariance and naive PSD, with the spatial
		// covariance accumulated as the PSD-normalized time average
		var r Mat2
		for t := 0; t < frames; t++ {
			y0 := spec.Data[0][f][t]
			y1 := spec.Data[1][f][t]
			o := Mat2{
				{y0 * cmplx.Conj(y0), y0 * cmplx.Conj(y1)},
				{y1 * cmplx.Conj(y0), y1 * cmplx.Conj(y1)},
			}
			obs[t] = o

			p := (real(o[0][0]) + real(o[1][1])) / NumChannels
			psd[f][t] = p

			w := complex(1/(eps+p), 0)
			for i := 0; i < NumChannels; i++ {
				for j := 0; j < NumChannels; j++ {
					r[i][j] += o[i][j] * w
				}
			}
		}

		invFrames := complex(1/float64(frames), 0)
		for i := 0; i < NumChannels; i++ {
			for j := 0; j < NumChannels; j++ {
				r[i][j] *= invFrames
			}
		}

		// Rescale so the trace equals the channel count, then add eps on the
		// diagonal so the matrix stays well conditioned for inversion
		scale := complex(NumChannels, 0) / (complex(eps, 0) + r[0][0] + r[1][1])
		for i := 0; i < NumChannels; i++ {
			for j := 0; j < NumChannels; j++ {
				r[i][j] *= scale
			}
		}
		r[0][0] += complex(eps, 0)
		r[1][1] += complex(eps, 0)
		spatial[f] = r

		// Refine the PSD through the inverted spatial model
		rinv := Invert(r, eps)
		for t := 0; t < frames; t++ {
			o := obs[t]
			v := rinv[0][0]*o[0][0] + rinv[0][1]*o[1][0] +
				rinv[1][0]*o[0][1] + rinv[1][1]*o[1][1]
			psd[f][t] = real(v) / NumChannels
		}
	}

	return &SourceStats{
		Name:    name,
		PSD:     psd,
		Spatial: spatial,
	}, nil
}
