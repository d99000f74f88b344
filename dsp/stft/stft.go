package stft

import (
	"fmt"

	"github.com/soundprobe/wienersep/dsp/window"
	"github.com/soundprobe/wienersep/logging"
)

// DefaultWindowSize is the analysis window length in samples
const DefaultWindowSize = 2048

// Spectrogram holds the one-sided complex spectra of a multichannel signal.
// Data is indexed [channel][bin][frame].
type Spectrogram struct {
	Data       [][][]complex128
	Channels   int
	Bins       int // windowSize/2 + 1
	Frames     int
	WindowSize int
	HopSize    int
	Samples    int // sample count of the signal that produced this spectrogram
}

// STFT converts multichannel signals between the time domain and a one-sided
// time-frequency representation. The transform is invertible: frames are
// Hann-windowed at half-window hops and the inverse divides the overlap-added
// frames by the summed squared window envelope.
type STFT struct {
	windowSize int
	hopSize    int
	win        *window.Hann
	fft        *FFT
	logger     logging.Logger
}

// New creates an STFT calculator for the given window size. Window size must
// be even and positive; hop is fixed at half the window.
func New(windowSize int) (*STFT, error) {
	if windowSize <= 0 || windowSize%2 != 0 {
		return nil, fmt.Errorf("window size must be positive and even, got %d", windowSize)
	}

	return &STFT{
		windowSize: windowSize,
		hopSize:    windowSize / 2,
		win:        window.NewHann(windowSize, true),
		fft:        NewFFT(),
		logger: logging.WithFields(logging.Fields{
			"component":   "stft",
			"window_size": windowSize,
		}),
	}, nil
}

// WindowSize returns the analysis window length in samples
func (s *STFT) WindowSize() int {
	return s.windowSize
}

// Forward computes the spectrogram of a multichannel signal given as
// [channel][sample]. Channels are transformed independently. The signal is
// zero-extended by half a window at both ends and padded to a whole number of
// frames, so every input sample is fully covered by analysis windows.
func (s *STFT) Forward(signal [][]float64) (*Spectrogram, error) {
	channels := len(signal)
	if channels == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	samples := len(signal[0])
	if samples == 0 {
		return nil, fmt.Errorf("zero-length signal")
	}
	for ch := 1; ch < channels; ch++ {
		if len(signal[ch]) != samples {
			return nil, fmt.Errorf("channel %d has %d samples, want %d", ch, len(signal[ch]), samples)
		}
	}

	pad := s.windowSize / 2
	extended := samples + 2*pad
	frames := (extended-s.windowSize)/s.hopSize + 1
	if (frames-1)*s.hopSize+s.windowSize < extended {
		frames++
	}
	padded := (frames-1)*s.hopSize + s.windowSize
	bins := s.windowSize/2 + 1

	data := make([][][]complex128, channels)
	frameBuffer := make([]float64, s.windowSize)
	padBuffer := make([]float64, padded)

	for ch := 0; ch < channels; ch++ {
		data[ch] = make([][]complex128, bins)
		for f := 0; f < bins; f++ {
			data[ch][f] = make([]complex128, frames)
		}

		for i := range padBuffer {
			padBuffer[i] = 0
		}
		copy(padBuffer[pad:], signal[ch])

		for t := 0; t < frames; t++ {
			start := t * s.hopSize
			copy(frameBuffer, padBuffer[start:start+s.windowSize])
			if err := s.win.ApplyInPlace(frameBuffer); err != nil {
				return nil, fmt.Errorf("windowing frame %d: %w", t, err)
			}

			spectrum := s.fft.Compute(frameBuffer)
			for f := 0; f < bins; f++ {
				data[ch][f][t] = spectrum[f]
			}
		}
	}

	s.logger.Debug("forward transform complete", logging.Fields{
		"channels": channels,
		"bins":     bins,
		"frames":   frames,
	})

	return &Spectrogram{
		Data:       data,
		Channels:   channels,
		Bins:       bins,
		Frames:     frames,
		WindowSize: s.windowSize,
		HopSize:    s.hopSize,
		Samples:    samples,
	}, nil
}

// Inverse reconstructs a multichannel time-domain signal from a spectrogram.
// The result is truncated to the sample count recorded at analysis time, so
// `Inverse(Forward(x))` returns a signal the same shape as x.
func (s *STFT) Inverse(spec *Spectrogram) ([][]float64, error) {
	if spec == nil || spec.Channels == 0 || spec.Frames == 0 {
		return nil, fmt.Errorf("empty spectrogram")
	}
	if spec.WindowSize != s.windowSize {
		return nil, fmt.Errorf("spectrogram window size %d doesn't match transform window size %d",
			spec.WindowSize, s.windowSize)
	}
	if spec.Bins != s.windowSize/2+1 {
		return nil, fmt.Errorf("spectrogram has %d bins, want %d", spec.Bins, s.windowSize/2+1)
	}

	pad := s.windowSize / 2
	padded := (spec.Frames-1)*s.hopSize + s.windowSize
	coeffs := s.win.Coefficients()

	// Summed squared window envelope, shared across channels
	envelope := make([]float64, padded)
	for t := 0; t < spec.Frames; t++ {
		start := t * s.hopSize
		for n, w := range coeffs {
			envelope[start+n] += w * w
		}
	}

	signal := make([][]float64, spec.Channels)
	full := make([]complex128, s.windowSize)

	for ch := 0; ch < spec.Channels; ch++ {
		acc := make([]float64, padded)

		for t := 0; t < spec.Frames; t++ {
			for f := 0; f < spec.Bins; f++ {
				full[f] = spec.Data[ch][f][t]
			}
			// Hermitian symmetry for the negative frequencies
			for f := 1; f < s.windowSize/2; f++ {
				v := spec.Data[ch][f][t]
				full[s.windowSize-f] = complex(real(v), -imag(v))
			}

			frame := s.fft.ComputeInverseReal(full)
			start := t * s.hopSize
			for n, w := range coeffs {
				acc[start+n] += frame[n] * w
			}
		}

		out := make([]float64, spec.Samples)
		for i := range out {
			idx := pad + i
			if idx >= len(acc) {
				break
			}
			if env := envelope[idx]; env > 0 {
				out[i] = acc[idx] / env
			}
		}
		signal[ch] = out
	}

	return signal, nil
}
