// Package wiener implements an oracle multichannel Wiener filter for stereo
// source separation. Given a mixture and ground-truth reference sources, it
// estimates each source under a local-Gaussian model with a time-invariant
// spatial covariance per source, which bounds what any linear time-frequency
// separator can achieve on that track.
package wiener

import (
	"fmt"

	"github.com/soundprobe/wienersep/dsp/stft"
	"github.com/soundprobe/wienersep/logging"
)

// NumChannels is the only channel count the closed-form inverter supports
const NumChannels = 2

// AccompanimentName is the derived estimate key for the sum of all non-vocal
// source estimates
const AccompanimentName = "accompaniment"

// machineEps matches the double-precision machine epsilon used as the default
// regularization floor
const machineEps = 2.220446049250313e-16

// Config holds the separation parameters
type Config struct {
	WindowSize int     // STFT analysis window length in samples
	Eps        float64 // regularization floor added before every reciprocal
	VocalName  string  // source excluded from the accompaniment fold
}

// DefaultConfig returns the standard separation parameters
func DefaultConfig() Config {
	return Config{
		WindowSize: stft.DefaultWindowSize,
		Eps:        machineEps,
		VocalName:  "vocals",
	}
}

// Source is a named reference signal, audio indexed [channel][sample]
type Source struct {
	Name  string
	Audio [][]float64
}

// Estimate is a named separated signal, audio indexed [channel][sample]
type Estimate struct {
	Name  string
	Audio [][]float64
}

// Result holds the separated estimates in source order, with the derived
// accompaniment estimate appended last.
type Result struct {
	Estimates []Estimate
}

// ByName returns the estimate audio for a name
func (r *Result) ByName(name string) ([][]float64, bool) {
	for _, e := range r.Estimates {
		if e.Name == name {
			return e.Audio, true
		}
	}
	return nil, false
}

// Separator runs the oracle Wiener filtering pipeline for one track at a
// time. It holds no per-track state and may be reused across tracks.
type Separator struct {
	cfg    Config
	tf     *stft.STFT
	logger logging.Logger
}

// NewSeparator creates a separator with the given configuration
func NewSeparator(cfg Config) (*Separator, error) {
	if cfg.Eps <= 0 {
		return nil, fmt.Errorf("eps must be positive, got %g", cfg.Eps)
	}

	tf, err := stft.New(cfg.WindowSize)
	if err != nil {
		return nil, err
	}

	return &Separator{
		cfg: cfg,
		tf:  tf,
		logger: logging.WithFields(logging.Fields{
			"component":   "wiener_separator",
			"window_size": cfg.WindowSize,
		}),
	}, nil
}

// Separate estimates every reference source from the mixture and returns the
// estimates in source order plus the derived accompaniment. The mixture and
// all sources must be stereo with the same sample count.
func (s *Separator) Separate(mixture [][]float64, sources []Source) (*Result, error) {
	if err := validateInput(mixture, sources); err != nil {
		return nil, err
	}

	samples := len(mixture[0])
	logger := s.logger.WithFields(logging.Fields{
		"samples": samples,
		"sources": len(sources),
	})

	mixSpec, err := s.tf.Forward(mixture)
	if err != nil {
		return nil, fmt.Errorf("transforming mixture: %w", err)
	}

	// Per-source model parameters, in source order
	stats := make([]*SourceStats, 0, len(sources))
	for _, src := range sources {
		spec, err := s.tf.Forward(src.Audio)
		if err != nil {
			return nil, fmt.Errorf("transforming source %q: %w", src.Name, err)
		}

		st, err := EstimateSourceStats(src.Name, spec, s.cfg.Eps)
		if err != nil {
			return nil, err
		}
		if err := checkStats(st); err != nil {
			return nil, err
		}
		stats = append(stats, st)

		logger.Debug("estimated source statistics", logging.Fields{"source": src.Name})
	}

	mixCov := mixtureCovariance(stats, mixSpec.Bins, mixSpec.Frames)
	invMixCov := invertBins(mixCov, s.cfg.Eps)

	estimates := make([]Estimate, 0, len(sources)+1)
	for _, st := range stats {
		gain := wienerGain(st, invMixCov)
		if err := checkGain(st.Name, gain); err != nil {
			return nil, err
		}

		audio, err := s.tf.Inverse(applyGain(gain, mixSpec))
		if err != nil {
			return nil, fmt.Errorf("inverting estimate of source %q: %w", st.Name, err)
		}
		if err := checkSignal(st.Name, audio); err != nil {
			return nil, err
		}

		estimates = append(estimates, Estimate{Name: st.Name, Audio: audio})
	}

	estimates = append(estimates, Estimate{
		Name:  AccompanimentName,
		Audio: s.accompaniment(estimates, samples),
	})

	logger.Info("track separated", logging.Fields{"estimates": len(estimates)})

	return &Result{Estimates: estimates}, nil
}

// accompaniment folds all non-vocal estimates into their time-domain sum
func (s *Separator) accompaniment(estimates []Estimate, samples int) [][]float64 {
	sum := make([][]float64, NumChannels)
	for ch := range sum {
		sum[ch] = make([]float64, samples)
	}

	for _, e := range estimates {
		if e.Name == s.cfg.VocalName {
			continue
		}
		for ch := range sum {
			for i, v := range e.Audio[ch] {
				sum[ch][i] += v
			}
		}
	}

	return sum
}

// mixtureCovariance sums the per-source covariances PSD*Spatial into the
// mixture covariance tensor
func mixtureCovariance(stats []*SourceStats, bins, frames int) [][]Mat2 {
	cxx := make([][]Mat2, bins)
	for f := range cxx {
		cxx[f] = make([]Mat2, frames)
	}

	for _, st := range stats {
		for f := range cxx {
			r := st.Spatial[f]
			for t := range cxx[f] {
				p := complex(st.PSD[f][t], 0)
				for i := 0; i < NumChannels; i++ {
					for j := 0; j < NumChannels; j++ {
						cxx[f][t][i][j] += p * r[i][j]
					}
				}
			}
		}
	}

	return cxx
}

// wienerGain computes the per-bin gain (PSD*Spatial) @ invMixCov for one
// source. The gain is the MMSE linear map from mixture channels to the
// source's channels at each bin.
func wienerGain(st *SourceStats, invMixCov [][]Mat2) [][]Mat2 {
	gain := make([][]Mat2, len(invMixCov))
	for f := range invMixCov {
		gain[f] = make([]Mat2, len(invMixCov[f]))
		r := st.Spatial[f]
		for t := range invMixCov[f] {
			p := complex(st.PSD[f][t], 0)
			m := invMixCov[f][t]
			var sr Mat2
			for i := 0; i < NumChannels; i++ {
				for j := 0; j < NumChannels; j++ {
					sr[i][j] = p * r[i][j]
				}
			}
			for i := 0; i < NumChannels; i++ {
				for j := 0; j < NumChannels; j++ {
					gain[f][t][i][j] = sr[i][0]*m[0][j] + sr[i][1]*m[1][j]
				}
			}
		}
	}
	return gain
}

// applyGain multiplies the mixture spectrogram by the per-bin gain matrices,
// producing the estimate's spectrogram
func applyGain(gain [][]Mat2, mix *stft.Spectrogram) *stft.Spectrogram {
	data := make([][][]complex128, NumChannels)
	for ch := range data {
		data[ch] = make([][]complex128, mix.Bins)
		for f := range data[ch] {
			data[ch][f] = make([]complex128, mix.Frames)
		}
	}

	for f := range gain {
		for t := range gain[f] {
			g := gain[f][t]
			x0 := mix.Data[0][f][t]
			x1 := mix.Data[1][f][t]
			data[0][f][t] = g[0][0]*x0 + g[0][1]*x1
			data[1][f][t] = g[1][0]*x0 + g[1][1]*x1
		}
	}

	return &stft.Spectrogram{
		Data:       data,
		Channels:   mix.Channels,
		Bins:       mix.Bins,
		Frames:     mix.Frames,
		WindowSize: mix.WindowSize,
		HopSize:    mix.HopSize,
		Samples:    mix.Samples,
	}
}

// validateInput rejects malformed input before any statistics are computed
func validateInput(mixture [][]float64, sources []Source) error {
	if len(mixture) != NumChannels {
		return fmt.Errorf("mixture has %d channels, want %d", len(mixture), NumChannels)
	}

	samples := len(mixture[0])
	if samples == 0 {
		return fmt.Errorf("mixture is empty")
	}
	if len(mixture[1]) != samples {
		return fmt.Errorf("mixture channels have mismatched lengths (%d and %d)", samples, len(mixture[1]))
	}

	if len(sources) == 0 {
		return fmt.Errorf("no reference sources")
	}

	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if src.Name == "" {
			return fmt.Errorf("source with empty name")
		}
		if src.Name == AccompanimentName {
			return fmt.Errorf("source name %q is reserved", AccompanimentName)
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = true

		if len(src.Audio) != NumChannels {
			return fmt.Errorf("source %q has %d channels, want %d", src.Name, len(src.Audio), NumChannels)
		}
		for ch := range src.Audio {
			if len(src.Audio[ch]) != samples {
				return fmt.Errorf("source %q channel %d has %d samples, mixture has %d",
					src.Name, ch, len(src.Audio[ch]), samples)
			}
		}
	}

	return nil
}
