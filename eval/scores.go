package eval

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/soundprobe/wienersep/dataset"
	"github.com/soundprobe/wienersep/wiener"
)

// SourceScore holds the scores of one estimate against its reference
type SourceScore struct {
	Name      string  `json:"name"`
	SDR       float64 `json:"sdr"`
	MedianSDR float64 `json:"median_sdr"`
}

// TrackScores holds every scored estimate of one track
type TrackScores struct {
	Track  string        `json:"track"`
	Scores []SourceScore `json:"scores"`
}

// Evaluate scores every estimate that has a reference in the track. The
// accompaniment estimate is scored against the sum of all non-vocal reference
// stems. Framewise SDRs use one-second frames at the track's sample rate.
func Evaluate(track *dataset.Track, estimates []dataset.Stem, vocalName string) *TrackScores {
	scores := &TrackScores{Track: track.Name}

	for _, est := range estimates {
		reference, ok := referenceFor(track, est.Name, vocalName)
		if !ok {
			continue
		}

		overall := SDR(reference, est.Audio)
		median := Median(FramewiseSDR(reference, est.Audio, track.SampleRate))
		if math.IsNaN(median) {
			median = overall
		}

		scores.Scores = append(scores.Scores, SourceScore{
			Name:      est.Name,
			SDR:       overall,
			MedianSDR: median,
		})
	}

	return scores
}

// referenceFor resolves the ground-truth signal an estimate is scored against
func referenceFor(track *dataset.Track, name, vocalName string) ([][]float64, bool) {
	if name == wiener.AccompanimentName {
		return accompanimentReference(track, vocalName)
	}

	for _, stem := range track.Sources {
		if stem.Name == name {
			return stem.Audio, true
		}
	}
	return nil, false
}

// accompanimentReference sums every non-vocal reference stem
func accompanimentReference(track *dataset.Track, vocalName string) ([][]float64, bool) {
	if len(track.Mixture) == 0 {
		return nil, false
	}

	sum := make([][]float64, len(track.Mixture))
	for ch := range sum {
		sum[ch] = make([]float64, len(track.Mixture[ch]))
	}

	found := false
	for _, stem := range track.Sources {
		if stem.Name == vocalName {
			continue
		}
		found = true
		for ch := range sum {
			for i, v := range stem.Audio[ch] {
				sum[ch][i] += v
			}
		}
	}

	return sum, found
}

// WriteScores writes the track's scores as <track>.json under dir
func WriteScores(dir string, scores *TrackScores) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating eval dir: %w", err)
	}

	data, err := json.MarshalIndent(scores, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding scores: %w", err)
	}

	path := filepath.Join(dir, scores.Track+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing scores: %w", err)
	}

	return nil
}
