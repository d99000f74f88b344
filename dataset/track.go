// Package dataset loads reference-separation tracks from disk and writes
// separated estimates back out. A track is a directory holding mixture.wav
// plus one WAV stem per reference source, all at the same sample rate and
// length.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/soundprobe/wienersep/logging"
)

// MixtureFile is the file name of a track's mixture inside its directory
const MixtureFile = "mixture.wav"

// Stem is a named multichannel signal, audio indexed [channel][sample]
type Stem struct {
	Name  string
	Audio [][]float64
}

// Track is one mixture with its reference sources. Sources are ordered by
// stem file name, so a track loads identically every time.
type Track struct {
	Name       string
	SampleRate int
	Mixture    [][]float64
	Sources    []Stem
}

// Tracks returns the directories of every track under root/subset, sorted by
// name. A directory counts as a track when it contains mixture.wav.
func Tracks(root, subset string) ([]string, error) {
	dir := filepath.Join(root, subset)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dataset subset %s: %w", dir, err)
	}

	var tracks []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		trackDir := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(trackDir, MixtureFile)); err != nil {
			logging.Warn("skipping directory without mixture", logging.Fields{"dir": trackDir})
			continue
		}
		tracks = append(tracks, trackDir)
	}

	sort.Strings(tracks)
	return tracks, nil
}

// LoadTrack loads a track directory: the mixture and every other WAV file as
// a reference source. All files must share sample rate, channel count and
// sample count.
func LoadTrack(dir string) (*Track, error) {
	mixture, rate, err := readWAV(filepath.Join(dir, MixtureFile))
	if err != nil {
		return nil, fmt.Errorf("loading mixture: %w", err)
	}

	samples := len(mixture[0])

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading track dir %s: %w", dir, err)
	}

	var sources []Stem
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == MixtureFile || !strings.HasSuffix(name, ".wav") {
			continue
		}

		audio, stemRate, err := readWAV(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading stem %s: %w", name, err)
		}

		stemName := strings.TrimSuffix(name, ".wav")
		if stemRate != rate {
			return nil, fmt.Errorf("stem %q sample rate %d doesn't match mixture rate %d", stemName, stemRate, rate)
		}
		if len(audio) != len(mixture) {
			return nil, fmt.Errorf("stem %q has %d channels, mixture has %d", stemName, len(audio), len(mixture))
		}
		if len(audio[0]) != samples {
			return nil, fmt.Errorf("stem %q has %d samples, mixture has %d", stemName, len(audio[0]), samples)
		}

		sources = append(sources, Stem{Name: stemName, Audio: audio})
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("track %s has no source stems", dir)
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })

	return &Track{
		Name:       filepath.Base(dir),
		SampleRate: rate,
		Mixture:    mixture,
		Sources:    sources,
	}, nil
}

// SaveEstimates writes one WAV per estimate under dir/track/
func SaveEstimates(dir, track string, rate int, estimates []Stem) error {
	out := filepath.Join(dir, track)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("creating estimates dir: %w", err)
	}

	for _, est := range estimates {
		path := filepath.Join(out, est.Name+".wav")
		if err := writeWAV(path, rate, est.Audio); err != nil {
			return fmt.Errorf("writing estimate %q: %w", est.Name, err)
		}
	}

	return nil
}
