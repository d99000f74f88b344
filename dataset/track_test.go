package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func stereoSine(samples int, freq float64) [][]float64 {
	out := make([][]float64, 2)
	for ch := range out {
		out[ch] = make([]float64, samples)
		for i := range out[ch] {
			out[ch][i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/8000)
		}
	}
	return out
}

func TestWAVRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wav")
	audio := stereoSine(4000, 440)

	if err := writeWAV(path, 8000, audio); err != nil {
		t.Fatalf("writeWAV() error = %v", err)
	}

	restored, rate, err := readWAV(path)
	if err != nil {
		t.Fatalf("readWAV() error = %v", err)
	}

	if rate != 8000 {
		t.Errorf("sample rate = %d, want 8000", rate)
	}
	if len(restored) != 2 {
		t.Fatalf("restored %d channels, want 2", len(restored))
	}
	for ch := range restored {
		if len(restored[ch]) != 4000 {
			t.Fatalf("channel %d has %d samples, want 4000", ch, len(restored[ch]))
		}
		for i := range restored[ch] {
			// 16-bit quantization allows ~1/32768 per sample
			if diff := math.Abs(restored[ch][i] - audio[ch][i]); diff > 1.0/16384 {
				t.Fatalf("channel %d sample %d differs by %g", ch, i, diff)
			}
		}
	}
}

func TestWriteWAVValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	if err := writeWAV(path, 8000, nil); err == nil {
		t.Error("writeWAV() with no channels should error")
	}
	if err := writeWAV(path, 8000, [][]float64{{}}); err == nil {
		t.Error("writeWAV() with empty channel should error")
	}
}

func writeTrack(t *testing.T, dir string, stems map[string][][]float64) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, audio := range stems {
		if err := writeWAV(filepath.Join(dir, name), 8000, audio); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

func TestLoadTrack(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "song")
	writeTrack(t, dir, map[string][][]float64{
		MixtureFile:  stereoSine(2000, 440),
		"vocals.wav": stereoSine(2000, 440),
		"drums.wav":  stereoSine(2000, 120),
		"bass.wav":   stereoSine(2000, 60),
	})

	track, err := LoadTrack(dir)
	if err != nil {
		t.Fatalf("LoadTrack() error = %v", err)
	}

	if track.Name != "song" {
		t.Errorf("Name = %q, want %q", track.Name, "song")
	}
	if track.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want 8000", track.SampleRate)
	}
	if len(track.Mixture) != 2 || len(track.Mixture[0]) != 2000 {
		t.Errorf("mixture shape = %dx%d, want 2x2000", len(track.Mixture), len(track.Mixture[0]))
	}

	// Stems come back sorted by name
	wantOrder := []string{"bass", "drums", "vocals"}
	if len(track.Sources) != len(wantOrder) {
		t.Fatalf("loaded %d sources, want %d", len(track.Sources), len(wantOrder))
	}
	for i, want := range wantOrder {
		if track.Sources[i].Name != want {
			t.Errorf("source %d = %q, want %q", i, track.Sources[i].Name, want)
		}
	}
}

func TestLoadTrackMismatchedStem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "song")
	writeTrack(t, dir, map[string][][]float64{
		MixtureFile:  stereoSine(2000, 440),
		"vocals.wav": stereoSine(1500, 440),
	})

	if _, err := LoadTrack(dir); err == nil {
		t.Fatal("LoadTrack() should reject a stem with a different length")
	}
}

func TestLoadTrackNoStems(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "song")
	writeTrack(t, dir, map[string][][]float64{
		MixtureFile: stereoSine(2000, 440),
	})

	if _, err := LoadTrack(dir); err == nil {
		t.Fatal("LoadTrack() should reject a track without stems")
	}
}

func TestTracks(t *testing.T) {
	root := t.TempDir()
	writeTrack(t, filepath.Join(root, "test", "b_song"), map[string][][]float64{
		MixtureFile: stereoSine(500, 440),
	})
	writeTrack(t, filepath.Join(root, "test", "a_song"), map[string][][]float64{
		MixtureFile: stereoSine(500, 440),
	})
	// A directory without a mixture is not a track
	if err := os.MkdirAll(filepath.Join(root, "test", "not_a_track"), 0o755); err != nil {
		t.Fatal(err)
	}

	tracks, err := Tracks(root, "test")
	if err != nil {
		t.Fatalf("Tracks() error = %v", err)
	}

	if len(tracks) != 2 {
		t.Fatalf("found %d tracks, want 2", len(tracks))
	}
	if filepath.Base(tracks[0]) != "a_song" || filepath.Base(tracks[1]) != "b_song" {
		t.Errorf("tracks not sorted: %v", tracks)
	}
}

func TestSaveEstimates(t *testing.T) {
	dir := t.TempDir()
	estimates := []Stem{
		{Name: "vocals", Audio: stereoSine(1000, 440)},
		{Name: "accompaniment", Audio: stereoSine(1000, 120)},
	}

	if err := SaveEstimates(dir, "song", 8000, estimates); err != nil {
		t.Fatalf("SaveEstimates() error = %v", err)
	}

	for _, name := range []string{"vocals.wav", "accompaniment.wav"} {
		path := filepath.Join(dir, "song", name)
		audio, rate, err := readWAV(path)
		if err != nil {
			t.Fatalf("reading back %s: %v", name, err)
		}
		if rate != 8000 || len(audio) != 2 || len(audio[0]) != 1000 {
			t.Errorf("%s: rate %d channels %d samples %d", name, rate, len(audio), len(audio[0]))
		}
	}
}
