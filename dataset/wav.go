package dataset

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// readWAV decodes a WAV file into float64 audio indexed [channel][sample],
// normalized to [-1, 1], and returns it with the sample rate.
func readWAV(path string) ([][]float64, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: not a valid WAV file", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: decoding PCM: %w", path, err)
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, 0, fmt.Errorf("%s: no channels", path)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	samples := len(buf.Data) / channels
	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = make([]float64, samples)
	}
	for i := 0; i < samples; i++ {
		for ch := range out {
			out[ch][i] = float64(buf.Data[i*channels+ch]) / scale
		}
	}

	return out, int(decoder.SampleRate), nil
}

// writeWAV encodes float64 audio indexed [channel][sample] as 16-bit PCM.
// Samples outside [-1, 1] are clipped.
func writeWAV(path string, rate int, channels [][]float64) error {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return fmt.Errorf("%s: empty audio", path)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	numChannels := len(channels)
	samples := len(channels[0])
	data := make([]int, samples*numChannels)
	for i := 0; i < samples; i++ {
		for ch := range channels {
			v := channels[ch][i]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			data[i*numChannels+ch] = int(v * 32767)
		}
	}

	enc := wav.NewEncoder(file, rate, 16, numChannels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: numChannels,
			SampleRate:  rate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("%s: encoding PCM: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		file.Close()
		return fmt.Errorf("%s: finalizing WAV: %w", path, err)
	}

	return file.Close()
}
