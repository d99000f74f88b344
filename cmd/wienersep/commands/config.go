package commands

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// RunConfig is a YAML run profile. Flags given on the command line override
// profile values.
type RunConfig struct {
	Root       string `yaml:"root"`
	Subset     string `yaml:"subset"`
	AudioDir   string `yaml:"audio_dir"`
	EvalDir    string `yaml:"eval_dir"`
	Workers    int    `yaml:"workers"`
	WindowSize int    `yaml:"window_size"`
	Vocal      string `yaml:"vocal"`
}

// loadRunConfig reads a YAML run profile from disk
func loadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return &cfg, nil
}
