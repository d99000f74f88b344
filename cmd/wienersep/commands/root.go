package commands

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/soundprobe/wienersep/dataset"
	"github.com/soundprobe/wienersep/eval"
	"github.com/soundprobe/wienersep/logging"
	"github.com/soundprobe/wienersep/wiener"
)

var (
	flagRoot       string
	flagSubset     string
	flagAudioDir   string
	flagEvalDir    string
	flagWorkers    int
	flagWindowSize int
	flagVocal      string
	flagConfig     string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "wienersep",
	Short: "Oracle multichannel Wiener filter source separation",
	Long: `wienersep separates every track of a dataset with the ideal
multichannel Wiener filter, using the track's own reference sources to build
the filter. The result is the upper bound any linear time-frequency separator
can reach on that material.

A track is a directory with mixture.wav plus one WAV per reference source:

  <root>/<subset>/<track>/mixture.wav
  <root>/<subset>/<track>/vocals.wav
  <root>/<subset>/<track>/drums.wav
  ...

Separated audio is written under --audio-dir and SDR scores under --eval-dir
when those flags are given. Tracks are processed in parallel; a failing track
is logged and skipped without aborting the run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if flagVerbose {
			logging.SetLevel(logging.DebugLevel)
		}
		return run(cfg)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().StringVar(&flagRoot, "root", "", "dataset root directory")
	rootCmd.Flags().StringVar(&flagSubset, "subset", "test", "dataset subset to process")
	rootCmd.Flags().StringVar(&flagAudioDir, "audio-dir", "", "folder where separated audio is saved")
	rootCmd.Flags().StringVar(&flagEvalDir, "eval-dir", "", "folder where evaluation results are saved")
	rootCmd.Flags().IntVar(&flagWorkers, "workers", runtime.NumCPU(), "tracks processed in parallel")
	rootCmd.Flags().IntVar(&flagWindowSize, "window-size", wiener.DefaultConfig().WindowSize, "STFT window size in samples")
	rootCmd.Flags().StringVar(&flagVocal, "vocal", wiener.DefaultConfig().VocalName, "source excluded from the accompaniment")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "YAML run profile (flags override it)")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
}

// resolveConfig merges the optional YAML profile with command-line flags;
// flags that were set explicitly win.
func resolveConfig(cmd *cobra.Command) (*RunConfig, error) {
	cfg := &RunConfig{
		Subset:     flagSubset,
		Workers:    flagWorkers,
		WindowSize: flagWindowSize,
		Vocal:      flagVocal,
	}

	if flagConfig != "" {
		loaded, err := loadRunConfig(flagConfig)
		if err != nil {
			return nil, err
		}
		if loaded.Subset != "" {
			cfg.Subset = loaded.Subset
		}
		if loaded.Workers > 0 {
			cfg.Workers = loaded.Workers
		}
		if loaded.WindowSize > 0 {
			cfg.WindowSize = loaded.WindowSize
		}
		if loaded.Vocal != "" {
			cfg.Vocal = loaded.Vocal
		}
		cfg.Root = loaded.Root
		cfg.AudioDir = loaded.AudioDir
		cfg.EvalDir = loaded.EvalDir
	}

	if cmd.Flags().Changed("root") || cfg.Root == "" {
		cfg.Root = flagRoot
	}
	if cmd.Flags().Changed("subset") {
		cfg.Subset = flagSubset
	}
	if cmd.Flags().Changed("audio-dir") {
		cfg.AudioDir = flagAudioDir
	}
	if cmd.Flags().Changed("eval-dir") {
		cfg.EvalDir = flagEvalDir
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = flagWorkers
	}
	if cmd.Flags().Changed("window-size") {
		cfg.WindowSize = flagWindowSize
	}
	if cmd.Flags().Changed("vocal") {
		cfg.Vocal = flagVocal
	}

	if cfg.Root == "" {
		return nil, fmt.Errorf("--root is required (or set root in the config profile)")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	return cfg, nil
}

// run dispatches the separation across tracks with a worker pool. Tracks are
// independent, so this is the only place anything runs in parallel.
func run(cfg *RunConfig) error {
	separatorCfg := wiener.DefaultConfig()
	separatorCfg.WindowSize = cfg.WindowSize
	separatorCfg.VocalName = cfg.Vocal

	separator, err := wiener.NewSeparator(separatorCfg)
	if err != nil {
		return err
	}

	tracks, err := dataset.Tracks(cfg.Root, cfg.Subset)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return fmt.Errorf("no tracks found under %s/%s", cfg.Root, cfg.Subset)
	}

	logging.Info("starting separation", logging.Fields{
		"tracks":  len(tracks),
		"workers": cfg.Workers,
	})

	jobs := make(chan string, len(tracks))
	var wg sync.WaitGroup
	var failed atomic.Int64

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dir := range jobs {
				if err := processTrack(dir, cfg, separator); err != nil {
					logging.Error(err, "track failed", logging.Fields{"track": dir})
					failed.Add(1)
				}
			}
		}()
	}

	for _, dir := range tracks {
		jobs <- dir
	}
	close(jobs)
	wg.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d tracks failed", n, len(tracks))
	}

	logging.Info("separation complete", logging.Fields{"tracks": len(tracks)})
	return nil
}

// processTrack separates one track and writes audio and scores as configured
func processTrack(dir string, cfg *RunConfig, separator *wiener.Separator) error {
	track, err := dataset.LoadTrack(dir)
	if err != nil {
		return err
	}

	logger := logging.WithFields(logging.Fields{"track": track.Name})
	logger.Debug("track loaded", logging.Fields{
		"sample_rate": track.SampleRate,
		"sources":     len(track.Sources),
	})

	sources := make([]wiener.Source, len(track.Sources))
	for i, stem := range track.Sources {
		sources[i] = wiener.Source{Name: stem.Name, Audio: stem.Audio}
	}

	result, err := separator.Separate(track.Mixture, sources)
	if err != nil {
		return err
	}

	estimates := make([]dataset.Stem, len(result.Estimates))
	for i, est := range result.Estimates {
		estimates[i] = dataset.Stem{Name: est.Name, Audio: est.Audio}
	}

	if cfg.AudioDir != "" {
		if err := dataset.SaveEstimates(cfg.AudioDir, track.Name, track.SampleRate, estimates); err != nil {
			return err
		}
	}

	if cfg.EvalDir != "" {
		scores := eval.Evaluate(track, estimates, cfg.Vocal)
		if err := eval.WriteScores(cfg.EvalDir, scores); err != nil {
			return err
		}
		for _, s := range scores.Scores {
			logger.Info("scored estimate", logging.Fields{
				"source":     s.Name,
				"sdr":        fmt.Sprintf("%.2f", s.SDR),
				"median_sdr": fmt.Sprintf("%.2f", s.MedianSDR),
			})
		}
	}

	return nil
}
