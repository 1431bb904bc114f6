package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/screenager/llamago/internal/generate"
	"github.com/screenager/llamago/internal/model"
	"github.com/screenager/llamago/internal/sampler"
	"github.com/screenager/llamago/internal/tokenizer"
)

const defaultConfigPath = ".llamago.toml"

// newRootCmd builds the command tree. Defaults are seeded from an optional
// TOML config file, read before flags are registered so CLI flags always
// win over file-supplied values.
func newRootCmd() *cobra.Command {
	fileCfg, err := loadFileConfig(defaultConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: ignoring malformed %s: %v\n", defaultConfigPath, err)
	}

	defaults := fileConfig{
		Temperature: 1.0,
		TopP:        0.9,
		Seed:        uint64(time.Now().UnixNano()),
		LogLevel:    "info",
	}
	if fileCfg.Temperature != 0 {
		defaults.Temperature = fileCfg.Temperature
	}
	if fileCfg.TopP != 0 {
		defaults.TopP = fileCfg.TopP
	}
	if fileCfg.Steps != 0 {
		defaults.Steps = fileCfg.Steps
	}
	if fileCfg.Seed != 0 {
		defaults.Seed = fileCfg.Seed
	}
	if fileCfg.LogLevel != "" {
		defaults.LogLevel = fileCfg.LogLevel
	}

	root := &cobra.Command{
		Use:   "llamago",
		Short: "Run autoregressive text generation over a Llama-family checkpoint",
	}

	var (
		temperature float32
		topP        float32
		steps       int
		seed        uint64
		logLevel    string
	)

	genCmd := &cobra.Command{
		Use:   "generate <checkpoint.bin> <tokenizer.bin> <prompt>",
		Short: "Generate text from a prompt",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
			log := logrus.New()
			log.SetLevel(level)

			return runGenerate(log, args[0], args[1], args[2], temperature, topP, steps, seed)
		},
	}

	genCmd.Flags().Float32Var(&temperature, "temperature", defaults.Temperature, "sampling temperature (0 = greedy argmax)")
	genCmd.Flags().Float32Var(&topP, "topp", defaults.TopP, "nucleus sampling mass (<=0 or >=1 disables nucleus sampling)")
	genCmd.Flags().IntVar(&steps, "steps", defaults.Steps, "maximum generation steps (0 = use the checkpoint's seq_len)")
	genCmd.Flags().Uint64Var(&seed, "seed", defaults.Seed, "RNG seed for sampling (fixed for reproducible runs)")
	genCmd.Flags().StringVar(&logLevel, "log-level", defaults.LogLevel, "log level: debug, info, warn, error")

	root.AddCommand(genCmd)
	return root
}

// runGenerate loads the checkpoint and tokenizer, then streams generated
// text to stdout through a buffered, explicitly flushed writer.
func runGenerate(log *logrus.Logger, checkpointPath, tokenizerPath, prompt string, temperature, topP float32, steps int, seed uint64) error {
	log.Infof("loading checkpoint from %s", checkpointPath)
	cfg, weights, err := model.LoadCheckpoint(checkpointPath)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"dim": cfg.Dim, "n_layers": cfg.NLayers, "n_heads": cfg.NHeads,
		"n_kv_heads": cfg.NKVHeads, "vocab_size": cfg.VocabSize, "seq_len": cfg.SeqLen,
	}).Info("checkpoint loaded")

	log.Infof("loading tokenizer from %s", tokenizerPath)
	vocab, err := tokenizer.Load(tokenizerPath, cfg.VocabSize)
	if err != nil {
		return err
	}

	if steps <= 0 || steps > cfg.SeqLen {
		steps = cfg.SeqLen
	}

	driver := &generate.Driver{
		Transformer: model.New(cfg, weights),
		Vocab:       vocab,
		Sampler:     sampler.New(temperature, topP, cfg.VocabSize, seed),
		Log:         log,
	}

	out := bufio.NewWriter(os.Stdout)
	start := time.Now()
	if err := driver.Run(out, prompt, steps); err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	log.Infof("generated %d steps in %s (%.1f tok/s)", steps, elapsed, float64(steps)/elapsed.Seconds())
	return nil
}
