package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/larchlabs/forge/config"
	"github.com/larchlabs/forge/model"
	"github.com/larchlabs/forge/sampler"
	"github.com/larchlabs/forge/server"
	"github.com/larchlabs/forge/session"
	"github.com/larchlabs/forge/tokenizer"
)

// newServeCmd builds the `forge serve` command (spec §6, SPEC_FULL.md §6):
// load config, load the model and vocabulary, start the session registry
// and the HTTP surface. Flags take precedence over the config package's
// FORGE_* environment variables, matching the teacher's cmd_serve.go
// listen-then-serve shape.
func newServeCmd() *cobra.Command {
	var modelPath, vocabPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the inference engine's HTTP surface",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if modelPath != "" {
				cfg.ModelPath = modelPath
			}
			if vocabPath != "" {
				cfg.VocabularyPath = vocabPath
			}

			slog.SetLogLoggerLevel(cfg.LogLevel)

			if cfg.ModelPath == "" || cfg.VocabularyPath == "" {
				return fmt.Errorf("forge serve: --model and --vocab (or FORGE_MODEL/FORGE_VOCAB) are required")
			}

			vocab, err := tokenizer.LoadVocabulary(cfg.VocabularyPath)
			if err != nil {
				return fmt.Errorf("forge serve: %w", err)
			}

			weights, err := loadModel(cfg.ModelPath)
			if err != nil {
				return fmt.Errorf("forge serve: %w", err)
			}

			tok := tokenizer.New(vocab, weights.Config.BOSToken, weights.Config.EOSToken)
			registry := session.NewRegistry(weights, tok, cfg.SessionCapacity, cfg.MaxConcurrent, sampler.Params{
				Temperature: 0.8,
				TopK:        40,
				TopP:        0.95,
			})

			slog.Info("forge listening", "addr", cfg.Host.Host)

			srv := server.New(registry, cfg.AllowedOrigins)
			return srv.Run(cfg.Host.Host)
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "path to the model weights, passed to the configured Loader (overrides FORGE_MODEL)")
	cmd.Flags().StringVar(&vocabPath, "vocab", "", "path to the vocabulary file (overrides FORGE_VOCAB)")
	return cmd
}

// loadModel resolves the model.Loader collaborator. On-disk tensor file
// formats are out of scope (spec §1); stubLoader below stands in for
// whatever concrete Loader (safetensors, gguf, ...) a deployment wires in
// model.Loader's place.
func loadModel(path string) (*model.Weights, error) {
	return stubLoader{}.Load(path)
}
