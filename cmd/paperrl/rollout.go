package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"

	"github.com/boristopalov/paperrl/internal/logging"
	"github.com/boristopalov/paperrl/pkg/agent"
	"github.com/boristopalov/paperrl/pkg/config"
	"github.com/boristopalov/paperrl/pkg/dataset"
	"github.com/boristopalov/paperrl/pkg/environment"
	"github.com/boristopalov/paperrl/pkg/providers"
	"github.com/boristopalov/paperrl/pkg/reward"
	"github.com/boristopalov/paperrl/pkg/rollout"
)

func rolloutCmd() *cobra.Command {
	var (
		configPath string
		episodes   int
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Run an LLM classifier against the paper classification environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("episodes") {
				cfg.Episodes = episodes
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			root := cmd.Root().PersistentFlags()
			if !root.Changed("log-level") && !root.Changed("log-format") {
				logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
				ctx = logging.With(ctx, logger)
			}
			return runRollout(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "rollout config (YAML); defaults are used when empty")
	cmd.Flags().IntVar(&episodes, "episodes", 0, "override the number of episodes")
	cmd.Flags().IntVar(&workers, "workers", 0, "override the number of workers")
	return cmd
}

func runRollout(ctx context.Context, cfg *config.RolloutConfig) error {
	logger := logging.From(ctx)

	examples, err := loadExamples(cfg.DatasetPath)
	if err != nil {
		return err
	}

	client, err := newLLMClient(ctx, cfg.Agent)
	if err != nil {
		return err
	}
	classifier, err := agent.NewClassifier(
		agent.WithClient(client),
		agent.WithModel(agent.ModelInfo{Id: cfg.Agent.Model, Config: map[string]any{}}),
		agent.WithSystemPrompt(systemPrompt(cfg.Agent.SystemPrompt)),
	)
	if err != nil {
		return err
	}

	opts := []rollout.Option{
		rollout.WithName(cfg.Name),
		rollout.WithEpisodes(cfg.Episodes),
		rollout.WithWorkers(cfg.Workers),
		rollout.WithKeepRecent(cfg.Output.KeepRecent),
	}
	if cfg.Output.TrajectoriesPath != "" {
		f, err := openAppend(cfg.Output.TrajectoriesPath)
		if err != nil {
			return err
		}
		defer f.Close()
		opts = append(opts, rollout.WithRecorder(f))
	}

	runner, err := rollout.New(
		environment.NewFactory(examples, cfg.MaxSteps, cfg.Seed),
		classifier,
		reward.New(),
		opts...,
	)
	if err != nil {
		return err
	}

	logger.Info("starting rollout",
		slog.String("name", cfg.Name),
		slog.String("dataset", cfg.DatasetPath),
		slog.Int("examples", len(examples)),
		slog.String("provider", cfg.Agent.Provider),
		slog.String("model", cfg.Agent.Model),
		slog.String("agent_id", classifier.GetID()),
	)
	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Output.StatsPath != "" {
		if err := rollout.AppendStats(cfg.Output.StatsPath, summary); err != nil {
			return err
		}
	}
	return nil
}

// loadExamples reads JSONL, or parquet when the path says so.
func loadExamples(path string) ([]dataset.Example, error) {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return dataset.ReadParquet(path)
	}
	return dataset.LoadJSONL(path)
}

func newLLMClient(ctx context.Context, cfg config.AgentConfig) (agent.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return providers.OpenAi(ctx,
			providers.WithBaseURL(cfg.BaseURL),
			providers.WithAPIKey(cfg.APIKey),
		), nil
	case config.ProviderGemini:
		return providers.Gemini(ctx, providers.WithAPIKey(cfg.APIKey))
	}
	return nil, goerr.New("unknown agent provider", goerr.V("provider", cfg.Provider))
}

func systemPrompt(s string) string {
	if s == "" {
		return dataset.DefaultInstruction
	}
	return s
}

func openAppend(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create output directory", goerr.V("dir", dir))
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open trajectories file", goerr.V("path", path))
	}
	return f, nil
}
