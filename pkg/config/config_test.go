package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/boristopalov/paperrl/pkg/config"
	"github.com/m-mizutani/gt"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		cfg, err := config.LoadConfig("")
		gt.NoError(t, err)
		gt.Equal(t, cfg.MaxSteps, 1)
		gt.Equal(t, cfg.Workers, 4)
		gt.Equal(t, cfg.Agent.Provider, config.ProviderOpenAI)
		gt.Equal(t, cfg.Agent.APIKey, "sk-test")
		gt.True(t, cfg.Seed == nil)
	})

	t.Run("yaml overrides", func(t *testing.T) {
		path := writeFile(t, "rollout.yaml", `
dataset_path: data/val.jsonl
episodes: 10
workers: 2
seed: 99
agent:
  provider: gemini
  model: gemini-2.0-flash
  api_key: from-file
output:
  stats_path: out/stats.csv
`)
		cfg, err := config.LoadConfig(path)
		gt.NoError(t, err)
		gt.Equal(t, cfg.DatasetPath, "data/val.jsonl")
		gt.Equal(t, cfg.Episodes, 10)
		gt.Equal(t, cfg.Workers, 2)
		gt.Equal(t, *cfg.Seed, uint64(99))
		gt.Equal(t, cfg.Agent.Provider, config.ProviderGemini)
		gt.Equal(t, cfg.Agent.APIKey, "from-file")
		gt.Equal(t, cfg.Output.StatsPath, "out/stats.csv")
		gt.Equal(t, cfg.MaxSteps, 1)
	})

	t.Run("invalid values", func(t *testing.T) {
		for _, body := range []string{
			"max_steps: 0",
			"workers: 0",
			"agent:\n  provider: nope",
			"dataset_path: ''",
		} {
			_, err := config.LoadConfig(writeFile(t, "bad.yaml", body))
			gt.Error(t, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
		gt.Error(t, err)
	})
}

func TestLoadArxivConfig(t *testing.T) {
	t.Run("json config", func(t *testing.T) {
		path := writeFile(t, "config.json", `{
  "input_filepath": "data/arxiv.jsonl",
  "pretrain_filepath": "out/pretrain.jsonl",
  "sft_train_filepath": "out/train.jsonl",
  "sft_validation_filepath": "out/val.jsonl",
  "category_to_letter": {"cs.AI": "A", "cs.CL": "B"},
  "prompt_options": "A. cs.AI\nB. cs.CL"
}`)
		cfg, err := config.LoadArxivConfig(path)
		gt.NoError(t, err)
		gt.Equal(t, cfg.CategoryToLetter["cs.CL"], "B")
		gt.Equal(t, cfg.PromptOptions, "A. cs.AI\nB. cs.CL")
		gt.Equal(t, cfg.ProcessingPercentage, 1.0)
		gt.Equal(t, cfg.MaxWords, 2048)
		gt.Equal(t, cfg.ValSplitRatio, 0.02)
		gt.Equal(t, cfg.PromptTemplates, []string{config.DefaultPromptTemplate})
	})

	t.Run("full sft requires path", func(t *testing.T) {
		path := writeFile(t, "config.yaml", `
input_filepath: a
pretrain_filepath: b
generate_full_sft_dataset: true
category_to_letter: {cs.AI: A}
`)
		_, err := config.LoadArxivConfig(path)
		gt.Error(t, err)
	})
}
