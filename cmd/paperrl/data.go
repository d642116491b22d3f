package main

import (
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/boristopalov/paperrl/internal/logging"
	"github.com/boristopalov/paperrl/pkg/arxiv"
	"github.com/boristopalov/paperrl/pkg/config"
	"github.com/boristopalov/paperrl/pkg/dataset"
	"github.com/boristopalov/paperrl/pkg/modelhub"
)

func processArxivCmd() *cobra.Command {
	var (
		configPath string
		seed       uint64
	)
	cmd := &cobra.Command{
		Use:   "process-arxiv",
		Short: "Build pretrain and SFT datasets from the arXiv metadata snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadArxivConfig(configPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				seed = uint64(time.Now().UnixNano())
			}
			_, err = arxiv.Process(cmd.Context(), cfg, rand.New(rand.NewPCG(seed, seed)))
			return err
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "examples/paper_classification/config.json", "arXiv processing config (JSON or YAML)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for template choice and shuffling")
	return cmd
}

func convertCSVCmd() *cobra.Command {
	var csvPath, jsonlPath, instruction string
	cmd := &cobra.Command{
		Use:   "convert-csv",
		Short: "Convert a question/answer CSV into environment JSONL",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := dataset.ConvertCSV(csvPath, jsonlPath, instruction)
			if err != nil {
				return err
			}
			logging.From(cmd.Context()).Info("converted CSV",
				slog.String("csv", csvPath),
				slog.String("jsonl", jsonlPath),
				slog.Int("records", n),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "data/newformat_sft_test_data.csv", "input CSV with question and answer columns")
	cmd.Flags().StringVar(&jsonlPath, "out", "data/rl_env_data.jsonl", "output JSONL path")
	cmd.Flags().StringVar(&instruction, "instruction", dataset.DefaultInstruction, "instruction attached to every record")
	return cmd
}

func toParquetCmd() *cobra.Command {
	var jsonlPath, registryDir, name string
	var splits []string
	cmd := &cobra.Command{
		Use:   "to-parquet",
		Short: "Convert environment JSONL to parquet and register it under the given splits",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.From(cmd.Context())
			examples, err := dataset.LoadJSONL(jsonlPath)
			if err != nil {
				return err
			}
			reg := dataset.NewRegistry(registryDir)
			for _, split := range splits {
				path, err := reg.Register(name, strings.TrimSpace(split), examples)
				if err != nil {
					return err
				}
				logger.Info("registered dataset",
					slog.String("name", name),
					slog.String("split", split),
					slog.String("path", path),
					slog.Int("examples", len(examples)),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&jsonlPath, "in", "data/rl_env_data.jsonl", "input JSONL path")
	cmd.Flags().StringVar(&registryDir, "registry", "data/registry", "dataset registry directory")
	cmd.Flags().StringVar(&name, "name", "rl_env_data", "dataset name")
	cmd.Flags().StringSliceVar(&splits, "splits", []string{"train", "test"}, "splits to register")
	return cmd
}

func downloadModelCmd() *cobra.Command {
	var modelName, dir, urlTemplate string
	cmd := &cobra.Command{
		Use:   "download-model",
		Short: "Download and unpack a model snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := modelhub.New(modelhub.WithURLTemplate(urlTemplate)).Download(cmd.Context(), modelName, dir)
			return err
		},
	}
	cmd.Flags().StringVar(&modelName, "model", "", "model name")
	cmd.Flags().StringVar(&dir, "dir", "models", "download directory")
	cmd.Flags().StringVar(&urlTemplate, "url-template", modelhub.DefaultURLTemplate, "download URL, %s is replaced by the model name")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func prepareAssetsCmd() *cobra.Command {
	var modelName, modelDir, urlTemplate, csvPath, jsonlPath string
	cmd := &cobra.Command{
		Use:   "prepare-assets",
		Short: "Download the SFT model and build the RL environment data",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.From(cmd.Context())
			modelPath, err := modelhub.New(modelhub.WithURLTemplate(urlTemplate)).Download(cmd.Context(), modelName, modelDir)
			if err != nil {
				return err
			}
			n, err := dataset.ConvertCSV(csvPath, jsonlPath, dataset.DefaultInstruction)
			if err != nil {
				return err
			}
			logger.Info("RL assets are ready",
				slog.String("model", modelPath),
				slog.String("env_data", jsonlPath),
				slog.Int("records", n),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&modelName, "model", "jiaenyue/L1G4_internlm2_5-1_8b-chat_0_5", "SFT model name")
	cmd.Flags().StringVar(&modelDir, "model-dir", "models/xtuner_sft_model", "model download directory")
	cmd.Flags().StringVar(&urlTemplate, "url-template", modelhub.DefaultURLTemplate, "download URL, %s is replaced by the model name")
	cmd.Flags().StringVar(&csvPath, "csv", "data/newformat_sft_test_data.csv", "official validation CSV")
	cmd.Flags().StringVar(&jsonlPath, "out", "data/rl_env_data.jsonl", "RL environment JSONL")
	return cmd
}
