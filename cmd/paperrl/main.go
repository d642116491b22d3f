package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boristopalov/paperrl/internal/logging"
)

type globalFlags struct {
	logLevel  string
	logFormat string
}

func main() {
	for _, envFile := range []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "paperrl",
		Short:         "paperrl prepares paper classification data and runs RL rollouts against a labelled-example environment.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := logging.New(os.Stderr, flags.logLevel, flags.logFormat)
			slog.SetDefault(logger)
			cmd.SetContext(logging.With(cmd.Context(), logger))
		},
	}
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(
		processArxivCmd(),
		convertCSVCmd(),
		toParquetCmd(),
		downloadModelCmd(),
		prepareAssetsCmd(),
		rolloutCmd(),
	)
	return rootCmd
}
