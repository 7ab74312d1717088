package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"disaster-classifier/internal/artifact"
	"disaster-classifier/internal/config"
	"disaster-classifier/internal/service"
	"disaster-classifier/internal/text"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultConfigPath = "configs/config.yml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(os.Stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	var configPath, logLevel string

	cmd := &cobra.Command{
		Use:   "train [flags] <database> <model-output>",
		Short: "Train the disaster response message classifier",
		Long: "Loads labelled messages from a SQLite file or PostgreSQL URL, selects hyperparameters by\n" +
			"cross-validated grid search, prints a per-category report on a held-out split and saves the model.",
		Example:       "  train ../data/DisasterResponse.db classifier.model.gz",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
				return nil
			}
			return run(cmd.Context(), cmd.OutOrStdout(), configPath, logLevel, args[0], args[1])
		},
	}
	cmd.SetOut(out)
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "Path to the training config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	return cmd
}

func run(ctx context.Context, out io.Writer, configPath, logLevel, dbPath, modelPath string) error {
	cfg, err := config.LoadConfig(configPath)
	missing := errors.Is(err, os.ErrNotExist)
	if missing {
		cfg = config.Default()
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return err
		}
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer logger.Sync()

	if missing {
		logger.Warn("Config file not found, using defaults", zap.String("path", configPath))
	}

	bundle, err := text.LoadLexicalResources(text.LexiconOptions{LemmaFile: cfg.Lexicon.LemmaFile})
	if err != nil {
		logger.Error("Failed to load lexical resources", zap.Error(err))
		return err
	}
	normalizer := text.NewNormalizer(bundle)

	trainer := service.NewTrainer(
		service.OpenRepository(cfg.Data.Table, logger),
		artifact.NewFileStore(normalizer, logger),
		normalizer,
		cfg,
		out,
		logger,
	)

	summary, err := trainer.Run(ctx, dbPath, modelPath)
	if err != nil {
		var stage *service.StageError
		if errors.As(err, &stage) {
			logger.Error("Training failed", zap.String("stage", stage.Stage), zap.Error(stage.Err))
		} else {
			logger.Error("Training failed", zap.Error(err))
		}
		return err
	}

	logger.Info("Training run complete",
		zap.String("run_id", summary.RunID),
		zap.String("params", summary.Best.String()),
		zap.Float64("cv_score", summary.CVScore))
	return nil
}

// newLogger builds a zap logger writing to stderr so stdout carries only progress and the report
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
