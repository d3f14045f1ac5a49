package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tjs392/otters/internal/pipeline"
	"github.com/tjs392/otters/pkg/config"
	"github.com/tjs392/otters/pkg/logger"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "otters",
		Short: "otters - micro-batching pipeline for columnar data",
		Long: `otters accumulates individually-arriving rows and periodically groups
them into fixed-schema Arrow batches, flushing when either a row-count
or a time threshold is reached, then runs optional streaming compute
stages and writes the result to a columnar sink.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("otters v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var configPath string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline from a YAML config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(configPath)
		},
	}
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "pipeline config file (required)")
	_ = runCmd.MarkFlagRequired("config")
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPipeline(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Encoding,
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	p, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		log.Error("failed to build pipeline", zap.Error(err))
		return err
	}
	defer func() { _ = p.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		log.Error("pipeline failed", zap.Error(err))
		return err
	}
	return nil
}
