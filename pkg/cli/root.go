// Package cli implements the icescan command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"icescan/internal/config"
	"icescan/internal/domain"
	"icescan/internal/service/scan"
	"icescan/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, map[string]interface{}{
				"error": err.Error(),
				"kind":  errorKind(err),
			})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// runtime is the state shared by subcommands once flags and configuration
// have been resolved.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	fileIO domain.FileIO
	scan   *scan.Service
	close  func() error
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		flags      readerFlags
		rt         = &runtime{}
	)

	rootCmd := &cobra.Command{
		Use:           "icescan",
		Short:         "Inspect Apache Iceberg tables",
		Long:          "Resolve Iceberg table snapshots and list the data and delete files they contain.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			flags.apply(cmd.Flags(), cfg)

			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				_ = cmd.Flags().Set("output", defaultOutputFormat(os.Stdout))
			} else if err := validateOutputFormat(output); err != nil {
				return err
			}

			rt.cfg = cfg
			rt.logger = newLogger(os.Stderr, cfg)
			for _, w := range cfg.Warnings {
				rt.logger.Warn(w)
			}
			return rt.init(cmd.Context())
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if rt.close != nil {
				return rt.close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("ICESCAN_CONFIG"), "Path to a YAML config file")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (table, json); defaults to table on a terminal")
	flags.register(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newSnapshotCmd(rt))
	rootCmd.AddCommand(newSnapshotsCmd(rt))
	rootCmd.AddCommand(newManifestsCmd(rt))
	rootCmd.AddCommand(newFilesCmd(rt))
	rootCmd.AddCommand(newServeCmd(rt))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// init builds storage and the scan service.
func (rt *runtime) init(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fio, closeFn, err := storage.NewFromConfig(ctx, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	rt.fileIO, rt.close = fio, closeFn
	rt.scan = scan.NewService(rt.fileIO, scan.Options{
		AllowMovedPaths: rt.cfg.AllowMovedPaths,
		Concurrency:     rt.cfg.Concurrency,
		Logger:          rt.logger,
	})
	return nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
