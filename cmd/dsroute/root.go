package main

import (
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alexanderjulianmartinez/dsroute/internal/config"
)

type app struct {
	configPath string
	debug      bool

	cfg *config.Config
	log *zap.Logger
	out io.Writer
	err io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "dsroute",
		Short: "Dataset access router",
		Long: `dsroute probes dataset handles against the tabular catalog and the file
store, reports how each dataset can be accessed and runs reads through the
matching accessor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			a.err = cmd.ErrOrStderr()
			// A missing .env file is fine.
			_ = godotenv.Load()

			cfg, err := config.LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log, err = newLogger(cfg.Log, a.debug)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "dsroute.yaml", "path to the config file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newCheckCmd(a),
		newProbeCmd(a),
		newWatchCmd(a),
		newResolveCmd(a),
		newFilesCmd(a),
		newDownloadCmd(a),
		newQueryCmd(a),
		newAggregateCmd(a),
	)
	return root
}

func newLogger(cfg config.LogConfig, debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if level, err := zap.ParseAtomicLevel(cfg.Level); err == nil {
		zc.Level = level
	}
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if !cfg.JSON {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
