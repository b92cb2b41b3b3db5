// Command cachectl benchmarks caches, probes replicated backends and prints
// backend key identifiers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/IvanBrykalov/replcache/config"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cachectl",
		Short:        "Inspect and exercise replcache caches",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "info", "log level: debug | info | warn | error")
	root.PersistentFlags().String("kind", "", "override CACHE_KIND (local | replicated)")
	root.PersistentFlags().String("master", "", "override CACHE_MASTER")
	root.PersistentFlags().StringSlice("replicas", nil, "override CACHE_REPLICAS")

	root.AddCommand(newBenchCmd(), newProbeCmd(), newKeyCmd())
	return root
}

// newLogger builds a console logger on stderr at the level named by the
// --log-level flag.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	name, _ := cmd.Flags().GetString("log-level")
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	return zap.New(core), nil
}

// loadConfig reads CACHE_* settings and applies command line overrides.
func loadConfig(cmd *cobra.Command) (config.Cache, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Cache{}, err
	}
	flags := cmd.Flags()
	if v, _ := flags.GetString("kind"); v != "" {
		cfg.Kind = v
	}
	if v, _ := flags.GetString("master"); v != "" {
		cfg.Master = v
	}
	if v, _ := flags.GetStringSlice("replicas"); len(v) > 0 {
		cfg.Replicas = v
	}
	return cfg, cfg.Validate()
}
