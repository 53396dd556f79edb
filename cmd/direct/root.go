package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/copyleftdev/divrect/internal/config"
)

// newLogger builds a console logger on stderr at the given level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "direct",
		Short: "Derivative-free global minimization with DIRECT",
		Long: `direct minimizes the built-in test objectives over a box with the
DIRECT (DIvided RECTangles) algorithm and prints the best point found.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", config.GetEnv("LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")

	loggerFor := func() (*zap.Logger, error) {
		return newLogger(logLevel)
	}

	root.AddCommand(
		newRunCmd(loggerFor),
		newObjectivesCmd(),
		newVersionCmd(),
	)
	return root
}
