// Command pilotctl is the operator side of syntaxpilot: it serves the
// suggestion API, edits config.toml, checks the local setup and shows the
// audit log.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashwch/syntaxpilot/internal/config"
	"github.com/ashwch/syntaxpilot/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

type app struct {
	configPath string
	verbose    bool
	logger     *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "pilotctl",
		Short:         "Operate syntaxpilot: serve suggestions, edit config, run checks",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = logging.New(logging.Options{Verbose: a.verbose, Output: cmd.ErrOrStderr()})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync(a.logger)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config.toml to use instead of the default")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		a.serveCmd(),
		a.configCmd(),
		a.doctorCmd(),
		a.auditCmd(),
		versionCmd(),
	)
	return root
}

// loadConfig returns the effective configuration and the file it came from.
func (a *app) loadConfig() (config.Config, string, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		a.log().Warn("ignoring .env", zap.Error(err))
	}
	if a.configPath == "" {
		return config.LoadOrCreate()
	}
	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return config.Config{}, "", err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, a.configPath, nil
}

func (a *app) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
