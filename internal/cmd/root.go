// Package cmd implements the browserenv CLI commands using Cobra.
// It provides commands to run a supervised browser instance, probe a
// DevTools endpoint, and inspect or reap the instance ledger.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/browserenv"
	"github.com/giantswarm/browserenv/internal/config"
	"github.com/giantswarm/browserenv/internal/slogger"
)

type contextKey string

const configKey contextKey = "config"

// WithConfig adds the config to the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// ConfigFromContext retrieves the config from context.
func ConfigFromContext(ctx context.Context) *config.Config {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok {
		return nil
	}
	return cfg
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		verbosity  int
	)

	root := &cobra.Command{
		Use:   "browserenv",
		Short: "Supervise Chromium browsers for automation clients",
		Long: `browserenv launches Chromium-family browsers with a remote-debugging
endpoint, waits until the endpoint answers, and tears the processes down
cleanly. Browsers that are not headless share one Xvfb display.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := slogger.New(slogger.Config{Verbosity: verbosity, Timestamps: true})
			browserenv.SetLogger(log.With("component", "browserenv"))

			loader, err := newLoader(configPath)
			if err != nil {
				return err
			}
			cfg, err := loader.Load()
			if err != nil {
				return fmt.Errorf("load config %s: %w", loader.Path(), err)
			}

			ctx := slogger.WithLogger(cmd.Context(), log)
			cmd.SetContext(WithConfig(ctx, cfg))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/browserenv/config.yaml)")
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug)")

	root.AddCommand(
		newRunCmd(),
		newProbeCmd(),
		newListCmd(),
		newReapCmd(),
		newVersionCmd(),
	)
	return root
}

func newLoader(path string) (*config.Loader, error) {
	if path == "" {
		return config.NewLoader()
	}
	return config.NewLoaderAt(path, homeDir()), nil
}

// Execute runs the CLI with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
