// Command odm runs the document layer against the configured store, cache
// and geocoder.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goforj/odm/internal/app"
	"github.com/goforj/odm/internal/config"
)

type cli struct {
	configPath string
	debug      bool

	logger *zap.Logger
	app    *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "odm",
		Short: "Schema-checked documents over a document store with a TTL cache",
		Long: `odm registers document kinds from a YAML definitions file and stores
their documents in the configured store, keeping a snapshot of each one in the
configured cache. Addresses are geocoded into points before they are saved.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			zc := zap.NewProductionConfig()
			if c.debug || cfg.Debug {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			if c.logger, err = zc.Build(); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.app, err = app.Bootstrap(cmd.Context(), cfg, c.logger)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to the YAML configuration file")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		c.demoCmd(),
		c.kindsCmd(),
		c.createCmd(),
		c.getCmd(),
		c.findCmd(),
		c.aggregateCmd(),
		c.deleteCmd(),
		c.helpdeskCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
