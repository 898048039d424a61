// cliplinectl is the headless operations CLI for the clipline service:
// manual storage purges, event inventory, and the destructive full reset.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/your-org/clipline/internal/metadata"
	"github.com/your-org/clipline/pkg/config"
	"github.com/your-org/clipline/pkg/logger"
	"github.com/your-org/clipline/pkg/storage/objectstore"
)

func newRootCommand() *cobra.Command {
	ctx := &cliContext{}

	rootCmd := &cobra.Command{
		Use:           "cliplinectl",
		Short:         "Operations CLI for the clipline media service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.ensure()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newEventsCommand(ctx))
	rootCmd.AddCommand(newPurgeCommand(ctx))
	rootCmd.AddCommand(newWipeCommand(ctx))

	return rootCmd
}

// cliContext shares lazily initialized dependencies between commands. The
// same environment variables configure the CLI and the service, so both
// always point at the same database and bucket.
type cliContext struct {
	cfg  *config.Config
	logr *zap.Logger
}

func (c *cliContext) ensure() error {
	if c.cfg != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	c.cfg = cfg
	c.logr = logr
	return nil
}

func (c *cliContext) openStore(ctx context.Context) (*metadata.Store, error) {
	store, err := metadata.Open(c.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close() //nolint:errcheck
		return nil, fmt.Errorf("migrate metadata store: %w", err)
	}
	return store, nil
}

func (c *cliContext) openObjects() (objectstore.Client, error) {
	objects, err := objectstore.New(objectstore.Config{
		Provider:      c.cfg.Storage.Provider,
		Endpoint:      c.cfg.Storage.Endpoint,
		Region:        c.cfg.Storage.Region,
		Bucket:        c.cfg.Storage.Bucket,
		AccessKey:     c.cfg.Storage.AccessKey,
		SecretKey:     c.cfg.Storage.SecretKey,
		UseSSL:        c.cfg.Storage.UseSSL,
		PublicBaseURL: c.cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}
	return objects, nil
}
