package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bher20/utilitybill/internal/config"
	"github.com/bher20/utilitybill/internal/history"
	"github.com/bher20/utilitybill/internal/logging"
	"github.com/bher20/utilitybill/internal/storage"
	"github.com/bher20/utilitybill/internal/tariffs"
)

// cli carries what every subcommand needs. Storage is opened on first use
// so that commands like `migrate` never touch it.
type cli struct {
	cfg *config.Config
	log *zap.Logger
	out io.Writer

	store   storage.Storage
	tariffs *tariffs.Service
	history *history.Service
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           "utilitybill",
		Short:         "Household utility bill calculator with a saved billing history",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(
		newCalcCmd(c),
		newSaveCmd(c),
		newHistoryCmd(c),
		newTariffsCmd(c),
		newExportCmd(c),
		newMigrateCmd(c),
		newServeCmd(c),
	)
	return root
}

func (c *cli) setup() error {
	if _, err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.NewLogger(cfg.ServiceName, cfg.Log.Level)
	if err != nil {
		return err
	}
	c.cfg, c.log = cfg, log
	return nil
}

func (c *cli) open(ctx context.Context) error {
	if c.store != nil {
		return nil
	}
	st, err := openStorage(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	c.store = st
	c.tariffs = tariffs.NewService(st, c.log)
	c.history = history.NewService(st, c.log).WithClock(nowFunc)
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Storage, error) {
	st, err := storage.Open(ctx, storage.Config{
		Driver:      cfg.Storage.Driver,
		DSN:         cfg.Storage.DSN,
		DataDir:     cfg.DataDir,
		SkipMigrate: !cfg.Storage.AutoMigrate,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return st, nil
}

func (c *cli) close() error {
	if c.log != nil {
		_ = c.log.Sync()
	}
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
