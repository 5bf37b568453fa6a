package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/bher20/utilitybill/internal/alerting"
	"github.com/bher20/utilitybill/internal/api"
	"github.com/bher20/utilitybill/internal/config"
	"github.com/bher20/utilitybill/internal/cron"
	"github.com/bher20/utilitybill/internal/history"
	"github.com/bher20/utilitybill/internal/storage"
	"github.com/bher20/utilitybill/internal/tariffs"
)

const lifecycleTimeout = 30 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON HTTP API (and the scheduled export, if configured)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := newServeApp(c.cfg, c.log)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			startCtx, startCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
			defer startCancel()
			if err := app.Start(startCtx); err != nil {
				if errors.Is(startCtx.Err(), context.DeadlineExceeded) {
					c.log.Error("application start timeout: storage is probably not reachable")
				}
				return err
			}

			<-ctx.Done()

			stopCtx, stopCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
			defer stopCancel()
			return app.Stop(stopCtx)
		},
	}
}

func newServeApp(cfg *config.Config, log *zap.Logger) *fx.App {
	return fx.New(
		fx.Supply(cfg, log),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(
			ProvideStorage,
			ProvideTariffs,
			ProvideHistory,
			ProvideMux,
		),
		fx.Invoke(startHTTPServer, startExportWorker),
	)
}

// ProvideStorage opens the configured backend and closes it on shutdown.
func ProvideStorage(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (storage.Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer cancel()
	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing storage")
			return st.Close()
		},
	})
	return st, nil
}

func ProvideTariffs(st storage.Storage, log *zap.Logger) *tariffs.Service {
	return tariffs.NewService(st, log)
}

func ProvideHistory(st storage.Storage, log *zap.Logger) *history.Service {
	return history.NewService(st, log)
}

func ProvideMux(cfg *config.Config, st storage.Storage, t *tariffs.Service, h *history.Service, log *zap.Logger) *http.ServeMux {
	return api.NewMux(api.Deps{Store: st, Tariffs: t, History: h, Log: log, ExportFont: cfg.Export.FontPath})
}

func startHTTPServer(lc fx.Lifecycle, cfg *config.Config, mux *http.ServeMux, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			log.Info("utilitybill listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
	})
	return srv
}

// startExportWorker runs the scheduled export when a schedule is set.
func startExportWorker(lc fx.Lifecycle, cfg *config.Config, h *history.Service, log *zap.Logger) {
	if cfg.Export.Schedule == "" {
		log.Info("scheduled export disabled")
		return
	}
	w := &cron.ExportWorker{
		Source:   h,
		Schedule: cfg.Export.Schedule,
		Dir:      cfg.Export.Dir,
		Format:   cfg.Export.Format,
		FontPath: cfg.Export.FontPath,
		Log:      log.Named("export"),
	}
	if cfg.Alert.WebhookURL != "" {
		w.Alerter = alerting.NewAlerter(alerting.AlertConfig{
			WebhookURL:  cfg.Alert.WebhookURL,
			WebhookType: cfg.Alert.WebhookType,
			MinFailures: cfg.Alert.MinFailures,
		}, log.Named("alerting"))
		log.Info("export failure alerts enabled", zap.Int("min_failures", cfg.Alert.MinFailures))
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				_ = w.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
