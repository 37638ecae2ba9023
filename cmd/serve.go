package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ppesuite/internal/bootstrap"
	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
)

const cachePurgeInterval = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "initialize schema")
		}

		servers := []*http.Server{{
			Addr:              app.Config.HTTP.Address,
			Handler:           app.Handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       app.Config.HTTP.ReadTimeout,
			WriteTimeout:      app.Config.HTTP.WriteTimeout,
		}}
		if addr := app.Config.Metrics.Address; addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{Registry: app.Registry}))
			servers = append(servers, &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for _, srv := range servers {
			srv := srv
			group.Go(func() error {
				logging.Info(ctx, "http server listening", slog.String("address", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return errs.Wrapf(err, "listen on %s", srv.Addr)
				}
				return nil
			})
		}

		group.Go(func() error {
			purgeCache(groupCtx, app)
			return nil
		})

		group.Go(func() error {
			<-groupCtx.Done()
			logging.Info(ctx, "shutting down http servers")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.HTTP.ShutdownTimeout)
			defer cancel()
			var shutdownErr error
			for _, srv := range servers {
				if err := srv.Shutdown(shutdownCtx); err != nil {
					shutdownErr = errors.Join(shutdownErr, errs.Wrapf(err, "shutdown %s", srv.Addr))
				}
			}
			return shutdownErr
		})

		if err := group.Wait(); err != nil {
			logging.Error(ctx, "serve stopped with error", slog.Any("err", errs.Loggable(err)))
			return err
		}
		logging.Info(ctx, "serve stopped")
		return nil
	}),
}

func purgeCache(ctx context.Context, app *bootstrap.App) {
	if app.Cache == nil {
		return
	}
	ticker := time.NewTicker(cachePurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := app.Cache.Purge(ctx)
			if err != nil {
				logging.Warn(ctx, "purge expired cache entries failed", slog.Any("err", errs.Loggable(err)))
				continue
			}
			if purged > 0 {
				logging.Debug(ctx, "purged expired cache entries", slog.Int64("count", purged))
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
