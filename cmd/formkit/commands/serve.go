package commands

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formkit/internal/store/sqlite"
	"github.com/goliatone/go-formkit/pkg/httpapi"
	"github.com/goliatone/go-formkit/pkg/registry"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	var (
		listen string
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve forms, options and detail views over HTTP",
		Example: `  # Serve the ./forms registry on :8080
  formkit serve

  # Reload declarations when files under the registry change
  formkit serve --watch --listen 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("listen") {
				a.cfg.Server.Listen = listen
			}
			if cmd.Flags().Changed("watch") {
				a.cfg.Registry.Watch = watch
			}
			return serve(ctx, a)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides server.listen")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the registry when its files change")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	opts := []httpapi.Option{
		httpapi.WithLogger(a.logger),
		httpapi.WithRequestObserver(a.metrics),
		httpapi.WithNotFound(sqlite.ErrNotFound),
	}
	if a.cfg.Server.Metrics {
		opts = append(opts, httpapi.WithMetricsHandler(a.metrics.Handler()))
	}
	srv := &http.Server{
		Addr:    a.cfg.Server.Listen,
		Handler: httpapi.New(a.engine, opts...),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info().Str("listen", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.logger.Info().Msg("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if a.cfg.Registry.Watch {
		watcher := registry.NewWatcher(a.cfg.Registry.Dir,
			registry.WithReloadDelay(a.cfg.Registry.ReloadDelay),
			registry.WithWatchLogger(a.logger),
		)
		g.Go(func() error {
			return watcher.Run(gctx, func(reg *registry.Registry) {
				a.engine.Reload(reg)
				if err := a.engine.Lint(); err != nil {
					a.logger.Warn().Err(err).Msg("reloaded registry has lint errors")
				}
			})
		})
	}
	return g.Wait()
}
