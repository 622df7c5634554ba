package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"siteplan/internal/api"
	"siteplan/pkg/wbs"
)

func newServeCmd(o *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the WBS HTTP API",
		Long: `Serve the WBS HTTP API. Sessions are loaded per project on first request
and change events are streamed on /api/projects/{project}/wbs/stream.`,
		Args: cobra.NoArgs,
		RunE: withEnv(o, func(cmd *cobra.Command, e *env, _ []string) error {
			if addr == "" {
				addr = e.cfg.Server.Addr
			}
			bus := wbs.NewBus()
			registry := wbs.NewRegistry(e.store,
				wbs.WithPolicy(e.cfg.Policy()),
				wbs.WithBus(bus),
				wbs.WithLogger(e.logger),
			)
			srv := &http.Server{
				Addr:              addr,
				Handler:           api.New(registry, bus, e.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				e.logger.Info("wbs listening", "addr", addr, "store", e.cfg.Store.Driver)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			e.logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}
