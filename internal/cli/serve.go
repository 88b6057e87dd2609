package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bher20/stromdeals/internal/api"
	"github.com/bher20/stromdeals/internal/logging"
)

func newServeCmd(opts *options) *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if withWorker {
				go func() {
					if err := a.worker().Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logging.For("cli").WithError(err).Error("refresh worker stopped")
					}
				}()
			}

			srv := &http.Server{
				Addr:              ":" + opts.cfg.Port,
				Handler:           api.NewMux(a.svc, a.store, logging.Log),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return listen(ctx, srv)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "Also run the refresh worker in this process")
	return cmd
}

// listen serves until ctx is cancelled, then shuts the server down gracefully.
func listen(ctx context.Context, srv *http.Server) error {
	log := logging.For("cli")
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("stromdeals listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
