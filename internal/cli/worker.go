package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWorkerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the periodic refresh from the vendor API",
		Long: `Run the refresh loop. refresh.interval is either a number of seconds or a
standard five-field cron expression. On postgres an advisory lock keeps
concurrent workers from refreshing at the same time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.worker().Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func newRefreshCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the vendor feed once and store it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.worker().RunOnce(cmd.Context())
		},
	}
}
