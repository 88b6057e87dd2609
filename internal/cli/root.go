// Package cli wires configuration, storage and the catalog into the
// stromdeals command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bher20/stromdeals/internal/config"
	"github.com/bher20/stromdeals/internal/logging"
)

// options is shared by every subcommand once the root has resolved config.
type options struct {
	cfgFile  string
	logLevel string
	cfg      config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "stromdeals",
		Short: "Compare Norwegian electricity contracts by estimated monthly cost.",
		Long: `stromdeals ingests electricity offers from a vendor feed or the bundled dataset,
normalizes their prices and ranks them by estimated monthly cost for a household.`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.stromdeals.yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.logLevel, "loglevel", "l", "", "Set log level. Available: debug, info, warn, error, fatal")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newWorkerCmd(opts),
		newRefreshCmd(opts),
		newOffersCmd(opts),
		newMigrateCmd(opts),
	)
	return rootCmd
}

// load reads the config file and environment, then configures logging.
func (o *options) load(cmd *cobra.Command) error {
	v := config.New()
	if err := config.ReadFile(v, o.cfgFile); err != nil {
		return err
	}
	if cmd.Flags().Changed("loglevel") {
		v.Set("log.level", o.logLevel)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	if err := logging.SetFormat(cfg.Log.Format); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
