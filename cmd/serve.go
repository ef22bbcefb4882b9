package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlfredBerg/rootdata-sync/internal/trigger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "The address the trigger listens on.")
	serveCmd.Flags().Duration("shutdown-grace", 30*time.Second, "How long an in-flight request may take to finish on shutdown.")
	cobra.CheckErr(viper.BindPFlag("trigger.addr", serveCmd.Flags().Lookup("addr")))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP cron trigger that runs a pass per authorised POST",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.Trigger.Secret == "" {
			return errors.New("trigger.secret (CRON_SECRET) is required to serve the trigger")
		}
		grace, err := cmd.Flags().GetDuration("shutdown-grace")
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := trigger.New(a.runner, trigger.Options{
			Secret: a.cfg.Trigger.Secret,
			Path:   a.cfg.Trigger.Path,
		}, a.logger.Named("trigger"))
		return srv.ListenAndServe(ctx, a.cfg.Trigger.Addr, grace)
	},
}
