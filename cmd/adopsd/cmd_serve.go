package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the ops API until interrupted",
	RunE:  runServe,
}

var serveNoScheduler bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "Serve the ops API without starting scheduled jobs")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Scheduler.Enabled && !serveNoScheduler {
		a.scheduler.Start()
		defer a.scheduler.Stop()
	} else {
		a.log.Info().Msg("scheduler disabled, jobs run only on demand")
	}

	return a.httpServer().ListenAndServe(ctx, a.cfg.HTTP.Addr)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
