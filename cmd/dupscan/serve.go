package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/viant/sqlite-dedup/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job worker and the metrics endpoint",
	Long: `Consume duplicate detection jobs from the configured queue, enqueue the
scheduled scan-all job, and serve /metrics and /healthz.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := &http.Server{
			Addr:              svc.Config.Metrics.Addr,
			Handler:           metrics.NewRouter(svc.Registry, svc.Store.DB()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return svc.Runner.Run(gctx) })
		if server.Addr != "" {
			g.Go(func() error {
				svc.Logger.Info().Str("addr", server.Addr).Msg("metrics listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
		}
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
