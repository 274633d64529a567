package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowstream/pkg/flowstream/scheduler"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept events over HTTP and keep the index current",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings := root.settings
			if addr != "" {
				settings.HTTP.Addr = addr
				if err := settings.Validate(); err != nil {
					return err
				}
			}
			logger := root.logger

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := scheduler.NewTicker(ctx, scheduler.WithLogger(logger))
			defer sched.Stop()

			a, err := newApp(settings, logger, sched)
			if err != nil {
				return err
			}
			a.start(ctx)

			gin.SetMode(gin.ReleaseMode)
			srv := &http.Server{
				Addr:              settings.HTTP.Addr,
				Handler:           a.router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", slog.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			var serveErr error
			select {
			case <-ctx.Done():
			case serveErr = <-errCh:
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", slog.String("error", err.Error()))
			}
			sched.Stop()
			if err := a.close(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
			}

			if serveErr != nil {
				return fmt.Errorf("serve %s: %w", settings.HTTP.Addr, serveErr)
			}
			logger.Info("stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "override http.addr")
	return cmd
}
