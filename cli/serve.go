package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"library-circulation/api"
)

const (
	shutdownTimeout    = 10 * time.Second
	limiterSweepPeriod = 5 * time.Minute
)

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&a.port, "port", "", "listen port (default from SERVER_PORT)")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests.
func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	srv := api.NewServer(a.lm, api.Config{
		TokenSecret:        cfg.Auth.TokenSecret,
		TokenTTL:           cfg.Auth.TokenTTL,
		LoginRatePerMinute: cfg.Auth.LoginRatePerMinute,
		CORSOrigins:        cfg.Server.CORSOrigins,
	}, a.log, a.metrics)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Starting server", "addr", httpSrv.Addr, "env", cfg.App.Environment, "driver", cfg.Database.Driver)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ticker := time.NewTicker(limiterSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ticker.C:
			if n := srv.SweepLimiters(); n > 0 {
				a.log.Debug("swept idle login limiters", "count", n)
			}
		case <-ctx.Done():
			a.log.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			a.log.Info("Server stopped")
			return nil
		}
	}
}
