package cmd

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
	"go.uber.org/zap"

	"github.com/JakeFAU/media-inliner/internal/api"
)

// newServeCmd creates the 'serve' subcommand: the admin HTTP surface from
// §10.3, exposing /healthz, /metrics, and the job-trigger endpoint.
func newServeCmd() *cobra.Command {
	var port int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the admin HTTP surface",
		Long: `Starts an HTTP server exposing liveness, Prometheus metrics, and a
POST /v1/media-inliner/runs endpoint that triggers StartMediaInliner
synchronously on the request goroutine.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, port, timeout)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "port for the admin HTTP surface")
	cmd.Flags().DurationVar(&timeout, "run-timeout", 60*time.Second, "server-side timeout for a triggered run")

	return cmd
}

func runServe(cmd *cobra.Command, port int, timeout time.Duration) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	server := api.NewServer(appInstance, appInstance.GetLogger(), timeout)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appInstance.GetLogger().Info("admin HTTP surface listening", zap.Int("port", port))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		appInstance.GetLogger().Info("shutting down admin HTTP surface")
		if shutdownErr := httpServer.Shutdown(ctx); shutdownErr != nil {
			return fmt.Errorf("shutdown http server: %w", shutdownErr)
		}
		return nil
	}
}
