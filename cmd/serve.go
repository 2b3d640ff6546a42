package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/series-collector/internal/api"
)

// newServeCmd creates the 'serve' subcommand, which exposes the control API
// until the process is interrupted.
func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.Logger()
			if port == 0 {
				port = appInstance.Config().Server.Port
			}

			apiServer := api.NewServer(appInstance.Pipeline(), appInstance.Runs(), api.Options{
				Gatherer:   appInstance.Registry(),
				Middleware: []func(http.Handler) http.Handler{appInstance.Metrics().Middleware},
				NewID:      appInstance.NewRunID,
				Logger:     logger.Named("api"),
			})
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           apiServer.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server started", zap.Int("port", port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			var serveErr error
			select {
			case <-cmd.Context().Done():
				logger.Info("shutdown initiated")
			case serveErr = <-errCh:
				logger.Error("http server error", zap.Error(serveErr))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", zap.Error(err))
			}
			if err := apiServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("active run did not finish", zap.Error(err))
			}
			logger.Info("shutdown complete")
			if serveErr != nil {
				return fmt.Errorf("serve: %w", serveErr)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from server.port)")
	return cmd
}
