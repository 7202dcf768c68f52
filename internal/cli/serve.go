package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/doulaboard/internal/wire"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the clients API over HTTP",
		Long: `Serve the local client database over HTTP:

  GET    /clients             client summaries
  GET    /clients/{id}        one client (?detailed=true includes PHI)
  POST   /clients             import a JSON array or object
  DELETE /clients/{id}        delete by id or alias
  GET    /health
  GET    /metrics             prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = wire.Config().ListenAddr
			}
			return serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from config)")
	return cmd
}

func serve(ctx context.Context, addr string) error {
	logger := wire.Logger()
	srv := &http.Server{
		Addr:              addr,
		Handler:           wire.HTTPServer().Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
