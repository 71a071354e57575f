package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/api"
)

const shutdownTimeout = 10 * time.Second

// newServeCmd exposes the stages over HTTP for scheduler and push triggers.
func newServeCmd(state *rootState) *cobra.Command {
	var consume bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP triggers, health probes and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := state.services()
			if err != nil {
				return err
			}
			ctx, stop := context.WithCancel(cmd.Context())
			defer stop()

			if consume {
				if err := a.Config.RequireSubscription(); err != nil {
					return err
				}
				go func() {
					if err := a.Detail.Run(ctx, a.Queue); err != nil {
						a.Logger.Error("Detail worker stopped", zap.Error(err))
						stop()
					}
				}()
			}

			server := api.NewServer(a.Directory, a.Detail, a.Logger.Named("api"))
			srv := &http.Server{
				Addr:              net.JoinHostPort("", strconv.Itoa(a.Config.Server.Port)),
				Handler:           server.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			return serve(ctx, srv, server, a.Logger)
		},
	}
	cmd.Flags().BoolVar(&consume, "consume", false, "also pull stubs from the queue subscription")
	return cmd
}

// serve runs srv until ctx ends, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, server *api.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutdown initiated")
	server.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}
