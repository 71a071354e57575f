// Package cmd defines the CLI for the cidades pipeline.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/app"
	"github.com/JakeFAU/cidades-pipeline/internal/config"
	"github.com/JakeFAU/cidades-pipeline/internal/logging"
	"github.com/JakeFAU/cidades-pipeline/internal/metrics"
	"github.com/JakeFAU/cidades-pipeline/internal/telemetry"
)

const serviceName = "cidades"

// appFactory builds the application services. Tests swap it to inject
// emulator client options or to seed backends.
type appFactory func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error)

func defaultFactory(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// rootState carries what the persistent hooks build for the subcommands.
type rootState struct {
	cfgFile string
	factory appFactory
	app     *app.App
	tracer  *sdktrace.TracerProvider
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd(state *rootState) *cobra.Command {
	if state.factory == nil {
		state.factory = defaultFactory
	}
	cmd := &cobra.Command{
		Use:   "cidades",
		Short: "Scrapes the Brazilian tourism city guide into stored detail records.",
		Long: `cidades runs the two-stage city pipeline. The directory stage lists every
city and enqueues one stub per city; the detail stage turns each stub into a
JSON record in the object store and fans listing links out to the enrichment
topic.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(state.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return err
			}
			metrics.Init()
			var tpOpts []sdktrace.TracerProviderOption
			if cfg.Telemetry.Exporter == config.ExporterGCP {
				exporter, err := telemetry.NewCloudTraceExporter(cfg.TelemetryProject())
				if err != nil {
					return err
				}
				tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
			}
			tp, err := telemetry.InitTracerProvider(cmd.Context(), serviceName, tpOpts...)
			if err != nil {
				return err
			}
			state.tracer = tp

			appInstance, err := state.factory(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			state.app = appInstance
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&state.cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newDirectoryCmd(state))
	cmd.AddCommand(newWorkerCmd(state))
	cmd.AddCommand(newRunCmd(state))
	cmd.AddCommand(newServeCmd(state))
	return cmd
}

// close shuts the services down. It runs whether or not the command failed.
func (s *rootState) close() {
	if s.tracer != nil {
		_ = s.tracer.Shutdown(context.Background())
		s.tracer = nil
	}
	if s.app == nil {
		return
	}
	logger := s.app.Logger
	if err := s.app.Close(); err != nil {
		logger.Warn("Failed to close application services", zap.Error(err))
	}
	_ = logger.Sync()
	s.app = nil
}

func (s *rootState) services() (*app.App, error) {
	if s.app == nil {
		return nil, errors.New("application services not initialized")
	}
	return s.app, nil
}

// Execute is the main entry point. It exits non-zero when the command fails.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	state := &rootState{}
	err := newRootCmd(state).ExecuteContext(ctx)
	state.close()
	stop()
	if err != nil {
		os.Exit(1)
	}
}
