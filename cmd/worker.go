package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/cidades-pipeline/internal/config"
	queuememory "github.com/JakeFAU/cidades-pipeline/internal/queue/memory"
)

// newWorkerCmd consumes stubs from the configured queue until interrupted.
func newWorkerCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume city stubs and run the detail stage for each",
		Long: `worker pulls stubs from the queue subscription and runs the detail stage
for each one. It stops on SIGINT/SIGTERM, or when an in-memory queue is closed
and drained.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := state.services()
			if err != nil {
				return err
			}
			if err := a.Config.RequireSubscription(); err != nil {
				return err
			}
			if err := a.Detail.Run(cmd.Context(), a.Queue); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run detail worker: %w", err)
			}
			return nil
		},
	}
}

// newRunCmd runs both stages in one process over the in-memory queue.
func newRunCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the directory stage, then drain the stubs through the detail stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := state.services()
			if err != nil {
				return err
			}
			q, ok := a.Queue.(*queuememory.Queue)
			if !ok || a.Config.Queue.Backend != config.BackendMemory {
				return fmt.Errorf("run requires the %q queue backend", config.BackendMemory)
			}

			result := a.Directory.Run(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), result.Body)
			q.Close()
			if err := a.Detail.Run(cmd.Context(), q); err != nil {
				return fmt.Errorf("run detail worker: %w", err)
			}
			if result.StatusCode >= 300 {
				return fmt.Errorf("directory stage failed with status %d", result.StatusCode)
			}
			return nil
		},
	}
}
