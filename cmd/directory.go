package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// newDirectoryCmd runs the directory stage once and prints its result.
func newDirectoryCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "directory",
		Short: "Scrape the city directory and enqueue one stub per city",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := state.services()
			if err != nil {
				return err
			}
			result := a.Directory.Run(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), result.Body)
			if result.StatusCode != http.StatusOK {
				return fmt.Errorf("directory stage failed with status %d", result.StatusCode)
			}
			return nil
		},
	}
}
