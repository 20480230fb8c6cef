package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func searchCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "search [term]",
		Short: "Search the catalog",
		Long:  "Runs a single search query. Search results are not paginated.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), v, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			s.controller.SetSearchTerm(args[0])
			s.controller.Wait()

			snap := s.controller.Snapshot()
			if err := printSnapshot(cmd.OutOrStdout(), v, snap); err != nil {
				return err
			}
			if snap.Err != nil {
				return fmt.Errorf("searching %q: %w", args[0], snap.Err)
			}
			return nil
		},
	}
}
