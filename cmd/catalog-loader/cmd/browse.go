package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func browseCommand(v *viper.Viper) *cobra.Command {
	var pages int

	browseCmd := &cobra.Command{
		Use:   "browse",
		Short: "Load the first pages of the catalog",
		Long:  "Loads the first page of the catalog, then advances page by page as a scrolling reader would.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pages < 1 {
				return fmt.Errorf("--pages must be at least 1 (got %d)", pages)
			}

			s, err := newSession(cmd.Context(), v, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.controller.Start(cmd.Context()); err != nil {
				return err
			}
			s.controller.Wait()

			for i := 1; i < pages; i++ {
				if s.controller.Snapshot().Err != nil {
					break
				}
				if !s.controller.AdvancePage() {
					break
				}
				s.controller.Wait()
			}

			snap := s.controller.Snapshot()
			if err := printSnapshot(cmd.OutOrStdout(), v, snap); err != nil {
				return err
			}
			if snap.Err != nil {
				return fmt.Errorf("loading catalog: %w", snap.Err)
			}
			return nil
		},
	}
	browseCmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")

	return browseCmd
}
