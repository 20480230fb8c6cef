package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/catalog-loader/pkg/logging"
	"github.com/Sternrassler/catalog-loader/pkg/pagination"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func exportCommand(v *viper.Viper) *cobra.Command {
	var (
		pages       int
		concurrency int
		outPath     string
	)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch many catalog pages in parallel and write them out",
		Long: "Fetches up to --pages browse pages with a bounded worker pool and writes\n" +
			"the items in catalog order. Stops at the end of the catalog.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pages < 1 {
				return fmt.Errorf("--pages must be at least 1 (got %d)", pages)
			}
			start, err := pagination.NewCursor(v.GetInt(keyPageSize))
			if err != nil {
				return err
			}

			c, rdb, err := newClient(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer c.Close()
			if rdb != nil {
				defer rdb.Close()
			}

			logger := logging.NewLogger(logging.ComponentExport)
			prefetcher := pagination.NewPrefetcher(c, pagination.Config{
				MaxConcurrency: concurrency,
				Timeout:        v.GetDuration(keyTimeout),
			})

			began := time.Now()
			items, fetchErr := prefetcher.FetchPages(cmd.Context(), start, pages)
			logger.Info().
				Int("items", len(items)).
				Dur("duration", time.Since(began)).
				Msg("Export fetched")

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}

			if jsonOutput(v) || outPath != "" {
				err = printJSON(w, items)
			} else {
				err = printItems(w, items, true)
			}
			if err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			if fetchErr != nil {
				return fmt.Errorf("export incomplete: %w", fetchErr)
			}
			return nil
		},
	}
	exportCmd.Flags().IntVar(&pages, "pages", 5, "maximum number of pages")
	exportCmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel page requests")
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "write JSON to this file instead of stdout")

	return exportCmd
}
