package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReindexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Drop and rebuild the search index with the configured dimensions",
		Long: "Drops the card search index and creates it again from store.image_dimensions,\n" +
			"store.caption_dimensions and store.vector_algorithm. Stored cards are kept\n" +
			"and re-indexed by the store in the background.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			existed, err := a.cards.RecreateIndex(ctx)
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			a.logger.Info("Search index rebuilt",
				zap.String("index", a.cards.IndexName()),
				zap.Bool("replaced", existed),
				zap.String("algorithm", a.cfg.Store.VectorAlgorithm),
			)
			return nil
		},
	}
}
