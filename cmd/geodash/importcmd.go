package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/corpus"
	"github.com/cryptekbits/GeoDash/internal/geoerr"
	"github.com/cryptekbits/GeoDash/internal/store"
)

var (
	importCSVPath   string
	importBatchSize int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Run CorpusLoader against the configured (or overridden) CSV source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		rv, err := buildViper()
		if err != nil {
			return emit(nil, err)
		}
		if importCSVPath != "" {
			rv.Set("data.source_path", importCSVPath)
		}
		if importBatchSize > 0 {
			rv.Set("data.batch_size", importBatchSize)
		}
		cfg := config.New(rv)
		log := buildLogger()

		path := corpus.ResolveSource(cfg)
		if path == "" {
			return emit(nil, geoerr.Configuration("no corpus source configured (--csv-path or data.source_path)", nil))
		}
		f, err := os.Open(path)
		if err != nil {
			return emit(nil, geoerr.DataImport("opening corpus source", err))
		}
		defer f.Close()

		st, err := store.Open(ctx, config.DatabaseURI(cfg), store.PoolConfigFromView(cfg), log)
		if err != nil {
			return emit(nil, err)
		}
		defer st.Close()

		if err := st.EnsureSchema(ctx); err != nil {
			return emit(nil, err)
		}

		report, err := corpus.Load(ctx, f, st, cfg, log)
		return emit(report, err)
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv-path", "", "path to the city CSV source, overrides data.source_path")
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 0, "rows per insert batch, overrides data.batch_size (0 = config default)")
}
