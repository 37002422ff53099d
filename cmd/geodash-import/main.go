// Command geodash-import regenerates a GeoStore from a city CSV corpus and
// validates the result.
//
// Usage:
//
//	go run ./cmd/geodash-import --csv-path ./cities.csv --db-uri sqlite://./geodash-data/geodash.db
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/corpus"
	"github.com/cryptekbits/GeoDash/internal/logging"
	"github.com/cryptekbits/GeoDash/internal/store"
)

func main() {
	csvPath := flag.String("csv-path", "", "path to the city CSV source")
	dbURI := flag.String("db-uri", "sqlite://./geodash-data/geodash.db", "database URI")
	batchSize := flag.Int("batch-size", 5000, "rows per insert batch")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	fmt.Println("=== GeoDash Corpus Import ===")
	fmt.Println()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --csv-path is required")
		os.Exit(1)
	}

	log := logging.New(*debug)
	v := viper.New()
	v.Set("data.source_path", *csvPath)
	v.Set("data.batch_size", *batchSize)
	cfg := config.New(v)
	ctx := context.Background()

	fmt.Println("[1/2] Importing corpus...")
	if err := regenerate(ctx, *dbURI, cfg, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error importing corpus: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("      Rows written to %s\n", *dbURI)

	fmt.Println("[2/2] Validating import...")
	count, err := validate(ctx, *dbURI, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("=== Success ===")
	fmt.Printf("%d rows confirmed in the store.\n", count)
}

func regenerate(ctx context.Context, uri string, cfg config.View, log logging.Logger) error {
	f, err := os.Open(cfg.GetString("data.source_path"))
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := store.Open(ctx, uri, store.PoolConfigFromView(cfg), log)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	report, err := corpus.Load(ctx, f, st, cfg, log)
	if err != nil {
		return err
	}
	fmt.Printf("      parsed=%d inserted=%d rejected=%d batches=%d\n",
		report.Parsed, report.Inserted, report.Rejected, report.Batches)
	return nil
}

func validate(ctx context.Context, uri string, log logging.Logger) (int, error) {
	st, err := store.Open(ctx, uri, store.PoolConfigFromView(config.Defaults()), log)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	n, err := st.RowCount(ctx)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("store reports zero rows after import")
	}
	return n, nil
}
