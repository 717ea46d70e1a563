package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/photo-fingerprint/internal/config"
	"github.com/kozaktomas/photo-fingerprint/internal/database"
	"github.com/kozaktomas/photo-fingerprint/internal/database/postgres"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the fingerprint index",
	Long: `Build and query a persisted HNSW index of image fingerprints.

The index file holds fingerprints of a single algorithm and metric. When
DATABASE_URL is set, fingerprints are also stored in PostgreSQL (pgvector).`,
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show metadata of the index file",
	Args:  cobra.NoArgs,
	RunE:  runIndexInfo,
}

var indexRemoveCmd = &cobra.Command{
	Use:   "remove <sha256>...",
	Short: "Remove images from the index by content hash",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexRemove,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexInfoCmd)
	indexCmd.AddCommand(indexRemoveCmd)

	indexCmd.PersistentFlags().String("index", "", "Index file path (default $FINGERPRINT_INDEX_PATH or fingerprints.hnsw)")
	indexCmd.PersistentFlags().String("algorithm", "", "Fingerprint algorithm (default $FINGERPRINT_ALGORITHM or dct)")
	indexCmd.PersistentFlags().String("metric", "", "Distance metric: cosine, euclidean, dot (default $FINGERPRINT_METRIC or cosine)")

	indexInfoCmd.Flags().Bool("json", false, "Output as JSON")
	indexRemoveCmd.Flags().Bool("no-db", false, "Do not remove from PostgreSQL even if DATABASE_URL is set")
}

// connectPostgres opens PostgreSQL and registers the fingerprint repository.
// Returns nils when DATABASE_URL is not set.
func connectPostgres(ctx context.Context, cfg *config.Config, metric database.Metric) (*postgres.Pool, *postgres.FingerprintRepository, error) {
	if cfg.Database.URL == "" {
		return nil, nil, nil
	}
	logger.Debug("connecting to PostgreSQL")
	pool, err := postgres.Open(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	repo := postgres.NewFingerprintRepository(pool, metric)
	database.RegisterPostgresBackend(func() database.FingerprintWriter { return repo })
	return pool, repo, nil
}

func runIndexInfo(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	path := indexPathFlag(cmd, cfg)

	metadata, err := database.LoadIndexMetadata(path)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(metadata)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Path:\t%s\n", path)
	fmt.Fprintf(w, "Build ID:\t%s\n", metadata.BuildID)
	fmt.Fprintf(w, "Algorithm:\t%s\n", metadata.Algorithm)
	fmt.Fprintf(w, "Metric:\t%s\n", metadata.Metric)
	fmt.Fprintf(w, "Dimensions:\t%d\n", metadata.Dim)
	fmt.Fprintf(w, "Fingerprints:\t%d\n", metadata.Count)
	fmt.Fprintf(w, "Built:\t%s\n", metadata.BuildTime.Local().Format(time.RFC3339))
	return w.Flush()
}

func runIndexRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()
	path := indexPathFlag(cmd, cfg)

	alg, err := algorithmFlag(cmd, cfg)
	if err != nil {
		return err
	}
	metric, err := metricFlag(cmd, cfg)
	if err != nil {
		return err
	}

	index, err := database.OpenFingerprintIndex(path, string(alg), metric)
	if err != nil {
		return err
	}

	if !mustGetBool(cmd, "no-db") {
		pool, _, err := connectPostgres(ctx, cfg, metric)
		if err != nil {
			return err
		}
		if pool != nil {
			defer pool.Close()
		}
	}

	removed := 0
	for _, sha := range args {
		if index.Delete(sha) {
			removed++
		}
		if database.IsInitialized() {
			writer, err := database.GetFingerprintWriter(ctx)
			if err != nil {
				return err
			}
			if err := writer.Delete(ctx, sha, string(alg)); err != nil {
				return err
			}
		}
	}

	if _, err := index.Save(path); err != nil {
		return err
	}
	logger.Info("removed fingerprints", zap.Int("removed", removed), zap.Int("remaining", index.Count()))
	fmt.Printf("Removed %d of %d images, %d remain in %s\n", removed, len(args), index.Count(), path)
	return nil
}
