package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/photo-fingerprint/internal/config"
	"github.com/kozaktomas/photo-fingerprint/internal/constants"
	"github.com/kozaktomas/photo-fingerprint/internal/database"
	"github.com/kozaktomas/photo-fingerprint/internal/database/postgres"
	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
	"github.com/kozaktomas/photo-fingerprint/internal/imageio"
)

var indexAddCmd = &cobra.Command{
	Use:   "add <image>...",
	Short: "Fingerprint images and add them to the index",
	Long: `Fingerprint images and upsert them into the index file, and into PostgreSQL
when DATABASE_URL is set. Images already in the index are skipped unless --force
is given. The index is saved periodically, so an interrupted run can be resumed.

Examples:
  # Index photos with the Goldberg signature (8 concurrent workers)
  photo-fingerprint index add --algorithm goldberg photos/*.jpg

  # Use a different index file and more workers
  photo-fingerprint index add --index dct.hnsw --concurrency 16 photos/*.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndexAdd,
}

func init() {
	indexCmd.AddCommand(indexAddCmd)

	indexAddCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of parallel workers")
	indexAddCmd.Flags().Bool("force", false, "Recompute fingerprints of images already in the index")
	indexAddCmd.Flags().Bool("no-db", false, "Do not store fingerprints in PostgreSQL even if DATABASE_URL is set")
}

// indexAddStats counts the outcome of an index add run
type indexAddStats struct {
	added, skipped, failed int
	hashes                 []string // distinct, in the order first seen
	errs                   []error
}

func runIndexAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()
	path := indexPathFlag(cmd, cfg)
	concurrency := max(1, mustGetInt(cmd, "concurrency"))
	force := mustGetBool(cmd, "force")

	alg, err := algorithmFlag(cmd, cfg)
	if err != nil {
		return err
	}
	metric, err := metricFlag(cmd, cfg)
	if err != nil {
		return err
	}
	v, err := newVectorizer(cfg, alg, false)
	if err != nil {
		return err
	}

	index, err := database.OpenFingerprintIndex(path, string(alg), metric)
	if err != nil {
		return err
	}
	fmt.Printf("Fingerprints in index: %d\n", index.Count())

	var repo *postgres.FingerprintRepository
	var writer database.FingerprintWriter
	if !mustGetBool(cmd, "no-db") {
		pool, r, err := connectPostgres(ctx, cfg, metric)
		if err != nil {
			return err
		}
		if pool != nil {
			defer pool.Close()
			repo, writer = r, r
			count, err := repo.Count(ctx, string(alg))
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprints in PostgreSQL: %d\n", count)
		}
	}

	bar := progressbar.NewOptions(len(args),
		progressbar.OptionSetDescription("Computing fingerprints"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	stats := addImages(ctx, index, v, writer, args, concurrency, force, func() {
		bar.Add(1)
	}, func() {
		if _, err := index.Save(path); err != nil {
			logger.Warn("failed to save index", zap.String("path", path), zap.Error(err))
		}
	})
	fmt.Println()

	metadata, err := index.Save(path)
	if err != nil {
		return err
	}

	for _, e := range stats.errs {
		logger.Warn("image skipped", zap.Error(e))
	}
	fmt.Printf("\nCompleted: %d added, %d skipped, %d errors\n", stats.added, stats.skipped, stats.failed)
	fmt.Printf("Index %s: %d fingerprints (%s, %d dimensions, %s)\n",
		path, metadata.Count, metadata.Algorithm, metadata.Dim, metadata.Metric)

	if repo != nil {
		stored, err := repo.CountByHashes(ctx, string(alg), stats.hashes)
		if err != nil {
			return err
		}
		fmt.Printf("Stored in PostgreSQL: %d of %d\n", stored, len(stats.hashes))
	}
	return nil
}

// addImages fingerprints the images with a bounded worker pool and upserts
// them into the index and, when writer is not nil, into the writer.
// progress is called once per image; checkpoint every IndexSaveInterval additions.
func addImages(
	ctx context.Context, index *database.FingerprintIndex, v fingerprint.Vectorizer, writer database.FingerprintWriter,
	paths []string, concurrency int, force bool, progress, checkpoint func(),
) indexAddStats {
	var stats indexAddStats
	var mu, saveMu sync.Mutex
	seen := make(map[string]bool)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	fail := func(err error) {
		mu.Lock()
		stats.failed++
		stats.errs = append(stats.errs, err)
		mu.Unlock()
		progress()
	}

	for _, path := range paths {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			img, err := imageio.Load(p)
			if err != nil {
				fail(err)
				return
			}

			mu.Lock()
			if !seen[img.SHA256] {
				seen[img.SHA256] = true
				stats.hashes = append(stats.hashes, img.SHA256)
			}
			mu.Unlock()

			if !force && index.Get(img.SHA256) != nil {
				mu.Lock()
				stats.skipped++
				mu.Unlock()
				progress()
				return
			}

			vec, err := v.Vectorize(img.Buffer)
			if err != nil {
				fail(fmt.Errorf("%s: %w", p, err))
				return
			}
			fp := database.StoredFingerprint{
				SHA256:    img.SHA256,
				Algorithm: string(v.Algorithm()),
				Source:    img.Source,
				Vector:    vec,
			}

			if err := index.Upsert(fp); err != nil {
				fail(fmt.Errorf("%s: %w", p, err))
				return
			}
			if writer != nil {
				if err := writer.Save(ctx, fp); err != nil {
					fail(fmt.Errorf("%s: %w", p, err))
					return
				}
			}

			mu.Lock()
			stats.added++
			save := stats.added%constants.IndexSaveInterval == 0
			mu.Unlock()
			if save {
				saveMu.Lock()
				checkpoint()
				saveMu.Unlock()
			}
			progress()
		}(path)
	}

	wg.Wait()
	return stats
}
