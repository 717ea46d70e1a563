package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-fingerprint/internal/config"
	"github.com/kozaktomas/photo-fingerprint/internal/constants"
	"github.com/kozaktomas/photo-fingerprint/internal/database"
	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
)

var indexQueryCmd = &cobra.Command{
	Use:   "query <image>",
	Short: "Find the indexed images most similar to an image",
	Long: `Fingerprint an image and list its nearest neighbours.

The index file is searched by default; --postgres searches PostgreSQL instead.
With the cosine metric, matches closer than the duplicate threshold are flagged.

Examples:
  photo-fingerprint index query photo.jpg
  photo-fingerprint index query --limit 5 --json photo.jpg
  photo-fingerprint index query --postgres --algorithm goldberg photo.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexQuery,
}

func init() {
	indexCmd.AddCommand(indexQueryCmd)

	indexQueryCmd.Flags().Int("limit", constants.DefaultSearchLimit, "Maximum number of results")
	indexQueryCmd.Flags().Bool("postgres", false, "Search PostgreSQL instead of the index file")
	indexQueryCmd.Flags().Bool("json", false, "Output as JSON")
}

// QueryOutput is the JSON output of index query
type QueryOutput struct {
	Source    string           `json:"source"`
	SHA256    string           `json:"sha256"`
	Algorithm string           `json:"algorithm"`
	Metric    database.Metric  `json:"metric"`
	Matches   []database.Match `json:"matches"`
}

// openQueryReader returns the reader to search and the algorithm its fingerprints use.
func openQueryReader(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (database.FingerprintReader, fingerprint.Algorithm, database.Metric, func(), error) {
	alg, err := algorithmFlag(cmd, cfg)
	if err != nil {
		return nil, "", "", nil, err
	}
	metric, err := metricFlag(cmd, cfg)
	if err != nil {
		return nil, "", "", nil, err
	}

	if mustGetBool(cmd, "postgres") {
		pool, _, err := connectPostgres(ctx, cfg, metric)
		if err != nil {
			return nil, "", "", nil, err
		}
		if pool == nil {
			return nil, "", "", nil, fmt.Errorf("--postgres requires DATABASE_URL")
		}
		reader, err := database.GetFingerprintReader(ctx)
		if err != nil {
			pool.Close()
			return nil, "", "", nil, err
		}
		return reader, alg, metric, func() { pool.Close() }, nil
	}

	// The index file knows its own algorithm and metric.
	index, err := database.LoadFingerprintIndex(indexPathFlag(cmd, cfg))
	if err != nil {
		return nil, "", "", nil, err
	}
	alg, err = fingerprint.ParseAlgorithm(index.Algorithm())
	if err != nil {
		return nil, "", "", nil, err
	}
	return database.NewIndexReader(index), alg, index.Metric(), func() {}, nil
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()
	limit := mustGetInt(cmd, "limit")
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	reader, alg, metric, closeReader, err := openQueryReader(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer closeReader()

	v, err := newVectorizer(cfg, alg, false)
	if err != nil {
		return err
	}
	fp, err := fingerprintFile(v, args[0])
	if err != nil {
		return err
	}

	matches, err := reader.FindSimilar(ctx, string(alg), fp.Vector, limit)
	if err != nil {
		return fmt.Errorf("searching similar images: %w", err)
	}

	if mustGetBool(cmd, "json") {
		if matches == nil {
			matches = []database.Match{}
		}
		return outputJSON(QueryOutput{
			Source:    args[0],
			SHA256:    fp.SHA256,
			Algorithm: string(alg),
			Metric:    metric,
			Matches:   matches,
		})
	}

	if len(matches) == 0 {
		fmt.Println("No similar images found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSOURCE\tSHA256\tDISTANCE\tSIMILARITY\t")
	fmt.Fprintln(w, "-\t------\t------\t--------\t----------\t")
	for i, m := range matches {
		flag := ""
		if m.SHA256 == fp.SHA256 {
			flag = "same pixels"
		} else if isDuplicate(metric, m) {
			flag = "duplicate"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.4f\t%.4f\t%s\n", i+1, m.Source, shortHash(m.SHA256), m.Distance, m.Similarity, flag)
	}
	w.Flush()
	fmt.Printf("\nTotal: %d matches (%s, %s)\n", len(matches), alg, metric)
	return nil
}

// isDuplicate reports whether a cosine match is close enough to be the same picture.
func isDuplicate(metric database.Metric, m database.Match) bool {
	return metric == database.MetricCosine && m.Distance <= constants.DefaultDuplicateThreshold
}

func shortHash(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
