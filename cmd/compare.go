package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-fingerprint/internal/config"
	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
	"github.com/kozaktomas/photo-fingerprint/internal/imageio"
)

var compareCmd = &cobra.Command{
	Use:   "compare <image-a> <image-b>",
	Short: "Compare two images with every fingerprint algorithm",
	Long: `Fingerprint both images with every algorithm and print their distances.

Cosine distance ranges from 0 (same direction) to 2, the normalized distance
|a-b| / (|a|+|b|) from 0 to 1. Hamming distance is reported for the average hash.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Bool("json", false, "Output as JSON")
}

// Comparison holds the distances of two images under one algorithm
type Comparison struct {
	Algorithm          fingerprint.Algorithm `json:"algorithm"`
	CosineDistance     float64               `json:"cosine_distance"`
	EuclideanDistance  float64               `json:"euclidean_distance"`
	NormalizedDistance float64               `json:"normalized_distance"`
	Hamming            *int                  `json:"hamming,omitempty"`
}

// CompareOutput is the JSON output of compare
type CompareOutput struct {
	A           string       `json:"a"`
	B           string       `json:"b"`
	SameImage   bool         `json:"same_image"`
	Comparisons []Comparison `json:"comparisons"`
}

func compareImages(opts fingerprint.Options, a, b *imageio.LoadedImage) ([]Comparison, error) {
	var out []Comparison
	for _, alg := range fingerprint.Algorithms() {
		v, err := fingerprint.NewVectorizer(alg, opts)
		if err != nil {
			return nil, err
		}
		va, err := v.Vectorize(a.Buffer)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Source, err)
		}
		vb, err := v.Vectorize(b.Buffer)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Source, err)
		}

		c := Comparison{
			Algorithm:          alg,
			CosineDistance:     fingerprint.CosineDistance(va, vb),
			EuclideanDistance:  fingerprint.EuclideanDistance(va, vb),
			NormalizedDistance: fingerprint.NormalizedDistance(va, vb),
		}
		if alg == fingerprint.AlgorithmMeanHash {
			h := fingerprint.HammingDistance(va, vb)
			c.Hamming = &h
		}
		out = append(out, c)
	}
	return out, nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	opts, err := cfg.Fingerprint()
	if err != nil {
		return fmt.Errorf("invalid fingerprint configuration: %w", err)
	}

	a, err := imageio.Load(args[0])
	if err != nil {
		return err
	}
	b, err := imageio.Load(args[1])
	if err != nil {
		return err
	}

	comparisons, err := compareImages(opts, a, b)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(CompareOutput{
			A:           args[0],
			B:           args[1],
			SameImage:   a.SHA256 == b.SHA256,
			Comparisons: comparisons,
		})
	}

	if a.SHA256 == b.SHA256 {
		fmt.Println("Both files decode to identical pixels.")
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALGORITHM\tCOSINE\tEUCLIDEAN\tNORMALIZED\tHAMMING")
	fmt.Fprintln(w, "---------\t------\t---------\t----------\t-------")
	for _, c := range comparisons {
		hamming := "-"
		if c.Hamming != nil {
			hamming = fmt.Sprintf("%d", *c.Hamming)
		}
		fmt.Fprintf(w, "%s\t%.4f\t%.2f\t%.4f\t%s\n",
			c.Algorithm, c.CosineDistance, c.EuclideanDistance, c.NormalizedDistance, hamming)
	}
	w.Flush()
	return nil
}
