package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/photo-fingerprint/internal/config"
)

var computeCmd = &cobra.Command{
	Use:   "compute <image>...",
	Short: "Print the fingerprint of images",
	Long: `Decode each image and print its fingerprint.

Examples:
  # DCT fingerprint (1024 values)
  photo-fingerprint compute photo.jpg

  # Goldberg signature with one slot per neighbour, as JSON
  photo-fingerprint compute --algorithm goldberg --fixed-length --json a.jpg b.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompute,
}

func init() {
	rootCmd.AddCommand(computeCmd)

	computeCmd.Flags().String("algorithm", "", "Fingerprint algorithm: dct, goldberg, phash, intensity (default $FINGERPRINT_ALGORITHM or dct)")
	computeCmd.Flags().Bool("json", false, "Output as JSON")
	computeCmd.Flags().Bool("fixed-length", false, "Pad Goldberg signatures to 8 slots per grid point")
}

// ComputeResult is the JSON output of compute
type ComputeResult struct {
	Source    string    `json:"source"`
	SHA256    string    `json:"sha256"`
	Algorithm string    `json:"algorithm"`
	Dim       int       `json:"dim"`
	Vector    []float32 `json:"vector"`
}

func runCompute(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	jsonOutput := mustGetBool(cmd, "json")

	alg, err := algorithmFlag(cmd, cfg)
	if err != nil {
		return err
	}
	v, err := newVectorizer(cfg, alg, mustGetBool(cmd, "fixed-length"))
	if err != nil {
		return err
	}

	results := make([]ComputeResult, 0, len(args))
	for _, path := range args {
		fp, err := fingerprintFile(v, path)
		if err != nil {
			return err
		}
		logger.Debug("computed fingerprint", zap.String("path", path), zap.String("sha256", fp.SHA256))
		results = append(results, ComputeResult{
			Source:    path,
			SHA256:    fp.SHA256,
			Algorithm: fp.Algorithm,
			Dim:       fp.Dim,
			Vector:    fp.Vector,
		})
	}

	if jsonOutput {
		return outputJSON(results)
	}
	for _, r := range results {
		fmt.Printf("%s  %s  %s[%d]\n", r.Source, r.SHA256, r.Algorithm, r.Dim)
		fmt.Println(formatVector(r.Vector))
	}
	return nil
}

// formatVector joins the values with single spaces in their shortest form.
func formatVector(vec []float32) string {
	parts := make([]string, len(vec))
	for i, x := range vec {
		parts[i] = strconv.FormatFloat(float64(x), 'g', -1, 32)
	}
	return strings.Join(parts, " ")
}
