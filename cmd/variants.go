package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/photo-fingerprint/internal/imageio"
)

var variantsCmd = &cobra.Command{
	Use:   "variants <image>...",
	Short: "Write modified copies of images for benchmarking",
	Long: `Write four variants of each image into sub-directories of --out:
  cropped/      90% centre crop
  grown/        scaled to 200%
  shrunk/       scaled to 50%
  reformatted/  re-encoded as PNG

Index the originals, then query with the variants to measure how robust an
algorithm is.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVariants,
}

func init() {
	rootCmd.AddCommand(variantsCmd)

	variantsCmd.Flags().String("out", "variants", "Output directory")
}

func runVariants(cmd *cobra.Command, args []string) error {
	outDir := mustGetString(cmd, "out")
	if outDir == "" {
		return errors.New("--out must not be empty")
	}

	var failed int
	for _, path := range args {
		written, err := imageio.GenerateVariants(path, outDir)
		if err != nil {
			logger.Warn("failed to generate variants", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}
		fmt.Println(path)
		for _, variant := range imageio.Variants() {
			fmt.Printf("  %-12s %s\n", variant, written[variant])
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(args))
	}
	return nil
}
