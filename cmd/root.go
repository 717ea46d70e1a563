package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/photo-fingerprint/internal/config"
	"github.com/kozaktomas/photo-fingerprint/internal/logging"
)

// logger is built before every command runs; diagnostics go to stderr,
// command output stays on stdout.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "photo-fingerprint",
	Short: "Perceptual image fingerprints and similarity search",
	Long: `Photo Fingerprint computes perceptual fingerprints of images (a 2D DCT hash,
the Goldberg grid signature, an average hash and raw intensities) and finds
similar images through an HNSW index file or PostgreSQL with pgvector.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		level, format := mustGetString(cmd, "log-level"), mustGetString(cmd, "log-format")
		if level == "" {
			level = cfg.Log.Level
		}
		if format == "" {
			format = cfg.Log.Format
		}
		l, err := logging.New(level, format)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default $LOG_LEVEL or info)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console or json (default $LOG_FORMAT or console)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
