package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-fingerprint/internal/config"
	"github.com/kozaktomas/photo-fingerprint/internal/database"
	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// This is appropriate for flags defined in init() - errors indicate programming bugs.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// algorithmFlag reads --algorithm, falling back to FINGERPRINT_ALGORITHM.
func algorithmFlag(cmd *cobra.Command, cfg *config.Config) (fingerprint.Algorithm, error) {
	name := mustGetString(cmd, "algorithm")
	if name == "" {
		name = cfg.Index.Algorithm
	}
	return fingerprint.ParseAlgorithm(name)
}

// metricFlag reads --metric, falling back to FINGERPRINT_METRIC.
func metricFlag(cmd *cobra.Command, cfg *config.Config) (database.Metric, error) {
	name := mustGetString(cmd, "metric")
	if name == "" {
		name = cfg.Index.Metric
	}
	return database.ParseMetric(name)
}

// indexPathFlag reads --index, falling back to FINGERPRINT_INDEX_PATH.
func indexPathFlag(cmd *cobra.Command, cfg *config.Config) string {
	if path := mustGetString(cmd, "index"); path != "" {
		return path
	}
	return cfg.Index.Path
}
