package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-fingerprint/internal/database"
	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// VersionInfo is the JSON form of `version --json`.
type VersionInfo struct {
	Version     string   `json:"version"`
	Commit      string   `json:"commit"`
	BuildDate   string   `json:"build_date"`
	IndexFormat int      `json:"index_format"`
	Algorithms  []string `json:"algorithms"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "Output as JSON")
}

func versionInfo() VersionInfo {
	info := VersionInfo{
		Version:     Version,
		Commit:      CommitSHA,
		BuildDate:   BuildDate,
		IndexFormat: database.IndexFormatVersion,
	}
	for _, alg := range fingerprint.Algorithms() {
		info.Algorithms = append(info.Algorithms, string(alg))
	}
	return info
}

func runVersion(cmd *cobra.Command, _ []string) error {
	info := versionInfo()
	if mustGetBool(cmd, "json") {
		return outputJSON(info)
	}

	fmt.Printf("photo-fingerprint %s\n", info.Version)
	fmt.Printf("  Commit:       %s\n", info.Commit)
	fmt.Printf("  Built:        %s\n", info.BuildDate)
	fmt.Printf("  Index format: v%d\n", info.IndexFormat)
	fmt.Printf("  Algorithms:   %v\n", info.Algorithms)
	return nil
}
