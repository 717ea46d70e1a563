package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database DatabaseConfig
	Index    IndexConfig
	Log      LogConfig
	Server   ServerConfig
	Defaults fingerprint.Options
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL (optional, fingerprints are also kept in the index file)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type IndexConfig struct {
	Path      string // Path of the persisted HNSW index (defaults to fingerprints.hnsw)
	Algorithm string // defaults to dct
	Metric    string // defaults to cosine
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

type ServerConfig struct {
	Port int // defaults to 8080
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

func loadDefaults() fingerprint.Options {
	var defaults fingerprint.Options
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return defaults
}

func Load() *Config {
	defaults := loadDefaults()
	defaults.DCT.EdgeLength = envInt("DCT_EDGE_LENGTH", defaults.DCT.EdgeLength)
	defaults.DCT.Keep = envInt("DCT_KEEP", defaults.DCT.Keep)
	grid := envInt("GOLDBERG_GRID", 0)
	if grid > 0 {
		defaults.Goldberg.GridHigh = grid
		defaults.Goldberg.GridWide = grid
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Index: IndexConfig{
			Path:      envString("FINGERPRINT_INDEX_PATH", "fingerprints.hnsw"),
			Algorithm: envString("FINGERPRINT_ALGORITHM", "dct"),
			Metric:    envString("FINGERPRINT_METRIC", "cosine"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "console"),
		},
		Server: ServerConfig{
			Port: envInt("PORT", 8080),
		},
		Defaults: defaults,
	}
}

// Fingerprint returns the vectorizer options, validating the algorithms
// that need a configuration.
func (c *Config) Fingerprint() (fingerprint.Options, error) {
	opts := c.Defaults
	if err := opts.DCT.Validate(); err != nil {
		return opts, err
	}
	if err := opts.Goldberg.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}
