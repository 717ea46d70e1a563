package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/photo-fingerprint/internal/config"
	"github.com/kozaktomas/photo-fingerprint/internal/database"
	"github.com/kozaktomas/photo-fingerprint/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

Endpoints:
  GET  /api/v1/health
  GET  /api/v1/algorithms
  POST /api/v1/fingerprints?algorithm=dct   (multipart field "file")
  POST /api/v1/search?limit=10              (multipart field "file")
  GET  /api/v1/stats

Search uses PostgreSQL when DATABASE_URL is set, otherwise the index file.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default $PORT or 8080)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("index", "", "Index file path (default $FINGERPRINT_INDEX_PATH or fingerprints.hnsw)")
	serveCmd.Flags().String("algorithm", "", "Fingerprint algorithm (default $FINGERPRINT_ALGORITHM or dct)")
	serveCmd.Flags().String("metric", "", "Distance metric (default $FINGERPRINT_METRIC or cosine)")
	serveCmd.Flags().String("allowed-origins", os.Getenv("WEB_ALLOWED_ORIGINS"), "Comma-separated CORS origins")
}

// openServeReader picks PostgreSQL when configured, the index file otherwise.
func openServeReader(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (database.FingerprintReader, func(), error) {
	alg, err := algorithmFlag(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	metric, err := metricFlag(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}

	pool, _, err := connectPostgres(ctx, cfg, metric)
	if err != nil {
		return nil, nil, err
	}
	if pool != nil {
		reader, err := database.GetFingerprintReader(ctx)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("searching PostgreSQL")
		return reader, func() { pool.Close() }, nil
	}

	path := indexPathFlag(cmd, cfg)
	index, err := database.OpenFingerprintIndex(path, string(alg), metric)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("searching index file", zap.String("path", path), zap.Int("fingerprints", index.Count()))
	return database.NewIndexReader(index), func() {}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts, err := cfg.Fingerprint()
	if err != nil {
		return fmt.Errorf("invalid fingerprint configuration: %w", err)
	}
	alg, err := algorithmFlag(cmd, cfg)
	if err != nil {
		return err
	}

	reader, closeReader, err := openServeReader(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer closeReader()

	port := mustGetInt(cmd, "port")
	if port == 0 {
		port = cfg.Server.Port
	}

	server, err := web.NewServer(web.Options{
		Host:           mustGetString(cmd, "host"),
		Port:           port,
		Fingerprint:    opts,
		Algorithm:      alg,
		Reader:         reader,
		AllowedOrigins: mustGetString(cmd, "allowed-origins"),
	}, logger)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Printf("Photo Fingerprint API listening on http://%s:%d\n", mustGetString(cmd, "host"), port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
