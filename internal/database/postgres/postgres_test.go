//go:build integration

package postgres

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/kozaktomas/photo-fingerprint/internal/config"
	"github.com/kozaktomas/photo-fingerprint/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := Open(ctx, cfg, zap.NewNop())
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open database: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}
	return pool, cleanup
}

func TestFingerprintRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewFingerprintRepository(pool, database.MetricCosine)

	t.Run("SaveAndGet", func(t *testing.T) {
		vector := make([]float32, 1024)
		for i := range vector {
			vector[i] = float32(i) / 1024.0
		}

		err := repo.Save(ctx, database.StoredFingerprint{
			SHA256: sha("a"), Algorithm: "dct", Source: "a.jpg", Vector: vector,
		})
		if err != nil {
			t.Fatalf("Failed to save fingerprint: %v", err)
		}

		got, err := repo.Get(ctx, sha("a"), "dct")
		if err != nil {
			t.Fatalf("Failed to get fingerprint: %v", err)
		}
		if got == nil {
			t.Fatal("Expected fingerprint, got nil")
		}
		if got.Source != "a.jpg" || got.Dim != 1024 || len(got.Vector) != 1024 {
			t.Errorf("Unexpected fingerprint: source=%s dim=%d len=%d", got.Source, got.Dim, len(got.Vector))
		}
		if got.CreatedAt.IsZero() {
			t.Error("CreatedAt should be set")
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := repo.Get(ctx, sha("a"), "goldberg")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil for other algorithm, got %+v", got)
		}
	})

	t.Run("SaveBatchAndCount", func(t *testing.T) {
		batch := []database.StoredFingerprint{
			{SHA256: sha("b"), Algorithm: "goldberg", Source: "b.jpg", Vector: []float32{1, 0, -1}},
			{SHA256: sha("c"), Algorithm: "goldberg", Source: "c.jpg", Vector: []float32{1, 1, -1}},
			{SHA256: sha("d"), Algorithm: "goldberg", Source: "d.jpg", Vector: []float32{-2, 2, 0}},
		}
		if err := repo.SaveBatch(ctx, batch); err != nil {
			t.Fatalf("SaveBatch failed: %v", err)
		}

		count, err := repo.Count(ctx, "goldberg")
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 3 {
			t.Errorf("Count = %d; want 3", count)
		}

		n, err := repo.CountByHashes(ctx, "goldberg", []string{sha("b"), sha("x")})
		if err != nil {
			t.Fatalf("CountByHashes failed: %v", err)
		}
		if n != 1 {
			t.Errorf("CountByHashes = %d; want 1", n)
		}

		has, err := repo.Has(ctx, sha("c"), "goldberg")
		if err != nil || !has {
			t.Errorf("Has = (%v, %v); want true", has, err)
		}
	})

	t.Run("FindSimilar", func(t *testing.T) {
		matches, err := repo.FindSimilar(ctx, "goldberg", []float32{1, 0, -1}, 2)
		if err != nil {
			t.Fatalf("FindSimilar failed: %v", err)
		}
		if len(matches) != 2 {
			t.Fatalf("FindSimilar returned %d matches; want 2", len(matches))
		}
		if matches[0].SHA256 != sha("b") || math.Abs(matches[0].Distance) > 1e-6 {
			t.Errorf("best match = %+v; want %s at distance 0", matches[0], sha("b"))
		}
		if matches[1].SHA256 != sha("c") {
			t.Errorf("second match = %s; want %s", matches[1].SHA256, sha("c"))
		}
		if math.Abs(matches[0].Similarity-1) > 1e-6 {
			t.Errorf("similarity = %v; want 1", matches[0].Similarity)
		}
	})

	t.Run("FindSimilarOtherMetrics", func(t *testing.T) {
		for _, metric := range []database.Metric{database.MetricEuclidean, database.MetricDot} {
			r := NewFingerprintRepository(pool, metric)
			matches, err := r.FindSimilar(ctx, "goldberg", []float32{1, 0, -1}, 3)
			if err != nil {
				t.Fatalf("%s: FindSimilar failed: %v", metric, err)
			}
			if len(matches) != 3 {
				t.Fatalf("%s: FindSimilar returned %d matches; want 3", metric, len(matches))
			}
			for i := 1; i < len(matches); i++ {
				if matches[i].Distance < matches[i-1].Distance {
					t.Errorf("%s: matches not ordered by distance: %+v", metric, matches)
				}
			}
		}
	})

	t.Run("FindSimilarIgnoresOtherDimensions", func(t *testing.T) {
		matches, err := repo.FindSimilar(ctx, "goldberg", []float32{1, 0}, 5)
		if err != nil {
			t.Fatalf("FindSimilar failed: %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("Expected no matches for a 2-dimensional query, got %d", len(matches))
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		err := repo.Save(ctx, database.StoredFingerprint{
			SHA256: sha("b"), Algorithm: "goldberg", Source: "renamed.jpg", Vector: []float32{0, 0, 1},
		})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, err := repo.Get(ctx, sha("b"), "goldberg")
		if err != nil || got == nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Source != "renamed.jpg" || got.Vector[2] != 1 {
			t.Errorf("Upsert did not replace the record: %+v", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, sha("b"), "goldberg"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		has, err := repo.Has(ctx, sha("b"), "goldberg")
		if err != nil {
			t.Fatalf("Has failed: %v", err)
		}
		if has {
			t.Error("Fingerprint should be deleted")
		}
	})
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}
	if len(applied) != 1 || applied[0] != "001_fingerprints.sql" {
		t.Errorf("applied migrations = %v; want [001_fingerprints.sql]", applied)
	}

	// Running again is a no-op.
	if err := pool.Migrate(ctx); err != nil {
		t.Errorf("second Migrate failed: %v", err)
	}
}

func sha(seed string) string {
	out := make([]byte, 64)
	for i := range out {
		out[i] = seed[0]
	}
	return string(out)
}
