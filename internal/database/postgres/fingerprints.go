package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/photo-fingerprint/internal/database"
)

// FingerprintRepository provides PostgreSQL-backed fingerprint storage.
// Similarity search is an exact scan ordered by the pgvector operator of the metric.
type FingerprintRepository struct {
	pool   *Pool
	metric database.Metric
}

// NewFingerprintRepository creates a new PostgreSQL fingerprint repository
func NewFingerprintRepository(pool *Pool, metric database.Metric) *FingerprintRepository {
	return &FingerprintRepository{pool: pool, metric: metric}
}

// distanceOperator maps a metric to its pgvector operator. <#> is the
// negative inner product, matching database.MetricDot.
func distanceOperator(metric database.Metric) (string, error) {
	switch metric {
	case database.MetricCosine:
		return "<=>", nil
	case database.MetricEuclidean:
		return "<->", nil
	case database.MetricDot:
		return "<#>", nil
	default:
		return "", fmt.Errorf("%w: %q", database.ErrUnknownMetric, metric)
	}
}

const upsertFingerprint = `
	INSERT INTO fingerprints (sha256, algorithm, source, dim, embedding)
	VALUES ($1, $2, $3, $4, $5::vector)
	ON CONFLICT (sha256, algorithm) DO UPDATE SET
		source = EXCLUDED.source,
		dim = EXCLUDED.dim,
		embedding = EXCLUDED.embedding,
		created_at = NOW()
`

// Get retrieves a fingerprint, returns nil if not found
func (r *FingerprintRepository) Get(ctx context.Context, sha256, algorithm string) (*database.StoredFingerprint, error) {
	query := `
		SELECT sha256, algorithm, source, dim, embedding, created_at
		FROM fingerprints
		WHERE sha256 = $1 AND algorithm = $2
	`

	var fp database.StoredFingerprint
	var vec pgvector.Vector

	err := r.pool.QueryRow(ctx, query, sha256, algorithm).Scan(
		&fp.SHA256,
		&fp.Algorithm,
		&fp.Source,
		&fp.Dim,
		&vec,
		&fp.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query fingerprint: %w", err)
	}

	fp.Vector = vec.Slice()
	return &fp, nil
}

// Has checks if a fingerprint exists
func (r *FingerprintRepository) Has(ctx context.Context, sha256, algorithm string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM fingerprints WHERE sha256 = $1 AND algorithm = $2)",
		sha256, algorithm,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check fingerprint exists: %w", err)
	}
	return exists, nil
}

// Count returns the number of fingerprints stored for an algorithm
func (r *FingerprintRepository) Count(ctx context.Context, algorithm string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM fingerprints WHERE algorithm = $1", algorithm).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count fingerprints: %w", err)
	}
	return count, nil
}

// CountByHashes returns how many of the given image hashes have a fingerprint for the algorithm
func (r *FingerprintRepository) CountByHashes(ctx context.Context, algorithm string, hashes []string) (int, error) {
	if len(hashes) == 0 {
		return 0, nil
	}
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM fingerprints WHERE algorithm = $1 AND sha256 = ANY($2)",
		algorithm, pq.Array(hashes),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count fingerprints by hashes: %w", err)
	}
	return count, nil
}

// FindSimilar returns the nearest fingerprints of the same algorithm and dimension
func (r *FingerprintRepository) FindSimilar(ctx context.Context, algorithm string, vector []float32, limit int) ([]database.Match, error) {
	op, err := distanceOperator(r.metric)
	if err != nil {
		return nil, err
	}

	// The operator cannot be a bind parameter; it comes from the fixed table above.
	query := fmt.Sprintf(`
		SELECT sha256, source, embedding %s $1::vector AS distance
		FROM fingerprints
		WHERE algorithm = $2 AND dim = $3
		ORDER BY distance, sha256
		LIMIT $4
	`, op)

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(vector), algorithm, len(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("query similar fingerprints: %w", err)
	}
	defer rows.Close()

	var matches []database.Match
	for rows.Next() {
		var m database.Match
		if err := rows.Scan(&m.SHA256, &m.Source, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Similarity = r.metric.Similarity(m.Distance)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

// Save stores a fingerprint (upsert)
func (r *FingerprintRepository) Save(ctx context.Context, fp database.StoredFingerprint) error {
	_, err := r.pool.Exec(ctx, upsertFingerprint,
		fp.SHA256, fp.Algorithm, fp.Source, len(fp.Vector), pgvector.NewVector(fp.Vector))
	if err != nil {
		return fmt.Errorf("save fingerprint: %w", err)
	}
	return nil
}

// SaveBatch saves multiple fingerprints in a single transaction
func (r *FingerprintRepository) SaveBatch(ctx context.Context, fps []database.StoredFingerprint) error {
	if len(fps) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertFingerprint)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, fp := range fps {
		if _, err := stmt.ExecContext(ctx,
			fp.SHA256, fp.Algorithm, fp.Source, len(fp.Vector), pgvector.NewVector(fp.Vector),
		); err != nil {
			return fmt.Errorf("insert fingerprint %s: %w", fp.SHA256, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes the fingerprint of an image for an algorithm
func (r *FingerprintRepository) Delete(ctx context.Context, sha256, algorithm string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM fingerprints WHERE sha256 = $1 AND algorithm = $2", sha256, algorithm)
	if err != nil {
		return fmt.Errorf("delete fingerprint: %w", err)
	}
	return nil
}

var _ database.FingerprintWriter = (*FingerprintRepository)(nil)
