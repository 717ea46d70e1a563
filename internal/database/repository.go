package database

import (
	"context"
)

// FingerprintReader provides read-only access to stored fingerprints
type FingerprintReader interface {
	// Get retrieves a fingerprint by image hash and algorithm, returns nil if not found
	Get(ctx context.Context, sha256, algorithm string) (*StoredFingerprint, error)
	// Has checks if a fingerprint exists for the given image hash and algorithm
	Has(ctx context.Context, sha256, algorithm string) (bool, error)
	// Count returns the number of fingerprints stored for an algorithm
	Count(ctx context.Context, algorithm string) (int, error)
	// FindSimilar returns the nearest fingerprints of the same algorithm, closest first
	FindSimilar(ctx context.Context, algorithm string, vector []float32, limit int) ([]Match, error)
}

// FingerprintWriter provides write access to stored fingerprints
type FingerprintWriter interface {
	FingerprintReader

	// Save stores a fingerprint, replacing one with the same hash and algorithm
	Save(ctx context.Context, fp StoredFingerprint) error
	// SaveBatch stores multiple fingerprints in a single transaction
	SaveBatch(ctx context.Context, fps []StoredFingerprint) error
	// Delete removes the fingerprint of an image for an algorithm
	Delete(ctx context.Context, sha256, algorithm string) error
}
