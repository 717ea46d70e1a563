package database

import (
	"context"
)

// IndexReader exposes a FingerprintIndex through the FingerprintReader
// interface so handlers can search either PostgreSQL or a local index file.
type IndexReader struct {
	index *FingerprintIndex
}

// NewIndexReader wraps an index.
func NewIndexReader(index *FingerprintIndex) *IndexReader {
	return &IndexReader{index: index}
}

// Get retrieves a fingerprint, returns nil for other algorithms or unknown images
func (r *IndexReader) Get(_ context.Context, sha256, algorithm string) (*StoredFingerprint, error) {
	if algorithm != r.index.Algorithm() {
		return nil, nil
	}
	return r.index.Get(sha256), nil
}

// Has checks if the image is indexed for the algorithm
func (r *IndexReader) Has(ctx context.Context, sha256, algorithm string) (bool, error) {
	fp, err := r.Get(ctx, sha256, algorithm)
	return fp != nil, err
}

// Count returns the number of indexed fingerprints for the algorithm
func (r *IndexReader) Count(_ context.Context, algorithm string) (int, error) {
	if algorithm != r.index.Algorithm() {
		return 0, nil
	}
	return r.index.Count(), nil
}

// FindSimilar searches the index. An empty index yields no matches.
func (r *IndexReader) FindSimilar(ctx context.Context, algorithm string, vector []float32, limit int) ([]Match, error) {
	if algorithm != r.index.Algorithm() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.index.Count() == 0 {
		return nil, nil
	}
	return r.index.Search(vector, limit)
}
