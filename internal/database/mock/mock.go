// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/photo-fingerprint/internal/database"
)

// MockFingerprintStore is an in-memory implementation of database.FingerprintWriter.
// FindSimilar is an exact scan using the configured metric.
type MockFingerprintStore struct {
	mu           sync.RWMutex
	fingerprints map[string]*database.StoredFingerprint
	metric       database.Metric

	// Error injection
	GetError         error
	CountError       error
	FindSimilarError error
	SaveError        error
	DeleteError      error
}

// NewMockFingerprintStore creates a new mock store using cosine distance
func NewMockFingerprintStore() *MockFingerprintStore {
	return &MockFingerprintStore{
		fingerprints: make(map[string]*database.StoredFingerprint),
		metric:       database.MetricCosine,
	}
}

func key(sha256, algorithm string) string {
	return algorithm + "/" + sha256
}

// AddFingerprint adds a fingerprint to the mock store
func (m *MockFingerprintStore) AddFingerprint(fp database.StoredFingerprint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fp.Dim = len(fp.Vector)
	m.fingerprints[key(fp.SHA256, fp.Algorithm)] = &fp
}

// Get retrieves a fingerprint
func (m *MockFingerprintStore) Get(_ context.Context, sha256, algorithm string) (*database.StoredFingerprint, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	fp, ok := m.fingerprints[key(sha256, algorithm)]
	if !ok {
		return nil, nil
	}
	cp := *fp
	return &cp, nil
}

// Has checks if a fingerprint exists
func (m *MockFingerprintStore) Has(ctx context.Context, sha256, algorithm string) (bool, error) {
	fp, err := m.Get(ctx, sha256, algorithm)
	return fp != nil, err
}

// Count returns the number of fingerprints for an algorithm
func (m *MockFingerprintStore) Count(_ context.Context, algorithm string) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, fp := range m.fingerprints {
		if fp.Algorithm == algorithm {
			count++
		}
	}
	return count, nil
}

// FindSimilar returns the closest fingerprints of the algorithm
func (m *MockFingerprintStore) FindSimilar(_ context.Context, algorithm string, vector []float32, limit int) ([]database.Match, error) {
	if m.FindSimilarError != nil {
		return nil, m.FindSimilarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []database.Match
	for _, fp := range m.fingerprints {
		if fp.Algorithm != algorithm {
			continue
		}
		dist := m.metric.Distance(vector, fp.Vector)
		matches = append(matches, database.Match{
			SHA256:     fp.SHA256,
			Source:     fp.Source,
			Distance:   dist,
			Similarity: m.metric.Similarity(dist),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].SHA256 < matches[j].SHA256
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Save stores a fingerprint
func (m *MockFingerprintStore) Save(_ context.Context, fp database.StoredFingerprint) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.AddFingerprint(fp)
	return nil
}

// SaveBatch stores multiple fingerprints
func (m *MockFingerprintStore) SaveBatch(ctx context.Context, fps []database.StoredFingerprint) error {
	for _, fp := range fps {
		if err := m.Save(ctx, fp); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a fingerprint
func (m *MockFingerprintStore) Delete(_ context.Context, sha256, algorithm string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fingerprints, key(sha256, algorithm))
	return nil
}

// Compile-time check
var _ database.FingerprintWriter = (*MockFingerprintStore)(nil)
