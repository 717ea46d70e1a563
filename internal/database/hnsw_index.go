package database

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// FingerprintIndex wraps an HNSW graph of fingerprints produced by a single
// algorithm. Nodes are keyed by image SHA-256.
type FingerprintIndex struct {
	graph     *hnsw.Graph[string]
	records   map[string]*StoredFingerprint
	algorithm string
	metric    Metric
	dim       int
	mu        sync.RWMutex
}

// NewFingerprintIndex creates a new empty index. The dimension is fixed by
// the first fingerprint added.
func NewFingerprintIndex(algorithm string, metric Metric) *FingerprintIndex {
	return &FingerprintIndex{
		records:   make(map[string]*StoredFingerprint),
		algorithm: algorithm,
		metric:    metric,
	}
}

func newGraph(metric Metric) *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = metric.hnswDistance()
	return g
}

// Algorithm returns the algorithm whose fingerprints the index holds.
func (x *FingerprintIndex) Algorithm() string { return x.algorithm }

// Metric returns the distance metric of the index.
func (x *FingerprintIndex) Metric() Metric { return x.metric }

// Dim returns the vector dimension, 0 while the index is empty.
func (x *FingerprintIndex) Dim() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Count returns the number of indexed fingerprints.
func (x *FingerprintIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// Upsert adds a fingerprint, replacing any earlier one for the same image.
func (x *FingerprintIndex) Upsert(fp StoredFingerprint) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.upsertLocked(fp)
}

// UpsertBatch adds several fingerprints, stopping at the first invalid one.
func (x *FingerprintIndex) UpsertBatch(fps []StoredFingerprint) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for i := range fps {
		if err := x.upsertLocked(fps[i]); err != nil {
			return fmt.Errorf("fingerprint %s: %w", fps[i].SHA256, err)
		}
	}
	return nil
}

func (x *FingerprintIndex) upsertLocked(fp StoredFingerprint) error {
	if fp.SHA256 == "" {
		return errors.New("fingerprint has no image hash")
	}
	if fp.Algorithm != x.algorithm {
		return fmt.Errorf("%w: index holds %s, got %s", ErrAlgorithmMismatch, x.algorithm, fp.Algorithm)
	}
	if len(fp.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	if x.dim != 0 && len(fp.Vector) != x.dim {
		return fmt.Errorf("%w: index has %d dimensions, got %d", ErrDimensionMismatch, x.dim, len(fp.Vector))
	}

	if x.graph == nil {
		x.graph = newGraph(x.metric)
	}
	if _, exists := x.records[fp.SHA256]; exists {
		x.graph.Delete(fp.SHA256)
	}

	fp.Vector = append([]float32(nil), fp.Vector...)
	fp.Dim = len(fp.Vector)
	if fp.CreatedAt.IsZero() {
		fp.CreatedAt = time.Now().UTC()
	}

	x.graph.Add(hnsw.MakeNode(fp.SHA256, fp.Vector))
	x.records[fp.SHA256] = &fp
	x.dim = fp.Dim
	return nil
}

// Get returns the fingerprint of an image, or nil.
func (x *FingerprintIndex) Get(sha256 string) *StoredFingerprint {
	x.mu.RLock()
	defer x.mu.RUnlock()

	fp, ok := x.records[sha256]
	if !ok {
		return nil
	}
	cp := *fp
	return &cp
}

// Delete removes an image from the index. Returns false if it was not indexed.
func (x *FingerprintIndex) Delete(sha256 string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.records[sha256]; !ok {
		return false
	}
	x.graph.Delete(sha256)
	delete(x.records, sha256)
	if len(x.records) == 0 {
		x.graph = nil
		x.dim = 0
	}
	return true
}

// Search finds the k nearest fingerprints to the query vector, closest first.
func (x *FingerprintIndex) Search(query []float32, k int) ([]Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		return nil, ErrIndexNotInitialized
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: index has %d dimensions, query has %d", ErrDimensionMismatch, x.dim, len(query))
	}
	if k <= 0 {
		return nil, nil
	}

	neighbors := x.graph.Search(query, min(k*HNSWSearchMultiplier, len(x.records)))
	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		rec, ok := x.records[n.Key]
		if !ok {
			continue
		}
		// Compute the distance in float64 from the stored vector.
		dist := x.metric.Distance(query, rec.Vector)
		matches = append(matches, Match{
			SHA256:     n.Key,
			Source:     rec.Source,
			Distance:   dist,
			Similarity: x.metric.Similarity(dist),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Records returns copies of all indexed fingerprints ordered by image hash.
func (x *FingerprintIndex) Records() []StoredFingerprint {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.recordsLocked()
}

func (x *FingerprintIndex) recordsLocked() []StoredFingerprint {
	out := make([]StoredFingerprint, 0, len(x.records))
	for _, fp := range x.records {
		out = append(out, *fp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SHA256 < out[j].SHA256 })
	return out
}

// Save persists the graph to path, the metadata to path.meta and the
// fingerprint records, zstd-compressed, to path.records.
// Saving an empty index removes the files. The graph and records are
// written from one consistent snapshot, so Save may run alongside Upsert.
func (x *FingerprintIndex) Save(path string) (IndexMetadata, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	records := x.recordsLocked()

	metadata := IndexMetadata{
		BuildID:   uuid.New(),
		Algorithm: x.algorithm,
		Metric:    x.metric,
		Dim:       x.dim,
		Count:     len(records),
		BuildTime: time.Now().UTC(),
		Version:   IndexFormatVersion,
	}

	if x.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + metadataSuffix)
		_ = os.Remove(path + recordsSuffix)
		return metadata, nil
	}

	if err := x.exportGraph(path); err != nil {
		return metadata, err
	}
	if err := saveRecords(path, records); err != nil {
		return metadata, err
	}

	metaData, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return metadata, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+metadataSuffix, metaData, 0o600); err != nil {
		return metadata, fmt.Errorf("failed to write metadata file: %w", err)
	}
	return metadata, nil
}

func (x *FingerprintIndex) exportGraph(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if err := x.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close index file: %w", err)
	}
	return nil
}

// LoadFingerprintIndex loads an index written by Save.
func LoadFingerprintIndex(path string) (*FingerprintIndex, error) {
	metadata, err := LoadIndexMetadata(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("index file not found: %w", err)
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return nil, fmt.Errorf("failed to load HNSW index: %w", err)
	}

	records, err := loadRecords(path)
	if err != nil {
		return nil, err
	}
	if len(records) != saved.Len() {
		return nil, fmt.Errorf("index records out of sync: %d records, %d graph nodes", len(records), saved.Len())
	}

	x := NewFingerprintIndex(metadata.Algorithm, metadata.Metric)
	x.dim = metadata.Dim
	for i := range records {
		x.records[records[i].SHA256] = &records[i]
	}
	if len(records) > 0 {
		x.graph = saved.Graph
	}
	return x, nil
}

// OpenFingerprintIndex loads the index at path if one exists, otherwise it
// returns a new empty index. An existing index must match algorithm and metric.
func OpenFingerprintIndex(path, algorithm string, metric Metric) (*FingerprintIndex, error) {
	if _, err := os.Stat(path + metadataSuffix); errors.Is(err, os.ErrNotExist) {
		return NewFingerprintIndex(algorithm, metric), nil
	}

	x, err := LoadFingerprintIndex(path)
	if err != nil {
		return nil, err
	}
	if x.algorithm != algorithm {
		return nil, fmt.Errorf("%w: index at %s holds %s fingerprints", ErrAlgorithmMismatch, path, x.algorithm)
	}
	if x.metric != metric {
		return nil, fmt.Errorf("index at %s uses the %s metric, not %s", path, x.metric, metric)
	}
	return x, nil
}

// LoadIndexMetadata loads metadata from the .meta file next to an index.
func LoadIndexMetadata(path string) (IndexMetadata, error) {
	var metadata IndexMetadata

	data, err := os.ReadFile(path + metadataSuffix) //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if metadata.Version != IndexFormatVersion {
		return metadata, fmt.Errorf("unsupported index version %d", metadata.Version)
	}
	return metadata, nil
}

func saveRecords(path string, records []StoredFingerprint) error {
	f, err := os.Create(path + recordsSuffix) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create records file: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(records); err != nil {
		_ = zw.Close()
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush records: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close records file: %w", err)
	}
	return nil
}

func loadRecords(path string) ([]StoredFingerprint, error) {
	f, err := os.Open(path + recordsSuffix) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var records []StoredFingerprint
	if err := gob.NewDecoder(zr).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}
