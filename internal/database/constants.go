package database

// HNSW index parameters for fingerprint vectors
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// before re-ranking them by exact distance.
	HNSWSearchMultiplier = 3
)

// Sidecar file suffixes written next to a persisted index graph.
const (
	metadataSuffix = ".meta"
	recordsSuffix  = ".records"
)

// IndexFormatVersion is written to the .meta file; Load rejects other versions.
const IndexFormatVersion = 1
