package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrIndexNotInitialized is returned when querying an index that holds no graph.
	ErrIndexNotInitialized = errors.New("index not initialized")
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrAlgorithmMismatch is returned when a fingerprint of another algorithm is added to an index.
	ErrAlgorithmMismatch = errors.New("algorithm mismatch")
)

// StoredFingerprint represents a fingerprint keyed by the SHA-256 of its image pixels
type StoredFingerprint struct {
	SHA256    string
	Algorithm string
	Source    string // File name the fingerprint was computed from
	Vector    []float32
	Dim       int
	CreatedAt time.Time
}

// Match is a single nearest-neighbour result
type Match struct {
	SHA256     string  `json:"sha256"`
	Source     string  `json:"source,omitempty"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// IndexMetadata describes a persisted fingerprint index
type IndexMetadata struct {
	BuildID   uuid.UUID `json:"build_id"`
	Algorithm string    `json:"algorithm"`
	Metric    Metric    `json:"metric"`
	Dim       int       `json:"dim"`
	Count     int       `json:"count"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"` // For future compatibility
}
