// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Search constants
const (
	// DefaultSearchLimit is the default number of nearest neighbours returned by a query
	DefaultSearchLimit = 10

	// MaxSearchLimit caps the number of neighbours a single HTTP search may request
	MaxSearchLimit = 1000

	// DefaultDuplicateThreshold is the max cosine distance at which two images are reported as the same picture
	DefaultDuplicateThreshold = 0.10
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for fingerprinting
	WorkerPoolSize = 8

	// IndexSaveInterval is the number of images processed before the index file is saved
	IndexSaveInterval = 200

	// MaxUploadSize is the maximum accepted size of an uploaded image in bytes
	MaxUploadSize = 50 << 20
)
