package database

import (
	"context"
	"errors"
)

var (
	postgresFingerprintWriter func() FingerprintWriter
	postgresInitialized       bool
)

// RegisterPostgresBackend registers the PostgreSQL repository constructor.
// This is called by callers of the postgres package to avoid import cycles.
func RegisterPostgresBackend(writer func() FingerprintWriter) {
	postgresFingerprintWriter = writer
	postgresInitialized = writer != nil
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetFingerprintReader returns a FingerprintReader from the PostgreSQL backend
func GetFingerprintReader(ctx context.Context) (FingerprintReader, error) {
	return GetFingerprintWriter(ctx)
}

// GetFingerprintWriter returns a FingerprintWriter from the PostgreSQL backend
func GetFingerprintWriter(_ context.Context) (FingerprintWriter, error) {
	if !postgresInitialized {
		return nil, errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	return postgresFingerprintWriter(), nil
}
