package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/photo-fingerprint/internal/config"
	"github.com/kozaktomas/photo-fingerprint/internal/database"
	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
	"github.com/kozaktomas/photo-fingerprint/internal/imageio"
)

// newVectorizer builds the vectorizer of alg from the configured defaults.
func newVectorizer(cfg *config.Config, alg fingerprint.Algorithm, fixedLength bool) (fingerprint.Vectorizer, error) {
	opts, err := cfg.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("invalid fingerprint configuration: %w", err)
	}
	opts.Goldberg.FixedLength = opts.Goldberg.FixedLength || fixedLength
	return fingerprint.NewVectorizer(alg, opts)
}

// fingerprintFile decodes the image at path and fingerprints it.
func fingerprintFile(v fingerprint.Vectorizer, path string) (database.StoredFingerprint, error) {
	img, err := imageio.Load(path)
	if err != nil {
		return database.StoredFingerprint{}, err
	}
	vec, err := v.Vectorize(img.Buffer)
	if err != nil {
		return database.StoredFingerprint{}, fmt.Errorf("fingerprinting %s: %w", path, err)
	}
	return database.StoredFingerprint{
		SHA256:    img.SHA256,
		Algorithm: string(v.Algorithm()),
		Source:    img.Source,
		Vector:    vec,
		Dim:       len(vec),
	}, nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
