package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
)

// FingerprintsHandler computes fingerprints of uploaded images.
type FingerprintsHandler struct {
	vectorizers map[fingerprint.Algorithm]fingerprint.Vectorizer
	defaultAlg  fingerprint.Algorithm
	logger      *zap.Logger
}

// AlgorithmInfo describes a registered algorithm.
type AlgorithmInfo struct {
	Name    fingerprint.Algorithm `json:"name"`
	Dim     int                   `json:"dim"`
	Default bool                  `json:"default"`
}

// FingerprintResponse is returned by Compute.
type FingerprintResponse struct {
	SHA256    string                `json:"sha256"`
	Source    string                `json:"source"`
	Algorithm fingerprint.Algorithm `json:"algorithm"`
	Dim       int                   `json:"dim"`
	Vector    []float32             `json:"vector"`
}

// NewFingerprintsHandler builds one vectorizer per algorithm.
func NewFingerprintsHandler(opts fingerprint.Options, defaultAlg fingerprint.Algorithm, logger *zap.Logger) (*FingerprintsHandler, error) {
	vectorizers := make(map[fingerprint.Algorithm]fingerprint.Vectorizer)
	for _, alg := range fingerprint.Algorithms() {
		v, err := fingerprint.NewVectorizer(alg, opts)
		if err != nil {
			return nil, fmt.Errorf("creating %s vectorizer: %w", alg, err)
		}
		vectorizers[alg] = v
	}
	if _, ok := vectorizers[defaultAlg]; !ok {
		return nil, fmt.Errorf("%w: %q", fingerprint.ErrUnknownAlgorithm, defaultAlg)
	}
	return &FingerprintsHandler{
		vectorizers: vectorizers,
		defaultAlg:  defaultAlg,
		logger:      logger,
	}, nil
}

// Algorithms lists the available algorithms with their vector dimensions.
func (h *FingerprintsHandler) Algorithms(w http.ResponseWriter, r *http.Request) {
	algs := fingerprint.Algorithms()
	out := make([]AlgorithmInfo, 0, len(algs))
	for _, alg := range algs {
		out = append(out, AlgorithmInfo{
			Name:    alg,
			Dim:     h.vectorizers[alg].Dim(),
			Default: alg == h.defaultAlg,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// Compute fingerprints the uploaded image with the requested algorithm.
func (h *FingerprintsHandler) Compute(w http.ResponseWriter, r *http.Request) {
	alg, err := parseAlgorithm(r, h.defaultAlg)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	img, err := readUploadedImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	vec, err := h.vectorizers[alg].Vectorize(img.Buffer)
	if err != nil {
		h.logger.Warn("fingerprint failed",
			zap.String("source", sanitizeForLog(img.Source)),
			zap.String("algorithm", string(alg)),
			zap.Error(err))
		if errors.Is(err, fingerprint.ErrInvalidImage) {
			respondError(w, http.StatusUnprocessableEntity, "invalid image")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to compute fingerprint")
		return
	}

	respondJSON(w, http.StatusOK, FingerprintResponse{
		SHA256:    img.SHA256,
		Source:    img.Source,
		Algorithm: alg,
		Dim:       len(vec),
		Vector:    vec,
	})
}

// vectorizer returns the vectorizer of alg, nil if it is unknown.
func (h *FingerprintsHandler) vectorizer(alg fingerprint.Algorithm) fingerprint.Vectorizer {
	return h.vectorizers[alg]
}
