package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/photo-fingerprint/internal/database"
	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
)

// SearchHandler finds indexed images similar to an uploaded one.
// The reader is either the local HNSW index or PostgreSQL.
type SearchHandler struct {
	fingerprints *FingerprintsHandler
	reader       database.FingerprintReader
	algorithm    fingerprint.Algorithm
	logger       *zap.Logger
}

// SearchResponse is returned by Search.
type SearchResponse struct {
	SHA256    string                `json:"sha256"`
	Algorithm fingerprint.Algorithm `json:"algorithm"`
	Matches   []database.Match      `json:"matches"`
}

// NewSearchHandler creates a search handler over fingerprints of one algorithm.
func NewSearchHandler(fh *FingerprintsHandler, reader database.FingerprintReader, alg fingerprint.Algorithm, logger *zap.Logger) (*SearchHandler, error) {
	if fh.vectorizer(alg) == nil {
		return nil, fmt.Errorf("%w: %q", fingerprint.ErrUnknownAlgorithm, alg)
	}
	return &SearchHandler{
		fingerprints: fh,
		reader:       reader,
		algorithm:    alg,
		logger:       logger,
	}, nil
}

// Search handles POST /search with a multipart image.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		respondError(w, http.StatusServiceUnavailable, "no fingerprint index configured")
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	img, err := readUploadedImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	vec, err := h.fingerprints.vectorizer(h.algorithm).Vectorize(img.Buffer)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "failed to compute fingerprint")
		return
	}

	matches, err := h.reader.FindSimilar(r.Context(), string(h.algorithm), vec, limit)
	if err != nil {
		if errors.Is(err, database.ErrDimensionMismatch) {
			respondError(w, http.StatusConflict, "index was built with a different configuration")
			return
		}
		h.logger.Error("similarity search failed",
			zap.String("source", sanitizeForLog(img.Source)),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if matches == nil {
		matches = []database.Match{}
	}

	h.logger.Debug("search",
		zap.String("sha256", img.SHA256),
		zap.Int("limit", limit),
		zap.Int("matches", len(matches)))

	respondJSON(w, http.StatusOK, SearchResponse{
		SHA256:    img.SHA256,
		Algorithm: h.algorithm,
		Matches:   matches,
	})
}

// Stats reports how many fingerprints the reader holds.
func (h *SearchHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		respondError(w, http.StatusServiceUnavailable, "no fingerprint index configured")
		return
	}
	count, err := h.reader.Count(r.Context(), string(h.algorithm))
	if err != nil {
		h.logger.Error("count failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to count fingerprints")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"algorithm": h.algorithm,
		"count":     count,
	})
}
