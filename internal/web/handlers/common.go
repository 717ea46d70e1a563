package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/photo-fingerprint/internal/constants"
	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
	"github.com/kozaktomas/photo-fingerprint/internal/imageio"
)

// uploadField is the multipart field carrying the image.
const uploadField = "file"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// readUploadedImage decodes the image sent in the multipart "file" field.
func readUploadedImage(w http.ResponseWriter, r *http.Request) (*imageio.LoadedImage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, errors.New("failed to parse multipart form")
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, fmt.Errorf("missing %q field", uploadField)
	}
	defer file.Close()

	img, err := imageio.Decode(file, header.Filename)
	if err != nil {
		return nil, errors.New("failed to decode image")
	}
	return img, nil
}

// parseAlgorithm reads the "algorithm" query parameter, falling back to def.
func parseAlgorithm(r *http.Request, def fingerprint.Algorithm) (fingerprint.Algorithm, error) {
	name := r.URL.Query().Get("algorithm")
	if name == "" {
		return def, nil
	}
	return fingerprint.ParseAlgorithm(name)
}

// parseLimit reads the "limit" query parameter.
func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return constants.DefaultSearchLimit, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", s)
	}
	return min(limit, constants.MaxSearchLimit), nil
}
