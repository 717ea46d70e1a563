// Package imageio decodes image files into pixel buffers, derives their
// content keys and writes the benchmark variants used to evaluate fingerprints.
package imageio

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
)

// LoadedImage is a decoded image together with its content key.
type LoadedImage struct {
	// Source is the file name (or upload name) the image came from.
	Source string
	// SHA256 is the hex SHA-256 digest of the decoded RGBA bytes.
	SHA256 string
	Buffer fingerprint.PixelBuffer
}

// Load decodes the image at path, applying its EXIF orientation.
func Load(path string) (*LoadedImage, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return newLoadedImage(filepath.Base(path), img), nil
}

// Decode reads an encoded image from r. name is recorded as the source.
func Decode(r io.Reader, name string) (*LoadedImage, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return newLoadedImage(name, img), nil
}

// DecodeBytes is Decode over an in-memory file.
func DecodeBytes(data []byte, name string) (*LoadedImage, error) {
	return Decode(bytes.NewReader(data), name)
}

func newLoadedImage(source string, img image.Image) *LoadedImage {
	buf := fingerprint.FromImage(img)
	return &LoadedImage{
		Source: source,
		SHA256: ContentHash(buf),
		Buffer: buf,
	}
}

// ContentHash returns the hex SHA-256 of the decoded RGBA bytes. Two files
// with different encodings of the same pixels share a key.
func ContentHash(p fingerprint.PixelBuffer) string {
	sum := sha256.Sum256(p.Pix)
	return hex.EncodeToString(sum[:])
}

// Variant directories written by GenerateVariants.
const (
	VariantCropped     = "cropped"
	VariantGrown       = "grown"
	VariantShrunk      = "shrunk"
	VariantReformatted = "reformatted"
)

const (
	cropFraction = 0.90
	growFactor   = 2.0
	shrinkFactor = 0.5
)

// Variants lists the variant directory names in generation order.
func Variants() []string {
	return []string{VariantCropped, VariantGrown, VariantShrunk, VariantReformatted}
}

// GenerateVariants writes four modified copies of the image at path into
// sub-directories of outDir: a 90% centre crop, a 2x enlargement and a 0.5x
// reduction in the source format, and a lossless PNG re-encode.
// It returns the written file paths keyed by variant name.
func GenerateVariants(path, outDir string) (map[string]string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	scaled := func(f float64) (int, int) {
		return max(1, int(float64(width)*f)), max(1, int(float64(height)*f))
	}

	name := filepath.Base(path)
	pngName := strings.TrimSuffix(name, filepath.Ext(name)) + ".png"

	cw, ch := scaled(cropFraction)
	gw, gh := scaled(growFactor)
	sw, sh := scaled(shrinkFactor)

	outputs := []struct {
		variant string
		file    string
		img     image.Image
	}{
		{VariantCropped, name, imaging.CropCenter(img, cw, ch)},
		{VariantGrown, name, imaging.Resize(img, gw, gh, imaging.Linear)},
		{VariantShrunk, name, imaging.Resize(img, sw, sh, imaging.Linear)},
		{VariantReformatted, pngName, img},
	}

	written := make(map[string]string, len(outputs))
	for _, out := range outputs {
		dir := filepath.Join(outDir, out.variant)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		dst := filepath.Join(dir, out.file)
		if err := imaging.Save(out.img, dst, imaging.JPEGQuality(95)); err != nil {
			return nil, fmt.Errorf("failed to write %s variant: %w", out.variant, err)
		}
		written[out.variant] = dst
	}
	return written, nil
}
