package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/kozaktomas/photo-fingerprint/internal/fingerprint"
)

func TestLoad(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), "sample.png", 100, 60)

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Source != "sample.png" {
		t.Errorf("Source = %q; want sample.png", loaded.Source)
	}
	if loaded.Buffer.Width != 100 || loaded.Buffer.Height != 60 {
		t.Errorf("size = %dx%d; want 100x60", loaded.Buffer.Width, loaded.Buffer.Height)
	}
	if err := loaded.Buffer.Validate(); err != nil {
		t.Errorf("buffer invalid: %v", err)
	}
	if len(loaded.SHA256) != 64 {
		t.Errorf("SHA256 should be 64 hex characters, got %d", len(loaded.SHA256))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestDecodeMatchesLoad(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), "sample.png", 40, 30)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	fromFile, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	fromBytes, err := DecodeBytes(data, "upload.png")
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}

	if fromFile.SHA256 != fromBytes.SHA256 {
		t.Errorf("content hash differs between Load and DecodeBytes: %s vs %s", fromFile.SHA256, fromBytes.SHA256)
	}
	if fromBytes.Source != "upload.png" {
		t.Errorf("Source = %q; want upload.png", fromBytes.Source)
	}
}

func TestDecodeInvalid(t *testing.T) {
	if _, err := DecodeBytes([]byte("not an image"), "x"); err == nil {
		t.Error("DecodeBytes should fail for invalid image data")
	}
}

func TestContentHash(t *testing.T) {
	a := fingerprint.PixelBuffer{Width: 1, Height: 1, Pix: []byte{1, 2, 3, 255}}
	b := fingerprint.PixelBuffer{Width: 1, Height: 1, Pix: []byte{1, 2, 3, 255}}
	c := fingerprint.PixelBuffer{Width: 1, Height: 1, Pix: []byte{1, 2, 4, 255}}

	if ContentHash(a) != ContentHash(b) {
		t.Error("identical pixels should have identical hashes")
	}
	if ContentHash(a) == ContentHash(c) {
		t.Error("different pixels should have different hashes")
	}

	// sha256 of the empty input
	empty := fingerprint.PixelBuffer{}
	if got := ContentHash(empty); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("ContentHash(empty) = %s", got)
	}
}

func TestGenerateVariants(t *testing.T) {
	src := writeTestPNG(t, t.TempDir(), "photo.png", 100, 60)
	outDir := t.TempDir()

	written, err := GenerateVariants(src, outDir)
	if err != nil {
		t.Fatalf("GenerateVariants failed: %v", err)
	}

	tests := []struct {
		variant       string
		file          string
		width, height int
	}{
		{VariantCropped, "photo.png", 90, 54},
		{VariantGrown, "photo.png", 200, 120},
		{VariantShrunk, "photo.png", 50, 30},
		{VariantReformatted, "photo.png", 100, 60},
	}

	for _, tc := range tests {
		t.Run(tc.variant, func(t *testing.T) {
			want := filepath.Join(outDir, tc.variant, tc.file)
			if written[tc.variant] != want {
				t.Errorf("written[%s] = %q; want %q", tc.variant, written[tc.variant], want)
			}
			img, err := imaging.Open(want)
			if err != nil {
				t.Fatalf("variant not readable: %v", err)
			}
			if b := img.Bounds(); b.Dx() != tc.width || b.Dy() != tc.height {
				t.Errorf("variant size = %dx%d; want %dx%d", b.Dx(), b.Dy(), tc.width, tc.height)
			}
		})
	}
}

func TestGenerateVariantsReformatsJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	if err := imaging.Save(testImage(64, 48), src); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	written, err := GenerateVariants(src, t.TempDir())
	if err != nil {
		t.Fatalf("GenerateVariants failed: %v", err)
	}
	if filepath.Base(written[VariantReformatted]) != "photo.png" {
		t.Errorf("reformatted variant = %s; want photo.png", written[VariantReformatted])
	}
	if filepath.Base(written[VariantShrunk]) != "photo.jpg" {
		t.Errorf("shrunk variant = %s; want photo.jpg", written[VariantShrunk])
	}
}

// Helper functions

func testImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.NRGBA{uint8(x * 255 / width), uint8(y * 255 / height), 128, 255})
		}
	}
	return img
}

func writeTestPNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(width, height)); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}
