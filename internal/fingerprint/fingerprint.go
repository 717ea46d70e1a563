package fingerprint

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

var (
	// ErrInvalidImage is returned when a pixel buffer has no pixels or its
	// byte length does not match width*height*4.
	ErrInvalidImage = errors.New("invalid image")
	// ErrConfig is returned for invalid engine parameters.
	ErrConfig = errors.New("invalid configuration")
	// ErrShapeMismatch is returned when a matrix does not have the shape the engine was built for.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrUnknownAlgorithm is returned when a vectorizer name is not registered.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)

// PixelBuffer is a decoded raster image: Width*Height pixels in row-major
// order, 4 bytes (R, G, B, A; not premultiplied) per pixel.
// The buffer is owned by the caller and never modified by this package.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []byte
}

// Validate checks the dimensions and the buffer length.
func (p PixelBuffer) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, p.Width, p.Height)
	}
	if p.Width > math.MaxInt/4/p.Height {
		return fmt.Errorf("%w: dimensions %dx%d too large", ErrInvalidImage, p.Width, p.Height)
	}
	if want := p.Width * p.Height * 4; len(p.Pix) != want {
		return fmt.Errorf("%w: buffer has %d bytes, want %d", ErrInvalidImage, len(p.Pix), want)
	}
	return nil
}

// rgba returns the channels of the pixel at row y, column x.
func (p PixelBuffer) rgba(y, x int) (r, g, b, a uint8) {
	i := (y*p.Width + x) * 4
	return p.Pix[i], p.Pix[i+1], p.Pix[i+2], p.Pix[i+3]
}

// nrgba wraps the buffer as an image without copying.
func (p PixelBuffer) nrgba() *image.NRGBA {
	return &image.NRGBA{
		Pix:    p.Pix,
		Stride: p.Width * 4,
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}
}

// FromImage converts any image into a PixelBuffer with non-premultiplied RGBA bytes.
func FromImage(img image.Image) PixelBuffer {
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return PixelBuffer{Width: bounds.Dx(), Height: bounds.Dy(), Pix: dst.Pix}
}

// Shrink resamples the buffer to an edge x edge square using bilinear
// interpolation. The aspect ratio is not preserved.
func Shrink(p PixelBuffer, edge int) (PixelBuffer, error) {
	if edge <= 0 {
		return PixelBuffer{}, fmt.Errorf("%w: edge length %d", ErrConfig, edge)
	}
	if err := p.Validate(); err != nil {
		return PixelBuffer{}, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, edge, edge))
	draw.BiLinear.Scale(dst, dst.Bounds(), p.nrgba(), image.Rect(0, 0, p.Width, p.Height), draw.Src, nil)
	return PixelBuffer{Width: edge, Height: edge, Pix: dst.Pix}, nil
}

// AlphaWeightedGreyscale converts every pixel to
// round(((R+G+B) * (A/255)) / 765 * 255), halves rounding up.
// The result is row-major with one byte per pixel.
func AlphaWeightedGreyscale(p PixelBuffer) ([]uint8, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	grey := make([]uint8, p.Width*p.Height)
	for y := range p.Height {
		for x := range p.Width {
			r, g, b, a := p.rgba(y, x)
			intensity := float64(int(r)+int(g)+int(b)) * (float64(a) / 255)
			grey[y*p.Width+x] = clampByte(math.Floor(intensity/765*255 + 0.5))
		}
	}
	return grey, nil
}

// Preprocess shrinks the buffer to edge x edge and converts it to greyscale.
func Preprocess(p PixelBuffer, edge int) ([]uint8, error) {
	shrunk, err := Shrink(p, edge)
	if err != nil {
		return nil, fmt.Errorf("failed to shrink image: %w", err)
	}
	return AlphaWeightedGreyscale(shrunk)
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
