package fingerprint

import (
	"fmt"
	"strings"
)

// Algorithm names a fingerprint vectorizer.
type Algorithm string

const (
	AlgorithmDCT       Algorithm = "dct"
	AlgorithmGoldberg  Algorithm = "goldberg"
	AlgorithmMeanHash  Algorithm = "phash"
	AlgorithmIntensity Algorithm = "intensity"
)

// Algorithms returns every registered algorithm in a stable order.
func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmDCT, AlgorithmGoldberg, AlgorithmMeanHash, AlgorithmIntensity}
}

// ParseAlgorithm resolves a case-insensitive algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Algorithms() {
		if alg == known {
			return alg, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// Vectorizer turns an image into a fixed-length float vector suitable for a vector index.
type Vectorizer interface {
	Algorithm() Algorithm
	// Dim is the length of every vector returned by Vectorize.
	Dim() int
	Vectorize(p PixelBuffer) ([]float32, error)
}

// Options configures every vectorizer.
type Options struct {
	DCT      DCTConfig      `yaml:"dct"`
	Goldberg GoldbergConfig `yaml:"goldberg"`
	HashEdge int            `yaml:"hash_edge"`
}

// DefaultOptions returns the reference configuration of all algorithms.
func DefaultOptions() Options {
	return Options{
		DCT:      DefaultDCTConfig(),
		Goldberg: DefaultGoldbergConfig(),
		HashEdge: 32,
	}
}

// NewVectorizer builds the vectorizer registered under alg.
func NewVectorizer(alg Algorithm, opts Options) (Vectorizer, error) {
	switch alg {
	case AlgorithmDCT:
		engine, err := NewDCTEngine(opts.DCT)
		if err != nil {
			return nil, err
		}
		return &dctVectorizer{engine: engine}, nil
	case AlgorithmGoldberg:
		engine, err := NewGoldbergEngine(opts.Goldberg)
		if err != nil {
			return nil, err
		}
		return &goldbergVectorizer{engine: engine}, nil
	case AlgorithmMeanHash, AlgorithmIntensity:
		if opts.HashEdge <= 0 {
			return nil, fmt.Errorf("%w: hash edge length %d", ErrConfig, opts.HashEdge)
		}
		return &greyVectorizer{alg: alg, edge: opts.HashEdge}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
	}
}

type dctVectorizer struct {
	engine *DCTEngine
}

func (v *dctVectorizer) Algorithm() Algorithm { return AlgorithmDCT }
func (v *dctVectorizer) Dim() int             { return v.engine.Dim() }

func (v *dctVectorizer) Vectorize(p PixelBuffer) ([]float32, error) {
	grey, err := Preprocess(p, v.engine.EdgeLength())
	if err != nil {
		return nil, err
	}
	coeffs, err := v.engine.Hash(grey)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(coeffs))
	for i, c := range coeffs {
		out[i] = float32(c)
	}
	return out, nil
}

type goldbergVectorizer struct {
	engine *GoldbergEngine
}

func (v *goldbergVectorizer) Algorithm() Algorithm { return AlgorithmGoldberg }
func (v *goldbergVectorizer) Dim() int             { return v.engine.Config().SignatureLength() }

func (v *goldbergVectorizer) Vectorize(p PixelBuffer) ([]float32, error) {
	sig, err := v.engine.Signature(p)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(sig))
	for i, s := range sig {
		out[i] = float32(s)
	}
	return out, nil
}

// greyVectorizer covers the two algorithms that work directly on the
// shrunk greyscale matrix: the raw intensities, or those intensities
// thresholded against their mean.
type greyVectorizer struct {
	alg  Algorithm
	edge int
}

func (v *greyVectorizer) Algorithm() Algorithm { return v.alg }
func (v *greyVectorizer) Dim() int             { return v.edge * v.edge }

func (v *greyVectorizer) Vectorize(p PixelBuffer) ([]float32, error) {
	grey, err := Preprocess(p, v.edge)
	if err != nil {
		return nil, err
	}
	if v.alg == AlgorithmMeanHash {
		return MeanHash(grey), nil
	}
	out := make([]float32, len(grey))
	for i, g := range grey {
		out[i] = float32(g)
	}
	return out, nil
}

// MeanHash sets each bit to 1 when the pixel is brighter than the mean of all pixels.
func MeanHash(grey []uint8) []float32 {
	if len(grey) == 0 {
		return nil
	}
	var sum float64
	for _, g := range grey {
		sum += float64(g)
	}
	mean := sum / float64(len(grey))

	bits := make([]float32, len(grey))
	for i, g := range grey {
		if float64(g) > mean {
			bits[i] = 1
		}
	}
	return bits
}

// HammingDistance counts the positions at which two vectors differ.
// Vectors of different length differ at every position of the longer one.
func HammingDistance(a, b []float32) int {
	n := max(len(a), len(b))
	distance := 0
	for i := range n {
		if i >= len(a) || i >= len(b) || a[i] != b[i] {
			distance++
		}
	}
	return distance
}
