package fingerprint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DCTConfig holds the parameters of the DCT hash.
type DCTConfig struct {
	// EdgeLength is the side of the square greyscale matrix fed to the transform.
	EdgeLength int `yaml:"edge_length"`
	// Keep is the side of the low-frequency block retained from the transform.
	Keep int `yaml:"keep"`
}

// DefaultDCTConfig returns the reference configuration: 64x64 input, 32x32 kept, 1024 values.
func DefaultDCTConfig() DCTConfig {
	return DCTConfig{EdgeLength: 64, Keep: 32}
}

// Validate checks the configuration.
func (c DCTConfig) Validate() error {
	if c.EdgeLength <= 0 {
		return fmt.Errorf("%w: dct edge length %d", ErrConfig, c.EdgeLength)
	}
	if c.Keep <= 0 || c.Keep > c.EdgeLength {
		return fmt.Errorf("%w: dct keep %d must be in [1, %d]", ErrConfig, c.Keep, c.EdgeLength)
	}
	return nil
}

// DCTEngine computes the orthonormal 2D DCT-II of square greyscale matrices
// and reduces it to a diagonal-ordered vector of low frequencies.
//
// The basis tables are built once in NewDCTEngine and never mutated, so an
// engine can be shared between goroutines.
type DCTEngine struct {
	n       int
	keep    int
	coeff   []float64
	cosines []float64  // cosines[a*n+b] = cos((2a+1)*pi*b / 2n)
	basis   *mat.Dense // basis[b][a] = coeff[b] * cosines[a*n+b]
}

// NewDCTEngine builds the coefficient and cosine tables for cfg.EdgeLength.
func NewDCTEngine(cfg DCTConfig) (*DCTEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := cfg.EdgeLength
	coeff := make([]float64, n)
	coeff[0] = 1 / math.Sqrt(float64(n))
	for i := 1; i < n; i++ {
		coeff[i] = math.Sqrt(2) / math.Sqrt(float64(n))
	}

	cosines := make([]float64, n*n)
	for a := range n {
		for b := range n {
			cosines[a*n+b] = math.Cos(float64(2*a+1) * math.Pi * float64(b) / float64(2*n))
		}
	}

	basis := mat.NewDense(n, n, nil)
	for b := range n {
		for a := range n {
			basis.Set(b, a, coeff[b]*cosines[a*n+b])
		}
	}

	return &DCTEngine{
		n:       n,
		keep:    cfg.Keep,
		coeff:   coeff,
		cosines: cosines,
		basis:   basis,
	}, nil
}

// EdgeLength returns the side of the matrices the engine accepts.
func (e *DCTEngine) EdgeLength() int { return e.n }

// Dim returns the length of the vectors produced by Hash.
func (e *DCTEngine) Dim() int { return e.keep * e.keep }

// Coefficient returns the normalisation factor for frequency i.
func (e *DCTEngine) Coefficient(i int) float64 { return e.coeff[i] }

// Cosine returns cos((2a+1)*pi*b / 2N).
func (e *DCTEngine) Cosine(a, b int) float64 { return e.cosines[a*e.n+b] }

// Transform returns the N x N DCT-II of a row-major N x N matrix.
// The row pass is X*B^T and the column pass B*(X*B^T).
func (e *DCTEngine) Transform(src []float64) ([]float64, error) {
	if len(src) != e.n*e.n {
		return nil, fmt.Errorf("%w: got %d values, want %dx%d", ErrShapeMismatch, len(src), e.n, e.n)
	}

	x := mat.NewDense(e.n, e.n, append([]float64(nil), src...))

	var rows mat.Dense
	rows.Mul(x, e.basis.T())

	out := make([]float64, e.n*e.n)
	mat.NewDense(e.n, e.n, out).Mul(e.basis, &rows)
	return out, nil
}

// Hash transforms an N x N greyscale matrix, keeps the top-left K x K block
// and returns it in anti-diagonal order.
func (e *DCTEngine) Hash(grey []uint8) ([]float64, error) {
	if len(grey) != e.n*e.n {
		return nil, fmt.Errorf("%w: got %d pixels, want %dx%d", ErrShapeMismatch, len(grey), e.n, e.n)
	}

	src := make([]float64, len(grey))
	for i, v := range grey {
		src[i] = float64(v)
	}

	coeffs, err := e.Transform(src)
	if err != nil {
		return nil, err
	}
	return DiagonalTraversal(TopLeft(coeffs, e.n, e.keep), e.keep, e.keep), nil
}

// TopLeft copies the k x k upper-left block of a row-major n x n matrix.
func TopLeft(m []float64, n, k int) []float64 {
	out := make([]float64, 0, k*k)
	for r := range k {
		out = append(out, m[r*n:r*n+k]...)
	}
	return out
}

// DiagonalOrder returns the row-major indices of a rows x cols matrix in the
// order DiagonalTraversal visits them. Each anti-diagonal is walked from its
// lowest row upwards, starting with the single top-left element.
func DiagonalOrder(rows, cols int) []int {
	order := make([]int, 0, rows*cols)
	for line := 1; line < rows+cols; line++ {
		startCol := max(0, line-rows)
		count := min(line, cols-startCol, rows)
		for j := range count {
			order = append(order, (min(rows, line)-j-1)*cols+startCol+j)
		}
	}
	return order
}

// DiagonalTraversal flattens a row-major rows x cols matrix along its anti-diagonals.
func DiagonalTraversal(m []float64, rows, cols int) []float64 {
	order := DiagonalOrder(rows, cols)
	out := make([]float64, len(order))
	for i, idx := range order {
		out[i] = m[idx]
	}
	return out
}
