package fingerprint

import (
	"fmt"
	"math"
	"sort"
)

// GoldbergConfig holds the parameters of the grid signature.
type GoldbergConfig struct {
	// GridHigh and GridWide are the number of bands per axis; the grid points
	// are the n-1 inner band boundaries.
	GridHigh int `yaml:"grid_high"`
	GridWide int `yaml:"grid_wide"`
	// CropLower and CropUpper are the percentiles of cumulative gradient
	// energy used to crop uninformative borders.
	CropLower float64 `yaml:"crop_lower"`
	CropUpper float64 `yaml:"crop_upper"`
	// SquareDivisor sets the averaging window side to min(H, W)/SquareDivisor.
	SquareDivisor float64 `yaml:"square_divisor"`
	// EqualCutoff is the half-width of the band of differences treated as equal.
	EqualCutoff float64 `yaml:"equal_cutoff"`
	// FixedLength emits 8 slots per grid point, zero for neighbours outside the grid.
	FixedLength bool `yaml:"fixed_length"`
}

// DefaultGoldbergConfig returns the reference 10x10 grid configuration.
func DefaultGoldbergConfig() GoldbergConfig {
	return GoldbergConfig{
		GridHigh:      10,
		GridWide:      10,
		CropLower:     10,
		CropUpper:     90,
		SquareDivisor: 20,
		EqualCutoff:   2,
	}
}

// Validate checks the configuration.
func (c GoldbergConfig) Validate() error {
	if c.GridHigh < 2 || c.GridWide < 2 {
		return fmt.Errorf("%w: grid %dx%d must be at least 2x2", ErrConfig, c.GridHigh, c.GridWide)
	}
	if c.CropLower < 0 || c.CropUpper > 100 || c.CropLower >= c.CropUpper {
		return fmt.Errorf("%w: crop percentiles %g/%g", ErrConfig, c.CropLower, c.CropUpper)
	}
	if c.SquareDivisor <= 0 {
		return fmt.Errorf("%w: square divisor %g", ErrConfig, c.SquareDivisor)
	}
	if c.EqualCutoff < 0 {
		return fmt.Errorf("%w: equal cutoff %g", ErrConfig, c.EqualCutoff)
	}
	return nil
}

// SignatureLength returns the number of symbols a signature has for this grid.
// It does not depend on the image.
func (c GoldbergConfig) SignatureLength() int {
	rows, cols := c.GridHigh-1, c.GridWide-1
	if c.FixedLength {
		return len(neighbourDirections) * rows * cols
	}
	n := 0
	for r := range rows {
		for col := range cols {
			for _, d := range neighbourDirections {
				if inGrid(r+d.dr, col+d.dc, rows, cols) {
					n++
				}
			}
		}
	}
	return n
}

// neighbourDirections is the emission order of a grid point's neighbours:
// upper row left to right, then left, right, then lower row left to right.
var neighbourDirections = [8]struct{ dr, dc int }{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

func inGrid(r, c, rows, cols int) bool {
	return r >= 0 && r < rows && c >= 0 && c < cols
}

// GoldbergEngine computes the Goldberg et al. image signature: grid point
// averages compared with their neighbours and quantized to -2..2.
type GoldbergEngine struct {
	cfg GoldbergConfig
}

// NewGoldbergEngine validates cfg and returns an engine.
func NewGoldbergEngine(cfg GoldbergConfig) (*GoldbergEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &GoldbergEngine{cfg: cfg}, nil
}

// Config returns the engine configuration.
func (e *GoldbergEngine) Config() GoldbergConfig { return e.cfg }

// Signature computes the signature of a full resolution image.
func (e *GoldbergEngine) Signature(p PixelBuffer) ([]int8, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	grey := channelAverage(p)
	cropped := grey.autoCrop(e.cfg.CropLower, e.cfg.CropUpper)
	avg := cropped.gridAverages(e.cfg.GridHigh, e.cfg.GridWide, e.cfg.SquareDivisor)
	diffs, present := avg.differentials()

	var positive, negative []float64
	for i, d := range diffs {
		if !present[i] {
			continue
		}
		switch {
		case d > e.cfg.EqualCutoff:
			positive = append(positive, d)
		case d < -e.cfg.EqualCutoff:
			negative = append(negative, d)
		}
	}

	cut := Cutoffs{Equal: e.cfg.EqualCutoff}
	cut.Positive, cut.HasPositive = Percentile(positive, 50)
	cut.Negative, cut.HasNegative = Percentile(negative, 50)

	sig := make([]int8, 0, len(diffs))
	for i, d := range diffs {
		switch {
		case present[i]:
			sig = append(sig, cut.Quantize(d))
		case e.cfg.FixedLength:
			sig = append(sig, 0)
		}
	}
	return sig, nil
}

// Cutoffs are the thresholds separating the five signature symbols.
// A missing cutoff is never exceeded, so the symbol saturates at +-1.
type Cutoffs struct {
	Equal       float64
	Positive    float64
	HasPositive bool
	Negative    float64
	HasNegative bool
}

// Quantize maps a neighbour difference to a symbol in {-2, -1, 0, 1, 2}.
func (c Cutoffs) Quantize(d float64) int8 {
	switch {
	case d > c.Equal:
		if c.HasPositive && d > c.Positive {
			return 2
		}
		return 1
	case d < -c.Equal:
		if c.HasNegative && d < c.Negative {
			return -2
		}
		return -1
	default:
		return 0
	}
}

// Percentile returns the q-th percentile of values using rank q/100*(n+1)-1
// with linear interpolation between the neighbouring order statistics.
// A rank falling outside the data takes the nearest existing endpoint.
// It reports false for an empty set.
func Percentile(values []float64, q float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := q/100*float64(len(sorted)+1) - 1
	lo, hi := math.Floor(rank), math.Ceil(rank)
	at := func(i float64) (float64, bool) {
		if i < 0 || i >= float64(len(sorted)) {
			return 0, false
		}
		return sorted[int(i)], true
	}

	if lo == hi {
		if v, ok := at(rank); ok {
			return v, true
		}
	}

	loVal, loOK := at(lo)
	hiVal, hiOK := at(hi)
	switch {
	case loOK && hiOK:
		return loVal + (hiVal-loVal)*(rank-lo), true
	case loOK:
		return loVal, true
	case hiOK:
		return hiVal, true
	}
	// Only reachable for a rank beyond both ends, i.e. q outside [0, 100].
	if rank < 0 {
		return sorted[0], true
	}
	return sorted[len(sorted)-1], true
}

// greyMatrix is a row-major matrix of channel-average intensities.
type greyMatrix struct {
	rows, cols int
	pix        []uint8
}

func (g greyMatrix) at(r, c int) int { return int(g.pix[r*g.cols+c]) }

// channelAverage converts to round(mean(R, G, B)), ignoring alpha.
func channelAverage(p PixelBuffer) greyMatrix {
	g := greyMatrix{rows: p.Height, cols: p.Width, pix: make([]uint8, p.Width*p.Height)}
	for y := range p.Height {
		for x := range p.Width {
			r, gr, b, _ := p.rgba(y, x)
			g.pix[y*p.Width+x] = uint8(math.Floor(float64(int(r)+int(gr)+int(b))/3 + 0.5))
		}
	}
	return g
}

// autoCrop drops the rows and columns outside the [lower, upper] percentiles
// of cumulative gradient energy. An axis with no energy is left uncropped.
func (g greyMatrix) autoCrop(lower, upper float64) greyMatrix {
	rowEnergy := make([]float64, g.rows)
	for r := range g.rows {
		for c := 0; c+1 < g.cols; c++ {
			rowEnergy[r] += math.Abs(float64(g.at(r, c+1) - g.at(r, c)))
		}
	}
	colEnergy := make([]float64, g.cols)
	for c := range g.cols {
		for r := 0; r+1 < g.rows; r++ {
			colEnergy[c] += math.Abs(float64(g.at(r+1, c) - g.at(r, c)))
		}
	}

	r0, r1 := cropBounds(rowEnergy, lower, upper)
	c0, c1 := cropBounds(colEnergy, lower, upper)
	if r0 == 0 && r1 == g.rows-1 && c0 == 0 && c1 == g.cols-1 {
		return g
	}

	out := greyMatrix{rows: r1 - r0 + 1, cols: c1 - c0 + 1}
	out.pix = make([]uint8, 0, out.rows*out.cols)
	for r := r0; r <= r1; r++ {
		out.pix = append(out.pix, g.pix[r*g.cols+c0:r*g.cols+c1+1]...)
	}
	return out
}

// cropBounds returns the inclusive index range whose cumulative energy lies
// between the two percentiles, or the full range when there is no energy.
func cropBounds(energy []float64, lower, upper float64) (int, int) {
	cumulative := make([]float64, len(energy))
	var total float64
	for i, e := range energy {
		total += e
		cumulative[i] = total
	}
	if total == 0 {
		return 0, len(energy) - 1
	}

	lo := sort.SearchFloat64s(cumulative, total*lower/100)
	hi := sort.SearchFloat64s(cumulative, total*upper/100)
	hi = min(hi, len(energy)-1)
	if lo > hi {
		return 0, len(energy) - 1
	}
	return lo, hi
}

// gridMatrix is a row-major matrix of grid point averages.
type gridMatrix struct {
	rows, cols int
	values     []float64
}

// gridPoints returns the n-1 inner boundaries of n equal bands over size.
// The positions are accumulated step by step, then floored.
func gridPoints(size, n int) []int {
	step := float64(size) / float64(n)
	points := make([]int, 0, n-1)
	pos := step
	for range n - 1 {
		points = append(points, int(math.Floor(pos)))
		pos += step
	}
	return points
}

// gridAverages averages a P x P window around every grid point, clipped to the image.
func (g greyMatrix) gridAverages(high, wide int, divisor float64) gridMatrix {
	ys := gridPoints(g.rows, high)
	xs := gridPoints(g.cols, wide)

	p := max(2, int(math.Floor(0.5+float64(min(g.rows, g.cols))/divisor)))
	before := (p - 1) / 2
	after := p - 1 - before

	out := gridMatrix{rows: len(ys), cols: len(xs), values: make([]float64, 0, len(ys)*len(xs))}
	for _, y := range ys {
		r0, r1 := max(0, y-before), min(g.rows-1, y+after)
		for _, x := range xs {
			c0, c1 := max(0, x-before), min(g.cols-1, x+after)
			var sum, n int
			for r := r0; r <= r1; r++ {
				for c := c0; c <= c1; c++ {
					sum += g.at(r, c)
					n++
				}
			}
			out.values = append(out.values, float64(sum)/float64(n))
		}
	}
	return out
}

// differentials returns, for each grid point and each of the 8 directions,
// the difference neighbour - self. present marks the slots whose neighbour
// lies inside the grid.
func (m gridMatrix) differentials() ([]float64, []bool) {
	n := len(neighbourDirections) * m.rows * m.cols
	diffs := make([]float64, 0, n)
	present := make([]bool, 0, n)
	for r := range m.rows {
		for c := range m.cols {
			self := m.values[r*m.cols+c]
			for _, d := range neighbourDirections {
				nr, nc := r+d.dr, c+d.dc
				if !inGrid(nr, nc, m.rows, m.cols) {
					diffs = append(diffs, 0)
					present = append(present, false)
					continue
				}
				diffs = append(diffs, m.values[nr*m.cols+nc]-self)
				present = append(present, true)
			}
		}
	}
	return diffs, present
}
