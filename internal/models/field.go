package models

import "math"

// ScalarField holds one value per grid node in row-major order.
// NaN marks an undefined node.
type ScalarField struct {
	Grid   Grid
	Values []float64
}

// NewScalarField allocates a zero-valued field on g.
func NewScalarField(g Grid) *ScalarField {
	return &ScalarField{Grid: g, Values: make([]float64, g.Len())}
}

// At returns the value at node (i, j).
func (f *ScalarField) At(i, j int) float64 {
	return f.Values[f.Grid.Index(i, j)]
}

// Clone returns a deep copy.
func (f *ScalarField) Clone() *ScalarField {
	out := &ScalarField{Grid: f.Grid, Values: make([]float64, len(f.Values))}
	copy(out.Values, f.Values)
	return out
}

// FiniteRange returns the smallest and largest finite values and how many
// finite values exist.
func (f *ScalarField) FiniteRange() (lo, hi float64, n int) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range f.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		n++
	}
	return lo, hi, n
}

// WeightField is a field constrained to [0, 1].
type WeightField struct {
	Grid   Grid
	Values []float64
}

// At returns the weight at node (i, j).
func (w *WeightField) At(i, j int) float64 {
	return w.Values[w.Grid.Index(i, j)]
}

// BinaryMask is a Width by Height boolean raster in row-major order.
type BinaryMask struct {
	Width  int
	Height int
	Bits   []bool
}

// NewBinaryMask allocates an empty mask.
func NewBinaryMask(width, height int) *BinaryMask {
	return &BinaryMask{Width: width, Height: height, Bits: make([]bool, width*height)}
}

// At reports whether pixel (col, row) is set; pixels outside the mask are unset.
func (m *BinaryMask) At(col, row int) bool {
	if col < 0 || row < 0 || col >= m.Width || row >= m.Height {
		return false
	}
	return m.Bits[row*m.Width+col]
}

// Set assigns pixel (col, row).
func (m *BinaryMask) Set(col, row int, v bool) {
	m.Bits[row*m.Width+col] = v
}

// Count returns the number of set pixels.
func (m *BinaryMask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Empty reports whether no pixel is set.
func (m *BinaryMask) Empty() bool {
	for _, b := range m.Bits {
		if b {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (m *BinaryMask) Clone() *BinaryMask {
	out := &BinaryMask{Width: m.Width, Height: m.Height, Bits: make([]bool, len(m.Bits))}
	copy(out.Bits, m.Bits)
	return out
}

// Equal reports whether two masks have the same shape and pixels.
func (m *BinaryMask) Equal(o *BinaryMask) bool {
	if m.Width != o.Width || m.Height != o.Height {
		return false
	}
	for i := range m.Bits {
		if m.Bits[i] != o.Bits[i] {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every pixel set in m is also set in o.
func (m *BinaryMask) SubsetOf(o *BinaryMask) bool {
	if m.Width != o.Width || m.Height != o.Height {
		return false
	}
	for i, b := range m.Bits {
		if b && !o.Bits[i] {
			return false
		}
	}
	return true
}
