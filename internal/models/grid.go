package models

import (
	"math"

	"github.com/rotisserie/eris"
)

// Bounds is an axis-aligned box in geographic or projected coordinates.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the x span of the box.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the y span of the box.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Pad widens the box by fx times its width on the left and right and by fy
// times its height on the top and bottom.
func (b Bounds) Pad(fx, fy float64) Bounds {
	px := fx * b.Width()
	py := fy * b.Height()
	return Bounds{MinX: b.MinX - px, MinY: b.MinY - py, MaxX: b.MaxX + px, MaxY: b.MaxY + py}
}

// Contains reports whether (x, y) lies inside the closed box.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Intersects reports whether two closed boxes share at least one point.
func (b Bounds) Intersects(o Bounds) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Grid is a regular lattice of NX by NY nodes spanning Bounds.
//
// Node (i, j) sits at x = MinX + i*DX and y = MaxY - j*DY, so row 0 is the
// northern edge and columns run west to east. The grid is purely geometric
// and is shared read-only by every stage.
type Grid struct {
	Bounds Bounds
	NX     int
	NY     int
}

// NewGrid validates the lattice definition.
func NewGrid(b Bounds, nx, ny int) (Grid, error) {
	if nx < 2 || ny < 2 {
		return Grid{}, eris.Errorf("models: grid needs at least 2x2 nodes, got %dx%d", nx, ny)
	}
	if !(b.Width() > 0) || !(b.Height() > 0) {
		return Grid{}, eris.Errorf("models: degenerate grid bounds %+v", b)
	}
	return Grid{Bounds: b, NX: nx, NY: ny}, nil
}

// Len returns the number of nodes.
func (g Grid) Len() int { return g.NX * g.NY }

// DX returns the node spacing along x.
func (g Grid) DX() float64 { return g.Bounds.Width() / float64(g.NX-1) }

// DY returns the node spacing along y.
func (g Grid) DY() float64 { return g.Bounds.Height() / float64(g.NY-1) }

// X returns the longitude of column i.
func (g Grid) X(i int) float64 { return g.Bounds.MinX + float64(i)*g.DX() }

// Y returns the latitude of row j.
func (g Grid) Y(j int) float64 { return g.Bounds.MaxY - float64(j)*g.DY() }

// Index returns the row-major offset of node (i, j).
func (g Grid) Index(i, j int) int { return j*g.NX + i }

// Xs returns every column coordinate.
func (g Grid) Xs() []float64 {
	xs := make([]float64, g.NX)
	for i := range xs {
		xs[i] = g.X(i)
	}
	return xs
}

// Ys returns every row coordinate, north to south.
func (g Grid) Ys() []float64 {
	ys := make([]float64, g.NY)
	for j := range ys {
		ys[j] = g.Y(j)
	}
	return ys
}

// Transform maps pixel corners to coordinates such that the centre of pixel
// (i, j) is node (i, j).
func (g Grid) Transform() Affine {
	dx, dy := g.DX(), g.DY()
	return Affine{
		A: dx, B: 0, C: g.Bounds.MinX - dx/2,
		D: 0, E: -dy, F: g.Bounds.MaxY + dy/2,
	}
}

// Equal reports whether two grids describe the same lattice.
func (g Grid) Equal(o Grid) bool {
	return g.NX == o.NX && g.NY == o.NY && g.Bounds == o.Bounds
}

// Affine maps pixel coordinates (col, row) to x = A*col + B*row + C and
// y = D*col + E*row + F, following the GDAL/rasterio convention.
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// FromBounds returns the north-up transform for a width by height raster whose
// outer pixel edges coincide with b.
func FromBounds(b Bounds, width, height int) Affine {
	return Affine{
		A: b.Width() / float64(width), C: b.MinX,
		E: -b.Height() / float64(height), F: b.MaxY,
	}
}

// Apply maps pixel coordinates to world coordinates.
func (t Affine) Apply(col, row float64) (x, y float64) {
	return t.A*col + t.B*row + t.C, t.D*col + t.E*row + t.F
}

// NorthUp reports whether the transform has no rotation or shear terms.
func (t Affine) NorthUp() bool {
	return t.B == 0 && t.D == 0
}

// Determinant returns A*E - B*D.
func (t Affine) Determinant() float64 {
	return t.A*t.E - t.B*t.D
}

// Invert returns the world-to-pixel transform.
func (t Affine) Invert() (Affine, error) {
	det := t.Determinant()
	if det == 0 || math.IsNaN(det) {
		return Affine{}, eris.New("models: affine transform is not invertible")
	}
	ia := t.E / det
	ib := -t.B / det
	id := -t.D / det
	ie := t.A / det
	return Affine{
		A: ia, B: ib, C: -ia*t.C - ib*t.F,
		D: id, E: ie, F: -id*t.C - ie*t.F,
	}, nil
}
