package interpolation

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"ashfall/internal/models"
)

// Point2D is an observation location in degrees.
type Point2D struct {
	X, Y float64
}

// Compare implements the kdtree.Comparable interface
func (p Point2D) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point2D)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p Point2D) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two points
func (p Point2D) Distance(c kdtree.Comparable) float64 {
	q := c.(Point2D)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// Points2D is a collection of Point2D that satisfies kdtree.Interface
type Points2D []Point2D

func (p Points2D) Index(i int) kdtree.Comparable         { return p[i] }
func (p Points2D) Len() int                              { return len(p) }
func (p Points2D) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p Points2D) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{Points2D: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{Points2D: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for Points2D
type pointPlane struct {
	Points2D
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.Points2D[i].X < p.Points2D[j].X
	case 1:
		return p.Points2D[i].Y < p.Points2D[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{Points2D: p.Points2D[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.Points2D[i], p.Points2D[j] = p.Points2D[j], p.Points2D[i]
}

// NearestDistance returns, for every grid node, the distance in degrees to the
// closest of the given sites.
func NearestDistance(sites []Point2D, g models.Grid) []float64 {
	out := make([]float64, g.Len())
	if len(sites) == 0 {
		for i := range out {
			out[i] = math.Inf(1)
		}
		return out
	}

	// kdtree.New reorders its input
	pts := make(Points2D, len(sites))
	copy(pts, sites)
	tree := kdtree.New(pts, false)

	xs := g.Xs()
	for j := 0; j < g.NY; j++ {
		y := g.Y(j)
		for i, x := range xs {
			_, d2 := tree.Nearest(Point2D{X: x, Y: y})
			out[g.Index(i, j)] = math.Sqrt(d2)
		}
	}
	return out
}
