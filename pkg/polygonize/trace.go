// Package polygonize converts a binary mask into vector region geometry.
//
// Components are traced along pixel edges, so every vertex lies on a pixel
// corner. Rings are oriented with exteriors counter-clockwise and holes
// clockwise in world coordinates.
package polygonize

import (
	"github.com/twpayne/go-geom"

	"ashfall/internal/models"
	"ashfall/pkg/morphology"
)

// SRID of traced geometry (WGS84 geographic).
const SRID = 4326

type vertex struct{ col, row int }

// edge is one pixel side between a set pixel (owner) and an unset one,
// directed so that the owner is on its right when rows grow downwards.
type edge struct {
	from, to vertex
	owner    int
	used     bool
}

// ring is a closed vertex loop in pixel corner coordinates.
type ring struct {
	pts   []vertex
	owner int
}

// signedArea2 is twice the shoelace area in pixel space; exteriors are positive.
func (r ring) signedArea2() int {
	s := 0
	n := len(r.pts)
	for i := 0; i < n; i++ {
		a, b := r.pts[i], r.pts[(i+1)%n]
		s += a.col*b.row - b.col*a.row
	}
	return s
}

func boundaryEdges(m *models.BinaryMask) []*edge {
	var edges []*edge
	for row := 0; row < m.Height; row++ {
		for col := 0; col < m.Width; col++ {
			if !m.At(col, row) {
				continue
			}
			owner := row*m.Width + col
			if !m.At(col, row-1) {
				edges = append(edges, &edge{from: vertex{col, row}, to: vertex{col + 1, row}, owner: owner})
			}
			if !m.At(col+1, row) {
				edges = append(edges, &edge{from: vertex{col + 1, row}, to: vertex{col + 1, row + 1}, owner: owner})
			}
			if !m.At(col, row+1) {
				edges = append(edges, &edge{from: vertex{col + 1, row + 1}, to: vertex{col, row + 1}, owner: owner})
			}
			if !m.At(col-1, row) {
				edges = append(edges, &edge{from: vertex{col, row + 1}, to: vertex{col, row}, owner: owner})
			}
		}
	}
	return edges
}

// traceRings links boundary edges into closed rings. At a vertex where two
// set pixels touch only diagonally the trace stays on the incoming edge's
// pixel, which keeps 4-connected components apart.
func traceRings(m *models.BinaryMask) []ring {
	edges := boundaryEdges(m)
	outgoing := make(map[vertex][]*edge, len(edges))
	for _, e := range edges {
		outgoing[e.from] = append(outgoing[e.from], e)
	}

	var rings []ring
	for _, start := range edges {
		if start.used {
			continue
		}
		r := ring{owner: start.owner}
		cur := start
		for {
			cur.used = true
			r.pts = append(r.pts, cur.from)

			var next *edge
			for _, cand := range outgoing[cur.to] {
				if cand.used && cand != start {
					continue
				}
				if next == nil || cand.owner == cur.owner {
					next = cand
				}
			}
			if next == nil || next == start {
				break
			}
			cur = next
		}
		r.pts = dropCollinear(r.pts)
		rings = append(rings, r)
	}
	return rings
}

func dropCollinear(pts []vertex) []vertex {
	n := len(pts)
	out := make([]vertex, 0, n)
	for i := 0; i < n; i++ {
		prev, cur, next := pts[(i+n-1)%n], pts[i], pts[(i+1)%n]
		if (prev.col == cur.col && cur.col == next.col) || (prev.row == cur.row && cur.row == next.row) {
			continue
		}
		out = append(out, cur)
	}
	return out
}

// Trace returns one polygon per 4-connected component of m, in world
// coordinates under t. Holes are attached to the component that encloses them.
func Trace(m *models.BinaryMask, t models.Affine) []*geom.Polygon {
	labels, sizes := morphology.Label(m)
	outers := make([]*ring, len(sizes))
	holes := make([][]ring, len(sizes))

	for _, r := range traceRings(m) {
		id := labels[r.owner]
		if r.signedArea2() > 0 {
			rc := r
			outers[id] = &rc
		} else {
			holes[id] = append(holes[id], r)
		}
	}

	var polys []*geom.Polygon
	for id := 1; id < len(sizes); id++ {
		if outers[id] == nil {
			continue
		}
		flat := appendRing(nil, *outers[id], t, true)
		ends := []int{len(flat)}
		for _, h := range holes[id] {
			flat = appendRing(flat, h, t, false)
			ends = append(ends, len(flat))
		}
		polys = append(polys, geom.NewPolygonFlat(geom.XY, flat, ends).SetSRID(SRID))
	}
	return polys
}

// appendRing transforms r to world coordinates, closes it and orients it.
func appendRing(flat []float64, r ring, t models.Affine, exterior bool) []float64 {
	coords := make([]float64, 0, 2*(len(r.pts)+1))
	for _, p := range r.pts {
		x, y := t.Apply(float64(p.col), float64(p.row))
		coords = append(coords, x, y)
	}
	coords = append(coords, coords[0], coords[1])

	if ccw := signedAreaFlat(coords) > 0; ccw != exterior {
		reverseFlat(coords)
	}
	return append(flat, coords...)
}

// signedAreaFlat is the shoelace area of a closed XY ring; positive is
// counter-clockwise.
func signedAreaFlat(coords []float64) float64 {
	s := 0.0
	for i := 0; i+3 < len(coords); i += 2 {
		s += coords[i]*coords[i+3] - coords[i+2]*coords[i+1]
	}
	return s / 2
}

func reverseFlat(coords []float64) {
	n := len(coords) / 2
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		coords[2*i], coords[2*j] = coords[2*j], coords[2*i]
		coords[2*i+1], coords[2*j+1] = coords[2*j+1], coords[2*i+1]
	}
}
