package polygonize

import (
	"math"
	"sort"

	ctgeom "github.com/ctessum/geom"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// ToPolygonal converts a go-geom polygon into the ctessum representation
// used for overlay operations. The closing vertex of each ring is dropped.
func ToPolygonal(p *geom.Polygon) ctgeom.Polygon {
	out := make(ctgeom.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		out = append(out, toPath(p.LinearRing(i).FlatCoords(), p.Stride()))
	}
	return out
}

// MultiToPolygonal flattens every ring of mp into one ctessum polygon.
// ctessum classifies holes by containment, so ring ownership is not needed.
func MultiToPolygonal(mp *geom.MultiPolygon) ctgeom.Polygon {
	var out ctgeom.Polygon
	for i := 0; i < mp.NumPolygons(); i++ {
		out = append(out, ToPolygonal(mp.Polygon(i))...)
	}
	return out
}

func toPath(flat []float64, stride int) []ctgeom.Point {
	n := len(flat) / stride
	if n > 1 && flat[0] == flat[(n-1)*stride] && flat[1] == flat[(n-1)*stride+1] {
		n--
	}
	path := make([]ctgeom.Point, n)
	for i := 0; i < n; i++ {
		path[i] = ctgeom.Point{X: flat[i*stride], Y: flat[i*stride+1]}
	}
	return path
}

// FromPolygonal rebuilds go-geom polygons from a ctessum polygon whose rings
// carry no ownership. A ring nested inside an even number of other rings is an
// exterior; the others are holes of the smallest exterior containing them.
func FromPolygonal(p ctgeom.Polygon) []*geom.Polygon {
	type closed struct {
		flat  []float64
		area  float64
		depth int
		owner int
	}

	rings := make([]*closed, 0, len(p))
	for _, path := range p {
		if len(path) < 3 {
			continue
		}
		flat := make([]float64, 0, 2*(len(path)+1))
		for _, pt := range path {
			flat = append(flat, pt.X, pt.Y)
		}
		if path[0] != path[len(path)-1] {
			flat = append(flat, path[0].X, path[0].Y)
		}
		a := signedAreaFlat(flat)
		if a == 0 {
			continue
		}
		rings = append(rings, &closed{flat: flat, area: math.Abs(a), owner: -1})
	}

	// containment is tested with a point just inside the ring's first edge
	for i, r := range rings {
		pt := interiorPoint(r.flat)
		for j, o := range rings {
			if i == j || o.area <= r.area {
				continue
			}
			if xy.IsPointInRing(geom.XY, pt, o.flat) {
				r.depth++
			}
		}
	}

	order := make([]int, len(rings))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return rings[order[a]].area < rings[order[b]].area })

	for _, i := range order {
		r := rings[i]
		if r.depth%2 == 0 {
			continue
		}
		pt := interiorPoint(r.flat)
		for _, j := range order {
			o := rings[j]
			if o.depth%2 != 0 || o.area <= r.area {
				continue
			}
			if xy.IsPointInRing(geom.XY, pt, o.flat) {
				r.owner = j
				break
			}
		}
	}

	var polys []*geom.Polygon
	for i, r := range rings {
		if r.depth%2 != 0 {
			continue
		}
		flat := orient(append([]float64(nil), r.flat...), true)
		ends := []int{len(flat)}
		for _, h := range rings {
			if h.depth%2 == 1 && h.owner == i {
				flat = append(flat, orient(append([]float64(nil), h.flat...), false)...)
				ends = append(ends, len(flat))
			}
		}
		polys = append(polys, geom.NewPolygonFlat(geom.XY, flat, ends).SetSRID(SRID))
	}
	return polys
}

func orient(flat []float64, exterior bool) []float64 {
	if ccw := signedAreaFlat(flat) > 0; ccw != exterior {
		reverseFlat(flat)
	}
	return flat
}

// interiorPoint returns a point slightly to the inner side of the midpoint of
// the ring's first edge.
func interiorPoint(flat []float64) geom.Coord {
	x0, y0, x1, y1 := flat[0], flat[1], flat[2], flat[3]
	mx, my := (x0+x1)/2, (y0+y1)/2
	dx, dy := x1-x0, y1-y0
	l := math.Hypot(dx, dy)
	if l == 0 {
		return geom.Coord{mx, my}
	}
	// left normal points inside a counter-clockwise ring
	nx, ny := -dy/l, dx/l
	if signedAreaFlat(flat) < 0 {
		nx, ny = -nx, -ny
	}
	eps := l * 1e-6
	return geom.Coord{mx + nx*eps, my + ny*eps}
}
