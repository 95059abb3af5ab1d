package polygonize

import (
	"math"

	ctgeom "github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"ashfall/internal/models"
	"ashfall/pkg/equalarea"
)

// Dissolve merges parts into one multipolygon. Parts whose interiors overlap
// are unioned; parts that are disjoint or only touch are collected as they are.
func Dissolve(parts []*geom.Polygon) (*geom.MultiPolygon, error) {
	if len(parts) == 0 {
		return nil, eris.Wrap(models.ErrInvalidGeometry, "polygonize: nothing to dissolve")
	}

	n := len(parts)
	boxes := make([]models.Bounds, n)
	polys := make([]ctgeom.Polygon, n)
	for i, p := range parts {
		boxes[i] = flatBounds(p.FlatCoords(), p.Stride())
		polys[i] = ToPolygonal(p)
	}

	// union-find over parts with overlapping interiors
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !boxes[i].Intersects(boxes[j]) {
				continue
			}
			if isect := polys[i].Intersection(polys[j]); isect != nil && isect.Area() > 0 {
				parent[find(j)] = find(i)
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		r := find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(SRID)
	for _, r := range roots {
		members := groups[r]
		if len(members) == 1 {
			if err := mp.Push(parts[members[0]]); err != nil {
				return nil, eris.Wrap(err, "polygonize: collect part")
			}
			continue
		}
		merged := polys[members[0]]
		for _, k := range members[1:] {
			merged = merged.Union(polys[k]).(ctgeom.Polygon)
		}
		for _, p := range FromPolygonal(merged) {
			if err := mp.Push(p); err != nil {
				return nil, eris.Wrap(err, "polygonize: collect union")
			}
		}
	}

	zap.L().Debug("dissolved region", zap.Int("parts", n), zap.Int("polygons", mp.NumPolygons()))
	return mp, nil
}

// Region traces m under t, dissolves the components and validates the result.
// An empty mask yields ErrInvalidGeometry.
func Region(m *models.BinaryMask, t models.Affine) (*geom.MultiPolygon, error) {
	if m == nil || m.Empty() {
		return nil, eris.Wrap(models.ErrInvalidGeometry, "polygonize: empty mask")
	}
	mp, err := Dissolve(Trace(m, t))
	if err != nil {
		return nil, err
	}
	if err := Validate(mp); err != nil {
		return nil, err
	}
	return mp, nil
}

// AreaKM2 returns the equal-area size of mp.
func AreaKM2(mp *geom.MultiPolygon, p *equalarea.Projection) float64 {
	return p.MultiPolygonKM2(mp)
}

// Contains reports whether (x, y) is inside mp: inside some exterior ring and
// outside that polygon's holes. Boundary points count as inside.
func Contains(mp *geom.MultiPolygon, x, y float64) bool {
	c := geom.Coord{x, y}
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		if !xy.IsPointInRing(geom.XY, c, p.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for k := 1; k < p.NumLinearRings(); k++ {
			if xy.IsPointInRing(geom.XY, c, p.LinearRing(k).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// Bounds returns the bounding box of mp.
func Bounds(mp *geom.MultiPolygon) models.Bounds {
	return flatBounds(mp.FlatCoords(), mp.Stride())
}

func flatBounds(flat []float64, stride int) models.Bounds {
	b := models.Bounds{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for i := 0; i+1 < len(flat); i += stride {
		b.MinX = math.Min(b.MinX, flat[i])
		b.MaxX = math.Max(b.MaxX, flat[i])
		b.MinY = math.Min(b.MinY, flat[i+1])
		b.MaxY = math.Max(b.MaxY, flat[i+1])
	}
	return b
}
