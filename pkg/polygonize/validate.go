package polygonize

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"ashfall/internal/models"
)

type segment struct {
	x0, y0, x1, y1 float64
}

func (s segment) box() models.Bounds {
	return models.Bounds{
		MinX: min(s.x0, s.x1), MinY: min(s.y0, s.y1),
		MaxX: max(s.x0, s.x1), MaxY: max(s.y0, s.y1),
	}
}

func orientation(ax, ay, bx, by, cx, cy float64) float64 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

// crosses reports a proper crossing: the segments intersect in one point that
// is interior to both. Touching and collinear overlap do not count.
func (s segment) crosses(o segment) bool {
	d1 := orientation(s.x0, s.y0, s.x1, s.y1, o.x0, o.y0)
	d2 := orientation(s.x0, s.y0, s.x1, s.y1, o.x1, o.y1)
	d3 := orientation(o.x0, o.y0, o.x1, o.y1, s.x0, s.y0)
	d4 := orientation(o.x0, o.y0, o.x1, o.y1, s.x1, s.y1)
	return d1*d2 < 0 && d3*d4 < 0
}

// Validate checks that mp is usable as region geometry: not empty, every ring
// closed with at least four points and non-zero area, and no two ring
// segments crossing each other.
func Validate(mp *geom.MultiPolygon) error {
	if mp == nil || mp.NumPolygons() == 0 {
		return eris.Wrap(models.ErrInvalidGeometry, "polygonize: empty geometry")
	}

	var segs []segment
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		if p.NumLinearRings() == 0 {
			return eris.Wrapf(models.ErrInvalidGeometry, "polygonize: polygon %d has no rings", i)
		}
		for k := 0; k < p.NumLinearRings(); k++ {
			flat := p.LinearRing(k).FlatCoords()
			stride := p.Stride()
			n := len(flat) / stride
			if n < 4 {
				return eris.Wrapf(models.ErrInvalidGeometry, "polygonize: polygon %d ring %d has %d points", i, k, n)
			}
			last := (n - 1) * stride
			if flat[0] != flat[last] || flat[1] != flat[last+1] {
				return eris.Wrapf(models.ErrInvalidGeometry, "polygonize: polygon %d ring %d is not closed", i, k)
			}
			if signedAreaFlat(compact(flat, stride)) == 0 {
				return eris.Wrapf(models.ErrInvalidGeometry, "polygonize: polygon %d ring %d has zero area", i, k)
			}
			for v := 0; v+1 < n; v++ {
				a, b := v*stride, (v+1)*stride
				segs = append(segs, segment{flat[a], flat[a+1], flat[b], flat[b+1]})
			}
		}
	}

	for i := range segs {
		bi := segs[i].box()
		for j := i + 1; j < len(segs); j++ {
			if !bi.Intersects(segs[j].box()) {
				continue
			}
			if segs[i].crosses(segs[j]) {
				return eris.Wrapf(models.ErrInvalidGeometry, "polygonize: ring segments cross near (%g, %g)",
					segs[i].x0, segs[i].y0)
			}
		}
	}
	return nil
}

// compact drops coordinates beyond XY.
func compact(flat []float64, stride int) []float64 {
	if stride == 2 {
		return flat
	}
	out := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, flat[i], flat[i+1])
	}
	return out
}
