package zonal

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"ashfall/internal/models"
	"ashfall/pkg/polygonize"
)

// Rasterize marks the pixels of r whose centre lies inside region.
//
// North-up rasters are filled scanline by scanline with the even-odd rule over
// all rings; rotated rasters fall back to a point-in-polygon test per pixel.
func Rasterize(region *geom.MultiPolygon, r *models.LandUseRaster) (*models.BinaryMask, error) {
	if err := r.Validate(); err != nil {
		return nil, eris.Wrap(err, "zonal: rasterize")
	}
	if region == nil || region.Empty() {
		return nil, eris.Wrap(models.ErrInvalidGeometry, "zonal: empty region")
	}

	inside := models.NewBinaryMask(r.Width, r.Height)
	if !r.Transform.NorthUp() {
		for row := 0; row < r.Height; row++ {
			for col := 0; col < r.Width; col++ {
				x, y := r.Transform.Apply(float64(col)+0.5, float64(row)+0.5)
				if polygonize.Contains(region, x, y) {
					inside.Set(col, row, true)
				}
			}
		}
		return inside, nil
	}

	segs := ringSegments(region)
	box := polygonize.Bounds(region)
	crossings := make([]float64, 0, 64)

	for row := 0; row < r.Height; row++ {
		_, y := r.Transform.Apply(0, float64(row)+0.5)
		if y < box.MinY || y > box.MaxY {
			continue
		}

		crossings = crossings[:0]
		for _, s := range segs {
			// half-open in y so shared vertices count once
			if (s.y0 <= y) == (s.y1 <= y) {
				continue
			}
			crossings = append(crossings, s.x0+(y-s.y0)*(s.x1-s.x0)/(s.y1-s.y0))
		}
		if len(crossings) < 2 {
			continue
		}
		sort.Float64s(crossings)

		for col := 0; col < r.Width; col++ {
			x, _ := r.Transform.Apply(float64(col)+0.5, float64(row)+0.5)
			if x < box.MinX || x > box.MaxX {
				continue
			}
			if sort.SearchFloat64s(crossings, x)%2 == 1 {
				inside.Set(col, row, true)
			}
		}
	}
	return inside, nil
}

type seg struct{ x0, y0, x1, y1 float64 }

func ringSegments(mp *geom.MultiPolygon) []seg {
	var segs []seg
	stride := mp.Stride()
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		for k := 0; k < p.NumLinearRings(); k++ {
			flat := p.LinearRing(k).FlatCoords()
			n := len(flat) / stride
			for v := 0; v+1 < n; v++ {
				a, b := v*stride, (v+1)*stride
				if flat[a+1] == flat[b+1] || math.IsNaN(flat[a+1]) {
					continue
				}
				segs = append(segs, seg{flat[a], flat[a+1], flat[b], flat[b+1]})
			}
		}
	}
	return segs
}
