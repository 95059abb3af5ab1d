// Package equalarea projects geographic coordinates onto the WGS84
// cylindrical equal-area grid (EPSG:6933, standard parallel 30°) and measures
// areas there. Every area in square kilometres reported by the pipeline goes
// through this package.
package equalarea

import (
	"math"

	ctgeom "github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"ashfall/internal/models"
)

// WGS84 ellipsoid.
const (
	SemiMajorAxis = 6378137.0
	Eccentricity2 = 0.00669437999014
)

// DefaultStandardParallel is the latitude of true scale of EPSG:6933.
const DefaultStandardParallel = 30.0

const deg = math.Pi / 180

// Projection is a Lambert cylindrical equal-area projection on the WGS84
// ellipsoid, centred on the Greenwich meridian.
type Projection struct {
	k0 float64
	e  float64
	qp float64
}

// New returns the projection with true scale at lat1 degrees.
func New(lat1 float64) (*Projection, error) {
	if math.IsNaN(lat1) || math.Abs(lat1) >= 90 {
		return nil, eris.Errorf("equalarea: standard parallel %g out of range", lat1)
	}
	s := math.Sin(lat1 * deg)
	p := &Projection{
		k0: math.Cos(lat1*deg) / math.Sqrt(1-Eccentricity2*s*s),
		e:  math.Sqrt(Eccentricity2),
	}
	p.qp = p.q(1)
	return p, nil
}

// EPSG6933 returns the projection used for all area work.
func EPSG6933() *Projection {
	p, _ := New(DefaultStandardParallel)
	return p
}

// q is the authalic latitude function of sin(phi).
func (p *Projection) q(sinPhi float64) float64 {
	es := p.e * sinPhi
	return (1 - Eccentricity2) * (sinPhi/(1-es*es) - math.Log((1-es)/(1+es))/(2*p.e))
}

// Forward maps longitude and latitude in degrees to metres.
func (p *Projection) Forward(lon, lat float64) (x, y float64) {
	x = SemiMajorAxis * p.k0 * lon * deg
	y = SemiMajorAxis * p.q(math.Sin(lat*deg)) / (2 * p.k0)
	return x, y
}

// Transformer adapts Forward to ctessum/geom's reprojection hook.
func (p *Projection) Transformer() proj.Transformer {
	return func(lon, lat float64) (float64, float64, error) {
		if math.Abs(lat) > 90 {
			return 0, 0, eris.Errorf("equalarea: latitude %g out of range", lat)
		}
		x, y := p.Forward(lon, lat)
		return x, y, nil
	}
}

// ProjectMultiPolygon returns a copy of mp with every vertex projected.
func (p *Projection) ProjectMultiPolygon(mp *geom.MultiPolygon) *geom.MultiPolygon {
	flat := mp.FlatCoords()
	stride := mp.Stride()
	out := make([]float64, len(flat))
	copy(out, flat)
	for i := 0; i+1 < len(out); i += stride {
		out[i], out[i+1] = p.Forward(flat[i], flat[i+1])
	}
	return geom.NewMultiPolygonFlat(mp.Layout(), out, mp.Endss())
}

// MultiPolygonKM2 returns the area of a geographic multipolygon in km².
func (p *Projection) MultiPolygonKM2(mp *geom.MultiPolygon) float64 {
	if mp == nil || mp.Empty() {
		return 0
	}
	return p.ProjectMultiPolygon(mp).Area() / 1e6
}

// PolygonalKM2 returns the area of a ctessum polygonal in km².
func (p *Projection) PolygonalKM2(g ctgeom.Polygonal) (float64, error) {
	if g == nil {
		return 0, nil
	}
	projected, err := g.Transform(p.Transformer())
	if err != nil {
		return 0, eris.Wrap(err, "equalarea: project polygon")
	}
	poly, ok := projected.(ctgeom.Polygonal)
	if !ok {
		return 0, eris.Errorf("equalarea: projected %T is not polygonal", projected)
	}
	return poly.Area() / 1e6, nil
}

// PixelKM2 returns the area of raster pixel (col, row) under t.
func (p *Projection) PixelKM2(t models.Affine, col, row int) float64 {
	c, r := float64(col), float64(row)
	var xs, ys [4]float64
	for k, corner := range [4][2]float64{{c, r}, {c + 1, r}, {c + 1, r + 1}, {c, r + 1}} {
		lon, lat := t.Apply(corner[0], corner[1])
		xs[k], ys[k] = p.Forward(lon, lat)
	}
	sum := 0.0
	for k := 0; k < 4; k++ {
		n := (k + 1) % 4
		sum += xs[k]*ys[n] - xs[n]*ys[k]
	}
	return math.Abs(sum) / 2 / 1e6
}

// RowPixelKM2 returns the pixel area of every row of a north-up raster.
// Pixels in one row of a north-up raster share their area.
func (p *Projection) RowPixelKM2(t models.Affine, height int) []float64 {
	out := make([]float64, height)
	for row := range out {
		out[row] = p.PixelKM2(t, 0, row)
	}
	return out
}
